package mcert

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// OpenMessageStatus is the lifecycle state of an open message.
type OpenMessageStatus uint8

const (
	// StatusOpen accepts signature registrations.
	StatusOpen OpenMessageStatus = iota + 1

	// StatusExpired still accepts late registrations
	// but cannot be certified without re-evaluation.
	StatusExpired

	// StatusCertified is terminal; no further mutation.
	StatusCertified
)

func (s OpenMessageStatus) String() string {
	switch s {
	case StatusOpen:
		return "open"
	case StatusExpired:
		return "expired"
	case StatusCertified:
		return "certified"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(s))
	}
}

// OpenMessage is the live certification round
// for one signed entity instance.
// At most one non-terminal open message exists per signed entity type.
type OpenMessage struct {
	ID uuid.UUID `json:"id"`

	SignedEntityType SignedEntityType `json:"signed_entity_type"`

	ProtocolMessage ProtocolMessage `json:"protocol_message"`

	Epoch Epoch `json:"epoch"`

	CreatedAt time.Time `json:"created_at"`

	Status OpenMessageStatus `json:"status"`

	// Registered signatures, in registration order.
	SingleSignatures []SingleSignature `json:"single_signatures"`

	// CertificateHash is set once Status is StatusCertified.
	CertificateHash string `json:"certificate_hash,omitempty"`
}

// HasSignatureFromParty reports whether the party already registered
// a signature against this round.
func (m OpenMessage) HasSignatureFromParty(partyID PartyID) bool {
	for _, s := range m.SingleSignatures {
		if s.PartyID == partyID {
			return true
		}
	}
	return false
}
