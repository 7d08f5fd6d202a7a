package mcert

import (
	"encoding/binary"
	"encoding/hex"

	"golang.org/x/crypto/blake2b"

	"github.com/cardano-scaling/mithril/mcrypto"
)

// Certificate is the terminal artifact of a certification round.
// Certificates form a singly linked, hash-verifiable chain
// back to a genesis certificate.
// A Certificate is immutable once created.
type Certificate struct {
	// Hash of the certificate's own content, as computed by [Certificate.ComputeHash].
	Hash string

	// Hash of the previous certificate in the chain;
	// empty for the genesis certificate.
	PreviousHash string

	Epoch Epoch

	SignedEntityType SignedEntityType

	// The certified payload.
	ProtocolMessage ProtocolMessage

	// The signer set the aggregate signature draws from,
	// in candidate index order.
	Signers []SignerWithStake

	// The aggregated multi-signature over the quorum of single signatures.
	AggregateSignature mcrypto.AggregateSignature
}

// IsGenesis reports whether this certificate starts the chain.
func (c Certificate) IsGenesis() bool {
	return c.PreviousHash == ""
}

// ComputeHash derives the certificate's content hash.
// The hash covers every field except Hash itself,
// so any alteration of a stored certificate is detectable.
func (c Certificate) ComputeHash(reg *mcrypto.Registry) string {
	h, err := blake2b.New256(nil)
	if err != nil {
		panic(err)
	}

	var u64 [8]byte

	h.Write([]byte(c.PreviousHash))

	binary.BigEndian.PutUint64(u64[:], uint64(c.Epoch))
	h.Write(u64[:])

	h.Write([]byte(c.SignedEntityType.Key()))

	h.Write(c.ProtocolMessage.CanonicalBytes())

	for _, s := range c.Signers {
		h.Write([]byte(s.PartyID))
		h.Write(reg.Marshal(s.PubKey))
		binary.BigEndian.PutUint64(u64[:], s.Stake)
		h.Write(u64[:])
	}

	h.Write([]byte(c.AggregateSignature.PubKeyHash))
	for _, ss := range c.AggregateSignature.Signatures {
		h.Write(ss.KeyID)
		h.Write(ss.Sig)
	}

	return hex.EncodeToString(h.Sum(nil))
}
