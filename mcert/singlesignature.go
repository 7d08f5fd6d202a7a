package mcert

import (
	"bytes"
	"slices"
)

// PartyID identifies one registered signer.
type PartyID string

// SingleSignature is one signer's contribution to an open round:
// the party, its signature over the round's protocol message hash,
// and the stake-index lottery wins it claims.
// A SingleSignature is immutable once created.
type SingleSignature struct {
	PartyID PartyID `json:"party_id"`

	Signature []byte `json:"signature"`

	WonIndexes []uint64 `json:"won_indexes"`
}

// Equal compares the full signature content.
func (s SingleSignature) Equal(other SingleSignature) bool {
	return s.PartyID == other.PartyID &&
		bytes.Equal(s.Signature, other.Signature) &&
		slices.Equal(s.WonIndexes, other.WonIndexes)
}
