package mcrypto

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"sort"

	"github.com/bits-and-blooms/bitset"
)

// StakeSignatureProof accumulates signatures from a fixed candidate set of
// stake-holding signers, all signing one common message.
//
// The candidate keys and stakes are parallel slices whose order is fixed for
// the lifetime of the proof; the bit set returned by [StakeSignatureProof.SignatureBitSet]
// indexes into them.
type StakeSignatureProof struct {
	msg []byte

	// string(signature bytes) -> candidate index
	sigs map[string]int

	keys   []PubKey
	stakes []uint64

	// string(pub key bytes) -> index in keys
	keyIdxs map[string]int

	// Implementation-specific hash across the candidate keys,
	// so two independent proofs can agree they reference the same signer set.
	keyHash string

	bs *bitset.BitSet
}

// NewStakeSignatureProof returns an empty proof over msg for the given
// candidate signer set. keys and stakes must have equal length.
func NewStakeSignatureProof(msg []byte, keys []PubKey, stakes []uint64, keyHash string) (*StakeSignatureProof, error) {
	if len(keys) != len(stakes) {
		return nil, fmt.Errorf(
			"mismatched length for candidate keys (%d) and stakes (%d)",
			len(keys), len(stakes),
		)
	}

	keyIdxs := make(map[string]int, len(keys))
	for i, k := range keys {
		keyIdxs[string(k.PubKeyBytes())] = i
	}

	return &StakeSignatureProof{
		msg: msg,

		sigs: make(map[string]int),

		keys:   keys,
		stakes: stakes,

		keyIdxs: keyIdxs,

		keyHash: keyHash,

		bs: bitset.New(uint(len(keys))),
	}, nil
}

func (p *StakeSignatureProof) Message() []byte {
	return p.msg
}

func (p *StakeSignatureProof) PubKeyHash() string {
	return p.keyHash
}

// AddSignature records a signature attributed to the given candidate key.
//
// If the key is not one of the candidate keys, ErrUnknownKey is returned.
// If the signature does not verify against the proof's message,
// ErrInvalidSignature is returned.
func (p *StakeSignatureProof) AddSignature(sig []byte, key PubKey) error {
	keyIdx, ok := p.keyIdxs[string(key.PubKeyBytes())]
	if !ok {
		return ErrUnknownKey
	}
	if !key.Verify(p.msg, sig) {
		return ErrInvalidSignature
	}

	p.sigs[string(sig)] = keyIdx
	p.bs.Set(uint(keyIdx))
	return nil
}

// SignatureBitSet returns a bit set indicating which candidate keys
// have signatures included in this proof.
func (p *StakeSignatureProof) SignatureBitSet() *bitset.BitSet {
	return p.bs
}

// SignedStake sums the stake of every candidate whose signature is present.
func (p *StakeSignatureProof) SignedStake() uint64 {
	var total uint64
	for i, ok := p.bs.NextSet(0); ok; i, ok = p.bs.NextSet(i + 1) {
		total += p.stakes[int(i)]
	}
	return total
}

// AsAggregate returns the compact multi-signature form of the proof,
// suitable for embedding in a certificate.
func (p *StakeSignatureProof) AsAggregate() AggregateSignature {
	sigs := make([]SparseSignature, 0, len(p.sigs))
	for sigBytes, keyIdx := range p.sigs {
		b := [2]byte{}
		binary.BigEndian.PutUint16(b[:], uint16(keyIdx))

		sigs = append(sigs, SparseSignature{
			KeyID: b[:],
			Sig:   []byte(sigBytes),
		})
	}

	// Ensure the outgoing signatures are always in key-sorted order.
	// No key IDs should be duplicated, so this doesn't need a stable sort.
	sort.Slice(sigs, func(i, j int) bool {
		return bytes.Compare(sigs[i].KeyID, sigs[j].KeyID) < 0
	})

	return AggregateSignature{
		PubKeyHash: p.keyHash,

		Signatures: sigs,
	}
}

// AggregateSignature is the compact multi-signature embedded in a certificate.
//
// Each entry maps back into the candidate signer set of the proof it was
// produced from, in key index order.
type AggregateSignature struct {
	// The PubKeyHash of the original proof.
	PubKeyHash string `json:"pub_key_hash"`

	// One signature per participating signer,
	// with a big-endian uint16 key ID referencing the candidate set.
	Signatures []SparseSignature `json:"signatures"`
}

// SparseSignature is one signer's contribution within an [AggregateSignature].
type SparseSignature struct {
	KeyID []byte `json:"key_id"`

	Sig []byte `json:"sig"`
}

// VerifyAggregate checks every signature in agg against msg and the candidate
// signer set, returning the total stake of the verified signers.
//
// A key ID out of range is reported as ErrUnknownKey; a signature that does
// not verify is reported as ErrInvalidSignature. Either failure identifies the
// offending entry index.
func VerifyAggregate(msg []byte, agg AggregateSignature, keys []PubKey, stakes []uint64) (uint64, error) {
	if len(keys) != len(stakes) {
		return 0, fmt.Errorf(
			"mismatched length for candidate keys (%d) and stakes (%d)",
			len(keys), len(stakes),
		)
	}

	seen := bitset.New(uint(len(keys)))
	var total uint64
	for i, ss := range agg.Signatures {
		if len(ss.KeyID) != 2 {
			return 0, fmt.Errorf("signature %d: invalid key ID length %d: %w", i, len(ss.KeyID), ErrUnknownKey)
		}

		keyIdx := int(binary.BigEndian.Uint16(ss.KeyID))
		if keyIdx >= len(keys) {
			return 0, fmt.Errorf("signature %d: key ID %d out of range: %w", i, keyIdx, ErrUnknownKey)
		}
		if seen.Test(uint(keyIdx)) {
			return 0, fmt.Errorf("signature %d: duplicate key ID %d: %w", i, keyIdx, ErrUnknownKey)
		}

		if !keys[keyIdx].Verify(msg, ss.Sig) {
			return 0, fmt.Errorf("signature %d (key ID %d): %w", i, keyIdx, ErrInvalidSignature)
		}

		seen.Set(uint(keyIdx))
		total += stakes[keyIdx]
	}

	return total, nil
}
