package mcert

import (
	"bytes"
	"maps"
	"sort"

	"golang.org/x/crypto/blake2b"
)

// ProtocolMessagePartKey names one part of a protocol message.
type ProtocolMessagePartKey string

const (
	// PartKeySnapshotDigest is the digest of the snapshot being certified.
	PartKeySnapshotDigest ProtocolMessagePartKey = "snapshot_digest"

	// PartKeyTransactionsMerkleRoot is the two-level Merkle root
	// of the certified transaction set.
	PartKeyTransactionsMerkleRoot ProtocolMessagePartKey = "transactions_merkle_root"

	// PartKeyNextAggregateVerificationKey commits to the signer set
	// of the following epoch.
	PartKeyNextAggregateVerificationKey ProtocolMessagePartKey = "next_aggregate_verification_key"

	// PartKeyLatestBlockNumber is the upper block of a transaction snapshot.
	PartKeyLatestBlockNumber ProtocolMessagePartKey = "latest_block_number"
)

// ProtocolMessage is the content-addressed payload being certified
// for one signed entity instance.
// Two messages are equal if and only if their canonical encodings match.
type ProtocolMessage struct {
	Parts map[ProtocolMessagePartKey]string `json:"parts"`
}

func NewProtocolMessage() ProtocolMessage {
	return ProtocolMessage{
		Parts: make(map[ProtocolMessagePartKey]string),
	}
}

func (m ProtocolMessage) SetPart(key ProtocolMessagePartKey, value string) {
	m.Parts[key] = value
}

func (m ProtocolMessage) GetPart(key ProtocolMessagePartKey) (string, bool) {
	v, ok := m.Parts[key]
	return v, ok
}

// CanonicalBytes is the canonical encoding of the message:
// parts in key-sorted order, independent of insertion order.
func (m ProtocolMessage) CanonicalBytes() []byte {
	keys := make([]string, 0, len(m.Parts))
	for k := range m.Parts {
		keys = append(keys, string(k))
	}
	sort.Strings(keys)

	var buf bytes.Buffer
	for _, k := range keys {
		buf.WriteString(k)
		buf.WriteByte('=')
		buf.WriteString(m.Parts[ProtocolMessagePartKey(k)])
		buf.WriteByte('\n')
	}
	return buf.Bytes()
}

// Hash is the Blake2b-256 digest of the canonical encoding.
// This is the value signers sign.
func (m ProtocolMessage) Hash() []byte {
	sum := blake2b.Sum256(m.CanonicalBytes())
	return sum[:]
}

func (m ProtocolMessage) Equal(other ProtocolMessage) bool {
	return bytes.Equal(m.CanonicalBytes(), other.CanonicalBytes())
}

// Clone returns a deep copy, so mutations on the copy
// do not leak into stored messages.
func (m ProtocolMessage) Clone() ProtocolMessage {
	return ProtocolMessage{Parts: maps.Clone(m.Parts)}
}
