package mmerkle

import (
	"golang.org/x/crypto/blake2b"
)

// Blake2b256ID is the node ID type used throughout the certification pipeline.
type Blake2b256ID = [blake2b.Size256]byte

// Blake2b256Scheme derives branch IDs by hashing the concatenated child IDs
// with Blake2b-256. Depth and row index are not mixed in.
type Blake2b256Scheme struct{}

func (Blake2b256Scheme) BranchID(_, _ int, childIDs []Blake2b256ID) (Blake2b256ID, error) {
	h, err := blake2b.New256(nil)
	if err != nil {
		return Blake2b256ID{}, err
	}
	for _, id := range childIDs {
		h.Write(id[:])
	}

	var out Blake2b256ID
	h.Sum(out[:0])
	return out, nil
}

// Blake2b256Leaf derives the leaf ID for arbitrary leaf data.
func Blake2b256Leaf(data []byte) Blake2b256ID {
	return blake2b.Sum256(data)
}
