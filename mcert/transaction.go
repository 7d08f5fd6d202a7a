package mcert

import "fmt"

// TransactionHash is the content hash of one transaction.
type TransactionHash string

// Transaction is one entry of the certified transaction set.
type Transaction struct {
	Hash TransactionHash `json:"hash"`

	BlockNumber uint64 `json:"block_number"`
}

// BlockRangeLength is the default width of a block range,
// the unit of Merkle commitment over the transaction set.
const BlockRangeLength uint64 = 15

// BlockRange is the half-open interval [Start, End) of block numbers.
// Every transaction belongs to exactly one range of a given length.
type BlockRange struct {
	Start uint64 `json:"start"`
	End   uint64 `json:"end"`
}

// BlockRangeAt returns the range of the given length
// containing blockNumber.
func BlockRangeAt(length, blockNumber uint64) BlockRange {
	start := blockNumber / length * length
	return BlockRange{Start: start, End: start + length}
}

// Contains reports whether blockNumber falls inside the range.
func (r BlockRange) Contains(blockNumber uint64) bool {
	return blockNumber >= r.Start && blockNumber < r.End
}

func (r BlockRange) String() string {
	return fmt.Sprintf("[%d, %d)", r.Start, r.End)
}
