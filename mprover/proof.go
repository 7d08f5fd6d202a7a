package mprover

import (
	"fmt"

	"github.com/cardano-scaling/mithril/mcert"
	"github.com/cardano-scaling/mithril/mmerkle"
)

// TransactionsSetProof attests the joint membership
// of a set of transactions in a two-level block range commitment.
type TransactionsSetProof struct {
	// TransactionHashes are the certified hashes,
	// in the order they appear in the certified transaction set.
	TransactionHashes []mcert.TransactionHash `json:"transaction_hashes"`

	Proof *mmerkle.MapProof[mcert.BlockRange, mmerkle.Blake2b256ID] `json:"proof"`
}

// Verify checks that the proof commits exactly
// to the listed transaction hashes under the given root.
// It is a pure function of the proof's content.
func (p TransactionsSetProof) Verify(rootID mmerkle.Blake2b256ID) error {
	leaves := make([]mmerkle.Blake2b256ID, len(p.TransactionHashes))
	for i, h := range p.TransactionHashes {
		leaves[i] = mmerkle.Blake2b256Leaf([]byte(h))
	}

	if got := len(p.Proof.LeafIDs()); got != len(leaves) {
		return fmt.Errorf(
			"proof covers %d leaves but %d transaction hashes are listed",
			got, len(leaves),
		)
	}
	if err := p.Proof.Contains(leaves); err != nil {
		return fmt.Errorf("proof does not cover the listed transaction hashes: %w", err)
	}

	return p.Proof.Verify(mmerkle.Blake2b256Scheme{}, rootID)
}
