// Package mtxstore defines the transaction source the prover reads from.
package mtxstore

import (
	"context"

	"github.com/cardano-scaling/mithril/mcert"
)

// TransactionRetriever serves the certified transaction set.
//
// For a fixed blockNumber the returned sequence must be deterministic;
// no other ordering guarantee is assumed.
type TransactionRetriever interface {
	// GetUpTo returns every known transaction
	// whose block number is at or below blockNumber.
	GetUpTo(ctx context.Context, blockNumber uint64) ([]mcert.Transaction, error)
}
