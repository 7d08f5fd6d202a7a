package mtxmemstore

import (
	"context"
	"fmt"
	"sync"

	"github.com/cardano-scaling/mithril/mcert"
)

// Store is an in-memory transaction source,
// serving transactions in insertion order.
type Store struct {
	mu  sync.RWMutex
	txs []mcert.Transaction

	// Hash -> index in txs, to reject duplicates.
	idx map[mcert.TransactionHash]int
}

func NewStore() *Store {
	return &Store{
		idx: make(map[mcert.TransactionHash]int),
	}
}

// AddTransactions appends the given transactions.
// A hash that is already stored is rejected.
func (s *Store) AddTransactions(txs ...mcert.Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, tx := range txs {
		if _, ok := s.idx[tx.Hash]; ok {
			return fmt.Errorf("transaction %s already stored", tx.Hash)
		}
		s.idx[tx.Hash] = len(s.txs)
		s.txs = append(s.txs, tx)
	}
	return nil
}

func (s *Store) GetUpTo(_ context.Context, blockNumber uint64) ([]mcert.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]mcert.Transaction, 0, len(s.txs))
	for _, tx := range s.txs {
		if tx.BlockNumber <= blockNumber {
			out = append(out, tx)
		}
	}
	return out, nil
}
