package mprover_test

import (
	"context"
	"errors"
	"testing"

	"github.com/neilotoole/slogt"
	"github.com/stretchr/testify/require"

	"github.com/cardano-scaling/mithril/mcert"
	"github.com/cardano-scaling/mithril/mmerkle"
	"github.com/cardano-scaling/mithril/mprover"
	"github.com/cardano-scaling/mithril/mtxstore"
	"github.com/cardano-scaling/mithril/mtxstore/mtxmemstore"
)

// newProver serves tx-1@5, tx-2@12, tx-3@45
// partitioned into block ranges of length 30.
func newProver(t *testing.T) (*mprover.ProverService, *mtxmemstore.Store) {
	t.Helper()

	store := mtxmemstore.NewStore()
	require.NoError(t, store.AddTransactions(
		mcert.Transaction{Hash: "tx-1", BlockNumber: 5},
		mcert.Transaction{Hash: "tx-2", BlockNumber: 12},
		mcert.Transaction{Hash: "tx-3", BlockNumber: 45},
	))

	return mprover.NewProverService(slogt.New(t), store, 30), store
}

func TestProverService_CrossRangeProof(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	p, _ := newProver(t)

	// tx-1 lives in range [0,30), tx-3 in [30,60).
	proofs, err := p.ComputeTransactionsProofs(ctx, 50, []mcert.TransactionHash{"tx-1", "tx-3"})
	require.NoError(t, err)
	require.Len(t, proofs, 1)
	require.Equal(t, []mcert.TransactionHash{"tx-1", "tx-3"}, proofs[0].TransactionHashes)

	root, err := p.ComputeTransactionsCommitment(ctx, 50)
	require.NoError(t, err)
	require.NoError(t, proofs[0].Verify(root))
}

func TestProverService_HashOrderFollowsRetrieval(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	p, _ := newProver(t)

	// Request order is reversed; the proof lists hashes
	// in the order the transaction set yields them.
	proofs, err := p.ComputeTransactionsProofs(ctx, 50, []mcert.TransactionHash{"tx-3", "tx-2"})
	require.NoError(t, err)
	require.Len(t, proofs, 1)
	require.Equal(t, []mcert.TransactionHash{"tx-2", "tx-3"}, proofs[0].TransactionHashes)
}

func TestProverService_UnknownHashesAreDropped(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	p, _ := newProver(t)

	proofs, err := p.ComputeTransactionsProofs(ctx, 50, []mcert.TransactionHash{
		"tx-1", "tx-unknown-a", "tx-2", "tx-unknown-b", "tx-3",
	})
	require.NoError(t, err)
	require.Len(t, proofs, 1)
	require.Equal(t, []mcert.TransactionHash{"tx-1", "tx-2", "tx-3"}, proofs[0].TransactionHashes)

	root, err := p.ComputeTransactionsCommitment(ctx, 50)
	require.NoError(t, err)
	require.NoError(t, proofs[0].Verify(root))
}

// countingRetriever counts GetUpTo calls into the wrapped source.
type countingRetriever struct {
	inner mtxstore.TransactionRetriever
	calls int
}

func (r *countingRetriever) GetUpTo(ctx context.Context, blockNumber uint64) ([]mcert.Transaction, error) {
	r.calls++
	return r.inner.GetUpTo(ctx, blockNumber)
}

func TestProverService_NoCertifiableTransactions(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store := mtxmemstore.NewStore()
	require.NoError(t, store.AddTransactions(
		mcert.Transaction{Hash: "tx-1", BlockNumber: 5},
		mcert.Transaction{Hash: "tx-3", BlockNumber: 45},
	))
	retriever := &countingRetriever{inner: store}
	p := mprover.NewProverService(slogt.New(t), retriever, 30)

	proofs, err := p.ComputeTransactionsProofs(ctx, 50, []mcert.TransactionHash{"tx-unknown"})
	require.NoError(t, err)
	require.Empty(t, proofs)

	// Even with nothing to prove, the transaction source is consulted once.
	require.Equal(t, 1, retriever.calls)

	// A hash beyond the requested block bound is not certifiable either.
	proofs, err = p.ComputeTransactionsProofs(ctx, 20, []mcert.TransactionHash{"tx-3"})
	require.NoError(t, err)
	require.Empty(t, proofs)
	require.Equal(t, 2, retriever.calls)
}

func TestProverService_TamperedProofFails(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	p, _ := newProver(t)

	proofs, err := p.ComputeTransactionsProofs(ctx, 50, []mcert.TransactionHash{"tx-1"})
	require.NoError(t, err)
	require.Len(t, proofs, 1)

	root, err := p.ComputeTransactionsCommitment(ctx, 50)
	require.NoError(t, err)

	t.Run("altered hash list", func(t *testing.T) {
		tampered := proofs[0]
		tampered.TransactionHashes = []mcert.TransactionHash{"tx-2"}
		require.Error(t, tampered.Verify(root))
	})

	t.Run("wrong root", func(t *testing.T) {
		wrong := mmerkle.Blake2b256Leaf([]byte("not the commitment"))
		require.Error(t, proofs[0].Verify(wrong))
	})
}

type failingRetriever struct {
	err error
}

func (r failingRetriever) GetUpTo(context.Context, uint64) ([]mcert.Transaction, error) {
	return nil, r.err
}

func TestProverService_RetrieverFailurePropagates(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	retrieverErr := errors.New("transaction source down")
	p := mprover.NewProverService(slogt.New(t), failingRetriever{err: retrieverErr}, 30)

	_, err := p.ComputeTransactionsProofs(ctx, 50, []mcert.TransactionHash{"tx-1"})
	require.ErrorIs(t, err, retrieverErr)

	_, err = p.ComputeTransactionsCommitment(ctx, 50)
	require.ErrorIs(t, err, retrieverErr)
}
