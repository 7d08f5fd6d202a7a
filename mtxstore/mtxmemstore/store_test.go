package mtxmemstore_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/cardano-scaling/mithril/mcert"
	"github.com/cardano-scaling/mithril/mtxstore/mtxmemstore"
)

func TestStore_GetUpTo(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	s := mtxmemstore.NewStore()
	require.NoError(t, s.AddTransactions(
		mcert.Transaction{Hash: "tx-1", BlockNumber: 5},
		mcert.Transaction{Hash: "tx-2", BlockNumber: 12},
		mcert.Transaction{Hash: "tx-3", BlockNumber: 45},
	))

	got, err := s.GetUpTo(ctx, 44)
	require.NoError(t, err)
	require.Equal(t, []mcert.Transaction{
		{Hash: "tx-1", BlockNumber: 5},
		{Hash: "tx-2", BlockNumber: 12},
	}, got)

	// The bound is inclusive.
	got, err = s.GetUpTo(ctx, 45)
	require.NoError(t, err)
	require.Len(t, got, 3)

	got, err = s.GetUpTo(ctx, 0)
	require.NoError(t, err)
	require.Empty(t, got)
}

func TestStore_RejectsDuplicateHash(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	s := mtxmemstore.NewStore()
	require.NoError(t, s.AddTransactions(mcert.Transaction{Hash: "tx-1", BlockNumber: 5}))

	err := s.AddTransactions(mcert.Transaction{Hash: "tx-1", BlockNumber: 8})
	require.Error(t, err)

	got, err := s.GetUpTo(ctx, 100)
	require.NoError(t, err)
	require.Equal(t, []mcert.Transaction{{Hash: "tx-1", BlockNumber: 5}}, got)
}
