package mmerkle_test

import (
	"testing"

	"github.com/cardano-scaling/mithril/mmerkle"
	"github.com/stretchr/testify/require"
)

// Trivial scheme over strings so the expected node values
// are easy to write out by hand.
type concatScheme struct{}

func (concatScheme) BranchID(_, _ int, childIDs []string) (string, error) {
	return "(" + childIDs[0] + "+" + childIDs[1] + ")", nil
}

func TestTree_RootID(t *testing.T) {
	t.Parallel()

	t.Run("complete first depth", func(t *testing.T) {
		tree, err := mmerkle.NewTree[string](concatScheme{}, []string{"a", "b", "c", "d"})
		require.NoError(t, err)

		require.Equal(t, "((a+b)+(c+d))", tree.RootID())
	})

	t.Run("incomplete first depth raises the orphan", func(t *testing.T) {
		tree, err := mmerkle.NewTree[string](concatScheme{}, []string{"a", "b", "c"})
		require.NoError(t, err)

		require.Equal(t, "((a+b)+c)", tree.RootID())
	})

	t.Run("orphan raised across multiple depths", func(t *testing.T) {
		tree, err := mmerkle.NewTree[string](concatScheme{}, []string{"a", "b", "c", "d", "e"})
		require.NoError(t, err)

		require.Equal(t, "(((a+b)+(c+d))+e)", tree.RootID())
	})

	t.Run("single leaf", func(t *testing.T) {
		tree, err := mmerkle.NewTree[string](concatScheme{}, []string{"a"})
		require.NoError(t, err)

		require.Equal(t, "a", tree.RootID())
		require.Equal(t, 1, tree.NLeaves())
	})

	t.Run("root depends on leaf order", func(t *testing.T) {
		t1, err := mmerkle.NewTree[string](concatScheme{}, []string{"a", "b"})
		require.NoError(t, err)
		t2, err := mmerkle.NewTree[string](concatScheme{}, []string{"b", "a"})
		require.NoError(t, err)

		require.NotEqual(t, t1.RootID(), t2.RootID())
	})
}

func TestTree_RootID_Blake2b(t *testing.T) {
	t.Parallel()

	scheme := mmerkle.Blake2b256Scheme{}

	l1 := mmerkle.Blake2b256Leaf([]byte("tx-1"))
	l2 := mmerkle.Blake2b256Leaf([]byte("tx-2"))

	tree, err := mmerkle.NewTree[mmerkle.Blake2b256ID](scheme, []mmerkle.Blake2b256ID{l1, l2})
	require.NoError(t, err)

	want, err := scheme.BranchID(1, 0, []mmerkle.Blake2b256ID{l1, l2})
	require.NoError(t, err)
	require.Equal(t, want, tree.RootID())
}

func TestTree_EmptyLeaves(t *testing.T) {
	t.Parallel()

	_, err := mmerkle.NewTree[string](concatScheme{}, nil)
	require.ErrorIs(t, err, mmerkle.ErrEmptyTree)
}

func TestTree_HasLeaf(t *testing.T) {
	t.Parallel()

	tree, err := mmerkle.NewTree[string](concatScheme{}, []string{"a", "b", "c"})
	require.NoError(t, err)

	require.True(t, tree.HasLeaf("b"))
	require.False(t, tree.HasLeaf("z"))

	// Internal nodes are not leaves.
	require.False(t, tree.HasLeaf("(a+b)"))
}
