package mmerkle_test

import (
	"testing"

	"github.com/cardano-scaling/mithril/mmerkle"
	"github.com/stretchr/testify/require"
)

func fiveLeafTree(t *testing.T) *mmerkle.Tree[string] {
	t.Helper()

	tree, err := mmerkle.NewTree[string](concatScheme{}, []string{"a", "b", "c", "d", "e"})
	require.NoError(t, err)
	return tree
}

func TestProof_SingleLeaf(t *testing.T) {
	t.Parallel()

	tree := fiveLeafTree(t)

	p, err := tree.Prove([]string{"c"})
	require.NoError(t, err)

	require.Equal(t, 5, p.NLeaves)
	require.Equal(t, []string{"c"}, p.LeafIDs())

	require.NoError(t, p.Verify(concatScheme{}, tree.RootID()))
}

func TestProof_RaisedOrphanLeaf(t *testing.T) {
	t.Parallel()

	tree := fiveLeafTree(t)

	p, err := tree.Prove([]string{"e"})
	require.NoError(t, err)

	// The orphan is raised twice, so a single sibling suffices.
	require.Len(t, p.Siblings, 1)

	require.NoError(t, p.Verify(concatScheme{}, tree.RootID()))
}

func TestProof_Batched(t *testing.T) {
	t.Parallel()

	tree := fiveLeafTree(t)

	p, err := tree.Prove([]string{"d", "a"})
	require.NoError(t, err)

	// Proven leaves are reported in index order regardless of request order.
	require.Equal(t, []string{"a", "d"}, p.LeafIDs())

	require.NoError(t, p.Verify(concatScheme{}, tree.RootID()))

	require.NoError(t, p.Contains([]string{"a"}))
	require.NoError(t, p.Contains([]string{"d", "a"}))
	require.Error(t, p.Contains([]string{"b"}))
}

func TestProof_AllLeaves(t *testing.T) {
	t.Parallel()

	tree := fiveLeafTree(t)

	p, err := tree.Prove([]string{"a", "b", "c", "d", "e"})
	require.NoError(t, err)

	// Nothing to supply when every leaf is proven.
	require.Empty(t, p.Siblings)

	require.NoError(t, p.Verify(concatScheme{}, tree.RootID()))
}

func TestProof_UnknownLeaf(t *testing.T) {
	t.Parallel()

	tree := fiveLeafTree(t)

	_, err := tree.Prove([]string{"a", "z"})
	require.ErrorAs(t, err, &mmerkle.NoSuchLeafError{})
}

func TestProof_Tampering(t *testing.T) {
	t.Parallel()

	tree := fiveLeafTree(t)

	t.Run("altered leaf", func(t *testing.T) {
		p, err := tree.Prove([]string{"b"})
		require.NoError(t, err)

		p.Leaves[0].ID = "x"
		require.ErrorAs(t, p.Verify(concatScheme{}, tree.RootID()), &mmerkle.RootMismatchError{})
	})

	t.Run("altered root", func(t *testing.T) {
		p, err := tree.Prove([]string{"b"})
		require.NoError(t, err)

		require.ErrorAs(t, p.Verify(concatScheme{}, "((a+b)+(c+x))"), &mmerkle.RootMismatchError{})
	})

	t.Run("missing sibling", func(t *testing.T) {
		p, err := tree.Prove([]string{"b"})
		require.NoError(t, err)
		require.NotEmpty(t, p.Siblings)

		p.Siblings = p.Siblings[1:]
		require.ErrorAs(t, p.Verify(concatScheme{}, tree.RootID()), &mmerkle.MalformedProofError{})
	})

	t.Run("superfluous sibling", func(t *testing.T) {
		p, err := tree.Prove([]string{"b"})
		require.NoError(t, err)

		p.Siblings = append(p.Siblings, mmerkle.ProofNode[string]{Depth: 0, RowIdx: 4, ID: "e"})
		require.ErrorAs(t, p.Verify(concatScheme{}, tree.RootID()), &mmerkle.MalformedProofError{})
	})

	t.Run("leaf index out of range", func(t *testing.T) {
		p, err := tree.Prove([]string{"b"})
		require.NoError(t, err)

		p.Leaves[0].Index = 17
		require.ErrorAs(t, p.Verify(concatScheme{}, tree.RootID()), &mmerkle.MalformedProofError{})
	})
}
