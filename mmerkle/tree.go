package mmerkle

import (
	"fmt"
	"slices"
)

// Scheme specifies how branch IDs are derived when building a Merkle tree.
// Type parameter I is the ID type of the nodes.
// The ID type will often be a fixed-size byte array representing a
// cryptographic hash, but anything comparable and deterministic works.
//
// Leaves are IDs themselves: the caller is responsible for deriving leaf IDs
// from its domain data before constructing a tree
// (see [Blake2b256Leaf] for the scheme used by the certification pipeline).
type Scheme[I comparable] interface {
	// BranchID calculates the ID for a branch from its two children.
	//
	// The depth and rowIdx values are provided so that implementors
	// may use them in ID calculations as a preventative measure against
	// second preimage attacks, if so desired.
	BranchID(depth, rowIdx int, childIDs []I) (I, error)
}

// Tree is a binary Merkle tree over an ordered sequence of leaf IDs.
// Features of this implementation:
//   - All leaves are assumed to be unique.
//     If two distinct leaves share an ID, proofs against the second
//     occurrence will not work.
//   - The tree expects all leaf values to be known up front;
//     there is no support for modifying a tree.
//     As a result, methods are safe to call concurrently.
//   - When a row has an odd number of nodes, the rightmost node is raised
//     into the next row unmodified rather than being paired or padded.
type Tree[I comparable] struct {
	nLeaves int

	// Node IDs stored as a slice of rows.
	// The first row contains the leaves,
	// and the last row contains the lone root.
	rows [][]I

	// Leaf ID -> index in rows[0].
	leafIdx map[I]int
}

// NewTree returns a new Merkle tree based on the given scheme and leaves.
// The root depends only on leaf order and values.
func NewTree[I comparable](scheme Scheme[I], leaves []I) (*Tree[I], error) {
	if len(leaves) == 0 {
		return nil, ErrEmptyTree
	}

	leafIdx := make(map[I]int, len(leaves))
	for i, l := range leaves {
		leafIdx[l] = i
	}

	rows := [][]I{slices.Clone(leaves)}

	for depth := 1; len(rows[depth-1]) > 1; depth++ {
		prev := rows[depth-1]
		row := make([]I, (len(prev)+1)/2)

		for i := range row {
			start := i * 2
			if start+1 >= len(prev) {
				// Raised orphan: a lone child keeps its ID in the next row.
				row[i] = prev[start]
				continue
			}

			id, err := scheme.BranchID(depth, i, []I{prev[start], prev[start+1]})
			if err != nil {
				return nil, fmt.Errorf("failed to calculate branch ID at index %d in depth %d: %w", i, depth, err)
			}
			row[i] = id
		}

		rows = append(rows, row)
	}

	return &Tree[I]{
		nLeaves: len(leaves),
		rows:    rows,
		leafIdx: leafIdx,
	}, nil
}

// RootID returns the ID of the root of the tree.
func (t *Tree[I]) RootID() I {
	return t.rows[len(t.rows)-1][0]
}

// NLeaves returns the number of leaves the tree was built from.
func (t *Tree[I]) NLeaves() int {
	return t.nLeaves
}

// HasLeaf reports whether id is one of the tree's leaves.
func (t *Tree[I]) HasLeaf(id I) bool {
	_, ok := t.leafIdx[id]
	return ok
}
