package mmerkle

import (
	"errors"
	"fmt"
	"sort"
)

// ProofLeaf is one proven leaf within a [Proof]:
// its position in the original leaf sequence and its ID.
type ProofLeaf[I comparable] struct {
	Index int `json:"index"`
	ID    I   `json:"id"`
}

// ProofNode is a sibling node a verifier needs but cannot derive:
// the row it lives in, its index within that row, and its ID.
type ProofNode[I comparable] struct {
	Depth  int `json:"depth"`
	RowIdx int `json:"row_idx"`
	ID     I   `json:"id"`
}

// Proof is a single batched inclusion proof covering one or many leaves
// of one tree jointly.
//
// A proof is self-contained: verification needs only the proof,
// the scheme the tree was built with, and the expected root ID.
type Proof[I comparable] struct {
	// How many leaves the original tree was built from.
	// The tree shape is fully determined by this count.
	NLeaves int `json:"n_leaves"`

	// The proven leaves, in ascending index order.
	Leaves []ProofLeaf[I] `json:"leaves"`

	// The sibling nodes required to recompute the root.
	Siblings []ProofNode[I] `json:"siblings"`
}

// Prove returns a single proof object covering all requested leaves jointly.
// Duplicate requests for the same leaf are collapsed.
// If any requested leaf is absent from the tree,
// Prove fails with a [NoSuchLeafError] and no proof is returned.
func (t *Tree[I]) Prove(leaves []I) (*Proof[I], error) {
	if len(leaves) == 0 {
		return nil, errors.New("at least one leaf must be requested")
	}

	known := make(map[int]struct{}, len(leaves))
	for _, l := range leaves {
		idx, ok := t.leafIdx[l]
		if !ok {
			return nil, NoSuchLeafError{Leaf: l}
		}
		known[idx] = struct{}{}
	}

	proofLeaves := make([]ProofLeaf[I], 0, len(known))
	for _, idx := range sortedIndices(known) {
		proofLeaves = append(proofLeaves, ProofLeaf[I]{Index: idx, ID: t.rows[0][idx]})
	}

	var sibs []ProofNode[I]
	for depth := 0; depth < len(t.rows)-1; depth++ {
		row := t.rows[depth]

		parents := make(map[int]struct{}, len(known))
		for idx := range known {
			parents[idx/2] = struct{}{}
		}

		for _, pi := range sortedIndices(parents) {
			l, r := pi*2, pi*2+1
			if r >= len(row) {
				// Raised orphan, nothing to pair against.
				continue
			}
			if _, ok := known[l]; !ok {
				sibs = append(sibs, ProofNode[I]{Depth: depth, RowIdx: l, ID: row[l]})
			}
			if _, ok := known[r]; !ok {
				sibs = append(sibs, ProofNode[I]{Depth: depth, RowIdx: r, ID: row[r]})
			}
		}

		known = parents
	}

	return &Proof[I]{
		NLeaves:  t.nLeaves,
		Leaves:   proofLeaves,
		Siblings: sibs,
	}, nil
}

// ComputeRoot recomputes the root ID implied by the proof's leaves and
// sibling nodes. It fails with a [MalformedProofError] if the proof's
// structure is inconsistent with its claimed leaf count,
// including when sibling nodes are missing or left unused.
func (p *Proof[I]) ComputeRoot(scheme Scheme[I]) (I, error) {
	var zero I

	if p.NLeaves <= 0 {
		return zero, MalformedProofError{Reason: fmt.Sprintf("nonpositive leaf count %d", p.NLeaves)}
	}
	if len(p.Leaves) == 0 {
		return zero, MalformedProofError{Reason: "no proven leaves"}
	}

	known := make(map[int]I, len(p.Leaves))
	for _, pl := range p.Leaves {
		if pl.Index < 0 || pl.Index >= p.NLeaves {
			return zero, MalformedProofError{Reason: fmt.Sprintf("leaf index %d out of range [0, %d)", pl.Index, p.NLeaves)}
		}
		if _, dup := known[pl.Index]; dup {
			return zero, MalformedProofError{Reason: fmt.Sprintf("duplicate leaf index %d", pl.Index)}
		}
		known[pl.Index] = pl.ID
	}

	type nodeKey struct {
		depth, idx int
	}
	sibs := make(map[nodeKey]I, len(p.Siblings))
	for _, sn := range p.Siblings {
		k := nodeKey{sn.Depth, sn.RowIdx}
		if _, dup := sibs[k]; dup {
			return zero, MalformedProofError{Reason: fmt.Sprintf("duplicate sibling node at depth %d index %d", sn.Depth, sn.RowIdx)}
		}
		sibs[k] = sn.ID
	}
	consumed := 0

	rowLen := p.NLeaves
	for depth := 0; rowLen > 1; depth++ {
		parents := make(map[int]struct{}, len(known))
		for idx := range known {
			parents[idx/2] = struct{}{}
		}

		next := make(map[int]I, len(parents))
		for pi := range parents {
			l, r := pi*2, pi*2+1

			if r >= rowLen {
				// Raised orphan; the lone child must be known.
				next[pi] = known[l]
				continue
			}

			lid, lok := known[l]
			if !lok {
				lid, lok = sibs[nodeKey{depth, l}]
				if !lok {
					return zero, MalformedProofError{Reason: fmt.Sprintf("missing node at depth %d index %d", depth, l)}
				}
				consumed++
			}
			rid, rok := known[r]
			if !rok {
				rid, rok = sibs[nodeKey{depth, r}]
				if !rok {
					return zero, MalformedProofError{Reason: fmt.Sprintf("missing node at depth %d index %d", depth, r)}
				}
				consumed++
			}

			id, err := scheme.BranchID(depth+1, pi, []I{lid, rid})
			if err != nil {
				return zero, fmt.Errorf("failed to calculate branch ID at index %d in depth %d: %w", pi, depth+1, err)
			}
			next[pi] = id
		}

		known = next
		rowLen = (rowLen + 1) / 2
	}

	if consumed != len(sibs) {
		return zero, MalformedProofError{Reason: fmt.Sprintf("%d sibling node(s) left unused", len(sibs)-consumed)}
	}

	root, ok := known[0]
	if !ok || len(known) != 1 {
		return zero, MalformedProofError{Reason: "proof did not converge to a single root"}
	}

	return root, nil
}

// Verify is a pure check that the proof binds exactly its leaf set to rootID.
// Any alteration of the proven leaves, the sibling nodes,
// or the expected root causes verification to fail.
func (p *Proof[I]) Verify(scheme Scheme[I], rootID I) error {
	got, err := p.ComputeRoot(scheme)
	if err != nil {
		return err
	}
	if got != rootID {
		return RootMismatchError{Want: rootID, Got: got}
	}
	return nil
}

// LeafIDs returns the proven leaf IDs in ascending index order.
func (p *Proof[I]) LeafIDs() []I {
	out := make([]I, len(p.Leaves))
	for i, pl := range p.Leaves {
		out[i] = pl.ID
	}
	return out
}

// Contains reports via error whether every given leaf is covered by the proof.
func (p *Proof[I]) Contains(leaves []I) error {
	present := make(map[I]struct{}, len(p.Leaves))
	for _, pl := range p.Leaves {
		present[pl.ID] = struct{}{}
	}

	for _, l := range leaves {
		if _, ok := present[l]; !ok {
			return NoSuchLeafError{Leaf: l}
		}
	}
	return nil
}

func sortedIndices(set map[int]struct{}) []int {
	out := make([]int, 0, len(set))
	for idx := range set {
		out = append(out, idx)
	}
	sort.Ints(out)
	return out
}
