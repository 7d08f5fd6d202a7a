package mmerkle

import (
	"errors"
	"fmt"
)

// MapValue is the tagged value stored against a key in a [Map]:
// either a fully materialized nested tree, or just a precomputed root
// for a range nothing needs to be proven against.
type MapValue[I comparable] struct {
	// When Tree is nil, Root is the precomputed root for this entry.
	Tree *Tree[I]
	Root I
}

// TreeValue wraps a nested tree as a map value.
func TreeValue[I comparable](t *Tree[I]) MapValue[I] {
	return MapValue[I]{Tree: t}
}

// RootValue wraps a bare root as a map value,
// so an unaffected range does not need its tree rebuilt.
func RootValue[I comparable](root I) MapValue[I] {
	return MapValue[I]{Root: root}
}

// RootID returns the entry's committed root regardless of representation.
func (v MapValue[I]) RootID() I {
	if v.Tree != nil {
		return v.Tree.RootID()
	}
	return v.Root
}

// MapEntry pairs a range key with its commitment value.
type MapEntry[K comparable, I comparable] struct {
	Key   K
	Value MapValue[I]
}

// Map is a two-level Merkle commitment:
// an ordered sequence of (key, sub-commitment) entries,
// with a top tree built over the sub-roots in entry order.
//
// Proofs over a Map span multiple nested trees jointly,
// without rehashing entries whose root is already known.
type Map[K comparable, I comparable] struct {
	entries []MapEntry[K, I]

	top *Tree[I]
}

// NewMap builds the two-level commitment from the given entries.
// Entry order is significant: the top tree's leaf order is the entry order,
// so callers must present entries in a canonical order for roots to agree.
func NewMap[K comparable, I comparable](scheme Scheme[I], entries []MapEntry[K, I]) (*Map[K, I], error) {
	if len(entries) == 0 {
		return nil, ErrEmptyTree
	}

	seen := make(map[K]struct{}, len(entries))
	subRoots := make([]I, len(entries))
	for i, e := range entries {
		if _, dup := seen[e.Key]; dup {
			return nil, DuplicateKeyError{Key: e.Key}
		}
		seen[e.Key] = struct{}{}
		subRoots[i] = e.Value.RootID()
	}

	top, err := NewTree(scheme, subRoots)
	if err != nil {
		return nil, fmt.Errorf("failed to build top tree: %w", err)
	}

	return &Map[K, I]{
		entries: entries,
		top:     top,
	}, nil
}

// RootID returns the root of the top tree,
// committing to every entry's sub-root in order.
func (m *Map[K, I]) RootID() I {
	return m.top.RootID()
}

// MapSubProof is the portion of a [MapProof] scoped to one entry.
type MapSubProof[K comparable, I comparable] struct {
	Key K `json:"key"`

	Proof *Proof[I] `json:"proof"`
}

// MapProof is a single batched proof that a set of leaves is committed
// across one or many nested trees of a [Map].
type MapProof[K comparable, I comparable] struct {
	// Per-entry proofs, in entry order.
	SubProofs []MapSubProof[K, I] `json:"sub_proofs"`

	// Proof that the affected entries' sub-roots are part of the top tree.
	Top *Proof[I] `json:"top"`
}

// Prove produces one joint proof covering every requested leaf.
// Each leaf must be locatable in exactly one nested tree;
// entries committed as bare roots are not searchable.
func (m *Map[K, I]) Prove(leaves []I) (*MapProof[K, I], error) {
	if len(leaves) == 0 {
		return nil, errors.New("at least one leaf must be requested")
	}

	// Group the requested leaves by owning entry, preserving entry order.
	grouped := make(map[int][]I)
	for _, l := range leaves {
		owner := -1
		for i, e := range m.entries {
			if e.Value.Tree == nil || !e.Value.Tree.HasLeaf(l) {
				continue
			}
			if owner >= 0 {
				return nil, AmbiguousLeafError{Leaf: l}
			}
			owner = i
		}
		if owner < 0 {
			return nil, NoSuchLeafError{Leaf: l}
		}
		grouped[owner] = append(grouped[owner], l)
	}

	entryIdxs := sortedIndicesOf(grouped)

	subProofs := make([]MapSubProof[K, I], 0, len(entryIdxs))
	subRootLeaves := make([]I, 0, len(entryIdxs))
	for _, i := range entryIdxs {
		e := m.entries[i]
		sp, err := e.Value.Tree.Prove(grouped[i])
		if err != nil {
			return nil, fmt.Errorf("failed to prove leaves under key %v: %w", e.Key, err)
		}
		subProofs = append(subProofs, MapSubProof[K, I]{Key: e.Key, Proof: sp})
		subRootLeaves = append(subRootLeaves, e.Value.RootID())
	}

	topProof, err := m.top.Prove(subRootLeaves)
	if err != nil {
		return nil, fmt.Errorf("failed to prove sub-roots in top tree: %w", err)
	}

	return &MapProof[K, I]{
		SubProofs: subProofs,
		Top:       topProof,
	}, nil
}

// Verify is a pure check that the proof binds its leaves to rootID:
// each sub-proof's recomputed root must be a proven leaf of the top proof,
// and the top proof must recompute to rootID.
func (p *MapProof[K, I]) Verify(scheme Scheme[I], rootID I) error {
	if p.Top == nil {
		return MalformedProofError{Reason: "missing top proof"}
	}
	if len(p.SubProofs) != len(p.Top.Leaves) {
		return MalformedProofError{Reason: fmt.Sprintf(
			"sub-proof count %d does not match top proof leaf count %d",
			len(p.SubProofs), len(p.Top.Leaves),
		)}
	}

	// Sub-proofs are in entry order and top proof leaves in ascending index
	// order, which coincide; compare them pairwise.
	for i, sub := range p.SubProofs {
		if sub.Proof == nil {
			return MalformedProofError{Reason: fmt.Sprintf("missing sub-proof for key %v", sub.Key)}
		}

		subRoot, err := sub.Proof.ComputeRoot(scheme)
		if err != nil {
			return fmt.Errorf("sub-proof for key %v: %w", sub.Key, err)
		}

		if p.Top.Leaves[i].ID != subRoot {
			return RootMismatchError{Want: p.Top.Leaves[i].ID, Got: subRoot}
		}
	}

	return p.Top.Verify(scheme, rootID)
}

// LeafIDs returns every proven leaf ID, grouped by entry in entry order.
func (p *MapProof[K, I]) LeafIDs() []I {
	var out []I
	for _, sub := range p.SubProofs {
		out = append(out, sub.Proof.LeafIDs()...)
	}
	return out
}

// Contains reports via error whether every given leaf is covered by the proof.
func (p *MapProof[K, I]) Contains(leaves []I) error {
	present := make(map[I]struct{})
	for _, sub := range p.SubProofs {
		for _, pl := range sub.Proof.Leaves {
			present[pl.ID] = struct{}{}
		}
	}

	for _, l := range leaves {
		if _, ok := present[l]; !ok {
			return NoSuchLeafError{Leaf: l}
		}
	}
	return nil
}

func sortedIndicesOf[V any](set map[int]V) []int {
	tmp := make(map[int]struct{}, len(set))
	for idx := range set {
		tmp[idx] = struct{}{}
	}
	return sortedIndices(tmp)
}
