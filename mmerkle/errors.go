package mmerkle

import (
	"errors"
	"fmt"
)

// ErrEmptyTree is returned when constructing a tree or map with no leaves.
var ErrEmptyTree = errors.New("merkle tree must have at least one leaf")

// NoSuchLeafError is returned when a proof is requested
// for a leaf that is not part of the tree or map.
type NoSuchLeafError struct {
	Leaf any
}

func (e NoSuchLeafError) Error() string {
	return fmt.Sprintf("no leaf with ID %x", e.Leaf)
}

// AmbiguousLeafError is returned by [Map.Prove] when a requested leaf
// is present in more than one nested tree,
// so the proof cannot attribute it to a single range.
type AmbiguousLeafError struct {
	Leaf any
}

func (e AmbiguousLeafError) Error() string {
	return fmt.Sprintf("leaf with ID %x found in more than one nested tree", e.Leaf)
}

// DuplicateKeyError is returned by [NewMap] when two entries share a key.
type DuplicateKeyError struct {
	Key any
}

func (e DuplicateKeyError) Error() string {
	return fmt.Sprintf("duplicate map key %v", e.Key)
}

// MalformedProofError indicates a proof whose structure cannot be evaluated:
// out-of-range indices, missing or superfluous sibling nodes,
// or an inconsistent leaf count.
type MalformedProofError struct {
	Reason string
}

func (e MalformedProofError) Error() string {
	return "malformed proof: " + e.Reason
}

// RootMismatchError is returned by proof verification
// when the recomputed root does not match the expected one.
type RootMismatchError struct {
	Want, Got any
}

func (e RootMismatchError) Error() string {
	return fmt.Sprintf("recomputed root %x does not match expected root %x", e.Got, e.Want)
}
