// Package msigbuffer holds single signatures that arrive
// before an open message exists for their signed entity type,
// so the certifier can replay them once the round opens.
package msigbuffer

import (
	"context"
	"slices"
	"sync"

	"github.com/cardano-scaling/mithril/mcert"
)

// Buffer stores out-of-order single signatures per signed entity type kind.
//
// Buffering is keyed by the kind alone: at buffering time
// the exact entity instance the signature belongs to is not yet known.
type Buffer interface {
	// BufferSignature records a signature for later replay.
	BufferSignature(ctx context.Context, kind mcert.SignedEntityTypeKind, sig mcert.SingleSignature) error

	// GetBufferedSignatures returns the buffered signatures for the kind
	// in buffering order.
	GetBufferedSignatures(ctx context.Context, kind mcert.SignedEntityTypeKind) ([]mcert.SingleSignature, error)

	// RemoveBufferedSignatures removes each given signature from the kind's
	// buffer. Each listed signature removes at most one stored occurrence;
	// signatures with no match are ignored.
	RemoveBufferedSignatures(ctx context.Context, kind mcert.SignedEntityTypeKind, sigs []mcert.SingleSignature) error
}

// MemBuffer is an in-memory [Buffer].
type MemBuffer struct {
	mu   sync.RWMutex
	sigs map[mcert.SignedEntityTypeKind][]mcert.SingleSignature
}

func NewMemBuffer() *MemBuffer {
	return &MemBuffer{
		sigs: make(map[mcert.SignedEntityTypeKind][]mcert.SingleSignature),
	}
}

func (b *MemBuffer) BufferSignature(
	_ context.Context, kind mcert.SignedEntityTypeKind, sig mcert.SingleSignature,
) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.sigs[kind] = append(b.sigs[kind], sig)
	return nil
}

func (b *MemBuffer) GetBufferedSignatures(
	_ context.Context, kind mcert.SignedEntityTypeKind,
) ([]mcert.SingleSignature, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	return slices.Clone(b.sigs[kind]), nil
}

func (b *MemBuffer) RemoveBufferedSignatures(
	_ context.Context, kind mcert.SignedEntityTypeKind, sigs []mcert.SingleSignature,
) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	kept := b.sigs[kind]
	for _, sig := range sigs {
		for i, stored := range kept {
			if stored.Equal(sig) {
				kept = slices.Delete(slices.Clone(kept), i, i+1)
				break
			}
		}
	}

	if len(kept) == 0 {
		delete(b.sigs, kind)
	} else {
		b.sigs[kind] = kept
	}
	return nil
}
