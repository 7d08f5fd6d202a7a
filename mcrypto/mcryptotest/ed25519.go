// Package mcryptotest provides deterministic key material for tests.
package mcryptotest

import (
	"bytes"
	"crypto/ed25519"
	"fmt"
	"sync"

	"github.com/cardano-scaling/mithril/mcrypto"
)

var (
	muEd             sync.Mutex
	generatedEd25519 []ed25519.PrivateKey
)

// DeterministicEd25519Signers returns n ed25519 signers
// derived from fixed seeds, so the i-th signer is the same
// in every test of every run.
// That keeps logged keys and party IDs stable across runs,
// and derived keys are cached so repeat callers
// skip the key generation cost.
func DeterministicEd25519Signers(n int) []mcrypto.Ed25519Signer {
	muEd.Lock()
	for len(generatedEd25519) < n {
		// The ed25519 seed must be exactly 32 bytes.
		seed := fmt.Sprintf("%032d", len(generatedEd25519))
		generatedEd25519 = append(generatedEd25519, ed25519.NewKeyFromSeed([]byte(seed)))
	}

	// Clone under the lock; signers must not share
	// backing bytes with the cache.
	privs := make([]ed25519.PrivateKey, n)
	for i := range privs {
		privs[i] = bytes.Clone(generatedEd25519[i])
	}
	muEd.Unlock()

	res := make([]mcrypto.Ed25519Signer, n)
	for i, priv := range privs {
		res[i] = mcrypto.NewEd25519Signer(priv)
	}
	return res
}
