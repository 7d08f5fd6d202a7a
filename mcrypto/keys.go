package mcrypto

import "context"

// PubKey is the verification key a signer registers with the aggregator.
type PubKey interface {
	PubKeyBytes() []byte

	Equal(other PubKey) bool

	Verify(msg, sig []byte) bool

	// TypeName is the registered name of the key's type,
	// used when encoding keys through a [Registry].
	TypeName() string
}

// Signer produces cryptographic signatures against an input.
type Signer interface {
	// PubKey returns the signer's public key.
	PubKey() PubKey

	// Sign returns the signature for a given input.
	// It accepts a context in case the signing happens remotely.
	Sign(ctx context.Context, input []byte) (signature []byte, err error)
}
