package mcrypto_test

import (
	"context"
	"testing"

	"github.com/cardano-scaling/mithril/mcrypto"
	"github.com/cardano-scaling/mithril/mcrypto/mcryptotest"
	"github.com/stretchr/testify/require"
)

func testProof(t *testing.T, nSigners int) (*mcrypto.StakeSignatureProof, []mcrypto.Ed25519Signer, []uint64) {
	t.Helper()

	signers := mcryptotest.DeterministicEd25519Signers(nSigners)

	keys := make([]mcrypto.PubKey, nSigners)
	stakes := make([]uint64, nSigners)
	for i, s := range signers {
		keys[i] = s.PubKey()
		stakes[i] = uint64(100 * (i + 1))
	}

	p, err := mcrypto.NewStakeSignatureProof([]byte("protocol message"), keys, stakes, "fake_key_hash")
	require.NoError(t, err)

	return p, signers, stakes
}

func TestStakeSignatureProof_AddSignature(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	t.Run("valid signature from candidate key", func(t *testing.T) {
		p, signers, _ := testProof(t, 3)

		sig, err := signers[1].Sign(ctx, p.Message())
		require.NoError(t, err)

		require.NoError(t, p.AddSignature(sig, signers[1].PubKey()))

		bs := p.SignatureBitSet()
		require.Equal(t, uint(1), bs.Count())
		require.True(t, bs.Test(1))
	})

	t.Run("signature from unknown key", func(t *testing.T) {
		p, _, _ := testProof(t, 3)

		outsider := mcryptotest.DeterministicEd25519Signers(4)[3]
		sig, err := outsider.Sign(ctx, p.Message())
		require.NoError(t, err)

		require.ErrorIs(t, p.AddSignature(sig, outsider.PubKey()), mcrypto.ErrUnknownKey)
	})

	t.Run("signature over a different message", func(t *testing.T) {
		p, signers, _ := testProof(t, 3)

		sig, err := signers[0].Sign(ctx, []byte("some other message"))
		require.NoError(t, err)

		require.ErrorIs(t, p.AddSignature(sig, signers[0].PubKey()), mcrypto.ErrInvalidSignature)
	})
}

func TestStakeSignatureProof_SignedStake(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	p, signers, stakes := testProof(t, 4)
	require.Zero(t, p.SignedStake())

	for _, i := range []int{0, 2} {
		sig, err := signers[i].Sign(ctx, p.Message())
		require.NoError(t, err)
		require.NoError(t, p.AddSignature(sig, signers[i].PubKey()))
	}

	require.Equal(t, stakes[0]+stakes[2], p.SignedStake())
}

func TestStakeSignatureProof_AggregateRoundTrip(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	p, signers, stakes := testProof(t, 4)

	keys := make([]mcrypto.PubKey, len(signers))
	for i, s := range signers {
		keys[i] = s.PubKey()
	}

	for _, i := range []int{3, 1} {
		sig, err := signers[i].Sign(ctx, p.Message())
		require.NoError(t, err)
		require.NoError(t, p.AddSignature(sig, signers[i].PubKey()))
	}

	agg := p.AsAggregate()
	require.Equal(t, "fake_key_hash", agg.PubKeyHash)
	require.Len(t, agg.Signatures, 2)

	// Key-sorted order regardless of insertion order.
	require.Equal(t, []byte{0, 1}, agg.Signatures[0].KeyID)
	require.Equal(t, []byte{0, 3}, agg.Signatures[1].KeyID)

	signedStake, err := mcrypto.VerifyAggregate(p.Message(), agg, keys, stakes)
	require.NoError(t, err)
	require.Equal(t, stakes[1]+stakes[3], signedStake)
}

func TestVerifyAggregate_Tampered(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	p, signers, stakes := testProof(t, 3)

	keys := make([]mcrypto.PubKey, len(signers))
	for i, s := range signers {
		keys[i] = s.PubKey()
	}

	sig, err := signers[2].Sign(ctx, p.Message())
	require.NoError(t, err)
	require.NoError(t, p.AddSignature(sig, signers[2].PubKey()))

	t.Run("different message", func(t *testing.T) {
		agg := p.AsAggregate()
		_, err := mcrypto.VerifyAggregate([]byte("not the original message"), agg, keys, stakes)
		require.ErrorIs(t, err, mcrypto.ErrInvalidSignature)
	})

	t.Run("reassigned key ID", func(t *testing.T) {
		agg := p.AsAggregate()
		agg.Signatures[0].KeyID = []byte{0, 1}
		_, err := mcrypto.VerifyAggregate(p.Message(), agg, keys, stakes)
		require.ErrorIs(t, err, mcrypto.ErrInvalidSignature)
	})

	t.Run("key ID out of range", func(t *testing.T) {
		agg := p.AsAggregate()
		agg.Signatures[0].KeyID = []byte{0, 9}
		_, err := mcrypto.VerifyAggregate(p.Message(), agg, keys, stakes)
		require.ErrorIs(t, err, mcrypto.ErrUnknownKey)
	})
}
