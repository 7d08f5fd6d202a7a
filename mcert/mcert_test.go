package mcert_test

import (
	"testing"

	"github.com/cardano-scaling/mithril/mcert"
	"github.com/cardano-scaling/mithril/mcert/mcerttest"
	"github.com/stretchr/testify/require"
)

func TestEpoch_OffsetToSignerRetrievalEpoch(t *testing.T) {
	t.Parallel()

	got, err := mcert.Epoch(5).OffsetToSignerRetrievalEpoch()
	require.NoError(t, err)
	require.Equal(t, mcert.Epoch(4), got)

	_, err = mcert.Epoch(0).OffsetToSignerRetrievalEpoch()
	require.ErrorIs(t, err, mcert.ErrEpochUnderflow)
}

func TestSignedEntityType_Key(t *testing.T) {
	t.Parallel()

	require.Equal(t,
		"stake-distribution:3",
		mcert.StakeDistributionEntity(3).Key(),
	)
	require.Equal(t,
		"transaction-snapshot:3:450",
		mcert.TransactionSnapshotEntity(3, 450).Key(),
	)

	// Exact-instance equality, not just discriminant equality.
	require.NotEqual(t,
		mcert.TransactionSnapshotEntity(3, 450),
		mcert.TransactionSnapshotEntity(3, 465),
	)
	require.Equal(t,
		mcert.TransactionSnapshotEntity(3, 450).Discriminant(),
		mcert.TransactionSnapshotEntity(3, 465).Discriminant(),
	)
}

func TestProtocolMessage_Equality(t *testing.T) {
	t.Parallel()

	m1 := mcert.NewProtocolMessage()
	m1.SetPart(mcert.PartKeySnapshotDigest, "digest-1")
	m1.SetPart(mcert.PartKeyLatestBlockNumber, "450")

	// Insertion order must not matter.
	m2 := mcert.NewProtocolMessage()
	m2.SetPart(mcert.PartKeyLatestBlockNumber, "450")
	m2.SetPart(mcert.PartKeySnapshotDigest, "digest-1")

	require.True(t, m1.Equal(m2))
	require.Equal(t, m1.Hash(), m2.Hash())

	m2.SetPart(mcert.PartKeySnapshotDigest, "digest-2")
	require.False(t, m1.Equal(m2))
	require.NotEqual(t, m1.Hash(), m2.Hash())
}

func TestBlockRangeAt(t *testing.T) {
	t.Parallel()

	const length = 30

	r := mcert.BlockRangeAt(length, 5)
	require.Equal(t, mcert.BlockRange{Start: 0, End: 30}, r)
	require.True(t, r.Contains(12))
	require.False(t, r.Contains(30))

	require.Equal(t,
		mcert.BlockRange{Start: 30, End: 60},
		mcert.BlockRangeAt(length, 45),
	)

	// A range boundary belongs to the following range.
	require.Equal(t,
		mcert.BlockRange{Start: 30, End: 60},
		mcert.BlockRangeAt(length, 30),
	)
}

func TestCertificate_ComputeHash(t *testing.T) {
	t.Parallel()

	fx := mcerttest.NewFixture(3)

	cert := mcert.Certificate{
		PreviousHash:     "prev-hash",
		Epoch:            4,
		SignedEntityType: mcert.StakeDistributionEntity(4),
		ProtocolMessage:  mcerttest.ProtocolMessage("digest-1"),
		Signers:          fx.Distribution,
	}

	h1 := cert.ComputeHash(fx.Registry)
	require.NotEmpty(t, h1)

	// Deterministic.
	require.Equal(t, h1, cert.ComputeHash(fx.Registry))

	// Sensitive to every certified field.
	altered := cert
	altered.ProtocolMessage = mcerttest.ProtocolMessage("digest-2")
	require.NotEqual(t, h1, altered.ComputeHash(fx.Registry))

	altered = cert
	altered.PreviousHash = "other-prev-hash"
	require.NotEqual(t, h1, altered.ComputeHash(fx.Registry))

	altered = cert
	altered.Epoch = 5
	require.NotEqual(t, h1, altered.ComputeHash(fx.Registry))
}

func TestSingleSignature_Equal(t *testing.T) {
	t.Parallel()

	s1 := mcert.SingleSignature{
		PartyID:    "party-0",
		Signature:  []byte("sig"),
		WonIndexes: []uint64{1, 4},
	}

	s2 := mcert.SingleSignature{
		PartyID:    "party-0",
		Signature:  []byte("sig"),
		WonIndexes: []uint64{1, 4},
	}
	require.True(t, s1.Equal(s2))

	s2.WonIndexes = []uint64{1}
	require.False(t, s1.Equal(s2))
}
