package mcertstoretest

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/cardano-scaling/mithril/mcert"
	"github.com/cardano-scaling/mithril/mcert/mcerttest"
	"github.com/cardano-scaling/mithril/mcertstore"
)

type CertificateStoreFactory func(cleanup func(func())) (mcertstore.CertificateStore, error)

// newCertificateChain builds a hash-linked chain of certificates,
// one per epoch starting at epoch 1,
// all signed by the same fixture signer set.
func newCertificateChain(fx *mcerttest.Fixture, n int) []mcert.Certificate {
	certs := make([]mcert.Certificate, n)
	prevHash := ""
	for i := range certs {
		epoch := mcert.Epoch(i + 1)
		cert := mcert.Certificate{
			PreviousHash:     prevHash,
			Epoch:            epoch,
			SignedEntityType: mcert.StakeDistributionEntity(epoch),
			ProtocolMessage:  mcerttest.ProtocolMessage("digest-" + epoch.String()),
			Signers:          fx.Distribution,
		}
		cert.Hash = cert.ComputeHash(fx.Registry)
		certs[i] = cert
		prevHash = cert.Hash
	}
	return certs
}

func TestCertificateStoreCompliance(t *testing.T, f CertificateStoreFactory) {
	t.Run("save and get round trip", func(t *testing.T) {
		t.Parallel()

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		s, err := f(t.Cleanup)
		require.NoError(t, err)

		fx := mcerttest.NewFixture(3)
		cert := newCertificateChain(fx, 1)[0]
		require.NoError(t, s.SaveCertificate(ctx, cert))

		got, err := s.GetCertificate(ctx, cert.Hash)
		require.NoError(t, err)
		require.Equal(t, cert, got)
	})

	t.Run("get for unknown hash", func(t *testing.T) {
		t.Parallel()

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		s, err := f(t.Cleanup)
		require.NoError(t, err)

		_, err = s.GetCertificate(ctx, "no-such-hash")
		require.ErrorIs(t, err, mcertstore.ErrCertificateNotFound)
	})

	t.Run("double save rejected", func(t *testing.T) {
		t.Parallel()

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		s, err := f(t.Cleanup)
		require.NoError(t, err)

		fx := mcerttest.NewFixture(3)
		cert := newCertificateChain(fx, 1)[0]
		require.NoError(t, s.SaveCertificate(ctx, cert))

		err = s.SaveCertificate(ctx, cert)
		require.ErrorIs(t, err, mcertstore.CertificateExistsError{Hash: cert.Hash})
	})

	t.Run("latest certificates", func(t *testing.T) {
		t.Parallel()

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		s, err := f(t.Cleanup)
		require.NoError(t, err)

		fx := mcerttest.NewFixture(3)
		certs := newCertificateChain(fx, 3)
		for _, cert := range certs {
			require.NoError(t, s.SaveCertificate(ctx, cert))
		}

		got, err := s.GetLatestCertificates(ctx, 2)
		require.NoError(t, err)
		require.Equal(t, []mcert.Certificate{certs[2], certs[1]}, got)

		// Asking for more than stored returns everything.
		got, err = s.GetLatestCertificates(ctx, 10)
		require.NoError(t, err)
		require.Equal(t, []mcert.Certificate{certs[2], certs[1], certs[0]}, got)
	})

	t.Run("latest certificates on empty store", func(t *testing.T) {
		t.Parallel()

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		s, err := f(t.Cleanup)
		require.NoError(t, err)

		got, err := s.GetLatestCertificates(ctx, 5)
		require.NoError(t, err)
		require.Empty(t, got)
	})

	t.Run("latest certificate at epoch", func(t *testing.T) {
		t.Parallel()

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		s, err := f(t.Cleanup)
		require.NoError(t, err)

		fx := mcerttest.NewFixture(3)
		certs := newCertificateChain(fx, 3) // Epochs 1, 2, 3.
		for _, cert := range certs {
			require.NoError(t, s.SaveCertificate(ctx, cert))
		}

		got, err := s.GetLatestCertificateAtEpoch(ctx, 2)
		require.NoError(t, err)
		require.Equal(t, certs[1], got)

		// Epochs past the end resolve to the newest certificate.
		got, err = s.GetLatestCertificateAtEpoch(ctx, 9)
		require.NoError(t, err)
		require.Equal(t, certs[2], got)

		_, err = s.GetLatestCertificateAtEpoch(ctx, 0)
		require.ErrorIs(t, err, mcertstore.ErrCertificateNotFound)
	})
}
