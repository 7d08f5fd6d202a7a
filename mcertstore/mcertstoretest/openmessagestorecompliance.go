package mcertstoretest

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/cardano-scaling/mithril/mcert"
	"github.com/cardano-scaling/mithril/mcert/mcerttest"
	"github.com/cardano-scaling/mithril/mcertstore"
)

type OpenMessageStoreFactory func(cleanup func(func())) (mcertstore.OpenMessageStore, error)

func newOpenMessage(entity mcert.SignedEntityType, digest string) mcert.OpenMessage {
	return mcert.OpenMessage{
		ID:               uuid.New(),
		SignedEntityType: entity,
		ProtocolMessage:  mcerttest.ProtocolMessage(digest),
		Epoch:            entity.Epoch,
		CreatedAt:        time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC),
		Status:           mcert.StatusOpen,
	}
}

func TestOpenMessageStoreCompliance(t *testing.T, f OpenMessageStoreFactory) {
	t.Run("create and get round trip", func(t *testing.T) {
		t.Parallel()

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		s, err := f(t.Cleanup)
		require.NoError(t, err)

		entity := mcert.StakeDistributionEntity(4)
		msg := newOpenMessage(entity, "digest-1")
		require.NoError(t, s.CreateOpenMessage(ctx, msg))

		got, err := s.GetOpenMessage(ctx, entity)
		require.NoError(t, err)
		require.Equal(t, msg, got)
	})

	t.Run("get for unknown entity", func(t *testing.T) {
		t.Parallel()

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		s, err := f(t.Cleanup)
		require.NoError(t, err)

		_, err = s.GetOpenMessage(ctx, mcert.StakeDistributionEntity(4))
		require.ErrorIs(t, err, mcertstore.ErrOpenMessageNotFound)
	})

	t.Run("double create rejected", func(t *testing.T) {
		t.Parallel()

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		s, err := f(t.Cleanup)
		require.NoError(t, err)

		entity := mcert.StakeDistributionEntity(4)
		msg := newOpenMessage(entity, "digest-1")
		require.NoError(t, s.CreateOpenMessage(ctx, msg))

		// Same entity, differing payload: the first message must win.
		err = s.CreateOpenMessage(ctx, newOpenMessage(entity, "digest-2"))

		var existsErr mcertstore.OpenMessageExistsError
		require.ErrorAs(t, err, &existsErr)
		require.Equal(t, msg, existsErr.Existing)

		got, err := s.GetOpenMessage(ctx, entity)
		require.NoError(t, err)
		require.Equal(t, msg, got)
	})

	t.Run("concurrent creates converge on one message", func(t *testing.T) {
		t.Parallel()

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		s, err := f(t.Cleanup)
		require.NoError(t, err)

		entity := mcert.StakeDistributionEntity(4)

		const n = 32
		errs := make([]error, n)

		var wg sync.WaitGroup
		wg.Add(n)
		for i := 0; i < n; i++ {
			go func(i int) {
				defer wg.Done()
				errs[i] = s.CreateOpenMessage(ctx, newOpenMessage(entity, "digest-1"))
			}(i)
		}
		wg.Wait()

		// Exactly one create wins; every loser observes the winner's message.
		got, err := s.GetOpenMessage(ctx, entity)
		require.NoError(t, err)

		var created int
		for _, err := range errs {
			if err == nil {
				created++
				continue
			}

			var existsErr mcertstore.OpenMessageExistsError
			require.ErrorAs(t, err, &existsErr)
			require.Equal(t, got.ID, existsErr.Existing.ID)
		}
		require.Equal(t, 1, created)
	})

	t.Run("distinct entities are independent", func(t *testing.T) {
		t.Parallel()

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		s, err := f(t.Cleanup)
		require.NoError(t, err)

		e1 := mcert.StakeDistributionEntity(4)
		e2 := mcert.TransactionSnapshotEntity(4, 450)

		m1 := newOpenMessage(e1, "digest-1")
		m2 := newOpenMessage(e2, "digest-2")
		require.NoError(t, s.CreateOpenMessage(ctx, m1))
		require.NoError(t, s.CreateOpenMessage(ctx, m2))

		got, err := s.GetOpenMessage(ctx, e1)
		require.NoError(t, err)
		require.Equal(t, m1, got)

		got, err = s.GetOpenMessage(ctx, e2)
		require.NoError(t, err)
		require.Equal(t, m2, got)
	})

	t.Run("append signature", func(t *testing.T) {
		t.Parallel()

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		s, err := f(t.Cleanup)
		require.NoError(t, err)

		entity := mcert.StakeDistributionEntity(4)
		require.NoError(t, s.CreateOpenMessage(ctx, newOpenMessage(entity, "digest-1")))

		sig0 := mcert.SingleSignature{
			PartyID:    "party-0",
			Signature:  []byte("sig-0"),
			WonIndexes: []uint64{0, 3},
		}
		sig1 := mcert.SingleSignature{
			PartyID:    "party-1",
			Signature:  []byte("sig-1"),
			WonIndexes: []uint64{1},
		}

		require.NoError(t, s.AppendSignature(ctx, entity, sig0))
		require.NoError(t, s.AppendSignature(ctx, entity, sig1))

		got, err := s.GetOpenMessage(ctx, entity)
		require.NoError(t, err)
		require.Equal(t, []mcert.SingleSignature{sig0, sig1}, got.SingleSignatures)

		t.Run("same party again is a no-op", func(t *testing.T) {
			dupe := sig0
			dupe.Signature = []byte("replayed-sig")
			require.NoError(t, s.AppendSignature(ctx, entity, dupe))

			got, err := s.GetOpenMessage(ctx, entity)
			require.NoError(t, err)
			require.Equal(t, []mcert.SingleSignature{sig0, sig1}, got.SingleSignatures)
		})

		t.Run("unknown entity rejected", func(t *testing.T) {
			err := s.AppendSignature(ctx, mcert.StakeDistributionEntity(9), sig0)
			require.ErrorIs(t, err, mcertstore.ErrOpenMessageNotFound)
		})
	})

	t.Run("set status", func(t *testing.T) {
		t.Parallel()

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		s, err := f(t.Cleanup)
		require.NoError(t, err)

		entity := mcert.StakeDistributionEntity(4)
		require.NoError(t, s.CreateOpenMessage(ctx, newOpenMessage(entity, "digest-1")))

		require.NoError(t, s.SetOpenMessageStatus(ctx, entity, mcert.StatusCertified, "cert-hash-1"))

		got, err := s.GetOpenMessage(ctx, entity)
		require.NoError(t, err)
		require.Equal(t, mcert.StatusCertified, got.Status)
		require.Equal(t, "cert-hash-1", got.CertificateHash)

		err = s.SetOpenMessageStatus(ctx, mcert.StakeDistributionEntity(9), mcert.StatusExpired, "")
		require.ErrorIs(t, err, mcertstore.ErrOpenMessageNotFound)
	})

	t.Run("expire before epoch", func(t *testing.T) {
		t.Parallel()

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		s, err := f(t.Cleanup)
		require.NoError(t, err)

		old := mcert.StakeDistributionEntity(3)
		oldSnapshot := mcert.TransactionSnapshotEntity(3, 300)
		current := mcert.StakeDistributionEntity(5)
		certified := mcert.TransactionSnapshotEntity(2, 200)

		require.NoError(t, s.CreateOpenMessage(ctx, newOpenMessage(old, "digest-1")))
		require.NoError(t, s.CreateOpenMessage(ctx, newOpenMessage(oldSnapshot, "digest-2")))
		require.NoError(t, s.CreateOpenMessage(ctx, newOpenMessage(current, "digest-3")))
		require.NoError(t, s.CreateOpenMessage(ctx, newOpenMessage(certified, "digest-4")))
		require.NoError(t, s.SetOpenMessageStatus(ctx, certified, mcert.StatusCertified, "cert-hash-1"))

		n, err := s.ExpireOpenMessagesBeforeEpoch(ctx, 5)
		require.NoError(t, err)
		require.Equal(t, 2, n)

		for _, entity := range []mcert.SignedEntityType{old, oldSnapshot} {
			got, err := s.GetOpenMessage(ctx, entity)
			require.NoError(t, err)
			require.Equal(t, mcert.StatusExpired, got.Status)
		}

		got, err := s.GetOpenMessage(ctx, current)
		require.NoError(t, err)
		require.Equal(t, mcert.StatusOpen, got.Status)

		// Certified messages stay certified.
		got, err = s.GetOpenMessage(ctx, certified)
		require.NoError(t, err)
		require.Equal(t, mcert.StatusCertified, got.Status)

		// Nothing left to expire.
		n, err = s.ExpireOpenMessagesBeforeEpoch(ctx, 5)
		require.NoError(t, err)
		require.Zero(t, n)
	})
}
