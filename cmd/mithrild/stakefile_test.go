package main

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/cardano-scaling/mithril/mcert"
	"github.com/cardano-scaling/mithril/mcrypto/mcryptotest"
)

func writeStakeFile(t *testing.T, entries []stakeFileEntry) string {
	t.Helper()

	data, err := json.Marshal(entries)
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "stakes.json")
	require.NoError(t, os.WriteFile(path, data, 0o600))
	return path
}

func TestLoadStakeDistribution(t *testing.T) {
	t.Parallel()

	signers := mcryptotest.DeterministicEd25519Signers(2)

	entries := make([]stakeFileEntry, len(signers))
	for i, s := range signers {
		entries[i] = stakeFileEntry{
			PartyID:   fmt.Sprintf("party-%d", i),
			PublicKey: hex.EncodeToString(s.PubKey().PubKeyBytes()),
			Stake:     uint64(100 * (i + 1)),
		}
	}

	got, err := loadStakeDistribution(writeStakeFile(t, entries))
	require.NoError(t, err)
	require.Len(t, got, 2)
	require.Equal(t, mcert.PartyID("party-1"), got[1].PartyID)
	require.Equal(t, uint64(200), got[1].Stake)
	require.True(t, got[0].PubKey.Equal(signers[0].PubKey()))

	t.Run("loaded keys verify signatures", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		msg := []byte("certify me")
		sig, err := signers[0].Sign(ctx, msg)
		require.NoError(t, err)
		require.True(t, got[0].PubKey.Verify(msg, sig))
	})

	t.Run("rejects duplicate party", func(t *testing.T) {
		dupe := []stakeFileEntry{entries[0], entries[0]}
		_, err := loadStakeDistribution(writeStakeFile(t, dupe))
		require.Error(t, err)
	})

	t.Run("rejects zero stake", func(t *testing.T) {
		bad := []stakeFileEntry{entries[0]}
		bad[0].Stake = 0
		_, err := loadStakeDistribution(writeStakeFile(t, bad))
		require.Error(t, err)
	})

	t.Run("rejects malformed key", func(t *testing.T) {
		bad := []stakeFileEntry{entries[0]}
		bad[0].PublicKey = "abcd"
		_, err := loadStakeDistribution(writeStakeFile(t, bad))
		require.Error(t, err)
	})

	t.Run("rejects missing file", func(t *testing.T) {
		_, err := loadStakeDistribution(filepath.Join(t.TempDir(), "nope.json"))
		require.Error(t, err)
	})
}
