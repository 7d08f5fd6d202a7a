package mserver_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"testing"

	"github.com/neilotoole/slogt"
	"github.com/stretchr/testify/require"

	"github.com/cardano-scaling/mithril/mcert"
	"github.com/cardano-scaling/mithril/mcert/mcerttest"
	"github.com/cardano-scaling/mithril/mcertifier"
	"github.com/cardano-scaling/mithril/mcertstore/mcertmemstore"
	"github.com/cardano-scaling/mithril/mprover"
	"github.com/cardano-scaling/mithril/mserver"
	"github.com/cardano-scaling/mithril/mtxstore/mtxmemstore"
)

type serverFixture struct {
	Fx        *mcerttest.Fixture
	Certifier *mcertifier.CertifierService
	Prover    *mprover.ProverService

	BaseURL string
}

// newServerFixture serves a certifier over a memory store
// and a prover over tx-1@5, tx-2@12, tx-3@45 with range length 30.
func newServerFixture(ctx context.Context, t *testing.T) *serverFixture {
	t.Helper()

	fx := mcerttest.NewFixture(3)

	certifier, err := mcertifier.NewCertifierService(slogt.New(t), mcertifier.CertifierConfig{
		Store:    mcertmemstore.NewStore(),
		Stakes:   mcertifier.FixedStakeDistribution(fx.Distribution),
		Registry: fx.Registry,
		Quorum:   400,
	})
	require.NoError(t, err)

	txs := mtxmemstore.NewStore()
	require.NoError(t, txs.AddTransactions(
		mcert.Transaction{Hash: "tx-1", BlockNumber: 5},
		mcert.Transaction{Hash: "tx-2", BlockNumber: 12},
		mcert.Transaction{Hash: "tx-3", BlockNumber: 45},
	))
	prover := mprover.NewProverService(slogt.New(t), txs, 30)

	ln, err := (new(net.ListenConfig)).Listen(ctx, "tcp", "127.0.0.1:0")
	require.NoError(t, err)

	h := mserver.NewHTTPServer(ctx, slogt.New(t), mserver.HTTPServerConfig{
		Listener:  ln,
		Certifier: certifier,
		Prover:    prover,
	})
	t.Cleanup(h.Wait)

	return &serverFixture{
		Fx:        fx,
		Certifier: certifier,
		Prover:    prover,

		BaseURL: "http://" + ln.Addr().String(),
	}
}

// certify runs one full round for the entity with all three fixture signers.
func (f *serverFixture) certify(
	ctx context.Context, t *testing.T, entity mcert.SignedEntityType,
) mcert.Certificate {
	t.Helper()

	protocolMsg := mcerttest.ProtocolMessage(entity.Key())
	_, err := f.Certifier.CreateOpenMessage(ctx, entity, protocolMsg)
	require.NoError(t, err)

	for idx := 0; idx < 3; idx++ {
		sig, err := f.Fx.SingleSignature(ctx, idx, protocolMsg)
		require.NoError(t, err)
		require.NoError(t, f.Certifier.RegisterSingleSignature(ctx, entity, sig))
	}

	cert, err := f.Certifier.CreateCertificate(ctx, entity)
	require.NoError(t, err)
	require.NotNil(t, cert)
	return *cert
}

func TestHTTPServer_Certificates(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	f := newServerFixture(ctx, t)
	c1 := f.certify(ctx, t, mcert.StakeDistributionEntity(4))
	c2 := f.certify(ctx, t, mcert.TransactionSnapshotEntity(4, 45))

	resp, err := http.Get(f.BaseURL + "/certificates")
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)

	var got []mserver.CertificateSummary
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&got))

	require.Equal(t, []mserver.CertificateSummary{
		{
			Hash:         c2.Hash,
			PreviousHash: c1.Hash,
			Epoch:        4,
			SignedEntity: "transaction-snapshot:4:45",
		},
		{
			Hash:         c1.Hash,
			Epoch:        4,
			SignedEntity: "stake-distribution:4",
		},
	}, got)

	t.Run("limit parameter", func(t *testing.T) {
		resp, err := http.Get(f.BaseURL + "/certificates?limit=1")
		require.NoError(t, err)
		defer resp.Body.Close()

		require.Equal(t, http.StatusOK, resp.StatusCode)

		var got []mserver.CertificateSummary
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&got))
		require.Len(t, got, 1)
		require.Equal(t, c2.Hash, got[0].Hash)
	})

	t.Run("bad limit parameter", func(t *testing.T) {
		resp, err := http.Get(f.BaseURL + "/certificates?limit=bogus")
		require.NoError(t, err)
		defer resp.Body.Close()

		require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})
}

func TestHTTPServer_CertificateByHash(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	f := newServerFixture(ctx, t)
	cert := f.certify(ctx, t, mcert.StakeDistributionEntity(4))

	resp, err := http.Get(f.BaseURL + "/certificate/" + cert.Hash)
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)

	var got struct {
		mserver.CertificateSummary
		ProtocolMessage mcert.ProtocolMessage `json:"protocol_message"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&got))
	require.Equal(t, cert.Hash, got.Hash)
	require.True(t, cert.ProtocolMessage.Equal(got.ProtocolMessage))

	t.Run("unknown hash", func(t *testing.T) {
		resp, err := http.Get(f.BaseURL + "/certificate/no-such-hash")
		require.NoError(t, err)
		defer resp.Body.Close()

		require.Equal(t, http.StatusNotFound, resp.StatusCode)
	})
}

func TestHTTPServer_TransactionsProof(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	f := newServerFixture(ctx, t)

	resp, err := http.Get(f.BaseURL + "/proof/transactions?hashes=tx-1,tx-3&up_to=50")
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)

	var proofs []mprover.TransactionsSetProof
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&proofs))
	require.Len(t, proofs, 1)
	require.Equal(t, []mcert.TransactionHash{"tx-1", "tx-3"}, proofs[0].TransactionHashes)

	// The decoded proof must verify against the live commitment.
	root, err := f.Prover.ComputeTransactionsCommitment(ctx, 50)
	require.NoError(t, err)
	require.NoError(t, proofs[0].Verify(root))

	t.Run("unknown hashes give an empty array", func(t *testing.T) {
		resp, err := http.Get(f.BaseURL + "/proof/transactions?hashes=tx-bogus&up_to=50")
		require.NoError(t, err)
		defer resp.Body.Close()

		require.Equal(t, http.StatusOK, resp.StatusCode)

		body, err := io.ReadAll(resp.Body)
		require.NoError(t, err)

		// Clients expect an array, never a JSON null.
		require.Equal(t, "[]", string(bytes.TrimSpace(body)))
	})

	t.Run("missing parameters", func(t *testing.T) {
		for _, url := range []string{
			f.BaseURL + "/proof/transactions?up_to=50",
			f.BaseURL + "/proof/transactions?hashes=tx-1",
			f.BaseURL + "/proof/transactions?hashes=tx-1&up_to=bogus",
		} {
			resp, err := http.Get(url)
			require.NoError(t, err)
			resp.Body.Close()

			require.Equal(t, http.StatusBadRequest, resp.StatusCode)
		}
	})
}
