// Package mserver exposes the certifier and prover
// over a small JSON HTTP API.
package mserver

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"

	"github.com/gorilla/mux"

	"github.com/cardano-scaling/mithril/mcert"
	"github.com/cardano-scaling/mithril/mcertifier"
	"github.com/cardano-scaling/mithril/mcertstore"
	"github.com/cardano-scaling/mithril/mprover"
)

type HTTPServer struct {
	done chan struct{}
}

type HTTPServerConfig struct {
	Listener net.Listener

	Certifier mcertifier.Service
	Prover    mprover.Service
}

func NewHTTPServer(ctx context.Context, log *slog.Logger, cfg HTTPServerConfig) *HTTPServer {
	srv := &http.Server{
		Handler: NewMux(log, cfg),

		BaseContext: func(net.Listener) context.Context {
			return ctx
		},
	}

	h := &HTTPServer{
		done: make(chan struct{}),
	}
	go h.serve(log, cfg.Listener, srv)
	go h.waitForShutdown(ctx, srv)

	return h
}

func (h *HTTPServer) Wait() {
	<-h.done
}

func (h *HTTPServer) waitForShutdown(ctx context.Context, srv *http.Server) {
	select {
	case <-h.done:
		// h.serve returned on its own, nothing left to do here.
		return
	case <-ctx.Done():
		// Forceful shutdown. We could probably log any returned error on this.
		_ = srv.Close()
	}
}

func (h *HTTPServer) serve(log *slog.Logger, ln net.Listener, srv *http.Server) {
	defer close(h.done)

	if err := srv.Serve(ln); err != nil {
		if errors.Is(err, net.ErrClosed) || errors.Is(err, http.ErrServerClosed) {
			log.Info("HTTP server shutting down")
		} else {
			log.Info("HTTP server shutting down due to error", "err", err)
		}
	}
}

// NewMux returns the API routes without the serving plumbing,
// which is convenient for tests using httptest.
func NewMux(log *slog.Logger, cfg HTTPServerConfig) http.Handler {
	r := mux.NewRouter()

	r.HandleFunc("/certificates", handleCertificates(log, cfg)).Methods("GET")
	r.HandleFunc("/certificate/{hash}", handleCertificateByHash(log, cfg)).Methods("GET")
	r.HandleFunc("/proof/transactions", handleTransactionsProof(log, cfg)).Methods("GET")

	return r
}

// CertificateSummary is one entry of the certificate list response.
type CertificateSummary struct {
	Hash         string `json:"hash"`
	PreviousHash string `json:"previous_hash"`
	Epoch        uint64 `json:"epoch"`
	SignedEntity string `json:"signed_entity"`
}

const defaultCertificateListLimit = 20

func handleCertificates(log *slog.Logger, cfg HTTPServerConfig) func(w http.ResponseWriter, req *http.Request) {
	c := cfg.Certifier
	return func(w http.ResponseWriter, req *http.Request) {
		limit := defaultCertificateListLimit
		if raw := req.URL.Query().Get("limit"); raw != "" {
			n, err := strconv.Atoi(raw)
			if err != nil || n <= 0 {
				http.Error(w, "invalid limit parameter", http.StatusBadRequest)
				return
			}
			limit = n
		}

		certs, err := c.GetLatestCertificates(req.Context(), limit)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}

		out := make([]CertificateSummary, len(certs))
		for i, cert := range certs {
			out[i] = CertificateSummary{
				Hash:         cert.Hash,
				PreviousHash: cert.PreviousHash,
				Epoch:        uint64(cert.Epoch),
				SignedEntity: cert.SignedEntityType.Key(),
			}
		}

		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(out); err != nil {
			log.Warn("Failed to marshal certificates response", "err", err)
			http.Error(w, err.Error(), http.StatusInternalServerError)
		}
	}
}

func handleCertificateByHash(log *slog.Logger, cfg HTTPServerConfig) func(w http.ResponseWriter, req *http.Request) {
	c := cfg.Certifier
	return func(w http.ResponseWriter, req *http.Request) {
		hash := mux.Vars(req)["hash"]

		cert, err := c.GetCertificateByHash(req.Context(), hash)
		if errors.Is(err, mcertstore.ErrCertificateNotFound) {
			http.NotFound(w, req)
			return
		}
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}

		// The embedded public keys do not have a JSON form;
		// the response carries the summary plus the certified message.
		out := struct {
			CertificateSummary
			ProtocolMessage mcert.ProtocolMessage `json:"protocol_message"`
		}{
			CertificateSummary: CertificateSummary{
				Hash:         cert.Hash,
				PreviousHash: cert.PreviousHash,
				Epoch:        uint64(cert.Epoch),
				SignedEntity: cert.SignedEntityType.Key(),
			},
			ProtocolMessage: cert.ProtocolMessage,
		}

		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(out); err != nil {
			log.Warn("Failed to marshal certificate response", "err", err)
			http.Error(w, err.Error(), http.StatusInternalServerError)
		}
	}
}

func handleTransactionsProof(log *slog.Logger, cfg HTTPServerConfig) func(w http.ResponseWriter, req *http.Request) {
	p := cfg.Prover
	return func(w http.ResponseWriter, req *http.Request) {
		q := req.URL.Query()

		rawHashes := q.Get("hashes")
		if rawHashes == "" {
			http.Error(w, "missing hashes parameter", http.StatusBadRequest)
			return
		}
		var hashes []mcert.TransactionHash
		for _, h := range strings.Split(rawHashes, ",") {
			if h = strings.TrimSpace(h); h != "" {
				hashes = append(hashes, mcert.TransactionHash(h))
			}
		}

		upTo, err := strconv.ParseUint(q.Get("up_to"), 10, 64)
		if err != nil {
			http.Error(w, "invalid up_to parameter", http.StatusBadRequest)
			return
		}

		proofs, err := p.ComputeTransactionsProofs(req.Context(), upTo, hashes)
		if err != nil {
			log.Warn("Failed to compute transactions proof", "err", err)
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		if proofs == nil {
			// Keep the response a JSON array even when nothing was certifiable.
			proofs = []mprover.TransactionsSetProof{}
		}

		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(proofs); err != nil {
			log.Warn("Failed to marshal proof response", "err", err)
			http.Error(w, err.Error(), http.StatusInternalServerError)
		}
	}
}
