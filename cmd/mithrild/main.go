// Command mithrild runs the certification aggregator:
// a certifier with signature buffering, a transaction prover,
// and the HTTP API binding them together.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"time"

	"github.com/spf13/cobra"

	"github.com/cardano-scaling/mithril/mcert"
	"github.com/cardano-scaling/mithril/mcertifier"
	"github.com/cardano-scaling/mithril/mcertstore"
	"github.com/cardano-scaling/mithril/mcertstore/mcertmemstore"
	"github.com/cardano-scaling/mithril/mcrypto"
	"github.com/cardano-scaling/mithril/mprover"
	"github.com/cardano-scaling/mithril/mserver"
	"github.com/cardano-scaling/mithril/msigbuffer"
	"github.com/cardano-scaling/mithril/msqlite"
	"github.com/cardano-scaling/mithril/mtxstore/mtxmemstore"
)

func main() {
	if err := mainE(); err != nil {
		os.Exit(1)
	}
}

func mainE() error {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	root := NewRootCmd(logger)
	if err := root.ExecuteContext(ctx); err != nil {
		logger.Info("Failure", "err", err)
		os.Stderr.Sync()
		return err
	}

	return nil
}

func NewRootCmd(log *slog.Logger) *cobra.Command {
	rootCmd := &cobra.Command{
		Use: "mithrild SUBCOMMAND",

		CompletionOptions: cobra.CompletionOptions{HiddenDefaultCmd: true},

		Long: `mithrild aggregates stake-weighted signatures into certificates.

Signers register single signatures against open certification rounds;
once a round accumulates a quorum of stake, it is closed into a certificate
linked back through the certificate chain.
The prover serves Merkle membership proofs for certified transactions.
`,
	}

	rootCmd.AddCommand(
		newStartCmd(log),
	)

	return rootCmd
}

func newStartCmd(log *slog.Logger) *cobra.Command {
	cmd := &cobra.Command{
		Use: "start",

		Short: "Run the aggregator and serve the HTTP API",

		Args: cobra.NoArgs,

		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			fs := cmd.Flags()

			dbPath, _ := fs.GetString("db")
			listenAddr, _ := fs.GetString("listen")
			quorum, _ := fs.GetUint64("quorum")
			ttl, _ := fs.GetDuration("open-message-ttl")
			inMemory, _ := fs.GetBool("in-memory")
			stakeFile, _ := fs.GetString("stake-file")
			rangeLength, _ := fs.GetUint64("block-range-length")

			reg := new(mcrypto.Registry)
			mcrypto.RegisterEd25519(reg)

			signers, err := loadStakeDistribution(stakeFile)
			if err != nil {
				return err
			}

			var store mcertstore.Store
			if inMemory {
				store = mcertmemstore.NewStore()
			} else {
				s, err := msqlite.NewOnDiskStore(ctx, dbPath, reg)
				if err != nil {
					return fmt.Errorf("failed to open database at %s: %w", dbPath, err)
				}
				defer s.Close()
				store = s
			}

			certifier, err := mcertifier.NewCertifierService(log.With("sys", "certifier"), mcertifier.CertifierConfig{
				Store:              store,
				Stakes:             mcertifier.FixedStakeDistribution(signers),
				Registry:           reg,
				Quorum:             quorum,
				OpenMessageTimeout: ttl,
			})
			if err != nil {
				return err
			}

			buffered := mcertifier.NewBufferedCertifierService(
				log.With("sys", "certifier"), certifier, msigbuffer.NewMemBuffer(),
			)

			prover := mprover.NewProverService(
				log.With("sys", "prover"), mtxmemstore.NewStore(), rangeLength,
			)

			ln, err := (new(net.ListenConfig)).Listen(ctx, "tcp", listenAddr)
			if err != nil {
				return fmt.Errorf("failed to listen on %s: %w", listenAddr, err)
			}

			log.Info("Serving HTTP API", "addr", ln.Addr().String())
			h := mserver.NewHTTPServer(ctx, log.With("sys", "http"), mserver.HTTPServerConfig{
				Listener:  ln,
				Certifier: buffered,
				Prover:    prover,
			})

			h.Wait()
			return nil
		},
	}

	fs := cmd.Flags()
	fs.String("db", "mithril.db", "Path to the SQLite database file")
	fs.String("listen", "127.0.0.1:8080", "HTTP listen address")
	fs.Uint64("quorum", 1, "Minimum aggregated stake required to mint a certificate")
	fs.Duration("open-message-ttl", time.Hour, "Age past which an open round may be expired")
	fs.Bool("in-memory", false, "Keep all certification state in memory instead of SQLite")
	fs.String("stake-file", "", "Path to the JSON stake distribution file (required)")
	fs.Uint64("block-range-length", mcert.BlockRangeLength, "Block range width for transaction commitments")

	if err := cmd.MarkFlagRequired("stake-file"); err != nil {
		panic(err)
	}

	return cmd
}
