// Package mcertifier drives certification rounds:
// it opens one round per signed entity type,
// collects stake-weighted single signatures against it,
// and closes the round into a hash-linked certificate once quorum is reached.
package mcertifier

import (
	"context"

	"github.com/cardano-scaling/mithril/mcert"
)

// Service is the certifier's public surface.
// [CertifierService] is the persistence-backed implementation,
// and [BufferedCertifierService] decorates any Service
// with out-of-order signature buffering.
type Service interface {
	// InformEpoch advances the certifier's epoch context
	// and expires open rounds left over from earlier epochs.
	InformEpoch(ctx context.Context, epoch mcert.Epoch) error

	// CreateOpenMessage opens the certification round for the entity.
	// Creating the same round twice with an equal protocol message
	// returns the existing round;
	// a differing protocol message fails with a ConflictError.
	CreateOpenMessage(
		ctx context.Context,
		entity mcert.SignedEntityType,
		protocolMsg mcert.ProtocolMessage,
	) (mcert.OpenMessage, error)

	// RegisterSingleSignature verifies the signature
	// against the round's stake distribution and records it.
	// It fails with mcertstore.ErrOpenMessageNotFound
	// when the entity has no open or expired round.
	RegisterSingleSignature(
		ctx context.Context,
		entity mcert.SignedEntityType,
		sig mcert.SingleSignature,
	) error

	// GetOpenMessage returns the entity's round,
	// or mcertstore.ErrOpenMessageNotFound.
	GetOpenMessage(ctx context.Context, entity mcert.SignedEntityType) (mcert.OpenMessage, error)

	// MarkOpenMessageIfExpired transitions the entity's round
	// from open to expired if it has outlived the certifier's timeout,
	// and returns the round in its resulting state.
	MarkOpenMessageIfExpired(ctx context.Context, entity mcert.SignedEntityType) (mcert.OpenMessage, error)

	// CreateCertificate attempts to close the entity's round.
	// It returns (nil, nil) when the registered signatures
	// do not reach quorum, and the already-minted certificate
	// when the round is certified.
	CreateCertificate(ctx context.Context, entity mcert.SignedEntityType) (*mcert.Certificate, error)

	// GetCertificateByHash returns the certificate with the given hash,
	// or mcertstore.ErrCertificateNotFound.
	GetCertificateByHash(ctx context.Context, hash string) (mcert.Certificate, error)

	// GetLatestCertificates returns up to n certificates, newest first.
	GetLatestCertificates(ctx context.Context, n int) ([]mcert.Certificate, error)

	// VerifyCertificateChain walks the chain
	// from the latest certificate at or before the epoch back to genesis,
	// checking every content hash and aggregate signature.
	// An empty chain verifies trivially.
	// It fails with a ChainIntegrityError at the first broken link.
	VerifyCertificateChain(ctx context.Context, epoch mcert.Epoch) error
}

// StakeDistributionRetriever resolves the signer set
// in effect at a given epoch.
type StakeDistributionRetriever interface {
	GetStakeDistribution(ctx context.Context, epoch mcert.Epoch) ([]mcert.SignerWithStake, error)
}

// FixedStakeDistribution is a [StakeDistributionRetriever]
// that serves the same signer set at every epoch.
type FixedStakeDistribution []mcert.SignerWithStake

func (d FixedStakeDistribution) GetStakeDistribution(
	context.Context, mcert.Epoch,
) ([]mcert.SignerWithStake, error) {
	return d, nil
}
