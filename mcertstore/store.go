package mcertstore

import (
	"context"

	"github.com/cardano-scaling/mithril/mcert"
)

// OpenMessageStore is the persistence layer for open messages,
// the in-flight certification requests that accumulate single signatures.
type OpenMessageStore interface {
	// CreateOpenMessage atomically persists the message if no message exists
	// for its signed entity type.
	// If one already exists, it returns an OpenMessageExistsError
	// carrying the existing message, and the store is unchanged.
	CreateOpenMessage(ctx context.Context, msg mcert.OpenMessage) error

	// GetOpenMessage returns the open message for the given entity,
	// or ErrOpenMessageNotFound if no message exists for it.
	GetOpenMessage(ctx context.Context, entity mcert.SignedEntityType) (mcert.OpenMessage, error)

	// AppendSignature adds a single signature to the entity's open message.
	// Appending a signature whose party already signed is a no-op.
	// If no message exists for the entity, it returns ErrOpenMessageNotFound.
	AppendSignature(ctx context.Context, entity mcert.SignedEntityType, sig mcert.SingleSignature) error

	// SetOpenMessageStatus updates the status of the entity's open message,
	// and records the hash of the certificate that closed it
	// when transitioning to StatusCertified.
	// If no message exists for the entity, it returns ErrOpenMessageNotFound.
	SetOpenMessageStatus(
		ctx context.Context,
		entity mcert.SignedEntityType,
		status mcert.OpenMessageStatus,
		certificateHash string,
	) error

	// ExpireOpenMessagesBeforeEpoch marks every open message
	// whose epoch is strictly below the given epoch as expired,
	// regardless of its current status,
	// and reports how many messages it changed.
	ExpireOpenMessagesBeforeEpoch(ctx context.Context, epoch mcert.Epoch) (int, error)
}

// CertificateStore is the persistence layer for finished certificates.
type CertificateStore interface {
	// SaveCertificate persists the certificate under its hash.
	// Saving a hash that already exists returns a CertificateExistsError,
	// and the store is unchanged.
	SaveCertificate(ctx context.Context, cert mcert.Certificate) error

	// GetCertificate returns the certificate with the given hash,
	// or ErrCertificateNotFound if it was never saved.
	GetCertificate(ctx context.Context, hash string) (mcert.Certificate, error)

	// GetLatestCertificates returns up to n certificates,
	// most recently saved first.
	GetLatestCertificates(ctx context.Context, n int) ([]mcert.Certificate, error)

	// GetLatestCertificateAtEpoch returns the most recently saved certificate
	// whose epoch is at or below the given epoch,
	// or ErrCertificateNotFound if there is none.
	GetLatestCertificateAtEpoch(ctx context.Context, epoch mcert.Epoch) (mcert.Certificate, error)
}

// Store is the combined persistence surface the certifier needs.
type Store interface {
	OpenMessageStore
	CertificateStore
}
