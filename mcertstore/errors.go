package mcertstore

import (
	"errors"
	"fmt"

	"github.com/cardano-scaling/mithril/mcert"
)

// OpenMessageExistsError is returned when creating an open message
// for a signed entity type that already has one.
// Existing carries the message that was already stored.
type OpenMessageExistsError struct {
	Existing mcert.OpenMessage
}

func (e OpenMessageExistsError) Error() string {
	return fmt.Sprintf(
		"open message already exists for signed entity %s",
		e.Existing.SignedEntityType,
	)
}

// CertificateExistsError is returned when saving a certificate
// under a hash that is already stored.
type CertificateExistsError struct {
	Hash string
}

func (e CertificateExistsError) Error() string {
	return fmt.Sprintf("certificate already stored with hash %s", e.Hash)
}

// ErrOpenMessageNotFound is returned when reading or updating an open message
// for a signed entity type that has none.
var ErrOpenMessageNotFound = errors.New("open message not found")

// ErrCertificateNotFound is returned when loading a certificate
// by a hash or epoch that matches nothing in the store.
var ErrCertificateNotFound = errors.New("certificate not found")
