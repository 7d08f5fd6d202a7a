package mcertifier

import (
	"fmt"

	"github.com/cardano-scaling/mithril/mcert"
)

// ConflictError is returned when creating an open message
// for a signed entity type that already has a live round
// with a different protocol message.
// The existing round wins; it is never silently superseded.
type ConflictError struct {
	Entity mcert.SignedEntityType
}

func (e ConflictError) Error() string {
	return fmt.Sprintf(
		"open message for signed entity %s already exists with a different protocol message",
		e.Entity,
	)
}

// UnknownPartyError is returned when registering a signature
// from a party absent from the round's stake distribution.
type UnknownPartyError struct {
	PartyID mcert.PartyID
	Epoch   mcert.Epoch
}

func (e UnknownPartyError) Error() string {
	return fmt.Sprintf(
		"party %s not in the stake distribution for epoch %s",
		e.PartyID, e.Epoch,
	)
}

// ChainIntegrityError is returned by certificate chain verification
// when it detects a broken link.
// CertificateHash identifies the first certificate that failed.
type ChainIntegrityError struct {
	CertificateHash string
	Reason          string
}

func (e ChainIntegrityError) Error() string {
	return fmt.Sprintf(
		"certificate chain broken at %s: %s",
		e.CertificateHash, e.Reason,
	)
}
