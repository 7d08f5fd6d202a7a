package mcertifier

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/cardano-scaling/mithril/mcert"
	"github.com/cardano-scaling/mithril/mcertstore"
	"github.com/cardano-scaling/mithril/msigbuffer"
)

// BufferedCertifierService decorates a [Service] so that signatures
// arriving before their round exists are buffered instead of rejected,
// then replayed when the round is finally opened.
//
// Only the not-found outcome of RegisterSingleSignature is intercepted;
// every other operation and error passes through unchanged.
type BufferedCertifierService struct {
	log *slog.Logger

	inner Service
	buf   msigbuffer.Buffer
}

func NewBufferedCertifierService(
	log *slog.Logger, inner Service, buf msigbuffer.Buffer,
) *BufferedCertifierService {
	return &BufferedCertifierService{
		log: log,

		inner: inner,
		buf:   buf,
	}
}

func (s *BufferedCertifierService) InformEpoch(ctx context.Context, epoch mcert.Epoch) error {
	return s.inner.InformEpoch(ctx, epoch)
}

// CreateOpenMessage opens the round through the inner service,
// then replays every signature buffered under the entity's kind.
//
// The replay works on a snapshot of the buffer:
// a signature buffered between the snapshot and the removal
// stays buffered until the next round of that kind opens.
func (s *BufferedCertifierService) CreateOpenMessage(
	ctx context.Context,
	entity mcert.SignedEntityType,
	protocolMsg mcert.ProtocolMessage,
) (mcert.OpenMessage, error) {
	msg, err := s.inner.CreateOpenMessage(ctx, entity, protocolMsg)
	if err != nil {
		return mcert.OpenMessage{}, err
	}

	kind := entity.Discriminant()
	buffered, err := s.buf.GetBufferedSignatures(ctx, kind)
	if err != nil {
		return mcert.OpenMessage{}, fmt.Errorf(
			"failed to read buffered signatures for %s: %w", kind, err,
		)
	}
	if len(buffered) == 0 {
		return msg, nil
	}

	for _, sig := range buffered {
		// A replay failure aborts the drain with the buffer intact:
		// silently dropping a signature would quietly shrink quorum.
		if err := s.inner.RegisterSingleSignature(ctx, entity, sig); err != nil {
			return mcert.OpenMessage{}, fmt.Errorf(
				"failed to replay buffered signature from party %s for %s: %w",
				sig.PartyID, entity, err,
			)
		}
	}

	if err := s.buf.RemoveBufferedSignatures(ctx, kind, buffered); err != nil {
		return mcert.OpenMessage{}, fmt.Errorf(
			"failed to remove replayed signatures for %s: %w", kind, err,
		)
	}

	s.log.Info(
		"Replayed buffered signatures",
		"entity", entity.Key(),
		"count", len(buffered),
	)
	return msg, nil
}

func (s *BufferedCertifierService) RegisterSingleSignature(
	ctx context.Context,
	entity mcert.SignedEntityType,
	sig mcert.SingleSignature,
) error {
	err := s.inner.RegisterSingleSignature(ctx, entity, sig)
	if !errors.Is(err, mcertstore.ErrOpenMessageNotFound) {
		return err
	}

	kind := entity.Discriminant()
	if err := s.buf.BufferSignature(ctx, kind, sig); err != nil {
		return fmt.Errorf(
			"failed to buffer signature from party %s for %s: %w",
			sig.PartyID, kind, err,
		)
	}

	s.log.Debug(
		"Buffered out-of-order signature",
		"kind", kind.String(),
		"party", sig.PartyID,
	)
	return nil
}

func (s *BufferedCertifierService) GetOpenMessage(
	ctx context.Context, entity mcert.SignedEntityType,
) (mcert.OpenMessage, error) {
	return s.inner.GetOpenMessage(ctx, entity)
}

func (s *BufferedCertifierService) MarkOpenMessageIfExpired(
	ctx context.Context, entity mcert.SignedEntityType,
) (mcert.OpenMessage, error) {
	return s.inner.MarkOpenMessageIfExpired(ctx, entity)
}

func (s *BufferedCertifierService) CreateCertificate(
	ctx context.Context, entity mcert.SignedEntityType,
) (*mcert.Certificate, error) {
	return s.inner.CreateCertificate(ctx, entity)
}

func (s *BufferedCertifierService) GetCertificateByHash(
	ctx context.Context, hash string,
) (mcert.Certificate, error) {
	return s.inner.GetCertificateByHash(ctx, hash)
}

func (s *BufferedCertifierService) GetLatestCertificates(
	ctx context.Context, n int,
) ([]mcert.Certificate, error) {
	return s.inner.GetLatestCertificates(ctx, n)
}

func (s *BufferedCertifierService) VerifyCertificateChain(
	ctx context.Context, epoch mcert.Epoch,
) error {
	return s.inner.VerifyCertificateChain(ctx, epoch)
}
