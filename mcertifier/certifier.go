package mcertifier

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"github.com/cardano-scaling/mithril/mcert"
	"github.com/cardano-scaling/mithril/mcertstore"
	"github.com/cardano-scaling/mithril/mcrypto"
)

// CertifierConfig is the set of collaborators and policy knobs
// for a [CertifierService].
type CertifierConfig struct {
	Store mcertstore.Store

	Stakes StakeDistributionRetriever

	// Registry resolves and hashes signer public keys.
	Registry *mcrypto.Registry

	// Quorum is the minimum aggregated stake
	// required to mint a certificate.
	Quorum uint64

	// OpenMessageTimeout is the age past which an open round
	// may be marked expired.
	OpenMessageTimeout time.Duration

	// Clock defaults to the real clock when nil.
	Clock clockwork.Clock
}

// CertifierService is the persistence-backed [Service].
type CertifierService struct {
	log *slog.Logger

	store  mcertstore.Store
	stakes StakeDistributionRetriever
	reg    *mcrypto.Registry

	quorum  uint64
	timeout time.Duration
	clock   clockwork.Clock

	mu    sync.Mutex
	epoch mcert.Epoch
}

func NewCertifierService(log *slog.Logger, cfg CertifierConfig) (*CertifierService, error) {
	if cfg.Store == nil {
		return nil, errors.New("config: Store may not be nil")
	}
	if cfg.Stakes == nil {
		return nil, errors.New("config: Stakes may not be nil")
	}
	if cfg.Registry == nil {
		return nil, errors.New("config: Registry may not be nil")
	}
	if cfg.Quorum == 0 {
		return nil, errors.New("config: Quorum must be positive")
	}

	clock := cfg.Clock
	if clock == nil {
		clock = clockwork.NewRealClock()
	}

	return &CertifierService{
		log: log,

		store:  cfg.Store,
		stakes: cfg.Stakes,
		reg:    cfg.Registry,

		quorum:  cfg.Quorum,
		timeout: cfg.OpenMessageTimeout,
		clock:   clock,
	}, nil
}

func (s *CertifierService) InformEpoch(ctx context.Context, epoch mcert.Epoch) error {
	s.mu.Lock()
	s.epoch = epoch
	s.mu.Unlock()

	n, err := s.store.ExpireOpenMessagesBeforeEpoch(ctx, epoch)
	if err != nil {
		return fmt.Errorf("failed to expire open messages before epoch %s: %w", epoch, err)
	}

	s.log.Info("Epoch advanced", "epoch", epoch, "expired_open_messages", n)
	return nil
}

func (s *CertifierService) CreateOpenMessage(
	ctx context.Context,
	entity mcert.SignedEntityType,
	protocolMsg mcert.ProtocolMessage,
) (mcert.OpenMessage, error) {
	s.mu.Lock()
	current := s.epoch
	s.mu.Unlock()
	if current > entity.Epoch {
		s.log.Warn(
			"Opening round for an already-passed epoch",
			"entity", entity.Key(),
			"current_epoch", current,
		)
	}

	msg := mcert.OpenMessage{
		ID:               uuid.New(),
		SignedEntityType: entity,
		ProtocolMessage:  protocolMsg.Clone(),
		Epoch:            entity.Epoch,
		CreatedAt:        s.clock.Now(),
		Status:           mcert.StatusOpen,
	}

	err := s.store.CreateOpenMessage(ctx, msg)
	if err == nil {
		s.log.Info("Opened certification round", "entity", entity.Key())
		return msg, nil
	}

	// A uniqueness violation from the store means the round already exists,
	// possibly created concurrently.
	var existsErr mcertstore.OpenMessageExistsError
	if !errors.As(err, &existsErr) {
		return mcert.OpenMessage{}, fmt.Errorf(
			"failed to create open message for %s: %w", entity, err,
		)
	}

	if existsErr.Existing.ProtocolMessage.Equal(protocolMsg) {
		return existsErr.Existing, nil
	}
	return mcert.OpenMessage{}, ConflictError{Entity: entity}
}

func (s *CertifierService) RegisterSingleSignature(
	ctx context.Context,
	entity mcert.SignedEntityType,
	sig mcert.SingleSignature,
) error {
	msg, err := s.store.GetOpenMessage(ctx, entity)
	if err != nil {
		return err
	}

	// A certified round no longer accepts registrations;
	// for a late signer it is indistinguishable from a missing round.
	if msg.Status == mcert.StatusCertified {
		return mcertstore.ErrOpenMessageNotFound
	}

	signers, err := s.signersForEpoch(ctx, msg.Epoch)
	if err != nil {
		return err
	}

	var signer *mcert.SignerWithStake
	for i := range signers {
		if signers[i].PartyID == sig.PartyID {
			signer = &signers[i]
			break
		}
	}
	if signer == nil {
		return UnknownPartyError{PartyID: sig.PartyID, Epoch: msg.Epoch}
	}

	if !signer.PubKey.Verify(msg.ProtocolMessage.Hash(), sig.Signature) {
		return fmt.Errorf("rejecting signature from party %s: %w", sig.PartyID, mcrypto.ErrInvalidSignature)
	}

	if err := s.store.AppendSignature(ctx, entity, sig); err != nil {
		return fmt.Errorf("failed to append signature from party %s: %w", sig.PartyID, err)
	}

	s.log.Debug("Registered single signature", "entity", entity.Key(), "party", sig.PartyID)
	return nil
}

func (s *CertifierService) GetOpenMessage(
	ctx context.Context, entity mcert.SignedEntityType,
) (mcert.OpenMessage, error) {
	return s.store.GetOpenMessage(ctx, entity)
}

func (s *CertifierService) MarkOpenMessageIfExpired(
	ctx context.Context, entity mcert.SignedEntityType,
) (mcert.OpenMessage, error) {
	msg, err := s.store.GetOpenMessage(ctx, entity)
	if err != nil {
		return mcert.OpenMessage{}, err
	}

	if msg.Status != mcert.StatusOpen || s.timeout <= 0 {
		return msg, nil
	}
	if s.clock.Now().Sub(msg.CreatedAt) <= s.timeout {
		return msg, nil
	}

	if err := s.store.SetOpenMessageStatus(ctx, entity, mcert.StatusExpired, ""); err != nil {
		return mcert.OpenMessage{}, fmt.Errorf(
			"failed to expire open message for %s: %w", entity, err,
		)
	}

	s.log.Info("Expired certification round", "entity", entity.Key())
	msg.Status = mcert.StatusExpired
	return msg, nil
}

func (s *CertifierService) CreateCertificate(
	ctx context.Context, entity mcert.SignedEntityType,
) (*mcert.Certificate, error) {
	msg, err := s.store.GetOpenMessage(ctx, entity)
	if err != nil {
		return nil, err
	}

	switch msg.Status {
	case mcert.StatusCertified:
		cert, err := s.store.GetCertificate(ctx, msg.CertificateHash)
		if err != nil {
			return nil, fmt.Errorf(
				"round for %s certified but certificate %s unavailable: %w",
				entity, msg.CertificateHash, err,
			)
		}
		return &cert, nil
	case mcert.StatusExpired:
		// Expired rounds need re-evaluation before they can close.
		return nil, nil
	}

	signers, err := s.signersForEpoch(ctx, msg.Epoch)
	if err != nil {
		return nil, err
	}

	proof, err := s.newProof(msg.ProtocolMessage, signers)
	if err != nil {
		return nil, err
	}

	for _, sig := range msg.SingleSignatures {
		var key mcrypto.PubKey
		for _, signer := range signers {
			if signer.PartyID == sig.PartyID {
				key = signer.PubKey
				break
			}
		}
		if key == nil {
			// Registered against a stake distribution this epoch no longer has.
			s.log.Warn("Skipping signature from unknown party", "party", sig.PartyID)
			continue
		}
		if err := proof.AddSignature(sig.Signature, key); err != nil {
			return nil, fmt.Errorf("failed to aggregate signature from party %s: %w", sig.PartyID, err)
		}
	}

	if signed := proof.SignedStake(); signed < s.quorum {
		s.log.Info(
			"Quorum not met",
			"entity", entity.Key(),
			"signed_stake", signed,
			"quorum", s.quorum,
		)
		return nil, nil
	}

	var prevHash string
	latest, err := s.store.GetLatestCertificates(ctx, 1)
	if err != nil {
		return nil, fmt.Errorf("failed to load chain tip: %w", err)
	}
	if len(latest) > 0 {
		prevHash = latest[0].Hash
	}

	cert := mcert.Certificate{
		PreviousHash:       prevHash,
		Epoch:              msg.Epoch,
		SignedEntityType:   entity,
		ProtocolMessage:    msg.ProtocolMessage,
		Signers:            signers,
		AggregateSignature: proof.AsAggregate(),
	}
	cert.Hash = cert.ComputeHash(s.reg)

	if err := s.store.SaveCertificate(ctx, cert); err != nil {
		// A concurrent creation won the race; adopt its certificate.
		var existsErr mcertstore.CertificateExistsError
		if errors.As(err, &existsErr) {
			existing, err := s.store.GetCertificate(ctx, existsErr.Hash)
			if err != nil {
				return nil, fmt.Errorf("failed to load concurrently saved certificate: %w", err)
			}
			cert = existing
		} else {
			return nil, fmt.Errorf("failed to save certificate for %s: %w", entity, err)
		}
	}

	if err := s.store.SetOpenMessageStatus(ctx, entity, mcert.StatusCertified, cert.Hash); err != nil {
		return nil, fmt.Errorf("failed to mark round certified for %s: %w", entity, err)
	}

	s.log.Info(
		"Created certificate",
		"entity", entity.Key(),
		"hash", cert.Hash,
		"previous_hash", cert.PreviousHash,
	)
	return &cert, nil
}

func (s *CertifierService) GetCertificateByHash(
	ctx context.Context, hash string,
) (mcert.Certificate, error) {
	return s.store.GetCertificate(ctx, hash)
}

func (s *CertifierService) GetLatestCertificates(
	ctx context.Context, n int,
) ([]mcert.Certificate, error) {
	return s.store.GetLatestCertificates(ctx, n)
}

func (s *CertifierService) VerifyCertificateChain(ctx context.Context, epoch mcert.Epoch) error {
	cert, err := s.store.GetLatestCertificateAtEpoch(ctx, epoch)
	if errors.Is(err, mcertstore.ErrCertificateNotFound) {
		// Nothing certified at or before this epoch; an empty chain is valid.
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to load chain tip for epoch %s: %w", epoch, err)
	}

	seen := make(map[string]bool)
	for {
		if seen[cert.Hash] {
			return ChainIntegrityError{
				CertificateHash: cert.Hash,
				Reason:          "previous-hash cycle",
			}
		}
		seen[cert.Hash] = true

		if err := s.verifyCertificate(cert); err != nil {
			return err
		}

		if cert.IsGenesis() {
			return nil
		}

		prev, err := s.store.GetCertificate(ctx, cert.PreviousHash)
		if errors.Is(err, mcertstore.ErrCertificateNotFound) {
			return ChainIntegrityError{
				CertificateHash: cert.Hash,
				Reason:          fmt.Sprintf("previous certificate %s missing", cert.PreviousHash),
			}
		}
		if err != nil {
			return fmt.Errorf("failed to load certificate %s: %w", cert.PreviousHash, err)
		}
		cert = prev
	}
}

func (s *CertifierService) verifyCertificate(cert mcert.Certificate) error {
	if got := cert.ComputeHash(s.reg); got != cert.Hash {
		return ChainIntegrityError{
			CertificateHash: cert.Hash,
			Reason:          fmt.Sprintf("content hash mismatch (recomputed %s)", got),
		}
	}

	keys := make([]mcrypto.PubKey, len(cert.Signers))
	stakes := make([]uint64, len(cert.Signers))
	for i, signer := range cert.Signers {
		keys[i] = signer.PubKey
		stakes[i] = signer.Stake
	}

	signed, err := mcrypto.VerifyAggregate(
		cert.ProtocolMessage.Hash(), cert.AggregateSignature, keys, stakes,
	)
	if err != nil {
		return ChainIntegrityError{
			CertificateHash: cert.Hash,
			Reason:          fmt.Sprintf("invalid aggregate signature: %v", err),
		}
	}
	if signed < s.quorum {
		return ChainIntegrityError{
			CertificateHash: cert.Hash,
			Reason:          fmt.Sprintf("aggregated stake %d below quorum %d", signed, s.quorum),
		}
	}
	return nil
}

// signersForEpoch resolves the stake distribution for a round's epoch,
// offset back to the epoch its signers registered in.
func (s *CertifierService) signersForEpoch(
	ctx context.Context, epoch mcert.Epoch,
) ([]mcert.SignerWithStake, error) {
	retrievalEpoch, err := epoch.OffsetToSignerRetrievalEpoch()
	if err != nil {
		return nil, err
	}

	signers, err := s.stakes.GetStakeDistribution(ctx, retrievalEpoch)
	if err != nil {
		return nil, fmt.Errorf(
			"failed to retrieve stake distribution for epoch %s: %w", retrievalEpoch, err,
		)
	}
	return signers, nil
}

func (s *CertifierService) newProof(
	msg mcert.ProtocolMessage, signers []mcert.SignerWithStake,
) (*mcrypto.StakeSignatureProof, error) {
	keys := make([]mcrypto.PubKey, len(signers))
	stakes := make([]uint64, len(signers))
	for i, signer := range signers {
		keys[i] = signer.PubKey
		stakes[i] = signer.Stake
	}

	proof, err := mcrypto.NewStakeSignatureProof(
		msg.Hash(), keys, stakes, mcert.SignerSetHash(s.reg, signers),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to build signature proof: %w", err)
	}
	return proof, nil
}
