package mcertmemstore

import (
	"context"
	"slices"
	"sync"

	"github.com/cardano-scaling/mithril/mcert"
	"github.com/cardano-scaling/mithril/mcertstore"
)

// Store is an in-memory implementation of [mcertstore.Store],
// suitable for tests and single-process deployments.
type Store struct {
	mu sync.RWMutex

	openMessages map[mcert.SignedEntityType]mcert.OpenMessage

	// Certificates by hash, and hashes in save order.
	certs     map[string]mcert.Certificate
	certOrder []string
}

func NewStore() *Store {
	return &Store{
		openMessages: make(map[mcert.SignedEntityType]mcert.OpenMessage),
		certs:        make(map[string]mcert.Certificate),
	}
}

func (s *Store) CreateOpenMessage(_ context.Context, msg mcert.OpenMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.openMessages[msg.SignedEntityType]; ok {
		return mcertstore.OpenMessageExistsError{Existing: cloneOpenMessage(existing)}
	}

	s.openMessages[msg.SignedEntityType] = cloneOpenMessage(msg)
	return nil
}

func (s *Store) GetOpenMessage(_ context.Context, entity mcert.SignedEntityType) (mcert.OpenMessage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	msg, ok := s.openMessages[entity]
	if !ok {
		return mcert.OpenMessage{}, mcertstore.ErrOpenMessageNotFound
	}
	return cloneOpenMessage(msg), nil
}

func (s *Store) AppendSignature(
	_ context.Context,
	entity mcert.SignedEntityType,
	sig mcert.SingleSignature,
) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	msg, ok := s.openMessages[entity]
	if !ok {
		return mcertstore.ErrOpenMessageNotFound
	}

	if msg.HasSignatureFromParty(sig.PartyID) {
		return nil
	}

	msg.SingleSignatures = append(
		slices.Clone(msg.SingleSignatures), cloneSignature(sig),
	)
	s.openMessages[entity] = msg
	return nil
}

func (s *Store) SetOpenMessageStatus(
	_ context.Context,
	entity mcert.SignedEntityType,
	status mcert.OpenMessageStatus,
	certificateHash string,
) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	msg, ok := s.openMessages[entity]
	if !ok {
		return mcertstore.ErrOpenMessageNotFound
	}

	msg.Status = status
	msg.CertificateHash = certificateHash
	s.openMessages[entity] = msg
	return nil
}

func (s *Store) ExpireOpenMessagesBeforeEpoch(_ context.Context, epoch mcert.Epoch) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var n int
	for entity, msg := range s.openMessages {
		if msg.Epoch >= epoch || msg.Status != mcert.StatusOpen {
			continue
		}
		msg.Status = mcert.StatusExpired
		s.openMessages[entity] = msg
		n++
	}
	return n, nil
}

func (s *Store) SaveCertificate(_ context.Context, cert mcert.Certificate) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.certs[cert.Hash]; ok {
		return mcertstore.CertificateExistsError{Hash: cert.Hash}
	}

	s.certs[cert.Hash] = cert
	s.certOrder = append(s.certOrder, cert.Hash)
	return nil
}

func (s *Store) GetCertificate(_ context.Context, hash string) (mcert.Certificate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	cert, ok := s.certs[hash]
	if !ok {
		return mcert.Certificate{}, mcertstore.ErrCertificateNotFound
	}
	return cert, nil
}

func (s *Store) GetLatestCertificates(_ context.Context, n int) ([]mcert.Certificate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if n > len(s.certOrder) {
		n = len(s.certOrder)
	}

	out := make([]mcert.Certificate, 0, n)
	for i := len(s.certOrder) - 1; i >= 0 && len(out) < n; i-- {
		out = append(out, s.certs[s.certOrder[i]])
	}
	return out, nil
}

func (s *Store) GetLatestCertificateAtEpoch(_ context.Context, epoch mcert.Epoch) (mcert.Certificate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for i := len(s.certOrder) - 1; i >= 0; i-- {
		cert := s.certs[s.certOrder[i]]
		if cert.Epoch <= epoch {
			return cert, nil
		}
	}
	return mcert.Certificate{}, mcertstore.ErrCertificateNotFound
}

func cloneOpenMessage(msg mcert.OpenMessage) mcert.OpenMessage {
	msg.ProtocolMessage = msg.ProtocolMessage.Clone()

	sigs := make([]mcert.SingleSignature, len(msg.SingleSignatures))
	for i, sig := range msg.SingleSignatures {
		sigs[i] = cloneSignature(sig)
	}
	msg.SingleSignatures = sigs
	return msg
}

func cloneSignature(sig mcert.SingleSignature) mcert.SingleSignature {
	sig.Signature = slices.Clone(sig.Signature)
	sig.WonIndexes = slices.Clone(sig.WonIndexes)
	return sig
}
