package msqlite

import (
	"encoding/json"
	"fmt"

	"github.com/cardano-scaling/mithril/mcert"
	"github.com/cardano-scaling/mithril/mcrypto"
)

// certificateJSON is the stored form of [mcert.Certificate].
// Signer keys are flattened through the registry
// so any registered key type round-trips.
type certificateJSON struct {
	Hash         string `json:"hash"`
	PreviousHash string `json:"previous_hash"`

	Epoch uint64 `json:"epoch"`

	EntityKind        uint8  `json:"entity_kind"`
	EntityEpoch       uint64 `json:"entity_epoch"`
	EntityBlockNumber uint64 `json:"entity_block_number"`

	ProtocolMessage mcert.ProtocolMessage `json:"protocol_message"`

	Signers []signerJSON `json:"signers"`

	PubKeyHash string                    `json:"pub_key_hash"`
	Signatures []mcrypto.SparseSignature `json:"signatures"`
}

type signerJSON struct {
	PartyID string `json:"party_id"`
	Key     []byte `json:"key"`
	Stake   uint64 `json:"stake"`
}

func (s *Store) marshalCertificate(cert mcert.Certificate) ([]byte, error) {
	cj := certificateJSON{
		Hash:         cert.Hash,
		PreviousHash: cert.PreviousHash,

		Epoch: uint64(cert.Epoch),

		EntityKind:        uint8(cert.SignedEntityType.Kind),
		EntityEpoch:       uint64(cert.SignedEntityType.Epoch),
		EntityBlockNumber: cert.SignedEntityType.BlockNumber,

		ProtocolMessage: cert.ProtocolMessage,

		PubKeyHash: cert.AggregateSignature.PubKeyHash,
		Signatures: cert.AggregateSignature.Signatures,
	}

	if len(cert.Signers) > 0 {
		cj.Signers = make([]signerJSON, len(cert.Signers))
		for i, signer := range cert.Signers {
			cj.Signers[i] = signerJSON{
				PartyID: string(signer.PartyID),
				Key:     s.reg.Marshal(signer.PubKey),
				Stake:   signer.Stake,
			}
		}
	}

	body, err := json.Marshal(cj)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal certificate %s: %w", cert.Hash, err)
	}
	return body, nil
}

func (s *Store) unmarshalCertificate(body []byte) (mcert.Certificate, error) {
	var cj certificateJSON
	if err := json.Unmarshal(body, &cj); err != nil {
		return mcert.Certificate{}, fmt.Errorf("failed to unmarshal certificate: %w", err)
	}

	cert := mcert.Certificate{
		Hash:         cj.Hash,
		PreviousHash: cj.PreviousHash,

		Epoch: mcert.Epoch(cj.Epoch),

		SignedEntityType: mcert.SignedEntityType{
			Kind:        mcert.SignedEntityTypeKind(cj.EntityKind),
			Epoch:       mcert.Epoch(cj.EntityEpoch),
			BlockNumber: cj.EntityBlockNumber,
		},

		ProtocolMessage: cj.ProtocolMessage,

		AggregateSignature: mcrypto.AggregateSignature{
			PubKeyHash: cj.PubKeyHash,
			Signatures: cj.Signatures,
		},
	}

	if len(cj.Signers) > 0 {
		cert.Signers = make([]mcert.SignerWithStake, len(cj.Signers))
		for i, signer := range cj.Signers {
			key, err := s.reg.Unmarshal(signer.Key)
			if err != nil {
				return mcert.Certificate{}, fmt.Errorf(
					"failed to unmarshal key for party %s in certificate %s: %w",
					signer.PartyID, cj.Hash, err,
				)
			}
			cert.Signers[i] = mcert.SignerWithStake{
				PartyID: mcert.PartyID(signer.PartyID),
				PubKey:  key,
				Stake:   signer.Stake,
			}
		}
	}

	return cert, nil
}

func marshalProtocolMessage(msg mcert.ProtocolMessage) ([]byte, error) {
	b, err := json.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal protocol message: %w", err)
	}
	return b, nil
}

func unmarshalProtocolMessage(b []byte) (mcert.ProtocolMessage, error) {
	var msg mcert.ProtocolMessage
	if err := json.Unmarshal(b, &msg); err != nil {
		return mcert.ProtocolMessage{}, fmt.Errorf("failed to unmarshal protocol message: %w", err)
	}
	return msg, nil
}

func marshalWonIndexes(indexes []uint64) ([]byte, error) {
	b, err := json.Marshal(indexes)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal won indexes: %w", err)
	}
	return b, nil
}

func unmarshalWonIndexes(b []byte) ([]uint64, error) {
	var indexes []uint64
	if err := json.Unmarshal(b, &indexes); err != nil {
		return nil, fmt.Errorf("failed to unmarshal won indexes: %w", err)
	}
	return indexes, nil
}
