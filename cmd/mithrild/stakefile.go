package main

import (
	"crypto/ed25519"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"

	"github.com/cardano-scaling/mithril/mcert"
	"github.com/cardano-scaling/mithril/mcrypto"
)

// stakeFileEntry is one signer in the stake distribution file:
// a JSON array of objects like
//
//	{"party_id": "party-0", "public_key": "<hex ed25519 key>", "stake": 100}
type stakeFileEntry struct {
	PartyID   string `json:"party_id"`
	PublicKey string `json:"public_key"`
	Stake     uint64 `json:"stake"`
}

func loadStakeDistribution(path string) ([]mcert.SignerWithStake, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read stake file: %w", err)
	}

	var entries []stakeFileEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("failed to parse stake file %s: %w", path, err)
	}
	if len(entries) == 0 {
		return nil, fmt.Errorf("stake file %s lists no signers", path)
	}

	signers := make([]mcert.SignerWithStake, len(entries))
	seen := make(map[string]bool, len(entries))
	for i, e := range entries {
		if e.PartyID == "" {
			return nil, fmt.Errorf("stake file entry %d has no party_id", i)
		}
		if seen[e.PartyID] {
			return nil, fmt.Errorf("stake file lists party %s twice", e.PartyID)
		}
		seen[e.PartyID] = true

		if e.Stake == 0 {
			return nil, fmt.Errorf("party %s has zero stake", e.PartyID)
		}

		keyBytes, err := hex.DecodeString(e.PublicKey)
		if err != nil {
			return nil, fmt.Errorf("invalid public key for party %s: %w", e.PartyID, err)
		}
		if len(keyBytes) != ed25519.PublicKeySize {
			return nil, fmt.Errorf(
				"public key for party %s is %d bytes, want %d",
				e.PartyID, len(keyBytes), ed25519.PublicKeySize,
			)
		}

		signers[i] = mcert.SignerWithStake{
			PartyID: mcert.PartyID(e.PartyID),
			PubKey:  mcrypto.Ed25519PubKey(keyBytes),
			Stake:   e.Stake,
		}
	}

	return signers, nil
}
