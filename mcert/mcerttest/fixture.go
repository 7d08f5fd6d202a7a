package mcerttest

import (
	"context"
	"fmt"

	"github.com/cardano-scaling/mithril/mcert"
	"github.com/cardano-scaling/mithril/mcrypto"
	"github.com/cardano-scaling/mithril/mcrypto/mcryptotest"
)

// Fixture is a deterministic signer set with stakes,
// for tests exercising the certification pipeline.
// Signer i holds stake 100*(i+1), so quorum thresholds are easy
// to pick relative to specific signer subsets.
type Fixture struct {
	Registry *mcrypto.Registry

	Signers []mcrypto.Ed25519Signer

	Distribution []mcert.SignerWithStake
}

func NewFixture(nSigners int) *Fixture {
	reg := new(mcrypto.Registry)
	mcrypto.RegisterEd25519(reg)

	signers := mcryptotest.DeterministicEd25519Signers(nSigners)

	dist := make([]mcert.SignerWithStake, nSigners)
	for i, s := range signers {
		dist[i] = mcert.SignerWithStake{
			PartyID: mcert.PartyID(fmt.Sprintf("party-%d", i)),
			PubKey:  s.PubKey(),
			Stake:   uint64(100 * (i + 1)),
		}
	}

	return &Fixture{
		Registry: reg,

		Signers: signers,

		Distribution: dist,
	}
}

// SingleSignature produces signer idx's signature
// over the protocol message's hash.
func (f *Fixture) SingleSignature(ctx context.Context, idx int, msg mcert.ProtocolMessage) (mcert.SingleSignature, error) {
	sig, err := f.Signers[idx].Sign(ctx, msg.Hash())
	if err != nil {
		return mcert.SingleSignature{}, fmt.Errorf("failed to sign protocol message: %w", err)
	}

	return mcert.SingleSignature{
		PartyID:    f.Distribution[idx].PartyID,
		Signature:  sig,
		WonIndexes: []uint64{uint64(idx)},
	}, nil
}

// Keys returns the distribution's public keys in candidate index order.
func (f *Fixture) Keys() []mcrypto.PubKey {
	keys := make([]mcrypto.PubKey, len(f.Distribution))
	for i, s := range f.Distribution {
		keys[i] = s.PubKey
	}
	return keys
}

// Stakes returns the distribution's stakes in candidate index order.
func (f *Fixture) Stakes() []uint64 {
	stakes := make([]uint64, len(f.Distribution))
	for i, s := range f.Distribution {
		stakes[i] = s.Stake
	}
	return stakes
}

// KeyHash returns the hash identifying the fixture's signer set.
func (f *Fixture) KeyHash() string {
	return mcert.SignerSetHash(f.Registry, f.Distribution)
}

// ProtocolMessage returns a message whose content is derived from digest,
// so two fixtures using different digests produce distinct messages.
func ProtocolMessage(digest string) mcert.ProtocolMessage {
	msg := mcert.NewProtocolMessage()
	msg.SetPart(mcert.PartKeySnapshotDigest, digest)
	return msg
}
