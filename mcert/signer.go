package mcert

import (
	"encoding/binary"
	"encoding/hex"

	"golang.org/x/crypto/blake2b"

	"github.com/cardano-scaling/mithril/mcrypto"
)

// SignerWithStake is one entry of an epoch's stake distribution:
// a registered party, its verification key, and its stake.
type SignerWithStake struct {
	PartyID PartyID

	PubKey mcrypto.PubKey

	Stake uint64
}

// TotalStake sums the stake of every signer in the distribution.
func TotalStake(signers []SignerWithStake) uint64 {
	var total uint64
	for _, s := range signers {
		total += s.Stake
	}
	return total
}

// SignerSetHash is a hash across the whole distribution,
// used so independently built signature proofs can agree
// they reference the same signer set.
func SignerSetHash(reg *mcrypto.Registry, signers []SignerWithStake) string {
	h, err := blake2b.New256(nil)
	if err != nil {
		panic(err)
	}

	var stake [8]byte
	for _, s := range signers {
		h.Write([]byte(s.PartyID))
		h.Write(reg.Marshal(s.PubKey))
		binary.BigEndian.PutUint64(stake[:], s.Stake)
		h.Write(stake[:])
	}

	return hex.EncodeToString(h.Sum(nil))
}
