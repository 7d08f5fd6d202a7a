package mcert

import (
	"errors"
	"strconv"
)

// Epoch is the monotonic period identifier
// scoping stake distributions, open messages, and certificates.
type Epoch uint64

// ErrEpochUnderflow is returned when an epoch offset
// would reach below the first epoch.
var ErrEpochUnderflow = errors.New("epoch offset out of bounds")

// OffsetToSignerRetrievalEpoch returns the epoch whose stake distribution
// the signers of this epoch's rounds are registered under.
// Signers register one epoch ahead of the rounds they participate in.
func (e Epoch) OffsetToSignerRetrievalEpoch() (Epoch, error) {
	if e == 0 {
		return 0, ErrEpochUnderflow
	}
	return e - 1, nil
}

func (e Epoch) String() string {
	return strconv.FormatUint(uint64(e), 10)
}
