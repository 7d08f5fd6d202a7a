package mcert

import "fmt"

// SignedEntityTypeKind is the discriminant of a [SignedEntityType]:
// the category of state being certified, without its parameters.
// It is the key under which early signatures are buffered.
type SignedEntityTypeKind uint8

const (
	// KindStakeDistribution certifies the stake distribution snapshot of one epoch.
	KindStakeDistribution SignedEntityTypeKind = iota + 1

	// KindTransactionSnapshot certifies the transaction set
	// up to a block number, within one epoch.
	KindTransactionSnapshot
)

func (k SignedEntityTypeKind) String() string {
	switch k {
	case KindStakeDistribution:
		return "stake-distribution"
	case KindTransactionSnapshot:
		return "transaction-snapshot"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(k))
	}
}

// SignedEntityType identifies one certifiable instance of a category:
// the kind plus its parameters. Two values are the same entity
// if and only if every field matches.
type SignedEntityType struct {
	Kind SignedEntityTypeKind `json:"kind"`

	Epoch Epoch `json:"epoch"`

	// BlockNumber is only meaningful for transaction snapshots:
	// the inclusive upper block of the certified transaction set.
	BlockNumber uint64 `json:"block_number,omitempty"`
}

// StakeDistributionEntity returns the signed entity type
// for the stake distribution snapshot of the given epoch.
func StakeDistributionEntity(epoch Epoch) SignedEntityType {
	return SignedEntityType{Kind: KindStakeDistribution, Epoch: epoch}
}

// TransactionSnapshotEntity returns the signed entity type
// for the transaction set up to blockNumber as of the given epoch.
func TransactionSnapshotEntity(epoch Epoch, blockNumber uint64) SignedEntityType {
	return SignedEntityType{Kind: KindTransactionSnapshot, Epoch: epoch, BlockNumber: blockNumber}
}

// Discriminant returns the variant tag without its parameters.
func (t SignedEntityType) Discriminant() SignedEntityTypeKind {
	return t.Kind
}

// Key is the canonical storage key for this exact entity instance.
func (t SignedEntityType) Key() string {
	if t.Kind == KindTransactionSnapshot {
		return fmt.Sprintf("%s:%d:%d", t.Kind, t.Epoch, t.BlockNumber)
	}
	return fmt.Sprintf("%s:%d", t.Kind, t.Epoch)
}

func (t SignedEntityType) String() string {
	return t.Key()
}
