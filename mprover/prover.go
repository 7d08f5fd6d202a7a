// Package mprover computes membership proofs
// for certified transactions against a two-level Merkle commitment,
// partitioned by block range so that only touched ranges
// need their trees rebuilt.
package mprover

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"github.com/cardano-scaling/mithril/mcert"
	"github.com/cardano-scaling/mithril/mmerkle"
	"github.com/cardano-scaling/mithril/mtxstore"
)

// Service computes transaction membership proofs.
type Service interface {
	// ComputeTransactionsProofs returns one [TransactionsSetProof]
	// covering every requested hash known at or below blockNumber.
	// Unknown hashes are dropped, not errored;
	// when none of the requested hashes are known, the result is empty.
	ComputeTransactionsProofs(
		ctx context.Context,
		blockNumber uint64,
		hashes []mcert.TransactionHash,
	) ([]TransactionsSetProof, error)

	// ComputeTransactionsCommitment returns the root
	// of the two-level commitment over all transactions
	// at or below blockNumber.
	ComputeTransactionsCommitment(ctx context.Context, blockNumber uint64) (mmerkle.Blake2b256ID, error)
}

// ProverService is the [Service] implementation
// backed by a [mtxstore.TransactionRetriever].
type ProverService struct {
	log *slog.Logger

	retriever mtxstore.TransactionRetriever

	rangeLength uint64
}

// NewProverService returns a prover partitioning transactions
// into block ranges of the given length;
// zero means [mcert.BlockRangeLength].
func NewProverService(
	log *slog.Logger,
	retriever mtxstore.TransactionRetriever,
	rangeLength uint64,
) *ProverService {
	if rangeLength == 0 {
		rangeLength = mcert.BlockRangeLength
	}

	return &ProverService{
		log: log,

		retriever: retriever,

		rangeLength: rangeLength,
	}
}

func (s *ProverService) ComputeTransactionsProofs(
	ctx context.Context,
	blockNumber uint64,
	hashes []mcert.TransactionHash,
) ([]TransactionsSetProof, error) {
	txs, err := s.retriever.GetUpTo(ctx, blockNumber)
	if err != nil {
		return nil, fmt.Errorf(
			"failed to retrieve transactions up to block %d: %w", blockNumber, err,
		)
	}

	requested := make(map[mcert.TransactionHash]struct{}, len(hashes))
	for _, h := range hashes {
		requested[h] = struct{}{}
	}

	// Certifiable hashes, in the order they first appear
	// among the retrieved transactions.
	var certifiable []mcert.TransactionHash
	for _, tx := range txs {
		if _, ok := requested[tx.Hash]; !ok {
			continue
		}
		certifiable = append(certifiable, tx.Hash)
		delete(requested, tx.Hash)
	}
	if len(certifiable) == 0 {
		s.log.Debug(
			"No certifiable transactions among requested hashes",
			"requested", len(hashes),
			"block_number", blockNumber,
		)
		return nil, nil
	}

	m, err := s.buildCommitment(txs)
	if err != nil {
		return nil, err
	}

	leaves := make([]mmerkle.Blake2b256ID, len(certifiable))
	for i, h := range certifiable {
		leaves[i] = mmerkle.Blake2b256Leaf([]byte(h))
	}

	proof, err := m.Prove(leaves)
	if err != nil {
		return nil, fmt.Errorf("failed to compute transaction proof: %w", err)
	}

	s.log.Debug(
		"Computed transactions proof",
		"certified", len(certifiable),
		"dropped", len(hashes)-len(certifiable),
		"block_number", blockNumber,
	)
	return []TransactionsSetProof{{
		TransactionHashes: certifiable,
		Proof:             proof,
	}}, nil
}

func (s *ProverService) ComputeTransactionsCommitment(
	ctx context.Context, blockNumber uint64,
) (mmerkle.Blake2b256ID, error) {
	txs, err := s.retriever.GetUpTo(ctx, blockNumber)
	if err != nil {
		return mmerkle.Blake2b256ID{}, fmt.Errorf(
			"failed to retrieve transactions up to block %d: %w", blockNumber, err,
		)
	}

	m, err := s.buildCommitment(txs)
	if err != nil {
		return mmerkle.Blake2b256ID{}, err
	}
	return m.RootID(), nil
}

// buildCommitment partitions the transactions into block ranges,
// builds one tree per range in retrieval order,
// and assembles the two-level map with ranges keyed in ascending start order.
func (s *ProverService) buildCommitment(
	txs []mcert.Transaction,
) (*mmerkle.Map[mcert.BlockRange, mmerkle.Blake2b256ID], error) {
	byRange := make(map[mcert.BlockRange][]mmerkle.Blake2b256ID)
	for _, tx := range txs {
		br := mcert.BlockRangeAt(s.rangeLength, tx.BlockNumber)
		byRange[br] = append(byRange[br], mmerkle.Blake2b256Leaf([]byte(tx.Hash)))
	}

	ranges := make([]mcert.BlockRange, 0, len(byRange))
	for br := range byRange {
		ranges = append(ranges, br)
	}
	sort.Slice(ranges, func(i, j int) bool {
		return ranges[i].Start < ranges[j].Start
	})

	entries := make([]mmerkle.MapEntry[mcert.BlockRange, mmerkle.Blake2b256ID], len(ranges))
	for i, br := range ranges {
		tree, err := mmerkle.NewTree(mmerkle.Blake2b256Scheme{}, byRange[br])
		if err != nil {
			return nil, fmt.Errorf("failed to build tree for block range %s: %w", br, err)
		}
		entries[i] = mmerkle.MapEntry[mcert.BlockRange, mmerkle.Blake2b256ID]{
			Key:   br,
			Value: mmerkle.TreeValue(tree),
		}
	}

	m, err := mmerkle.NewMap(mmerkle.Blake2b256Scheme{}, entries)
	if err != nil {
		return nil, fmt.Errorf("failed to assemble block range commitment: %w", err)
	}
	return m, nil
}
