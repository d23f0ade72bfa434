package chain

import (
	"github.com/phoreproject/chainstate/chainhash"
	"github.com/phoreproject/chainstate/primitives"
	"github.com/phoreproject/chainstate/runtime"
)

// ShardUpdateResult is the result of updating one shard for a block. It is
// one of NewChunkResult, OldChunkResult or ReshardingResult.
type ShardUpdateResult interface {
	isShardUpdateResult()
}

// NewChunkResult is the result of applying a new chunk of a shard.
type NewChunkResult struct {
	ShardUID          primitives.ShardUId
	GasLimit          primitives.Gas
	ApplyResult       *runtime.ApplyResult
	ReshardingResults ReshardingResults
}

// OldChunkResult is the result of updating a shard whose chunk is missing
// from the block.
type OldChunkResult struct {
	ShardUID          primitives.ShardUId
	ApplyResult       *runtime.ApplyResult
	ReshardingResults ReshardingResults
}

// ReshardingResult is the result of applying a parent shard's changes to its
// children. The parent itself gets no chunk extra from it.
type ReshardingResult struct {
	ShardUID primitives.ShardUId
	Results  []runtime.ReshardingChildResult
}

func (NewChunkResult) isShardUpdateResult()   {}
func (OldChunkResult) isShardUpdateResult()   {}
func (ReshardingResult) isShardUpdateResult() {}

// ReshardingResults is the resharding payload of a shard update. It is
// either ApplyReshardingResults or StoreReshardingResults.
type ReshardingResults interface {
	isReshardingResults()
}

// ApplyReshardingResults are the children of a split shard, each with its
// state applied.
type ApplyReshardingResults []runtime.ReshardingChildResult

// StoreReshardingResults are parent changes kept until the children can
// apply them.
type StoreReshardingResults struct {
	Changes primitives.StateChangesForResharding
}

func (ApplyReshardingResults) isReshardingResults() {}
func (StoreReshardingResults) isReshardingResults() {}

// ShardApplyOutcome is what the execution of one shard produced: a result or
// an error.
type ShardApplyOutcome struct {
	ShardID primitives.ShardID
	Result  ShardUpdateResult
	Err     error
}

// BlockPreprocessInfo is what block preprocessing learned about a block.
type BlockPreprocessInfo struct {
	// IsCaughtUp is false when some shard of the block still waits for state
	// sync.
	IsCaughtUp       bool
	StateSyncInfo    *primitives.StateSyncInfo
	IncomingReceipts map[primitives.ShardID][]primitives.ReceiptProof
	ChallengesResult primitives.ChallengesResult
	ChallengedBlocks []chainhash.Hash
}
