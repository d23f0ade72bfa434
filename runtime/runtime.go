package runtime

import (
	"github.com/phoreproject/chainstate/chainhash"
	"github.com/phoreproject/chainstate/db"
	"github.com/phoreproject/chainstate/flat"
	"github.com/phoreproject/chainstate/primitives"
)

// ApplyChunkReason is why a chunk is applied.
type ApplyChunkReason uint8

const (
	// UpdateTrackedShard applies a chunk of a shard this node tracks.
	UpdateTrackedShard ApplyChunkReason = iota
	// ValidateChunkStateWitness replays a chunk to validate a witness.
	ValidateChunkStateWitness
	// ViewTrackedShard applies a chunk for a read-only view.
	ViewTrackedShard
)

// StorageDataSource is where the execution engine reads state from.
type StorageDataSource uint8

const (
	// SourceDB reads through flat storage and the trie.
	SourceDB StorageDataSource = iota
	// SourceDBTrieOnly reads only the trie.
	SourceDBTrieOnly
	// SourceRecorded reads from a recorded partial state.
	SourceRecorded
)

// StorageConfig tells the execution engine which state to apply on.
type StorageConfig struct {
	StateRoot      chainhash.Hash
	UseFlatStorage bool
	Source         StorageDataSource
	RecordStorage  bool
}

// NewStorageConfig reads the state at stateRoot from the database.
func NewStorageConfig(stateRoot chainhash.Hash, useFlatStorage bool) StorageConfig {
	return StorageConfig{
		StateRoot:      stateRoot,
		UseFlatStorage: useFlatStorage,
		Source:         SourceDB,
	}
}

// ShardContext is the shard part of the chunk application context.
type ShardContext struct {
	ShardID                        primitives.ShardID
	LastValidatorProposals         []primitives.ValidatorStake
	GasLimit                       primitives.Gas
	IsNewChunk                     bool
	IsFirstBlockWithChunkOfVersion bool
}

// BlockContext is the block part of the chunk application context.
type BlockContext struct {
	Height         primitives.BlockHeight
	BlockHash      chainhash.Hash
	PrevBlockHash  chainhash.Hash
	BlockTimestamp uint64
	GasPrice       primitives.Balance
	Challenges     primitives.ChallengesResult
	RandomSeed     chainhash.Hash
	CongestionInfo map[primitives.ShardID]primitives.CongestionInfo
}

// BlockContextFromHeader creates the block context of a header. gasPrice is
// the gas price set by the previous block.
func BlockContextFromHeader(header *primitives.BlockHeader, gasPrice primitives.Balance, congestionInfo map[primitives.ShardID]primitives.CongestionInfo) BlockContext {
	return BlockContext{
		Height:         header.Height(),
		BlockHash:      header.Hash(),
		PrevBlockHash:  header.PrevHash,
		BlockTimestamp: header.InnerLite.Timestamp,
		GasPrice:       gasPrice,
		Challenges:     header.InnerRest.ChallengesResult,
		RandomSeed:     header.InnerRest.RandomValue,
		CongestionInfo: congestionInfo,
	}
}

// ApplyResult is the outcome of applying a chunk to a shard.
type ApplyResult struct {
	NewRoot            chainhash.Hash
	TrieChanges        primitives.TrieChanges
	Outcomes           []primitives.ExecutionOutcomeWithID
	OutgoingReceipts   []primitives.Receipt
	ValidatorProposals []primitives.ValidatorStake
	TotalGasBurnt      primitives.Gas
	TotalBalanceBurnt  primitives.Balance
	// Proof is the recorded partial state, nil unless storage was recorded.
	Proof                    *primitives.PartialState
	ProcessedDelayedReceipts []primitives.Receipt
	AppliedReceiptsHash      chainhash.Hash
	ContractAccesses         []chainhash.Hash
	CongestionInfo           *primitives.CongestionInfo
}

// ReshardingChildResult is the result of applying a parent shard's changes
// to one child shard.
type ReshardingChildResult struct {
	ShardUID    primitives.ShardUId
	TrieChanges primitives.TrieChanges
	NewRoot     chainhash.Hash
}

// FlatStorageManager persists flat state deltas and moves flat heads. Every
// method returns writes to merge into the caller's transaction.
type FlatStorageManager interface {
	SaveFlatStateChanges(
		blockHash chainhash.Hash,
		prevHash chainhash.Hash,
		height primitives.BlockHeight,
		shardUID primitives.ShardUId,
		changes []primitives.StateChange,
	) (*db.Batch, error)
	UpdateFlatStorageForShard(view flat.View, shardUID primitives.ShardUId, finalBlockHash chainhash.Hash) (*db.Batch, error)
}

// Adapter is the execution engine.
type Adapter interface {
	ApplyChunk(
		storage StorageConfig,
		reason ApplyChunkReason,
		shard ShardContext,
		block BlockContext,
		receipts []primitives.Receipt,
		transactions []primitives.SignedTransaction,
	) (*ApplyResult, error)
	GetFlatStorageManager() FlatStorageManager
}
