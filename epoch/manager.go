package epoch

import (
	"github.com/pkg/errors"

	"github.com/phoreproject/chainstate/chainhash"
	"github.com/phoreproject/chainstate/db"
	"github.com/phoreproject/chainstate/primitives"
)

// ErrUnknownEpoch is returned for an epoch id the manager does not know.
var ErrUnknownEpoch = errors.New("unknown epoch")

// ErrNotEnoughApprovals is returned when approvals do not reach the threshold.
var ErrNotEnoughApprovals = errors.New("not enough approvals")

// ErrInvalidApprovals is returned for approvals that cannot belong to the
// epoch's block producers.
var ErrInvalidApprovals = errors.New("invalid approvals")

// BlockHeaderInfo is what the epoch manager records about every block.
type BlockHeaderInfo struct {
	Hash                  chainhash.Hash
	PrevHash              chainhash.Hash
	Height                primitives.BlockHeight
	LastFinalizedHeight   primitives.BlockHeight
	LastFinalBlockHash    chainhash.Hash
	Proposals             []primitives.ValidatorStake
	SlashedValidators     primitives.ChallengesResult
	ChunkMask             []bool
	TotalSupply           primitives.Balance
	LatestProtocolVersion primitives.ProtocolVersion
	Timestamp             uint64
}

// NewBlockHeaderInfo creates the info of a header.
func NewBlockHeaderInfo(header *primitives.BlockHeader, lastFinalizedHeight primitives.BlockHeight) *BlockHeaderInfo {
	return &BlockHeaderInfo{
		Hash:                  header.Hash(),
		PrevHash:              header.PrevHash,
		Height:                header.Height(),
		LastFinalizedHeight:   lastFinalizedHeight,
		LastFinalBlockHash:    header.LastFinalBlock(),
		Proposals:             header.InnerRest.PrevValidatorProposals,
		SlashedValidators:     header.InnerRest.ChallengesResult,
		ChunkMask:             header.InnerRest.ChunkMask,
		TotalSupply:           header.InnerRest.TotalSupply,
		LatestProtocolVersion: header.InnerRest.LatestProtocolVersion,
		Timestamp:             header.InnerLite.Timestamp,
	}
}

// ApprovalStake is the stake behind one approval slot.
type ApprovalStake struct {
	StakeThisEpoch primitives.Balance
	StakeNextEpoch primitives.Balance
	IsSlashed      bool
}

// ApprovalThresholdFunc decides whether approvals backed by stakes are
// enough to produce a block.
type ApprovalThresholdFunc func(approvals [][]byte, stakes []ApprovalStake) bool

// Manager answers epoch, shard layout and validator questions about blocks.
type Manager interface {
	GetEpochIDFromPrevBlock(prevHash chainhash.Hash) (primitives.EpochID, error)
	GetNextEpochIDFromPrevBlock(prevHash chainhash.Hash) (primitives.EpochID, error)
	GetShardLayout(epochID primitives.EpochID) (*primitives.ShardLayout, error)
	GetShardLayoutFromPrevBlock(prevHash chainhash.Hash) (*primitives.ShardLayout, error)
	GetEpochProtocolVersion(epochID primitives.EpochID) (primitives.ProtocolVersion, error)
	ShardIDToUID(shardID primitives.ShardID, epochID primitives.EpochID) (primitives.ShardUId, error)
	GetEpochBlockProducersOrdered(epochID primitives.EpochID) ([]primitives.ValidatorStake, error)

	// AddValidatorProposals records a block and returns the writes to merge
	// into the caller's transaction.
	AddValidatorProposals(info *BlockHeaderInfo) (*db.Batch, error)

	// VerifyApprovalsAndThresholdOrphan checks the approvals of a header whose
	// previous block is not known yet.
	VerifyApprovalsAndThresholdOrphan(
		epochID primitives.EpochID,
		threshold ApprovalThresholdFunc,
		prevHash chainhash.Hash,
		prevHeight primitives.BlockHeight,
		height primitives.BlockHeight,
		approvals [][]byte,
	) error
}
