package chain

import (
	"sort"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/phoreproject/chainstate/chainhash"
	"github.com/phoreproject/chainstate/config"
	"github.com/phoreproject/chainstate/epoch"
	"github.com/phoreproject/chainstate/primitives"
	"github.com/phoreproject/chainstate/runtime"
	"github.com/phoreproject/chainstate/store"
)

var log = logrus.WithField("module", "chain")

// ChainUpdate collects the changes of processing a block. Nothing reaches
// the database before Commit, so an update can be dropped at any point
// without leaving partial state behind.
//
// A ChainUpdate is not safe for concurrent use, and only one update should be
// built on top of a store at a time.
type ChainUpdate struct {
	epochManager epoch.Manager
	runtime      runtime.Adapter
	storeUpdate  *store.ChainStoreUpdate

	doomslugThresholdMode   config.DoomslugThresholdMode
	saveStateTransitionData bool

	committed bool
}

// NewChainUpdate starts a chain update on top of a chain store.
func NewChainUpdate(chainStore *store.ChainStore, epochManager epoch.Manager, rt runtime.Adapter, c *config.Config) *ChainUpdate {
	return &ChainUpdate{
		epochManager:            epochManager,
		runtime:                 rt,
		storeUpdate:             chainStore.StoreUpdate(),
		doomslugThresholdMode:   c.DoomslugThresholdMode,
		saveStateTransitionData: c.SaveStateTransitionData,
	}
}

// StoreUpdate gives access to the staged store. Reads through it see the
// changes made by the update so far.
func (u *ChainUpdate) StoreUpdate() *store.ChainStoreUpdate {
	return u.storeUpdate
}

// Commit writes all changes of the update atomically.
func (u *ChainUpdate) Commit() error {
	if u.committed {
		return ErrAlreadyCommitted
	}
	if err := u.storeUpdate.Commit(); err != nil {
		return err
	}
	u.committed = true
	return nil
}

func (u *ChainUpdate) checkOpen() error {
	if u.committed {
		return ErrAlreadyCommitted
	}
	return nil
}

func (u *ChainUpdate) protocolVersionFromPrevBlock(prevHash chainhash.Hash) (primitives.ProtocolVersion, error) {
	epochID, err := u.epochManager.GetEpochIDFromPrevBlock(prevHash)
	if err != nil {
		return 0, err
	}
	return u.epochManager.GetEpochProtocolVersion(epochID)
}

// saveFlatStateChanges stages the flat storage delta of a shard in a block.
func (u *ChainUpdate) saveFlatStateChanges(
	blockHash chainhash.Hash,
	prevHash chainhash.Hash,
	height primitives.BlockHeight,
	shardUID primitives.ShardUId,
	changes []primitives.StateChange,
) error {
	b, err := u.runtime.GetFlatStorageManager().SaveFlatStateChanges(blockHash, prevHash, height, shardUID, changes)
	if err != nil {
		return errors.Wrapf(err, "could not save flat state changes of shard %s", shardUID)
	}
	u.storeUpdate.Merge(b)
	return nil
}

// saveTrieChanges stages trie changes under the block and shard they were
// produced for.
func (u *ChainUpdate) saveTrieChanges(changes primitives.TrieChanges, blockHash chainhash.Hash, height primitives.BlockHeight, shardUID primitives.ShardUId) error {
	changes.BlockHash = blockHash
	changes.BlockHeight = height
	changes.ShardUID = shardUID
	return u.storeUpdate.SaveTrieChanges(&changes)
}

func (u *ChainUpdate) saveStateTransitionDataFor(blockHash chainhash.Hash, shardID primitives.ShardID, result *runtime.ApplyResult) error {
	var proof primitives.PartialState
	if result.Proof != nil {
		proof = *result.Proof
	}
	return u.storeUpdate.SaveStateTransitionData(blockHash, shardID, proof, result.AppliedReceiptsHash, result.ContractAccesses)
}

// ApplyChunkPostprocessing stages the shard checkpoints and state changes of
// a block, in the order of results.
func (u *ChainUpdate) ApplyChunkPostprocessing(block *primitives.Block, results []ShardUpdateResult) error {
	if err := u.checkOpen(); err != nil {
		return err
	}
	for _, result := range results {
		if err := u.processApplyChunkResult(block, result); err != nil {
			return err
		}
	}
	return nil
}

func (u *ChainUpdate) processApplyChunkResult(block *primitives.Block, result ShardUpdateResult) error {
	blockHash := block.Hash()
	prevHash := block.Header.PrevHash
	height := block.Header.Height()

	switch r := result.(type) {
	case NewChunkResult:
		apply := r.ApplyResult
		shardID := primitives.ShardID(r.ShardUID.ShardID)
		outcomeRoot, outcomePaths := primitives.ComputeOutcomesProof(apply.Outcomes)

		protocolVersion, err := u.protocolVersionFromPrevBlock(prevHash)
		if err != nil {
			return err
		}

		extra := primitives.NewChunkExtra(
			protocolVersion,
			apply.NewRoot,
			outcomeRoot,
			apply.ValidatorProposals,
			apply.TotalGasBurnt,
			r.GasLimit,
			apply.TotalBalanceBurnt,
			apply.CongestionInfo,
		)
		if err := u.storeUpdate.SaveChunkExtra(blockHash, r.ShardUID, extra); err != nil {
			return err
		}

		if err := u.saveFlatStateChanges(blockHash, prevHash, height, r.ShardUID, apply.TrieChanges.StateChanges); err != nil {
			return err
		}
		if err := u.saveTrieChanges(apply.TrieChanges, blockHash, height, r.ShardUID); err != nil {
			return err
		}
		if err := u.storeUpdate.SaveOutgoingReceipt(blockHash, shardID, apply.OutgoingReceipts); err != nil {
			return err
		}
		if err := u.storeUpdate.SaveOutcomesWithProofs(blockHash, shardID, apply.Outcomes, outcomePaths); err != nil {
			return err
		}
		if u.saveStateTransitionData {
			if err := u.saveStateTransitionDataFor(blockHash, shardID, apply); err != nil {
				return err
			}
		}
		if r.ReshardingResults != nil {
			return u.processReshardingResults(block, r.ShardUID, r.ReshardingResults)
		}
		return nil

	case OldChunkResult:
		apply := r.ApplyResult

		// the chunk is missing, so the previous extra is carried forward with
		// the state root moved by block level effects
		old, err := u.storeUpdate.GetChunkExtra(prevHash, r.ShardUID)
		if err != nil {
			return errors.Wrapf(err, "could not get chunk extra of shard %s at %s", r.ShardUID, prevHash)
		}
		extra := old.Copy()
		extra.StateRoot = apply.NewRoot

		if err := u.saveFlatStateChanges(blockHash, prevHash, height, r.ShardUID, apply.TrieChanges.StateChanges); err != nil {
			return err
		}
		if err := u.storeUpdate.SaveChunkExtra(blockHash, r.ShardUID, extra); err != nil {
			return err
		}
		if err := u.saveTrieChanges(apply.TrieChanges, blockHash, height, r.ShardUID); err != nil {
			return err
		}
		if u.saveStateTransitionData {
			if err := u.saveStateTransitionDataFor(blockHash, primitives.ShardID(r.ShardUID.ShardID), apply); err != nil {
				return err
			}
		}
		if r.ReshardingResults != nil {
			return u.processReshardingResults(block, r.ShardUID, r.ReshardingResults)
		}
		return nil

	case ReshardingResult:
		return u.processReshardingResults(block, r.ShardUID, ApplyReshardingResults(r.Results))

	default:
		return internalDefect("unknown shard update result %T", result)
	}
}

// PostprocessBlock stages everything processing a block changes: the shard
// results, the catch-up registration, incoming receipts, challenges, the
// header, validator proposals, the block and the tips. The new body head is
// returned if the block became the head.
//
// A failed shard aborts the block before anything is staged.
func (u *ChainUpdate) PostprocessBlock(block *primitives.Block, info BlockPreprocessInfo, outcomes []ShardApplyOutcome) (*primitives.Tip, error) {
	if err := u.checkOpen(); err != nil {
		return nil, err
	}

	blockHash := block.Hash()
	prevHash := block.Header.PrevHash

	results := make([]ShardUpdateResult, 0, len(outcomes))
	for _, o := range outcomes {
		if o.Err != nil {
			log.WithFields(logrus.Fields{
				"shard": o.ShardID,
				"block": blockHash,
				"error": o.Err,
			}).Warn("error applying chunk for block")
			return nil, o.Err
		}
		results = append(results, o.Result)
	}
	if err := u.ApplyChunkPostprocessing(block, results); err != nil {
		return nil, err
	}

	if !info.IsCaughtUp {
		log.WithFields(logrus.Fields{
			"prev":  prevHash,
			"block": blockHash,
		}).Debug("adding block to catch up")
		if err := u.storeUpdate.AddBlockToCatchup(prevHash, blockHash); err != nil {
			return nil, err
		}
	}

	shardIDs := make([]primitives.ShardID, 0, len(info.IncomingReceipts))
	for shardID := range info.IncomingReceipts {
		shardIDs = append(shardIDs, shardID)
	}
	sort.Slice(shardIDs, func(i, j int) bool { return shardIDs[i] < shardIDs[j] })
	for _, shardID := range shardIDs {
		if err := u.storeUpdate.SaveIncomingReceipt(blockHash, shardID, info.IncomingReceipts[shardID]); err != nil {
			return nil, err
		}
	}

	if info.StateSyncInfo != nil {
		if err := u.storeUpdate.AddStateSyncInfo(info.StateSyncInfo); err != nil {
			return nil, err
		}
	}

	if err := u.storeUpdate.SaveBlockExtra(blockHash, &primitives.BlockExtra{ChallengesResult: info.ChallengesResult}); err != nil {
		return nil, err
	}

	// the header is staged before challenges so this block can be picked as
	// the challenger head
	if err := u.storeUpdate.SaveBlockHeader(&block.Header); err != nil {
		return nil, err
	}
	var challengeHead *primitives.Tip
	for _, challenged := range info.ChallengedBlocks {
		tip, err := u.MarkBlockAsChallenged(challenged, &blockHash)
		if err != nil {
			return nil, err
		}
		if tip != nil {
			challengeHead = tip
		}
	}

	if _, err := u.UpdateHeaderHeadIfNotChallenged(&block.Header); err != nil {
		return nil, err
	}

	// unlike the final head update, a block naming a last final block that
	// is not stored is rejected here: the epoch manager needs its height
	lastFinalizedHeight := u.storeUpdate.GenesisHeight()
	if lastFinal := block.Header.LastFinalBlock(); !lastFinal.IsZero() {
		finalHeader, err := u.storeUpdate.GetBlockHeader(lastFinal)
		if err != nil {
			return nil, errors.Wrapf(err, "could not get last final block %s", lastFinal)
		}
		lastFinalizedHeight = finalHeader.Height()
	}

	epochUpdate, err := u.epochManager.AddValidatorProposals(epoch.NewBlockHeaderInfo(&block.Header, lastFinalizedHeight))
	if err != nil {
		return nil, err
	}
	u.storeUpdate.Merge(epochUpdate)

	// a block is stored even if it is not on the canonical fork
	if err := u.storeUpdate.SaveBlock(block); err != nil {
		return nil, err
	}
	if err := u.storeUpdate.IncBlockRefcount(prevHash); err != nil {
		return nil, err
	}

	tip, err := u.UpdateHead(&block.Header)
	if err != nil {
		return nil, err
	}
	if tip == nil && challengeHead != nil && challengeHead.LastBlockHash == blockHash {
		// the challenge already made this block the head
		tip = challengeHead
	}
	if tip == nil {
		return nil, nil
	}

	// next block hashes are only set along the canonical chain, so the light
	// client block of an epoch is built once the first block of the next
	// epoch is the head
	prev, err := u.storeUpdate.GetPreviousHeader(&block.Header)
	if err != nil {
		return nil, err
	}
	if block.Header.EpochID() != prev.EpochID() && !prev.LastFinalBlock().IsZero() {
		view, err := u.createLightClientBlock(prev)
		if err != nil {
			return nil, err
		}
		if err := u.storeUpdate.SaveEpochLightClientBlock(prev.EpochID(), view); err != nil {
			return nil, err
		}
	}

	layout, err := u.epochManager.GetShardLayoutFromPrevBlock(prev.Hash())
	if err != nil {
		return nil, err
	}
	shardLayoutVersion.Set(float64(layout.Version))
	shardLayoutNumShards.Set(float64(layout.NumShards()))

	return tip, nil
}
