package chain

import (
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/phoreproject/chainstate/chainhash"
	"github.com/phoreproject/chainstate/primitives"
	"github.com/phoreproject/chainstate/runtime"
	"github.com/phoreproject/chainstate/store"
)

// SetStateFinalize applies the chunk of a synced shard state header at the
// height the chunk was included, on the chain of syncHash, and stages the
// results. Only incoming receipts from blocks up to that height are applied
// and saved. It returns the shard uid the chunk was applied to.
func (u *ChainUpdate) SetStateFinalize(shardID primitives.ShardID, syncHash chainhash.Hash, stateHeader primitives.ShardStateSyncResponseHeader) (primitives.ShardUId, error) {
	if err := u.checkOpen(); err != nil {
		return primitives.ShardUId{}, err
	}

	var chunk primitives.ShardChunk
	switch h := stateHeader.(type) {
	case *primitives.ShardStateSyncResponseHeaderV1, *primitives.ShardStateSyncResponseHeaderV2:
		chunk = h.Chunk()
	default:
		return primitives.ShardUId{}, errors.Errorf("unknown state header %T", stateHeader)
	}
	chunkHeader := chunk.Header
	heightIncluded := chunkHeader.HeightIncluded

	blockHeader, err := u.storeUpdate.GetBlockHeaderOnChainByHeight(syncHash, heightIncluded)
	if err != nil {
		return primitives.ShardUId{}, err
	}
	blockHash := blockHeader.Hash()

	var incoming []primitives.ReceiptProofResponse
	for _, response := range stateHeader.IncomingReceiptsProofs() {
		source, err := u.storeUpdate.GetBlockHeader(response.BlockHash)
		if err != nil {
			return primitives.ShardUId{}, err
		}
		if source.Height() <= heightIncluded {
			incoming = append(incoming, response)
		}
	}
	receipts := primitives.CollectReceiptsFromResponse(incoming)

	// headers are synced before state, so the previous header is known
	gasPrice := blockHeader.NextGasPrice()
	if blockHeader.Height() != u.storeUpdate.GenesisHeight() {
		prev, err := u.storeUpdate.GetPreviousHeader(blockHeader)
		if err != nil {
			return primitives.ShardUId{}, err
		}
		gasPrice = prev.NextGasPrice()
	}

	block, err := u.storeUpdate.GetBlock(blockHash)
	if err != nil {
		return primitives.ShardUId{}, err
	}

	apply, err := u.runtime.ApplyChunk(
		runtime.NewStorageConfig(chunkHeader.PrevStateRoot, true),
		runtime.UpdateTrackedShard,
		runtime.ShardContext{
			ShardID:                        shardID,
			LastValidatorProposals:         chunkHeader.PrevValidatorProposals,
			GasLimit:                       chunkHeader.GasLimit,
			IsNewChunk:                     true,
			IsFirstBlockWithChunkOfVersion: false,
		},
		runtime.BlockContext{
			Height:         heightIncluded,
			BlockHash:      blockHash,
			PrevBlockHash:  chunkHeader.PrevBlockHash,
			BlockTimestamp: blockHeader.InnerLite.Timestamp,
			GasPrice:       gasPrice,
			Challenges:     blockHeader.InnerRest.ChallengesResult,
			RandomSeed:     blockHeader.InnerRest.RandomValue,
			CongestionInfo: block.BlockCongestionInfo(),
		},
		receipts,
		chunk.Transactions,
	)
	if err != nil {
		return primitives.ShardUId{}, err
	}

	outcomeRoot, outcomePaths := primitives.ComputeOutcomesProof(apply.Outcomes)

	if err := u.storeUpdate.SaveChunk(&chunk); err != nil {
		return primitives.ShardUId{}, err
	}

	shardUID, err := u.epochManager.ShardIDToUID(shardID, blockHeader.EpochID())
	if err != nil {
		return primitives.ShardUId{}, err
	}

	if err := u.saveFlatStateChanges(blockHash, chunkHeader.PrevBlockHash, heightIncluded, shardUID, apply.TrieChanges.StateChanges); err != nil {
		return primitives.ShardUId{}, err
	}
	if err := u.saveTrieChanges(apply.TrieChanges, blockHash, heightIncluded, shardUID); err != nil {
		return primitives.ShardUId{}, err
	}

	protocolVersion, err := u.epochManager.GetEpochProtocolVersion(blockHeader.EpochID())
	if err != nil {
		return primitives.ShardUId{}, err
	}
	extra := primitives.NewChunkExtra(
		protocolVersion,
		apply.NewRoot,
		outcomeRoot,
		apply.ValidatorProposals,
		apply.TotalGasBurnt,
		chunkHeader.GasLimit,
		apply.TotalBalanceBurnt,
		apply.CongestionInfo,
	)
	if err := u.storeUpdate.SaveChunkExtra(blockHash, shardUID, extra); err != nil {
		return primitives.ShardUId{}, err
	}

	if err := u.storeUpdate.SaveOutgoingReceipt(blockHash, shardID, apply.OutgoingReceipts); err != nil {
		return primitives.ShardUId{}, err
	}
	if err := u.storeUpdate.SaveOutcomesWithProofs(blockHash, shardID, apply.Outcomes, outcomePaths); err != nil {
		return primitives.ShardUId{}, err
	}
	for _, response := range incoming {
		if err := u.storeUpdate.SaveIncomingReceipt(response.BlockHash, shardID, response.Proofs); err != nil {
			return primitives.ShardUId{}, err
		}
	}

	log.WithFields(logrus.Fields{
		"shard":  shardUID,
		"sync":   syncHash,
		"height": heightIncluded,
	}).Debug("finalized state sync chunk")

	return shardUID, nil
}

// SetStateFinalizeOnHeight replays the block at height on the chain of
// syncHash for a synced shard whose chunk is missing there. It returns false
// when height is the sync block itself and replay should stop, and true
// otherwise, including when the chain has no block at height.
func (u *ChainUpdate) SetStateFinalizeOnHeight(height primitives.BlockHeight, shardID primitives.ShardID, syncHash chainhash.Hash) (bool, error) {
	if err := u.checkOpen(); err != nil {
		return false, err
	}

	blockHeader, err := u.storeUpdate.GetBlockHeaderOnChainByHeight(syncHash, height)
	if errors.Is(err, store.ErrInvalidBlockHeight) || store.IsNotFound(err) {
		return true, nil
	}
	if err != nil {
		return false, err
	}
	blockHash := blockHeader.Hash()
	if blockHash == syncHash {
		return false, nil
	}

	block, err := u.storeUpdate.GetBlock(blockHash)
	if err != nil {
		return false, err
	}
	prev, err := u.storeUpdate.GetPreviousHeader(blockHeader)
	if err != nil {
		return false, err
	}

	shardUID, err := u.epochManager.ShardIDToUID(shardID, blockHeader.EpochID())
	if err != nil {
		return false, err
	}
	chunkExtra, err := u.storeUpdate.GetChunkExtra(blockHeader.PrevHash, shardUID)
	if err != nil {
		return false, err
	}

	apply, err := u.runtime.ApplyChunk(
		runtime.NewStorageConfig(chunkExtra.StateRoot, true),
		runtime.UpdateTrackedShard,
		runtime.ShardContext{
			ShardID:                shardID,
			LastValidatorProposals: chunkExtra.ValidatorProposals,
			GasLimit:               chunkExtra.GasLimit,
			IsNewChunk:             false,
		},
		runtime.BlockContextFromHeader(blockHeader, prev.NextGasPrice(), block.BlockCongestionInfo()),
		nil,
		nil,
	)
	if err != nil {
		return false, err
	}

	if err := u.saveFlatStateChanges(blockHash, prev.Hash(), height, shardUID, apply.TrieChanges.StateChanges); err != nil {
		return false, err
	}
	if err := u.saveTrieChanges(apply.TrieChanges, blockHash, height, shardUID); err != nil {
		return false, err
	}

	extra := chunkExtra.Copy()
	extra.StateRoot = apply.NewRoot
	if err := u.storeUpdate.SaveChunkExtra(blockHash, shardUID, extra); err != nil {
		return false, err
	}
	return true, nil
}
