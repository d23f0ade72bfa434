package chain

import (
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/phoreproject/chainstate/chainhash"
	"github.com/phoreproject/chainstate/epoch"
	"github.com/phoreproject/chainstate/primitives"
)

// InitializeGenesis stages the genesis block, a chunk extra for every shard
// built from the genesis chunk headers, and all three tips pointing at
// genesis.
func (u *ChainUpdate) InitializeGenesis(genesis *primitives.Block) error {
	if err := u.checkOpen(); err != nil {
		return err
	}

	header := &genesis.Header
	if header.Height() != u.storeUpdate.GenesisHeight() {
		return errors.Errorf("genesis block is at height %d, expected %d", header.Height(), u.storeUpdate.GenesisHeight())
	}
	genesisHash := genesis.Hash()

	protocolVersion, err := u.epochManager.GetEpochProtocolVersion(header.EpochID())
	if err != nil {
		return err
	}

	for _, chunk := range genesis.Chunks {
		shardUID, err := u.epochManager.ShardIDToUID(chunk.ShardID, header.EpochID())
		if err != nil {
			return err
		}
		extra := primitives.NewChunkExtra(
			protocolVersion,
			chunk.PrevStateRoot,
			chainhash.Hash{},
			nil,
			0,
			chunk.GasLimit,
			primitives.NewBalance(0),
			chunk.CongestionInfo,
		)
		if err := u.storeUpdate.SaveChunkExtra(genesisHash, shardUID, extra); err != nil {
			return err
		}
	}

	if err := u.storeUpdate.SaveGenesisHeight(header.Height()); err != nil {
		return err
	}
	if err := u.storeUpdate.SaveBlockHeader(header); err != nil {
		return err
	}
	if err := u.storeUpdate.SaveBlock(genesis); err != nil {
		return err
	}

	epochUpdate, err := u.epochManager.AddValidatorProposals(epoch.NewBlockHeaderInfo(header, header.Height()))
	if err != nil {
		return err
	}
	u.storeUpdate.Merge(epochUpdate)

	tip := primitives.TipFromHeader(header)
	if err := u.storeUpdate.SaveHead(tip); err != nil {
		return err
	}
	if err := u.storeUpdate.SaveFinalHead(tip); err != nil {
		return err
	}

	log.WithFields(logrus.Fields{
		"hash":   genesisHash,
		"height": tip.Height,
		"shards": len(genesis.Chunks),
	}).Info("initialized genesis")

	return nil
}
