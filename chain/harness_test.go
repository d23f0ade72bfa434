package chain_test

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/phoreproject/chainstate/chain"
	"github.com/phoreproject/chainstate/chainhash"
	"github.com/phoreproject/chainstate/config"
	"github.com/phoreproject/chainstate/db"
	"github.com/phoreproject/chainstate/epoch"
	"github.com/phoreproject/chainstate/flat"
	"github.com/phoreproject/chainstate/primitives"
	"github.com/phoreproject/chainstate/runtime"
	runtimemock "github.com/phoreproject/chainstate/runtime/mock"
	"github.com/phoreproject/chainstate/store"
)

var (
	parentShard = primitives.ShardUId{Version: 0, ShardID: 0}
	childShards = []primitives.ShardUId{
		{Version: 1, ShardID: 0},
		{Version: 1, ShardID: 1},
		{Version: 1, ShardID: 2},
	}
)

var producers = []primitives.ValidatorStake{
	{AccountID: "alice", Stake: primitives.NewBalance(60)},
	{AccountID: "bob", Stake: primitives.NewBalance(40)},
}

// testChain is a chain store with a static epoch schedule: epoch 0 has a
// single shard, which splits into three shards from epoch 1 on.
type testChain struct {
	t       *testing.T
	config  config.Config
	db      *db.InMemoryDB
	store   *store.ChainStore
	epochs  *epoch.StaticManager
	flat    *flat.Manager
	runtime *runtimemock.Adapter
	genesis *primitives.Block
}

func newTestChain(t *testing.T) *testChain {
	return newTestChainWithVersion(t, 60)
}

func newTestChainWithVersion(t *testing.T, protocolVersion primitives.ProtocolVersion) *testChain {
	c := config.RegtestConfig
	database := db.NewInMemoryDB()

	s, err := store.NewChainStore(database, &c)
	require.NoError(t, err)

	epochs, err := epoch.NewStaticManager(database, s, c.GenesisHeight, c.EpochLength, []epoch.Config{
		{
			FromEpoch:       0,
			ShardLayout:     primitives.NewShardLayoutV0(1, 0),
			ProtocolVersion: protocolVersion,
			BlockProducers:  producers,
		},
		{
			FromEpoch:       1,
			ShardLayout:     primitives.NewShardLayoutV1([]primitives.AccountID{"h", "p"}, [][]primitives.ShardID{{0, 1, 2}}, 1),
			ProtocolVersion: protocolVersion,
			BlockProducers:  producers,
		},
	})
	require.NoError(t, err)

	flatManager := flat.NewManager(database)
	rt := runtimemock.NewAdapter(t)
	rt.On("GetFlatStorageManager").Return(flatManager).Maybe()

	tc := &testChain{
		t:       t,
		config:  c,
		db:      database,
		store:   s,
		epochs:  epochs,
		flat:    flatManager,
		runtime: rt,
	}

	tc.genesis = &primitives.Block{
		Header: primitives.BlockHeader{
			InnerLite: primitives.BlockHeaderInnerLite{
				Height:      c.GenesisHeight,
				EpochID:     epochs.GenesisEpochID(),
				NextEpochID: epochs.EpochIDForIndex(1),
			},
			InnerRest: primitives.BlockHeaderInnerRest{
				RandomValue:  chainhash.HashH([]byte("genesis")),
				NextGasPrice: primitives.NewBalance(100),
			},
		},
		Chunks: []primitives.ShardChunkHeader{{
			ShardID:       0,
			PrevStateRoot: chainhash.HashH([]byte("genesis state")),
			GasLimit:      1000,
		}},
	}

	u := tc.update()
	require.NoError(t, u.InitializeGenesis(tc.genesis))
	require.NoError(t, u.Commit())

	return tc
}

func (tc *testChain) update() *chain.ChainUpdate {
	return chain.NewChainUpdate(tc.store, tc.epochs, tc.runtime, &tc.config)
}

func caughtUp() chain.BlockPreprocessInfo {
	return chain.BlockPreprocessInfo{IsCaughtUp: true}
}

// makeBlock creates a block on top of parent. The epoch follows the static
// schedule.
func (tc *testChain) makeBlock(parent *primitives.Block, height primitives.BlockHeight, lastFinal chainhash.Hash, salt string) *primitives.Block {
	parentHeight := parent.Header.Height()
	epochID, nextEpochID := tc.epochs.EpochIDsAfterHeight(parentHeight)
	return &primitives.Block{
		Header: primitives.BlockHeader{
			PrevHash: parent.Hash(),
			InnerLite: primitives.BlockHeaderInnerLite{
				Height:      height,
				EpochID:     epochID,
				NextEpochID: nextEpochID,
				Timestamp:   height * 1000,
			},
			InnerRest: primitives.BlockHeaderInnerRest{
				RandomValue:    chainhash.HashH([]byte(salt)),
				NextGasPrice:   primitives.NewBalance(100 + height),
				LastFinalBlock: lastFinal,
				BlockOrdinal:   height + 1,
				PrevHeight:     &parentHeight,
				Approvals:      [][]byte{[]byte(salt)},
			},
		},
		Chunks: []primitives.ShardChunkHeader{{
			PrevBlockHash:  parent.Hash(),
			ShardID:        0,
			HeightCreated:  height,
			HeightIncluded: height,
			GasLimit:       1000,
		}},
	}
}

// lastFinalFor is the last final block of a child of parent: two blocks back,
// or genesis near the start of the chain.
func lastFinalFor(parent *primitives.Block) chainhash.Hash {
	if parent.Header.PrevHash.IsZero() {
		return parent.Hash()
	}
	return parent.Header.PrevHash
}

func (tc *testChain) shardUID(block *primitives.Block) primitives.ShardUId {
	uid, err := tc.epochs.ShardIDToUID(0, block.Header.EpochID())
	require.NoError(tc.t, err)
	return uid
}

func (tc *testChain) newChunk(block *primitives.Block, gas primitives.Gas, balance uint64) chain.ShardApplyOutcome {
	blockHash := block.Hash()
	return chain.ShardApplyOutcome{
		ShardID: 0,
		Result: chain.NewChunkResult{
			ShardUID: tc.shardUID(block),
			GasLimit: 1000,
			ApplyResult: &runtime.ApplyResult{
				NewRoot:           chainhash.HashH(append([]byte("root"), blockHash.CloneBytes()...)),
				TotalGasBurnt:     gas,
				TotalBalanceBurnt: primitives.NewBalance(balance),
			},
		},
	}
}

func (tc *testChain) process(block *primitives.Block, info chain.BlockPreprocessInfo, outcomes ...chain.ShardApplyOutcome) *primitives.Tip {
	u := tc.update()
	tip, err := u.PostprocessBlock(block, info, outcomes)
	require.NoError(tc.t, err)
	require.NoError(tc.t, u.Commit())
	return tip
}

// extend processes blocks at heights on top of parent, each with a new chunk
// for shard 0.
func (tc *testChain) extend(parent *primitives.Block, salt string, heights ...primitives.BlockHeight) []*primitives.Block {
	var out []*primitives.Block
	for _, height := range heights {
		b := tc.makeBlock(parent, height, lastFinalFor(parent), fmt.Sprintf("%s-%d", salt, height))
		tc.process(b, caughtUp(), tc.newChunk(b, 10, 1))
		out = append(out, b)
		parent = b
	}
	return out
}

func (tc *testChain) head() *primitives.Tip {
	tip, err := tc.store.Head()
	require.NoError(tc.t, err)
	return tip
}

func (tc *testChain) headerHead() *primitives.Tip {
	tip, err := tc.store.HeaderHead()
	require.NoError(tc.t, err)
	return tip
}

func (tc *testChain) finalHead() *primitives.Tip {
	tip, err := tc.store.FinalHead()
	require.NoError(tc.t, err)
	return tip
}
