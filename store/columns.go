package store

import (
	"github.com/phoreproject/chainstate/chainhash"
	"github.com/phoreproject/chainstate/primitives"
	"github.com/phoreproject/chainstate/utils"
)

// Column prefixes. Each record type lives under its own prefix.
var (
	colBlockMisc                 = []byte("misc/")
	colBlockHeader               = []byte("header/")
	colBlock                     = []byte("block/")
	colBlockHeight               = []byte("height/")
	colNextBlockHashes           = []byte("next/")
	colChunkExtra                = []byte("chunkextra/")
	colChunks                    = []byte("chunk/")
	colIncomingReceipts          = []byte("inreceipts/")
	colOutgoingReceipts          = []byte("outreceipts/")
	colOutcomeIds                = []byte("outcomeids/")
	colTransactionResult         = []byte("txresult/")
	colStateTransitionData       = []byte("transition/")
	colBlockExtra                = []byte("blockextra/")
	colChallengedBlocks          = []byte("challenged/")
	colBlocksToCatchup           = []byte("catchup/")
	colBlockRefCount             = []byte("refcount/")
	colEpochLightClientBlocks    = []byte("lightclient/")
	colStateSyncInfos            = []byte("syncinfo/")
	colStateChangesForResharding = []byte("reshardchanges/")
	colTrieChanges               = []byte("triechanges/")
	colStateChanges              = []byte("statechanges/")
	colState                     = []byte("state/")
)

var (
	headKey          = []byte("HEAD")
	headerHeadKey    = []byte("HEADER_HEAD")
	finalHeadKey     = []byte("FINAL_HEAD")
	genesisHeightKey = []byte("GENESIS_HEIGHT")
)

func key(col []byte, fn func(w *utils.Writer)) []byte {
	return utils.Concat(func(w *utils.Writer) {
		w.WriteBytes(col)
		fn(w)
	})
}

func hashKey(col []byte, h chainhash.Hash) []byte {
	return key(col, func(w *utils.Writer) { w.WriteHash(h) })
}

func heightKey(height primitives.BlockHeight) []byte {
	return key(colBlockHeight, func(w *utils.Writer) { w.WriteUint64(height) })
}

func blockShardIDKey(col []byte, h chainhash.Hash, shardID primitives.ShardID) []byte {
	return key(col, func(w *utils.Writer) {
		w.WriteHash(h)
		w.WriteUint64(shardID)
	})
}

func blockShardUIDKey(col []byte, h chainhash.Hash, shardUID primitives.ShardUId) []byte {
	return key(col, func(w *utils.Writer) {
		w.WriteHash(h)
		w.WriteUint32(shardUID.Version)
		w.WriteUint32(shardUID.ShardID)
	})
}

func outcomeKey(outcomeID chainhash.Hash, blockHash chainhash.Hash) []byte {
	return key(colTransactionResult, func(w *utils.Writer) {
		w.WriteHash(outcomeID)
		w.WriteHash(blockHash)
	})
}

func trieNodeKey(shardUID primitives.ShardUId, nodeHash chainhash.Hash) []byte {
	return key(colState, func(w *utils.Writer) {
		w.WriteUint32(shardUID.Version)
		w.WriteUint32(shardUID.ShardID)
		w.WriteHash(nodeHash)
	})
}

func miscKey(name []byte) []byte {
	return append(append([]byte(nil), colBlockMisc...), name...)
}
