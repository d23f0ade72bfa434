package store

import (
	lru "github.com/hashicorp/golang-lru"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/phoreproject/chainstate/chainhash"
	"github.com/phoreproject/chainstate/config"
	"github.com/phoreproject/chainstate/db"
	"github.com/phoreproject/chainstate/primitives"
)

var log = logrus.WithField("module", "store")

type source interface {
	get(key []byte) ([]byte, error)
	staged(key []byte) bool
}

type dbSource struct {
	db db.Reader
}

func (s dbSource) get(key []byte) ([]byte, error) { return s.db.Get(key) }

func (s dbSource) staged([]byte) bool { return false }

// reader holds the typed reads shared by ChainStore and ChainStoreUpdate.
type reader struct {
	src           source
	headers       *lru.Cache
	blocks        *lru.Cache
	chunkExtras   *lru.Cache
	genesisHeight primitives.BlockHeight
}

func (r *reader) getValue(col []byte, k []byte, v interface{}) error {
	data, err := r.src.get(k)
	if err == db.ErrNotFound {
		return &NotFoundError{Column: string(col), Key: k[len(col):]}
	}
	if err != nil {
		return errors.Wrapf(err, "could not read %s", col)
	}
	return db.Decode(data, v)
}

// getOptional is getValue where a missing record is not an error.
func (r *reader) getOptional(col []byte, k []byte, v interface{}) (bool, error) {
	err := r.getValue(col, k, v)
	if IsNotFound(err) {
		return false, nil
	}
	return err == nil, err
}

// Get reads the raw value of a key. Reads through an update see its staged
// writes.
func (r *reader) Get(key []byte) ([]byte, error) {
	return r.src.get(key)
}

// GenesisHeight is the height of the genesis block.
func (r *reader) GenesisHeight() primitives.BlockHeight {
	return r.genesisHeight
}

// GetBlockHeader gets a block header by hash. The returned header is shared
// and must not be modified.
func (r *reader) GetBlockHeader(h chainhash.Hash) (*primitives.BlockHeader, error) {
	k := hashKey(colBlockHeader, h)
	cacheable := !r.src.staged(k)
	if cacheable {
		if v, found := r.headers.Get(h); found {
			return v.(*primitives.BlockHeader), nil
		}
	}
	header := new(primitives.BlockHeader)
	if err := r.getValue(colBlockHeader, k, header); err != nil {
		return nil, err
	}
	if cacheable {
		r.headers.Add(h, header)
	}
	return header, nil
}

// GetPreviousHeader gets the parent of a header.
func (r *reader) GetPreviousHeader(header *primitives.BlockHeader) (*primitives.BlockHeader, error) {
	return r.GetBlockHeader(header.PrevHash)
}

// GetBlock gets a block by hash. The returned block is shared and must not be
// modified.
func (r *reader) GetBlock(h chainhash.Hash) (*primitives.Block, error) {
	k := hashKey(colBlock, h)
	cacheable := !r.src.staged(k)
	if cacheable {
		if v, found := r.blocks.Get(h); found {
			return v.(*primitives.Block), nil
		}
	}
	block := new(primitives.Block)
	if err := r.getValue(colBlock, k, block); err != nil {
		return nil, err
	}
	if cacheable {
		r.blocks.Add(h, block)
	}
	return block, nil
}

// BlockExists reports whether a block body is stored.
func (r *reader) BlockExists(h chainhash.Hash) (bool, error) {
	_, err := r.src.get(hashKey(colBlock, h))
	if err == db.ErrNotFound {
		return false, nil
	}
	return err == nil, err
}

// GetChunkExtra gets the post-state of a shard after a block. The caller owns
// the returned chunk extra.
func (r *reader) GetChunkExtra(blockHash chainhash.Hash, shardUID primitives.ShardUId) (*primitives.ChunkExtra, error) {
	k := blockShardUIDKey(colChunkExtra, blockHash, shardUID)
	cacheable := !r.src.staged(k)
	if cacheable {
		if v, found := r.chunkExtras.Get(string(k)); found {
			return v.(*primitives.ChunkExtra).Copy(), nil
		}
	}
	extra := new(primitives.ChunkExtra)
	if err := r.getValue(colChunkExtra, k, extra); err != nil {
		return nil, err
	}
	if cacheable {
		r.chunkExtras.Add(string(k), extra.Copy())
	}
	return extra, nil
}

// GetChunk gets a chunk by chunk hash.
func (r *reader) GetChunk(chunkHash chainhash.Hash) (*primitives.ShardChunk, error) {
	chunk := new(primitives.ShardChunk)
	if err := r.getValue(colChunks, hashKey(colChunks, chunkHash), chunk); err != nil {
		return nil, err
	}
	return chunk, nil
}

// GetBlockHashByHeight gets the hash of the canonical block at a height.
func (r *reader) GetBlockHashByHeight(height primitives.BlockHeight) (chainhash.Hash, error) {
	var h chainhash.Hash
	err := r.getValue(colBlockHeight, heightKey(height), &h)
	return h, err
}

// GetBlockHeaderByHeight gets the header of the canonical block at a height.
func (r *reader) GetBlockHeaderByHeight(height primitives.BlockHeight) (*primitives.BlockHeader, error) {
	h, err := r.GetBlockHashByHeight(height)
	if err != nil {
		return nil, err
	}
	return r.GetBlockHeader(h)
}

// GetBlockHeaderOnChainByHeight walks back from syncHash and returns the
// header at height on that chain. ErrInvalidBlockHeight is returned if the
// chain has no block at that height.
func (r *reader) GetBlockHeaderOnChainByHeight(syncHash chainhash.Hash, height primitives.BlockHeight) (*primitives.BlockHeader, error) {
	header, err := r.GetBlockHeader(syncHash)
	if err != nil {
		return nil, err
	}
	for header.Height() > height {
		header, err = r.GetBlockHeader(header.PrevHash)
		if err != nil {
			return nil, err
		}
	}
	if header.Height() < height {
		return nil, errors.Wrapf(ErrInvalidBlockHeight, "no block at height %d on chain of %s", height, syncHash)
	}
	return header, nil
}

// GetNextBlockHash gets the hash of the canonical child of a block.
func (r *reader) GetNextBlockHash(h chainhash.Hash) (chainhash.Hash, error) {
	var next chainhash.Hash
	err := r.getValue(colNextBlockHashes, hashKey(colNextBlockHashes, h), &next)
	return next, err
}

func (r *reader) getTip(name []byte) (*primitives.Tip, error) {
	tip := new(primitives.Tip)
	if err := r.getValue(colBlockMisc, miscKey(name), tip); err != nil {
		return nil, err
	}
	return tip, nil
}

// Head is the body head: the tip of the chain of fully processed blocks.
func (r *reader) Head() (*primitives.Tip, error) {
	return r.getTip(headKey)
}

// HeaderHead is the tip of the best known header chain.
func (r *reader) HeaderHead() (*primitives.Tip, error) {
	return r.getTip(headerHeadKey)
}

// FinalHead is the tip of the last final block.
func (r *reader) FinalHead() (*primitives.Tip, error) {
	return r.getTip(finalHeadKey)
}

// IsBlockChallenged reports whether a block was invalidated by a challenge.
func (r *reader) IsBlockChallenged(h chainhash.Hash) (bool, error) {
	var challenged bool
	found, err := r.getOptional(colChallengedBlocks, hashKey(colChallengedBlocks, h), &challenged)
	return found && challenged, err
}

// GetBlockRefcount is the number of stored children of a block.
func (r *reader) GetBlockRefcount(h chainhash.Hash) (uint64, error) {
	var refcount uint64
	_, err := r.getOptional(colBlockRefCount, hashKey(colBlockRefCount, h), &refcount)
	return refcount, err
}

// GetBlocksToCatchup lists the blocks on top of prevHash that wait for state
// sync to finish.
func (r *reader) GetBlocksToCatchup(prevHash chainhash.Hash) ([]chainhash.Hash, error) {
	var hashes []chainhash.Hash
	_, err := r.getOptional(colBlocksToCatchup, hashKey(colBlocksToCatchup, prevHash), &hashes)
	return hashes, err
}

// GetIncomingReceipts gets the receipt proofs a shard received in a block.
func (r *reader) GetIncomingReceipts(blockHash chainhash.Hash, shardID primitives.ShardID) ([]primitives.ReceiptProof, error) {
	var proofs []primitives.ReceiptProof
	err := r.getValue(colIncomingReceipts, blockShardIDKey(colIncomingReceipts, blockHash, shardID), &proofs)
	return proofs, err
}

// GetOutgoingReceipts gets the receipts a shard sent in a block.
func (r *reader) GetOutgoingReceipts(blockHash chainhash.Hash, shardID primitives.ShardID) ([]primitives.Receipt, error) {
	var receipts []primitives.Receipt
	err := r.getValue(colOutgoingReceipts, blockShardIDKey(colOutgoingReceipts, blockHash, shardID), &receipts)
	return receipts, err
}

// GetOutcomeIDs lists the ids of the outcomes of a shard in a block.
func (r *reader) GetOutcomeIDs(blockHash chainhash.Hash, shardID primitives.ShardID) ([]chainhash.Hash, error) {
	var ids []chainhash.Hash
	_, err := r.getOptional(colOutcomeIds, blockShardIDKey(colOutcomeIds, blockHash, shardID), &ids)
	return ids, err
}

// GetOutcomeWithProof gets an execution outcome of a block with its proof.
func (r *reader) GetOutcomeWithProof(outcomeID chainhash.Hash, blockHash chainhash.Hash) (*primitives.ExecutionOutcomeWithProof, error) {
	outcome := new(primitives.ExecutionOutcomeWithProof)
	if err := r.getValue(colTransactionResult, outcomeKey(outcomeID, blockHash), outcome); err != nil {
		return nil, err
	}
	return outcome, nil
}

// GetStateTransitionData gets the data needed to replay a chunk.
func (r *reader) GetStateTransitionData(blockHash chainhash.Hash, shardID primitives.ShardID) (*primitives.StoredChunkStateTransitionData, error) {
	data := new(primitives.StoredChunkStateTransitionData)
	if err := r.getValue(colStateTransitionData, blockShardIDKey(colStateTransitionData, blockHash, shardID), data); err != nil {
		return nil, err
	}
	return data, nil
}

// GetBlockExtra gets the extra data of a block.
func (r *reader) GetBlockExtra(h chainhash.Hash) (*primitives.BlockExtra, error) {
	extra := new(primitives.BlockExtra)
	if err := r.getValue(colBlockExtra, hashKey(colBlockExtra, h), extra); err != nil {
		return nil, err
	}
	return extra, nil
}

// GetStateSyncInfo gets the pending state sync request of an epoch.
func (r *reader) GetStateSyncInfo(epochFirstBlock chainhash.Hash) (*primitives.StateSyncInfo, error) {
	info := new(primitives.StateSyncInfo)
	if err := r.getValue(colStateSyncInfos, hashKey(colStateSyncInfos, epochFirstBlock), info); err != nil {
		return nil, err
	}
	return info, nil
}

// GetEpochLightClientBlock gets the light client block of an epoch.
func (r *reader) GetEpochLightClientBlock(epochID primitives.EpochID) (*primitives.LightClientBlockView, error) {
	view := new(primitives.LightClientBlockView)
	if err := r.getValue(colEpochLightClientBlocks, hashKey(colEpochLightClientBlocks, chainhash.Hash(epochID)), view); err != nil {
		return nil, err
	}
	return view, nil
}

// GetTrieChanges gets the trie changes of a shard in a block.
func (r *reader) GetTrieChanges(blockHash chainhash.Hash, shardUID primitives.ShardUId) (*primitives.TrieChanges, error) {
	changes := new(primitives.TrieChanges)
	if err := r.getValue(colTrieChanges, blockShardUIDKey(colTrieChanges, blockHash, shardUID), changes); err != nil {
		return nil, err
	}
	return changes, nil
}

// GetStateChanges gets the raw state changes of a shard in a block.
func (r *reader) GetStateChanges(blockHash chainhash.Hash, shardUID primitives.ShardUId) ([]primitives.StateChange, error) {
	var changes []primitives.StateChange
	err := r.getValue(colStateChanges, blockShardUIDKey(colStateChanges, blockHash, shardUID), &changes)
	return changes, err
}

// GetStateChangesForResharding gets the changes of a parent shard that still
// have to be applied to its children.
func (r *reader) GetStateChangesForResharding(blockHash chainhash.Hash, shardID primitives.ShardID) (*primitives.StateChangesForResharding, error) {
	changes := new(primitives.StateChangesForResharding)
	if err := r.getValue(colStateChangesForResharding, blockShardIDKey(colStateChangesForResharding, blockHash, shardID), changes); err != nil {
		return nil, err
	}
	return changes, nil
}

type trieNode struct {
	Value    []byte
	Refcount uint32
}

// GetTrieNode gets a trie node and its reference count. A missing node has a
// reference count of zero.
func (r *reader) GetTrieNode(shardUID primitives.ShardUId, nodeHash chainhash.Hash) ([]byte, uint32, error) {
	var node trieNode
	_, err := r.getOptional(colState, trieNodeKey(shardUID, nodeHash), &node)
	return node.Value, node.Refcount, err
}

// ChainStore reads committed chain data and creates updates.
type ChainStore struct {
	reader
	db db.Database
}

// NewChainStore creates a chain store on top of a database.
func NewChainStore(database db.Database, c *config.Config) (*ChainStore, error) {
	headers, err := lru.New(c.HeaderCacheSize)
	if err != nil {
		return nil, errors.Wrap(err, "could not create header cache")
	}
	blocks, err := lru.New(c.BlockCacheSize)
	if err != nil {
		return nil, errors.Wrap(err, "could not create block cache")
	}
	chunkExtras, err := lru.New(c.ChunkExtraCacheSize)
	if err != nil {
		return nil, errors.Wrap(err, "could not create chunk extra cache")
	}

	return &ChainStore{
		reader: reader{
			src:           dbSource{db: database},
			headers:       headers,
			blocks:        blocks,
			chunkExtras:   chunkExtras,
			genesisHeight: c.GenesisHeight,
		},
		db: database,
	}, nil
}

// Database returns the underlying database.
func (s *ChainStore) Database() db.Database {
	return s.db
}

// StoreUpdate starts a new staged update.
func (s *ChainStore) StoreUpdate() *ChainStoreUpdate {
	u := &ChainStoreUpdate{
		store: s,
		batch: db.NewBatch(),
	}
	u.reader = reader{
		src:           &overlay{batch: u.batch, base: s.db},
		headers:       s.headers,
		blocks:        s.blocks,
		chunkExtras:   s.chunkExtras,
		genesisHeight: s.genesisHeight,
	}
	return u
}
