package store

import (
	"bytes"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/phoreproject/chainstate/chainhash"
	"github.com/phoreproject/chainstate/db"
	"github.com/phoreproject/chainstate/primitives"
)

// overlay reads the staged value of a key before the committed one.
type overlay struct {
	batch *db.Batch
	base  db.Reader
}

func (o *overlay) get(key []byte) ([]byte, error) {
	if v, staged, deleted := o.batch.Get(key); staged {
		if deleted {
			return nil, db.ErrNotFound
		}
		return v, nil
	}
	return o.base.Get(key)
}

func (o *overlay) staged(key []byte) bool {
	_, staged, _ := o.batch.Get(key)
	return staged
}

// ChainStoreUpdate stages writes to the chain store. Reads through the
// update see staged writes. Nothing is durable until Commit, and an update
// that is dropped without Commit leaves the store unchanged.
type ChainStoreUpdate struct {
	reader
	store *ChainStore
	batch *db.Batch
}

func (u *ChainStoreUpdate) set(k []byte, v interface{}) error {
	data, err := db.Encode(v)
	if err != nil {
		return err
	}
	u.batch.Set(k, data)
	return nil
}

// Merge stages the writes of a batch produced by another component.
func (u *ChainStoreUpdate) Merge(b *db.Batch) {
	u.batch.Merge(b)
}

// Len is the number of staged writes.
func (u *ChainStoreUpdate) Len() int {
	return u.batch.Len()
}

// Commit writes every staged change in one atomic database write.
func (u *ChainStoreUpdate) Commit() error {
	log.WithField("writes", u.batch.Len()).Debug("committing chain store update")
	if err := u.store.db.Write(u.batch); err != nil {
		return errors.Wrap(err, "could not commit chain store update")
	}
	// chunk extras are keyed by block and shard and may be rewritten
	for _, op := range u.batch.Ops() {
		if bytes.HasPrefix(op.Key, colChunkExtra) {
			u.chunkExtras.Remove(string(op.Key))
		}
	}
	u.batch = db.NewBatch()
	u.reader.src = &overlay{batch: u.batch, base: u.store.db}
	return nil
}

// SaveBlockHeader stages a header.
func (u *ChainStoreUpdate) SaveBlockHeader(header *primitives.BlockHeader) error {
	return u.set(hashKey(colBlockHeader, header.Hash()), header)
}

// SaveBlock stages a block.
func (u *ChainStoreUpdate) SaveBlock(block *primitives.Block) error {
	return u.set(hashKey(colBlock, block.Hash()), block)
}

// SaveChunk stages a chunk keyed by its hash.
func (u *ChainStoreUpdate) SaveChunk(chunk *primitives.ShardChunk) error {
	return u.set(hashKey(colChunks, chunk.ChunkHash()), chunk)
}

// SaveChunkExtra stages the post-state of a shard after a block.
func (u *ChainStoreUpdate) SaveChunkExtra(blockHash chainhash.Hash, shardUID primitives.ShardUId, extra *primitives.ChunkExtra) error {
	return u.set(blockShardUIDKey(colChunkExtra, blockHash, shardUID), extra)
}

// SaveGenesisHeight stages the genesis height.
func (u *ChainStoreUpdate) SaveGenesisHeight(height primitives.BlockHeight) error {
	return u.set(miscKey(genesisHeightKey), height)
}

// SaveBodyHead stages the body head.
func (u *ChainStoreUpdate) SaveBodyHead(t *primitives.Tip) error {
	return u.set(miscKey(headKey), t)
}

// SaveFinalHead stages the final head.
func (u *ChainStoreUpdate) SaveFinalHead(t *primitives.Tip) error {
	return u.set(miscKey(finalHeadKey), t)
}

// SaveHead stages t as both the body head and the header head.
func (u *ChainStoreUpdate) SaveHead(t *primitives.Tip) error {
	if err := u.SaveBodyHead(t); err != nil {
		return err
	}
	return u.SaveHeaderHeadIfNotChallenged(t)
}

// SaveHeaderHeadIfNotChallenged stages the header head and points the
// canonical height index at its chain. Heights above a lower new header head
// are removed from the index.
func (u *ChainStoreUpdate) SaveHeaderHeadIfNotChallenged(t *primitives.Tip) error {
	challenged, err := u.IsBlockChallenged(t.LastBlockHash)
	if err != nil {
		return err
	}
	if challenged {
		return errors.Wrapf(ErrChallengedBlockOnChain, "block %s", t.LastBlockHash)
	}

	old, err := u.HeaderHead()
	switch {
	case err == nil:
		for h := t.Height + 1; h <= old.Height; h++ {
			u.batch.Delete(heightKey(h))
		}
	case !IsNotFound(err):
		return err
	}

	if err := u.updateHeightIfNotChallenged(t.Height, t.PrevBlockHash, t.LastBlockHash); err != nil {
		return err
	}

	return u.set(miscKey(headerHeadKey), t)
}

// updateHeightIfNotChallenged sets the index entry of hash and walks its
// ancestors until the index already agrees, clearing heights skipped by the
// chain.
func (u *ChainStoreUpdate) updateHeightIfNotChallenged(height primitives.BlockHeight, prevHash chainhash.Hash, hash chainhash.Hash) error {
	if err := u.set(heightKey(height), hash); err != nil {
		return err
	}

	childHeight := height
	child := hash
	for !prevHash.IsZero() {
		if err := u.SaveNextBlockHash(prevHash, child); err != nil {
			return err
		}

		header, err := u.GetBlockHeader(prevHash)
		if err != nil {
			return err
		}
		for h := header.Height() + 1; h < childHeight; h++ {
			u.batch.Delete(heightKey(h))
		}

		existing, err := u.GetBlockHashByHeight(header.Height())
		if err == nil && existing == prevHash {
			break
		}
		if err != nil && !IsNotFound(err) {
			return err
		}

		challenged, err := u.IsBlockChallenged(prevHash)
		if err != nil {
			return err
		}
		if challenged {
			return errors.Wrapf(ErrChallengedBlockOnChain, "ancestor %s", prevHash)
		}

		if err := u.set(heightKey(header.Height()), prevHash); err != nil {
			return err
		}
		if header.Height() <= u.genesisHeight {
			break
		}
		childHeight = header.Height()
		child = prevHash
		prevHash = header.PrevHash
	}
	return nil
}

// SaveNextBlockHash stages the canonical child of a block.
func (u *ChainStoreUpdate) SaveNextBlockHash(h chainhash.Hash, next chainhash.Hash) error {
	return u.set(hashKey(colNextBlockHashes, h), next)
}

// SaveChallengedBlock marks a block as invalidated by a challenge.
func (u *ChainStoreUpdate) SaveChallengedBlock(h chainhash.Hash) error {
	return u.set(hashKey(colChallengedBlocks, h), true)
}

// IncBlockRefcount increments the number of stored children of a block.
func (u *ChainStoreUpdate) IncBlockRefcount(h chainhash.Hash) error {
	refcount, err := u.GetBlockRefcount(h)
	if err != nil {
		return err
	}
	return u.set(hashKey(colBlockRefCount, h), refcount+1)
}

// AddBlockToCatchup registers a block that has to be reprocessed once state
// sync for its epoch finishes. Adding a block twice has no effect.
func (u *ChainStoreUpdate) AddBlockToCatchup(prevHash chainhash.Hash, h chainhash.Hash) error {
	hashes, err := u.GetBlocksToCatchup(prevHash)
	if err != nil {
		return err
	}
	for _, existing := range hashes {
		if existing == h {
			return nil
		}
	}
	return u.set(hashKey(colBlocksToCatchup, prevHash), append(hashes, h))
}

// SaveIncomingReceipt stages the receipt proofs a shard received in a block.
func (u *ChainStoreUpdate) SaveIncomingReceipt(blockHash chainhash.Hash, shardID primitives.ShardID, proofs []primitives.ReceiptProof) error {
	return u.set(blockShardIDKey(colIncomingReceipts, blockHash, shardID), proofs)
}

// SaveOutgoingReceipt stages the receipts a shard sent in a block.
func (u *ChainStoreUpdate) SaveOutgoingReceipt(blockHash chainhash.Hash, shardID primitives.ShardID, receipts []primitives.Receipt) error {
	return u.set(blockShardIDKey(colOutgoingReceipts, blockHash, shardID), receipts)
}

// SaveOutcomesWithProofs stages the execution outcomes of a shard with their
// paths to the outcome root.
func (u *ChainStoreUpdate) SaveOutcomesWithProofs(blockHash chainhash.Hash, shardID primitives.ShardID, outcomes []primitives.ExecutionOutcomeWithID, proofs []primitives.MerklePath) error {
	if len(outcomes) != len(proofs) {
		return errors.Errorf("got %d outcomes and %d proofs", len(outcomes), len(proofs))
	}
	ids := make([]chainhash.Hash, len(outcomes))
	for i, o := range outcomes {
		ids[i] = o.ID
		withProof := primitives.ExecutionOutcomeWithProof{Proof: proofs[i], Outcome: o.Outcome}
		if err := u.set(outcomeKey(o.ID, blockHash), withProof); err != nil {
			return err
		}
	}
	return u.set(blockShardIDKey(colOutcomeIds, blockHash, shardID), ids)
}

// SaveStateTransitionData stages the data needed to replay a chunk.
func (u *ChainStoreUpdate) SaveStateTransitionData(blockHash chainhash.Hash, shardID primitives.ShardID, partialState primitives.PartialState, receiptsHash chainhash.Hash, contractAccesses []chainhash.Hash) error {
	data := primitives.StoredChunkStateTransitionData{
		BaseState:        partialState,
		ReceiptsHash:     receiptsHash,
		ContractAccesses: contractAccesses,
	}
	return u.set(blockShardIDKey(colStateTransitionData, blockHash, shardID), data)
}

// SaveBlockExtra stages the extra data of a block.
func (u *ChainStoreUpdate) SaveBlockExtra(h chainhash.Hash, extra *primitives.BlockExtra) error {
	return u.set(hashKey(colBlockExtra, h), extra)
}

// AddStateSyncInfo stages a pending state sync request.
func (u *ChainStoreUpdate) AddStateSyncInfo(info *primitives.StateSyncInfo) error {
	return u.set(hashKey(colStateSyncInfos, info.EpochFirstBlock), info)
}

// SaveEpochLightClientBlock stages the light client block of an epoch.
func (u *ChainStoreUpdate) SaveEpochLightClientBlock(epochID primitives.EpochID, view *primitives.LightClientBlockView) error {
	return u.set(hashKey(colEpochLightClientBlocks, chainhash.Hash(epochID)), view)
}

// AddStateChangesForResharding stages the changes of a parent shard that its
// children still have to apply.
func (u *ChainStoreUpdate) AddStateChangesForResharding(blockHash chainhash.Hash, shardID primitives.ShardID, changes *primitives.StateChangesForResharding) error {
	return u.set(blockShardIDKey(colStateChangesForResharding, blockHash, shardID), changes)
}

// SaveTrieChanges stages the trie changes of a shard. Inserted nodes get
// their reference count incremented; deletions are kept with the record and
// only applied when the block is garbage collected.
func (u *ChainStoreUpdate) SaveTrieChanges(changes *primitives.TrieChanges) error {
	for _, ins := range changes.Insertions {
		value, refcount, err := u.GetTrieNode(changes.ShardUID, ins.NodeHash)
		if err != nil {
			return err
		}
		if value == nil {
			value = ins.Value
		}
		node := trieNode{Value: value, Refcount: refcount + ins.Refcount}
		if err := u.set(trieNodeKey(changes.ShardUID, ins.NodeHash), node); err != nil {
			return err
		}
	}

	if err := u.set(blockShardUIDKey(colStateChanges, changes.BlockHash, changes.ShardUID), changes.StateChanges); err != nil {
		return err
	}

	log.WithFields(logrus.Fields{
		"shard":      changes.ShardUID,
		"block":      changes.BlockHash,
		"insertions": len(changes.Insertions),
		"deletions":  len(changes.Deletions),
	}).Debug("staged trie changes")

	return u.set(blockShardUIDKey(colTrieChanges, changes.BlockHash, changes.ShardUID), changes)
}
