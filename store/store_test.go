package store_test

import (
	"testing"

	"github.com/go-test/deep"
	"github.com/pkg/errors"

	"github.com/phoreproject/chainstate/chainhash"
	"github.com/phoreproject/chainstate/config"
	"github.com/phoreproject/chainstate/db"
	"github.com/phoreproject/chainstate/primitives"
	"github.com/phoreproject/chainstate/store"
)

func newStore(t *testing.T) *store.ChainStore {
	c := config.RegtestConfig
	s, err := store.NewChainStore(db.NewInMemoryDB(), &c)
	if err != nil {
		t.Fatal(err)
	}
	return s
}

func makeHeader(prev *primitives.BlockHeader, height primitives.BlockHeight, salt string) *primitives.BlockHeader {
	h := &primitives.BlockHeader{
		InnerLite: primitives.BlockHeaderInnerLite{Height: height},
		InnerRest: primitives.BlockHeaderInnerRest{RandomValue: chainhash.HashH([]byte(salt))},
	}
	if prev != nil {
		h.PrevHash = prev.Hash()
	}
	return h
}

// saveChain saves headers built on top of parent at the given heights.
func saveChain(t *testing.T, u *store.ChainStoreUpdate, parent *primitives.BlockHeader, salt string, heights ...primitives.BlockHeight) []*primitives.BlockHeader {
	var out []*primitives.BlockHeader
	for _, height := range heights {
		h := makeHeader(parent, height, salt)
		if err := u.SaveBlockHeader(h); err != nil {
			t.Fatal(err)
		}
		out = append(out, h)
		parent = h
	}
	return out
}

func expectCanonical(t *testing.T, u *store.ChainStoreUpdate, height primitives.BlockHeight, h *primitives.BlockHeader) {
	got, err := u.GetBlockHashByHeight(height)
	if h == nil {
		if !store.IsNotFound(err) {
			t.Fatalf("expected no canonical block at height %d, got %s (%v)", height, got, err)
		}
		return
	}
	if err != nil {
		t.Fatal(err)
	}
	if got != h.Hash() {
		t.Fatalf("expected canonical block at height %d to be %s, got %s", height, h.Hash(), got)
	}
}

func TestStagedWritesInvisibleUntilCommit(t *testing.T) {
	s := newStore(t)
	u := s.StoreUpdate()

	genesis := makeHeader(nil, 0, "genesis")
	if err := u.SaveBlockHeader(genesis); err != nil {
		t.Fatal(err)
	}

	if _, err := u.GetBlockHeader(genesis.Hash()); err != nil {
		t.Fatal("expected update to read its own staged header")
	}

	if _, err := s.GetBlockHeader(genesis.Hash()); !store.IsNotFound(err) {
		t.Fatal("expected store to not see an uncommitted header")
	}

	if err := u.Commit(); err != nil {
		t.Fatal(err)
	}

	header, err := s.GetBlockHeader(genesis.Hash())
	if err != nil {
		t.Fatal(err)
	}
	if diff := deep.Equal(header.Hash(), genesis.Hash()); diff != nil {
		t.Fatal(diff)
	}
}

func TestDroppedUpdateLeavesStoreUnchanged(t *testing.T) {
	s := newStore(t)

	u := s.StoreUpdate()
	tip := &primitives.Tip{Height: 5, LastBlockHash: chainhash.HashH([]byte("x"))}
	if err := u.SaveBodyHead(tip); err != nil {
		t.Fatal(err)
	}
	if u.Len() == 0 {
		t.Fatal("expected a staged write")
	}

	if _, err := s.Head(); !store.IsNotFound(err) {
		t.Fatal("expected head to be missing")
	}
}

func TestHeaderHeadMaintainsCanonicalIndex(t *testing.T) {
	s := newStore(t)
	u := s.StoreUpdate()

	genesis := saveChain(t, u, nil, "genesis", 0)[0]
	main := saveChain(t, u, genesis, "main", 1, 2, 3)

	if err := u.SaveHeaderHeadIfNotChallenged(primitives.TipFromHeader(main[2])); err != nil {
		t.Fatal(err)
	}
	expectCanonical(t, u, 0, genesis)
	expectCanonical(t, u, 1, main[0])
	expectCanonical(t, u, 3, main[2])

	next, err := u.GetNextBlockHash(main[0].Hash())
	if err != nil {
		t.Fatal(err)
	}
	if next != main[1].Hash() {
		t.Fatal("expected next block hash to follow the header head chain")
	}

	// fork from height 1 skipping height 2
	fork := saveChain(t, u, main[0], "fork", 3, 4)
	if err := u.SaveHeaderHeadIfNotChallenged(primitives.TipFromHeader(fork[1])); err != nil {
		t.Fatal(err)
	}
	expectCanonical(t, u, 1, main[0])
	expectCanonical(t, u, 2, nil)
	expectCanonical(t, u, 3, fork[0])
	expectCanonical(t, u, 4, fork[1])

	next, err = u.GetNextBlockHash(main[0].Hash())
	if err != nil {
		t.Fatal(err)
	}
	if next != fork[0].Hash() {
		t.Fatal("expected next block hash to move to the fork")
	}

	// moving the header head back clears heights above it
	if err := u.SaveHeaderHeadIfNotChallenged(primitives.TipFromHeader(main[1])); err != nil {
		t.Fatal(err)
	}
	expectCanonical(t, u, 2, main[1])
	expectCanonical(t, u, 3, nil)
	expectCanonical(t, u, 4, nil)

	header, err := u.GetBlockHeaderByHeight(2)
	if err != nil {
		t.Fatal(err)
	}
	if header.Hash() != main[1].Hash() {
		t.Fatal("expected header by height to follow the index")
	}
}

func TestHeaderHeadRejectsChallengedBlock(t *testing.T) {
	s := newStore(t)
	u := s.StoreUpdate()

	genesis := saveChain(t, u, nil, "genesis", 0)[0]
	main := saveChain(t, u, genesis, "main", 1)

	if err := u.SaveChallengedBlock(main[0].Hash()); err != nil {
		t.Fatal(err)
	}

	err := u.SaveHeaderHeadIfNotChallenged(primitives.TipFromHeader(main[0]))
	if !errors.Is(err, store.ErrChallengedBlockOnChain) {
		t.Fatalf("expected challenged block error, got %v", err)
	}

	challenged, err := u.IsBlockChallenged(main[0].Hash())
	if err != nil {
		t.Fatal(err)
	}
	if !challenged {
		t.Fatal("expected block to be challenged")
	}
}

func TestHeaderOnChainByHeight(t *testing.T) {
	s := newStore(t)
	u := s.StoreUpdate()

	genesis := saveChain(t, u, nil, "genesis", 0)[0]
	chain := saveChain(t, u, genesis, "c", 1, 3, 4)

	header, err := u.GetBlockHeaderOnChainByHeight(chain[2].Hash(), 1)
	if err != nil {
		t.Fatal(err)
	}
	if header.Hash() != chain[0].Hash() {
		t.Fatal("expected header at height 1 on the chain")
	}

	_, err = u.GetBlockHeaderOnChainByHeight(chain[2].Hash(), 2)
	if !errors.Is(err, store.ErrInvalidBlockHeight) {
		t.Fatalf("expected invalid block height for skipped height, got %v", err)
	}
}

func TestRefcountAndCatchup(t *testing.T) {
	s := newStore(t)
	u := s.StoreUpdate()
	prev := chainhash.HashH([]byte("prev"))
	block := chainhash.HashH([]byte("block"))

	for i := 0; i < 2; i++ {
		if err := u.IncBlockRefcount(prev); err != nil {
			t.Fatal(err)
		}
		if err := u.AddBlockToCatchup(prev, block); err != nil {
			t.Fatal(err)
		}
	}

	refcount, err := u.GetBlockRefcount(prev)
	if err != nil {
		t.Fatal(err)
	}
	if refcount != 2 {
		t.Fatalf("expected refcount 2, got %d", refcount)
	}

	hashes, err := u.GetBlocksToCatchup(prev)
	if err != nil {
		t.Fatal(err)
	}
	if diff := deep.Equal(hashes, []chainhash.Hash{block}); diff != nil {
		t.Fatal(diff)
	}
}

func TestTrieChangesRefcount(t *testing.T) {
	s := newStore(t)
	u := s.StoreUpdate()
	shard := primitives.ShardUId{Version: 1, ShardID: 0}
	node := chainhash.HashH([]byte("node"))

	for i := 0; i < 2; i++ {
		changes := &primitives.TrieChanges{
			ShardUID:     shard,
			BlockHash:    chainhash.HashH([]byte{byte(i)}),
			Insertions:   []primitives.TrieRefcountChange{{NodeHash: node, Value: []byte("v"), Refcount: 1}},
			StateChanges: []primitives.StateChange{{Key: []byte("k"), Value: []byte{byte(i)}}},
		}
		if err := u.SaveTrieChanges(changes); err != nil {
			t.Fatal(err)
		}
	}

	if err := u.Commit(); err != nil {
		t.Fatal(err)
	}

	value, refcount, err := s.GetTrieNode(shard, node)
	if err != nil {
		t.Fatal(err)
	}
	if string(value) != "v" || refcount != 2 {
		t.Fatalf("expected node v with refcount 2, got %s with %d", value, refcount)
	}

	changes, err := s.GetStateChanges(chainhash.HashH([]byte{1}), shard)
	if err != nil {
		t.Fatal(err)
	}
	if len(changes) != 1 || changes[0].Value[0] != 1 {
		t.Fatal("expected state changes of second block")
	}
}

func TestChunkExtraCacheSeesRewrites(t *testing.T) {
	s := newStore(t)
	blockHash := chainhash.HashH([]byte("block"))
	shardUID := primitives.ShardUId{Version: 1, ShardID: 2}

	write := func(root string) {
		u := s.StoreUpdate()
		extra := &primitives.ChunkExtra{StateRoot: chainhash.HashH([]byte(root)), GasLimit: 1000}
		if err := u.SaveChunkExtra(blockHash, shardUID, extra); err != nil {
			t.Fatal(err)
		}
		if err := u.Commit(); err != nil {
			t.Fatal(err)
		}
	}

	write("first")
	extra, err := s.GetChunkExtra(blockHash, shardUID)
	if err != nil {
		t.Fatal(err)
	}
	extra.GasLimit = 1

	cached, err := s.GetChunkExtra(blockHash, shardUID)
	if err != nil {
		t.Fatal(err)
	}
	if cached.GasLimit != 1000 {
		t.Fatal("modifying a returned chunk extra changed the cached one")
	}

	write("second")
	extra, err = s.GetChunkExtra(blockHash, shardUID)
	if err != nil {
		t.Fatal(err)
	}
	if extra.StateRoot != chainhash.HashH([]byte("second")) {
		t.Fatalf("expected rewritten chunk extra, got root %s", extra.StateRoot)
	}
}

func TestListChallengedBlocksAndChunkExtras(t *testing.T) {
	s := newStore(t)
	blockHash := chainhash.HashH([]byte("block"))
	other := chainhash.HashH([]byte("other"))

	u := s.StoreUpdate()
	extras := map[primitives.ShardUId]*primitives.ChunkExtra{
		{Version: 1, ShardID: 0}: {StateRoot: chainhash.HashH([]byte("0")), GasUsed: 3},
		{Version: 1, ShardID: 2}: {StateRoot: chainhash.HashH([]byte("2")), GasUsed: 4},
	}
	for uid, extra := range extras {
		if err := u.SaveChunkExtra(blockHash, uid, extra); err != nil {
			t.Fatal(err)
		}
	}
	if err := u.SaveChunkExtra(other, primitives.ShardUId{Version: 1, ShardID: 1}, &primitives.ChunkExtra{}); err != nil {
		t.Fatal(err)
	}
	if err := u.SaveChallengedBlock(other); err != nil {
		t.Fatal(err)
	}
	if err := u.Commit(); err != nil {
		t.Fatal(err)
	}

	got, err := s.ChunkExtras(blockHash)
	if err != nil {
		t.Fatal(err)
	}
	if diff := deep.Equal(got, extras); diff != nil {
		t.Fatal(diff)
	}

	challenged, err := s.ChallengedBlocks()
	if err != nil {
		t.Fatal(err)
	}
	if len(challenged) != 1 || challenged[0] != other {
		t.Fatalf("expected only %s to be challenged, got %v", other, challenged)
	}
}
