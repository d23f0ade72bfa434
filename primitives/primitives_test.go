package primitives_test

import (
	"fmt"
	"testing"

	"github.com/go-test/deep"

	"github.com/phoreproject/chainstate/chainhash"
	"github.com/phoreproject/chainstate/primitives"
)

func TestMerklizePaths(t *testing.T) {
	for n := 1; n <= 9; n++ {
		leaves := make([]chainhash.Hash, n)
		for i := range leaves {
			leaves[i] = chainhash.HashH([]byte(fmt.Sprintf("leaf %d", i)))
		}

		root, paths := primitives.Merklize(leaves)
		if len(paths) != n {
			t.Fatalf("expected %d paths, got %d", n, len(paths))
		}

		for i := range leaves {
			if !primitives.VerifyPath(root, paths[i], leaves[i]) {
				t.Fatalf("path for leaf %d of %d does not verify", i, n)
			}
		}

		other := chainhash.HashH([]byte("not a leaf"))
		if primitives.VerifyPath(root, paths[0], other) {
			t.Fatal("expected path to reject unknown leaf")
		}
	}
}

func TestMerklizeSmall(t *testing.T) {
	root, paths := primitives.Merklize(nil)
	if !root.IsZero() || len(paths) != 0 {
		t.Fatal("expected empty tree to have default root and no paths")
	}

	a := chainhash.HashH([]byte("a"))
	b := chainhash.HashH([]byte("b"))

	root, _ = primitives.Merklize([]chainhash.Hash{a})
	if root != a {
		t.Fatal("expected single leaf to be the root")
	}

	root, _ = primitives.Merklize([]chainhash.Hash{a, b})
	if root != chainhash.CombineHashes(a, b) {
		t.Fatal("expected root of two leaves to combine them")
	}
}

func TestShardLayoutBoundaryRouting(t *testing.T) {
	layout := primitives.NewShardLayoutV1([]primitives.AccountID{"b", "d"}, nil, 1)

	if layout.NumShards() != 3 {
		t.Fatalf("expected 3 shards, got %d", layout.NumShards())
	}

	cases := map[primitives.AccountID]primitives.ShardID{
		"a":  0,
		"b":  1,
		"c":  1,
		"d":  2,
		"zz": 2,
	}
	for account, shard := range cases {
		if got := layout.AccountIDToShardID(account); got != shard {
			t.Fatalf("expected %s on shard %d, got %d", account, shard, got)
		}
	}
}

func TestShardLayoutSplit(t *testing.T) {
	layout := primitives.NewShardLayoutV1(
		[]primitives.AccountID{"b", "d", "f"},
		[][]primitives.ShardID{{0, 1}, {2, 3}},
		2,
	)

	children, ok := layout.GetChildrenShardsUIDs(1)
	if !ok {
		t.Fatal("expected shard 1 to have children")
	}

	expected := []primitives.ShardUId{{Version: 2, ShardID: 2}, {Version: 2, ShardID: 3}}
	if diff := deep.Equal(children, expected); diff != nil {
		t.Fatal(diff)
	}

	parent, err := layout.GetParentShardID(3)
	if err != nil {
		t.Fatal(err)
	}
	if parent != 1 {
		t.Fatalf("expected parent 1, got %d", parent)
	}

	if _, ok := primitives.NewShardLayoutV0(1, 0).GetChildrenShardsIDs(0); ok {
		t.Fatal("expected layout without split map to have no children")
	}
}

func TestShardLayoutV0Routing(t *testing.T) {
	layout := primitives.NewShardLayoutV0(4, 0)
	for _, account := range []primitives.AccountID{"alice", "bob", "carol"} {
		if layout.AccountIDToShardID(account) >= 4 {
			t.Fatalf("account %s routed outside layout", account)
		}
		if layout.AccountIDToShardID(account) != layout.AccountIDToShardID(account) {
			t.Fatal("expected routing to be deterministic")
		}
	}
}

func TestShardUIdOrdering(t *testing.T) {
	a := primitives.ShardUId{Version: 1, ShardID: 5}
	b := primitives.ShardUId{Version: 2, ShardID: 0}
	c := primitives.ShardUId{Version: 2, ShardID: 1}

	if !a.Less(b) || !b.Less(c) || c.Less(a) {
		t.Fatal("expected shard uids to order by version then shard id")
	}
}

func TestBalanceDivMod(t *testing.T) {
	q, r := primitives.NewBalance(7).DivMod(3)
	if q.Cmp(primitives.NewBalance(2)) != 0 || r != 1 {
		t.Fatalf("expected 7/3 = 2 r 1, got %s r %d", q, r)
	}

	total := primitives.NewBalance(1<<63 - 1).Add(primitives.NewBalance(1<<63 - 1)).Add(primitives.NewBalance(10))
	q, r = total.DivMod(2)
	if q.Add(q).Add(primitives.NewBalance(r)).Cmp(total) != 0 {
		t.Fatal("expected quotient and remainder to recompose a balance wider than 64 bits")
	}
}

func TestChunkExtraVersionGate(t *testing.T) {
	before := primitives.CongestionControl.ProtocolVersion() - 1
	extra := primitives.NewChunkExtra(before, chainhash.Hash{}, chainhash.Hash{}, nil, 1, 2, primitives.NewBalance(3), nil)
	if extra.Version != 2 || extra.CongestionInfo != nil {
		t.Fatal("expected chunk extra without congestion info before congestion control")
	}

	info := &primitives.CongestionInfo{DelayedReceiptsGas: 10}
	extra = primitives.NewChunkExtra(before+1, chainhash.Hash{}, chainhash.Hash{}, nil, 1, 2, primitives.NewBalance(3), info)
	if extra.Version != 3 || extra.CongestionInfo == nil || extra.CongestionInfo.DelayedReceiptsGas != 10 {
		t.Fatal("expected chunk extra with congestion info once congestion control is enabled")
	}

	info.DelayedReceiptsGas = 11
	if extra.CongestionInfo.DelayedReceiptsGas != 10 {
		t.Fatal("expected chunk extra to own its congestion info")
	}
}

func TestChunkHashIgnoresHeightIncluded(t *testing.T) {
	h := primitives.ShardChunkHeader{HeightCreated: 4, HeightIncluded: 4, ShardID: 1}
	h2 := h
	h2.HeightIncluded = 5

	if h.ChunkHash() != h2.ChunkHash() {
		t.Fatal("expected chunk hash to not depend on inclusion height")
	}

	h2.GasLimit = 1
	if h.ChunkHash() == h2.ChunkHash() {
		t.Fatal("expected chunk hash to depend on gas limit")
	}
}

func TestStateSyncHeaderVersions(t *testing.T) {
	receipts := []primitives.ReceiptProofResponse{{
		BlockHash: chainhash.HashH([]byte("b")),
		Proofs: []primitives.ReceiptProof{{
			Receipts: []primitives.Receipt{{ReceiverID: "alice"}, {ReceiverID: "bob"}},
		}},
	}}

	v1 := &primitives.ShardStateSyncResponseHeaderV1{
		ChunkV1: primitives.ShardChunkV1{
			Header:   primitives.ShardChunkHeaderV1{ShardID: 2, HeightIncluded: 7},
			Receipts: []primitives.Receipt{{ReceiverID: "carol"}},
		},
		IncomingReceipts: receipts,
	}
	v2 := &primitives.ShardStateSyncResponseHeaderV2{
		ShardChunk: primitives.ShardChunk{
			Header:               primitives.ShardChunkHeader{ShardID: 2, HeightIncluded: 7},
			PrevOutgoingReceipts: []primitives.Receipt{{ReceiverID: "carol"}},
		},
		IncomingReceipts: receipts,
	}

	for _, h := range []primitives.ShardStateSyncResponseHeader{v1, v2} {
		if diff := deep.Equal(h.Chunk(), v2.ShardChunk); diff != nil {
			t.Fatal(diff)
		}
		if len(primitives.CollectReceiptsFromResponse(h.IncomingReceiptsProofs())) != 2 {
			t.Fatal("expected two incoming receipts")
		}
	}
}

func TestHeaderHashCommitsToInnerParts(t *testing.T) {
	h := primitives.BlockHeader{
		PrevHash:  chainhash.HashH([]byte("prev")),
		InnerLite: primitives.BlockHeaderInnerLite{Height: 3},
	}
	base := h.Hash()

	h.InnerRest.BlockOrdinal = 3
	if h.Hash() == base {
		t.Fatal("expected hash to change with inner rest")
	}

	tip := primitives.TipFromHeader(&h)
	if tip.LastBlockHash != h.Hash() || tip.PrevBlockHash != h.PrevHash || tip.Height != 3 {
		t.Fatal("expected tip to point at header")
	}
}
