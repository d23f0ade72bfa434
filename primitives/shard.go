package primitives

import (
	"encoding/binary"
	"fmt"
	"sort"

	"github.com/phoreproject/chainstate/chainhash"
)

// ShardLayout describes how accounts are partitioned into shards and how the
// shards of a layout derive from the shards of the previous one.
//
// A layout without boundary accounts routes accounts by hash modulo the
// number of shards. A layout with boundary accounts routes account a to the
// number of boundary accounts that are <= a.
type ShardLayout struct {
	Version          uint32
	NumShardsV0      uint64
	BoundaryAccounts []AccountID
	// ShardsSplitMap maps a parent shard id (index) to its children in this
	// layout. It is empty when the layout does not split any shard.
	ShardsSplitMap   [][]ShardID
	// ToParentShardMap maps a shard id (index) to its parent.
	ToParentShardMap []ShardID
}

// NewShardLayoutV0 creates a hash routed layout.
func NewShardLayoutV0(numShards uint64, version uint32) *ShardLayout {
	return &ShardLayout{Version: version, NumShardsV0: numShards}
}

// NewShardLayoutV1 creates a boundary routed layout. splitMap may be nil for a
// layout that is not derived from a split.
func NewShardLayoutV1(boundaryAccounts []AccountID, splitMap [][]ShardID, version uint32) *ShardLayout {
	layout := &ShardLayout{
		Version:          version,
		BoundaryAccounts: boundaryAccounts,
		ShardsSplitMap:   splitMap,
	}
	if len(splitMap) > 0 {
		layout.ToParentShardMap = make([]ShardID, len(boundaryAccounts)+1)
		for parent, children := range splitMap {
			for _, c := range children {
				layout.ToParentShardMap[c] = ShardID(parent)
			}
		}
	}
	return layout
}

func (l *ShardLayout) isV0() bool {
	return l.BoundaryAccounts == nil
}

// NumShards is the number of shards in the layout.
func (l *ShardLayout) NumShards() uint64 {
	if l.isV0() {
		return l.NumShardsV0
	}
	return uint64(len(l.BoundaryAccounts) + 1)
}

// ShardIDs lists the shard ids of the layout in order.
func (l *ShardLayout) ShardIDs() []ShardID {
	n := l.NumShards()
	out := make([]ShardID, n)
	for i := range out {
		out[i] = ShardID(i)
	}
	return out
}

// ShardUIDs lists the shard uids of the layout in order.
func (l *ShardLayout) ShardUIDs() []ShardUId {
	ids := l.ShardIDs()
	out := make([]ShardUId, len(ids))
	for i, id := range ids {
		out[i] = NewShardUId(id, l)
	}
	return out
}

// GetChildrenShardsIDs returns the children of a parent shard of the previous
// layout. The second return is false if this layout does not come from a
// split.
func (l *ShardLayout) GetChildrenShardsIDs(parent ShardID) ([]ShardID, bool) {
	if len(l.ShardsSplitMap) == 0 || parent >= uint64(len(l.ShardsSplitMap)) {
		return nil, false
	}
	return l.ShardsSplitMap[parent], true
}

// GetChildrenShardsUIDs is GetChildrenShardsIDs returning shard uids.
func (l *ShardLayout) GetChildrenShardsUIDs(parent ShardID) ([]ShardUId, bool) {
	ids, ok := l.GetChildrenShardsIDs(parent)
	if !ok {
		return nil, false
	}
	out := make([]ShardUId, len(ids))
	for i, id := range ids {
		out[i] = NewShardUId(id, l)
	}
	return out, true
}

// GetParentShardID returns the shard of the previous layout a shard was
// split from.
func (l *ShardLayout) GetParentShardID(shardID ShardID) (ShardID, error) {
	if len(l.ToParentShardMap) == 0 {
		return shardID, nil
	}
	if shardID >= uint64(len(l.ToParentShardMap)) {
		return 0, fmt.Errorf("shard %d is not in layout version %d", shardID, l.Version)
	}
	return l.ToParentShardMap[shardID], nil
}

// AccountIDToShardID routes an account to a shard of the layout.
func (l *ShardLayout) AccountIDToShardID(account AccountID) ShardID {
	if l.isV0() {
		h := chainhash.HashH([]byte(account))
		return binary.LittleEndian.Uint64(h[:8]) % l.NumShardsV0
	}
	return ShardID(sort.Search(len(l.BoundaryAccounts), func(i int) bool {
		return account < l.BoundaryAccounts[i]
	}))
}

// AccountIDToShardUID routes an account to a shard uid of the layout.
func (l *ShardLayout) AccountIDToShardUID(account AccountID) ShardUId {
	return NewShardUId(l.AccountIDToShardID(account), l)
}
