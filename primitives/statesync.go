package primitives

import (
	"github.com/phoreproject/chainstate/chainhash"
)

// StateRootNode is the root node of a shard's state trie.
type StateRootNode struct {
	Data        []byte
	MemoryUsage uint64
}

// RootProof proves a chunk's outgoing receipts root in a block.
type RootProof struct {
	Root  chainhash.Hash
	Proof MerklePath
}

// ShardStateSyncResponseHeader is the header a peer sends when serving the
// state of a shard. Both versions expose the same data.
type ShardStateSyncResponseHeader interface {
	Chunk() ShardChunk
	ChunkProof() MerklePath
	IncomingReceiptsProofs() []ReceiptProofResponse
	StateRootNode() StateRootNode

	isShardStateSyncResponseHeader()
}

// ShardStateSyncResponseHeaderV1 carries chunks in the legacy format.
type ShardStateSyncResponseHeaderV1 struct {
	ChunkV1          ShardChunkV1
	Proof            MerklePath
	PrevChunkHeader  *ShardChunkHeaderV1
	PrevChunkProof   MerklePath
	IncomingReceipts []ReceiptProofResponse
	RootProofs       [][]RootProof
	RootNode         StateRootNode
}

// ShardStateSyncResponseHeaderV2 carries chunks in the current format.
type ShardStateSyncResponseHeaderV2 struct {
	ShardChunk       ShardChunk
	Proof            MerklePath
	PrevChunkHeader  *ShardChunkHeader
	PrevChunkProof   MerklePath
	IncomingReceipts []ReceiptProofResponse
	RootProofs       [][]RootProof
	RootNode         StateRootNode
}

// Chunk returns the chunk converted to the current format.
func (h *ShardStateSyncResponseHeaderV1) Chunk() ShardChunk { return h.ChunkV1.Upgrade() }

// ChunkProof returns the proof of the chunk in its block.
func (h *ShardStateSyncResponseHeaderV1) ChunkProof() MerklePath { return h.Proof }

// IncomingReceiptsProofs returns the incoming receipts since the chunk.
func (h *ShardStateSyncResponseHeaderV1) IncomingReceiptsProofs() []ReceiptProofResponse {
	return h.IncomingReceipts
}

// StateRootNode returns the root node of the state.
func (h *ShardStateSyncResponseHeaderV1) StateRootNode() StateRootNode { return h.RootNode }

func (h *ShardStateSyncResponseHeaderV1) isShardStateSyncResponseHeader() {}

// Chunk returns the chunk.
func (h *ShardStateSyncResponseHeaderV2) Chunk() ShardChunk { return h.ShardChunk }

// ChunkProof returns the proof of the chunk in its block.
func (h *ShardStateSyncResponseHeaderV2) ChunkProof() MerklePath { return h.Proof }

// IncomingReceiptsProofs returns the incoming receipts since the chunk.
func (h *ShardStateSyncResponseHeaderV2) IncomingReceiptsProofs() []ReceiptProofResponse {
	return h.IncomingReceipts
}

// StateRootNode returns the root node of the state.
func (h *ShardStateSyncResponseHeaderV2) StateRootNode() StateRootNode { return h.RootNode }

func (h *ShardStateSyncResponseHeaderV2) isShardStateSyncResponseHeader() {}

// ShardInfo names a shard to sync and the chunk it was last updated by.
type ShardInfo struct {
	ShardID   ShardID
	ChunkHash chainhash.Hash
}

// StateSyncInfo is a pending request to sync the state of shards for the
// epoch starting at EpochFirstBlock.
type StateSyncInfo struct {
	EpochFirstBlock chainhash.Hash
	Shards          []ShardInfo
}
