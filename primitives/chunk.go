package primitives

import (
	"bytes"

	"github.com/phoreproject/chainstate/chainhash"
	"github.com/phoreproject/chainstate/utils"
)

// CongestionInfo is the congestion state of a shard after a chunk.
type CongestionInfo struct {
	DelayedReceiptsGas  uint64
	BufferedReceiptsGas uint64
	ReceiptBytes        uint64
	AllowedShard        uint16
}

// ShardChunkHeaderV1 is the chunk header format from before congestion info
// existed.
type ShardChunkHeaderV1 struct {
	PrevBlockHash            chainhash.Hash
	PrevStateRoot            chainhash.Hash
	PrevOutcomeRoot          chainhash.Hash
	EncodedMerkleRoot        chainhash.Hash
	HeightCreated            BlockHeight
	HeightIncluded           BlockHeight
	ShardID                  ShardID
	PrevGasUsed              Gas
	GasLimit                 Gas
	PrevBalanceBurnt         Balance
	PrevOutgoingReceiptsRoot chainhash.Hash
	TxRoot                   chainhash.Hash
	PrevValidatorProposals   []ValidatorStake
}

// ShardChunkHeader is a chunk header.
type ShardChunkHeader struct {
	PrevBlockHash            chainhash.Hash
	PrevStateRoot            chainhash.Hash
	PrevOutcomeRoot          chainhash.Hash
	EncodedMerkleRoot        chainhash.Hash
	HeightCreated            BlockHeight
	HeightIncluded           BlockHeight
	ShardID                  ShardID
	PrevGasUsed              Gas
	GasLimit                 Gas
	PrevBalanceBurnt         Balance
	PrevOutgoingReceiptsRoot chainhash.Hash
	TxRoot                   chainhash.Hash
	PrevValidatorProposals   []ValidatorStake
	CongestionInfo           *CongestionInfo
}

// ChunkHash hashes the header. HeightIncluded is not part of the hash since
// it is assigned by the block that includes the chunk.
func (h *ShardChunkHeader) ChunkHash() chainhash.Hash {
	buf := new(bytes.Buffer)
	w := utils.NewWriter(buf)
	w.WriteHash(h.PrevBlockHash)
	w.WriteHash(h.PrevStateRoot)
	w.WriteHash(h.PrevOutcomeRoot)
	w.WriteHash(h.EncodedMerkleRoot)
	w.WriteUint64(h.HeightCreated)
	w.WriteUint64(h.ShardID)
	w.WriteUint64(h.PrevGasUsed)
	w.WriteUint64(h.GasLimit)
	burnt := h.PrevBalanceBurnt.Bytes32()
	w.WriteBytes(burnt[:])
	w.WriteHash(h.PrevOutgoingReceiptsRoot)
	w.WriteHash(h.TxRoot)
	writeValidatorStakes(w, h.PrevValidatorProposals)
	w.WriteBool(h.CongestionInfo != nil)
	if c := h.CongestionInfo; c != nil {
		w.WriteUint64(c.DelayedReceiptsGas)
		w.WriteUint64(c.BufferedReceiptsGas)
		w.WriteUint64(c.ReceiptBytes)
		w.WriteUint16(c.AllowedShard)
	}
	return chainhash.HashH(buf.Bytes())
}

// Upgrade converts a V1 header to the current format.
func (h ShardChunkHeaderV1) Upgrade() ShardChunkHeader {
	return ShardChunkHeader{
		PrevBlockHash:            h.PrevBlockHash,
		PrevStateRoot:            h.PrevStateRoot,
		PrevOutcomeRoot:          h.PrevOutcomeRoot,
		EncodedMerkleRoot:        h.EncodedMerkleRoot,
		HeightCreated:            h.HeightCreated,
		HeightIncluded:           h.HeightIncluded,
		ShardID:                  h.ShardID,
		PrevGasUsed:              h.PrevGasUsed,
		GasLimit:                 h.GasLimit,
		PrevBalanceBurnt:         h.PrevBalanceBurnt,
		PrevOutgoingReceiptsRoot: h.PrevOutgoingReceiptsRoot,
		TxRoot:                   h.TxRoot,
		PrevValidatorProposals:   h.PrevValidatorProposals,
	}
}

// ShardChunk is a chunk with its transactions and the receipts produced by
// the previous chunk of the shard.
type ShardChunk struct {
	Header               ShardChunkHeader
	Transactions         []SignedTransaction
	PrevOutgoingReceipts []Receipt
}

// ChunkHash is the hash of the chunk header.
func (c *ShardChunk) ChunkHash() chainhash.Hash {
	return c.Header.ChunkHash()
}

// ShardChunkV1 is the legacy chunk representation.
type ShardChunkV1 struct {
	Header       ShardChunkHeaderV1
	Transactions []SignedTransaction
	Receipts     []Receipt
}

// Upgrade converts a V1 chunk to the current representation.
func (c ShardChunkV1) Upgrade() ShardChunk {
	return ShardChunk{
		Header:               c.Header.Upgrade(),
		Transactions:         c.Transactions,
		PrevOutgoingReceipts: c.Receipts,
	}
}

// ChunkExtra is the post-state of a shard after a block.
type ChunkExtra struct {
	// Version is 3 when the chunk extra carries congestion info and 2
	// otherwise.
	Version            uint8
	StateRoot          chainhash.Hash
	OutcomeRoot        chainhash.Hash
	ValidatorProposals []ValidatorStake
	GasUsed            Gas
	GasLimit           Gas
	BalanceBurnt       Balance
	CongestionInfo     *CongestionInfo
}

// NewChunkExtra creates a chunk extra whose format depends on whether
// congestion control is enabled at the protocol version.
func NewChunkExtra(
	protocolVersion ProtocolVersion,
	stateRoot chainhash.Hash,
	outcomeRoot chainhash.Hash,
	validatorProposals []ValidatorStake,
	gasUsed Gas,
	gasLimit Gas,
	balanceBurnt Balance,
	congestionInfo *CongestionInfo,
) *ChunkExtra {
	extra := &ChunkExtra{
		Version:            2,
		StateRoot:          stateRoot,
		OutcomeRoot:        outcomeRoot,
		ValidatorProposals: validatorProposals,
		GasUsed:            gasUsed,
		GasLimit:           gasLimit,
		BalanceBurnt:       balanceBurnt,
	}
	if CongestionControl.Enabled(protocolVersion) {
		extra.Version = 3
		if congestionInfo == nil {
			congestionInfo = &CongestionInfo{}
		}
		info := *congestionInfo
		extra.CongestionInfo = &info
	}
	return extra
}

// Copy returns a deep copy of the chunk extra.
func (c *ChunkExtra) Copy() *ChunkExtra {
	out := *c
	out.ValidatorProposals = append([]ValidatorStake(nil), c.ValidatorProposals...)
	if c.CongestionInfo != nil {
		info := *c.CongestionInfo
		out.CongestionInfo = &info
	}
	return &out
}
