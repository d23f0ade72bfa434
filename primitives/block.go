package primitives

import (
	"bytes"

	"github.com/phoreproject/chainstate/chainhash"
	"github.com/phoreproject/chainstate/utils"
)

// BlockHeaderInnerLite is the part of the header light clients track.
type BlockHeaderInnerLite struct {
	Height          BlockHeight
	EpochID         EpochID
	NextEpochID     EpochID
	PrevStateRoot   chainhash.Hash
	OutcomeRoot     chainhash.Hash
	Timestamp       uint64
	NextBPHash      chainhash.Hash
	BlockMerkleRoot chainhash.Hash
}

// Hash hashes the canonical encoding of the inner lite part.
func (i *BlockHeaderInnerLite) Hash() chainhash.Hash {
	buf := new(bytes.Buffer)
	w := utils.NewWriter(buf)
	w.WriteUint64(i.Height)
	w.WriteHash(chainhash.Hash(i.EpochID))
	w.WriteHash(chainhash.Hash(i.NextEpochID))
	w.WriteHash(i.PrevStateRoot)
	w.WriteHash(i.OutcomeRoot)
	w.WriteUint64(i.Timestamp)
	w.WriteHash(i.NextBPHash)
	w.WriteHash(i.BlockMerkleRoot)
	return chainhash.HashH(buf.Bytes())
}

// SlashedValidator is a validator punished by a challenge.
type SlashedValidator struct {
	AccountID    AccountID
	IsDoubleSign bool
}

// ChallengesResult lists the validators slashed by the challenges of a block.
type ChallengesResult []SlashedValidator

// BlockHeaderInnerRest is the remainder of the header.
type BlockHeaderInnerRest struct {
	ChunkReceiptsRoot      chainhash.Hash
	ChunkHeadersRoot       chainhash.Hash
	ChunkTxRoot            chainhash.Hash
	ChallengesRoot         chainhash.Hash
	RandomValue            chainhash.Hash
	PrevValidatorProposals []ValidatorStake
	ChunkMask              []bool
	NextGasPrice           Balance
	TotalSupply            Balance
	ChallengesResult       ChallengesResult
	LastFinalBlock         chainhash.Hash
	LastDSFinalBlock       chainhash.Hash
	BlockOrdinal           uint64
	// PrevHeight is nil for headers produced before the previous height was
	// recorded in the header.
	PrevHeight             *BlockHeight
	Approvals              [][]byte
	LatestProtocolVersion  ProtocolVersion
}

// Hash hashes the canonical encoding of the inner rest part.
func (i *BlockHeaderInnerRest) Hash() chainhash.Hash {
	buf := new(bytes.Buffer)
	w := utils.NewWriter(buf)
	w.WriteHash(i.ChunkReceiptsRoot)
	w.WriteHash(i.ChunkHeadersRoot)
	w.WriteHash(i.ChunkTxRoot)
	w.WriteHash(i.ChallengesRoot)
	w.WriteHash(i.RandomValue)
	writeValidatorStakes(w, i.PrevValidatorProposals)
	w.WriteUint32(uint32(len(i.ChunkMask)))
	for _, m := range i.ChunkMask {
		w.WriteBool(m)
	}
	gasPrice := i.NextGasPrice.Bytes32()
	w.WriteBytes(gasPrice[:])
	supply := i.TotalSupply.Bytes32()
	w.WriteBytes(supply[:])
	w.WriteUint32(uint32(len(i.ChallengesResult)))
	for _, s := range i.ChallengesResult {
		w.WriteString(string(s.AccountID))
		w.WriteBool(s.IsDoubleSign)
	}
	w.WriteHash(i.LastFinalBlock)
	w.WriteHash(i.LastDSFinalBlock)
	w.WriteUint64(i.BlockOrdinal)
	w.WriteBool(i.PrevHeight != nil)
	if i.PrevHeight != nil {
		w.WriteUint64(*i.PrevHeight)
	}
	w.WriteUint32(uint32(len(i.Approvals)))
	for _, a := range i.Approvals {
		w.WriteBool(a != nil)
		if a != nil {
			w.WriteVarBytes(a)
		}
	}
	w.WriteUint32(i.LatestProtocolVersion)
	return chainhash.HashH(buf.Bytes())
}

// BlockHeader is a block header. The block hash commits to the previous hash
// and both inner parts.
type BlockHeader struct {
	PrevHash  chainhash.Hash
	InnerLite BlockHeaderInnerLite
	InnerRest BlockHeaderInnerRest
	Signature []byte
}

// ComputeInnerHash combines the hashes of the two inner parts.
func ComputeInnerHash(lite chainhash.Hash, rest chainhash.Hash) chainhash.Hash {
	return chainhash.CombineHashes(lite, rest)
}

// InnerHash is the hash of the inner parts of the header.
func (h *BlockHeader) InnerHash() chainhash.Hash {
	return ComputeInnerHash(h.InnerLite.Hash(), h.InnerRest.Hash())
}

// Hash gets the hash of the block header.
func (h *BlockHeader) Hash() chainhash.Hash {
	return chainhash.CombineHashes(h.InnerHash(), h.PrevHash)
}

// Height is the height of the block.
func (h *BlockHeader) Height() BlockHeight {
	return h.InnerLite.Height
}

// EpochID is the epoch the block belongs to.
func (h *BlockHeader) EpochID() EpochID {
	return h.InnerLite.EpochID
}

// NextEpochID is the epoch following the block's epoch.
func (h *BlockHeader) NextEpochID() EpochID {
	return h.InnerLite.NextEpochID
}

// LastFinalBlock is the hash of the last final block, or the default hash if
// no block is final yet.
func (h *BlockHeader) LastFinalBlock() chainhash.Hash {
	return h.InnerRest.LastFinalBlock
}

// NextGasPrice is the gas price that applies to the next block.
func (h *BlockHeader) NextGasPrice() Balance {
	return h.InnerRest.NextGasPrice
}

// BlockOrdinal is the number of blocks on the chain up to this one.
func (h *BlockHeader) BlockOrdinal() uint64 {
	return h.InnerRest.BlockOrdinal
}

// PrevHeight returns the previous block's height if the header records it.
func (h *BlockHeader) PrevHeight() (BlockHeight, bool) {
	if h.InnerRest.PrevHeight == nil {
		return 0, false
	}
	return *h.InnerRest.PrevHeight, true
}

// Block is a header plus the chunk headers it includes.
type Block struct {
	Header BlockHeader
	Chunks []ShardChunkHeader
}

// Hash gets the hash of the block.
func (b *Block) Hash() chainhash.Hash {
	return b.Header.Hash()
}

// BlockCongestionInfo collects the congestion info of every chunk that
// carries one, keyed by shard.
func (b *Block) BlockCongestionInfo() map[ShardID]CongestionInfo {
	out := make(map[ShardID]CongestionInfo)
	for _, c := range b.Chunks {
		if c.CongestionInfo != nil {
			out[c.ShardID] = *c.CongestionInfo
		}
	}
	return out
}

// BlockExtra is additional per-block data computed while processing.
type BlockExtra struct {
	ChallengesResult ChallengesResult
}

// Tip is a pointer to a block at the end of some chain.
type Tip struct {
	Height        BlockHeight
	LastBlockHash chainhash.Hash
	PrevBlockHash chainhash.Hash
	EpochID       EpochID
	NextEpochID   EpochID
}

// TipFromHeader creates the tip for a header.
func TipFromHeader(h *BlockHeader) *Tip {
	return &Tip{
		Height:        h.Height(),
		LastBlockHash: h.Hash(),
		PrevBlockHash: h.PrevHash,
		EpochID:       h.EpochID(),
		NextEpochID:   h.NextEpochID(),
	}
}

// LightClientBlockView is the data a light client needs to follow epoch
// transitions.
type LightClientBlockView struct {
	PrevBlockHash      chainhash.Hash
	NextBlockInnerHash chainhash.Hash
	InnerLite          BlockHeaderInnerLite
	InnerRestHash      chainhash.Hash
	NextBPs            []ValidatorStake
	ApprovalsAfterNext [][]byte
}
