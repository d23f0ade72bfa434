package primitives

import (
	"fmt"

	"github.com/phoreproject/chainstate/chainhash"
	"github.com/phoreproject/chainstate/utils"
)

// BlockHeight is the height of a block.
type BlockHeight = uint64

// Gas is an amount of execution gas.
type Gas = uint64

// ShardID is the index of a shard within a shard layout.
type ShardID = uint64

// AccountID is a human readable account name. Accounts are routed to shards
// by name.
type AccountID string

// EpochID identifies an epoch.
type EpochID chainhash.Hash

// String returns the hash string of the epoch id.
func (e EpochID) String() string {
	return chainhash.Hash(e).String()
}

// IsZero reports whether this is the default epoch id.
func (e EpochID) IsZero() bool {
	return chainhash.Hash(e).IsZero()
}

// ShardUId is a shard identifier that is unique across shard layout versions.
// Ordering is by version and then shard id.
type ShardUId struct {
	Version uint32
	ShardID uint32
}

// NewShardUId creates the shard uid of a shard in a layout.
func NewShardUId(shardID ShardID, layout *ShardLayout) ShardUId {
	return ShardUId{Version: layout.Version, ShardID: uint32(shardID)}
}

// Less orders shard uids by version then shard id.
func (s ShardUId) Less(o ShardUId) bool {
	if s.Version != o.Version {
		return s.Version < o.Version
	}
	return s.ShardID < o.ShardID
}

// String returns s<shard>.v<version>.
func (s ShardUId) String() string {
	return fmt.Sprintf("s%d.v%d", s.ShardID, s.Version)
}

// ProtocolVersion is the version of the protocol rules a block follows.
type ProtocolVersion = uint32

// ProtocolFeature is a protocol change gated on a protocol version.
type ProtocolFeature int

const (
	// SimpleNightshade introduced the first shard split.
	SimpleNightshade ProtocolFeature = iota
	// SimpleNightshadeV2 introduced the second shard split.
	SimpleNightshadeV2
	// CongestionControl adds congestion info to chunks and chunk extras.
	CongestionControl
)

var protocolFeatureVersions = map[ProtocolFeature]ProtocolVersion{
	SimpleNightshade:   48,
	SimpleNightshadeV2: 62,
	CongestionControl:  68,
}

// ProtocolVersion returns the first protocol version that has the feature.
func (f ProtocolFeature) ProtocolVersion() ProtocolVersion {
	return protocolFeatureVersions[f]
}

// Enabled reports whether the feature is active at a protocol version.
func (f ProtocolFeature) Enabled(v ProtocolVersion) bool {
	return v >= f.ProtocolVersion()
}

// ValidatorStake is a validator's stake proposal.
type ValidatorStake struct {
	AccountID AccountID
	PublicKey []byte
	Stake     Balance
}

func writeValidatorStakes(w *utils.Writer, stakes []ValidatorStake) {
	w.WriteUint32(uint32(len(stakes)))
	for _, s := range stakes {
		w.WriteString(string(s.AccountID))
		w.WriteVarBytes(s.PublicKey)
		b := s.Stake.Bytes32()
		w.WriteBytes(b[:])
	}
}
