package config

// DoomslugThresholdMode selects how many approvals a block needs.
type DoomslugThresholdMode uint8

const (
	// NoApprovals accepts blocks without approvals. Used by single node
	// networks and tests.
	NoApprovals DoomslugThresholdMode = iota
	// TwoThirds requires approvals from more than two thirds of the stake.
	TwoThirds
)

// Config is the config for the chain.
type Config struct {
	NetworkID               string
	GenesisHeight           uint64
	EpochLength             uint64
	DoomslugThresholdMode   DoomslugThresholdMode
	SaveStateTransitionData bool
	HeaderCacheSize         int
	BlockCacheSize          int
	ChunkExtraCacheSize     int
}

// MainNetConfig is the config used on the mainnet
var MainNetConfig = Config{
	NetworkID:               "mainnet",
	GenesisHeight:           9820210,
	EpochLength:             43200,
	DoomslugThresholdMode:   TwoThirds,
	SaveStateTransitionData: false,
	HeaderCacheSize:         10000,
	BlockCacheSize:          100,
	ChunkExtraCacheSize:     1000,
}

// LocalnetConfig is the config used for testing the chain locally
var LocalnetConfig = Config{
	NetworkID:               "localnet",
	GenesisHeight:           0,
	EpochLength:             60,
	DoomslugThresholdMode:   TwoThirds,
	SaveStateTransitionData: true,
	HeaderCacheSize:         1000,
	BlockCacheSize:          100,
	ChunkExtraCacheSize:     100,
}

// RegtestConfig is the config used for unit tests
var RegtestConfig = Config{
	NetworkID:               "regtest",
	GenesisHeight:           0,
	EpochLength:             5,
	DoomslugThresholdMode:   NoApprovals,
	SaveStateTransitionData: true,
	HeaderCacheSize:         16,
	BlockCacheSize:          16,
	ChunkExtraCacheSize:     16,
}

// NetworkIDs maps a network ID string to the corresponding config.
var NetworkIDs = map[string]Config{
	"localnet": LocalnetConfig,
	"regtest":  RegtestConfig,
	"mainnet":  MainNetConfig,
}
