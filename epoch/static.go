package epoch

import (
	"sort"
	"sync"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/phoreproject/chainstate/chainhash"
	"github.com/phoreproject/chainstate/db"
	"github.com/phoreproject/chainstate/primitives"
	"github.com/phoreproject/chainstate/utils"
)

var log = logrus.WithField("module", "epoch")

var blockInfoPrefix = []byte("epoch/blockinfo/")

// HeaderReader looks up block headers.
type HeaderReader interface {
	GetBlockHeader(h chainhash.Hash) (*primitives.BlockHeader, error)
}

// Config is the configuration of the epochs starting at FromEpoch.
type Config struct {
	FromEpoch       uint64
	ShardLayout     *primitives.ShardLayout
	ProtocolVersion primitives.ProtocolVersion
	BlockProducers  []primitives.ValidatorStake
}

// StaticManager is an epoch manager with fixed length epochs. The block after
// prevHeight belongs to epoch (prevHeight + 1 - genesisHeight) / epochLength.
type StaticManager struct {
	database      db.Reader
	headers       HeaderReader
	genesisHeight primitives.BlockHeight
	epochLength   uint64
	schedule      []Config

	lock    *sync.Mutex
	indexes map[primitives.EpochID]uint64
}

var _ Manager = (*StaticManager)(nil)

// NewStaticManager creates a static epoch manager. schedule must contain a
// config for epoch 0.
func NewStaticManager(database db.Reader, headers HeaderReader, genesisHeight primitives.BlockHeight, epochLength uint64, schedule []Config) (*StaticManager, error) {
	if epochLength == 0 {
		return nil, errors.New("epoch length must be positive")
	}
	sorted := append([]Config(nil), schedule...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].FromEpoch < sorted[j].FromEpoch })
	if len(sorted) == 0 || sorted[0].FromEpoch != 0 {
		return nil, errors.New("epoch schedule must start at epoch 0")
	}
	return &StaticManager{
		database:      database,
		headers:       headers,
		genesisHeight: genesisHeight,
		epochLength:   epochLength,
		schedule:      sorted,
		lock:          new(sync.Mutex),
		indexes:       make(map[primitives.EpochID]uint64),
	}, nil
}

// epochIndexAfter is the index of the epoch of the block after prevHeight.
func (m *StaticManager) epochIndexAfter(prevHeight primitives.BlockHeight) uint64 {
	return (prevHeight + 1 - m.genesisHeight) / m.epochLength
}

// EpochIDForIndex returns the id of the epoch with an index.
func (m *StaticManager) EpochIDForIndex(index uint64) primitives.EpochID {
	id := primitives.EpochID(chainhash.HashH(utils.Concat(func(w *utils.Writer) {
		w.WriteBytes([]byte("epoch"))
		w.WriteUint64(index)
	})))
	m.lock.Lock()
	m.indexes[id] = index
	m.lock.Unlock()
	return id
}

// GenesisEpochID is the epoch of the genesis block.
func (m *StaticManager) GenesisEpochID() primitives.EpochID {
	return m.EpochIDForIndex(0)
}

// EpochIDsAfterHeight returns the epoch and next epoch of a block whose
// parent is at prevHeight.
func (m *StaticManager) EpochIDsAfterHeight(prevHeight primitives.BlockHeight) (primitives.EpochID, primitives.EpochID) {
	index := m.epochIndexAfter(prevHeight)
	return m.EpochIDForIndex(index), m.EpochIDForIndex(index + 1)
}

func (m *StaticManager) epochIndex(epochID primitives.EpochID) (uint64, error) {
	m.lock.Lock()
	defer m.lock.Unlock()
	index, found := m.indexes[epochID]
	if !found {
		return 0, errors.Wrapf(ErrUnknownEpoch, "epoch %s", epochID)
	}
	return index, nil
}

func (m *StaticManager) configFor(epochID primitives.EpochID) (*Config, error) {
	index, err := m.epochIndex(epochID)
	if err != nil {
		return nil, err
	}
	i := sort.Search(len(m.schedule), func(i int) bool { return m.schedule[i].FromEpoch > index }) - 1
	return &m.schedule[i], nil
}

func (m *StaticManager) prevHeight(prevHash chainhash.Hash) (primitives.BlockHeight, error) {
	header, err := m.headers.GetBlockHeader(prevHash)
	if err != nil {
		return 0, errors.Wrapf(err, "could not get previous header %s", prevHash)
	}
	return header.Height(), nil
}

// GetEpochIDFromPrevBlock returns the epoch of the block after prevHash.
func (m *StaticManager) GetEpochIDFromPrevBlock(prevHash chainhash.Hash) (primitives.EpochID, error) {
	height, err := m.prevHeight(prevHash)
	if err != nil {
		return primitives.EpochID{}, err
	}
	epochID, _ := m.EpochIDsAfterHeight(height)
	return epochID, nil
}

// GetNextEpochIDFromPrevBlock returns the epoch following the epoch of the
// block after prevHash.
func (m *StaticManager) GetNextEpochIDFromPrevBlock(prevHash chainhash.Hash) (primitives.EpochID, error) {
	height, err := m.prevHeight(prevHash)
	if err != nil {
		return primitives.EpochID{}, err
	}
	_, next := m.EpochIDsAfterHeight(height)
	return next, nil
}

// GetShardLayout returns the shard layout of an epoch.
func (m *StaticManager) GetShardLayout(epochID primitives.EpochID) (*primitives.ShardLayout, error) {
	c, err := m.configFor(epochID)
	if err != nil {
		return nil, err
	}
	return c.ShardLayout, nil
}

// GetShardLayoutFromPrevBlock returns the shard layout of the block after
// prevHash.
func (m *StaticManager) GetShardLayoutFromPrevBlock(prevHash chainhash.Hash) (*primitives.ShardLayout, error) {
	epochID, err := m.GetEpochIDFromPrevBlock(prevHash)
	if err != nil {
		return nil, err
	}
	return m.GetShardLayout(epochID)
}

// GetEpochProtocolVersion returns the protocol version of an epoch.
func (m *StaticManager) GetEpochProtocolVersion(epochID primitives.EpochID) (primitives.ProtocolVersion, error) {
	c, err := m.configFor(epochID)
	if err != nil {
		return 0, err
	}
	return c.ProtocolVersion, nil
}

// ShardIDToUID returns the shard uid of a shard in an epoch.
func (m *StaticManager) ShardIDToUID(shardID primitives.ShardID, epochID primitives.EpochID) (primitives.ShardUId, error) {
	layout, err := m.GetShardLayout(epochID)
	if err != nil {
		return primitives.ShardUId{}, err
	}
	if shardID >= layout.NumShards() {
		return primitives.ShardUId{}, errors.Errorf("shard %d is not in layout version %d", shardID, layout.Version)
	}
	return primitives.NewShardUId(shardID, layout), nil
}

// GetEpochBlockProducersOrdered returns the block producers of an epoch.
func (m *StaticManager) GetEpochBlockProducersOrdered(epochID primitives.EpochID) ([]primitives.ValidatorStake, error) {
	c, err := m.configFor(epochID)
	if err != nil {
		return nil, err
	}
	return c.BlockProducers, nil
}

// AddValidatorProposals records the block info under the block hash.
func (m *StaticManager) AddValidatorProposals(info *BlockHeaderInfo) (*db.Batch, error) {
	data, err := db.Encode(info)
	if err != nil {
		return nil, err
	}
	b := db.NewBatch()
	b.Set(append(append([]byte(nil), blockInfoPrefix...), info.Hash[:]...), data)

	log.WithFields(logrus.Fields{
		"block":     info.Hash,
		"height":    info.Height,
		"proposals": len(info.Proposals),
	}).Debug("recorded block info")

	return b, nil
}

// GetBlockInfo returns the recorded info of a block.
func (m *StaticManager) GetBlockInfo(h chainhash.Hash) (*BlockHeaderInfo, error) {
	data, err := m.database.Get(append(append([]byte(nil), blockInfoPrefix...), h[:]...))
	if err != nil {
		return nil, errors.Wrapf(err, "block info of %s", h)
	}
	info := new(BlockHeaderInfo)
	if err := db.Decode(data, info); err != nil {
		return nil, err
	}
	return info, nil
}

// VerifyApprovalsAndThresholdOrphan checks that approvals can come from the
// block producers of the epoch and that they reach the threshold. The stake
// of the next epoch is taken from the producers of the following epoch.
func (m *StaticManager) VerifyApprovalsAndThresholdOrphan(
	epochID primitives.EpochID,
	threshold ApprovalThresholdFunc,
	prevHash chainhash.Hash,
	prevHeight primitives.BlockHeight,
	height primitives.BlockHeight,
	approvals [][]byte,
) error {
	if prevHeight >= height {
		return errors.Wrapf(ErrInvalidApprovals, "previous height %d is not below %d", prevHeight, height)
	}

	index, err := m.epochIndex(epochID)
	if err != nil {
		return err
	}
	producers, err := m.GetEpochBlockProducersOrdered(epochID)
	if err != nil {
		return err
	}
	nextProducers, err := m.GetEpochBlockProducersOrdered(m.EpochIDForIndex(index + 1))
	if err != nil {
		return err
	}

	if len(approvals) > len(producers) {
		return errors.Wrapf(ErrInvalidApprovals, "%d approvals for %d block producers", len(approvals), len(producers))
	}

	nextStakes := make(map[primitives.AccountID]primitives.Balance)
	for _, p := range nextProducers {
		nextStakes[p.AccountID] = p.Stake
	}

	stakes := make([]ApprovalStake, len(producers))
	for i, p := range producers {
		stakes[i] = ApprovalStake{StakeThisEpoch: p.Stake, StakeNextEpoch: nextStakes[p.AccountID]}
	}

	if !threshold(approvals, stakes) {
		return errors.Wrapf(ErrNotEnoughApprovals, "orphan header at height %d on top of %s", height, prevHash)
	}
	return nil
}
