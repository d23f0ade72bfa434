package flat

import (
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/phoreproject/chainstate/chainhash"
	"github.com/phoreproject/chainstate/db"
	"github.com/phoreproject/chainstate/primitives"
	"github.com/phoreproject/chainstate/utils"
)

var log = logrus.WithField("module", "flat")

// ErrMissingDelta is returned when the deltas between the flat head and the
// new head are incomplete.
var ErrMissingDelta = errors.New("missing flat state delta")

var (
	deltaPrefix  = []byte("flat/delta/")
	statusPrefix = []byte("flat/status/")
	statePrefix  = []byte("flat/state/")
)

// HeaderReader looks up block headers.
type HeaderReader interface {
	GetBlockHeader(h chainhash.Hash) (*primitives.BlockHeader, error)
}

// KeyReader reads raw values, returning db.ErrNotFound for missing keys.
type KeyReader interface {
	Get(key []byte) ([]byte, error)
}

// View is what the caller's open transaction can see: committed values and
// headers with its staged writes on top.
type View interface {
	KeyReader
	HeaderReader
}

// BlockInfo identifies a block a delta or a flat head belongs to.
type BlockInfo struct {
	Hash     chainhash.Hash
	PrevHash chainhash.Hash
	Height   primitives.BlockHeight
}

// Delta is the set of state changes of one shard in one block.
type Delta struct {
	Metadata BlockInfo
	Changes  []primitives.StateChange
}

// Status is the persisted state of a shard's flat storage.
type Status struct {
	Head BlockInfo
}

func shardKey(prefix []byte, shardUID primitives.ShardUId, fn func(w *utils.Writer)) []byte {
	return utils.Concat(func(w *utils.Writer) {
		w.WriteBytes(prefix)
		w.WriteUint32(shardUID.Version)
		w.WriteUint32(shardUID.ShardID)
		fn(w)
	})
}

func deltaKey(shardUID primitives.ShardUId, blockHash chainhash.Hash) []byte {
	return shardKey(deltaPrefix, shardUID, func(w *utils.Writer) { w.WriteHash(blockHash) })
}

func statusKey(shardUID primitives.ShardUId) []byte {
	return shardKey(statusPrefix, shardUID, func(*utils.Writer) {})
}

func stateKey(shardUID primitives.ShardUId, key []byte) []byte {
	return shardKey(statePrefix, shardUID, func(w *utils.Writer) { w.WriteBytes(key) })
}

// Manager keeps a flat key-value copy of each shard's state at its flat
// head, plus the deltas of blocks above the head. It holds no state of its
// own: everything is read from the database and written through batches the
// caller commits.
type Manager struct {
	database KeyReader
}

// NewManager creates a flat storage manager.
func NewManager(database KeyReader) *Manager {
	return &Manager{database: database}
}

func get(r KeyReader, k []byte, v interface{}) (bool, error) {
	data, err := r.Get(k)
	if err == db.ErrNotFound {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, db.Decode(data, v)
}

// CreateFlatStorageForShard starts flat storage of a shard at head.
func (m *Manager) CreateFlatStorageForShard(shardUID primitives.ShardUId, head BlockInfo) (*db.Batch, error) {
	data, err := db.Encode(Status{Head: head})
	if err != nil {
		return nil, err
	}
	b := db.NewBatch()
	b.Set(statusKey(shardUID), data)
	return b, nil
}

// GetStatus returns the flat storage status of a shard. found is false if the
// shard has no flat storage.
func (m *Manager) GetStatus(shardUID primitives.ShardUId) (status Status, found bool, err error) {
	return getStatus(m.database, shardUID)
}

func getStatus(r KeyReader, shardUID primitives.ShardUId) (status Status, found bool, err error) {
	found, err = get(r, statusKey(shardUID), &status)
	return status, found, err
}

// GetDelta returns the delta of a shard in a block.
func (m *Manager) GetDelta(shardUID primitives.ShardUId, blockHash chainhash.Hash) (*Delta, bool, error) {
	return getDelta(m.database, shardUID, blockHash)
}

func getDelta(r KeyReader, shardUID primitives.ShardUId, blockHash chainhash.Hash) (*Delta, bool, error) {
	delta := new(Delta)
	found, err := get(r, deltaKey(shardUID, blockHash), delta)
	if !found {
		return nil, false, err
	}
	return delta, true, err
}

// GetValue reads a key from the flat state at the flat head.
func (m *Manager) GetValue(shardUID primitives.ShardUId, key []byte) ([]byte, bool, error) {
	v, err := m.database.Get(stateKey(shardUID, key))
	if err == db.ErrNotFound {
		return nil, false, nil
	}
	return v, err == nil, err
}

// SaveFlatStateChanges stages the delta of a shard in a block.
func (m *Manager) SaveFlatStateChanges(
	blockHash chainhash.Hash,
	prevHash chainhash.Hash,
	height primitives.BlockHeight,
	shardUID primitives.ShardUId,
	changes []primitives.StateChange,
) (*db.Batch, error) {
	delta := Delta{
		Metadata: BlockInfo{Hash: blockHash, PrevHash: prevHash, Height: height},
		Changes:  changes,
	}
	data, err := db.Encode(delta)
	if err != nil {
		return nil, err
	}
	b := db.NewBatch()
	b.Set(deltaKey(shardUID, blockHash), data)
	return b, nil
}

// UpdateFlatStorageForShard moves the flat head of a shard to a final block,
// applying the deltas in between. Status and deltas are read through view, so
// deltas staged earlier in the same transaction are applied too. A shard
// without flat storage gets one starting at the final block.
func (m *Manager) UpdateFlatStorageForShard(view View, shardUID primitives.ShardUId, finalBlockHash chainhash.Hash) (*db.Batch, error) {
	final, err := view.GetBlockHeader(finalBlockHash)
	if err != nil {
		return nil, errors.Wrapf(err, "could not get final block %s", finalBlockHash)
	}
	finalInfo := BlockInfo{Hash: finalBlockHash, PrevHash: final.PrevHash, Height: final.Height()}

	status, found, err := getStatus(view, shardUID)
	if err != nil {
		return nil, err
	}
	if !found {
		log.WithFields(logrus.Fields{
			"shard": shardUID,
			"head":  finalBlockHash,
		}).Info("creating flat storage at final block")
		return m.CreateFlatStorageForShard(shardUID, finalInfo)
	}

	b := db.NewBatch()
	if final.Height() <= status.Head.Height {
		return b, nil
	}

	var deltas []*Delta
	for cur := finalBlockHash; cur != status.Head.Hash; {
		delta, found, err := getDelta(view, shardUID, cur)
		if err != nil {
			return nil, err
		}
		if !found || delta.Metadata.Height <= status.Head.Height {
			return nil, errors.Wrapf(ErrMissingDelta, "shard %s block %s above flat head %s", shardUID, cur, status.Head.Hash)
		}
		deltas = append(deltas, delta)
		cur = delta.Metadata.PrevHash
	}

	for i := len(deltas) - 1; i >= 0; i-- {
		for _, change := range deltas[i].Changes {
			if change.Value == nil {
				b.Delete(stateKey(shardUID, change.Key))
			} else {
				b.Set(stateKey(shardUID, change.Key), change.Value)
			}
		}
		b.Delete(deltaKey(shardUID, deltas[i].Metadata.Hash))
	}

	data, err := db.Encode(Status{Head: finalInfo})
	if err != nil {
		return nil, err
	}
	b.Set(statusKey(shardUID), data)

	log.WithFields(logrus.Fields{
		"shard":  shardUID,
		"head":   finalBlockHash,
		"height": final.Height(),
		"deltas": len(deltas),
	}).Debug("moved flat head")

	return b, nil
}
