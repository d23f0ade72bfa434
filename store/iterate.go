package store

import (
	"bytes"
	"encoding/binary"

	"github.com/pkg/errors"

	"github.com/phoreproject/chainstate/chainhash"
	"github.com/phoreproject/chainstate/db"
	"github.com/phoreproject/chainstate/primitives"
	"github.com/phoreproject/chainstate/utils"
)

func keyReader(k []byte, col []byte) *utils.Reader {
	return utils.NewReaderWithEndian(bytes.NewReader(k[len(col):]), binary.BigEndian)
}

// ChallengedBlocks lists every block marked as challenged, in key order.
func (s *ChainStore) ChallengedBlocks() ([]chainhash.Hash, error) {
	var out []chainhash.Hash
	err := s.db.IteratePrefix(colChallengedBlocks, func(k []byte, _ []byte) error {
		h, err := keyReader(k, colChallengedBlocks).ReadHash()
		if err != nil {
			return errors.Wrap(err, "malformed challenged block key")
		}
		out = append(out, h)
		return nil
	})
	return out, err
}

// ChunkExtras returns the chunk extras of every shard stored for a block.
func (s *ChainStore) ChunkExtras(blockHash chainhash.Hash) (map[primitives.ShardUId]*primitives.ChunkExtra, error) {
	prefix := hashKey(colChunkExtra, blockHash)
	out := make(map[primitives.ShardUId]*primitives.ChunkExtra)
	err := s.db.IteratePrefix(prefix, func(k []byte, v []byte) error {
		r := keyReader(k, prefix)
		version, err := r.ReadUint32()
		if err != nil {
			return errors.Wrap(err, "malformed chunk extra key")
		}
		shardID, err := r.ReadUint32()
		if err != nil {
			return errors.Wrap(err, "malformed chunk extra key")
		}

		extra := new(primitives.ChunkExtra)
		if err := db.Decode(v, extra); err != nil {
			return err
		}
		out[primitives.ShardUId{Version: version, ShardID: shardID}] = extra
		return nil
	})
	return out, err
}
