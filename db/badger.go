package db

import (
	"github.com/dgraph-io/badger"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

var _ Database = (*BadgerDB)(nil)

// BadgerDB is a wrapper around the badger database.
type BadgerDB struct {
	db *badger.DB
}

// NewBadgerDB opens the badger database in the supplied directories.
func NewBadgerDB(databaseDir string, databaseValueDir string) (*BadgerDB, error) {
	opts := badger.DefaultOptions(databaseDir).
		WithValueDir(databaseValueDir).
		WithLogger(logrus.WithField("module", "badger"))
	db, err := badger.Open(opts)
	if err != nil {
		return nil, errors.Wrapf(err, "could not open badger database at %s", databaseDir)
	}

	return &BadgerDB{
		db: db,
	}, nil
}

// Get gets the value of a key.
func (b *BadgerDB) Get(key []byte) ([]byte, error) {
	var out []byte
	err := b.db.View(func(txn *badger.Txn) error {
		i, err := txn.Get(key)
		if err == badger.ErrKeyNotFound {
			return ErrNotFound
		}
		if err != nil {
			return err
		}
		out, err = i.ValueCopy(nil)
		return err
	})
	return out, err
}

// Has reports whether a key exists.
func (b *BadgerDB) Has(key []byte) (bool, error) {
	_, err := b.Get(key)
	if err == ErrNotFound {
		return false, nil
	}
	return err == nil, err
}

// IteratePrefix calls fn for every key with the prefix in key order.
func (b *BadgerDB) IteratePrefix(prefix []byte, fn func(key []byte, value []byte) error) error {
	return b.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			item := it.Item()
			value, err := item.ValueCopy(nil)
			if err != nil {
				return err
			}
			if err := fn(item.KeyCopy(nil), value); err != nil {
				return err
			}
		}
		return nil
	})
}

// Write applies the batch in a single badger transaction.
func (b *BadgerDB) Write(batch *Batch) error {
	return b.db.Update(func(txn *badger.Txn) error {
		for _, op := range batch.Ops() {
			var err error
			if op.Delete {
				err = txn.Delete(op.Key)
			} else {
				err = txn.Set(op.Key, op.Value)
			}
			if err != nil {
				return errors.Wrap(err, "could not stage write")
			}
		}
		return nil
	})
}

// Close closes the database.
func (b *BadgerDB) Close() error {
	return b.db.Close()
}
