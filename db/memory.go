package db

import (
	"bytes"
	"sort"
	"sync"
)

var _ Database = (*InMemoryDB)(nil)

// InMemoryDB is a very basic key-value database.
type InMemoryDB struct {
	data map[string][]byte
	lock *sync.RWMutex
}

// NewInMemoryDB initializes a new in-memory DB
func NewInMemoryDB() *InMemoryDB {
	return &InMemoryDB{
		data: make(map[string][]byte),
		lock: new(sync.RWMutex),
	}
}

// Get is a database lookup function
func (db *InMemoryDB) Get(key []byte) ([]byte, error) {
	db.lock.RLock()
	defer db.lock.RUnlock()
	v, found := db.data[string(key)]
	if !found {
		return nil, ErrNotFound
	}
	return append([]byte(nil), v...), nil
}

// Has reports whether a key exists.
func (db *InMemoryDB) Has(key []byte) (bool, error) {
	db.lock.RLock()
	defer db.lock.RUnlock()
	_, found := db.data[string(key)]
	return found, nil
}

// IteratePrefix calls fn for every key with the prefix in key order.
func (db *InMemoryDB) IteratePrefix(prefix []byte, fn func(key []byte, value []byte) error) error {
	db.lock.RLock()
	keys := make([]string, 0)
	for k := range db.data {
		if bytes.HasPrefix([]byte(k), prefix) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	values := make([][]byte, len(keys))
	for i, k := range keys {
		values[i] = append([]byte(nil), db.data[k]...)
	}
	db.lock.RUnlock()

	for i, k := range keys {
		if err := fn([]byte(k), values[i]); err != nil {
			return err
		}
	}
	return nil
}

// Write applies a batch under one lock.
func (db *InMemoryDB) Write(b *Batch) error {
	db.lock.Lock()
	defer db.lock.Unlock()
	for _, op := range b.Ops() {
		if op.Delete {
			delete(db.data, string(op.Key))
		} else {
			db.data[string(op.Key)] = append([]byte(nil), op.Value...)
		}
	}
	return nil
}

// Close does nothing for the in-memory database.
func (db *InMemoryDB) Close() error {
	return nil
}
