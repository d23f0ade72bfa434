package db

import (
	"errors"
)

// ErrNotFound is returned by Get when a key does not exist.
var ErrNotFound = errors.New("key not found")

// Reader reads committed key-value pairs.
type Reader interface {
	// Get returns the value of a key or ErrNotFound.
	Get(key []byte) ([]byte, error)
	// Has reports whether a key exists.
	Has(key []byte) (bool, error)
	// IteratePrefix calls fn for every key with the prefix in key order.
	IteratePrefix(prefix []byte, fn func(key []byte, value []byte) error) error
}

// Database is a very basic interface for pluggable key-value databases.
// A batch is written atomically: either every operation of the batch is
// visible afterwards or none is.
type Database interface {
	Reader
	Write(b *Batch) error
	Close() error
}
