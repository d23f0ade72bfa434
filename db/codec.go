package db

import (
	"github.com/golang/snappy"
	"github.com/pkg/errors"
	"github.com/vmihailenco/msgpack/v4"
)

// Encode serializes a value with msgpack and compresses it with snappy.
func Encode(v interface{}) ([]byte, error) {
	val, err := msgpack.Marshal(v)
	if err != nil {
		return nil, errors.Wrap(err, "could not encode value")
	}
	return snappy.Encode(nil, val), nil
}

// Decode reverses Encode.
func Decode(data []byte, v interface{}) error {
	val, err := snappy.Decode(nil, data)
	if err != nil {
		return errors.Wrap(err, "could not uncompress value")
	}
	if err := msgpack.Unmarshal(val, v); err != nil {
		return errors.Wrap(err, "could not decode value")
	}
	return nil
}
