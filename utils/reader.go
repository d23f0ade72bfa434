package utils

import (
	"encoding/binary"
	"io"

	"github.com/phoreproject/chainstate/chainhash"
)

// Reader reads values written by Writer.
type Reader struct {
	reader io.Reader
	endian binary.ByteOrder
	buffer []byte
}

// NewReaderWithEndian creates a reader
func NewReaderWithEndian(reader io.Reader, endian binary.ByteOrder) *Reader {
	return &Reader{
		reader: reader,
		endian: endian,
		buffer: make([]byte, 8),
	}
}

// NewReader creates a reader
func NewReader(reader io.Reader) *Reader {
	return NewReaderWithEndian(reader, binary.LittleEndian)
}

// ReadUint8 reads uint8
func (r Reader) ReadUint8() (uint8, error) {
	buf := r.buffer[0:1]
	_, err := io.ReadFull(r.reader, buf)
	if err != nil {
		return 0, err
	}
	return buf[0], nil
}

// ReadBool reads a single byte bool.
func (r Reader) ReadBool() (bool, error) {
	v, err := r.ReadUint8()
	return v != 0, err
}

// ReadUint16 reads uint16
func (r Reader) ReadUint16() (uint16, error) {
	buf := r.buffer[0:2]
	_, err := io.ReadFull(r.reader, buf)
	if err != nil {
		return 0, err
	}
	return r.endian.Uint16(buf), nil
}

// ReadUint32 reads uint32
func (r Reader) ReadUint32() (uint32, error) {
	buf := r.buffer[0:4]
	_, err := io.ReadFull(r.reader, buf)
	if err != nil {
		return 0, err
	}
	return r.endian.Uint32(buf), nil
}

// ReadUint64 reads uint64
func (r Reader) ReadUint64() (uint64, error) {
	buf := r.buffer[0:8]
	_, err := io.ReadFull(r.reader, buf)
	if err != nil {
		return 0, err
	}
	return r.endian.Uint64(buf), nil
}

// ReadBytes reads []byte
func (r Reader) ReadBytes(p []byte) (int, error) {
	return io.ReadFull(r.reader, p)
}

// ReadVarBytes reads a uint32 length-prefixed byte string.
func (r Reader) ReadVarBytes() ([]byte, error) {
	n, err := r.ReadUint32()
	if err != nil {
		return nil, err
	}
	out := make([]byte, n)
	if _, err := io.ReadFull(r.reader, out); err != nil {
		return nil, err
	}
	return out, nil
}

// ReadHash reads a raw 32 byte hash.
func (r Reader) ReadHash() (chainhash.Hash, error) {
	var h chainhash.Hash
	_, err := io.ReadFull(r.reader, h[:])
	return h, err
}
