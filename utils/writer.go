package utils

import (
	"bytes"
	"encoding/binary"
	"io"

	"github.com/phoreproject/chainstate/chainhash"
)

// Writer writes fixed-width integers, hashes and length-prefixed byte strings
// into a canonical binary form. Header commitments and store keys are built
// with it.
type Writer struct {
	writer io.Writer
	endian binary.ByteOrder
	buffer []byte
}

// NewWriterWithEndian creates a writer
func NewWriterWithEndian(writer io.Writer, endian binary.ByteOrder) *Writer {
	return &Writer{
		writer: writer,
		endian: endian,
		buffer: make([]byte, 8),
	}
}

// NewWriter creates a writer
func NewWriter(writer io.Writer) *Writer {
	return NewWriterWithEndian(writer, binary.LittleEndian)
}

// WriteUint8 writes uint8
func (w Writer) WriteUint8(v uint8) {
	buf := w.buffer[0:1]
	buf[0] = v
	w.writer.Write(buf)
}

// WriteBool writes a bool as a single byte.
func (w Writer) WriteBool(v bool) {
	if v {
		w.WriteUint8(1)
	} else {
		w.WriteUint8(0)
	}
}

// WriteUint16 writes uint16
func (w Writer) WriteUint16(v uint16) {
	buf := w.buffer[0:2]
	w.endian.PutUint16(buf, v)
	w.writer.Write(buf)
}

// WriteUint32 writes uint32
func (w Writer) WriteUint32(v uint32) {
	buf := w.buffer[0:4]
	w.endian.PutUint32(buf, v)
	w.writer.Write(buf)
}

// WriteUint64 writes uint64
func (w Writer) WriteUint64(v uint64) {
	buf := w.buffer[0:8]
	w.endian.PutUint64(buf, v)
	w.writer.Write(buf)
}

// WriteBytes writes []byte
func (w Writer) WriteBytes(v []byte) {
	w.writer.Write(v)
}

// WriteVarBytes writes a uint32 length followed by the bytes.
func (w Writer) WriteVarBytes(v []byte) {
	w.WriteUint32(uint32(len(v)))
	w.writer.Write(v)
}

// WriteString writes a length-prefixed string.
func (w Writer) WriteString(v string) {
	w.WriteVarBytes([]byte(v))
}

// WriteHash writes the raw 32 bytes of a hash.
func (w Writer) WriteHash(h chainhash.Hash) {
	w.writer.Write(h[:])
}

// Concat builds a byte string with big endian integers, the layout used for
// ordered database keys.
func Concat(fn func(w *Writer)) []byte {
	buf := new(bytes.Buffer)
	fn(NewWriterWithEndian(buf, binary.BigEndian))
	return buf.Bytes()
}
