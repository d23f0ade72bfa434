package utils

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/phoreproject/chainstate/chainhash"
)

type readerWriter struct {
	reader *Reader
	writer *Writer
}

func newReaderWriter(readerEndian, writerEndian binary.ByteOrder) readerWriter {
	buffer := &bytes.Buffer{}
	rw := readerWriter{}
	if readerEndian == nil {
		rw.reader = NewReader(buffer)
	} else {
		rw.reader = NewReaderWithEndian(buffer, readerEndian)
	}
	if writerEndian == nil {
		rw.writer = NewWriter(buffer)
	} else {
		rw.writer = NewWriterWithEndian(buffer, writerEndian)
	}
	return rw
}

func TestReaderWriter_defaultEndian(t *testing.T) {
	rw := newReaderWriter(nil, nil)
	rw.writer.WriteUint32(6)
	rw.writer.WriteUint64(19)
	rw.writer.WriteUint16(200)
	rw.writer.WriteUint8(50)

	ui32, err := rw.reader.ReadUint32()
	if err != nil {
		t.Fatal(err)
	}
	if ui32 != 6 {
		t.Error("Error ReadUint32")
	}

	ui64, err := rw.reader.ReadUint64()
	if err != nil {
		t.Fatal(err)
	}
	if ui64 != 19 {
		t.Error("Error ReadUint64")
	}

	ui16, err := rw.reader.ReadUint16()
	if err != nil {
		t.Fatal(err)
	}
	if ui16 != 200 {
		t.Error("Error ReadUint16")
	}

	ui8, err := rw.reader.ReadUint8()
	if err != nil {
		t.Fatal(err)
	}
	if ui8 != 50 {
		t.Error("Error ReadUint8")
	}
}

func TestReaderWriter_littleEndian(t *testing.T) {
	rw := newReaderWriter(binary.LittleEndian, binary.LittleEndian)
	rw.writer.WriteUint32(6)
	rw.writer.WriteUint64(19)
	rw.writer.WriteUint16(200)
	rw.writer.WriteUint8(50)

	ui32, err := rw.reader.ReadUint32()
	if err != nil {
		t.Fatal(err)
	}
	if ui32 != 6 {
		t.Error("Error ReadUint32")
	}

	ui64, err := rw.reader.ReadUint64()
	if err != nil {
		t.Fatal(err)
	}
	if ui64 != 19 {
		t.Error("Error ReadUint64")
	}

	ui16, err := rw.reader.ReadUint16()
	if err != nil {
		t.Fatal(err)
	}
	if ui16 != 200 {
		t.Error("Error ReadUint16")
	}

	ui8, err := rw.reader.ReadUint8()
	if err != nil {
		t.Fatal(err)
	}
	if ui8 != 50 {
		t.Error("Error ReadUint8")
	}
}

func TestReaderWriter_bigEndian(t *testing.T) {
	rw := newReaderWriter(binary.BigEndian, binary.BigEndian)
	rw.writer.WriteUint32(6)
	rw.writer.WriteUint64(19)
	rw.writer.WriteUint16(200)
	rw.writer.WriteUint8(50)

	ui32, err := rw.reader.ReadUint32()
	if err != nil {
		t.Fatal(err)
	}
	if ui32 != 6 {
		t.Error("Error ReadUint32")
	}

	ui64, err := rw.reader.ReadUint64()
	if err != nil {
		t.Fatal(err)
	}
	if ui64 != 19 {
		t.Error("Error ReadUint64")
	}

	ui16, err := rw.reader.ReadUint16()
	if err != nil {
		t.Fatal(err)
	}
	if ui16 != 200 {
		t.Error("Error ReadUint16")
	}

	ui8, err := rw.reader.ReadUint8()
	if err != nil {
		t.Fatal(err)
	}
	if ui8 != 50 {
		t.Error("Error ReadUint8")
	}
}

func TestReaderWriter_wrongEndian(t *testing.T) {
	rw := newReaderWriter(binary.LittleEndian, binary.BigEndian)
	rw.writer.WriteUint32(6)
	rw.writer.WriteUint64(19)
	rw.writer.WriteUint16(200)
	rw.writer.WriteUint8(50)

	ui32, err := rw.reader.ReadUint32()
	if err != nil {
		t.Fatal(err)
	}
	if ui32 == 6 {
		t.Error("Error ReadUint32")
	}

	ui64, err := rw.reader.ReadUint64()
	if err != nil {
		t.Fatal(err)
	}
	if ui64 == 19 {
		t.Error("Error ReadUint64")
	}

	ui16, err := rw.reader.ReadUint16()
	if err != nil {
		t.Fatal(err)
	}
	if ui16 == 200 {
		t.Error("Error ReadUint16")
	}

	ui8, err := rw.reader.ReadUint8()
	if err != nil {
		t.Fatal(err)
	}
	if ui8 != 50 { // this should be 50
		t.Error("Error ReadUint8")
	}
}

func TestReaderWriter_varBytesAndHash(t *testing.T) {
	rw := newReaderWriter(nil, nil)
	h := chainhash.HashH([]byte("block"))
	rw.writer.WriteVarBytes([]byte("alice.near"))
	rw.writer.WriteHash(h)
	rw.writer.WriteBool(true)

	b, err := rw.reader.ReadVarBytes()
	if err != nil {
		t.Fatal(err)
	}
	if string(b) != "alice.near" {
		t.Fatalf("expected alice.near, got %s", b)
	}

	h2, err := rw.reader.ReadHash()
	if err != nil {
		t.Fatal(err)
	}
	if h2 != h {
		t.Fatal("hash did not round trip")
	}

	v, err := rw.reader.ReadBool()
	if err != nil {
		t.Fatal(err)
	}
	if !v {
		t.Fatal("expected true")
	}

	if _, err := rw.reader.ReadUint8(); err == nil {
		t.Fatal("expected error reading past the end")
	}
}

func TestConcatOrdersHeights(t *testing.T) {
	low := Concat(func(w *Writer) { w.WriteUint64(9) })
	high := Concat(func(w *Writer) { w.WriteUint64(256) })

	if bytes.Compare(low, high) >= 0 {
		t.Fatal("expected big endian keys to sort by height")
	}
}
