// Package binio holds the little-endian append helpers the MDS and ODI
// serializers build their fixed-layout headers and tables with, and the
// ReaderAt helpers the ODI reader parses them back with (§4.8). Adapted
// from the ROM/disc-image ReaderAt helpers this module's teacher used for
// field extraction; extended with the append helpers and with WriterAt
// helpers that patch a field of an already-written file.
package binio

import (
	"encoding/binary"
	"fmt"
	"io"
)

// ReadAt reads len(buf) bytes from r at offset.
func ReadAt(r io.ReaderAt, offset int64, buf []byte) error {
	if _, err := r.ReadAt(buf, offset); err != nil {
		return fmt.Errorf("read at offset %d: %w", offset, err)
	}
	return nil
}

// ReadBytesAt reads n bytes from r at offset.
func ReadBytesAt(r io.ReaderAt, offset int64, n int) ([]byte, error) {
	buf := make([]byte, n)
	if err := ReadAt(r, offset, buf); err != nil {
		return nil, err
	}
	return buf, nil
}

// ReadUint8At reads a single byte from r at offset.
func ReadUint8At(r io.ReaderAt, offset int64) (uint8, error) {
	buf := make([]byte, 1)
	if err := ReadAt(r, offset, buf); err != nil {
		return 0, err
	}
	return buf[0], nil
}

// ReadUint16LEAt reads a little-endian uint16 from r at offset.
func ReadUint16LEAt(r io.ReaderAt, offset int64) (uint16, error) {
	buf := make([]byte, 2)
	if err := ReadAt(r, offset, buf); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint16(buf), nil
}

// ReadUint32LEAt reads a little-endian uint32 from r at offset.
func ReadUint32LEAt(r io.ReaderAt, offset int64) (uint32, error) {
	buf := make([]byte, 4)
	if err := ReadAt(r, offset, buf); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(buf), nil
}

// ReadUint32BEAt reads a big-endian uint32 from r at offset.
func ReadUint32BEAt(r io.ReaderAt, offset int64) (uint32, error) {
	buf := make([]byte, 4)
	if err := ReadAt(r, offset, buf); err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint32(buf), nil
}

// ReadUint64LEAt reads a little-endian uint64 from r at offset.
func ReadUint64LEAt(r io.ReaderAt, offset int64) (uint64, error) {
	buf := make([]byte, 8)
	if err := ReadAt(r, offset, buf); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(buf), nil
}

// AppendUint8 appends v to buf.
func AppendUint8(buf []byte, v uint8) []byte {
	return append(buf, v)
}

// AppendUint16LE appends v to buf in little-endian order.
func AppendUint16LE(buf []byte, v uint16) []byte {
	var tmp [2]byte
	binary.LittleEndian.PutUint16(tmp[:], v)
	return append(buf, tmp[:]...)
}

// AppendUint32LE appends v to buf in little-endian order.
func AppendUint32LE(buf []byte, v uint32) []byte {
	var tmp [4]byte
	binary.LittleEndian.PutUint32(tmp[:], v)
	return append(buf, tmp[:]...)
}

// AppendUint64LE appends v to buf in little-endian order.
func AppendUint64LE(buf []byte, v uint64) []byte {
	var tmp [8]byte
	binary.LittleEndian.PutUint64(tmp[:], v)
	return append(buf, tmp[:]...)
}

// WriteUint32LEAt patches a little-endian uint32 into an already-written
// file at offset.
func WriteUint32LEAt(w io.WriterAt, offset int64, v uint32) error {
	var tmp [4]byte
	binary.LittleEndian.PutUint32(tmp[:], v)
	if _, err := w.WriteAt(tmp[:], offset); err != nil {
		return fmt.Errorf("write uint32 at offset %d: %w", offset, err)
	}
	return nil
}

// WriteUint64LEAt patches a little-endian uint64 into an already-written
// file at offset.
func WriteUint64LEAt(w io.WriterAt, offset int64, v uint64) error {
	var tmp [8]byte
	binary.LittleEndian.PutUint64(tmp[:], v)
	if _, err := w.WriteAt(tmp[:], offset); err != nil {
		return fmt.Errorf("write uint64 at offset %d: %w", offset, err)
	}
	return nil
}
