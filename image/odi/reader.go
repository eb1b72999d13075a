package odi

import (
	"fmt"
	"os"

	"github.com/bitcd/bitcd/cd"
	"github.com/bitcd/bitcd/internal/binio"
)

// Reader serves random-access reads against a previously-written ODI
// file: the sector table and point table are loaded once at Open, and
// each sector's compressed buffers are decompressed on demand
// (§4.8.4, §4.9 — this is what backs the emulator adapter).
type Reader struct {
	f       *os.File
	entries []SectorTableEntry
	points  []PointTableEntry
}

// Open loads and validates an ODI file's tables.
func Open(path string) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %q: %w", path, err)
	}

	idBytes, err := binio.ReadBytesAt(f, 0, 16)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("read identifier: %w", err)
	}
	var wantID [16]byte
	copy(wantID[:], identifier)
	if string(idBytes) != string(wantID[:]) {
		f.Close()
		return nil, fmt.Errorf("not an ODI file: identifier %q", idBytes)
	}

	sectorTableOffset, err := binio.ReadUint32LEAt(f, 20)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("read sector table offset: %w", err)
	}
	pointTableOffset, err := binio.ReadUint32LEAt(f, 24)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("read point table offset: %w", err)
	}

	entries, err := readSectorTable(f, int64(sectorTableOffset))
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("read sector table: %w", err)
	}
	points, err := readPointTable(f, int64(pointTableOffset))
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("read point table: %w", err)
	}

	return &Reader{f: f, entries: entries, points: points}, nil
}

// Close releases the underlying file handle.
func (r *Reader) Close() error {
	return r.f.Close()
}

// Points returns the Full-TOC point table, in the order it was written.
func (r *Reader) Points() []PointTableEntry {
	return r.points
}

// NumSectors is the number of sector table entries, i.e. the number of
// sectors streamed between the FileHeader and the sector table — lead-in
// plus pregap plus every track plus lead-out, for every session.
func (r *Reader) NumSectors() int {
	return len(r.entries)
}

func readSectorTable(f *os.File, offset int64) ([]SectorTableEntry, error) {
	count, err := binio.ReadUint32LEAt(f, offset)
	if err != nil {
		return nil, err
	}
	base := offset + sectorTableHeaderSize
	entries := make([]SectorTableEntry, count)
	for i := range entries {
		eoff := base + int64(i)*sectorTableEntrySize
		dataOffset, err := binio.ReadUint32LEAt(f, eoff)
		if err != nil {
			return nil, err
		}
		sectorByteCount, err := binio.ReadUint16LEAt(f, eoff+4)
		if err != nil {
			return nil, err
		}
		sectorMethod, err := binio.ReadUint8At(f, eoff+6)
		if err != nil {
			return nil, err
		}
		subByteCount, err := binio.ReadUint16LEAt(f, eoff+7)
		if err != nil {
			return nil, err
		}
		subMethod, err := binio.ReadUint8At(f, eoff+9)
		if err != nil {
			return nil, err
		}
		readability, err := binio.ReadUint8At(f, eoff+10)
		if err != nil {
			return nil, err
		}
		entries[i] = SectorTableEntry{
			CompressedDataAbsoluteOffset:       int64(dataOffset),
			SectorDataCompressedByteCount:      int(sectorByteCount),
			SectorDataCompressionMethod:        CompressionMethod(sectorMethod),
			SubchannelsDataCompressedByteCount: int(subByteCount),
			SubchannelsDataCompressionMethod:   CompressionMethod(subMethod),
			Readability:                        Readability(readability),
		}
	}
	return entries, nil
}

func readPointTable(f *os.File, offset int64) ([]PointTableEntry, error) {
	count, err := binio.ReadUint32LEAt(f, offset)
	if err != nil {
		return nil, err
	}
	base := offset + pointTableHeaderSize
	points := make([]PointTableEntry, count)
	for i := range points {
		eoff := base + int64(i)*pointTableEntrySize
		sessionNumber, err := binio.ReadUint8At(f, eoff)
		if err != nil {
			return nil, err
		}
		adr, err := binio.ReadUint8At(f, eoff+1)
		if err != nil {
			return nil, err
		}
		control, err := binio.ReadUint8At(f, eoff+2)
		if err != nil {
			return nil, err
		}
		point, err := binio.ReadUint8At(f, eoff+3)
		if err != nil {
			return nil, err
		}
		address, err := binio.ReadBytesAt(f, eoff+4, 3)
		if err != nil {
			return nil, err
		}
		paddress, err := binio.ReadBytesAt(f, eoff+7, 3)
		if err != nil {
			return nil, err
		}
		points[i] = PointTableEntry{
			SessionNumber: sessionNumber,
			ADR:           adr,
			Control:       control,
			Point:         point,
			Address:       [3]byte{address[0], address[1], address[2]},
			PAddress:      [3]byte{paddress[0], paddress[1], paddress[2]},
		}
	}
	return points, nil
}

func decompressBuffer(data []byte, method CompressionMethod, uncompressedLength int) ([]byte, error) {
	switch method {
	case CompressionMethodNone:
		out := make([]byte, len(data))
		copy(out, data)
		return out, nil
	case CompressionMethodRunLengthEncoding:
		return runLengthDecode(data, uncompressedLength)
	case CompressionMethodLosslessStereoAudio:
		return decompressSectorLosslessStereoAudio(data)
	default:
		return nil, fmt.Errorf("unknown compression method %d", method)
	}
}

// ReadSector decompresses the index'th sector table entry's sector_data
// and subchannels_data buffers. index runs in the same disc order Write
// streamed sectors in: lead-in, pregap, tracks, lead-out, per session.
func (r *Reader) ReadSector(index int) (sectorData, subchannelsData []byte, readable bool, err error) {
	if index < 0 || index >= len(r.entries) {
		return nil, nil, false, fmt.Errorf("sector index %d out of range [0,%d)", index, len(r.entries))
	}
	e := r.entries[index]

	sectorCompressed, err := binio.ReadBytesAt(r.f, e.CompressedDataAbsoluteOffset, e.SectorDataCompressedByteCount)
	if err != nil {
		return nil, nil, false, fmt.Errorf("read sector %d sector_data: %w", index, err)
	}
	sectorData, err = decompressBuffer(sectorCompressed, e.SectorDataCompressionMethod, cd.SectorLength)
	if err != nil {
		return nil, nil, false, fmt.Errorf("decompress sector %d sector_data: %w", index, err)
	}

	subOffset := e.CompressedDataAbsoluteOffset + int64(e.SectorDataCompressedByteCount)
	subCompressed, err := binio.ReadBytesAt(r.f, subOffset, e.SubchannelsDataCompressedByteCount)
	if err != nil {
		return nil, nil, false, fmt.Errorf("read sector %d subchannels_data: %w", index, err)
	}
	subchannelsData, err = decompressBuffer(subCompressed, e.SubchannelsDataCompressionMethod, 96)
	if err != nil {
		return nil, nil, false, fmt.Errorf("decompress sector %d subchannels_data: %w", index, err)
	}

	return sectorData, subchannelsData, e.Readability == ReadabilityReadable, nil
}
