// Package odi serializes a disc into the bespoke "OVERDRIVE IMAGE"
// container: every sector on the disc (lead-in, pregap, tracks,
// lead-out, in that order) is streamed into one file with its own
// independently-chosen per-buffer compression, followed by a sector
// table and a Full-TOC point table (§4.8.4).
package odi

import (
	"fmt"
	"log"
	"os"

	"github.com/bitcd/bitcd/cd"
	"github.com/bitcd/bitcd/disc"
	"github.com/bitcd/bitcd/extract"
	"github.com/bitcd/bitcd/internal/binio"
)

// CompressionMethod tags how one buffer (sector data or subchannels
// data) was stored.
type CompressionMethod byte

const (
	CompressionMethodNone CompressionMethod = iota
	CompressionMethodRunLengthEncoding
	CompressionMethodLosslessStereoAudio
)

func (m CompressionMethod) String() string {
	switch m {
	case CompressionMethodNone:
		return "NONE"
	case CompressionMethodRunLengthEncoding:
		return "RUN_LENGTH_ENCODING"
	case CompressionMethodLosslessStereoAudio:
		return "LOSSLESS_STEREO_AUDIO"
	default:
		return "???"
	}
}

// Readability marks whether a sector was ever read successfully.
type Readability byte

const (
	ReadabilityUnreadable Readability = iota
	ReadabilityReadable
)

const (
	identifier           = "OVERDRIVE IMAGE"
	fileHeaderSize       = 28
	sectorTableHeaderSize = 8
	sectorTableEntrySize  = 12
	pointTableHeaderSize  = 8
	pointTableEntrySize   = 12
	tableAlignment        = 16
)

// SectorTableEntry records where one sector's compressed sector-data
// and subchannels-data buffers live in the file, how each was
// compressed, and whether the sector was ever read successfully
// (§4.8.4).
type SectorTableEntry struct {
	CompressedDataAbsoluteOffset       int64
	SectorDataCompressedByteCount      int
	SectorDataCompressionMethod        CompressionMethod
	SubchannelsDataCompressedByteCount int
	SubchannelsDataCompressionMethod   CompressionMethod
	Readability                        Readability
}

// PointTableEntry mirrors one Full-TOC point (§4.8.4).
type PointTableEntry = disc.PointInfo

func appendFileHeader(buf []byte, sectorTableHeaderOffset, pointTableHeaderOffset uint32) []byte {
	var idBuf [16]byte
	copy(idBuf[:], identifier)
	buf = append(buf, idBuf[:]...)
	buf = binio.AppendUint8(buf, 0) // major_version
	buf = binio.AppendUint8(buf, 1) // minor_version
	buf = binio.AppendUint8(buf, 0) // patch_version
	buf = binio.AppendUint8(buf, 0) // reserved
	buf = binio.AppendUint32LE(buf, sectorTableHeaderOffset)
	buf = binio.AppendUint32LE(buf, pointTableHeaderOffset)
	return buf
}

func appendSectorTableHeader(buf []byte, entryCount int) []byte {
	buf = binio.AppendUint32LE(buf, uint32(entryCount))
	buf = binio.AppendUint16LE(buf, sectorTableEntrySize)
	buf = binio.AppendUint16LE(buf, 0) // reserved
	return buf
}

func appendSectorTableEntry(buf []byte, e SectorTableEntry) []byte {
	buf = binio.AppendUint32LE(buf, uint32(e.CompressedDataAbsoluteOffset))
	buf = binio.AppendUint16LE(buf, uint16(e.SectorDataCompressedByteCount))
	buf = binio.AppendUint8(buf, byte(e.SectorDataCompressionMethod))
	buf = binio.AppendUint16LE(buf, uint16(e.SubchannelsDataCompressedByteCount))
	buf = binio.AppendUint8(buf, byte(e.SubchannelsDataCompressionMethod))
	buf = binio.AppendUint8(buf, byte(e.Readability))
	buf = binio.AppendUint8(buf, 0) // reserved
	return buf
}

func appendPointTableHeader(buf []byte, entryCount int) []byte {
	buf = binio.AppendUint32LE(buf, uint32(entryCount))
	buf = binio.AppendUint16LE(buf, pointTableEntrySize)
	buf = binio.AppendUint16LE(buf, 0) // reserved
	return buf
}

func appendPointTableEntry(buf []byte, p PointTableEntry) []byte {
	buf = binio.AppendUint8(buf, p.SessionNumber)
	buf = binio.AppendUint8(buf, p.ADR)
	buf = binio.AppendUint8(buf, p.Control)
	buf = binio.AppendUint8(buf, p.Point)
	buf = append(buf, p.Address[:]...)
	buf = append(buf, p.PAddress[:]...)
	buf = binio.AppendUint16LE(buf, 0) // reserved
	return buf
}

// compressBuffer tries method on data; if it reports
// CompressedSizeExceededUncompressedSizeError the caller degrades to
// NONE and the uncompressed bytes, exactly as §4.8.4 specifies.
func compressBuffer(data []byte, method CompressionMethod) ([]byte, CompressionMethod) {
	switch method {
	case CompressionMethodRunLengthEncoding:
		if packed, err := runLengthEncode(data); err == nil {
			return packed, CompressionMethodRunLengthEncoding
		}
	case CompressionMethodLosslessStereoAudio:
		if packed, err := compressSectorLosslessStereoAudio(data); err == nil {
			return packed, CompressionMethodLosslessStereoAudio
		}
	}
	return data, CompressionMethodNone
}

// writer accumulates the sector table while streaming compressed
// payload bytes to f, tracking the file offset itself rather than
// calling Seek/Tell for every write.
type writer struct {
	f       *os.File
	offset  int64
	entries []SectorTableEntry
}

func (w *writer) write(p []byte) error {
	if _, err := w.f.Write(p); err != nil {
		return fmt.Errorf("write: %w", err)
	}
	w.offset += int64(len(p))
	return nil
}

func (w *writer) alignTo16() error {
	pad := (tableAlignment - int(w.offset%tableAlignment)) % tableAlignment
	if pad == 0 {
		return nil
	}
	return w.write(make([]byte, pad))
}

func (w *writer) appendSector(sectorData, subchannelsData []byte, sectorMethod CompressionMethod, readable bool) error {
	packedSector, usedSectorMethod := compressBuffer(sectorData, sectorMethod)
	subchannelsMethod := CompressionMethodRunLengthEncoding
	if sectorMethod == CompressionMethodNone {
		subchannelsMethod = CompressionMethodNone
	}
	packedSubchannels, usedSubchannelsMethod := compressBuffer(subchannelsData, subchannelsMethod)

	entry := SectorTableEntry{
		CompressedDataAbsoluteOffset:       w.offset,
		SectorDataCompressedByteCount:      len(packedSector),
		SectorDataCompressionMethod:        usedSectorMethod,
		SubchannelsDataCompressedByteCount: len(packedSubchannels),
		SubchannelsDataCompressionMethod:   usedSubchannelsMethod,
		Readability:                        ReadabilityUnreadable,
	}
	if readable {
		entry.Readability = ReadabilityReadable
	}
	if err := w.write(packedSector); err != nil {
		return err
	}
	if err := w.write(packedSubchannels); err != nil {
		return err
	}
	w.entries = append(w.entries, entry)
	return nil
}

func (w *writer) appendExtractedRange(extracted [][]extract.ExtractedSector, sectorMethod CompressionMethod) error {
	for _, bucket := range extracted {
		var sector extract.ExtractedSector
		readable := false
		if len(bucket) > 0 {
			sector = extract.BestSector(bucket)
			readable = sector.Counter > 0
		}
		if err := w.appendSector(sector.SectorData[:], sector.SubchannelsData[:], sectorMethod, readable); err != nil {
			return err
		}
	}
	return nil
}

func saveSectorRange(logger *log.Logger, w *writer, reader extract.SectorReader, first, last int, opts extract.Options, compress bool) error {
	extracted, err := extract.ReadAbsoluteSectorRange(logger, reader, first, last,
		opts.MinDataPasses, opts.MaxDataPasses, opts.MaxDataRetries, opts.MinDataCopies, opts.MaxDataCopies)
	if err != nil {
		return err
	}
	bad := extract.GetBadSectorIndices(extracted, first)
	if len(bad) > 0 {
		logf(logger, "sector range between %d and %d has %d bad sectors", first, last, len(bad))
	}
	method := CompressionMethodRunLengthEncoding
	if !compress {
		method = CompressionMethodNone
	}
	return w.appendExtractedRange(extracted, method)
}

func logf(logger *log.Logger, format string, args ...any) {
	if logger != nil {
		logger.Printf(format, args...)
	}
}

// Write streams every sector of every session — lead-in, pregap,
// tracks, lead-out, in that order — into path. When compress is true it
// chooses LOSSLESS_STEREO_AUDIO for audio-track sector data and
// RUN_LENGTH_ENCODING everywhere else, falling back to NONE whenever a
// compressor doesn't improve on the uncompressed size; when compress is
// false every buffer is stored NONE. The sector table and Full-TOC point
// table are written 16-byte aligned after all payload bytes, then the
// FileHeader is rewritten in place with their real offsets (§4.8.4
// write_odi).
func Write(logger *log.Logger, path string, reader extract.SectorReader, info disc.DiscInfo, extractOpts extract.Options, compress bool) error {
	if len(info.Sessions) == 0 {
		return fmt.Errorf("write odi: disc has no sessions")
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("open %q for writing: %w", path, err)
	}
	defer f.Close()

	w := &writer{f: f}
	if err := w.write(appendFileHeader(nil, 0, 0)); err != nil {
		return err
	}

	var points []PointTableEntry
	absoluteSectorOffset := -info.Sessions[0].LeadInLengthSectors
	for _, session := range info.Sessions {
		if err := saveSectorRange(logger, w, reader, absoluteSectorOffset, absoluteSectorOffset+session.LeadInLengthSectors, extractOpts, compress); err != nil {
			return fmt.Errorf("session %d lead-in: %w", session.Number, err)
		}
		absoluteSectorOffset += session.LeadInLengthSectors

		if err := saveSectorRange(logger, w, reader, absoluteSectorOffset, absoluteSectorOffset+session.PregapSectors, extractOpts, compress); err != nil {
			return fmt.Errorf("session %d pregap: %w", session.Number, err)
		}
		absoluteSectorOffset += session.PregapSectors

		for _, track := range session.Tracks {
			extracted, err := extract.ReadTrack(logger, reader, track, extractOpts)
			if err != nil {
				return fmt.Errorf("track %d: %w", track.Number, err)
			}
			bad := extract.GetBadSectorIndices(extracted, track.FirstSectorAbsolute)
			readAbsoluteSector := func(absoluteSector int) ([cd.SectorLength]byte, error) {
				var out [cd.SectorLength]byte
				sectorData, _, _, err := reader.ReadAbsoluteSector(absoluteSector)
				if err != nil {
					return out, err
				}
				copy(out[:], sectorData)
				return out, nil
			}
			extract.LogBadSectorIndices(logger, readAbsoluteSector, track, bad)

			sectorMethod := CompressionMethodRunLengthEncoding
			if !track.Type.IsData() {
				sectorMethod = CompressionMethodLosslessStereoAudio
			}
			if !compress {
				sectorMethod = CompressionMethodNone
			}
			entriesBefore := len(w.entries)
			if err := w.appendExtractedRange(extracted, sectorMethod); err != nil {
				return fmt.Errorf("track %d: %w", track.Number, err)
			}
			compressedBytes := 0
			for _, e := range w.entries[entriesBefore:] {
				compressedBytes += e.SectorDataCompressedByteCount
			}
			rate := float64(compressedBytes) / float64(len(extracted)*cd.SectorLength)
			logf(logger, "saved track %d with a compression rate of %.2f", track.Number, rate)
			absoluteSectorOffset += track.LengthSectors
		}

		if err := saveSectorRange(logger, w, reader, absoluteSectorOffset, absoluteSectorOffset+session.LeadOutLengthSectors, extractOpts, compress); err != nil {
			return fmt.Errorf("session %d lead-out: %w", session.Number, err)
		}
		absoluteSectorOffset += session.LeadOutLengthSectors

		points = append(points, session.Points...)
	}

	if err := w.alignTo16(); err != nil {
		return err
	}
	sectorTableHeaderOffset := w.offset
	sectorTableBuf := appendSectorTableHeader(nil, len(w.entries))
	for _, e := range w.entries {
		sectorTableBuf = appendSectorTableEntry(sectorTableBuf, e)
	}
	if err := w.write(sectorTableBuf); err != nil {
		return err
	}

	if err := w.alignTo16(); err != nil {
		return err
	}
	pointTableHeaderOffset := w.offset
	pointTableBuf := appendPointTableHeader(nil, len(points))
	for _, p := range points {
		pointTableBuf = appendPointTableEntry(pointTableBuf, p)
	}
	if err := w.write(pointTableBuf); err != nil {
		return err
	}

	header := appendFileHeader(nil, uint32(sectorTableHeaderOffset), uint32(pointTableHeaderOffset))
	if _, err := f.WriteAt(header, 0); err != nil {
		return fmt.Errorf("patch file header: %w", err)
	}
	return nil
}
