// Package mds serializes a disc's topology into the MDS sidecar of the
// two-file MDS/MDF container (§4.8.2). The MDF itself — the concatenated
// raw track sectors — is produced by mdf.go using the extraction engine
// directly; this file only encodes the MDS's fixed-layout tables.
package mds

import (
	"fmt"
	"io"

	"github.com/bitcd/bitcd/cd"
	"github.com/bitcd/bitcd/disc"
	"github.com/bitcd/bitcd/internal/binio"
)

// TrackMode is the on-disk encoding of a track's MDS mode (§4.8.2 table).
type TrackMode byte

const (
	TrackModeNone       TrackMode = 0x0
	TrackModeAudio      TrackMode = 0x9
	TrackModeMode1      TrackMode = 0xA
	TrackModeMode2      TrackMode = 0xB
	TrackModeMode2Form1 TrackMode = 0xC
	TrackModeMode2Form2 TrackMode = 0xD
)

// TrackModeFlags is the companion nibble the §4.8.2 table assigns
// alongside TrackMode; its bit meaning is not otherwise specified and is
// reproduced as an opaque value (§D Open Question decisions).
type TrackModeFlags byte

const (
	trackModeFlagsA TrackModeFlags = 0xA
	trackModeFlagsE TrackModeFlags = 0xE
)

// SubchannelMode records whether a track's interleaved 96-byte
// subchannel block follows each sector in the MDF (§4.8.2).
type SubchannelMode byte

const (
	SubchannelModeNone           SubchannelMode = 0x00
	SubchannelModeInterleaved96  SubchannelMode = 0x08
)

func trackModeFor(t disc.TrackType) (TrackMode, TrackModeFlags, error) {
	switch t {
	case disc.TrackTypeAudio2Channels, disc.TrackTypeAudio4Channels:
		return TrackModeAudio, trackModeFlagsA, nil
	case disc.TrackTypeDataMode0:
		return TrackModeNone, trackModeFlagsA, nil
	case disc.TrackTypeDataMode1:
		return TrackModeMode1, trackModeFlagsA, nil
	case disc.TrackTypeDataMode2:
		return TrackModeMode2, trackModeFlagsA, nil
	case disc.TrackTypeDataMode2Form1:
		return TrackModeMode2Form1, trackModeFlagsE, nil
	case disc.TrackTypeDataMode2Form2:
		return TrackModeMode2Form2, trackModeFlagsE, nil
	default:
		return 0, 0, UnreachableError{What: fmt.Sprintf("track type %v", t)}
	}
}

// UnreachableError marks an exhaustive-switch fallthrough (§7).
type UnreachableError struct{ What string }

func (e UnreachableError) Error() string { return fmt.Sprintf("unreachable: %s", e.What) }

// Fixed record sizes (§4.8.2). The FileHeader/SessionTableHeader/
// SessionTableEntry sizes are this module's own layout (the distilled
// format drops the original magic/version bytes the on-disk MDS
// ordinarily carries); the remaining sizes mirror the original container
// byte-for-byte.
const (
	fileHeaderSize         = 24
	sessionTableHeaderSize = 24
	sessionTableEntrySize  = 80
	trackTableHeaderSize   = 24
	trackTableEntrySize    = 8
	fileTableHeaderSize    = 16
	fileTableEntrySize     = 6
	footerSize             = 8
	badSectorTableHeaderSize = 16
	badSectorTableEntrySize  = 4
)

// Options configures which track categories get their subchannel data
// interleaved into the MDF (§4.8.2, mirroring the CLI's
// save-{audio,data}-subchannels flags).
type Options struct {
	SaveAudioSubchannels bool
	SaveDataSubchannels  bool
}

func saveSubchannelsFor(t disc.TrackType, opts Options) bool {
	if t.IsData() {
		return opts.SaveDataSubchannels
	}
	return opts.SaveAudioSubchannels
}

// isTrackReference reports whether a Full-TOC point (by its Point byte)
// refers to an actual track, as opposed to a session-structural point
// like 0xA0/0xA1/0xA2 (§4.3).
func isTrackReference(point byte) bool {
	return point >= 1 && point <= 99
}

// Write encodes the full MDS sidecar for info: a FileHeader, one
// SessionTableHeader plus a SessionTableEntry per Full-TOC point for
// every session, a TrackTableHeader plus one TrackTableEntry per track, a
// FileTableHeader/FileTableEntry naming the MDF, and — when
// badSectorIndices is non-empty — a Footer and bad-sector table
// (§4.8.2).
func Write(w io.Writer, info disc.DiscInfo, badSectorIndices []int, opts Options) error {
	tracks := allTracks(info)
	totalPoints := 0
	for _, s := range info.Sessions {
		totalPoints += len(s.Points)
	}

	absoluteOffsetToSessionHeaders := fileHeaderSize
	absoluteOffsetToTrackTableEntry := absoluteOffsetToSessionHeaders +
		len(info.Sessions)*sessionTableHeaderSize +
		totalPoints*sessionTableEntrySize +
		trackTableHeaderSize
	absoluteOffsetToFileTableHeader := absoluteOffsetToTrackTableEntry + len(tracks)*trackTableEntrySize
	absoluteOffsetToFileTableEntry := absoluteOffsetToFileTableHeader + fileTableHeaderSize
	absoluteOffsetToFooter := absoluteOffsetToFileTableEntry + fileTableEntrySize
	absoluteOffsetToBadSectorsTableHeader := absoluteOffsetToFooter + footerSize

	var buf []byte
	buf = appendFileHeader(buf, len(info.Sessions), absoluteOffsetToSessionHeaders, absoluteOffsetToFooter, len(badSectorIndices) > 0)

	absoluteOffsetToEntryTable := absoluteOffsetToSessionHeaders
	firstSectorOnDisc := 0
	mdfByteOffset := 0
	trackCounter := 0
	for _, session := range info.Sessions {
		absoluteOffsetToEntryTable += sessionTableHeaderSize
		buf = appendSessionTableHeader(buf, session, absoluteOffsetToEntryTable)
		absoluteOffsetToEntryTable += len(session.Points) * sessionTableEntrySize

		for _, point := range session.Points {
			if !isTrackReference(point.Point) {
				buf = appendNonTrackSessionTableEntry(buf, point)
				continue
			}
			track, ok := findTrack(session.Tracks, int(point.Point))
			if !ok {
				return fmt.Errorf("session %d point %d: no matching track", session.Number, point.Point)
			}
			mode, flags, err := trackModeFor(track.Type)
			if err != nil {
				return err
			}
			saveSubchannels := saveSubchannelsFor(track.Type, opts)
			sectorLength := cd.SectorLength
			if saveSubchannels {
				sectorLength += 96
			}
			buf = appendTrackSessionTableEntry(buf, point, mode, flags, saveSubchannels, sectorLength,
				absoluteOffsetToTrackTableEntry+trackCounter*trackTableEntrySize,
				firstSectorOnDisc, mdfByteOffset, absoluteOffsetToFileTableHeader)
			firstSectorOnDisc += track.LengthSectors
			mdfByteOffset += track.LengthSectors * sectorLength
			trackCounter++
		}
	}

	buf = append(buf, make([]byte, trackTableHeaderSize)...)
	for i, track := range tracks {
		pregap := 0
		if i == 0 {
			pregap = cd.RelativeSectorOffset
		}
		buf = binio.AppendUint32LE(buf, uint32(pregap))
		buf = binio.AppendUint32LE(buf, uint32(track.LengthSectors))
	}

	buf = binio.AppendUint32LE(buf, uint32(absoluteOffsetToFileTableEntry))
	buf = append(buf, make([]byte, fileTableHeaderSize-4)...)

	buf = append(buf, []byte("*.mdf\x00")...)

	if len(badSectorIndices) > 0 {
		buf = binio.AppendUint32LE(buf, 1)
		buf = binio.AppendUint32LE(buf, uint32(absoluteOffsetToBadSectorsTableHeader))

		buf = binio.AppendUint32LE(buf, 2)
		buf = binio.AppendUint32LE(buf, 4)
		buf = binio.AppendUint32LE(buf, 1)
		buf = binio.AppendUint32LE(buf, uint32(len(badSectorIndices)))
		for _, idx := range badSectorIndices {
			buf = binio.AppendUint32LE(buf, uint32(idx-cd.RelativeSectorOffset))
		}
	}

	if _, err := w.Write(buf); err != nil {
		return fmt.Errorf("write mds: %w", err)
	}
	return nil
}

func appendFileHeader(buf []byte, sessionCount, offsetToSessionHeaders, offsetToFooter int, hasFooter bool) []byte {
	buf = binio.AppendUint8(buf, 0) // medium_type
	buf = binio.AppendUint8(buf, byte(sessionCount))
	buf = binio.AppendUint16LE(buf, 2) // unknown_a
	buf = binio.AppendUint32LE(buf, uint32(offsetToSessionHeaders))
	footer := uint32(0)
	if hasFooter {
		footer = uint32(offsetToFooter)
	}
	buf = binio.AppendUint32LE(buf, footer)
	return append(buf, make([]byte, fileHeaderSize-12)...)
}

func appendSessionTableHeader(buf []byte, session disc.SessionInfo, absoluteOffsetToEntryTable int) []byte {
	pregapCorrection := int32(-cd.RelativeSectorOffset)
	buf = binio.AppendUint32LE(buf, uint32(pregapCorrection))
	buf = binio.AppendUint32LE(buf, uint32(session.LengthSectors))
	buf = binio.AppendUint8(buf, byte(session.Number))
	buf = binio.AppendUint8(buf, byte(len(session.Points)))
	buf = binio.AppendUint8(buf, byte(len(session.Points)-len(session.Tracks)))
	buf = binio.AppendUint8(buf, byte(session.Tracks[0].Number))
	buf = binio.AppendUint8(buf, byte(session.Tracks[len(session.Tracks)-1].Number))
	buf = append(buf, make([]byte, 7)...)
	buf = binio.AppendUint32LE(buf, uint32(absoluteOffsetToEntryTable))
	return buf
}

func appendFullTOCPoint(buf []byte, point disc.PointInfo) []byte {
	buf = binio.AppendUint8(buf, point.SessionNumber)
	buf = binio.AppendUint8(buf, point.Control<<4|point.ADR&0x0F)
	buf = binio.AppendUint8(buf, 0) // tno
	buf = binio.AppendUint8(buf, point.Point)
	buf = append(buf, point.Address[:]...)
	buf = binio.AppendUint8(buf, 0) // reserved
	buf = append(buf, point.PAddress[:]...)
	return buf
}

func appendNonTrackSessionTableEntry(buf []byte, point disc.PointInfo) []byte {
	start := len(buf)
	buf = binio.AppendUint8(buf, byte(TrackModeNone))
	buf = binio.AppendUint8(buf, 0) // track_mode_flags
	buf = binio.AppendUint8(buf, byte(SubchannelModeNone))
	buf = binio.AppendUint8(buf, 0)
	buf = appendFullTOCPoint(buf, point)
	return append(buf, make([]byte, sessionTableEntrySize-(len(buf)-start))...)
}

func appendTrackSessionTableEntry(buf []byte, point disc.PointInfo, mode TrackMode, flags TrackModeFlags, saveSubchannels bool, sectorLength int,
	absoluteOffsetToTrackTableEntry, firstSectorOnDisc, mdfByteOffset, absoluteOffsetToFileTableHeader int) []byte {
	start := len(buf)
	buf = binio.AppendUint8(buf, byte(mode))
	buf = binio.AppendUint8(buf, byte(flags))
	subchannelMode := SubchannelModeNone
	if saveSubchannels {
		subchannelMode = SubchannelModeInterleaved96
	}
	buf = binio.AppendUint8(buf, byte(subchannelMode))
	buf = binio.AppendUint8(buf, 0)
	buf = appendFullTOCPoint(buf, point)
	buf = append(buf, 0) // pad to 16 bytes since the fixed header above is 15
	buf = binio.AppendUint16LE(buf, uint16(sectorLength))
	buf = append(buf, 0, 0)
	buf = binio.AppendUint32LE(buf, uint32(firstSectorOnDisc))
	buf = binio.AppendUint32LE(buf, uint32(mdfByteOffset))
	buf = binio.AppendUint32LE(buf, uint32(absoluteOffsetToTrackTableEntry))
	buf = binio.AppendUint32LE(buf, uint32(absoluteOffsetToFileTableHeader))
	return append(buf, make([]byte, sessionTableEntrySize-(len(buf)-start))...)
}

func allTracks(info disc.DiscInfo) []disc.TrackInfo {
	var tracks []disc.TrackInfo
	for _, s := range info.Sessions {
		tracks = append(tracks, s.Tracks...)
	}
	return tracks
}

func findTrack(tracks []disc.TrackInfo, number int) (disc.TrackInfo, bool) {
	for _, t := range tracks {
		if t.Number == number {
			return t, true
		}
	}
	return disc.TrackInfo{}, false
}
