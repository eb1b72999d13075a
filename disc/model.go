// Package disc holds the normalized disc topology (§3 data model) and the
// builder (§4.5) that synthesizes it from a validated Full-TOC.
package disc

import "github.com/bitcd/bitcd/cdb"

// TrackType is the tagged variant of every track shape this module
// understands (§3).
type TrackType int

const (
	TrackTypeAudio2Channels TrackType = iota
	TrackTypeAudio4Channels
	TrackTypeDataMode0
	TrackTypeDataMode1
	TrackTypeDataMode2
	TrackTypeDataMode2Form1
	TrackTypeDataMode2Form2
)

func (t TrackType) String() string {
	switch t {
	case TrackTypeAudio2Channels:
		return "AUDIO_2_CHANNELS"
	case TrackTypeAudio4Channels:
		return "AUDIO_4_CHANNELS"
	case TrackTypeDataMode0:
		return "DATA_MODE0"
	case TrackTypeDataMode1:
		return "DATA_MODE1"
	case TrackTypeDataMode2:
		return "DATA_MODE2"
	case TrackTypeDataMode2Form1:
		return "DATA_MODE2_FORM1"
	case TrackTypeDataMode2Form2:
		return "DATA_MODE2_FORM2"
	default:
		return "UNKNOWN"
	}
}

// IsData reports whether t is one of the data track shapes.
func (t TrackType) IsData() bool {
	return t != TrackTypeAudio2Channels && t != TrackTypeAudio4Channels
}

// SectorLayout describes the (sector_length, user_data_offset,
// user_data_length) triple for data track types (§3). Audio types have no
// sub-sector layout: the whole 2352-byte sector is user data.
type SectorLayout struct {
	SectorLength    int
	UserDataOffset  int
	UserDataLength  int
}

// Layout returns the sector layout for data track types. Audio types and
// DATA_MODE0 (whose on-disc shape is undefined) return the zero value.
func (t TrackType) Layout() SectorLayout {
	switch t {
	case TrackTypeDataMode1:
		return SectorLayout{SectorLength: 2352, UserDataOffset: 16, UserDataLength: 2048}
	case TrackTypeDataMode2:
		return SectorLayout{SectorLength: 2352, UserDataOffset: 16, UserDataLength: 2336}
	case TrackTypeDataMode2Form1:
		return SectorLayout{SectorLength: 2352, UserDataOffset: 24, UserDataLength: 2048}
	case TrackTypeDataMode2Form2:
		return SectorLayout{SectorLength: 2352, UserDataOffset: 24, UserDataLength: 2324}
	default:
		return SectorLayout{}
	}
}

// TrackInfo is one track on the disc (§3).
type TrackInfo struct {
	Number              int
	Type                TrackType
	FirstSectorAbsolute int
	LastSectorAbsolute  int
	LengthSectors       int
}

// PointInfo wraps one Full-TOC entry (§3).
type PointInfo struct {
	SessionNumber byte
	ADR           byte
	Control       byte
	Point         byte
	Address       [3]byte
	PAddress      [3]byte
}

// SessionType mirrors cdb.SessionType, re-exported so callers of this
// package need not import cdb for the common case.
type SessionType = cdb.SessionType

const (
	SessionTypeCDDAOrCDROM = cdb.SessionTypeCDDAOrCDROM
	SessionTypeCDI         = cdb.SessionTypeCDI
	SessionTypeCDXAOrDDCD  = cdb.SessionTypeCDXAOrDDCD
)

// SessionInfo is one session on the disc (§3).
type SessionInfo struct {
	Number               int
	Type                 SessionType
	Tracks               []TrackInfo
	Points               []PointInfo
	LeadInLengthSectors  int
	PregapSectors        int
	LengthSectors        int
	LeadOutLengthSectors int
}

// DiscInfo is the complete normalized disc topology (§3).
type DiscInfo struct {
	Sessions      []SessionInfo
	LengthSectors int
}

// DriveInfo describes a drive's negotiated capabilities (§3).
type DriveInfo struct {
	Vendor                    string
	Product                   string
	SectorDataOffset          int
	SubchannelsDataOffset     int
	C2DataOffset              int
	BufferSize                uint16
	SupportsAccurateStream    bool
	SupportsC2ErrorReporting  bool
	ReadOffsetCorrection      *int
}
