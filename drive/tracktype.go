package drive

import (
	"fmt"

	"github.com/bitcd/bitcd/cd"
	"github.com/bitcd/bitcd/cdb"
	"github.com/bitcd/bitcd/disc"
)

// pvdProbeSectorRelative is the ISO 9660 Primary Volume Descriptor's
// relative sector (16); absolute is this plus the 150-sector offset
// (§4.5).
const pvdProbeSectorRelative = 16

// resolveTrackType implements determine_track_type (§4.5): audio
// categories map directly; data categories are resolved by probing the
// sector holding the ISO 9660 PVD and inspecting its sync-header mode
// byte (and, for CD-XA sessions, the subheader's form_2 bit).
func (d *Drive) resolveTrackType(category cdb.TrackCategory, sessionType disc.SessionType) (disc.TrackType, error) {
	switch category {
	case cdb.TrackCategoryAudio2Channels:
		return disc.TrackTypeAudio2Channels, nil
	case cdb.TrackCategoryAudio4Channels:
		return disc.TrackTypeAudio4Channels, nil
	case cdb.TrackCategoryReserved:
		return 0, UnsupportedValueError{What: "reserved track category"}
	case cdb.TrackCategoryData:
		return d.resolveDataTrackType(sessionType)
	default:
		return 0, UnsupportedValueError{What: fmt.Sprintf("track category %v", category)}
	}
}

func (d *Drive) resolveDataTrackType(sessionType disc.SessionType) (disc.TrackType, error) {
	if sessionType == disc.SessionTypeCDI {
		return 0, UnsupportedValueError{What: "CDI sessions are not supported"}
	}

	sectorData, _, _, err := d.ReadAbsoluteSector(pvdProbeSectorRelative + cd.RelativeSectorOffset)
	if err != nil {
		return 0, fmt.Errorf("probe PVD sector for track type: %w", err)
	}
	if len(sectorData) < 24 {
		return 0, fmt.Errorf("PVD probe sector too short: %d bytes", len(sectorData))
	}
	mode := sectorData[15]

	if sessionType == disc.SessionTypeCDXAOrDDCD {
		// XA subheader follows the 16-byte sync+header; byte 2 of the
		// subheader (offset 18) carries the form_2 submode bit (0x20).
		form2 := sectorData[18]&0x20 != 0
		if form2 {
			return disc.TrackTypeDataMode2Form2, nil
		}
		return disc.TrackTypeDataMode2Form1, nil
	}

	switch mode {
	case 0:
		return disc.TrackTypeDataMode0, nil
	case 1:
		return disc.TrackTypeDataMode1, nil
	case 2:
		return disc.TrackTypeDataMode2, nil
	default:
		return 0, UnsupportedValueError{What: fmt.Sprintf("sector mode byte %d", mode)}
	}
}
