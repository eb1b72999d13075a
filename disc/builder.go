package disc

import (
	"fmt"
	"sort"

	"github.com/bitcd/bitcd/cd"
	"github.com/bitcd/bitcd/cdb"
)

// MissingError reports a required TOC point that was absent (§7 Missing).
type MissingError struct {
	What string
}

func (e MissingError) Error() string { return fmt.Sprintf("missing: %s", e.What) }

// TrackTypeResolver determines a track's concrete TrackType given its
// category and session type. Data-category resolution requires probing
// the disc (reading the ISO 9660 PVD sector), so this is supplied by the
// drive layer rather than implemented here — the builder stays a pure
// function of the Full-TOC entries it is given (§9 "Callback for ISO
// reads" design note applies the same indirection principle to this
// component).
type TrackTypeResolver func(category cdb.TrackCategory, sessionType SessionType) (TrackType, error)

// Build converts a validated Full-TOC into a DiscInfo (§4.5).
func Build(entries []cdb.FullTOCEntry, resolve TrackTypeResolver) (DiscInfo, error) {
	bySession := make(map[byte][]cdb.FullTOCEntry)
	var sessionNumbers []byte
	for _, e := range entries {
		if _, ok := bySession[e.SessionNumber]; !ok {
			sessionNumbers = append(sessionNumbers, e.SessionNumber)
		}
		bySession[e.SessionNumber] = append(bySession[e.SessionNumber], e)
	}
	sort.Slice(sessionNumbers, func(i, j int) bool { return sessionNumbers[i] < sessionNumbers[j] })

	var sessions []SessionInfo
	runningOffset := 0

	for _, sessionNumber := range sessionNumbers {
		sessionEntries := bySession[sessionNumber]

		var sessionType SessionType
		var haveSessionType bool
		var leadOutAddr *cd.SectorAddress
		var tracks []TrackInfo
		var points []PointInfo

		for _, e := range sessionEntries {
			points = append(points, PointInfo{
				SessionNumber: e.SessionNumber,
				ADR:           e.ADR,
				Control:       e.Control,
				Point:         e.Point,
				Address:       e.Address,
				PAddress:      e.PAddress,
			})

			switch {
			case e.Point == cdb.FullTOCPointFirstTrackInSession:
				sessionType = SessionType(e.PAddress[1])
				haveSessionType = true
			case e.Point == cdb.FullTOCPointLeadOut:
				addr, err := cd.DecodeBCDAddress(e.PAddress[0], e.PAddress[1], e.PAddress[2])
				if err != nil {
					return DiscInfo{}, fmt.Errorf("decode lead-out address: %w", err)
				}
				leadOutAddr = &addr
			case e.ADR == 1 && e.Point >= 0x01 && e.Point <= 0x63:
				addr, err := cd.DecodeBCDAddress(e.PAddress[0], e.PAddress[1], e.PAddress[2])
				if err != nil {
					return DiscInfo{}, fmt.Errorf("decode track %d address: %w", e.Point, err)
				}
				category := cdb.CategoryFromControl(e.Control)
				trackType, err := resolve(category, sessionType)
				if err != nil {
					return DiscInfo{}, fmt.Errorf("resolve track %d type: %w", e.Point, err)
				}
				tracks = append(tracks, TrackInfo{
					Number:              int(e.Point),
					Type:                trackType,
					FirstSectorAbsolute: cd.SectorFromAddress(addr),
				})
			}
		}

		if !haveSessionType {
			return DiscInfo{}, MissingError{What: fmt.Sprintf("session %d: no 0x%02x (first track) point", sessionNumber, cdb.FullTOCPointFirstTrackInSession)}
		}
		if leadOutAddr == nil {
			return DiscInfo{}, MissingError{What: fmt.Sprintf("session %d: no 0x%02x (lead-out) point", sessionNumber, cdb.FullTOCPointLeadOut)}
		}
		if len(tracks) == 0 {
			return DiscInfo{}, MissingError{What: fmt.Sprintf("session %d: no track-reference points", sessionNumber)}
		}

		sort.Slice(tracks, func(i, j int) bool { return tracks[i].FirstSectorAbsolute < tracks[j].FirstSectorAbsolute })

		leadIn := cd.LeadInLength
		leadOut := cd.SubsequentLeadOutLength
		if sessionNumber == sessionNumbers[0] {
			leadOut = cd.FirstLeadOutLength
		}

		pregap := tracks[0].FirstSectorAbsolute - runningOffset
		if pregap > cd.RelativeSectorOffset {
			synthetic := TrackInfo{
				Number:              0,
				Type:                tracks[0].Type,
				FirstSectorAbsolute: runningOffset + cd.RelativeSectorOffset,
				LengthSectors:       pregap - cd.RelativeSectorOffset,
			}
			synthetic.LastSectorAbsolute = synthetic.FirstSectorAbsolute + synthetic.LengthSectors
			tracks = append([]TrackInfo{synthetic}, tracks...)
			pregap = cd.RelativeSectorOffset
		}

		leadOutSector := cd.SectorFromAddress(*leadOutAddr)
		for i := range tracks {
			var next int
			if i+1 < len(tracks) {
				next = tracks[i+1].FirstSectorAbsolute
			} else {
				next = leadOutSector
			}
			if tracks[i].LengthSectors == 0 {
				tracks[i].LengthSectors = next - tracks[i].FirstSectorAbsolute
				tracks[i].LastSectorAbsolute = tracks[i].FirstSectorAbsolute + tracks[i].LengthSectors
			}
		}

		sessionLength := 0
		for _, tr := range tracks {
			sessionLength += tr.LengthSectors
		}

		sessions = append(sessions, SessionInfo{
			Number:               int(sessionNumber),
			Type:                 sessionType,
			Tracks:               tracks,
			Points:               points,
			LeadInLengthSectors:  leadIn,
			PregapSectors:        pregap,
			LengthSectors:        sessionLength,
			LeadOutLengthSectors: leadOut,
		})

		runningOffset += leadIn + pregap + sessionLength + leadOut
	}

	discLength := 0
	for _, s := range sessions {
		discLength += s.LeadInLengthSectors + s.PregapSectors + s.LengthSectors + s.LeadOutLengthSectors
	}

	return DiscInfo{Sessions: sessions, LengthSectors: discLength}, nil
}
