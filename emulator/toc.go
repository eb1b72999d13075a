package emulator

import (
	"encoding/binary"

	"github.com/bitcd/bitcd/cdb"
	"github.com/bitcd/bitcd/image/odi"
)

func appendTOCResponseHeader(buf []byte, dataLength int, firstOrSingle, lastOrSingle byte) []byte {
	var tmp [2]byte
	binary.BigEndian.PutUint16(tmp[:], uint16(dataLength))
	buf = append(buf, tmp[:]...)
	return append(buf, firstOrSingle, lastOrSingle)
}

func appendNormalTOCEntry(buf []byte, p odi.PointTableEntry, trackNumber byte) []byte {
	buf = append(buf, 0, p.Control<<4|p.ADR, trackNumber, 0, 0)
	return append(buf, p.PAddress[:]...)
}

func appendFullTOCEntry(buf []byte, p odi.PointTableEntry) []byte {
	buf = append(buf, p.SessionNumber, p.Control<<4|p.ADR, 0, p.Point)
	buf = append(buf, p.Address[:]...)
	buf = append(buf, 0) // reserved
	return append(buf, p.PAddress[:]...)
}

// findSessionStructurePoints locates the three ADR=1 points every
// session carries (first track, last track, lead-out), matching
// handle_read_toc_10's scan of the point table.
func findSessionStructurePoints(points []odi.PointTableEntry) (first, last, leadOut int, ok bool) {
	first, last, leadOut = -1, -1, -1
	for i, p := range points {
		if p.ADR != 1 {
			continue
		}
		switch p.Point {
		case cdb.FullTOCPointFirstTrackInSession:
			first = i
		case cdb.FullTOCPointLastTrackInSession:
			last = i
		case cdb.FullTOCPointLeadOut:
			leadOut = i
		}
	}
	return first, last, leadOut, first >= 0 && last >= 0 && leadOut >= 0
}

func (d *Device) handleReadTOC10(c []byte, data []byte) (byte, []byte, error) {
	format := cdb.TOCFormat(c[2] & 0x0F)
	points := d.reader.Points()

	first, last, leadOut, ok := findSessionStructurePoints(points)
	if !ok {
		return statusCheckCondition, nil, nil
	}

	switch format {
	case cdb.TOCFormatNormal:
		var trackIndices []int
		for i, p := range points {
			if p.ADR == 1 && p.Point >= firstTrackReferencePoint && p.Point <= lastTrackReferencePoint {
				trackIndices = append(trackIndices, i)
			}
		}
		trackIndices = append(trackIndices, leadOut)

		size := 4 + len(trackIndices)*8
		if len(data) < size {
			return statusCheckCondition, nil, nil
		}
		buf := appendTOCResponseHeader(nil, size-2, points[first].PAddress[0], points[last].PAddress[0])
		for _, idx := range trackIndices {
			p := points[idx]
			trackNumber := p.Point
			if idx == leadOut {
				trackNumber = cdb.LeadOutTrackNumber
			}
			buf = appendNormalTOCEntry(buf, p, trackNumber)
		}
		copy(data, buf)
		return statusGood, nil, nil

	case cdb.TOCFormatFull:
		size := 4 + len(points)*11
		if len(data) < size {
			return statusCheckCondition, nil, nil
		}
		buf := appendTOCResponseHeader(nil, size-2, points[first].SessionNumber, points[last].SessionNumber)
		for _, p := range points {
			buf = appendFullTOCEntry(buf, p)
		}
		copy(data, buf)
		return statusGood, nil, nil

	default:
		return statusCheckCondition, nil, nil
	}
}
