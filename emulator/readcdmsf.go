package emulator

import (
	"github.com/bitcd/bitcd/cd"
	"github.com/bitcd/bitcd/cdb"
)

// handleReadCDMSF12 validates the fixed flag-byte configuration this
// module always issues (§4.2 CoreReadCDFlags), then loop-reads the
// requested sector range from the ODI file's sector table, placing each
// sector's payload using cdb.LayoutB ("[sector | subchannel | C2]").
// Emulated images carry no real C2 error pointer data, so that region is
// always zero-filled; a sector recorded as UNREADABLE fails the read
// exactly as a real drive would report a media error for it.
func (d *Device) handleReadCDMSF12(c []byte, data []byte) (byte, []byte, error) {
	wantByte9, wantByte10 := cdb.EncodeReadCDFlags(cdb.CoreReadCDFlags)
	if c[9] != wantByte9 || c[10] != wantByte10 {
		return statusCheckCondition, nil, nil
	}

	start := cd.SectorAddress{Minute: c[3], Second: c[4], Frame: c[5]}
	end := cd.SectorAddress{Minute: c[6], Second: c[7], Frame: c[8]}
	startSector := cd.SectorFromAddress(start)
	endSectorExclusive := cd.SectorFromAddress(end)
	if endSectorExclusive < startSector {
		return statusCheckCondition, nil, nil
	}

	size := cdb.ResponseSize * (endSectorExclusive - startSector)
	if len(data) < size {
		return statusCheckCondition, nil, nil
	}

	offset := 0
	for sector := startSector; sector < endSectorExclusive; sector++ {
		tableIndex := sector + cd.LeadInLength
		if tableIndex < 0 || tableIndex >= d.reader.NumSectors() {
			return statusCheckCondition, nil, nil
		}
		sectorData, subchannelsData, readable, err := d.reader.ReadSector(tableIndex)
		if err != nil {
			return statusCheckCondition, nil, nil
		}
		if !readable {
			return statusCheckCondition, nil, nil
		}
		copy(data[offset+cdb.LayoutB.SectorDataOffset:], sectorData)
		copy(data[offset+cdb.LayoutB.SubchannelsDataOffset:], subchannelsData)
		// C2 region (cdb.LayoutB.C2DataOffset) is left zero-filled: ODI
		// images never store C2 error pointers.
		offset += cdb.ResponseSize
	}
	return statusGood, nil, nil
}
