package mds

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/bitcd/bitcd/cd"
	"github.com/bitcd/bitcd/disc"
)

func oneSessionOneDataTrackDisc() disc.DiscInfo {
	track := disc.TrackInfo{Number: 1, Type: disc.TrackTypeDataMode1, FirstSectorAbsolute: 0, LastSectorAbsolute: 100, LengthSectors: 100}
	points := []disc.PointInfo{
		{SessionNumber: 1, ADR: 1, Point: 0xA0, Address: [3]byte{0, 2, 0}, PAddress: [3]byte{1, 0, 0}},
		{SessionNumber: 1, ADR: 1, Point: 1, Address: [3]byte{0, 2, 0}, PAddress: [3]byte{0, 0, 0}},
		{SessionNumber: 1, ADR: 1, Point: 0xA2, Address: [3]byte{0, 2, 0}, PAddress: [3]byte{0, 1, 25}},
	}
	session := disc.SessionInfo{
		Number:        1,
		Type:          disc.SessionTypeCDDAOrCDROM,
		Tracks:        []disc.TrackInfo{track},
		Points:        points,
		LengthSectors: 100,
	}
	return disc.DiscInfo{Sessions: []disc.SessionInfo{session}, LengthSectors: 100}
}

func TestWriteProducesWellFormedFileHeader(t *testing.T) {
	info := oneSessionOneDataTrackDisc()
	var buf bytes.Buffer
	if err := Write(&buf, info, nil, Options{}); err != nil {
		t.Fatalf("Write: %v", err)
	}
	out := buf.Bytes()

	wantSize := fileHeaderSize +
		1*sessionTableHeaderSize + 3*sessionTableEntrySize +
		trackTableHeaderSize + 1*trackTableEntrySize +
		fileTableHeaderSize + fileTableEntrySize
	if len(out) != wantSize {
		t.Fatalf("len(out) = %d, want %d", len(out), wantSize)
	}

	if out[0] != 0 {
		t.Fatalf("medium_type = %d, want 0", out[0])
	}
	if out[1] != 1 {
		t.Fatalf("session_count = %d, want 1", out[1])
	}
	if got := binary.LittleEndian.Uint16(out[2:4]); got != 2 {
		t.Fatalf("unknown_a = %d, want 2", got)
	}
	if got := binary.LittleEndian.Uint32(out[4:8]); got != fileHeaderSize {
		t.Fatalf("absolute_offset_to_session_headers = %d, want %d", got, fileHeaderSize)
	}
	if got := binary.LittleEndian.Uint32(out[8:12]); got != 0 {
		t.Fatalf("absolute_offset_to_footer = %d, want 0 (no bad sectors)", got)
	}
}

func TestWriteSessionTableHeader(t *testing.T) {
	info := oneSessionOneDataTrackDisc()
	var buf bytes.Buffer
	if err := Write(&buf, info, nil, Options{}); err != nil {
		t.Fatalf("Write: %v", err)
	}
	out := buf.Bytes()
	h := out[fileHeaderSize : fileHeaderSize+sessionTableHeaderSize]

	pregap := int32(binary.LittleEndian.Uint32(h[0:4]))
	if pregap != -cd.RelativeSectorOffset {
		t.Fatalf("pregap_correction = %d, want %d", pregap, -cd.RelativeSectorOffset)
	}
	if got := binary.LittleEndian.Uint32(h[4:8]); got != 100 {
		t.Fatalf("sectors_on_disc = %d, want 100", got)
	}
	if h[8] != 1 {
		t.Fatalf("session_number = %d, want 1", h[8])
	}
	if h[9] != 3 {
		t.Fatalf("point_count = %d, want 3", h[9])
	}
	if h[10] != 2 {
		t.Fatalf("non_track_point_count = %d, want 2", h[10])
	}
	wantEntryTableOffset := fileHeaderSize + sessionTableHeaderSize
	if got := binary.LittleEndian.Uint32(h[20:24]); int(got) != wantEntryTableOffset {
		t.Fatalf("absolute_offset_to_entry_table = %d, want %d", got, wantEntryTableOffset)
	}
}

func TestWriteTrackSessionTableEntryModeAndLength(t *testing.T) {
	info := oneSessionOneDataTrackDisc()
	var buf bytes.Buffer
	if err := Write(&buf, info, nil, Options{}); err != nil {
		t.Fatalf("Write: %v", err)
	}
	out := buf.Bytes()

	entriesStart := fileHeaderSize + sessionTableHeaderSize
	trackEntry := out[entriesStart+sessionTableEntrySize : entriesStart+2*sessionTableEntrySize]
	if TrackMode(trackEntry[0]) != TrackModeMode1 {
		t.Fatalf("track_mode = 0x%x, want MODE1", trackEntry[0])
	}
	if SubchannelMode(trackEntry[2]) != SubchannelModeNone {
		t.Fatalf("subchannel_mode = 0x%x, want NONE", trackEntry[2])
	}
	if got := binary.LittleEndian.Uint16(trackEntry[16:18]); got != cd.SectorLength {
		t.Fatalf("sector_length = %d, want %d (no subchannels saved)", got, cd.SectorLength)
	}
}

func TestWriteWithSubchannelsWidensSectorLength(t *testing.T) {
	info := oneSessionOneDataTrackDisc()
	var buf bytes.Buffer
	if err := Write(&buf, info, nil, Options{SaveDataSubchannels: true}); err != nil {
		t.Fatalf("Write: %v", err)
	}
	out := buf.Bytes()
	entriesStart := fileHeaderSize + sessionTableHeaderSize
	trackEntry := out[entriesStart+sessionTableEntrySize : entriesStart+2*sessionTableEntrySize]
	if got := binary.LittleEndian.Uint16(trackEntry[16:18]); got != cd.SectorLength+96 {
		t.Fatalf("sector_length = %d, want %d", got, cd.SectorLength+96)
	}
	if SubchannelMode(trackEntry[2]) != SubchannelModeInterleaved96 {
		t.Fatalf("subchannel_mode = 0x%x, want INTERLEAVED_96", trackEntry[2])
	}
}

func TestWriteSessionTableEntryCarriesBothAddresses(t *testing.T) {
	info := oneSessionOneDataTrackDisc()
	var buf bytes.Buffer
	if err := Write(&buf, info, nil, Options{}); err != nil {
		t.Fatalf("Write: %v", err)
	}
	out := buf.Bytes()

	entriesStart := fileHeaderSize + sessionTableHeaderSize
	for i, want := range info.Sessions[0].Points {
		entry := out[entriesStart+i*sessionTableEntrySize : entriesStart+(i+1)*sessionTableEntrySize]
		// appendFullTOCPoint starts at byte 4 of the entry: session, ctrl/adr,
		// tno, point, address[3], reserved, paddress[3].
		point := entry[4:]
		if got := [3]byte{point[4], point[5], point[6]}; got != want.Address {
			t.Fatalf("point %d: address = %v, want %v", i, got, want.Address)
		}
		if got := [3]byte{point[8], point[9], point[10]}; got != want.PAddress {
			t.Fatalf("point %d: paddress = %v, want %v", i, got, want.PAddress)
		}
	}
}

func TestWriteBadSectorTable(t *testing.T) {
	info := oneSessionOneDataTrackDisc()
	bad := []int{cd.RelativeSectorOffset + 5, cd.RelativeSectorOffset + 7}
	var buf bytes.Buffer
	if err := Write(&buf, info, bad, Options{}); err != nil {
		t.Fatalf("Write: %v", err)
	}
	out := buf.Bytes()

	footerOffset := binary.LittleEndian.Uint32(out[8:12])
	if footerOffset == 0 {
		t.Fatal("absolute_offset_to_footer should be non-zero when there are bad sectors")
	}
	footer := out[footerOffset : footerOffset+footerSize]
	badTableOffset := binary.LittleEndian.Uint32(footer[4:8])
	badTable := out[badTableOffset : badTableOffset+badSectorTableHeaderSize]
	if got := binary.LittleEndian.Uint32(badTable[12:16]); got != 2 {
		t.Fatalf("bad_sector_count = %d, want 2", got)
	}
	entries := out[badTableOffset+badSectorTableHeaderSize:]
	if got := binary.LittleEndian.Uint32(entries[0:4]); got != 5 {
		t.Fatalf("first bad sector (relative) = %d, want 5", got)
	}
	if got := binary.LittleEndian.Uint32(entries[4:8]); got != 7 {
		t.Fatalf("second bad sector (relative) = %d, want 7", got)
	}
}
