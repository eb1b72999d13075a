package odi

import (
	"bytes"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"testing"

	"github.com/bitcd/bitcd/cd"
)

// patternReader stamps each sector's own absolute index into its payload
// so decoded content can be checked for byte-exact round-tripping rather
// than just structural offsets. A read for failAt fails outright, the way
// appendExtractedRange's Counter==0 bucket ends up ReadabilityUnreadable.
type patternReader struct {
	failAt int
}

func (r patternReader) ReadAbsoluteSector(idx int) (sectorData, subchannelsData, c2Data []byte, err error) {
	if idx == r.failAt {
		return nil, nil, nil, fmt.Errorf("simulated read failure at sector %d", idx)
	}
	sectorData = make([]byte, cd.SectorLength)
	for i := range sectorData {
		sectorData[i] = byte(idx + i)
	}
	subchannelsData = make([]byte, 96)
	for i := range subchannelsData {
		subchannelsData[i] = byte(idx*3 + i)
	}
	return sectorData, subchannelsData, make([]byte, cd.C2Length), nil
}

func (patternReader) SetReadRetryCount(byte) {}

func TestReaderRoundTripsSectorContent(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "disc.odi")
	logger := log.New(os.Stderr, "", 0)

	info := smallDisc()
	reader := patternReader{failAt: -999999}
	if err := Write(logger, path, reader, info, testExtractOpts(), true); err != nil {
		t.Fatalf("Write: %v", err)
	}

	r, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer r.Close()

	wantSectors := 4 + 5 + 3
	if r.NumSectors() != wantSectors {
		t.Fatalf("NumSectors = %d, want %d", r.NumSectors(), wantSectors)
	}

	for tableIdx := 0; tableIdx < r.NumSectors(); tableIdx++ {
		sectorData, subchannelsData, readable, err := r.ReadSector(tableIdx)
		if err != nil {
			t.Fatalf("ReadSector(%d): %v", tableIdx, err)
		}
		if !readable {
			t.Fatalf("ReadSector(%d) reported unreadable, want readable", tableIdx)
		}
		if len(sectorData) != cd.SectorLength {
			t.Fatalf("ReadSector(%d) sector_data length = %d, want %d", tableIdx, len(sectorData), cd.SectorLength)
		}
		if len(subchannelsData) != 96 {
			t.Fatalf("ReadSector(%d) subchannels_data length = %d, want 96", tableIdx, len(subchannelsData))
		}

		// tableIdx runs lead-in, pregap, tracks, lead-out in order, so the
		// absolute sector patternReader saw for this entry is tableIdx
		// shifted back by the session's lead-in length.
		wantAbs := tableIdx - info.Sessions[0].LeadInLengthSectors
		wantSector := make([]byte, cd.SectorLength)
		for i := range wantSector {
			wantSector[i] = byte(wantAbs + i)
		}
		if !bytes.Equal(sectorData, wantSector) {
			t.Fatalf("ReadSector(%d) sector_data mismatch for absolute sector %d", tableIdx, wantAbs)
		}
		wantSub := make([]byte, 96)
		for i := range wantSub {
			wantSub[i] = byte(wantAbs*3 + i)
		}
		if !bytes.Equal(subchannelsData, wantSub) {
			t.Fatalf("ReadSector(%d) subchannels_data mismatch for absolute sector %d", tableIdx, wantAbs)
		}
	}
}

func TestReaderReportsUnreadableSector(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "disc.odi")
	logger := log.New(os.Stderr, "", 0)

	info := smallDisc()
	// absolute sector 2 of the track (tableIdx = 2 + LeadInLengthSectors)
	// is reported unreadable by the reader at write time.
	const badAbsolute = 2
	reader := patternReader{failAt: badAbsolute}
	if err := Write(logger, path, reader, info, testExtractOpts(), true); err != nil {
		t.Fatalf("Write: %v", err)
	}

	r, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer r.Close()

	badTableIdx := badAbsolute + info.Sessions[0].LeadInLengthSectors
	_, _, readable, err := r.ReadSector(badTableIdx)
	if err != nil {
		t.Fatalf("ReadSector(%d): %v", badTableIdx, err)
	}
	if readable {
		t.Fatalf("ReadSector(%d) reported readable, want unreadable", badTableIdx)
	}
}

func TestReaderRejectsOutOfRangeIndex(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "disc.odi")
	logger := log.New(os.Stderr, "", 0)

	if err := Write(logger, path, fakeReader{}, smallDisc(), testExtractOpts(), true); err != nil {
		t.Fatalf("Write: %v", err)
	}

	r, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer r.Close()

	if _, _, _, err := r.ReadSector(-1); err == nil {
		t.Fatal("ReadSector(-1) should fail")
	}
	if _, _, _, err := r.ReadSector(r.NumSectors()); err == nil {
		t.Fatal("ReadSector(NumSectors) should fail")
	}
}

func TestOpenRejectsNonODIFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "not-odi.bin")
	if err := os.WriteFile(path, bytes.Repeat([]byte{0xAB}, 64), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}

	if _, err := Open(path); err == nil {
		t.Fatal("Open should reject a file without the ODI identifier")
	}
}
