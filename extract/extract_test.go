package extract

import (
	"bytes"
	"testing"

	"github.com/bitcd/bitcd/cd"
	"github.com/bitcd/bitcd/disc"
)

// deterministicReader always returns the same payload for a given sector
// index: byte value (sector % 256) repeated across the whole sector.
type deterministicReader struct {
	reads       map[int]int
	retryCounts []byte
}

func newDeterministicReader() *deterministicReader {
	return &deterministicReader{reads: make(map[int]int)}
}

func (r *deterministicReader) ReadAbsoluteSector(idx int) ([]byte, []byte, []byte, error) {
	r.reads[idx]++
	sectorData := make([]byte, cd.SectorLength)
	for i := range sectorData {
		sectorData[i] = byte(idx)
	}
	subchannelsData := make([]byte, 96)
	c2Data := make([]byte, 294)
	return sectorData, subchannelsData, c2Data, nil
}

func (r *deterministicReader) SetReadRetryCount(n byte) {
	r.retryCounts = append(r.retryCounts, n)
}

// TestConsensusConvergesEarly is scenario S5: with min_passes=2,
// max_passes=4, min_copies=2, max_copies=2, a deterministic drive reaches
// counter=2 on every sector after pass 2 and the loop stops there rather
// than running all 4 passes.
func TestConsensusConvergesEarly(t *testing.T) {
	reader := newDeterministicReader()
	extracted, err := ReadAbsoluteSectorRange(nil, reader, 0, 3, 2, 4, 16, 2, 2)
	if err != nil {
		t.Fatalf("ReadAbsoluteSectorRange: %v", err)
	}
	for sector, count := range reader.reads {
		if count != 2 {
			t.Fatalf("sector %d was read %d times, want exactly 2 (loop should stop after pass 2)", sector, count)
		}
	}
	for i, bucket := range extracted {
		if len(bucket) != 1 || bucket[0].Counter != 2 {
			t.Fatalf("sector %d bucket = %+v, want a single entry with counter 2", i, bucket)
		}
	}
}

func TestConsensusFailsBelowMinCopies(t *testing.T) {
	reader := newDeterministicReader()
	_, err := ReadAbsoluteSectorRange(nil, reader, 0, 1, 1, 1, 16, 2, 2)
	cerr, ok := err.(ConsensusError)
	if !ok {
		t.Fatalf("err = %v (%T), want ConsensusError", err, err)
	}
	if cerr.IdenticalCopies != 1 || cerr.MinCopies != 2 {
		t.Fatalf("unexpected ConsensusError: %+v", cerr)
	}
}

// flakyReader fails every other read for sector 0 only, to exercise the
// "omitted from this pass, counter not incremented" absorption path.
type flakyReader struct {
	deterministicReader
	failNext bool
}

func (r *flakyReader) ReadAbsoluteSector(idx int) ([]byte, []byte, []byte, error) {
	if idx == 0 {
		r.failNext = !r.failNext
		if r.failNext {
			r.reads[idx]++
			return nil, nil, nil, errFlaky
		}
	}
	return r.deterministicReader.ReadAbsoluteSector(idx)
}

var errFlaky = fmtError("simulated transport failure")

type fmtError string

func (e fmtError) Error() string { return string(e) }

func TestTransportFailureIsAbsorbed(t *testing.T) {
	reader := &flakyReader{deterministicReader: deterministicReader{reads: make(map[int]int)}}
	extracted, err := ReadAbsoluteSectorRange(nil, reader, 0, 1, 1, 4, 16, 2, 2)
	if err != nil {
		t.Fatalf("ReadAbsoluteSectorRange: %v", err)
	}
	if len(extracted[0]) != 1 || extracted[0][0].Counter != 2 {
		t.Fatalf("sector 0 bucket = %+v, want a single entry with counter 2 (failed reads don't count)", extracted[0])
	}
}

// audioTestReader returns sector data identifying each sector by a
// distinct repeating byte, used to verify the S4 splicing arithmetic.
type audioTestReader struct{ reads map[int]int }

func (r *audioTestReader) ReadAbsoluteSector(idx int) ([]byte, []byte, []byte, error) {
	if r.reads == nil {
		r.reads = make(map[int]int)
	}
	r.reads[idx]++
	sectorData := make([]byte, cd.SectorLength)
	for i := range sectorData {
		sectorData[i] = byte(idx)
	}
	return sectorData, make([]byte, 96), make([]byte, 294), nil
}

func (r *audioTestReader) SetReadRetryCount(byte) {}

// TestAudioReadOffsetCorrection is scenario S4: read_offset_correction =
// +6 samples = +24 bytes, first=0, last=100 gives adj_first=0,
// adj_last=101, prefix=24, suffix=2328, and the reconstructed sector 0 is
// sector0_raw[24:2352] ++ sector1_raw[0:24].
func TestAudioReadOffsetCorrection(t *testing.T) {
	reader := &audioTestReader{}
	track := disc.TrackInfo{
		Number:              1,
		Type:                disc.TrackTypeAudio2Channels,
		FirstSectorAbsolute: 0,
		LastSectorAbsolute:  100,
		LengthSectors:       100,
	}
	opts := Options{
		ReadCorrectionSamples: 6,
		MinAudioPasses:        1,
		MaxAudioPasses:        1,
		MaxAudioRetries:       16,
		MinAudioCopies:        0,
		MaxAudioCopies:        1,
	}

	extracted, err := ReadAudioTrack(nil, reader, track, opts)
	if err != nil {
		t.Fatalf("ReadAudioTrack: %v", err)
	}
	if len(extracted) != 100 {
		t.Fatalf("len(extracted) = %d, want 100 (truncated to track length)", len(extracted))
	}

	const prefix = 24
	const suffix = cd.SectorLength - prefix
	got := extracted[0][0].SectorData
	for i := 0; i < suffix; i++ {
		if got[i] != 0 {
			t.Fatalf("byte %d of reconstructed sector 0 = %d, want 0 (from raw sector 0)", i, got[i])
		}
	}
	for i := suffix; i < cd.SectorLength; i++ {
		if got[i] != 1 {
			t.Fatalf("byte %d of reconstructed sector 0 = %d, want 1 (from raw sector 1)", i, got[i])
		}
	}

	if reader.reads[0] == 0 || reader.reads[100] == 0 {
		t.Fatalf("expected the adjusted range [0, 101) to be read; reads = %+v", reader.reads)
	}
}

// TestBestSectorPicksHighestCounterNotFirst guards against regressing to
// bucket[0]: the minority (first-seen) payload must lose to a later
// bucket entry with a higher counter.
func TestBestSectorPicksHighestCounterNotFirst(t *testing.T) {
	minority := ExtractedSector{Counter: 1}
	minority.SectorData[0] = 0xAA
	majority := ExtractedSector{Counter: 5}
	majority.SectorData[0] = 0xBB

	bucket := []ExtractedSector{minority, majority}
	got := BestSector(bucket)
	if got.SectorData[0] != 0xBB || got.Counter != 5 {
		t.Fatalf("BestSector = %+v, want the Counter=5 entry", got)
	}
}

// TestAppendSectorDataPicksWinningPayload exercises the same scenario
// through AppendSectorData, the actual write path image serializers call.
func TestAppendSectorDataPicksWinningPayload(t *testing.T) {
	minority := ExtractedSector{Counter: 1}
	minority.SectorData[0] = 0xAA
	majority := ExtractedSector{Counter: 5}
	majority.SectorData[0] = 0xBB

	extracted := [][]ExtractedSector{{minority, majority}}
	var buf bytes.Buffer
	if err := AppendSectorData(nil, &buf, extracted, 0, 1, false); err != nil {
		t.Fatalf("AppendSectorData: %v", err)
	}
	if got := buf.Bytes(); len(got) != 1 || got[0] != 0xBB {
		t.Fatalf("written byte = %v, want [0xBB]", got)
	}
}

func TestGetBadSectorIndices(t *testing.T) {
	extracted := [][]ExtractedSector{
		{{Counter: 2}},
		{},
		{{Counter: 0}, {Counter: 0}},
	}
	bad := GetBadSectorIndices(extracted, 1000)
	want := []int{1001, 1002}
	if len(bad) != len(want) {
		t.Fatalf("bad = %v, want %v", bad, want)
	}
	for i := range want {
		if bad[i] != want[i] {
			t.Fatalf("bad = %v, want %v", bad, want)
		}
	}
}
