package mds

import (
	"log"
	"os"

	"github.com/bitcd/bitcd/cd"
	"github.com/bitcd/bitcd/disc"
	"github.com/bitcd/bitcd/extract"
)

// WriteMDF extracts every track in order and concatenates their raw
// 2352-byte sectors — interleaved with the 96-byte subchannel block when
// that track's category is configured to save subchannels — into one
// MDF file, returning the absolute bad-sector indices accumulated across
// every track (§4.8.2 write_mdf).
func WriteMDF(logger *log.Logger, path string, reader extract.SectorReader, info disc.DiscInfo, extractOpts extract.Options, mdsOpts Options) ([]int, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	readAbsoluteSector := func(absoluteSector int) ([cd.SectorLength]byte, error) {
		var out [cd.SectorLength]byte
		sectorData, _, _, err := reader.ReadAbsoluteSector(absoluteSector)
		if err != nil {
			return out, err
		}
		copy(out[:], sectorData)
		return out, nil
	}

	var badSectorIndices []int
	for _, track := range allTracks(info) {
		extracted, err := extract.ReadTrack(logger, reader, track, extractOpts)
		if err != nil {
			return nil, err
		}
		bad := extract.GetBadSectorIndices(extracted, track.FirstSectorAbsolute)
		extract.LogBadSectorIndices(logger, readAbsoluteSector, track, bad)
		badSectorIndices = append(badSectorIndices, bad...)

		saveSubchannels := saveSubchannelsFor(track.Type, mdsOpts)
		if err := extract.AppendSectorData(logger, f, extracted, 0, cd.SectorLength, saveSubchannels); err != nil {
			return nil, err
		}
	}
	return badSectorIndices, nil
}
