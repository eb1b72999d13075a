package extract

import (
	"fmt"
	"io"
	"log"
	"os"
)

// AppendSectorData writes each sector's accepted payload — the
// highest-counter bucket entry, as chosen by BestSector — to w: sectorDataLength bytes starting
// at sectorDataOffset, optionally followed by the raw 96-byte subchannel
// block (§4.6 append_sector_data, used by the image serializers).
func AppendSectorData(logger *log.Logger, w io.Writer, extracted [][]ExtractedSector, sectorDataOffset, sectorDataLength int, writeSubchannels bool) error {
	for sectorIndex, bucket := range extracted {
		if len(bucket) == 0 {
			return fmt.Errorf("sector %d has no accepted payload", sectorIndex)
		}
		sector := BestSector(bucket)
		if _, err := w.Write(sector.SectorData[sectorDataOffset : sectorDataOffset+sectorDataLength]); err != nil {
			return fmt.Errorf("write sector %d data: %w", sectorIndex, err)
		}
		if writeSubchannels {
			if _, err := w.Write(sector.SubchannelsData[:]); err != nil {
				return fmt.Errorf("write sector %d subchannels: %w", sectorIndex, err)
			}
		}
	}
	return nil
}

// WriteSectorDataToFile opens path for writing, calls AppendSectorData,
// and closes the file, propagating whichever of the write or close
// failed first (§4.6 open_handle/write_sector_data_to_file/close_handle).
func WriteSectorDataToFile(logger *log.Logger, path string, extracted [][]ExtractedSector, sectorDataOffset, sectorDataLength int, writeSubchannels bool) (err error) {
	logf(logger, "saving track sector data to %q", path)
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("open %q for writing: %w", path, err)
	}
	defer func() {
		if closeErr := f.Close(); err == nil {
			err = closeErr
		}
	}()
	err = AppendSectorData(logger, f, extracted, sectorDataOffset, sectorDataLength, writeSubchannels)
	return err
}
