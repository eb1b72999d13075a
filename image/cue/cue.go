// Package cue serializes a disc into the CUE/BIN pair (or, in split
// mode, a CUE sheet plus one file per track) that most CD emulators and
// burners accept (§4.8.1).
package cue

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/bitcd/bitcd/cd"
	"github.com/bitcd/bitcd/disc"
	"github.com/bitcd/bitcd/extract"
)

// UnsupportedValueError reports a track shape the CUE format can't
// describe (§7).
type UnsupportedValueError struct {
	What string
}

func (e UnsupportedValueError) Error() string {
	return fmt.Sprintf("unsupported value: %s", e.What)
}

// AudioFileFormat selects the container written for audio tracks when
// tracks are not merged into a single BIN.
type AudioFileFormat int

const (
	AudioFileFormatWAV AudioFileFormat = iota
	AudioFileFormatBIN
)

// Options controls CUE/BIN emission (§4.8.1).
type Options struct {
	MergeTracks     bool
	TrimDataTracks  bool
	AudioFileFormat AudioFileFormat
}

// AssertImageCompatibility rejects track shapes the CUE/BIN format
// can't represent: four-channel audio has no CUE track tag, and
// DATA_MODE0's on-disc layout is undefined (§7).
func AssertImageCompatibility(tracks []disc.TrackInfo) error {
	for _, track := range tracks {
		if track.Type == disc.TrackTypeAudio4Channels {
			return UnsupportedValueError{What: "track type AUDIO_4_CHANNELS"}
		}
		if track.Type == disc.TrackTypeDataMode0 {
			return UnsupportedValueError{What: "track type DATA_MODE0"}
		}
	}
	return nil
}

// UnreachableError marks a branch that AssertImageCompatibility should
// already have ruled out.
type UnreachableError struct{}

func (e UnreachableError) Error() string { return "unreachable code reached" }

func trackTag(t disc.TrackType, trimDataTracks bool) (string, error) {
	switch t {
	case disc.TrackTypeAudio2Channels:
		return "AUDIO", nil
	case disc.TrackTypeAudio4Channels:
		return "", UnsupportedValueError{What: "track type AUDIO_4_CHANNELS"}
	case disc.TrackTypeDataMode0:
		return "", UnsupportedValueError{What: "track type DATA_MODE0"}
	case disc.TrackTypeDataMode1:
		if trimDataTracks {
			return "MODE1/2048", nil
		}
		return "MODE1/2352", nil
	case disc.TrackTypeDataMode2:
		if trimDataTracks {
			return "MODE2/2336", nil
		}
		return "MODE2/2352", nil
	case disc.TrackTypeDataMode2Form1:
		if trimDataTracks {
			return "MODE2/2048", nil
		}
		return "MODE2/2352", nil
	case disc.TrackTypeDataMode2Form2:
		if trimDataTracks {
			return "MODE2/2324", nil
		}
		return "MODE2/2352", nil
	default:
		return "", UnreachableError{}
	}
}

func dataSectorWindow(t disc.TrackType, trimDataTracks bool) (offset, length int) {
	if !trimDataTracks {
		return 0, cd.SectorLength
	}
	layout := t.Layout()
	return layout.UserDataOffset, layout.UserDataLength
}

// wavHeader is the 44-byte RIFF/WAVE header the original implementation
// writes ahead of an audio track's raw PCM samples (§4.8.1): format
// fields fixed at 16-bit/2-channel/44100Hz to match CD-DA, with only
// riff_length and data_length varying per track.
type wavHeader struct {
	dataLength int
}

func (h wavHeader) bytes() []byte {
	const headerSize = 44
	buf := make([]byte, 0, headerSize)
	buf = append(buf, "RIFF"...)
	buf = appendUint32LE(buf, uint32(headerSize-8+h.dataLength))
	buf = append(buf, "WAVE"...)
	buf = append(buf, "fmt "...)
	buf = appendUint32LE(buf, 16)
	buf = appendUint16LE(buf, 1)
	buf = appendUint16LE(buf, 2)
	buf = appendUint32LE(buf, 44100)
	buf = appendUint32LE(buf, (16*2*44100)>>3)
	buf = appendUint16LE(buf, (16*2)>>3)
	buf = appendUint16LE(buf, 16)
	buf = append(buf, "data"...)
	buf = appendUint32LE(buf, uint32(h.dataLength))
	return buf
}

func appendUint32LE(buf []byte, v uint32) []byte {
	return append(buf, byte(v), byte(v>>8), byte(v>>16), byte(v>>24))
}

func appendUint16LE(buf []byte, v uint16) []byte {
	return append(buf, byte(v), byte(v>>8))
}

func stemOf(path string) string {
	return strings.TrimSuffix(path, filepath.Ext(path))
}

func readAbsoluteSectorAdapter(reader extract.SectorReader) extract.AbsoluteSectorReader {
	return func(absoluteSector int) ([cd.SectorLength]byte, error) {
		var out [cd.SectorLength]byte
		sectorData, _, _, err := reader.ReadAbsoluteSector(absoluteSector)
		if err != nil {
			return out, err
		}
		copy(out[:], sectorData)
		return out, nil
	}
}

// WriteMerged writes every track's sector data, in order, into a single
// "<stem>.bin" file and emits a matching "<stem>.cue" sheet that
// addresses each track by its running MSF offset within that file
// (§4.8.1 write_merged_bin / write_merged_cue).
func WriteMerged(logger *log.Logger, path string, reader extract.SectorReader, tracks []disc.TrackInfo, extractOpts extract.Options, opts Options) error {
	if err := AssertImageCompatibility(tracks); err != nil {
		return err
	}
	stem := stemOf(path)
	binPath := stem + ".bin"
	cuePath := stem + ".cue"

	binFile, err := os.Create(binPath)
	if err != nil {
		return fmt.Errorf("open %q for writing: %w", binPath, err)
	}
	defer binFile.Close()

	readAbsoluteSector := readAbsoluteSectorAdapter(reader)
	for _, track := range tracks {
		extracted, err := extract.ReadTrack(logger, reader, track, extractOpts)
		if err != nil {
			return err
		}
		bad := extract.GetBadSectorIndices(extracted, track.FirstSectorAbsolute)
		extract.LogBadSectorIndices(logger, readAbsoluteSector, track, bad)

		offset, length := 0, cd.SectorLength
		if track.Type.IsData() {
			offset, length = dataSectorWindow(track.Type, opts.TrimDataTracks)
		}
		if err := extract.AppendSectorData(logger, binFile, extracted, offset, length, false); err != nil {
			return err
		}
	}

	cueFile, err := os.Create(cuePath)
	if err != nil {
		return fmt.Errorf("open %q for writing: %w", cuePath, err)
	}
	defer cueFile.Close()

	if _, err := fmt.Fprintf(cueFile, "FILE %q BINARY\n", filepath.Base(binPath)); err != nil {
		return fmt.Errorf("write %q: %w", cuePath, err)
	}
	sectorOffset := 0
	for i, track := range tracks {
		tag, err := trackTag(track.Type, opts.TrimDataTracks)
		if err != nil {
			return err
		}
		if _, err := fmt.Fprintf(cueFile, "\tTRACK %02d %s\n", i+1, tag); err != nil {
			return fmt.Errorf("write %q: %w", cuePath, err)
		}
		if _, err := fmt.Fprintf(cueFile, "\t\tPREGAP %02d:%02d:%02d\n", 0, 0, 0); err != nil {
			return fmt.Errorf("write %q: %w", cuePath, err)
		}
		address, err := cd.AddressFromSector(sectorOffset - cd.RelativeSectorOffset)
		if err != nil {
			return fmt.Errorf("address for track %d: %w", track.Number, err)
		}
		if _, err := fmt.Fprintf(cueFile, "\t\tINDEX %02d %02d:%02d:%02d\n", 1, address.Minute, address.Second, address.Frame); err != nil {
			return fmt.Errorf("write %q: %w", cuePath, err)
		}
		sectorOffset += track.LengthSectors
	}
	return nil
}

// WriteSplit writes each track to its own "<stem>.NN.{bin,wav}" file
// and emits a "<stem>.cue" sheet whose FILE lines reference each track
// file independently, each starting its own INDEX 01 at 00:00:00
// (§4.8.1 write_bin / write_cue).
func WriteSplit(logger *log.Logger, path string, reader extract.SectorReader, tracks []disc.TrackInfo, extractOpts extract.Options, opts Options) error {
	if err := AssertImageCompatibility(tracks); err != nil {
		return err
	}
	stem := stemOf(path)
	cuePath := stem + ".cue"

	readAbsoluteSector := readAbsoluteSectorAdapter(reader)
	trackPaths := make([]string, len(tracks))
	for i, track := range tracks {
		extracted, err := extract.ReadTrack(logger, reader, track, extractOpts)
		if err != nil {
			return err
		}
		bad := extract.GetBadSectorIndices(extracted, track.FirstSectorAbsolute)
		extract.LogBadSectorIndices(logger, readAbsoluteSector, track, bad)

		var trackPath string
		if track.Type.IsData() {
			trackPath = fmt.Sprintf("%s.%02d.bin", stem, track.Number)
			offset, length := dataSectorWindow(track.Type, opts.TrimDataTracks)
			if err := extract.WriteSectorDataToFile(logger, trackPath, extracted, offset, length, false); err != nil {
				return err
			}
		} else {
			extension := "bin"
			if opts.AudioFileFormat == AudioFileFormatWAV {
				extension = "wav"
			}
			trackPath = fmt.Sprintf("%s.%02d.%s", stem, track.Number, extension)
			f, err := os.Create(trackPath)
			if err != nil {
				return fmt.Errorf("open %q for writing: %w", trackPath, err)
			}
			if opts.AudioFileFormat == AudioFileFormatWAV {
				header := wavHeader{dataLength: cd.SectorLength * track.LengthSectors}
				if _, err := f.Write(header.bytes()); err != nil {
					f.Close()
					return fmt.Errorf("write %q: %w", trackPath, err)
				}
			}
			if err := extract.AppendSectorData(logger, f, extracted, 0, cd.SectorLength, false); err != nil {
				f.Close()
				return err
			}
			if err := f.Close(); err != nil {
				return fmt.Errorf("close %q: %w", trackPath, err)
			}
		}
		trackPaths[i] = trackPath
	}

	cueFile, err := os.Create(cuePath)
	if err != nil {
		return fmt.Errorf("open %q for writing: %w", cuePath, err)
	}
	defer cueFile.Close()

	for i, track := range tracks {
		fileTag := "BINARY"
		if !track.Type.IsData() && opts.AudioFileFormat == AudioFileFormatWAV {
			fileTag = "WAVE"
		}
		tag, err := trackTag(track.Type, opts.TrimDataTracks)
		if err != nil {
			return err
		}
		if _, err := fmt.Fprintf(cueFile, "FILE %q %s\n", filepath.Base(trackPaths[i]), fileTag); err != nil {
			return fmt.Errorf("write %q: %w", cuePath, err)
		}
		if _, err := fmt.Fprintf(cueFile, "\tTRACK %02d %s\n", i+1, tag); err != nil {
			return fmt.Errorf("write %q: %w", cuePath, err)
		}
		if _, err := fmt.Fprintf(cueFile, "\t\tPREGAP %02d:%02d:%02d\n", 0, 0, 0); err != nil {
			return fmt.Errorf("write %q: %w", cuePath, err)
		}
		if _, err := fmt.Fprintf(cueFile, "\t\tINDEX %02d %02d:%02d:%02d\n", 1, 0, 0, 0); err != nil {
			return fmt.Errorf("write %q: %w", cuePath, err)
		}
	}
	return nil
}

// Write dispatches to WriteMerged or WriteSplit depending on
// opts.MergeTracks (§4.8.1 cue).
func Write(logger *log.Logger, path string, reader extract.SectorReader, tracks []disc.TrackInfo, extractOpts extract.Options, opts Options) error {
	if opts.MergeTracks {
		return WriteMerged(logger, path, reader, tracks, extractOpts, opts)
	}
	return WriteSplit(logger, path, reader, tracks, extractOpts, opts)
}
