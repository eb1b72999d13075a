// Command ripcd extracts an optical disc into one of four image formats:
// CUE/BIN, ISO, MDS/MDF, or ODI (§6). It is a thin wire-up over drive,
// extract, and the image/* serializers — argument parsing and error
// reporting live here, every other decision is made by those packages.
package main

import (
	"flag"
	"fmt"
	"log"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/bitcd/bitcd/disc"
	"github.com/bitcd/bitcd/drive"
	"github.com/bitcd/bitcd/emulator"
	"github.com/bitcd/bitcd/extract"
	"github.com/bitcd/bitcd/image/cue"
	"github.com/bitcd/bitcd/image/iso"
	"github.com/bitcd/bitcd/image/mds"
	"github.com/bitcd/bitcd/image/odi"
	"github.com/bitcd/bitcd/scsi"
)

// unsetReadCorrection marks that --read-correction was not supplied, so
// the drive DB lookup in disc.DriveInfo.ReadOffsetCorrection applies
// instead (§6 read-correction default).
const unsetReadCorrection = math.MinInt32

func main() {
	if len(os.Args) < 2 {
		printTopUsage()
		os.Exit(1)
	}

	var err error
	switch os.Args[1] {
	case "cue":
		err = runCue(os.Args[2:])
	case "iso":
		err = runISO(os.Args[2:])
	case "mds":
		err = runMDS(os.Args[2:])
	case "odi":
		err = runODI(os.Args[2:])
	case "-h", "-help", "--help":
		printTopUsage()
		os.Exit(0)
	default:
		fmt.Fprintf(os.Stderr, "Error: unknown subcommand %q\n", os.Args[1])
		printTopUsage()
		os.Exit(1)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func printTopUsage() {
	fmt.Fprintf(os.Stderr, "Usage: %s <cue|iso|mds|odi> --drive=<letter|*.odi> [options]\n\n", os.Args[0])
	fmt.Fprintf(os.Stderr, "Examples:\n")
	fmt.Fprintf(os.Stderr, "  %s cue --drive=D --path=game.cue --merge-tracks\n", os.Args[0])
	fmt.Fprintf(os.Stderr, "  %s iso --drive=fixture.odi --path=game.iso\n", os.Args[0])
	fmt.Fprintf(os.Stderr, "  %s mds --drive=D --save-data-subchannels\n", os.Args[0])
	fmt.Fprintf(os.Stderr, "  %s odi --drive=D --compress=false\n", os.Args[0])
}

// commonFlags is the named-argument surface every subcommand shares
// (§6): which drive to read, where to write, and the pass/retry/copy
// knobs the extraction engine uses.
type commonFlags struct {
	drive          *string
	path           *string
	readCorrection *int
	minDataPasses  *int
	maxDataPasses  *int
	maxDataRetries *int
	minDataCopies  *int
	maxDataCopies  *int

	minAudioPasses  *int
	maxAudioPasses  *int
	maxAudioRetries *int
	minAudioCopies  *int
	maxAudioCopies  *int
}

func registerCommonFlags(fs *flag.FlagSet) *commonFlags {
	c := &commonFlags{}
	c.drive = fs.String("drive", "", "drive letter [A-Z] or *.odi path (required)")
	c.path = fs.String("path", "", "output path (default: image stem)")
	c.readCorrection = fs.Int("read-correction", unsetReadCorrection, "audio read-offset correction, in samples (default: drive database lookup)")
	c.minDataPasses = fs.Int("min-data-passes", 1, "minimum data read passes")
	c.maxDataPasses = fs.Int("max-data-passes", 1, "maximum data read passes")
	c.maxDataRetries = fs.Int("max-data-retries", 16, "maximum data sector retries")
	c.minDataCopies = fs.Int("min-data-copies", 0, "minimum identical data copies required")
	c.maxDataCopies = fs.Int("max-data-copies", 1, "maximum identical data copies tracked")
	c.minAudioPasses = fs.Int("min-audio-passes", 2, "minimum audio read passes")
	c.maxAudioPasses = fs.Int("max-audio-passes", 8, "maximum audio read passes")
	c.maxAudioRetries = fs.Int("max-audio-retries", 255, "maximum audio sector retries")
	c.minAudioCopies = fs.Int("min-audio-copies", 1, "minimum identical audio copies required")
	c.maxAudioCopies = fs.Int("max-audio-copies", 2, "maximum identical audio copies tracked")
	return c
}

// extractOptions builds extract.Options from the parsed flags, applying
// the drive's AccurateRip offset only when --read-correction was left at
// its sentinel (§6 read-correction default).
func (c *commonFlags) extractOptions(driveInfo disc.DriveInfo) extract.Options {
	opts := extract.Options{
		MinDataPasses:   *c.minDataPasses,
		MaxDataPasses:   *c.maxDataPasses,
		MaxDataRetries:  *c.maxDataRetries,
		MinDataCopies:   *c.minDataCopies,
		MaxDataCopies:   *c.maxDataCopies,
		MinAudioPasses:  *c.minAudioPasses,
		MaxAudioPasses:  *c.maxAudioPasses,
		MaxAudioRetries: *c.maxAudioRetries,
		MinAudioCopies:  *c.minAudioCopies,
		MaxAudioCopies:  *c.maxAudioCopies,
	}
	if *c.readCorrection != unsetReadCorrection {
		opts.ReadCorrectionSamples = *c.readCorrection
	} else if driveInfo.ReadOffsetCorrection != nil {
		opts.ReadCorrectionSamples = *driveInfo.ReadOffsetCorrection
	}
	return opts
}

// openedDrive bundles a *drive.Drive with the underlying transport so
// callers can close both in one place regardless of which backend served
// it.
type openedDrive struct {
	drive   *drive.Drive
	backend interface{ Close() error }
}

func (o openedDrive) Close() error {
	return o.backend.Close()
}

// isODIPath reports whether driveArg names an emulated ODI image rather
// than a drive letter (§6 drive format, §4.9).
func isODIPath(driveArg string) bool {
	return strings.HasSuffix(strings.ToLower(driveArg), ".odi")
}

// windowsDevicePath turns a bare drive letter into the \\.\X: path the
// Windows SCSI pass-through backend expects.
func windowsDevicePath(letter string) string {
	return `\\.\` + strings.ToUpper(letter) + `:`
}

func openDrive(driveArg string, logger *log.Logger) (openedDrive, error) {
	if driveArg == "" {
		return openedDrive{}, fmt.Errorf("--drive is required")
	}
	if isODIPath(driveArg) {
		dev, err := emulator.Open(driveArg)
		if err != nil {
			return openedDrive{}, err
		}
		d, err := drive.Open(dev, logger)
		if err != nil {
			dev.Close()
			return openedDrive{}, err
		}
		return openedDrive{drive: d, backend: dev}, nil
	}
	if len(driveArg) != 1 || driveArg[0] < 'A' || driveArg[0] > 'Z' {
		return openedDrive{}, fmt.Errorf("--drive must be a letter [A-Z] or a *.odi path, got %q", driveArg)
	}
	dev, err := scsi.Open(windowsDevicePath(driveArg))
	if err != nil {
		return openedDrive{}, err
	}
	d, err := drive.Open(dev, logger)
	if err != nil {
		dev.Close()
		return openedDrive{}, err
	}
	return openedDrive{drive: d, backend: dev}, nil
}

// outputPath returns explicit if the user supplied --path, otherwise the
// default "image" stem with ext appended (§6 path default).
func outputPath(explicit, ext string) string {
	if explicit != "" {
		return explicit
	}
	return "image" + ext
}

// trackRange is one parsed --track-numbers entry: a single number is
// represented as lo == hi.
type trackRange struct {
	lo, hi int
}

// parseTrackSelector parses the comma-separated --track-numbers value
// (§6: "integer or range [a:b], 1…99") into a predicate. An empty spec
// selects every track.
func parseTrackSelector(spec string) (func(n int) bool, error) {
	if spec == "" {
		return func(int) bool { return true }, nil
	}
	var ranges []trackRange
	for _, part := range strings.Split(spec, ",") {
		part = strings.TrimSpace(part)
		part = strings.TrimPrefix(part, "[")
		part = strings.TrimSuffix(part, "]")
		if part == "" {
			continue
		}
		if idx := strings.Index(part, ":"); idx >= 0 {
			lo, err := strconv.Atoi(strings.TrimSpace(part[:idx]))
			if err != nil {
				return nil, fmt.Errorf("track-numbers: invalid range %q: %w", part, err)
			}
			hi, err := strconv.Atoi(strings.TrimSpace(part[idx+1:]))
			if err != nil {
				return nil, fmt.Errorf("track-numbers: invalid range %q: %w", part, err)
			}
			ranges = append(ranges, trackRange{lo: lo, hi: hi})
			continue
		}
		n, err := strconv.Atoi(part)
		if err != nil {
			return nil, fmt.Errorf("track-numbers: invalid entry %q: %w", part, err)
		}
		ranges = append(ranges, trackRange{lo: n, hi: n})
	}
	return func(n int) bool {
		for _, r := range ranges {
			if n >= r.lo && n <= r.hi {
				return true
			}
		}
		return false
	}, nil
}

// allTracks flattens every session's tracks in disc order.
func allTracks(info disc.DiscInfo) []disc.TrackInfo {
	var tracks []disc.TrackInfo
	for _, s := range info.Sessions {
		tracks = append(tracks, s.Tracks...)
	}
	return tracks
}

func filterTracks(tracks []disc.TrackInfo, include func(int) bool) []disc.TrackInfo {
	var out []disc.TrackInfo
	for _, t := range tracks {
		if include(t.Number) {
			out = append(out, t)
		}
	}
	return out
}

func runCue(args []string) error {
	fs := flag.NewFlagSet("cue", flag.ExitOnError)
	common := registerCommonFlags(fs)
	trackNumbers := fs.String("track-numbers", "", "track number or range [a:b], comma-separated (default: all tracks)")
	mergeTracks := fs.Bool("merge-tracks", false, "merge every track into one BIN (default: false)")
	trimDataTracks := fs.Bool("trim-data-tracks", true, "drop the error-detection/correction bytes from data tracks (default: true)")
	audioFileFormat := fs.String("audio-file-format", "wav", "audio container for split mode: bin|wav (default: wav)")
	fs.Parse(args)

	logger := log.New(os.Stderr, "", log.LstdFlags)
	od, err := openDrive(*common.drive, logger)
	if err != nil {
		return err
	}
	defer od.Close()

	driveInfo, err := od.drive.ReadDriveInfo()
	if err != nil {
		return err
	}
	discInfo, err := od.drive.ReadDiscInfo()
	if err != nil {
		return err
	}

	include, err := parseTrackSelector(*trackNumbers)
	if err != nil {
		return err
	}
	tracks := filterTracks(allTracks(discInfo), include)
	if len(tracks) == 0 {
		return fmt.Errorf("track-numbers %q matched no tracks", *trackNumbers)
	}
	if err := cue.AssertImageCompatibility(tracks); err != nil {
		return err
	}

	var format cue.AudioFileFormat
	switch strings.ToLower(*audioFileFormat) {
	case "wav":
		format = cue.AudioFileFormatWAV
	case "bin":
		format = cue.AudioFileFormatBIN
	default:
		return fmt.Errorf("audio-file-format: must be bin or wav, got %q", *audioFileFormat)
	}

	opts := cue.Options{
		MergeTracks:     *mergeTracks,
		TrimDataTracks:  *trimDataTracks,
		AudioFileFormat: format,
	}
	return cue.Write(logger, outputPath(*common.path, ".cue"), od.drive, tracks, common.extractOptions(driveInfo), opts)
}

func runISO(args []string) error {
	fs := flag.NewFlagSet("iso", flag.ExitOnError)
	common := registerCommonFlags(fs)
	fs.Parse(args)

	logger := log.New(os.Stderr, "", log.LstdFlags)
	od, err := openDrive(*common.drive, logger)
	if err != nil {
		return err
	}
	defer od.Close()

	driveInfo, err := od.drive.ReadDriveInfo()
	if err != nil {
		return err
	}
	discInfo, err := od.drive.ReadDiscInfo()
	if err != nil {
		return err
	}

	track, err := iso.ValidateSingleDataTrack(discInfo)
	if err != nil {
		return err
	}
	return iso.WriteFile(logger, outputPath(*common.path, ".iso"), od.drive, track, common.extractOptions(driveInfo))
}

func runMDS(args []string) error {
	fs := flag.NewFlagSet("mds", flag.ExitOnError)
	common := registerCommonFlags(fs)
	saveAudioSubchannels := fs.Bool("save-audio-subchannels", false, "interleave subchannel data for audio tracks (default: false)")
	saveDataSubchannels := fs.Bool("save-data-subchannels", false, "interleave subchannel data for data tracks (default: false)")
	fs.Parse(args)

	logger := log.New(os.Stderr, "", log.LstdFlags)
	od, err := openDrive(*common.drive, logger)
	if err != nil {
		return err
	}
	defer od.Close()

	driveInfo, err := od.drive.ReadDriveInfo()
	if err != nil {
		return err
	}
	discInfo, err := od.drive.ReadDiscInfo()
	if err != nil {
		return err
	}

	mdsPath := outputPath(*common.path, ".mds")
	mdfPath := strings.TrimSuffix(mdsPath, filepath.Ext(mdsPath)) + ".mdf"

	mdsOpts := mds.Options{
		SaveAudioSubchannels: *saveAudioSubchannels,
		SaveDataSubchannels:  *saveDataSubchannels,
	}
	badSectorIndices, err := mds.WriteMDF(logger, mdfPath, od.drive, discInfo, common.extractOptions(driveInfo), mdsOpts)
	if err != nil {
		return err
	}

	f, err := os.Create(mdsPath)
	if err != nil {
		return fmt.Errorf("create %q: %w", mdsPath, err)
	}
	defer f.Close()
	return mds.Write(f, discInfo, badSectorIndices, mdsOpts)
}

func runODI(args []string) error {
	fs := flag.NewFlagSet("odi", flag.ExitOnError)
	common := registerCommonFlags(fs)
	compress := fs.Bool("compress", true, "apply per-sector compression (default: true)")
	fs.Parse(args)

	logger := log.New(os.Stderr, "", log.LstdFlags)
	od, err := openDrive(*common.drive, logger)
	if err != nil {
		return err
	}
	defer od.Close()

	driveInfo, err := od.drive.ReadDriveInfo()
	if err != nil {
		return err
	}
	discInfo, err := od.drive.ReadDiscInfo()
	if err != nil {
		return err
	}

	return odi.Write(logger, outputPath(*common.path, ".odi"), od.drive, discInfo, common.extractOptions(driveInfo), *compress)
}
