// Package iso serializes a single-track, single-session ISO 9660 data
// disc into a plain ".iso" file holding nothing but its user-data bytes
// (§4.8.3).
package iso

import (
	"fmt"
	"log"

	"github.com/bitcd/bitcd/disc"
	"github.com/bitcd/bitcd/extract"
)

// ExpectedDataTrackError reports a non-data track where §4.8.3 requires
// one (§7).
type ExpectedDataTrackError struct {
	TrackNumber int
}

func (e ExpectedDataTrackError) Error() string {
	return fmt.Sprintf("track %d: expected a data track", e.TrackNumber)
}

// InvalidValueError reports a disc shape or user-data length the ISO
// format can't represent (§7).
type InvalidValueError struct {
	What          string
	Value, Lo, Hi int
}

func (e InvalidValueError) Error() string {
	return fmt.Sprintf("%s: value %d outside [%d, %d]", e.What, e.Value, e.Lo, e.Hi)
}

// ValidateSingleDataTrack checks that info describes exactly one session
// containing exactly one data track whose user-data length is 2048
// bytes, returning that track (§4.8.3 check_disc).
func ValidateSingleDataTrack(info disc.DiscInfo) (disc.TrackInfo, error) {
	if len(info.Sessions) != 1 {
		return disc.TrackInfo{}, InvalidValueError{What: "sessions", Value: len(info.Sessions), Lo: 1, Hi: 1}
	}
	session := info.Sessions[0]
	if len(session.Tracks) != 1 {
		return disc.TrackInfo{}, InvalidValueError{What: "tracks", Value: len(session.Tracks), Lo: 1, Hi: 1}
	}
	track := session.Tracks[0]
	if !track.Type.IsData() {
		return disc.TrackInfo{}, ExpectedDataTrackError{TrackNumber: track.Number}
	}
	layout := track.Type.Layout()
	if layout.UserDataLength != 2048 {
		return disc.TrackInfo{}, InvalidValueError{What: "user data size", Value: layout.UserDataLength, Lo: 2048, Hi: 2048}
	}
	return track, nil
}

// WriteFile extracts track and writes its user-data slice to path
// (§4.8.3).
func WriteFile(logger *log.Logger, path string, reader extract.SectorReader, track disc.TrackInfo, opts extract.Options) error {
	extracted, err := extract.ReadDataTrack(logger, reader, track, opts)
	if err != nil {
		return err
	}
	layout := track.Type.Layout()
	return extract.WriteSectorDataToFile(logger, path, extracted, layout.UserDataOffset, layout.UserDataLength, false)
}
