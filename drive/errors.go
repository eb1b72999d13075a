// Package drive wraps the device transport (scsi) and command codec (cdb)
// into the higher-level contract the extraction engine and serializers use:
// auto-detecting the ReadCD buffer layout, negotiating mode pages, and
// exposing read_drive_info/read_disc_info/read_absolute_sector/
// set_read_retry_count (§4.4).
package drive

import "fmt"

// MediaStateError reports the drive not being ready, media being absent,
// or the device being an unsupported peripheral type (§7).
type MediaStateError struct {
	What string
}

func (e MediaStateError) Error() string { return fmt.Sprintf("media state: %s", e.What) }

// AutoDetectError reports failure to determine the ReadCD response layout
// or subchannel timing offset (§7, §4.4).
type AutoDetectError struct {
	What string
}

func (e AutoDetectError) Error() string { return fmt.Sprintf("auto-detect: %s", e.What) }

// PageMaskError reports a ModeSelect write that would touch a bit the
// drive did not report as writable (§4.4, §7).
type PageMaskError struct {
	PageCode byte
}

func (e PageMaskError) Error() string {
	return fmt.Sprintf("mode page 0x%02x: write would modify a reserved bit", e.PageCode)
}

// MissingError reports a requested mode page that the drive's MODE SENSE
// response did not contain (§4.4).
type MissingError struct {
	What string
}

func (e MissingError) Error() string { return fmt.Sprintf("missing: %s", e.What) }

// UnsupportedValueError reports a track category/session type combination
// this module has no TrackType for (e.g. CDI).
type UnsupportedValueError struct {
	What string
}

func (e UnsupportedValueError) Error() string { return fmt.Sprintf("unsupported value: %s", e.What) }
