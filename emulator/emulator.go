// Package emulator implements scsi.Device against a previously-written
// ODI file, so the command layer (cdb/drive) can be exercised against a
// fixture without a physical drive (§4.9). It dispatches on CDB opcode
// exactly the way a real drive does, then answers from the ODI file's
// sector table and point table instead of issuing a real transport
// ioctl — everything above the scsi.Device boundary (mode page
// negotiation, Full-TOC parsing, disc model building, sector
// extraction) is unmodified and runs identically against either backend.
package emulator

import (
	"fmt"

	"github.com/bitcd/bitcd/cdb"
	"github.com/bitcd/bitcd/image/odi"
)

// SCSI status codes this adapter returns. Only GOOD and CHECK_CONDITION
// are meaningful here — there is no contingent-allegiance sense data to
// model for a file-backed device.
const (
	statusGood           byte = 0x00
	statusCheckCondition byte = 0x02
)

// firstTrackReferencePoint and lastTrackReferencePoint bound the
// ADR=1 point range that identifies an ordinary track (as opposed to the
// 0xA0/0xA1/0xA2 session-structure points), matching disc.Build's own
// track-reference test.
const (
	firstTrackReferencePoint byte = 0x01
	lastTrackReferencePoint  byte = 0x63
)

// Device serves SCSI commands from a previously-written ODI image.
type Device struct {
	reader *odi.Reader
}

// Open loads path's sector table and point table and returns a Device
// ready to be wrapped by drive.Open, exactly as a real scsi.Device would
// be.
func Open(path string) (*Device, error) {
	r, err := odi.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open emulated image %q: %w", path, err)
	}
	return &Device{reader: r}, nil
}

// Close releases the underlying ODI file.
func (d *Device) Close() error {
	return d.reader.Close()
}

// Ioctl dispatches cdb by opcode, matching the real transport's contract:
// a non-nil error means the call itself failed (no status to report); a
// nil error with a non-zero status means the device responded but
// declined the command.
func (d *Device) Ioctl(c []byte, data []byte, writeToDevice bool) (status byte, sense []byte, err error) {
	_ = writeToDevice
	switch {
	case len(c) >= 6 && c[0] == 0x12:
		return d.handleInquiry6(data), nil, nil
	case len(c) >= 6 && c[0] == 0x00:
		return statusGood, nil, nil
	case len(c) >= 10 && c[0] == 0x5A:
		return d.handleModeSense10(c, data), nil, nil
	case len(c) >= 10 && c[0] == 0x55:
		return statusCheckCondition, nil, nil
	case len(c) >= 10 && c[0] == 0x43:
		return d.handleReadTOC10(c, data)
	case len(c) >= 12 && c[0] == 0xB9:
		return d.handleReadCDMSF12(c, data)
	default:
		return statusCheckCondition, nil, nil
	}
}

func (d *Device) handleInquiry6(data []byte) byte {
	if len(data) < cdb.StandardInquiryResponseLength {
		return statusCheckCondition
	}
	data[0] = cdb.PeripheralDeviceTypeCDOrDVD & 0x1F
	copy(data[8:16], []byte("OD      "))
	copy(data[16:32], []byte("Image Drive     "))
	return statusGood
}
