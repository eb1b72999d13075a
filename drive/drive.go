package drive

import (
	"encoding/binary"
	"fmt"
	"log"

	"github.com/bitcd/bitcd/cd"
	"github.com/bitcd/bitcd/cdb"
	"github.com/bitcd/bitcd/disc"
	"github.com/bitcd/bitcd/scsi"
)

// Drive wraps a device transport and command codec into the contract
// described in §4.4.
type Drive struct {
	dev       scsi.Device
	logger    *log.Logger
	pageMasks map[byte][]byte
	layout    *cdb.ReadCDResponseLayout
	info      disc.DriveInfo
}

// Open negotiates mode pages and returns a Drive ready for use. It does
// not probe for media or auto-detect the ReadCD layout — that happens
// lazily on the first call that needs it, matching read_disc_info's
// "test_unit_ready first" contract (§4.4).
func Open(dev scsi.Device, logger *log.Logger) (*Drive, error) {
	d := &Drive{dev: dev, logger: logger}
	if err := d.negotiateModePages(); err != nil {
		return nil, err
	}
	return d, nil
}

func (d *Drive) logf(format string, args ...any) {
	if d.logger != nil {
		d.logger.Printf(format, args...)
	}
}

func transportStatusError(op string, status byte, sense []byte) error {
	return scsi.TransportError{Op: op, Status: status, Sense: sense}
}

// testUnitReady issues TEST UNIT READY and fails with MediaStateError if
// the drive reports not-ready.
func (d *Drive) testUnitReady() error {
	c := cdb.TestUnitReady()
	status, sense, err := d.dev.Ioctl(c, nil, false)
	if err != nil {
		return fmt.Errorf("test unit ready: %w", err)
	}
	if status != 0 {
		return MediaStateError{What: fmt.Sprintf("drive not ready (status 0x%02x, sense % x)", status, sense)}
	}
	return nil
}

func (d *Drive) standardInquiry() (cdb.StandardInquiryResponse, error) {
	c := cdb.Inquiry6(cdb.StandardInquiryResponseLength)
	resp := make([]byte, cdb.StandardInquiryResponseLength)
	status, sense, err := d.dev.Ioctl(c, resp, false)
	if err != nil {
		return cdb.StandardInquiryResponse{}, fmt.Errorf("inquiry: %w", err)
	}
	if status != 0 {
		return cdb.StandardInquiryResponse{}, transportStatusError("inquiry", status, sense)
	}
	return cdb.ParseStandardInquiryResponse(resp)
}

// ReadDriveInfo validates and returns the drive's capabilities (§4.4).
// Fails if the peripheral isn't a CD/DVD device, or if it doesn't support
// accurate audio streaming or C2 error pointers — both preconditions for
// safe audio ripping.
func (d *Drive) ReadDriveInfo() (disc.DriveInfo, error) {
	inq, err := d.standardInquiry()
	if err != nil {
		return disc.DriveInfo{}, err
	}
	if inq.PeripheralDeviceType != cdb.PeripheralDeviceTypeCDOrDVD {
		return disc.DriveInfo{}, MediaStateError{What: fmt.Sprintf("peripheral device type 0x%02x is not CD/DVD", inq.PeripheralDeviceType)}
	}

	capRaw, err := d.readPage(cdb.PageCapabilitiesAndMechanicalStatus)
	if err != nil {
		return disc.DriveInfo{}, fmt.Errorf("read capabilities page: %w", err)
	}
	cap, err := cdb.ParseCapabilitiesAndMechanicalStatusPage(capRaw)
	if err != nil {
		return disc.DriveInfo{}, fmt.Errorf("parse capabilities page: %w", err)
	}
	if !cap.CDDAStreamIsAccurate {
		return disc.DriveInfo{}, MediaStateError{What: "drive does not report accurate CDDA streaming"}
	}
	if !cap.C2PointersSupported {
		return disc.DriveInfo{}, MediaStateError{What: "drive does not support C2 error pointers"}
	}

	if err := d.detectLayout(); err != nil {
		return disc.DriveInfo{}, err
	}

	info := disc.DriveInfo{
		Vendor:                   inq.Vendor,
		Product:                  inq.Product,
		SectorDataOffset:         d.layout.SectorDataOffset,
		SubchannelsDataOffset:    d.layout.SubchannelsDataOffset,
		C2DataOffset:             d.layout.C2DataOffset,
		BufferSize:               cap.BufferSizeSupported,
		SupportsAccurateStream:   cap.CDDAStreamIsAccurate,
		SupportsC2ErrorReporting: cap.C2PointersSupported,
	}
	if off, ok := LookupReadOffsetCorrection(inq.Vendor, inq.Product); ok {
		info.ReadOffsetCorrection = &off
	}
	d.info = info
	return info, nil
}

// readFullTOC issues READ TOC/PMA/ATIP in FULL_TOC format and returns the
// parsed entries.
func (d *Drive) readFullTOC() ([]cdb.FullTOCEntry, error) {
	const allocLen = 4096
	c := cdb.ReadTOC10(cdb.TOCFormatFull, true, 0, allocLen)
	resp := make([]byte, allocLen)
	status, sense, err := d.dev.Ioctl(c, resp, false)
	if err != nil {
		return nil, fmt.Errorf("read full toc: %w", err)
	}
	if status != 0 {
		return nil, transportStatusError("read full toc", status, sense)
	}
	// The allocation length requested always exceeds the real response, so
	// trim to the data_length the drive actually reported before handing
	// the header off for validation: ParseTOCResponseHeader checks that
	// data_length agrees with the slice it's given.
	dataLength := int(binary.BigEndian.Uint16(resp[0:2]))
	total := dataLength + 2
	if total > len(resp) {
		total = len(resp)
	}
	resp = resp[:total]
	if _, err := cdb.ParseTOCResponseHeader(resp); err != nil {
		return nil, fmt.Errorf("parse full toc header: %w", err)
	}
	return cdb.ParseFullTOCEntries(resp[4:])
}

// ReadDiscInfo builds the normalized disc topology from a Full-TOC
// (§4.4, §4.5). Fails with MediaStateError if no media is present.
func (d *Drive) ReadDiscInfo() (disc.DiscInfo, error) {
	if err := d.testUnitReady(); err != nil {
		return disc.DiscInfo{}, err
	}
	entries, err := d.readFullTOC()
	if err != nil {
		return disc.DiscInfo{}, fmt.Errorf("read full toc: %w", err)
	}
	return disc.Build(entries, d.resolveTrackType)
}

// ReadAbsoluteSector issues a single-sector ReadCDMSF for idx and returns
// the sector_data, subchannels_data, and c2_data buffers according to the
// detected layout (§4.4).
func (d *Drive) ReadAbsoluteSector(idx int) (sectorData, subchannelsData, c2Data []byte, err error) {
	if d.layout == nil {
		if err := d.detectLayout(); err != nil {
			return nil, nil, nil, err
		}
	}
	start, err := cd.AddressFromSector(idx)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("sector %d: %w", idx, err)
	}
	end, err := cd.AddressFromSector(idx + 1)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("sector %d: %w", idx, err)
	}
	c := cdb.ReadCDMSF12(start, end, cdb.CoreReadCDFlags)
	resp := make([]byte, cdb.ResponseSize)
	status, sense, err := d.dev.Ioctl(c, resp, false)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("read cd msf sector %d: %w", idx, err)
	}
	if status != 0 {
		return nil, nil, nil, transportStatusError(fmt.Sprintf("read cd msf sector %d", idx), status, sense)
	}
	return d.layout.Split(resp)
}
