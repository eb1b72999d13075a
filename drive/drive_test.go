package drive

import (
	"testing"

	"github.com/bitcd/bitcd/cd"
	"github.com/bitcd/bitcd/cdb"
	"github.com/bitcd/bitcd/disc"
	"github.com/bitcd/bitcd/subchannel"
)

// fakeDevice is a scsi.Device test double that answers the handful of
// commands this package issues, dispatching on the CDB's opcode byte.
type fakeDevice struct {
	inquiry         []byte
	allPagesCurrent []byte
	allPagesChanged []byte
	singlePages     map[byte][]byte
	fullTOC         []byte
	sectors         map[int][]byte
	written         map[byte][]byte
	closed          bool
}

func (f *fakeDevice) Close() error { f.closed = true; return nil }

func (f *fakeDevice) Ioctl(c, data []byte, writeToDevice bool) (byte, []byte, error) {
	switch c[0] {
	case 0x00: // TEST UNIT READY
		return 0, nil, nil
	case 0x12: // INQUIRY
		copy(data, f.inquiry)
		return 0, nil, nil
	case 0x5A: // MODE SENSE(10)
		pageCode := c[2] & 0x3F
		control := c[2] >> 6
		var resp []byte
		if pageCode == cdb.PageAllPages {
			if control == byte(cdb.PageControlChangeable) {
				resp = f.allPagesChanged
			} else {
				resp = f.allPagesCurrent
			}
		} else {
			resp = buildModeParamList(f.singlePages[pageCode])
		}
		copy(data, resp)
		return 0, nil, nil
	case 0x55: // MODE SELECT(10)
		if f.written == nil {
			f.written = make(map[byte][]byte)
		}
		if len(data) > 8 {
			pageCode := data[8] & 0x3F
			f.written[pageCode] = append([]byte(nil), data[8:]...)
		}
		return 0, nil, nil
	case 0x43: // READ TOC/PMA/ATIP
		copy(data, f.fullTOC)
		return 0, nil, nil
	case 0xB9: // READ CD MSF
		addr := cd.SectorAddress{Minute: c[3], Second: c[4], Frame: c[5]}
		sector := cd.SectorFromAddress(addr)
		resp, ok := f.sectors[sector]
		if !ok {
			resp = make([]byte, cdb.ResponseSize)
		}
		copy(data, resp)
		return 0, nil, nil
	default:
		return 0, nil, nil
	}
}

func buildModeParamList(pages ...[]byte) []byte {
	var body []byte
	for _, p := range pages {
		body = append(body, p...)
	}
	header := make([]byte, 8)
	modeDataLen := len(header) - 2 + len(body)
	header[0] = byte(modeDataLen >> 8)
	header[1] = byte(modeDataLen)
	return append(header, body...)
}

func capabilitiesPage(bufferSize uint16) []byte {
	p := make([]byte, 32)
	p[0] = cdb.PageCapabilitiesAndMechanicalStatus
	p[1] = 30
	p[5] = 0x03 // CDDA accurate + C2 pointers supported
	p[12] = byte(bufferSize >> 8)
	p[13] = byte(bufferSize)
	return p
}

func errorRecoveryPage(retryCount byte) []byte {
	p := make([]byte, 12)
	p[0] = cdb.PageReadWriteErrorRecovery
	p[1] = 10
	p[3] = retryCount
	return p
}

func cachingPage() []byte {
	p := make([]byte, 12)
	p[0] = cdb.PageCaching
	p[1] = 10
	return p
}

func inquiryResponse(vendor, product string) []byte {
	resp := make([]byte, cdb.StandardInquiryResponseLength)
	resp[0] = cdb.PeripheralDeviceTypeCDOrDVD
	copy(resp[8:16], []byte(vendor+"        "))
	copy(resp[16:32], []byte(product+"                "))
	return resp
}

func encodeFullTOC(entries []cdb.FullTOCEntry) []byte {
	body := make([]byte, 0, len(entries)*11)
	for _, e := range entries {
		entry := make([]byte, 11)
		entry[0] = e.SessionNumber
		entry[1] = e.Control<<4 | e.ADR&0x0F
		entry[2] = e.TNO
		entry[3] = e.Point
		entry[8], entry[9], entry[10] = e.PAddress[0], e.PAddress[1], e.PAddress[2]
		body = append(body, entry...)
	}
	header := make([]byte, 4)
	dataLen := 2 + len(body)
	header[0] = byte(dataLen >> 8)
	header[1] = byte(dataLen)
	return append(header, body...)
}

func tocEntryAt(session byte, adr, control, point byte, sector int) cdb.FullTOCEntry {
	addr, err := cd.AddressFromSector(sector)
	if err != nil {
		panic(err)
	}
	m, s, fr, err := cd.EncodeBCDAddress(addr)
	if err != nil {
		panic(err)
	}
	return cdb.FullTOCEntry{SessionNumber: session, ADR: adr, Control: control, Point: point, PAddress: [3]byte{m, s, fr}}
}

// buildReadCDResponse assembles a LayoutB ([sector|subchannel|C2]) response
// buffer for absSector, with a valid mode-1 subchannel-Q frame and the given
// sector user data written at the start of the sector region.
func buildReadCDResponse(absSector int, sectorDataPrefix []byte) []byte {
	resp := make([]byte, cdb.ResponseSize)
	copy(resp[cdb.LayoutB.SectorDataOffset:], sectorDataPrefix)

	relAddr, err := cd.AddressFromSector(absSector - cd.RelativeSectorOffset)
	if err != nil {
		panic(err)
	}
	absAddr, err := cd.AddressFromSector(absSector)
	if err != nil {
		panic(err)
	}
	frame := subchannel.QFrame{ADR: 1, Control: 0x01, Track: 1, Index: 1, Relative: relAddr, Absolute: absAddr}
	q, err := subchannel.EncodeQ(frame)
	if err != nil {
		panic(err)
	}
	var channels [8][12]byte
	channels[subchannel.ChannelQ] = q
	sub := subchannel.Reinterleave(channels)
	copy(resp[cdb.LayoutB.SubchannelsDataOffset:], sub[:])
	return resp
}

func newFakeDrive(t *testing.T) (*Drive, *fakeDevice) {
	t.Helper()
	caps := capabilitiesPage(8192)
	recovery := errorRecoveryPage(0)
	caching := cachingPage()

	dev := &fakeDevice{
		inquiry:         inquiryResponse("FAKECORP", "FAKEDRIVE"),
		allPagesCurrent: buildModeParamList(recovery, caching, caps),
		allPagesChanged: buildModeParamList(errorRecoveryPage(0xFF), cachingPage(), capabilitiesPage(0)),
		singlePages: map[byte][]byte{
			cdb.PageCapabilitiesAndMechanicalStatus: caps,
			cdb.PageReadWriteErrorRecovery:           recovery,
		},
		sectors: make(map[int][]byte),
	}
	for i := 0; i < 10; i++ {
		abs := i + cd.RelativeSectorOffset
		dev.sectors[abs] = buildReadCDResponse(abs, nil)
	}

	d, err := Open(dev, nil)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	return d, dev
}

func TestReadDriveInfo(t *testing.T) {
	d, _ := newFakeDrive(t)
	info, err := d.ReadDriveInfo()
	if err != nil {
		t.Fatalf("ReadDriveInfo: %v", err)
	}
	if info.Vendor != "FAKECORP" || info.Product != "FAKEDRIVE" {
		t.Fatalf("unexpected vendor/product: %q %q", info.Vendor, info.Product)
	}
	if !info.SupportsAccurateStream || !info.SupportsC2ErrorReporting {
		t.Fatalf("expected both capability flags set: %+v", info)
	}
	if d.layout == nil || d.layout.Name != "B" {
		t.Fatalf("expected layout B to be detected, got %+v", d.layout)
	}
}

func TestReadDriveInfoRejectsMissingCapabilities(t *testing.T) {
	d, dev := newFakeDrive(t)
	inaccurate := capabilitiesPage(8192)
	inaccurate[5] = 0x00
	dev.singlePages[cdb.PageCapabilitiesAndMechanicalStatus] = inaccurate

	if _, err := d.ReadDriveInfo(); err == nil {
		t.Fatal("expected error when drive reports no accurate CDDA streaming or C2 support")
	}
}

func TestReadAbsoluteSector(t *testing.T) {
	d, dev := newFakeDrive(t)
	payload := append([]byte{0xAB, 0xCD}, make([]byte, 2350)...)
	dev.sectors[200] = buildReadCDResponse(200, payload)

	sectorData, subchannelsData, c2Data, err := d.ReadAbsoluteSector(200)
	if err != nil {
		t.Fatalf("ReadAbsoluteSector: %v", err)
	}
	if sectorData[0] != 0xAB || sectorData[1] != 0xCD {
		t.Fatalf("unexpected sector data prefix: % x", sectorData[:4])
	}
	if len(subchannelsData) != 96 {
		t.Fatalf("subchannelsData length = %d, want 96", len(subchannelsData))
	}
	if len(c2Data) != cd.C2Length {
		t.Fatalf("c2Data length = %d, want %d", len(c2Data), cd.C2Length)
	}
}

func TestSetReadRetryCount(t *testing.T) {
	d, dev := newFakeDrive(t)
	d.SetReadRetryCount(4)
	written, ok := dev.written[cdb.PageReadWriteErrorRecovery]
	if !ok {
		t.Fatal("expected a MODE SELECT write for the error recovery page")
	}
	if written[3] != 4 {
		t.Fatalf("written retry count = %d, want 4", written[3])
	}
}

func TestSetReadRetryCountRejectedByMaskIsSwallowed(t *testing.T) {
	d, dev := newFakeDrive(t)
	restrictive := errorRecoveryPage(0) // mask byte 3 = 0x00: no bits writable
	dev.allPagesChanged = buildModeParamList(restrictive, cachingPage(), capabilitiesPage(0))
	if err := d.negotiateModePages(); err != nil {
		t.Fatalf("negotiateModePages: %v", err)
	}

	d.SetReadRetryCount(4) // must not panic or propagate; only logs
	if _, wrote := dev.written[cdb.PageReadWriteErrorRecovery]; wrote {
		t.Fatal("expected the masked write to be rejected before reaching the device")
	}
}

func TestReadDiscInfoSingleDataTrack(t *testing.T) {
	d, dev := newFakeDrive(t)

	const trackStart = 150
	const pvdSector = trackStart + 16
	const leadOut = 2000

	pvd := make([]byte, 2352)
	pvd[15] = 1 // MODE1
	dev.sectors[pvdSector] = buildReadCDResponse(pvdSector, pvd)

	entries := []cdb.FullTOCEntry{
		{SessionNumber: 1, ADR: 1, Point: cdb.FullTOCPointFirstTrackInSession, PAddress: [3]byte{1, byte(disc.SessionTypeCDDAOrCDROM), 0}},
		tocEntryAt(1, 1, 0b0001, 1, trackStart),
		tocEntryAt(1, 1, 0b0001, cdb.FullTOCPointLeadOut, leadOut),
	}
	dev.fullTOC = encodeFullTOC(entries)

	info, err := d.ReadDiscInfo()
	if err != nil {
		t.Fatalf("ReadDiscInfo: %v", err)
	}
	if len(info.Sessions) != 1 {
		t.Fatalf("len(Sessions) = %d, want 1", len(info.Sessions))
	}
	s := info.Sessions[0]
	if len(s.Tracks) != 1 {
		t.Fatalf("len(Tracks) = %d, want 1", len(s.Tracks))
	}
	if s.Tracks[0].Type.String() != "DATA_MODE1" {
		t.Fatalf("resolved track type = %v, want DATA_MODE1", s.Tracks[0].Type)
	}
}
