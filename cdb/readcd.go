package cdb

import "github.com/bitcd/bitcd/cd"

// ExpectedSectorType values for ReadCD12/ReadCDMSF12 byte 1 (§4.2).
const (
	ExpectedSectorTypeAny byte = 0x00
)

// HeaderCodes values for the flag byte (§4.2).
const (
	HeaderCodesNone       byte = 0x00
	HeaderCodesHeaderOnly byte = 0x01
	HeaderCodesSubHeader  byte = 0x02
	HeaderCodesAllHeaders byte = 0x03
)

// Errors (C2) values for the flag byte (§4.2).
const (
	ErrorsNone             byte = 0x00
	ErrorsC2ErrorFlags     byte = 0x01
	ErrorsC2ErrorBlockData byte = 0x02
)

// SubchannelBits values for the subchannel selection byte (§4.2).
const (
	SubchannelBitsNone byte = 0x00
	SubchannelBitsRaw  byte = 0x01
	SubchannelBitsQ    byte = 0x02
)

// ReadCDFlags bundles the flag bits shared by ReadCD12 and ReadCDMSF12.
type ReadCDFlags struct {
	ExpectedSectorType byte
	Sync               bool
	HeaderCodes        byte
	UserData           bool
	EDCAndECC          bool
	Errors             byte
	SubchannelBits     byte
}

// CoreReadCDFlags is the flag configuration this module uses for every
// sector read (§4.2): full raw payload with C2 and subchannel data.
var CoreReadCDFlags = ReadCDFlags{
	ExpectedSectorType: ExpectedSectorTypeAny,
	Sync:               true,
	HeaderCodes:        HeaderCodesAllHeaders,
	UserData:           true,
	EDCAndECC:          true,
	Errors:             ErrorsC2ErrorBlockData,
	SubchannelBits:     SubchannelBitsRaw,
}

func (f ReadCDFlags) byte9() byte {
	var b byte
	if f.Sync {
		b |= 1 << 7
	}
	b |= (f.HeaderCodes & 0x03) << 5
	if f.UserData {
		b |= 1 << 4
	}
	if f.EDCAndECC {
		b |= 1 << 3
	}
	b |= (f.Errors & 0x03) << 1
	return b
}

func (f ReadCDFlags) byte10() byte {
	return (f.SubchannelBits & 0x07) << 5
}

// EncodeReadCDFlags exposes the two flag bytes ReadCD12/ReadCDMSF12 embed
// for f, for callers that need to validate an already-built CDB's flag
// bytes (the emulator adapter's READ CD MSF handler) without re-deriving
// the bit layout themselves.
func EncodeReadCDFlags(f ReadCDFlags) (byte9, byte10 byte) {
	return f.byte9(), f.byte10()
}

// ReadCD12 builds the 12-byte READ CD command block addressing sectors by
// logical block address.
func ReadCD12(startLBA uint32, transferLength uint32, flags ReadCDFlags) []byte {
	cdb := make([]byte, 12)
	cdb[0] = 0xBE
	cdb[1] = (flags.ExpectedSectorType & 0x07) << 2
	cdb[2] = byte(startLBA >> 24)
	cdb[3] = byte(startLBA >> 16)
	cdb[4] = byte(startLBA >> 8)
	cdb[5] = byte(startLBA)
	cdb[6] = byte(transferLength >> 16)
	cdb[7] = byte(transferLength >> 8)
	cdb[8] = byte(transferLength)
	cdb[9] = flags.byte9()
	cdb[10] = flags.byte10()
	return cdb
}

// ReadCDMSF12 builds the 12-byte READ CD MSF command block. end is
// exclusive, matching the MMC definition of this command.
func ReadCDMSF12(start, end cd.SectorAddress, flags ReadCDFlags) []byte {
	cdb := make([]byte, 12)
	cdb[0] = 0xB9
	cdb[1] = (flags.ExpectedSectorType & 0x07) << 2
	cdb[3], cdb[4], cdb[5] = start.Minute, start.Second, start.Frame
	cdb[6], cdb[7], cdb[8] = end.Minute, end.Second, end.Frame
	cdb[9] = flags.byte9()
	cdb[10] = flags.byte10()
	return cdb
}

// ReadCDResponseLayout names the two orderings a drive may place the
// sector/subchannel/C2 payloads in within a ReadCD response buffer
// (§4.4). The core buffer is always 2352+96+294 = 2742 bytes; only the
// internal ordering of the three regions differs.
type ReadCDResponseLayout struct {
	Name                 string
	SectorDataOffset     int
	SubchannelsDataOffset int
	C2DataOffset         int
}

// ResponseSize is the total size of a single-sector ReadCD response: the
// raw sector plus subchannel plus C2 regions in either layout.
const ResponseSize = cd.SectorLength + 96 + cd.C2Length

// LayoutA is "[sector | C2 | subchannel]".
var LayoutA = ReadCDResponseLayout{
	Name:                  "A",
	SectorDataOffset:      0,
	C2DataOffset:          cd.SectorLength,
	SubchannelsDataOffset: cd.SectorLength + cd.C2Length,
}

// LayoutB is "[sector | subchannel | C2]".
var LayoutB = ReadCDResponseLayout{
	Name:                  "B",
	SectorDataOffset:      0,
	SubchannelsDataOffset: cd.SectorLength,
	C2DataOffset:          cd.SectorLength + 96,
}

// Split slices a full ReadCD response buffer into its three regions
// according to layout.
func (l ReadCDResponseLayout) Split(resp []byte) (sectorData, subchannelsData, c2Data []byte, err error) {
	if len(resp) < ResponseSize {
		return nil, nil, nil, InvalidValueError{What: "ReadCD response shorter than expected buffer size"}
	}
	return resp[l.SectorDataOffset : l.SectorDataOffset+cd.SectorLength],
		resp[l.SubchannelsDataOffset : l.SubchannelsDataOffset+96],
		resp[l.C2DataOffset : l.C2DataOffset+cd.C2Length],
		nil
}
