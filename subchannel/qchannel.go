package subchannel

import (
	"encoding/binary"

	"github.com/bitcd/bitcd/cd"
)

// QFrame is a decoded subchannel-Q mode-1 frame (§3): track/index plus
// relative and absolute MSF positions.
type QFrame struct {
	ADR        byte
	Control    byte
	Track      byte
	Index      byte
	Relative   cd.SectorAddress
	Absolute   cd.SectorAddress
	CRC        uint16
	ComputedCRC uint16
}

// CRCValid reports whether the frame's stored CRC matches the recomputed
// one over its first 10 bytes.
func (f QFrame) CRCValid() bool { return f.CRC == f.ComputedCRC }

// DecodeQ decodes a 12-byte deinterleaved Q channel as mode-1 data
// (track/index/MSF), the layout used by audio and data tracks alike for
// position reporting. The caller decides what to do with a CRC mismatch
// (§4.6: warned but not fatal during extraction; authoritative during
// layout/timing auto-detection).
func DecodeQ(q [12]byte) (QFrame, error) {
	header := q[0]
	relAddr, err := cd.DecodeBCDAddress(q[3], q[4], q[5])
	if err != nil {
		return QFrame{}, err
	}
	absAddr, err := cd.DecodeBCDAddress(q[7], q[8], q[9])
	if err != nil {
		return QFrame{}, err
	}
	crc := binary.BigEndian.Uint16(q[10:12])
	return QFrame{
		ADR:         header & 0x0F,
		Control:     header >> 4,
		Track:       q[1],
		Index:       q[2],
		Relative:    relAddr,
		Absolute:    absAddr,
		CRC:         crc,
		ComputedCRC: cd.CRC16(q[0:10]),
	}, nil
}

// EncodeQ is the inverse of DecodeQ, recomputing the CRC over the encoded
// header/payload bytes.
func EncodeQ(f QFrame) ([12]byte, error) {
	var q [12]byte
	q[0] = f.Control<<4 | f.ADR&0x0F
	q[1] = f.Track
	q[2] = f.Index
	m, s, fr, err := cd.EncodeBCDAddress(f.Relative)
	if err != nil {
		return q, err
	}
	q[3], q[4], q[5] = m, s, fr
	m, s, fr, err = cd.EncodeBCDAddress(f.Absolute)
	if err != nil {
		return q, err
	}
	q[7], q[8], q[9] = m, s, fr
	crc := cd.CRC16(q[0:10])
	binary.BigEndian.PutUint16(q[10:12], crc)
	return q, nil
}
