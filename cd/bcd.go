package cd

import "fmt"

// DecodeBCD decodes a packed binary-coded-decimal byte into its integer
// value in [0,99]. Fails if either nibble exceeds 9.
func DecodeBCD(b byte) (int, error) {
	hi := b >> 4
	lo := b & 0x0F
	if hi > 9 || lo > 9 {
		return 0, InvalidValueError{What: fmt.Sprintf("byte 0x%02x is not valid BCD", b)}
	}
	return int(hi)*10 + int(lo), nil
}

// EncodeBCD packs an integer in [0,99] into a binary-coded-decimal byte.
func EncodeBCD(n int) (byte, error) {
	if n < 0 || n > 99 {
		return 0, InvalidValueError{What: fmt.Sprintf("value %d out of BCD range [0,99]", n)}
	}
	return byte((n/10)<<4 | (n % 10)), nil
}

// DecodeBCDAddress decodes an on-wire BCD-encoded MSF triple.
func DecodeBCDAddress(m, s, f byte) (SectorAddress, error) {
	minute, err := DecodeBCD(m)
	if err != nil {
		return SectorAddress{}, fmt.Errorf("decode BCD minute: %w", err)
	}
	second, err := DecodeBCD(s)
	if err != nil {
		return SectorAddress{}, fmt.Errorf("decode BCD second: %w", err)
	}
	frame, err := DecodeBCD(f)
	if err != nil {
		return SectorAddress{}, fmt.Errorf("decode BCD frame: %w", err)
	}
	return SectorAddress{Minute: byte(minute), Second: byte(second), Frame: byte(frame)}, nil
}

// EncodeBCDAddress encodes an MSF triple into on-wire BCD bytes.
func EncodeBCDAddress(a SectorAddress) (m, s, f byte, err error) {
	m, err = EncodeBCD(int(a.Minute))
	if err != nil {
		return 0, 0, 0, fmt.Errorf("encode BCD minute: %w", err)
	}
	s, err = EncodeBCD(int(a.Second))
	if err != nil {
		return 0, 0, 0, fmt.Errorf("encode BCD second: %w", err)
	}
	f, err = EncodeBCD(int(a.Frame))
	if err != nil {
		return 0, 0, 0, fmt.Errorf("encode BCD frame: %w", err)
	}
	return m, s, f, nil
}
