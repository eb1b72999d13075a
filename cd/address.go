package cd

import "fmt"

// InvalidValueError reports an out-of-range or otherwise malformed value
// passed to one of this package's conversions.
type InvalidValueError struct {
	What string
}

func (e InvalidValueError) Error() string {
	return fmt.Sprintf("invalid value: %s", e.What)
}

// SectorAddress is an MSF (minute/second/frame) disc position.
type SectorAddress struct {
	Minute byte
	Second byte
	Frame  byte
}

// SectorFromAddress converts an MSF triple to a signed absolute sector
// index. The mapping is total over the declared range but the inputs
// themselves are not bounds-checked here (BCD decoding catches malformed
// digits earlier in the pipeline); out-of-range results are rejected by
// the caller via AddressFromSector's inverse check.
func SectorFromAddress(a SectorAddress) int {
	return (int(a.Minute)*60+int(a.Second))*SectorsPerSecond + int(a.Frame) - RelativeSectorOffset
}

// AddressFromSector converts a signed absolute sector index back to an
// MSF triple. Fails with InvalidValueError outside [MinSector, MaxSector].
func AddressFromSector(sector int) (SectorAddress, error) {
	if sector < MinSector || sector > MaxSector {
		return SectorAddress{}, InvalidValueError{What: fmt.Sprintf("sector %d out of range [%d,%d]", sector, MinSector, MaxSector)}
	}
	total := sector + RelativeSectorOffset
	frame := total % SectorsPerSecond
	totalSeconds := total / SectorsPerSecond
	second := totalSeconds % 60
	minute := totalSeconds / 60
	return SectorAddress{Minute: byte(minute), Second: byte(second), Frame: byte(frame)}, nil
}
