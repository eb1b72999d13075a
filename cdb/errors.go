// Package cdb implements the typed, packed command/response codec for the
// subset of the SCSI/MMC command set this module needs: TestUnitReady,
// Inquiry, ModeSense/ModeSelect (10 byte forms), ReadTOC, and
// ReadCD/ReadCDMSF. Every multi-byte wire integer is explicitly big-endian;
// Go has no native bitfields so sub-byte fields are packed by hand.
package cdb

import "fmt"

// InvalidValueError reports a response that failed a length or field
// validation check against what the command requested.
type InvalidValueError struct {
	What string
}

func (e InvalidValueError) Error() string {
	return fmt.Sprintf("invalid value: %s", e.What)
}

// UnsupportedValueError reports a field value this codec does not know how
// to encode or interpret.
type UnsupportedValueError struct {
	What string
}

func (e UnsupportedValueError) Error() string {
	return fmt.Sprintf("unsupported value: %s", e.What)
}
