package cdb

import "fmt"

// PeripheralDeviceType values relevant to drive validation (§4.4).
const (
	PeripheralDeviceTypeCDOrDVD = 0x05
)

// TestUnitReady builds the 6-byte TEST UNIT READY command block.
func TestUnitReady() []byte {
	return make([]byte, 6)
}

// Inquiry6 builds the 6-byte INQUIRY command block requesting allocLen
// bytes of standard inquiry data.
func Inquiry6(allocLen uint8) []byte {
	cdb := make([]byte, 6)
	cdb[0] = 0x12
	cdb[4] = allocLen
	return cdb
}

// StandardInquiryResponseLength is the allocation length used to request a
// standard inquiry response (enough for peripheral type, vendor, product).
const StandardInquiryResponseLength = 36

// StandardInquiryResponse is the subset of the 36-byte standard INQUIRY
// response this module inspects.
type StandardInquiryResponse struct {
	PeripheralDeviceType byte
	Vendor               string
	Product              string
}

// ParseStandardInquiryResponse decodes the fixed-layout fields of a
// standard INQUIRY response.
func ParseStandardInquiryResponse(data []byte) (StandardInquiryResponse, error) {
	if len(data) < StandardInquiryResponseLength {
		return StandardInquiryResponse{}, InvalidValueError{
			What: fmt.Sprintf("inquiry response length %d < %d", len(data), StandardInquiryResponseLength),
		}
	}
	return StandardInquiryResponse{
		PeripheralDeviceType: data[0] & 0x1F,
		Vendor:               cleanASCII(data[8:16]),
		Product:              cleanASCII(data[16:32]),
	}, nil
}

func cleanASCII(b []byte) string {
	end := len(b)
	for end > 0 && (b[end-1] == ' ' || b[end-1] == 0) {
		end--
	}
	return string(b[:end])
}
