package emulator

import "github.com/bitcd/bitcd/cdb"

// buildCapabilitiesAndMechanicalStatusPage mirrors
// create_capabilities_and_mechanical_status_page: under CHANGABLE_VALUES
// control, every value field stays at its zero default (nothing is
// reported as changeable); otherwise the page reports accurate CDDA
// streaming, C2 pointer support, and a fixed 2048-byte buffer.
func buildCapabilitiesAndMechanicalStatusPage(control cdb.ModeSensePageControl) []byte {
	page := make([]byte, 32)
	page[0] = cdb.PageCapabilitiesAndMechanicalStatus
	page[1] = byte(len(page) - 2)
	if control != cdb.PageControlChangeable {
		page[5] = 0x01 | 0x02 // cdda_stream_is_accurate, c2_pointers_supported
		page[12], page[13] = 0x08, 0x00 // buffer_size_supported_be = 2048
	}
	return page
}

// buildCachingPage and buildReadWriteErrorRecoveryPage mirror their
// C++ counterparts, whose CHANGABLE_VALUES and non-CHANGABLE_VALUES
// branches are both empty bodies — every value field is always zero,
// only the page identity header varies by page code.
func buildCachingPage(cdb.ModeSensePageControl) []byte {
	page := make([]byte, 12)
	page[0] = cdb.PageCaching
	page[1] = byte(len(page) - 2)
	return page
}

func buildReadWriteErrorRecoveryPage(cdb.ModeSensePageControl) []byte {
	page := make([]byte, 12)
	page[0] = cdb.PageReadWriteErrorRecovery
	page[1] = byte(len(page) - 2)
	return page
}

func appendModeParameterHeader10(buf []byte, modeDataLength int) []byte {
	buf = append(buf, byte(modeDataLength>>8), byte(modeDataLength))
	return append(buf, 0, 0, 0, 0, 0, 0) // medium_type, device_specific, reserved, reserved, block_desc_len_be(0)
}

func (d *Device) handleModeSense10(c []byte, data []byte) byte {
	pageCode := c[2] & 0x3F
	pageControl := cdb.ModeSensePageControl(c[2] >> 6)

	switch pageCode {
	case cdb.PageCapabilitiesAndMechanicalStatus:
		page := buildCapabilitiesAndMechanicalStatusPage(pageControl)
		total := 8 + len(page)
		if len(data) < total {
			return statusCheckCondition
		}
		buf := appendModeParameterHeader10(nil, total-2)
		buf = append(buf, page...)
		copy(data, buf)
		return statusGood

	case cdb.PageCaching:
		page := buildCachingPage(pageControl)
		total := 8 + len(page)
		if len(data) < total {
			return statusCheckCondition
		}
		buf := appendModeParameterHeader10(nil, total-2)
		buf = append(buf, page...)
		copy(data, buf)
		return statusGood

	case cdb.PageReadWriteErrorRecovery:
		page := buildReadWriteErrorRecoveryPage(pageControl)
		total := 8 + len(page)
		if len(data) < total {
			return statusCheckCondition
		}
		buf := appendModeParameterHeader10(nil, total-2)
		buf = append(buf, page...)
		copy(data, buf)
		return statusGood

	case cdb.PageAllPages:
		caps := buildCapabilitiesAndMechanicalStatusPage(pageControl)
		rwer := buildReadWriteErrorRecoveryPage(pageControl)
		caching := buildCachingPage(pageControl)
		total := 8 + len(caps) + len(rwer) + len(caching)
		if len(data) < total {
			return statusCheckCondition
		}
		buf := appendModeParameterHeader10(nil, total-2)
		buf = append(buf, caps...)
		buf = append(buf, rwer...)
		buf = append(buf, caching...)
		copy(data, buf)
		return statusGood

	default:
		return statusCheckCondition
	}
}
