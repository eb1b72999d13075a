package drive

import (
	"fmt"

	"github.com/bitcd/bitcd/cdb"
)

// readAllPagesWithControl issues a MODE SENSE(10) for page 0x3F (all
// pages) under the given page control and returns the page-code-keyed
// split of the response (§4.4).
func (d *Drive) readAllPagesWithControl(control cdb.ModeSensePageControl) (map[byte][]byte, error) {
	c := cdb.ModeSense10(cdb.PageAllPages, control, 65535)
	resp := make([]byte, 65535)
	status, sense, err := d.dev.Ioctl(c, resp, false)
	if err != nil {
		return nil, fmt.Errorf("mode sense all pages: %w", err)
	}
	if status != 0 {
		return nil, transportStatusError("mode sense all pages", status, sense)
	}
	hdr, err := cdb.ParseModeParameterHeader10(resp)
	if err != nil {
		return nil, fmt.Errorf("parse mode parameter header: %w", err)
	}
	pageAreaStart := 8 + int(hdr.BlockDescLen)
	pageAreaEnd := int(hdr.ModeDataLength) + 2
	if pageAreaEnd > len(resp) {
		pageAreaEnd = len(resp)
	}
	return cdb.SplitModePages(resp[pageAreaStart:pageAreaEnd])
}

// negotiateModePages reads the CHANGEABLE_VALUES copy of every mode page
// once at open time and caches the result as the write mask for each page
// (§4.4).
func (d *Drive) negotiateModePages() error {
	masks, err := d.readAllPagesWithControl(cdb.PageControlChangeable)
	if err != nil {
		return fmt.Errorf("negotiate mode pages: %w", err)
	}
	d.pageMasks = masks
	return nil
}

// readPage reads the CURRENT copy of a single mode page.
func (d *Drive) readPage(pageCode byte) ([]byte, error) {
	c := cdb.ModeSense10(pageCode, cdb.PageControlCurrent, 255)
	resp := make([]byte, 255)
	status, sense, err := d.dev.Ioctl(c, resp, false)
	if err != nil {
		return nil, fmt.Errorf("mode sense page 0x%02x: %w", pageCode, err)
	}
	if status != 0 {
		return nil, transportStatusError(fmt.Sprintf("mode sense page 0x%02x", pageCode), status, sense)
	}
	hdr, err := cdb.ParseModeParameterHeader10(resp)
	if err != nil {
		return nil, fmt.Errorf("parse mode parameter header: %w", err)
	}
	pageAreaStart := 8 + int(hdr.BlockDescLen)
	pageAreaEnd := int(hdr.ModeDataLength) + 2
	if pageAreaEnd > len(resp) {
		pageAreaEnd = len(resp)
	}
	pages, err := cdb.SplitModePages(resp[pageAreaStart:pageAreaEnd])
	if err != nil {
		return nil, fmt.Errorf("split page 0x%02x: %w", pageCode, err)
	}
	page, ok := pages[pageCode&0x3F]
	if !ok {
		return nil, MissingError{What: fmt.Sprintf("mode page 0x%02x not present in response", pageCode)}
	}
	return page, nil
}

// validatePageWrite checks newValue byte-wise against the cached
// CHANGEABLE_VALUES mask: `(~mask & new_value) == 0` must hold for every
// byte, else the write would touch a bit the drive never reported as
// writable (§4.4).
func (d *Drive) validatePageWrite(pageCode byte, newValue []byte) error {
	mask, ok := d.pageMasks[pageCode&0x3F]
	if !ok {
		return PageMaskError{PageCode: pageCode}
	}
	n := len(mask)
	if len(newValue) < n {
		n = len(newValue)
	}
	for i := 0; i < n; i++ {
		if ^mask[i]&newValue[i] != 0 {
			return PageMaskError{PageCode: pageCode}
		}
	}
	return nil
}

// writePage issues a MODE SELECT(10) with the given page's bytes
// (including its 2-byte page header) as the sole page in the parameter
// list.
func (d *Drive) writePage(pageCode byte, page []byte) error {
	if err := d.validatePageWrite(pageCode, page); err != nil {
		return err
	}
	header := make([]byte, 8)
	paramList := append(header, page...)
	c := cdb.ModeSelect10(uint16(len(paramList)))
	status, sense, err := d.dev.Ioctl(c, paramList, true)
	if err != nil {
		return fmt.Errorf("mode select page 0x%02x: %w", pageCode, err)
	}
	if status != 0 {
		return transportStatusError(fmt.Sprintf("mode select page 0x%02x", pageCode), status, sense)
	}
	return nil
}

// SetReadRetryCount sets the ReadWriteErrorRecovery page's read_retry_count
// byte and writes the page back. A write forbidden by the page mask is
// logged and otherwise ignored, matching the original tool's
// set_read_retry_count, which does not propagate this particular failure
// (§4.4).
func (d *Drive) SetReadRetryCount(n byte) {
	raw, err := d.readPage(cdb.PageReadWriteErrorRecovery)
	if err != nil {
		d.logf("read error recovery page: %v", err)
		return
	}
	page, err := cdb.ParseReadWriteErrorRecoveryModePage(raw)
	if err != nil {
		d.logf("parse error recovery page: %v", err)
		return
	}
	updated := page.SetReadRetryCount(n)
	if err := d.writePage(cdb.PageReadWriteErrorRecovery, updated.Raw[:]); err != nil {
		d.logf("write error recovery page (retry count %d): %v", n, err)
	}
}
