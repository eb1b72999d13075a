package drive

import (
	"fmt"

	"github.com/bitcd/bitcd/cd"
	"github.com/bitcd/bitcd/cdb"
	"github.com/bitcd/bitcd/subchannel"
)

// maxAutoDetectPasses bounds how many times detectLayout retries both
// candidate layouts before giving up (§4.4: "a bounded number of passes").
const maxAutoDetectPasses = 3

// probeSectorCount is the number of successive relative sectors probed
// per candidate layout (§4.4).
const probeSectorCount = 10

// agreementThreshold is the minimum number of pairwise-equal deltas
// required to accept a candidate layout (§4.4: "at least nine").
const agreementThreshold = 9

// maxAcceptableDelta bounds the accepted |expected-decoded| delta (§4.4).
const maxAcceptableDelta = 10

func (d *Drive) readRawSector(absSector int) ([]byte, error) {
	start, err := cd.AddressFromSector(absSector)
	if err != nil {
		return nil, err
	}
	end, err := cd.AddressFromSector(absSector + 1)
	if err != nil {
		return nil, err
	}
	c := cdb.ReadCDMSF12(start, end, cdb.CoreReadCDFlags)
	resp := make([]byte, cdb.ResponseSize)
	status, sense, err := d.dev.Ioctl(c, resp, false)
	if err != nil {
		return nil, fmt.Errorf("probe sector %d: %w", absSector, err)
	}
	if status != 0 {
		return nil, transportStatusError(fmt.Sprintf("probe sector %d", absSector), status, sense)
	}
	return resp, nil
}

// tryLayout reads probeSectorCount successive relative sectors starting at
// relative sector 0 (absolute 150), deinterleaves subchannel Q, and
// decodes the BCD absolute address back to a sector index, recording the
// signed delta (expected - decoded) for each successful, CRC-valid probe.
func (d *Drive) tryLayout(layout cdb.ReadCDResponseLayout) []int {
	var deltas []int
	for i := 0; i < probeSectorCount; i++ {
		expected := i + cd.RelativeSectorOffset
		raw, err := d.readRawSector(expected)
		if err != nil {
			continue
		}
		_, subRaw, _, err := layout.Split(raw)
		if err != nil {
			continue
		}
		var subArr [96]byte
		copy(subArr[:], subRaw)
		channels := subchannel.Deinterleave(subArr)
		var qArr [12]byte
		copy(qArr[:], channels[subchannel.ChannelQ][:])
		frame, err := subchannel.DecodeQ(qArr)
		if err != nil || !frame.CRCValid() || frame.ADR != 1 {
			continue
		}
		decoded := cd.SectorFromAddress(frame.Absolute)
		deltas = append(deltas, expected-decoded)
	}
	return deltas
}

// agrees reports whether at least agreementThreshold of deltas are
// pairwise equal to some value with |value| <= maxAcceptableDelta.
func agrees(deltas []int) bool {
	counts := make(map[int]int)
	for _, v := range deltas {
		counts[v]++
	}
	for v, n := range counts {
		if n >= agreementThreshold {
			d := v
			if d < 0 {
				d = -d
			}
			if d <= maxAcceptableDelta {
				return true
			}
		}
	}
	return false
}

// detectLayout determines whether this drive places ReadCD response
// payloads in layout A ([sector|C2|subchannel]) or layout B
// ([sector|subchannel|C2]) (§4.4). Fails with AutoDetectError if neither
// layout can be confirmed within the bounded number of passes.
func (d *Drive) detectLayout() error {
	if d.layout != nil {
		return nil
	}
	candidates := []cdb.ReadCDResponseLayout{cdb.LayoutA, cdb.LayoutB}
	for pass := 0; pass < maxAutoDetectPasses; pass++ {
		for i := range candidates {
			deltas := d.tryLayout(candidates[i])
			if agrees(deltas) {
				layout := candidates[i]
				d.layout = &layout
				return nil
			}
		}
	}
	return AutoDetectError{What: "could not confirm ReadCD response layout A or B within the bounded number of passes"}
}
