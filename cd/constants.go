// Package cd holds the bit-layout primitives shared by every other package
// in this module: sector geometry constants, MSF/BCD conversions, and the
// CRC-16 used by subchannel Q. Nothing here talks to a device or a file.
package cd

// Sector and disc geometry, fixed by the Red Book / Yellow Book and not
// negotiable with any drive.
const (
	SectorLength     = 2352
	SectorsPerSecond = 75
	MinutesPerDisc   = 99

	SubchannelCount  = 8
	SubchannelLength = 12
	SubchannelQIndex = 1

	C2Length = 294

	// RelativeSectorOffset is the 150-sector (2 s) lead-in gap that
	// separates an MSF-derived "absolute" sector index from the
	// "relative" index used when addressing track content directly.
	RelativeSectorOffset = 150

	LeadInLength             = 4500
	FirstLeadOutLength       = 6750
	SubsequentLeadOutLength  = 2250
)

// MinSector and MaxSector bound the addressable range of SectorAddress.
const (
	MinSector = -RelativeSectorOffset
	MaxSector = (MinutesPerDisc*60+59)*SectorsPerSecond + (SectorsPerSecond - 1) - RelativeSectorOffset
)
