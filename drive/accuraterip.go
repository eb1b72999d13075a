package drive

import "strings"

// readOffsetDatabase is an embedded, immutable vendor|product → sample
// offset lookup, the same role as the original tool's accuraterip
// database: a process-wide constant consulted when a user doesn't supply
// --read-correction explicitly (§3 DriveInfo, §9 "Global mutable state").
// The values below are widely published AccurateRip drive offsets for
// common drive families; the table is intentionally small — it exists to
// demonstrate the lookup contract, not to be an exhaustive vendor list.
var readOffsetDatabase = map[string]int{
	"PLEXTOR|CD-R   PX-W4824A": 98,
	"PLEXTOR|DVDR   PX-716A":   30,
	"LITE-ON|DVDRW LH-20A1H":   6,
	"ASUS|DRW-24B1ST":          -174,
	"HL-DT-ST|DVDRAM GH22NS50": 6,
	"TSSTCORP|CDDVDW SH-224DB": 6,
	"PIONEER|DVD-RW  DVR-221L": -667,
	"SONY|DVD RW AD-7200S":     -691,
}

// LookupReadOffsetCorrection resolves a read-offset correction in samples
// for the given vendor/product, trimmed of surrounding whitespace. Returns
// false if the pair isn't in the table.
func LookupReadOffsetCorrection(vendor, product string) (int, bool) {
	key := strings.TrimSpace(vendor) + "|" + strings.TrimSpace(product)
	v, ok := readOffsetDatabase[key]
	return v, ok
}
