package odi

import "fmt"

// CompressedSizeExceededUncompressedSizeError reports that a compressor
// produced output no smaller than its input, so the caller should fall
// back to storing the buffer uncompressed (§4.8.4).
type CompressedSizeExceededUncompressedSizeError struct {
	CompressedSize, UncompressedSize int
}

func (e CompressedSizeExceededUncompressedSizeError) Error() string {
	return fmt.Sprintf("compressed size %d did not improve on uncompressed size %d", e.CompressedSize, e.UncompressedSize)
}

const rleMaxRunLength = 128

// runLengthEncode packs buf using PackBits-style run-length encoding: a
// control byte n in [0,127] introduces n+1 literal bytes copied
// verbatim; a control byte n in [129,255], read as the two's-complement
// value -(256-n), introduces one byte repeated (257-n) times. Control
// byte 128 is unused. Fails with
// CompressedSizeExceededUncompressedSizeError if the packed form isn't
// smaller than buf.
func runLengthEncode(buf []byte) ([]byte, error) {
	out := make([]byte, 0, len(buf))
	i := 0
	for i < len(buf) {
		runLength := 1
		for i+runLength < len(buf) && buf[i+runLength] == buf[i] && runLength < rleMaxRunLength {
			runLength++
		}
		if runLength >= 2 {
			out = append(out, byte(256-(runLength-1)), buf[i])
			i += runLength
			continue
		}
		literalStart := i
		i++
		for i < len(buf) && i-literalStart < rleMaxRunLength {
			lookaheadRun := 1
			for i+lookaheadRun < len(buf) && buf[i+lookaheadRun] == buf[i] && lookaheadRun < rleMaxRunLength {
				lookaheadRun++
			}
			if lookaheadRun >= 2 {
				break
			}
			i++
		}
		out = append(out, byte(i-literalStart-1))
		out = append(out, buf[literalStart:i]...)
	}
	if len(out) >= len(buf) {
		return nil, CompressedSizeExceededUncompressedSizeError{CompressedSize: len(out), UncompressedSize: len(buf)}
	}
	return out, nil
}

// runLengthDecode inverts runLengthEncode, writing exactly
// uncompressedLength bytes.
func runLengthDecode(compressed []byte, uncompressedLength int) ([]byte, error) {
	out := make([]byte, 0, uncompressedLength)
	i := 0
	for i < len(compressed) {
		control := compressed[i]
		i++
		if control <= 127 {
			count := int(control) + 1
			if i+count > len(compressed) {
				return nil, fmt.Errorf("run-length decode: literal run truncated")
			}
			out = append(out, compressed[i:i+count]...)
			i += count
			continue
		}
		if control == 128 {
			continue
		}
		count := 257 - int(control)
		if i >= len(compressed) {
			return nil, fmt.Errorf("run-length decode: repeat run truncated")
		}
		value := compressed[i]
		i++
		for n := 0; n < count; n++ {
			out = append(out, value)
		}
	}
	if len(out) != uncompressedLength {
		return nil, fmt.Errorf("run-length decode: produced %d bytes, want %d", len(out), uncompressedLength)
	}
	return out, nil
}
