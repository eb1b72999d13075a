package odi

import (
	"bytes"
	"testing"
)

func TestRunLengthRoundTripAllZero(t *testing.T) {
	buf := make([]byte, 2352)
	packed, err := runLengthEncode(buf)
	if err != nil {
		t.Fatalf("runLengthEncode: %v", err)
	}
	if len(packed) >= len(buf) {
		t.Fatalf("packed size %d should be smaller than %d for an all-zero buffer", len(packed), len(buf))
	}
	unpacked, err := runLengthDecode(packed, len(buf))
	if err != nil {
		t.Fatalf("runLengthDecode: %v", err)
	}
	if !bytes.Equal(unpacked, buf) {
		t.Fatal("round trip did not reproduce original buffer")
	}
}

func TestRunLengthRoundTripMixed(t *testing.T) {
	buf := make([]byte, 300)
	for i := range buf {
		switch {
		case i < 50:
			buf[i] = 0x00
		case i < 100:
			buf[i] = byte(i)
		case i < 250:
			buf[i] = 0xAA
		default:
			buf[i] = byte(i % 7)
		}
	}
	packed, err := runLengthEncode(buf)
	if err != nil {
		t.Fatalf("runLengthEncode: %v", err)
	}
	unpacked, err := runLengthDecode(packed, len(buf))
	if err != nil {
		t.Fatalf("runLengthDecode: %v", err)
	}
	if !bytes.Equal(unpacked, buf) {
		t.Fatal("round trip did not reproduce original buffer")
	}
}

func TestRunLengthEncodeRejectsIncompressibleInput(t *testing.T) {
	buf := make([]byte, 256)
	for i := range buf {
		buf[i] = byte(i*167 + 13)
	}
	_, err := runLengthEncode(buf)
	if _, ok := err.(CompressedSizeExceededUncompressedSizeError); !ok {
		t.Fatalf("err = %v (%T), want CompressedSizeExceededUncompressedSizeError for maximally alternating input", err, err)
	}
}
