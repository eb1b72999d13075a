package binio

import (
	"bytes"
	"os"
	"testing"
)

func TestReadHelpers(t *testing.T) {
	data := []byte{0x01, 0x02, 0x03, 0x04, 0x05, 0x06, 0x07, 0x08}
	r := bytes.NewReader(data)

	if v, err := ReadUint8At(r, 0); err != nil || v != 0x01 {
		t.Fatalf("ReadUint8At = %v, %v", v, err)
	}
	if v, err := ReadUint16LEAt(r, 0); err != nil || v != 0x0201 {
		t.Fatalf("ReadUint16LEAt = %#x, %v", v, err)
	}
	if v, err := ReadUint32LEAt(r, 0); err != nil || v != 0x04030201 {
		t.Fatalf("ReadUint32LEAt = %#x, %v", v, err)
	}
	if v, err := ReadUint32BEAt(r, 0); err != nil || v != 0x01020304 {
		t.Fatalf("ReadUint32BEAt = %#x, %v", v, err)
	}
	if v, err := ReadUint64LEAt(r, 0); err != nil || v != 0x0807060504030201 {
		t.Fatalf("ReadUint64LEAt = %#x, %v", v, err)
	}
	if _, err := ReadUint8At(r, 100); err == nil {
		t.Fatal("expected an error reading past the end")
	}
}

func TestAppendHelpers(t *testing.T) {
	var buf []byte
	buf = AppendUint8(buf, 0xAA)
	buf = AppendUint16LE(buf, 0x1234)
	buf = AppendUint32LE(buf, 0x12345678)
	want := []byte{0xAA, 0x34, 0x12, 0x78, 0x56, 0x34, 0x12}
	if !bytes.Equal(buf, want) {
		t.Fatalf("buf = % x, want % x", buf, want)
	}
}

func TestWriteAtHelpers(t *testing.T) {
	f, err := os.CreateTemp(t.TempDir(), "binio-*.bin")
	if err != nil {
		t.Fatalf("CreateTemp: %v", err)
	}
	defer f.Close()

	if _, err := f.Write(make([]byte, 16)); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if err := WriteUint32LEAt(f, 4, 0xDEADBEEF); err != nil {
		t.Fatalf("WriteUint32LEAt: %v", err)
	}
	got, err := ReadUint32LEAt(f, 4)
	if err != nil || got != 0xDEADBEEF {
		t.Fatalf("ReadUint32LEAt after patch = %#x, %v", got, err)
	}
}
