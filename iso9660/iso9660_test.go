package iso9660

import (
	"encoding/binary"
	"testing"
)

// fakeVolume is an in-memory sector store used to synthesize a tiny ISO
// 9660 volume for testing Build's directory walk.
type fakeVolume struct {
	sectors map[int][UserDataSize]byte
}

func newFakeVolume() *fakeVolume {
	return &fakeVolume{sectors: make(map[int][UserDataSize]byte)}
}

func (v *fakeVolume) read(sector int) ([UserDataSize]byte, error) {
	return v.sectors[sector], nil
}

func (v *fakeVolume) putSector(sector int, data []byte) {
	var buf [UserDataSize]byte
	copy(buf[:], data)
	v.sectors[sector] = buf
}

// buildDirectoryRecord encodes one ECMA-119 directory record.
func buildDirectoryRecord(identifier string, isDirectory bool, firstSector, lengthBytes int) []byte {
	identBytes := []byte(identifier)
	headerLen := directoryEntryHeaderSize + len(identBytes)
	total := headerLen
	if total%2 == 1 {
		total++
	}
	rec := make([]byte, total)
	rec[0] = byte(total)
	rec[1] = 0 // extended record length
	binary.LittleEndian.PutUint32(rec[2:6], uint32(firstSector))
	binary.BigEndian.PutUint32(rec[6:10], uint32(firstSector))
	binary.LittleEndian.PutUint32(rec[10:14], uint32(lengthBytes))
	binary.BigEndian.PutUint32(rec[14:18], uint32(lengthBytes))
	if isDirectory {
		rec[25] = 0x02
	}
	rec[32] = byte(len(identBytes))
	copy(rec[33:33+len(identBytes)], identBytes)
	return rec
}

func buildPVD(rootSector, rootLengthBytes int) []byte {
	pvd := make([]byte, UserDataSize)
	pvd[0] = 1 // PRIMARY_VOLUME_DESCRIPTOR
	copy(pvd[1:6], []byte("CD001"))
	pvd[6] = 1
	root := buildDirectoryRecord(currentDirectoryIdentifier, true, rootSector, rootLengthBytes)
	copy(pvd[rootDirectoryEntryOffset:], root)
	return pvd
}

// buildVolume lays out a root directory (sector 17) containing a file
// (FILE.TXT, no data needed) and a subdirectory (sector 18), which in turn
// contains a file (NESTED.TXT, sector 19).
func buildVolume() *fakeVolume {
	v := newFakeVolume()

	nestedFile := buildDirectoryRecord("NESTED.TXT", false, 19, 100)
	subdirDot := buildDirectoryRecord(currentDirectoryIdentifier, true, 18, UserDataSize)
	subdirDotDot := buildDirectoryRecord(parentDirectoryIdentifier, true, 17, UserDataSize)
	var subdirData []byte
	subdirData = append(subdirData, subdirDot...)
	subdirData = append(subdirData, subdirDotDot...)
	subdirData = append(subdirData, nestedFile...)
	v.putSector(18, subdirData)

	rootDot := buildDirectoryRecord(currentDirectoryIdentifier, true, 17, UserDataSize)
	rootDotDot := buildDirectoryRecord(parentDirectoryIdentifier, true, 17, UserDataSize)
	rootFile := buildDirectoryRecord("FILE.TXT", false, 20, 50)
	rootSubdir := buildDirectoryRecord("SUBDIR", true, 18, UserDataSize)
	var rootData []byte
	rootData = append(rootData, rootDot...)
	rootData = append(rootData, rootDotDot...)
	rootData = append(rootData, rootFile...)
	rootData = append(rootData, rootSubdir...)
	v.putSector(17, rootData)

	pvd := buildPVD(17, UserDataSize)
	v.putSector(PrimaryVolumeDescriptorSector, pvd)

	return v
}

func TestBuildWalksDirectoryTree(t *testing.T) {
	v := buildVolume()
	fs, err := Build(v.read)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	root := fs.Root()
	if root.FirstSector != 17 || !root.IsDirectory {
		t.Fatalf("unexpected root: %+v", root)
	}

	children, err := fs.GetChildren(root)
	if err != nil {
		t.Fatalf("GetChildren(root): %v", err)
	}
	if len(children) != 2 {
		t.Fatalf("len(children) = %d, want 2 (FILE.TXT, SUBDIR)", len(children))
	}

	var subdir Entry
	found := false
	for _, c := range children {
		if c.Identifier == "SUBDIR" {
			subdir, found = c, true
		}
	}
	if !found {
		t.Fatal("SUBDIR not found among root's children")
	}

	grandchildren, err := fs.GetChildren(subdir)
	if err != nil {
		t.Fatalf("GetChildren(subdir): %v", err)
	}
	if len(grandchildren) != 1 || grandchildren[0].Identifier != "NESTED.TXT" {
		t.Fatalf("unexpected grandchildren: %+v", grandchildren)
	}
}

func TestGetEntryAndGetPath(t *testing.T) {
	v := buildVolume()
	fs, err := Build(v.read)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	entry, ok := fs.GetEntry(19)
	if !ok || entry.Identifier != "NESTED.TXT" {
		t.Fatalf("GetEntry(19) = %+v, %v", entry, ok)
	}

	path, ok := fs.GetPath(19)
	if !ok {
		t.Fatal("GetPath(19) found nothing")
	}
	want := []string{"SUBDIR", "NESTED.TXT"}
	if len(path) != len(want) {
		t.Fatalf("path = %v, want %v", path, want)
	}
	for i := range want {
		if path[i] != want[i] {
			t.Fatalf("path = %v, want %v", path, want)
		}
	}
}

func TestGetEntryMiss(t *testing.T) {
	v := buildVolume()
	fs, err := Build(v.read)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if _, ok := fs.GetEntry(9999); ok {
		t.Fatal("expected no entry at an unused sector")
	}
}
