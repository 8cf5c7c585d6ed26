package dsk

import (
	"bytes"
	"testing"
)

// buildStandardImage assembles a minimal single-track, single-sector
// standard-format DSK image for exercising Parse.
func buildStandardImage(sectorData []byte, sizeCode byte) []byte {
	trackSize := trackInfoSize + len(sectorData)
	buf := make([]byte, 0x100+trackSize)

	copy(buf, standardSignature)
	buf[0x30] = 1 // one track
	buf[0x31] = 1 // one head
	buf[0x32] = byte(trackSize)
	buf[0x33] = byte(trackSize >> 8)

	track := buf[0x100:]
	copy(track, "Track-Info\r\n")
	track[0x10] = 0 // cyl
	track[0x11] = 0 // head
	track[0x15] = 1 // one sector

	entry := track[sectorInfoOffset:]
	entry[0] = 0    // cyl
	entry[1] = 0    // head
	entry[2] = 0xC1 // sector ID
	entry[3] = sizeCode
	entry[4] = 0 // ST1
	entry[5] = 0 // ST2

	copy(track[trackInfoSize:], sectorData)
	return buf
}

func TestParseStandardImageSingleSector(t *testing.T) {
	payload := bytes.Repeat([]byte{0x42}, 512)
	img, err := Parse(buildStandardImage(payload, 2)) // sizeCode 2 -> 512 bytes
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if img.TrackCount != 1 || img.HeadCount != 1 {
		t.Fatalf("geometry = %d tracks, %d heads", img.TrackCount, img.HeadCount)
	}
	sec := img.Tracks[0][0].Sectors[0]
	if sec.ID != 0xC1 {
		t.Fatalf("sector ID = %#x, want 0xC1", sec.ID)
	}
	if !bytes.Equal(sec.Data, payload) {
		t.Fatalf("sector data mismatch")
	}
	if sec.WeakMap != nil {
		t.Fatal("expected no weak map for a clean single copy")
	}
}

func TestParseRejectsUnknownSignature(t *testing.T) {
	_, err := Parse(bytes.Repeat([]byte{0}, 0x200))
	if err == nil {
		t.Fatal("expected an error for an unrecognized signature")
	}
}

func TestWeakSectorDetection(t *testing.T) {
	nominal := 128
	copyA := bytes.Repeat([]byte{0x11}, nominal)
	copyB := append([]byte(nil), copyA...)
	copyB[10] = 0x99 // one disagreeing byte

	raw := append(append([]byte(nil), copyA...), copyB...)
	data, weak := splitWeakCopies(raw, nominal)

	if !bytes.Equal(data, copyA) {
		t.Fatal("expected first copy to be kept as baseline")
	}
	if weak == nil || !weak[10] {
		t.Fatal("expected byte 10 to be flagged weak")
	}
	for i, w := range weak {
		if i != 10 && w {
			t.Fatalf("unexpected weak flag at byte %d", i)
		}
	}
}

func TestWeakSectorClearedWhenCopiesAgree(t *testing.T) {
	nominal := 64
	one := bytes.Repeat([]byte{0x7E}, nominal)
	raw := append(append([]byte(nil), one...), one...)
	data, weak := splitWeakCopies(raw, nominal)
	if !bytes.Equal(data, one) || weak != nil {
		t.Fatal("identical copies should clear the weak map")
	}
}

func TestSplitWeakCopiesIgnoresNonMultiple(t *testing.T) {
	raw := bytes.Repeat([]byte{1}, 200)
	data, weak := splitWeakCopies(raw, 128)
	if len(data) != 200 || weak != nil {
		t.Fatal("a non-multiple length should be returned unchanged")
	}
}
