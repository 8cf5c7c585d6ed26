package fdc

import (
	"testing"

	"github.com/zxspectrum/toolkit/pkg/dsk"
)

// oneTrackImage builds a single-track, single-head image with the given
// sectors already laid out, for feeding directly into a Drive.
func oneTrackImage(sectors []dsk.Sector) *dsk.Image {
	return &dsk.Image{
		TrackCount: 1,
		HeadCount:  1,
		Tracks:     [][]dsk.Track{{{Cyl: 0, Head: 0, Sectors: sectors}}},
	}
}

func plainSector(id byte, fill byte) dsk.Sector {
	data := make([]byte, 512)
	for i := range data {
		data[i] = fill
	}
	return dsk.Sector{Cyl: 0, Head: 0, ID: id, SizeCode: 2, Data: data}
}

func TestMSRIdleHasRQMOnly(t *testing.T) {
	c := New()
	if got := c.MSR(); got != msrRQM {
		t.Fatalf("idle MSR = %#x, want %#x", got, msrRQM)
	}
}

func TestSenseDriveStatusNoDiskPresent(t *testing.T) {
	c := New()
	c.WriteData(0x04) // opcode
	c.WriteData(0x00) // HD/US
	st3 := c.ReadData()
	if st3&(1<<6) == 0 {
		t.Fatal("expected write-protect bit set when no disk is present")
	}
	if c.phase != PhaseIdle {
		t.Fatalf("phase after draining 1-byte result = %v, want idle", c.phase)
	}
}

func TestSeekThenSenseInterruptStatus(t *testing.T) {
	c := New()
	c.Drives[0].Image = oneTrackImage([]dsk.Sector{plainSector(1, 0)})
	c.WriteData(0x0F) // Seek
	c.WriteData(0x00) // drive 0, head 0
	c.WriteData(0x00) // target track 0 (only track available)
	if c.phase != PhaseIdle {
		t.Fatal("Seek should return to idle without a result phase")
	}
	c.WriteData(0x08) // Sense Interrupt Status
	st0 := c.ReadData()
	track := c.ReadData()
	if st0&st0SeekEnd == 0 {
		t.Fatal("expected seek-end bit set")
	}
	if track != 0 {
		t.Fatalf("reported track = %d, want 0", track)
	}
}

func TestReadDataSingleSector(t *testing.T) {
	c := New()
	c.Drives[0].Image = oneTrackImage([]dsk.Sector{plainSector(1, 0xAB)})
	c.WriteData(0x06) // Read Data
	c.WriteData(0x00) // HD/US
	c.WriteData(0x00) // C
	c.WriteData(0x00) // H
	c.WriteData(0x01) // R
	c.WriteData(0x02) // N (sizeCode 2 -> 512)
	c.WriteData(0x01) // EOT
	c.WriteData(0x2A) // GPL
	c.WriteData(0xFF) // DTL

	if c.phase != PhaseExecution {
		t.Fatalf("phase = %v, want execution", c.phase)
	}
	for i := 0; i < 512; i++ {
		if b := c.ReadData(); b != 0xAB {
			t.Fatalf("byte %d = %#x, want 0xAB", i, b)
		}
	}
	if c.phase != PhaseResult {
		t.Fatalf("phase after draining data = %v, want result", c.phase)
	}
	st0 := c.ReadData()
	st1 := c.ReadData()
	st2 := c.ReadData()
	_ = c.ReadData() // C
	_ = c.ReadData() // H
	r := c.ReadData()
	_ = c.ReadData() // N
	if st0&st0AbnormalTermination == 0 {
		t.Fatal("TC not connected: expect abnormal termination always set")
	}
	if st1&st1EndOfCylinder == 0 {
		t.Fatal("expected end-of-cylinder since the scan reached EOT cleanly")
	}
	if st2 != 0 {
		t.Fatalf("ST2 = %#x, want 0", st2)
	}
	if r != 2 {
		t.Fatalf("result R = %d, want 2 (last sector ID + 1)", r)
	}
}

func TestReadDataMissingSectorSetsNoData(t *testing.T) {
	c := New()
	c.Drives[0].Image = oneTrackImage([]dsk.Sector{plainSector(1, 0)})
	c.WriteData(0x06)
	c.WriteData(0x00)
	c.WriteData(0x00)
	c.WriteData(0x00)
	c.WriteData(0x05) // R = 5, not present
	c.WriteData(0x02)
	c.WriteData(0x05) // EOT
	c.WriteData(0x2A)
	c.WriteData(0xFF)

	if c.phase != PhaseResult {
		t.Fatalf("phase = %v, want result (nothing matched)", c.phase)
	}
	st0 := c.ReadData()
	st1 := c.ReadData()
	if st0&st0AbnormalTermination == 0 {
		t.Fatal("expected abnormal termination")
	}
	if st1&st1NoData == 0 {
		t.Fatal("expected No Data bit set")
	}
}

func TestReadDataCRCErrorTruncatesMultiSectorScan(t *testing.T) {
	c := New()
	c.Rand = func() float64 { return 0.5 } // randomized bytes read back as byte(0.5*256) = 0x80
	bad := plainSector(1, 0xCD)
	bad.ST1 |= st1CRCError
	good := plainSector(2, 0xEF)
	c.Drives[0].Image = oneTrackImage([]dsk.Sector{bad, good})
	c.WriteData(0x06) // Read Data
	c.WriteData(0x00) // HD/US
	c.WriteData(0x00) // C
	c.WriteData(0x00) // H
	c.WriteData(0x01) // R: start at sector 1 (the bad one)
	c.WriteData(0x02) // N
	c.WriteData(0x02) // EOT: request through sector 2
	c.WriteData(0x2A) // GPL
	c.WriteData(0xFF) // DTL

	for i := 0; i < 512; i++ {
		want := byte(0xCD)
		if i >= 256 {
			want = 0x80 // a CRC-error sector's bytes from offset 256 on are randomized
		}
		if b := c.ReadData(); b != want {
			t.Fatalf("byte %d = %#x, want %#x from the errored sector", i, b, want)
		}
	}
	if c.phase != PhaseResult {
		t.Fatalf("phase after draining data = %v, want result", c.phase)
	}
	st0 := c.ReadData()
	st1 := c.ReadData()
	st2 := c.ReadData()
	_ = c.ReadData() // C
	_ = c.ReadData() // H
	r := c.ReadData()
	if st0&st0AbnormalTermination == 0 {
		t.Fatal("expected abnormal termination")
	}
	if st1&st1CRCError == 0 {
		t.Fatal("expected CRC error bit set in ST1")
	}
	if st2&st2CRCError == 0 {
		t.Fatal("expected CRC error bit set in ST2")
	}
	if r != 2 {
		t.Fatalf("result R = %d, want 2 (the errored sector's ID + 1)", r)
	}
}

func TestWriteDataRoundTrip(t *testing.T) {
	c := New()
	c.Drives[0].Image = oneTrackImage([]dsk.Sector{plainSector(1, 0)})
	c.WriteData(0x05) // Write Data
	c.WriteData(0x00)
	c.WriteData(0x00)
	c.WriteData(0x00)
	c.WriteData(0x01)
	c.WriteData(0x02)
	c.WriteData(0x01) // EOT
	c.WriteData(0x2A)
	c.WriteData(0xFF)

	if c.phase != PhaseExecution || c.dir != dirToFDC {
		t.Fatalf("phase=%v dir=%v, want execution/toFDC", c.phase, c.dir)
	}
	for i := 0; i < 512; i++ {
		c.WriteData(0xCD)
	}
	if c.phase != PhaseResult {
		t.Fatalf("phase after full write = %v, want result", c.phase)
	}
	got := c.Drives[0].Image.Tracks[0][0].Sectors[0].Data
	for i, b := range got {
		if b != 0xCD {
			t.Fatalf("byte %d = %#x, want 0xCD", i, b)
		}
	}
}

func TestUnknownCommandPostsInvalidResult(t *testing.T) {
	c := New()
	c.WriteData(0xFF) // not in the command table (low 5 bits = 0x1F, unassigned)
	if c.phase != PhaseResult {
		t.Fatalf("phase = %v, want result", c.phase)
	}
	if got := c.ReadData(); got != 0x80 {
		t.Fatalf("result = %#x, want 0x80", got)
	}
}

func TestWriteDuringResultAbortsAndRestartsCommand(t *testing.T) {
	c := New()
	c.WriteData(0x04) // Sense Drive Status
	c.WriteData(0x00)
	if c.phase != PhaseResult {
		t.Fatal("expected result phase after Sense Drive Status params")
	}
	c.WriteData(0x04) // abort, restart Sense Drive Status
	c.WriteData(0x01) // drive 1
	if c.phase != PhaseResult {
		t.Fatal("expected the restarted command to itself reach result phase")
	}
}
