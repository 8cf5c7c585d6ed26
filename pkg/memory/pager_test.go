package memory

import (
	"testing"

	"github.com/zxspectrum/toolkit/pkg/machine"
)

func TestFortyEightKMappingIsFixed(t *testing.T) {
	m := New(machine.Lookup("48k"))
	m.LoadROM(0, []byte{0xAA})
	m.ram[0][0] = 0x11 // RAM 5 at 0x4000
	m.ram[1][0] = 0x22 // RAM 2 at 0x8000
	m.ram[2][0] = 0x33 // RAM 0 at 0xC000

	if got := m.ReadByte(0x0000); got != 0xAA {
		t.Errorf("ROM byte = %#x, want 0xAA", got)
	}
	if got := m.ReadByte(0x4000); got != 0x11 {
		t.Errorf("0x4000 = %#x, want 0x11", got)
	}
	if got := m.ReadByte(0x8000); got != 0x22 {
		t.Errorf("0x8000 = %#x, want 0x22", got)
	}
	if got := m.ReadByte(0xC000); got != 0x33 {
		t.Errorf("0xC000 = %#x, want 0x33", got)
	}

	m.WriteByte(0x0000, 0xFF) // ROM write, dropped
	if got := m.ReadByte(0x0000); got != 0xAA {
		t.Errorf("ROM write should be dropped, got %#x", got)
	}
}

func Test128KPagingPort7FFD(t *testing.T) {
	m := New(machine.Lookup("128k"))
	m.ram[3][0] = 0x99
	m.WritePort(0x7FFD, 0x03) // select RAM page 3
	if got := m.ReadByte(0xC000); got != 0x99 {
		t.Errorf("after paging to bank 3, 0xC000 = %#x, want 0x99", got)
	}
	if m.ScreenBank() != 5 {
		t.Errorf("screen bank = %d, want 5", m.ScreenBank())
	}
	m.WritePort(0x7FFD, 0x08) // screen bank -> 7
	if m.ScreenBank() != 7 {
		t.Errorf("screen bank = %d, want 7", m.ScreenBank())
	}
}

func Test128KPagingLockLatches(t *testing.T) {
	m := New(machine.Lookup("128k"))
	m.WritePort(0x7FFD, 0x20|0x02) // lock with bank 2 selected
	if !m.PagingDisabled() {
		t.Fatal("expected paging to be disabled after bit 5 set")
	}
	m.WritePort(0x7FFD, 0x05) // attempt to change bank after lock
	if m.CurRAMBank() != 2 {
		t.Errorf("bank changed after lock: got %d, want 2 (unchanged)", m.CurRAMBank())
	}
}

func TestPlus2ASpecialPagingConfigurations(t *testing.T) {
	m := New(machine.Lookup("plus2a"))
	m.WritePort(0x1FFD, 0x01) // config 0: banks 0,1,2,3
	if !m.specialPagingMode {
		t.Fatal("expected special paging mode to engage")
	}
	m.ram[1][0] = 0x77
	if got := m.ReadByte(0x4000); got != 0x77 {
		t.Errorf("special paging slot 1 = %#x, want RAM1 byte 0x77", got)
	}
}

func TestScorpionBankSelectWithinRange(t *testing.T) {
	m := New(machine.Lookup("scorpion"))
	m.WritePort(0x7FFD, 0x07) // request bank 7, within 16 pages so no wrap
	if m.CurRAMBank() != 7 {
		t.Errorf("scorpion bank = %d, want 7", m.CurRAMBank())
	}
}

func TestContentionFortyEightK(t *testing.T) {
	m := New(machine.Lookup("48k"))
	if !m.IsContended(0x4000) {
		t.Error("0x4000 should be contended on 48K")
	}
	if m.IsContended(0x8000) {
		t.Error("0x8000 should not be contended on 48K")
	}
}

func TestContention128KOddBank(t *testing.T) {
	m := New(machine.Lookup("128k"))
	m.WritePort(0x7FFD, 0x01) // bank 1 (odd) is contended
	if !m.IsContended(0xC000) {
		t.Error("odd RAM bank at 0xC000 should be contended")
	}
	m.WritePort(0x7FFD, 0x02) // bank 2 (even) is not
	if m.IsContended(0xC000) {
		t.Error("even RAM bank at 0xC000 should not be contended")
	}
}

func TestPentagonHasNoContention(t *testing.T) {
	m := New(machine.Lookup("pentagon128"))
	if m.IsContended(0x4000) {
		t.Error("Pentagon should never report contention")
	}
}

func TestPentagon1024RAMOverROMReadsBackWhatWasWritten(t *testing.T) {
	m := New(machine.Lookup("pentagon1024"))
	m.LoadROM(0, []byte{0xAA, 0xAA, 0xAA, 0xAA})
	m.WritePort(0xEFF7, 0x08) // bit 3: RAM-over-ROM mode
	m.WriteByte(0x0000, 0x42)
	if got := m.ReadByte(0x0000); got != 0x42 {
		t.Errorf("read back %#02x after RAM-over-ROM write, want 0x42", got)
	}
}

func TestScorpionRAMOverROMReadsBackWhatWasWritten(t *testing.T) {
	m := New(machine.Lookup("scorpion"))
	m.LoadROM(0, []byte{0xAA, 0xAA, 0xAA, 0xAA})
	m.WritePort(0x1FFD, 0x01) // bit 0: RAM-over-ROM mode
	m.WriteByte(0x0000, 0x7F)
	if got := m.ReadByte(0x0000); got != 0x7F {
		t.Errorf("read back %#02x after RAM-over-ROM write, want 0x7F", got)
	}
}
