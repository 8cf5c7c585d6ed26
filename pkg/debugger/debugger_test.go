package debugger

import (
	"bytes"
	"strings"
	"testing"

	"github.com/zxspectrum/toolkit/pkg/dsk"
	"github.com/zxspectrum/toolkit/pkg/machine"
)

func newTestMonitor(t *testing.T, input string) (*Monitor, *bytes.Buffer) {
	t.Helper()
	var out bytes.Buffer
	m := New(machine.Lookup("48k"), &Config{Input: strings.NewReader(input), Output: &out})
	return m, &out
}

func TestPeekReadsMemory(t *testing.T) {
	m, out := newTestMonitor(t, "poke 8000 2A\npeek 8000\nquit\n")
	if err := m.Run(); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !strings.Contains(out.String(), "8000: 2A") {
		t.Fatalf("output missing peeked byte: %s", out.String())
	}
}

func TestDisasmWalksInstructions(t *testing.T) {
	m := New(machine.Lookup("48k"), nil)
	m.Mem.WriteByte(0x8000, 0x00) // NOP
	m.Mem.WriteByte(0x8001, 0x3E) // LD A,n
	m.Mem.WriteByte(0x8002, 0x05)

	var out bytes.Buffer
	m.output = &out
	if err := m.cmdDisasm([]string{"8000", "2"}); err != nil {
		t.Fatalf("cmdDisasm: %v", err)
	}
	text := out.String()
	if !strings.Contains(text, "NOP") || !strings.Contains(text, "LD A") {
		t.Fatalf("unexpected disassembly: %s", text)
	}
	if m.disasmAddr != 0x8003 {
		t.Fatalf("disasmAddr = %04X, want 8003", m.disasmAddr)
	}
}

func TestPagerStateReportsMachineAndBanks(t *testing.T) {
	m := New(machine.Lookup("128k"), nil)
	m.Mem.WritePort(0x7FFD, 0x03) // select RAM bank 3

	var out bytes.Buffer
	m.output = &out
	m.printPagerState()

	if !strings.Contains(out.String(), "RAM bank:       3") {
		t.Fatalf("pager state missing selected bank: %s", out.String())
	}
}

func TestDirectoryListsAndFindsMountedEntries(t *testing.T) {
	m := New(machine.Lookup("48k"), nil)
	m.disk = &dsk.Image{}
	m.entries = []dsk.Entry{
		{User: 0, Name: "GAME", Ext: "BIN", Size: 16384},
	}

	var out bytes.Buffer
	m.output = &out
	m.printDirectory()
	if !strings.Contains(out.String(), "GAME.BIN") {
		t.Fatalf("directory listing missing entry: %s", out.String())
	}

	entry, ok := m.findEntry("game.bin")
	if !ok || entry.Size != 16384 {
		t.Fatalf("findEntry failed: %+v, ok=%v", entry, ok)
	}
}

func TestUnknownCommandReportsError(t *testing.T) {
	m, out := newTestMonitor(t, "bogus\nquit\n")
	if err := m.Run(); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !strings.Contains(out.String(), "unknown command") {
		t.Fatalf("expected unknown-command error, got: %s", out.String())
	}
}
