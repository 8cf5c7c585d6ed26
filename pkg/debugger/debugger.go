// Package debugger provides an interactive command loop for inspecting a
// machine's paged address space and a mounted disk image, without running
// any CPU: the same bufio.Scanner-driven "prompt, parse, dispatch" shape the
// rest of this toolkit's command-line tools use, applied to offline state
// inspection instead of instruction stepping.
package debugger

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/zxspectrum/toolkit/pkg/dsk"
	"github.com/zxspectrum/toolkit/pkg/machine"
	"github.com/zxspectrum/toolkit/pkg/memory"
	"github.com/zxspectrum/toolkit/pkg/z80"
)

// Monitor is an interactive session over one machine's memory state and an
// optionally mounted disk image.
type Monitor struct {
	Mem *memory.MemoryState

	disk    *dsk.Image
	spec    dsk.DiskSpec
	entries []dsk.Entry

	disasmAddr uint16

	input  *bufio.Scanner
	output io.Writer
}

// Config holds monitor construction options.
type Config struct {
	Input  io.Reader
	Output io.Writer
}

// New creates a Monitor over a freshly allocated address space for the
// given machine profile. Callers load ROM/RAM contents through Mem (LoadROM,
// WriteByte) and mount a disk image with MountDisk afterward.
func New(profile machine.Profile, config *Config) *Monitor {
	if config == nil {
		config = &Config{}
	}
	if config.Input == nil {
		config.Input = os.Stdin
	}
	if config.Output == nil {
		config.Output = os.Stdout
	}
	return &Monitor{
		Mem:    memory.New(profile),
		input:  bufio.NewScanner(config.Input),
		output: config.Output,
	}
}

// MountDisk parses raw .dsk bytes and reads its CP/M/+3DOS directory, making
// the "dir" and "cat" commands available.
func (m *Monitor) MountDisk(data []byte) error {
	img, err := dsk.Parse(data)
	if err != nil {
		return fmt.Errorf("parsing disk image: %w", err)
	}
	spec := dsk.ReadSpec(img)
	entries, err := dsk.ReadDirectory(img, spec)
	if err != nil {
		return fmt.Errorf("reading directory: %w", err)
	}
	m.disk = img
	m.spec = spec
	m.entries = entries
	return nil
}

// Run drives the read-eval-print loop until the input is exhausted or the
// user types "quit".
func (m *Monitor) Run() error {
	m.printBanner()
	for {
		fmt.Fprint(m.output, "mon> ")
		if !m.input.Scan() {
			break
		}
		line := strings.TrimSpace(m.input.Text())
		if line == "" {
			continue
		}
		if line == "q" || line == "quit" || line == "exit" {
			break
		}
		if err := m.handleCommand(line); err != nil {
			fmt.Fprintf(m.output, "error: %v\n", err)
		}
	}
	return nil
}

func (m *Monitor) printBanner() {
	fmt.Fprintf(m.output, "zxmon - %s memory/disk monitor\n", m.Mem.Profile.Name)
	fmt.Fprintln(m.output, "type 'help' for commands, 'quit' to exit")
}

func (m *Monitor) handleCommand(line string) error {
	parts := strings.Fields(line)
	cmd := parts[0]
	args := parts[1:]

	switch cmd {
	case "h", "help", "?":
		m.printHelp()

	case "page", "pager":
		m.printPagerState()

	case "peek":
		return m.cmdPeek(args)

	case "poke":
		return m.cmdPoke(args)

	case "port":
		return m.cmdPort(args)

	case "disasm", "d":
		return m.cmdDisasm(args)

	case "dir", "ls":
		m.printDirectory()

	case "cat":
		return m.cmdCat(args)

	default:
		return fmt.Errorf("unknown command %q (try 'help')", cmd)
	}
	return nil
}

func (m *Monitor) printHelp() {
	fmt.Fprintln(m.output, "commands:")
	fmt.Fprintln(m.output, "  page                  show paging/contention state")
	fmt.Fprintln(m.output, "  peek <addr>           read one byte from mapped memory")
	fmt.Fprintln(m.output, "  poke <addr> <val>     write one byte to mapped memory")
	fmt.Fprintln(m.output, "  port <port> <val>     write to a paging I/O port (e.g. 7FFD)")
	fmt.Fprintln(m.output, "  disasm <addr> [n]     disassemble n instructions (default 8)")
	fmt.Fprintln(m.output, "  dir                   list the mounted disk's directory")
	fmt.Fprintln(m.output, "  cat <name>            hex-dump a directory entry's contents")
	fmt.Fprintln(m.output, "  quit                  exit")
}

func (m *Monitor) printPagerState() {
	fmt.Fprintf(m.output, "machine:        %s (%s)\n", m.Mem.Profile.Name, m.Mem.Profile.PagingModel)
	fmt.Fprintf(m.output, "RAM bank:       %d\n", m.Mem.CurRAMBank())
	fmt.Fprintf(m.output, "screen bank:    %d\n", m.Mem.ScreenBank())
	fmt.Fprintf(m.output, "paging locked:  %v\n", m.Mem.PagingDisabled())
}

func (m *Monitor) cmdPeek(args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: peek <addr>")
	}
	addr, err := parseAddress(args[0])
	if err != nil {
		return err
	}
	fmt.Fprintf(m.output, "%04X: %02X\n", addr, m.Mem.ReadByte(addr))
	return nil
}

func (m *Monitor) cmdPoke(args []string) error {
	if len(args) != 2 {
		return fmt.Errorf("usage: poke <addr> <val>")
	}
	addr, err := parseAddress(args[0])
	if err != nil {
		return err
	}
	val, err := parseAddress(args[1])
	if err != nil {
		return err
	}
	m.Mem.WriteByte(addr, byte(val))
	return nil
}

func (m *Monitor) cmdPort(args []string) error {
	if len(args) != 2 {
		return fmt.Errorf("usage: port <port> <val>")
	}
	port, err := parseAddress(args[0])
	if err != nil {
		return err
	}
	val, err := parseAddress(args[1])
	if err != nil {
		return err
	}
	m.Mem.WritePort(port, byte(val))
	return nil
}

func (m *Monitor) cmdDisasm(args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: disasm <addr> [count]")
	}
	addr, err := parseAddress(args[0])
	if err != nil {
		return err
	}
	count := 8
	if len(args) > 1 {
		n, err := strconv.Atoi(args[1])
		if err != nil {
			return fmt.Errorf("bad count %q: %w", args[1], err)
		}
		count = n
	}
	pc := addr
	for i := 0; i < count; i++ {
		inst, err := z80.Decode(m.Mem, pc)
		if err != nil {
			return err
		}
		hex := make([]string, len(inst.Bytes))
		for j, b := range inst.Bytes {
			hex[j] = fmt.Sprintf("%02X", b)
		}
		fmt.Fprintf(m.output, "%04X  %-12s %s\n", inst.Addr, strings.Join(hex, " "), inst.Mnemonic)
		pc += uint16(inst.Length)
	}
	m.disasmAddr = pc
	return nil
}

func (m *Monitor) printDirectory() {
	if m.disk == nil {
		fmt.Fprintln(m.output, "no disk mounted")
		return
	}
	if len(m.entries) == 0 {
		fmt.Fprintln(m.output, "(empty directory)")
		return
	}
	for _, e := range m.entries {
		name := strings.TrimSpace(e.Name) + "." + strings.TrimSpace(e.Ext)
		fmt.Fprintf(m.output, "%-2d %-12s %8d bytes\n", e.User, name, e.Size)
	}
}

func (m *Monitor) cmdCat(args []string) error {
	if m.disk == nil {
		return fmt.Errorf("no disk mounted")
	}
	if len(args) != 1 {
		return fmt.Errorf("usage: cat <name>")
	}
	entry, ok := m.findEntry(args[0])
	if !ok {
		return fmt.Errorf("no such file: %s", args[0])
	}
	data, err := dsk.ReadFile(m.disk, m.spec, entry)
	if err != nil {
		return err
	}
	for i := 0; i < len(data); i += 16 {
		end := i + 16
		if end > len(data) {
			end = len(data)
		}
		fmt.Fprintf(m.output, "%04X  % X\n", i, data[i:end])
	}
	return nil
}

func (m *Monitor) findEntry(name string) (dsk.Entry, bool) {
	name = strings.ToUpper(strings.TrimSpace(name))
	for _, e := range m.entries {
		full := strings.ToUpper(strings.TrimSpace(e.Name) + "." + strings.TrimSpace(e.Ext))
		if full == name || strings.ToUpper(strings.TrimSpace(e.Name)) == name {
			return e, true
		}
	}
	return dsk.Entry{}, false
}

func parseAddress(s string) (uint16, error) {
	s = strings.TrimSpace(s)
	switch {
	case strings.HasPrefix(s, "$"):
		v, err := strconv.ParseUint(s[1:], 16, 16)
		return uint16(v), err
	case strings.HasPrefix(s, "0x"), strings.HasPrefix(s, "0X"):
		v, err := strconv.ParseUint(s[2:], 16, 16)
		return uint16(v), err
	default:
		v, err := strconv.ParseUint(s, 16, 16)
		if err != nil {
			return 0, fmt.Errorf("bad address %q: %w", s, err)
		}
		return uint16(v), nil
	}
}
