package main

import (
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/zxspectrum/toolkit/pkg/z80"
)

func main() {
	var (
		origin  = flag.String("org", "0", "load address of the first byte, decimal or $hex/0xhex")
		length  = flag.Int("n", 0, "bytes to disassemble (default: whole file)")
		offset  = flag.Int("skip", 0, "bytes to skip at the start of the file")
		showHex = flag.Bool("bytes", true, "show the raw opcode bytes in the listing")
		help    = flag.Bool("h", false, "show help")
	)

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "zxdis - Z80 disassembler\n\n")
		fmt.Fprintf(os.Stderr, "Usage: zxdis [options] input.bin\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  zxdis game.bin                  # disassemble from $0000\n")
		fmt.Fprintf(os.Stderr, "  zxdis -org $8000 game.bin       # disassemble as if loaded at $8000\n")
		fmt.Fprintf(os.Stderr, "  zxdis -skip 27 -org $8000 a.sna # skip a 27-byte .SNA header\n")
	}

	flag.Parse()

	if *help {
		flag.Usage()
		return
	}

	if flag.NArg() != 1 {
		fmt.Fprintf(os.Stderr, "Error: exactly one input file required\n")
		flag.Usage()
		os.Exit(1)
	}

	addr, err := parseAddress(*origin)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: bad -org value: %v\n", err)
		os.Exit(1)
	}

	data, err := os.ReadFile(flag.Arg(0))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	if *offset > 0 && *offset < len(data) {
		data = data[*offset:]
	}
	if *length > 0 && *length < len(data) {
		data = data[:*length]
	}

	mem := flatMemory{base: addr, data: data}
	end := addr + uint16(len(data))

	for pc := addr; pc < end; {
		inst, err := z80.Decode(mem, pc)
		if err != nil {
			fmt.Fprintf(os.Stderr, "%04X: %v\n", pc, err)
			pc++
			continue
		}
		printLine(inst, *showHex)
		if inst.Length == 0 {
			break // defensive: Decode never returns a zero-length instruction, but never loop forever either
		}
		pc += uint16(inst.Length)
	}
}

// flatMemory adapts a byte slice loaded at a fixed base address to
// z80.Memory, returning 0 for reads that fall outside the loaded range
// (the tail of a prefix chain cut off at end-of-file reads as NOP).
type flatMemory struct {
	base uint16
	data []byte
}

func (m flatMemory) ReadByte(addr uint16) byte {
	idx := int(addr) - int(m.base)
	if idx < 0 || idx >= len(m.data) {
		return 0
	}
	return m.data[idx]
}

func printLine(inst z80.Instruction, showHex bool) {
	if showHex {
		hex := make([]string, len(inst.Bytes))
		for i, b := range inst.Bytes {
			hex[i] = fmt.Sprintf("%02X", b)
		}
		fmt.Printf("%04X  %-12s %s\n", inst.Addr, strings.Join(hex, " "), inst.Mnemonic)
		return
	}
	fmt.Printf("%04X  %s\n", inst.Addr, inst.Mnemonic)
}

func parseAddress(s string) (uint16, error) {
	s = strings.TrimSpace(s)
	switch {
	case strings.HasPrefix(s, "$"):
		v, err := strconv.ParseUint(s[1:], 16, 16)
		return uint16(v), err
	case strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X"):
		v, err := strconv.ParseUint(s[2:], 16, 16)
		return uint16(v), err
	default:
		v, err := strconv.ParseUint(s, 10, 16)
		return uint16(v), err
	}
}
