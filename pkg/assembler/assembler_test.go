package assembler

import (
	"testing"

	"github.com/zxspectrum/toolkit/pkg/machine"
	"github.com/zxspectrum/toolkit/pkg/vfs"
)

func newTestAssembler() *Assembler {
	return New(vfs.NewMemFS(), machine.Lookup("48k"))
}

func TestAssembleSimpleProgram(t *testing.T) {
	a := newTestAssembler()
	src := `
		ORG 32768
	start:
		LD A,1
		LD B,2
		ADD A,B
		HALT
	`
	res, err := a.AssembleSource("main.asm", src, nil)
	if err != nil {
		t.Fatalf("AssembleSource: %v", err)
	}
	want := []byte{0x3E, 0x01, 0x06, 0x02, 0x80, 0x76}
	if string(res.Binary) != string(want) {
		t.Fatalf("binary = % X, want % X", res.Binary, want)
	}
	if res.Origin != 32768 {
		t.Fatalf("origin = %d, want 32768", res.Origin)
	}
	if res.Symbols["start"] != 32768 {
		t.Fatalf("start = %d, want 32768", res.Symbols["start"])
	}
}

func TestForwardReferenceResolvesAcrossPasses(t *testing.T) {
	a := newTestAssembler()
	src := `
		ORG 32768
		JP target
		NOP
	target:
		HALT
	`
	res, err := a.AssembleSource("main.asm", src, nil)
	if err != nil {
		t.Fatalf("AssembleSource: %v", err)
	}
	want := []byte{0xC3, 0x04, 0x80, 0x00, 0x76}
	if string(res.Binary) != string(want) {
		t.Fatalf("binary = % X, want % X", res.Binary, want)
	}
}

func TestEquRedefinitionWithDifferentValueReportsDiagnostic(t *testing.T) {
	a := newTestAssembler()
	src := `
		FOO: EQU 1
		FOO: EQU 2
	`
	res, err := a.AssembleSource("main.asm", src, nil)
	if err != nil {
		t.Fatalf("AssembleSource: %v", err)
	}
	if len(res.Errors) == 0 {
		t.Fatal("expected a redefinition diagnostic in res.Errors")
	}
}

func TestOutOfRangeJRWarnsAndWrapsRatherThanFailing(t *testing.T) {
	a := newTestAssembler()
	src := `
		ORG 0
		JR 130
	`
	res, err := a.AssembleSource("main.asm", src, nil)
	if err != nil {
		t.Fatalf("AssembleSource: %v", err)
	}
	want := []byte{0x18, 0x80}
	if string(res.Binary) != string(want) {
		t.Fatalf("binary = % X, want % X", res.Binary, want)
	}
	foundWarning := false
	for _, e := range res.Errors {
		if e.Warning {
			foundWarning = true
		}
	}
	if !foundWarning {
		t.Fatalf("expected a warning diagnostic for the out-of-range JR, got %v", res.Errors)
	}
}

func TestCommandLineDefine(t *testing.T) {
	a := newTestAssembler()
	src := `
		ORG 32768
		DB VERSION
	`
	res, err := a.AssembleSource("main.asm", src, map[string]int32{"VERSION": 7})
	if err != nil {
		t.Fatalf("AssembleSource: %v", err)
	}
	if len(res.Binary) != 1 || res.Binary[0] != 7 {
		t.Fatalf("binary = %v, want [7]", res.Binary)
	}
}

func TestUndefinedSymbolNonConvergenceErrors(t *testing.T) {
	a := newTestAssembler()
	src := `
		ORG 32768
		DB NEVER_DEFINED
	`
	_, err := a.AssembleSource("main.asm", src, nil)
	if err == nil {
		t.Fatal("expected a non-convergence error for a symbol that is never defined")
	}
}

func TestIncludeDirectiveRecursesThroughFS(t *testing.T) {
	fs := vfs.NewMemFS()
	fs.Files["defs.inc"] = []byte("FOO EQU 42\n")
	a := New(fs, machine.Lookup("48k"))
	src := `
		INCLUDE "defs.inc"
		ORG 32768
		DB FOO
	`
	res, err := a.AssembleSource("main.asm", src, nil)
	if err != nil {
		t.Fatalf("AssembleSource: %v", err)
	}
	if len(res.Binary) != 1 || res.Binary[0] != 42 {
		t.Fatalf("binary = %v, want [42]", res.Binary)
	}
}

func TestCircularIncludeReportsDiagnostic(t *testing.T) {
	fs := vfs.NewMemFS()
	fs.Files["a.inc"] = []byte("INCLUDE \"b.inc\"\n")
	fs.Files["b.inc"] = []byte("INCLUDE \"a.inc\"\n")
	a := New(fs, machine.Lookup("48k"))
	res, err := a.AssembleSource("a.inc", string(fs.Files["a.inc"]), nil)
	if err != nil {
		t.Fatalf("AssembleSource: %v", err)
	}
	if len(res.Errors) == 0 {
		t.Fatal("expected a circular-include diagnostic in res.Errors")
	}
}
