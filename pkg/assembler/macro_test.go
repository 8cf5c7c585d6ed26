package assembler

import "testing"

func TestMacroExpansionSubstitutesArguments(t *testing.T) {
	a := newTestAssembler()
	src := `
		MACRO LOADBOTH val1, val2
			LD A,val1
			LD B,val2
		ENDM
		ORG 32768
		LOADBOTH 1,2
	`
	res, err := a.AssembleSource("main.asm", src, nil)
	if err != nil {
		t.Fatalf("AssembleSource: %v", err)
	}
	want := []byte{0x3E, 0x01, 0x06, 0x02}
	if string(res.Binary) != string(want) {
		t.Fatalf("binary = % X, want % X", res.Binary, want)
	}
}

func TestMacroLocalLabelsAreMangledPerCall(t *testing.T) {
	a := newTestAssembler()
	src := `
		MACRO SKIPZERO
			JR NZ,skip
			NOP
		skip:
			HALT
		ENDM
		ORG 32768
		SKIPZERO
		SKIPZERO
	`
	res, err := a.AssembleSource("main.asm", src, nil)
	if err != nil {
		t.Fatalf("AssembleSource: %v", err)
	}
	if len(res.Binary) != 8 {
		t.Fatalf("binary length = %d, want 8", len(res.Binary))
	}
	if _, ok := res.Symbols["skip_m1"]; !ok {
		t.Fatalf("expected mangled label skip_m1 in symbols: %v", res.Symbols)
	}
	if _, ok := res.Symbols["skip_m2"]; !ok {
		t.Fatalf("expected mangled label skip_m2 in symbols: %v", res.Symbols)
	}
}

func TestReptExpandsBodyNTimes(t *testing.T) {
	a := newTestAssembler()
	src := `
		ORG 32768
		REPT 3
			NOP
		ENDR
		HALT
	`
	res, err := a.AssembleSource("main.asm", src, nil)
	if err != nil {
		t.Fatalf("AssembleSource: %v", err)
	}
	want := []byte{0x00, 0x00, 0x00, 0x76}
	if string(res.Binary) != string(want) {
		t.Fatalf("binary = % X, want % X", res.Binary, want)
	}
}
