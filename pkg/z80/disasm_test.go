package z80

import "testing"

type flatMemory []byte

func (m flatMemory) ReadByte(addr uint16) byte {
	if int(addr) >= len(m) {
		return 0
	}
	return m[addr]
}

func decodeAt(t *testing.T, bytes []byte, want string) Instruction {
	t.Helper()
	mem := flatMemory(bytes)
	insn, err := Decode(mem, 0)
	if err != nil {
		t.Fatalf("Decode(%v): unexpected error: %v", bytes, err)
	}
	if insn.Mnemonic != want {
		t.Errorf("Decode(%v) = %q, want %q", bytes, insn.Mnemonic, want)
	}
	return insn
}

func TestDecodeBasicInstructions(t *testing.T) {
	cases := []struct {
		bytes []byte
		want  string
	}{
		{[]byte{0x00}, "NOP"},
		{[]byte{0x76}, "HALT"},
		{[]byte{0x3E, 0x42}, "LD A,42h"},
		{[]byte{0x21, 0x34, 0x12}, "LD HL,1234h"},
		{[]byte{0x7E}, "LD A,(HL)"},
		{[]byte{0x80}, "ADD A,B"},
		{[]byte{0xC3, 0x00, 0x80}, "JP 8000h"},
		{[]byte{0xCD, 0x00, 0x80}, "CALL 8000h"},
		{[]byte{0xC9}, "RET"},
		{[]byte{0xF3}, "DI"},
		{[]byte{0xFB}, "EI"},
	}
	for _, tt := range cases {
		decodeAt(t, tt.bytes, tt.want)
	}
}

func TestDecodeUndocumentedIndexHalves(t *testing.T) {
	insn := decodeAt(t, []byte{0xDD, 0x26, 0x10}, "LD IXH,10h")
	if insn.Length != 3 {
		t.Errorf("length = %d, want 3", insn.Length)
	}
	decodeAt(t, []byte{0xFD, 0x6C}, "LD IYL,IYH")
}

func TestDecodeIndexedMemoryDisplacement(t *testing.T) {
	decodeAt(t, []byte{0xDD, 0x7E, 0x05}, "LD A,(IX+05h)")
	decodeAt(t, []byte{0xFD, 0x77, 0xFE}, "LD (IY-02h),A")
}

func TestDecodeRedundantPrefixDegradesToDefb(t *testing.T) {
	mem := flatMemory{0xDD, 0xDD, 0x00}
	insn, err := Decode(mem, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if insn.Length != 1 {
		t.Fatalf("redundant DD should be a 1-byte DEFB, got length %d", insn.Length)
	}

	mem2 := flatMemory{0xED, 0xCB, 0x00, 0x00}
	insn2, err := Decode(mem2, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if insn2.Length != 1 {
		t.Fatalf("ED followed by CB should be a 1-byte DEFB, got length %d", insn2.Length)
	}
}

func TestDecodeDDFDCBIndexedBitOps(t *testing.T) {
	insn := decodeAt(t, []byte{0xDD, 0xCB, 0x03, 0x46}, "BIT 0,(IX+03h)")
	if insn.Length != 4 {
		t.Errorf("length = %d, want 4", insn.Length)
	}
	// Undocumented form: RLC (IY+d),B also copies the result into B.
	decodeAt(t, []byte{0xFD, 0xCB, 0x02, 0x00}, "RLC (IY+02h),B")
}

func TestDecodeEDBlockOps(t *testing.T) {
	decodeAt(t, []byte{0xED, 0xB0}, "LDIR")
	decodeAt(t, []byte{0xED, 0xA1}, "CPI")
}

func TestDecodeUndefinedEDIsTwoByteNop(t *testing.T) {
	insn := decodeAt(t, []byte{0xED, 0x00}, "NOP")
	if insn.Length != 2 {
		t.Errorf("undefined ED opcode length = %d, want 2", insn.Length)
	}
}

func TestDecodeRelativeJumpRef(t *testing.T) {
	mem := flatMemory{0x18, 0x02, 0x00, 0x00}
	insn, err := Decode(mem, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(insn.Refs) != 1 || insn.Refs[0].Target != 4 {
		t.Fatalf("JR refs = %+v, want target 4", insn.Refs)
	}
}

func TestDecodeCallRefKind(t *testing.T) {
	mem := flatMemory{0xCD, 0x00, 0x90}
	insn, err := Decode(mem, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(insn.Refs) != 1 || insn.Refs[0].Kind != RefCall || insn.Refs[0].Target != 0x9000 {
		t.Fatalf("CALL refs = %+v", insn.Refs)
	}
}

func TestDecodeRSTRef(t *testing.T) {
	mem := flatMemory{0xEF} // RST 28h
	insn, err := Decode(mem, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(insn.Refs) != 1 || insn.Refs[0].Kind != RefRestart || insn.Refs[0].Target != 0x28 {
		t.Fatalf("RST refs = %+v", insn.Refs)
	}
}
