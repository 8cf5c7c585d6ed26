// Package z80 implements the shared Z80 opcode decomposition used by both
// the disassembler (bytes -> mnemonic) and the encoder (mnemonic -> bytes),
// plus the DD/FD/ED/CB prefix handling common to both directions.
//
// The decomposition follows the classical (x,y,z,p,q) breakdown of a Z80
// opcode byte (Young, "The Undocumented Z80 Documented"): x = bits 6-7,
// y = bits 3-5, z = bits 0-2, p = y>>1, q = y&1. Keeping one table shared
// between encode and decode is what keeps undocumented forms from
// diverging between the two directions.
package z80

// PrefixCB, PrefixED are the two single-byte prefixes; DD/FD are the index
// prefixes (substituting IX/IY for HL).
const (
	PrefixCB = 0xCB
	PrefixED = 0xED
	PrefixDD = 0xDD
	PrefixFD = 0xFD
)

func decompose(op byte) (x, y, z, p, q int) {
	x = int(op>>6) & 3
	y = int(op>>3) & 7
	z = int(op) & 7
	p = y >> 1
	q = y & 1
	return
}

// r8 names 8-bit register operands r[z]/r[y] in the main/CB tables, index 6
// being the (HL) memory operand.
var r8 = [8]string{"B", "C", "D", "E", "H", "L", "(HL)", "A"}

// r8Indexed is r8 with H/L/(HL) substituted for a DD/FD prefix's index
// register halves, used only where the instruction has no explicit memory
// operand (LD forms that touch memory must not rename H/L — callers handle
// the (HL)->(IR+d) substitution separately).
func r8Indexed(idx string) [8]string {
	t := r8
	switch idx {
	case "IX":
		t[4], t[5] = "IXH", "IXL"
	case "IY":
		t[4], t[5] = "IYH", "IYL"
	}
	return t
}

var rp = [4]string{"BC", "DE", "HL", "SP"}
var rp2 = [4]string{"BC", "DE", "HL", "AF"}

func rpIndexed(idx string) [4]string {
	t := rp
	if idx != "" {
		t[2] = idx
	}
	return t
}

func rp2Indexed(idx string) [4]string {
	t := rp2
	if idx != "" {
		t[2] = idx
	}
	return t
}

var condNames = [8]string{"NZ", "Z", "NC", "C", "PO", "PE", "P", "M"}

var aluNames = [8]string{"ADD", "ADC", "SUB", "SBC", "AND", "XOR", "OR", "CP"}

var rotNames = [8]string{"RLC", "RRC", "RL", "RR", "SLA", "SRA", "SLL", "SRL"}

// imTable gives the interrupt mode selected by ED 0x46+y*8's y value.
var imTable = [8]int{0, 0, 1, 2, 0, 0, 1, 2}

// edZ7Names names the z=7 sub-table of the ED x=1 block by y.
var edZ7Names = [8]string{"LD I,A", "LD R,A", "LD A,I", "LD A,R", "RRD", "RLD", "NOP", "NOP"}

// edBlockNames[row][col]: row = y-4 (y in 4..7), col = z (0..3).
var edBlockNames = [4][4]string{
	{"LDI", "CPI", "INI", "OUTI"},
	{"LDD", "CPD", "IND", "OUTD"},
	{"LDIR", "CPIR", "INIR", "OTIR"},
	{"LDDR", "CPDR", "INDR", "OTDR"},
}

// conditionByName/regByName invert the tables above for the encoder.
func conditionByName(s string) (int, bool) {
	for i, n := range condNames {
		if n == s {
			return i, true
		}
	}
	return 0, false
}

func reg8ByName(s string) (int, bool) {
	for i, n := range r8 {
		if n == s {
			return i, true
		}
	}
	return 0, false
}

func reg16ByName(s string) (int, bool) {
	for i, n := range rp {
		if n == s {
			return i, true
		}
	}
	return 0, false
}

func reg16ByName2(s string) (int, bool) {
	for i, n := range rp2 {
		if n == s {
			return i, true
		}
	}
	return 0, false
}

func aluByName(s string) (int, bool) {
	for i, n := range aluNames {
		if n == s {
			return i, true
		}
	}
	return 0, false
}

func rotByName(s string) (int, bool) {
	for i, n := range rotNames {
		if n == s {
			return i, true
		}
	}
	return 0, false
}

