package z80

// Timing strings follow the convention used throughout: a plain number is a
// fixed T-state count; "taken/not-taken" pairs cover every opcode whose
// duration depends on whether a condition fires or a block-copy loops.

const (
	tBlockLoop = "21/16"
	tJRCond    = "12/7"
	tDJNZ      = "13/8"
	tRETCond   = "11/5"
	tCALLCond  = "17/10"
)

// cbTiming covers the CB-prefixed table: rotate/shift, BIT, RES, SET.
func cbTiming(x, z int) string {
	if z == 6 {
		if x == 1 {
			return "12" // BIT b,(HL)
		}
		return "15" // rotate/RES/SET (HL)
	}
	return "8"
}

// edTiming covers the ED-prefixed table's x=1 (misc) and x=2 (block) rows;
// other ED rows are undefined and decode as a 2-byte NOP (timing "8").
func edTiming(x, y, z int) string {
	if x == 1 {
		switch z {
		case 0, 1:
			return "12" // IN/OUT r,(C)
		case 2:
			return "15" // ADC/SBC HL,rp
		case 3:
			return "20" // LD (nn),rp / LD rp,(nn)
		case 4:
			return "8" // NEG
		case 5:
			if y == 1 {
				return "14" // RETI
			}
			return "14" // RETN
		case 6:
			return "8" // IM
		case 7:
			if y >= 6 {
				return "8"
			}
			return "9" // LD I,A / LD R,A / LD A,I / LD A,R / RRD / RLD
		}
	}
	if x == 2 && y >= 4 && z <= 3 {
		switch y {
		case 4, 5:
			return "16" // LDI/CPI/INI/OUTI, LDD/CPD/IND/OUTD
		default:
			return tBlockLoop // LDIR/CPIR/INIR/OTIR, LDDR/CPDR/INDR/OTDR
		}
	}
	return "8"
}

// tIncDecIndexedMem is INC/DEC (IX+d)/(IY+d): the one DD/FD single-byte
// form whose timing isn't a flat "main table + 4" prefix tax, since it
// both reads and writes memory through the displaced address.
const tIncDecIndexedMem = "23"
