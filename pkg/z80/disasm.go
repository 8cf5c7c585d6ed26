package z80

import "fmt"

// Memory is the byte source a disassembler walks; callers adapt their
// paged address space to this single method.
type Memory interface {
	ReadByte(addr uint16) byte
}

// RefKind classifies a control-flow or data reference found in an
// instruction's operand, for callers building a cross-reference map.
type RefKind string

const (
	RefJump    RefKind = "jump"
	RefCall    RefKind = "call"
	RefBranch  RefKind = "branch" // JR/DJNZ
	RefRestart RefKind = "restart"
	RefData    RefKind = "data" // LD (nn),x / LD x,(nn)
)

// Ref is one outgoing reference from a decoded instruction.
type Ref struct {
	Kind   RefKind
	Target uint16
}

// Instruction is the result of decoding one instruction at a given address.
type Instruction struct {
	Addr     uint16
	Bytes    []byte
	Mnemonic string
	Length   int
	Timing   string
	Refs     []Ref
}

// Decode disassembles a single instruction starting at addr. It never
// returns an error for data that doesn't form a valid documented
// instruction: the Z80 has no illegal opcodes in the unprefixed, CB and main
// ED tables (undefined ED forms behave as a 2-byte NOP), so decode always
// succeeds and instead emits the most literal reading, including the
// DD/FD-then-DD/FD/ED "redundant prefix" rule, which degrades the first
// prefix byte to a bare DEFB.
func Decode(mem Memory, addr uint16) (Instruction, error) {
	d := &decoder{mem: mem, start: addr, pos: addr}
	return d.decode()
}

type decoder struct {
	mem   Memory
	start uint16
	pos   uint16
	bytes []byte
}

func (d *decoder) fetch() byte {
	b := d.mem.ReadByte(d.pos)
	d.bytes = append(d.bytes, b)
	d.pos++
	return b
}

func (d *decoder) finish(mnemonic, timing string, refs ...Ref) Instruction {
	return Instruction{
		Addr:     d.start,
		Bytes:    d.bytes,
		Mnemonic: mnemonic,
		Length:   len(d.bytes),
		Timing:   timing,
		Refs:     refs,
	}
}

func (d *decoder) decode() (Instruction, error) {
	op := d.fetch()

	switch op {
	case PrefixCB:
		return d.decodeCB(""), nil
	case PrefixED:
		return d.decodeED(), nil
	case PrefixDD:
		return d.decodeIndexed("IX"), nil
	case PrefixFD:
		return d.decodeIndexed("IY"), nil
	default:
		return d.decodeMain(op, ""), nil
	}
}

// decodeIndexed handles a DD or FD prefix: the redundant-prefix rule (a
// second DD/FD/ED byte immediately following demotes the first to DEFB),
// the CB-indexed bit-operation sub-table, and the ordinary HL->IX/IY
// substitution for everything else.
func (d *decoder) decodeIndexed(idx string) Instruction {
	next := d.mem.ReadByte(d.pos)
	if next == PrefixDD || next == PrefixFD || next == PrefixED {
		return d.finish(fmt.Sprintf("DEFB %02Xh", d.bytes[0]), "4")
	}
	if next == PrefixCB {
		d.fetch() // consume CB
		return d.decodeCBIndexed(idx)
	}
	op := d.fetch()
	return d.decodeMain(op, idx)
}

// decodeCBIndexed decodes the DD/FD CB d op form: displacement byte, then
// opcode byte, always addressing (IX+d)/(IY+d); undocumented forms that
// also copy the result into an 8-bit register are named with "LD r," prefix
// per sjasmplus convention.
func (d *decoder) decodeCBIndexed(idx string) Instruction {
	disp := int8(d.fetch())
	op := d.fetch()
	x, y, z, _, _ := decompose(op)
	base := indexDisp(idx, disp)

	var mnemonic string
	switch x {
	case 0:
		mnemonic = rotNames[y] + " " + base
	case 1:
		mnemonic = fmt.Sprintf("BIT %d,%s", y, base)
	case 2:
		mnemonic = fmt.Sprintf("RES %d,%s", y, base)
	case 3:
		mnemonic = fmt.Sprintf("SET %d,%s", y, base)
	}
	if x != 1 && z != 6 {
		// Undocumented "copy result into r[z]" form.
		mnemonic += "," + r8[z]
	}
	timing := "23"
	if x == 1 {
		timing = "20"
	}
	return d.finish(mnemonic, timing)
}

// decodeCB decodes a CB-prefixed opcode with no index register in play.
func (d *decoder) decodeCB(_ string) Instruction {
	op := d.fetch()
	x, y, z, _, _ := decompose(op)
	operand := r8[z]
	var mnemonic string
	switch x {
	case 0:
		mnemonic = rotNames[y] + " " + operand
	case 1:
		mnemonic = fmt.Sprintf("BIT %d,%s", y, operand)
	case 2:
		mnemonic = fmt.Sprintf("RES %d,%s", y, operand)
	case 3:
		mnemonic = fmt.Sprintf("SET %d,%s", y, operand)
	}
	return d.finish(mnemonic, cbTiming(x, z))
}

// decodeED decodes an ED-prefixed opcode, including the redundant-prefix
// rule (ED followed by DD/FD/ED/CB degrades ED to DEFB) and the undefined
// main rows, which behave as a documented 2-byte NOP.
func (d *decoder) decodeED() Instruction {
	next := d.mem.ReadByte(d.pos)
	if next == PrefixDD || next == PrefixFD || next == PrefixED || next == PrefixCB {
		return d.finish(fmt.Sprintf("DEFB %02Xh", d.bytes[0]), "4")
	}
	op := d.fetch()
	x, y, z, p, q := decompose(op)

	if x == 1 {
		switch z {
		case 0:
			if y == 6 {
				return d.finish("IN (C)", "12")
			}
			return d.finish(fmt.Sprintf("IN %s,(C)", r8[y]), "12")
		case 1:
			if y == 6 {
				return d.finish("OUT (C),0", "12")
			}
			return d.finish(fmt.Sprintf("OUT (C),%s", r8[y]), "12")
		case 2:
			if q == 0 {
				return d.finish(fmt.Sprintf("SBC HL,%s", rp[p]), "15")
			}
			return d.finish(fmt.Sprintf("ADC HL,%s", rp[p]), "15")
		case 3:
			lo, hi := d.fetch(), d.fetch()
			nn := uint16(lo) | uint16(hi)<<8
			if q == 0 {
				return d.finish(fmt.Sprintf("LD (%04Xh),%s", nn, rp[p]), "20", Ref{Kind: RefData, Target: nn})
			}
			return d.finish(fmt.Sprintf("LD %s,(%04Xh)", rp[p], nn), "20", Ref{Kind: RefData, Target: nn})
		case 4:
			return d.finish("NEG", "8")
		case 5:
			if y == 1 {
				return d.finish("RETI", "14")
			}
			return d.finish("RETN", "14")
		case 6:
			return d.finish(fmt.Sprintf("IM %d", imTable[y]), "8")
		case 7:
			name := edZ7Names[y]
			return d.finish(name, edTiming(x, y, z))
		}
	}
	if x == 2 && y >= 4 && z <= 3 {
		name := edBlockNames[y-4][z]
		return d.finish(name, edTiming(x, y, z))
	}
	// Undefined ED opcode: documented as a 2-byte NOP.
	return d.finish("NOP", "8")
}

// decodeMain decodes the unprefixed (x,y,z,p,q) table, substituting H/L
// and (HL) for the active index register when idx != "". idx-mode (HL) that
// is actually just a register reference (H/L in INC/DEC/ALU/LD r,r' etc.)
// becomes IXH/IXL/IYH/IYL; (HL) in its genuine memory-operand role becomes
// (IX+d)/(IY+d), with the displacement byte fetched immediately after the
// opcode per the real Z80's byte order (disp comes before any trailing
// immediate, e.g. LD (IX+d),n).
func (d *decoder) decodeMain(op byte, idx string) Instruction {
	x, y, z, p, q := decompose(op)
	reg := r8
	regpair := rp
	regpair2 := rp2
	if idx != "" {
		reg = r8Indexed(idx)
		regpair = rpIndexed(idx)
		regpair2 = rp2Indexed(idx)
	}

	memOperand := func(which int) (string, bool) {
		if which != 6 {
			return reg[which], false
		}
		if idx == "" {
			return "(HL)", false
		}
		return "", true // caller must fetch displacement
	}

	switch x {
	case 0:
		switch z {
		case 0:
			switch {
			case y == 0:
				return d.finish("NOP", "4")
			case y == 1:
				return d.finish("EX AF,AF'", "4")
			case y == 2:
				off := d.relOffset()
				return d.finish(fmt.Sprintf("DJNZ %04Xh", off), tDJNZ, Ref{Kind: RefBranch, Target: off})
			case y == 3:
				off := d.relOffset()
				return d.finish(fmt.Sprintf("JR %04Xh", off), "12", Ref{Kind: RefBranch, Target: off})
			default:
				off := d.relOffset()
				return d.finish(fmt.Sprintf("JR %s,%04Xh", condNames[y-4], off), tJRCond, Ref{Kind: RefBranch, Target: off})
			}
		case 1:
			if q == 0 {
				nn := d.imm16()
				return d.finish(fmt.Sprintf("LD %s,%04Xh", regpair[p], nn), "10")
			}
			return d.finish(fmt.Sprintf("ADD %s,%s", idxName(idx, "HL"), regpair[p]), "11")
		case 2:
			switch {
			case q == 0 && p == 0:
				return d.finish("LD (BC),A", "7")
			case q == 0 && p == 1:
				return d.finish("LD (DE),A", "7")
			case q == 1 && p == 0:
				return d.finish("LD A,(BC)", "7")
			case q == 1 && p == 1:
				return d.finish("LD A,(DE)", "7")
			case q == 0 && p == 2:
				nn := d.imm16()
				return d.finish(fmt.Sprintf("LD (%04Xh),%s", nn, idxName(idx, "HL")), "16", Ref{Kind: RefData, Target: nn})
			case q == 1 && p == 2:
				nn := d.imm16()
				return d.finish(fmt.Sprintf("LD %s,(%04Xh)", idxName(idx, "HL"), nn), "16", Ref{Kind: RefData, Target: nn})
			case q == 0 && p == 3:
				nn := d.imm16()
				return d.finish(fmt.Sprintf("LD (%04Xh),A", nn), "13", Ref{Kind: RefData, Target: nn})
			default:
				nn := d.imm16()
				return d.finish(fmt.Sprintf("LD A,(%04Xh)", nn), "13", Ref{Kind: RefData, Target: nn})
			}
		case 3:
			if q == 0 {
				return d.finish(fmt.Sprintf("INC %s", regpair[p]), "6")
			}
			return d.finish(fmt.Sprintf("DEC %s", regpair[p]), "6")
		case 4, 5:
			verb := "INC"
			if z == 5 {
				verb = "DEC"
			}
			name, needsDisp := memOperand(y)
			if needsDisp {
				disp := d.fetchSigned()
				return d.finish(fmt.Sprintf("%s %s", verb, indexDisp(idx, disp)), tIncDecIndexedMem)
			}
			t := "4"
			if y == 6 {
				t = "11"
			}
			return d.finish(fmt.Sprintf("%s %s", verb, name), t)
		case 6:
			name, needsDisp := memOperand(y)
			if needsDisp {
				disp := d.fetchSigned()
				n := d.fetch()
				return d.finish(fmt.Sprintf("LD %s,%02Xh", indexDisp(idx, disp), n), "19")
			}
			n := d.fetch()
			t := "7"
			if y == 6 {
				t = "10"
			}
			return d.finish(fmt.Sprintf("LD %s,%02Xh", name, n), t)
		case 7:
			names := [8]string{"RLCA", "RRCA", "RLA", "RRA", "DAA", "CPL", "SCF", "CCF"}
			return d.finish(names[y], "4")
		}
	case 1:
		if z == 6 && y == 6 {
			return d.finish("HALT", "4")
		}
		dst, dstMem := memOperand(y)
		src, srcMem := memOperand(z)
		if dstMem {
			disp := d.fetchSigned()
			return d.finish(fmt.Sprintf("LD %s,%s", indexDisp(idx, disp), r8[z]), "19")
		}
		if srcMem {
			disp := d.fetchSigned()
			return d.finish(fmt.Sprintf("LD %s,%s", r8[y], indexDisp(idx, disp)), "19")
		}
		t := "4"
		if y == 6 || z == 6 {
			t = "7"
		}
		return d.finish(fmt.Sprintf("LD %s,%s", dst, src), t)
	case 2:
		name, needsDisp := memOperand(z)
		if needsDisp {
			disp := d.fetchSigned()
			return d.finish(fmt.Sprintf("%s A,%s", aluNames[y], indexDisp(idx, disp)), "19")
		}
		t := "4"
		if z == 6 {
			t = "7"
		}
		return d.finish(fmt.Sprintf("%s A,%s", aluNames[y], name), t)
	case 3:
		switch z {
		case 0:
			return d.finish(fmt.Sprintf("RET %s", condNames[y]), tRETCond)
		case 1:
			if q == 0 {
				return d.finish(fmt.Sprintf("POP %s", regpair2[p]), "10")
			}
			switch p {
			case 0:
				return d.finish("RET", "10")
			case 1:
				return d.finish("EXX", "4")
			case 2:
				return d.finish(fmt.Sprintf("JP %s", idxParen(idx)), "4")
			default:
				return d.finish(fmt.Sprintf("LD SP,%s", idxName(idx, "HL")), "6")
			}
		case 2:
			nn := d.imm16()
			return d.finish(fmt.Sprintf("JP %s,%04Xh", condNames[y], nn), "10", Ref{Kind: RefJump, Target: nn})
		case 3:
			switch y {
			case 0:
				nn := d.imm16()
				return d.finish(fmt.Sprintf("JP %04Xh", nn), "10", Ref{Kind: RefJump, Target: nn})
			case 2:
				n := d.fetch()
				return d.finish(fmt.Sprintf("OUT (%02Xh),A", n), "11")
			case 3:
				n := d.fetch()
				return d.finish(fmt.Sprintf("IN A,(%02Xh)", n), "11")
			case 4:
				return d.finish(fmt.Sprintf("EX (SP),%s", idxName(idx, "HL")), "19")
			case 5:
				return d.finish("EX DE,HL", "4")
			case 6:
				return d.finish("DI", "4")
			default:
				return d.finish("EI", "4")
			}
		case 4:
			nn := d.imm16()
			return d.finish(fmt.Sprintf("CALL %s,%04Xh", condNames[y], nn), tCALLCond, Ref{Kind: RefCall, Target: nn})
		case 5:
			if q == 0 {
				return d.finish(fmt.Sprintf("PUSH %s", regpair2[p]), "11")
			}
			nn := d.imm16()
			return d.finish(fmt.Sprintf("CALL %04Xh", nn), "17", Ref{Kind: RefCall, Target: nn})
		case 6:
			n := d.fetch()
			return d.finish(fmt.Sprintf("%s A,%02Xh", aluNames[y], n), "7")
		case 7:
			target := uint16(y) * 8
			return d.finish(fmt.Sprintf("RST %02Xh", target), "11", Ref{Kind: RefRestart, Target: target})
		}
	}
	return d.finish(fmt.Sprintf("DEFB %02Xh", op), "4")
}

func (d *decoder) imm16() uint16 {
	lo, hi := d.fetch(), d.fetch()
	return uint16(lo) | uint16(hi)<<8
}

func (d *decoder) fetchSigned() int8 { return int8(d.fetch()) }

// relOffset resolves a JR/DJNZ displacement byte to an absolute target,
// relative to the address one past the full instruction.
func (d *decoder) relOffset() uint16 {
	disp := int8(d.fetch())
	return uint16(int32(d.start) + int32(len(d.bytes)) + int32(disp))
}

func indexDisp(idx string, disp int8) string {
	if idx == "" {
		return "(HL)"
	}
	if disp >= 0 {
		return fmt.Sprintf("(%s+%02Xh)", idx, disp)
	}
	return fmt.Sprintf("(%s-%02Xh)", idx, -int(disp))
}

func idxName(idx, fallback string) string {
	if idx == "" {
		return fallback
	}
	return idx
}

func idxParen(idx string) string {
	if idx == "" {
		return "(HL)"
	}
	return "(" + idx + ")"
}
