package assembler

import (
	"fmt"
	"strings"

	"github.com/zxspectrum/toolkit/pkg/expr"
	"github.com/zxspectrum/toolkit/pkg/machine"
	"github.com/zxspectrum/toolkit/pkg/memory"
)

// processDirective dispatches every directive that isn't a block-forming
// one (MACRO/REPT/STRUCT/conditionals are handled inline by processLines).
func (a *Assembler) processDirective(line *Line) error {
	switch line.Directive {
	case "ORG":
		return a.doORG(line)
	case "EQU":
		return a.doAssign(line, expr.SymEqu)
	case "DEFL":
		return a.doAssign(line, expr.SymDefl)
	case "DB", "DEFB", "DEFM":
		return a.doDefineBytes(line)
	case "DW", "DEFW":
		return a.doDefineWords(line)
	case "DS", "DEFS":
		return a.doDefineSpace(line)
	case "DZ":
		return a.doDZ(line)
	case "DC":
		return a.doDC(line)
	case "ABYTE", "ABYTEC", "ABYTEZ":
		return a.doABYTE(line)
	case "ALIGN":
		return a.doAlign(line)
	case "DISP", "PHASE":
		return a.doPhase(line)
	case "DEPHASE":
		a.currentAddress = a.physicalAddress
		return nil
	case "ENT":
		return a.doEnt(line)
	case "ASSERT":
		return a.doAssert(line)
	case "INCLUDE":
		return a.doInclude(line)
	case "INCBIN":
		return a.doIncbin(line)
	case "MODULE":
		if len(line.Operands) == 0 {
			return fmt.Errorf("MODULE requires a name")
		}
		a.symtab.PushModule(line.Operands[0])
		return nil
	case "ENDMODULE":
		a.symtab.PopModule()
		return nil
	case "DEVICE":
		return a.doDevice(line)
	case "MD5CHECK":
		return a.doMD5Check(line)
	case "END":
		a.stopped = true
		return nil
	case "SAVEBIN", "SAVESNA", "EMPTYTAP", "SAVETAP", "EMPTYTRD", "SAVETRD":
		return a.processSaveDirective(line)
	}
	return fmt.Errorf("unimplemented directive %s", line.Directive)
}

func (a *Assembler) doORG(line *Line) error {
	if len(line.Operands) == 0 {
		return fmt.Errorf("ORG requires an address")
	}
	v, undef, err := a.evalExpr(line.Operands[0])
	if err != nil {
		return err
	}
	if undef {
		return nil
	}
	a.currentAddress = v
	a.physicalAddress = v
	a.symtab.SetCurrentAddress(v)
	if a.symtab.SectionStart() == 0 {
		a.symtab.SetSectionStart(v)
	}
	return nil
}

func (a *Assembler) doAssign(line *Line, typ expr.SymbolType) error {
	if line.Label == "" {
		return fmt.Errorf("%s requires a label", line.Directive)
	}
	if len(line.Operands) == 0 {
		return fmt.Errorf("%s requires a value", line.Directive)
	}
	v, undef, err := a.evalExpr(line.Operands[0])
	if err != nil {
		return err
	}
	if undef {
		return nil
	}
	qualified := a.symtab.QualifyLabel(line.Label)
	changed, err := a.symtab.Define(qualified, v, typ, line.Number, line.File)
	if err != nil {
		return err
	}
	if changed {
		a.changed = true
	}
	return nil
}

func (a *Assembler) doDefineBytes(line *Line) error {
	var out []byte
	for _, op := range line.Operands {
		if isQuoted(op) {
			out = append(out, unquote(op)...)
			continue
		}
		v, undef, err := a.evalExpr(op)
		if err != nil {
			return err
		}
		if undef {
			v = 0
		}
		out = append(out, byte(v))
	}
	a.emit(out)
	return nil
}

func (a *Assembler) doDefineWords(line *Line) error {
	var out []byte
	for _, op := range line.Operands {
		v, undef, err := a.evalExpr(op)
		if err != nil {
			return err
		}
		if undef {
			v = 0
		}
		out = append(out, encodeLittleEndian(v, 2)...)
	}
	a.emit(out)
	return nil
}

func (a *Assembler) doDefineSpace(line *Line) error {
	if len(line.Operands) == 0 {
		return fmt.Errorf("%s requires a count", line.Directive)
	}
	count, undef, err := a.evalExpr(line.Operands[0])
	if err != nil {
		return err
	}
	if undef {
		return nil
	}
	fill := int32(0)
	if len(line.Operands) > 1 {
		fill, undef, err = a.evalExpr(line.Operands[1])
		if err != nil {
			return err
		}
		if undef {
			fill = 0
		}
	}
	out := make([]byte, count)
	for i := range out {
		out[i] = byte(fill)
	}
	a.emit(out)
	return nil
}

func (a *Assembler) doDZ(line *Line) error {
	var out []byte
	for _, op := range line.Operands {
		if isQuoted(op) {
			out = append(out, unquote(op)...)
			continue
		}
		v, undef, err := a.evalExpr(op)
		if err != nil {
			return err
		}
		if undef {
			v = 0
		}
		out = append(out, byte(v))
	}
	out = append(out, 0)
	a.emit(out)
	return nil
}

// doDC emits its operands exactly as DB would, then sets bit 7 of the final
// byte — sjasmplus's "last character carries the string terminator" form,
// common in Spectrum text routines that scan for a high-bit-set byte.
func (a *Assembler) doDC(line *Line) error {
	var out []byte
	for _, op := range line.Operands {
		if isQuoted(op) {
			out = append(out, unquote(op)...)
			continue
		}
		v, undef, err := a.evalExpr(op)
		if err != nil {
			return err
		}
		if undef {
			v = 0
		}
		out = append(out, byte(v))
	}
	if len(out) > 0 {
		out[len(out)-1] |= 0x80
	}
	a.emit(out)
	return nil
}

// doABYTE handles ABYTE/ABYTEC/ABYTEZ: the first operand is an adjustment
// added to every following byte (typically for runtime relocation of a
// literal string table), ABYTEC prefixes the result with its own length,
// ABYTEZ appends a zero terminator.
func (a *Assembler) doABYTE(line *Line) error {
	if len(line.Operands) < 2 {
		return fmt.Errorf("%s requires an adjustment and at least one value", line.Directive)
	}
	adj, undef, err := a.evalExpr(line.Operands[0])
	if err != nil {
		return err
	}
	if undef {
		adj = 0
	}
	var body []byte
	for _, op := range line.Operands[1:] {
		if isQuoted(op) {
			for _, b := range unquote(op) {
				body = append(body, byte(int32(b)+adj))
			}
			continue
		}
		v, undef, err := a.evalExpr(op)
		if err != nil {
			return err
		}
		if undef {
			v = 0
		}
		body = append(body, byte(v+adj))
	}
	var out []byte
	if line.Directive == "ABYTEC" {
		out = append(out, byte(len(body)))
	}
	out = append(out, body...)
	if line.Directive == "ABYTEZ" {
		out = append(out, 0)
	}
	a.emit(out)
	return nil
}

func (a *Assembler) doAlign(line *Line) error {
	if len(line.Operands) == 0 {
		return fmt.Errorf("ALIGN requires a boundary")
	}
	boundary, undef, err := a.evalExpr(line.Operands[0])
	if err != nil {
		return err
	}
	if undef || boundary <= 0 {
		return nil
	}
	fill := int32(0)
	if len(line.Operands) > 1 {
		fill, undef, err = a.evalExpr(line.Operands[1])
		if err != nil {
			return err
		}
		if undef {
			fill = 0
		}
	}
	remainder := a.currentAddress % boundary
	if remainder == 0 {
		return nil
	}
	pad := boundary - remainder
	out := make([]byte, pad)
	for i := range out {
		out[i] = byte(fill)
	}
	a.emit(out)
	return nil
}

// doPhase implements PHASE/DISP: code from here on is assembled as if
// loaded at the given address, while its bytes continue to land at the
// current physical output position.
func (a *Assembler) doPhase(line *Line) error {
	if len(line.Operands) == 0 {
		return fmt.Errorf("%s requires an address", line.Directive)
	}
	v, undef, err := a.evalExpr(line.Operands[0])
	if err != nil {
		return err
	}
	if undef {
		return nil
	}
	a.currentAddress = v
	a.displaced = true
	a.symtab.SetCurrentAddress(v)
	return nil
}

func (a *Assembler) doEnt(line *Line) error {
	if len(line.Operands) == 0 {
		return fmt.Errorf("ENT requires an address")
	}
	v, undef, err := a.evalExpr(line.Operands[0])
	if err != nil {
		return err
	}
	if undef {
		return nil
	}
	a.entryAddr = v
	a.haveEntry = true
	return nil
}

func (a *Assembler) doAssert(line *Line) error {
	if len(line.Operands) == 0 {
		return fmt.Errorf("ASSERT requires an expression")
	}
	v, undef, err := a.evalExpr(strings.Join(line.Operands, ","))
	if err != nil {
		return err
	}
	if undef {
		return nil
	}
	if v == 0 {
		return fmt.Errorf("assertion failed: %s", line.Operands[0])
	}
	return nil
}

func (a *Assembler) doInclude(line *Line) error {
	if len(line.Operands) == 0 {
		return fmt.Errorf("INCLUDE requires a path")
	}
	path := unquote(line.Operands[0])
	if len(a.includeStack) >= maxIncludeDepth {
		return fmt.Errorf("INCLUDE nesting exceeds %d levels", maxIncludeDepth)
	}
	current := ""
	if len(a.includeStack) > 0 {
		current = a.includeStack[len(a.includeStack)-1]
	}
	resolved := a.FS.Resolve(current, path)
	for _, seen := range a.includeStack {
		if seen == resolved {
			return fmt.Errorf("circular INCLUDE of %s", resolved)
		}
	}
	src, err := a.FS.ReadFile(resolved)
	if err != nil {
		return err
	}
	a.pushInclude(resolved)
	a.processLines(splitRawLines(resolved, string(src)))
	a.popInclude()
	return nil
}

func (a *Assembler) doIncbin(line *Line) error {
	if len(line.Operands) == 0 {
		return fmt.Errorf("INCBIN requires a path")
	}
	path := unquote(line.Operands[0])
	current := ""
	if len(a.includeStack) > 0 {
		current = a.includeStack[len(a.includeStack)-1]
	}
	resolved := a.FS.Resolve(current, path)
	data, err := a.FS.ReadFile(resolved)
	if err != nil {
		return err
	}
	offset, length := 0, len(data)
	if len(line.Operands) > 1 {
		v, undef, err := a.evalExpr(line.Operands[1])
		if err == nil && !undef {
			offset = int(v)
		}
	}
	if len(line.Operands) > 2 {
		v, undef, err := a.evalExpr(line.Operands[2])
		if err == nil && !undef {
			length = int(v)
		}
	}
	if offset < 0 || offset > len(data) {
		return fmt.Errorf("INCBIN offset out of range for %s", resolved)
	}
	end := offset + length
	if end > len(data) {
		end = len(data)
	}
	a.emit(data[offset:end])
	return nil
}

func (a *Assembler) doDevice(line *Line) error {
	if len(line.Operands) == 0 {
		return fmt.Errorf("DEVICE requires a machine name")
	}
	name := unquote(line.Operands[0])
	a.Machine = machine.Lookup(name)
	a.device = memory.New(a.Machine)
	return nil
}

func (a *Assembler) doMD5Check(line *Line) error {
	if len(line.Operands) == 0 || len(a.saves) == 0 {
		return nil
	}
	want := strings.ToLower(unquote(line.Operands[0]))
	a.saves[len(a.saves)-1].MD5 = want
	got := strings.ToLower(a.saves[len(a.saves)-1].Computed)
	if want != got {
		return fmt.Errorf("MD5CHECK mismatch: expected %s, got %s", want, got)
	}
	return nil
}

func isQuoted(s string) bool {
	return len(s) >= 2 && (s[0] == '"' || s[0] == '\'') && s[len(s)-1] == s[0]
}

func unquote(s string) string {
	if isQuoted(s) {
		return s[1 : len(s)-1]
	}
	return s
}
