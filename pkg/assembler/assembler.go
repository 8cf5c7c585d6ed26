// Package assembler implements the multi-pass, macro-capable Z80 assembler
// driver: pass-loop convergence, label/directive/mnemonic line processing,
// macro and REPT/DUP expansion, STRUCT layout, conditional assembly, and the
// SAVEBIN/SAVESNA/SAVETAP/SAVETRD family of output emitters.
package assembler

import (
	"fmt"

	"golang.org/x/exp/slices"

	"github.com/zxspectrum/toolkit/pkg/expr"
	"github.com/zxspectrum/toolkit/pkg/machine"
	"github.com/zxspectrum/toolkit/pkg/memory"
	"github.com/zxspectrum/toolkit/pkg/vfs"
	"github.com/zxspectrum/toolkit/pkg/z80"
)

const defaultMaxPasses = 10
const maxIncludeDepth = 32

// Assembler is one assembly run's full mutable state machine.
type Assembler struct {
	FS        vfs.FS
	Machine   machine.Profile
	MaxPasses int

	symtab *expr.SymbolTable

	pass            int
	currentAddress  int32
	physicalAddress int32
	displaced       bool // DISP/PHASE active: physical != logical
	outputStart     int32
	haveOutputStart bool
	output          []byte
	changed         bool
	undefinedCount  int

	errors       []Error
	includeStack []string
	condStack    []condFrame

	macros       map[string]*Macro
	structs      map[string]*StructDef
	expansionSeq int

	device *memory.MemoryState

	entryAddr int32
	haveEntry bool
	stopped   bool

	saves     []SaveOutput
	trdImages map[string]*trdImage
}

// New returns an Assembler ready for AssembleFile, with profile stored as its
// Machine until a DEVICE directive replaces it; the save directives do not
// consult it.
func New(fs vfs.FS, profile machine.Profile) *Assembler {
	return &Assembler{FS: fs, Machine: profile, MaxPasses: defaultMaxPasses}
}

func (a *Assembler) reset(defines map[string]int32) {
	a.symtab = expr.NewSymbolTable()
	a.macros = make(map[string]*Macro)
	a.structs = make(map[string]*StructDef)
	a.errors = nil
	a.saves = nil
	a.expansionSeq = 0
	for name, val := range defines {
		a.symtab.Define(name, val, expr.SymEqu, 0, "<command line>")
	}
}

func (a *Assembler) beginPass(pass int) {
	a.pass = pass
	a.symtab.StartPass()
	a.changed = false
	a.currentAddress = 0
	a.physicalAddress = 0
	a.displaced = false
	a.output = nil
	a.haveOutputStart = false
	a.undefinedCount = 0
	a.condStack = nil
	a.includeStack = nil
	a.saves = nil
	a.stopped = false
	a.haveEntry = false
	a.trdImages = make(map[string]*trdImage)
	// expansionSeq drives macro-local label mangling; it must reset every
	// pass (not just once per run) so that a given call site gets the same
	// mangled name on every pass, which is what lets the forward reference
	// inside the macro body converge.
	a.expansionSeq = 0
}

// AssembleFile reads path through FS and assembles it, applying defines as
// command-line EQUs before the first pass.
func (a *Assembler) AssembleFile(path string, defines map[string]int32) (*Result, error) {
	src, err := a.FS.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return a.AssembleSource(path, string(src), defines)
}

// AssembleSource runs the full pass loop over in-memory source text.
func (a *Assembler) AssembleSource(name, source string, defines map[string]int32) (*Result, error) {
	a.reset(defines)
	root := splitRawLines(name, source)

	var undefinedHistory []int
	converged := false
	for pass := 1; pass <= a.MaxPasses; pass++ {
		a.beginPass(pass)
		a.pushInclude(name)
		a.processLines(root)
		a.popInclude()

		undefinedHistory = append(undefinedHistory, a.undefinedCount)
		if a.undefinedCount == 0 && !a.changed {
			converged = true
			break
		}
		if pass > 2 && len(undefinedHistory) >= 2 {
			prev := undefinedHistory[len(undefinedHistory)-2]
			cur := undefinedHistory[len(undefinedHistory)-1]
			if cur >= prev && cur > 0 {
				return nil, fmt.Errorf("assembler: undefined symbols stopped decreasing after pass %d: %v", pass, a.undefinedSymbolNames())
			}
		}
		if pass >= 5 && a.undefinedCount == 0 && a.changed {
			return nil, fmt.Errorf("assembler: output did not stabilize after %d passes (non-convergent address dependency)", pass)
		}
	}
	if !converged {
		return nil, fmt.Errorf("assembler: exceeded %d passes without converging", a.MaxPasses)
	}

	result := &Result{
		Binary:       a.output,
		Origin:       a.outputStart,
		EntryAddress: a.entryAddr,
		HasEntry:     a.haveEntry,
		Symbols:      make(map[string]int32),
		Errors:       a.errors,
		Saves:        a.saves,
	}
	for name, sym := range a.symtab.All() {
		if sym.Defined {
			result.Symbols[name] = sym.Value
		}
	}
	for _, sym := range a.symtab.UnusedLabels() {
		result.UnusedLabels = append(result.UnusedLabels, sym.Name)
	}
	slices.Sort(result.UnusedLabels)
	return result, nil
}

func (a *Assembler) undefinedSymbolNames() []string {
	var out []string
	for name, sym := range a.symtab.All() {
		if !sym.Defined {
			out = append(out, name)
		}
	}
	return out
}

func (a *Assembler) pushInclude(name string) { a.includeStack = append(a.includeStack, name) }
func (a *Assembler) popInclude() {
	if len(a.includeStack) > 0 {
		a.includeStack = a.includeStack[:len(a.includeStack)-1]
	}
}

func (a *Assembler) addError(line *Line, err error) {
	a.errors = append(a.errors, Error{File: line.File, Line: line.Number, Message: err.Error()})
	a.symtab.MarkError()
}

// addWarning records a non-fatal diagnostic that does not mark the symbol
// table as errored and never blocks convergence.
func (a *Assembler) addWarning(line *Line, err error) {
	a.errors = append(a.errors, Error{File: line.File, Line: line.Number, Message: err.Error(), Warning: true})
}

// evalExpr evaluates src against the current symbol table, counting it as
// undefined-use bookkeeping for the convergence check.
func (a *Assembler) evalExpr(src string) (int32, bool, error) {
	v, err := expr.Evaluate(src, a.symtab)
	if err != nil {
		return 0, false, err
	}
	if v.Undefined {
		a.undefinedCount++
		return 0, true, nil
	}
	return v.Val, false, nil
}

// processLines is the recursive line-walker: it handles MACRO/REPT/STRUCT
// accumulation (which consume multiple subsequent lines), conditional
// directives (always evaluated), and otherwise skips lines when the
// conditional stack says the current branch is inactive.
func (a *Assembler) processLines(lines []rawLine) {
	i := 0
	for i < len(lines) {
		if a.stopped {
			return
		}
		raw := lines[i]
		line := parseLine(raw, a.isKnownMnemonic, a.isKnownMacro)
		i++
		if line.IsBlank {
			continue
		}

		switch line.Directive {
		case "MACRO":
			body, consumed := collectNested(lines[i:], "MACRO", []string{"ENDM", "ENDMACRO"})
			i += consumed
			if a.conditionalActive() {
				a.defineMacro(line, body)
			}
			continue
		case "REPT", "DUP":
			ender := []string{"ENDR"}
			if line.Directive == "DUP" {
				ender = []string{"EDUP"}
			}
			body, consumed := collectNested(lines[i:], line.Directive, ender)
			i += consumed
			if a.conditionalActive() {
				a.expandRept(line, body)
			}
			continue
		case "STRUCT":
			body, consumed := collectNested(lines[i:], "STRUCT", []string{"ENDS"})
			i += consumed
			if a.conditionalActive() {
				a.defineStruct(line, body)
			}
			continue
		case "LUA":
			body, consumed := collectNested(lines[i:], "LUA", []string{"ENDLUA"})
			i += consumed
			if err := a.runLua(line, body); err != nil {
				a.addError(line, err)
			}
			continue
		case "IF", "IFDEF", "IFNDEF", "IFUSED", "IFNUSED":
			a.pushConditional(line)
			continue
		case "ELSE":
			a.handleElse(line)
			continue
		case "ELSEIF":
			a.handleElseIf(line)
			continue
		case "ENDIF":
			a.popConditional(line)
			continue
		}

		if !a.conditionalActive() {
			continue
		}

		// EQU/DEFL bind their label to the assigned value itself (via
		// doAssign), not to the current address, so defineLabel must not
		// also stake a conflicting SymLabel claim on the same name.
		if line.Label != "" && line.Directive != "EQU" && line.Directive != "DEFL" {
			a.defineLabel(line.Label, line)
		}

		if line.Directive != "" {
			if err := a.processDirective(line); err != nil {
				a.addError(line, err)
			}
			continue
		}

		if line.Mnemonic != "" {
			if err := a.processInstruction(line); err != nil {
				a.addError(line, err)
			}
		}
	}
}

func (a *Assembler) isKnownMnemonic(upper string) bool { return z80.IsMnemonic(upper) }
func (a *Assembler) isKnownMacro(upper string) bool {
	_, ok := a.macros[upper]
	return ok
}

func (a *Assembler) defineLabel(name string, line *Line) {
	qualified := a.symtab.QualifyLabel(name)
	changed, err := a.symtab.Define(qualified, a.currentAddress, expr.SymLabel, line.Number, line.File)
	if err != nil {
		a.addError(line, err)
		return
	}
	if changed {
		a.changed = true
	}
}

func (a *Assembler) ensureOutputStart() {
	if !a.haveOutputStart {
		a.outputStart = a.physicalAddress
		a.haveOutputStart = true
	}
}

// emit appends bytes at the current physical address, zero-extending the
// output buffer as needed to tolerate a forward ORG/PHASE gap.
func (a *Assembler) emit(data []byte) {
	a.ensureOutputStart()
	offset := int(a.physicalAddress - a.outputStart)
	if offset < 0 {
		return // a DEPHASE/negative ORG before outputStart; nothing to place it at
	}
	for len(a.output) < offset+len(data) {
		a.output = append(a.output, 0)
	}
	copy(a.output[offset:], data)
	if a.device != nil {
		// DEVICE mirrors output into the paged memory model in parallel.
		for i, b := range data {
			a.device.WriteByte(uint16(a.physicalAddress)+uint16(i), b)
		}
	}
	a.advance(len(data))
}

func (a *Assembler) advance(n int) {
	a.currentAddress = int32(uint16(a.currentAddress) + uint16(n))
	a.physicalAddress = int32(uint16(a.physicalAddress) + uint16(n))
	a.symtab.SetCurrentAddress(a.currentAddress)
}

func (a *Assembler) processInstruction(line *Line) error {
	if mac, ok := a.macros[line.Mnemonic]; ok {
		return a.invokeMacro(mac, line)
	}
	if sd, ok := a.structs[line.Mnemonic]; ok {
		return a.instantiateStruct(sd, line)
	}
	operands := append([]string(nil), line.Operands...)
	resolved, err := a.resolveOperands(operands, line)
	if err != nil {
		return err
	}
	bytes, err := z80.Encode(line.Mnemonic, resolved, uint16(a.currentAddress))
	if err != nil {
		if warn, ok := err.(*z80.RangeWarning); ok {
			a.addWarning(line, warn)
		} else {
			return err
		}
	}
	a.emit(bytes)
	return nil
}

// resolveOperands evaluates any operand that is a bare numeric/symbolic
// expression (not a register/condition name or parenthesised memory form
// z80.Encode already parses itself) into its decimal text, so Encode never
// has to understand the expression language.
func (a *Assembler) resolveOperands(operands []string, line *Line) ([]string, error) {
	out := make([]string, len(operands))
	for i, op := range operands {
		resolvedOp, err := a.resolveOperandText(op, line)
		if err != nil {
			return nil, err
		}
		out[i] = resolvedOp
	}
	return out, nil
}

func (a *Assembler) resolveOperandText(op string, line *Line) (string, error) {
	if isBareRegisterOrCondition(op) {
		return op, nil
	}
	if len(op) >= 2 && op[0] == '(' && op[len(op)-1] == ')' {
		inner, err := a.resolveParenExpr(op[1:len(op)-1], line)
		if err != nil {
			return "", err
		}
		return "(" + inner + ")", nil
	}
	v, undef, err := a.evalExpr(op)
	if err != nil {
		return "", err
	}
	if undef {
		return "0", nil
	}
	return fmt.Sprintf("%d", v), nil
}

// resolveParenExpr handles the inside of a memory operand, which is either
// a bare register (HL, BC, DE, SP, C), an indexed form (IX+5), or an
// address expression.
func (a *Assembler) resolveParenExpr(inner string, line *Line) (string, error) {
	if isBareRegisterOrCondition(inner) {
		return inner, nil
	}
	if idx, disp, ok := splitIndexedOperand(inner); ok {
		v, undef, err := a.evalExpr(disp)
		if err != nil {
			return "", err
		}
		if undef {
			v = 0
		}
		sign := "+"
		if v < 0 {
			sign = "-"
			v = -v
		}
		return fmt.Sprintf("%s%s%d", idx, sign, v), nil
	}
	v, undef, err := a.evalExpr(inner)
	if err != nil {
		return "", err
	}
	if undef {
		v = 0
	}
	return fmt.Sprintf("%d", v), nil
}
