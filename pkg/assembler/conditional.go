package assembler

import (
	"strings"

	"github.com/zxspectrum/toolkit/pkg/expr"
)

// conditionalActive reports whether the line currently being processed is
// inside an active branch of every enclosing IF/IFDEF/.../ENDIF.
func (a *Assembler) conditionalActive() bool {
	for _, f := range a.condStack {
		if !f.active {
			return false
		}
	}
	return true
}

// parentActive reports whether every frame currently on the stack is active;
// pushConditional calls it before pushing, so these are the frames enclosing
// the new IF, i.e. whether that IF would even be considered.
func (a *Assembler) parentActive() bool {
	for _, f := range a.condStack {
		if !f.active {
			return false
		}
	}
	return true
}

func (a *Assembler) pushConditional(line *Line) {
	parentOK := a.parentActive()
	taken := false
	active := false
	if parentOK {
		cond, err := a.evalCondition(line)
		if err != nil {
			a.addError(line, err)
		} else if cond {
			taken = true
			active = true
		}
	}
	a.condStack = append(a.condStack, condFrame{parentActive: parentOK, taken: taken, active: active})
}

func (a *Assembler) evalCondition(line *Line) (bool, error) {
	operand := strings.Join(line.Operands, ",")
	switch line.Directive {
	case "IFDEF":
		return a.symtab.IsDefined(a.symtab.QualifyReference(operand)), nil
	case "IFNDEF":
		return !a.symtab.IsDefined(a.symtab.QualifyReference(operand)), nil
	case "IFUSED", "IFNUSED":
		// sjasmplus resolves these against the macro/label-usage table built
		// up across passes; a symbol that has never been referenced reads as
		// unused from pass 1 onward.
		sym, ok := a.symtab.All()[a.symtab.QualifyReference(operand)]
		used := ok && sym.Used
		if line.Directive == "IFUSED" {
			return used, nil
		}
		return !used, nil
	default: // IF
		v, err := expr.Evaluate(operand, a.symtab)
		if err != nil {
			return false, err
		}
		if v.Undefined {
			return false, nil
		}
		return v.Val != 0, nil
	}
}

func (a *Assembler) handleElse(line *Line) {
	if len(a.condStack) == 0 {
		a.addError(line, errUnmatched("ELSE"))
		return
	}
	top := &a.condStack[len(a.condStack)-1]
	if !top.parentActive || top.taken {
		top.active = false
		return
	}
	top.active = true
	top.taken = true
}

func (a *Assembler) handleElseIf(line *Line) {
	if len(a.condStack) == 0 {
		a.addError(line, errUnmatched("ELSEIF"))
		return
	}
	top := &a.condStack[len(a.condStack)-1]
	if !top.parentActive || top.taken {
		top.active = false
		return
	}
	cond, err := a.evalCondition(&Line{Directive: "IF", Operands: line.Operands})
	if err != nil {
		a.addError(line, err)
		return
	}
	if cond {
		top.active = true
		top.taken = true
	} else {
		top.active = false
	}
}

func (a *Assembler) popConditional(line *Line) {
	if len(a.condStack) == 0 {
		a.addError(line, errUnmatched("ENDIF"))
		return
	}
	a.condStack = a.condStack[:len(a.condStack)-1]
}

type unmatchedError string

func (e unmatchedError) Error() string { return "unmatched " + string(e) }
func errUnmatched(directive string) error { return unmatchedError(directive) }
