package expr

import "strings"

// SymbolType distinguishes how a symbol was created.
type SymbolType int

const (
	SymLabel SymbolType = iota
	SymEqu
	SymDefl
)

// Symbol is one entry of the symbol table.
type Symbol struct {
	Name    string
	Value   int32
	Type    SymbolType
	Defined bool
	Used    bool
	Line    int
	File    string
}

// tempEntry is one definition of a numbered temporary label (`10:`).
type tempEntry struct {
	addr     int32
	defOrder int
}

// SymbolTable holds one pass's worth of symbols, the module-prefix stack,
// the most recent non-local label (for `.local` prefixing) and the
// temporary-label lists promoted pass to pass for forward-reference
// resolution.
type SymbolTable struct {
	symbols map[string]*Symbol

	moduleStack    []string
	lastNonLocal   string
	nextDefOrder   int

	tempLabels     map[int][]tempEntry
	prevTempLabels map[int][]tempEntry

	current      int32
	sectionStart int32

	errors   int
	warnings int
}

// NewSymbolTable creates an empty table. Call StartPass between passes to
// promote temp labels and reset the per-pass fields that convergence
// tracking depends on (Defined/Value survive; Used does not reset so that
// unused-label warnings accumulate correctly across the final pass).
func NewSymbolTable() *SymbolTable {
	return &SymbolTable{
		symbols:    make(map[string]*Symbol),
		tempLabels: make(map[int][]tempEntry),
	}
}

// StartPass promotes this pass's temp labels to "previous" (for forward refs
// that could not be resolved within a single pass) and opens a fresh list.
func (st *SymbolTable) StartPass() {
	st.prevTempLabels = st.tempLabels
	st.tempLabels = make(map[int][]tempEntry)
	st.moduleStack = nil
	st.lastNonLocal = ""
	st.nextDefOrder = 0
}

// SetCurrentAddress updates `$`.
func (st *SymbolTable) SetCurrentAddress(addr int32) { st.current = addr }

// SetSectionStart updates `$$` (set by the first ORG of a section).
func (st *SymbolTable) SetSectionStart(addr int32) { st.sectionStart = addr }

func (st *SymbolTable) CurrentAddress() int32 { return st.current }
func (st *SymbolTable) SectionStart() int32   { return st.sectionStart }

// PushModule / PopModule implement MODULE/ENDMODULE nesting.
func (st *SymbolTable) PushModule(name string) { st.moduleStack = append(st.moduleStack, name) }
func (st *SymbolTable) PopModule() {
	if len(st.moduleStack) > 0 {
		st.moduleStack = st.moduleStack[:len(st.moduleStack)-1]
	}
}

func (st *SymbolTable) modulePrefix() string {
	if len(st.moduleStack) == 0 {
		return ""
	}
	return strings.Join(st.moduleStack, ".") + "."
}

// QualifyLabel computes the fully-qualified name for a label being
// *defined* and records it as the new local-label anchor if it is
// non-local. Call this before Define for ordinary label definitions.
func (st *SymbolTable) QualifyLabel(raw string) string {
	if strings.HasPrefix(raw, ".") {
		return st.lastNonLocal + raw
	}
	qualified := st.modulePrefix() + raw
	st.lastNonLocal = qualified
	return qualified
}

// QualifyReference computes the fully-qualified name for a label being
// *referenced* inside an expression (does not change the local-label
// anchor).
func (st *SymbolTable) QualifyReference(raw string) string {
	if strings.HasPrefix(raw, "@") {
		return raw[1:]
	}
	if strings.HasPrefix(raw, ".") {
		return st.lastNonLocal + raw
	}
	if _, ok := st.symbols[raw]; ok {
		return raw
	}
	if st.modulePrefix() != "" {
		if _, ok := st.symbols[st.modulePrefix()+raw]; ok {
			return st.modulePrefix() + raw
		}
	}
	return raw
}

// Define creates or updates a symbol. EQU may not be redefined with a
// different value (sjasmplus hard-errors); DEFL always may; labels may be
// redefined only if the value is unchanged from a previous pass (the
// standard multi-pass convergence rule) — callers compare Changed
// themselves via the returned bool.
func (st *SymbolTable) Define(name string, value int32, typ SymbolType, line int, file string) (changed bool, err error) {
	existing, ok := st.symbols[name]
	if !ok {
		st.symbols[name] = &Symbol{Name: name, Value: value, Type: typ, Defined: true, Line: line, File: file}
		return true, nil
	}
	if typ != SymDefl && existing.Type != SymDefl && existing.Defined && existing.Value != value {
		return false, &RedefinitionError{Name: name, Old: existing.Value, New: value}
	}
	changed = existing.Value != value || !existing.Defined
	existing.Value = value
	existing.Type = typ
	existing.Defined = true
	existing.Line = line
	existing.File = file
	return changed, nil
}

// RedefinitionError reports an attempt to change a non-DEFL symbol's value.
type RedefinitionError struct {
	Name     string
	Old, New int32
}

func (e *RedefinitionError) Error() string {
	return "symbol redefined with a different value: " + e.Name
}

// Lookup implements Resolver.
func (st *SymbolTable) Lookup(name string) (value int32, undefined bool, ok bool) {
	qualified := st.QualifyReference(name)
	switch qualified {
	case "_ERRORS":
		return int32(st.errors), false, true
	case "_WARNINGS":
		return int32(st.warnings), false, true
	}
	sym, found := st.symbols[qualified]
	if !found {
		// Unresolved symbol: treated as undefined-but-known so that
		// forward references across passes converge rather than
		// hard-erroring mid-pass.
		return 0, true, true
	}
	sym.Used = true
	if !sym.Defined {
		return 0, true, true
	}
	return sym.Value, false, true
}

// IsDefined implements Resolver's `defined()` support.
func (st *SymbolTable) IsDefined(name string) bool {
	qualified := st.QualifyReference(name)
	sym, ok := st.symbols[qualified]
	return ok && sym.Defined
}

// DefineTemp records a definition of numbered temp label n at addr.
func (st *SymbolTable) DefineTemp(n int, addr int32) {
	st.nextDefOrder++
	st.tempLabels[n] = append(st.tempLabels[n], tempEntry{addr: addr, defOrder: st.nextDefOrder})
}

// ResolveTemp implements Resolver. Forward references scan the previous
// pass's list for the first definition of n made after the number of temp
// definitions seen so far in this pass, which is the standard technique for
// resolving `NF` before the current pass has reached the definition.
// Backward references take the most recent definition of n in this pass.
func (st *SymbolTable) ResolveTemp(n int, forward bool) (value int32, undefined bool, ok bool) {
	if forward {
		for _, e := range st.prevTempLabels[n] {
			if e.defOrder > st.nextDefOrder {
				return e.addr, false, true
			}
		}
		return 0, true, true
	}
	if list, found := st.tempLabels[n]; found && len(list) > 0 {
		return list[len(list)-1].addr, false, true
	}
	return 0, true, true
}

// MarkError / MarkWarning feed `_ERRORS`/`_WARNINGS`.
func (st *SymbolTable) MarkError()   { st.errors++ }
func (st *SymbolTable) MarkWarning() { st.warnings++ }

// UnusedLabels returns label symbols (not EQU/DEFL) that were defined but
// never referenced, for the assembler's unused-label warnings.
func (st *SymbolTable) UnusedLabels() []*Symbol {
	var out []*Symbol
	for _, sym := range st.symbols {
		if sym.Type == SymLabel && sym.Defined && !sym.Used {
			out = append(out, sym)
		}
	}
	return out
}

// All returns every known symbol, for listing/symbol-file output.
func (st *SymbolTable) All() map[string]*Symbol { return st.symbols }
