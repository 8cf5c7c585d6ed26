package assembler

import "fmt"

// Line is one parsed source line: an optional label, an optional directive
// OR mnemonic (never both), its operand list, and the trailing comment.
type Line struct {
	Number    int
	File      string
	Raw       string
	Label     string
	Directive string
	Mnemonic  string
	Operands  []string
	Comment   string
	IsBlank   bool
}

// Error is one assembly diagnostic, tagged with the source position that
// produced it. Warning entries (wrapped JR/DJNZ displacements) never set
// Fatal and never block a successful assembly; they exist purely for the
// collector to report. Unused labels are listed in Result.UnusedLabels, not
// as Warning entries, and an INCBIN length past the end of the file is
// clamped without any diagnostic.
type Error struct {
	File    string
	Line    int
	Message string
	Fatal   bool
	Warning bool
}

func (e Error) Error() string {
	if e.File != "" {
		return fmt.Sprintf("%s:%d: %s", e.File, e.Line, e.Message)
	}
	return fmt.Sprintf("line %d: %s", e.Line, e.Message)
}

// Macro is a stored MACRO...ENDM body, ready for line-wise expansion at a
// call site.
type Macro struct {
	Name       string
	Params     []string
	Body       []rawLine
	LocalLabel []string // not filled in; renameLocalLabels finds the body's labels from Body at each call
}

// StructField is one field of a STRUCT declaration.
type StructField struct {
	Name    string
	Kind    string // field directive: DW/DEFW (2 bytes a value), DS/DEFS (n zero bytes), anything else 1 byte a value; BYTE/WORD/DWORD/TEXT are not distinct kinds
	Count   int    // number of default values, or n for DS/DEFS
	Default []int32
	Offset  int
	Size    int
}

// StructDef is a STRUCT...ENDS declaration: its field layout and total size.
type StructDef struct {
	Name   string
	Fields []StructField
	Size   int
}

// rawLine is one physical line of source text, before Line parsing, tagged
// with its file and line number for diagnostics.
type rawLine struct {
	File string
	Num  int
	Text string
}

// condFrame is one level of the IF/IFDEF/.../ENDIF nesting stack.
type condFrame struct {
	parentActive bool
	taken        bool // this or an earlier branch of this IF chain matched
	active       bool // this specific branch is the live one
}

// Result is the outcome of a successful (or best-effort) assembly run.
type Result struct {
	Binary       []byte
	Origin       int32
	EntryAddress int32
	HasEntry     bool
	Symbols      map[string]int32
	Errors       []Error
	Saves        []SaveOutput
	UnusedLabels []string
}

// SaveOutput is one SAVEBIN/SAVESNA/SAVETAP/SAVETRD/EMPTYTAP/EMPTYTRD
// directive's captured output, ready to be written by the caller (or
// already written, if WriteSaves was used).
type SaveOutput struct {
	Path     string
	Data     []byte
	MD5      string // expected MD5, if one was declared; empty if none
	Computed string // actual MD5 of Data
}
