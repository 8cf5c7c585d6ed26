package assembler

import (
	"strings"

	"github.com/zxspectrum/toolkit/pkg/expr"
)

// defineStruct parses a STRUCT body's field declarations ("name: STRUCT" /
// "fieldName DB default, default, ..." / "ENDS") into a StructDef with
// byte offsets assigned in declaration order.
func (a *Assembler) defineStruct(header *Line, body []rawLine) {
	name := strings.ToUpper(header.Label)
	if name == "" {
		name = strings.ToUpper(strings.Join(header.Operands, ""))
	}
	sd := &StructDef{Name: name}
	offset := 0
	for _, raw := range body {
		fl := parseLine(raw, a.isKnownMnemonic, a.isKnownMacro)
		if fl.IsBlank || fl.Label == "" {
			continue
		}
		size, count, defaults := a.fieldSizeAndDefaults(fl.Directive, fl.Operands)
		sd.Fields = append(sd.Fields, StructField{
			Name: fl.Label, Kind: fl.Directive, Count: count,
			Default: defaults, Offset: offset, Size: size,
		})
		offset += size
	}
	sd.Size = offset
	a.structs[name] = sd
}

func (a *Assembler) fieldSizeAndDefaults(kind string, operands []string) (size int, count int, defaults []int32) {
	switch kind {
	case "DS", "DEFS":
		if len(operands) == 0 {
			return 0, 0, nil
		}
		n, undef, _ := a.evalExpr(operands[0])
		if undef {
			n = 0
		}
		return int(n), int(n), nil
	}
	elemSize := 1
	if kind == "DW" || kind == "DEFW" {
		elemSize = 2
	}
	for _, op := range operands {
		v, undef, err := a.evalExpr(op)
		if err != nil || undef {
			v = 0
		}
		defaults = append(defaults, v)
	}
	if len(defaults) == 0 {
		defaults = []int32{0}
	}
	return elemSize * len(defaults), len(defaults), defaults
}

// instantiateStruct emits one struct instance's bytes, overriding field
// defaults positionally from the instantiation's operand list, and defines
// "<instance>.<field>" address labels for every field when the instance
// itself was labelled.
func (a *Assembler) instantiateStruct(sd *StructDef, line *Line) error {
	overrides := line.Operands
	oi := 0
	var out []byte
	for _, f := range sd.Fields {
		if line.Label != "" {
			fieldAddr := a.currentAddress + int32(f.Offset)
			changed, err := a.symtab.Define(line.Label+"."+f.Name, fieldAddr, expr.SymLabel, line.Number, line.File)
			if err != nil {
				a.addError(line, err)
			} else if changed {
				a.changed = true
			}
		}
		if f.Kind == "DS" || f.Kind == "DEFS" {
			out = append(out, make([]byte, f.Size)...)
			continue
		}
		elemSize := 1
		if f.Kind == "DW" || f.Kind == "DEFW" {
			elemSize = 2
		}
		n := len(f.Default)
		if n == 0 {
			n = 1
		}
		for k := 0; k < n; k++ {
			val := int32(0)
			if k < len(f.Default) {
				val = f.Default[k]
			}
			if oi < len(overrides) {
				if v, undef, err := a.evalExpr(overrides[oi]); err == nil && !undef {
					val = v
				}
				oi++
			}
			out = append(out, encodeLittleEndian(val, elemSize)...)
		}
	}
	a.emit(out)
	return nil
}

func encodeLittleEndian(v int32, size int) []byte {
	out := make([]byte, size)
	u := uint32(v)
	for i := 0; i < size; i++ {
		out[i] = byte(u)
		u >>= 8
	}
	return out
}
