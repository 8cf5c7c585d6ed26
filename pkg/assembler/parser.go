package assembler

import "strings"

var directiveNames = map[string]bool{
	"ORG": true, "EQU": true, "DEFL": true,
	"DB": true, "DEFB": true, "DEFM": true, "DW": true, "DEFW": true,
	"DS": true, "DEFS": true, "DZ": true, "DC": true,
	"ABYTE": true, "ABYTEC": true, "ABYTEZ": true,
	"ALIGN": true, "DISP": true, "PHASE": true, "ENT": true, "DEPHASE": true,
	"ASSERT": true, "INCLUDE": true, "INCBIN": true,
	"MACRO": true, "ENDM": true, "ENDMACRO": true,
	"REPT": true, "ENDR": true, "DUP": true, "EDUP": true,
	"STRUCT": true, "ENDS": true, "MODULE": true, "ENDMODULE": true,
	"IF": true, "IFDEF": true, "IFNDEF": true, "IFUSED": true, "IFNUSED": true,
	"ELSE": true, "ELSEIF": true, "ENDIF": true,
	"SAVEBIN": true, "SAVESNA": true, "EMPTYTAP": true, "SAVETAP": true,
	"EMPTYTRD": true, "SAVETRD": true, "DEVICE": true, "MD5CHECK": true,
	"END": true, "LUA": true, "ENDLUA": true,
}

// splitRawLines splits source text into rawLines, 1-indexed, tagged with
// file for diagnostics. A trailing newline does not produce an extra line.
func splitRawLines(file, source string) []rawLine {
	text := strings.ReplaceAll(source, "\r\n", "\n")
	parts := strings.Split(text, "\n")
	if len(parts) > 0 && parts[len(parts)-1] == "" {
		parts = parts[:len(parts)-1]
	}
	out := make([]rawLine, len(parts))
	for i, p := range parts {
		out[i] = rawLine{File: file, Num: i + 1, Text: p}
	}
	return out
}

// parseLine tokenizes one source line into label/directive-or-mnemonic/
// operands/comment. A label is either "name:" anywhere at the start of the
// token stream, or (sjasmplus style) a bare unindented first token that
// isn't itself a known directive/mnemonic/macro name.
func parseLine(raw rawLine, isMnemonic func(string) bool, isMacro func(string) bool) *Line {
	line := &Line{Number: raw.Num, File: raw.File, Raw: raw.Text}

	text, comment := splitComment(raw.Text)
	if strings.TrimSpace(text) == "" {
		line.IsBlank = true
		line.Comment = comment
		return line
	}
	line.Comment = comment

	indented := len(text) > 0 && (text[0] == ' ' || text[0] == '\t')
	trimmed := strings.TrimSpace(text)
	tokens := splitTokens(trimmed)
	if len(tokens) == 0 {
		line.IsBlank = true
		return line
	}

	first := tokens[0]
	if strings.HasSuffix(first, ":") {
		line.Label = strings.TrimSuffix(first, ":")
		tokens = tokens[1:]
	} else if !indented {
		upper := strings.ToUpper(first)
		if !directiveNames[upper] && !isMnemonic(upper) && !isMacro(upper) {
			line.Label = first
			tokens = tokens[1:]
		}
	}

	if len(tokens) == 0 {
		return line
	}

	first = tokens[0]
	upper := strings.ToUpper(first)
	operandStr := strings.Join(tokens[1:], " ")

	if directiveNames[upper] {
		line.Directive = upper
	} else {
		line.Mnemonic = upper
	}
	if operandStr != "" {
		line.Operands = splitOperands(operandStr)
	}
	return line
}

// splitComment removes a trailing ";" comment, respecting quoted strings.
func splitComment(s string) (code string, comment string) {
	inQuote := byte(0)
	for i := 0; i < len(s); i++ {
		c := s[i]
		if inQuote != 0 {
			if c == inQuote {
				inQuote = 0
			}
			continue
		}
		if c == '\'' || c == '"' {
			inQuote = c
			continue
		}
		if c == ';' {
			return s[:i], strings.TrimSpace(s[i+1:])
		}
	}
	return s, ""
}

// splitTokens splits on whitespace, keeping quoted strings intact.
func splitTokens(s string) []string {
	var out []string
	var cur strings.Builder
	inQuote := byte(0)
	flush := func() {
		if cur.Len() > 0 {
			out = append(out, cur.String())
			cur.Reset()
		}
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		if inQuote != 0 {
			cur.WriteByte(c)
			if c == inQuote {
				inQuote = 0
			}
			continue
		}
		switch {
		case c == '\'' || c == '"':
			inQuote = c
			cur.WriteByte(c)
		case c == ' ' || c == '\t':
			flush()
		default:
			cur.WriteByte(c)
		}
	}
	flush()
	return out
}

// splitOperands splits a comma-separated operand string, respecting
// parenthesis nesting and quoted strings so that "(IX+5)" and "LD A,','"
// both split correctly.
func splitOperands(s string) []string {
	var out []string
	var cur strings.Builder
	depth := 0
	inQuote := byte(0)
	for _, ch := range s {
		switch {
		case inQuote != 0:
			cur.WriteRune(ch)
			if byte(ch) == inQuote {
				inQuote = 0
			}
		case ch == '\'' || ch == '"':
			inQuote = byte(ch)
			cur.WriteRune(ch)
		case ch == '(':
			depth++
			cur.WriteRune(ch)
		case ch == ')':
			depth--
			cur.WriteRune(ch)
		case ch == ',' && depth == 0:
			out = append(out, strings.TrimSpace(cur.String()))
			cur.Reset()
		default:
			cur.WriteRune(ch)
		}
	}
	if cur.Len() > 0 || len(out) > 0 {
		out = append(out, strings.TrimSpace(cur.String()))
	}
	return out
}
