package assembler

import (
	"fmt"
	"strconv"
	"strings"
)

// defineMacro parses a "MACRO name p1, p2, ..." header line and registers
// the already-collected body under name.
func (a *Assembler) defineMacro(line *Line, body []rawLine) {
	header := strings.Join(line.Operands, ",")
	header = strings.TrimSpace(header)
	if header == "" {
		a.addError(line, fmt.Errorf("MACRO requires a name"))
		return
	}
	fields := strings.SplitN(header, " ", 2)
	name := strings.ToUpper(strings.TrimSpace(fields[0]))
	var params []string
	if len(fields) == 2 {
		for _, p := range strings.Split(fields[1], ",") {
			p = strings.TrimSpace(p)
			if p != "" {
				params = append(params, p)
			}
		}
	}
	a.macros[name] = &Macro{Name: name, Params: params, Body: body}
}

// invokeMacro substitutes the call's arguments into the macro body
// positionally, mangles macro-local labels uniquely for this call, and
// processes the result as ordinary lines.
func (a *Assembler) invokeMacro(mac *Macro, line *Line) error {
	a.expansionSeq++
	callID := a.expansionSeq

	args := line.Operands
	substituted := make([]rawLine, len(mac.Body))
	for i, raw := range mac.Body {
		substituted[i] = rawLine{File: raw.File, Num: raw.Num, Text: substituteParams(raw.Text, mac.Params, args)}
	}
	substituted = renameLocalLabels(substituted, callID)
	a.processLines(substituted)
	return nil
}

// substituteParams replaces whole-word occurrences of each formal parameter
// name with its actual argument text (blank if the call supplied fewer
// arguments than the macro declares).
func substituteParams(text string, params []string, args []string) string {
	if len(params) == 0 {
		return text
	}
	return replaceIdentifiers(text, func(tok string) (string, bool) {
		for i, p := range params {
			if strings.EqualFold(p, tok) {
				if i < len(args) {
					return args[i], true
				}
				return "", true
			}
		}
		return "", false
	})
}

// renameLocalLabels mangles every colon-terminated label defined within
// body so repeated invocations of the same macro don't collide.
func renameLocalLabels(body []rawLine, callID int) []rawLine {
	renames := make(map[string]string)
	for _, raw := range body {
		code, _ := splitComment(raw.Text)
		tokens := splitTokens(strings.TrimSpace(code))
		if len(tokens) == 0 {
			continue
		}
		first := tokens[0]
		if !strings.HasSuffix(first, ":") {
			continue
		}
		name := strings.TrimSuffix(first, ":")
		if strings.HasPrefix(name, "@") || strings.HasPrefix(name, ".") {
			continue
		}
		renames[name] = name + "_m" + strconv.Itoa(callID)
	}
	if len(renames) == 0 {
		return body
	}
	out := make([]rawLine, len(body))
	for i, raw := range body {
		out[i] = rawLine{File: raw.File, Num: raw.Num, Text: replaceIdentifiers(raw.Text, func(tok string) (string, bool) {
			trimmed := strings.TrimSuffix(tok, ":")
			if renamed, ok := renames[trimmed]; ok {
				if strings.HasSuffix(tok, ":") {
					return renamed + ":", true
				}
				return renamed, true
			}
			return "", false
		})}
	}
	return out
}

// replaceIdentifiers scans text for identifier-shaped runs
// ([A-Za-z0-9_.@]+, optionally trailing ':') outside quoted strings and
// replaces each one lookup approves, leaving everything else untouched.
func replaceIdentifiers(text string, lookup func(tok string) (string, bool)) string {
	var out strings.Builder
	inQuote := byte(0)
	i := 0
	isIdentByte := func(c byte) bool {
		return c == '_' || c == '.' || c == '@' ||
			(c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9')
	}
	for i < len(text) {
		c := text[i]
		if inQuote != 0 {
			out.WriteByte(c)
			if c == inQuote {
				inQuote = 0
			}
			i++
			continue
		}
		if c == '\'' || c == '"' {
			inQuote = c
			out.WriteByte(c)
			i++
			continue
		}
		if isIdentByte(c) {
			j := i
			for j < len(text) && isIdentByte(text[j]) {
				j++
			}
			if j < len(text) && text[j] == ':' {
				j++
			}
			tok := text[i:j]
			if replacement, ok := lookup(tok); ok {
				out.WriteString(replacement)
			} else {
				out.WriteString(tok)
			}
			i = j
			continue
		}
		out.WriteByte(c)
		i++
	}
	return out.String()
}

// expandRept runs body count times, where count is REPT's/DUP's operand
// expression evaluated against the current pass state. Unlike MACRO, REPT
// bodies are not label-mangled: sjasmplus programs rely on $ advancing and
// numbered temporary labels instead.
func (a *Assembler) expandRept(line *Line, body []rawLine) {
	if len(line.Operands) == 0 {
		a.addError(line, fmt.Errorf("%s requires a count expression", line.Directive))
		return
	}
	count, undef, err := a.evalExpr(line.Operands[0])
	if err != nil {
		a.addError(line, err)
		return
	}
	if undef {
		return
	}
	for n := int32(0); n < count; n++ {
		a.processLines(body)
	}
}
