package assembler

import "strings"

// bareTokens lists every operand spelling z80.Encode parses itself, rather
// than as an expression to be evaluated: registers, register pairs, index
// registers and halves, the condition codes, and the interrupt-mode/port-C
// special forms.
var bareTokens = map[string]bool{
	"A": true, "B": true, "C": true, "D": true, "E": true, "H": true, "L": true,
	"AF": true, "BC": true, "DE": true, "HL": true, "SP": true,
	"IX": true, "IY": true, "IXH": true, "IXL": true, "IYH": true, "IYL": true,
	"I": true, "R": true, "AF'": true,
	"Z": true, "NZ": true, "NC": true, "PO": true, "PE": true, "P": true, "M": true,
}

func isBareRegisterOrCondition(op string) bool {
	return bareTokens[strings.ToUpper(strings.TrimSpace(op))]
}

// splitIndexedOperand recognises "IX+expr" / "IY-expr" forms, returning the
// index register name and the (unevaluated) displacement expression text.
func splitIndexedOperand(inner string) (reg string, disp string, ok bool) {
	trimmed := strings.TrimSpace(inner)
	upper := strings.ToUpper(trimmed)
	for _, idx := range []string{"IX", "IY"} {
		if !strings.HasPrefix(upper, idx) {
			continue
		}
		rest := strings.TrimSpace(trimmed[len(idx):])
		if rest == "" {
			return "", "", false
		}
		if rest[0] != '+' && rest[0] != '-' {
			return "", "", false
		}
		return idx, rest, true
	}
	return "", "", false
}

// collectNested scans lines for the matching ender of a block that started
// with starter (already consumed by the caller), tracking nesting depth for
// block types that may recurse (REPT/DUP inside REPT/DUP). It returns the
// body lines (exclusive of the ender line) and the count of input lines
// consumed, including the ender line itself.
func collectNested(lines []rawLine, starter string, enders []string) (body []rawLine, consumed int) {
	depth := 0
	for i, raw := range lines {
		upper := firstTokenUpper(raw.Text)
		if upper == starter {
			depth++
			body = append(body, raw)
			continue
		}
		if containsUpper(enders, upper) {
			if depth == 0 {
				return body, i + 1
			}
			depth--
			body = append(body, raw)
			continue
		}
		body = append(body, raw)
	}
	return body, len(lines)
}

func containsUpper(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

// firstTokenUpper extracts the first whitespace-delimited token of a line
// (skipping a leading "label:" if present) and uppercases it, for the
// shallow keyword matching collectNested and the conditional stack need
// without a full parseLine call.
func firstTokenUpper(text string) string {
	code, _ := splitComment(text)
	tokens := splitTokens(strings.TrimSpace(code))
	if len(tokens) == 0 {
		return ""
	}
	first := tokens[0]
	if strings.HasSuffix(first, ":") {
		if len(tokens) < 2 {
			return ""
		}
		first = tokens[1]
	}
	return strings.ToUpper(first)
}
