package fingerprint

import (
	"strings"
)

// volatileFunctions recompute on every evaluation, so their cells can
// change value without any content change.
var volatileFunctions = map[string]bool{
	"NOW":         true,
	"TODAY":       true,
	"RAND":        true,
	"RANDBETWEEN": true,
	"OFFSET":      true,
	"INDIRECT":    true,
}

// NormalizeFormula returns the canonical text of a formula: the leading
// "=" dropped, every unquoted token upper-cased, string literals and quoted
// sheet names kept verbatim, and whitespace removed except where it is the
// intersection operator between two operands, which becomes one space.
func NormalizeFormula(src string) string {
	normalized, _ := parseFormula(src)
	return normalized
}

// Functions returns the function names a formula calls, upper-cased, in
// order of first use.
func Functions(src string) []string {
	_, fns := parseFormula(src)
	return fns
}

// Volatile returns the volatile functions a formula calls.
func Volatile(src string) []string {
	var out []string
	for _, fn := range Functions(src) {
		if volatileFunctions[fn] {
			out = append(out, fn)
		}
	}
	return out
}

func operandEnd(c byte) bool {
	return isIdent(c) || c == ')' || c == '\'' || c == '"' || c == ']'
}

func operandStart(c byte) bool {
	return isIdent(c) || c == '(' || c == '\'' || c == '$'
}

func isIdent(c byte) bool {
	return (c >= 'A' && c <= 'Z') || (c >= 'a' && c <= 'z') || (c >= '0' && c <= '9') || c == '_' || c == '.' || c == '$'
}

func upper(c byte) byte {
	if c >= 'a' && c <= 'z' {
		return c - 'a' + 'A'
	}
	return c
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r'
}

// parseFormula scans a formula once, producing the normalized text and the
// called function names.
func parseFormula(src string) (string, []string) {
	s := strings.TrimSpace(src)
	s = strings.TrimPrefix(s, "=")

	var b strings.Builder
	b.Grow(len(s))
	var fns []string
	seen := make(map[string]bool)

	for i := 0; i < len(s); {
		c := s[i]
		switch {
		case c == '"' || c == '\'':
			// literal or quoted sheet name; a doubled quote escapes itself
			j := i + 1
			for j < len(s) {
				if s[j] == c {
					if j+1 < len(s) && s[j+1] == c {
						j += 2
						continue
					}
					j++
					break
				}
				j++
			}
			b.WriteString(s[i:j])
			i = j

		case isSpace(c):
			j := i
			for j < len(s) && isSpace(s[j]) {
				j++
			}
			out := b.String()
			if len(out) > 0 && j < len(s) && operandEnd(out[len(out)-1]) && operandStart(s[j]) {
				b.WriteByte(' ')
			}
			i = j

		case isIdent(c):
			j := i
			for j < len(s) && isIdent(s[j]) {
				j++
			}
			token := make([]byte, j-i)
			for k := i; k < j; k++ {
				token[k-i] = upper(s[k])
			}
			b.Write(token)

			// a name directly followed by "(" (ignoring spaces) is a call
			k := j
			for k < len(s) && isSpace(s[k]) {
				k++
			}
			if k < len(s) && s[k] == '(' {
				name := string(token)
				if !seen[name] {
					seen[name] = true
					fns = append(fns, name)
				}
				i = k
				continue
			}
			i = j

		default:
			b.WriteByte(c)
			i++
		}
	}
	return b.String(), fns
}
