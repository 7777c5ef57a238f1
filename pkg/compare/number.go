package compare

import (
	"math/big"
	"strings"
)

// currencySymbols are stripped once from the front of a value.
var currencySymbols = []string{"$", "€", "£", "¥"}

// Number is an exact decimal parsed from cell text.
type Number struct {
	rat   *big.Rat
	scale int
}

// Zero returns the number zero.
func Zero() Number {
	return Number{rat: new(big.Rat)}
}

// Parse coerces cell text to a number: surrounding whitespace, one leading
// currency symbol and thousands commas are stripped, and a value wholly
// wrapped in parentheses is negative. Blank text parses as zero. Anything
// that is not then a plain decimal is not a number.
func Parse(s string) (Number, bool) {
	if strings.TrimSpace(s) == "" {
		return Zero(), true
	}
	body, negative := clean(s)
	return parseDecimal(body, negative)
}

// clean applies the coercion stripping steps and returns the remaining
// text plus whether accounting parentheses marked it negative.
func clean(s string) (string, bool) {
	s = stripCurrency(strings.TrimSpace(s))
	s = strings.ReplaceAll(s, ",", "")
	negative := false
	if len(s) >= 2 && s[0] == '(' && s[len(s)-1] == ')' {
		negative = true
		s = stripCurrency(strings.TrimSpace(s[1 : len(s)-1]))
	}
	return s, negative
}

// stripCurrency removes one currency symbol at the front, or right after a
// leading sign ("-$5").
func stripCurrency(s string) string {
	sign := ""
	if len(s) > 0 && (s[0] == '-' || s[0] == '+') {
		sign, s = s[:1], s[1:]
	}
	for _, sym := range currencySymbols {
		if strings.HasPrefix(s, sym) {
			return sign + strings.TrimSpace(s[len(sym):])
		}
	}
	return sign + s
}

// cleanText is the string-comparison form of s.
func cleanText(s string) string {
	body, negative := clean(s)
	if negative {
		return "-" + body
	}
	return body
}

// parseDecimal accepts [+-]digits[.digits] (or .digits). Exponents, hex,
// NaN and Inf are rejected. A sign inside accounting parentheses is rejected.
func parseDecimal(s string, negative bool) (Number, bool) {
	if s == "" {
		return Number{}, false
	}
	body := s
	if body[0] == '+' || body[0] == '-' {
		if negative {
			return Number{}, false
		}
		body = body[1:]
	}
	digits, scale, dot := 0, 0, false
	for i := 0; i < len(body); i++ {
		switch c := body[i]; {
		case c >= '0' && c <= '9':
			digits++
			if dot {
				scale++
			}
		case c == '.' && !dot:
			dot = true
		default:
			return Number{}, false
		}
	}
	if digits == 0 {
		return Number{}, false
	}
	if strings.HasPrefix(body, ".") {
		body = "0" + body
	}
	body = strings.TrimSuffix(body, ".")
	if s[0] == '-' {
		body = "-" + body
	}
	r, ok := new(big.Rat).SetString(body)
	if !ok {
		return Number{}, false
	}
	if negative {
		r.Neg(r)
	}
	return Number{rat: r, scale: scale}, true
}

func (n Number) r() *big.Rat {
	if n.rat == nil {
		return new(big.Rat)
	}
	return n.rat
}

// Add returns n + m.
func (n Number) Add(m Number) Number {
	return Number{rat: new(big.Rat).Add(n.r(), m.r()), scale: max(n.scale, m.scale)}
}

// Sub returns n - m.
func (n Number) Sub(m Number) Number {
	return Number{rat: new(big.Rat).Sub(n.r(), m.r()), scale: max(n.scale, m.scale)}
}

// Abs returns |n|.
func (n Number) Abs() Number {
	return Number{rat: new(big.Rat).Abs(n.r()), scale: n.scale}
}

// Cmp compares n and m and returns -1, 0 or +1.
func (n Number) Cmp(m Number) int {
	return n.r().Cmp(m.r())
}

// Float64 returns the nearest float64.
func (n Number) Float64() float64 {
	f, _ := n.r().Float64()
	return f
}

// String formats n with the largest scale of its inputs; integers print
// without a decimal point.
func (n Number) String() string {
	return n.r().FloatString(n.scale)
}
