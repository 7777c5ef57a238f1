// Package compare compares cell values under an absolute tolerance.
//
// Values are coerced to exact decimals when possible (currency symbols,
// thousands separators and accounting parentheses understood); anything
// else is compared as text. Arithmetic is exact, so a delta equal to the
// tolerance is always within it.
package compare

import (
	"fmt"
	"math"
	"math/big"
	"strconv"

	"github.com/agentstation/tally/pkg/errors"
)

// Kind is the kind of comparison that was performed.
type Kind string

// Comparison kinds.
const (
	Numeric Kind = "numeric"
	String  Kind = "string"
)

// Result is the outcome of comparing two cell values.
type Result struct {
	WithinTolerance bool     `json:"within_tolerance" yaml:"within_tolerance"`
	Delta           *float64 `json:"delta,omitempty" yaml:"delta,omitempty"`
	Kind            Kind     `json:"kind" yaml:"kind"`
}

// Comparator compares values against a fixed tolerance.
type Comparator struct {
	tolerance Number
	raw       float64
}

// New returns a comparator for tolerance. Negative, NaN and infinite
// tolerances are configuration errors.
func New(tolerance float64) (*Comparator, error) {
	if math.IsNaN(tolerance) || math.IsInf(tolerance, 0) {
		return nil, &errors.ConfigError{Component: "tolerance", Message: "tolerance must be a finite number"}
	}
	if tolerance < 0 {
		return nil, &errors.ConfigError{Component: "tolerance", Message: fmt.Sprintf("tolerance must not be negative, got %v", tolerance)}
	}
	// The shortest decimal that round-trips is what the user wrote.
	r, _ := new(big.Rat).SetString(strconv.FormatFloat(tolerance, 'f', -1, 64))
	return &Comparator{tolerance: Number{rat: r}, raw: tolerance}, nil
}

// ParseTolerance parses a tolerance from text, accepting the same
// currency and separator forms as values.
func ParseTolerance(s string) (float64, error) {
	n, ok := Parse(s)
	if !ok {
		return 0, &errors.ConfigError{Component: "tolerance", Message: fmt.Sprintf("invalid tolerance %q", s)}
	}
	f := n.Float64()
	if _, err := New(f); err != nil {
		return 0, err
	}
	return f, nil
}

// Tolerance returns the configured tolerance.
func (c *Comparator) Tolerance() float64 {
	return c.raw
}

// Compare compares left and right.
func (c *Comparator) Compare(left, right string) Result {
	l, lok := Parse(left)
	r, rok := Parse(right)
	if !lok || !rok {
		return Result{WithinTolerance: cleanText(left) == cleanText(right), Kind: String}
	}
	delta := l.Sub(r).Abs()
	d := delta.Float64()
	return Result{
		WithinTolerance: delta.Cmp(c.tolerance) <= 0,
		Delta:           &d,
		Kind:            Numeric,
	}
}

// CompareNumbers compares two already-parsed numbers.
func (c *Comparator) CompareNumbers(l, r Number) Result {
	delta := l.Sub(r).Abs()
	d := delta.Float64()
	return Result{WithinTolerance: delta.Cmp(c.tolerance) <= 0, Delta: &d, Kind: Numeric}
}

// Compare compares left and right under tolerance. An invalid tolerance
// never matches anything.
func Compare(left, right string, tolerance float64) Result {
	c, err := New(tolerance)
	if err != nil {
		return Result{Kind: String}
	}
	return c.Compare(left, right)
}

// Sum adds the numeric coercion of every value. It reports false (and the
// offending index) when any value is not numeric; values are never
// silently treated as zero except blanks.
func Sum(values []string) (Number, int, bool) {
	total := Zero()
	for i, v := range values {
		n, ok := Parse(v)
		if !ok {
			return Number{}, i, false
		}
		total = total.Add(n)
	}
	return total, -1, true
}
