package policy

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/agentstation/tally/pkg/compare"
	"github.com/agentstation/tally/pkg/errors"
)

// AssertionKind selects what an assertion reads.
type AssertionKind string

// Assertion kinds.
const (
	// CellAssertion checks an evaluated cell value.
	CellAssertion AssertionKind = "cell"
	// SumAssertion checks the exact sum of a dataset column.
	SumAssertion AssertionKind = "sum"
)

// Assertion is a point check: the value at Location must equal Expected
// within Tolerance. A violated assertion always fails.
type Assertion struct {
	Kind      AssertionKind `json:"kind" yaml:"kind" mapstructure:"kind"`
	Location  string        `json:"location" yaml:"location" mapstructure:"location"`
	Expected  string        `json:"expected" yaml:"expected" mapstructure:"expected"`
	Tolerance float64       `json:"tolerance" yaml:"tolerance" mapstructure:"tolerance"`
}

// Name labels the assertion in verdicts.
func (a Assertion) Name() string {
	return fmt.Sprintf("assert_%s:%s", a.Kind, a.Location)
}

// Validate checks the assertion is well formed.
func (a Assertion) Validate() error {
	if a.Kind != CellAssertion && a.Kind != SumAssertion {
		return &errors.ValidationError{Field: "assertion.kind", Value: a.Kind, Message: "must be cell or sum"}
	}
	if strings.TrimSpace(a.Location) == "" {
		return &errors.ValidationError{Field: "assertion.location", Message: "cannot be empty"}
	}
	if strings.TrimSpace(a.Expected) == "" {
		return &errors.ValidationError{Field: "assertion.expected", Value: a.Expected, Message: "cannot be empty"}
	}
	if _, ok := compare.Parse(a.Expected); !ok {
		return &errors.ValidationError{Field: "assertion.expected", Value: a.Expected, Message: "must be a number"}
	}
	if _, err := compare.New(a.Tolerance); err != nil {
		return err
	}
	return nil
}

// ParseCellAssertion parses "<location>:<expected>[:<tolerance>]", e.g.
// "Summary!B7:100:0.5".
func ParseCellAssertion(s string) (Assertion, error) {
	return parseAssertion(CellAssertion, s)
}

// ParseSumAssertion parses "<column>:<expected>[:<tolerance>]", e.g.
// "amount:1000:0.01".
func ParseSumAssertion(s string) (Assertion, error) {
	return parseAssertion(SumAssertion, s)
}

func parseAssertion(kind AssertionKind, s string) (Assertion, error) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) < 2 {
		return Assertion{}, &errors.ValidationError{Field: "assertion", Value: s, Message: "expected <location>:<expected>[:<tolerance>]"}
	}

	a := Assertion{Kind: kind}
	if len(parts) >= 3 {
		if tol, err := strconv.ParseFloat(parts[len(parts)-1], 64); err == nil {
			if _, ok := compare.Parse(parts[len(parts)-2]); ok {
				a.Tolerance = tol
				a.Expected = parts[len(parts)-2]
				a.Location = strings.Join(parts[:len(parts)-2], ":")
			}
		}
	}
	if a.Location == "" {
		a.Expected = parts[len(parts)-1]
		a.Location = strings.Join(parts[:len(parts)-1], ":")
	}
	if err := a.Validate(); err != nil {
		return Assertion{}, err
	}
	return a, nil
}

// check evaluates the assertion against an actual value.
func (a Assertion) check(actual string, found bool) Check {
	c := Check{Name: a.Name(), Expected: a.Expected, Actual: actual}
	fail := func(format string, args ...any) Check {
		c.Status = StatusFail
		c.Message = fmt.Sprintf(format, args...)
		return c
	}

	if !found {
		return fail("%s %s not found", a.Kind, a.Location)
	}
	if strings.TrimSpace(actual) == "" {
		return fail("%s %s is empty, expected %s", a.Kind, a.Location, a.Expected)
	}
	got, ok := compare.Parse(actual)
	if !ok {
		return fail("%s %s holds non-numeric %q, expected %s", a.Kind, a.Location, actual, a.Expected)
	}
	want, _ := compare.Parse(a.Expected)
	comparator, err := compare.New(a.Tolerance)
	if err != nil {
		return fail("%v", err)
	}
	res := comparator.CompareNumbers(got, want)
	if !res.WithinTolerance {
		return fail("%s %s is %s, expected %s ± %v", a.Kind, a.Location, actual, a.Expected, a.Tolerance)
	}
	c.Status = StatusPass
	return c
}

// Err converts a failed check into an AssertionError.
func (c Check) Err() error {
	if c.Status != StatusFail {
		return nil
	}
	return &errors.AssertionError{Location: c.Name, Expected: c.Expected, Actual: c.Actual, Message: c.Message}
}
