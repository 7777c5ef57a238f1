package policy

import (
	"fmt"
	"strconv"

	"github.com/agentstation/tally/pkg/compare"
	"github.com/agentstation/tally/pkg/constants"
	"github.com/agentstation/tally/pkg/differ"
	"github.com/agentstation/tally/pkg/errors"
	"github.com/agentstation/tally/pkg/fingerprint"
	"github.com/agentstation/tally/pkg/reconcile"
)

// Input is everything a verdict is computed from. All fields are optional.
type Input struct {
	// Delta is the structural drift against the baseline.
	Delta *differ.StructuralDelta

	// Buckets are the bucket counts of a reconciliation.
	Buckets []reconcile.BucketCount

	Assertions []Assertion

	// Values holds evaluated cell values by location for cell assertions.
	Values map[string]string

	// Columns holds raw column values by column name for sum assertions.
	Columns map[string][]string

	// FirstSeen marks a dataset with no baseline yet.
	FirstSeen bool

	BaselineFingerprint string
	Fingerprint         string
}

// Check is the outcome of one policy check.
type Check struct {
	Name     string `json:"name" yaml:"name"`
	Status   Status `json:"status" yaml:"status"`
	Message  string `json:"message,omitempty" yaml:"message,omitempty"`
	Expected string `json:"expected,omitempty" yaml:"expected,omitempty"`
	Actual   string `json:"actual,omitempty" yaml:"actual,omitempty"`
}

// Verdict is the overall outcome: the most severe check status, or
// baseline_created for first-seen data.
type Verdict struct {
	Status Status  `json:"status" yaml:"status"`
	Checks []Check `json:"checks" yaml:"checks"`
}

// Failed returns the failing checks.
func (v *Verdict) Failed() []Check {
	var out []Check
	for _, c := range v.Checks {
		if c.Status == StatusFail {
			out = append(out, c)
		}
	}
	return out
}

// ExitCode maps the verdict to a process exit code. noFail forces success
// so drift is recorded without breaking a pipeline.
func (v *Verdict) ExitCode(noFail bool) int {
	if noFail || v.Status != StatusFail {
		return constants.ExitSuccess
	}
	return constants.ExitPolicyFail
}

// Evaluate computes a verdict. Checks are listed in a fixed order:
// structure, fingerprint, buckets, assertions.
func Evaluate(cfg Config, in Input) *Verdict {
	v := &Verdict{Checks: []Check{}}
	add := func(c Check) {
		v.Checks = append(v.Checks, c)
	}
	triggered := func(name string, sev Severity, hit bool, expected, actual, message string) Check {
		c := Check{Name: name, Status: StatusPass, Expected: expected, Actual: actual}
		if hit {
			c.Status = statusOf(sev)
			c.Message = message
		}
		return c
	}

	if in.Delta != nil && !in.FirstSeen {
		d := in.Delta
		add(triggered("row_count", cfg.rowCount(d.RowCountChange), d.RowCountChange != 0,
			strconv.Itoa(d.Baseline.RowCount), strconv.Itoa(d.Current.RowCount),
			fmt.Sprintf("row count changed by %+d", d.RowCountChange)))
		add(triggered("columns_added", cfg.ColumnsAdded, len(d.ColumnsAdded) > 0, "", "",
			fmt.Sprintf("columns added: %v", d.ColumnsAdded)))
		add(triggered("columns_removed", cfg.ColumnsRemoved, len(d.ColumnsRemoved) > 0, "", "",
			fmt.Sprintf("columns removed: %v", d.ColumnsRemoved)))
	}

	if in.BaselineFingerprint != "" && in.Fingerprint != "" && !in.FirstSeen {
		add(triggered("fingerprint_changed", cfg.FingerprintChanged, fingerprintChanged(in.BaselineFingerprint, in.Fingerprint),
			in.BaselineFingerprint, in.Fingerprint, "fingerprint differs from baseline"))
	}

	for _, bc := range in.Buckets {
		if bc.Bucket == reconcile.Matched {
			continue
		}
		add(triggered("bucket:"+bc.Bucket.String(), cfg.bucket(bc.Bucket), bc.Count > 0, "0", strconv.Itoa(bc.Count),
			fmt.Sprintf("%d groups %s", bc.Count, bc.Bucket)))
	}

	for _, a := range in.Assertions {
		add(evaluateAssertion(a, in))
	}

	if in.FirstSeen {
		v.Status = StatusBaselineCreated
		return v
	}
	v.Status = StatusPass
	for _, c := range v.Checks {
		if c.Status.rank() > v.Status.rank() {
			v.Status = c.Status
		}
	}
	return v
}

// fingerprintChanged compares fingerprints by value, so hash case and the
// legacy form do not count as changes. Unparseable strings compare as text.
func fingerprintChanged(baseline, current string) bool {
	b, err := fingerprint.Parse(baseline)
	if err != nil {
		return baseline != current
	}
	c, err := fingerprint.Parse(current)
	if err != nil {
		return baseline != current
	}
	return !b.Equal(c)
}

func evaluateAssertion(a Assertion, in Input) Check {
	if err := a.Validate(); err != nil {
		return Check{Name: a.Name(), Status: StatusFail, Message: err.Error(), Expected: a.Expected}
	}
	switch a.Kind {
	case SumAssertion:
		values, ok := in.Columns[a.Location]
		if !ok {
			return a.check("", false)
		}
		sum, bad, ok := compare.Sum(values)
		if !ok {
			return Check{
				Name:     a.Name(),
				Status:   StatusFail,
				Expected: a.Expected,
				Actual:   values[bad],
				Message:  fmt.Sprintf("column %s row %d holds non-numeric %q", a.Location, bad+1, values[bad]),
			}
		}
		return a.check(sum.String(), true)
	default:
		actual, ok := in.Values[a.Location]
		return a.check(actual, ok)
	}
}

// ExitCodeFor maps an error to its process exit code.
func ExitCodeFor(err error) int {
	switch {
	case err == nil:
		return constants.ExitSuccess
	case errors.IsDuplicateKey(err):
		return constants.ExitDuplicateKey
	case errors.IsAmbiguous(err):
		return constants.ExitAmbiguous
	case errors.IsParse(err), errors.IsNotFound(err), isIO(err):
		return constants.ExitParse
	case errors.Is(err, errors.ErrInvalidInput):
		return constants.ExitUsage
	default:
		return constants.ExitPolicyFail
	}
}

func isIO(err error) bool {
	var ioErr *errors.IOError
	return errors.As(err, &ioErr)
}
