package reconcile

import (
	"time"
)

// Result is the outcome of a reconciliation run.
type Result struct {
	Summary Summary  `json:"summary" yaml:"summary"`
	Groups  []*Group `json:"results" yaml:"results"`

	// Metadata describes the run itself and is never serialized, so that
	// identical inputs always produce identical output.
	Metadata Metadata `json:"-" yaml:"-"`
}

// Metadata contains information about the run.
type Metadata struct {
	RunID     string
	StartTime time.Time
	EndTime   time.Time
	Duration  time.Duration
	Workers   int
}

// ByBucket returns the groups in bucket b, in result order.
func (r *Result) ByBucket(b Bucket) []*Group {
	var out []*Group
	for _, g := range r.Groups {
		if g.Bucket == b {
			out = append(out, g)
		}
	}
	return out
}

// Ambiguous returns the ambiguous groups.
func (r *Result) Ambiguous() []*Group {
	return r.ByBucket(Ambiguous)
}

// Discrepancies returns every group that is not matched.
func (r *Result) Discrepancies() []*Group {
	var out []*Group
	for _, g := range r.Groups {
		if g.Bucket != Matched {
			out = append(out, g)
		}
	}
	return out
}
