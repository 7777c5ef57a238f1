package reconcile

import (
	"github.com/agentstation/tally/pkg/compare"
	"github.com/agentstation/tally/pkg/match"
)

// Group is one reconciled key: the unit of classification.
type Group struct {
	// Key is the normalized key; KeyRaw the first raw spelling seen.
	Key    string `json:"key" yaml:"key"`
	KeyRaw string `json:"key_raw" yaml:"key_raw"`

	Bucket Bucket `json:"status" yaml:"status"`

	// Sides holds one entry per source that has the key, in source order.
	Sides []*Side `json:"sides" yaml:"sides"`

	// Diffs lists every compared column whose raw values differ, measured
	// against the primary side.
	Diffs []Diff `json:"diffs,omitempty" yaml:"diffs,omitempty"`

	// Timing lists timing comparisons against the primary side.
	Timing []TimingDiff `json:"timing,omitempty" yaml:"timing,omitempty"`

	// Explain records substring pairings made under the contains strategy.
	Explain []Explain `json:"match_explain,omitempty" yaml:"match_explain,omitempty"`

	// Candidates lists every candidate of an ambiguous key.
	Candidates []Candidate `json:"candidates,omitempty" yaml:"candidates,omitempty"`

	ambiguous map[string]bool
}

// Side is one source's rows for a group.
type Side struct {
	Source    string        `json:"source" yaml:"source"`
	KeyRaw    string        `json:"key_raw" yaml:"key_raw"`
	Rows      []RowSnapshot `json:"rows" yaml:"rows"`
	Aggregate Aggregate     `json:"aggregate" yaml:"aggregate"`

	// values holds the representative value of each compared column:
	// the raw value, or the roll-up of several rows.
	values   map[string]string
	rowIndex []int
}

// Value returns the representative value of a compared column.
func (s *Side) Value(column string) string {
	return s.values[column]
}

// RowSnapshot is a copy of one input row.
type RowSnapshot struct {
	Index  int               `json:"index" yaml:"index"`
	Values map[string]string `json:"values" yaml:"values"`
}

// Aggregate summarizes the rows rolled into one side.
type Aggregate struct {
	Count int `json:"count" yaml:"count"`

	// Sums holds the exact decimal sum of each compared column whose
	// values are all numeric.
	Sums map[string]string `json:"sums,omitempty" yaml:"sums,omitempty"`
}

// Diff is one compared column of one non-primary side against the primary.
type Diff struct {
	Source          string       `json:"source" yaml:"source"`
	Column          string       `json:"column" yaml:"column"`
	Left            string       `json:"left" yaml:"left"`
	Right           string       `json:"right" yaml:"right"`
	Delta           *float64     `json:"delta,omitempty" yaml:"delta,omitempty"`
	WithinTolerance bool         `json:"within_tolerance" yaml:"within_tolerance"`
	Kind            compare.Kind `json:"kind" yaml:"kind"`
}

// TimingDiff is the timing comparison of one non-primary side.
type TimingDiff struct {
	Source  string  `json:"source" yaml:"source"`
	Column  string  `json:"column" yaml:"column"`
	Left    string  `json:"left" yaml:"left"`
	Right   string  `json:"right" yaml:"right"`
	Offset  float64 `json:"offset" yaml:"offset"`
	Allowed float64 `json:"allowed" yaml:"allowed"`
	Within  bool    `json:"within" yaml:"within"`
	Message string  `json:"message,omitempty" yaml:"message,omitempty"`
}

// Explain records one substring pairing.
type Explain struct {
	Source        string `json:"source" yaml:"source"`
	match.Explain `yaml:",inline"`
}

// Candidate is one candidate of an ambiguous key.
type Candidate struct {
	Source          string `json:"source" yaml:"source"`
	match.Candidate `yaml:",inline"`
}

// Side returns the side of source, or nil.
func (g *Group) Side(source string) *Side {
	for _, s := range g.Sides {
		if s.Source == source {
			return s
		}
	}
	return nil
}

// Has reports whether source holds the key.
func (g *Group) Has(source string) bool {
	return g.Side(source) != nil
}

// AmbiguousWith reports whether the key was ambiguous against source.
func (g *Group) AmbiguousWith(source string) bool {
	return g.ambiguous[source]
}

// OutsideTolerance counts diffs that are not within tolerance.
func (g *Group) OutsideTolerance() int {
	n := 0
	for _, d := range g.Diffs {
		if !d.WithinTolerance {
			n++
		}
	}
	return n
}
