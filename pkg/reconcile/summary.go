package reconcile

import (
	"github.com/agentstation/tally/pkg/compare"
	"github.com/agentstation/tally/pkg/keys"
	"github.com/agentstation/tally/pkg/match"
)

// Summary holds the run-level aggregates of a reconciliation.
type Summary struct {
	Sources []SourceSummary `json:"sources" yaml:"sources"`

	Groups  int            `json:"groups" yaml:"groups"`
	Buckets []BucketCount  `json:"buckets" yaml:"buckets"`
	Counts  map[Bucket]int `json:"-" yaml:"-"`

	// DiffOutsideTolerance counts column diffs beyond tolerance.
	DiffOutsideTolerance int `json:"diff_outside_tolerance" yaml:"diff_outside_tolerance"`

	// NetDeltas sums primary minus other over every paired numeric cell.
	NetDeltas []NetDelta `json:"net_deltas,omitempty" yaml:"net_deltas,omitempty"`

	Tolerance   float64               `json:"tolerance" yaml:"tolerance"`
	Strategy    match.Strategy        `json:"match" yaml:"match"`
	Transform   keys.Transform        `json:"key_transform" yaml:"key_transform"`
	OnAmbiguous match.AmbiguityPolicy `json:"on_ambiguous" yaml:"on_ambiguous"`
	OnDuplicate match.DuplicatePolicy `json:"on_duplicate" yaml:"on_duplicate"`
	Compare     []string              `json:"compare" yaml:"compare"`
	Timing      *TimingSettings       `json:"timing,omitempty" yaml:"timing,omitempty"`
}

// SourceSummary describes one participating source.
type SourceSummary struct {
	Name string `json:"name" yaml:"name"`
	Key  string `json:"key" yaml:"key"`
	Rows int    `json:"rows" yaml:"rows"`

	// Totals holds the exact sum of each compared numeric column over all rows.
	Totals map[string]string `json:"totals,omitempty" yaml:"totals,omitempty"`
}

// BucketCount is the number of groups in one bucket.
type BucketCount struct {
	Bucket Bucket `json:"bucket" yaml:"bucket"`
	Count  int    `json:"count" yaml:"count"`
}

// NetDelta is the signed total difference of one column against one source.
type NetDelta struct {
	Source string `json:"source" yaml:"source"`
	Column string `json:"column" yaml:"column"`
	Net    string `json:"net" yaml:"net"`
	Pairs  int    `json:"pairs" yaml:"pairs"`
}

// TimingSettings echoes the timing configuration.
type TimingSettings struct {
	Column    string  `json:"column" yaml:"column"`
	MaxOffset float64 `json:"max_offset" yaml:"max_offset"`
}

// Count returns the number of groups in bucket b.
func (s *Summary) Count(b Bucket) int {
	return s.Counts[b]
}

// Clean reports whether every group is matched.
func (s *Summary) Clean() bool {
	return s.Counts[Matched] == s.Groups
}

// summarize reduces classified groups into a summary. It reads groups
// and never modifies them.
func summarize(o *options, sources []Source, columns []string, groups []*Group) Summary {
	s := Summary{
		Groups:      len(groups),
		Counts:      make(map[Bucket]int),
		Tolerance:   o.tolerance,
		Strategy:    o.strategy,
		Transform:   o.transform,
		OnAmbiguous: o.onAmbiguous,
		OnDuplicate: o.onDuplicate,
		Compare:     append([]string{}, columns...),
	}
	if o.timing != "" {
		s.Timing = &TimingSettings{Column: o.timing, MaxOffset: o.timingMax}
	}

	for _, src := range sources {
		ss := SourceSummary{Name: src.Name, Key: src.Key, Rows: src.Data.Len()}
		for _, column := range columns {
			values := make([]string, src.Data.Len())
			for i, row := range src.Data.Rows {
				values[i] = row.Raw(src.column(column))
			}
			if total, _, ok := compare.Sum(values); ok {
				if ss.Totals == nil {
					ss.Totals = make(map[string]string)
				}
				ss.Totals[column] = total.String()
			}
		}
		s.Sources = append(s.Sources, ss)
	}

	type netKey struct{ source, column string }
	nets := make(map[netKey]compare.Number)
	pairs := make(map[netKey]int)
	primary := sources[0].Name

	for _, g := range groups {
		s.Counts[g.Bucket]++
		s.DiffOutsideTolerance += g.OutsideTolerance()

		base := g.Side(primary)
		if base == nil {
			continue
		}
		for _, src := range sources[1:] {
			other := g.Side(src.Name)
			if other == nil {
				continue
			}
			for _, column := range columns {
				l, lok := compare.Parse(base.Value(column))
				r, rok := compare.Parse(other.Value(column))
				if !lok || !rok {
					continue
				}
				k := netKey{src.Name, column}
				if _, ok := nets[k]; !ok {
					nets[k] = compare.Zero()
				}
				nets[k] = nets[k].Add(l.Sub(r))
				pairs[k]++
			}
		}
	}

	for _, b := range sortedBuckets(s.Counts) {
		s.Buckets = append(s.Buckets, BucketCount{Bucket: b, Count: s.Counts[b]})
	}
	for _, src := range sources[1:] {
		for _, column := range columns {
			k := netKey{src.Name, column}
			if n, ok := nets[k]; ok {
				s.NetDeltas = append(s.NetDeltas, NetDelta{Source: src.Name, Column: column, Net: n.String(), Pairs: pairs[k]})
			}
		}
	}
	return s
}
