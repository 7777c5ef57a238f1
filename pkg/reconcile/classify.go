package reconcile

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/agentstation/tally/pkg/compare"
)

// timingLayouts are the date layouts a timing column may use.
var timingLayouts = []string{
	"2006-01-02",
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006/01/02",
	"01/02/2006",
}

// parseTiming returns a timing value in days for dates and in units for
// plain numbers.
func parseTiming(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	for _, layout := range timingLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return float64(t.Unix()) / 86400, true
		}
	}
	if n, ok := compare.Parse(s); ok {
		return n.Float64(), true
	}
	return 0, false
}

// rollup reduces the raw values of several rows to one representative
// value: the exact sum when every value is numeric, otherwise the distinct
// values joined by "|", which then compare as text.
func rollup(values []string) (string, bool) {
	if len(values) == 1 {
		_, ok := compare.Parse(values[0])
		return values[0], ok
	}
	if sum, _, ok := compare.Sum(values); ok {
		return sum.String(), true
	}
	seen := make(map[string]bool, len(values))
	var distinct []string
	for _, v := range values {
		if !seen[v] {
			seen[v] = true
			distinct = append(distinct, v)
		}
	}
	return strings.Join(distinct, "|"), false
}

// earliest picks the smallest timing value of several rows. Unparseable
// values make the whole roll-up unparseable.
func earliest(values []string) string {
	if len(values) == 1 {
		return values[0]
	}
	best, bestVal := "", math.Inf(1)
	for _, v := range values {
		t, ok := parseTiming(v)
		if !ok {
			return strings.Join(values, "|")
		}
		if t < bestVal {
			best, bestVal = v, t
		}
	}
	return best
}

// classifier classifies groups. It only reads shared configuration.
type classifier struct {
	sources    []Source
	columns    []string
	timing     string
	timingMax  float64
	comparator *compare.Comparator
}

// fillSide builds the row snapshots, representative values and aggregate
// of a side.
func (c *classifier) fillSide(side *Side, src Source, rows []int) {
	side.Rows = make([]RowSnapshot, len(rows))
	for i, idx := range rows {
		side.Rows[i] = RowSnapshot{Index: idx, Values: src.Data.Rows[idx].Snapshot()}
	}
	side.values = make(map[string]string, len(c.columns)+1)
	side.Aggregate = Aggregate{Count: len(rows)}

	raw := func(column string) []string {
		out := make([]string, len(rows))
		for i, idx := range rows {
			out[i] = src.Data.Rows[idx].Raw(src.column(column))
		}
		return out
	}
	for _, column := range c.columns {
		value, numeric := rollup(raw(column))
		side.values[column] = value
		if numeric {
			if side.Aggregate.Sums == nil {
				side.Aggregate.Sums = make(map[string]string)
			}
			n, _ := compare.Parse(value)
			side.Aggregate.Sums[column] = n.String()
		}
	}
	if c.timing != "" {
		side.values[c.timing] = earliest(raw(c.timing))
	}
}

// classify assigns the bucket of one group. Each non-primary source is
// compared pairwise with the primary; the group takes the most severe
// outcome. One-sided groups name the sources that hold the key.
func (c *classifier) classify(g *Group) {
	primary := c.sources[0].Name
	base := g.Side(primary)

	if base == nil {
		names := make([]string, 0, len(g.Sides))
		for _, s := range g.Sides {
			names = append(names, s.Source)
		}
		g.Bucket = OnlyBucket(names...)
		return
	}

	bucket := Matched
	present := []string{primary}
	missing := false
	for _, src := range c.sources[1:] {
		if g.AmbiguousWith(src.Name) {
			bucket = worse(bucket, Ambiguous)
			continue
		}
		other := g.Side(src.Name)
		if other == nil {
			missing = true
			continue
		}
		present = append(present, src.Name)
		bucket = worse(bucket, c.comparePair(g, base, other))
	}
	if missing {
		bucket = worse(bucket, OnlyBucket(present...))
	}
	g.Bucket = bucket
}

// comparePair records the diffs and timing of other against base and
// returns the pairwise bucket.
func (c *classifier) comparePair(g *Group, base, other *Side) Bucket {
	bucket := Matched
	for _, column := range c.columns {
		l, r := base.values[column], other.values[column]
		if l == r {
			continue
		}
		res := c.comparator.Compare(l, r)
		g.Diffs = append(g.Diffs, Diff{
			Source:          other.Source,
			Column:          column,
			Left:            l,
			Right:           r,
			Delta:           res.Delta,
			WithinTolerance: res.WithinTolerance,
			Kind:            res.Kind,
		})
		if !res.WithinTolerance {
			bucket = AmountMismatch
		}
	}
	if c.timing == "" {
		return bucket
	}

	td := c.compareTiming(base.values[c.timing], other.values[c.timing])
	td.Source = other.Source
	g.Timing = append(g.Timing, td)
	if bucket == Matched && !td.Within {
		bucket = TimingMismatch
	}
	return bucket
}

func (c *classifier) compareTiming(l, r string) TimingDiff {
	td := TimingDiff{Column: c.timing, Left: l, Right: r, Allowed: c.timingMax}
	if strings.TrimSpace(l) == "" && strings.TrimSpace(r) == "" {
		td.Within = true
		return td
	}
	lt, lok := parseTiming(l)
	rt, rok := parseTiming(r)
	if !lok || !rok {
		td.Message = fmt.Sprintf("cannot compare timing values %q and %q", l, r)
		return td
	}
	td.Offset = math.Abs(lt - rt)
	td.Within = td.Offset <= c.timingMax
	return td
}

// sortedBuckets returns the buckets of counts in a stable order: fixed
// buckets first, then one-sided buckets by name.
func sortedBuckets(counts map[Bucket]int) []Bucket {
	out := make([]Bucket, 0, len(counts))
	for b := range counts {
		out = append(out, b)
	}
	sort.Slice(out, func(i, j int) bool {
		si, sj := out[i].severity(), out[j].severity()
		if si != sj {
			return si < sj
		}
		return out[i] < out[j]
	})
	return out
}
