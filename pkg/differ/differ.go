package differ

import (
	"strings"

	"github.com/agentstation/tally/pkg/compare"
	"github.com/agentstation/tally/pkg/dataset"
)

// Differ handles structural change detection between schemas.
type Differ interface {
	// Schemas compares a baseline schema with the current one.
	Schemas(baseline, current Schema) *StructuralDelta
}

// differ is the default implementation of Differ.
type differ struct {
	ignoreColumns   map[string]bool
	caseInsensitive bool
	totals          bool
}

// New creates a Differ with default settings.
func New(opts ...Option) Differ {
	d := &differ{
		ignoreColumns: make(map[string]bool),
		totals:        true,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Diff compares schemas with default settings.
func Diff(baseline, current Schema) *StructuralDelta {
	return New().Schemas(baseline, current)
}

// SchemaOf records the schema of a dataset.
func SchemaOf(ds *dataset.Dataset) Schema {
	s := Schema{Name: ds.Name, Columns: append([]string(nil), ds.Columns...), RowCount: ds.Len()}
	for _, column := range ds.Columns {
		values := make([]string, ds.Len())
		for i, row := range ds.Rows {
			values[i] = row.Raw(column)
		}
		if ds.Len() == 0 {
			continue
		}
		if total, _, ok := compare.Sum(values); ok {
			if s.Totals == nil {
				s.Totals = make(map[string]string)
			}
			s.Totals[column] = total.String()
		}
	}
	return s
}

func (diff *differ) key(column string) string {
	if diff.caseInsensitive {
		return strings.ToLower(column)
	}
	return column
}

// Schemas compares baseline and current.
func (diff *differ) Schemas(baseline, current Schema) *StructuralDelta {
	delta := &StructuralDelta{
		Baseline:       baseline,
		Current:        current,
		RowCountChange: current.RowCount - baseline.RowCount,
		ColumnsAdded:   []string{},
		ColumnsRemoved: []string{},
	}

	// Create maps for efficient lookup
	existing := make(map[string]string, len(baseline.Columns))
	for _, c := range baseline.Columns {
		existing[diff.key(c)] = c
	}
	updated := make(map[string]string, len(current.Columns))
	for _, c := range current.Columns {
		updated[diff.key(c)] = c
	}

	// Find added columns in current order
	for _, c := range current.Columns {
		if diff.ignoreColumns[c] {
			continue
		}
		if _, ok := existing[diff.key(c)]; !ok {
			delta.ColumnsAdded = append(delta.ColumnsAdded, c)
		}
	}

	// Find removed columns in baseline order
	for _, c := range baseline.Columns {
		if diff.ignoreColumns[c] {
			continue
		}
		if _, ok := updated[diff.key(c)]; !ok {
			delta.ColumnsRemoved = append(delta.ColumnsRemoved, c)
		}
	}

	if diff.totals {
		for _, c := range current.Columns {
			if diff.ignoreColumns[c] {
				continue
			}
			old, ok := existing[diff.key(c)]
			if !ok {
				continue
			}
			was, wasOK := baseline.Totals[old]
			now, nowOK := current.Totals[c]
			if wasOK && nowOK && was != now {
				delta.TotalsChanged = append(delta.TotalsChanged, ColumnChange{Column: c, OldValue: was, NewValue: now, Type: ChangeTypeUpdate})
			}
		}
	}

	return delta
}
