// Package differ detects structural drift between a dataset and its baseline.
package differ

import (
	"fmt"
	"strings"
)

// ChangeType represents the type of change.
type ChangeType string

const (
	// ChangeTypeAdd indicates a column was added.
	ChangeTypeAdd ChangeType = "add"
	// ChangeTypeUpdate indicates a column total changed.
	ChangeTypeUpdate ChangeType = "update"
	// ChangeTypeRemove indicates a column was removed.
	ChangeTypeRemove ChangeType = "remove"
)

// Schema is the structural shape of a dataset as recorded in a baseline.
type Schema struct {
	Name     string   `json:"name" yaml:"name"`
	Columns  []string `json:"columns" yaml:"columns"`
	RowCount int      `json:"row_count" yaml:"row_count"`

	// Totals holds the exact sum of each fully numeric column.
	Totals map[string]string `json:"totals,omitempty" yaml:"totals,omitempty"`
}

// ColumnChange represents a change to one column.
type ColumnChange struct {
	Column   string     `json:"column" yaml:"column"`
	OldValue string     `json:"old_value,omitempty" yaml:"old_value,omitempty"`
	NewValue string     `json:"new_value,omitempty" yaml:"new_value,omitempty"`
	Type     ChangeType `json:"type" yaml:"type"`
}

// StructuralDelta is the drift of a dataset against its baseline.
type StructuralDelta struct {
	Baseline Schema `json:"-" yaml:"-"`
	Current  Schema `json:"-" yaml:"-"`

	// RowCountChange is current rows minus baseline rows.
	RowCountChange int `json:"row_count_change" yaml:"row_count_change"`

	// ColumnsAdded and ColumnsRemoved keep the order of the schema that
	// declares them.
	ColumnsAdded   []string `json:"columns_added" yaml:"columns_added"`
	ColumnsRemoved []string `json:"columns_removed" yaml:"columns_removed"`

	// TotalsChanged lists numeric columns present in both schemas whose
	// totals differ.
	TotalsChanged []ColumnChange `json:"totals_changed,omitempty" yaml:"totals_changed,omitempty"`
}

// HasChanges returns true if the delta contains any structural change.
func (d *StructuralDelta) HasChanges() bool {
	return d.RowCountChange != 0 || len(d.ColumnsAdded) > 0 || len(d.ColumnsRemoved) > 0
}

// Changes flattens the column changes of the delta.
func (d *StructuralDelta) Changes() []ColumnChange {
	out := make([]ColumnChange, 0, len(d.ColumnsAdded)+len(d.ColumnsRemoved)+len(d.TotalsChanged))
	for _, c := range d.ColumnsAdded {
		out = append(out, ColumnChange{Column: c, Type: ChangeTypeAdd})
	}
	for _, c := range d.ColumnsRemoved {
		out = append(out, ColumnChange{Column: c, Type: ChangeTypeRemove})
	}
	return append(out, d.TotalsChanged...)
}

// String returns a one-line description of the delta.
func (d *StructuralDelta) String() string {
	if !d.HasChanges() && len(d.TotalsChanged) == 0 {
		return "no structural changes"
	}
	var parts []string
	if d.RowCountChange != 0 {
		parts = append(parts, fmt.Sprintf("rows %+d", d.RowCountChange))
	}
	if len(d.ColumnsAdded) > 0 {
		parts = append(parts, "added "+strings.Join(d.ColumnsAdded, ", "))
	}
	if len(d.ColumnsRemoved) > 0 {
		parts = append(parts, "removed "+strings.Join(d.ColumnsRemoved, ", "))
	}
	if len(d.TotalsChanged) > 0 {
		parts = append(parts, fmt.Sprintf("%d totals changed", len(d.TotalsChanged)))
	}
	return strings.Join(parts, "; ")
}
