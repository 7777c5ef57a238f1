// Package dataset defines the tabular input of a reconciliation run:
// typed cell values, immutable rows and datasets with declared columns.
package dataset

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/agentstation/tally/pkg/errors"
)

// Kind is the type of a cell value.
type Kind int

// Cell value kinds.
const (
	Empty Kind = iota
	Number
	Text
	Boolean
)

// String returns the kind name.
func (k Kind) String() string {
	switch k {
	case Number:
		return "number"
	case Text:
		return "text"
	case Boolean:
		return "boolean"
	default:
		return "empty"
	}
}

// Value is a typed cell value. Raw always holds the loaded text, which is
// what keys and comparisons read; Num and Bool are set for their kinds.
type Value struct {
	Kind Kind
	Raw  string
	Num  float64
	Bool bool
}

// EmptyValue returns the empty value.
func EmptyValue() Value { return Value{Kind: Empty} }

// TextValue returns a text value.
func TextValue(s string) Value { return Value{Kind: Text, Raw: s} }

// Infer types a raw loaded string: blank is Empty, true/false is Boolean,
// a plain decimal is Number and anything else is Text.
func Infer(raw string) Value {
	s := strings.TrimSpace(raw)
	if s == "" {
		return Value{Kind: Empty, Raw: raw}
	}
	switch strings.ToLower(s) {
	case "true":
		return Value{Kind: Boolean, Raw: raw, Bool: true}
	case "false":
		return Value{Kind: Boolean, Raw: raw}
	}
	if isDecimal(s) {
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return Value{Kind: Number, Raw: raw, Num: f}
		}
	}
	return Value{Kind: Text, Raw: raw}
}

// IsEmpty reports whether the value is empty.
func (v Value) IsEmpty() bool {
	return v.Kind == Empty
}

// String returns the raw text.
func (v Value) String() string {
	return v.Raw
}

func isDecimal(s string) bool {
	if s[0] == '+' || s[0] == '-' {
		s = s[1:]
	}
	digits, dot := 0, false
	for i := 0; i < len(s); i++ {
		switch c := s[i]; {
		case c >= '0' && c <= '9':
			digits++
		case c == '.' && !dot:
			dot = true
		default:
			return false
		}
	}
	return digits > 0
}

// Row is an ordered mapping from column name to value.
// Rows are immutable once constructed.
type Row struct {
	index   int
	columns []string
	values  map[string]Value
}

// NewRow builds a row from parallel column and value slices.
func NewRow(index int, columns []string, values []Value) Row {
	r := Row{
		index:   index,
		columns: make([]string, 0, len(columns)),
		values:  make(map[string]Value, len(columns)),
	}
	for i, c := range columns {
		if _, dup := r.values[c]; dup {
			continue
		}
		r.columns = append(r.columns, c)
		if i < len(values) {
			r.values[c] = values[i]
		} else {
			r.values[c] = EmptyValue()
		}
	}
	return r
}

// Index returns the 0-based position of the row in its dataset.
func (r Row) Index() int { return r.index }

// Columns returns the row's columns in order.
func (r Row) Columns() []string {
	return append([]string(nil), r.columns...)
}

// Get returns the value of a column.
func (r Row) Get(column string) (Value, bool) {
	v, ok := r.values[column]
	return v, ok
}

// Raw returns the raw text of a column, or "" when absent.
func (r Row) Raw(column string) string {
	return r.values[column].Raw
}

// Snapshot returns the row as a column → raw text map.
func (r Row) Snapshot() map[string]string {
	out := make(map[string]string, len(r.columns))
	for _, c := range r.columns {
		out[c] = r.values[c].Raw
	}
	return out
}

// Dataset is an ordered sequence of rows plus declared columns.
type Dataset struct {
	Name    string
	Columns []string
	Rows    []Row
}

// New builds a dataset from string records; every record is typed with Infer.
func New(name string, columns []string, records [][]string) *Dataset {
	ds := &Dataset{Name: name, Columns: append([]string(nil), columns...)}
	ds.Rows = make([]Row, 0, len(records))
	for i, rec := range records {
		values := make([]Value, len(columns))
		for j := range columns {
			if j < len(rec) {
				values[j] = Infer(rec[j])
			}
		}
		ds.Rows = append(ds.Rows, NewRow(i, columns, values))
	}
	return ds
}

// Len returns the number of rows.
func (d *Dataset) Len() int {
	return len(d.Rows)
}

// HasColumn reports whether column is declared.
func (d *Dataset) HasColumn(column string) bool {
	for _, c := range d.Columns {
		if c == column {
			return true
		}
	}
	return false
}

// Validate checks the dataset invariants: unique declared columns, every
// row's columns declared, and row indices matching positions.
func (d *Dataset) Validate() error {
	declared := make(map[string]bool, len(d.Columns))
	for _, c := range d.Columns {
		if declared[c] {
			return &errors.ValidationError{Field: "columns", Value: c, Message: fmt.Sprintf("dataset %s declares column %q twice", d.Name, c)}
		}
		declared[c] = true
	}
	for i, row := range d.Rows {
		if row.index != i {
			return &errors.ValidationError{Field: "rows", Value: i, Message: fmt.Sprintf("dataset %s row %d has index %d", d.Name, i, row.index)}
		}
		for _, c := range row.columns {
			if !declared[c] {
				return &errors.ValidationError{Field: "rows", Value: c, Message: fmt.Sprintf("dataset %s row %d has undeclared column %q", d.Name, i, c)}
			}
		}
	}
	return nil
}

// ResolveColumn resolves a user column reference: a case-insensitive column
// name, then a spreadsheet column letter (A, AB), then a 1-based index.
func (d *Dataset) ResolveColumn(ref string) (string, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return "", &errors.ConfigError{Component: "columns", Message: "empty column reference"}
	}
	for _, c := range d.Columns {
		if strings.EqualFold(c, ref) {
			return c, nil
		}
	}
	if idx, ok := ColumnLetterIndex(ref); ok && idx < len(d.Columns) {
		return d.Columns[idx], nil
	}
	if n, err := strconv.Atoi(ref); err == nil && n >= 1 && n <= len(d.Columns) {
		return d.Columns[n-1], nil
	}
	return "", &errors.ConfigError{
		Component: "columns",
		Message:   fmt.Sprintf("column %q not found in %s (have %s)", ref, d.Name, strings.Join(d.Columns, ", ")),
	}
}

// ColumnLetterIndex converts a spreadsheet column label (A, Z, AA) to a
// 0-based index.
func ColumnLetterIndex(label string) (int, bool) {
	if label == "" || len(label) > 3 {
		return 0, false
	}
	n := 0
	for i := 0; i < len(label); i++ {
		c := label[i]
		switch {
		case c >= 'A' && c <= 'Z':
			n = n*26 + int(c-'A'+1)
		case c >= 'a' && c <= 'z':
			n = n*26 + int(c-'a'+1)
		default:
			return 0, false
		}
	}
	return n - 1, true
}

// ColumnLetter converts a 0-based column index to its spreadsheet label.
func ColumnLetter(index int) string {
	var b []byte
	for n := index + 1; n > 0; n = (n - 1) / 26 {
		b = append([]byte{byte('A' + (n-1)%26)}, b...)
	}
	return string(b)
}
