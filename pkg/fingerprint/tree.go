package fingerprint

import (
	"fmt"
	"math/big"
	"sort"
	"strconv"
	"strings"

	"github.com/agentstation/tally/pkg/dataset"
	"github.com/agentstation/tally/pkg/errors"
)

// ContentTree is the style-free content of a spreadsheet artifact.
type ContentTree struct {
	Sheets []Sheet
	Calc   CalcSettings
}

// CalcSettings are workbook calculation settings. Iteration changes
// computed results, so it is content.
type CalcSettings struct {
	Iterative     bool
	MaxIterations int
	MaxChange     float64
}

// Sheet is one sheet of a content tree. Sheets are ordered by Index, never
// by Name.
type Sheet struct {
	Index int
	Name  string
	Cells map[Address]Cell
}

// Cell is one cell. Value is the evaluated result and is what assertions
// read; when Formula is set it is the formula, not the value, that is
// fingerprinted.
type Cell struct {
	Value   Value
	Formula string
	Tags    []string
	Style   *Style
}

// Style carries presentation through the same struct as content. Nothing
// in this package reads it.
type Style struct {
	Fill         string `json:"fill,omitempty" yaml:"fill,omitempty"`
	Font         string `json:"font,omitempty" yaml:"font,omitempty"`
	Bold         bool   `json:"bold,omitempty" yaml:"bold,omitempty"`
	Italic       bool   `json:"italic,omitempty" yaml:"italic,omitempty"`
	Border       string `json:"border,omitempty" yaml:"border,omitempty"`
	NumberFormat string `json:"number_format,omitempty" yaml:"number_format,omitempty"`
}

// empty reports whether the cell carries no content.
func (c Cell) empty() bool {
	return strings.TrimSpace(c.Formula) == "" && c.Value.Kind == KindEmpty && len(c.Tags) == 0
}

// ValueKind is the type of a literal cell value.
type ValueKind byte

// Value kinds; the byte is the kind marker in the canonical stream.
const (
	KindEmpty  ValueKind = 0
	KindNumber ValueKind = 'n'
	KindString ValueKind = 's'
	KindBool   ValueKind = 'b'
	KindError  ValueKind = 'e'
)

// Value is a literal cell value with its canonical text.
type Value struct {
	Kind ValueKind
	Text string
}

// Number returns a numeric value. Numbers are written as plain decimals
// without exponent or trailing zeros, so equal numbers have equal text
// whatever their source spelling.
func Number(f float64) Value {
	text := strconv.FormatFloat(f, 'f', -1, 64)
	if text == "-0" {
		text = "0"
	}
	return Value{Kind: KindNumber, Text: text}
}

// Int returns an exact integer value.
func Int(i int64) Value {
	return Value{Kind: KindNumber, Text: strconv.FormatInt(i, 10)}
}

// Uint returns an exact unsigned integer value.
func Uint(u uint64) Value {
	return Value{Kind: KindNumber, Text: strconv.FormatUint(u, 10)}
}

// maxDecimalExponent bounds the exponent Decimal expands exactly.
const maxDecimalExponent = 400

// Decimal returns the exact numeric value of decimal source text such as
// "1.50", "-.5" or "1.2e-7", in the same canonical form as Number. Digits
// beyond float64 precision are kept, so values that differ only there
// still hash differently.
func Decimal(text string) (Value, error) {
	invalid := &errors.ValidationError{Field: "value", Value: text, Message: "not a decimal number"}
	if text == "" || strings.TrimLeft(text, "0123456789+-.eE") != "" {
		return Value{}, invalid
	}
	if i := strings.IndexAny(text, "eE"); i >= 0 {
		exp, err := strconv.Atoi(text[i+1:])
		if err != nil {
			return Value{}, invalid
		}
		if exp > maxDecimalExponent || exp < -maxDecimalExponent {
			return Value{}, &errors.ValidationError{Field: "value", Value: text, Message: "exponent out of range"}
		}
	}
	r, ok := new(big.Rat).SetString(text)
	if !ok {
		return Value{}, invalid
	}
	return Value{Kind: KindNumber, Text: r.FloatString(decimalScale(r.Denom()))}, nil
}

// decimalScale returns the number of fraction digits that print a rational
// with denominator d exactly: the larger of its powers of 2 and 5. Decimal
// source text never has other prime factors.
func decimalScale(d *big.Int) int {
	d = new(big.Int).Set(d)
	two, five := big.NewInt(2), big.NewInt(5)
	var twos, fives int
	mod := new(big.Int)
	for {
		q, m := new(big.Int).QuoRem(d, two, mod)
		if m.Sign() != 0 {
			break
		}
		d, twos = q, twos+1
	}
	for {
		q, m := new(big.Int).QuoRem(d, five, mod)
		if m.Sign() != 0 {
			break
		}
		d, fives = q, fives+1
	}
	return max(twos, fives)
}

// String returns a text value. An empty string is an empty value.
func String(s string) Value {
	if s == "" {
		return Value{}
	}
	return Value{Kind: KindString, Text: s}
}

// Bool returns a boolean value.
func Bool(b bool) Value {
	return Value{Kind: KindBool, Text: strconv.FormatBool(b)}
}

// Error returns an error literal such as #DIV/0!.
func Error(code string) Value {
	return Value{Kind: KindError, Text: strings.ToUpper(code)}
}

// errorLiterals are the spreadsheet error values.
var errorLiterals = map[string]bool{
	"#NULL!": true, "#DIV/0!": true, "#VALUE!": true, "#REF!": true,
	"#NAME?": true, "#NUM!": true, "#N/A": true, "#GETTING_DATA": true,
	"#SPILL!": true, "#CALC!": true,
}

// ValueOf converts a decoded scalar (from YAML or JSON) into a Value.
func ValueOf(v any) (Value, error) {
	switch x := v.(type) {
	case nil:
		return Value{}, nil
	case bool:
		return Bool(x), nil
	case float64:
		return Number(x), nil
	case float32:
		return Number(float64(x)), nil
	case int:
		return Int(int64(x)), nil
	case int64:
		return Int(x), nil
	case uint64:
		return Uint(x), nil
	case string:
		if errorLiterals[strings.ToUpper(x)] {
			return Error(x), nil
		}
		return String(x), nil
	default:
		return Value{}, &errors.ValidationError{Field: "value", Value: v, Message: fmt.Sprintf("unsupported cell value type %T", v)}
	}
}

// Float64 returns the numeric value, if any.
func (v Value) Float64() (float64, bool) {
	if v.Kind != KindNumber {
		return 0, false
	}
	f, err := strconv.ParseFloat(v.Text, 64)
	return f, err == nil
}

// String returns the canonical text.
func (v Value) String() string {
	return v.Text
}

// Address is a 1-based cell position.
type Address struct {
	Row int
	Col int
}

// String returns the A1 form of the address.
func (a Address) String() string {
	return dataset.ColumnLetter(a.Col-1) + strconv.Itoa(a.Row)
}

// Less orders addresses row-major.
func (a Address) Less(b Address) bool {
	if a.Row != b.Row {
		return a.Row < b.Row
	}
	return a.Col < b.Col
}

// ParseAddress parses an A1 reference; $ anchors are ignored.
func ParseAddress(s string) (Address, error) {
	ref := strings.ReplaceAll(strings.TrimSpace(s), "$", "")
	split := 0
	for split < len(ref) && ((ref[split] >= 'A' && ref[split] <= 'Z') || (ref[split] >= 'a' && ref[split] <= 'z')) {
		split++
	}
	col, ok := dataset.ColumnLetterIndex(ref[:split])
	if !ok {
		return Address{}, &errors.ValidationError{Field: "address", Value: s, Message: "invalid column"}
	}
	row, err := strconv.Atoi(ref[split:])
	if err != nil || row < 1 {
		return Address{}, &errors.ValidationError{Field: "address", Value: s, Message: "invalid row"}
	}
	return Address{Row: row, Col: col + 1}, nil
}

// Validate checks sheet indices are unique and addresses are positive.
func (t *ContentTree) Validate() error {
	if t == nil {
		return &errors.ValidationError{Field: "tree", Message: "cannot be nil"}
	}
	seen := make(map[int]bool, len(t.Sheets))
	for _, s := range t.Sheets {
		if seen[s.Index] {
			return &errors.ValidationError{Field: "sheets", Value: s.Index, Message: fmt.Sprintf("sheet index %d used twice", s.Index)}
		}
		seen[s.Index] = true
		for addr := range s.Cells {
			if addr.Row < 1 || addr.Col < 1 {
				return &errors.ValidationError{Field: "cells", Value: addr, Message: fmt.Sprintf("sheet %d has invalid address %d,%d", s.Index, addr.Row, addr.Col)}
			}
		}
	}
	return nil
}

// orderedSheets returns the sheets by index.
func (t *ContentTree) orderedSheets() []Sheet {
	out := append([]Sheet(nil), t.Sheets...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Index < out[j].Index })
	return out
}

// orderedAddresses returns the addresses of s in row-major order.
func (s Sheet) orderedAddresses() []Address {
	out := make([]Address, 0, len(s.Cells))
	for a := range s.Cells {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Less(out[j]) })
	return out
}

// Lookup returns the evaluated value at location: "Sheet!B7",
// "'My Sheet'!B7", or "B7" for the first sheet by index.
func (t *ContentTree) Lookup(location string) (Value, error) {
	if t == nil || len(t.Sheets) == 0 {
		return Value{}, &errors.NotFoundError{Resource: "cell", ID: location}
	}
	sheetName, ref := "", location
	if i := strings.LastIndex(location, "!"); i >= 0 {
		sheetName, ref = location[:i], location[i+1:]
		if len(sheetName) >= 2 && sheetName[0] == '\'' && sheetName[len(sheetName)-1] == '\'' {
			sheetName = strings.ReplaceAll(sheetName[1:len(sheetName)-1], "''", "'")
		}
	}
	addr, err := ParseAddress(ref)
	if err != nil {
		return Value{}, err
	}

	sheets := t.orderedSheets()
	sheet := sheets[0]
	if sheetName != "" {
		found := false
		for _, s := range sheets {
			if strings.EqualFold(s.Name, sheetName) {
				sheet, found = s, true
				break
			}
		}
		if !found {
			return Value{}, &errors.NotFoundError{Resource: "sheet", ID: sheetName}
		}
	}
	cell, ok := sheet.Cells[addr]
	if !ok {
		return Value{}, &errors.NotFoundError{Resource: "cell", ID: location}
	}
	return cell.Value, nil
}
