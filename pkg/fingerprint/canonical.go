package fingerprint

import (
	"bufio"
	"bytes"
	"io"
	"sort"
	"strconv"
	"strings"
)

const header = "tally-fingerprint\n"

// VolatileCell is a formula cell that calls a volatile function.
type VolatileCell struct {
	Sheet     string   `json:"sheet" yaml:"sheet"`
	Address   string   `json:"address" yaml:"address"`
	Functions []string `json:"functions" yaml:"functions"`
}

// encoder writes the canonical stream of a content tree.
type encoder struct {
	w        *bufio.Writer
	count    int
	volatile []VolatileCell
}

// Canonical returns the canonical byte stream of a tree.
func Canonical(tree *ContentTree) ([]byte, error) {
	if err := tree.Validate(); err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if _, err := encode(&buf, tree); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// encode writes the canonical stream of tree to w. Style has no path into
// this function.
func encode(w io.Writer, tree *ContentTree) (*encoder, error) {
	e := &encoder{w: bufio.NewWriter(w)}
	e.w.WriteString(header)
	e.w.WriteString("calc:")
	e.w.WriteString(strconv.FormatBool(tree.Calc.Iterative))
	e.w.WriteByte(':')
	e.w.WriteString(strconv.Itoa(tree.Calc.MaxIterations))
	e.w.WriteByte(':')
	e.w.WriteString(strconv.FormatFloat(tree.Calc.MaxChange, 'g', -1, 64))
	e.w.WriteByte('\n')

	for _, sheet := range tree.orderedSheets() {
		e.w.WriteString("sheet:")
		e.w.WriteString(strconv.Itoa(sheet.Index))
		e.w.WriteByte('\n')
		for _, addr := range sheet.orderedAddresses() {
			e.cell(sheet, addr, sheet.Cells[addr])
		}
	}
	return e, e.w.Flush()
}

func (e *encoder) cell(sheet Sheet, addr Address, c Cell) {
	if c.empty() {
		return
	}
	e.count++

	kind, payload := byte(c.Value.Kind), c.Value.Text
	if strings.TrimSpace(c.Formula) != "" {
		normalized, fns := parseFormula(c.Formula)
		kind, payload = 'f', normalized
		var vol []string
		for _, fn := range fns {
			if volatileFunctions[fn] {
				vol = append(vol, fn)
			}
		}
		if len(vol) > 0 {
			e.volatile = append(e.volatile, VolatileCell{Sheet: sheet.Name, Address: addr.String(), Functions: vol})
		}
	}
	if kind == byte(KindEmpty) {
		// tags only
		kind = '-'
	}

	e.w.WriteString("cell:")
	e.w.WriteString(addr.String())
	e.w.WriteByte(':')
	e.w.WriteByte(kind)
	e.w.WriteByte(':')
	e.w.WriteString(strconv.Itoa(len(payload)))
	e.w.WriteByte(':')
	e.w.WriteString(payload)
	e.w.WriteByte(':')
	for i, tag := range canonicalTags(c.Tags) {
		if i > 0 {
			e.w.WriteByte(',')
		}
		e.w.WriteString(strconv.Itoa(len(tag)))
		e.w.WriteByte(':')
		e.w.WriteString(tag)
	}
	e.w.WriteByte('\n')
}

// canonicalTags sorts and deduplicates tags.
func canonicalTags(tags []string) []string {
	if len(tags) == 0 {
		return nil
	}
	out := append([]string(nil), tags...)
	sort.Strings(out)
	n := 1
	for i := 1; i < len(out); i++ {
		if out[i] != out[n-1] {
			out[n] = out[i]
			n++
		}
	}
	return out[:n]
}
