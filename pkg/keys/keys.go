// Package keys normalizes raw business keys before matching.
//
// Normalization is pure byte filtering with no locale or Unicode case
// folding, so identical raw keys normalize identically on every platform.
package keys

import (
	"fmt"
	"strings"

	"github.com/agentstation/tally/pkg/dataset"
	"github.com/agentstation/tally/pkg/errors"
)

// Transform is a key normalization transform.
type Transform string

// Supported transforms.
const (
	None   Transform = "none"
	Trim   Transform = "trim"
	Digits Transform = "digits"
	Alnum  Transform = "alnum"
)

// Transforms lists every supported transform.
var Transforms = []Transform{None, Trim, Digits, Alnum}

// String returns the transform name.
func (t Transform) String() string {
	return string(t)
}

// ParseTransform parses a transform name. The empty string is "none".
func ParseTransform(s string) (Transform, error) {
	switch Transform(strings.ToLower(strings.TrimSpace(s))) {
	case "", None:
		return None, nil
	case Trim:
		return Trim, nil
	case Digits:
		return Digits, nil
	case Alnum:
		return Alnum, nil
	}
	return "", &errors.ConfigError{
		Component: "key_transform",
		Message:   fmt.Sprintf("unknown key transform %q (want none, trim, digits or alnum)", s),
	}
}

// Normalize applies t to raw.
func Normalize(raw string, t Transform) string {
	switch t {
	case Trim:
		return strings.TrimSpace(raw)
	case Digits:
		return filter(raw, func(c byte) (byte, bool) {
			return c, c >= '0' && c <= '9'
		})
	case Alnum:
		return filter(raw, func(c byte) (byte, bool) {
			switch {
			case c >= 'a' && c <= 'z':
				return c - 'a' + 'A', true
			case c >= 'A' && c <= 'Z', c >= '0' && c <= '9':
				return c, true
			}
			return 0, false
		})
	default:
		return raw
	}
}

// filter keeps the ASCII bytes accepted by keep. Bytes of multi-byte
// UTF-8 sequences are never ASCII letters or digits, so they are dropped.
func filter(s string, keep func(byte) (byte, bool)) string {
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		if c, ok := keep(s[i]); ok {
			b.WriteByte(c)
		}
	}
	return b.String()
}

// Key is a row's business key in raw and normalized form.
type Key struct {
	Raw        string
	Normalized string
	Row        int
}

// Extract reads column from every row of ds and normalizes it with t.
// A column the dataset does not declare is a configuration error.
func Extract(ds *dataset.Dataset, column string, t Transform) ([]Key, error) {
	if ds == nil {
		return nil, &errors.ValidationError{Field: "dataset", Message: "cannot be nil"}
	}
	if !ds.HasColumn(column) {
		return nil, &errors.ConfigError{
			Component: "key",
			Message:   fmt.Sprintf("key column %q not found in %s", column, ds.Name),
		}
	}
	out := make([]Key, len(ds.Rows))
	for i, row := range ds.Rows {
		raw := row.Raw(column)
		out[i] = Key{Raw: raw, Normalized: Normalize(raw, t), Row: row.Index()}
	}
	return out, nil
}
