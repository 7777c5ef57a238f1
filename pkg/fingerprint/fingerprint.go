// Package fingerprint computes content fingerprints of spreadsheet
// artifacts.
//
// A fingerprint hashes a canonical serialization of a ContentTree: sheets
// by index, cells row-major and sparse, formulas as normalized source text,
// tags sorted. Style never reaches the hash, so two artifacts that differ
// only in presentation fingerprint identically while any change to a
// value, formula or tag changes the fingerprint.
//
// The string form is "v<version>:<count>:<hash>" where count is the
// number of non-empty cells folded in and hash is the first 16 bytes of
// the BLAKE3 digest in lower hex.
package fingerprint

import (
	"context"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/sync/errgroup"
	"lukechampine.com/blake3"

	"github.com/agentstation/tally/pkg/constants"
	"github.com/agentstation/tally/pkg/errors"
)

// Version is the current canonical format version.
const Version = constants.FingerprintVersion

// hashSize is the digest length in bytes.
const hashSize = 16

// Fingerprint identifies the content of an artifact. Version 0 is the
// legacy unversioned "<count>:<hash>" form, which can be parsed and
// compared but is never produced.
type Fingerprint struct {
	Version int
	Count   int
	Hash    string
}

// String returns the fingerprint in its string form.
func (f Fingerprint) String() string {
	if f.Version == 0 {
		return fmt.Sprintf("%d:%s", f.Count, f.Hash)
	}
	return fmt.Sprintf("v%d:%d:%s", f.Version, f.Count, f.Hash)
}

// IsZero reports whether f is the zero fingerprint.
func (f Fingerprint) IsZero() bool {
	return f == Fingerprint{}
}

// Equal reports whether f and g identify the same content.
func (f Fingerprint) Equal(g Fingerprint) bool {
	return f.Version == g.Version && f.Count == g.Count && strings.EqualFold(f.Hash, g.Hash)
}

// MarshalText implements encoding.TextMarshaler.
func (f Fingerprint) MarshalText() ([]byte, error) {
	return []byte(f.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (f *Fingerprint) UnmarshalText(b []byte) error {
	parsed, err := Parse(string(b))
	if err != nil {
		return err
	}
	*f = parsed
	return nil
}

// Parse parses "v<N>:<count>:<hash>" or the legacy "<count>:<hash>".
func Parse(s string) (Fingerprint, error) {
	s = strings.TrimSpace(s)
	parts := strings.Split(s, ":")
	var f Fingerprint
	switch len(parts) {
	case 3:
		if !strings.HasPrefix(parts[0], "v") {
			return Fingerprint{}, parseError(s, "version must look like v2")
		}
		v, err := strconv.Atoi(parts[0][1:])
		if err != nil || v < 1 {
			return Fingerprint{}, parseError(s, "invalid version %q", parts[0])
		}
		f.Version = v
		parts = parts[1:]
	case 2:
	default:
		return Fingerprint{}, parseError(s, "expected v<version>:<count>:<hash>")
	}

	count, err := strconv.Atoi(parts[0])
	if err != nil || count < 0 {
		return Fingerprint{}, parseError(s, "invalid count %q", parts[0])
	}
	if _, err := hex.DecodeString(parts[1]); err != nil || parts[1] == "" {
		return Fingerprint{}, parseError(s, "hash is not hex")
	}
	f.Count = count
	f.Hash = strings.ToLower(parts[1])
	return f, nil
}

func parseError(s, format string, args ...any) error {
	return &errors.ParseError{Format: "fingerprint", Message: fmt.Sprintf("%q: ", s) + fmt.Sprintf(format, args...)}
}

// Report is a fingerprint with the warnings found while computing it.
type Report struct {
	Fingerprint Fingerprint    `json:"fingerprint" yaml:"fingerprint"`
	Volatile    []VolatileCell `json:"volatile,omitempty" yaml:"volatile,omitempty"`
}

// Warnings describes every volatile cell.
func (r *Report) Warnings() []string {
	out := make([]string, 0, len(r.Volatile))
	for _, v := range r.Volatile {
		out = append(out, fmt.Sprintf("%s!%s calls volatile %s", v.Sheet, v.Address, strings.Join(v.Functions, ", ")))
	}
	return out
}

// Analyze fingerprints tree and reports volatile formulas.
func Analyze(tree *ContentTree) (*Report, error) {
	if err := tree.Validate(); err != nil {
		return nil, err
	}
	h := blake3.New(hashSize, nil)
	e, err := encode(h, tree)
	if err != nil {
		return nil, err
	}
	return &Report{
		Fingerprint: Fingerprint{
			Version: Version,
			Count:   e.count,
			Hash:    hex.EncodeToString(h.Sum(nil)),
		},
		Volatile: e.volatile,
	}, nil
}

// Compute fingerprints tree.
func Compute(tree *ContentTree) (Fingerprint, error) {
	r, err := Analyze(tree)
	if err != nil {
		return Fingerprint{}, err
	}
	return r.Fingerprint, nil
}

// Verify checks tree against an expected fingerprint string.
func Verify(expected string, tree *ContentTree) error {
	want, err := Parse(expected)
	if err != nil {
		return err
	}
	got, err := Compute(tree)
	if err != nil {
		return err
	}
	if !want.Equal(got) {
		return fmt.Errorf("%w: expected %s, got %s", errors.ErrFingerprintMismatch, want, got)
	}
	return nil
}

// ComputeAll analyzes independent trees concurrently. Reports are returned
// in input order.
func ComputeAll(ctx context.Context, trees []*ContentTree, workers int) ([]*Report, error) {
	if workers < 1 {
		workers = 1
	}
	reports := make([]*Report, len(trees))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(min(workers, constants.MaxWorkers))
	for i, tree := range trees {
		i, tree := i, tree
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			r, err := Analyze(tree)
			if err != nil {
				return fmt.Errorf("tree %d: %w", i, err)
			}
			reports[i] = r
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return reports, nil
}
