// Package report serializes reconciliation results. Every format is a view
// of the same groups; none carries timestamps or run ids, so identical
// inputs always serialize to identical bytes.
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/goccy/go-yaml"

	"github.com/agentstation/tally/pkg/constants"
	"github.com/agentstation/tally/pkg/errors"
	"github.com/agentstation/tally/pkg/policy"
	"github.com/agentstation/tally/pkg/reconcile"
)

// Format is an output format.
type Format string

// Formats.
const (
	FormatJSON  Format = "json"
	FormatJSONL Format = "jsonl"
	FormatYAML  Format = "yaml"
	FormatCSV   Format = "csv"
)

// Formats lists every supported format.
var Formats = []Format{FormatJSON, FormatJSONL, FormatYAML, FormatCSV}

// ParseFormat parses a format name.
func ParseFormat(s string) (Format, error) {
	f := Format(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range Formats {
		if f == known {
			return f, nil
		}
	}
	return "", &errors.ValidationError{Field: "format", Value: s, Message: "must be one of json, jsonl, yaml, csv"}
}

// Document is the structured output of a run.
type Document struct {
	ContractVersion string             `json:"contract_version" yaml:"contract_version"`
	Summary         reconcile.Summary  `json:"summary" yaml:"summary"`
	Results         []*reconcile.Group `json:"results" yaml:"results"`

	// Verdict is set when a policy was evaluated over the run.
	Verdict *policy.Verdict `json:"verdict,omitempty" yaml:"verdict,omitempty"`
}

// NewDocument wraps a result.
func NewDocument(res *reconcile.Result) *Document {
	groups := res.Groups
	if groups == nil {
		groups = []*reconcile.Group{}
	}
	return &Document{ContractVersion: constants.ContractVersion, Summary: res.Summary, Results: groups}
}

// record is one line of the jsonl stream.
type record struct {
	Record          string             `json:"record"`
	ContractVersion string             `json:"contract_version,omitempty"`
	Summary         *reconcile.Summary `json:"summary,omitempty"`
	Verdict         *policy.Verdict    `json:"verdict,omitempty"`
	*reconcile.Group
}

// Write serializes res to w in format.
func Write(w io.Writer, format Format, res *reconcile.Result) error {
	return WriteWithVerdict(w, format, res, nil)
}

// WriteWithVerdict serializes res together with the verdict evaluated over
// it. JSON and YAML carry the verdict in the document, JSONL as a final
// record; the flat CSV view has no place for it.
func WriteWithVerdict(w io.Writer, format Format, res *reconcile.Result, v *policy.Verdict) error {
	doc := NewDocument(res)
	doc.Verdict = v
	switch format {
	case FormatJSON:
		return writeJSON(w, doc)
	case FormatJSONL:
		return writeJSONL(w, doc)
	case FormatYAML:
		return writeYAML(w, doc)
	case FormatCSV:
		return WriteCSV(w, res)
	default:
		return &errors.ValidationError{Field: "format", Value: format, Message: "unsupported format"}
	}
}

func writeJSON(w io.Writer, doc *Document) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(doc)
}

// writeJSONL writes one summary record, one record per group and, when
// there is one, a final verdict record.
func writeJSONL(w io.Writer, doc *Document) error {
	encoder := json.NewEncoder(w)
	if err := encoder.Encode(record{Record: "summary", ContractVersion: doc.ContractVersion, Summary: &doc.Summary}); err != nil {
		return err
	}
	for _, g := range doc.Results {
		if err := encoder.Encode(record{Record: "group", Group: g}); err != nil {
			return fmt.Errorf("group %s: %w", g.Key, err)
		}
	}
	if doc.Verdict != nil {
		return encoder.Encode(record{Record: "verdict", Verdict: doc.Verdict})
	}
	return nil
}

func writeYAML(w io.Writer, doc *Document) error {
	data, err := yaml.MarshalWithOptions(doc,
		yaml.Indent(2),
		yaml.IndentSequence(false),
	)
	if err != nil {
		return err
	}
	_, err = w.Write(data)
	return err
}
