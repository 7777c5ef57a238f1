package report

import (
	"encoding/csv"
	"io"
	"strconv"
	"strings"

	"github.com/agentstation/tally/pkg/reconcile"
)

// CSVHeader is the header of the flat CSV view.
var CSVHeader = []string{
	"status", "key", "source", "column",
	"left_value", "right_value", "delta", "within_tolerance",
	"match_mode", "match_explain",
}

// AmbiguityHeader is the header of the ambiguity remediation CSV.
var AmbiguityHeader = []string{"left_key", "candidate_count", "candidate_keys"}

// Rows flattens a result: one row per group, or one row per column diff
// for amount mismatches and one row per late side for timing mismatches.
func Rows(res *reconcile.Result) [][]string {
	mode := string(res.Summary.Strategy)
	var rows [][]string
	for _, g := range res.Groups {
		explain := explainText(g)
		switch {
		case g.Bucket == reconcile.AmountMismatch && len(g.Diffs) > 0:
			for _, d := range g.Diffs {
				rows = append(rows, []string{
					string(g.Bucket), g.KeyRaw, d.Source, d.Column,
					d.Left, d.Right, formatDelta(d.Delta), strconv.FormatBool(d.WithinTolerance),
					mode, explain,
				})
			}
		case g.Bucket == reconcile.TimingMismatch && len(g.Timing) > 0:
			for _, td := range g.Timing {
				if td.Within {
					continue
				}
				rows = append(rows, []string{
					string(g.Bucket), g.KeyRaw, td.Source, td.Column,
					td.Left, td.Right, strconv.FormatFloat(td.Offset, 'f', -1, 64), "false",
					mode, explain,
				})
			}
		default:
			rows = append(rows, []string{
				string(g.Bucket), g.KeyRaw, sideNames(g), "",
				"", "", "", "",
				mode, explain,
			})
		}
	}
	return rows
}

// WriteCSV writes the flat CSV view.
func WriteCSV(w io.Writer, res *reconcile.Result) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(CSVHeader); err != nil {
		return err
	}
	if err := cw.WriteAll(Rows(res)); err != nil {
		return err
	}
	return cw.Error()
}

// AmbiguityRows lists every ambiguous group with its candidates.
func AmbiguityRows(res *reconcile.Result) [][]string {
	var rows [][]string
	for _, g := range res.Ambiguous() {
		keys := make([]string, len(g.Candidates))
		for i, c := range g.Candidates {
			keys[i] = c.Raw
		}
		rows = append(rows, []string{g.KeyRaw, strconv.Itoa(len(keys)), strings.Join(keys, "|")})
	}
	return rows
}

// WriteAmbiguityCSV writes the ambiguity remediation CSV.
func WriteAmbiguityCSV(w io.Writer, res *reconcile.Result) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(AmbiguityHeader); err != nil {
		return err
	}
	if err := cw.WriteAll(AmbiguityRows(res)); err != nil {
		return err
	}
	return cw.Error()
}

func formatDelta(d *float64) string {
	if d == nil {
		return ""
	}
	return strconv.FormatFloat(*d, 'f', -1, 64)
}

func sideNames(g *reconcile.Group) string {
	names := make([]string, len(g.Sides))
	for i, s := range g.Sides {
		names[i] = s.Source
	}
	return strings.Join(names, "|")
}

func explainText(g *reconcile.Group) string {
	var parts []string
	for _, e := range g.Explain {
		parts = append(parts, e.Explain.String())
	}
	if len(g.Candidates) > 0 {
		keys := make([]string, len(g.Candidates))
		for i, c := range g.Candidates {
			keys[i] = c.Raw
		}
		parts = append(parts, "candidates: "+strings.Join(keys, "|"))
	}
	return strings.Join(parts, "; ")
}
