package output

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/agentstation/tally/internal/baseline"
	"github.com/agentstation/tally/pkg/fingerprint"
	"github.com/agentstation/tally/pkg/policy"
	"github.com/agentstation/tally/pkg/reconcile"
	"github.com/agentstation/tally/pkg/report"
)

// Status symbols shared by every table.
const (
	SymbolPass = "✓"
	SymbolWarn = "!"
	SymbolFail = "✗"
	SymbolNew  = "+"
)

// StatusSymbol returns the symbol for a check or verdict status.
func StatusSymbol(s policy.Status) string {
	switch s {
	case policy.StatusPass:
		return SymbolPass
	case policy.StatusWarn:
		return SymbolWarn
	case policy.StatusFail:
		return SymbolFail
	case policy.StatusBaselineCreated:
		return SymbolNew
	default:
		return "?"
	}
}

// SummaryTable lists the group count of every bucket.
func SummaryTable(res *reconcile.Result) Data {
	rows := make([][]string, 0, len(res.Summary.Buckets)+2)
	for _, bc := range res.Summary.Buckets {
		rows = append(rows, []string{bc.Bucket.String(), strconv.Itoa(bc.Count)})
	}
	rows = append(rows,
		[]string{"total groups", strconv.Itoa(res.Summary.Groups)},
		[]string{"diffs outside tolerance", strconv.Itoa(res.Summary.DiffOutsideTolerance)},
	)

	sources := make([]string, len(res.Summary.Sources))
	for i, s := range res.Summary.Sources {
		sources[i] = fmt.Sprintf("%s (%d rows)", s.Name, s.Rows)
	}
	return Data{
		Title:           "Sources: " + strings.Join(sources, ", "),
		Headers:         []string{"Bucket", "Groups"},
		Rows:            rows,
		ColumnAlignment: []Align{AlignLeft, AlignRight},
	}
}

// DiscrepancyTable lists every non-matched row of the flat view, up to
// limit rows (0 for all). A final row reports how many were cut.
func DiscrepancyTable(res *reconcile.Result, limit int) Data {
	var rows [][]string
	total := 0
	for _, r := range report.Rows(res) {
		if r[0] == string(reconcile.Matched) {
			continue
		}
		total++
		if limit > 0 && len(rows) >= limit {
			continue
		}
		// status, key, source, column, left, right, delta
		rows = append(rows, r[:7])
	}
	if limit > 0 && total > limit {
		rows = append(rows, []string{fmt.Sprintf("... %d more", total-limit), "", "", "", "", "", ""})
	}
	return Data{
		Headers:         []string{"Status", "Key", "Source", "Column", "Left", "Right", "Delta"},
		Rows:            rows,
		ColumnAlignment: []Align{AlignLeft, AlignLeft, AlignLeft, AlignLeft, AlignRight, AlignRight, AlignRight},
	}
}

// VerdictTable lists every check of a verdict.
func VerdictTable(v *policy.Verdict) Data {
	rows := make([][]string, 0, len(v.Checks))
	for _, c := range v.Checks {
		rows = append(rows, []string{StatusSymbol(c.Status), c.Name, string(c.Status), c.Expected, c.Actual, c.Message})
	}
	return Data{
		Title:   fmt.Sprintf("Verdict: %s %s", StatusSymbol(v.Status), v.Status),
		Headers: []string{"", "Check", "Status", "Expected", "Actual", "Message"},
		Rows:    rows,
	}
}

// FingerprintTable lists one fingerprint per input file.
func FingerprintTable(paths []string, reports []*fingerprint.Report) Data {
	rows := make([][]string, 0, len(reports))
	for i, r := range reports {
		volatile := "-"
		if len(r.Volatile) > 0 {
			volatile = strconv.Itoa(len(r.Volatile))
		}
		rows = append(rows, []string{paths[i], r.Fingerprint.String(), strconv.Itoa(r.Fingerprint.Count), volatile})
	}
	return Data{
		Headers:         []string{"File", "Fingerprint", "Cells", "Volatile"},
		Rows:            rows,
		ColumnAlignment: []Align{AlignLeft, AlignLeft, AlignRight, AlignRight},
	}
}

// BaselineTable lists stored baselines, newest first.
func BaselineTable(name string, records []*baseline.Record) Data {
	rows := make([][]string, 0, len(records))
	for _, r := range records {
		fp := r.Fingerprint
		if fp == "" {
			fp = "-"
		}
		rows = append(rows, []string{
			r.CreatedAt.UTC().Format(time.RFC3339),
			r.Status,
			strconv.Itoa(r.Schema.RowCount),
			strconv.Itoa(len(r.Schema.Columns)),
			fp,
			r.ID,
		})
	}
	return Data{
		Title:           fmt.Sprintf("Baselines: %s (%d)", name, len(records)),
		Headers:         []string{"Created", "Status", "Rows", "Columns", "Fingerprint", "Run"},
		Rows:            rows,
		ColumnAlignment: []Align{AlignLeft, AlignLeft, AlignRight, AlignRight, AlignLeft, AlignLeft},
	}
}
