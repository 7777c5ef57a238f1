package output

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentstation/tally/internal/baseline"
	"github.com/agentstation/tally/pkg/differ"
	"github.com/agentstation/tally/pkg/fingerprint"
	"github.com/agentstation/tally/pkg/policy"
	"github.com/agentstation/tally/pkg/reconcile"
)

func TestParseFormat(t *testing.T) {
	for _, s := range []string{"table", "JSON", "yaml", ""} {
		_, err := ParseFormat(s)
		assert.NoError(t, err, s)
	}
	_, err := ParseFormat("wide")
	assert.Error(t, err)
}

func TestDetectFormatExplicit(t *testing.T) {
	assert.Equal(t, FormatYAML, DetectFormat("YAML"))
}

func TestTableFormatter(t *testing.T) {
	var buf bytes.Buffer
	err := NewFormatter(FormatTable).Format(&buf, Data{
		Title:   "Totals",
		Headers: []string{"Bucket", "Groups"},
		Rows:    [][]string{{"matched", "12"}, {"left_only", "3"}},
	})
	require.NoError(t, err)
	out := buf.String()
	assert.Contains(t, out, "Totals\n")
	assert.Contains(t, out, "matched")
	assert.Contains(t, out, "left_only")
}

func TestTableFormatterStructs(t *testing.T) {
	type row struct {
		RowCount int    `json:"row_count"`
		Name     string `json:"name"`
		hidden   string
		Skipped  string `json:"-"`
	}
	f := &TableFormatter{}

	data := f.convertToTableData([]row{{RowCount: 3, Name: "a", hidden: "x", Skipped: "y"}})
	require.NotNil(t, data)
	assert.Equal(t, []string{"Row Count", "Name"}, data.Headers)
	assert.Equal(t, [][]string{{"3", "a"}}, data.Rows)

	single := f.convertToTableData(&row{RowCount: 1, Name: "b"})
	require.NotNil(t, single)
	assert.Equal(t, []string{"Property", "Value"}, single.Headers)
	assert.Len(t, single.Rows, 2)
}

func TestJSONAndYAMLFormatters(t *testing.T) {
	v := &policy.Verdict{Status: policy.StatusPass, Checks: []policy.Check{{Name: "row_count", Status: policy.StatusPass}}}

	var js bytes.Buffer
	require.NoError(t, NewFormatter(FormatJSON).Format(&js, v))
	assert.Contains(t, js.String(), `"status": "pass"`)

	var ys bytes.Buffer
	require.NoError(t, NewFormatter(FormatYAML).Format(&ys, v))
	assert.Contains(t, ys.String(), "status: pass")
}

func TestVerdictTable(t *testing.T) {
	data := VerdictTable(&policy.Verdict{Status: policy.StatusFail, Checks: []policy.Check{
		{Name: "row_count", Status: policy.StatusWarn, Expected: "10", Actual: "12", Message: "row count changed by +2"},
		{Name: "assert_cell:Summary!B7", Status: policy.StatusFail},
	}})
	assert.Equal(t, "Verdict: ✗ fail", data.Title)
	require.Len(t, data.Rows, 2)
	assert.Equal(t, []string{"!", "row_count", "warn", "10", "12", "row count changed by +2"}, data.Rows[0])
}

func TestSummaryAndDiscrepancyTables(t *testing.T) {
	res := &reconcile.Result{
		Summary: reconcile.Summary{
			Sources: []reconcile.SourceSummary{{Name: "left", Rows: 3}, {Name: "right", Rows: 2}},
			Groups:  3,
			Buckets: []reconcile.BucketCount{
				{Bucket: reconcile.Matched, Count: 1},
				{Bucket: reconcile.OnlyBucket("left"), Count: 2},
			},
		},
		Groups: []*reconcile.Group{
			{Key: "1", KeyRaw: "1", Bucket: reconcile.Matched, Sides: []*reconcile.Side{{Source: "left"}, {Source: "right"}}},
			{Key: "2", KeyRaw: "2", Bucket: reconcile.OnlyBucket("left"), Sides: []*reconcile.Side{{Source: "left"}}},
			{Key: "3", KeyRaw: "3", Bucket: reconcile.OnlyBucket("left"), Sides: []*reconcile.Side{{Source: "left"}}},
		},
	}

	summary := SummaryTable(res)
	assert.Equal(t, "Sources: left (3 rows), right (2 rows)", summary.Title)
	assert.Equal(t, []string{"left_only", "2"}, summary.Rows[1])

	all := DiscrepancyTable(res, 0)
	require.Len(t, all.Rows, 2)
	assert.Equal(t, []string{"left_only", "2", "left", "", "", "", ""}, all.Rows[0])

	cut := DiscrepancyTable(res, 1)
	require.Len(t, cut.Rows, 2)
	assert.Equal(t, "... 1 more", cut.Rows[1][0])
}

func TestFingerprintTable(t *testing.T) {
	fp := fingerprint.Fingerprint{Version: 2, Count: 4, Hash: "00112233445566778899aabbccddeeff"}
	data := FingerprintTable([]string{"book.yaml"}, []*fingerprint.Report{{Fingerprint: fp}})
	assert.Equal(t, []string{"book.yaml", "v2:4:00112233445566778899aabbccddeeff", "4", "-"}, data.Rows[0])
}

func TestBaselineTable(t *testing.T) {
	created := time.Date(2026, 3, 31, 18, 0, 0, 0, time.UTC)
	data := BaselineTable("ledger", []*baseline.Record{{
		ID:        "run-1",
		Name:      "ledger",
		CreatedAt: created,
		Schema:    differ.Schema{Columns: []string{"id", "amount"}, RowCount: 12},
		Status:    "pass",
	}})
	assert.Equal(t, "Baselines: ledger (1)", data.Title)
	assert.Equal(t, []string{"2026-03-31T18:00:00Z", "pass", "12", "2", "-", "run-1"}, data.Rows[0])
}
