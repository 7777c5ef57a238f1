package report_test

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentstation/tally/pkg/dataset"
	"github.com/agentstation/tally/pkg/match"
	"github.com/agentstation/tally/pkg/policy"
	"github.com/agentstation/tally/pkg/reconcile"
	"github.com/agentstation/tally/pkg/report"
)

func result(t *testing.T) *reconcile.Result {
	t.Helper()
	cols := []string{"ref", "amount"}
	left := reconcile.Source{Name: "left", Key: "ref", Data: dataset.New("left", cols, [][]string{
		{"1001", "10.00"},
		{"16", "5.00"},
		{"2002", "7.00"},
		{"3003", "1.00"},
	})}
	right := reconcile.Source{Name: "right", Key: "ref", Data: dataset.New("right", cols, [][]string{
		{"INV-1001", "10.00"},
		{"A16", "5.00"},
		{"B16", "5.00"},
		{"2002", "7.50"},
	})}

	r, err := reconcile.New(
		reconcile.WithStrategy(match.Contains),
		reconcile.WithOnAmbiguous(match.OnAmbiguousReport),
	)
	require.NoError(t, err)
	res, err := r.Reconcile(context.Background(), left, right)
	require.NoError(t, err)
	return res
}

func write(t *testing.T, format report.Format, res *reconcile.Result) string {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, report.Write(&buf, format, res))
	return buf.String()
}

func TestJSONDocument(t *testing.T) {
	out := write(t, report.FormatJSON, result(t))

	var doc map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &doc))
	assert.Equal(t, "1", doc["contract_version"])
	assert.Contains(t, doc, "summary")
	assert.Len(t, doc["results"], 6)
	assert.NotContains(t, out, "run_id")
	assert.NotContains(t, out, "Metadata")
}

func TestDeterministicBytes(t *testing.T) {
	for _, f := range report.Formats {
		t.Run(string(f), func(t *testing.T) {
			assert.Equal(t, write(t, f, result(t)), write(t, f, result(t)))
		})
	}
}

func TestJSONL(t *testing.T) {
	res := result(t)
	lines := strings.Split(strings.TrimSpace(write(t, report.FormatJSONL, res)), "\n")
	require.Len(t, lines, len(res.Groups)+1)

	var first map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &first))
	assert.Equal(t, "summary", first["record"])
	assert.Equal(t, "1", first["contract_version"])

	var group map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[1]), &group))
	assert.Equal(t, "group", group["record"])
	assert.Equal(t, "1001", group["key"])
	assert.Equal(t, "matched", group["status"])
}

func TestWriteWithVerdict(t *testing.T) {
	res := result(t)
	v := &policy.Verdict{Status: policy.StatusWarn, Checks: []policy.Check{{Name: "bucket:left_only", Status: policy.StatusWarn}}}

	var js bytes.Buffer
	require.NoError(t, report.WriteWithVerdict(&js, report.FormatJSON, res, v))
	var doc map[string]any
	require.NoError(t, json.Unmarshal(js.Bytes(), &doc))
	require.Contains(t, doc, "verdict")
	assert.Equal(t, "warn", doc["verdict"].(map[string]any)["status"])

	var jl bytes.Buffer
	require.NoError(t, report.WriteWithVerdict(&jl, report.FormatJSONL, res, v))
	lines := strings.Split(strings.TrimSpace(jl.String()), "\n")
	require.Len(t, lines, len(res.Groups)+2)
	assert.Contains(t, lines[len(lines)-1], `"record":"verdict"`)

	assert.NotContains(t, write(t, report.FormatJSON, res), "verdict")
}

func TestYAML(t *testing.T) {
	out := write(t, report.FormatYAML, result(t))
	assert.Contains(t, out, "contract_version:")
	assert.Contains(t, out, "status: ambiguous")
}

func TestFlatCSV(t *testing.T) {
	records, err := csv.NewReader(strings.NewReader(write(t, report.FormatCSV, result(t)))).ReadAll()
	require.NoError(t, err)
	assert.Equal(t, report.CSVHeader, records[0])

	byKey := make(map[string][]string)
	for _, r := range records[1:] {
		byKey[r[1]] = r
	}
	assert.Equal(t, "matched", byKey["1001"][0])
	assert.Equal(t, "contains", byKey["1001"][8])
	assert.Contains(t, byKey["1001"][9], "INV-1001")

	mismatch := byKey["2002"]
	assert.Equal(t, []string{"amount_mismatch", "2002", "right", "amount", "7.00", "7.50", "0.5", "false", "contains"}, mismatch[:9])

	assert.Equal(t, "ambiguous", byKey["16"][0])
	assert.Equal(t, "candidates: A16|B16", byKey["16"][9])
	assert.Equal(t, "left_only", byKey["3003"][0])
	assert.Equal(t, "left", byKey["3003"][2])
	assert.Equal(t, "right_only", byKey["A16"][0])
}

func TestAmbiguityCSV(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, report.WriteAmbiguityCSV(&buf, result(t)))
	assert.Equal(t, "left_key,candidate_count,candidate_keys\n16,2,A16|B16\n", buf.String())
}

func TestParseFormat(t *testing.T) {
	f, err := report.ParseFormat("JSONL")
	require.NoError(t, err)
	assert.Equal(t, report.FormatJSONL, f)
	_, err = report.ParseFormat("xml")
	assert.Error(t, err)
}
