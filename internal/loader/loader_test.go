package loader

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentstation/tally/pkg/errors"
	"github.com/agentstation/tally/pkg/fingerprint"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestDatasetCSV(t *testing.T) {
	path := writeFile(t, "ledger.csv", "\xEF\xBB\xBFid,amount,memo\nA1,\"$1,234.56\",rent\nA2,(500.00)\nA3,1,\"multi\nline\"\n")

	ds, err := Dataset(path)
	require.NoError(t, err)
	assert.Equal(t, "ledger", ds.Name)
	assert.Equal(t, []string{"id", "amount", "memo"}, ds.Columns)
	require.Equal(t, 3, ds.Len())
	assert.Equal(t, "$1,234.56", ds.Rows[0].Raw("amount"))
	assert.Equal(t, "", ds.Rows[1].Raw("memo"), "ragged rows pad with empty cells")
	assert.Equal(t, "multi\nline", ds.Rows[2].Raw("memo"))
	assert.NoError(t, ds.Validate())
}

func TestDatasetTSVAndName(t *testing.T) {
	path := writeFile(t, "bank.tsv", "ref\tamt\nX\t10\n")
	ds, err := Dataset(path, WithName("bank_feed"))
	require.NoError(t, err)
	assert.Equal(t, "bank_feed", ds.Name)
	assert.Equal(t, "10", ds.Rows[0].Raw("amt"))

	path = writeFile(t, "semi.txt", "ref;amt\nX;10\n")
	ds, err = Dataset(path, WithDelimiter(';'))
	require.NoError(t, err)
	assert.Equal(t, []string{"ref", "amt"}, ds.Columns)
}

func TestDatasetCSVErrors(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    string
	}{
		{"empty", "", "missing header"},
		{"duplicate header", "id,id\n1,2\n", `duplicate header "id"`},
		{"too many fields", "id,amount\n1,2,3\n", "3 fields"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Dataset(writeFile(t, "x.csv", tt.content))
			require.Error(t, err)
			assert.True(t, errors.IsParse(err))
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestDatasetMissingFile(t *testing.T) {
	_, err := Dataset(filepath.Join(t.TempDir(), "nope.csv"))
	var ioErr *errors.IOError
	assert.True(t, errors.As(err, &ioErr))
}

func TestReadJSON(t *testing.T) {
	ds, err := ReadJSON(strings.NewReader(`[
		{"id": "A1", "amount": 10.5, "paid": true},
		{"id": "A2", "amount": 7, "note": null, "extra": "x"}
	]`), "api")
	require.NoError(t, err)
	assert.Equal(t, []string{"id", "amount", "paid", "note", "extra"}, ds.Columns)
	assert.Equal(t, "10.5", ds.Rows[0].Raw("amount"))
	assert.Equal(t, "true", ds.Rows[0].Raw("paid"))
	assert.Equal(t, "7", ds.Rows[1].Raw("amount"))
	assert.Equal(t, "", ds.Rows[1].Raw("note"))
	assert.Equal(t, "", ds.Rows[0].Raw("extra"))

	_, err = ReadJSON(strings.NewReader(`[{"id": {"nested": 1}}]`), "api")
	assert.True(t, errors.IsParse(err))
}

const treeYAML = `
calc: {iterative: true, max_iterations: 100, max_change: 0.001}
sheets:
  - index: 1
    name: Data
    cells:
      A1: 12
      A2: 13
  - index: 0
    name: Summary
    cells:
      A1: Revenue
      B1: "=sum(Data!A1:A2)"
      B7:
        value: 200000
        formula: "=SUM(B2:B6)"
        tags: [total, audited]
        style: {bold: true, fill: "#ffff00"}
      C1: "#DIV/0!"
      D1: false
`

func TestReadTree(t *testing.T) {
	tree, err := ReadTree(strings.NewReader(treeYAML))
	require.NoError(t, err)
	require.Len(t, tree.Sheets, 2)
	assert.True(t, tree.Calc.Iterative)
	assert.Equal(t, 100, tree.Calc.MaxIterations)

	summary := tree.Sheets[1]
	assert.Equal(t, 0, summary.Index)
	b7 := summary.Cells[fingerprint.Address{Row: 7, Col: 2}]
	assert.Equal(t, "=SUM(B2:B6)", b7.Formula)
	assert.Equal(t, []string{"total", "audited"}, b7.Tags)
	require.NotNil(t, b7.Style)
	assert.True(t, b7.Style.Bold)

	b1 := summary.Cells[fingerprint.Address{Row: 1, Col: 2}]
	assert.Equal(t, "=sum(Data!A1:A2)", b1.Formula)
	assert.Equal(t, fingerprint.KindError, summary.Cells[fingerprint.Address{Row: 1, Col: 3}].Value.Kind)
	assert.Equal(t, fingerprint.KindBool, summary.Cells[fingerprint.Address{Row: 1, Col: 4}].Value.Kind)

	v, err := tree.Lookup("B7")
	require.NoError(t, err)
	assert.Equal(t, "200000", v.String(), "bare addresses read the sheet with the lowest index")

	fp, err := fingerprint.Compute(tree)
	require.NoError(t, err)
	assert.Equal(t, 7, fp.Count)
}

func TestTreeJSON(t *testing.T) {
	path := writeFile(t, "wb.json", `{"sheets": [{"name": "S", "cells": {"A1": 1, "B2": {"formula": "=A1*2"}}}]}`)
	tree, err := Tree(path)
	require.NoError(t, err)
	require.Len(t, tree.Sheets, 1)
	assert.Equal(t, 0, tree.Sheets[0].Index)
	assert.Len(t, tree.Sheets[0].Cells, 2)
}

func TestTreeErrors(t *testing.T) {
	for name, content := range map[string]string{
		"bad address":     "sheets: [{name: S, cells: {ZZZZ0: 1}}]",
		"duplicate index": "sheets: [{index: 0, name: A}, {index: 0, name: B}]",
		"not yaml":        "sheets: [",
		"same cell twice": "sheets: [{name: S, cells: {B7: 1, b7: 2}}]",
	} {
		t.Run(name, func(t *testing.T) {
			path := writeFile(t, "tree.yaml", content)
			_, err := Tree(path)
			require.Error(t, err)
			assert.True(t, errors.IsParse(err))
			assert.Contains(t, err.Error(), path)
		})
	}
}

func TestTreeCellSpellings(t *testing.T) {
	doc := "sheets: [{name: S, cells: {B7: 1, b7: 2, $B$7: 3}}]"
	for i := 0; i < 20; i++ {
		_, err := ReadTree(strings.NewReader(doc))
		require.Error(t, err)
		assert.True(t, errors.IsParse(err))
		assert.Contains(t, err.Error(), `sheet "S": cells $B$7 and B7 are both B7`)
	}

	tree, err := ReadTree(strings.NewReader("sheets: [{name: S, cells: {$B$7: 3}}]"))
	require.NoError(t, err)
	v, err := tree.Lookup("B7")
	require.NoError(t, err)
	assert.Equal(t, "3", v.String())
}

func TestTreeNumbersKeepPrecision(t *testing.T) {
	fingerprintOf := func(cells string) string {
		t.Helper()
		tree, err := ReadTree(strings.NewReader("sheets: [{name: S, cells: {" + cells + "}}]"))
		require.NoError(t, err)
		fp, err := fingerprint.Compute(tree)
		require.NoError(t, err)
		return fp.String()
	}

	assert.NotEqual(t, fingerprintOf("A1: 9007199254740993"), fingerprintOf("A1: 9007199254740992"))
	assert.NotEqual(t,
		fingerprintOf("A1: 0.12345678901234567891"),
		fingerprintOf("A1: 0.12345678901234567892"))
	assert.Equal(t, fingerprintOf("A1: 1.50"), fingerprintOf("A1: 1.5"))
	assert.Equal(t, fingerprintOf("A1: 1000000"), fingerprintOf("A1: 1.0e6"))

	tree, err := ReadTree(strings.NewReader(`{"sheets": [{"name": "S", "cells": {"A1": 18446744073709551615, "A2": {"value": 2.50}}}]}`))
	require.NoError(t, err)
	v, err := tree.Lookup("A1")
	require.NoError(t, err)
	assert.Equal(t, "18446744073709551615", v.String())
	v, err = tree.Lookup("A2")
	require.NoError(t, err)
	assert.Equal(t, "2.5", v.String())
}
