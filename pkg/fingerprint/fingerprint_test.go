package fingerprint_test

import (
	"context"
	"math"
	"regexp"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentstation/tally/pkg/errors"
	"github.com/agentstation/tally/pkg/fingerprint"
)

func addr(t *testing.T, s string) fingerprint.Address {
	t.Helper()
	a, err := fingerprint.ParseAddress(s)
	require.NoError(t, err)
	return a
}

// sampleTree builds a small two-sheet workbook.
func sampleTree(t *testing.T) *fingerprint.ContentTree {
	t.Helper()
	return &fingerprint.ContentTree{
		Calc: fingerprint.CalcSettings{MaxIterations: 100, MaxChange: 0.001},
		Sheets: []fingerprint.Sheet{
			{
				Index: 1,
				Name:  "Detail",
				Cells: map[fingerprint.Address]fingerprint.Cell{
					addr(t, "A1"): {Value: fingerprint.String("Invoice")},
					addr(t, "B2"): {Value: fingerprint.Number(1234.56), Tags: []string{"amount"}},
				},
			},
			{
				Index: 0,
				Name:  "Summary",
				Cells: map[fingerprint.Address]fingerprint.Cell{
					addr(t, "B7"): {Value: fingerprint.Number(200000), Formula: "=sum(Detail!b2:b6)", Tags: []string{"total", "output"}},
					addr(t, "A7"): {Value: fingerprint.String("Total"), Style: &fingerprint.Style{Bold: true}},
				},
			},
		},
	}
}

func compute(t *testing.T, tree *fingerprint.ContentTree) fingerprint.Fingerprint {
	t.Helper()
	fp, err := fingerprint.Compute(tree)
	require.NoError(t, err)
	return fp
}

func TestComputeFormat(t *testing.T) {
	fp := compute(t, sampleTree(t))
	assert.Equal(t, fingerprint.Version, fp.Version)
	assert.Equal(t, 4, fp.Count)
	assert.Regexp(t, regexp.MustCompile(`^v2:4:[0-9a-f]{32}$`), fp.String())
}

func TestDeterministic(t *testing.T) {
	a := compute(t, sampleTree(t))
	b := compute(t, sampleTree(t))
	assert.Equal(t, a, b)
}

func TestStyleBlind(t *testing.T) {
	base := compute(t, sampleTree(t))

	styled := sampleTree(t)
	for i := range styled.Sheets {
		for a, c := range styled.Sheets[i].Cells {
			c.Style = &fingerprint.Style{Fill: "#FFFF00", Font: "Arial", Italic: true, Border: "thin", NumberFormat: "$#,##0.00"}
			styled.Sheets[i].Cells[a] = c
		}
	}
	assert.Equal(t, base, compute(t, styled))

	renamed := sampleTree(t)
	renamed.Sheets[0].Name = "Lines"
	assert.Equal(t, base, compute(t, renamed), "sheet names are not content")
}

func TestContentSensitive(t *testing.T) {
	base := compute(t, sampleTree(t))

	mutations := map[string]func(tree *fingerprint.ContentTree){
		"value": func(tree *fingerprint.ContentTree) {
			c := tree.Sheets[0].Cells[addr(t, "B2")]
			c.Value = fingerprint.Number(1234.57)
			tree.Sheets[0].Cells[addr(t, "B2")] = c
		},
		"formula": func(tree *fingerprint.ContentTree) {
			c := tree.Sheets[1].Cells[addr(t, "B7")]
			c.Formula = "=SUM(Detail!B2:B7)"
			tree.Sheets[1].Cells[addr(t, "B7")] = c
		},
		"tag": func(tree *fingerprint.ContentTree) {
			c := tree.Sheets[0].Cells[addr(t, "B2")]
			c.Tags = []string{"fee"}
			tree.Sheets[0].Cells[addr(t, "B2")] = c
		},
		"address": func(tree *fingerprint.ContentTree) {
			c := tree.Sheets[0].Cells[addr(t, "A1")]
			delete(tree.Sheets[0].Cells, addr(t, "A1"))
			tree.Sheets[0].Cells[addr(t, "A2")] = c
		},
		"sheet index": func(tree *fingerprint.ContentTree) {
			tree.Sheets[0].Index = 2
		},
		"calc": func(tree *fingerprint.ContentTree) {
			tree.Calc.Iterative = true
		},
		"value kind": func(tree *fingerprint.ContentTree) {
			c := tree.Sheets[0].Cells[addr(t, "B2")]
			c.Value = fingerprint.String("1234.56")
			tree.Sheets[0].Cells[addr(t, "B2")] = c
		},
	}
	for name, mutate := range mutations {
		t.Run(name, func(t *testing.T) {
			tree := sampleTree(t)
			mutate(tree)
			assert.NotEqual(t, base.Hash, compute(t, tree).Hash)
		})
	}
}

func TestFormulaEvaluatedValueIgnored(t *testing.T) {
	base := compute(t, sampleTree(t))
	tree := sampleTree(t)
	c := tree.Sheets[1].Cells[addr(t, "B7")]
	c.Value = fingerprint.Number(1)
	tree.Sheets[1].Cells[addr(t, "B7")] = c
	assert.Equal(t, base, compute(t, tree))
}

func TestFormulaSpellingNormalized(t *testing.T) {
	base := compute(t, sampleTree(t))
	tree := sampleTree(t)
	c := tree.Sheets[1].Cells[addr(t, "B7")]
	c.Formula = "= SUM( detail!B2 : B6 )"
	tree.Sheets[1].Cells[addr(t, "B7")] = c
	assert.Equal(t, base, compute(t, tree))
}

func TestTagOrderAndDuplicatesIgnored(t *testing.T) {
	base := compute(t, sampleTree(t))
	tree := sampleTree(t)
	c := tree.Sheets[1].Cells[addr(t, "B7")]
	c.Tags = []string{"total", "output", "total"}
	tree.Sheets[1].Cells[addr(t, "B7")] = c
	assert.Equal(t, base, compute(t, tree))
}

func TestEmptyCellsOmitted(t *testing.T) {
	base := compute(t, sampleTree(t))
	tree := sampleTree(t)
	tree.Sheets[0].Cells[addr(t, "Z99")] = fingerprint.Cell{Style: &fingerprint.Style{Fill: "red"}}
	fp := compute(t, tree)
	assert.Equal(t, base, fp)
	assert.Equal(t, 4, fp.Count)
}

func TestCanonicalStream(t *testing.T) {
	tree := &fingerprint.ContentTree{
		Sheets: []fingerprint.Sheet{{
			Index: 0,
			Cells: map[fingerprint.Address]fingerprint.Cell{
				addr(t, "B1"): {Value: fingerprint.Bool(true)},
				addr(t, "A2"): {Formula: "=a1 b1", Tags: []string{"y", "x"}},
				addr(t, "A1"): {Value: fingerprint.String("hi")},
			},
		}},
	}
	got, err := fingerprint.Canonical(tree)
	require.NoError(t, err)
	want := strings.Join([]string{
		"tally-fingerprint",
		"calc:false:0:0",
		"sheet:0",
		"cell:A1:s:2:hi:",
		"cell:B1:b:4:true:",
		"cell:A2:f:5:A1 B1:1:x,1:y",
		"",
	}, "\n")
	assert.Equal(t, want, string(got))
}

func TestNormalizeFormula(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"=sum(a1:b2)", "SUM(A1:B2)"},
		{"=SUM( A1 , B2 )", "SUM(A1,B2)"},
		{`=IF(a1>0,"Yes  Sir",'my sheet'!b2)`, `IF(A1>0,"Yes  Sir",'my sheet'!B2)`},
		{"=A1:B5   B2:C3", "A1:B5 B2:C3"},
		{"=1 + 2", "1+2"},
		{`="say ""hi"""&a1`, `"say ""hi"""&A1`},
		{"=$a$1*2", "$A$1*2"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, fingerprint.NormalizeFormula(tt.in))
		})
	}
}

func TestVolatile(t *testing.T) {
	assert.Equal(t, []string{"TODAY"}, fingerprint.Volatile("=today()-A1"))
	assert.Equal(t, []string{"OFFSET", "INDIRECT"}, fingerprint.Volatile(`=SUM(offset(A1,0,0,indirect("B1")))`))
	assert.Empty(t, fingerprint.Volatile(`=SUM(A1:A3)&"NOW()"`))

	tree := sampleTree(t)
	tree.Sheets[0].Cells[addr(t, "C3")] = fingerprint.Cell{Formula: "=NOW()"}
	r, err := fingerprint.Analyze(tree)
	require.NoError(t, err)
	require.Len(t, r.Volatile, 1)
	assert.Equal(t, "C3", r.Volatile[0].Address)
	assert.Equal(t, []string{"Detail!C3 calls volatile NOW"}, r.Warnings())
}

func TestParse(t *testing.T) {
	fp, err := fingerprint.Parse("v2:4:00112233445566778899AABBCCDDEEFF")
	require.NoError(t, err)
	assert.Equal(t, 2, fp.Version)
	assert.Equal(t, 4, fp.Count)
	assert.Equal(t, "00112233445566778899aabbccddeeff", fp.Hash)
	assert.Equal(t, "v2:4:00112233445566778899aabbccddeeff", fp.String())

	legacy, err := fingerprint.Parse("12:abcdef")
	require.NoError(t, err)
	assert.Equal(t, 0, legacy.Version)
	assert.Equal(t, "12:abcdef", legacy.String())
	assert.False(t, legacy.Equal(fp))

	for _, bad := range []string{"", "x:1:ab", "v0:1:ab", "v2:-1:ab", "v2:1:zz", "v2:1:", "1:2:3:4"} {
		_, err := fingerprint.Parse(bad)
		assert.True(t, errors.IsParse(err), bad)
	}
}

func TestVerify(t *testing.T) {
	tree := sampleTree(t)
	fp := compute(t, tree)
	require.NoError(t, fingerprint.Verify(fp.String(), tree))

	c := tree.Sheets[0].Cells[addr(t, "B2")]
	c.Value = fingerprint.Number(0)
	tree.Sheets[0].Cells[addr(t, "B2")] = c
	err := fingerprint.Verify(fp.String(), tree)
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrFingerprintMismatch)
}

func TestComputeAll(t *testing.T) {
	trees := []*fingerprint.ContentTree{sampleTree(t), {}, sampleTree(t)}
	reports, err := fingerprint.ComputeAll(context.Background(), trees, 4)
	require.NoError(t, err)
	require.Len(t, reports, 3)
	assert.Equal(t, reports[0].Fingerprint, reports[2].Fingerprint)
	assert.Equal(t, 0, reports[1].Fingerprint.Count)

	_, err = fingerprint.ComputeAll(context.Background(), []*fingerprint.ContentTree{nil}, 1)
	assert.Error(t, err)
}

func TestValidateDuplicateSheetIndex(t *testing.T) {
	tree := &fingerprint.ContentTree{Sheets: []fingerprint.Sheet{{Index: 0}, {Index: 0}}}
	_, err := fingerprint.Compute(tree)
	assert.True(t, errors.IsValidationError(err))
}

func TestLookup(t *testing.T) {
	tree := sampleTree(t)

	v, err := tree.Lookup("B7")
	require.NoError(t, err)
	f, ok := v.Float64()
	require.True(t, ok)
	assert.Equal(t, 200000.0, f)

	v, err = tree.Lookup("'Detail'!B2")
	require.NoError(t, err)
	assert.Equal(t, "1234.56", v.String())

	_, err = tree.Lookup("Detail!C9")
	assert.True(t, errors.IsNotFound(err))
	_, err = tree.Lookup("Nope!A1")
	assert.True(t, errors.IsNotFound(err))
}

func TestValueOf(t *testing.T) {
	v, err := fingerprint.ValueOf(uint64(5))
	require.NoError(t, err)
	assert.Equal(t, fingerprint.Number(5), v)

	v, err = fingerprint.ValueOf("#div/0!")
	require.NoError(t, err)
	assert.Equal(t, fingerprint.KindError, v.Kind)

	_, err = fingerprint.ValueOf([]int{1})
	assert.Error(t, err)

	big, err := fingerprint.ValueOf(int64(9007199254740993))
	require.NoError(t, err)
	assert.Equal(t, "9007199254740993", big.String())
	big, err = fingerprint.ValueOf(uint64(18446744073709551615))
	require.NoError(t, err)
	assert.Equal(t, "18446744073709551615", big.String())
}

func TestNumberText(t *testing.T) {
	assert.Equal(t, "1000000", fingerprint.Number(1e6).String())
	assert.Equal(t, "0.0000001", fingerprint.Number(1e-7).String())
	assert.Equal(t, "0", fingerprint.Number(math.Copysign(0, -1)).String())
	assert.Equal(t, fingerprint.Number(5), fingerprint.Int(5))
}

func TestDecimal(t *testing.T) {
	tests := []struct {
		text string
		want string
	}{
		{"1.50", "1.5"},
		{"-.5", "-0.5"},
		{"1.2e-7", "0.00000012"},
		{"1.0e6", "1000000"},
		{"-0.0", "0"},
		{"0.12345678901234567891", "0.12345678901234567891"},
	}
	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			v, err := fingerprint.Decimal(tt.text)
			require.NoError(t, err)
			assert.Equal(t, fingerprint.KindNumber, v.Kind)
			assert.Equal(t, tt.want, v.String())
		})
	}

	for _, bad := range []string{"", "1/3", "0x1p-2", "1e999", "abc"} {
		_, err := fingerprint.Decimal(bad)
		assert.Error(t, err, bad)
	}

	a, err := fingerprint.Decimal("9007199254740993.0")
	require.NoError(t, err)
	b, err := fingerprint.Decimal("9007199254740992.0")
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}
