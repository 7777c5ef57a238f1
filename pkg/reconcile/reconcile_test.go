package reconcile_test

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentstation/tally/pkg/dataset"
	"github.com/agentstation/tally/pkg/errors"
	"github.com/agentstation/tally/pkg/match"
	"github.com/agentstation/tally/pkg/reconcile"
)

func source(name string, columns []string, rows ...[]string) reconcile.Source {
	return reconcile.Source{Name: name, Data: dataset.New(name, columns, rows), Key: columns[0]}
}

func run(t *testing.T, opts []reconcile.Option, sources ...reconcile.Source) (*reconcile.Result, error) {
	t.Helper()
	r, err := reconcile.New(opts...)
	require.NoError(t, err)
	return r.Reconcile(context.Background(), sources...)
}

func buckets(res *reconcile.Result) map[string]reconcile.Bucket {
	out := make(map[string]reconcile.Bucket, len(res.Groups))
	for _, g := range res.Groups {
		out[g.KeyRaw] = g.Bucket
	}
	return out
}

var invoiceColumns = []string{"id", "amount"}

func TestIdenticalDatasetsMatch(t *testing.T) {
	rows := [][]string{{"A1", "10.00"}, {"A2", "20.00"}, {"A3", "30.00"}}
	res, err := run(t, nil,
		source("left", invoiceColumns, rows...),
		source("right", invoiceColumns, rows...),
	)
	require.NoError(t, err)

	assert.Equal(t, 3, res.Summary.Groups)
	assert.Equal(t, 3, res.Summary.Count(reconcile.Matched))
	assert.True(t, res.Summary.Clean())
	assert.Equal(t, 0, res.Summary.DiffOutsideTolerance)
	for _, g := range res.Groups {
		assert.Empty(t, g.Diffs, g.Key)
	}
}

func TestOneSidedKeys(t *testing.T) {
	res, err := run(t, nil,
		source("left", invoiceColumns, []string{"A1", "10"}, []string{"A2", "20"}),
		source("right", invoiceColumns, []string{"A1", "10"}, []string{"A3", "30"}),
	)
	require.NoError(t, err)

	got := buckets(res)
	assert.Equal(t, reconcile.Matched, got["A1"])
	assert.Equal(t, reconcile.Bucket("left_only"), got["A2"])
	assert.Equal(t, reconcile.Bucket("right_only"), got["A3"])

	// primary keys first, then the other source's unmatched keys
	require.Len(t, res.Groups, 3)
	assert.Equal(t, []string{"A1", "A2", "A3"}, []string{res.Groups[0].Key, res.Groups[1].Key, res.Groups[2].Key})
}

func TestFormattedNumbersMatch(t *testing.T) {
	res, err := run(t, nil,
		source("left", invoiceColumns, []string{"A1", "$1,234.56"}, []string{"A2", "(500.00)"}),
		source("right", invoiceColumns, []string{"A1", "1234.56"}, []string{"A2", "-500"}),
	)
	require.NoError(t, err)

	for _, g := range res.Groups {
		assert.Equal(t, reconcile.Matched, g.Bucket, g.Key)
		require.Len(t, g.Diffs, 1, "differing raw values are still listed")
		assert.True(t, g.Diffs[0].WithinTolerance)
		require.NotNil(t, g.Diffs[0].Delta)
		assert.Zero(t, *g.Diffs[0].Delta)
	}
}

func TestAmountMismatchAndTolerance(t *testing.T) {
	left := source("left", invoiceColumns, []string{"A1", "100.00"}, []string{"A2", "100.00"})
	right := source("right", invoiceColumns, []string{"A1", "100.01"}, []string{"A2", "100.02"})

	res, err := run(t, []reconcile.Option{reconcile.WithTolerance(0.01)}, left, right)
	require.NoError(t, err)

	got := buckets(res)
	assert.Equal(t, reconcile.Matched, got["A1"], "delta equal to tolerance is within")
	assert.Equal(t, reconcile.AmountMismatch, got["A2"])
	assert.Equal(t, 1, res.Summary.DiffOutsideTolerance)

	require.Len(t, res.Summary.NetDeltas, 1)
	assert.Equal(t, "amount", res.Summary.NetDeltas[0].Column)
	assert.Equal(t, "-0.03", res.Summary.NetDeltas[0].Net)
	assert.Equal(t, 2, res.Summary.NetDeltas[0].Pairs)
}

func TestTextMismatchIsAmountMismatch(t *testing.T) {
	cols := []string{"id", "status"}
	res, err := run(t, nil,
		source("left", cols, []string{"A1", "paid"}),
		source("right", cols, []string{"A1", "void"}),
	)
	require.NoError(t, err)
	require.Len(t, res.Groups, 1)
	g := res.Groups[0]
	assert.Equal(t, reconcile.AmountMismatch, g.Bucket)
	require.Len(t, g.Diffs, 1)
	assert.Nil(t, g.Diffs[0].Delta)
	assert.False(t, g.Diffs[0].WithinTolerance)
}

func TestContainsAmbiguityFails(t *testing.T) {
	cols := []string{"ref", "amount"}
	left := source("left", cols, []string{"16", "5"}, []string{"99", "1"})
	right := source("right", cols, []string{"INV-A16", "5"}, []string{"INV-B16", "5"}, []string{"X99", "1"})

	res, err := run(t, []reconcile.Option{reconcile.WithStrategy(match.Contains)}, left, right)
	require.Error(t, err)
	assert.True(t, errors.IsAmbiguous(err))
	require.NotNil(t, res, "ambiguous runs are still reported")

	got := buckets(res)
	assert.Equal(t, reconcile.Ambiguous, got["16"])
	assert.Equal(t, reconcile.Matched, got["99"])
	assert.Equal(t, reconcile.Bucket("right_only"), got["INV-A16"])
	assert.Equal(t, reconcile.Bucket("right_only"), got["INV-B16"])

	amb := res.Ambiguous()
	require.Len(t, amb, 1)
	assert.Len(t, amb[0].Candidates, 2)

	var ambErr *errors.AmbiguityError
	require.ErrorAs(t, err, &ambErr)
	require.Len(t, ambErr.Groups, 1)
	assert.Equal(t, "16", ambErr.Groups[0].Key)
}

func TestContainsAmbiguityReport(t *testing.T) {
	cols := []string{"ref", "amount"}
	left := source("left", cols, []string{"16", "5"})
	right := source("right", cols, []string{"A16", "5"}, []string{"B16", "5"})

	res, err := run(t, []reconcile.Option{
		reconcile.WithStrategy(match.Contains),
		reconcile.WithOnAmbiguous(match.OnAmbiguousReport),
	}, left, right)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Summary.Count(reconcile.Ambiguous))
}

func TestContainsRecordsExplanation(t *testing.T) {
	cols := []string{"ref", "amount"}
	res, err := run(t, []reconcile.Option{reconcile.WithStrategy(match.Contains)},
		source("left", cols, []string{"1001", "5"}),
		source("right", cols, []string{"INV-1001", "5"}),
	)
	require.NoError(t, err)
	require.Len(t, res.Groups, 1)
	g := res.Groups[0]
	assert.Equal(t, reconcile.Matched, g.Bucket)
	require.Len(t, g.Explain, 1)
	assert.Equal(t, "right", g.Explain[0].Source)
	assert.Equal(t, "INV-1001", g.Explain[0].RightRaw)
}

func TestDuplicateKeysError(t *testing.T) {
	res, err := run(t, nil,
		source("left", invoiceColumns, []string{"A1", "1"}, []string{"A1", "2"}),
		source("right", invoiceColumns, []string{"A1", "3"}),
	)
	require.Error(t, err)
	assert.Nil(t, res)
	assert.True(t, errors.IsDuplicateKey(err))
	assert.Contains(t, err.Error(), `left key "A1" appears 2 times`)
}

func TestDuplicateKeysMergedAcrossSources(t *testing.T) {
	primary := source("bank", invoiceColumns, []string{"A1", "1"}, []string{"A1", "2"})
	res, err := run(t, nil,
		primary,
		source("ledger", invoiceColumns, []string{"A1", "3"}),
		source("processor", invoiceColumns, []string{"A1", "3"}),
	)
	require.Error(t, err)
	assert.Nil(t, res)

	var dupErr *errors.DuplicateKeyError
	require.ErrorAs(t, err, &dupErr)
	assert.Len(t, dupErr.Duplicates, 1, "the primary's duplicate is reported once")
}

func TestAggregateRollsUpRows(t *testing.T) {
	res, err := run(t, []reconcile.Option{reconcile.WithOnDuplicate(match.OnDuplicateAggregate)},
		source("left", invoiceColumns, []string{"A1", "10.10"}, []string{"A1", "5.05"}),
		source("right", invoiceColumns, []string{"A1", "15.15"}),
	)
	require.NoError(t, err)
	require.Len(t, res.Groups, 1)

	g := res.Groups[0]
	assert.Equal(t, reconcile.Matched, g.Bucket)
	left := g.Side("left")
	require.NotNil(t, left)
	assert.Len(t, left.Rows, 2)
	assert.Equal(t, 2, left.Aggregate.Count)
	assert.Equal(t, "15.15", left.Aggregate.Sums["amount"])
}

func TestTimingMismatch(t *testing.T) {
	cols := []string{"id", "amount", "posted"}
	left := source("left", cols, []string{"A1", "10", "2024-01-01"}, []string{"A2", "10", "2024-01-01"})
	right := source("right", cols, []string{"A1", "10", "2024-01-03"}, []string{"A2", "10", "2024-01-10"})

	res, err := run(t, []reconcile.Option{reconcile.WithTiming("posted", 3)}, left, right)
	require.NoError(t, err)

	got := buckets(res)
	assert.Equal(t, reconcile.Matched, got["A1"])
	assert.Equal(t, reconcile.TimingMismatch, got["A2"])
	assert.Equal(t, []string{"amount"}, res.Summary.Compare, "timing column is not compared")

	g := res.Groups[1]
	require.Len(t, g.Timing, 1)
	assert.InDelta(t, 9, g.Timing[0].Offset, 1e-9)
}

func TestAmountOutranksTiming(t *testing.T) {
	cols := []string{"id", "amount", "posted"}
	res, err := run(t, []reconcile.Option{reconcile.WithTiming("posted", 1)},
		source("left", cols, []string{"A1", "10", "2024-01-01"}),
		source("right", cols, []string{"A1", "11", "2024-02-01"}),
	)
	require.NoError(t, err)
	assert.Equal(t, reconcile.AmountMismatch, res.Groups[0].Bucket)
}

func TestNWayFold(t *testing.T) {
	bank := source("bank", invoiceColumns, []string{"A1", "10"}, []string{"A2", "20"}, []string{"A3", "30"})
	ledger := source("ledger", invoiceColumns, []string{"A1", "10"}, []string{"A2", "20"}, []string{"A3", "31"})
	processor := source("processor", invoiceColumns, []string{"A1", "10"}, []string{"A3", "30"}, []string{"A4", "40"})

	res, err := run(t, nil, bank, ledger, processor)
	require.NoError(t, err)

	got := buckets(res)
	assert.Equal(t, reconcile.Matched, got["A1"])
	assert.Equal(t, reconcile.Bucket("bank_ledger_only"), got["A2"])
	assert.Equal(t, reconcile.AmountMismatch, got["A3"], "amount mismatch outranks presence")
	assert.Equal(t, reconcile.Bucket("processor_only"), got["A4"])
	assert.Len(t, res.Summary.Sources, 3)
}

func TestWorkerCountDoesNotChangeOutput(t *testing.T) {
	var left, right [][]string
	for i := 0; i < 2000; i++ {
		left = append(left, []string{fmt.Sprintf("K%04d", i), fmt.Sprintf("%d.00", i)})
		if i%7 != 0 {
			amount := fmt.Sprintf("%d.00", i)
			if i%11 == 0 {
				amount = fmt.Sprintf("%d.50", i)
			}
			right = append(right, []string{fmt.Sprintf("K%04d", i), amount})
		}
	}

	serial, err := run(t, nil, source("left", invoiceColumns, left...), source("right", invoiceColumns, right...))
	require.NoError(t, err)
	parallel, err := run(t, []reconcile.Option{reconcile.WithWorkers(8)},
		source("left", invoiceColumns, left...), source("right", invoiceColumns, right...))
	require.NoError(t, err)

	assert.Equal(t, serial.Summary, parallel.Summary)
	assert.Equal(t, serial.Groups, parallel.Groups)
}

func TestColumnMappingAndPatterns(t *testing.T) {
	left := source("left", []string{"id", "amount", "fee", "memo"}, []string{"A1", "10", "1", "x"})
	right := source("right", []string{"ref", "total", "fee", "memo"}, []string{"A1", "10", "2", "y"})
	right.Columns = map[string]string{"amount": "total"}

	res, err := run(t, []reconcile.Option{reconcile.WithCompare("amount", "fee")}, left, right)
	require.NoError(t, err)
	assert.Equal(t, []string{"amount", "fee"}, res.Summary.Compare)
	assert.Equal(t, reconcile.AmountMismatch, res.Groups[0].Bucket)
	require.Len(t, res.Groups[0].Diffs, 1)
	assert.Equal(t, "fee", res.Groups[0].Diffs[0].Column)
}

func TestMissingCompareColumn(t *testing.T) {
	_, err := run(t, []reconcile.Option{reconcile.WithCompare("amount")},
		source("left", invoiceColumns, []string{"A1", "1"}),
		source("right", []string{"id", "total"}, []string{"A1", "1"}),
	)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrInvalidInput))
}

func TestSourceValidation(t *testing.T) {
	one := source("left", invoiceColumns)
	_, err := run(t, nil, one)
	require.Error(t, err)
	assert.True(t, errors.IsValidationError(err))

	_, err = run(t, nil, one, source("left", invoiceColumns))
	require.Error(t, err)

	bad := source("right", invoiceColumns)
	bad.Key = "nope"
	_, err = run(t, nil, one, bad)
	require.Error(t, err)
}

func TestOptionValidation(t *testing.T) {
	_, err := reconcile.New(reconcile.WithTolerance(-1))
	assert.Error(t, err)
	_, err = reconcile.New(reconcile.WithWorkers(0))
	assert.Error(t, err)
	_, err = reconcile.New(reconcile.WithStrategy("fuzzy"))
	assert.Error(t, err)
	_, err = reconcile.New(reconcile.WithTiming("", 1))
	assert.Error(t, err)
}
