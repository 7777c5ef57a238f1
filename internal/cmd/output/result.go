package output

import (
	"io"
	"os"
	"path/filepath"

	"github.com/agentstation/tally/pkg/constants"
	"github.com/agentstation/tally/pkg/errors"
	"github.com/agentstation/tally/pkg/policy"
	"github.com/agentstation/tally/pkg/reconcile"
	"github.com/agentstation/tally/pkg/report"
)

// DefaultDiscrepancyLimit caps the discrepancy table in terminal output.
const DefaultDiscrepancyLimit = 50

// ResultFormat resolves the output format of a reconciliation: "table", or
// one of the report formats.
func ResultFormat(explicit string) (string, error) {
	f := DetectFormat(explicit)
	if f == FormatTable {
		return string(FormatTable), nil
	}
	rf, err := report.ParseFormat(string(f))
	if err != nil {
		return "", err
	}
	return string(rf), nil
}

// WriteResult writes a reconciliation. The table format prints the bucket
// summary, the discrepancies (up to limit) and the verdict when there is
// one; every other format is a report view.
func WriteResult(w io.Writer, format string, res *reconcile.Result, v *policy.Verdict, limit int) error {
	if format != string(FormatTable) {
		return report.WriteWithVerdict(w, report.Format(format), res, v)
	}

	tf := &TableFormatter{}
	if err := tf.Format(w, SummaryTable(res)); err != nil {
		return err
	}
	if !res.Summary.Clean() {
		if err := tf.Format(w, DiscrepancyTable(res, limit)); err != nil {
			return err
		}
	}
	if v != nil {
		return tf.Format(w, VerdictTable(v))
	}
	return nil
}

// Create opens path for writing, creating parent directories.
func Create(path string) (io.WriteCloser, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, constants.DirPermissions); err != nil {
			return nil, errors.WrapIO("create", dir, err)
		}
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, constants.FilePermissions)
	if err != nil {
		return nil, errors.WrapIO("create", path, err)
	}
	return f, nil
}

// WriteFile writes with fn to path.
func WriteFile(path string, fn func(io.Writer) error) error {
	f, err := Create(path)
	if err != nil {
		return err
	}
	if err := fn(f); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return errors.WrapIO("close", path, err)
	}
	return nil
}
