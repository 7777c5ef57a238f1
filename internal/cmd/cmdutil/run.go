package cmdutil

import (
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/agentstation/tally/cmd/application"
	"github.com/agentstation/tally/internal/cmd/output"
	"github.com/agentstation/tally/pkg/logging"
	"github.com/agentstation/tally/pkg/policy"
	"github.com/agentstation/tally/pkg/reconcile"
	"github.com/agentstation/tally/pkg/report"
)

// Reconcile runs a reconciliation with the command's context and records
// its metrics. Ambiguity errors come with the full result so it can still
// be written.
func Reconcile(cmd *cobra.Command, app application.Application, name string, sources []reconcile.Source, opts []reconcile.Option) (*reconcile.Result, error) {
	r, err := reconcile.New(opts...)
	if err != nil {
		return nil, err
	}

	started := time.Now()
	res, err := r.Reconcile(cmd.Context(), sources...)
	status := "pass"
	if err != nil {
		status = "error"
	}
	app.Metrics().ObserveResult(res)
	app.Metrics().ObserveRun(name, status, started)
	return res, err
}

// WriteResult writes the result to --out or the command's output, and the
// ambiguity CSV to --save-ambiguous.
func WriteResult(cmd *cobra.Command, app application.Application, flags *OutputFlags, res *reconcile.Result, v *policy.Verdict) error {
	if flags.SaveAmbiguous != "" {
		if err := output.WriteFile(flags.SaveAmbiguous, func(w io.Writer) error {
			return report.WriteAmbiguityCSV(w, res)
		}); err != nil {
			return err
		}
	}

	format, err := output.ResultFormat(app.OutputFormat())
	if err != nil {
		return application.UsageError(err)
	}
	write := func(w io.Writer) error {
		return output.WriteResult(w, format, res, v, flags.Limit)
	}
	if flags.Out != "" {
		if err := output.WriteFile(flags.Out, write); err != nil {
			return err
		}
		logging.FromContext(cmd.Context()).Info().Str("path", flags.Out).Msg("result written")
		return nil
	}
	return write(cmd.OutOrStdout())
}

// Finish turns a written run into the command's error. Reconciler errors
// win; otherwise an unclean result fails under --strict-exit unless
// --no-fail is set.
func Finish(flags *OutputFlags, res *reconcile.Result, runErr error) error {
	if runErr != nil {
		return runErr
	}
	if flags.NoFail || !flags.StrictExit || res == nil || res.Summary.Clean() {
		return nil
	}
	return application.Fail("%d of %d groups are not matched", res.Summary.Groups-res.Summary.Count(reconcile.Matched), res.Summary.Groups)
}
