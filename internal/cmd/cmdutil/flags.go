// Package cmdutil provides shared flags and run plumbing for tally commands.
package cmdutil

import (
	"github.com/spf13/cobra"

	"github.com/agentstation/tally/internal/cmd/output"
	"github.com/agentstation/tally/pkg/constants"
	"github.com/agentstation/tally/pkg/keys"
	"github.com/agentstation/tally/pkg/match"
	"github.com/agentstation/tally/pkg/reconcile"
)

// MatchFlags holds the reconciliation flags shared by diff and recon.
type MatchFlags struct {
	Match        string
	KeyTransform string
	Tolerance    float64
	OnAmbiguous  string
	OnDuplicate  string
	Compare      []string
	TimingColumn string
	TimingOffset float64
}

// AddMatchFlags adds reconciliation flags to a command.
func AddMatchFlags(cmd *cobra.Command) *MatchFlags {
	flags := &MatchFlags{}

	cmd.Flags().StringVar(&flags.Match, "match", constants.DefaultStrategy,
		"Matching strategy: exact, contains")
	cmd.Flags().StringVar(&flags.KeyTransform, "key-transform", constants.DefaultKeyTransform,
		"Key normalization: none, trim, digits, alnum")
	cmd.Flags().Float64Var(&flags.Tolerance, "tolerance", constants.DefaultTolerance,
		"Absolute numeric tolerance for compared columns")
	cmd.Flags().StringVar(&flags.OnAmbiguous, "on-ambiguous", constants.DefaultOnAmbiguous,
		"Ambiguous contains matches: error, report")
	cmd.Flags().StringVar(&flags.OnDuplicate, "on-duplicate", constants.DefaultOnDuplicate,
		"Repeated keys on one side: error, aggregate")
	cmd.Flags().StringSliceVar(&flags.Compare, "compare", nil,
		"Columns to compare (names, globs or /regex/; default: all shared columns)")
	cmd.Flags().StringVar(&flags.TimingColumn, "timing-column", "",
		"Date or sequence column checked for timing mismatches")
	cmd.Flags().Float64Var(&flags.TimingOffset, "timing-offset", 0,
		"Largest allowed timing offset (days for dates)")

	return flags
}

// Options converts the flags into reconciler options. Only flags the user
// set are converted when onlyChanged is true, so they can override a
// manifest.
func (f *MatchFlags) Options(cmd *cobra.Command, onlyChanged bool) ([]reconcile.Option, error) {
	set := func(name string) bool {
		return !onlyChanged || cmd.Flags().Changed(name)
	}

	var opts []reconcile.Option
	if set("match") {
		opts = append(opts, reconcile.WithStrategy(match.Strategy(f.Match)))
	}
	if set("key-transform") {
		t, err := keys.ParseTransform(f.KeyTransform)
		if err != nil {
			return nil, err
		}
		opts = append(opts, reconcile.WithKeyTransform(t))
	}
	if set("tolerance") {
		opts = append(opts, reconcile.WithTolerance(f.Tolerance))
	}
	if set("on-ambiguous") {
		opts = append(opts, reconcile.WithOnAmbiguous(match.AmbiguityPolicy(f.OnAmbiguous)))
	}
	if set("on-duplicate") {
		opts = append(opts, reconcile.WithOnDuplicate(match.DuplicatePolicy(f.OnDuplicate)))
	}
	if len(f.Compare) > 0 && set("compare") {
		opts = append(opts, reconcile.WithCompare(f.Compare...))
	}
	if f.TimingColumn != "" && set("timing-column") {
		opts = append(opts, reconcile.WithTiming(f.TimingColumn, f.TimingOffset))
	}
	return opts, nil
}

// OutputFlags holds the result output flags shared by diff and recon.
type OutputFlags struct {
	Out           string
	SaveAmbiguous string
	StrictExit    bool
	NoFail        bool
	Limit         int
}

// AddOutputFlags adds result output flags to a command.
func AddOutputFlags(cmd *cobra.Command) *OutputFlags {
	flags := &OutputFlags{}

	cmd.Flags().StringVar(&flags.Out, "out", "",
		"Write the result to this file instead of stdout")
	cmd.Flags().StringVar(&flags.SaveAmbiguous, "save-ambiguous", "",
		"Write ambiguous keys and their candidates to this CSV file")
	cmd.Flags().BoolVar(&flags.StrictExit, "strict-exit", false,
		"Exit 1 when any group is not matched")
	cmd.Flags().BoolVar(&flags.NoFail, "no-fail", false,
		"Always exit 0 when the run completes")
	cmd.Flags().IntVar(&flags.Limit, "limit", output.DefaultDiscrepancyLimit,
		"Maximum discrepancy rows in table output (0 for all)")

	return flags
}
