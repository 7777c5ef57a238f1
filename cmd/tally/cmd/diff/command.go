// Package diff implements the two-way reconciliation command.
package diff

import (
	"github.com/spf13/cobra"

	"github.com/agentstation/tally/cmd/application"
	"github.com/agentstation/tally/internal/cmd/cmdutil"
	"github.com/agentstation/tally/internal/loader"
	"github.com/agentstation/tally/pkg/constants"
	"github.com/agentstation/tally/pkg/errors"
	"github.com/agentstation/tally/pkg/reconcile"
)

// Flags holds the diff-only flags.
type Flags struct {
	Key       string
	RightKey  string
	Map       map[string]string
	LeftName  string
	RightName string
}

// NewCommand creates the diff command.
func NewCommand(app application.Application) *cobra.Command {
	flags := &Flags{}
	var matchFlags *cmdutil.MatchFlags
	var outFlags *cmdutil.OutputFlags

	cmd := &cobra.Command{
		Use:     "diff LEFT RIGHT",
		GroupID: "core",
		Short:   "Reconcile two datasets by key",
		Long: `Diff matches the rows of two CSV, TSV or JSON datasets by a key column
and classifies every key as matched, one-sided, mismatched or ambiguous.

Columns are compared numerically within --tolerance when both values are
numbers, and as text otherwise. Without --compare every column both
datasets share (except the key) is compared.`,
		Example: `  tally diff ledger.csv bank.csv --key id
  tally diff ledger.csv bank.tsv --key ref --right-key Reference --map amount=Amt
  tally diff a.csv b.csv --key invoice --match contains --key-transform digits --on-ambiguous report
  tally diff a.csv b.csv --key id --tolerance 0.01 -o json --out result.json --strict-exit`,
		Args: application.Args(cobra.ExactArgs(2)),
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, app, args, flags, matchFlags, outFlags)
		},
	}

	cmd.Flags().StringVar(&flags.Key, "key", "",
		"Key column (name or spreadsheet letter)")
	cmd.Flags().StringVar(&flags.RightKey, "right-key", "",
		"Key column of RIGHT when it differs from --key")
	cmd.Flags().StringToStringVar(&flags.Map, "map", nil,
		"Map compared columns to RIGHT's column names (amount=Amt,...)")
	cmd.Flags().StringVar(&flags.LeftName, "left-name", constants.DefaultLeftName,
		"Source name of LEFT in buckets and reports")
	cmd.Flags().StringVar(&flags.RightName, "right-name", constants.DefaultRightName,
		"Source name of RIGHT in buckets and reports")

	matchFlags = cmdutil.AddMatchFlags(cmd)
	outFlags = cmdutil.AddOutputFlags(cmd)

	return cmd
}

func run(cmd *cobra.Command, app application.Application, args []string, flags *Flags, matchFlags *cmdutil.MatchFlags, outFlags *cmdutil.OutputFlags) error {
	logger := app.Logger()

	if flags.Key == "" {
		return application.UsageError(errors.New("--key is required"))
	}
	if flags.LeftName == flags.RightName {
		return application.UsageError(errors.New("--left-name and --right-name must differ"))
	}

	left, err := loader.Dataset(args[0], loader.WithName(flags.LeftName))
	if err != nil {
		return err
	}
	right, err := loader.Dataset(args[1], loader.WithName(flags.RightName))
	if err != nil {
		return err
	}
	logger.Debug().
		Int("left_rows", left.Len()).
		Int("right_rows", right.Len()).
		Msg("datasets loaded")

	leftKey, err := left.ResolveColumn(flags.Key)
	if err != nil {
		return err
	}
	rightRef := flags.RightKey
	if rightRef == "" {
		rightRef = flags.Key
	}
	rightKey, err := right.ResolveColumn(rightRef)
	if err != nil {
		return err
	}

	opts, err := matchFlags.Options(cmd, false)
	if err != nil {
		return err
	}
	opts = append(opts, reconcile.WithWorkers(app.Workers()))

	sources := []reconcile.Source{
		{Name: flags.LeftName, Data: left, Key: leftKey},
		{Name: flags.RightName, Data: right, Key: rightKey, Columns: flags.Map},
	}
	res, runErr := cmdutil.Reconcile(cmd, app, "diff", sources, opts)
	if res == nil {
		return runErr
	}
	if err := cmdutil.WriteResult(cmd, app, outFlags, res, nil); err != nil {
		return err
	}
	return cmdutil.Finish(outFlags, res, runErr)
}
