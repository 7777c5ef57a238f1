// Package check implements the baseline drift check command.
package check

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/agentstation/tally/cmd/application"
	"github.com/agentstation/tally/internal/baseline"
	"github.com/agentstation/tally/internal/cmd/cmdutil"
	"github.com/agentstation/tally/internal/cmd/output"
	"github.com/agentstation/tally/internal/loader"
	"github.com/agentstation/tally/pkg/constants"
	"github.com/agentstation/tally/pkg/dataset"
	"github.com/agentstation/tally/pkg/differ"
	"github.com/agentstation/tally/pkg/errors"
	"github.com/agentstation/tally/pkg/fingerprint"
	"github.com/agentstation/tally/pkg/logging"
	"github.com/agentstation/tally/pkg/policy"
)

// Flags holds the check flags.
type Flags struct {
	Name          string
	StoreDriver   string
	StorePath     string
	Tree          string
	AssertCell    []string
	AssertSum     []string
	IgnoreColumns []string

	RowCount           string
	ColumnsAdded       string
	ColumnsRemoved     string
	FingerprintChanged string

	Strict  bool
	NoFail  bool
	Accept  bool
	History int
}

// Result is the structured output of a check.
type Result struct {
	Name        string                  `json:"name" yaml:"name"`
	Verdict     *policy.Verdict         `json:"verdict" yaml:"verdict"`
	Delta       *differ.StructuralDelta `json:"delta,omitempty" yaml:"delta,omitempty"`
	Baseline    string                  `json:"baseline,omitempty" yaml:"baseline,omitempty"`
	Saved       bool                    `json:"saved" yaml:"saved"`
	Schema      differ.Schema           `json:"schema" yaml:"schema"`
	Fingerprint string                  `json:"fingerprint,omitempty" yaml:"fingerprint,omitempty"`
}

// NewCommand creates the check command.
func NewCommand(app application.Application) *cobra.Command {
	flags := &Flags{}

	cmd := &cobra.Command{
		Use:     "check DATASET",
		GroupID: "core",
		Short:   "Check a dataset against its stored baseline",
		Long: `Check compares a dataset's structure (row count, columns, numeric
column totals) and optionally a content tree fingerprint with the last
stored baseline, evaluates point assertions, and prints a pass/warn/fail
verdict.

The first check of a dataset creates its baseline. Later checks store a new
baseline unless the verdict fails; --accept stores it regardless, making
the current state the expected one.`,
		Example: `  tally check ledger.csv
  tally check ledger.csv --name ledger --assert-sum amount:1500.00:0.01
  tally check export.csv --tree book.yaml --assert-cell 'Summary!B7:200000'
  tally check ledger.csv --row-count fail --strict --store-driver sqlite --store ./baselines.db
  tally check ledger.csv --history 10`,
		Args: application.Args(cobra.ExactArgs(1)),
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, app, args[0], flags)
		},
	}

	cmd.Flags().StringVar(&flags.Name, "name", "",
		"Baseline name (default: the dataset's file name without extension)")
	cmd.Flags().StringVar(&flags.StoreDriver, "store-driver", "",
		"Baseline store driver: badger, sqlite, memory (default from config)")
	cmd.Flags().StringVar(&flags.StorePath, "store", "",
		"Baseline store path (default from config)")
	cmd.Flags().StringVar(&flags.Tree, "tree", "",
		"Content tree to fingerprint and read cell assertions from")
	cmd.Flags().StringArrayVar(&flags.AssertCell, "assert-cell", nil,
		"Cell assertion SHEET!CELL:expected[:tolerance] (repeatable)")
	cmd.Flags().StringArrayVar(&flags.AssertSum, "assert-sum", nil,
		"Column sum assertion COLUMN:expected[:tolerance] (repeatable)")
	cmd.Flags().StringSliceVar(&flags.IgnoreColumns, "ignore-columns", nil,
		"Columns left out of structural comparison")
	cmd.Flags().StringVar(&flags.RowCount, "row-count", "",
		"Severity of a row count change: pass, warn, fail")
	cmd.Flags().StringVar(&flags.ColumnsAdded, "columns-added", "",
		"Severity of added columns: pass, warn, fail")
	cmd.Flags().StringVar(&flags.ColumnsRemoved, "columns-removed", "",
		"Severity of removed columns: pass, warn, fail")
	cmd.Flags().StringVar(&flags.FingerprintChanged, "fingerprint-changed", "",
		"Severity of a changed tree fingerprint: pass, warn, fail")
	cmd.Flags().BoolVar(&flags.Strict, "strict", false,
		"Raise every structural check to fail")
	cmd.Flags().BoolVar(&flags.NoFail, "no-fail", false,
		"Always exit 0 when the check completes")
	cmd.Flags().BoolVar(&flags.Accept, "accept", false,
		"Store the baseline even when the verdict fails")
	cmd.Flags().IntVar(&flags.History, "history", 0,
		"List the last N stored baselines instead of checking")

	return cmd
}

func run(cmd *cobra.Command, app application.Application, path string, flags *Flags) error {
	started := time.Now()
	name := flags.Name
	if name == "" {
		name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	ctx := logging.WithDataset(cmd.Context(), name)
	logger := app.Logger().With().Str("dataset", name).Logger()

	format := output.DetectFormat(app.OutputFormat())
	if _, err := output.ParseFormat(string(format)); err != nil {
		return application.UsageError(err)
	}

	store, err := openStore(app, flags)
	if err != nil {
		return err
	}
	defer func() {
		if err := store.Close(); err != nil {
			logger.Warn().Err(err).Msg("closing baseline store")
		}
	}()

	if flags.History > 0 {
		return history(ctx, cmd, store, format, name, flags.History)
	}

	cfg, assertions, err := policyFromFlags(flags)
	if err != nil {
		return application.UsageError(err)
	}

	ds, err := loader.Dataset(path, loader.WithName(name))
	if err != nil {
		return err
	}
	schema := differ.SchemaOf(ds)

	in := policy.Input{
		Assertions: assertions,
		Columns:    cmdutil.SumColumns(ds, assertions),
	}
	if flags.Tree != "" {
		if err := readTree(flags.Tree, assertions, &in); err != nil {
			return err
		}
	}

	prev, err := store.Latest(ctx, name)
	switch {
	case errors.IsNotFound(err):
		in.FirstSeen = true
		logger.Info().Msg("no baseline yet")
	case err != nil:
		return err
	default:
		in.Delta = differ.New(differ.WithIgnoredColumns(flags.IgnoreColumns...)).Schemas(prev.Schema, schema)
		in.BaselineFingerprint = prev.Fingerprint
		logger.Debug().Str("baseline", prev.ID).Str("delta", in.Delta.String()).Msg("compared with baseline")
	}

	v := policy.Evaluate(cfg, in)
	app.Metrics().ObserveVerdict(v)

	result := &Result{Name: name, Verdict: v, Delta: in.Delta, Schema: schema, Fingerprint: in.Fingerprint}
	if prev != nil {
		result.Baseline = prev.ID
	}
	if v.Status != policy.StatusFail || flags.Accept {
		if err := save(ctx, store, name, schema, in.Fingerprint, v); err != nil {
			return err
		}
		result.Saved = true
	}
	logger.Info().Str("verdict", string(v.Status)).Bool("saved", result.Saved).Msg("check complete")

	if err := write(cmd, format, ds, result); err != nil {
		return err
	}

	app.Metrics().ObserveRun("check", string(v.Status), started)
	if v.ExitCode(flags.NoFail) != constants.ExitSuccess {
		return application.Fail("verdict %s: %d checks failed", v.Status, len(v.Failed()))
	}
	return nil
}

// openStore opens the configured baseline store, with flags overriding
// the application settings.
func openStore(app application.Application, flags *Flags) (baseline.Store, error) {
	cfg := app.BaselineConfig()
	if flags.StoreDriver != "" {
		driver, err := baseline.ParseDriver(flags.StoreDriver)
		if err != nil {
			return nil, application.UsageError(err)
		}
		cfg.Driver = driver
	}
	if flags.StorePath != "" {
		cfg.Path = flags.StorePath
	}
	return baseline.Open(cfg)
}

// policyFromFlags builds the policy and assertions of a check.
func policyFromFlags(flags *Flags) (policy.Config, []policy.Assertion, error) {
	cfg := policy.Config{
		RowCount:           policy.Severity(flags.RowCount),
		ColumnsAdded:       policy.Severity(flags.ColumnsAdded),
		ColumnsRemoved:     policy.Severity(flags.ColumnsRemoved),
		FingerprintChanged: policy.Severity(flags.FingerprintChanged),
	}
	if err := cfg.Validate(); err != nil {
		return cfg, nil, err
	}
	if flags.Strict {
		cfg = cfg.Strict()
	}

	assertions := make([]policy.Assertion, 0, len(flags.AssertCell)+len(flags.AssertSum))
	for _, s := range flags.AssertCell {
		a, err := policy.ParseCellAssertion(s)
		if err != nil {
			return cfg, nil, err
		}
		if flags.Tree == "" {
			return cfg, nil, errors.New("--assert-cell needs --tree")
		}
		assertions = append(assertions, a)
	}
	for _, s := range flags.AssertSum {
		a, err := policy.ParseSumAssertion(s)
		if err != nil {
			return cfg, nil, err
		}
		assertions = append(assertions, a)
	}
	return cfg, assertions, nil
}

func readTree(path string, assertions []policy.Assertion, in *policy.Input) error {
	tree, err := loader.Tree(path)
	if err != nil {
		return err
	}
	fp, err := fingerprint.Compute(tree)
	if err != nil {
		return err
	}
	in.Fingerprint = fp.String()
	in.Values = cmdutil.CellValues(tree, assertions)
	return nil
}

func save(ctx context.Context, store baseline.Store, name string, schema differ.Schema, fp string, v *policy.Verdict) error {
	id := logging.RunID(ctx)
	if id == "" {
		id = uuid.NewString()
	}
	return store.Save(ctx, &baseline.Record{
		ID:          id,
		Name:        name,
		CreatedAt:   time.Now().UTC(),
		Schema:      schema,
		Fingerprint: fp,
		Status:      string(v.Status),
	})
}

func history(ctx context.Context, cmd *cobra.Command, store baseline.Store, format output.Format, name string, limit int) error {
	records, err := store.History(ctx, name, limit)
	if err != nil {
		return err
	}
	if format == output.FormatTable {
		return output.NewFormatter(format).Format(cmd.OutOrStdout(), output.BaselineTable(name, records))
	}
	if records == nil {
		records = []*baseline.Record{}
	}
	return output.NewFormatter(format).Format(cmd.OutOrStdout(), records)
}

func write(cmd *cobra.Command, format output.Format, ds *dataset.Dataset, result *Result) error {
	w := cmd.OutOrStdout()
	if format != output.FormatTable {
		return output.NewFormatter(format).Format(w, result)
	}

	if _, err := fmt.Fprintf(w, "Dataset: %s (%d rows, %d columns)\n", ds.Name, ds.Len(), len(ds.Columns)); err != nil {
		return err
	}
	if result.Delta != nil {
		if _, err := fmt.Fprintf(w, "Drift: %s\n", result.Delta); err != nil {
			return err
		}
	}
	return output.NewFormatter(format).Format(w, output.VerdictTable(result.Verdict))
}
