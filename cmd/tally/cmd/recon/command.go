// Package recon implements the manifest-driven reconciliation command.
package recon

import (
	"github.com/spf13/cobra"

	"github.com/agentstation/tally/cmd/application"
	"github.com/agentstation/tally/internal/cmd/cmdutil"
	"github.com/agentstation/tally/internal/config"
	"github.com/agentstation/tally/internal/loader"
	"github.com/agentstation/tally/pkg/fingerprint"
	"github.com/agentstation/tally/pkg/policy"
	"github.com/agentstation/tally/pkg/reconcile"
)

// NewCommand creates the recon command.
func NewCommand(app application.Application) *cobra.Command {
	var strict bool
	var matchFlags *cmdutil.MatchFlags
	var outFlags *cmdutil.OutputFlags

	cmd := &cobra.Command{
		Use:     "recon MANIFEST",
		GroupID: "core",
		Short:   "Run a reconciliation described by a manifest",
		Long: `Recon reads a YAML manifest naming two or more sources, the matching
settings, a severity policy and point assertions, reconciles the sources
and evaluates the policy into a pass/warn/fail verdict.

The first source is the primary: every other source is matched against it.
Matching flags given on the command line override the manifest.
Manifest scalars can be overridden with TALLY_RECON_* environment
variables (TALLY_RECON_TOLERANCE=0.5).`,
		Example: `  tally recon month-end.yaml
  tally recon month-end.yaml -o json --out result.json
  tally recon month-end.yaml --tolerance 0.05 --no-fail`,
		Args: application.Args(cobra.ExactArgs(1)),
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, app, args[0], strict, matchFlags, outFlags)
		},
	}

	cmd.Flags().BoolVar(&strict, "strict", false,
		"Raise every structural policy check to fail")
	matchFlags = cmdutil.AddMatchFlags(cmd)
	outFlags = cmdutil.AddOutputFlags(cmd)

	return cmd
}

func run(cmd *cobra.Command, app application.Application, path string, strict bool, matchFlags *cmdutil.MatchFlags, outFlags *cmdutil.OutputFlags) error {
	logger := app.Logger()

	m, err := config.LoadManifest(path)
	if err != nil {
		return err
	}
	logger.Debug().Str("manifest", m.Name).Int("sources", len(m.Sources)).Msg("manifest loaded")

	sources, err := loadSources(m)
	if err != nil {
		return err
	}

	opts, err := m.Options()
	if err != nil {
		return err
	}
	if m.Workers == 0 {
		opts = append(opts, reconcile.WithWorkers(app.Workers()))
	}
	overrides, err := matchFlags.Options(cmd, true)
	if err != nil {
		return err
	}
	opts = append(opts, overrides...)

	in := policy.Input{Assertions: m.Assertions}
	if m.Tree != "" {
		if err := readTree(m, &in); err != nil {
			return err
		}
		logger.Info().Str("fingerprint", in.Fingerprint).Msg("tree fingerprinted")
	}

	res, runErr := cmdutil.Reconcile(cmd, app, "recon", sources, opts)
	if res == nil {
		return runErr
	}

	in.Buckets = res.Summary.Buckets
	in.Columns = cmdutil.SumColumns(sources[0].Data, m.Assertions)
	cfg := m.Policy
	if strict {
		cfg = cfg.Strict()
	}
	v := policy.Evaluate(cfg, in)
	app.Metrics().ObserveVerdict(v)
	logger.Info().Str("verdict", string(v.Status)).Int("failed", len(v.Failed())).Msg("policy evaluated")

	if err := cmdutil.WriteResult(cmd, app, outFlags, res, v); err != nil {
		return err
	}
	if runErr != nil {
		return runErr
	}
	if v.ExitCode(outFlags.NoFail) != 0 {
		return application.Fail("verdict %s: %d checks failed", v.Status, len(v.Failed()))
	}
	return cmdutil.Finish(outFlags, res, nil)
}

// loadSources loads every manifest source in order.
func loadSources(m *config.Manifest) ([]reconcile.Source, error) {
	sources := make([]reconcile.Source, 0, len(m.Sources))
	for _, spec := range m.Sources {
		opts := []loader.Option{loader.WithName(spec.Name)}
		if spec.Format != "" {
			opts = append(opts, loader.WithFormat(loader.Format(spec.Format)))
		}
		if spec.Delimiter != "" {
			opts = append(opts, loader.WithDelimiter([]rune(spec.Delimiter)[0]))
		}
		ds, err := loader.Dataset(m.SourcePath(spec), opts...)
		if err != nil {
			return nil, err
		}
		key, err := ds.ResolveColumn(spec.Key)
		if err != nil {
			return nil, err
		}
		sources = append(sources, reconcile.Source{
			Name:    spec.Name,
			Data:    ds,
			Key:     key,
			Columns: spec.ColumnMap(),
		})
	}
	return sources, nil
}

// readTree fingerprints the manifest's tree and evaluates the cells its
// assertions read.
func readTree(m *config.Manifest, in *policy.Input) error {
	tree, err := loader.Tree(m.TreePath())
	if err != nil {
		return err
	}
	fp, err := fingerprint.Compute(tree)
	if err != nil {
		return err
	}
	in.Fingerprint = fp.String()
	in.Values = cmdutil.CellValues(tree, m.Assertions)
	return nil
}
