// Package fingerprint implements the content tree fingerprint command.
package fingerprint

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/agentstation/tally/cmd/application"
	"github.com/agentstation/tally/internal/cmd/output"
	"github.com/agentstation/tally/internal/loader"
	"github.com/agentstation/tally/pkg/errors"
	fp "github.com/agentstation/tally/pkg/fingerprint"
)

// Entry is the structured output for one tree.
type Entry struct {
	File        string            `json:"file" yaml:"file"`
	Fingerprint fp.Fingerprint    `json:"fingerprint" yaml:"fingerprint"`
	Cells       int               `json:"cells" yaml:"cells"`
	Volatile    []fp.VolatileCell `json:"volatile,omitempty" yaml:"volatile,omitempty"`
}

// NewCommand creates the fingerprint command.
func NewCommand(app application.Application) *cobra.Command {
	var expect string

	cmd := &cobra.Command{
		Use:     "fingerprint TREE...",
		GroupID: "core",
		Short:   "Fingerprint spreadsheet content trees",
		Long: `Fingerprint computes a deterministic content fingerprint of one or more
spreadsheet content trees (YAML or JSON exports of sheets and cells).

The fingerprint covers cell values, formulas, tags and styles plus the
calculation settings, and ignores sheet and cell ordering in the file.
Formulas calling volatile functions (NOW, RAND, ...) are reported as
warnings because their values change between recalculations.`,
		Example: `  tally fingerprint book.yaml
  tally fingerprint q1.yaml q2.yaml q3.yaml -o json
  tally fingerprint book.yaml --expect v2:42:0f1e2d3c4b5a69788796a5b4c3d2e1f0`,
		Args: application.Args(cobra.MinimumNArgs(1)),
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, app, args, expect)
		},
	}

	cmd.Flags().StringVar(&expect, "expect", "",
		"Fail unless the tree has this fingerprint (single tree only)")

	return cmd
}

func run(cmd *cobra.Command, app application.Application, paths []string, expect string) error {
	logger := app.Logger()
	started := time.Now()

	var want fp.Fingerprint
	if expect != "" {
		if len(paths) != 1 {
			return application.UsageError(errors.New("--expect takes exactly one tree"))
		}
		parsed, err := fp.Parse(expect)
		if err != nil {
			return application.UsageError(err)
		}
		want = parsed
	}

	format := output.DetectFormat(app.OutputFormat())
	if _, err := output.ParseFormat(string(format)); err != nil {
		return application.UsageError(err)
	}

	trees := make([]*fp.ContentTree, len(paths))
	for i, path := range paths {
		tree, err := loader.Tree(path)
		if err != nil {
			return err
		}
		trees[i] = tree
	}

	reports, err := fp.ComputeAll(cmd.Context(), trees, app.Workers())
	if err != nil {
		app.Metrics().ObserveRun("fingerprint", "error", started)
		return err
	}
	app.Metrics().ObserveFingerprints(len(reports))

	for i, r := range reports {
		for _, w := range r.Warnings() {
			logger.Warn().Str("file", paths[i]).Msg(w)
		}
		logger.Debug().Str("file", paths[i]).Str("fingerprint", r.Fingerprint.String()).Msg("tree fingerprinted")
	}

	if err := write(cmd, format, paths, reports); err != nil {
		return err
	}

	if expect != "" && !want.Equal(reports[0].Fingerprint) {
		app.Metrics().ObserveRun("fingerprint", "fail", started)
		return application.Fail("%s: expected %s, got %s", errors.ErrFingerprintMismatch, want, reports[0].Fingerprint)
	}
	app.Metrics().ObserveRun("fingerprint", "pass", started)
	return nil
}

func write(cmd *cobra.Command, format output.Format, paths []string, reports []*fp.Report) error {
	w := cmd.OutOrStdout()
	if format == output.FormatTable {
		if err := output.NewFormatter(format).Format(w, output.FingerprintTable(paths, reports)); err != nil {
			return err
		}
		for i, r := range reports {
			for _, warning := range r.Warnings() {
				if _, err := fmt.Fprintf(w, "%s %s: %s\n", output.SymbolWarn, paths[i], warning); err != nil {
					return err
				}
			}
		}
		return nil
	}

	entries := make([]Entry, len(reports))
	for i, r := range reports {
		entries[i] = Entry{File: paths[i], Fingerprint: r.Fingerprint, Cells: r.Fingerprint.Count, Volatile: r.Volatile}
	}
	return output.NewFormatter(format).Format(w, entries)
}
