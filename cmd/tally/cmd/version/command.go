// Package version implements the version command.
package version

import (
	"runtime"

	"github.com/spf13/cobra"

	"github.com/agentstation/tally/cmd/application"
	"github.com/agentstation/tally/internal/cmd/output"
	"github.com/agentstation/tally/pkg/constants"
)

// Info is the structured version output.
type Info struct {
	Version         string `json:"version" yaml:"version"`
	Commit          string `json:"commit" yaml:"commit"`
	Date            string `json:"date" yaml:"date"`
	BuiltBy         string `json:"built_by" yaml:"built_by"`
	GoVersion       string `json:"go_version" yaml:"go_version"`
	Platform        string `json:"platform" yaml:"platform"`
	ContractVersion string `json:"contract_version" yaml:"contract_version"`
}

// NewCommand creates the version command.
func NewCommand(app application.Application) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Long:  `Show version information for the tally CLI.`,
		Args:  application.Args(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, _ []string) error {
			info := Info{
				Version:         app.Version(),
				Commit:          app.Commit(),
				Date:            app.Date(),
				BuiltBy:         app.BuiltBy(),
				GoVersion:       runtime.Version(),
				Platform:        runtime.GOOS + "/" + runtime.GOARCH,
				ContractVersion: constants.ContractVersion,
			}

			format := output.DetectFormat(app.OutputFormat())
			if format == output.FormatTable {
				return output.NewFormatter(format).Format(cmd.OutOrStdout(), output.Data{
					Headers: []string{"Property", "Value"},
					Rows: [][]string{
						{"version", info.Version},
						{"commit", info.Commit},
						{"built", info.Date},
						{"built by", info.BuiltBy},
						{"go version", info.GoVersion},
						{"platform", info.Platform},
						{"report contract", info.ContractVersion},
					},
				})
			}
			if _, err := output.ParseFormat(string(format)); err != nil {
				return application.UsageError(err)
			}
			return output.NewFormatter(format).Format(cmd.OutOrStdout(), info)
		},
	}
}
