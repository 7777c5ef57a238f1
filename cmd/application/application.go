// Package application provides the application interface for tally commands.
//
// The Application interface defines the contract between the application layer and
// command implementations, enabling dependency injection and testability.
//
// Design Principles:
//   - Accept interfaces, return structs (Go proverb)
//   - Define interfaces where they're used, not where they're implemented
//   - Keep interfaces small and focused
//
// Usage in Commands:
//
//	func NewCommand(app application.Application) *cobra.Command {
//	    return &cobra.Command{
//	        RunE: func(cmd *cobra.Command, args []string) error {
//	            ctx := cmd.Context() // carries the run logger and run id
//	            app.Logger().Debug().Msg("starting")
//	            // ... reconcile, evaluate, write to cmd.OutOrStdout()
//	            return nil
//	        },
//	    }
//	}
//
// Testing with Mocks:
//
//	mock := &application.Mock{
//	    OutputFormatFunc: func() string { return "json" },
//	}
//	cmd := diff.NewCommand(mock)
//	cmd.SetOut(&buf)
//	// ... test command behavior
package application

import (
	"github.com/rs/zerolog"

	"github.com/agentstation/tally/internal/baseline"
	"github.com/agentstation/tally/internal/metrics"
)

// Application provides the application interface that commands need.
// The App struct from cmd/tally/app automatically implements this interface,
// providing dependency injection for commands while maintaining testability.
//
// Thread Safety: All methods must be safe for concurrent access.
type Application interface {
	// Logger returns the configured logger instance.
	// Commands should use this for all logging operations.
	Logger() *zerolog.Logger

	// OutputFormat returns the configured output format (table, json, yaml, ...),
	// or "" when the user did not choose one.
	OutputFormat() string

	// Workers returns the configured classification worker count.
	Workers() int

	// Metrics returns the process metrics recorder.
	Metrics() *metrics.Recorder

	// BaselineConfig returns the configured baseline store settings.
	// Commands may override fields from their own flags before opening.
	BaselineConfig() baseline.Config

	// Version returns the application version string.
	Version() string

	// Commit returns the git commit hash.
	Commit() string

	// Date returns the build date.
	Date() string

	// BuiltBy returns the build system identifier.
	BuiltBy() string
}
