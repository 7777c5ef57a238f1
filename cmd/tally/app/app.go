// Package app provides the application context and dependency management
// for the tally CLI. It follows idiomatic Go patterns for CLI applications
// by centralizing configuration, dependency injection, and lifecycle management.
package app

import (
	"context"
	"sync"

	"github.com/rs/zerolog"

	"github.com/agentstation/tally/cmd/application"
	"github.com/agentstation/tally/internal/baseline"
	"github.com/agentstation/tally/internal/metrics"
	"github.com/agentstation/tally/pkg/errors"
)

// App represents the tally application with all its dependencies.
// It provides a centralized place for configuration, logging, and
// metrics, following the dependency injection pattern.
type App struct {
	// Version information
	version string
	commit  string
	date    string
	builtBy string

	config *Config

	mu      sync.RWMutex
	logger  *zerolog.Logger
	metrics *metrics.Recorder
}

// New creates a new App instance with the given version information.
// The app is initialized with default configuration that can be
// customized using functional options.
func New(version, commit, date, builtBy string, opts ...Option) (*App, error) {
	app := &App{
		version: version,
		commit:  commit,
		date:    date,
		builtBy: builtBy,
		metrics: metrics.New(),
	}

	config, err := LoadConfig()
	if err != nil {
		return nil, errors.NewConfigError("config", "failed to load configuration", err)
	}
	app.config = config

	logger := NewLogger(config)
	app.logger = &logger

	for _, opt := range opts {
		if err := opt(app); err != nil {
			return nil, err
		}
	}

	return app, nil
}

// Version returns the version information.
func (a *App) Version() string {
	return a.version
}

// Commit returns the git commit hash.
func (a *App) Commit() string {
	return a.commit
}

// Date returns the build date.
func (a *App) Date() string {
	return a.date
}

// BuiltBy returns the build system identifier.
func (a *App) BuiltBy() string {
	return a.builtBy
}

// Config returns the application configuration.
func (a *App) Config() *Config {
	return a.config
}

// Logger returns the application logger.
func (a *App) Logger() *zerolog.Logger {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.logger
}

func (a *App) setLogger(logger zerolog.Logger) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.logger = &logger
}

// OutputFormat returns the configured output format.
func (a *App) OutputFormat() string {
	return a.config.Format
}

// Workers returns the configured classification worker count.
func (a *App) Workers() int {
	return a.config.Workers
}

// Metrics returns the process metrics recorder.
func (a *App) Metrics() *metrics.Recorder {
	return a.metrics
}

// BaselineConfig returns the configured baseline store settings.
func (a *App) BaselineConfig() baseline.Config {
	driver, err := baseline.ParseDriver(a.config.StoreDriver)
	if err != nil {
		a.Logger().Warn().Str("driver", a.config.StoreDriver).Msg("Unknown store driver in config, using badger")
		driver = baseline.DriverBadger
	}
	return baseline.Config{Driver: driver, Path: a.config.StorePath}
}

// Shutdown flushes metrics to the configured textfile, if any.
func (a *App) Shutdown(_ context.Context) error {
	if a.config.MetricsFile == "" {
		return nil
	}
	if err := a.metrics.WriteTextfile(a.config.MetricsFile); err != nil {
		return err
	}
	a.Logger().Debug().Str("path", a.config.MetricsFile).Msg("Wrote metrics")
	return nil
}

// Option is a functional option for configuring the App.
type Option func(*App) error

// WithConfig sets a custom configuration.
func WithConfig(config *Config) Option {
	return func(a *App) error {
		a.config = config
		return nil
	}
}

// WithLogger sets a custom logger.
func WithLogger(logger *zerolog.Logger) Option {
	return func(a *App) error {
		a.logger = logger
		return nil
	}
}

// Ensure App implements application.Application at compile time.
var _ application.Application = (*App)(nil)
