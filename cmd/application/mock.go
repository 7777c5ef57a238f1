package application

import (
	"github.com/rs/zerolog"

	"github.com/agentstation/tally/internal/baseline"
	"github.com/agentstation/tally/internal/metrics"
)

// Mock provides a mock implementation of Application for testing.
// Each method can be customized by setting the corresponding function field.
// If a function field is nil, the method returns a default value: a no-op
// logger, one worker, a fresh metrics recorder and an in-memory store.
type Mock struct {
	LoggerFunc         func() *zerolog.Logger
	OutputFormatFunc   func() string
	WorkersFunc        func() int
	MetricsFunc        func() *metrics.Recorder
	BaselineConfigFunc func() baseline.Config
	VersionFunc        func() string
	CommitFunc         func() string
	DateFunc           func() string
	BuiltByFunc        func() string

	recorder *metrics.Recorder
}

// Logger returns a logger using the mock function or a no-op logger.
func (m *Mock) Logger() *zerolog.Logger {
	if m.LoggerFunc != nil {
		return m.LoggerFunc()
	}
	logger := zerolog.Nop()
	return &logger
}

// OutputFormat returns the output format using the mock function or "json".
func (m *Mock) OutputFormat() string {
	if m.OutputFormatFunc != nil {
		return m.OutputFormatFunc()
	}
	return "json"
}

// Workers returns the worker count using the mock function or 1.
func (m *Mock) Workers() int {
	if m.WorkersFunc != nil {
		return m.WorkersFunc()
	}
	return 1
}

// Metrics returns a recorder using the mock function or a recorder owned
// by the mock.
func (m *Mock) Metrics() *metrics.Recorder {
	if m.MetricsFunc != nil {
		return m.MetricsFunc()
	}
	if m.recorder == nil {
		m.recorder = metrics.New()
	}
	return m.recorder
}

// BaselineConfig returns store settings using the mock function or an
// in-memory store.
func (m *Mock) BaselineConfig() baseline.Config {
	if m.BaselineConfigFunc != nil {
		return m.BaselineConfigFunc()
	}
	return baseline.Config{Driver: baseline.DriverMemory}
}

// Version returns the version using the mock function or "dev".
func (m *Mock) Version() string {
	if m.VersionFunc != nil {
		return m.VersionFunc()
	}
	return "dev"
}

// Commit returns the commit using the mock function or "unknown".
func (m *Mock) Commit() string {
	if m.CommitFunc != nil {
		return m.CommitFunc()
	}
	return "unknown"
}

// Date returns the build date using the mock function or "unknown".
func (m *Mock) Date() string {
	if m.DateFunc != nil {
		return m.DateFunc()
	}
	return "unknown"
}

// BuiltBy returns the builder using the mock function or "unknown".
func (m *Mock) BuiltBy() string {
	if m.BuiltByFunc != nil {
		return m.BuiltByFunc()
	}
	return "unknown"
}

var _ Application = (*Mock)(nil)
