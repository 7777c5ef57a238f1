package app

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"github.com/agentstation/tally/cmd/application"
	"github.com/agentstation/tally/internal/baseline"
	"github.com/agentstation/tally/pkg/constants"
)

func newTestApp(t *testing.T, cfg *Config) *App {
	t.Helper()
	logger := zerolog.Nop()
	if cfg == nil {
		cfg = &Config{Workers: 1, LogFormat: "json", LogOutput: "stderr", StoreDriver: "memory"}
	}
	app, err := New("1.0.0", "abc123", "2024-01-01", "test", WithConfig(cfg), WithLogger(&logger))
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}
	return app
}

// run executes the root command with output captured.
func run(t *testing.T, app *App, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	root := app.createRootCommand()
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

// TestApp_New verifies app initialization.
func TestApp_New(t *testing.T) {
	app := newTestApp(t, nil)

	if app.Version() != "1.0.0" {
		t.Errorf("Version() = %s, want 1.0.0", app.Version())
	}
	if app.Commit() != "abc123" {
		t.Errorf("Commit() = %s, want abc123", app.Commit())
	}
	if app.Date() != "2024-01-01" {
		t.Errorf("Date() = %s, want 2024-01-01", app.Date())
	}
	if app.BuiltBy() != "test" {
		t.Errorf("BuiltBy() = %s, want test", app.BuiltBy())
	}
	if app.Logger() == nil {
		t.Error("Logger() returned nil")
	}
	if app.Config() == nil {
		t.Error("Config() returned nil")
	}
	if app.Metrics() == nil {
		t.Error("Metrics() returned nil")
	}
	if app.Workers() != 1 {
		t.Errorf("Workers() = %d, want 1", app.Workers())
	}
}

// TestApp_BaselineConfig verifies driver parsing and the badger fallback.
func TestApp_BaselineConfig(t *testing.T) {
	app := newTestApp(t, &Config{Workers: 1, StoreDriver: "SQLite", StorePath: "/tmp/b.db"})
	cfg := app.BaselineConfig()
	if cfg.Driver != baseline.DriverSQLite || cfg.Path != "/tmp/b.db" {
		t.Errorf("BaselineConfig() = %+v", cfg)
	}

	app = newTestApp(t, &Config{Workers: 1, StoreDriver: "postgres"})
	if got := app.BaselineConfig().Driver; got != baseline.DriverBadger {
		t.Errorf("unknown driver fell back to %s, want badger", got)
	}
}

// TestApp_Execute runs commands through the root command.
func TestApp_Execute(t *testing.T) {
	app := newTestApp(t, nil)

	out, err := run(t, app, "version", "-o", "json")
	if err != nil {
		t.Fatalf("version failed: %v", err)
	}
	if !strings.Contains(out, `"version": "1.0.0"`) {
		t.Errorf("unexpected version output:\n%s", out)
	}
	if app.OutputFormat() != "json" {
		t.Errorf("OutputFormat() = %s, want json", app.OutputFormat())
	}
}

// TestApp_UsageErrors verifies usage problems exit with the usage code.
func TestApp_UsageErrors(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{"unknown flag", []string{"version", "--bogus"}},
		{"zero workers", []string{"version", "--workers", "0"}},
		{"extra argument", []string{"version", "extra"}},
		{"diff without files", []string{"diff", "--key", "id"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := run(t, newTestApp(t, nil), tt.args...)
			if code := application.ExitCode(err); code != constants.ExitUsage {
				t.Errorf("exit code = %d, want %d (err %v)", code, constants.ExitUsage, err)
			}
		})
	}
}

// TestApp_Shutdown verifies metrics are written to the configured textfile.
func TestApp_Shutdown(t *testing.T) {
	dir := t.TempDir()
	left := filepath.Join(dir, "left.csv")
	right := filepath.Join(dir, "right.csv")
	for _, path := range []string{left, right} {
		if err := os.WriteFile(path, []byte("id,amount\n1,10\n"), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	metricsFile := filepath.Join(dir, "tally.prom")
	app := newTestApp(t, &Config{Workers: 1, Format: "json", MetricsFile: metricsFile})

	if _, err := run(t, app, "diff", left, right, "--key", "id"); err != nil {
		t.Fatalf("diff failed: %v", err)
	}
	if err := app.Shutdown(context.Background()); err != nil {
		t.Fatalf("Shutdown() failed: %v", err)
	}

	data, err := os.ReadFile(metricsFile)
	if err != nil {
		t.Fatalf("metrics file not written: %v", err)
	}
	for _, want := range []string{`tally_runs_total{command="diff"`, `tally_groups_total{bucket="matched"} 1`} {
		if !strings.Contains(string(data), want) {
			t.Errorf("metrics missing %q:\n%s", want, data)
		}
	}
}

// TestApp_ShutdownWithoutMetricsFile verifies Shutdown is a no-op by default.
func TestApp_ShutdownWithoutMetricsFile(t *testing.T) {
	if err := newTestApp(t, nil).Shutdown(context.Background()); err != nil {
		t.Errorf("Shutdown() = %v, want nil", err)
	}
}
