package fingerprint

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/agentstation/tally/cmd/application"
	"github.com/agentstation/tally/pkg/constants"
)

const (
	bookA = `
sheets:
  - name: Summary
    cells:
      A1: Total
      B1: {value: 60, formula: "=SUM(Data!A1:A3)"}
  - name: Data
    cells:
      A1: 10
      A2: 20
      A3: 30
`
	// bookB holds the same content as bookA in a different order.
	bookB = `
sheets:
  - name: Summary
    index: 0
    cells:
      B1: {value: 60, formula: "=sum( Data!A1:A3 )"}
      A1: Total
  - name: Data
    index: 1
    cells:
      A3: 30
      A2: 20
      A1: 10
`
	volatileBook = `
sheets:
  - name: Sheet1
    cells:
      A1: {value: 45000, formula: "=NOW()"}
`
)

func writeFiles(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for name, content := range files {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	return dir
}

func execute(t *testing.T, app application.Application, args ...string) (string, error) {
	t.Helper()
	var out, stderr bytes.Buffer
	cmd := NewCommand(app)
	cmd.SilenceErrors = true
	cmd.SilenceUsage = true
	cmd.SetOut(&out)
	cmd.SetErr(&stderr)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestFingerprintOrderIndependent(t *testing.T) {
	dir := writeFiles(t, map[string]string{"a.yaml": bookA, "b.yaml": bookB})

	out, err := execute(t, &application.Mock{WorkersFunc: func() int { return 2 }},
		filepath.Join(dir, "a.yaml"), filepath.Join(dir, "b.yaml"))
	if err != nil {
		t.Fatalf("fingerprint failed: %v", err)
	}

	var entries []struct {
		File        string `json:"file"`
		Fingerprint string `json:"fingerprint"`
		Cells       int    `json:"cells"`
	}
	if err := json.Unmarshal([]byte(out), &entries); err != nil {
		t.Fatalf("output is not JSON: %v\n%s", err, out)
	}
	if len(entries) != 2 {
		t.Fatalf("got %d entries, want 2", len(entries))
	}
	if entries[0].Fingerprint != entries[1].Fingerprint {
		t.Errorf("fingerprints differ: %s vs %s", entries[0].Fingerprint, entries[1].Fingerprint)
	}
	if !strings.HasPrefix(entries[0].Fingerprint, "v2:5:") {
		t.Errorf("unexpected fingerprint %s", entries[0].Fingerprint)
	}
	if !strings.HasSuffix(entries[0].File, "a.yaml") {
		t.Errorf("entries out of input order: %s", entries[0].File)
	}

	// The printed fingerprint verifies.
	if _, err := execute(t, &application.Mock{}, filepath.Join(dir, "b.yaml"), "--expect", entries[0].Fingerprint); err != nil {
		t.Errorf("--expect with own fingerprint failed: %v", err)
	}
}

func TestFingerprintMismatch(t *testing.T) {
	dir := writeFiles(t, map[string]string{"a.yaml": bookA})

	_, err := execute(t, &application.Mock{}, filepath.Join(dir, "a.yaml"),
		"--expect", "v2:5:00000000000000000000000000000000")
	if code := application.ExitCode(err); code != constants.ExitPolicyFail {
		t.Errorf("exit code = %d, want %d (err %v)", code, constants.ExitPolicyFail, err)
	}
}

func TestFingerprintVolatileWarning(t *testing.T) {
	dir := writeFiles(t, map[string]string{"v.yaml": volatileBook})
	app := &application.Mock{OutputFormatFunc: func() string { return "table" }}

	out, err := execute(t, app, filepath.Join(dir, "v.yaml"))
	if err != nil {
		t.Fatalf("fingerprint failed: %v", err)
	}
	if !strings.Contains(out, "calls volatile NOW") {
		t.Errorf("missing volatile warning:\n%s", out)
	}
}

func TestFingerprintErrors(t *testing.T) {
	dir := writeFiles(t, map[string]string{"a.yaml": bookA, "bad.yaml": "sheets: [\n"})
	a := filepath.Join(dir, "a.yaml")

	tests := []struct {
		name   string
		format string
		args   []string
		code   int
	}{
		{"no trees", "json", nil, constants.ExitUsage},
		{"malformed expect", "json", []string{a, "--expect", "nonsense"}, constants.ExitUsage},
		{"expect with two trees", "json", []string{a, a, "--expect", "v2:5:00"}, constants.ExitUsage},
		{"unsupported format", "csv", []string{a}, constants.ExitUsage},
		{"missing tree", "json", []string{filepath.Join(dir, "nope.yaml")}, constants.ExitParse},
		{"malformed tree", "json", []string{filepath.Join(dir, "bad.yaml")}, constants.ExitParse},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			app := &application.Mock{OutputFormatFunc: func() string { return tt.format }}
			_, err := execute(t, app, tt.args...)
			if code := application.ExitCode(err); code != tt.code {
				t.Errorf("exit code = %d, want %d (err %v)", code, tt.code, err)
			}
		})
	}
}
