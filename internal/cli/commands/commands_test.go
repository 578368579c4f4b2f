package commands

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const trainingLog = `Epoch 1 starting
Traffic Matrix (MB):
0 1.5 2.0
1.5 0 3.25
2.0 3.25 0
Bandwidth between GPU 0 and GPU 1: 12.5 GB/s
Bandwidth between GPU 1 and GPU 2: 8.0 GB/s
Epoch 2 starting
Traffic Matrix (MB):
0 4
4 0
Bandwidth between GPU 0 and GPU 1: 13.0 GB/s
done
`

// writeResultsDir creates a results directory holding rank_0.log.
func writeResultsDir(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "rank_0.log"), []byte(content), 0644); err != nil {
		t.Fatalf("Failed to create log: %v", err)
	}
	return dir
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "logmatrix.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to create config: %v", err)
	}
	return path
}

func TestNewValidateCommand(t *testing.T) {
	cmd := NewValidateCommand()

	if cmd.Use != "validate <config-file>" {
		t.Errorf("Unexpected Use: %s", cmd.Use)
	}

	if !strings.Contains(cmd.Long, "Validate") {
		t.Error("Missing description in Long")
	}
}

func TestNewVersionCommand(t *testing.T) {
	cmd := NewVersionCommand()

	if cmd.Use != "version" {
		t.Errorf("Unexpected Use: %s", cmd.Use)
	}

	var buf bytes.Buffer
	cmd.SetOut(&buf)
	cmd.SetArgs([]string{})
	if err := cmd.ExecuteContext(context.Background()); err != nil {
		t.Fatalf("version failed: %v", err)
	}
	if got := buf.String(); got != "logmatrix dev\n" {
		t.Errorf("Unexpected version output: %q", got)
	}
}

func TestRunValidate_Success(t *testing.T) {
	configPath := writeConfig(t, `device_count: 8
traffic:
  precision: 2
bandwidth:
  device_policy: reject
webhooks:
  - name: slack
    url: https://hooks.example.com/x
`)

	cmd := NewValidateCommand()
	cmd.SetArgs([]string{configPath})

	var buf bytes.Buffer
	cmd.SetOut(&buf)

	if err := cmd.ExecuteContext(context.Background()); err != nil {
		t.Fatalf("Validate failed: %v", err)
	}

	output := buf.String()
	checks := []string{
		"Configuration valid!",
		"Device count:  8",
		"precision:     2 decimals",
		"precision:     3 decimals",
		"device policy: reject",
		"file template: traffic_matrix_epoch_%d.log",
		"1. slack (trigger: on_issues)",
	}
	for _, check := range checks {
		if !strings.Contains(output, check) {
			t.Errorf("Output missing %q:\n%s", check, output)
		}
	}
}

func TestRunValidate_InvalidConfig(t *testing.T) {
	configPath := writeConfig(t, "invalid: yaml: content")

	cmd := NewValidateCommand()
	cmd.SetArgs([]string{configPath})
	cmd.SetOut(&bytes.Buffer{})

	if err := cmd.ExecuteContext(context.Background()); err == nil {
		t.Error("Expected error for invalid config")
	}
}

func TestRunValidate_BadPattern(t *testing.T) {
	configPath := writeConfig(t, `bandwidth:
  pattern: 'GPU (\d+) to GPU (\d+)'
`)

	cmd := NewValidateCommand()
	cmd.SetArgs([]string{configPath})
	cmd.SetOut(&bytes.Buffer{})

	err := cmd.ExecuteContext(context.Background())
	if err == nil {
		t.Fatal("Expected error for pattern with two groups")
	}
	if !strings.Contains(err.Error(), "capture groups") {
		t.Errorf("Expected capture group error, got: %v", err)
	}
}

func TestRunValidate_MissingFile(t *testing.T) {
	cmd := NewValidateCommand()
	cmd.SetArgs([]string{"/nonexistent/config.yaml"})
	cmd.SetOut(&bytes.Buffer{})

	if err := cmd.ExecuteContext(context.Background()); err == nil {
		t.Error("Expected error for missing file")
	}
}

func TestDescribePrecision(t *testing.T) {
	if got := describePrecision(-1); got != "verbatim" {
		t.Errorf("describePrecision(-1) = %q", got)
	}
	if got := describePrecision(4); got != "4 decimals" {
		t.Errorf("describePrecision(4) = %q", got)
	}
}
