package cli

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ccollicutt/logmatrix/internal/cli/commands"
	"github.com/ccollicutt/logmatrix/internal/cli/plugins"
)

const trainingLog = `Traffic Matrix (MB):
0 1
1 0
Bandwidth between GPU 0 and GPU 1: 2.5 GB/s
`

func emptyFinder(t *testing.T) *plugins.Finder {
	return &plugins.Finder{Dirs: []string{t.TempDir()}}
}

func run(t *testing.T, finder *plugins.Finder, args ...string) (int, string, string) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	code := Run(context.Background(), args, &stdout, &stderr, finder)
	return code, stdout.String(), stderr.String()
}

func TestNewRootCommand(t *testing.T) {
	root := NewRootCommand()

	if root.Use != "logmatrix" {
		t.Errorf("Unexpected Use: %s", root.Use)
	}
	for _, name := range []string{"extract", "detect", "diagnose", "validate", "version"} {
		if !isBuiltinCommand(root, name) {
			t.Errorf("Missing command: %s", name)
		}
	}
	if !isBuiltinCommand(root, "help") {
		t.Error("help should count as built in")
	}
	if isBuiltinCommand(root, "heatmap") {
		t.Error("heatmap is a plugin, not a built-in")
	}
}

func TestRun_Version(t *testing.T) {
	code, stdout, _ := run(t, emptyFinder(t), "version")
	if code != commands.ExitOK {
		t.Errorf("Expected exit code 0, got %d", code)
	}
	if !strings.HasPrefix(stdout, "logmatrix ") {
		t.Errorf("Unexpected version output: %q", stdout)
	}
}

func TestRun_Extract(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "rank_0.log"), []byte(trainingLog), 0644); err != nil {
		t.Fatal(err)
	}

	code, _, stderr := run(t, emptyFinder(t), "extract", "-q", "-n", "2", dir)
	if code != commands.ExitOK {
		t.Fatalf("Expected exit code 0, got %d: %s", code, stderr)
	}

	data, err := os.ReadFile(filepath.Join(dir, "bandwidth_matrix.log"))
	if err != nil {
		t.Fatalf("bandwidth matrix not written: %v", err)
	}
	if string(data) != "0.000 2.500\n2.500 0.000\n" {
		t.Errorf("Unexpected bandwidth matrix: %q", data)
	}
}

func TestRun_ExtractMissingInput(t *testing.T) {
	code, _, _ := run(t, emptyFinder(t), "extract", "-q", t.TempDir())
	if code != commands.ExitError {
		t.Errorf("Expected exit code %d, got %d", commands.ExitError, code)
	}
}

func TestRun_CommandError(t *testing.T) {
	code, _, stderr := run(t, emptyFinder(t), "validate", "/nonexistent/logmatrix.yaml")
	if code != commands.ExitError {
		t.Errorf("Expected exit code %d, got %d", commands.ExitError, code)
	}
	if !strings.HasPrefix(stderr, "Error: ") {
		t.Errorf("Expected error on stderr, got %q", stderr)
	}
}

func TestRun_UnknownCommand(t *testing.T) {
	code, _, stderr := run(t, emptyFinder(t), "heatmap", "results/run1")
	if code != commands.ExitError {
		t.Errorf("Expected exit code %d, got %d", commands.ExitError, code)
	}
	if !strings.Contains(stderr, "available as a plugin") {
		t.Errorf("Expected plugin hint, got %q", stderr)
	}
}

func TestRun_Plugin(t *testing.T) {
	dir := t.TempDir()
	out := filepath.Join(dir, "args")
	script := "#!/bin/sh\necho \"$LOGMATRIX_CONFIG $*\" > " + out + "\nexit 1\n"
	if err := os.WriteFile(filepath.Join(dir, plugins.Prefix+"heatmap"), []byte(script), 0755); err != nil {
		t.Fatal(err)
	}

	code, _, _ := run(t, &plugins.Finder{Dirs: []string{dir}}, "heatmap", "--config", "lm.yaml", "results/run1")
	if code != 1 {
		t.Errorf("Expected the plugin's exit code 1, got %d", code)
	}

	data, err := os.ReadFile(out)
	if err != nil {
		t.Fatalf("plugin did not run: %v", err)
	}
	if got := strings.TrimSpace(string(data)); got != "lm.yaml --config lm.yaml results/run1" {
		t.Errorf("Unexpected plugin args: %q", got)
	}
}

func TestConfigFromArgs(t *testing.T) {
	tests := []struct {
		args []string
		want string
	}{
		{nil, ""},
		{[]string{"-c", "a.yaml"}, "a.yaml"},
		{[]string{"x", "--config", "b.yaml"}, "b.yaml"},
		{[]string{"--config=c.yaml"}, "c.yaml"},
		{[]string{"--config"}, ""},
	}

	for _, tt := range tests {
		if got := configFromArgs(tt.args); got != tt.want {
			t.Errorf("configFromArgs(%v) = %q, want %q", tt.args, got, tt.want)
		}
	}
}
