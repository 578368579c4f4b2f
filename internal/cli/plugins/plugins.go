// Package plugins runs external logmatrix-<command> binaries for commands
// the CLI does not provide itself, the way kubectl and git do.
package plugins

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// Prefix is prepended to a command name to form the plugin binary name.
const Prefix = "logmatrix-"

// EnvConfig is exported to plugins so they can share the caller's config file.
const EnvConfig = "LOGMATRIX_CONFIG"

// KnownPlugins lists plugins that have official implementations available.
var KnownPlugins = map[string]string{
	"heatmap": "Renders extracted traffic and bandwidth matrices as PNG heatmaps.",
}

// ErrPluginNotFound is returned when no plugin binary can be located.
var ErrPluginNotFound = errors.New("plugin not found")

// Finder locates plugin binaries.
type Finder struct {
	// Dirs are searched in order before PATH.
	Dirs []string
	// UsePath enables the final PATH lookup.
	UsePath bool
}

// DefaultFinder searches next to the logmatrix binary, then
// ~/.logmatrix/plugins, then PATH.
func DefaultFinder() *Finder {
	f := &Finder{UsePath: true}
	if execPath, err := os.Executable(); err == nil {
		f.Dirs = append(f.Dirs, filepath.Dir(execPath))
	}
	if homeDir, err := os.UserHomeDir(); err == nil {
		f.Dirs = append(f.Dirs, filepath.Join(homeDir, ".logmatrix", "plugins"))
	}
	return f
}

// Find returns the full path to the plugin binary for command.
func (f *Finder) Find(command string) (string, error) {
	if command == "" || strings.ContainsAny(command, `/\`) {
		return "", ErrPluginNotFound
	}
	name := Prefix + command

	for _, dir := range f.Dirs {
		candidate := filepath.Join(dir, name)
		if isExecutable(candidate) {
			return candidate, nil
		}
	}

	if f.UsePath {
		if path, err := exec.LookPath(name); err == nil {
			return path, nil
		}
	}

	return "", ErrPluginNotFound
}

// FindPlugin searches the default locations for command's plugin.
func FindPlugin(command string) (string, error) {
	return DefaultFinder().Find(command)
}

// Execute runs a plugin with the caller's stdio and returns its exit code.
// configFile, when set, is passed through EnvConfig.
func Execute(ctx context.Context, pluginPath string, args []string, configFile string) int {
	cmd := exec.CommandContext(ctx, pluginPath, args...)
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	cmd.Env = os.Environ()
	if configFile != "" {
		cmd.Env = append(cmd.Env, EnvConfig+"="+configFile)
	}

	if err := cmd.Run(); err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return exitErr.ExitCode()
		}
		fmt.Fprintf(os.Stderr, "Error executing plugin: %v\n", err)
		return 1
	}
	return 0
}

// FormatNotFoundError explains where a missing plugin binary would be found.
func FormatNotFoundError(command string) string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "unknown command %q for \"logmatrix\"\n", command)

	if info, ok := KnownPlugins[command]; ok {
		fmt.Fprintf(&sb, "\n%q is available as a plugin.\n", command)
		sb.WriteString(info)
		sb.WriteString("\n\nInstall the plugin binary as one of:\n")
	} else {
		sb.WriteString("\nIf this is a plugin, install the binary as one of:\n")
	}

	name := Prefix + command
	fmt.Fprintf(&sb, "  - %s in the same directory as logmatrix\n", name)
	fmt.Fprintf(&sb, "  - ~/.logmatrix/plugins/%s\n", name)
	fmt.Fprintf(&sb, "  - %s anywhere in your PATH\n", name)

	sb.WriteString("\nRun 'logmatrix --help' for usage.")

	return sb.String()
}

// isExecutable reports whether path is a regular file with an execute bit.
func isExecutable(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return info.Mode().IsRegular() && info.Mode()&0111 != 0
}
