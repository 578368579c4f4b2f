// Package cli provides the command-line interface for logmatrix.
package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/ccollicutt/logmatrix/internal/cli/commands"
	"github.com/ccollicutt/logmatrix/internal/cli/plugins"
)

// Execute runs the CLI against os.Args and returns the exit code.
// SIGINT and SIGTERM cancel the running extraction.
func Execute() int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return Run(ctx, os.Args[1:], os.Stdout, os.Stderr, plugins.DefaultFinder())
}

// Run executes args and returns the exit code. Commands that are neither
// built in nor help are dispatched to a plugin found by finder.
func Run(ctx context.Context, args []string, stdout, stderr io.Writer, finder *plugins.Finder) int {
	commands.ExitCode = commands.ExitOK
	rootCmd := NewRootCommand()
	rootCmd.SetArgs(args)
	rootCmd.SetOut(stdout)
	rootCmd.SetErr(stderr)

	potential := pluginCandidate(rootCmd, args)
	if potential != "" {
		if pluginPath, err := finder.Find(potential); err == nil {
			return plugins.Execute(ctx, pluginPath, args[1:], configFromArgs(args[1:]))
		}
	}

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		if potential != "" {
			_, _ = fmt.Fprintln(stderr, plugins.FormatNotFoundError(potential))
			return commands.ExitError
		}
		// SilenceErrors stops cobra from printing this itself.
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
		return commands.ExitError
	}
	return commands.ExitCode
}

// pluginCandidate returns the first argument when it names no built-in command.
func pluginCandidate(rootCmd *cobra.Command, args []string) string {
	if len(args) == 0 || args[0] == "" || args[0][0] == '-' {
		return ""
	}
	if isBuiltinCommand(rootCmd, args[0]) {
		return ""
	}
	return args[0]
}

// isBuiltinCommand checks if a command name is a built-in cobra command.
func isBuiltinCommand(rootCmd *cobra.Command, name string) bool {
	for _, cmd := range rootCmd.Commands() {
		if cmd.Name() == name || cmd.HasAlias(name) {
			return true
		}
	}
	return name == "help" || name == "completion"
}

// configFromArgs returns the value of a --config or -c flag, if any.
func configFromArgs(args []string) string {
	for i, a := range args {
		switch {
		case a == "--config" || a == "-c":
			if i+1 < len(args) {
				return args[i+1]
			}
		case strings.HasPrefix(a, "--config="):
			return strings.TrimPrefix(a, "--config=")
		}
	}
	return ""
}

// NewRootCommand creates the root cobra command.
func NewRootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "logmatrix",
		Short: "Extract traffic and bandwidth matrices from training logs",
		Long: `logmatrix turns the communication statistics a distributed training run
prints into its log into plain matrix files.

It extracts:
  - One traffic matrix per "Traffic Matrix (MB):" block, numbered by epoch
  - One symmetric device-to-device bandwidth matrix

Each matrix file holds one row per line with space-separated values.

PLUGINS:
  logmatrix supports plugins for extended functionality. Plugins are standalone
  binaries named logmatrix-<command> that are automatically discovered and invoked.

  Plugin locations (searched in order):
    1. Same directory as the logmatrix binary
    2. ~/.logmatrix/plugins/
    3. Anywhere in PATH

  Available plugins:
    heatmap  Render extracted matrices as PNG heatmaps`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(commands.NewExtractCommand())
	rootCmd.AddCommand(commands.NewDetectCommand())
	rootCmd.AddCommand(commands.NewDiagnoseCommand())
	rootCmd.AddCommand(commands.NewValidateCommand())
	rootCmd.AddCommand(commands.NewVersionCommand())

	return rootCmd
}
