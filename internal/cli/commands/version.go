package commands

import (
	"github.com/spf13/cobra"
)

// Version is set via ldflags at build time.
var Version = "dev"

// NewVersionCommand creates the version command.
func NewVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Long:  "Print the version of logmatrix.",
		Run: func(cmd *cobra.Command, args []string) {
			printf(cmd.OutOrStdout(), "logmatrix %s\n", Version)
		},
	}
}
