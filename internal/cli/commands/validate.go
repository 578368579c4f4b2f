package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ccollicutt/logmatrix/pkg/config"
)

// NewValidateCommand creates the validate command.
func NewValidateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "validate <config-file>",
		Short: "Validate a configuration file",
		Long: `Validate a logmatrix configuration file without extracting anything.

Checks:
  - YAML syntax
  - device_count and precision ranges
  - Bandwidth pattern validity (exactly 3 capture groups)
  - Traffic file template (exactly one %d)
  - Device policy and webhook settings`,
		Args: cobra.ExactArgs(1),
		RunE: runValidate,
	}
}

func runValidate(cmd *cobra.Command, args []string) error {
	configPath := args[0]
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	w := cmd.OutOrStdout()

	printf(w, "Validating %s...\n", configPath)

	cfg, err := config.Load(ctx, configPath)
	if err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	outputDir := cfg.OutputDir
	if outputDir == "" {
		outputDir = "(results dir)"
	}

	printf(w, "\nConfiguration valid!\n")
	printf(w, "  Input file:    %s\n", cfg.InputFile)
	printf(w, "  Output dir:    %s\n", outputDir)
	printf(w, "  Device count:  %d\n", cfg.DeviceCount)
	printf(w, "  Strict:        %t\n", cfg.Strict)

	printf(w, "\nTraffic:\n")
	printf(w, "  marker:        %q\n", cfg.Traffic.Marker)
	printf(w, "  precision:     %s\n", describePrecision(cfg.TrafficPrecision()))
	printf(w, "  file template: %s\n", cfg.Traffic.FileTemplate)

	printf(w, "\nBandwidth:\n")
	printf(w, "  pattern:       %s\n", cfg.Bandwidth.Pattern)
	printf(w, "  precision:     %s\n", describePrecision(cfg.BandwidthPrecision()))
	printf(w, "  device policy: %s\n", cfg.Bandwidth.DevicePolicy)
	printf(w, "  file name:     %s\n", cfg.Bandwidth.FileName)

	if len(cfg.Webhooks) > 0 {
		printf(w, "\nWebhooks: %d\n", len(cfg.Webhooks))
		for i, wh := range cfg.Webhooks {
			name := wh.Name
			if name == "" {
				name = wh.URL
			}
			printf(w, "  %d. %s (trigger: %s)\n", i+1, name, wh.Trigger)
		}
	}

	return nil
}

func describePrecision(p int) string {
	if p < 0 {
		return "verbatim"
	}
	return fmt.Sprintf("%d decimals", p)
}
