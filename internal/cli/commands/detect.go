package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/ccollicutt/logmatrix/pkg/detector"
)

// DetectOptions holds command-line options for the detect command.
type DetectOptions struct {
	Output      string
	ShowAll     bool
	WriteConfig string
}

// NewDetectCommand creates the detect command.
func NewDetectCommand() *cobra.Command {
	opts := &DetectOptions{}

	cmd := &cobra.Command{
		Use:   "detect <log-file>",
		Short: "Detect traffic and bandwidth layouts in a training log",
		Long: `Scan a training log for known traffic matrix markers and bandwidth
measurement layouts.

Reports the number and shapes of traffic blocks, the number of bandwidth
measurements, the highest device index seen, a suggested device_count and
the device pairs that were never measured.

Optionally generates a starter config file with --write-config.

Example:
  logmatrix detect results/run1/rank_0.log
  logmatrix detect --all -o json results/run1/rank_0.log
  logmatrix detect -w logmatrix.yaml results/run1/rank_0.log`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDetect(cmd, args, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.Output, "output", "o", "text", "Output format (text|json)")
	cmd.Flags().BoolVar(&opts.ShowAll, "all", false, "Show all detected layouts, not just the best match")
	cmd.Flags().StringVarP(&opts.WriteConfig, "write-config", "w", "", "Write starter config to file (will not overwrite)")

	return cmd
}

func runDetect(cmd *cobra.Command, args []string, opts *DetectOptions) error {
	logFile := args[0]
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	out := cmd.OutOrStdout()

	result, err := detector.New().DetectFromFile(ctx, logFile)
	if err != nil {
		return fmt.Errorf("detection failed: %w", err)
	}

	if opts.WriteConfig != "" {
		if err := writeStarterConfig(out, result, logFile, opts.WriteConfig); err != nil {
			return err
		}
	}

	switch opts.Output {
	case "json":
		return outputDetectJSON(out, result, logFile, opts)
	case "text":
		return outputDetectText(out, result, logFile, opts)
	default:
		return fmt.Errorf("unknown output format %q (use text or json)", opts.Output)
	}
}

func outputDetectText(w io.Writer, result *detector.DetectionResult, logFile string, opts *DetectOptions) error {
	printf(w, "=== Log Layout Detection ===\n\n")
	printf(w, "File: %s\n", logFile)
	printf(w, "Lines scanned: %d\n\n", result.LinesScanned)

	if !result.HasMatch() {
		printf(w, "No traffic matrices or bandwidth measurements detected.\n\n")
		printf(w, "Tip: the log may use a custom marker or measurement format.\n")
		printf(w, "Set traffic.marker and bandwidth.pattern in a config file.\n")
		return nil
	}

	if best := result.BestTraffic(); best != nil {
		printf(w, "Traffic marker: %s\n", best.Format.Name)
		printf(w, "  marker: %q (first at line %d)\n", best.Format.Marker, best.FirstLine)
		printf(w, "  blocks: %d", best.Blocks)
		if best.Discarded > 0 {
			printf(w, " (+%d that would be discarded)", best.Discarded)
		}
		printf(w, "\n")
		for _, s := range best.Shapes {
			printf(w, "  - %dx%d: %d block(s)\n", s.Rows, s.Cols, s.Count)
		}
	} else {
		printf(w, "Traffic marker: none detected\n")
	}
	printf(w, "\n")

	if best := result.BestBandwidth(); best != nil {
		printf(w, "Bandwidth layout: %s\n", best.Format.Name)
		printf(w, "  measurements: %d", best.Measurements)
		if best.Malformed > 0 {
			printf(w, " (+%d malformed)", best.Malformed)
		}
		printf(w, "\n")
		printf(w, "  highest device: %d\n", best.MaxDevice)
		printf(w, "  suggested device_count: %d\n", best.SuggestedDeviceCount())
		printf(w, "  sample: %s\n", best.SampleLine)
		if cov := result.Coverage; cov != nil {
			switch {
			case cov.Truncated:
				printf(w, "  coverage: %d pairs measured (too many devices to list gaps)\n", cov.Measured)
			case len(cov.Unmeasured) == 0:
				printf(w, "  coverage: every device pair measured\n")
			default:
				printf(w, "  coverage: %d pairs measured, %d unmeasured:\n", cov.Measured, len(cov.Unmeasured))
				for _, p := range cov.Unmeasured {
					printf(w, "  - GPU %d and GPU %d\n", p[0], p[1])
				}
			}
		}
	} else {
		printf(w, "Bandwidth layout: none detected\n")
	}
	printf(w, "\n")

	if opts.ShowAll && (len(result.Traffic) > 1 || len(result.Bandwidth) > 1) {
		printf(w, "--- Alternative layouts detected ---\n")
		for _, m := range result.Traffic[min(1, len(result.Traffic)):] {
			printf(w, "traffic:   %s (%d blocks)\n", m.Format.Name, m.Blocks)
		}
		for _, m := range result.Bandwidth[min(1, len(result.Bandwidth)):] {
			printf(w, "bandwidth: %s (%d measurements)\n", m.Format.Name, m.Measurements)
			printf(w, "  pattern: '%s'\n", m.Format.PatternStr)
		}
		printf(w, "\n")
	}

	return nil
}

// JSONTraffic represents a traffic marker match in JSON output.
type JSONTraffic struct {
	Name      string           `json:"name"`
	Marker    string           `json:"marker"`
	Blocks    int              `json:"blocks"`
	Discarded int              `json:"discarded,omitempty"`
	FirstLine int              `json:"first_line"`
	Shapes    []detector.Shape `json:"shapes"`
}

// JSONBandwidth represents a bandwidth layout match in JSON output.
type JSONBandwidth struct {
	Name                 string `json:"name"`
	Pattern              string `json:"pattern"`
	Unit                 string `json:"unit"`
	Measurements         int    `json:"measurements"`
	Malformed            int    `json:"malformed,omitempty"`
	MaxDevice            int    `json:"max_device"`
	SuggestedDeviceCount int    `json:"suggested_device_count"`
	SampleLine           string `json:"sample_line"`
}

// JSONOutput represents the full JSON output.
type JSONOutput struct {
	File         string             `json:"file"`
	LinesScanned int                `json:"lines_scanned"`
	Traffic      []JSONTraffic      `json:"traffic"`
	Bandwidth    []JSONBandwidth    `json:"bandwidth"`
	Coverage     *detector.Coverage `json:"coverage,omitempty"`
}

func outputDetectJSON(w io.Writer, result *detector.DetectionResult, logFile string, opts *DetectOptions) error {
	out := JSONOutput{
		File:         logFile,
		LinesScanned: result.LinesScanned,
		Traffic:      make([]JSONTraffic, 0),
		Bandwidth:    make([]JSONBandwidth, 0),
		Coverage:     result.Coverage,
	}

	traffic, bandwidth := result.Traffic, result.Bandwidth
	if !opts.ShowAll {
		traffic = traffic[:min(1, len(traffic))]
		bandwidth = bandwidth[:min(1, len(bandwidth))]
	}

	for _, m := range traffic {
		out.Traffic = append(out.Traffic, JSONTraffic{
			Name:      m.Format.Name,
			Marker:    m.Format.Marker,
			Blocks:    m.Blocks,
			Discarded: m.Discarded,
			FirstLine: m.FirstLine,
			Shapes:    m.Shapes,
		})
	}
	for i := range bandwidth {
		m := &bandwidth[i]
		out.Bandwidth = append(out.Bandwidth, JSONBandwidth{
			Name:                 m.Format.Name,
			Pattern:              m.Format.PatternStr,
			Unit:                 m.Format.Unit,
			Measurements:         m.Measurements,
			Malformed:            m.Malformed,
			MaxDevice:            m.MaxDevice,
			SuggestedDeviceCount: m.SuggestedDeviceCount(),
			SampleLine:           m.SampleLine,
		})
	}

	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(out)
}

// writeStarterConfig generates a starter config file from the detected layouts.
func writeStarterConfig(w io.Writer, result *detector.DetectionResult, logFile, configPath string) error {
	if _, err := os.Stat(configPath); err == nil {
		return fmt.Errorf("config file already exists: %s (will not overwrite)", configPath)
	}

	data, err := detector.GenerateConfig(result, logFile)
	if err != nil {
		return err
	}

	// #nosec G306 - config file doesn't need restrictive permissions
	if err := os.WriteFile(configPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	printf(w, "Wrote starter config to: %s\n\n", configPath)
	return nil
}
