package commands

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ccollicutt/logmatrix/pkg/config"
	"github.com/ccollicutt/logmatrix/pkg/extract"
	"github.com/ccollicutt/logmatrix/pkg/output"
	"github.com/ccollicutt/logmatrix/pkg/parser"
	"github.com/ccollicutt/logmatrix/pkg/pipeline"
	"github.com/ccollicutt/logmatrix/pkg/webhook"
)

// ExitCode is set by commands to indicate the result
var ExitCode = 0

// Exit codes.
const (
	ExitOK       = 0
	ExitDegraded = 1
	ExitError    = 2
)

// ExtractOptions holds command-line options for the extract command.
type ExtractOptions struct {
	ConfigFile   string
	InputFile    string
	OutputDir    string
	DeviceCount  int
	DevicePolicy string
	Strict       bool
	DryRun       bool
	Only         []string
	Output       string
	Verbose      bool
	Quiet        bool

	// Webhook options
	WebhookURL     string
	WebhookToken   string
	WebhookTrigger string
}

// NewExtractCommand creates the extract command.
func NewExtractCommand() *cobra.Command {
	opts := &ExtractOptions{}

	cmd := &cobra.Command{
		Use:   "extract <results-dir>...",
		Short: "Extract traffic and bandwidth matrices from a training log",
		Long: `Read <results-dir>/rank_0.log and write normalized matrix files.

Writes, into the results directory unless --output-dir is given:
  - traffic_matrix_epoch_<k>.log, one per "Traffic Matrix (MB):" block (k = 1..n)
  - bandwidth_matrix.log, the symmetric device-to-device bandwidth table

Results directories may be globs; they are processed one after another.

Exit codes:
  0 - All matrices written
  1 - Some records discarded or measurements dropped
  2 - Configuration or runtime error (missing input, write failure, strict mode)`,
		Example: `  logmatrix extract results/run1
  logmatrix extract --device-count 8 --only bandwidth 'results/*'
  logmatrix extract -c logmatrix.yaml -o json --dry-run results/run1`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExtract(cmd, args, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.ConfigFile, "config", "c", "", "Configuration file (defaults apply when omitted)")
	cmd.Flags().StringVar(&opts.InputFile, "input", "", "Log file name inside each results dir (default rank_0.log)")
	cmd.Flags().StringVar(&opts.OutputDir, "output-dir", "", "Directory for matrix files (relative paths resolve against each results dir)")
	cmd.Flags().IntVarP(&opts.DeviceCount, "device-count", "n", 0, "Bandwidth matrix size (default 10)")
	cmd.Flags().StringVar(&opts.DevicePolicy, "device-policy", "", "Out-of-range device handling (drop|reject)")
	cmd.Flags().BoolVar(&opts.Strict, "strict", false, "Abort on the first malformed record instead of discarding it")
	cmd.Flags().BoolVar(&opts.DryRun, "dry-run", false, "Extract and report without writing files")
	cmd.Flags().StringSliceVar(&opts.Only, "only", nil, "Extract only these matrix kinds (traffic|bandwidth)")
	cmd.Flags().StringVarP(&opts.Output, "output", "o", "text", "Report format (text|json)")
	cmd.Flags().BoolVarP(&opts.Verbose, "verbose", "v", false, "Show per-file details and debug diagnostics")
	cmd.Flags().BoolVarP(&opts.Quiet, "quiet", "q", false, "Summary only, no details")

	// Webhook flags
	cmd.Flags().StringVar(&opts.WebhookURL, "webhook-url", "", "Webhook endpoint URL")
	cmd.Flags().StringVar(&opts.WebhookToken, "webhook-token", "", "Bearer token for webhook auth")
	cmd.Flags().StringVar(&opts.WebhookTrigger, "webhook-trigger", "on_issues", "When to fire webhook (on_issues|always|never)")

	return cmd
}

func runExtract(cmd *cobra.Command, args []string, opts *ExtractOptions) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	logger := newLogger(cmd.ErrOrStderr(), opts.Verbose, opts.Quiet)

	cfg, err := config.Load(ctx, opts.ConfigFile)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if err := applyFlagOverrides(cmd, cfg, opts); err != nil {
		return err
	}

	kinds, err := parseKinds(opts.Only)
	if err != nil {
		return err
	}

	formatter, err := createFormatter(opts.Output, opts.Verbose, opts.Quiet)
	if err != nil {
		return err
	}

	dirs, err := parser.ExpandResultDirs(args)
	if err != nil {
		return fmt.Errorf("expanding results dirs: %w", err)
	}

	runner, err := pipeline.NewRunner(cfg,
		pipeline.WithLogger(logger),
		pipeline.WithDryRun(opts.DryRun),
		pipeline.WithKinds(kinds),
		pipeline.WithConfigFile(opts.ConfigFile))
	if err != nil {
		return fmt.Errorf("creating runner: %w", err)
	}

	result, err := runner.RunAll(ctx, dirs)
	if err != nil {
		return fmt.Errorf("extraction failed: %w", err)
	}

	report := output.NewReport(result)
	if err := formatter.Format(ctx, report, cmd.OutOrStdout()); err != nil {
		return fmt.Errorf("formatting output: %w", err)
	}

	// Webhook failures are logged but never change the exit code.
	webhook.NewNotifier(nil, collectWebhooks(cfg, opts), logger).Notify(ctx, report)

	ExitCode = exitCodeFor(report)
	return nil
}

// applyFlagOverrides applies explicitly set flags on top of file and
// environment configuration, then re-validates.
func applyFlagOverrides(cmd *cobra.Command, cfg *config.Config, opts *ExtractOptions) error {
	flags := cmd.Flags()
	if flags.Changed("input") {
		cfg.InputFile = opts.InputFile
	}
	if flags.Changed("output-dir") {
		cfg.OutputDir = opts.OutputDir
	}
	if flags.Changed("device-count") {
		cfg.DeviceCount = opts.DeviceCount
	}
	if flags.Changed("device-policy") {
		cfg.Bandwidth.DevicePolicy = opts.DevicePolicy
	}
	if flags.Changed("strict") {
		cfg.Strict = opts.Strict
	}

	if err := config.Validate(cfg); err != nil {
		return fmt.Errorf("invalid options: %w", err)
	}
	return nil
}

func parseKinds(only []string) ([]extract.Kind, error) {
	kinds := make([]extract.Kind, 0, len(only))
	for _, s := range only {
		k := extract.Kind(strings.ToLower(strings.TrimSpace(s)))
		switch k {
		case extract.KindTraffic, extract.KindBandwidth:
			kinds = append(kinds, k)
		default:
			return nil, fmt.Errorf("unknown matrix kind %q for --only (use traffic or bandwidth)", s)
		}
	}
	return kinds, nil
}

func createFormatter(format string, verbose, quiet bool) (output.Formatter, error) {
	formatOpts := output.FormatOptions{
		Verbose: verbose,
		Quiet:   quiet,
	}

	switch format {
	case "text":
		return output.NewTextFormatter(formatOpts), nil
	case "json":
		return output.NewJSONFormatter(formatOpts), nil
	default:
		return nil, fmt.Errorf("unknown output format %q (use text or json)", format)
	}
}

// collectWebhooks merges config file webhooks with the CLI webhook.
func collectWebhooks(cfg *config.Config, opts *ExtractOptions) []config.WebhookConfig {
	webhooks := make([]config.WebhookConfig, 0, len(cfg.Webhooks)+1)
	webhooks = append(webhooks, cfg.Webhooks...)

	if opts.WebhookURL != "" {
		trigger := config.WebhookTrigger(opts.WebhookTrigger)
		if trigger == "" {
			trigger = config.WebhookTriggerOnIssues
		}

		webhooks = append(webhooks, config.WebhookConfig{
			Name:    "cli",
			URL:     opts.WebhookURL,
			Token:   opts.WebhookToken,
			Trigger: trigger,
			Timeout: config.DefaultWebhookTimeout,
		})
	}

	return webhooks
}

func exitCodeFor(report *output.Report) int {
	switch {
	case report.HasFailures():
		return ExitError
	case report.HasIssues():
		return ExitDegraded
	default:
		return ExitOK
	}
}

// printf writes to w, ignoring errors like fmt.Printf does.
func printf(w io.Writer, format string, a ...any) {
	_, _ = fmt.Fprintf(w, format, a...)
}
