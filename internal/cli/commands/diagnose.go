package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/ccollicutt/logmatrix/pkg/config"
	"github.com/ccollicutt/logmatrix/pkg/detector"
	"github.com/ccollicutt/logmatrix/pkg/extract"
	"github.com/ccollicutt/logmatrix/pkg/matrixfile"
	"github.com/ccollicutt/logmatrix/pkg/parser"
	"github.com/ccollicutt/logmatrix/pkg/pipeline"
)

// DiagnoseOptions holds options for the diagnose command
type DiagnoseOptions struct {
	ConfigFile string
	Verbose    bool
}

// DiagnosticResult represents the result of a single diagnostic check
type DiagnosticResult struct {
	Check    string
	Status   string // "ok", "warning", "error"
	Message  string
	Details  []string
	Suggests []string
}

// NewDiagnoseCommand creates the diagnose command
func NewDiagnoseCommand() *cobra.Command {
	opts := &DiagnoseOptions{}

	cmd := &cobra.Command{
		Use:   "diagnose <results-dir>",
		Short: "Diagnose why a results directory extracts badly",
		Long: `Diagnose common extraction problems for one results directory.

This command checks:
- Config file syntax and structure
- Input log existence in the results directory
- Traffic marker and bandwidth pattern hits against the log
- Bandwidth device indices against device_count
- Output directory writability
- Webhook configuration

Example:
  logmatrix diagnose results/run1
  logmatrix diagnose -c logmatrix.yaml -v results/run1`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			return runDiagnose(ctx, cmd.OutOrStdout(), args[0], opts)
		},
	}

	cmd.Flags().StringVarP(&opts.ConfigFile, "config", "c", "", "Path to config file (defaults are used when omitted)")
	cmd.Flags().BoolVarP(&opts.Verbose, "verbose", "v", false, "Show detailed diagnostic output")

	return cmd
}

func runDiagnose(ctx context.Context, w io.Writer, dir string, opts *DiagnoseOptions) error {
	results := []DiagnosticResult{}

	cfg, result := checkConfig(ctx, opts.ConfigFile)
	results = append(results, result)
	if result.Status == "error" {
		printDiagnostics(w, results, opts)
		return nil
	}

	logPath := filepath.Join(dir, cfg.InputFile)
	result = checkInputLog(logPath)
	results = append(results, result)

	if result.Status != "error" {
		doc, err := parser.ReadDocument(ctx, logPath)
		if err != nil {
			results = append(results, DiagnosticResult{
				Check:   "Log Contents",
				Status:  "error",
				Message: fmt.Sprintf("Cannot read log: %v", err),
			})
		} else {
			results = append(results, checkLayouts(ctx, cfg, doc, opts)...)
		}
	}

	results = append(results, checkOutputDir(cfg, dir))
	results = append(results, checkWebhooks(cfg, opts)...)

	printDiagnostics(w, results, opts)
	return nil
}

func checkConfig(ctx context.Context, path string) (*config.Config, DiagnosticResult) {
	result := DiagnosticResult{
		Check: "Config",
	}

	if path != "" {
		info, err := os.Stat(path)
		switch {
		case os.IsNotExist(err):
			result.Status = "error"
			result.Message = fmt.Sprintf("Config file not found: %s", path)
			result.Suggests = []string{
				"Check the file path is correct",
				"Use 'logmatrix detect <log-file> --write-config logmatrix.yaml' to generate a starter config",
			}
			return nil, result
		case err != nil:
			result.Status = "error"
			result.Message = fmt.Sprintf("Cannot access config file: %v", err)
			result.Suggests = []string{"Check file permissions"}
			return nil, result
		case info.IsDir():
			result.Status = "error"
			result.Message = "Path is a directory, not a file"
			return nil, result
		}
	}

	cfg, err := config.Load(ctx, path)
	if err != nil {
		result.Status = "error"
		result.Message = fmt.Sprintf("Failed to load config: %v", err)
		if strings.Contains(err.Error(), "yaml") {
			result.Suggests = []string{
				"Check YAML syntax - ensure proper indentation (use spaces, not tabs)",
			}
		}
		return nil, result
	}

	result.Status = "ok"
	if path == "" {
		result.Message = "Using built-in defaults"
	} else {
		result.Message = fmt.Sprintf("Loaded %s", path)
	}
	result.Details = []string{
		fmt.Sprintf("Input file: %s", cfg.InputFile),
		fmt.Sprintf("Device count: %d", cfg.DeviceCount),
		fmt.Sprintf("Device policy: %s", cfg.Bandwidth.DevicePolicy),
	}
	return cfg, result
}

func checkInputLog(path string) DiagnosticResult {
	result := DiagnosticResult{
		Check: fmt.Sprintf("Input Log: %s", path),
	}

	info, err := os.Stat(path)
	switch {
	case os.IsNotExist(err):
		result.Status = "error"
		result.Message = "File does not exist"
		result.Suggests = []string{
			"Check the results directory path",
			"Set input_file in the config if the log has a different name",
		}
	case err != nil:
		result.Status = "error"
		result.Message = fmt.Sprintf("Cannot access file: %v", err)
		result.Suggests = []string{"Check file permissions"}
	case info.IsDir():
		result.Status = "error"
		result.Message = "Path is a directory, not a file"
	case info.Size() == 0:
		result.Status = "warning"
		result.Message = "File is empty (0 bytes)"
	default:
		result.Status = "ok"
		result.Message = fmt.Sprintf("File exists (%d bytes)", info.Size())
	}
	return result
}

// checkLayouts runs the configured marker and pattern against the log and,
// when either finds nothing, tries the built-in layouts for a hint.
func checkLayouts(ctx context.Context, cfg *config.Config, doc *parser.Document, opts *DiagnoseOptions) []DiagnosticResult {
	configured := detector.New(
		detector.WithTrafficFormats(&detector.TrafficFormat{
			Name:   "configured marker",
			Marker: cfg.Traffic.Marker,
		}),
		detector.WithBandwidthFormats(&detector.BandwidthFormat{
			Name:       "configured pattern",
			Pattern:    cfg.Bandwidth.CompiledPattern(),
			PatternStr: cfg.Bandwidth.Pattern,
		}),
	)

	found, err := configured.DetectFromDocument(ctx, doc)
	if err != nil {
		return []DiagnosticResult{{
			Check:   "Layouts",
			Status:  "error",
			Message: fmt.Sprintf("Scan failed: %v", err),
		}}
	}

	var fallback *detector.DetectionResult
	alternatives := func() *detector.DetectionResult {
		if fallback == nil {
			fallback, _ = detector.New().DetectFromDocument(ctx, doc)
		}
		return fallback
	}

	return []DiagnosticResult{
		trafficDiagnostic(cfg, found.BestTraffic(), alternatives),
		bandwidthDiagnostic(cfg, found.BestBandwidth(), alternatives, opts),
	}
}

func trafficDiagnostic(cfg *config.Config, m *detector.TrafficMatch, alternatives func() *detector.DetectionResult) DiagnosticResult {
	result := DiagnosticResult{
		Check: "Traffic Marker",
	}

	if m == nil {
		result.Status = "warning"
		result.Message = fmt.Sprintf("Marker %q matches no blocks", cfg.Traffic.Marker)
		if alt := alternatives(); alt != nil {
			if best := alt.BestTraffic(); best != nil {
				result.Suggests = append(result.Suggests,
					fmt.Sprintf("Detected marker: %q (%d blocks)", best.Format.Marker, best.Blocks))
			}
		}
		return result
	}

	for _, s := range m.Shapes {
		result.Details = append(result.Details, fmt.Sprintf("%dx%d: %d block(s)", s.Rows, s.Cols, s.Count))
	}

	if m.Discarded > 0 {
		result.Status = "warning"
		result.Message = fmt.Sprintf("%d block(s), %d would be discarded", m.Blocks, m.Discarded)
		if cfg.Strict {
			result.Suggests = []string{"strict is enabled, so the first discarded block fails the whole run"}
		}
		return result
	}

	result.Status = "ok"
	result.Message = fmt.Sprintf("%d block(s)", m.Blocks)
	return result
}

func bandwidthDiagnostic(cfg *config.Config, m *detector.BandwidthMatch, alternatives func() *detector.DetectionResult, opts *DiagnoseOptions) DiagnosticResult {
	result := DiagnosticResult{
		Check: "Bandwidth Pattern",
	}

	if m == nil {
		result.Status = "warning"
		result.Message = "Pattern matches no lines, an all-zero matrix will be written"
		if alt := alternatives(); alt != nil {
			if best := alt.BestBandwidth(); best != nil {
				result.Suggests = append(result.Suggests,
					fmt.Sprintf("Detected layout: %s (%d measurements)", best.Format.Name, best.Measurements),
					fmt.Sprintf("Suggested pattern: %s", best.Format.PatternStr))
			}
		}
		return result
	}

	if opts.Verbose {
		result.Details = append(result.Details, "Sample match:", truncate(m.SampleLine, 80))
	}

	if m.MaxDevice >= cfg.DeviceCount {
		result.Message = fmt.Sprintf("%d measurement(s), device %d exceeds device_count %d",
			m.Measurements, m.MaxDevice, cfg.DeviceCount)
		if n := m.SuggestedDeviceCount(); n <= extract.MaxDeviceCount {
			result.Suggests = []string{fmt.Sprintf("Set device_count to %d", n)}
		} else {
			result.Suggests = []string{fmt.Sprintf("Device %d is beyond the supported maximum of %d devices", m.MaxDevice, extract.MaxDeviceCount)}
		}
		if cfg.Bandwidth.DevicePolicy == string(extract.DevicePolicyReject) {
			result.Status = "error"
			result.Suggests = append(result.Suggests, "device_policy reject discards the whole bandwidth matrix")
		} else {
			result.Status = "warning"
		}
		return result
	}

	if m.Malformed > 0 {
		result.Status = "warning"
		result.Message = fmt.Sprintf("%d measurement(s), %d malformed", m.Measurements, m.Malformed)
		return result
	}

	result.Status = "ok"
	result.Message = fmt.Sprintf("%d measurement(s), highest device %d", m.Measurements, m.MaxDevice)
	return result
}

func checkOutputDir(cfg *config.Config, dir string) DiagnosticResult {
	result := DiagnosticResult{
		Check: "Output Directory",
	}

	runner, err := pipeline.NewRunner(cfg)
	if err != nil {
		result.Status = "error"
		result.Message = err.Error()
		return result
	}
	outDir := runner.OutputDir(dir)

	info, err := os.Stat(outDir)
	switch {
	case errors.Is(err, os.ErrNotExist):
		result.Status = "ok"
		result.Message = fmt.Sprintf("%s will be created", outDir)
		return result
	case err != nil:
		result.Status = "error"
		result.Message = fmt.Sprintf("Cannot access %s: %v", outDir, err)
		return result
	case !info.IsDir():
		result.Status = "error"
		result.Message = fmt.Sprintf("%s is not a directory", outDir)
		return result
	}

	probe, err := os.CreateTemp(outDir, ".logmatrix-probe-*")
	if err != nil {
		result.Status = "error"
		result.Message = fmt.Sprintf("%s is not writable: %v", outDir, err)
		result.Suggests = []string{"Check directory permissions or set output_dir"}
		return result
	}
	_ = probe.Close()
	_ = os.Remove(probe.Name())

	result.Status = "ok"
	result.Message = fmt.Sprintf("%s is writable", outDir)
	if n, highest := previousTrafficFiles(outDir); n > 0 {
		result.Message += fmt.Sprintf(" (%d traffic matrices from an earlier run, highest epoch %d)", n, highest)
	}
	return result
}

// previousTrafficFiles counts default-named traffic matrices already in dir.
// Epochs beyond the next run's block count are left in place by extract.
func previousTrafficFiles(dir string) (count, highest int) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0, 0
	}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if epoch, ok := matrixfile.TrafficEpoch(e.Name()); ok {
			count++
			highest = max(highest, epoch)
		}
	}
	return count, highest
}

func printDiagnostics(w io.Writer, results []DiagnosticResult, opts *DiagnoseOptions) {
	printf(w, "=== logmatrix Diagnostics ===\n\n")

	okCount := 0
	warnCount := 0
	errCount := 0

	for _, r := range results {
		var icon string
		switch r.Status {
		case "ok":
			icon = "PASS"
			okCount++
		case "warning":
			icon = "WARN"
			warnCount++
		case "error":
			icon = "FAIL"
			errCount++
		}

		printf(w, "[%s] %s\n", icon, r.Check)
		printf(w, "    %s\n", r.Message)

		if opts.Verbose || r.Status != "ok" {
			for _, d := range r.Details {
				printf(w, "      - %s\n", d)
			}
		}

		for _, s := range r.Suggests {
			printf(w, "      Hint: %s\n", s)
		}

		printf(w, "\n")
	}

	printf(w, "---\n")
	printf(w, "Summary: %d passed, %d warnings, %d errors\n", okCount, warnCount, errCount)

	switch {
	case errCount > 0:
		printf(w, "\nFix the errors above before extracting.\n")
	case warnCount > 0:
		printf(w, "\nExtraction will run but some output may be missing or incomplete.\n")
	default:
		printf(w, "\nEverything looks good!\n")
	}
}

func checkWebhooks(cfg *config.Config, opts *DiagnoseOptions) []DiagnosticResult {
	results := []DiagnosticResult{}

	if len(cfg.Webhooks) == 0 {
		if opts.Verbose {
			results = append(results, DiagnosticResult{
				Check:   "Webhooks",
				Status:  "ok",
				Message: "No webhooks configured (optional)",
			})
		}
		return results
	}

	for _, wh := range cfg.Webhooks {
		name := wh.Name
		if name == "" {
			name = wh.URL
		}

		result := DiagnosticResult{
			Check: fmt.Sprintf("Webhook: %s", name),
		}

		issues := []string{}
		warnings := []string{}

		if wh.URL == "" {
			issues = append(issues, "Missing url")
		} else {
			u, err := url.Parse(wh.URL)
			if err != nil {
				issues = append(issues, fmt.Sprintf("Invalid URL: %v", err))
			} else if u.Scheme != "http" && u.Scheme != "https" {
				issues = append(issues, fmt.Sprintf("URL scheme must be http or https, got %q", u.Scheme))
			} else if u.Host == "" {
				issues = append(issues, "URL must have a host")
			}
		}

		switch wh.Trigger {
		case "", config.WebhookTriggerOnIssues, config.WebhookTriggerAlways, config.WebhookTriggerNever:
		default:
			issues = append(issues, fmt.Sprintf("Invalid trigger %q (use on_issues, always, or never)", wh.Trigger))
		}

		// Tokens are expanded at load time, so a leftover "$" means the variable was unset.
		if strings.HasPrefix(wh.Token, "$") {
			warnings = append(warnings, fmt.Sprintf("Token appears to be an unresolved env var: %s", wh.Token))
		}

		switch {
		case len(issues) > 0:
			result.Status = "error"
			result.Message = fmt.Sprintf("%d configuration issue(s)", len(issues))
			result.Details = issues
		case len(warnings) > 0:
			result.Status = "warning"
			result.Message = fmt.Sprintf("%d warning(s)", len(warnings))
			result.Details = warnings
		default:
			result.Status = "ok"
			result.Message = fmt.Sprintf("Trigger: %s", wh.Trigger)
			if opts.Verbose {
				result.Details = []string{
					fmt.Sprintf("URL: %s", wh.URL),
					fmt.Sprintf("Timeout: %s", wh.Timeout),
				}
				if wh.Token != "" {
					result.Details = append(result.Details, "Token: configured")
				}
			}
		}

		results = append(results, result)
	}

	if opts.Verbose {
		for _, wh := range cfg.Webhooks {
			if wh.URL == "" {
				continue
			}

			name := wh.Name
			if name == "" {
				name = wh.URL
			}

			result := checkWebhookConnectivity(wh)
			result.Check = fmt.Sprintf("Webhook Connectivity: %s", name)
			results = append(results, result)
		}
	}

	return results
}

func checkWebhookConnectivity(wh config.WebhookConfig) DiagnosticResult {
	result := DiagnosticResult{}

	client := &http.Client{
		Timeout: 5 * time.Second,
	}

	req, err := http.NewRequest(http.MethodHead, wh.URL, nil)
	if err != nil {
		result.Status = "warning"
		result.Message = fmt.Sprintf("Cannot create request: %v", err)
		return result
	}

	if wh.Token != "" {
		req.Header.Set("Authorization", "Bearer "+wh.Token)
	}

	resp, err := client.Do(req)
	if err != nil {
		result.Status = "warning"
		result.Message = fmt.Sprintf("Cannot connect: %v", err)
		result.Suggests = []string{
			"Check if the webhook URL is correct",
			"Verify network connectivity",
		}
		return result
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 400 {
		result.Status = "ok"
		result.Message = fmt.Sprintf("Reachable (status %d)", resp.StatusCode)
	} else {
		result.Status = "warning"
		result.Message = fmt.Sprintf("Reachable but returned status %d", resp.StatusCode)
		result.Suggests = []string{
			"The endpoint may require POST method (will work during actual webhook send)",
			"Check authentication if using a token",
		}
	}

	return result
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}
