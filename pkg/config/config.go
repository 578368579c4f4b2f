package config

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/ccollicutt/logmatrix/pkg/extract"
	"github.com/ccollicutt/logmatrix/pkg/matrixfile"
)

// Load reads and validates a configuration file. An empty path yields the
// defaults with environment overrides applied.
func Load(_ context.Context, path string) (*Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path) // #nosec G304 -- user-provided config path is expected
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	cfg.applyEnvironmentOverrides()

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// Validate checks a configuration for errors and compiles regex patterns.
func Validate(cfg *Config) error {
	if cfg.InputFile == "" {
		return errors.New("input_file is required")
	}
	if strings.ContainsAny(cfg.InputFile, `/\`) {
		return fmt.Errorf("input_file %q must be a file name, not a path", cfg.InputFile)
	}

	if cfg.DeviceCount <= 0 || cfg.DeviceCount > extract.MaxDeviceCount {
		return fmt.Errorf("device_count must be between 1 and %d, got %d", extract.MaxDeviceCount, cfg.DeviceCount)
	}

	if err := validateTraffic(&cfg.Traffic); err != nil {
		return fmt.Errorf("traffic: %w", err)
	}

	if err := validateBandwidth(&cfg.Bandwidth); err != nil {
		return fmt.Errorf("bandwidth: %w", err)
	}

	// Webhooks are optional, but validate if present
	for i := range cfg.Webhooks {
		if err := validateWebhook(&cfg.Webhooks[i]); err != nil {
			name := cfg.Webhooks[i].Name
			if name == "" {
				name = cfg.Webhooks[i].URL
			}
			return fmt.Errorf("webhooks[%d] (%s): %w", i, name, err)
		}
	}

	return nil
}

func validateTraffic(tc *TrafficConfig) error {
	if strings.TrimSpace(tc.Marker) == "" {
		return errors.New("marker is required")
	}

	if err := validatePrecision(tc.Precision); err != nil {
		return err
	}

	if tc.FileTemplate == "" {
		tc.FileTemplate = matrixfile.DefaultTrafficTemplate
	}
	if err := matrixfile.ValidateTemplate(tc.FileTemplate); err != nil {
		return fmt.Errorf("file_template: %w", err)
	}

	return nil
}

func validateBandwidth(bc *BandwidthConfig) error {
	if bc.Pattern == "" {
		return errors.New("pattern is required")
	}

	re, err := regexp.Compile(bc.Pattern)
	if err != nil {
		return fmt.Errorf("invalid pattern: %w", err)
	}

	if re.NumSubexp() != 3 {
		return fmt.Errorf("pattern must have exactly 3 capture groups (source, destination, value), got %d", re.NumSubexp())
	}
	bc.compiledPattern = re

	if err := validatePrecision(bc.Precision); err != nil {
		return err
	}

	switch extract.DevicePolicy(bc.DevicePolicy) {
	case extract.DevicePolicyDrop, extract.DevicePolicyReject:
	case "":
		bc.DevicePolicy = DefaultDevicePolicy
	default:
		return fmt.Errorf("invalid device_policy %q (must be drop or reject)", bc.DevicePolicy)
	}

	if bc.FileName == "" {
		bc.FileName = matrixfile.DefaultBandwidthName
	}
	if strings.ContainsAny(bc.FileName, `/\`) {
		return fmt.Errorf("file_name %q must be a file name, not a path", bc.FileName)
	}

	return nil
}

func validatePrecision(p *int) error {
	if p == nil {
		return nil
	}
	if *p < matrixfile.PrecisionVerbatim || *p > matrixfile.MaxPrecision {
		return fmt.Errorf("precision must be between %d and %d, got %d",
			matrixfile.PrecisionVerbatim, matrixfile.MaxPrecision, *p)
	}
	return nil
}

func validateWebhook(wh *WebhookConfig) error {
	if wh.URL == "" {
		return errors.New("url is required")
	}

	u, err := url.Parse(wh.URL)
	if err != nil {
		return fmt.Errorf("invalid url: %w", err)
	}

	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("url scheme must be http or https, got %q", u.Scheme)
	}

	if u.Host == "" {
		return errors.New("url must have a host")
	}

	wh.Token = expandEnvVar(wh.Token)

	if wh.Trigger != "" {
		switch wh.Trigger {
		case WebhookTriggerOnIssues, WebhookTriggerAlways, WebhookTriggerNever:
		default:
			return fmt.Errorf("invalid trigger %q (must be on_issues, always, or never)", wh.Trigger)
		}
	} else {
		wh.Trigger = WebhookTriggerOnIssues
	}

	if wh.Timeout <= 0 {
		wh.Timeout = DefaultWebhookTimeout
	}

	return nil
}

// expandEnvVar expands a token given as ${VAR} or $VAR.
func expandEnvVar(s string) string {
	switch {
	case s == "":
		return s
	case strings.HasPrefix(s, "${") && strings.HasSuffix(s, "}"):
		return os.Getenv(s[2 : len(s)-1])
	case strings.HasPrefix(s, "$"):
		return os.Getenv(s[1:])
	}
	return s
}
