// Package config provides configuration loading and validation for logmatrix.
package config

import (
	"regexp"
	"time"
)

// Config is the root configuration structure loaded from YAML.
type Config struct {
	// InputFile is the log file name inside each results directory.
	InputFile string `yaml:"input_file"`

	// OutputDir is where matrix files go. Empty means the results directory;
	// a relative path is resolved against the results directory.
	OutputDir string `yaml:"output_dir,omitempty"`

	// DeviceCount is the bandwidth matrix dimension N.
	DeviceCount int `yaml:"device_count"`

	// Strict aborts a results directory on the first malformed record
	// instead of discarding that record.
	Strict bool `yaml:"strict,omitempty"`

	Traffic   TrafficConfig   `yaml:"traffic"`
	Bandwidth BandwidthConfig `yaml:"bandwidth"`
	Webhooks  []WebhookConfig `yaml:"webhooks,omitempty"`
}

// TrafficConfig controls per-epoch traffic matrix extraction.
type TrafficConfig struct {
	// Marker is the text ending the line that introduces a traffic block.
	Marker string `yaml:"marker"`

	// Precision is the number of decimals written; -1 keeps the source tokens.
	Precision *int `yaml:"precision,omitempty"`

	// FileTemplate names the output files; it must contain one %d verb.
	FileTemplate string `yaml:"file_template"`
}

// BandwidthConfig controls bandwidth matrix extraction.
type BandwidthConfig struct {
	// Pattern is a regex capturing source device, destination device and value.
	Pattern string `yaml:"pattern"`

	// Precision is the number of decimals written.
	Precision *int `yaml:"precision,omitempty"`

	// DevicePolicy is drop or reject.
	DevicePolicy string `yaml:"device_policy"`

	// FileName is the output file name.
	FileName string `yaml:"file_name"`

	// compiledPattern is the pre-compiled regex (populated during validation).
	compiledPattern *regexp.Regexp
}

// CompiledPattern returns the pre-compiled measurement pattern.
func (b *BandwidthConfig) CompiledPattern() *regexp.Regexp {
	return b.compiledPattern
}

// PrecisionOr returns the configured precision, or def when unset.
func PrecisionOr(p *int, def int) int {
	if p == nil {
		return def
	}
	return *p
}

// WebhookTrigger determines when a webhook fires.
type WebhookTrigger string

const (
	// WebhookTriggerOnIssues fires only when records were discarded or
	// measurements dropped (default).
	WebhookTriggerOnIssues WebhookTrigger = "on_issues"
	// WebhookTriggerAlways fires after every extraction.
	WebhookTriggerAlways WebhookTrigger = "always"
	// WebhookTriggerNever disables the webhook.
	WebhookTriggerNever WebhookTrigger = "never"
)

// WebhookConfig defines a webhook endpoint for sending extraction reports.
type WebhookConfig struct {
	// Name is an optional identifier for the webhook.
	Name string `yaml:"name,omitempty"`

	// URL is the webhook endpoint (required).
	URL string `yaml:"url"`

	// Token is an optional bearer token for authentication.
	Token string `yaml:"token,omitempty"`

	// Trigger determines when the webhook fires.
	// Defaults to "on_issues" if not specified.
	Trigger WebhookTrigger `yaml:"trigger,omitempty"`

	// Timeout is the HTTP request timeout.
	// Defaults to 10s if not specified.
	Timeout time.Duration `yaml:"timeout,omitempty"`
}
