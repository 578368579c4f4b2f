package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/ccollicutt/logmatrix/pkg/extract"
	"github.com/ccollicutt/logmatrix/pkg/matrixfile"
)

// Default values for configuration.
const (
	DefaultInputFile      = "rank_0.log"
	DefaultDeviceCount    = extract.DefaultDeviceCount
	DefaultDevicePolicy   = string(extract.DevicePolicyDrop)
	DefaultWebhookTimeout = 10 * time.Second
)

// EnvPrefix prefixes every environment override, e.g. LOGMATRIX_DEVICE_COUNT.
const EnvPrefix = "logmatrix"

// Keys that can be overridden from the environment.
const (
	KeyInputFile    = "input_file"
	KeyOutputDir    = "output_dir"
	KeyDeviceCount  = "device_count"
	KeyStrict       = "strict"
	KeyDevicePolicy = "device_policy"
)

// DefaultConfig returns a configuration with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		InputFile:   DefaultInputFile,
		DeviceCount: DefaultDeviceCount,
		Traffic: TrafficConfig{
			Marker:       extract.DefaultTrafficMarker,
			FileTemplate: matrixfile.DefaultTrafficTemplate,
		},
		Bandwidth: BandwidthConfig{
			Pattern:      extract.DefaultBandwidthPattern,
			DevicePolicy: DefaultDevicePolicy,
			FileName:     matrixfile.DefaultBandwidthName,
		},
	}
}

// TrafficPrecision returns the effective traffic precision.
func (c *Config) TrafficPrecision() int {
	return PrecisionOr(c.Traffic.Precision, matrixfile.DefaultTrafficPrecision)
}

// BandwidthPrecision returns the effective bandwidth precision.
func (c *Config) BandwidthPrecision() int {
	return PrecisionOr(c.Bandwidth.Precision, matrixfile.DefaultBandwidthPrecision)
}

// newEnv returns a viper instance bound to the LOGMATRIX_* variables.
func newEnv() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	for _, key := range []string{KeyInputFile, KeyOutputDir, KeyDeviceCount, KeyStrict, KeyDevicePolicy} {
		_ = v.BindEnv(key)
	}
	return v
}

// applyEnvironmentOverrides applies environment variable overrides to the config.
func (c *Config) applyEnvironmentOverrides() {
	v := newEnv()

	if v.IsSet(KeyInputFile) {
		c.InputFile = v.GetString(KeyInputFile)
	}
	if v.IsSet(KeyOutputDir) {
		c.OutputDir = v.GetString(KeyOutputDir)
	}
	if v.IsSet(KeyDeviceCount) {
		c.DeviceCount = v.GetInt(KeyDeviceCount)
	}
	if v.IsSet(KeyStrict) {
		c.Strict = v.GetBool(KeyStrict)
	}
	if v.IsSet(KeyDevicePolicy) {
		c.Bandwidth.DevicePolicy = v.GetString(KeyDevicePolicy)
	}
}
