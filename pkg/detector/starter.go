package detector

import (
	"bytes"
	"errors"
	"fmt"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/ccollicutt/logmatrix/pkg/config"
	"github.com/ccollicutt/logmatrix/pkg/matrixfile"
)

// StarterConfig builds a configuration matching the detected layouts.
func StarterConfig(result *DetectionResult, logFile string) (*config.Config, error) {
	if !result.HasMatch() {
		return nil, errors.New("cannot generate config: no traffic marker or bandwidth layout detected")
	}

	cfg := config.DefaultConfig()
	cfg.InputFile = filepath.Base(logFile)

	trafficPrecision := matrixfile.DefaultTrafficPrecision
	bandwidthPrecision := matrixfile.DefaultBandwidthPrecision
	cfg.Traffic.Precision = &trafficPrecision
	cfg.Bandwidth.Precision = &bandwidthPrecision

	if best := result.BestTraffic(); best != nil {
		cfg.Traffic.Marker = best.Format.Marker
	}
	if best := result.BestBandwidth(); best != nil {
		cfg.Bandwidth.Pattern = best.Format.PatternStr
		cfg.DeviceCount = best.SuggestedDeviceCount()
	}

	if err := config.Validate(cfg); err != nil {
		return nil, fmt.Errorf("generated config is invalid: %w", err)
	}
	return cfg, nil
}

// GenerateConfig renders a commented starter YAML file.
func GenerateConfig(result *DetectionResult, logFile string) ([]byte, error) {
	cfg, err := StarterConfig(result, logFile)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	fmt.Fprintln(&buf, "# logmatrix configuration")
	fmt.Fprintln(&buf, "# Generated by: logmatrix detect")
	if best := result.BestTraffic(); best != nil {
		fmt.Fprintf(&buf, "# Traffic marker: %s (%d blocks)\n", best.Format.Name, best.Blocks)
	}
	if best := result.BestBandwidth(); best != nil {
		fmt.Fprintf(&buf, "# Bandwidth layout: %s (%d measurements, highest device %d)\n",
			best.Format.Name, best.Measurements, best.MaxDevice)
	}
	fmt.Fprintln(&buf, "#")
	fmt.Fprintln(&buf, "# precision -1 keeps the numbers exactly as they appear in the log.")
	fmt.Fprintln(&buf, "# device_policy: drop ignores out-of-range devices, reject fails the matrix.")
	fmt.Fprintln(&buf)

	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(cfg); err != nil {
		return nil, fmt.Errorf("encoding config: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("encoding config: %w", err)
	}

	return buf.Bytes(), nil
}
