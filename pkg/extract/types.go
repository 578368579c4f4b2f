// Package extract turns raw training logs into traffic and bandwidth matrices.
package extract

import (
	"github.com/ccollicutt/logmatrix/pkg/matrix"
)

// Kind enumerates the matrix families found in a log.
type Kind string

const (
	KindTraffic   Kind = "traffic"
	KindBandwidth Kind = "bandwidth"
)

// Defaults for the textual patterns and the device slot bounds.
const (
	DefaultTrafficMarker    = "Traffic Matrix (MB):"
	DefaultBandwidthPattern = `Bandwidth between GPU (\d+) and GPU (\d+): ([\d.]+) GB/s`
	DefaultDeviceCount      = 10
	MaxDeviceCount          = 4096
)

// TrafficRecord is one per-epoch traffic matrix.
type TrafficRecord struct {
	// Epoch is the 1-based occurrence rank of the block in the log.
	// It is never read from the log text.
	Epoch int

	// Matrix holds the parsed values, one row per block line.
	Matrix *matrix.Dense

	// Tokens holds the source text of every value, row by row.
	Tokens [][]string

	// Source is the log file the block came from.
	Source string

	// Line is the line number of the marker that introduced the block.
	Line int
}

// BandwidthMatrix is the symmetric device-to-device bandwidth table.
type BandwidthMatrix struct {
	// Size is the configured device slot count N.
	Size int

	// Matrix is N×N, symmetric, zero where nothing was measured.
	Matrix *matrix.Dense

	// Stats counts what the builder saw.
	Stats BandwidthStats
}

// BandwidthStats describes one bandwidth build.
type BandwidthStats struct {
	// LinesProcessed is the number of log lines examined.
	LinesProcessed int `json:"lines_processed"`

	// Measurements is the number of pattern matches.
	Measurements int `json:"measurements"`

	// Applied is the number of measurements written into the matrix.
	Applied int `json:"applied"`

	// Dropped is the number of measurements ignored for out-of-range devices.
	Dropped int `json:"dropped"`

	// Malformed is the number of measurements skipped for unparseable values.
	Malformed int `json:"malformed"`
}

// DevicePolicy decides what happens to measurements naming a device index
// outside the configured range.
type DevicePolicy string

const (
	// DevicePolicyDrop logs and ignores the measurement.
	DevicePolicyDrop DevicePolicy = "drop"
	// DevicePolicyReject fails the bandwidth matrix.
	DevicePolicyReject DevicePolicy = "reject"
)
