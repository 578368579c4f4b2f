package detector

import (
	"regexp"

	"github.com/ccollicutt/logmatrix/pkg/extract"
)

// TrafficFormat is a known traffic block marker.
type TrafficFormat struct {
	Name    string // Human-readable name
	Marker  string // Text ending the marker line
	Example string
}

// BandwidthFormat is a known bandwidth measurement line layout.
type BandwidthFormat struct {
	Name       string         // Human-readable name
	Pattern    *regexp.Regexp // Compiled regex (set during init)
	PatternStr string         // Pattern string for config output
	Unit       string
	Example    string
}

// DefaultTrafficFormats returns the built-in traffic markers to try.
// The trainer's own marker comes first.
func DefaultTrafficFormats() []*TrafficFormat {
	return []*TrafficFormat{
		{
			Name:    "Traffic matrix in MB",
			Marker:  extract.DefaultTrafficMarker,
			Example: "Traffic Matrix (MB):",
		},
		{
			Name:    "Traffic matrix in GB",
			Marker:  "Traffic Matrix (GB):",
			Example: "Traffic Matrix (GB):",
		},
		{
			Name:    "Traffic matrix in bytes",
			Marker:  "Traffic Matrix (bytes):",
			Example: "Traffic Matrix (bytes):",
		},
		{
			Name:    "Communication matrix",
			Marker:  "Communication Matrix:",
			Example: "[rank 0] Communication Matrix:",
		},
	}
}

// DefaultBandwidthFormats returns the built-in measurement layouts to try.
// Every pattern captures source device, destination device and value.
func DefaultBandwidthFormats() []*BandwidthFormat {
	formats := []*BandwidthFormat{
		{
			Name:       "GPU pair bandwidth in GB/s",
			PatternStr: extract.DefaultBandwidthPattern,
			Unit:       "GB/s",
			Example:    "Bandwidth between GPU 0 and GPU 1: 12.5 GB/s",
		},
		{
			Name:       "GPU pair bandwidth in MB/s",
			PatternStr: `Bandwidth between GPU (\d+) and GPU (\d+): ([\d.]+) MB/s`,
			Unit:       "MB/s",
			Example:    "Bandwidth between GPU 0 and GPU 1: 12500 MB/s",
		},
		{
			Name:       "Arrow notation bandwidth",
			PatternStr: `GPU\s*(\d+)\s*->\s*GPU\s*(\d+)\s*:\s*([\d.]+)\s*GB/s`,
			Unit:       "GB/s",
			Example:    "GPU0 -> GPU1: 12.5 GB/s",
		},
		{
			Name:       "Rank pair bandwidth",
			PatternStr: `bandwidth rank (\d+) <-> rank (\d+) = ([\d.]+)`,
			Unit:       "GB/s",
			Example:    "bandwidth rank 0 <-> rank 1 = 12.5",
		},
	}

	for _, f := range formats {
		f.Pattern = regexp.MustCompile(f.PatternStr)
	}

	return formats
}
