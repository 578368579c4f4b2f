// Package detector inspects a training log and reports which traffic
// markers and bandwidth layouts it contains.
package detector

import (
	"context"
	"sort"
	"strconv"

	combinations "github.com/mxschmitt/golang-combinations"

	"github.com/ccollicutt/logmatrix/pkg/extract"
	"github.com/ccollicutt/logmatrix/pkg/parser"
)

// MaxCoverageDevices bounds the device count for which unmeasured pairs
// are enumerated.
const MaxCoverageDevices = 16

// DetectionResult holds the result of analyzing a log file.
type DetectionResult struct {
	LinesScanned int              // Number of lines read
	Traffic      []TrafficMatch   // Markers found, most blocks first
	Bandwidth    []BandwidthMatch // Layouts found, most measurements first
	Coverage     *Coverage        // Pair coverage for the best bandwidth layout
}

// TrafficMatch describes the blocks one marker produced.
type TrafficMatch struct {
	Format    *TrafficFormat
	Blocks    int     // Blocks that parsed
	Discarded int     // Blocks that would be discarded
	Shapes    []Shape // Distinct block shapes in order of first appearance
	FirstLine int     // Line of the first marker
}

// Shape is a matrix shape with the number of blocks that had it.
type Shape struct {
	Rows  int `json:"rows"`
	Cols  int `json:"cols"`
	Count int `json:"count"`
}

// BandwidthMatch describes the measurements one layout matched.
type BandwidthMatch struct {
	Format       *BandwidthFormat
	Measurements int    // Lines with a well-formed measurement
	Malformed    int    // Matches with unparseable indices or values
	MaxDevice    int    // Highest device index seen, -1 if none
	SampleLine   string // First matching line

	pairs map[[2]int]bool
}

// SuggestedDeviceCount returns the smallest device_count covering every
// measured device.
func (m *BandwidthMatch) SuggestedDeviceCount() int {
	if m.MaxDevice < 0 {
		return extract.DefaultDeviceCount
	}
	return m.MaxDevice + 1
}

// Coverage lists the device pairs that were never measured.
type Coverage struct {
	DeviceCount int      `json:"device_count"`
	Measured    int      `json:"measured"`
	Unmeasured  [][2]int `json:"unmeasured,omitempty"`
	Truncated   bool     `json:"truncated,omitempty"` // too many devices to enumerate
}

// Detector analyzes log files to identify traffic and bandwidth layouts.
type Detector struct {
	trafficFormats   []*TrafficFormat
	bandwidthFormats []*BandwidthFormat
}

// Option configures the Detector.
type Option func(*Detector)

// WithTrafficFormats replaces the markers to try.
func WithTrafficFormats(formats ...*TrafficFormat) Option {
	return func(d *Detector) {
		if len(formats) > 0 {
			d.trafficFormats = formats
		}
	}
}

// WithBandwidthFormats replaces the measurement layouts to try.
func WithBandwidthFormats(formats ...*BandwidthFormat) Option {
	return func(d *Detector) {
		if len(formats) > 0 {
			d.bandwidthFormats = formats
		}
	}
}

// New creates a new Detector with default formats.
func New(opts ...Option) *Detector {
	d := &Detector{
		trafficFormats:   DefaultTrafficFormats(),
		bandwidthFormats: DefaultBandwidthFormats(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// DetectFromFile reads a log file and detects its layouts.
func (d *Detector) DetectFromFile(ctx context.Context, path string) (*DetectionResult, error) {
	doc, err := parser.ReadDocument(ctx, path)
	if err != nil {
		return nil, err
	}
	return d.DetectFromDocument(ctx, doc)
}

// DetectFromDocument runs every known format against doc.
func (d *Detector) DetectFromDocument(ctx context.Context, doc *parser.Document) (*DetectionResult, error) {
	result := &DetectionResult{LinesScanned: doc.Len()}

	for _, f := range d.trafficFormats {
		m, err := detectTraffic(ctx, doc, f)
		if err != nil {
			return nil, err
		}
		if m.Blocks+m.Discarded > 0 {
			result.Traffic = append(result.Traffic, m)
		}
	}

	for _, f := range d.bandwidthFormats {
		m, err := detectBandwidth(ctx, doc, f)
		if err != nil {
			return nil, err
		}
		if m.Measurements+m.Malformed > 0 {
			result.Bandwidth = append(result.Bandwidth, m)
		}
	}

	sort.SliceStable(result.Traffic, func(i, j int) bool {
		a, b := result.Traffic[i], result.Traffic[j]
		return a.Blocks+a.Discarded > b.Blocks+b.Discarded
	})
	sort.SliceStable(result.Bandwidth, func(i, j int) bool {
		return result.Bandwidth[i].Measurements > result.Bandwidth[j].Measurements
	})

	if best := result.BestBandwidth(); best != nil {
		result.Coverage = best.Coverage(best.SuggestedDeviceCount())
	}

	return result, nil
}

func detectTraffic(ctx context.Context, doc *parser.Document, f *TrafficFormat) (TrafficMatch, error) {
	m := TrafficMatch{Format: f}

	records, failures, err := extract.CollectTraffic(ctx, doc, extract.WithMarker(f.Marker))
	if err != nil {
		return m, err
	}
	m.Blocks = len(records)
	m.Discarded = len(failures)

	index := make(map[[2]int]int)
	for _, rec := range records {
		if m.FirstLine == 0 || rec.Line < m.FirstLine {
			m.FirstLine = rec.Line
		}
		key := [2]int{rec.Matrix.Rows(), rec.Matrix.Cols()}
		if i, ok := index[key]; ok {
			m.Shapes[i].Count++
			continue
		}
		index[key] = len(m.Shapes)
		m.Shapes = append(m.Shapes, Shape{Rows: key[0], Cols: key[1], Count: 1})
	}

	return m, nil
}

func detectBandwidth(ctx context.Context, doc *parser.Document, f *BandwidthFormat) (BandwidthMatch, error) {
	m := BandwidthMatch{Format: f, MaxDevice: -1, pairs: make(map[[2]int]bool)}

	ex, err := parser.NewPatternExtractor(f.Pattern, 3)
	if err != nil {
		return m, err
	}

	for i := 0; i < doc.Len(); i++ {
		if err := ctx.Err(); err != nil {
			return m, err
		}
		line := doc.Line(i)
		for _, caps := range ex.ExtractAll(line.Content) {
			src, srcErr := strconv.Atoi(caps[0])
			dst, dstErr := strconv.Atoi(caps[1])
			_, valErr := parser.ParseValue(caps[2])
			if srcErr != nil || dstErr != nil || valErr != nil || src < 0 || dst < 0 {
				m.Malformed++
				continue
			}

			m.Measurements++
			if m.SampleLine == "" {
				m.SampleLine = line.Content
			}
			m.MaxDevice = max(m.MaxDevice, src, dst)
			if src != dst {
				m.pairs[[2]int{min(src, dst), max(src, dst)}] = true
			}
		}
	}

	return m, nil
}

// Coverage reports which unordered device pairs below deviceCount have no
// measurement.
func (m *BandwidthMatch) Coverage(deviceCount int) *Coverage {
	c := &Coverage{DeviceCount: deviceCount}
	for p := range m.pairs {
		if p[1] < deviceCount {
			c.Measured++
		}
	}

	if deviceCount > MaxCoverageDevices {
		c.Truncated = true
		return c
	}

	devices := make([]string, deviceCount)
	for i := range devices {
		devices[i] = strconv.Itoa(i)
	}

	for _, subset := range combinations.All(devices) {
		if len(subset) != 2 {
			continue
		}
		a, _ := strconv.Atoi(subset[0])
		b, _ := strconv.Atoi(subset[1])
		pair := [2]int{min(a, b), max(a, b)}
		if !m.pairs[pair] {
			c.Unmeasured = append(c.Unmeasured, pair)
		}
	}

	sort.Slice(c.Unmeasured, func(i, j int) bool {
		if c.Unmeasured[i][0] != c.Unmeasured[j][0] {
			return c.Unmeasured[i][0] < c.Unmeasured[j][0]
		}
		return c.Unmeasured[i][1] < c.Unmeasured[j][1]
	})

	return c
}

// BestTraffic returns the marker with the most blocks, or nil if none found.
func (r *DetectionResult) BestTraffic() *TrafficMatch {
	if len(r.Traffic) == 0 {
		return nil
	}
	return &r.Traffic[0]
}

// BestBandwidth returns the layout with the most measurements, or nil if
// none found.
func (r *DetectionResult) BestBandwidth() *BandwidthMatch {
	if len(r.Bandwidth) == 0 {
		return nil
	}
	return &r.Bandwidth[0]
}

// HasMatch returns true if any traffic marker or bandwidth layout matched.
func (r *DetectionResult) HasMatch() bool {
	return len(r.Traffic) > 0 || len(r.Bandwidth) > 0
}
