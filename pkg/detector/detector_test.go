package detector

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ccollicutt/logmatrix/pkg/config"
	"github.com/ccollicutt/logmatrix/pkg/parser"
)

const trainerLog = `Epoch 1 starting
Traffic Matrix (MB):
0 1.5 2.0
1.5 0 3.25
2.0 3.25 0
Bandwidth between GPU 0 and GPU 1: 12.5 GB/s
Bandwidth between GPU 1 and GPU 2: 8.0 GB/s
Epoch 2 starting
Traffic Matrix (MB):
0 4
4 0
Bandwidth between GPU 0 and GPU 1: 13.0 GB/s
`

func detect(t *testing.T, d *Detector, text string) *DetectionResult {
	t.Helper()
	result, err := d.DetectFromDocument(context.Background(), parser.ParseDocument("rank_0.log", text))
	if err != nil {
		t.Fatalf("DetectFromDocument() error = %v", err)
	}
	return result
}

func TestDetector_TrainerLog(t *testing.T) {
	result := detect(t, New(), trainerLog)

	if !result.HasMatch() {
		t.Fatal("Expected to detect a layout")
	}
	if result.LinesScanned != 12 {
		t.Errorf("LinesScanned = %d, want 12", result.LinesScanned)
	}

	traffic := result.BestTraffic()
	if traffic.Format.Marker != "Traffic Matrix (MB):" {
		t.Errorf("Marker = %q, want Traffic Matrix (MB):", traffic.Format.Marker)
	}
	if traffic.Blocks != 2 {
		t.Errorf("Blocks = %d, want 2", traffic.Blocks)
	}
	if traffic.FirstLine != 2 {
		t.Errorf("FirstLine = %d, want 2", traffic.FirstLine)
	}
	wantShapes := []Shape{{Rows: 3, Cols: 3, Count: 1}, {Rows: 2, Cols: 2, Count: 1}}
	if len(traffic.Shapes) != len(wantShapes) {
		t.Fatalf("Shapes = %+v, want %+v", traffic.Shapes, wantShapes)
	}
	for i := range wantShapes {
		if traffic.Shapes[i] != wantShapes[i] {
			t.Errorf("Shapes[%d] = %+v, want %+v", i, traffic.Shapes[i], wantShapes[i])
		}
	}

	bw := result.BestBandwidth()
	if bw.Format.Unit != "GB/s" || bw.Format.PatternStr != `Bandwidth between GPU (\d+) and GPU (\d+): ([\d.]+) GB/s` {
		t.Errorf("Bandwidth format = %s", bw.Format.Name)
	}
	if bw.Measurements != 3 {
		t.Errorf("Measurements = %d, want 3", bw.Measurements)
	}
	if bw.MaxDevice != 2 {
		t.Errorf("MaxDevice = %d, want 2", bw.MaxDevice)
	}
	if bw.SuggestedDeviceCount() != 3 {
		t.Errorf("SuggestedDeviceCount() = %d, want 3", bw.SuggestedDeviceCount())
	}
	if bw.SampleLine != "Bandwidth between GPU 0 and GPU 1: 12.5 GB/s" {
		t.Errorf("SampleLine = %q", bw.SampleLine)
	}

	cov := result.Coverage
	if cov == nil {
		t.Fatal("Coverage is nil")
	}
	if cov.Measured != 2 {
		t.Errorf("Measured = %d, want 2", cov.Measured)
	}
	if len(cov.Unmeasured) != 1 || cov.Unmeasured[0] != [2]int{0, 2} {
		t.Errorf("Unmeasured = %v, want [[0 2]]", cov.Unmeasured)
	}
}

func TestDetector_AlternativeMarkers(t *testing.T) {
	tests := []struct {
		name   string
		log    string
		marker string
	}{
		{"GB marker", "Traffic Matrix (GB):\n1 2\n3 4\n", "Traffic Matrix (GB):"},
		{"bytes marker", "Traffic Matrix (bytes):\n100 200\n", "Traffic Matrix (bytes):"},
		{"communication matrix", "[rank 0] Communication Matrix:\n1 2\n", "Communication Matrix:"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := detect(t, New(), tt.log)
			best := result.BestTraffic()
			if best == nil {
				t.Fatal("Expected a traffic marker")
			}
			if best.Format.Marker != tt.marker {
				t.Errorf("Marker = %q, want %q", best.Format.Marker, tt.marker)
			}
			if len(result.Traffic) != 1 {
				t.Errorf("Traffic matches = %d, want 1", len(result.Traffic))
			}
		})
	}
}

func TestDetector_AlternativeBandwidthLayouts(t *testing.T) {
	tests := []struct {
		name string
		log  string
		unit string
		max  int
	}{
		{"MB/s", "Bandwidth between GPU 0 and GPU 5: 12500 MB/s\n", "MB/s", 5},
		{"arrow", "GPU0 -> GPU3: 12.5 GB/s\nGPU 3->GPU 1 : 9 GB/s\n", "GB/s", 3},
		{"rank pair", "bandwidth rank 2 <-> rank 7 = 4.5\n", "GB/s", 7},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := detect(t, New(), tt.log)
			best := result.BestBandwidth()
			if best == nil {
				t.Fatal("Expected a bandwidth layout")
			}
			if best.Format.Unit != tt.unit {
				t.Errorf("Unit = %q, want %q", best.Format.Unit, tt.unit)
			}
			if best.MaxDevice != tt.max {
				t.Errorf("MaxDevice = %d, want %d", best.MaxDevice, tt.max)
			}
		})
	}
}

func TestDetector_NoMatch(t *testing.T) {
	result := detect(t, New(), "loss=0.12\nloss=0.11\n")

	if result.HasMatch() {
		t.Error("Expected no match")
	}
	if result.BestTraffic() != nil || result.BestBandwidth() != nil {
		t.Error("Best matches should be nil")
	}
	if result.Coverage != nil {
		t.Error("Coverage should be nil without bandwidth measurements")
	}
}

func TestDetector_EmptyInput(t *testing.T) {
	result := detect(t, New(), "")

	if result.LinesScanned != 0 {
		t.Errorf("LinesScanned = %d, want 0", result.LinesScanned)
	}
	if result.HasMatch() {
		t.Error("Expected no match for empty input")
	}
}

func TestDetector_CountsDiscardedAndMalformed(t *testing.T) {
	log := `Traffic Matrix (MB):
1 2
3
Traffic Matrix (MB):
1 2
3 4
Bandwidth between GPU 0 and GPU 1: 1.2.3 GB/s
Bandwidth between GPU 0 and GPU 1: 4.0 GB/s
`
	result := detect(t, New(), log)

	traffic := result.BestTraffic()
	if traffic.Blocks != 1 || traffic.Discarded != 1 {
		t.Errorf("Blocks/Discarded = %d/%d, want 1/1", traffic.Blocks, traffic.Discarded)
	}

	bw := result.BestBandwidth()
	if bw.Measurements != 1 || bw.Malformed != 1 {
		t.Errorf("Measurements/Malformed = %d/%d, want 1/1", bw.Measurements, bw.Malformed)
	}
}

func TestBandwidthMatch_Coverage(t *testing.T) {
	log := "Bandwidth between GPU 0 and GPU 1: 1 GB/s\n" +
		"Bandwidth between GPU 2 and GPU 0: 1 GB/s\n" +
		"Bandwidth between GPU 3 and GPU 3: 1 GB/s\n"
	bw := detect(t, New(), log).BestBandwidth()

	cov := bw.Coverage(4)
	if cov.Measured != 2 {
		t.Errorf("Measured = %d, want 2", cov.Measured)
	}
	want := [][2]int{{0, 3}, {1, 2}, {1, 3}, {2, 3}}
	if len(cov.Unmeasured) != len(want) {
		t.Fatalf("Unmeasured = %v, want %v", cov.Unmeasured, want)
	}
	for i := range want {
		if cov.Unmeasured[i] != want[i] {
			t.Errorf("Unmeasured[%d] = %v, want %v", i, cov.Unmeasured[i], want[i])
		}
	}

	// Pairs beyond the requested device count are not counted.
	if got := bw.Coverage(2).Measured; got != 1 {
		t.Errorf("Coverage(2).Measured = %d, want 1", got)
	}
}

func TestBandwidthMatch_CoverageTruncated(t *testing.T) {
	bw := detect(t, New(), "Bandwidth between GPU 0 and GPU 19: 1 GB/s\n").BestBandwidth()

	cov := bw.Coverage(bw.SuggestedDeviceCount())
	if cov.DeviceCount != 20 {
		t.Errorf("DeviceCount = %d, want 20", cov.DeviceCount)
	}
	if !cov.Truncated {
		t.Error("Expected truncated coverage above MaxCoverageDevices")
	}
	if cov.Unmeasured != nil {
		t.Error("Truncated coverage should not list pairs")
	}
	if cov.Measured != 1 {
		t.Errorf("Measured = %d, want 1", cov.Measured)
	}
}

func TestDetector_CustomFormats(t *testing.T) {
	d := New(WithTrafficFormats(&TrafficFormat{Name: "custom", Marker: "TM:"}))
	result := detect(t, d, "TM:\n1 2\nTraffic Matrix (MB):\n3 4\n")

	if len(result.Traffic) != 1 {
		t.Fatalf("Traffic matches = %d, want 1", len(result.Traffic))
	}
	if result.Traffic[0].Format.Name != "custom" {
		t.Errorf("Format = %q, want custom", result.Traffic[0].Format.Name)
	}
}

func TestDetector_DetectFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "rank_0.log")
	if err := os.WriteFile(path, []byte(trainerLog), 0644); err != nil {
		t.Fatalf("Failed to write test file: %v", err)
	}

	result, err := New().DetectFromFile(context.Background(), path)
	if err != nil {
		t.Fatalf("DetectFromFile() error = %v", err)
	}
	if result.BestTraffic() == nil || result.BestBandwidth() == nil {
		t.Error("Expected both layouts to be detected")
	}
}

func TestDetector_DetectFromFile_NotFound(t *testing.T) {
	_, err := New().DetectFromFile(context.Background(), "/nonexistent/rank_0.log")
	if !errors.Is(err, parser.ErrMissingInput) {
		t.Errorf("error = %v, want ErrMissingInput", err)
	}
}

func TestDefaultFormats(t *testing.T) {
	for _, f := range DefaultBandwidthFormats() {
		if f.Pattern == nil {
			t.Errorf("%s: Pattern not compiled", f.Name)
			continue
		}
		if f.Pattern.NumSubexp() != 3 {
			t.Errorf("%s: %d capture groups, want 3", f.Name, f.Pattern.NumSubexp())
		}
		if !f.Pattern.MatchString(f.Example) {
			t.Errorf("%s: pattern does not match its example %q", f.Name, f.Example)
		}
	}

	for _, f := range DefaultTrafficFormats() {
		if !strings.HasSuffix(f.Example, f.Marker) {
			t.Errorf("%s: example %q does not end with marker %q", f.Name, f.Example, f.Marker)
		}
	}
}

func TestGenerateConfig(t *testing.T) {
	result := detect(t, New(), "GPU0 -> GPU4: 12.5 GB/s\nTraffic Matrix (GB):\n1 2\n")

	data, err := GenerateConfig(result, "/results/run1/train.log")
	if err != nil {
		t.Fatalf("GenerateConfig() error = %v", err)
	}
	if !strings.HasPrefix(string(data), "# logmatrix configuration") {
		t.Error("Generated config missing header")
	}

	path := filepath.Join(t.TempDir(), "logmatrix.yaml")
	if err := os.WriteFile(path, data, 0644); err != nil {
		t.Fatalf("Failed to write config: %v", err)
	}

	cfg, err := config.Load(context.Background(), path)
	if err != nil {
		t.Fatalf("generated config does not load: %v\n%s", err, data)
	}
	if cfg.InputFile != "train.log" {
		t.Errorf("InputFile = %q, want train.log", cfg.InputFile)
	}
	if cfg.DeviceCount != 5 {
		t.Errorf("DeviceCount = %d, want 5", cfg.DeviceCount)
	}
	if cfg.Traffic.Marker != "Traffic Matrix (GB):" {
		t.Errorf("Marker = %q", cfg.Traffic.Marker)
	}
	if cfg.TrafficPrecision() != -1 || cfg.BandwidthPrecision() != 3 {
		t.Errorf("precisions = %d/%d, want -1/3", cfg.TrafficPrecision(), cfg.BandwidthPrecision())
	}
	if !cfg.Bandwidth.CompiledPattern().MatchString("GPU0 -> GPU4: 12.5 GB/s") {
		t.Error("generated pattern does not match the detected layout")
	}
}

func TestGenerateConfig_DeviceIndexTooLarge(t *testing.T) {
	result := detect(t, New(), "Bandwidth between GPU 0 and GPU 4294967295: 1.0 GB/s\n")
	if _, err := GenerateConfig(result, "rank_0.log"); err == nil || !strings.Contains(err.Error(), "device_count") {
		t.Errorf("GenerateConfig() error = %v, want device_count error", err)
	}
}

func TestGenerateConfig_NoMatch(t *testing.T) {
	result := detect(t, New(), "nothing here\n")
	if _, err := GenerateConfig(result, "rank_0.log"); err == nil {
		t.Error("GenerateConfig() expected error without detected layouts")
	}
}
