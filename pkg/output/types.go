// Package output provides formatting and output generation for extraction results.
package output

import (
	"time"

	"github.com/ccollicutt/logmatrix/pkg/extract"
	"github.com/ccollicutt/logmatrix/pkg/pipeline"
)

// Report is the complete extraction output.
type Report struct {
	// Summary provides aggregate statistics.
	Summary Summary `json:"summary"`

	// Results contains one entry per results directory.
	Results []*DirResult `json:"results"`

	// Metadata provides context about the extraction.
	Metadata Metadata `json:"metadata"`
}

// Summary provides aggregate statistics.
type Summary struct {
	// DirsProcessed is the number of results directories visited.
	DirsProcessed int `json:"dirs_processed"`

	// DirsFailed is the number of directories stopped by a fatal error.
	DirsFailed int `json:"dirs_failed"`

	// FilesWritten is the number of matrix files written.
	FilesWritten int `json:"files_written"`

	// TrafficMatrices is the number of traffic matrix files written.
	TrafficMatrices int `json:"traffic_matrices"`

	// RecordsDiscarded counts traffic records and bandwidth matrices that
	// failed and were not written.
	RecordsDiscarded int `json:"records_discarded"`

	// MeasurementsDropped counts bandwidth measurements for unsupported devices.
	MeasurementsDropped int `json:"measurements_dropped"`

	// MeasurementsMalformed counts bandwidth measurements with unparseable values.
	MeasurementsMalformed int `json:"measurements_malformed"`

	// LinesProcessed is the total number of log lines read.
	LinesProcessed int `json:"lines_processed"`
}

// DirResult is the report entry for one results directory.
type DirResult struct {
	Dir       string                  `json:"dir"`
	Input     string                  `json:"input"`
	OutputDir string                  `json:"output_dir"`
	Lines     int                     `json:"lines"`
	Files     []pipeline.WrittenFile  `json:"files"`
	Discarded []pipeline.Discard      `json:"discarded,omitempty"`
	Bandwidth *extract.BandwidthStats `json:"bandwidth,omitempty"`
	Error     string                  `json:"error,omitempty"`
}

// Failed reports whether the directory stopped on a fatal error.
func (d *DirResult) Failed() bool {
	return d.Error != ""
}

// Metadata provides context about the extraction run.
type Metadata struct {
	// ConfigFile is the path to the configuration file used.
	ConfigFile string `json:"config_file,omitempty"`

	// DryRun is set when no files were written to disk.
	DryRun bool `json:"dry_run,omitempty"`

	// ExtractedAt is when the extraction finished.
	ExtractedAt time.Time `json:"extracted_at"`

	// Duration is how long the extraction took.
	Duration time.Duration `json:"duration"`
}

// NewReport creates a Report from pipeline results.
func NewReport(result *pipeline.Result) *Report {
	report := &Report{
		Results: make([]*DirResult, 0, len(result.Runs)),
		Metadata: Metadata{
			ConfigFile:  result.Metadata.ConfigFile,
			DryRun:      result.Metadata.DryRun,
			ExtractedAt: result.Metadata.EndTime,
			Duration:    result.Metadata.EndTime.Sub(result.Metadata.StartTime),
		},
		Summary: Summary{
			DirsProcessed:    len(result.Runs),
			DirsFailed:       result.FailedRuns(),
			FilesWritten:     result.FilesWritten(),
			RecordsDiscarded: result.TotalDiscarded(),
		},
	}

	for _, run := range result.Runs {
		d := &DirResult{
			Dir:       run.Dir,
			Input:     run.Input,
			OutputDir: run.OutputDir,
			Lines:     run.LinesRead,
			Files:     run.Files,
			Discarded: run.Discarded,
			Bandwidth: run.Bandwidth,
		}
		if run.Err != nil {
			d.Error = run.Err.Error()
		}
		report.Results = append(report.Results, d)

		report.Summary.TrafficMatrices += run.TrafficFiles()
		report.Summary.LinesProcessed += run.LinesRead
		if run.Bandwidth != nil {
			report.Summary.MeasurementsDropped += run.Bandwidth.Dropped
			report.Summary.MeasurementsMalformed += run.Bandwidth.Malformed
		}
	}

	return report
}

// HasIssues returns true if anything was discarded, dropped or failed.
func (r *Report) HasIssues() bool {
	s := r.Summary
	return s.DirsFailed+s.RecordsDiscarded+s.MeasurementsDropped+s.MeasurementsMalformed > 0
}

// HasFailures returns true if any directory stopped on a fatal error.
func (r *Report) HasFailures() bool {
	return r.Summary.DirsFailed > 0
}
