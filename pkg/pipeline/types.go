// Package pipeline runs traffic and bandwidth extraction over results
// directories and persists the resulting matrix files.
package pipeline

import (
	"time"

	"github.com/ccollicutt/logmatrix/pkg/extract"
)

// WrittenFile describes one matrix file produced by a run.
type WrittenFile struct {
	// Kind is traffic or bandwidth.
	Kind extract.Kind `json:"kind"`

	// Epoch is the traffic epoch index; zero for bandwidth.
	Epoch int `json:"epoch,omitempty"`

	// Name is the file name; Path is where it was (or would be) written.
	Name string `json:"name"`
	Path string `json:"path"`

	Rows int `json:"rows"`
	Cols int `json:"cols"`
}

// Discard describes a record or matrix that was not written.
type Discard struct {
	Kind extract.Kind `json:"kind"`

	// Epoch is set for traffic records.
	Epoch int `json:"epoch,omitempty"`

	// Line is the log line the failure points at.
	Line int `json:"line,omitempty"`

	// Reason is the human readable cause.
	Reason string `json:"reason"`

	Err error `json:"-"`
}

// RunResult is the outcome of extracting one results directory.
type RunResult struct {
	// Dir is the results directory; Input is the log file read from it.
	Dir   string `json:"dir"`
	Input string `json:"input"`

	// OutputDir is where matrix files were written.
	OutputDir string `json:"output_dir"`

	// LinesRead is the number of lines in the input log.
	LinesRead int `json:"lines_read"`

	// Files lists matrix files in write order.
	Files []WrittenFile `json:"files"`

	// Discarded lists records that failed and were skipped.
	Discarded []Discard `json:"discarded,omitempty"`

	// Bandwidth holds builder counters when bandwidth extraction ran.
	Bandwidth *extract.BandwidthStats `json:"bandwidth,omitempty"`

	// Err is the fatal error that stopped this directory, if any.
	Err error `json:"-"`

	StartTime time.Time `json:"start_time"`
	EndTime   time.Time `json:"end_time"`
}

// Failed reports whether the directory stopped on a fatal error.
func (r *RunResult) Failed() bool {
	return r.Err != nil
}

// TrafficFiles returns the number of traffic files written.
func (r *RunResult) TrafficFiles() int {
	n := 0
	for _, f := range r.Files {
		if f.Kind == extract.KindTraffic {
			n++
		}
	}
	return n
}

// HasIssues reports whether anything was discarded, dropped or skipped.
func (r *RunResult) HasIssues() bool {
	if r.Failed() || len(r.Discarded) > 0 {
		return true
	}
	return r.Bandwidth != nil && (r.Bandwidth.Dropped > 0 || r.Bandwidth.Malformed > 0)
}

// Result aggregates runs over several results directories.
type Result struct {
	Runs     []*RunResult
	Metadata Metadata
}

// Metadata provides context about a pipeline invocation.
type Metadata struct {
	// ConfigFile is the path to the configuration file used, if any.
	ConfigFile string

	// DryRun is set when nothing was written to disk.
	DryRun bool

	StartTime time.Time
	EndTime   time.Time
}

// FilesWritten returns the total number of matrix files across runs.
func (r *Result) FilesWritten() int {
	total := 0
	for _, run := range r.Runs {
		total += len(run.Files)
	}
	return total
}

// TotalDiscarded returns the number of discarded records across runs.
func (r *Result) TotalDiscarded() int {
	total := 0
	for _, run := range r.Runs {
		total += len(run.Discarded)
	}
	return total
}

// TotalDropped returns dropped plus malformed bandwidth measurements.
func (r *Result) TotalDropped() int {
	total := 0
	for _, run := range r.Runs {
		if run.Bandwidth != nil {
			total += run.Bandwidth.Dropped + run.Bandwidth.Malformed
		}
	}
	return total
}

// FailedRuns returns the number of directories that stopped on a fatal error.
func (r *Result) FailedRuns() int {
	n := 0
	for _, run := range r.Runs {
		if run.Failed() {
			n++
		}
	}
	return n
}

// HasIssues reports whether any run has issues.
func (r *Result) HasIssues() bool {
	for _, run := range r.Runs {
		if run.HasIssues() {
			return true
		}
	}
	return false
}
