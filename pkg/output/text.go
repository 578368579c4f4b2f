package output

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/ccollicutt/logmatrix/pkg/extract"
	"github.com/ccollicutt/logmatrix/pkg/pipeline"
)

// TextFormatter formats reports as human-readable text.
type TextFormatter struct {
	opts FormatOptions
}

// NewTextFormatter creates a new text formatter with the given options.
func NewTextFormatter(opts FormatOptions) *TextFormatter {
	return &TextFormatter{opts: opts}
}

// Name returns the format name.
func (f *TextFormatter) Name() string {
	return "text"
}

// Format renders the report as text.
func (f *TextFormatter) Format(ctx context.Context, report *Report, w io.Writer) error {
	if f.opts.Quiet {
		return f.formatQuiet(report, w)
	}
	return f.formatFull(report, w)
}

func (f *TextFormatter) formatQuiet(report *Report, w io.Writer) error {
	_, err := fmt.Fprintf(w, "logmatrix: %d dirs, %d failed, %d files written, %d records discarded, %d measurements dropped\n",
		report.Summary.DirsProcessed,
		report.Summary.DirsFailed,
		report.Summary.FilesWritten,
		report.Summary.RecordsDiscarded,
		report.Summary.MeasurementsDropped+report.Summary.MeasurementsMalformed)
	return err
}

func (f *TextFormatter) formatFull(report *Report, w io.Writer) error {
	fmt.Fprintln(w, "=== logmatrix Extraction Report ===")
	if report.Metadata.DryRun {
		fmt.Fprintln(w, "(dry run: no files were written)")
	}
	fmt.Fprintln(w)

	for _, result := range report.Results {
		f.formatDirResult(result, w)
	}

	fmt.Fprintln(w, "---")
	fmt.Fprintf(w, "Summary: %d dirs, %d failed, %d files written (%d traffic), %d records discarded\n",
		report.Summary.DirsProcessed,
		report.Summary.DirsFailed,
		report.Summary.FilesWritten,
		report.Summary.TrafficMatrices,
		report.Summary.RecordsDiscarded)

	if n := report.Summary.MeasurementsDropped + report.Summary.MeasurementsMalformed; n > 0 {
		fmt.Fprintf(w, "Bandwidth: %d measurements dropped (%d unsupported device, %d malformed)\n",
			n, report.Summary.MeasurementsDropped, report.Summary.MeasurementsMalformed)
	}

	if f.opts.Verbose {
		fmt.Fprintf(w, "Lines processed: %d\n", report.Summary.LinesProcessed)
		_, err := fmt.Fprintf(w, "Duration: %s\n", report.Metadata.Duration.Round(1e6))
		return err
	}

	return nil
}

func (f *TextFormatter) formatDirResult(result *DirResult, w io.Writer) {
	status := "OK"
	switch {
	case result.Failed():
		status = "FAILED"
	case len(result.Discarded) > 0:
		status = "PARTIAL"
	}
	fmt.Fprintf(w, "[%s] %s\n", status, result.Dir)

	if result.Failed() {
		fmt.Fprintf(w, "  Error: %s\n", result.Error)
	}

	if f.opts.Verbose {
		fmt.Fprintf(w, "  Input: %s (%d lines)\n", result.Input, result.Lines)
	}

	if len(result.Files) == 0 && !result.Failed() {
		fmt.Fprintln(w, "  No matrices written")
	}
	for i := range result.Files {
		f.formatFile(&result.Files[i], w)
	}

	if f.opts.Verbose && result.Bandwidth != nil {
		b := result.Bandwidth
		fmt.Fprintf(w, "  Bandwidth: %d measurements, %d applied, %d dropped, %d malformed\n",
			b.Measurements, b.Applied, b.Dropped, b.Malformed)
	}

	if len(result.Discarded) > 0 {
		fmt.Fprintf(w, "  Discarded: %d record(s)\n", len(result.Discarded))
		for i := range result.Discarded {
			f.formatDiscard(&result.Discarded[i], w)
		}
	}

	fmt.Fprintln(w)
}

func (f *TextFormatter) formatFile(file *pipeline.WrittenFile, w io.Writer) {
	label := strings.ToUpper(string(file.Kind))
	if file.Kind == extract.KindTraffic {
		label = fmt.Sprintf("%s %d", label, file.Epoch)
	}
	fmt.Fprintf(w, "  - %-12s %dx%d  %s\n", label, file.Rows, file.Cols, file.Path)
}

func (f *TextFormatter) formatDiscard(d *pipeline.Discard, w io.Writer) {
	switch {
	case d.Kind == extract.KindTraffic && d.Epoch > 0:
		fmt.Fprintf(w, "  - traffic epoch %d (line %d): %s\n", d.Epoch, d.Line, d.Reason)
	case d.Line > 0:
		fmt.Fprintf(w, "  - %s (line %d): %s\n", d.Kind, d.Line, d.Reason)
	default:
		fmt.Fprintf(w, "  - %s: %s\n", d.Kind, d.Reason)
	}
}
