package output

import (
	"context"
	"encoding/json"
	"io"
)

// quietReport is the JSON shape of a quiet report: the summary plus the
// directories that stopped on a fatal error.
type quietReport struct {
	Summary Summary     `json:"summary"`
	Failed  []failedDir `json:"failed,omitempty"`
}

type failedDir struct {
	Dir   string `json:"dir"`
	Error string `json:"error"`
}

// JSONFormatter formats reports as JSON.
type JSONFormatter struct {
	opts FormatOptions
}

// NewJSONFormatter creates a new JSON formatter with the given options.
func NewJSONFormatter(opts FormatOptions) *JSONFormatter {
	return &JSONFormatter{opts: opts}
}

// Name returns the format name.
func (f *JSONFormatter) Name() string {
	return "json"
}

// Format renders the report as JSON.
func (f *JSONFormatter) Format(ctx context.Context, report *Report, w io.Writer) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")

	if f.opts.Quiet {
		q := quietReport{Summary: report.Summary}
		for _, d := range report.Results {
			if d.Failed() {
				q.Failed = append(q.Failed, failedDir{Dir: d.Dir, Error: d.Error})
			}
		}
		return encoder.Encode(q)
	}

	return encoder.Encode(report)
}
