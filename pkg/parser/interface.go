package parser

import (
	"context"
)

// LineSource provides an iterator over raw log lines.
// Implementations must be safe for sequential access (not concurrent).
type LineSource interface {
	// Next returns the next log line.
	// Returns io.EOF when no more lines are available.
	Next(ctx context.Context) (*LogLine, error)

	// Close releases any resources held by the source.
	Close() error
}

var (
	_ LineSource = (*FileSource)(nil)
	_ LineSource = (*DocumentSource)(nil)
)
