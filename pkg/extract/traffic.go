package extract

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/ccollicutt/logmatrix/pkg/matrix"
	"github.com/ccollicutt/logmatrix/pkg/parser"
)

// TrafficExtractor yields one TrafficRecord per marker block, in document
// order. It performs a single forward scan and cannot be restarted.
type TrafficExtractor struct {
	src    *parser.DocumentSource
	marker string
	logger *slog.Logger

	epoch int
}

// TrafficOption configures a TrafficExtractor.
type TrafficOption func(*TrafficExtractor)

// WithMarker sets the text that introduces a traffic block.
func WithMarker(marker string) TrafficOption {
	return func(e *TrafficExtractor) {
		if marker != "" {
			e.marker = marker
		}
	}
}

// WithTrafficLogger sets the logger used for skipped markers.
func WithTrafficLogger(l *slog.Logger) TrafficOption {
	return func(e *TrafficExtractor) {
		if l != nil {
			e.logger = l
		}
	}
}

// NewTrafficExtractor creates an extractor over doc.
func NewTrafficExtractor(doc *parser.Document, opts ...TrafficOption) *TrafficExtractor {
	e := &TrafficExtractor{
		src:    doc.Source(),
		marker: DefaultTrafficMarker,
		logger: slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Next returns the next traffic record.
// Returns io.EOF when the document is exhausted. A block that cannot be
// parsed is reported as a *RecordError; its epoch index is consumed and the
// extractor remains usable.
func (e *TrafficExtractor) Next(ctx context.Context) (*TrafficRecord, error) {
	for {
		line, err := e.src.Next(ctx)
		if err != nil {
			return nil, err
		}
		if !e.isMarker(line.Content) {
			continue
		}

		block, err := e.collectBlock(ctx)
		if err != nil {
			return nil, err
		}
		if len(block) == 0 {
			e.logger.Warn("traffic marker without numeric rows",
				"source", line.Source, "line", line.LineNum)
			continue
		}

		e.epoch++
		rec, err := e.build(line, block)
		if err != nil {
			return nil, &RecordError{Epoch: e.epoch, Line: line.LineNum, Err: err}
		}
		return rec, nil
	}
}

// isMarker reports whether the line ends with the marker text.
func (e *TrafficExtractor) isMarker(content string) bool {
	return strings.HasSuffix(strings.TrimRight(content, " \t\r"), e.marker)
}

// collectBlock consumes the run of numeric lines after a marker and returns
// the non-blank ones.
func (e *TrafficExtractor) collectBlock(ctx context.Context) ([]parser.LogLine, error) {
	var block []parser.LogLine
	for {
		next, ok := e.src.Peek()
		if !ok || !parser.IsNumericLine(next.Content) {
			return block, nil
		}
		line, err := e.src.Next(ctx)
		if err != nil {
			return nil, err
		}
		if !parser.IsBlank(line.Content) {
			block = append(block, *line)
		}
	}
}

func (e *TrafficExtractor) build(marker *parser.LogLine, block []parser.LogLine) (*TrafficRecord, error) {
	rows := make([][]float64, 0, len(block))
	tokens := make([][]string, 0, len(block))

	for _, line := range block {
		fields := parser.SplitRow(line.Content)
		values, err := parser.ParseRow(fields)
		if err != nil {
			var tokErr *parser.TokenError
			if errors.As(err, &tokErr) {
				return nil, &MalformedTokenError{
					Source: line.Source,
					Line:   line.LineNum,
					Token:  tokErr.Token,
					Epoch:  e.epoch,
					Column: tokErr.Column,
				}
			}
			return nil, err
		}
		rows = append(rows, values)
		tokens = append(tokens, fields)
	}

	m, err := matrix.FromRows(rows)
	if err != nil {
		return nil, fmt.Errorf("assembling rows: %w", err)
	}

	return &TrafficRecord{
		Epoch:  e.epoch,
		Matrix: m,
		Tokens: tokens,
		Source: marker.Source,
		Line:   marker.LineNum,
	}, nil
}

// CollectTraffic drains a TrafficExtractor. Records that fail are returned
// as per-record errors without discarding their siblings. The final error is
// non-nil only for failures that stop the scan itself.
func CollectTraffic(ctx context.Context, doc *parser.Document, opts ...TrafficOption) ([]*TrafficRecord, []error, error) {
	e := NewTrafficExtractor(doc, opts...)

	var records []*TrafficRecord
	var failures []error
	for {
		rec, err := e.Next(ctx)
		if err == io.EOF {
			return records, failures, nil
		}
		var recErr *RecordError
		if errors.As(err, &recErr) {
			failures = append(failures, err)
			continue
		}
		if err != nil {
			return records, failures, err
		}
		records = append(records, rec)
	}
}
