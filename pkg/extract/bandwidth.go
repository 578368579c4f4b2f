package extract

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"regexp"
	"strconv"

	"github.com/ccollicutt/logmatrix/pkg/matrix"
	"github.com/ccollicutt/logmatrix/pkg/parser"
)

var defaultBandwidthPattern = regexp.MustCompile(DefaultBandwidthPattern)

// BandwidthBuilder assembles a symmetric N×N bandwidth matrix from
// measurement lines. Feed it lines with Process, then call Finalize.
type BandwidthBuilder struct {
	size      int
	pattern   *regexp.Regexp
	extractor *parser.PatternExtractor
	policy    DevicePolicy
	strict    bool
	logger    *slog.Logger

	m     *matrix.Dense
	stats BandwidthStats
}

// BandwidthOption configures a BandwidthBuilder.
type BandwidthOption func(*BandwidthBuilder)

// WithBandwidthPattern replaces the measurement pattern. The pattern must
// capture source device, destination device and value, in that order.
func WithBandwidthPattern(re *regexp.Regexp) BandwidthOption {
	return func(b *BandwidthBuilder) {
		if re != nil {
			b.pattern = re
		}
	}
}

// WithDevicePolicy sets the out-of-range device policy.
func WithDevicePolicy(p DevicePolicy) BandwidthOption {
	return func(b *BandwidthBuilder) {
		if p != "" {
			b.policy = p
		}
	}
}

// WithStrict makes a malformed measurement value fail the matrix instead of
// being skipped.
func WithStrict(strict bool) BandwidthOption {
	return func(b *BandwidthBuilder) {
		b.strict = strict
	}
}

// WithBandwidthLogger sets the logger used for skipped measurements.
func WithBandwidthLogger(l *slog.Logger) BandwidthOption {
	return func(b *BandwidthBuilder) {
		if l != nil {
			b.logger = l
		}
	}
}

// NewBandwidthBuilder creates a builder for a size×size matrix.
func NewBandwidthBuilder(size int, opts ...BandwidthOption) (*BandwidthBuilder, error) {
	if size <= 0 || size > MaxDeviceCount {
		return nil, fmt.Errorf("%w: %d (must be 1..%d)", ErrInvalidSize, size, MaxDeviceCount)
	}

	b := &BandwidthBuilder{
		size:    size,
		pattern: defaultBandwidthPattern,
		policy:  DevicePolicyDrop,
		logger:  slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(b)
	}

	switch b.policy {
	case DevicePolicyDrop, DevicePolicyReject:
	default:
		return nil, fmt.Errorf("invalid device policy %q (must be drop or reject)", b.policy)
	}

	ex, err := parser.NewPatternExtractor(b.pattern, 3)
	if err != nil {
		return nil, fmt.Errorf("bandwidth pattern: %w", err)
	}
	b.extractor = ex

	if err := b.Reset(); err != nil {
		return nil, err
	}
	return b, nil
}

// Process applies every measurement found on line. Later measurements of
// the same device pair overwrite earlier ones.
func (b *BandwidthBuilder) Process(ctx context.Context, line *parser.LogLine) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	b.stats.LinesProcessed++

	for _, caps := range b.extractor.ExtractAll(line.Content) {
		b.stats.Measurements++
		if err := b.apply(line, caps[0], caps[1], caps[2]); err != nil {
			return err
		}
	}
	return nil
}

func (b *BandwidthBuilder) apply(line *parser.LogLine, srcTok, dstTok, valueTok string) error {
	src, srcErr := strconv.Atoi(srcTok)
	dst, dstErr := strconv.Atoi(dstTok)

	// Overflowing indices are out of range, anything else is malformed.
	if srcErr != nil && !errors.Is(srcErr, strconv.ErrRange) {
		return b.malformed(line, srcTok, dstTok, srcTok)
	}
	if dstErr != nil && !errors.Is(dstErr, strconv.ErrRange) {
		return b.malformed(line, srcTok, dstTok, dstTok)
	}

	if srcErr != nil || dstErr != nil || !b.inRange(src) || !b.inRange(dst) {
		uerr := &UnsupportedDeviceError{
			Source: line.Source,
			Line:   line.LineNum,
			Src:    srcTok,
			Dst:    dstTok,
			Size:   b.size,
		}
		if b.policy == DevicePolicyReject {
			return uerr
		}
		b.stats.Dropped++
		b.logger.Warn("dropping bandwidth measurement for unsupported device",
			"source", line.Source, "line", line.LineNum,
			"src", srcTok, "dst", dstTok, "device_count", b.size)
		return nil
	}

	value, err := parser.ParseValue(valueTok)
	if err != nil {
		return b.malformed(line, srcTok, dstTok, valueTok)
	}

	if err := b.m.SetSymmetric(src, dst, value); err != nil {
		return fmt.Errorf("%s:%d: %w", line.Source, line.LineNum, err)
	}
	b.stats.Applied++
	return nil
}

func (b *BandwidthBuilder) malformed(line *parser.LogLine, src, dst, token string) error {
	merr := &MalformedTokenError{
		Source: line.Source,
		Line:   line.LineNum,
		Token:  token,
		Src:    src,
		Dst:    dst,
	}
	if b.strict {
		return merr
	}
	b.stats.Malformed++
	b.logger.Warn("skipping malformed bandwidth measurement",
		"source", line.Source, "line", line.LineNum,
		"src", src, "dst", dst, "token", token)
	return nil
}

func (b *BandwidthBuilder) inRange(i int) bool {
	return i >= 0 && i < b.size
}

// Finalize returns the assembled matrix. The builder keeps its state; call
// Reset to reuse it.
func (b *BandwidthBuilder) Finalize(ctx context.Context) (*BandwidthMatrix, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return &BandwidthMatrix{
		Size:   b.size,
		Matrix: b.m.Clone(),
		Stats:  b.stats,
	}, nil
}

// Reset clears all measurements.
func (b *BandwidthBuilder) Reset() error {
	m, err := matrix.NewSquare(b.size)
	if err != nil {
		return fmt.Errorf("bandwidth matrix: %w", err)
	}
	b.m = m
	b.stats = BandwidthStats{}
	return nil
}

// BuildBandwidth scans doc once and returns its bandwidth matrix.
func BuildBandwidth(ctx context.Context, doc *parser.Document, size int, opts ...BandwidthOption) (*BandwidthMatrix, error) {
	b, err := NewBandwidthBuilder(size, opts...)
	if err != nil {
		return nil, err
	}

	src := doc.Source()
	defer src.Close()

	for {
		line, err := src.Next(ctx)
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		if err := b.Process(ctx, line); err != nil {
			return nil, err
		}
	}
	return b.Finalize(ctx)
}
