package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/ccollicutt/logmatrix/pkg/config"
	"github.com/ccollicutt/logmatrix/pkg/extract"
	"github.com/ccollicutt/logmatrix/pkg/matrixfile"
	"github.com/ccollicutt/logmatrix/pkg/parser"
)

// SinkFactory returns the sink that receives files for one output directory.
type SinkFactory func(outputDir string) matrixfile.Sink

// Runner extracts matrices from results directories.
type Runner struct {
	cfg *config.Config

	// Options
	logger      *slog.Logger
	dryRun      bool
	kinds       map[extract.Kind]bool // nil means all kinds
	sinkFactory SinkFactory
	configFile  string
}

// Option configures runner behavior.
type Option func(*Runner)

// WithLogger sets the diagnostics logger.
func WithLogger(l *slog.Logger) Option {
	return func(r *Runner) {
		if l != nil {
			r.logger = l
		}
	}
}

// WithDryRun extracts everything but keeps output in memory.
func WithDryRun(dry bool) Option {
	return func(r *Runner) {
		r.dryRun = dry
	}
}

// WithKinds limits extraction to the given matrix families.
func WithKinds(kinds []extract.Kind) Option {
	return func(r *Runner) {
		if len(kinds) > 0 {
			r.kinds = make(map[extract.Kind]bool)
			for _, k := range kinds {
				r.kinds[k] = true
			}
		}
	}
}

// WithSinkFactory replaces the sink used for writing files. It takes
// precedence over WithDryRun.
func WithSinkFactory(f SinkFactory) Option {
	return func(r *Runner) {
		r.sinkFactory = f
	}
}

// WithConfigFile records the configuration path in the result metadata.
func WithConfigFile(path string) Option {
	return func(r *Runner) {
		r.configFile = path
	}
}

// NewRunner creates a runner from a validated configuration.
func NewRunner(cfg *config.Config, opts ...Option) (*Runner, error) {
	if cfg == nil {
		return nil, errors.New("pipeline: nil config")
	}

	r := &Runner{
		cfg:    cfg,
		logger: slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(r)
	}

	for k := range r.kinds {
		if k != extract.KindTraffic && k != extract.KindBandwidth {
			return nil, fmt.Errorf("unknown matrix kind %q (must be traffic or bandwidth)", k)
		}
	}

	// Validate compiles the bandwidth pattern.
	if cfg.Bandwidth.CompiledPattern() == nil {
		if err := config.Validate(cfg); err != nil {
			return nil, fmt.Errorf("validating config: %w", err)
		}
	}
	// A compiled config may have been edited since it was validated.
	if cfg.DeviceCount <= 0 || cfg.DeviceCount > extract.MaxDeviceCount {
		return nil, fmt.Errorf("%w: %d (must be 1..%d)", extract.ErrInvalidSize, cfg.DeviceCount, extract.MaxDeviceCount)
	}

	if r.sinkFactory == nil {
		if r.dryRun {
			r.sinkFactory = func(dir string) matrixfile.Sink { return matrixfile.NewMemorySink(dir) }
		} else {
			r.sinkFactory = func(dir string) matrixfile.Sink { return matrixfile.NewDirSink(dir) }
		}
	}

	return r, nil
}

func (r *Runner) enabled(k extract.Kind) bool {
	return r.kinds == nil || r.kinds[k]
}

// OutputDir resolves where files for dir are written.
func (r *Runner) OutputDir(dir string) string {
	switch {
	case r.cfg.OutputDir == "":
		return dir
	case filepath.IsAbs(r.cfg.OutputDir):
		return r.cfg.OutputDir
	default:
		return filepath.Join(dir, r.cfg.OutputDir)
	}
}

// RunAll processes dirs one after another. A fatal error in one directory
// is recorded on its RunResult and the next directory still runs; only
// context cancellation stops the loop.
func (r *Runner) RunAll(ctx context.Context, dirs []string) (*Result, error) {
	result := &Result{
		Runs: make([]*RunResult, 0, len(dirs)),
		Metadata: Metadata{
			ConfigFile: r.configFile,
			DryRun:     r.dryRun,
			StartTime:  time.Now(),
		},
	}

	for _, dir := range dirs {
		run, err := r.Run(ctx, dir)
		result.Runs = append(result.Runs, run)
		if err != nil && ctx.Err() != nil {
			return nil, ctx.Err()
		}
	}

	result.Metadata.EndTime = time.Now()
	return result, nil
}

// Run extracts every enabled matrix family from one results directory. The
// returned RunResult is never nil; when err is non-nil it is also stored in
// RunResult.Err. Files written before a fatal error are kept.
func (r *Runner) Run(ctx context.Context, dir string) (*RunResult, error) {
	run := &RunResult{
		Dir:       dir,
		Input:     filepath.Join(dir, r.cfg.InputFile),
		OutputDir: r.OutputDir(dir),
		StartTime: time.Now(),
	}
	log := r.logger.With("dir", dir)

	err := r.run(ctx, run, log)
	run.EndTime = time.Now()
	if err != nil {
		run.Err = err
		log.Error("extraction failed", "error", err)
		return run, err
	}

	log.Info("extraction finished",
		"files", len(run.Files), "discarded", len(run.Discarded),
		"duration", run.EndTime.Sub(run.StartTime))
	return run, nil
}

func (r *Runner) run(ctx context.Context, run *RunResult, log *slog.Logger) error {
	doc, err := parser.ReadDocument(ctx, run.Input)
	if err != nil {
		return err
	}
	run.LinesRead = doc.Len()

	sink := r.sinkFactory(run.OutputDir)

	if r.enabled(extract.KindTraffic) {
		if err := r.runTraffic(ctx, doc, sink, run, log); err != nil {
			return err
		}
	}

	if r.enabled(extract.KindBandwidth) {
		if err := r.runBandwidth(ctx, doc, sink, run, log); err != nil {
			return err
		}
	}

	return nil
}

func (r *Runner) runTraffic(ctx context.Context, doc *parser.Document, sink matrixfile.Sink, run *RunResult, log *slog.Logger) error {
	records, failures, err := extract.CollectTraffic(ctx, doc,
		extract.WithMarker(r.cfg.Traffic.Marker),
		extract.WithTrafficLogger(log))
	if err != nil {
		return fmt.Errorf("scanning traffic matrices: %w", err)
	}

	if r.cfg.Strict && len(failures) > 0 {
		return fmt.Errorf("strict mode: %w", failures[0])
	}

	for _, ferr := range failures {
		d := Discard{Kind: extract.KindTraffic, Reason: ferr.Error(), Err: ferr}
		var recErr *extract.RecordError
		if errors.As(ferr, &recErr) {
			d.Epoch = recErr.Epoch
			d.Line = recErr.Line
			d.Reason = recErr.Err.Error()
		}
		run.Discarded = append(run.Discarded, d)
		log.Warn("discarding traffic matrix", "epoch", d.Epoch, "line", d.Line, "reason", d.Reason)
	}

	if len(records) == 0 && len(failures) == 0 {
		log.Info("no traffic matrices found", "marker", r.cfg.Traffic.Marker)
		return nil
	}

	ser := matrixfile.NewSerializer(r.cfg.TrafficPrecision())
	for _, rec := range records {
		name := matrixfile.TrafficFileName(r.cfg.Traffic.FileTemplate, rec.Epoch)
		if err := sink.WriteFile(ctx, name, ser.EncodeTraffic(rec)); err != nil {
			return err
		}
		run.Files = append(run.Files, WrittenFile{
			Kind:  extract.KindTraffic,
			Epoch: rec.Epoch,
			Name:  name,
			Path:  sink.Location(name),
			Rows:  rec.Matrix.Rows(),
			Cols:  rec.Matrix.Cols(),
		})
		log.Debug("wrote traffic matrix", "epoch", rec.Epoch, "path", sink.Location(name))
	}
	return nil
}

func (r *Runner) runBandwidth(ctx context.Context, doc *parser.Document, sink matrixfile.Sink, run *RunResult, log *slog.Logger) error {
	bm, err := extract.BuildBandwidth(ctx, doc, r.cfg.DeviceCount,
		extract.WithBandwidthPattern(r.cfg.Bandwidth.CompiledPattern()),
		extract.WithDevicePolicy(extract.DevicePolicy(r.cfg.Bandwidth.DevicePolicy)),
		extract.WithStrict(r.cfg.Strict),
		extract.WithBandwidthLogger(log))
	if err != nil {
		if !isRecordFailure(err) {
			return fmt.Errorf("building bandwidth matrix: %w", err)
		}
		if r.cfg.Strict {
			return fmt.Errorf("strict mode: %w", err)
		}
		run.Discarded = append(run.Discarded, Discard{
			Kind:   extract.KindBandwidth,
			Line:   failureLine(err),
			Reason: err.Error(),
			Err:    err,
		})
		log.Warn("discarding bandwidth matrix", "reason", err)
		return nil
	}

	stats := bm.Stats
	run.Bandwidth = &stats
	if stats.Measurements == 0 {
		log.Warn("no bandwidth measurements found, writing zero matrix", "device_count", bm.Size)
	}

	ser := matrixfile.NewSerializer(r.cfg.BandwidthPrecision())
	name := r.cfg.Bandwidth.FileName
	if err := sink.WriteFile(ctx, name, ser.Encode(bm.Matrix)); err != nil {
		return err
	}
	run.Files = append(run.Files, WrittenFile{
		Kind: extract.KindBandwidth,
		Name: name,
		Path: sink.Location(name),
		Rows: bm.Matrix.Rows(),
		Cols: bm.Matrix.Cols(),
	})
	log.Debug("wrote bandwidth matrix", "path", sink.Location(name))
	return nil
}

// isRecordFailure reports whether err invalidates only the matrix being
// built rather than the whole run.
func isRecordFailure(err error) bool {
	return errors.Is(err, extract.ErrUnsupportedDevice) || errors.Is(err, extract.ErrMalformedToken)
}

func failureLine(err error) int {
	var uerr *extract.UnsupportedDeviceError
	if errors.As(err, &uerr) {
		return uerr.Line
	}
	var merr *extract.MalformedTokenError
	if errors.As(err, &merr) {
		return merr.Line
	}
	return 0
}
