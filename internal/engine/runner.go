package engine

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

// Sink receives every rendered frame of a headless run.
type Sink interface {
	WriteFrame(tick uint64, img *image.RGBA) error
}

// Background is a companion loop started and stopped with the runner, such
// as the audio analysis producer.
type Background interface {
	Run(ctx context.Context) error
}

// PNGSink writes every Nth frame to dir as frame-<tick>.png.
type PNGSink struct {
	logger  *zap.Logger
	dir     string
	every   uint64
	written int
}

// NewPNGSink creates dir if needed. every below 1 writes every frame.
func NewPNGSink(logger *zap.Logger, dir string, every int) (*PNGSink, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating frame directory: %w", err)
	}
	return &PNGSink{logger: logger.Named("png"), dir: dir, every: uint64(max(every, 1))}, nil
}

// WriteFrame encodes img when tick falls on the sink's stride.
func (s *PNGSink) WriteFrame(tick uint64, img *image.RGBA) error {
	if tick%s.every != 0 {
		return nil
	}
	path := filepath.Join(s.dir, fmt.Sprintf("frame-%06d.png", tick))
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := png.Encode(f, img); err != nil {
		f.Close()
		return fmt.Errorf("encoding %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return err
	}
	s.written++
	s.logger.Debug("Frame written", zap.String("path", path))
	return nil
}

// Written returns the number of files written so far.
func (s *PNGSink) Written() int { return s.written }

// RunnerConfig paces a headless run.
type RunnerConfig struct {
	// Frames stops the run after that many rendered frames; 0 runs until
	// the context is cancelled.
	Frames int
	// TPS is the target tick rate.
	TPS int
	// StatsInterval logs pipeline stats periodically; 0 disables it.
	StatsInterval time.Duration
}

// Runner drives a pipeline without a window.
type Runner struct {
	logger     *zap.Logger
	pipeline   *Pipeline
	background Background
	sink       Sink
	cfg        RunnerConfig
}

// NewRunner wires a headless loop. background and sink may be nil.
func NewRunner(logger *zap.Logger, pipeline *Pipeline, background Background, sink Sink, cfg RunnerConfig) (*Runner, error) {
	if pipeline == nil {
		return nil, errors.New("runner needs a pipeline")
	}
	if cfg.TPS <= 0 {
		return nil, fmt.Errorf("tick rate must be positive, got %d", cfg.TPS)
	}
	if cfg.Frames < 0 {
		return nil, fmt.Errorf("frame count must be non-negative, got %d", cfg.Frames)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Runner{
		logger:     logger.Named("runner"),
		pipeline:   pipeline,
		background: background,
		sink:       sink,
		cfg:        cfg,
	}, nil
}

// Run ticks until the frame budget is spent or ctx is cancelled. The
// background loop is stopped before Run returns. Cancellation is not an
// error.
func (r *Runner) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)
	loopCtx, stop := context.WithCancel(gctx)
	defer stop()

	if r.background != nil {
		g.Go(func() error { return r.background.Run(loopCtx) })
	}
	g.Go(func() error {
		defer stop()
		return r.loop(loopCtx)
	})
	return g.Wait()
}

func (r *Runner) loop(ctx context.Context) error {
	budget := time.Second / time.Duration(r.cfg.TPS)
	limiter := rate.NewLimiter(rate.Limit(r.cfg.TPS), 1)
	lastStats := time.Now()
	overran := false
	rendered := 0

	r.logger.Info("Headless run started",
		zap.Int("frames", r.cfg.Frames),
		zap.Int("tps", r.cfg.TPS))
	defer func() {
		r.pipeline.LogStats()
		r.logger.Info("Headless run finished", zap.Int("rendered", rendered))
	}()

	for r.cfg.Frames == 0 || rendered < r.cfg.Frames {
		// Wait only fails once ctx is done or its deadline falls inside the
		// next tick.
		if err := limiter.Wait(ctx); err != nil {
			return nil
		}
		if overran {
			overran = false
			r.pipeline.Skip()
			continue
		}

		start := time.Now()
		frame, err := r.pipeline.Tick()
		if err != nil {
			return err
		}
		if r.sink != nil {
			if err := r.sink.WriteFrame(frame.Tick, frame.Image); err != nil {
				return fmt.Errorf("writing frame %d: %w", frame.Tick, err)
			}
		}
		rendered++

		if elapsed := time.Since(start); elapsed > budget {
			overran = true
			r.logger.Debug("Frame overran its budget; skipping the next tick",
				zap.Duration("elapsed", elapsed),
				zap.Duration("budget", budget))
		}
		if r.cfg.StatsInterval > 0 && time.Since(lastStats) >= r.cfg.StatsInterval {
			r.pipeline.LogStats()
			lastStats = time.Now()
		}
	}
	return nil
}
