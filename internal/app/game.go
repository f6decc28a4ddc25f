// Package app is the interactive ebiten front end around an engine.Pipeline.
package app

import (
	"context"
	"image"
	"time"

	"github.com/hajimehoshi/ebiten/v2"
	"go.uber.org/zap"

	"github.com/Sonified/cymatics-ifft-simulation/internal/engine"
)

// Options configures the window.
type Options struct {
	TPS         int
	WindowScale int
	Debug       bool
	Title       string
}

// Game implements ebiten.Game: one pipeline tick per Update, the last frame
// blitted in Draw.
type Game struct {
	ctx      context.Context
	logger   *zap.Logger
	pipeline *engine.Pipeline
	opts     Options

	frame   engine.Frame
	canvas  *ebiten.Image
	budget  time.Duration
	overran bool
	lastSim time.Duration
	debug   bool
}

// New wires a game. Update returns ebiten.Termination once ctx is done.
func New(ctx context.Context, logger *zap.Logger, pipeline *engine.Pipeline, opts Options) *Game {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.TPS <= 0 {
		opts.TPS = ebiten.DefaultTPS
	}
	if opts.WindowScale < 1 {
		opts.WindowScale = 1
	}
	if opts.Title == "" {
		opts.Title = "Cymatics"
	}
	return &Game{
		ctx:      ctx,
		logger:   logger.Named("app"),
		pipeline: pipeline,
		opts:     opts,
		budget:   time.Second / time.Duration(opts.TPS),
		debug:    opts.Debug,
	}
}

// Run opens the window and blocks until it is closed or ctx is done.
func Run(g *Game) error {
	size := g.pipeline.Resolution()
	ebiten.SetWindowSize(size*g.opts.WindowScale, size*g.opts.WindowScale)
	ebiten.SetWindowTitle(g.opts.Title)
	ebiten.SetWindowResizingMode(ebiten.WindowResizingModeEnabled)
	ebiten.SetTPS(g.opts.TPS)
	g.logger.Info("Window opened",
		zap.Int("resolution", size),
		zap.Int("scale", g.opts.WindowScale),
		zap.Int("tps", g.opts.TPS))
	return ebiten.RunGame(g)
}

// Update handles input and advances the pipeline one tick. A tick that
// overran its budget makes the next one skip, keeping the last frame.
func (g *Game) Update() error {
	select {
	case <-g.ctx.Done():
		return ebiten.Termination
	default:
	}

	g.handleControls()

	if g.overran {
		g.overran = false
		g.pipeline.Skip()
		return nil
	}

	start := time.Now()
	frame, err := g.pipeline.Tick()
	if err != nil {
		return err
	}
	g.frame = frame
	g.lastSim = time.Since(start)
	if g.lastSim > g.budget {
		g.overran = true
	}
	return nil
}

// Layout keeps the logical screen at the grid resolution.
func (g *Game) Layout(_, _ int) (int, int) {
	if g.frame.Image != nil {
		b := g.frame.Image.Bounds()
		return b.Dx(), b.Dy()
	}
	size := g.pipeline.Resolution()
	return size, size
}

// ensureCanvas matches the offscreen image to the frame size.
func (g *Game) ensureCanvas(bounds image.Rectangle) *ebiten.Image {
	if g.canvas != nil && g.canvas.Bounds().Size() == bounds.Size() {
		return g.canvas
	}
	if g.canvas != nil {
		g.canvas.Deallocate()
	}
	g.canvas = ebiten.NewImage(bounds.Dx(), bounds.Dy())
	return g.canvas
}
