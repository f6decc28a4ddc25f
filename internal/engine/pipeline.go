// Package engine runs the per-frame loop: pull the newest audio frame,
// synthesize the force field, step the wave field and shade it.
package engine

import (
	"fmt"
	"image"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/Sonified/cymatics-ifft-simulation/internal/config"
	"github.com/Sonified/cymatics-ifft-simulation/internal/forcing"
	"github.com/Sonified/cymatics-ifft-simulation/internal/grid"
	"github.com/Sonified/cymatics-ifft-simulation/internal/spectrum"
	"github.com/Sonified/cymatics-ifft-simulation/internal/surface"
	"github.com/Sonified/cymatics-ifft-simulation/internal/wave"
)

// Stats summarizes the pipeline since it was created.
type Stats struct {
	Ticks      uint64
	Unstable   uint64
	Skipped    uint64
	StaleTicks int
	Peak       float32
	LastStep   time.Duration
	LastRender time.Duration
}

// Frame is the outcome of one tick. Image is owned by the pipeline and is
// only valid until the next Tick.
type Frame struct {
	Image  *image.RGBA
	Tick   uint64
	Stable bool
	Peak   float32
}

// settings is a configuration converted into the domain parameter types.
type settings struct {
	resolution int
	wave       wave.Params
	options    wave.Options
	forcing    forcing.Params
	sources    []forcing.Source
	render     surface.Params
}

func newSettings(cfg *config.Config) (settings, error) {
	if err := cfg.Validate(); err != nil {
		return settings{}, err
	}
	wp, err := cfg.Simulation.WaveParams()
	if err != nil {
		return settings{}, err
	}
	fp, err := cfg.ForcingParams()
	if err != nil {
		return settings{}, err
	}
	sources, err := cfg.Forcing.SourceList()
	if err != nil {
		return settings{}, err
	}
	rp, err := cfg.Render.RenderParams()
	if err != nil {
		return settings{}, err
	}
	return settings{
		resolution: cfg.Simulation.Resolution,
		wave:       wp,
		options:    cfg.Simulation.WaveOptions(),
		forcing:    fp,
		sources:    sources,
		render:     rp,
	}, nil
}

// Pipeline owns one simulator, one synthesizer and the frame buffer. All
// methods are safe for concurrent use; Tick and Apply are serialized.
type Pipeline struct {
	mu     sync.Mutex
	logger *zap.Logger
	source spectrum.Source

	sim   *wave.Simulator
	synth *forcing.Synthesizer
	cur   settings
	img   *image.RGBA

	paused bool
	stats  Stats
}

// New builds a pipeline from a validated configuration. source may be nil,
// in which case the plate is never driven.
func New(logger *zap.Logger, cfg *config.Config, source spectrum.Source) (*Pipeline, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	st, err := newSettings(cfg)
	if err != nil {
		return nil, err
	}
	sim, err := wave.New(logger, st.resolution, st.wave, st.options)
	if err != nil {
		return nil, fmt.Errorf("creating simulator: %w", err)
	}
	return &Pipeline{
		logger: logger.Named("engine"),
		source: source,
		sim:    sim,
		synth:  forcing.NewSynthesizer(logger, st.resolution),
		cur:    st,
		img:    image.NewRGBA(image.Rect(0, 0, st.resolution, st.resolution)),
	}, nil
}

// Tick runs one simulation step and one render. While paused the field is
// left alone and only re-shaded.
func (p *Pipeline) Tick() (Frame, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	result := wave.StepResult{Stable: true, Heights: p.sim.View(), Tick: p.sim.Tick()}
	if !p.paused {
		var frame *spectrum.Frame
		if p.source != nil {
			frame = p.source.Pull()
		}
		start := time.Now()
		force := p.synth.Synthesize(frame, p.cur.sources, p.cur.forcing)
		result = p.sim.Step(force)
		p.stats.LastStep = time.Since(start)
		p.stats.Ticks++
		p.stats.StaleTicks = p.synth.StaleTicks()
		p.stats.Peak = result.Peak
		if !result.Stable {
			p.stats.Unstable++
		}
	}

	start := time.Now()
	if err := surface.ShadeInto(p.img, result.Heights, p.cur.render); err != nil {
		return Frame{}, fmt.Errorf("shading tick %d: %w", result.Tick, err)
	}
	p.stats.LastRender = time.Since(start)

	return Frame{Image: p.img, Tick: result.Tick, Stable: result.Stable, Peak: result.Peak}, nil
}

// Skip records a tick dropped because the previous one overran its budget.
// The last rendered image stays current.
func (p *Pipeline) Skip() {
	p.mu.Lock()
	p.stats.Skipped++
	p.mu.Unlock()
}

// Apply swaps in a new configuration between ticks. A resolution change
// reallocates and zero-resets the grid; every other change keeps the field.
// On error the previous configuration stays active.
func (p *Pipeline) Apply(cfg *config.Config) error {
	st, err := newSettings(cfg)
	if err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.sim.Reconfigure(st.wave); err != nil {
		return fmt.Errorf("reconfiguring simulator: %w", err)
	}
	if st.resolution != p.cur.resolution {
		if err := p.sim.Resize(st.resolution); err != nil {
			if rerr := p.sim.Reconfigure(p.cur.wave); rerr != nil {
				p.logger.Error("Restoring previous simulation parameters failed", zap.Error(rerr))
			}
			return fmt.Errorf("resizing grid: %w", err)
		}
		p.synth.Resize(st.resolution)
		p.img = image.NewRGBA(image.Rect(0, 0, st.resolution, st.resolution))
	}
	if st.options != p.cur.options {
		p.logger.Warn("Backend changes take effect on restart",
			zap.String("backend", st.options.Backend),
			zap.Int("workers", st.options.Workers))
	}
	p.cur = st

	p.logger.Info("Configuration applied",
		zap.Int("resolution", st.resolution),
		zap.Float64("courant", st.wave.Courant()),
		zap.Stringer("boundary", st.wave.Boundary),
		zap.Stringer("forcing", st.forcing.Mode),
		zap.Stringer("render", st.render.Mode),
		zap.Int("sources", len(st.sources)))
	return nil
}

// Reset flattens the field and forgets the last audio frame.
func (p *Pipeline) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.sim.Reset()
	p.synth.Reset()
	p.logger.Info("Field reset")
}

// SetPaused stops or resumes the simulation. Rendering continues.
func (p *Pipeline) SetPaused(paused bool) {
	p.mu.Lock()
	p.paused = paused
	p.mu.Unlock()
}

// Paused reports whether the simulation is paused.
func (p *Pipeline) Paused() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.paused
}

// CycleMode switches to the next visualization mode. Reflection is skipped
// when no environment map is configured.
func (p *Pipeline) CycleMode() surface.Mode {
	p.mu.Lock()
	defer p.mu.Unlock()
	next := p.cur.render.Mode.Next()
	if next == surface.ModeReflection && p.cur.render.Env == nil {
		next = next.Next()
	}
	p.cur.render.Mode = next
	return next
}

// Mode returns the active visualization mode.
func (p *Pipeline) Mode() surface.Mode {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.cur.render.Mode
}

// ScaleForce multiplies the force strength by factor and returns the new
// strength.
func (p *Pipeline) ScaleForce(factor float64) float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	if factor > 0 {
		p.cur.forcing.ForceStrength *= factor
	}
	return p.cur.forcing.ForceStrength
}

// ForceStrength returns the active force strength.
func (p *Pipeline) ForceStrength() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.cur.forcing.ForceStrength
}

// Sources returns a copy of the sources with this tick's amplitudes.
func (p *Pipeline) Sources() []forcing.Source {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]forcing.Source(nil), p.cur.sources...)
}

// Snapshot copies the current height field.
func (p *Pipeline) Snapshot() grid.Field {
	p.mu.Lock()
	defer p.mu.Unlock()
	view := p.sim.View()
	out := grid.New(view.Size)
	copy(out.Values, view.Values)
	return out
}

// Resolution returns the grid size.
func (p *Pipeline) Resolution() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.cur.resolution
}

// Energy returns the simulator's discrete energy.
func (p *Pipeline) Energy() float64 {
	return p.sim.Energy()
}

// Stats returns a copy of the counters.
func (p *Pipeline) Stats() Stats {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.stats
}

// LogStats writes the counters at info level.
func (p *Pipeline) LogStats() {
	s := p.Stats()
	p.logger.Info("Pipeline stats",
		zap.Uint64("ticks", s.Ticks),
		zap.Uint64("unstable", s.Unstable),
		zap.Uint64("skipped", s.Skipped),
		zap.Int("stale_ticks", s.StaleTicks),
		zap.Float32("peak", s.Peak),
		zap.Duration("last_step", s.LastStep),
		zap.Duration("last_render", s.LastRender))
}

// Close stops the simulator's workers.
func (p *Pipeline) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.sim.Close()
}
