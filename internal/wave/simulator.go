// Package wave integrates the damped 2D wave equation on a square grid with a
// leapfrog scheme over two ping-pong buffers.
package wave

import (
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/Sonified/cymatics-ifft-simulation/internal/grid"
)

// MinResolution is the smallest grid that still has an interior.
const MinResolution = 3

// Options selects the execution backend.
type Options struct {
	// Backend is BackendCPU (default) or BackendOpenCL.
	Backend string
	// Workers is the CPU worker count; zero means runtime.NumCPU().
	Workers int
}

// StepResult reports the outcome of one tick. Heights aliases the simulator's
// current buffer and is only valid until the next Step, Resize or Reset.
type StepResult struct {
	Stable  bool
	Heights grid.Field
	Peak    float32
	Tick    uint64
}

// Simulator owns the height grid. Step, Reconfigure, Resize and Reset are
// serialized; callers must not write into the returned views.
type Simulator struct {
	mu     sync.Mutex
	logger *zap.Logger

	params Params
	coeffs coefficients
	field  *heightGrid
	gain   []float32
	kernel kernel
	dirty  bool

	ticks    uint64
	unstable uint64
	// divergeLog keeps a CFL-violating run from flooding the log.
	divergeLog rate.Sometimes
}

// New allocates a zeroed size×size grid and starts the selected backend.
func New(logger *zap.Logger, size int, params Params, opts Options) (*Simulator, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if size < MinResolution {
		return nil, fmt.Errorf("%w: resolution must be at least %d, got %d", ErrInvalidParams, MinResolution, size)
	}
	if err := params.Validate(); err != nil {
		return nil, err
	}
	k, err := newKernel(opts.Backend, opts.Workers)
	if err != nil {
		return nil, err
	}
	s := &Simulator{
		logger: logger.Named("wave"),
		field:  newHeightGrid(size),
		kernel: k,

		divergeLog: rate.Sometimes{First: 5, Interval: 5 * time.Second},
	}
	if err := s.apply(params); err != nil {
		k.close()
		return nil, err
	}
	s.logger.Info("Simulator ready",
		zap.String("backend", k.name()),
		zap.Int("resolution", size),
		zap.Float64("courant", params.Courant()))
	return s, nil
}

// apply installs params and rebuilds the boundary gain. Callers hold mu or
// own s exclusively.
func (s *Simulator) apply(params Params) error {
	gain := buildGain(s.field.size, params)
	if err := s.kernel.configure(s.field.size, gain, buildRowMasks(s.field.size, gain)); err != nil {
		return fmt.Errorf("configuring %s backend: %w", s.kernel.name(), err)
	}
	zeroWalled(gain, s.field.buffers[0], s.field.buffers[1])
	s.gain = gain
	s.params = params
	s.coeffs = params.coefficients()
	s.dirty = true
	if !params.WithinCFL() {
		s.logger.Warn("Courant number exceeds stability limit; expect divergence resets",
			zap.Float64("courant", params.Courant()),
			zap.Float64("limit", CFLLimit))
	}
	return nil
}

// Reconfigure swaps in new parameters without clearing the field. Cells that
// become walled are zeroed. On error the previous parameters stay active.
func (s *Simulator) Reconfigure(params Params) error {
	if err := params.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.apply(params)
}

// Resize reallocates the grid at a new resolution and zero-resets it.
func (s *Simulator) Resize(size int) error {
	if size < MinResolution {
		return fmt.Errorf("%w: resolution must be at least %d, got %d", ErrInvalidParams, MinResolution, size)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if size == s.field.size {
		s.field.zero()
		s.dirty = true
		return nil
	}
	old := s.field
	s.field = newHeightGrid(size)
	if err := s.apply(s.params); err != nil {
		s.field = old
		if rerr := s.apply(s.params); rerr != nil {
			s.logger.Error("Restoring previous grid failed", zap.Error(rerr))
		}
		return err
	}
	s.logger.Info("Grid reallocated", zap.Int("resolution", size))
	return nil
}

// Reset zeroes the whole field.
func (s *Simulator) Reset() {
	s.mu.Lock()
	s.field.zero()
	s.dirty = true
	s.mu.Unlock()
}

// Step advances the field by one tick. force must have the grid's shape;
// anything else is a programming error and panics.
func (s *Simulator) Step(force grid.Field) StepResult {
	s.mu.Lock()
	defer s.mu.Unlock()

	if force.Size != s.field.size || len(force.Values) != s.field.size*s.field.size {
		panic(fmt.Sprintf("wave: force field %dx%d does not match grid %dx%d",
			force.Size, force.Size, s.field.size, s.field.size))
	}

	stats, err := s.kernel.step(stepJob{
		size:    s.field.size,
		buffers: s.field.buffers,
		cur:     s.field.cur,
		force:   force.Values,
		gain:    s.gain,
		coeffs:  s.coeffs,
		dirty:   s.dirty,
	})
	s.dirty = false
	s.field.swap()
	s.ticks++

	if err != nil || stats.nan || float64(stats.peak) >= s.params.DivergenceThreshold {
		s.unstable++
		fields := []zap.Field{
			zap.Uint64("tick", s.ticks),
			zap.Float32("peak", stats.peak),
			zap.Bool("nan", stats.nan),
			zap.Uint64("unstable_total", s.unstable),
		}
		if err != nil {
			fields = append(fields, zap.Error(err))
		}
		s.divergeLog.Do(func() { s.logger.Warn("Field diverged; resetting to flat", fields...) })
		s.field.zero()
		s.dirty = true
		return StepResult{Stable: false, Heights: s.field.view(), Tick: s.ticks}
	}
	return StepResult{Stable: true, Heights: s.field.view(), Peak: stats.peak, Tick: s.ticks}
}

// View returns the current buffer.
func (s *Simulator) View() grid.Field {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.field.view()
}

// Size returns the grid resolution.
func (s *Simulator) Size() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.field.size
}

// Params returns the active parameters.
func (s *Simulator) Params() Params {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.params
}

// Stats returns the tick counter and the number of divergence resets.
func (s *Simulator) Stats() (ticks, unstable uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ticks, s.unstable
}

// Tick returns the number of steps taken since New.
func (s *Simulator) Tick() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ticks
}

// Energy returns the discrete leapfrog energy
//
//	E = |u|^2 - d*u.(A p) + d*|p|^2,  A = 2I + nu^2 L
//
// of the current (u) and previous (p) buffers. Without forcing and with
// zero-gain walls it shrinks by exactly the damping factor every tick, and it
// is positive definite while the Courant number respects CFLLimit.
func (s *Simulator) Energy() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := s.field.size
	u := s.field.current()
	p := s.field.previous()
	nu := s.params.Courant()
	lambda2 := nu * nu
	d := s.params.Damping

	var uu, pp, uap float64
	for y := 0; y < n; y++ {
		for x := 0; x < n; x++ {
			i := y*n + x
			ui := float64(u[i])
			pi := float64(p[i])
			uu += ui * ui
			pp += pi * pi
			if ui == 0 {
				continue
			}
			lap := -4 * pi
			if x+1 < n {
				lap += float64(p[i+1])
			}
			if x > 0 {
				lap += float64(p[i-1])
			}
			if y > 0 {
				lap += float64(p[i-n])
			}
			if y+1 < n {
				lap += float64(p[i+n])
			}
			uap += ui * (2*pi + lambda2*lap)
		}
	}
	return uu - d*uap + d*pp
}

// Close stops the backend. The simulator must not be used afterwards.
func (s *Simulator) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.kernel != nil {
		s.kernel.close()
		s.kernel = nil
	}
}
