package engine

import (
	"context"
	"image"
	"math"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap/zaptest"

	"github.com/Sonified/cymatics-ifft-simulation/internal/config"
	"github.com/Sonified/cymatics-ifft-simulation/internal/spectrum"
	"github.com/Sonified/cymatics-ifft-simulation/internal/surface"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// steadySource returns the same frame on every pull.
type steadySource struct{ frame *spectrum.Frame }

func (s steadySource) Pull() *spectrum.Frame { return s.frame }

func smallConfig(resolution int) *config.Config {
	cfg := config.NewDefaultConfig()
	cfg.Simulation.Resolution = resolution
	cfg.Simulation.Workers = 2
	cfg.Render.Workers = 2
	return cfg
}

func newTestPipeline(t *testing.T, cfg *config.Config, source spectrum.Source) *Pipeline {
	t.Helper()
	p, err := New(zaptest.NewLogger(t), cfg, source)
	require.NoError(t, err)
	t.Cleanup(p.Close)
	return p
}

func TestPipeline_TickDrivesAndRenders(t *testing.T) {
	frame := &spectrum.Frame{Amplitudes: []float64{1}, Level: 1}
	p := newTestPipeline(t, smallConfig(33), steadySource{frame})

	var last Frame
	for i := 0; i < 10; i++ {
		var err error
		last, err = p.Tick()
		require.NoError(t, err)
		require.True(t, last.Stable)
	}
	assert.Equal(t, uint64(10), last.Tick)
	assert.Equal(t, image.Rect(0, 0, 33, 33), last.Image.Bounds())
	assert.Greater(t, last.Peak, float32(0))

	stats := p.Stats()
	assert.Equal(t, uint64(10), stats.Ticks)
	assert.Zero(t, stats.Unstable)
	assert.Zero(t, stats.StaleTicks)

	sources := p.Sources()
	require.Len(t, sources, 1)
	assert.Equal(t, 1.0, sources[0].Amplitude)
}

func TestPipeline_NilSourceStaysFlat(t *testing.T) {
	p := newTestPipeline(t, smallConfig(17), nil)
	for i := 0; i < 5; i++ {
		f, err := p.Tick()
		require.NoError(t, err)
		assert.Zero(t, f.Peak)
	}
	peak, _ := p.Snapshot().MaxAbs()
	assert.Zero(t, peak)
}

func TestPipeline_MirroredSourcesGiveMirroredField(t *testing.T) {
	const n = 65
	cfg := smallConfig(n)
	cfg.Forcing.Sources = []config.SourceConfig{
		{Position: []float64{0.3, 0.5}},
		{Position: []float64{0.7, 0.5}},
	}
	frame := &spectrum.Frame{Amplitudes: []float64{0.8}, Level: 0.8}
	p := newTestPipeline(t, cfg, steadySource{frame})

	for i := 0; i < 60; i++ {
		_, err := p.Tick()
		require.NoError(t, err)
	}
	h := p.Snapshot()
	peak, ok := h.MaxAbs()
	require.True(t, ok)
	require.Greater(t, peak, float32(0))

	tol := 1e-4 * float64(peak)
	for y := 0; y < n; y++ {
		for x := 0; x < n/2; x++ {
			left, right := h.At(x, y), h.At(n-1-x, y)
			if math.Abs(float64(left-right)) > tol {
				t.Fatalf("cell (%d,%d)=%g but mirror (%d,%d)=%g", x, y, left, n-1-x, y, right)
			}
		}
	}
}

func TestPipeline_PauseKeepsFieldAndStillRenders(t *testing.T) {
	frame := &spectrum.Frame{Level: 1}
	p := newTestPipeline(t, smallConfig(25), steadySource{frame})
	_, err := p.Tick()
	require.NoError(t, err)
	before := p.Snapshot()

	p.SetPaused(true)
	assert.True(t, p.Paused())
	f, err := p.Tick()
	require.NoError(t, err)
	assert.Equal(t, uint64(1), f.Tick)
	assert.Equal(t, before.Values, p.Snapshot().Values)
	assert.Equal(t, uint64(1), p.Stats().Ticks)

	p.SetPaused(false)
	f, err = p.Tick()
	require.NoError(t, err)
	assert.Equal(t, uint64(2), f.Tick)
}

func TestPipeline_ApplyResizesAndRejectsInvalid(t *testing.T) {
	frame := &spectrum.Frame{Level: 1}
	cfg := smallConfig(33)
	p := newTestPipeline(t, cfg, steadySource{frame})
	for i := 0; i < 3; i++ {
		_, err := p.Tick()
		require.NoError(t, err)
	}

	damped := smallConfig(33)
	damped.Simulation.Damping = 0.9
	require.NoError(t, p.Apply(damped))
	peak, _ := p.Snapshot().MaxAbs()
	assert.Greater(t, peak, float32(0), "same resolution keeps the field")

	bigger := smallConfig(41)
	require.NoError(t, p.Apply(bigger))
	assert.Equal(t, 41, p.Resolution())
	peak, _ = p.Snapshot().MaxAbs()
	assert.Zero(t, peak, "a resolution change zero-resets")
	f, err := p.Tick()
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 41, 41), f.Image.Bounds())

	bad := smallConfig(17)
	bad.Simulation.Dt = 0
	err = p.Apply(bad)
	require.ErrorIs(t, err, config.ErrInvalid)
	assert.Equal(t, 41, p.Resolution(), "previous configuration stays active")
}

func TestPipeline_ControlsAndReset(t *testing.T) {
	cfg := smallConfig(17)
	p := newTestPipeline(t, cfg, steadySource{&spectrum.Frame{Level: 1}})

	assert.Equal(t, surface.ModeReflection, p.Mode())
	assert.Equal(t, surface.ModeHeight, p.CycleMode())
	assert.Equal(t, surface.ModeNormal, p.CycleMode())
	assert.Equal(t, surface.ModeReflection, p.CycleMode())

	strength := p.ScaleForce(2)
	assert.InDelta(t, 2*cfg.Forcing.ForceStrength, strength, 1e-12)
	assert.Equal(t, strength, p.ScaleForce(0), "non-positive factors are ignored")
	assert.Equal(t, strength, p.ForceStrength())

	_, err := p.Tick()
	require.NoError(t, err)
	p.Reset()
	peak, _ := p.Snapshot().MaxAbs()
	assert.Zero(t, peak)

	p.Skip()
	assert.Equal(t, uint64(1), p.Stats().Skipped)
}

func TestPipeline_CycleSkipsReflectionWithoutEnvironment(t *testing.T) {
	cfg := smallConfig(17)
	cfg.Render.VisualizationMode = "normal"
	cfg.Render.Environment = "none"
	p := newTestPipeline(t, cfg, nil)

	assert.Equal(t, surface.ModeHeight, p.CycleMode())
	assert.Equal(t, surface.ModeNormal, p.CycleMode())
}

// memorySink records the ticks it was handed.
type memorySink struct {
	mu    sync.Mutex
	ticks []uint64
}

func (s *memorySink) WriteFrame(tick uint64, _ *image.RGBA) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ticks = append(s.ticks, tick)
	return nil
}

func TestRunner_RendersFrameBudget(t *testing.T) {
	logger := zaptest.NewLogger(t)
	slot := spectrum.NewSlot()
	track := spectrum.Sine(8000, 220, 0.5, time.Second)
	analyzer, err := spectrum.NewAnalyzer(spectrum.AnalyzerConfig{
		SampleRate: 8000, FFTSize: 256, Bands: 8, MinHz: 50, MaxHz: 2000,
	})
	require.NoError(t, err)
	producer, err := spectrum.NewProducer(logger, track, analyzer, spectrum.NewWallClock(), 200, slot)
	require.NoError(t, err)

	p := newTestPipeline(t, smallConfig(17), slot)
	sink := &memorySink{}
	runner, err := NewRunner(logger, p, producer, sink, RunnerConfig{Frames: 6, TPS: 500})
	require.NoError(t, err)

	require.NoError(t, runner.Run(context.Background()))
	assert.Len(t, sink.ticks, 6)
	for i := 1; i < len(sink.ticks); i++ {
		assert.Greater(t, sink.ticks[i], sink.ticks[i-1])
	}
	stats := p.Stats()
	assert.Equal(t, uint64(6), stats.Ticks)
}

func TestRunner_StopsOnCancel(t *testing.T) {
	p := newTestPipeline(t, smallConfig(9), nil)
	runner, err := NewRunner(zaptest.NewLogger(t), p, nil, nil, RunnerConfig{TPS: 1000})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	require.NoError(t, runner.Run(ctx))
	assert.Positive(t, p.Stats().Ticks)
}

func TestNewRunner_Validates(t *testing.T) {
	p := newTestPipeline(t, smallConfig(9), nil)
	_, err := NewRunner(nil, nil, nil, nil, RunnerConfig{TPS: 60})
	assert.Error(t, err)
	_, err = NewRunner(nil, p, nil, nil, RunnerConfig{TPS: 0})
	assert.Error(t, err)
	_, err = NewRunner(nil, p, nil, nil, RunnerConfig{TPS: 60, Frames: -1})
	assert.Error(t, err)
}

func TestPNGSink(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "frames")
	sink, err := NewPNGSink(zaptest.NewLogger(t), dir, 2)
	require.NoError(t, err)

	img := image.NewRGBA(image.Rect(0, 0, 4, 4))
	for tick := uint64(1); tick <= 5; tick++ {
		require.NoError(t, sink.WriteFrame(tick, img))
	}
	assert.Equal(t, 2, sink.Written())

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	assert.ElementsMatch(t, []string{"frame-000002.png", "frame-000004.png"}, names)

	f, err := os.Open(filepath.Join(dir, "frame-000002.png"))
	require.NoError(t, err)
	defer f.Close()
	decoded, _, err := image.Decode(f)
	require.NoError(t, err)
	assert.Equal(t, img.Bounds(), decoded.Bounds())
}
