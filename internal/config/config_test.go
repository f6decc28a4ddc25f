package config

import (
	"image/color"
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sonified/cymatics-ifft-simulation/internal/forcing"
	"github.com/Sonified/cymatics-ifft-simulation/internal/surface"
	"github.com/Sonified/cymatics-ifft-simulation/internal/wave"
)

func TestNewDefaultConfig(t *testing.T) {
	cfg := NewDefaultConfig()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, 256, cfg.Simulation.Resolution)
	assert.Equal(t, "hard", cfg.Simulation.BoundaryMode)
	assert.Equal(t, "amplitude", cfg.Forcing.Mode)
	assert.Equal(t, "reflection", cfg.Render.VisualizationMode)
	assert.Equal(t, 10*time.Second, cfg.Runtime.StatsInterval)
	require.Len(t, cfg.Forcing.Sources, 1)
	assert.Equal(t, []float64{0.5, 0.5}, cfg.Forcing.Sources[0].Position)
	assert.Equal(t, "green", cfg.Logger.Colors.Info)

	wp, err := cfg.Simulation.WaveParams()
	require.NoError(t, err)
	assert.True(t, wp.WithinCFL(), "defaults must respect the CFL limit, courant=%g", wp.Courant())
}

func TestNewConfigFromViper_YAMLFile(t *testing.T) {
	yaml := `
simulation:
  resolution: 129
  damping: 0.98
  boundary_mode: mixed
  boundary_sectors:
    - {from: 0, to: 180, hardness: 1}
  boundary_fallback: 0.25
forcing:
  mode: spectrum
  sources:
    - position: [0.3, 0.5]
      channel: 0
    - position: [0.7, 0.5]
      radius: 0.1
      channel: 1
render:
  visualization_mode: normal
  environment: constant
  constant_color: "#102030"
runtime:
  stats_interval: 2s
logger:
  level: debug
`
	path := filepath.Join(t.TempDir(), "cymatics.yaml")
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o600))

	v, err := NewViper(path)
	require.NoError(t, err)
	got, err := NewConfigFromViper(v)
	require.NoError(t, err)

	want := NewDefaultConfig()
	want.Simulation.Resolution = 129
	want.Simulation.Damping = 0.98
	want.Simulation.BoundaryMode = "mixed"
	want.Simulation.BoundarySectors = []SectorConfig{{From: 0, To: 180, Hardness: 1}}
	want.Simulation.BoundaryFallback = 0.25
	want.Forcing.Mode = "spectrum"
	want.Forcing.Sources = []SourceConfig{
		{Position: []float64{0.3, 0.5}},
		{Position: []float64{0.7, 0.5}, Radius: 0.1, Channel: 1},
	}
	want.Render.VisualizationMode = "normal"
	want.Render.Environment = "constant"
	want.Render.ConstantColor = "#102030"
	want.Runtime.StatsInterval = 2 * time.Second
	want.Logger.Level = "debug"

	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("config mismatch (-want +got):\n%s", diff)
	}
}

func TestNewViper_MissingFile(t *testing.T) {
	_, err := NewViper(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestNewViper_EnvOverride(t *testing.T) {
	t.Setenv("CYMATICS_SIMULATION_DAMPING", "0.9")
	t.Setenv("CYMATICS_RENDER_VISUALIZATION_MODE", "height")

	v, err := NewViper("")
	require.NoError(t, err)
	cfg, err := NewConfigFromViper(v)
	require.NoError(t, err)
	assert.Equal(t, 0.9, cfg.Simulation.Damping)
	assert.Equal(t, "height", cfg.Render.VisualizationMode)
}

func TestNewConfigFromViper_RejectsInvalid(t *testing.T) {
	v := viper.New()
	SetDefaults(v)
	v.Set("simulation.dt", -1)

	_, err := NewConfigFromViper(v)
	require.ErrorIs(t, err, ErrInvalid)
	assert.Contains(t, err.Error(), "simulation.dt must be positive")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"resolution", func(c *Config) { c.Simulation.Resolution = 2 }, "simulation.resolution must be at least 3"},
		{"damping zero", func(c *Config) { c.Simulation.Damping = 0 }, "simulation.damping must be in (0,1]"},
		{"damping above one", func(c *Config) { c.Simulation.Damping = 1.01 }, "simulation.damping must be in (0,1]"},
		{"dx negative", func(c *Config) { c.Simulation.Dx = -0.1 }, "simulation.dx must be positive"},
		{"wave speed nan", func(c *Config) { c.Simulation.WaveSpeed = math.NaN() }, "simulation.wave_speed must be positive"},
		{"boundary mode", func(c *Config) { c.Simulation.BoundaryMode = "rubber" }, "simulation.boundary_mode must be one of"},
		{"edge damping", func(c *Config) {
			c.Simulation.BoundaryMode = "soft"
			c.Simulation.EdgeDamping = 1
		}, "simulation.edge_damping must be in (0,1)"},
		{"sector hardness", func(c *Config) {
			c.Simulation.BoundarySectors = []SectorConfig{{From: 0, To: 10, Hardness: 2}}
		}, "simulation.boundary_sectors[0].hardness"},
		{"backend", func(c *Config) { c.Simulation.Backend = "cuda" }, "simulation.backend must be one of"},
		{"forcing mode", func(c *Config) { c.Forcing.Mode = "chaos" }, "forcing.mode must be one of"},
		{"force limit", func(c *Config) { c.Forcing.ForceLimit = 0 }, "forcing.force_limit must be positive"},
		{"source outside", func(c *Config) {
			c.Forcing.Sources = []SourceConfig{{Position: []float64{1.2, 0.5}}}
		}, "forcing.sources[0].position must lie in [0,1]"},
		{"source arity", func(c *Config) {
			c.Forcing.Sources = []SourceConfig{{Position: []float64{0.5}}}
		}, "forcing.sources[0].position must have two coordinates"},
		{"source channel", func(c *Config) {
			c.Forcing.Sources = []SourceConfig{{Position: []float64{0.5, 0.5}, Channel: -1}}
		}, "forcing.sources[0].channel must be non-negative"},
		{"reflection without environment", func(c *Config) { c.Render.Environment = "none" }, "render.environment must be set"},
		{"bad environment", func(c *Config) { c.Render.Environment = "hdr" }, "render.environment is invalid"},
		{"bad ring colour", func(c *Config) { c.Render.Ring.Sky = "blue" }, "render.environment is invalid"},
		{"camera", func(c *Config) { c.Render.CameraDirection = []float64{0, 0, 0} }, "render.camera_direction must be non-zero"},
		{"slope", func(c *Config) { c.Render.SlopeScale = 0 }, "render.slope_scale must be positive"},
		{"fft size", func(c *Config) { c.Audio.FFTSize = 1000 }, "audio.fft_size must be a power of two"},
		{"nyquist", func(c *Config) { c.Audio.MaxHz = 30000 }, "audio.max_hz must not exceed"},
		{"band range", func(c *Config) { c.Audio.MinHz = 5000 }, "audio.max_hz must be greater than audio.min_hz"},
		{"tps", func(c *Config) { c.Runtime.TPS = 0 }, "runtime.tps must be positive"},
		{"log level", func(c *Config) { c.Logger.Level = "verbose" }, "logger.level must be one of"},
		{"log format", func(c *Config) { c.Logger.Format = "xml" }, "logger.format must be one of"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := NewDefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.ErrorIs(t, err, ErrInvalid)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}

	t.Run("normal mode needs no environment", func(t *testing.T) {
		cfg := NewDefaultConfig()
		cfg.Render.VisualizationMode = "normal"
		cfg.Render.Environment = "none"
		assert.NoError(t, cfg.Validate())
	})
}

func TestWaveParams(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Simulation.Resolution = 101
	cfg.Simulation.WaveSpeed = 0.3
	cfg.Simulation.Dt = 1.0 / 60

	p, err := cfg.Simulation.WaveParams()
	require.NoError(t, err)
	assert.InDelta(t, 0.01, p.Dx, 1e-12)
	assert.InDelta(t, 0.5, p.Courant(), 1e-12)
	assert.Nil(t, p.Profile)

	cfg.Simulation.Dx = 0.02
	p, err = cfg.Simulation.WaveParams()
	require.NoError(t, err)
	assert.Equal(t, 0.02, p.Dx, "explicit dx wins over the derived spacing")

	cfg.Simulation.BoundaryMode = "mixed"
	cfg.Simulation.BoundarySectors = []SectorConfig{{From: 0, To: 90, Hardness: 1}}
	cfg.Simulation.BoundaryFallback = 0.3
	p, err = cfg.Simulation.WaveParams()
	require.NoError(t, err)
	assert.Equal(t, wave.BoundaryMixed, p.Boundary)
	require.NotNil(t, p.Profile)
	assert.Equal(t, 1.0, p.Profile(math.Pi/4))
	assert.Equal(t, 0.3, p.Profile(math.Pi))

	assert.Equal(t, wave.Options{Backend: "cpu"}, cfg.Simulation.WaveOptions())
}

func TestForcingParamsAndSources(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Forcing.Mode = "spectrum"
	p, err := cfg.ForcingParams()
	require.NoError(t, err)
	assert.Equal(t, forcing.ModeSpectrum, p.Mode)
	assert.Equal(t, cfg.Simulation.WaveSpeed, p.WaveSpeed)
	assert.Equal(t, cfg.Simulation.Dt, p.Dt)

	sources, err := cfg.Forcing.SourceList()
	require.NoError(t, err)
	assert.Equal(t, []forcing.Source{{Position: [2]float64{0.5, 0.5}}}, sources)
}

func TestRenderParams(t *testing.T) {
	cfg := NewDefaultConfig()
	p, err := cfg.Render.RenderParams()
	require.NoError(t, err)
	assert.Equal(t, surface.ModeReflection, p.Mode)
	ring, ok := p.Env.(surface.RingLight)
	require.True(t, ok)
	assert.InDelta(t, 20*math.Pi/180, ring.Angle, 1e-12)
	assert.Equal(t, color.RGBA{R: 0x16, G: 0x22, B: 0x3a, A: 0xff}, ring.Sky)

	cfg.Render.Environment = "constant"
	cfg.Render.ConstantColor = "#01020380"
	p, err = cfg.Render.RenderParams()
	require.NoError(t, err)
	assert.Equal(t, surface.Constant(color.RGBA{R: 1, G: 2, B: 3, A: 0x80}), p.Env)
}

func TestParseColor(t *testing.T) {
	c, err := ParseColor(" #FF8000 ")
	require.NoError(t, err)
	assert.Equal(t, color.RGBA{R: 255, G: 128, A: 255}, c)

	for _, bad := range []string{"", "#fff", "#gg0000", "12345"} {
		_, err := ParseColor(bad)
		assert.Error(t, err, bad)
	}
}
