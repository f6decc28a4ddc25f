package config

import (
	"fmt"
	"math"
	"slices"
	"strings"

	"go.uber.org/zap/zapcore"

	"github.com/Sonified/cymatics-ifft-simulation/internal/forcing"
	"github.com/Sonified/cymatics-ifft-simulation/internal/surface"
	"github.com/Sonified/cymatics-ifft-simulation/internal/wave"
)

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalid, fmt.Sprintf(format, args...))
}

func finite(v float64) bool { return !math.IsNaN(v) && !math.IsInf(v, 0) }

// Validate checks the whole configuration. Every failure wraps ErrInvalid
// and names the offending key.
func (c *Config) Validate() error {
	for _, check := range []func() error{
		c.Simulation.validate,
		c.Forcing.validate,
		c.Render.validate,
		c.Audio.validate,
		c.Runtime.validate,
		c.Logger.validate,
		c.validateDerived,
	} {
		if err := check(); err != nil {
			return err
		}
	}
	return nil
}

func (c SimulationConfig) validate() error {
	switch {
	case c.Resolution < wave.MinResolution:
		return invalid("simulation.resolution must be at least %d", wave.MinResolution)
	case !finite(c.WaveSpeed) || c.WaveSpeed <= 0:
		return invalid("simulation.wave_speed must be positive")
	case !finite(c.Damping) || c.Damping <= 0 || c.Damping > 1:
		return invalid("simulation.damping must be in (0,1]")
	case !finite(c.Dt) || c.Dt <= 0:
		return invalid("simulation.dt must be positive")
	case !finite(c.Dx) || c.Dx < 0:
		return invalid("simulation.dx must be positive, or 0 to derive it from the resolution")
	case !finite(c.ContainerRadius) || c.ContainerRadius <= 0:
		return invalid("simulation.container_radius must be positive")
	case !finite(c.DivergenceThreshold) || c.DivergenceThreshold <= 0:
		return invalid("simulation.divergence_threshold must be positive")
	case c.Workers < 0:
		return invalid("simulation.workers must be non-negative")
	case !slices.Contains([]string{wave.BackendCPU, wave.BackendOpenCL}, strings.ToLower(c.Backend)):
		return invalid("simulation.backend must be one of: cpu, opencl")
	}
	mode, err := wave.ParseBoundaryMode(c.BoundaryMode)
	if err != nil {
		return invalid("simulation.boundary_mode must be one of: hard, soft, mixed")
	}
	if mode != wave.BoundaryHard && (!finite(c.EdgeDamping) || c.EdgeDamping <= 0 || c.EdgeDamping >= 1) {
		return invalid("simulation.edge_damping must be in (0,1)")
	}
	if c.BoundaryFallback < 0 || c.BoundaryFallback > 1 {
		return invalid("simulation.boundary_fallback must be in [0,1]")
	}
	for i, s := range c.BoundarySectors {
		if !finite(s.From) || !finite(s.To) {
			return invalid("simulation.boundary_sectors[%d] angles must be finite", i)
		}
		if s.Hardness < 0 || s.Hardness > 1 {
			return invalid("simulation.boundary_sectors[%d].hardness must be in [0,1]", i)
		}
	}
	return nil
}

func (c ForcingConfig) validate() error {
	if _, err := forcing.ParseMode(c.Mode); err != nil {
		return invalid("forcing.mode must be one of: amplitude, spectrum")
	}
	switch {
	case !finite(c.ForceStrength) || c.ForceStrength < 0:
		return invalid("forcing.force_strength must be non-negative")
	case !finite(c.SpeakerRadius) || c.SpeakerRadius <= 0:
		return invalid("forcing.speaker_radius must be positive")
	case !finite(c.ForceLimit) || c.ForceLimit <= 0:
		return invalid("forcing.force_limit must be positive")
	case c.StaleDecayTicks < 0:
		return invalid("forcing.stale_decay_ticks must be non-negative")
	case !finite(c.BaseWavelength) || c.BaseWavelength <= 0:
		return invalid("forcing.base_wavelength must be positive")
	case !finite(c.ReferenceHz) || c.ReferenceHz <= 0:
		return invalid("forcing.reference_hz must be positive")
	}
	for i, s := range c.Sources {
		if len(s.Position) != 2 {
			return invalid("forcing.sources[%d].position must have two coordinates", i)
		}
		for _, v := range s.Position {
			if !finite(v) || v < 0 || v > 1 {
				return invalid("forcing.sources[%d].position must lie in [0,1]", i)
			}
		}
		if !finite(s.Radius) || s.Radius < 0 {
			return invalid("forcing.sources[%d].radius must be non-negative", i)
		}
		if s.Channel < 0 {
			return invalid("forcing.sources[%d].channel must be non-negative", i)
		}
	}
	return nil
}

func (c RenderConfig) validate() error {
	mode, err := surface.ParseMode(c.VisualizationMode)
	if err != nil {
		return invalid("render.visualization_mode must be one of: height, normal, reflection")
	}
	if len(c.CameraDirection) != 3 {
		return invalid("render.camera_direction must have three components")
	}
	var norm float64
	for _, v := range c.CameraDirection {
		if !finite(v) {
			return invalid("render.camera_direction must be finite")
		}
		norm += v * v
	}
	switch {
	case norm == 0:
		return invalid("render.camera_direction must be non-zero")
	case !finite(c.SlopeScale) || c.SlopeScale <= 0:
		return invalid("render.slope_scale must be positive")
	case !finite(c.HeightRange) || c.HeightRange <= 0:
		return invalid("render.height_range must be positive")
	case c.Workers < 0:
		return invalid("render.workers must be non-negative")
	}
	env, err := c.environment()
	if err != nil {
		return invalid("render.environment is invalid: %v", err)
	}
	if mode == surface.ModeReflection && env == nil {
		return invalid("render.environment must be set when render.visualization_mode is reflection")
	}
	return nil
}

func (c AudioConfig) validate() error {
	switch {
	case c.SampleRate <= 0:
		return invalid("audio.sample_rate must be positive")
	case c.FFTSize < 16 || c.FFTSize&(c.FFTSize-1) != 0:
		return invalid("audio.fft_size must be a power of two of at least 16")
	case c.Bands < 1:
		return invalid("audio.bands must be at least 1")
	case !finite(c.MinHz) || c.MinHz <= 0:
		return invalid("audio.min_hz must be positive")
	case !finite(c.MaxHz) || c.MaxHz <= c.MinHz:
		return invalid("audio.max_hz must be greater than audio.min_hz")
	case c.MaxHz > float64(c.SampleRate)/2:
		return invalid("audio.max_hz must not exceed half of audio.sample_rate")
	case !finite(c.AnalysisRate) || c.AnalysisRate <= 0:
		return invalid("audio.analysis_rate must be positive")
	}
	return nil
}

func (c RuntimeConfig) validate() error {
	switch {
	case c.TPS <= 0:
		return invalid("runtime.tps must be positive")
	case c.WindowScale < 1:
		return invalid("runtime.window_scale must be at least 1")
	case c.StatsInterval < 0:
		return invalid("runtime.stats_interval must be non-negative")
	}
	return nil
}

func (c LoggerConfig) validate() error {
	if _, err := zapcore.ParseLevel(c.Level); err != nil {
		return invalid("logger.level must be one of: debug, info, warn, error, dpanic, panic, fatal")
	}
	switch c.Format {
	case "console", "json":
	default:
		return invalid("logger.format must be one of: console, json")
	}
	if c.LogFile != "" && c.MaxSize <= 0 {
		return invalid("logger.max_size must be positive when logger.log_file is set")
	}
	return nil
}

// validateDerived runs the domain validators over the converted parameters
// so nothing the packages reject slips through.
func (c *Config) validateDerived() error {
	wp, err := c.Simulation.WaveParams()
	if err == nil {
		err = wp.Validate()
	}
	if err != nil {
		return invalid("simulation: %v", err)
	}
	fp, err := c.ForcingParams()
	if err == nil {
		err = fp.Validate()
	}
	if err != nil {
		return invalid("forcing: %v", err)
	}
	sources, err := c.Forcing.SourceList()
	if err == nil {
		err = forcing.ValidateSources(sources)
	}
	if err != nil {
		return invalid("forcing.sources: %v", err)
	}
	rp, err := c.Render.RenderParams()
	if err == nil {
		err = rp.Validate()
	}
	if err != nil {
		return invalid("render: %v", err)
	}
	return nil
}
