package config

import (
	"fmt"
	"image/color"
	"math"
	"strconv"
	"strings"

	"github.com/golang/geo/r3"

	"github.com/Sonified/cymatics-ifft-simulation/internal/forcing"
	"github.com/Sonified/cymatics-ifft-simulation/internal/spectrum"
	"github.com/Sonified/cymatics-ifft-simulation/internal/surface"
	"github.com/Sonified/cymatics-ifft-simulation/internal/wave"
)

// Spacing returns the cell spacing in domain units, derived from the
// resolution when dx is unset.
func (c SimulationConfig) Spacing() float64 {
	if c.Dx > 0 {
		return c.Dx
	}
	if c.Resolution < 2 {
		return 0
	}
	return 1 / float64(c.Resolution-1)
}

// WaveParams converts the simulation section into integrator parameters.
func (c SimulationConfig) WaveParams() (wave.Params, error) {
	mode, err := wave.ParseBoundaryMode(c.BoundaryMode)
	if err != nil {
		return wave.Params{}, err
	}
	p := wave.Params{
		WaveSpeed:           c.WaveSpeed,
		Damping:             c.Damping,
		Dt:                  c.Dt,
		Dx:                  c.Spacing(),
		ContainerRadius:     c.ContainerRadius,
		Boundary:            mode,
		EdgeDamping:         c.EdgeDamping,
		DivergenceThreshold: c.DivergenceThreshold,
	}
	if mode == wave.BoundaryMixed {
		sectors := make([]wave.Sector, len(c.BoundarySectors))
		for i, s := range c.BoundarySectors {
			sectors[i] = wave.Sector{From: s.From, To: s.To, Hardness: s.Hardness}
		}
		p.Profile = wave.SectorProfile(sectors, c.BoundaryFallback)
	}
	return p, nil
}

// WaveOptions returns the backend selection for wave.New.
func (c SimulationConfig) WaveOptions() wave.Options {
	return wave.Options{Backend: c.Backend, Workers: c.Workers}
}

// ForcingParams converts the forcing section. The travelling pattern of the
// spectrum mode moves at the simulation's wave speed.
func (c *Config) ForcingParams() (forcing.Params, error) {
	mode, err := forcing.ParseMode(c.Forcing.Mode)
	if err != nil {
		return forcing.Params{}, err
	}
	return forcing.Params{
		Mode:            mode,
		ForceStrength:   c.Forcing.ForceStrength,
		SpeakerRadius:   c.Forcing.SpeakerRadius,
		ForceLimit:      c.Forcing.ForceLimit,
		StaleDecayTicks: c.Forcing.StaleDecayTicks,
		BaseWavelength:  c.Forcing.BaseWavelength,
		ReferenceHz:     c.Forcing.ReferenceHz,
		WaveSpeed:       c.Simulation.WaveSpeed,
		Dt:              c.Simulation.Dt,
	}, nil
}

// SourceList converts the configured speakers.
func (c ForcingConfig) SourceList() ([]forcing.Source, error) {
	out := make([]forcing.Source, len(c.Sources))
	for i, s := range c.Sources {
		if len(s.Position) != 2 {
			return nil, fmt.Errorf("source %d position must have two coordinates, got %d", i, len(s.Position))
		}
		out[i] = forcing.Source{
			Position: [2]float64{s.Position[0], s.Position[1]},
			Radius:   s.Radius,
			Channel:  s.Channel,
		}
	}
	return out, nil
}

// RenderParams converts the render section.
func (c RenderConfig) RenderParams() (surface.Params, error) {
	mode, err := surface.ParseMode(c.VisualizationMode)
	if err != nil {
		return surface.Params{}, err
	}
	if len(c.CameraDirection) != 3 {
		return surface.Params{}, fmt.Errorf("camera direction must have three components, got %d", len(c.CameraDirection))
	}
	env, err := c.environment()
	if err != nil {
		return surface.Params{}, err
	}

	p := surface.DefaultParams()
	p.Mode = mode
	p.Env = env
	p.View = r3.Vector{X: c.CameraDirection[0], Y: c.CameraDirection[1], Z: c.CameraDirection[2]}
	p.SlopeScale = c.SlopeScale
	p.HeightRange = c.HeightRange
	p.Workers = c.Workers
	return p, nil
}

func (c RenderConfig) environment() (surface.EnvironmentMap, error) {
	switch strings.ToLower(strings.TrimSpace(c.Environment)) {
	case "none", "":
		return nil, nil
	case "constant":
		col, err := ParseColor(c.ConstantColor)
		if err != nil {
			return nil, fmt.Errorf("constant color: %w", err)
		}
		return surface.Constant(col), nil
	case "ring":
		ring := surface.DefaultRingLight()
		ring.Angle = c.Ring.AngleDeg * math.Pi / 180
		ring.Width = c.Ring.WidthDeg * math.Pi / 180
		for _, f := range []struct {
			name string
			hex  string
			dst  *color.RGBA
		}{
			{"ring color", c.Ring.Color, &ring.Ring},
			{"ring sky", c.Ring.Sky, &ring.Sky},
			{"ring ground", c.Ring.Ground, &ring.Ground},
		} {
			col, err := ParseColor(f.hex)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", f.name, err)
			}
			*f.dst = col
		}
		return ring, nil
	default:
		return nil, fmt.Errorf("unknown environment %q (want ring, constant or none)", c.Environment)
	}
}

// AnalyzerConfig converts the audio section.
func (c AudioConfig) AnalyzerConfig() spectrum.AnalyzerConfig {
	return spectrum.AnalyzerConfig{
		SampleRate: c.SampleRate,
		FFTSize:    c.FFTSize,
		Bands:      c.Bands,
		MinHz:      c.MinHz,
		MaxHz:      c.MaxHz,
	}
}

// ParseColor reads a #rrggbb or #rrggbbaa colour.
func ParseColor(s string) (color.RGBA, error) {
	hex := strings.TrimPrefix(strings.TrimSpace(s), "#")
	if len(hex) != 6 && len(hex) != 8 {
		return color.RGBA{}, fmt.Errorf("color %q must be #rrggbb or #rrggbbaa", s)
	}
	v, err := strconv.ParseUint(hex, 16, 32)
	if err != nil {
		return color.RGBA{}, fmt.Errorf("color %q: %w", s, err)
	}
	if len(hex) == 6 {
		v = v<<8 | 0xff
	}
	return color.RGBA{R: uint8(v >> 24), G: uint8(v >> 16), B: uint8(v >> 8), A: uint8(v)}, nil
}
