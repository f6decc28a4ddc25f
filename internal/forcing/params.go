// Package forcing folds audio snapshots and a list of point sources into the
// per-tick force field consumed by the wave simulator.
package forcing

import (
	"errors"
	"fmt"
	"math"
	"strings"
)

// ErrInvalidParams is wrapped by every validation failure in this package.
var ErrInvalidParams = errors.New("invalid forcing parameters")

// Mode selects how a source turns a frame into drive.
type Mode int

const (
	// ModeAmplitude drives each source with its channel's instantaneous
	// sample.
	ModeAmplitude Mode = iota
	// ModeSpectrum drives each source with a sum of radial travelling
	// cosines, one per frequency band.
	ModeSpectrum
)

func (m Mode) String() string {
	switch m {
	case ModeAmplitude:
		return "amplitude"
	case ModeSpectrum:
		return "spectrum"
	}
	return fmt.Sprintf("Mode(%d)", int(m))
}

// ParseMode maps a configuration string onto a Mode.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "amplitude":
		return ModeAmplitude, nil
	case "spectrum":
		return ModeSpectrum, nil
	}
	return ModeAmplitude, fmt.Errorf("unknown forcing mode %q (want amplitude or spectrum)", s)
}

// Source is a speaker under the plate. Position and Radius are in normalized
// domain units. Amplitude is overwritten by every Synthesize call with the
// drive the source received at its centre.
type Source struct {
	Position  [2]float64
	Radius    float64
	Channel   int
	Amplitude float64
}

// Params configures the synthesizer. Lengths are in normalized domain units,
// WaveSpeed in domain units per second.
type Params struct {
	Mode            Mode
	ForceStrength   float64
	SpeakerRadius   float64
	ForceLimit      float64
	StaleDecayTicks int

	// BaseWavelength is the spatial period excited by ReferenceHz.
	BaseWavelength float64
	ReferenceHz    float64
	WaveSpeed      float64
	Dt             float64
}

// DefaultParams returns the settings used when nothing is configured.
func DefaultParams() Params {
	return Params{
		Mode:            ModeAmplitude,
		ForceStrength:   0.02,
		SpeakerRadius:   0.06,
		ForceLimit:      0.05,
		StaleDecayTicks: 12,
		BaseWavelength:  0.08,
		ReferenceHz:     220,
		WaveSpeed:       0.12,
		Dt:              1.0 / 60,
	}
}

// Validate checks the parameters the synthesizer relies on.
func (p Params) Validate() error {
	finite := func(v float64) bool { return !math.IsNaN(v) && !math.IsInf(v, 0) }
	switch {
	case p.Mode != ModeAmplitude && p.Mode != ModeSpectrum:
		return fmt.Errorf("%w: unknown mode %d", ErrInvalidParams, int(p.Mode))
	case !finite(p.ForceStrength) || p.ForceStrength < 0:
		return fmt.Errorf("%w: force strength must be non-negative, got %g", ErrInvalidParams, p.ForceStrength)
	case !finite(p.SpeakerRadius) || p.SpeakerRadius <= 0:
		return fmt.Errorf("%w: speaker radius must be positive, got %g", ErrInvalidParams, p.SpeakerRadius)
	case !finite(p.ForceLimit) || p.ForceLimit <= 0:
		return fmt.Errorf("%w: force limit must be positive, got %g", ErrInvalidParams, p.ForceLimit)
	case p.StaleDecayTicks < 0:
		return fmt.Errorf("%w: stale decay ticks must be non-negative, got %d", ErrInvalidParams, p.StaleDecayTicks)
	}
	if p.Mode == ModeSpectrum {
		switch {
		case !finite(p.BaseWavelength) || p.BaseWavelength <= 0:
			return fmt.Errorf("%w: base wavelength must be positive, got %g", ErrInvalidParams, p.BaseWavelength)
		case !finite(p.ReferenceHz) || p.ReferenceHz <= 0:
			return fmt.Errorf("%w: reference frequency must be positive, got %g", ErrInvalidParams, p.ReferenceHz)
		case !finite(p.WaveSpeed) || p.WaveSpeed < 0:
			return fmt.Errorf("%w: wave speed must be non-negative, got %g", ErrInvalidParams, p.WaveSpeed)
		case !finite(p.Dt) || p.Dt <= 0:
			return fmt.Errorf("%w: dt must be positive, got %g", ErrInvalidParams, p.Dt)
		}
	}
	return nil
}

// ValidateSources rejects sources outside the unit square or with negative
// radius or channel.
func ValidateSources(sources []Source) error {
	for i, s := range sources {
		for _, c := range s.Position {
			if math.IsNaN(c) || c < 0 || c > 1 {
				return fmt.Errorf("%w: source %d position %v is outside [0,1]", ErrInvalidParams, i, s.Position)
			}
		}
		if math.IsNaN(s.Radius) || s.Radius < 0 {
			return fmt.Errorf("%w: source %d radius must be non-negative, got %g", ErrInvalidParams, i, s.Radius)
		}
		if s.Channel < 0 {
			return fmt.Errorf("%w: source %d channel must be non-negative, got %d", ErrInvalidParams, i, s.Channel)
		}
	}
	return nil
}

// Wavelength maps a band frequency onto the spatial period it excites:
// inversely proportional to frequency and never shorter than minimum.
func (p Params) Wavelength(hz, minimum float64) float64 {
	if hz <= 0 {
		return math.Inf(1)
	}
	return math.Max(p.BaseWavelength*p.ReferenceHz/hz, minimum)
}

// smoothstep is the cubic Hermite step between edge0 and edge1; edges may be
// given in decreasing order.
func smoothstep(edge0, edge1, x float64) float64 {
	if edge0 == edge1 {
		if x < edge0 {
			return 0
		}
		return 1
	}
	t := (x - edge0) / (edge1 - edge0)
	t = math.Max(0, math.Min(1, t))
	return t * t * (3 - 2*t)
}
