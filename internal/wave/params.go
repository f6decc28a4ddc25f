package wave

import (
	"errors"
	"fmt"
	"math"
	"strings"
)

// CFLLimit is the largest Courant number c*dt/dx for which the 5-point
// Laplacian with leapfrog time stepping is stable on a 2D grid (1/sqrt(2)).
const CFLLimit = 1 / math.Sqrt2

// DefaultDivergenceThreshold bounds the displacement of a healthy field.
// Resonant driving at the default force limit settles two orders of magnitude
// below it.
const DefaultDivergenceThreshold = 1e4

// ErrInvalidParams is wrapped by every Params validation failure.
var ErrInvalidParams = errors.New("invalid simulation parameters")

// BoundaryMode selects how cells outside the container radius behave.
type BoundaryMode int

const (
	// BoundaryHard pins every cell outside the container to zero.
	BoundaryHard BoundaryMode = iota
	// BoundarySoft attenuates cells outside the container with distance.
	BoundarySoft
	// BoundaryMixed blends hard and soft per angular sector.
	BoundaryMixed
)

var boundaryNames = map[BoundaryMode]string{
	BoundaryHard:  "hard",
	BoundarySoft:  "soft",
	BoundaryMixed: "mixed",
}

func (m BoundaryMode) String() string {
	if name, ok := boundaryNames[m]; ok {
		return name
	}
	return fmt.Sprintf("BoundaryMode(%d)", int(m))
}

// ParseBoundaryMode maps a configuration string onto a BoundaryMode.
func ParseBoundaryMode(s string) (BoundaryMode, error) {
	for mode, name := range boundaryNames {
		if strings.EqualFold(strings.TrimSpace(s), name) {
			return mode, nil
		}
	}
	return BoundaryHard, fmt.Errorf("unknown boundary mode %q (want hard, soft or mixed)", s)
}

// Profile returns the wall hardness in [0,1] for an angle in radians measured
// from the +x axis around the domain centre. 1 is a reflective wall, 0 an
// absorbing one.
type Profile func(angle float64) float64

// Sector assigns a hardness to the half-open angular range [From, To) in
// degrees. Ranges may wrap through 0.
type Sector struct {
	From     float64
	To       float64
	Hardness float64
}

func (s Sector) contains(deg float64) bool {
	from := normalizeDegrees(s.From)
	to := normalizeDegrees(s.To)
	if from <= to {
		return deg >= from && deg < to
	}
	return deg >= from || deg < to
}

// SectorProfile builds a Profile from a sector table. Angles not covered by
// any sector use fallback. The first matching sector wins.
func SectorProfile(sectors []Sector, fallback float64) Profile {
	table := append([]Sector(nil), sectors...)
	return func(angle float64) float64 {
		deg := normalizeDegrees(angle * 180 / math.Pi)
		for _, s := range table {
			if s.contains(deg) {
				return s.Hardness
			}
		}
		return fallback
	}
}

func normalizeDegrees(deg float64) float64 {
	deg = math.Mod(deg, 360)
	if deg < 0 {
		deg += 360
	}
	return deg
}

// Params configures the integrator. WaveSpeed, Dt and Dx are in consistent
// physical units; ContainerRadius is in normalized domain units where the grid
// spans [0,1] on both axes.
type Params struct {
	WaveSpeed           float64
	Damping             float64
	Dt                  float64
	Dx                  float64
	ContainerRadius     float64
	Boundary            BoundaryMode
	EdgeDamping         float64
	Profile             Profile
	DivergenceThreshold float64
}

// DefaultParams returns a stable configuration for a unit-spaced grid.
func DefaultParams() Params {
	return Params{
		WaveSpeed:           0.5,
		Damping:             0.995,
		Dt:                  1,
		Dx:                  1,
		ContainerRadius:     0.45,
		Boundary:            BoundaryHard,
		EdgeDamping:         0.85,
		DivergenceThreshold: DefaultDivergenceThreshold,
	}
}

// Courant returns c*dt/dx.
func (p Params) Courant() float64 {
	return p.WaveSpeed * p.Dt / p.Dx
}

// WithinCFL reports whether the Courant number respects CFLLimit.
func (p Params) WithinCFL() bool {
	return p.Courant() <= CFLLimit
}

// Validate rejects parameters the integrator cannot run with. Exceeding the
// CFL limit is allowed; divergence detection covers it.
func (p Params) Validate() error {
	finite := func(v float64) bool { return !math.IsNaN(v) && !math.IsInf(v, 0) }
	switch {
	case !finite(p.WaveSpeed) || p.WaveSpeed <= 0:
		return fmt.Errorf("%w: wave speed must be positive, got %g", ErrInvalidParams, p.WaveSpeed)
	case !finite(p.Damping) || p.Damping <= 0 || p.Damping > 1:
		return fmt.Errorf("%w: damping must be in (0,1], got %g", ErrInvalidParams, p.Damping)
	case !finite(p.Dt) || p.Dt <= 0:
		return fmt.Errorf("%w: dt must be positive, got %g", ErrInvalidParams, p.Dt)
	case !finite(p.Dx) || p.Dx <= 0:
		return fmt.Errorf("%w: dx must be positive, got %g", ErrInvalidParams, p.Dx)
	case !finite(p.ContainerRadius) || p.ContainerRadius <= 0:
		return fmt.Errorf("%w: container radius must be positive, got %g", ErrInvalidParams, p.ContainerRadius)
	case !finite(p.DivergenceThreshold) || p.DivergenceThreshold <= 0:
		return fmt.Errorf("%w: divergence threshold must be positive, got %g", ErrInvalidParams, p.DivergenceThreshold)
	}
	switch p.Boundary {
	case BoundaryHard:
	case BoundarySoft, BoundaryMixed:
		if !finite(p.EdgeDamping) || p.EdgeDamping <= 0 || p.EdgeDamping >= 1 {
			return fmt.Errorf("%w: edge damping must be in (0,1), got %g", ErrInvalidParams, p.EdgeDamping)
		}
		if p.Boundary == BoundaryMixed && p.Profile == nil {
			return fmt.Errorf("%w: mixed boundary requires a profile", ErrInvalidParams)
		}
	default:
		return fmt.Errorf("%w: unknown boundary mode %d", ErrInvalidParams, int(p.Boundary))
	}
	return nil
}

// coefficients are the float32 constants consumed by the kernels.
type coefficients struct {
	lambda2 float32
	damp    float32
}

func (p Params) coefficients() coefficients {
	nu := p.Courant()
	return coefficients{lambda2: float32(nu * nu), damp: float32(p.Damping)}
}
