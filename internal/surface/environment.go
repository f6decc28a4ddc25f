package surface

import (
	"image/color"
	"math"

	"github.com/golang/geo/r3"
)

// EnvironmentMap returns the radiance seen along a unit direction. The +Z
// axis points up out of the plate.
type EnvironmentMap interface {
	Sample(dir r3.Vector) color.RGBA
}

// Constant is an environment of a single colour.
type Constant color.RGBA

// Sample returns the constant colour for every direction.
func (c Constant) Sample(r3.Vector) color.RGBA { return color.RGBA(c) }

// RingLight is a procedural studio environment: a sky to ground gradient
// with a bright annular light around Axis, like the LED ring photographers
// hang above a cymatics dish.
type RingLight struct {
	Axis r3.Vector
	// Angle is the angular radius of the ring from Axis, in radians.
	Angle float64
	// Width is the angular softness of the ring, in radians.
	Width  float64
	Ring   color.RGBA
	Sky    color.RGBA
	Ground color.RGBA
}

// DefaultRingLight returns a cool overhead ring over a dark room.
func DefaultRingLight() RingLight {
	return RingLight{
		Axis:   r3.Vector{Z: 1},
		Angle:  0.35,
		Width:  0.06,
		Ring:   color.RGBA{R: 245, G: 250, B: 255, A: 255},
		Sky:    color.RGBA{R: 22, G: 34, B: 58, A: 255},
		Ground: color.RGBA{R: 4, G: 6, B: 10, A: 255},
	}
}

// Sample blends the gradient for dir's elevation with the ring intensity
// for dir's angle from the axis.
func (r RingLight) Sample(dir r3.Vector) color.RGBA {
	d := dir.Normalize()
	axis := r.Axis.Normalize()
	base := lerpColor(r.Ground, r.Sky, clamp01(d.Z*0.5+0.5))
	width := r.Width
	if width <= 0 {
		return base
	}
	theta := math.Acos(math.Max(-1, math.Min(1, d.Dot(axis))))
	off := (theta - r.Angle) / width
	return lerpColor(base, r.Ring, math.Exp(-off*off))
}

func lerpColor(a, b color.RGBA, t float64) color.RGBA {
	t = clamp01(t)
	mix := func(x, y uint8) uint8 {
		return uint8(math.Round(float64(x) + (float64(y)-float64(x))*t))
	}
	return color.RGBA{R: mix(a.R, b.R), G: mix(a.G, b.G), B: mix(a.B, b.B), A: mix(a.A, b.A)}
}

func clamp01(v float64) float64 {
	if v < 0 || math.IsNaN(v) {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
