// Package surface shades a height field into an RGBA image.
package surface

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"math"
	"runtime"
	"strings"

	"github.com/golang/geo/r3"
	"golang.org/x/sync/errgroup"

	"github.com/Sonified/cymatics-ifft-simulation/internal/grid"
)

// ErrInvalidParams is wrapped by every Params validation failure.
var ErrInvalidParams = errors.New("invalid render parameters")

// rowsPerBand is the unit of work handed to one shading goroutine.
const rowsPerBand = 16

// Mode selects the visualization.
type Mode int

const (
	ModeHeight Mode = iota
	ModeNormal
	ModeReflection
	modeCount
)

var modeNames = [...]string{"height", "normal", "reflection"}

func (m Mode) String() string {
	if m >= 0 && m < modeCount {
		return modeNames[m]
	}
	return fmt.Sprintf("Mode(%d)", int(m))
}

// Next cycles through the modes in declaration order.
func (m Mode) Next() Mode {
	return (m + 1) % modeCount
}

// ParseMode maps a configuration string onto a Mode.
func ParseMode(s string) (Mode, error) {
	for i, name := range modeNames {
		if strings.EqualFold(strings.TrimSpace(s), name) {
			return Mode(i), nil
		}
	}
	return ModeHeight, fmt.Errorf("unknown visualization mode %q (want height, normal or reflection)", s)
}

// Params is read-only to the renderer.
type Params struct {
	Mode Mode
	// Env is sampled in reflection mode.
	Env EnvironmentMap
	// View is the direction the camera looks along, towards the plate.
	View r3.Vector
	// SlopeScale multiplies the height gradient before the normal is built.
	SlopeScale float64
	// HeightRange maps to the full low..high span in height mode.
	HeightRange float64

	Low, High   color.RGBA
	Flat, Steep color.RGBA

	// Workers bounds the shading goroutines; zero means runtime.NumCPU().
	Workers int
}

// DefaultParams returns a reflection setup under the default ring light.
func DefaultParams() Params {
	return Params{
		Mode:        ModeReflection,
		Env:         DefaultRingLight(),
		View:        r3.Vector{X: 0, Y: 0.35, Z: -1},
		SlopeScale:  6,
		HeightRange: 0.05,
		Low:         color.RGBA{R: 8, G: 24, B: 64, A: 255},
		High:        color.RGBA{R: 230, G: 244, B: 255, A: 255},
		Flat:        color.RGBA{R: 12, G: 16, B: 24, A: 255},
		Steep:       color.RGBA{R: 160, G: 220, B: 255, A: 255},
	}
}

// Validate rejects parameters that cannot produce an image.
func (p Params) Validate() error {
	finite := func(v float64) bool { return !math.IsNaN(v) && !math.IsInf(v, 0) }
	switch {
	case p.Mode < 0 || p.Mode >= modeCount:
		return fmt.Errorf("%w: unknown mode %d", ErrInvalidParams, int(p.Mode))
	case p.Mode == ModeReflection && p.Env == nil:
		return fmt.Errorf("%w: reflection mode requires an environment map", ErrInvalidParams)
	case !finite(p.View.X) || !finite(p.View.Y) || !finite(p.View.Z) || p.View.Norm() == 0:
		return fmt.Errorf("%w: view direction must be a non-zero finite vector", ErrInvalidParams)
	case !finite(p.SlopeScale) || p.SlopeScale <= 0:
		return fmt.Errorf("%w: slope scale must be positive, got %g", ErrInvalidParams, p.SlopeScale)
	case !finite(p.HeightRange) || p.HeightRange <= 0:
		return fmt.Errorf("%w: height range must be positive, got %g", ErrInvalidParams, p.HeightRange)
	}
	return nil
}

// Shade renders heights into a new size×size image.
func Shade(heights grid.Field, params Params) (*image.RGBA, error) {
	dst := image.NewRGBA(image.Rect(0, 0, heights.Size, heights.Size))
	if err := ShadeInto(dst, heights, params); err != nil {
		return nil, err
	}
	return dst, nil
}

// ShadeInto renders heights into dst, whose bounds must match the grid.
// Every pixel is written exactly once, so output depends only on the inputs.
func ShadeInto(dst *image.RGBA, heights grid.Field, params Params) error {
	if err := params.Validate(); err != nil {
		return err
	}
	n := heights.Size
	if dst == nil || dst.Rect.Dx() != n || dst.Rect.Dy() != n {
		return fmt.Errorf("destination bounds do not match the %dx%d grid", n, n)
	}
	if len(heights.Values) != n*n {
		return fmt.Errorf("height field holds %d values, want %d", len(heights.Values), n*n)
	}

	s := shader{heights: heights, params: params, view: params.View.Normalize()}
	workers := params.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	var g errgroup.Group
	g.SetLimit(workers)
	for y0 := 0; y0 < n; y0 += rowsPerBand {
		y1 := min(y0+rowsPerBand, n)
		g.Go(func() error {
			for y := y0; y < y1; y++ {
				s.row(dst, y)
			}
			return nil
		})
	}
	return g.Wait()
}

type shader struct {
	heights grid.Field
	params  Params
	view    r3.Vector
}

func (s shader) row(dst *image.RGBA, y int) {
	n := s.heights.Size
	pix := dst.Pix[y*dst.Stride : y*dst.Stride+n*4]
	for x := 0; x < n; x++ {
		c := s.pixel(x, y)
		i := x * 4
		pix[i] = c.R
		pix[i+1] = c.G
		pix[i+2] = c.B
		pix[i+3] = c.A
	}
}

func (s shader) pixel(x, y int) color.RGBA {
	p := s.params
	switch p.Mode {
	case ModeHeight:
		h := float64(s.heights.At(x, y))
		return lerpColor(p.Low, p.High, h/p.HeightRange*0.5+0.5)
	case ModeNormal:
		n := Normal(s.heights, x, y, p.SlopeScale)
		return lerpColor(p.Flat, p.Steep, math.Hypot(n.X, n.Y))
	default:
		return p.Env.Sample(Reflect(s.view, Normal(s.heights, x, y, p.SlopeScale)))
	}
}

// Normal returns normalize(-s*dh/dx, -s*dh/dy, 1) at cell (x, y) using
// central differences in cell units, one-sided at the grid edge.
func Normal(h grid.Field, x, y int, scale float64) r3.Vector {
	last := h.Size - 1
	xl, xr := max(x-1, 0), min(x+1, last)
	yu, yd := max(y-1, 0), min(y+1, last)
	var dhdx, dhdy float64
	if xr > xl {
		dhdx = float64(h.At(xr, y)-h.At(xl, y)) / float64(xr-xl)
	}
	if yd > yu {
		dhdy = float64(h.At(x, yd)-h.At(x, yu)) / float64(yd-yu)
	}
	return r3.Vector{X: -scale * dhdx, Y: -scale * dhdy, Z: 1}.Normalize()
}

// Reflect mirrors the incident direction v about the unit normal n.
func Reflect(v, n r3.Vector) r3.Vector {
	return v.Sub(n.Mul(2 * v.Dot(n)))
}
