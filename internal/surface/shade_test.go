package surface

import (
	"image"
	"image/color"
	"math"
	"math/rand/v2"
	"testing"

	"github.com/golang/geo/r3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sonified/cymatics-ifft-simulation/internal/grid"
)

func rippled(size int) grid.Field {
	f := grid.New(size)
	rng := rand.New(rand.NewPCG(3, 5))
	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			r := math.Hypot(float64(x-size/2), float64(y-size/2))
			f.Set(x, y, float32(0.02*math.Sin(r/2)+0.001*rng.Float64()))
		}
	}
	return f
}

func everyPixel(t *testing.T, img *image.RGBA, want color.RGBA) {
	t.Helper()
	b := img.Bounds()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			require.Equal(t, want, img.RGBAAt(x, y), "pixel (%d,%d)", x, y)
		}
	}
}

func TestShade_Deterministic(t *testing.T) {
	heights := rippled(70)
	for _, mode := range []Mode{ModeHeight, ModeNormal, ModeReflection} {
		t.Run(mode.String(), func(t *testing.T) {
			p := DefaultParams()
			p.Mode = mode
			p.Workers = 1
			serial, err := Shade(heights, p)
			require.NoError(t, err)

			p.Workers = 8
			parallel, err := Shade(heights, p)
			require.NoError(t, err)
			again, err := Shade(heights, p)
			require.NoError(t, err)

			assert.Equal(t, serial.Pix, parallel.Pix)
			assert.Equal(t, parallel.Pix, again.Pix)
		})
	}
}

func TestShade_FlatGridModeConsistency(t *testing.T) {
	flat := grid.New(24)
	p := DefaultParams()

	p.Mode = ModeNormal
	img, err := Shade(flat, p)
	require.NoError(t, err)
	everyPixel(t, img, p.Flat)

	p.Mode = ModeReflection
	img, err = Shade(flat, p)
	require.NoError(t, err)
	want := p.Env.Sample(Reflect(p.View.Normalize(), r3.Vector{Z: 1}))
	everyPixel(t, img, want)

	p.Mode = ModeHeight
	img, err = Shade(flat, p)
	require.NoError(t, err)
	everyPixel(t, img, lerpColor(p.Low, p.High, 0.5))
}

func TestShade_HeightModeClamps(t *testing.T) {
	p := DefaultParams()
	p.Mode = ModeHeight
	f := grid.New(4)
	f.Set(0, 0, float32(p.HeightRange))
	f.Set(1, 0, float32(10*p.HeightRange))
	f.Set(2, 0, float32(-p.HeightRange))
	f.Set(3, 0, float32(-10*p.HeightRange))

	img, err := Shade(f, p)
	require.NoError(t, err)
	assert.Equal(t, p.High, img.RGBAAt(0, 0))
	assert.Equal(t, p.High, img.RGBAAt(1, 0))
	assert.Equal(t, p.Low, img.RGBAAt(2, 0))
	assert.Equal(t, p.Low, img.RGBAAt(3, 0))
}

func TestShadeInto_ReusesDestination(t *testing.T) {
	heights := rippled(20)
	p := DefaultParams()
	dst := image.NewRGBA(image.Rect(0, 0, 20, 20))
	require.NoError(t, ShadeInto(dst, heights, p))

	fresh, err := Shade(heights, p)
	require.NoError(t, err)
	assert.Equal(t, fresh.Pix, dst.Pix)

	assert.Error(t, ShadeInto(image.NewRGBA(image.Rect(0, 0, 19, 20)), heights, p))
	assert.Error(t, ShadeInto(nil, heights, p))
}

func TestNormal(t *testing.T) {
	f := grid.New(5)
	for y := 0; y < 5; y++ {
		for x := 0; x < 5; x++ {
			f.Set(x, y, float32(x)*0.5)
		}
	}
	want := r3.Vector{X: -1, Y: 0, Z: 1}.Normalize()
	for _, x := range []int{0, 2, 4} {
		n := Normal(f, x, 2, 2)
		assert.InDelta(t, want.X, n.X, 1e-9, "x=%d", x)
		assert.InDelta(t, want.Y, n.Y, 1e-9)
		assert.InDelta(t, want.Z, n.Z, 1e-9)
	}

	up := Normal(grid.New(3), 1, 1, 10)
	assert.Equal(t, 1.0, up.Z)
	assert.Zero(t, math.Hypot(up.X, up.Y))
}

func TestReflect(t *testing.T) {
	r := Reflect(r3.Vector{X: 1, Z: -1}, r3.Vector{Z: 1})
	assert.Equal(t, r3.Vector{X: 1, Z: 1}, r)
}

func TestParamsValidate(t *testing.T) {
	tests := map[string]func(*Params){
		"reflection without env": func(p *Params) { p.Env = nil },
		"zero view":              func(p *Params) { p.View = r3.Vector{} },
		"nan view":               func(p *Params) { p.View.X = math.NaN() },
		"zero slope":             func(p *Params) { p.SlopeScale = 0 },
		"zero height range":      func(p *Params) { p.HeightRange = 0 },
		"unknown mode":           func(p *Params) { p.Mode = Mode(7) },
	}
	for name, mutate := range tests {
		t.Run(name, func(t *testing.T) {
			p := DefaultParams()
			mutate(&p)
			_, err := Shade(grid.New(4), p)
			assert.ErrorIs(t, err, ErrInvalidParams)
		})
	}

	p := DefaultParams()
	p.Mode = ModeNormal
	p.Env = nil
	assert.NoError(t, p.Validate(), "only reflection needs an environment")
}

func TestRingLight(t *testing.T) {
	ring := DefaultRingLight()
	onRing := r3.Vector{X: math.Sin(ring.Angle), Z: math.Cos(ring.Angle)}
	assert.Equal(t, ring.Ring, ring.Sample(onRing))

	down := ring.Sample(r3.Vector{Z: -1})
	assert.Equal(t, ring.Ground, down)

	zenith := ring.Sample(r3.Vector{Z: 1})
	assert.Less(t, zenith.R, ring.Ring.R, "the ring is dark at its centre")

	c := Constant(color.RGBA{R: 1, G: 2, B: 3, A: 255})
	assert.Equal(t, color.RGBA{R: 1, G: 2, B: 3, A: 255}, c.Sample(r3.Vector{X: 5}))
}

func TestParseModeAndNext(t *testing.T) {
	m, err := ParseMode("Reflection")
	require.NoError(t, err)
	assert.Equal(t, ModeReflection, m)
	assert.Equal(t, ModeHeight, m.Next())
	assert.Equal(t, ModeNormal, ModeHeight.Next())

	_, err = ParseMode("wireframe")
	assert.Error(t, err)
	assert.Equal(t, "Mode(9)", Mode(9).String())
}
