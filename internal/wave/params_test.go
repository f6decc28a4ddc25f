package wave

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParamsValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Params)
		want   string
	}{
		{"defaults", func(*Params) {}, ""},
		{"zero dt", func(p *Params) { p.Dt = 0 }, "dt must be positive"},
		{"negative dx", func(p *Params) { p.Dx = -1 }, "dx must be positive"},
		{"zero damping", func(p *Params) { p.Damping = 0 }, "damping must be in (0,1]"},
		{"damping above one", func(p *Params) { p.Damping = 1.01 }, "damping must be in (0,1]"},
		{"unit damping", func(p *Params) { p.Damping = 1 }, ""},
		{"nan speed", func(p *Params) { p.WaveSpeed = math.NaN() }, "wave speed must be positive"},
		{"zero radius", func(p *Params) { p.ContainerRadius = 0 }, "container radius must be positive"},
		{"zero threshold", func(p *Params) { p.DivergenceThreshold = 0 }, "divergence threshold must be positive"},
		{"soft edge damping", func(p *Params) { p.Boundary = BoundarySoft; p.EdgeDamping = 1 }, "edge damping must be in (0,1)"},
		{"mixed without profile", func(p *Params) { p.Boundary = BoundaryMixed }, "mixed boundary requires a profile"},
		{"unknown mode", func(p *Params) { p.Boundary = BoundaryMode(9) }, "unknown boundary mode"},
		{"super CFL allowed", func(p *Params) { p.WaveSpeed = 3 }, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := DefaultParams()
			tt.mutate(&p)
			err := p.Validate()
			if tt.want == "" {
				assert.NoError(t, err)
				return
			}
			require.ErrorIs(t, err, ErrInvalidParams)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestCourant(t *testing.T) {
	p := Params{WaveSpeed: 0.12, Dt: 1.0 / 60, Dx: 1.0 / 255}
	assert.InDelta(t, 0.51, p.Courant(), 1e-9)
	assert.True(t, p.WithinCFL())

	p.WaveSpeed = 0.2
	assert.False(t, p.WithinCFL())
	assert.InDelta(t, 0.7071, CFLLimit, 1e-4)
}

func TestParseBoundaryMode(t *testing.T) {
	for name, want := range map[string]BoundaryMode{
		"hard":    BoundaryHard,
		"Soft":    BoundarySoft,
		" MIXED ": BoundaryMixed,
	} {
		m, err := ParseBoundaryMode(name)
		require.NoError(t, err)
		assert.Equal(t, want, m)
	}
	assert.Equal(t, "mixed", BoundaryMixed.String())
	assert.Equal(t, "BoundaryMode(7)", BoundaryMode(7).String())

	_, err := ParseBoundaryMode("sticky")
	assert.Error(t, err)
}

func TestSectorProfile(t *testing.T) {
	profile := SectorProfile([]Sector{
		{From: 0, To: 90, Hardness: 1},
		{From: 300, To: 30, Hardness: 0.5},
	}, 0.25)

	deg := func(d float64) float64 { return d * math.Pi / 180 }
	assert.Equal(t, 1.0, profile(deg(45)))
	assert.Equal(t, 1.0, profile(deg(10)), "first matching sector wins")
	assert.Equal(t, 0.5, profile(deg(320)))
	assert.Equal(t, 0.5, profile(deg(-30)))
	assert.Equal(t, 0.25, profile(deg(180)))
}

func TestBuildGain(t *testing.T) {
	const size = 41
	center := size / 2
	spacing := 1.0 / float64(size-1)

	p := DefaultParams()
	p.ContainerRadius = 0.25

	hard := buildGain(size, p)
	assert.Equal(t, float32(1), hard[center*size+center])
	assert.Zero(t, hard[center*size+size-3], "outside the container")
	for x := 0; x < size; x++ {
		assert.Zero(t, hard[x], "top edge ring")
		assert.Zero(t, hard[(size-1)*size+x], "bottom edge ring")
	}

	p.Boundary = BoundarySoft
	soft := buildGain(size, p)
	near := soft[center*size+center+11]
	far := soft[center*size+center+16]
	assert.Greater(t, near, far)
	assert.Greater(t, far, float32(0))
	assert.Less(t, near, float32(1))
	wantNear := math.Pow(p.EdgeDamping, (11*spacing-p.ContainerRadius)/spacing)
	assert.InDelta(t, wantNear, near, 1e-6)

	p.Boundary = BoundaryMixed
	p.Profile = SectorProfile([]Sector{{From: 0, To: 180, Hardness: 1}}, 0)
	mixed := buildGain(size, p)
	below := (center+15)*size + center
	above := (center-15)*size + center
	assert.Zero(t, mixed[below], "rows grow downwards so +90 degrees is below the centre")
	assert.Equal(t, soft[above], mixed[above])
}

func TestBuildRowMasks(t *testing.T) {
	const size = 6
	gain := make([]float32, size*size)
	for x := 1; x <= 4; x++ {
		gain[2*size+x] = 1
	}
	gain[2*size+3] = 0
	gain[3*size+4] = 0.5

	rows := buildRowMasks(size, gain)
	require.Len(t, rows, 2)
	assert.Equal(t, rowMask{y: 2, spans: []span{{1, 2}, {4, 4}}}, rows[0])
	assert.Equal(t, rowMask{y: 3, spans: []span{{4, 4}}}, rows[1])

	masks := assignRowMasks(3, rows)
	require.Len(t, masks, 3)
	assert.Len(t, masks[0].rows, 1)
	assert.Len(t, masks[1].rows, 1)
	assert.Empty(t, masks[2].rows)
}
