package grid

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFieldCoordinates(t *testing.T) {
	f := New(5)
	require.Len(t, f.Values, 25)

	assert.Equal(t, 0.25, f.Spacing())
	assert.Equal(t, 0.0, f.Coord(0))
	assert.Equal(t, 1.0, f.Coord(4))
	assert.Equal(t, 2, f.Cell(0.5))
	assert.Equal(t, 4, f.Cell(3), "cell lookups clamp to the grid")

	f.Set(3, 1, 2.5)
	assert.Equal(t, float32(2.5), f.At(3, 1))
	assert.Equal(t, 8, f.Index(3, 1))

	f.Zero()
	assert.Equal(t, float32(0), f.At(3, 1))
}

func TestFieldMaxAbs(t *testing.T) {
	f := New(3)
	f.Values[4] = -3
	f.Values[1] = 2

	peak, finite := f.MaxAbs()
	assert.True(t, finite)
	assert.Equal(t, float32(3), peak)

	f.Values[7] = float32(math.Inf(1))
	_, finite = f.MaxAbs()
	assert.False(t, finite)

	f.Values[7] = float32(math.NaN())
	_, finite = f.MaxAbs()
	assert.False(t, finite)
}

func TestFootprintIsDisc(t *testing.T) {
	assert.Equal(t, []Offset{{0, 0}}, Footprint(0))

	fp := Footprint(3)
	assert.Len(t, fp, 29)
	for _, o := range fp {
		assert.LessOrEqual(t, o.DX*o.DX+o.DY*o.DY, 9)
	}
	assert.Contains(t, fp, Offset{DX: 3, DY: 0})
	assert.NotContains(t, fp, Offset{DX: 3, DY: 1})
}

func TestClamp(t *testing.T) {
	assert.Equal(t, 0, Clamp(-4, 0, 10))
	assert.Equal(t, 10, Clamp(12, 0, 10))
	assert.Equal(t, 7, Clamp(7, 0, 10))
}
