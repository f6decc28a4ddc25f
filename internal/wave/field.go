package wave

import "github.com/Sonified/cymatics-ifft-simulation/internal/grid"

// heightGrid stores the two wave buffers required by the leapfrog solver.
// cur selects which arena is logically current; the other one holds the
// previous tick and receives the next one in place.
type heightGrid struct {
	size    int
	buffers [2][]float32
	cur     int
}

// newHeightGrid allocates a heightGrid with zeroed buffers.
func newHeightGrid(size int) *heightGrid {
	return &heightGrid{
		size: size,
		buffers: [2][]float32{
			make([]float32, size*size),
			make([]float32, size*size),
		},
	}
}

func (g *heightGrid) current() []float32  { return g.buffers[g.cur] }
func (g *heightGrid) previous() []float32 { return g.buffers[1-g.cur] }

// swap flips the roles of the two arenas: the freshly written buffer becomes
// current and the old current becomes previous.
func (g *heightGrid) swap() {
	g.cur ^= 1
}

// zero clears both buffers.
func (g *heightGrid) zero() {
	clear(g.buffers[0])
	clear(g.buffers[1])
}

// view exposes the current buffer as a grid.Field.
func (g *heightGrid) view() grid.Field {
	return grid.Field{Size: g.size, Values: g.current()}
}
