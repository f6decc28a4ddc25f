// Package grid holds the square scalar buffers shared by the simulator, the
// forcing synthesizer and the renderer, plus small integer-coordinate helpers.
package grid

import "math"

// Field is a square scalar grid stored row-major. The zero value is an empty
// field; a Field is a view, copies share the underlying values.
type Field struct {
	Size   int
	Values []float32
}

// New allocates a zeroed size×size field.
func New(size int) Field {
	if size < 0 {
		size = 0
	}
	return Field{Size: size, Values: make([]float32, size*size)}
}

// Index returns the row-major offset of cell (x, y).
func (f Field) Index(x, y int) int {
	return y*f.Size + x
}

// At reads cell (x, y).
func (f Field) At(x, y int) float32 {
	return f.Values[y*f.Size+x]
}

// Set writes cell (x, y).
func (f Field) Set(x, y int, v float32) {
	f.Values[y*f.Size+x] = v
}

// Zero clears every cell.
func (f Field) Zero() {
	clear(f.Values)
}

// Spacing is the distance between neighbouring cell centres in normalized
// domain units, where the first and last cells sit on 0 and 1.
func (f Field) Spacing() float64 {
	if f.Size <= 1 {
		return 1
	}
	return 1 / float64(f.Size-1)
}

// Coord maps a column or row index to its normalized domain coordinate.
func (f Field) Coord(i int) float64 {
	if f.Size <= 1 {
		return 0.5
	}
	return float64(i) / float64(f.Size-1)
}

// Cell maps a normalized coordinate back to the nearest cell index.
func (f Field) Cell(u float64) int {
	if f.Size <= 1 {
		return 0
	}
	return Clamp(int(math.Round(u*float64(f.Size-1))), 0, f.Size-1)
}

// MaxAbs returns the largest magnitude in the field and whether every cell is
// finite.
func (f Field) MaxAbs() (float32, bool) {
	var peak float32
	for _, v := range f.Values {
		if v != v || math.IsInf(float64(v), 0) {
			return peak, false
		}
		if v < 0 {
			v = -v
		}
		if v > peak {
			peak = v
		}
	}
	return peak, true
}
