package grid

// Offset is a relative cell displacement.
type Offset struct {
	DX int
	DY int
}

// Footprint precomputes the offsets of every cell inside a disc of the given
// radius, row by row.
func Footprint(radius int) []Offset {
	if radius < 0 {
		radius = 0
	}
	footprint := make([]Offset, 0, (2*radius+1)*(2*radius+1))
	r2 := radius * radius
	for y := -radius; y <= radius; y++ {
		for x := -radius; x <= radius; x++ {
			if x*x+y*y <= r2 {
				footprint = append(footprint, Offset{DX: x, DY: y})
			}
		}
	}
	return footprint
}

// Clamp constrains v to lie within the inclusive [min, max] range.
func Clamp(v, min, max int) int {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}
