package wave

import "math"

// buildGain precomputes the per-cell boundary factor applied after the
// stencil. Interior cells inside the container get 1, the outer ring of the
// grid is always 0.
func buildGain(size int, p Params) []float32 {
	gain := make([]float32, size*size)
	if size < 3 {
		return gain
	}
	spacing := 1 / float64(size-1)
	radius := p.ContainerRadius
	for y := 1; y < size-1; y++ {
		dy := float64(y)*spacing - 0.5
		row := y * size
		for x := 1; x < size-1; x++ {
			dx := float64(x)*spacing - 0.5
			r := math.Hypot(dx, dy)
			if r <= radius {
				gain[row+x] = 1
				continue
			}
			soft := math.Pow(p.EdgeDamping, (r-radius)/spacing)
			switch p.Boundary {
			case BoundaryHard:
				gain[row+x] = 0
			case BoundarySoft:
				gain[row+x] = float32(soft)
			case BoundaryMixed:
				hard := clamp01(p.Profile(math.Atan2(dy, dx)))
				gain[row+x] = float32((1 - hard) * soft)
			}
		}
	}
	return gain
}

// zeroWalled clears every cell whose gain is zero so that newly walled cells
// do not keep stale displacement.
func zeroWalled(gain []float32, buffers ...[]float32) {
	for i, g := range gain {
		if g != 0 {
			continue
		}
		for _, buf := range buffers {
			buf[i] = 0
		}
	}
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
