package wave

// span represents an inclusive column range inside a row mask.
type span struct{ start, end int }

// rowMask groups contiguous spans for a single row that requires computation.
type rowMask struct {
	y     int
	spans []span
}

// workerMask collects the row masks assigned to a worker goroutine.
type workerMask struct {
	rows []rowMask
}

// buildRowMasks describes the interior cells with a non-zero boundary gain.
// Cells outside every span are never written and stay at zero.
func buildRowMasks(size int, gain []float32) []rowMask {
	if size < 3 {
		return nil
	}
	rows := make([]rowMask, 0, size-2)
	for y := 1; y < size-1; y++ {
		base := y * size
		spans := make([]span, 0, 2)
		in := false
		start := 0
		for x := 1; x < size-1; x++ {
			active := gain[base+x] != 0
			if active && !in {
				in = true
				start = x
			}
			if !active && in {
				spans = append(spans, span{start: start, end: x - 1})
				in = false
			}
		}
		if in {
			spans = append(spans, span{start: start, end: size - 2})
		}
		if len(spans) == 0 {
			continue
		}
		rows = append(rows, rowMask{y: y, spans: spans})
	}
	return rows
}

// assignRowMasks distributes row masks across worker goroutines in round robin fashion.
func assignRowMasks(workerCount int, rows []rowMask) []workerMask {
	if workerCount < 1 {
		workerCount = 1
	}
	masks := make([]workerMask, workerCount)
	for idx, row := range rows {
		workerIdx := idx % workerCount
		masks[workerIdx].rows = append(masks[workerIdx].rows, row)
	}
	return masks
}
