package wave

import (
	"errors"
	"fmt"
	"strings"
)

// ErrUnavailable reports a backend that cannot run on this build or machine.
var ErrUnavailable = errors.New("wave backend unavailable")

// Backend names accepted by Options.Backend.
const (
	BackendCPU    = "cpu"
	BackendOpenCL = "opencl"
)

// stepJob carries everything a kernel needs for one tick. The kernel writes
// the next state into buffers[1-cur] in place.
type stepJob struct {
	size    int
	buffers [2][]float32
	cur     int
	force   []float32
	gain    []float32
	coeffs  coefficients
	// dirty is set whenever the host buffers changed outside a step.
	dirty bool
}

func (j stepJob) current() []float32  { return j.buffers[j.cur] }
func (j stepJob) previous() []float32 { return j.buffers[1-j.cur] }

// stepStats summarizes the freshly written buffer.
type stepStats struct {
	peak float32
	nan  bool
}

func (s stepStats) merge(o stepStats) stepStats {
	if o.peak > s.peak {
		s.peak = o.peak
	}
	s.nan = s.nan || o.nan
	return s
}

// kernel executes the per-cell update over the whole grid.
type kernel interface {
	configure(size int, gain []float32, rows []rowMask) error
	step(job stepJob) (stepStats, error)
	name() string
	close()
}

func newKernel(backend string, workers int) (kernel, error) {
	switch strings.ToLower(strings.TrimSpace(backend)) {
	case "", BackendCPU:
		return newWorkerPool(workers), nil
	case BackendOpenCL:
		k, err := newOpenCLKernel()
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
		return k, nil
	default:
		return nil, fmt.Errorf("unknown wave backend %q", backend)
	}
}
