package spectrum

import (
	"errors"
	"fmt"
	"math"
	"math/cmplx"

	"github.com/mjibson/go-dsp/fft"
	"github.com/mjibson/go-dsp/window"
	"gonum.org/v1/gonum/floats"
)

// AnalyzerConfig sizes the FFT and the band layout.
type AnalyzerConfig struct {
	SampleRate int
	FFTSize    int
	Bands      int
	MinHz      float64
	MaxHz      float64
}

func (c AnalyzerConfig) validate() error {
	switch {
	case c.SampleRate <= 0:
		return errors.New("sample rate must be positive")
	case c.FFTSize < 16 || c.FFTSize&(c.FFTSize-1) != 0:
		return fmt.Errorf("fft size must be a power of two >= 16, got %d", c.FFTSize)
	case c.Bands < 1:
		return errors.New("band count must be at least 1")
	case c.MinHz <= 0 || c.MaxHz <= c.MinHz:
		return fmt.Errorf("band range [%g, %g] Hz is empty", c.MinHz, c.MaxHz)
	case c.MaxHz > float64(c.SampleRate)/2:
		return fmt.Errorf("max frequency %g Hz is above Nyquist", c.MaxHz)
	}
	return nil
}

// Analyzer reduces a window of mono samples to log-spaced band magnitudes.
// It is not safe for concurrent use.
type Analyzer struct {
	cfg     AnalyzerConfig
	buf     []float64
	mags    []float64
	edges   []float64
	centres []float64
	norm    float64
}

// NewAnalyzer precomputes the band edges and the Hann normalisation.
func NewAnalyzer(cfg AnalyzerConfig) (*Analyzer, error) {
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("spectrum analyzer: %w", err)
	}
	a := &Analyzer{
		cfg:     cfg,
		buf:     make([]float64, cfg.FFTSize),
		mags:    make([]float64, cfg.FFTSize/2+1),
		edges:   make([]float64, cfg.Bands+1),
		centres: make([]float64, cfg.Bands),
	}
	ratio := math.Pow(cfg.MaxHz/cfg.MinHz, 1/float64(cfg.Bands))
	for i := range a.edges {
		a.edges[i] = cfg.MinHz * math.Pow(ratio, float64(i))
	}
	for i := range a.centres {
		a.centres[i] = math.Sqrt(a.edges[i] * a.edges[i+1])
	}
	// A full-scale sine centred on a bin reads as magnitude 1.
	a.norm = 2 / floats.Sum(window.Hann(cfg.FFTSize))
	return a, nil
}

// WindowSize is the number of samples Analyze consumes.
func (a *Analyzer) WindowSize() int { return a.cfg.FFTSize }

// Analyze windows samples (the most recent FFTSize values, zero padded when
// shorter) and returns one bin per band, ordered by frequency.
func (a *Analyzer) Analyze(samples []float64) []Bin {
	clear(a.buf)
	if len(samples) > len(a.buf) {
		samples = samples[len(samples)-len(a.buf):]
	}
	copy(a.buf[len(a.buf)-len(samples):], samples)
	window.Apply(a.buf, window.Hann)

	coeffs := fft.FFTReal(a.buf)
	for i := range a.mags {
		a.mags[i] = cmplx.Abs(coeffs[i])
	}
	floats.Scale(a.norm, a.mags)

	resolution := float64(a.cfg.SampleRate) / float64(a.cfg.FFTSize)
	bins := make([]Bin, a.cfg.Bands)
	for b := range bins {
		lo := int(math.Ceil(a.edges[b] / resolution))
		hi := int(math.Floor(a.edges[b+1] / resolution))
		hi = min(hi, len(a.mags)-1)
		var mag float64
		if lo <= hi {
			mag = floats.Max(a.mags[lo : hi+1])
		} else {
			// Band narrower than one FFT bin.
			mag = a.mags[min(int(math.Round(a.centres[b]/resolution)), len(a.mags)-1)]
		}
		bins[b] = Bin{Hz: a.centres[b], Magnitude: mag}
	}
	return bins
}
