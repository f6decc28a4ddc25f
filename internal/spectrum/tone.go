package spectrum

import (
	"fmt"
	"math"
	"time"
)

// ToneConfig describes the synthetic stereo clip used when no audio file is
// configured. The left channel sweeps logarithmically from StartHz to EndHz
// and back; the right channel plays the same sweep a fifth higher.
type ToneConfig struct {
	Rate      int
	Length    time.Duration
	StartHz   float64
	EndHz     float64
	Harmonics int
	Gain      float64
}

// DefaultTone is a slow sweep across the band where a shallow water plate
// shows clear standing patterns.
func DefaultTone(rate int) ToneConfig {
	return ToneConfig{
		Rate:      rate,
		Length:    16 * time.Second,
		StartHz:   60,
		EndHz:     900,
		Harmonics: 3,
		Gain:      0.6,
	}
}

// Tone renders cfg into a looping track. The sweep is symmetric so the loop
// seam is continuous in frequency.
func Tone(cfg ToneConfig) (*Track, error) {
	if cfg.Rate <= 0 || cfg.Length <= 0 {
		return nil, fmt.Errorf("tone needs a positive rate and length, got %d Hz for %s", cfg.Rate, cfg.Length)
	}
	if cfg.StartHz <= 0 || cfg.EndHz <= 0 {
		return nil, fmt.Errorf("tone frequencies must be positive, got %g..%g Hz", cfg.StartHz, cfg.EndHz)
	}
	harmonics := max(cfg.Harmonics, 1)
	n := int(cfg.Length.Seconds() * float64(cfg.Rate))
	left := make([]float32, n)
	right := make([]float32, n)

	ratio := math.Log(cfg.EndHz / cfg.StartHz)
	var phaseL, phaseR float64
	var norm float64
	for h := 1; h <= harmonics; h++ {
		norm += 1 / float64(h)
	}
	for i := 0; i < n; i++ {
		// Triangle position in [0,1]: up during the first half, down after.
		u := 2 * float64(i) / float64(n)
		if u > 1 {
			u = 2 - u
		}
		f := cfg.StartHz * math.Exp(ratio*u)
		phaseL += 2 * math.Pi * f / float64(cfg.Rate)
		phaseR += 2 * math.Pi * f * 1.5 / float64(cfg.Rate)
		var l, r float64
		for h := 1; h <= harmonics; h++ {
			w := 1 / float64(h)
			l += w * math.Sin(float64(h)*phaseL)
			r += w * math.Sin(float64(h)*phaseR)
		}
		left[i] = float32(cfg.Gain * l / norm)
		right[i] = float32(cfg.Gain * r / norm)
	}
	return &Track{Rate: cfg.Rate, Channels: [][]float32{left, right}}, nil
}

// Sine returns a single-channel pure tone, mainly for calibration.
func Sine(rate int, hz, amplitude float64, length time.Duration) *Track {
	n := int(length.Seconds() * float64(rate))
	samples := make([]float32, n)
	for i := range samples {
		samples[i] = float32(amplitude * math.Sin(2*math.Pi*hz*float64(i)/float64(rate)))
	}
	return &Track{Rate: rate, Channels: [][]float32{samples}}
}
