// Package spectrum turns audio into the periodic snapshots that drive the
// forcing synthesizer, and hands them across goroutines through a
// latest-value slot.
package spectrum

import "time"

// Bin is one analysed frequency band.
type Bin struct {
	Hz        float64
	Magnitude float64
}

// Frame is a single analysis snapshot. Amplitudes holds the instantaneous
// signed sample of each channel at the analysis head; Level is their mix.
type Frame struct {
	Bins       []Bin
	Amplitudes []float64
	Level      float64
	// At is the playback position the frame was taken from.
	At time.Duration
}

// Source yields the newest frame, or nil when nothing new arrived since the
// previous call. Pull must not block.
type Source interface {
	Pull() *Frame
}

// Channel returns the amplitude bound to channel index ch. Indexes outside
// the frame fall back to the mixed level, so a mono producer still drives
// sources bound to channel 1.
func (f *Frame) Channel(ch int) float64 {
	if f == nil {
		return 0
	}
	if ch >= 0 && ch < len(f.Amplitudes) {
		return f.Amplitudes[ch]
	}
	return f.Level
}
