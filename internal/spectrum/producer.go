package spectrum

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
)

// Producer analyses a track at the clock's playback head on a fixed cadence
// and publishes the frames into a Slot.
type Producer struct {
	logger   *zap.Logger
	track    *Track
	analyzer *Analyzer
	clock    Clock
	period   time.Duration
	slot     *Slot
	window   []float64
}

// NewProducer wires a producer. rate is the number of frames per second.
func NewProducer(logger *zap.Logger, track *Track, analyzer *Analyzer, clock Clock, rate float64, slot *Slot) (*Producer, error) {
	if track.Len() == 0 {
		return nil, errors.New("spectrum producer needs a non-empty track")
	}
	if analyzer == nil || clock == nil || slot == nil {
		return nil, errors.New("spectrum producer needs an analyzer, a clock and a slot")
	}
	if rate <= 0 {
		return nil, errors.New("analysis rate must be positive")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Producer{
		logger:   logger.Named("spectrum"),
		track:    track,
		analyzer: analyzer,
		clock:    clock,
		period:   time.Duration(float64(time.Second) / rate),
		slot:     slot,
		window:   make([]float64, analyzer.WindowSize()),
	}, nil
}

// Frame analyses the window ending at pos. It is not safe to call
// concurrently with Run.
func (p *Producer) Frame(pos time.Duration) *Frame {
	end := p.track.Index(pos)
	p.track.Mono(p.window, end)

	f := &Frame{
		Bins:       p.analyzer.Analyze(p.window),
		Amplitudes: make([]float64, len(p.track.Channels)),
		At:         pos,
	}
	for c, ch := range p.track.Channels {
		f.Amplitudes[c] = float64(ch[end])
		f.Level += f.Amplitudes[c]
	}
	f.Level /= float64(len(p.track.Channels))
	return f
}

// Run publishes one frame per period until ctx is cancelled.
func (p *Producer) Run(ctx context.Context) error {
	p.logger.Info("Audio analysis started",
		zap.Duration("period", p.period),
		zap.Duration("loop", p.track.Duration()),
		zap.Int("channels", len(p.track.Channels)))
	ticker := time.NewTicker(p.period)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			published, dropped := p.slot.Stats()
			p.logger.Info("Audio analysis stopped",
				zap.Uint64("published", published),
				zap.Uint64("dropped", dropped))
			return nil
		case <-ticker.C:
			p.slot.Publish(p.Frame(p.clock.Position()))
		}
	}
}
