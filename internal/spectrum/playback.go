package spectrum

import (
	"bytes"
	"fmt"
	"time"

	"github.com/hajimehoshi/ebiten/v2/audio"
)

const playbackBufferLatency = 60 * time.Millisecond

// Clock reports the current playback head.
type Clock interface {
	Position() time.Duration
}

// WallClock advances with real time from the moment it is created. It stands
// in for playback when audio output is disabled.
type WallClock struct {
	start time.Time
}

// NewWallClock starts a clock at zero.
func NewWallClock() *WallClock {
	return &WallClock{start: time.Now()}
}

// Position returns the time elapsed since the clock was created.
func (c *WallClock) Position() time.Duration {
	return time.Since(c.start)
}

// Playback loops a track through the ebiten audio context. Its position is
// the analysis head, which keeps the pattern in step with what is heard.
type Playback struct {
	player *audio.Player
}

// StartPlayback starts looping track. Only one audio context can exist per
// process, so an existing context must share the track's sample rate.
func StartPlayback(track *Track) (*Playback, error) {
	ctx := audio.CurrentContext()
	if ctx == nil {
		ctx = audio.NewContext(track.Rate)
	} else if ctx.SampleRate() != track.Rate {
		return nil, fmt.Errorf("audio context runs at %d Hz, track at %d Hz", ctx.SampleRate(), track.Rate)
	}
	pcm, err := track.PCM()
	if err != nil {
		return nil, fmt.Errorf("encoding track for playback: %w", err)
	}
	loop := audio.NewInfiniteLoop(bytes.NewReader(pcm), int64(len(pcm)))
	player, err := ctx.NewPlayer(loop)
	if err != nil {
		return nil, fmt.Errorf("audio player creation failed: %w", err)
	}
	player.SetBufferSize(playbackBufferLatency)
	player.Play()
	return &Playback{player: player}, nil
}

// Position returns the player's position; it grows past the loop length and
// Track.Index wraps it.
func (p *Playback) Position() time.Duration {
	return p.player.Position()
}

// Close stops playback.
func (p *Playback) Close() error {
	return p.player.Close()
}
