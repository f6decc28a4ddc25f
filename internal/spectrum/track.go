package spectrum

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/hajimehoshi/ebiten/v2/audio/wav"
)

// Track is a looping multichannel clip held in memory. Channels[c][i] is
// sample i of channel c in [-1, 1].
type Track struct {
	Rate     int
	Channels [][]float32
}

// Len returns the number of sample frames.
func (t *Track) Len() int {
	if t == nil || len(t.Channels) == 0 {
		return 0
	}
	return len(t.Channels[0])
}

// Duration returns the loop length.
func (t *Track) Duration() time.Duration {
	if t.Len() == 0 || t.Rate <= 0 {
		return 0
	}
	return time.Duration(t.Len()) * time.Second / time.Duration(t.Rate)
}

// Index maps a playback position onto a frame index, wrapping at the loop
// boundary.
func (t *Track) Index(pos time.Duration) int {
	n := t.Len()
	if n == 0 {
		return 0
	}
	i := int(pos.Seconds()*float64(t.Rate)) % n
	if i < 0 {
		i += n
	}
	return i
}

// Mono fills dst with the channel mix of the len(dst) frames ending at end
// (inclusive), wrapping backwards through the loop.
func (t *Track) Mono(dst []float64, end int) {
	n := t.Len()
	if n == 0 {
		clear(dst)
		return
	}
	scale := 1 / float64(len(t.Channels))
	idx := end - len(dst) + 1
	for i := range dst {
		j := ((idx+i)%n + n) % n
		var sum float64
		for _, ch := range t.Channels {
			sum += float64(ch[j])
		}
		dst[i] = sum * scale
	}
}

// LoadWAV decodes the file at path, resampled to sampleRate, into a stereo
// track.
func LoadWAV(path string, sampleRate int) (*Track, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	stream, err := wav.DecodeWithSampleRate(sampleRate, bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("decoding %q: %w", path, err)
	}
	decoded, err := io.ReadAll(stream)
	if err != nil {
		return nil, fmt.Errorf("reading decoded %q: %w", path, err)
	}
	track := decodeStereoI16(sampleRate, decoded)
	if track.Len() == 0 {
		return nil, fmt.Errorf("wav %q has no audio data", path)
	}
	return track, nil
}

// decodeStereoI16 splits interleaved little-endian stereo PCM, the format the
// ebiten decoders emit, into float channels.
func decodeStereoI16(rate int, pcm []byte) *Track {
	frames := len(pcm) / 4
	left := make([]float32, frames)
	right := make([]float32, frames)
	for i := 0; i < frames; i++ {
		off := i * 4
		left[i] = float32(int16(binary.LittleEndian.Uint16(pcm[off:off+2]))) / 32768
		right[i] = float32(int16(binary.LittleEndian.Uint16(pcm[off+2:off+4]))) / 32768
	}
	return &Track{Rate: rate, Channels: [][]float32{left, right}}
}

// PCM encodes the track as interleaved 16-bit stereo for playback. Mono
// tracks are duplicated onto both channels; extra channels are ignored.
func (t *Track) PCM() ([]byte, error) {
	if t.Len() == 0 {
		return nil, errors.New("empty track")
	}
	left := t.Channels[0]
	right := left
	if len(t.Channels) > 1 {
		right = t.Channels[1]
	}
	out := make([]byte, t.Len()*4)
	for i := range left {
		l := int16(clampUnit(left[i]) * 32767)
		r := int16(clampUnit(right[i]) * 32767)
		binary.LittleEndian.PutUint16(out[i*4:], uint16(l))
		binary.LittleEndian.PutUint16(out[i*4+2:], uint16(r))
	}
	return out, nil
}

func clampUnit(v float32) float32 {
	if v > 1 {
		return 1
	}
	if v < -1 {
		return -1
	}
	return v
}
