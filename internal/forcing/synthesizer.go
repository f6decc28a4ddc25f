package forcing

import (
	"math"
	"slices"

	"go.uber.org/zap"

	"github.com/Sonified/cymatics-ifft-simulation/internal/grid"
	"github.com/Sonified/cymatics-ifft-simulation/internal/spectrum"
)

// maxStamps bounds the footprint cache; sources rarely move, so hitting it
// means positions are being animated and the cache is rebuilt from scratch.
const maxStamps = 64

// stampCell is one grid cell under a source with its falloff weight and its
// distance from the source centre.
type stampCell struct {
	index  int
	weight float32
	dist   float64
}

type stampKey struct {
	x, y, radius float64
}

// basisKey identifies the parameters the cached cos/sin tables were built
// for.
type basisKey struct {
	base, ref, minimum float64
}

type stamp struct {
	cells []stampCell

	basis basisKey
	hz    []float64
	wave  []float64 // k per band
	cosKR [][]float32
	sinKR [][]float32
}

// Synthesizer turns frames into force fields for a fixed grid size. It keeps
// the last frame for stale ticks and caches source footprints. It is not safe
// for concurrent use.
type Synthesizer struct {
	logger *zap.Logger
	field  grid.Field
	stamps map[stampKey]*stamp

	last       *spectrum.Frame
	staleTicks int
	faded      bool
	ticks      uint64

	cosCoef []float64
	sinCoef []float64
}

// NewSynthesizer allocates the output field for a size×size grid.
func NewSynthesizer(logger *zap.Logger, size int) *Synthesizer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Synthesizer{
		logger: logger.Named("forcing"),
		field:  grid.New(size),
		stamps: make(map[stampKey]*stamp),
	}
}

// Size returns the grid size of the produced fields.
func (s *Synthesizer) Size() int { return s.field.Size }

// Resize reallocates the output field and drops every cached footprint.
func (s *Synthesizer) Resize(size int) {
	if size == s.field.Size {
		return
	}
	s.field = grid.New(size)
	clear(s.stamps)
}

// Reset forgets the last frame and restarts the travelling-wave clock.
func (s *Synthesizer) Reset() {
	s.last = nil
	s.staleTicks = 0
	s.faded = false
	s.ticks = 0
}

// StaleTicks reports how many consecutive ticks ran without a new frame.
func (s *Synthesizer) StaleTicks() int { return s.staleTicks }

// Synthesize builds this tick's force field. A nil frame means nothing new
// arrived: the previous frame is reused with a linear fade to zero over
// StaleDecayTicks. The returned field is reused by the next call. params must
// have passed Validate.
func (s *Synthesizer) Synthesize(frame *spectrum.Frame, sources []Source, params Params) grid.Field {
	s.field.Zero()
	s.ticks++

	active, fade := s.resolve(frame, params)
	if active == nil || fade == 0 || params.ForceStrength == 0 || len(sources) == 0 {
		for i := range sources {
			sources[i].Amplitude = 0
		}
		return s.field
	}

	t := float64(s.ticks) * params.Dt
	minimum := 2 * s.field.Spacing()
	strength := params.ForceStrength
	values := s.field.Values

	for i := range sources {
		src := &sources[i]
		radius := src.Radius
		if radius <= 0 {
			radius = params.SpeakerRadius
		}
		st := s.stamp(src.Position, radius)

		switch params.Mode {
		case ModeAmplitude:
			drive := active.Channel(src.Channel) * fade
			src.Amplitude = drive
			k := float32(strength * drive)
			for _, c := range st.cells {
				values[c.index] += k * c.weight
			}

		case ModeSpectrum:
			st.prepareBasis(active.Bins, params, minimum)
			s.cosCoef = s.cosCoef[:0]
			s.sinCoef = s.sinCoef[:0]
			var centre float64
			for b, bin := range active.Bins {
				omega := params.WaveSpeed * st.wave[b]
				m := bin.Magnitude * fade
				cosWT, sinWT := math.Cos(omega*t), math.Sin(omega*t)
				s.cosCoef = append(s.cosCoef, m*cosWT)
				s.sinCoef = append(s.sinCoef, m*sinWT)
				centre += m * cosWT
			}
			src.Amplitude = centre
			for j, c := range st.cells {
				// cos(kr - wt) = cos(kr)cos(wt) + sin(kr)sin(wt)
				var drive float64
				for b := range s.cosCoef {
					drive += s.cosCoef[b]*float64(st.cosKR[b][j]) + s.sinCoef[b]*float64(st.sinKR[b][j])
				}
				values[c.index] += float32(strength*drive) * c.weight
			}
		}
	}

	saturate(values, params.ForceLimit)
	return s.field
}

// resolve picks the frame to use this tick and the linear fade applied to it.
func (s *Synthesizer) resolve(frame *spectrum.Frame, params Params) (*spectrum.Frame, float64) {
	if frame != nil {
		if s.faded {
			s.logger.Info("Audio frames resumed", zap.Int("stale_ticks", s.staleTicks))
		}
		s.last = frame
		s.staleTicks = 0
		s.faded = false
		return frame, 1
	}
	if s.last == nil {
		return nil, 0
	}
	s.staleTicks++
	if s.staleTicks >= params.StaleDecayTicks {
		if !s.faded {
			s.logger.Info("Audio frames stale; forcing faded out", zap.Int("stale_ticks", s.staleTicks))
			s.faded = true
		}
		return s.last, 0
	}
	return s.last, 1 - float64(s.staleTicks)/float64(params.StaleDecayTicks)
}

// stamp returns the cached footprint for a source disc, building it on first
// use.
func (s *Synthesizer) stamp(pos [2]float64, radius float64) *stamp {
	key := stampKey{x: pos[0], y: pos[1], radius: radius}
	if st, ok := s.stamps[key]; ok {
		return st
	}
	if len(s.stamps) >= maxStamps {
		clear(s.stamps)
	}

	f := s.field
	spacing := f.Spacing()
	cx := pos[0] / spacing
	cy := pos[1] / spacing
	reach := int(math.Ceil(radius/spacing)) + 1
	baseX := int(math.Round(cx))
	baseY := int(math.Round(cy))

	st := &stamp{}
	for _, o := range grid.Footprint(reach) {
		x, y := baseX+o.DX, baseY+o.DY
		if x < 0 || y < 0 || x >= f.Size || y >= f.Size {
			continue
		}
		dist := math.Hypot(float64(x)-cx, float64(y)-cy) * spacing
		w := smoothstep(radius, 0.7*radius, dist)
		if w == 0 {
			continue
		}
		st.cells = append(st.cells, stampCell{index: f.Index(x, y), weight: float32(w), dist: dist})
	}
	s.stamps[key] = st
	return st
}

// prepareBasis (re)builds the per-band cos(kr) and sin(kr) tables when the
// band layout or the wavelength mapping changes.
func (st *stamp) prepareBasis(bins []spectrum.Bin, params Params, minimum float64) {
	key := basisKey{base: params.BaseWavelength, ref: params.ReferenceHz, minimum: minimum}
	if key == st.basis && len(bins) == len(st.hz) && slices.EqualFunc(bins, st.hz, func(b spectrum.Bin, hz float64) bool {
		return b.Hz == hz
	}) {
		return
	}
	st.basis = key
	st.hz = st.hz[:0]
	st.wave = st.wave[:0]
	st.cosKR = st.cosKR[:0]
	st.sinKR = st.sinKR[:0]
	for _, bin := range bins {
		k := 2 * math.Pi / params.Wavelength(bin.Hz, minimum)
		cosRow := make([]float32, len(st.cells))
		sinRow := make([]float32, len(st.cells))
		for j, c := range st.cells {
			cosRow[j] = float32(math.Cos(k * c.dist))
			sinRow[j] = float32(math.Sin(k * c.dist))
		}
		st.hz = append(st.hz, bin.Hz)
		st.wave = append(st.wave, k)
		st.cosKR = append(st.cosKR, cosRow)
		st.sinKR = append(st.sinKR, sinRow)
	}
}

// saturate applies limit*tanh(v/limit) so loud input compresses smoothly
// instead of clipping.
func saturate(values []float32, limit float64) {
	for i, v := range values {
		if v == 0 {
			continue
		}
		values[i] = float32(limit * math.Tanh(float64(v)/limit))
	}
}
