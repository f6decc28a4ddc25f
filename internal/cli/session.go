package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/Sonified/cymatics-ifft-simulation/internal/config"
	"github.com/Sonified/cymatics-ifft-simulation/internal/engine"
	"github.com/Sonified/cymatics-ifft-simulation/internal/spectrum"
)

// session bundles the audio side and the pipeline of one run.
type session struct {
	logger      *zap.Logger
	pipeline    *engine.Pipeline
	producer    *spectrum.Producer
	playback    *spectrum.Playback
	stopProfile func()
}

// openSession loads the track, starts playback when asked and configured,
// and builds the pipeline. Close must be called on success.
func openSession(st *state, withPlayback bool) (s *session, err error) {
	cfg := st.cfg
	s = &session{logger: st.logger}
	defer func() {
		if err != nil {
			s.Close()
		}
	}()

	if cfg.Runtime.CPUProfile != "" {
		if s.stopProfile, err = startCPUProfile(st.logger, cfg.Runtime.CPUProfile); err != nil {
			return nil, fmt.Errorf("starting CPU profile: %w", err)
		}
	}

	track, err := loadTrack(st.logger, cfg.Audio)
	if err != nil {
		return nil, err
	}
	analyzer, err := spectrum.NewAnalyzer(cfg.Audio.AnalyzerConfig())
	if err != nil {
		return nil, fmt.Errorf("creating analyzer: %w", err)
	}

	var clock spectrum.Clock = spectrum.NewWallClock()
	if withPlayback && cfg.Audio.Playback {
		pb, perr := spectrum.StartPlayback(track)
		if perr != nil {
			st.logger.Warn("Audio playback unavailable; analysing on the wall clock", zap.Error(perr))
		} else {
			s.playback = pb
			clock = pb
		}
	}

	slot := spectrum.NewSlot()
	if s.producer, err = spectrum.NewProducer(st.logger, track, analyzer, clock, cfg.Audio.AnalysisRate, slot); err != nil {
		return nil, err
	}
	if s.pipeline, err = engine.New(st.logger, cfg, slot); err != nil {
		return nil, err
	}
	watchConfig(st, s.pipeline)
	return s, nil
}

func loadTrack(logger *zap.Logger, cfg config.AudioConfig) (*spectrum.Track, error) {
	if cfg.File == "" {
		tone := spectrum.DefaultTone(cfg.SampleRate)
		logger.Info("No audio file configured; using the built-in tone sweep",
			zap.Float64("start_hz", tone.StartHz),
			zap.Float64("end_hz", tone.EndHz),
			zap.Duration("length", tone.Length))
		return spectrum.Tone(tone)
	}
	track, err := spectrum.LoadWAV(cfg.File, cfg.SampleRate)
	if err != nil {
		return nil, err
	}
	logger.Info("Audio file loaded",
		zap.String("file", cfg.File),
		zap.Int("channels", len(track.Channels)),
		zap.Duration("duration", track.Duration()))
	return track, nil
}

// watchConfig re-applies the configuration whenever the file changes. An
// invalid edit is logged and the pipeline keeps running on the last good one.
func watchConfig(st *state, pipeline *engine.Pipeline) {
	if st.viper == nil || st.viper.ConfigFileUsed() == "" {
		return
	}
	st.viper.OnConfigChange(func(e fsnotify.Event) {
		cfg, err := config.NewConfigFromViper(st.viper)
		if err == nil {
			err = pipeline.Apply(cfg)
		}
		if err != nil {
			st.logger.Warn("Ignoring configuration change", zap.String("file", e.Name), zap.Error(err))
			return
		}
		st.logger.Info("Configuration reloaded", zap.String("file", e.Name), zap.Stringer("op", e.Op))
	})
	st.viper.WatchConfig()
}

// logStats logs the pipeline counters every interval until ctx is done.
func logStats(ctx context.Context, pipeline *engine.Pipeline, interval time.Duration) error {
	if interval <= 0 {
		return nil
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			pipeline.LogStats()
		}
	}
}

// Close releases the pipeline, playback and profile.
func (s *session) Close() {
	if s.pipeline != nil {
		s.pipeline.Close()
	}
	if s.playback != nil {
		if err := s.playback.Close(); err != nil {
			s.logger.Warn("Stopping playback failed", zap.Error(err))
		}
	}
	if s.stopProfile != nil {
		s.stopProfile()
	}
}
