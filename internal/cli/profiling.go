package cli

import (
	"os"
	"runtime/pprof"
	"sync"
	"time"

	"go.uber.org/zap"
)

// startCPUProfile begins writing a CPU profile to path. The returned stop
// function is safe to call more than once.
func startCPUProfile(logger *zap.Logger, path string) (func(), error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	if err := pprof.StartCPUProfile(f); err != nil {
		f.Close()
		return nil, err
	}
	started := time.Now()
	logger.Info("CPU profiling started", zap.String("path", path))

	var once sync.Once
	return func() {
		once.Do(func() {
			pprof.StopCPUProfile()
			if err := f.Close(); err != nil {
				logger.Warn("Closing CPU profile failed", zap.String("path", path), zap.Error(err))
				return
			}
			logger.Info("CPU profile written",
				zap.String("path", path),
				zap.Duration("duration", time.Since(started)))
		})
	}, nil
}
