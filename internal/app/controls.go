package app

import (
	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/inpututil"
	"go.uber.org/zap"
)

// forceStep is the factor applied per +/- press.
const forceStep = 1.25

// handleControls processes the keyboard shortcuts.
func (g *Game) handleControls() {
	if inpututil.IsKeyJustPressed(ebiten.KeyV) {
		mode := g.pipeline.CycleMode()
		g.logger.Info("Visualization mode changed", zap.Stringer("mode", mode))
	}
	if inpututil.IsKeyJustPressed(ebiten.KeyR) {
		g.pipeline.Reset()
	}
	if inpututil.IsKeyJustPressed(ebiten.KeyP) || inpututil.IsKeyJustPressed(ebiten.KeySpace) {
		paused := !g.pipeline.Paused()
		g.pipeline.SetPaused(paused)
		g.logger.Info("Simulation pause toggled", zap.Bool("paused", paused))
	}
	if inpututil.IsKeyJustPressed(ebiten.KeyTab) {
		g.debug = !g.debug
	}
	if inpututil.IsKeyJustPressed(ebiten.KeyEqual) || inpututil.IsKeyJustPressed(ebiten.KeyKPAdd) {
		g.adjustForce(forceStep)
	}
	if inpututil.IsKeyJustPressed(ebiten.KeyMinus) || inpututil.IsKeyJustPressed(ebiten.KeyKPSubtract) {
		g.adjustForce(1 / forceStep)
	}
}

func (g *Game) adjustForce(factor float64) {
	strength := g.pipeline.ScaleForce(factor)
	g.logger.Debug("Force strength adjusted", zap.Float64("force_strength", strength))
}
