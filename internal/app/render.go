package app

import (
	"fmt"
	"image/color"
	"math"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/ebitenutil"

	"github.com/Sonified/cymatics-ifft-simulation/internal/forcing"
)

const markerArm = 3

// Draw blits the shaded frame, then the source markers and the overlay.
func (g *Game) Draw(screen *ebiten.Image) {
	img := g.frame.Image
	if img == nil {
		return
	}
	canvas := g.ensureCanvas(img.Bounds())
	canvas.WritePixels(img.Pix)

	op := &ebiten.DrawImageOptions{}
	sw, sh := screen.Bounds().Dx(), screen.Bounds().Dy()
	op.GeoM.Scale(float64(sw)/float64(img.Bounds().Dx()), float64(sh)/float64(img.Bounds().Dy()))
	screen.DrawImage(canvas, op)

	if !g.debug {
		return
	}
	sources := g.pipeline.Sources()
	for _, s := range sources {
		drawMarker(screen, s, sw, sh)
	}

	stats := g.pipeline.Stats()
	state := "running"
	if g.pipeline.Paused() {
		state = "paused"
	}
	msg := fmt.Sprintf("FPS: %.1f  TPS: %.1f (%s)\nMode: %s (V)  Force: %.4f (+/-)\nTick: %d  Unstable: %d  Skipped: %d  Stale: %d\nStep: %.2f ms  Render: %.2f ms  Peak: %.4f",
		ebiten.ActualFPS(), max(ebiten.ActualTPS(), 0), state,
		g.pipeline.Mode(), g.pipeline.ForceStrength(),
		g.frame.Tick, stats.Unstable, stats.Skipped, stats.StaleTicks,
		stats.LastStep.Seconds()*1000, stats.LastRender.Seconds()*1000, stats.Peak)
	ebitenutil.DebugPrint(screen, msg)
}

// drawMarker crosses out a source position; brightness follows the drive it
// received this tick.
func drawMarker(screen *ebiten.Image, s forcing.Source, w, h int) {
	cx := int(math.Round(s.Position[0] * float64(w-1)))
	cy := int(math.Round(s.Position[1] * float64(h-1)))
	level := uint8(120 + 135*math.Min(math.Abs(s.Amplitude), 1))
	clr := color.RGBA{R: level, G: 40, B: 40, A: 255}
	drawLine(screen, cx-markerArm, cy, cx+markerArm, cy, w, h, clr)
	drawLine(screen, cx, cy-markerArm, cx, cy+markerArm, w, h, clr)
}

// drawLine plots a line segment using Bresenham's integer algorithm.
func drawLine(screen *ebiten.Image, x0, y0, x1, y1, w, h int, clr color.Color) {
	dx := abs(x1 - x0)
	sx := -1
	if x0 < x1 {
		sx = 1
	}
	dy := -abs(y1 - y0)
	sy := -1
	if y0 < y1 {
		sy = 1
	}
	err := dx + dy
	for {
		if x0 >= 0 && x0 < w && y0 >= 0 && y0 < h {
			screen.Set(x0, y0, clr)
		}
		if x0 == x1 && y0 == y1 {
			break
		}
		e2 := 2 * err
		if e2 >= dy {
			err += dy
			x0 += sx
		}
		if e2 <= dx {
			err += dx
			y0 += sy
		}
	}
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
