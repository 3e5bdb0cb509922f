package app

import (
	"log"

	rl "github.com/gen2brain/raylib-go/raylib"
)

// Intervalo entre pedidos enquanto o botão fica pressionado (segundos)
const paintRepeat = 0.15

// updateBrush posiciona o pincel sob o cursor e pinta com o botão esquerdo.
func (a *App) updateBrush() {
	center, ok := a.renderer.GroundHit(a.Cam.MouseRay())
	a.BrushValid = ok
	if ok {
		a.Brush.Center = center
	}

	if !ok || a.overHUD() {
		return
	}
	if rl.IsMouseButtonPressed(rl.MouseLeftButton) ||
		(rl.IsMouseButtonDown(rl.MouseLeftButton) && rl.GetTime()-a.lastPaintTime > paintRepeat) {
		a.lastPaintTime = rl.GetTime()
		a.sendBrush()
	}
}

// overHUD informa se o cursor está sobre o painel de debug.
func (a *App) overHUD() bool {
	if !a.Config.ShowDebugInfo {
		return false
	}
	x, y, w, h := hudRect()
	m := rl.GetMousePosition()
	return m.X >= float32(x) && m.X <= float32(x+w) && m.Y >= float32(y) && m.Y <= float32(y+h)
}

// adjustBrush altera raio e pressão pelos atalhos.
func (a *App) adjustBrush(radiusFactor float64, pressureDelta float64) {
	a.Brush.Radius *= radiusFactor
	if a.Brush.Radius < 16 {
		a.Brush.Radius = 16
	}
	if a.Brush.Radius > 8192 {
		a.Brush.Radius = 8192
	}
	a.Pressure += pressureDelta
	if a.Pressure < 0.1 {
		a.Pressure = 0.1
	}
	if a.Pressure > 1 {
		a.Pressure = 1
	}
	log.Printf("[Brush] Raio %.0f, pressão %.1f", a.Brush.Radius, a.Pressure)
}
