package app

import (
	"log"

	"FoliageForge/cliente/internal/camera"

	rl "github.com/gen2brain/raylib-go/raylib"
)

// updateCamera atualiza a câmera baseado no input.
func (a *App) updateCamera() {
	dt := rl.GetFrameTime()

	// Processa input (WASD, Mouse, Zoom)
	a.Cam.HandleInput(dt)

	// Atualiza física/interpolação da câmera
	a.Cam.Update(dt)

	// Alternar projeção com P
	if rl.IsKeyPressed(rl.KeyP) {
		if a.Cam.Mode == camera.ModePerspective {
			a.Cam.SetMode(camera.ModeOrthographic)
			log.Println("[Camera] Modo Ortográfico")
		} else {
			a.Cam.SetMode(camera.ModePerspective)
			log.Println("[Camera] Modo Perspectiva")
		}
	}
}

// updateInput processa entradas de teclado gerais.
func (a *App) updateInput() {
	// Toggle debug info
	if rl.IsKeyPressed(rl.KeyF3) {
		a.Config.ShowDebugInfo = !a.Config.ShowDebugInfo
	}

	// Toggle grid
	if rl.IsKeyPressed(rl.KeyG) {
		a.Config.ShowGrid = !a.Config.ShowGrid
	}

	// Fullscreen toggle
	if rl.IsKeyPressed(rl.KeyF11) {
		rl.ToggleFullscreen()
	}

	if a.State == StateViewing {
		// Próximo tipo de foliage
		if rl.IsKeyPressed(rl.KeyTab) {
			if n := len(a.typeNames()); n > 0 {
				a.TypeIndex = (a.TypeIndex + 1) % n
				log.Printf("[Brush] Tipo: %s", a.currentType())
			}
		}
		// Alternar pintura/borracha
		if rl.IsKeyPressed(rl.KeyX) {
			a.Brush.Erase = !a.Brush.Erase
		}
		// Raio com [ e ], pressão com - e =
		if rl.IsKeyPressed(rl.KeyLeftBracket) {
			a.adjustBrush(0.8, 0)
		}
		if rl.IsKeyPressed(rl.KeyRightBracket) {
			a.adjustBrush(1.25, 0)
		}
		if rl.IsKeyPressed(rl.KeyMinus) {
			a.adjustBrush(1, -0.1)
		}
		if rl.IsKeyPressed(rl.KeyEqual) {
			a.adjustBrush(1, 0.1)
		}
	}

	// ESC: Alternar Pausa/Menu
	if rl.IsKeyPressed(rl.KeyEscape) {
		if a.State == StateViewing {
			a.State = StatePaused
			log.Println("[App] Pausado")
		} else if a.State == StatePaused {
			a.State = StateViewing
			log.Println("[App] Retomando")
		}
	}
}
