package app

import (
	"fmt"
	"log"

	"FoliageForge/cliente/internal/render"

	rl "github.com/gen2brain/raylib-go/raylib"
)

// draw renderiza a cena.
func (a *App) draw() {
	rl.BeginDrawing()
	rl.ClearBackground(rl.NewColor(30, 30, 40, 255))

	if a.State == StateLoading {
		a.drawLoadingScreen()
	} else {
		a.drawScene()
		a.drawHUD()

		if a.State == StatePaused {
			a.drawPauseMenu()
		}
	}

	rl.EndDrawing()
}

// drawScene renderiza a cena 3D.
func (a *App) drawScene() {
	rl.BeginMode3D(a.Cam.RLCamera)

	// Grid de referência (1m por célula)
	if a.Config.ShowGrid {
		rl.DrawGrid(40, 100)
	}

	var brush *render.Brush
	if a.BrushValid && a.State == StateViewing {
		brush = &a.Brush
	}
	a.renderer.Draw(a.Cam.RLCamera, brush)

	rl.EndMode3D()
}

// hudRect retorna a área do painel de debug.
func hudRect() (x, y, w, h int32) {
	w, h = 340, 250
	return int32(rl.GetScreenWidth()) - w - 10, 10, w, h
}

// drawHUD desenha a interface sobreposta.
func (a *App) drawHUD() {
	if !a.Config.ShowDebugInfo {
		return
	}

	x, y, width, height := hudRect()
	rl.DrawRectangle(x, y, width, height, rl.NewColor(0, 0, 0, 180))
	rl.DrawRectangleLines(x, y, width, height, rl.NewColor(50, 50, 50, 255))

	// FPS
	fps := rl.GetFPS()
	fpsColor := rl.Green
	if fps < 30 {
		fpsColor = rl.Red
	} else if fps < 50 {
		fpsColor = rl.Yellow
	}
	rl.DrawText(fmt.Sprintf("FPS: %d", fps), x+10, y+10, 20, fpsColor)

	syncStatus, syncColor := "Offline", rl.Red
	if a.netClient.IsConnected() {
		syncStatus = fmt.Sprintf("%dms", a.netClient.Latency().Milliseconds())
		syncColor = rl.SkyBlue
	}
	rl.DrawText(syncStatus, x+215, y+10, 20, syncColor)

	rl.DrawLine(x+10, y+35, x+width-10, y+35, rl.NewColor(100, 100, 100, 100))

	// Mundo
	rl.DrawText("MUNDO", x+10, y+45, 12, rl.Gray)
	if a.sync.WorldName != "" {
		rl.DrawText(a.sync.WorldName, x+10, y+60, 16, rl.Gold)
	}
	rl.DrawText(a.sync.Status, x+10, y+80, 14, rl.LightGray)
	rl.DrawText(fmt.Sprintf("Instâncias: %d local / %d servidor", a.sync.InstanceCount(), a.sync.Instances),
		x+10, y+98, 14, rl.LightGray)
	rl.DrawText(fmt.Sprintf("Desenhadas: %d", a.renderer.LastDrawn), x+10, y+116, 14, rl.LightGray)

	rl.DrawLine(x+10, y+136, x+width-10, y+136, rl.NewColor(100, 100, 100, 100))

	// Pincel
	rl.DrawText("PINCEL", x+10, y+146, 12, rl.Gray)
	mode, modeColor := "Pintar", rl.Green
	if a.Brush.Erase {
		mode, modeColor = "Apagar", rl.Orange
	}
	typeName := a.currentType()
	if typeName == "" {
		typeName = "-"
	}
	rl.DrawText(fmt.Sprintf("%s: %s", mode, typeName), x+10, y+161, 16, modeColor)
	rl.DrawText(fmt.Sprintf("Raio: %.0f | Pressão: %.1f", a.Brush.Radius, a.Pressure), x+10, y+181, 14, rl.LightGray)

	rl.DrawLine(x+10, y+201, x+width-10, y+201, rl.NewColor(100, 100, 100, 100))

	// Atalhos Rápidos
	rl.DrawText("Tab: Tipo | X: Borracha | [ ]: Raio | - =: Pressão", x+10, y+211, 12, rl.LightGray)
	rl.DrawText("WASD: Mover | Dir: Orbitar | P: Projeção | F3: HUD", x+10, y+228, 12, rl.SkyBlue)

	// Título no canto inferior direito
	title := "FoliageForge v0.1.0 - Alpha"
	titleWidth := rl.MeasureText(title, 18)
	rl.DrawText(title,
		int32(rl.GetScreenWidth())-titleWidth-20, int32(rl.GetScreenHeight())-30,
		18, rl.NewColor(200, 200, 200, 150))
}

// drawPauseMenu desenha o menu de escape centralizado.
func (a *App) drawPauseMenu() {
	screenWidth := int32(rl.GetScreenWidth())
	screenHeight := int32(rl.GetScreenHeight())

	// Fundo escurecido
	rl.DrawRectangle(0, 0, screenWidth, screenHeight, rl.NewColor(0, 0, 0, 150))

	panelWidth := int32(400)
	panelHeight := int32(300)
	panelX := (screenWidth - panelWidth) / 2
	panelY := (screenHeight - panelHeight) / 2

	rl.DrawRectangle(panelX, panelY, panelWidth, panelHeight, rl.NewColor(30, 30, 35, 255))
	rl.DrawRectangleLines(panelX, panelY, panelWidth, panelHeight, rl.White)

	menuTitle := "MENU DE PAUSA"
	titleWidth := rl.MeasureText(menuTitle, 24)
	rl.DrawText(menuTitle, panelX+(panelWidth-titleWidth)/2, panelY+30, 24, rl.Gold)

	buttonX := panelX + 50
	buttonWidth := panelWidth - 100
	buttonHeight := int32(40)

	if a.drawButton(buttonX, panelY+90, buttonWidth, buttonHeight, "RETOMAR (ESC)", rl.Green) {
		a.State = StateViewing
	}

	if a.drawButton(buttonX, panelY+145, buttonWidth, buttonHeight, "RECARREGAR MUNDO", rl.Gray) {
		log.Println("[App] Recarregando o mundo pelo menu.")
		a.netClient.Close()
		a.sync.Reset()
		a.State = StateLoading
		a.LoadingStatus = "Recarregando o mundo..."
		a.LoadingStartTime = rl.GetTime()
	}

	if a.drawButton(buttonX, panelY+200, buttonWidth, buttonHeight, "SAIR", rl.Red) {
		log.Println("[App] Encerrando aplicação pelo menu.")
		a.quit = true
	}
}

// drawButton desenha um botão genérico com hover e retorna true se clicado.
func (a *App) drawButton(x, y, w, h int32, text string, color rl.Color) bool {
	mousePos := rl.GetMousePosition()
	isHover := mousePos.X >= float32(x) && mousePos.X <= float32(x+w) &&
		mousePos.Y >= float32(y) && mousePos.Y <= float32(y+h)

	drawColor := color
	if isHover {
		drawColor.R += 30
		drawColor.G += 30
		drawColor.B += 30
	}

	rl.DrawRectangle(x, y, w, h, rl.NewColor(50, 50, 50, 255))
	rl.DrawRectangleLines(x, y, w, h, drawColor)

	textWidth := rl.MeasureText(text, 18)
	rl.DrawText(text, x+(w-textWidth)/2, y+(h-18)/2, 18, rl.White)

	return isHover && rl.IsMouseButtonPressed(rl.MouseLeftButton)
}

func (a *App) drawLoadingScreen() {
	screenWidth := int32(rl.GetScreenWidth())
	screenHeight := int32(rl.GetScreenHeight())

	rl.DrawRectangle(0, 0, screenWidth, screenHeight, rl.NewColor(20, 20, 25, 255))

	title := "FOLIAGEFORGE"
	titleWidth := rl.MeasureText(title, 40)
	rl.DrawText(title, (screenWidth-titleWidth)/2, screenHeight/2-60, 40, rl.Gold)

	// Barra indeterminada enquanto o snapshot não chega
	barWidth := int32(400)
	barHeight := int32(30)
	barX := (screenWidth - barWidth) / 2
	barY := screenHeight/2 + 20
	elapsed := rl.GetTime() - a.LoadingStartTime
	chunk := barWidth / 4
	offset := int32(elapsed*200) % (barWidth - chunk)

	rl.DrawRectangle(barX, barY, barWidth, barHeight, rl.DarkGray)
	rl.DrawRectangle(barX+offset, barY, chunk, barHeight, rl.Orange)
	rl.DrawRectangleLines(barX, barY, barWidth, barHeight, rl.White)

	statusWidth := rl.MeasureText(a.LoadingStatus, 18)
	rl.DrawText(a.LoadingStatus, (screenWidth-statusWidth)/2, barY+45, 18, rl.LightGray)

	tip := fmt.Sprintf("Servidor: %s", a.Config.ServerURL)
	tipWidth := rl.MeasureText(tip, 16)
	rl.DrawText(tip, (screenWidth-tipWidth)/2, screenHeight-50, 16, rl.Gray)
}
