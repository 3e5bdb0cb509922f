package app

import (
	"errors"
	"log"

	"FoliageForge/shared/proto/fnet"

	rl "github.com/gen2brain/raylib-go/raylib"
)

// startConnect conecta ao Servidor FoliageForge em background.
func (a *App) startConnect() {
	if !a.connecting.CompareAndSwap(false, true) {
		return
	}
	a.lastRetry = rl.GetTime()
	a.sync.Reset()
	go a.connectServer()
}

// connectServer tenta conectar ao Servidor FoliageForge.
func (a *App) connectServer() {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("[PANIC] Erro em connectServer: %v", r)
		}
		a.connecting.Store(false)
	}()

	if err := a.netClient.Connect(); err != nil {
		log.Printf("[Server] Erro ao conectar: %v", err)
		a.LoadingStatus = "Erro ao conectar ao Servidor. Verifique se o servidor está rodando."
		return
	}

	log.Println("[Network] Conectado ao Servidor FoliageForge!")
	a.LoadingStatus = "Recebendo o mundo..."
}

// pumpNetwork aplica na réplica os frames recebidos desde o último frame.
func (a *App) pumpNetwork() {
	if !a.connecting.Load() && !a.netClient.IsConnected() && rl.GetTime()-a.lastRetry > 3.0 {
		log.Println("[Network] Conexão perdida, reconectando...")
		a.startConnect()
		return
	}

	frames := a.netClient.Inbound.PopAll()
	if len(frames) == 0 {
		return
	}
	if err := a.sync.Pump(frames); err != nil {
		log.Printf("[Sync] ERRO aplicando frames: %v", err)
		if errors.Is(err, fnet.ErrDesync) {
			// Reconectar traz um snapshot novo
			a.netClient.Close()
			a.sync.Reset()
			a.State = StateLoading
			a.LoadingStatus = "Réplica fora de sincronia, recarregando o mundo..."
			a.LoadingStartTime = rl.GetTime()
		}
	}

	if rl.GetTime()-a.lastPing > 5.0 && a.netClient.IsConnected() {
		a.lastPing = rl.GetTime()
		a.netClient.Ping()
	}
}

// sendBrush envia o pincel atual como pintura ou borracha.
func (a *App) sendBrush() {
	typeName := a.currentType()
	if typeName == "" || !a.BrushValid {
		return
	}
	req := &fnet.BrushRequest{
		Type:     typeName,
		Center:   a.Brush.Center,
		Radius:   a.Brush.Radius,
		Pressure: a.Pressure,
	}
	var err error
	if a.Brush.Erase {
		err = a.netClient.SendErase(req)
	} else {
		err = a.netClient.SendPaint(req)
	}
	if err != nil {
		log.Printf("[Network] Pincel não enviado: %v", err)
	}
}
