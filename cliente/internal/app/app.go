package app

import (
	"log"
	"sync/atomic"

	"FoliageForge/cliente/internal/camera"
	"FoliageForge/cliente/internal/client"
	"FoliageForge/cliente/internal/render"
	"FoliageForge/shared/config"
	"FoliageForge/shared/foliage"
	"FoliageForge/shared/proto/fnet"

	rl "github.com/gen2brain/raylib-go/raylib"
)

// AppState representa os estados possíveis da aplicação.
type AppState int

const (
	StateLoading AppState = iota // Esperando o primeiro snapshot
	StateViewing                 // Visualizando e pintando
	StatePaused                  // Pausado
)

// groundExtent é a meia largura do terreno desenhado (o terreno padrão do servidor).
const groundExtent = 50000

// App é a aplicação principal do FoliageForge.
type App struct {
	Config *config.Config
	State  AppState

	// Controlador de Câmera
	Cam *camera.CameraController

	// Informações de debug
	frameCount int
	quit       bool

	// Réplica e comunicação
	netClient  *client.NetworkClient
	sync       *client.Sync
	renderer   *render.Renderer
	connecting atomic.Bool
	lastRetry  float64
	lastPing   float64

	// Pincel
	Brush         render.Brush
	BrushValid    bool
	Pressure      float64
	TypeIndex     int
	lastPaintTime float64

	// Estado da Splash Screen
	LoadingStatus    string
	LoadingStartTime float64
}

// New cria uma nova instância da aplicação.
func New(cfg *config.Config) *App {
	return &App{
		Config:           cfg,
		State:            StateLoading,
		Brush:            render.Brush{Radius: cfg.BrushRadius},
		Pressure:         1.0,
		LoadingStatus:    "Conectando ao servidor...",
		LoadingStartTime: rl.GetTime(),
	}
}

// Run inicia o loop principal da aplicação.
func (a *App) Run() {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("[PANIC] Erro fatal recuperado: %v", r)
			panic(r) // Re-throw para o Windows mostrar o erro se necessário
		}
	}()

	// Inicializar janela raylib
	rl.SetConfigFlags(rl.FlagMsaa4xHint | rl.FlagWindowResizable)
	rl.InitWindow(a.Config.WindowWidth, a.Config.WindowHeight, a.Config.WindowTitle)
	rl.SetTraceLogLevel(rl.LogWarning) // Reduz ruído no terminal

	if a.Config.Fullscreen {
		rl.ToggleFullscreen()
	}

	rl.SetTargetFPS(a.Config.TargetFPS)
	rl.SetExitKey(0) // ESC abre o menu de pausa

	a.Cam = camera.New(a.Config)
	a.Cam.SetTarget(rl.Vector3{})

	log.Println("[FoliageForge] Janela inicializada com sucesso")
	log.Printf("[FoliageForge] Resolução: %dx%d", a.Config.WindowWidth, a.Config.WindowHeight)

	a.renderer = render.NewRenderer("assets/config", groundExtent)
	replica := fnet.NewReplica(foliage.ActorConfig{
		Factory:  a.renderer.Instancer.Factory(),
		CellBits: a.Config.HashCellBits,
	})
	a.sync = client.NewSync(replica)
	a.netClient = client.NewNetworkClient(a.Config.ServerURL)

	a.startConnect()

	// Loop principal
	for !rl.WindowShouldClose() && !a.quit {
		a.update()
		a.draw()
	}

	// Cleanup
	a.shutdown()
	rl.CloseWindow()
}

// update atualiza a lógica a cada frame.
func (a *App) update() {
	a.frameCount++
	a.pumpNetwork()

	switch a.State {
	case StateLoading:
		a.updateInput()
		if a.sync.Synced {
			a.State = StateViewing
			log.Printf("[App] Sincronizado em %.1fs", rl.GetTime()-a.LoadingStartTime)
		}
	case StateViewing:
		a.updateCamera()
		a.updateInput()
		a.updateBrush()
	case StatePaused:
		a.updateInput() // Permite detectar ESC para despausar
	}
}

// typeNames retorna os tipos pintáveis recebidos do servidor.
func (a *App) typeNames() []string {
	return a.sync.Replica.TypeNames()
}

// currentType retorna o tipo selecionado para o pincel.
func (a *App) currentType() string {
	names := a.typeNames()
	if len(names) == 0 {
		return ""
	}
	if a.TypeIndex < 0 || a.TypeIndex >= len(names) {
		a.TypeIndex = 0
	}
	return names[a.TypeIndex]
}

// shutdown realiza a limpeza de recursos.
func (a *App) shutdown() {
	log.Println("[App] Finalizando aplicação...")

	if a.netClient != nil {
		a.netClient.Close()
	}
	if a.renderer != nil {
		a.renderer.Unload()
	}

	if err := a.Config.Save(); err != nil {
		log.Printf("[FoliageForge] Erro ao salvar configurações: %v", err)
	}
}
