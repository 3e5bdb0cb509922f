package config

import (
	"encoding/json"
	"os"
	"path/filepath"
)

// Config armazena as configurações do FoliageForge.
type Config struct {
	// Janela
	WindowWidth  int32  `json:"window_width"`
	WindowHeight int32  `json:"window_height"`
	WindowTitle  string `json:"window_title"`
	Fullscreen   bool   `json:"fullscreen"`
	TargetFPS    int32  `json:"target_fps"`

	// Servidor
	ListenAddr   string `json:"listen_addr"`
	SaveDir      string `json:"save_dir"`
	WorldName    string `json:"world_name"`
	SaveInterval int    `json:"save_interval_seconds"`

	// Cliente
	ServerURL string `json:"server_url"`

	// Foliage
	HashCellBits uint    `json:"hash_cell_bits"`
	Seed         int64   `json:"seed"`
	BrushRadius  float64 `json:"brush_radius"`
	BrushDensity float64 `json:"brush_density"`
	BrushCount   int     `json:"brush_count"`
	// Limites aplicados aos pedidos dos clientes
	MaxBrushRadius float64 `json:"max_brush_radius"`
	MaxBrushCount  int     `json:"max_brush_count"`

	// Renderização
	FOV          float32 `json:"fov"`
	DrawDistance float32 `json:"draw_distance"`

	// Câmera
	CameraSpeed       float32 `json:"camera_speed"`
	CameraSensitivity float32 `json:"camera_sensitivity"`
	ZoomSpeed         float32 `json:"zoom_speed"`

	// Debug
	ShowDebugInfo   bool `json:"show_debug_info"`
	ShowGrid        bool `json:"show_grid"`
	CheckInvariants bool `json:"check_invariants"` // roda CheckValid após cada save
}

// DefaultConfig retorna a configuração padrão.
func DefaultConfig() *Config {
	return &Config{
		WindowWidth:  1280,
		WindowHeight: 720,
		WindowTitle:  "FoliageForge",
		Fullscreen:   false,
		TargetFPS:    60,

		ListenAddr:   ":8080",
		SaveDir:      "saves",
		WorldName:    "world",
		SaveInterval: 30,

		ServerURL: "ws://127.0.0.1:8080/ws",

		HashCellBits: 9,
		Seed:         1,
		BrushRadius:  512,
		BrushDensity: 1,
		BrushCount:   16,

		MaxBrushRadius: 8192,
		MaxBrushCount:  256,

		FOV:          60.0,
		DrawDistance: 20000,

		CameraSpeed:       600.0,
		CameraSensitivity: 0.3,
		ZoomSpeed:         50.0,

		ShowDebugInfo:   true,
		ShowGrid:        true,
		CheckInvariants: false,
	}
}

// configPath retorna o caminho do arquivo de configuração.
func configPath() string {
	execDir, err := os.Executable()
	if err != nil {
		return "config.json"
	}
	return filepath.Join(filepath.Dir(execDir), "config.json")
}

// Load carrega as configurações do config.json ao lado do executável.
// Se o arquivo não existir, retorna as configurações padrão.
func Load() *Config {
	return LoadFrom(configPath())
}

// LoadFrom carrega as configurações de um arquivo JSON específico.
// Campos ausentes mantêm o valor padrão; JSON inválido devolve os padrões.
func LoadFrom(path string) *Config {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg
	}

	if err := json.Unmarshal(data, cfg); err != nil {
		return DefaultConfig()
	}

	return cfg
}

// Save salva as configurações no config.json ao lado do executável.
func (c *Config) Save() error {
	return c.SaveTo(configPath())
}

// SaveTo salva as configurações em path.
func (c *Config) SaveTo(path string) error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}
