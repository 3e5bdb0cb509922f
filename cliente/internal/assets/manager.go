package assets

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
)

// --- Estruturas JSON ---

// Primitive é a geometria gerada quando a entrada não tem arquivo de modelo.
type Primitive string

const (
	PrimitiveCone   Primitive = "cone"
	PrimitiveSphere Primitive = "sphere"
	PrimitiveCube   Primitive = "cube"
)

// Color RGBA 0-255 usado como tint do material.
type Color struct {
	R uint8 `json:"r"`
	G uint8 `json:"g"`
	B uint8 `json:"b"`
	A uint8 `json:"a"`
}

// MeshEntry conecta nomes de mesh de foliage ao modelo 3D que os desenha.
type MeshEntry struct {
	File      string    `json:"file,omitempty"`
	Texture   string    `json:"texture,omitempty"`
	Primitive Primitive `json:"primitive,omitempty"`
	// Size é a altura (e largura) da primitiva em unidades do mundo.
	Size    float32  `json:"size,omitempty"`
	Color   *Color   `json:"color,omitempty"`
	Wind    bool     `json:"wind,omitempty"`
	Tokens  []string `json:"tokens"`
	Comment string   `json:"comment,omitempty"`
}

// FoliageMeshConfig é o root do foliage_meshes.json
type FoliageMeshConfig struct {
	FoliageMeshes []MeshEntry `json:"foliageMeshes"`
}

// DefaultEntry é usado quando nenhum padrão casa com o mesh.
var DefaultEntry = MeshEntry{
	Primitive: PrimitiveCone,
	Size:      60,
	Color:     &Color{R: 90, G: 160, B: 70, A: 255},
	Wind:      true,
	Tokens:    []string{"*"},
}

// --- Manager ---

// Manager responde qual modelo desenha cada mesh de foliage.
type Manager struct {
	foliageMeshes []MeshEntry
}

// NewManager carrega configDir/foliage_meshes.json.
func NewManager(configDir string) (*Manager, error) {
	data, err := os.ReadFile(configDir + "/foliage_meshes.json")
	if err != nil {
		return nil, fmt.Errorf("falha ao ler foliage_meshes.json: %w", err)
	}
	return Parse(data)
}

// Parse monta o Manager a partir do conteúdo JSON.
func Parse(data []byte) (*Manager, error) {
	var conf FoliageMeshConfig
	if err := json.Unmarshal(data, &conf); err != nil {
		return nil, fmt.Errorf("falha ao parsear foliage_meshes.json: %w", err)
	}
	for i, e := range conf.FoliageMeshes {
		if len(e.Tokens) == 0 {
			return nil, fmt.Errorf("foliage_meshes.json: entrada %d sem tokens", i)
		}
	}
	return &Manager{foliageMeshes: conf.FoliageMeshes}, nil
}

// --- Wildcard Matching ---

// matchToken compara um nome de mesh contra um padrão com suporte a wildcards (*)
// Formato: segmentos separados por "_", como "SM_Grass_Tall"
// O wildcard '*' em qualquer segmento aceita qualquer valor
func matchToken(pattern, query string) bool {
	// Se o padrão for apenas "*", aceita tudo
	if pattern == "*" {
		return true
	}

	patParts := strings.Split(pattern, "_")
	queryParts := strings.Split(query, "_")

	// Se os tamanhos divergem, não pode casar
	if len(patParts) != len(queryParts) {
		return false
	}

	for i := range patParts {
		if patParts[i] == "*" {
			continue // wildcard aceita qualquer valor
		}
		if !strings.EqualFold(patParts[i], queryParts[i]) {
			return false
		}
	}
	return true
}

// --- Consultas Públicas ---

// GetFoliageMesh retorna a entrada mais específica para o mesh.
// Sem nenhum padrão casando, retorna DefaultEntry.
func (m *Manager) GetFoliageMesh(mesh string) MeshEntry {
	if m == nil {
		return DefaultEntry
	}
	var bestMatch *MeshEntry
	bestScore := -1

	for i := range m.foliageMeshes {
		entry := &m.foliageMeshes[i]
		for _, pat := range entry.Tokens {
			if matchToken(pat, mesh) {
				score := specificityScore(pat)
				if score > bestScore {
					bestScore = score
					bestMatch = entry
				}
			}
		}
	}
	if bestMatch == nil {
		return DefaultEntry
	}
	return *bestMatch
}

// GetAllFoliageMeshes retorna todas as entradas carregadas
func (m *Manager) GetAllFoliageMeshes() []MeshEntry {
	return m.foliageMeshes
}

// specificityScore calcula a "especificidade" de um padrão
// Quanto mais segmentos NÃO são wildcard, mais específico é
func specificityScore(pattern string) int {
	if pattern == "*" {
		return 0
	}
	parts := strings.Split(pattern, "_")
	score := 0
	for _, p := range parts {
		if p != "*" {
			score++
		}
	}
	return score
}
