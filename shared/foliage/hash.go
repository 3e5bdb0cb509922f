package foliage

import (
	"math"
	"sort"

	"FoliageForge/shared/util"
)

// DefaultHashCellBits gera células de 512 unidades.
const DefaultHashCellBits = 9

type cellKey struct {
	X, Y, Z int64
}

// SpatialHash indexa índices de instância por célula de grade 3D.
// É um filtro de fase larga: GetInstancesOverlappingBox pode devolver falsos positivos.
type SpatialHash struct {
	cellBits uint
	cells    map[cellKey]map[int]struct{}
	count    int
}

// NewSpatialHash cria um hash com células de 2^cellBits unidades.
func NewSpatialHash(cellBits uint) *SpatialHash {
	return &SpatialHash{
		cellBits: cellBits,
		cells:    make(map[cellKey]map[int]struct{}),
	}
}

func (h *SpatialHash) coord(v float64) int64 {
	return int64(math.Floor(v)) >> h.cellBits
}

func (h *SpatialHash) keyOf(loc util.Vec3) cellKey {
	return cellKey{h.coord(loc[0]), h.coord(loc[1]), h.coord(loc[2])}
}

// InsertInstance coloca index na célula de location.
func (h *SpatialHash) InsertInstance(location util.Vec3, index int) {
	key := h.keyOf(location)
	cell, ok := h.cells[key]
	if !ok {
		cell = make(map[int]struct{})
		h.cells[key] = cell
	}
	if _, dup := cell[index]; !dup {
		cell[index] = struct{}{}
		h.count++
	}
}

// RemoveInstance remove index da célula de location. Retorna false se não estava lá.
func (h *SpatialHash) RemoveInstance(location util.Vec3, index int) bool {
	key := h.keyOf(location)
	cell, ok := h.cells[key]
	if !ok {
		return false
	}
	if _, ok := cell[index]; !ok {
		return false
	}
	delete(cell, index)
	h.count--
	if len(cell) == 0 {
		delete(h.cells, key)
	}
	return true
}

// Contains verifica se index está na célula de location.
func (h *SpatialHash) Contains(location util.Vec3, index int) bool {
	cell, ok := h.cells[h.keyOf(location)]
	if !ok {
		return false
	}
	_, ok = cell[index]
	return ok
}

// GetInstancesOverlappingBox retorna, em ordem crescente, os índices de todas as
// células que tocam a caixa.
func (h *SpatialHash) GetInstancesOverlappingBox(box util.Box) []int {
	lo, hi := h.keyOf(box.Min), h.keyOf(box.Max)
	var out []int

	span := float64(hi.X-lo.X+1) * float64(hi.Y-lo.Y+1) * float64(hi.Z-lo.Z+1)
	if span > float64(len(h.cells)) {
		// Caixa grande: varrer as células ocupadas é mais barato.
		for key, cell := range h.cells {
			if key.X < lo.X || key.X > hi.X || key.Y < lo.Y || key.Y > hi.Y || key.Z < lo.Z || key.Z > hi.Z {
				continue
			}
			for idx := range cell {
				out = append(out, idx)
			}
		}
	} else {
		for x := lo.X; x <= hi.X; x++ {
			for y := lo.Y; y <= hi.Y; y++ {
				for z := lo.Z; z <= hi.Z; z++ {
					for idx := range h.cells[cellKey{x, y, z}] {
						out = append(out, idx)
					}
				}
			}
		}
	}

	sort.Ints(out)
	return out
}

// Empty limpa todas as células.
func (h *SpatialHash) Empty() {
	h.cells = make(map[cellKey]map[int]struct{})
	h.count = 0
}

// Len retorna o total de entradas (soma de todas as células).
func (h *SpatialHash) Len() int {
	return h.count
}

// CellCount retorna o número de células ocupadas.
func (h *SpatialHash) CellCount() int {
	return len(h.cells)
}

// occurrences conta em quantas células cada índice aparece.
func (h *SpatialHash) occurrences() map[int]int {
	out := make(map[int]int, h.count)
	for _, cell := range h.cells {
		for idx := range cell {
			out[idx]++
		}
	}
	return out
}
