package foliage

import (
	"testing"

	"FoliageForge/shared/util"
)

func TestSpatialHashInsertRemove(t *testing.T) {
	h := NewSpatialHash(DefaultHashCellBits)
	loc := util.Vec3{100, -20, 5}

	h.InsertInstance(loc, 3)
	h.InsertInstance(loc, 3)
	if h.Len() != 1 {
		t.Fatalf("Len() = %d após inserção duplicada, want 1", h.Len())
	}
	if !h.Contains(loc, 3) {
		t.Fatalf("Contains(%v, 3) = false", loc)
	}
	if !h.RemoveInstance(loc, 3) {
		t.Errorf("RemoveInstance = false, want true")
	}
	if h.RemoveInstance(loc, 3) {
		t.Errorf("segunda RemoveInstance = true, want false")
	}
	if h.CellCount() != 0 {
		t.Errorf("CellCount() = %d, células vazias devem ser apagadas", h.CellCount())
	}
}

func TestSpatialHashCellCoordinates(t *testing.T) {
	h := NewSpatialHash(9)
	tests := []struct {
		v    float64
		want int64
	}{
		{0, 0},
		{511.9, 0},
		{512, 1},
		{-0.5, -1},
		{-512, -1},
		{-512.5, -2},
	}
	for _, tt := range tests {
		if got := h.coord(tt.v); got != tt.want {
			t.Errorf("coord(%v) = %d, want %d", tt.v, got, tt.want)
		}
	}
}

func TestSpatialHashBoxQueryIsSuperset(t *testing.T) {
	h := NewSpatialHash(7)
	points := []util.Vec3{
		{0, 0, 0}, {50, 50, 0}, {130, 0, 0}, {-10, -10, 0}, {1000, 1000, 1000}, {-700, 20, 3},
	}
	for i, p := range points {
		h.InsertInstance(p, i)
	}

	box := util.Box{Min: util.Vec3{-20, -20, -1}, Max: util.Vec3{60, 60, 1}}
	got := h.GetInstancesOverlappingBox(box)
	seen := make(map[int]bool)
	for k, i := range got {
		seen[i] = true
		if k > 0 && got[k-1] >= i {
			t.Errorf("resultado fora de ordem: %v", got)
		}
	}
	for i, p := range points {
		if box.Contains(p) && !seen[i] {
			t.Errorf("instância %d em %v está na caixa mas não voltou", i, p)
		}
	}
	if seen[4] {
		t.Errorf("instância distante 4 voltou para a caixa %v", box)
	}
}

func TestSpatialHashHugeBoxUsesOccupiedCells(t *testing.T) {
	h := NewSpatialHash(DefaultHashCellBits)
	h.InsertInstance(util.Vec3{1e9, 0, 0}, 0)
	h.InsertInstance(util.Vec3{-1e9, 0, 0}, 1)
	box := util.Box{Min: util.Vec3{-1e12, -1e12, -1e12}, Max: util.Vec3{1e12, 1e12, 1e12}}
	if got := h.GetInstancesOverlappingBox(box); len(got) != 2 {
		t.Errorf("GetInstancesOverlappingBox(enorme) = %v, want 2 índices", got)
	}
	h.Empty()
	if h.Len() != 0 || h.CellCount() != 0 {
		t.Errorf("Empty() deixou Len=%d CellCount=%d", h.Len(), h.CellCount())
	}
}
