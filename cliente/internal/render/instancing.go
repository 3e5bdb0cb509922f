package render

import (
	"sort"
	"unsafe"

	"FoliageForge/shared/foliage"
	"FoliageForge/shared/util"

	rl "github.com/gen2brain/raylib-go/raylib"
	"github.com/go-gl/mathgl/mgl64"
)

// zUpToYUp leva o espaço do mundo (Z para cima) para o da raylib (Y para cima).
var zUpToYUp = mgl64.Mat4{
	1, 0, 0, 0,
	0, 0, -1, 0,
	0, 1, 0, 0,
	0, 0, 0, 1,
}

// ToRaylib converte uma posição do mundo para o espaço da raylib.
func ToRaylib(v util.Vec3) rl.Vector3 {
	return rl.Vector3{X: float32(v[0]), Y: float32(v[2]), Z: float32(-v[1])}
}

// FromRaylib é o inverso de ToRaylib.
func FromRaylib(v rl.Vector3) util.Vec3 {
	return util.Vec3{float64(v.X), float64(-v.Z), float64(v.Y)}
}

// InstanceMatrix monta a matriz de desenho (T * R * S) de uma instância.
// Modelos da raylib são Y-up, então o espaço local também é convertido.
func InstanceMatrix(t util.Transform) rl.Matrix {
	m := zUpToYUp.Mul4(t.Mat4()).Mul4(zUpToYUp.Transpose())
	return rl.Matrix{
		M0: float32(m[0]), M1: float32(m[1]), M2: float32(m[2]), M3: float32(m[3]),
		M4: float32(m[4]), M5: float32(m[5]), M6: float32(m[6]), M7: float32(m[7]),
		M8: float32(m[8]), M9: float32(m[9]), M10: float32(m[10]), M11: float32(m[11]),
		M12: float32(m[12]), M13: float32(m[13]), M14: float32(m[14]), M15: float32(m[15]),
	}
}

// InstancedMesh é o componente de render de um Store: guarda as transformações
// (via MemoryComponent) e as matrizes prontas para DrawMeshInstanced, sempre
// com os mesmos índices.
type InstancedMesh struct {
	*foliage.MemoryComponent

	owner    *Instancer
	matrices []rl.Matrix
	visible  []rl.Matrix // Buffer reaproveitado entre frames
}

func (m *InstancedMesh) AddInstanceWorldSpace(t util.Transform) int {
	m.matrices = append(m.matrices, InstanceMatrix(t))
	return m.MemoryComponent.AddInstanceWorldSpace(t)
}

func (m *InstancedMesh) RemoveInstance(index int) bool {
	if !m.MemoryComponent.RemoveInstance(index) {
		return false
	}
	last := len(m.matrices) - 1
	m.matrices[index] = m.matrices[last]
	m.matrices = m.matrices[:last]
	return true
}

func (m *InstancedMesh) UpdateInstanceTransform(index int, t util.Transform, markRenderStateDirty bool) bool {
	if !m.MemoryComponent.UpdateInstanceTransform(index, t, markRenderStateDirty) {
		return false
	}
	m.matrices[index] = InstanceMatrix(t)
	return true
}

func (m *InstancedMesh) ClearInstances() {
	m.MemoryComponent.ClearInstances()
	m.matrices = m.matrices[:0]
}

func (m *InstancedMesh) Destroy() {
	m.MemoryComponent.Destroy()
	m.matrices = nil
	m.visible = nil
	if m.owner != nil {
		m.owner.unregister(m)
	}
}

// Matrix retorna a matriz de desenho da instância index.
func (m *InstancedMesh) Matrix(index int) (rl.Matrix, bool) {
	if index < 0 || index >= len(m.matrices) {
		return rl.Matrix{}, false
	}
	return m.matrices[index], true
}

// Cull preenche o buffer visível com as instâncias dentro da distância de
// culling do tipo, medida a partir de camPos (espaço raylib).
func (m *InstancedMesh) Cull(camPos rl.Vector3) []rl.Matrix {
	m.visible = m.visible[:0]
	maxDist := float32(m.Settings().CullDistance.Max)
	minDist := float32(m.Settings().CullDistance.Min)

	for _, mat := range m.matrices {
		if maxDist <= 0 {
			m.visible = append(m.visible, mat)
			continue
		}
		// Posição da instância está na coluna de translação (M12, M13, M14)
		dx := mat.M12 - camPos.X
		dy := mat.M13 - camPos.Y
		dz := mat.M14 - camPos.Z
		distSq := dx*dx + dy*dy + dz*dz
		if distSq > maxDist*maxDist || distSq < minDist*minDist {
			continue
		}
		m.visible = append(m.visible, mat)
	}
	return m.visible
}

// ModelSource resolve o mesh e o material de um mesh de foliage e prepara
// os uniforms para o próximo draw.
type ModelSource interface {
	BindFoliage(mesh string) (rl.Mesh, rl.Material, bool)
}

// Instancer coordena os componentes instanciados criados pela réplica.
type Instancer struct {
	meshes map[*InstancedMesh]struct{}
}

func NewInstancer() *Instancer {
	return &Instancer{meshes: make(map[*InstancedMesh]struct{})}
}

// Factory é a foliage.ComponentFactory que registra cada componente criado.
func (in *Instancer) Factory() foliage.ComponentFactory {
	return func(class string, ft *foliage.FoliageType) foliage.InstanceComponent {
		m := &InstancedMesh{
			MemoryComponent: foliage.NewMemoryComponent(class),
			owner:           in,
			matrices:        make([]rl.Matrix, 0, 256),
			visible:         make([]rl.Matrix, 0, 256),
		}
		in.meshes[m] = struct{}{}
		return m
	}
}

func (in *Instancer) unregister(m *InstancedMesh) {
	delete(in.meshes, m)
}

// Meshes retorna os componentes vivos ordenados pelo mesh.
func (in *Instancer) Meshes() []*InstancedMesh {
	out := make([]*InstancedMesh, 0, len(in.meshes))
	for m := range in.meshes {
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Settings().Mesh < out[j].Settings().Mesh })
	return out
}

// InstanceCount soma as instâncias de todos os componentes.
func (in *Instancer) InstanceCount() int {
	n := 0
	for m := range in.meshes {
		n += m.InstanceCount()
	}
	return n
}

// DrawAll executa o culling e desenha cada componente com 1 draw call.
// Retorna quantas instâncias foram desenhadas.
func (in *Instancer) DrawAll(cam rl.Camera3D, src ModelSource) int {
	drawn := 0
	for _, m := range in.Meshes() {
		if m.InstanceCount() == 0 {
			continue
		}
		mesh, material, ok := src.BindFoliage(m.Settings().Mesh)
		if !ok {
			continue
		}
		visible := m.Cull(cam.Position)
		if len(visible) == 0 {
			continue
		}
		rl.DrawMeshInstanced(mesh, material, visible, len(visible))
		drawn += len(visible)
	}
	return drawn
}

// Helper seguro para obter o primeiro material de um modelo.
func getModelMaterial(model rl.Model) rl.Material {
	if model.MaterialCount > 0 {
		mats := unsafe.Slice(model.Materials, model.MaterialCount)
		return mats[0]
	}
	return rl.LoadMaterialDefault()
}
