package render

import (
	"math"
	"testing"

	"FoliageForge/shared/foliage"
	"FoliageForge/shared/util"

	rl "github.com/gen2brain/raylib-go/raylib"
)

func near(a, b float32) bool {
	return math.Abs(float64(a-b)) < 1e-3
}

func TestRaylibConversion(t *testing.T) {
	tests := []struct {
		in   util.Vec3
		want rl.Vector3
	}{
		{util.Vec3{1, 2, 3}, rl.Vector3{X: 1, Y: 3, Z: -2}},
		{util.Vec3{0, 0, 10}, rl.Vector3{X: 0, Y: 10, Z: 0}},
	}
	for _, tt := range tests {
		got := ToRaylib(tt.in)
		if got != tt.want {
			t.Errorf("ToRaylib(%v) = %v, want %v", tt.in, got, tt.want)
		}
		if back := FromRaylib(got); back != tt.in {
			t.Errorf("FromRaylib(%v) = %v, want %v", got, back, tt.in)
		}
	}
}

func TestInstanceMatrixMapsUpAxis(t *testing.T) {
	tr := util.NewTransform(util.Rotator{}, util.Vec3{100, 200, 5}, util.Vec3{2, 2, 3})
	m := InstanceMatrix(tr)

	// Translação vai para Y-up
	if !near(m.M12, 100) || !near(m.M13, 5) || !near(m.M14, -200) {
		t.Errorf("translação = (%v, %v, %v)", m.M12, m.M13, m.M14)
	}
	// O topo do modelo (Y local) cresce com a escala Z do mundo
	top := rl.Vector3Transform(rl.Vector3{X: 0, Y: 1, Z: 0}, m)
	if !near(top.X, 100) || !near(top.Y, 8) || !near(top.Z, -200) {
		t.Errorf("topo = %v, want (100, 8, -200)", top)
	}
}

func TestInstancedMeshFollowsStore(t *testing.T) {
	in := NewInstancer()
	w := foliage.NewWorld(foliage.ActorConfig{Factory: in.Factory()}, nil)
	ft := foliage.NewFoliageType("grass", "SM_Grass", foliage.TypeAsset)
	st := w.ActorForLevel(foliage.PersistentLevel, true).AddMesh(ft)
	for i := 0; i < 5; i++ {
		st.AddInstance(foliage.NewInstance(util.Vec3{float64(i) * 100, 0, 0}), false)
	}
	st.RemoveInstances([]int{1}, true)

	mesh, ok := st.Component().(*InstancedMesh)
	if !ok {
		t.Fatalf("componente = %T", st.Component())
	}
	if mesh.Settings().Mesh != "SM_Grass" {
		t.Errorf("mesh = %q", mesh.Settings().Mesh)
	}
	if got := in.InstanceCount(); got != st.Len() {
		t.Fatalf("InstanceCount = %d, want %d", got, st.Len())
	}
	for i := 0; i < st.Len(); i++ {
		m, _ := mesh.Matrix(i)
		if want := float32(st.Instance(i).Location[0]); !near(m.M12, want) {
			t.Errorf("matriz %d em x=%v, store em x=%v", i, m.M12, want)
		}
	}

	st.Destroy()
	if len(in.Meshes()) != 0 {
		t.Errorf("componente destruído continua registrado")
	}
}

func TestCullDistance(t *testing.T) {
	in := NewInstancer()
	c := in.Factory()("Foliage", nil).(*InstancedMesh)
	c.SetSettings(foliage.ComponentSettings{Mesh: "SM_Grass", CullDistance: util.FloatInterval{Min: 0, Max: 500}})
	for _, x := range []float64{0, 300, 600, 1000} {
		c.AddInstanceWorldSpace(util.NewTransform(util.Rotator{}, util.Vec3{x, 0, 0}, util.Vec3{1, 1, 1}))
	}

	tests := []struct {
		name string
		cam  rl.Vector3
		want int
	}{
		{"origem", rl.Vector3{}, 2},
		{"meio", rl.Vector3{X: 600}, 3},
		{"longe", rl.Vector3{X: 5000}, 0},
	}
	for _, tt := range tests {
		if got := len(c.Cull(tt.cam)); got != tt.want {
			t.Errorf("%s: visíveis = %d, want %d", tt.name, got, tt.want)
		}
	}

	c.SetSettings(foliage.ComponentSettings{Mesh: "SM_Grass"})
	if got := len(c.Cull(rl.Vector3{X: 5000})); got != 4 {
		t.Errorf("sem distância de culling: visíveis = %d, want 4", got)
	}
}
