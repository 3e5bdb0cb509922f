package foliage

import (
	"math"
	"math/rand"
	"testing"

	"FoliageForge/shared/util"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/google/uuid"
)

func paintWorld(t *testing.T) (*World, *testBase, *planeTracer) {
	t.Helper()
	terrain := newTestBase("terrain", PersistentLevel)
	tracer := &planeTracer{planes: []plane{groundPlane(terrain, 10000)}}
	return NewWorld(ActorConfig{}, tracer), terrain, tracer
}

func worldStore(w *World, ft *FoliageType) *Store {
	return w.ActorForLevel(PersistentLevel, true).FindCompatibleStore(ft)
}

func TestIsWithinSlopeAngle(t *testing.T) {
	tests := []struct {
		name     string
		normalZ  float64
		min, max float64
		want     bool
	}{
		{"plano", 1, 0, 45, true},
		{"30 graus", math.Cos(mgl64.DegToRad(30)), 0, 45, true},
		{"no limite", math.Cos(mgl64.DegToRad(45)), 0, 45, true},
		{"íngreme", math.Cos(mgl64.DegToRad(60)), 0, 45, false},
		{"plano com mínimo", 1, 10, 45, false},
		{"parede", 0, 0, 90, true},
		{"teto", -1, 0, 90, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsWithinSlopeAngle(tt.normalZ, tt.min, tt.max, util.SmallNumber); got != tt.want {
				t.Errorf("IsWithinSlopeAngle(%v, %v, %v) = %v, want %v", tt.normalZ, tt.min, tt.max, got, tt.want)
			}
		})
	}
}

func TestGetRandomScaleModes(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	ft := NewFoliageType("grass", "SM_Grass", TypeAsset)
	ft.ScaleX = util.FloatInterval{Min: 1, Max: 2}
	ft.ScaleY = util.FloatInterval{Min: 1, Max: 2}
	ft.ScaleZ = util.FloatInterval{Min: 1, Max: 2}

	for i := 0; i < 50; i++ {
		ft.Scaling = ScalingUniform
		if s := ft.GetRandomScale(rng); s[0] != s[1] || s[1] != s[2] {
			t.Fatalf("Uniform = %v", s)
		}

		ft.Scaling = ScalingLockXY
		if s := ft.GetRandomScale(rng); s[0] != s[1] {
			t.Fatalf("LockXY = %v", s)
		}

		ft.Scaling = ScalingLockYZ
		if s := ft.GetRandomScale(rng); s[1] != s[2] {
			t.Fatalf("LockYZ = %v", s)
		}

		ft.Scaling = ScalingLockXZ
		ft.StrictScaleLocks = false
		if s := ft.GetRandomScale(rng); s[1] != s[2] {
			t.Fatalf("LockXZ com fallthrough deveria travar Y e Z: %v", s)
		}
		ft.StrictScaleLocks = true
		if s := ft.GetRandomScale(rng); s[0] != s[2] {
			t.Fatalf("LockXZ estrito deveria travar X e Z: %v", s)
		}
	}

	ft.Scaling = ScalingFree
	ft.ScaleY = util.FloatInterval{Min: 3, Max: 4}
	ft.ScaleZ = util.FloatInterval{Min: 5, Max: 6}
	s := ft.GetRandomScale(rng)
	if !ft.ScaleX.Contains(s[0]) || !ft.ScaleY.Contains(s[1]) || !ft.ScaleZ.Contains(s[2]) {
		t.Errorf("Free = %v fora dos intervalos", s)
	}
}

func TestScaleAndAge(t *testing.T) {
	ft := NewFoliageType("tree", "SM_Tree", TypeAsset)
	ft.MaxAge = 10
	ft.ProceduralScale = util.FloatInterval{Min: 1, Max: 3}

	tests := []struct {
		age, maxAge, want float64
	}{
		{0, 10, 1},
		{5, 10, 2},
		{20, 10, 3},
		{5, 0, 3},
	}
	for _, tt := range tests {
		ft.MaxAge = tt.maxAge
		if got := ft.GetScaleForAge(tt.age); math.Abs(got-tt.want) > 1e-9 {
			t.Errorf("GetScaleForAge(%v) com MaxAge %v = %v, want %v", tt.age, tt.maxAge, got, tt.want)
		}
	}

	ft.MaxAge = 10
	steps := []struct {
		current float64
		n       int
		want    float64
	}{
		{3, 2, 5},
		{8, 5, 10},
		{9.5, 3, 9.5},
	}
	for _, tt := range steps {
		if got := ft.GetNextAge(tt.current, tt.n); got != tt.want {
			t.Errorf("GetNextAge(%v, %d) = %v, want %v", tt.current, tt.n, got, tt.want)
		}
	}
}

func TestAddInstancesForBrushOnPlane(t *testing.T) {
	w, terrain, _ := paintWorld(t)
	p := NewPainter(w, 1)
	ft := NewFoliageType("grass", "SM_Grass", TypeAsset)
	brush := util.Sphere{Center: util.Vec3{200, -100, 0}, W: 500}

	n := p.AddInstancesForBrush(ft, brush, util.UpVector, 20, 1)

	if n != 20 {
		t.Fatalf("AddInstancesForBrush = %d, want 20", n)
	}
	s := worldStore(w, ft)
	a := s.Actor()
	for i, inst := range s.Instances() {
		d := inst.Location.Sub(brush.Center)
		if inst.Location[2] != 0 || math.Hypot(d[0], d[1]) > brush.W+1e-6 {
			t.Errorf("instância %d fora do pincel: %v", i, inst.Location)
		}
		if base, ok := a.BaseCache.GetInstanceBase(inst.BaseId); !ok || base != Base(terrain) {
			t.Errorf("instância %d sem a base do terreno", i)
		}
	}
	mustValid(t, s)
}

func TestAddInstancesForBrushRespectsDensity(t *testing.T) {
	w, _, _ := paintWorld(t)
	p := NewPainter(w, 3)
	ft := NewFoliageType("bush", "SM_Bush", TypeAsset)
	ft.Radius = 100
	brush := util.Sphere{Center: util.Vec3{0, 0, 0}, W: 300}

	first := p.AddInstancesForBrush(ft, brush, util.UpVector, 200, 1)
	second := p.AddInstancesForBrush(ft, brush, util.UpVector, 200, 1)

	if first == 0 || first >= 200 {
		t.Fatalf("primeira pincelada = %d", first)
	}
	s := worldStore(w, ft)
	if s.Len() != first+second {
		t.Errorf("Len() = %d, want %d", s.Len(), first+second)
	}
	radius := p.DensityCheckRadius(ft)
	insts := s.Instances()
	for i := range insts {
		for j := i + 1; j < len(insts); j++ {
			if d := insts[i].Location.Sub(insts[j].Location).Len(); d < radius-1e-9 {
				t.Fatalf("instâncias %d e %d a %.2f, raio %.2f", i, j, d, radius)
			}
		}
	}
}

func TestAddInstancesForBrushFilterAndPressure(t *testing.T) {
	w, terrain, _ := paintWorld(t)
	p := NewPainter(w, 5)
	ft := NewFoliageType("grass", "SM_Grass", TypeAsset)
	brush := util.Sphere{W: 200}

	p.Filter = func(b Base) bool { return b != Base(terrain) }
	if n := p.AddInstancesForBrush(ft, brush, util.UpVector, 10, 1); n != 0 {
		t.Errorf("filtro ignorado: %d instâncias", n)
	}

	p.Filter = nil
	if n := p.AddInstancesForBrush(ft, brush, util.UpVector, 10, 0.5); n != 5 {
		t.Errorf("pressão 0.5 criou %d instâncias, want 5", n)
	}
}

func TestRemoveInstancesForBrush(t *testing.T) {
	w, _, _ := paintWorld(t)
	p := NewPainter(w, 9)
	ft := NewFoliageType("grass", "SM_Grass", TypeAsset)
	s := w.ActorForLevel(PersistentLevel, true).AddMesh(ft)
	fillLine(s, 10)

	if n := p.RemoveInstancesForBrush(ft, util.Sphere{W: 4.5}, 1); n != 5 {
		t.Errorf("removidas %d, want 5", n)
	}
	for _, l := range locations(s) {
		if l[0] <= 4.5 {
			t.Errorf("instância em %v deveria ter sido removida", l)
		}
	}

	if n := p.RemoveInstancesForBrush(ft, util.Sphere{Center: util.Vec3{7, 0, 0}, W: 1}, 0.5); n != 2 {
		t.Errorf("pressão 0.5 removeu %d, want 2", n)
	}
	if s.Len() != 3 {
		t.Errorf("Len() = %d, want 3", s.Len())
	}
	mustValid(t, s)
}

func TestFoliageTraceUsesBaseOfHitInstance(t *testing.T) {
	w := NewWorld(ActorConfig{}, &planeTracer{})
	cliff := newTestBase("cliff", PersistentLevel)
	boulder := NewFoliageType("boulder", "SM_Boulder", TypeAsset)
	boulder.BlockingRadius = 50
	w.ActorForLevel(PersistentLevel, true).AddMesh(boulder).AddInstanceOnBase(at(0, 0, 0), cliff, true)

	moss := NewFoliageType("moss", "SM_Moss", TypeAsset)
	d := NewDesiredInstance(util.Vec3{0, 0, 1000}, util.Vec3{0, 0, -1000})
	d.FoliageType = moss
	hit, ok := w.FoliageTrace(d, nil)
	if !ok {
		t.Fatal("trace não atingiu a rocha")
	}
	if hit.Base != Base(cliff) || hit.Component != nil {
		t.Errorf("hit.Base = %v, want a base da rocha", hit.Base)
	}
	if !vecNear(hit.Location, util.Vec3{0, 0, 50}) {
		t.Errorf("hit.Location = %v", hit.Location)
	}

	d.FoliageType = boulder
	if _, ok := w.FoliageTrace(d, nil); ok {
		t.Errorf("trace do mesmo tipo deveria ignorar as próprias instâncias")
	}
}

func TestFoliageTraceStopsAtInstanceWithoutBase(t *testing.T) {
	terrain := newTestBase("terrain", PersistentLevel)
	w := NewWorld(ActorConfig{}, &planeTracer{planes: []plane{groundPlane(terrain, 10000)}})
	boulder := NewFoliageType("boulder", "SM_Boulder", TypeAsset)
	boulder.BlockingRadius = 50
	w.ActorForLevel(PersistentLevel, true).AddMesh(boulder).AddInstance(at(0, 0, 0), true)

	d := NewDesiredInstance(util.Vec3{0, 0, 1000}, util.Vec3{0, 0, -1000})
	d.FoliageType = NewFoliageType("moss", "SM_Moss", TypeAsset)
	hit, ok := w.FoliageTrace(d, nil)
	if !ok {
		t.Fatal("trace não atingiu a rocha")
	}
	if hit.Base != nil || hit.Component != nil {
		t.Errorf("hit = %+v, want contato sem base", hit)
	}
	if !vecNear(hit.Location, util.Vec3{0, 0, 50}) {
		t.Errorf("hit.Location = %v, want a rocha e não o terreno", hit.Location)
	}
}

func TestFoliageTraceReachesScaledInstances(t *testing.T) {
	w := NewWorld(ActorConfig{}, &planeTracer{})
	boulder := NewFoliageType("boulder", "SM_Boulder", TypeAsset)
	boulder.BlockingRadius = 50
	inst := at(600, 0, 0)
	inst.DrawScale3D = util.Vec3{10, 10, 10}
	w.ActorForLevel(PersistentLevel, true).AddMesh(boulder).AddInstance(inst, true)

	d := NewDesiredInstance(util.Vec3{200, 0, 1000}, util.Vec3{200, 0, -1000})
	d.FoliageType = NewFoliageType("moss", "SM_Moss", TypeAsset)
	hit, ok := w.FoliageTrace(d, nil)
	if !ok {
		t.Fatal("trace não atingiu a rocha escalada")
	}
	if dist := hit.Location.Sub(inst.Location).Len(); math.Abs(dist-500) > 1e-6 {
		t.Errorf("contato a %v da rocha, want 500", dist)
	}
}

func TestFoliageTraceProceduralVolumes(t *testing.T) {
	w, terrain, tracer := paintWorld(t)
	run := uuid.New()
	d := NewDesiredInstance(util.Vec3{0, 0, 1000}, util.Vec3{0, 0, -1000})
	d.Mode = PlacementProcedural
	d.ProceduralGuid = run

	tracer.extra = []Hit{{Flags: HitBlockingVolume, Distance: 1}}
	if _, ok := w.FoliageTrace(d, nil); ok {
		t.Errorf("volume de bloqueio sem guid deveria abortar")
	}

	tracer.extra = []Hit{{Flags: HitBlockingVolume, Distance: 1, VolumeGuid: run}}
	if _, ok := w.FoliageTrace(d, nil); ok {
		t.Errorf("volume de bloqueio da mesma execução deveria abortar")
	}

	tracer.extra = []Hit{
		{Flags: HitBlockingVolume, Distance: 1, VolumeGuid: uuid.New()},
		{Flags: HitProceduralVolume | HitBlocking, Distance: 2},
		{Flags: HitBrush | HitBlocking, Distance: 3},
	}
	hit, ok := w.FoliageTrace(d, nil)
	if !ok || hit.Base != Base(terrain) {
		t.Errorf("trace procedural deveria chegar ao terreno: %+v, %v", hit, ok)
	}

	d.Mode = PlacementManual
	tracer.extra = []Hit{{Flags: HitBlockingVolume, Distance: 1}}
	if hit, ok := w.FoliageTrace(d, nil); !ok || hit.Base != Base(terrain) {
		t.Errorf("pintura manual ignora volumes de bloqueio")
	}
}

type boxVolume struct{ box util.Box }

func (v boxVolume) OverlapTest(p util.Vec3, radius float64) bool {
	return v.box.Expand(radius).Contains(p)
}

func TestAddInstancesProcedural(t *testing.T) {
	w, _, _ := paintWorld(t)
	p := NewPainter(w, 11)
	ft := NewFoliageType("tree", "SM_Tree", TypeAsset)
	ft.MaxAge = 10
	run := uuid.New()
	vol := boxVolume{util.Box{Min: util.Vec3{-100, -100, -100}, Max: util.Vec3{100, 100, 100}}}

	var desired []DesiredInstance
	for _, x := range []float64{0, 50, 500} {
		d := NewDesiredInstance(util.Vec3{x, 0, 1000}, util.Vec3{x, 0, -1000})
		d.Mode = PlacementProcedural
		d.ProceduralGuid = run
		d.Age = 5
		d.Rotation = util.Rotator{Yaw: 30}
		d.Volume = vol
		desired = append(desired, d)
	}

	if n := p.AddInstances(ft, desired); n != 2 {
		t.Fatalf("AddInstances = %d, want 2 (um fora do volume)", n)
	}
	s := worldStore(w, ft)
	for i, inst := range s.Instances() {
		if inst.DrawScale3D != (util.Vec3{2, 2, 2}) {
			t.Errorf("instância %d com escala %v, want 2", i, inst.DrawScale3D)
		}
		if inst.ProceduralGuid != run || !inst.Flags.Has(FlagNoRandomYaw) {
			t.Errorf("instância %d sem marca procedural", i)
		}
		if !inst.Rotation.Equals(util.Rotator{Yaw: 30}, 1e-6) {
			t.Errorf("instância %d com rotação %+v", i, inst.Rotation)
		}
	}
	if !w.ContainsInstancesFromProceduralComponent(run) {
		t.Errorf("execução procedural não registrada")
	}
}

func TestSnapSelectedInstancesToGround(t *testing.T) {
	w, terrain, _ := paintWorld(t)
	p := NewPainter(w, 1)
	ft := NewFoliageType("grass", "SM_Grass", TypeAsset)
	a := w.ActorForLevel(PersistentLevel, true)
	s := a.AddMesh(ft)
	floating := at(30, 40, 500)
	floating.ZOffset = 7
	s.AddInstance(floating, true)
	s.AddInstance(at(0, 0, 300), true)
	s.SelectInstancesAt(true, []int{0})

	if !p.SnapSelectedInstancesToGround() {
		t.Fatal("nenhuma instância foi movida")
	}

	inst, _ := s.Instance(0)
	if inst.Location != (util.Vec3{30, 40, 0}) || inst.ZOffset != 0 {
		t.Errorf("instância apoiada em %v (ZOffset %v)", inst.Location, inst.ZOffset)
	}
	if base, ok := a.BaseCache.GetInstanceBase(inst.BaseId); !ok || base != Base(terrain) {
		t.Errorf("instância não ganhou a base do chão")
	}
	if other, _ := s.Instance(1); other.Location[2] != 300 {
		t.Errorf("instância não selecionada se moveu")
	}
	mustValid(t, s)
}

func TestTransformSelectedInstancesDuplicate(t *testing.T) {
	w, _, _ := paintWorld(t)
	p := NewPainter(w, 1)
	s := w.ActorForLevel(PersistentLevel, true).AddMesh(NewFoliageType("grass", "SM_Grass", TypeAsset))
	inst := at(0, 0, 0)
	inst.ZOffset = 10
	s.AddInstance(inst, true)
	s.SelectInstancesAt(true, []int{0})

	p.TransformSelectedInstances(util.Vec3{100, 0, 0}, util.Rotator{Yaw: 15}, util.Vec3{0.5, 0.5, 0.5}, true)

	if s.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", s.Len())
	}
	moved, _ := s.Instance(0)
	if !vecNear(moved.Location, util.Vec3{100, 0, 10}) || moved.ZOffset != 0 {
		t.Errorf("instância movida em %v (ZOffset %v)", moved.Location, moved.ZOffset)
	}
	if moved.Rotation.Yaw != 15 || moved.DrawScale3D != (util.Vec3{1.5, 1.5, 1.5}) {
		t.Errorf("rotação %+v escala %v", moved.Rotation, moved.DrawScale3D)
	}
	if cp, _ := s.Instance(1); cp.Location != (util.Vec3{0, 0, 0}) || cp.ZOffset != 10 {
		t.Errorf("cópia em %v (ZOffset %v)", cp.Location, cp.ZOffset)
	}
	if sel := s.SelectedIndices(); len(sel) != 1 || sel[0] != 0 {
		t.Errorf("seleção = %v", sel)
	}
	mustValid(t, s)

	p.RemoveSelectedInstances()
	if s.Len() != 1 {
		t.Errorf("RemoveSelectedInstances deixou %d", s.Len())
	}
}

func TestSelectInstancesForBrush(t *testing.T) {
	w, _, _ := paintWorld(t)
	p := NewPainter(w, 1)
	ft := NewFoliageType("grass", "SM_Grass", TypeAsset)
	s := w.ActorForLevel(PersistentLevel, true).AddMesh(ft)
	fillLine(s, 6)

	p.SelectInstancesForBrush(ft, util.Sphere{W: 2}, true)
	if got := s.SelectedIndices(); len(got) != 3 {
		t.Errorf("SelectedIndices() = %v, want 3", got)
	}
	p.SelectInstanceAtLocation(ft, util.Vec3{1, 0, 0}, false)
	if s.IsSelected(1) {
		t.Errorf("instância 1 continua selecionada")
	}
}

func TestMapRebuildMigratesModelBases(t *testing.T) {
	oldModel := newTestBase("Model_0", PersistentLevel)
	oldModel.kind = BaseModel
	newModel := newTestBase("Model_1", PersistentLevel)
	newModel.kind = BaseModel
	rock := newTestBase("rock", PersistentLevel)

	tracer := &planeTracer{planes: []plane{groundPlane(oldModel, 1000)}}
	w := NewWorld(ActorConfig{}, tracer)
	a := w.ActorForLevel(PersistentLevel, true)
	s := a.AddMesh(NewFoliageType("grass", "SM_Grass", TypeAsset))
	s.AddInstanceOnBase(at(0, 0, 0), oldModel, true)
	s.AddInstanceOnBase(at(10, 0, 0), oldModel, true)
	s.AddInstanceOnBase(at(2000, 0, 0), oldModel, true)
	s.AddInstanceOnBase(at(5, 5, 0), rock, true)

	tracer.planes[0] = groundPlane(newModel, 1000)
	a.MapRebuild()

	if a.HasFoliageAttached(oldModel) {
		t.Errorf("componente antigo ainda tem instâncias")
	}
	newId := a.BaseCache.GetInstanceBaseId(newModel)
	if got := len(s.InstancesForBase(newId)); got != 2 {
		t.Errorf("%d instâncias migradas, want 2", got)
	}
	if !a.HasFoliageAttached(rock) || s.Len() != 3 {
		t.Errorf("Len() = %d, instâncias fora do BSP foram afetadas", s.Len())
	}
	mustValid(t, s)
}
