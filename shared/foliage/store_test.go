package foliage

import (
	"errors"
	"maps"
	"math/rand"
	"slices"
	"testing"

	putil "FoliageForge/shared/pkg/util"
	"FoliageForge/shared/util"

	"github.com/google/uuid"
)

func fillLine(s *Store, n int) {
	for i := 0; i < n; i++ {
		s.AddInstance(at(float64(i), 0, 0), true)
	}
}

func xs(s *Store) []float64 {
	var out []float64
	for _, l := range locations(s) {
		out = append(out, l[0])
	}
	return out
}

func memComponent(t *testing.T, s *Store) *MemoryComponent {
	t.Helper()
	c, ok := s.Component().(*MemoryComponent)
	if !ok {
		t.Fatalf("componente = %T, want *MemoryComponent", s.Component())
	}
	return c
}

func TestStoreAddKeepsIndexesConsistent(t *testing.T) {
	a, _, s := newTestStore(t)
	rock := newTestBase("rock", PersistentLevel)

	for i := 0; i < 20; i++ {
		inst := at(float64(i*37), float64(-i*11), 0)
		if i%2 == 0 {
			s.AddInstanceOnBase(inst, rock, false)
		} else {
			s.AddInstance(inst, false)
		}
	}
	mustValid(t, s)

	id := a.BaseCache.GetInstanceBaseId(rock)
	if got := len(s.InstancesForBase(id)); got != 10 {
		t.Errorf("InstancesForBase(rock) = %d índices, want 10", got)
	}
	if got := len(s.InstancesForBase(InvalidBaseId)); got != 10 {
		t.Errorf("InstancesForBase(Invalid) = %d índices, want 10", got)
	}
	if s.SpatialHash().Len() != 20 {
		t.Errorf("hash Len() = %d, want 20", s.SpatialHash().Len())
	}
	if memComponent(t, s).InstanceCount() != 20 {
		t.Errorf("componente com %d instâncias", memComponent(t, s).InstanceCount())
	}
}

func TestStoreRemoveSwapOrder(t *testing.T) {
	tests := []struct {
		name    string
		n       int
		remove  []int
		want    []float64
		removed []int
	}{
		{"meio e fim", 6, []int{2, 5}, []float64{0, 1, 4, 3}, []int{2, 2}},
		{"cauda pendente", 10, []int{1, 3, 8, 9}, []float64{0, 7, 2, 6, 4, 5}, []int{1, 1, 1, 3}},
		{"duplicados e fora do intervalo", 4, []int{1, 1, -1, 7, 1}, []float64{0, 3, 2}, []int{1}},
		{"tudo", 3, []int{0, 1, 2}, nil, []int{0, 0, 0}},
		{"nada", 3, []int{5}, []float64{0, 1, 2}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a, _, s := newTestStore(t)
			fillLine(s, tt.n)

			var removed []int
			a.AddListener(ChangeListenerFunc(func(ev ChangeEvent) {
				if ev.Kind == ChangeRemoved {
					removed = append(removed, ev.Index)
				}
			}))
			s.RemoveInstances(tt.remove, true)

			if got := xs(s); !slices.Equal(got, tt.want) {
				t.Errorf("restantes = %v, want %v", got, tt.want)
			}
			if !slices.Equal(removed, tt.removed) {
				t.Errorf("eventos Removed = %v, want %v", removed, tt.removed)
			}
			mustValid(t, s)
		})
	}
}

func TestStoreRemoveRemapsSelectionAndBases(t *testing.T) {
	a, _, s := newTestStore(t)
	rock := newTestBase("rock", PersistentLevel)
	for i := 0; i < 5; i++ {
		s.AddInstanceOnBase(at(float64(i), 0, 0), rock, true)
	}
	s.SelectInstancesAt(true, []int{4})

	s.RemoveInstances([]int{1}, true)

	if got := s.SelectedIndices(); !slices.Equal(got, []int{1}) {
		t.Errorf("SelectedIndices() = %v, want [1]", got)
	}
	if !memComponent(t, s).IsSelected(1) {
		t.Errorf("componente perdeu o destaque do índice 1")
	}
	id := a.BaseCache.GetInstanceBaseId(rock)
	if got := s.InstancesForBase(id); !slices.Equal(got, []int{0, 1, 2, 3}) {
		t.Errorf("InstancesForBase = %v", got)
	}
	mustValid(t, s)
}

func TestStoreSphereQueryMatchesBruteForce(t *testing.T) {
	_, _, s := newTestStore(t)
	rng := rand.New(rand.NewSource(42))
	for i := 0; i < 400; i++ {
		s.AddInstance(at(rng.Float64()*4000-2000, rng.Float64()*4000-2000, rng.Float64()*200-100), false)
	}

	for q := 0; q < 25; q++ {
		sphere := util.Sphere{
			Center: util.Vec3{rng.Float64()*4000 - 2000, rng.Float64()*4000 - 2000, 0},
			W:      rng.Float64() * 900,
		}
		var want []int
		for i, inst := range s.Instances() {
			if sphere.ContainsPoint(inst.Location) {
				want = append(want, i)
			}
		}
		got := s.GetInstancesInsideSphere(sphere)
		if !slices.Equal(got, want) {
			t.Fatalf("esfera %v: GetInstancesInsideSphere = %v, want %v", sphere, got, want)
		}
		if s.CheckForOverlappingSphere(sphere) != (len(want) > 0) {
			t.Errorf("CheckForOverlappingSphere(%v) divergiu", sphere)
		}
	}
}

func TestStoreBoxQueryIsExact(t *testing.T) {
	_, _, s := newTestStore(t)
	fillLine(s, 10)
	box := util.Box{Min: util.Vec3{2.5, -1, -1}, Max: util.Vec3{6, 1, 1}}
	if got := s.GetInstancesOverlappingBox(box); !slices.Equal(got, []int{3, 4, 5, 6}) {
		t.Errorf("GetInstancesOverlappingBox = %v, want [3 4 5 6]", got)
	}
}

// A busca é granular por célula: qualquer instância na célula do ponto é
// candidata, e a mais próxima vence mesmo fora da tolerância.
func TestStoreGetInstanceAtLocation(t *testing.T) {
	tests := []struct {
		name     string
		cellBits uint
		p        util.Vec3
		want     int
		wantOk   bool
	}{
		{"perto, células de 128", 7, util.Vec3{100, 0, 0.01}, 0, true},
		// 500 cai em outra célula de 128 unidades
		{"longe, células de 128", 7, util.Vec3{500, 500, 500}, -1, false},
		{"perto, células padrão", 0, util.Vec3{100, 0, 0.01}, 0, true},
		// Mesma célula de 512 unidades que (100,0,0)
		{"longe, mesma célula padrão", 0, util.Vec3{500, 500, 500}, 0, true},
		{"outra célula padrão", 0, util.Vec3{600, 0, 0}, -1, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := NewActor(PersistentLevel, ActorConfig{CellBits: tt.cellBits})
			s := a.AddMesh(NewFoliageType("grass", "SM_Grass", TypeAsset))
			s.AddInstance(at(100, 0, 0), true)

			got, ok := s.GetInstanceAtLocation(tt.p)
			if got != tt.want || ok != tt.wantOk {
				t.Errorf("GetInstanceAtLocation(%v) = %d, %v; want %d, %v", tt.p, got, ok, tt.want, tt.wantOk)
			}
		})
	}
}

func TestStoreTracksMaxScale(t *testing.T) {
	_, _, s := newTestStore(t)
	s.AddInstance(at(0, 0, 0), true)
	if got := s.MaxInstanceScale(); got != 1 {
		t.Fatalf("MaxInstanceScale() = %v, want 1", got)
	}

	big := at(10, 0, 0)
	big.DrawScale3D = util.Vec3{1, 4, -6}
	s.AddInstance(big, true)
	if got := s.MaxInstanceScale(); got != 6 {
		t.Errorf("após AddInstance = %v, want 6", got)
	}

	s.MoveInstances([]int{0}, func(_ int, inst *Instance) {
		inst.DrawScale3D = util.Vec3{9, 9, 9}
	})
	if got := s.MaxInstanceScale(); got != 9 {
		t.Errorf("após MoveInstances = %v, want 9", got)
	}

	// Remoção mantém o limite até a próxima reconstrução
	s.RemoveInstances([]int{0}, true)
	if got := s.MaxInstanceScale(); got != 9 {
		t.Errorf("após RemoveInstances = %v, want 9", got)
	}
	s.RebuildIndexes()
	if got := s.MaxInstanceScale(); got != 6 {
		t.Errorf("após RebuildIndexes = %v, want 6", got)
	}

	data, err := s.MarshalBinary()
	if err != nil {
		t.Fatal(err)
	}
	s.Destroy()
	if got := s.MaxInstanceScale(); got != 1 {
		t.Errorf("após Destroy = %v, want 1", got)
	}
	if err := s.UnmarshalBinary(data); err != nil {
		t.Fatal(err)
	}
	if got := s.MaxInstanceScale(); got != 6 {
		t.Errorf("após UnmarshalBinary = %v, want 6", got)
	}
}

func TestStoreOverlapExcluding(t *testing.T) {
	_, _, s := newTestStore(t)
	s.AddInstance(at(0, 0, 0), true)
	s.AddInstance(at(10, 0, 0), true)
	s.AddInstance(at(100, 0, 0), true)

	if !s.CheckForOverlappingInstanceExcluding(0, 20, nil) {
		t.Errorf("vizinho 1 deveria sobrepor 0")
	}
	if s.CheckForOverlappingInstanceExcluding(0, 20, map[int]struct{}{1: {}}) {
		t.Errorf("vizinho excluído ainda contou")
	}
	if s.CheckForOverlappingInstanceExcluding(2, 20, nil) {
		t.Errorf("instância isolada não deveria sobrepor")
	}
}

func TestStoreMoveRehashes(t *testing.T) {
	a, _, s := newTestStore(t)
	fillLine(s, 3)
	var updated []int
	a.AddListener(ChangeListenerFunc(func(ev ChangeEvent) {
		if ev.Kind == ChangeUpdated {
			updated = append(updated, ev.Index)
		}
	}))

	s.MoveInstances([]int{1}, func(i int, inst *Instance) {
		inst.Location = inst.Location.Add(util.Vec3{5000, 0, 0})
	})

	mustValid(t, s)
	if got := s.GetInstancesInsideSphere(util.Sphere{Center: util.Vec3{5001, 0, 0}, W: 1}); !slices.Equal(got, []int{1}) {
		t.Errorf("consulta na nova posição = %v, want [1]", got)
	}
	if got := s.GetInstancesInsideSphere(util.Sphere{Center: util.Vec3{1, 0, 0}, W: 0.5}); len(got) != 0 {
		t.Errorf("posição antiga ainda retorna %v", got)
	}
	tr, _ := memComponent(t, s).InstanceTransform(1)
	if !vecNear(tr.Translation, util.Vec3{5001, 0, 0}) {
		t.Errorf("componente em %v", tr.Translation)
	}
	if !slices.Equal(updated, []int{1}) {
		t.Errorf("eventos Updated = %v", updated)
	}
}

func TestStoreDuplicateBuildsTreeOnce(t *testing.T) {
	_, _, s := newTestStore(t)
	fillLine(s, 4)
	c := memComponent(t, s)
	before := c.TreeBuilds

	out := s.DuplicateInstances([]int{0, 2})

	if !slices.Equal(out, []int{4, 5}) {
		t.Errorf("DuplicateInstances = %v, want [4 5]", out)
	}
	if c.TreeBuilds-before != 1 {
		t.Errorf("árvore reconstruída %d vezes, want 1", c.TreeBuilds-before)
	}
	if got := xs(s); !slices.Equal(got, []float64{0, 1, 2, 3, 0, 2}) {
		t.Errorf("instâncias = %v", got)
	}
	mustValid(t, s)
}

func TestStoreReallocateDropsDeleted(t *testing.T) {
	_, _, s := newTestStore(t)
	fillLine(s, 3)
	s.Edit(1).Flags |= FlagDeleted
	if s.GetInstanceCount() != 2 {
		t.Errorf("GetInstanceCount() = %d, want 2", s.GetInstanceCount())
	}
	old := memComponent(t, s)

	s.ReallocateClusters()

	if !old.IsDestroyed() {
		t.Errorf("componente antigo não foi destruído")
	}
	if got := xs(s); !slices.Equal(got, []float64{0, 2}) {
		t.Errorf("após ReallocateClusters = %v", got)
	}
	if !s.Component().IsTreeFullyBuilt() {
		t.Errorf("árvore não reconstruída")
	}
	mustValid(t, s)
}

func TestStoreReapplyRestoresSelection(t *testing.T) {
	_, _, s := newTestStore(t)
	fillLine(s, 4)
	s.SelectInstancesAt(true, []int{0, 3})
	c := memComponent(t, s)
	c.ClearInstances()

	s.ReapplyInstancesToComponent()

	if c.InstanceCount() != 4 {
		t.Fatalf("componente com %d instâncias", c.InstanceCount())
	}
	for i := 0; i < 4; i++ {
		if want := i == 0 || i == 3; c.IsSelected(i) != want {
			t.Errorf("IsSelected(%d) = %v, want %v", i, c.IsSelected(i), want)
		}
	}
}

func TestStoreSelectAll(t *testing.T) {
	_, _, s := newTestStore(t)
	s.SelectInstances(true)
	if len(s.SelectedIndices()) != 0 {
		t.Errorf("store vazio não deveria ter seleção")
	}
	fillLine(s, 3)
	s.SelectInstances(true)
	if got := s.SelectedIndices(); !slices.Equal(got, []int{0, 1, 2}) {
		t.Errorf("SelectedIndices() = %v", got)
	}
	s.SelectInstancesAt(false, []int{1, 9})
	if s.IsSelected(1) || !s.IsSelected(2) {
		t.Errorf("seleção parcial incorreta: %v", s.SelectedIndices())
	}
	s.SelectInstances(false)
	if len(s.SelectedIndices()) != 0 || memComponent(t, s).IsSelected(0) {
		t.Errorf("seleção não foi limpa")
	}
}

func TestStoreComponentClassChange(t *testing.T) {
	_, ft, s := newTestStore(t)
	fillLine(s, 3)
	old := memComponent(t, s)

	s.CheckComponentClass()
	if s.Component() != InstanceComponent(old) {
		t.Fatalf("componente recriado sem mudança de classe")
	}

	ft.ComponentClass = "HierarchicalFoliage"
	s.CheckComponentClass()

	if !old.IsDestroyed() {
		t.Errorf("componente antigo não destruído")
	}
	if s.Component().Class() != "HierarchicalFoliage" {
		t.Errorf("Class() = %q", s.Component().Class())
	}
	mustValid(t, s)
}

func TestStoreComponentSettings(t *testing.T) {
	_, ft, s := newTestStore(t)
	s.AddInstance(at(0, 0, 0), true)
	c := memComponent(t, s)
	dirty, lighting := c.RenderStateDirties, c.LightingInvalidations

	s.UpdateComponentSettings()
	if c.RenderStateDirties != dirty || c.LightingInvalidations != lighting {
		t.Errorf("sem mudanças não deveria sujar o componente")
	}

	ft.CullDistance = util.FloatInterval{Min: 0, Max: 5000}
	s.UpdateComponentSettings()
	if c.RenderStateDirties != dirty+1 || c.LightingInvalidations != lighting {
		t.Errorf("cull distance: dirty=%d lighting=%d", c.RenderStateDirties-dirty, c.LightingInvalidations-lighting)
	}

	ft.CastShadow = false
	s.UpdateComponentSettings()
	if c.LightingInvalidations != lighting+1 {
		t.Errorf("sombra deveria invalidar a iluminação")
	}
	if c.Settings().CastShadow || c.Settings().CullDistance.Max != 5000 {
		t.Errorf("Settings() = %+v", c.Settings())
	}
}

func TestStoreReentrantMutationPanics(t *testing.T) {
	a, _, s := newTestStore(t)
	a.AddListener(ChangeListenerFunc(func(ev ChangeEvent) {
		if ev.Kind == ChangeAdded && ev.Index == 0 {
			s.AddInstance(at(1, 1, 1), true)
		}
	}))

	func() {
		defer func() {
			r := recover()
			err, ok := r.(*putil.ReentryError)
			if !ok {
				t.Fatalf("recover() = %v, want *ReentryError", r)
			}
			if err.Active != "AddInstance" {
				t.Errorf("Active = %q", err.Active)
			}
		}()
		s.AddInstance(at(0, 0, 0), true)
	}()

	// O guard foi liberado pelo defer e o store continua utilizável.
	s.AddInstance(at(2, 0, 0), true)
	if s.Len() != 2 {
		t.Errorf("Len() = %d, want 2", s.Len())
	}
}

// instanceMultiset conta cada instância pelo valor de todos os campos.
func instanceMultiset(s *Store) map[Instance]int {
	out := make(map[Instance]int, s.Len())
	for _, inst := range s.Instances() {
		out[inst]++
	}
	return out
}

func TestStoreBinaryRoundTrip(t *testing.T) {
	a, ft, s := newTestStore(t)
	rock := newTestBase("rock", PersistentLevel)
	stump := newTestBase("stump", PersistentLevel)
	for i := 0; i < 12; i++ {
		inst := at(float64(i)*10, 3, -2)
		inst.Rotation = util.Rotator{Pitch: 5, Yaw: float64(i * 30), Roll: 1}
		inst.DrawScale3D = util.Vec3{1, 2, float64(i + 1)}
		inst.ZOffset = float64(i)
		inst.Flags = FlagAlignToNormal
		if i%4 == 1 {
			inst.ProceduralGuid = uuid.New()
		}
		switch i % 3 {
		case 0:
			s.AddInstanceOnBase(inst, rock, false)
		case 1:
			s.AddInstanceOnBase(inst, stump, false)
		default:
			// Sem base: fica com InvalidBaseId
			s.AddInstance(inst, false)
		}
	}
	// Remoções embaralham a ordem antes de gravar
	s.RemoveInstances([]int{0, 4, 11, 4}, true)
	mustValid(t, s)

	rockId := a.BaseCache.GetInstanceBaseId(rock)
	stumpId := a.BaseCache.GetInstanceBaseId(stump)
	byBase := map[BaseId]int{
		rockId:        len(s.InstancesForBase(rockId)),
		stumpId:       len(s.InstancesForBase(stumpId)),
		InvalidBaseId: len(s.InstancesForBase(InvalidBaseId)),
	}
	for id, n := range byBase {
		if n == 0 {
			t.Fatalf("nenhuma instância em %s antes de gravar", id)
		}
	}

	data, err := s.MarshalBinary()
	if err != nil {
		t.Fatal(err)
	}

	loaded := NewActor(PersistentLevel, ActorConfig{}).AddMesh(ft.Duplicate(nil))
	if err := loaded.UnmarshalBinary(data); err != nil {
		t.Fatalf("UnmarshalBinary: %v", err)
	}
	mustValid(t, loaded)
	if loaded.Len() != 9 {
		t.Errorf("Len() = %d, want 9", loaded.Len())
	}
	if !maps.Equal(instanceMultiset(loaded), instanceMultiset(s)) {
		t.Errorf("instâncias divergem após ida e volta")
	}
	for id, n := range byBase {
		if got := len(loaded.InstancesForBase(id)); got != n {
			t.Errorf("InstancesForBase(%s) = %d, want %d", id, got, n)
		}
	}
	if loaded.UpdateGuid() != s.UpdateGuid() {
		t.Errorf("UpdateGuid %v, want %v", loaded.UpdateGuid(), s.UpdateGuid())
	}

	if err := loaded.UnmarshalBinary(data[:len(data)-3]); err == nil {
		t.Errorf("dados truncados deveriam falhar")
	}
}

func TestCheckValidDetectsCorruption(t *testing.T) {
	tests := []struct {
		name    string
		corrupt func(s *Store)
		check   string
	}{
		{"posição sem rehash", func(s *Store) { s.instances[0].Location = util.Vec3{9999, 0, 0} }, "spatial-hash"},
		{"base sem rehash", func(s *Store) { s.instances[1].BaseId = BaseId{slot: 7, gen: 1} }, "component-hash"},
		{"seleção fora do intervalo", func(s *Store) { s.selected[42] = struct{}{} }, "selection"},
		{"componente divergente", func(s *Store) { s.component.RemoveInstance(0) }, "component"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, s := newTestStore(t)
			fillLine(s, 3)
			mustValid(t, s)
			tt.corrupt(s)

			var ie *InvariantError
			if err := s.CheckValid(); !errors.As(err, &ie) {
				t.Fatalf("CheckValid() = %v, want *InvariantError", err)
			}
			if ie.Check != tt.check {
				t.Errorf("Check = %q, want %q", ie.Check, tt.check)
			}
		})
	}
}

func TestStoreDestroyEmitsCleared(t *testing.T) {
	a, _, s := newTestStore(t)
	fillLine(s, 2)
	var kinds []ChangeKind
	a.AddListener(ChangeListenerFunc(func(ev ChangeEvent) { kinds = append(kinds, ev.Kind) }))

	s.Destroy()

	if s.Len() != 0 || s.Component() != nil {
		t.Errorf("Destroy deixou Len=%d componente=%v", s.Len(), s.Component())
	}
	if !slices.Equal(kinds, []ChangeKind{ChangeCleared}) {
		t.Errorf("eventos = %v", kinds)
	}
	mustValid(t, s)
}
