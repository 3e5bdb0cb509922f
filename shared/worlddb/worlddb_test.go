package worlddb

import (
	"errors"
	"testing"

	"FoliageForge/shared/foliage"
	"FoliageForge/shared/scene"
	"FoliageForge/shared/util"
)

func openTemp(t *testing.T) (*DB, string) {
	t.Helper()
	dir := t.TempDir()
	db, err := Open(dir, "test")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db, dir
}

func terrain(s *scene.Scene, level string) *scene.Body {
	return s.MustAdd(scene.BodyDef{
		Placement: scene.Placement{Level: level, Name: "Terrain", Transform: util.IdentityTransform()},
		Shape:     scene.Shape{Kind: scene.ShapeBox, Extent: util.Vec3{1000, 1000, 0}},
		Surface:   scene.Surface{Flags: foliage.HitBlocking},
	})
}

func TestMetadataWritten(t *testing.T) {
	db, _ := openTemp(t)
	tests := []struct {
		key, want string
	}{
		{"FormatVersion", "1"},
		{"WorldName", "test"},
	}
	for _, tt := range tests {
		got, err := db.Metadata(tt.key)
		if err != nil || got != tt.want {
			t.Errorf("Metadata(%q) = (%q, %v), want %q", tt.key, got, err, tt.want)
		}
	}
}

func TestOpenRejectsNewerFormat(t *testing.T) {
	db, dir := openTemp(t)
	if err := db.db.Save(&WorldMetadata{Key: "FormatVersion", Value: "99"}).Error; err != nil {
		t.Fatal(err)
	}
	db.Close()

	if _, err := Open(dir, "test"); err == nil {
		t.Error("Open deveria recusar formato mais novo")
	}
}

func TestNilDBReturnsNotInitialized(t *testing.T) {
	var db *DB
	if err := db.SaveWorld(foliage.NewWorld(foliage.ActorConfig{}, nil)); !errors.Is(err, ErrNotInitialized) {
		t.Errorf("SaveWorld = %v, want ErrNotInitialized", err)
	}
	if _, err := db.LoadTypes(); !errors.Is(err, ErrNotInitialized) {
		t.Errorf("LoadTypes = %v, want ErrNotInitialized", err)
	}
}

func TestWorldRoundTrip(t *testing.T) {
	db, _ := openTemp(t)

	sc := scene.New()
	ground := terrain(sc, foliage.PersistentLevel)
	terrain(sc, "Sub")

	grass := foliage.NewFoliageType("grass", "SM_Grass", foliage.TypeAsset)
	grass.Radius = 25
	w := foliage.NewWorld(foliage.ActorConfig{}, sc)
	st := w.ActorForLevel(foliage.PersistentLevel, true).AddMesh(grass)
	for i := 0; i < 4; i++ {
		st.AddInstanceOnBase(foliage.NewInstance(util.Vec3{float64(i * 10), 0, 0}), ground, true)
	}
	w.ActorForLevel("Sub", true).AddMesh(grass).AddInstance(foliage.NewInstance(util.Vec3{5, 5, 0}), true)

	if err := db.SaveTypes([]*foliage.FoliageType{grass}); err != nil {
		t.Fatal(err)
	}
	if err := db.SaveScene(sc); err != nil {
		t.Fatal(err)
	}
	if err := db.SaveWorld(w); err != nil {
		t.Fatal(err)
	}

	sc2 := scene.New()
	if n, err := db.LoadScene(sc2); err != nil || n != 2 {
		t.Fatalf("LoadScene = (%d, %v), want 2", n, err)
	}
	w2, types, err := db.LoadWorld(foliage.ActorConfig{}, sc2, sc2.ResolveBase)
	if err != nil {
		t.Fatal(err)
	}
	ft := types["grass"]
	if ft == nil || ft.Radius != 25 || ft.UpdateGuid != grass.UpdateGuid {
		t.Fatalf("tipo carregado = %+v", ft)
	}

	a := w2.ActorForLevel(foliage.PersistentLevel, false)
	if a == nil {
		t.Fatal("nível persistente não foi carregado")
	}
	loaded := a.FindStore(ft)
	if loaded == nil || loaded.Len() != 4 {
		t.Fatalf("store carregado = %v", loaded)
	}
	if err := loaded.CheckValid(); err != nil {
		t.Error(err)
	}

	// A base volta ligada ao corpo recriado na cena nova.
	inst, _ := loaded.Instance(0)
	base, ok := a.BaseCache.GetInstanceBase(inst.BaseId)
	want, _ := sc2.Find(foliage.PersistentLevel, "Terrain")
	if !ok || base != foliage.Base(want) {
		t.Errorf("base = %v (%v), want %v", base, ok, want)
	}

	if sub := w2.ActorForLevel("Sub", false); sub == nil || sub.FindStore(ft).Len() != 1 {
		t.Error("nível Sub não foi carregado")
	}
}

func TestSaveLevelsDeletesMissingActors(t *testing.T) {
	db, _ := openTemp(t)
	w := foliage.NewWorld(foliage.ActorConfig{}, nil)
	grass := foliage.NewFoliageType("grass", "SM_Grass", foliage.TypeAsset)
	w.ActorForLevel("A", true).AddMesh(grass).AddInstance(foliage.NewInstance(util.Vec3{}), true)
	w.ActorForLevel("B", true)

	if err := db.SaveLevels(w, []string{"A", "B"}); err != nil {
		t.Fatal(err)
	}
	var count int64
	db.db.Model(&LevelModel{}).Count(&count)
	if count != 2 {
		t.Fatalf("níveis gravados = %d, want 2", count)
	}

	w.RemoveLevel("B")
	if err := db.SaveLevels(w, []string{"B"}); err != nil {
		t.Fatal(err)
	}
	db.db.Model(&LevelModel{}).Count(&count)
	if count != 1 {
		t.Errorf("níveis após remover B = %d, want 1", count)
	}

	var m LevelModel
	if err := db.db.First(&m, "name = ?", "A").Error; err != nil || m.Instances != 1 {
		t.Errorf("nível A = %+v (%v)", m, err)
	}
}

func TestLoadDropsUnknownTypes(t *testing.T) {
	db, _ := openTemp(t)
	w := foliage.NewWorld(foliage.ActorConfig{}, nil)
	orphan := foliage.NewFoliageType("orphan", "SM_X", foliage.TypeAsset)
	w.ActorForLevel(foliage.PersistentLevel, true).AddMesh(orphan).AddInstance(foliage.NewInstance(util.Vec3{}), true)
	if err := db.SaveWorld(w); err != nil {
		t.Fatal(err)
	}

	w2, types, err := db.LoadWorld(foliage.ActorConfig{}, nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(types) != 0 {
		t.Errorf("tipos = %d, want 0", len(types))
	}
	if a := w2.ActorForLevel(foliage.PersistentLevel, false); a == nil || len(a.Stores()) != 0 {
		t.Error("store de tipo desconhecido deveria ser descartado no PostLoad")
	}
}
