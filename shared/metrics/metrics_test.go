package metrics

import (
	"testing"
	"time"

	"FoliageForge/shared/foliage"
	"FoliageForge/shared/util"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRecorderFollowsStore(t *testing.T) {
	r := NewRecorder(prometheus.NewRegistry())
	w := foliage.NewWorld(foliage.ActorConfig{}, nil)
	w.AddListener(r)

	ft := foliage.NewFoliageType("grass", "SM_Grass", foliage.TypeAsset)
	st := w.ActorForLevel(foliage.PersistentLevel, true).AddMesh(ft)
	for i := 0; i < 5; i++ {
		st.AddInstance(foliage.NewInstance(util.Vec3{float64(i), 0, 0}), false)
	}
	st.RemoveInstances([]int{0, 1}, true)

	tests := []struct {
		name string
		c    prometheus.Collector
		want float64
	}{
		{"gauge", r.instances.WithLabelValues(foliage.PersistentLevel, "grass"), 3},
		{"added", r.changes.WithLabelValues(foliage.PersistentLevel, "grass", "added"), 5},
		{"removed", r.changes.WithLabelValues(foliage.PersistentLevel, "grass", "removed"), 2},
	}
	for _, tt := range tests {
		if got := testutil.ToFloat64(tt.c); got != tt.want {
			t.Errorf("%s = %v, want %v", tt.name, got, tt.want)
		}
	}

	st.Destroy()
	if got := testutil.ToFloat64(r.instances.WithLabelValues(foliage.PersistentLevel, "grass")); got != 0 {
		t.Errorf("gauge após Destroy = %v, want 0", got)
	}
}

func TestRecorderSync(t *testing.T) {
	r := NewRecorder(prometheus.NewRegistry())
	w := foliage.NewWorld(foliage.ActorConfig{}, nil)
	ft := foliage.NewFoliageType("fern", "SM_Fern", foliage.TypeAsset)
	st := w.ActorForLevel("Sub", true).AddMesh(ft)
	st.AddInstance(foliage.NewInstance(util.Vec3{}), false)
	st.AddInstance(foliage.NewInstance(util.Vec3{1, 0, 0}), false)

	r.Sync(w)
	if got := testutil.ToFloat64(r.instances.WithLabelValues("Sub", "fern")); got != 2 {
		t.Errorf("gauge = %v, want 2", got)
	}
}

func TestRecorderObserve(t *testing.T) {
	r := NewRecorder(prometheus.NewRegistry())
	r.Observe("paint", true, 2*time.Millisecond)
	r.Observe("paint", false, time.Millisecond)
	r.Observe("", true, time.Millisecond)
	r.SetClients(3)

	if got := testutil.ToFloat64(r.operations.WithLabelValues("paint", "success")); got != 1 {
		t.Errorf("success = %v", got)
	}
	if got := testutil.ToFloat64(r.operations.WithLabelValues("paint", "error")); got != 1 {
		t.Errorf("error = %v", got)
	}
	if got := testutil.CollectAndCount(r.durations); got != 1 {
		t.Errorf("séries de duração = %d, want 1", got)
	}
	if got := testutil.ToFloat64(r.clients); got != 3 {
		t.Errorf("clients = %v", got)
	}
}
