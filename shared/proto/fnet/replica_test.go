package fnet

import (
	"errors"
	"reflect"
	"testing"

	"FoliageForge/shared/foliage"
	"FoliageForge/shared/util"
)

func decodeTypes(t *testing.T, msgs [][]byte) []MessageType {
	t.Helper()
	var out []MessageType
	for _, m := range msgs {
		var env Envelope
		if err := env.Unmarshal(m); err != nil {
			t.Fatal(err)
		}
		out = append(out, env.Type)
	}
	return out
}

func TestBatchCoalescesRemovals(t *testing.T) {
	b := &Batch{}
	b.StoreChanged(foliage.ChangeEvent{Kind: foliage.ChangeAdded, Level: "L", Type: "g", Index: 0})
	b.StoreChanged(foliage.ChangeEvent{Kind: foliage.ChangeRemoved, Level: "L", Type: "g", Index: 1})
	b.StoreChanged(foliage.ChangeEvent{Kind: foliage.ChangeRemoved, Level: "L", Type: "g", Index: 1})
	b.StoreChanged(foliage.ChangeEvent{Kind: foliage.ChangeRemoved, Level: "L", Type: "h", Index: 0})
	b.StoreChanged(foliage.ChangeEvent{Kind: foliage.ChangeUpdated, Level: "L", Type: "g", Index: 0})
	b.StoreChanged(foliage.ChangeEvent{Kind: foliage.ChangeCleared, Level: "L", Type: "h"})

	msgs := b.Flush()
	want := []MessageType{MsgInstanceAdded, MsgInstancesRemoved, MsgInstancesRemoved, MsgInstanceUpdated, MsgStoreCleared}
	if got := decodeTypes(t, msgs); !reflect.DeepEqual(got, want) {
		t.Fatalf("tipos = %v, want %v", got, want)
	}

	var env Envelope
	env.Unmarshal(msgs[1])
	var rm InstancesRemoved
	if err := rm.Unmarshal(env.Payload); err != nil {
		t.Fatal(err)
	}
	if rm.Type != "g" || !reflect.DeepEqual(rm.Indices, []int{1, 1}) {
		t.Errorf("remoção = %+v, want g [1 1]", rm)
	}
	if b.Len() != 0 {
		t.Errorf("Len após Flush = %d", b.Len())
	}
}

// serverWorld monta um mundo com seis instâncias em x = 0..5 e o snapshot correspondente.
func serverWorld(t *testing.T) (*foliage.World, *foliage.Store, []byte) {
	t.Helper()
	w := foliage.NewWorld(foliage.ActorConfig{}, nil)
	a := w.ActorForLevel(foliage.PersistentLevel, true)
	ft := foliage.NewFoliageType("grass", "SM_Grass", foliage.TypeAsset)
	st := a.AddMesh(ft)
	for i := 0; i < 6; i++ {
		st.AddInstance(foliage.NewInstance(util.Vec3{float64(i), 0, 0}), false)
	}

	td, err := NewTypeDefinition(ft)
	if err != nil {
		t.Fatal(err)
	}
	archive, err := a.MarshalBinary()
	if err != nil {
		t.Fatal(err)
	}
	return w, st, Wrap(MsgSnapshot, &Snapshot{Types: []TypeDefinition{td}, Actors: [][]byte{archive}})
}

func replicaStore(t *testing.T, r *Replica) *foliage.Store {
	t.Helper()
	a := r.World.ActorForLevel(foliage.PersistentLevel, false)
	if a == nil {
		t.Fatal("réplica sem ator persistente")
	}
	st := a.FindStore(r.FoliageType("grass"))
	if st == nil {
		t.Fatal("réplica sem store de grass")
	}
	return st
}

func TestReplicaFollowsServer(t *testing.T) {
	srv, st, snapshot := serverWorld(t)

	rep := NewReplica(foliage.ActorConfig{})
	if typ, err := rep.Apply(snapshot); err != nil || typ != MsgSnapshot {
		t.Fatalf("Apply snapshot = (%v, %v)", typ, err)
	}
	if got := replicaStore(t, rep).Len(); got != 6 {
		t.Fatalf("réplica com %d instâncias após snapshot, want 6", got)
	}

	batch := &Batch{}
	srv.AddListener(batch)
	st.RemoveInstances([]int{2, 5}, true)
	st.AddInstance(foliage.NewInstance(util.Vec3{10, 0, 0}), true)
	st.MoveInstances([]int{0}, func(_ int, inst *foliage.Instance) {
		inst.Location = util.Vec3{0, 7, 0}
	})
	st.RemoveInstances([]int{0, 1, 4}, true)

	for _, msg := range batch.Flush() {
		if _, err := rep.Apply(msg); err != nil {
			t.Fatalf("Apply: %v", err)
		}
	}

	rst := replicaStore(t, rep)
	var want, got []util.Vec3
	for _, inst := range st.Instances() {
		want = append(want, inst.Location)
	}
	for _, inst := range rst.Instances() {
		got = append(got, inst.Location)
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("réplica = %v, servidor = %v", got, want)
	}
	if err := rst.CheckValid(); err != nil {
		t.Errorf("réplica inconsistente: %v", err)
	}
}

func TestReplicaFollowsReallocation(t *testing.T) {
	srv, st, snapshot := serverWorld(t)
	rep := NewReplica(foliage.ActorConfig{})
	if _, err := rep.Apply(snapshot); err != nil {
		t.Fatal(err)
	}

	batch := &Batch{}
	srv.AddListener(batch)
	st.MoveInstances([]int{3}, func(_ int, inst *foliage.Instance) {
		inst.Flags |= foliage.FlagDeleted
	})
	st.ReallocateClusters()

	for _, msg := range batch.Flush() {
		if _, err := rep.Apply(msg); err != nil {
			t.Fatalf("Apply: %v", err)
		}
	}
	if got := replicaStore(t, rep).Len(); got != 5 {
		t.Errorf("réplica com %d instâncias, want 5", got)
	}
}

func TestReplicaDetectsDesync(t *testing.T) {
	_, _, snapshot := serverWorld(t)
	rep := NewReplica(foliage.ActorConfig{})
	if _, err := rep.Apply(snapshot); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name string
		msg  []byte
	}{
		{"índice de adição errado", Wrap(MsgInstanceAdded, &InstanceChange{Level: foliage.PersistentLevel, Type: "grass", Index: 2, Instance: foliage.NewInstance(util.Vec3{})})},
		{"remoção fora do intervalo", Wrap(MsgInstancesRemoved, &InstancesRemoved{Level: foliage.PersistentLevel, Type: "grass", Indices: []int{40}})},
		{"tipo desconhecido", Wrap(MsgInstanceUpdated, &InstanceChange{Level: foliage.PersistentLevel, Type: "oak", Instance: foliage.NewInstance(util.Vec3{})})},
		{"nível desconhecido", Wrap(MsgInstancesRemoved, &InstancesRemoved{Level: "Nowhere", Type: "grass", Indices: []int{0}})},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := rep.Apply(tt.msg); !errors.Is(err, ErrDesync) {
				t.Errorf("err = %v, want ErrDesync", err)
			}
		})
	}
}
