package fnet

import (
	"reflect"
	"testing"

	"FoliageForge/shared/foliage"
	"FoliageForge/shared/pkg/protowire"
	"FoliageForge/shared/util"

	"github.com/google/uuid"
)

func TestEnvelopeCarriesBrushRequest(t *testing.T) {
	req := &BrushRequest{Type: "grass", Center: util.Vec3{10, -20, 5}, Radius: 256, Pressure: 0.5, Count: 12}
	data := Wrap(MsgPaintRequest, req)

	var env Envelope
	if err := env.Unmarshal(data); err != nil {
		t.Fatalf("Unmarshal envelope: %v", err)
	}
	if env.Type != MsgPaintRequest {
		t.Fatalf("Type = %v, want %v", env.Type, MsgPaintRequest)
	}
	var got BrushRequest
	if err := got.Unmarshal(env.Payload); err != nil {
		t.Fatalf("Unmarshal payload: %v", err)
	}
	if !reflect.DeepEqual(&got, req) {
		t.Errorf("got %+v, want %+v", got, *req)
	}
}

func TestEnvelopeWithoutPayload(t *testing.T) {
	var env Envelope
	if err := env.Unmarshal(Wrap(MsgPing, nil)); err != nil {
		t.Fatal(err)
	}
	if env.Type != MsgPing || len(env.Payload) != 0 {
		t.Errorf("got %v com %d bytes", env.Type, len(env.Payload))
	}
}

func TestUnknownFieldsAreSkipped(t *testing.T) {
	e := protowire.NewEncoder()
	e.EncodeString(1, "Persistent")
	e.EncodeDouble(9, 3.5)
	e.EncodeString(2, "grass")

	var m StoreCleared
	if err := m.Unmarshal(e.Bytes()); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if m.Level != "Persistent" || m.Type != "grass" {
		t.Errorf("got %+v", m)
	}
}

func TestBrushRequestRejectsBadCenter(t *testing.T) {
	e := protowire.NewEncoder()
	e.EncodePackedDouble(2, []float64{1, 2})
	var m BrushRequest
	if err := m.Unmarshal(e.Bytes()); err == nil {
		t.Error("centro com 2 componentes deveria falhar")
	}
}

func TestTypeDefinitionKeepsSettings(t *testing.T) {
	ft := foliage.NewFoliageType("fern", "SM_Fern", foliage.TypeInline)
	ft.Radius = 40
	ft.Scaling = foliage.ScalingLockXY
	ft.ZOffset = util.FloatInterval{Min: -5, Max: 5}
	guid := uuid.New()
	ft.UpdateGuid = guid

	td, err := NewTypeDefinition(ft)
	if err != nil {
		t.Fatal(err)
	}
	var decoded TypeDefinition
	if err := decoded.Unmarshal(td.Marshal()); err != nil {
		t.Fatal(err)
	}
	got, err := decoded.FoliageType()
	if err != nil {
		t.Fatal(err)
	}
	if got.Name != "fern" || got.Mesh != "SM_Fern" || got.Kind != foliage.TypeInline {
		t.Errorf("identidade = (%q, %q, %v)", got.Name, got.Mesh, got.Kind)
	}
	if got.Radius != 40 || got.Scaling != foliage.ScalingLockXY || got.ZOffset != ft.ZOffset {
		t.Errorf("configurações perdidas: %+v", got)
	}
	if got.UpdateGuid != guid {
		t.Errorf("UpdateGuid = %v, want %v", got.UpdateGuid, guid)
	}
}

func TestInstanceChangeRoundTrip(t *testing.T) {
	inst := foliage.NewInstance(util.Vec3{1, 2, 3})
	inst.Rotation = util.Rotator{Pitch: 0, Yaw: 45, Roll: 0}
	inst.ZOffset = 7
	inst.Flags = foliage.FlagNoRandomYaw

	in := &InstanceChange{Level: "Sub", Type: "grass", Index: 0, Instance: inst}
	var out InstanceChange
	if err := out.Unmarshal(in.Marshal()); err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(&out, in) {
		t.Errorf("got %+v, want %+v", out, *in)
	}
}
