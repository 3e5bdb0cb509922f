package foliage

import (
	"fmt"

	"FoliageForge/shared/pkg/protowire"
	"FoliageForge/shared/util"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/google/uuid"
)

// Campos da instância, na ordem do registro persistido.
const (
	fieldInstLocation = iota + 1
	fieldInstRotation
	fieldInstDrawScale
	fieldInstPreAlign
	fieldInstProceduralGuid
	fieldInstFlags
	fieldInstZOffset
	fieldInstBaseId
)

const (
	fieldStoreType = iota + 1
	fieldStoreUpdateGuid
	fieldStoreInstance
)

const (
	fieldActorLevel = iota + 1
	fieldActorBase
	fieldActorStore
)

const (
	fieldBaseId = iota + 1
	fieldBaseName
	fieldBaseLevel
	fieldBaseLocation
	fieldBaseRotation
	fieldBaseScale
)

func vec(v util.Vec3) []float64 {
	return []float64{v[0], v[1], v[2]}
}

func rot(r util.Rotator) []float64 {
	return []float64{r.Pitch, r.Yaw, r.Roll}
}

func toVec(f []float64) (util.Vec3, error) {
	if len(f) != 3 {
		return util.Vec3{}, fmt.Errorf("%w: vetor com %d componentes", ErrCorruptArchive, len(f))
	}
	return util.Vec3{f[0], f[1], f[2]}, nil
}

func toRot(f []float64) (util.Rotator, error) {
	if len(f) != 3 {
		return util.Rotator{}, fmt.Errorf("%w: rotação com %d componentes", ErrCorruptArchive, len(f))
	}
	return util.Rotator{Pitch: f[0], Yaw: f[1], Roll: f[2]}, nil
}

func readGuid(d *protowire.Decoder) (uuid.UUID, error) {
	b, err := d.ReadBytes()
	if err != nil {
		return uuid.Nil, err
	}
	return uuid.FromBytes(b)
}

// EncodeInstance serializa uma instância.
func EncodeInstance(inst Instance) []byte {
	e := protowire.NewEncoder()
	e.EncodePackedDouble(fieldInstLocation, vec(inst.Location))
	e.EncodePackedDouble(fieldInstRotation, rot(inst.Rotation))
	e.EncodePackedDouble(fieldInstDrawScale, vec(inst.DrawScale3D))
	e.EncodePackedDouble(fieldInstPreAlign, rot(inst.PreAlignRotation))
	if inst.ProceduralGuid != uuid.Nil {
		e.EncodeBytes(fieldInstProceduralGuid, inst.ProceduralGuid[:])
	}
	e.EncodeUvarint(fieldInstFlags, uint64(inst.Flags))
	e.EncodeDouble(fieldInstZOffset, inst.ZOffset)
	e.EncodeUvarint(fieldInstBaseId, inst.BaseId.Pack())
	return e.Bytes()
}

// DecodeInstance lê uma instância serializada com EncodeInstance.
func DecodeInstance(data []byte) (Instance, error) {
	inst := NewInstance(util.Vec3{})
	d := protowire.NewDecoder(data)
	for !d.Done() {
		field, wt, err := d.ReadTag()
		if err != nil {
			return inst, err
		}
		var f []float64
		switch field {
		case fieldInstLocation, fieldInstRotation, fieldInstDrawScale, fieldInstPreAlign:
			if f, err = d.ReadPackedDouble(); err != nil {
				return inst, err
			}
			switch field {
			case fieldInstLocation:
				inst.Location, err = toVec(f)
			case fieldInstRotation:
				inst.Rotation, err = toRot(f)
			case fieldInstDrawScale:
				inst.DrawScale3D, err = toVec(f)
			case fieldInstPreAlign:
				inst.PreAlignRotation, err = toRot(f)
			}
		case fieldInstProceduralGuid:
			inst.ProceduralGuid, err = readGuid(d)
		case fieldInstFlags:
			var v uint64
			v, err = d.ReadUvarint()
			inst.Flags = InstanceFlags(v)
		case fieldInstZOffset:
			inst.ZOffset, err = d.ReadDouble()
		case fieldInstBaseId:
			var v uint64
			v, err = d.ReadUvarint()
			inst.BaseId = UnpackBaseId(v)
		default:
			err = d.SkipField(field, wt)
		}
		if err != nil {
			return inst, err
		}
	}
	return inst, nil
}

// MarshalBinary serializa as instâncias e o UpdateGuid. Os índices derivados não são gravados.
func (s *Store) MarshalBinary() ([]byte, error) {
	return s.encode(nil), nil
}

// encode grava o store; com remap os BaseIds são traduzidos, e ids sem
// entrada viva viram InvalidBaseId.
func (s *Store) encode(remap map[BaseId]BaseId) []byte {
	e := protowire.NewEncoder()
	e.EncodeString(fieldStoreType, s.ft.Name)
	e.EncodeBytes(fieldStoreUpdateGuid, s.updateGuid[:])
	for i := range s.instances {
		inst := s.instances[i]
		if remap != nil && inst.BaseId.IsValid() {
			inst.BaseId = remap[inst.BaseId]
		}
		e.EncodeSubmessage(fieldStoreInstance, EncodeInstance(inst))
	}
	return e.Bytes()
}

type storeRecord struct {
	typeName  string
	guid      uuid.UUID
	instances []Instance
}

func decodeStore(data []byte) (storeRecord, error) {
	var rec storeRecord
	d := protowire.NewDecoder(data)
	for !d.Done() {
		field, wt, err := d.ReadTag()
		if err != nil {
			return rec, err
		}
		switch field {
		case fieldStoreType:
			rec.typeName, err = d.ReadString()
		case fieldStoreUpdateGuid:
			rec.guid, err = readGuid(d)
		case fieldStoreInstance:
			var b []byte
			if b, err = d.ReadBytes(); err == nil {
				var inst Instance
				if inst, err = DecodeInstance(b); err == nil {
					rec.instances = append(rec.instances, inst)
				}
			}
		default:
			err = d.SkipField(field, wt)
		}
		if err != nil {
			return rec, fmt.Errorf("store %q: %w", rec.typeName, err)
		}
	}
	return rec, nil
}

// UnmarshalBinary substitui o conteúdo do store e reconstrói os índices e o componente.
func (s *Store) UnmarshalBinary(data []byte) error {
	defer s.guard.Enter("UnmarshalBinary")()
	rec, err := decodeStore(data)
	if err != nil {
		return err
	}
	s.restore(rec.instances, rec.guid)
	return nil
}

func encodeBase(e BaseEntry) []byte {
	enc := protowire.NewEncoder()
	enc.EncodeUvarint(fieldBaseId, e.Id.Pack())
	enc.EncodeString(fieldBaseName, e.Info.Name)
	enc.EncodeString(fieldBaseLevel, e.Info.Level)
	enc.EncodePackedDouble(fieldBaseLocation, vec(e.Info.CachedLocation))
	q := e.Info.CachedRotation
	enc.EncodePackedDouble(fieldBaseRotation, []float64{q.W, q.V[0], q.V[1], q.V[2]})
	enc.EncodePackedDouble(fieldBaseScale, vec(e.Info.CachedDrawScale))
	return enc.Bytes()
}

func decodeBase(data []byte) (BaseEntry, error) {
	entry := BaseEntry{Info: BaseInfo{CachedRotation: mgl64.QuatIdent(), CachedDrawScale: util.Vec3{1, 1, 1}}}
	d := protowire.NewDecoder(data)
	for !d.Done() {
		field, wt, err := d.ReadTag()
		if err != nil {
			return entry, err
		}
		switch field {
		case fieldBaseId:
			var v uint64
			v, err = d.ReadUvarint()
			entry.Id = UnpackBaseId(v)
		case fieldBaseName:
			entry.Info.Name, err = d.ReadString()
		case fieldBaseLevel:
			entry.Info.Level, err = d.ReadString()
		case fieldBaseLocation, fieldBaseScale:
			var f []float64
			if f, err = d.ReadPackedDouble(); err == nil {
				var v util.Vec3
				if v, err = toVec(f); err == nil {
					if field == fieldBaseLocation {
						entry.Info.CachedLocation = v
					} else {
						entry.Info.CachedDrawScale = v
					}
				}
			}
		case fieldBaseRotation:
			var f []float64
			if f, err = d.ReadPackedDouble(); err == nil {
				if len(f) != 4 {
					err = fmt.Errorf("%w: quaternion com %d componentes", ErrCorruptArchive, len(f))
				} else {
					entry.Info.CachedRotation = mgl64.Quat{W: f[0], V: mgl64.Vec3{f[1], f[2], f[3]}}
				}
			}
		default:
			err = d.SkipField(field, wt)
		}
		if err != nil {
			return entry, err
		}
	}
	return entry, nil
}

// MarshalBinary serializa o ator: nível, cache de bases e um registro por store.
// Os BaseIds são compactados nos slots 1..n ao gravar.
func (a *Actor) MarshalBinary() ([]byte, error) {
	e := protowire.NewEncoder()
	e.EncodeString(fieldActorLevel, a.Level)
	entries, remap := a.BaseCache.DenseEntries()
	for _, entry := range entries {
		e.EncodeSubmessage(fieldActorBase, encodeBase(entry))
	}
	for _, st := range a.Stores() {
		e.EncodeSubmessage(fieldActorStore, st.encode(remap))
	}
	return e.Bytes(), nil
}

// LoadOptions resolve as referências externas de um ator carregado.
type LoadOptions struct {
	Config ActorConfig
	// Types resolve um tipo pelo nome; nil significa que o tipo não existe mais.
	Types func(name string) *FoliageType
	// Bases resolve uma base pelo nível e nome; pode ser nil.
	Bases func(level, name string) Base
}

// UnmarshalActor reconstrói um ator. Stores de tipos desconhecidos são
// carregados com um tipo apagado, para que PostLoad os descarte com aviso.
func UnmarshalActor(data []byte, opts LoadOptions) (*Actor, error) {
	var level string
	var bases []BaseEntry
	var stores []storeRecord

	d := protowire.NewDecoder(data)
	for !d.Done() {
		field, wt, err := d.ReadTag()
		if err != nil {
			return nil, err
		}
		switch field {
		case fieldActorLevel:
			level, err = d.ReadString()
		case fieldActorBase:
			var b []byte
			if b, err = d.ReadBytes(); err == nil {
				var entry BaseEntry
				if entry, err = decodeBase(b); err == nil {
					bases = append(bases, entry)
				}
			}
		case fieldActorStore:
			var b []byte
			if b, err = d.ReadBytes(); err == nil {
				var rec storeRecord
				if rec, err = decodeStore(b); err == nil {
					stores = append(stores, rec)
				}
			}
		default:
			err = d.SkipField(field, wt)
		}
		if err != nil {
			return nil, fmt.Errorf("ator %q: %w", level, err)
		}
	}

	a := NewActor(level, opts.Config)
	if err := a.BaseCache.Restore(bases, opts.Bases); err != nil {
		return nil, fmt.Errorf("ator %q: %w", level, err)
	}
	for _, rec := range stores {
		var ft *FoliageType
		if opts.Types != nil {
			ft = opts.Types(rec.typeName)
		}
		if ft == nil {
			ft = NewFoliageType(rec.typeName, "", TypeInline)
			ft.MarkDeleted()
		}
		if ft.Kind == TypeInline && ft.owner == nil {
			ft.owner = a
		}
		st := a.AddMesh(ft)
		func() {
			defer st.guard.Enter("UnmarshalActor")()
			st.restore(rec.instances, rec.guid)
		}()
	}
	return a, nil
}
