package foliage

import (
	"math"
	"sort"

	"FoliageForge/shared/util"

	"github.com/google/uuid"
)

// HitFlags descreve o que foi atingido por um trace.
type HitFlags uint32

const (
	HitBlocking         HitFlags = 1 << iota // bloqueia o canal de objetos estáticos
	HitBrush                                 // parede invisível, trigger ou volume
	HitBlockingVolume                        // volume que bloqueia geração procedural
	HitProceduralVolume                      // volume de geração procedural
)

// Hit é o resultado de um trace.
type Hit struct {
	Base      Base              // superfície atingida; nil para volumes e instâncias sem base
	Component InstanceComponent // componente de foliage quando uma instância foi atingida
	Item      int               // índice da instância em Component
	Location  util.Vec3
	Normal    util.Vec3
	Distance  float64
	Flags     HitFlags
	// VolumeGuid é o guid procedural do volume atingido (uuid.Nil quando não há).
	VolumeGuid uuid.UUID
}

// Tracer consulta a geometria da cena.
type Tracer interface {
	// SweepSphere retorna todos os contatos da esfera ao longo do segmento, do mais próximo ao mais distante.
	SweepSphere(start, end util.Vec3, radius float64) []Hit
	// LineTrace retorna o primeiro contato bloqueante do segmento.
	LineTrace(start, end util.Vec3) (Hit, bool)
}

// Volume é um volume de geração procedural.
type Volume interface {
	// OverlapTest informa se uma esfera de raio radius em p sobrepõe o volume.
	OverlapTest(p util.Vec3, radius float64) bool
}

// PlacementMode distingue pintura manual de geração procedural.
type PlacementMode int

const (
	PlacementManual PlacementMode = iota
	PlacementProcedural
)

// DesiredInstance é um pedido de posicionamento.
type DesiredInstance struct {
	FoliageType    *FoliageType
	StartTrace     util.Vec3
	EndTrace       util.Vec3
	Rotation       util.Rotator // apenas procedural
	TraceRadius    float64
	Age            float64
	ProceduralGuid uuid.UUID
	Mode           PlacementMode
	Volume         Volume // volume procedural de origem, opcional
}

// NewDesiredInstance cria um pedido manual entre start e end.
func NewDesiredInstance(start, end util.Vec3) DesiredInstance {
	return DesiredInstance{StartTrace: start, EndTrace: end}
}

// TraceFilter rejeita superfícies; retornar false faz o trace continuar.
type TraceFilter func(h Hit) bool

// FoliageTrace procura uma superfície válida para posicionar foliage.
//
// Ordem dos filtros: volume de bloqueio procedural (aborta quando não tem guid
// ou pertence à mesma execução), o próprio volume procedural (ignorado),
// superfícies sem colisão, brushes, o componente do mesmo tipo, o filtro do
// chamador e, por fim, o teste de estar dentro do volume procedural.
// Ao atingir outra instância de foliage o resultado usa a base daquela instância,
// ou Base nil quando ela não tem base resolvida.
func (w *World) FoliageTrace(desired DesiredInstance, filter TraceFilter) (Hit, bool) {
	dir := desired.EndTrace.Sub(desired.StartTrace)
	if dir.Len() > util.SmallNumber {
		dir = dir.Normalize()
	}
	start := desired.StartTrace.Sub(dir.Mul(desired.TraceRadius))

	for _, hit := range w.sweep(start, desired.EndTrace, desired.TraceRadius) {
		if desired.Mode == PlacementProcedural {
			if hit.Flags&HitBlockingVolume != 0 {
				if hit.VolumeGuid == uuid.Nil || hit.VolumeGuid == desired.ProceduralGuid {
					return Hit{}, false
				}
			} else if hit.Flags&HitProceduralVolume != 0 {
				continue
			}
		}
		if hit.Flags&HitBlocking == 0 {
			continue
		}
		if hit.Flags&HitBrush != 0 {
			continue
		}

		var owner *Store
		if hit.Component != nil {
			owner = w.FindStoreForComponent(hit.Component)
			if owner != nil && desired.FoliageType != nil && owner.ft == desired.FoliageType {
				continue
			}
		}
		if filter != nil && !filter(hit) {
			continue
		}

		inside := true
		if desired.Mode == PlacementProcedural && desired.Volume != nil {
			inside = desired.Volume.OverlapTest(hit.Location, 1)
		}

		if owner != nil {
			if hit.Item < 0 || hit.Item >= len(owner.instances) {
				continue
			}
			// Instância sem base resolvida: o contato vale, mas sem Base
			base, _ := owner.actor.BaseCache.GetInstanceBase(owner.instances[hit.Item].BaseId)
			hit.Base = base
			hit.Component = nil
		}
		return hit, inside
	}
	return Hit{}, false
}

// sweep junta os contatos da cena com os das instâncias que bloqueiam.
func (w *World) sweep(start, end util.Vec3, radius float64) []Hit {
	var hits []Hit
	if w.tracer != nil {
		hits = w.tracer.SweepSphere(start, end, radius)
	}
	if foliage := w.sweepInstances(start, end, radius); len(foliage) > 0 {
		hits = append(hits, foliage...)
		sort.SliceStable(hits, func(i, j int) bool { return hits[i].Distance < hits[j].Distance })
	}
	return hits
}

// sweepInstances testa a esfera contra as instâncias de tipos com BlockingRadius.
func (w *World) sweepInstances(start, end util.Vec3, radius float64) []Hit {
	seg := end.Sub(start)
	length := seg.Len()
	if length < util.SmallNumber {
		return nil
	}
	dir := seg.Mul(1 / length)
	var hits []Hit

	for _, a := range w.Actors() {
		for _, st := range a.Stores() {
			if st.ft.BlockingRadius <= 0 || st.component == nil {
				continue
			}
			reach := radius + st.ft.BlockingRadius*st.maxScale
			box := util.Box{
				Min: util.Vec3{math.Min(start[0], end[0]), math.Min(start[1], end[1]), math.Min(start[2], end[2])},
				Max: util.Vec3{math.Max(start[0], end[0]), math.Max(start[1], end[1]), math.Max(start[2], end[2])},
			}.Expand(reach)

			for _, i := range st.hash.GetInstancesOverlappingBox(box) {
				inst := &st.instances[i]
				r := st.ft.BlockingRadius * inst.MaxScale()
				t, ok := raySphere(start, dir, inst.Location, radius+r)
				if !ok || t > length {
					continue
				}
				center := start.Add(dir.Mul(t))
				normal := center.Sub(inst.Location)
				if normal.Len() > util.SmallNumber {
					normal = normal.Normalize()
				} else {
					normal = util.UpVector
				}
				hits = append(hits, Hit{
					Component: st.component,
					Item:      i,
					Location:  inst.Location.Add(normal.Mul(r)),
					Normal:    normal,
					Distance:  t,
					Flags:     HitBlocking,
				})
			}
		}
	}
	return hits
}

// raySphere retorna a distância até a primeira interseção do raio com a esfera.
// Origem dentro da esfera conta como contato em t=0.
func raySphere(origin, dir, center util.Vec3, r float64) (float64, bool) {
	m := origin.Sub(center)
	c := m.Dot(m) - r*r
	if c <= 0 {
		return 0, true
	}
	b := m.Dot(dir)
	if b > 0 {
		return 0, false
	}
	disc := b*b - c
	if disc < 0 {
		return 0, false
	}
	return -b - math.Sqrt(disc), true
}
