package foliage

import (
	"math"
	"sort"
	"testing"

	"FoliageForge/shared/util"

	"github.com/go-gl/mathgl/mgl64"
)

type testBase struct {
	name  string
	level string
	kind  BaseKind
	xf    util.Transform
	dead  bool
}

func newTestBase(name, level string) *testBase {
	return &testBase{name: name, level: level, kind: BaseStatic, xf: util.IdentityTransform()}
}

func (b *testBase) BaseName() string   { return b.name }
func (b *testBase) BaseLevel() string  { return b.level }
func (b *testBase) BaseKind() BaseKind { return b.kind }

func (b *testBase) BaseTransform() (util.Transform, bool) {
	return b.xf, !b.dead
}

// plane é um chão horizontal limitado em XY.
type plane struct {
	base     Base
	z        float64
	min, max [2]float64
}

// planeTracer atinge planos horizontais e acrescenta contatos fixos.
type planeTracer struct {
	planes []plane
	extra  []Hit
}

func (p *planeTracer) SweepSphere(start, end util.Vec3, radius float64) []Hit {
	var hits []Hit
	seg := end.Sub(start)
	length := seg.Len()
	for _, pl := range p.planes {
		if math.Abs(seg[2]) < util.SmallNumber {
			continue
		}
		// Centro da esfera encosta no plano em z + radius (descendo) ou z - radius (subindo).
		contactZ := pl.z + radius
		if seg[2] > 0 {
			contactZ = pl.z - radius
		}
		t := (contactZ - start[2]) / seg[2]
		if t < 0 || t > 1 {
			continue
		}
		pt := start.Add(seg.Mul(t))
		if pt[0] < pl.min[0] || pt[0] > pl.max[0] || pt[1] < pl.min[1] || pt[1] > pl.max[1] {
			continue
		}
		hits = append(hits, Hit{
			Base:     pl.base,
			Location: util.Vec3{pt[0], pt[1], pl.z},
			Normal:   util.UpVector,
			Distance: t * length,
			Flags:    HitBlocking,
		})
	}
	hits = append(hits, p.extra...)
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].Distance < hits[j].Distance })
	return hits
}

func (p *planeTracer) LineTrace(start, end util.Vec3) (Hit, bool) {
	for _, h := range p.SweepSphere(start, end, 0) {
		if h.Flags&HitBlocking != 0 {
			return h, true
		}
	}
	return Hit{}, false
}

func groundPlane(base Base, halfSize float64) plane {
	return plane{base: base, min: [2]float64{-halfSize, -halfSize}, max: [2]float64{halfSize, halfSize}}
}

func newTestActor() *Actor {
	return NewActor(PersistentLevel, ActorConfig{})
}

func newTestStore(t *testing.T) (*Actor, *FoliageType, *Store) {
	t.Helper()
	a := newTestActor()
	ft := NewFoliageType("grass", "SM_Grass", TypeAsset)
	return a, ft, a.AddMesh(ft)
}

func mustValid(t *testing.T, s *Store) {
	t.Helper()
	if err := s.CheckValid(); err != nil {
		t.Fatalf("CheckValid: %v", err)
	}
}

func at(x, y, z float64) Instance {
	return NewInstance(util.Vec3{x, y, z})
}

func locations(s *Store) []util.Vec3 {
	out := make([]util.Vec3, 0, s.Len())
	for _, inst := range s.Instances() {
		out = append(out, inst.Location)
	}
	return out
}

func sortedLocations(s *Store) []util.Vec3 {
	out := locations(s)
	sort.Slice(out, func(i, j int) bool {
		for k := 0; k < 3; k++ {
			if out[i][k] != out[j][k] {
				return out[i][k] < out[j][k]
			}
		}
		return false
	})
	return out
}

func vecNear(a, b util.Vec3) bool {
	return a.ApproxEqualThreshold(b, 1e-6)
}

func quatNear(a, b mgl64.Quat) bool {
	return math.Abs(a.Normalize().Dot(b.Normalize())) > 1-1e-9
}
