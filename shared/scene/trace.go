package scene

import (
	"math"
	"sort"

	"FoliageForge/shared/foliage"
	"FoliageForge/shared/util"
)

// SweepSphere implementa foliage.Tracer. Caixas são testadas contra a caixa
// expandida pelo raio (os cantos não são arredondados).
func (s *Scene) SweepSphere(start, end util.Vec3, radius float64) []foliage.Hit {
	seg := end.Sub(start)
	length := seg.Len()
	var hits []foliage.Hit

	query := s.filter.Query()
	for query.Next() {
		pl, sh, sf := query.Get()
		t, normal, ok := sweep(pl.Transform, *sh, start, seg, radius)
		if !ok {
			continue
		}
		center := start.Add(seg.Mul(t))
		hit := foliage.Hit{
			Location:   center.Sub(normal.Mul(radius)),
			Normal:     normal,
			Distance:   t * length,
			Flags:      sf.Flags,
			VolumeGuid: sf.VolumeGuid,
		}
		if sf.Flags&(foliage.HitProceduralVolume|foliage.HitBlockingVolume) == 0 {
			hit.Base = s.handles[query.Entity()]
		}
		hits = append(hits, hit)
	}

	sort.SliceStable(hits, func(i, j int) bool { return hits[i].Distance < hits[j].Distance })
	return hits
}

// LineTrace implementa foliage.Tracer.
func (s *Scene) LineTrace(start, end util.Vec3) (foliage.Hit, bool) {
	for _, h := range s.SweepSphere(start, end, 0) {
		if h.Flags&foliage.HitBlocking != 0 && h.Flags&foliage.HitBrush == 0 {
			return h, true
		}
	}
	return foliage.Hit{}, false
}

// Volumes retorna os corpos marcados como volume procedural.
func (s *Scene) Volumes() []*Body {
	var out []*Body
	query := s.filter.Query()
	for query.Next() {
		_, _, sf := query.Get()
		if sf.Flags&foliage.HitProceduralVolume != 0 {
			out = append(out, s.handles[query.Entity()])
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].String() < out[j].String() })
	return out
}

func scaledExtent(t util.Transform, sh Shape) util.Vec3 {
	return util.Vec3{
		sh.Extent[0] * math.Abs(t.Scale[0]),
		sh.Extent[1] * math.Abs(t.Scale[1]),
		sh.Extent[2] * math.Abs(t.Scale[2]),
	}
}

func scaledRadius(t util.Transform, sh Shape) float64 {
	return sh.Radius * math.Max(math.Abs(t.Scale[0]), math.Max(math.Abs(t.Scale[1]), math.Abs(t.Scale[2])))
}

// toLocal leva um ponto ao espaço do corpo sem aplicar escala.
func toLocal(t util.Transform, p util.Vec3) util.Vec3 {
	return t.Rotation.Inverse().Rotate(p.Sub(t.Translation))
}

// sweep retorna a fração do segmento no primeiro contato e o normal no mundo.
// Começar dentro da forma conta como contato em t=0, com normal oposto ao movimento.
func sweep(t util.Transform, sh Shape, start, seg util.Vec3, radius float64) (float64, util.Vec3, bool) {
	if sh.Kind == ShapeSphere {
		return sweepSphere(t.Translation, scaledRadius(t, sh)+radius, start, seg)
	}

	ext := scaledExtent(t, sh)
	p := toLocal(t, start)
	d := t.Rotation.Inverse().Rotate(seg)

	tmin, tmax := 0.0, 1.0
	axis, sign := -1, 0.0
	for i := 0; i < 3; i++ {
		half := ext[i] + radius
		if math.Abs(d[i]) < util.SmallNumber {
			if p[i] < -half || p[i] > half {
				return 0, util.Vec3{}, false
			}
			continue
		}
		// Entra pela face oposta ao movimento.
		t1, t2, s := (-half-p[i])/d[i], (half-p[i])/d[i], -1.0
		if d[i] < 0 {
			t1, t2, s = (half-p[i])/d[i], (-half-p[i])/d[i], 1.0
		}
		if t1 > tmin {
			tmin, axis, sign = t1, i, s
		}
		if t2 < tmax {
			tmax = t2
		}
		if tmin > tmax {
			return 0, util.Vec3{}, false
		}
	}

	if axis < 0 {
		return 0, insideNormal(seg), true
	}
	var n util.Vec3
	n[axis] = sign
	return tmin, t.Rotation.Rotate(n), true
}

func sweepSphere(center util.Vec3, r float64, start, seg util.Vec3) (float64, util.Vec3, bool) {
	length := seg.Len()
	m := start.Sub(center)
	if m.Dot(m) <= r*r {
		return 0, insideNormal(seg), true
	}
	if length < util.SmallNumber {
		return 0, util.Vec3{}, false
	}
	dir := seg.Mul(1 / length)
	b := m.Dot(dir)
	c := m.Dot(m) - r*r
	if b > 0 {
		return 0, util.Vec3{}, false
	}
	disc := b*b - c
	if disc < 0 {
		return 0, util.Vec3{}, false
	}
	dist := -b - math.Sqrt(disc)
	if dist > length {
		return 0, util.Vec3{}, false
	}
	hit := start.Add(dir.Mul(dist))
	return dist / length, hit.Sub(center).Normalize(), true
}

func insideNormal(seg util.Vec3) util.Vec3 {
	if seg.Len() < util.SmallNumber {
		return util.UpVector
	}
	return seg.Normalize().Mul(-1)
}

func overlaps(t util.Transform, sh Shape, p util.Vec3, radius float64) bool {
	if sh.Kind == ShapeSphere {
		r := scaledRadius(t, sh) + radius
		return util.DistSq(p, t.Translation) <= r*r
	}
	ext := scaledExtent(t, sh)
	lp := toLocal(t, p)
	for i := 0; i < 3; i++ {
		if math.Abs(lp[i]) > ext[i]+radius {
			return false
		}
	}
	return true
}
