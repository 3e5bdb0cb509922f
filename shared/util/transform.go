package util

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

// Transform aplica Escala, depois Rotação, depois Translação (T * R * S).
type Transform struct {
	Rotation    mgl64.Quat
	Translation Vec3
	Scale       Vec3
}

// IdentityTransform retorna a transformação identidade.
func IdentityTransform() Transform {
	return Transform{Rotation: mgl64.QuatIdent(), Scale: Vec3{1, 1, 1}}
}

// NewTransform monta uma transformação a partir de rotator, posição e escala.
func NewTransform(rot Rotator, loc, scale Vec3) Transform {
	return Transform{Rotation: rot.Quat(), Translation: loc, Scale: scale}
}

// Mat4 retorna a matriz T * R * S.
func (t Transform) Mat4() mgl64.Mat4 {
	tr := mgl64.Translate3D(t.Translation[0], t.Translation[1], t.Translation[2])
	sc := mgl64.Scale3D(t.Scale[0], t.Scale[1], t.Scale[2])
	return tr.Mul4(t.Rotation.Normalize().Mat4()).Mul4(sc)
}

// TransformPosition leva um ponto do espaço local para o mundo.
func (t Transform) TransformPosition(p Vec3) Vec3 {
	scaled := Vec3{p[0] * t.Scale[0], p[1] * t.Scale[1], p[2] * t.Scale[2]}
	return t.Rotation.Rotate(scaled).Add(t.Translation)
}

// InverseTransformPosition leva um ponto do mundo para o espaço local.
func (t Transform) InverseTransformPosition(p Vec3) Vec3 {
	local := t.Rotation.Inverse().Rotate(p.Sub(t.Translation))
	return Vec3{safeDiv(local[0], t.Scale[0]), safeDiv(local[1], t.Scale[1]), safeDiv(local[2], t.Scale[2])}
}

// TransformVector rotaciona e escala uma direção, sem translação.
func (t Transform) TransformVector(v Vec3) Vec3 {
	return t.Rotation.Rotate(Vec3{v[0] * t.Scale[0], v[1] * t.Scale[1], v[2] * t.Scale[2]})
}

// UpVector retorna o eixo Z local rotacionado.
func (t Transform) UpVector() Vec3 {
	return t.Rotation.Rotate(UpVector)
}

// Equals compara translação, escala e orientação com tolerância.
func (t Transform) Equals(o Transform, tol float64) bool {
	return t.Translation.ApproxEqualThreshold(o.Translation, tol) &&
		t.Scale.ApproxEqualThreshold(o.Scale, tol) &&
		math.Abs(t.Rotation.Normalize().Dot(o.Rotation.Normalize())) >= 1-tol
}

// RotationFromMatrix extrai a rotação de uma matriz afim (possivelmente com escala/cisalhamento),
// ortonormalizando os eixos X e Z.
func RotationFromMatrix(m mgl64.Mat4) mgl64.Quat {
	x := m.Col(0).Vec3()
	z := m.Col(2).Vec3()
	if x.Len() < SmallNumber || z.Len() < SmallNumber {
		return mgl64.QuatIdent()
	}
	x = x.Normalize()
	y := z.Cross(x)
	if y.Len() < SmallNumber {
		return mgl64.QuatIdent()
	}
	y = y.Normalize()
	z = x.Cross(y)

	rot := mgl64.Mat4FromCols(
		x.Vec4(0),
		y.Vec4(0),
		z.Vec4(0),
		mgl64.Vec4{0, 0, 0, 1},
	)
	return mgl64.Mat4ToQuat(rot).Normalize()
}

// FindBestAxisVectors retorna dois eixos ortogonais a n.
func FindBestAxisVectors(n Vec3) (Vec3, Vec3) {
	nx, ny, nz := math.Abs(n[0]), math.Abs(n[1]), math.Abs(n[2])
	var axis1 Vec3
	if nz > nx && nz > ny {
		axis1 = Vec3{1, 0, 0}
	} else {
		axis1 = Vec3{0, 0, 1}
	}
	axis1 = axis1.Sub(n.Mul(n.Dot(axis1))).Normalize()
	return axis1, axis1.Cross(n)
}

func safeDiv(a, b float64) float64 {
	if math.Abs(b) < SmallNumber {
		return 0
	}
	return a / b
}
