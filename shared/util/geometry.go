package util

import (
	"fmt"
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

// Vec3 é o vetor usado em todo o subsistema de foliage (unidades de mundo, Z para cima).
type Vec3 = mgl64.Vec3

// KindaSmallNumber é a tolerância usada nas consultas pontuais.
const KindaSmallNumber = 1e-4

// SmallNumber é a tolerância usada em comparações de ângulo.
const SmallNumber = 1e-8

// UpVector é o eixo vertical local.
var UpVector = Vec3{0, 0, 1}

// IsFiniteVec verifica se nenhum componente é NaN ou infinito.
func IsFiniteVec(v Vec3) bool {
	for _, c := range v {
		if math.IsNaN(c) || math.IsInf(c, 0) {
			return false
		}
	}
	return true
}

// FormatVec retorna o vetor como "(x, y, z)".
func FormatVec(v Vec3) string {
	return fmt.Sprintf("(%.2f, %.2f, %.2f)", v[0], v[1], v[2])
}

// Box é uma caixa alinhada aos eixos.
type Box struct {
	Min, Max Vec3
}

// BuildAABB cria uma caixa centrada em origin com meia-extensão extent.
func BuildAABB(origin, extent Vec3) Box {
	return Box{Min: origin.Sub(extent), Max: origin.Add(extent)}
}

// Contains verifica se o ponto está dentro da caixa (bordas inclusas).
func (b Box) Contains(p Vec3) bool {
	return p[0] >= b.Min[0] && p[0] <= b.Max[0] &&
		p[1] >= b.Min[1] && p[1] <= b.Max[1] &&
		p[2] >= b.Min[2] && p[2] <= b.Max[2]
}

// Intersects verifica sobreposição entre duas caixas.
func (b Box) Intersects(o Box) bool {
	return b.Min[0] <= o.Max[0] && b.Max[0] >= o.Min[0] &&
		b.Min[1] <= o.Max[1] && b.Max[1] >= o.Min[1] &&
		b.Min[2] <= o.Max[2] && b.Max[2] >= o.Min[2]
}

// Center retorna o centro da caixa.
func (b Box) Center() Vec3 {
	return b.Min.Add(b.Max).Mul(0.5)
}

// Extent retorna a meia-extensão da caixa.
func (b Box) Extent() Vec3 {
	return b.Max.Sub(b.Min).Mul(0.5)
}

// Expand aumenta a caixa em r em todas as direções.
func (b Box) Expand(r float64) Box {
	e := Vec3{r, r, r}
	return Box{Min: b.Min.Sub(e), Max: b.Max.Add(e)}
}

// Sphere é uma esfera (centro + raio W).
type Sphere struct {
	Center Vec3
	W      float64
}

// Bounds retorna a caixa que envolve a esfera.
func (s Sphere) Bounds() Box {
	return BuildAABB(s.Center, Vec3{s.W, s.W, s.W})
}

// ContainsPoint verifica distância <= raio (borda inclusa).
func (s Sphere) ContainsPoint(p Vec3) bool {
	return DistSq(p, s.Center) <= s.W*s.W
}

// Rotator é uma rotação em graus: Pitch (Y), Yaw (Z), Roll (X).
type Rotator struct {
	Pitch, Yaw, Roll float64
}

// Add soma componente a componente.
func (r Rotator) Add(o Rotator) Rotator {
	return Rotator{Pitch: r.Pitch + o.Pitch, Yaw: r.Yaw + o.Yaw, Roll: r.Roll + o.Roll}
}

// IsFinite verifica se os três ângulos são finitos.
func (r Rotator) IsFinite() bool {
	return IsFiniteVec(Vec3{r.Pitch, r.Yaw, r.Roll})
}

// Quat converte para quaternion (Yaw, depois Pitch, depois Roll).
func (r Rotator) Quat() mgl64.Quat {
	return mgl64.AnglesToQuat(
		mgl64.DegToRad(r.Yaw),
		mgl64.DegToRad(r.Pitch),
		mgl64.DegToRad(r.Roll),
		mgl64.ZYX,
	).Normalize()
}

// RotatorFromQuat extrai os ângulos de Euler ZYX de um quaternion.
func RotatorFromQuat(q mgl64.Quat) Rotator {
	q = q.Normalize()
	w, x, y, z := q.W, q.V[0], q.V[1], q.V[2]

	sinPitch := 2 * (w*y - z*x)
	sinPitch = Clamp(sinPitch, -1, 1)
	pitch := math.Asin(sinPitch)

	yaw := math.Atan2(2*(w*z+x*y), 1-2*(y*y+z*z))
	roll := math.Atan2(2*(w*x+y*z), 1-2*(x*x+y*y))

	return Rotator{
		Pitch: mgl64.RadToDeg(pitch),
		Yaw:   mgl64.RadToDeg(yaw),
		Roll:  mgl64.RadToDeg(roll),
	}
}

// Equals compara duas rotações pela orientação resultante.
func (r Rotator) Equals(o Rotator, tol float64) bool {
	a, b := r.Quat(), o.Quat()
	return math.Abs(a.Dot(b)) >= 1-tol
}

// FloatInterval é um intervalo [Min, Max] configurável.
type FloatInterval struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

// Interpolate mapeia alpha em [0,1] para o intervalo.
func (i FloatInterval) Interpolate(alpha float64) float64 {
	return i.Min + alpha*(i.Max-i.Min)
}

// Size retorna Max - Min.
func (i FloatInterval) Size() float64 {
	return i.Max - i.Min
}

// Contains verifica se v está dentro do intervalo (inclusivo).
func (i FloatInterval) Contains(v float64) bool {
	return v >= i.Min && v <= i.Max
}
