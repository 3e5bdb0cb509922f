package foliage

import (
	"math"

	"FoliageForge/shared/util"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/google/uuid"
)

// InstanceFlags marca estados de uma instância.
type InstanceFlags uint32

const (
	FlagAlignToNormal InstanceFlags = 0x1
	FlagNoRandomYaw   InstanceFlags = 0x2
	FlagReadjusted    InstanceFlags = 0x4
	FlagDeleted       InstanceFlags = 0x8
)

// Has verifica se todas as flags f estão ligadas.
func (fl InstanceFlags) Has(f InstanceFlags) bool {
	return fl&f == f
}

// Instance é um objeto de foliage posicionado no mundo.
type Instance struct {
	Location         util.Vec3
	Rotation         util.Rotator
	DrawScale3D      util.Vec3
	PreAlignRotation util.Rotator
	ZOffset          float64
	BaseId           BaseId
	ProceduralGuid   uuid.UUID // uuid.Nil quando pintada manualmente
	Flags            InstanceFlags
}

// NewInstance cria uma instância sem rotação e com escala 1.
func NewInstance(location util.Vec3) Instance {
	return Instance{Location: location, DrawScale3D: util.Vec3{1, 1, 1}}
}

// IsFinite verifica posição, rotação e escala.
func (i *Instance) IsFinite() bool {
	return util.IsFiniteVec(i.Location) && util.IsFiniteVec(i.DrawScale3D) && i.Rotation.IsFinite()
}

// MaxScale retorna o maior componente absoluto de DrawScale3D.
func (i *Instance) MaxScale() float64 {
	s := i.DrawScale3D
	return max(math.Abs(s[0]), math.Abs(s[1]), math.Abs(s[2]))
}

// WorldTransform retorna a transformação de render da instância.
// ZOffset é aplicado ao longo do eixo Z local (com escala) antes da translação final.
func (i *Instance) WorldTransform() util.Transform {
	t := util.NewTransform(i.Rotation, i.Location, i.DrawScale3D)
	if math.Abs(i.ZOffset) > util.KindaSmallNumber {
		t.Translation = t.TransformPosition(util.Vec3{0, 0, i.ZOffset})
	}
	return t
}

// AlignToNormal inclina a instância para o normal da superfície.
// maxAngle > 0 limita a inclinação (graus). A rotação anterior fica em PreAlignRotation.
func (i *Instance) AlignToNormal(normal util.Vec3, maxAngle float64) {
	i.Flags |= FlagAlignToNormal
	i.PreAlignRotation = i.Rotation

	if normal.Len() < util.SmallNumber {
		return
	}
	n := normal.Normalize()
	tilt := math.Acos(util.Clamp(n.Dot(util.UpVector), -1, 1))
	if maxAngle > 0 {
		tilt = math.Min(tilt, mgl64.DegToRad(maxAngle))
	}

	axis := util.UpVector.Cross(n)
	if axis.Len() < util.SmallNumber {
		if n[2] > 0 {
			return
		}
		axis = util.Vec3{1, 0, 0}
	}
	align := mgl64.QuatRotate(tilt, axis.Normalize())
	i.Rotation = util.RotatorFromQuat(align.Mul(i.Rotation.Quat()))
}
