package foliage

import (
	"math"
	"math/rand"
	"sort"

	"FoliageForge/shared/util"

	"github.com/google/uuid"
)

// TypeKind define a política de deduplicação do tipo ao ser adicionado num ator.
type TypeKind int

const (
	TypeInline    TypeKind = iota // tipo local do ator, identificado pela malha
	TypeAsset                     // asset compartilhado, identificado pela identidade
	TypeBlueprint                 // gerado a partir de um template, identificado pela classe
)

// ScalingMode define como os três eixos de escala são sorteados.
type ScalingMode int

const (
	ScalingUniform ScalingMode = iota
	ScalingFree
	ScalingLockXY
	ScalingLockXZ
	ScalingLockYZ
)

// DefaultComponentClass é a classe do componente de render padrão.
const DefaultComponentClass = "FoliageInstancedStaticMesh"

// CurveKey é um ponto da curva de escala por idade.
type CurveKey struct {
	Time  float64 `json:"time"`
	Value float64 `json:"value"`
}

// Curve é uma curva linear por partes.
type Curve struct {
	Keys []CurveKey `json:"keys"`
}

// Eval avalia a curva em t; fora do intervalo devolve a chave da ponta.
func (c Curve) Eval(t float64) float64 {
	switch len(c.Keys) {
	case 0:
		return 0
	case 1:
		return c.Keys[0].Value
	}
	keys := c.Keys
	if t <= keys[0].Time {
		return keys[0].Value
	}
	last := keys[len(keys)-1]
	if t >= last.Time {
		return last.Value
	}
	i := sort.Search(len(keys), func(i int) bool { return keys[i].Time > t })
	a, b := keys[i-1], keys[i]
	if b.Time == a.Time {
		return b.Value
	}
	return util.Lerp(a.Value, b.Value, (t-a.Time)/(b.Time-a.Time))
}

// TypeObserver recebe notificações quando as configurações de um tipo mudam.
type TypeObserver interface {
	FoliageTypeChanged(ft *FoliageType, meshChanged bool)
}

// TypeObserverFunc adapta uma função a TypeObserver.
type TypeObserverFunc func(ft *FoliageType, meshChanged bool)

func (f TypeObserverFunc) FoliageTypeChanged(ft *FoliageType, meshChanged bool) {
	f(ft, meshChanged)
}

// FoliageType guarda as configurações de um tipo de foliage.
type FoliageType struct {
	Name           string   `json:"name"`
	Mesh           string   `json:"mesh"`
	Kind           TypeKind `json:"kind"`
	GeneratedClass string   `json:"generated_class,omitempty"`
	ComponentClass string   `json:"component_class,omitempty"`

	// Pintura
	Density          float64            `json:"density"`
	Radius           float64            `json:"radius"`
	Scaling          ScalingMode        `json:"scaling"`
	ScaleX           util.FloatInterval `json:"scale_x"`
	ScaleY           util.FloatInterval `json:"scale_y"`
	ScaleZ           util.FloatInterval `json:"scale_z"`
	StrictScaleLocks bool               `json:"strict_scale_locks,omitempty"`
	ZOffset          util.FloatInterval `json:"z_offset"`
	AlignToNormal    bool               `json:"align_to_normal"`
	AlignMaxAngle    float64            `json:"align_max_angle"`
	RandomYaw        bool               `json:"random_yaw"`
	RandomPitchAngle float64            `json:"random_pitch_angle"`
	GroundSlopeAngle util.FloatInterval `json:"ground_slope_angle"`
	Height           util.FloatInterval `json:"height"`

	// Render
	CullDistance util.FloatInterval `json:"cull_distance"`
	CastShadow   bool               `json:"cast_shadow"`

	// BlockingRadius > 0 faz as instâncias bloquearem traces como esferas
	// (multiplicado pela maior escala), permitindo pintar foliage sobre foliage.
	BlockingRadius float64 `json:"blocking_radius,omitempty"`

	// Procedural
	CollisionRadius float64            `json:"collision_radius"`
	ShadeRadius     float64            `json:"shade_radius"`
	CanGrowInShade  bool               `json:"can_grow_in_shade"`
	SpawnsInShade   bool               `json:"spawns_in_shade"`
	MaxAge          float64            `json:"max_age"`
	MaxInitialAge   float64            `json:"max_initial_age"`
	ProceduralScale util.FloatInterval `json:"procedural_scale"`
	ScaleCurve      Curve              `json:"scale_curve"`

	UpdateGuid uuid.UUID `json:"update_guid"`

	// owner != nil indica uma cópia local pertencente a um ator.
	owner     *Actor
	deleted   bool
	observers map[int]TypeObserver
	nextObs   int
}

// NewFoliageType cria um tipo com os valores padrão do editor.
func NewFoliageType(name, mesh string, kind TypeKind) *FoliageType {
	return &FoliageType{
		Name:             name,
		Mesh:             mesh,
		Kind:             kind,
		ComponentClass:   DefaultComponentClass,
		Density:          100,
		Scaling:          ScalingUniform,
		ScaleX:           util.FloatInterval{Min: 1, Max: 1},
		ScaleY:           util.FloatInterval{Min: 1, Max: 1},
		ScaleZ:           util.FloatInterval{Min: 1, Max: 1},
		AlignToNormal:    true,
		RandomYaw:        true,
		GroundSlopeAngle: util.FloatInterval{Min: 0, Max: 45},
		Height:           util.FloatInterval{Min: -262144, Max: 262144},
		CastShadow:       true,
		CollisionRadius:  100,
		ShadeRadius:      100,
		MaxAge:           10,
		ProceduralScale:  util.FloatInterval{Min: 1, Max: 3},
		ScaleCurve:       Curve{Keys: []CurveKey{{0, 0}, {1, 1}}},
		UpdateGuid:       uuid.New(),
	}
}

// Owner retorna o ator dono de uma cópia local, ou nil.
func (ft *FoliageType) Owner() *Actor {
	return ft.owner
}

// MarkDeleted marca o tipo como apagado; os atores descartam seus stores na limpeza.
func (ft *FoliageType) MarkDeleted() {
	ft.deleted = true
}

// IsDeleted informa se o tipo foi apagado.
func (ft *FoliageType) IsDeleted() bool {
	return ft.deleted
}

// IsAsset indica tipo compartilhado entre atores.
func (ft *FoliageType) IsAsset() bool {
	return ft.Kind == TypeAsset
}

// IsNotAssetOrBlueprint indica tipo inline.
func (ft *FoliageType) IsNotAssetOrBlueprint() bool {
	return ft.Kind == TypeInline
}

// ComponentClassOrDefault retorna a classe de componente configurada.
func (ft *FoliageType) ComponentClassOrDefault() string {
	if ft.ComponentClass == "" {
		return DefaultComponentClass
	}
	return ft.ComponentClass
}

// Duplicate cria uma cópia local para owner, sem observadores.
func (ft *FoliageType) Duplicate(owner *Actor) *FoliageType {
	dup := *ft
	dup.owner = owner
	dup.deleted = false
	dup.observers = nil
	dup.nextObs = 0
	dup.ScaleCurve.Keys = append([]CurveKey(nil), ft.ScaleCurve.Keys...)
	return &dup
}

// GetRandomScale sorteia a escala de uma nova instância.
//
// LockXZ cai no corpo de LockYZ (fallthrough) e termina com Y e Z travados,
// como nos mapas já pintados. StrictScaleLocks aplica cada trava isoladamente.
func (ft *FoliageType) GetRandomScale(rng *rand.Rand) util.Vec3 {
	result := util.Vec3{1, 1, 1}

	switch ft.Scaling {
	case ScalingUniform:
		result[0] = ft.ScaleX.Interpolate(rng.Float64())
		result[1] = result[0]
		result[2] = result[0]

	case ScalingFree:
		result[0] = ft.ScaleX.Interpolate(rng.Float64())
		result[1] = ft.ScaleY.Interpolate(rng.Float64())
		result[2] = ft.ScaleZ.Interpolate(rng.Float64())

	case ScalingLockXY:
		lock := rng.Float64()
		result[0] = ft.ScaleX.Interpolate(lock)
		result[1] = ft.ScaleY.Interpolate(lock)
		result[2] = ft.ScaleZ.Interpolate(rng.Float64())

	case ScalingLockXZ:
		lock := rng.Float64()
		result[0] = ft.ScaleX.Interpolate(lock)
		result[1] = ft.ScaleY.Interpolate(rng.Float64())
		result[2] = ft.ScaleZ.Interpolate(lock)
		if ft.StrictScaleLocks {
			break
		}
		fallthrough

	case ScalingLockYZ:
		lock := rng.Float64()
		result[0] = ft.ScaleX.Interpolate(rng.Float64())
		result[1] = ft.ScaleY.Interpolate(lock)
		result[2] = ft.ScaleZ.Interpolate(lock)
	}

	return result
}

// GetMaxRadius retorna o maior entre raio de colisão e de sombra.
func (ft *FoliageType) GetMaxRadius() float64 {
	return math.Max(ft.CollisionRadius, ft.ShadeRadius)
}

// GetSpawnsInShade indica se o tipo nasce na sombra de outros.
func (ft *FoliageType) GetSpawnsInShade() bool {
	return ft.CanGrowInShade && ft.SpawnsInShade
}

// GetScaleForAge converte idade em escala procedural usando a curva.
func (ft *FoliageType) GetScaleForAge(age float64) float64 {
	t := 1.0
	if ft.MaxAge != 0 {
		t = age / ft.MaxAge
	}
	t = util.Clamp(t, 0, 1)
	return ft.ProceduralScale.Min + ft.ProceduralScale.Size()*ft.ScaleCurve.Eval(t)
}

// GetInitAge sorteia a idade inicial em [0, MaxInitialAge).
func (ft *FoliageType) GetInitAge(rng *rand.Rand) float64 {
	return rng.Float64() * ft.MaxInitialAge
}

// GetNextAge avança a idade um passo por vez sem ultrapassar MaxAge.
func (ft *FoliageType) GetNextAge(current float64, steps int) float64 {
	age := current
	for i := 0; i < steps; i++ {
		grow := age + 1
		if grow > ft.MaxAge {
			break
		}
		age = grow
	}
	return age
}

// Subscribe registra um observador. A função retornada remove o registro.
func (ft *FoliageType) Subscribe(obs TypeObserver) func() {
	if ft.observers == nil {
		ft.observers = make(map[int]TypeObserver)
	}
	id := ft.nextObs
	ft.nextObs++
	ft.observers[id] = obs
	return func() { delete(ft.observers, id) }
}

// ObserverCount retorna quantos observadores estão registrados.
func (ft *FoliageType) ObserverCount() int {
	return len(ft.observers)
}

// PostEditChange deve ser chamado após alterar as configurações.
// structural gera um novo UpdateGuid, marcando os stores como desatualizados.
func (ft *FoliageType) PostEditChange(meshChanged, structural bool) {
	if structural || meshChanged {
		ft.UpdateGuid = uuid.New()
	}
	ids := make([]int, 0, len(ft.observers))
	for id := range ft.observers {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	for _, id := range ids {
		if obs, ok := ft.observers[id]; ok {
			obs.FoliageTypeChanged(ft, meshChanged)
		}
	}
}
