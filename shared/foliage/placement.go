package foliage

import (
	"math"
	"math/rand"

	"FoliageForge/shared/util"

	"github.com/go-gl/mathgl/mgl64"
)

// PotentialHashCellBits gera células de 128 unidades, adequadas a pincéis pequenos.
const PotentialHashCellBits = 7

// SnapTraceDistance é quanto abaixo da instância o snap procura o chão.
const SnapTraceDistance = 10000

// Painter executa as ferramentas de pintura sobre um World.
type Painter struct {
	World        *World
	Rand         *rand.Rand
	PaintDensity float64
	// Filter restringe as superfícies aceitas pela pintura e pela remoção.
	Filter func(base Base) bool
}

// NewPainter cria um pintor com semente fixa.
func NewPainter(w *World, seed int64) *Painter {
	return &Painter{World: w, Rand: rand.New(rand.NewSource(seed)), PaintDensity: 1}
}

// potentialInstance é um ponto de contato aprovado aguardando posicionamento.
type potentialInstance struct {
	Location util.Vec3
	Normal   util.Vec3
	Base     Base
	Desired  DesiredInstance
}

// IsWithinSlopeAngle compara o Z do normal com o intervalo de inclinação em graus.
func IsWithinSlopeAngle(normalZ, minAngle, maxAngle, tolerance float64) bool {
	maxNormal := math.Cos(mgl64.DegToRad(maxAngle))
	minNormal := math.Cos(mgl64.DegToRad(minAngle))
	return !(maxNormal > normalZ+tolerance || minNormal < normalZ-tolerance)
}

func checkLocationThreadSafe(ft *FoliageType, location, normal util.Vec3) bool {
	if !ft.Height.Contains(location[2]) {
		return false
	}
	return IsWithinSlopeAngle(normal[2], ft.GroundSlopeAngle.Min, ft.GroundSlopeAngle.Max, util.SmallNumber)
}

// PotentialSet acumula pontos aprovados num mesmo lote para o teste de densidade.
type PotentialSet struct {
	locations []util.Vec3
	hash      *SpatialHash
}

func NewPotentialSet() *PotentialSet {
	return &PotentialSet{hash: NewSpatialHash(PotentialHashCellBits)}
}

// CheckLocationForPotentialInstance aplica altura, inclinação e densidade
// (contra instâncias existentes e contra os pontos já aprovados no lote).
func (p *Painter) CheckLocationForPotentialInstance(ft *FoliageType, densityRadius float64, location, normal util.Vec3, set *PotentialSet) bool {
	if !checkLocationThreadSafe(ft, location, normal) {
		return false
	}
	if ft.Radius > 0 {
		if p.World.CheckForOverlappingSphere(ft, util.Sphere{Center: location, W: densityRadius}) {
			return false
		}
		probe := util.BuildAABB(location, util.Vec3{densityRadius, densityRadius, densityRadius})
		for _, i := range set.hash.GetInstancesOverlappingBox(probe) {
			if util.DistSq(set.locations[i], location) < densityRadius*densityRadius {
				return false
			}
		}
	}
	set.locations = append(set.locations, location)
	set.hash.InsertInstance(location, len(set.locations)-1)
	return true
}

// DensityCheckRadius é o raio em que se espera uma única instância para a densidade do tipo.
func (p *Painter) DensityCheckRadius(ft *FoliageType) float64 {
	density := ft.Density * p.PaintDensity
	if density <= 0 {
		return ft.Radius
	}
	return math.Max(math.Sqrt(1000*1000/(math.Pi*density)), ft.Radius)
}

// canPaint: tipos compartilhados vão para qualquer nível; cópias locais só para o nível do dono.
func canPaint(ft *FoliageType, level string) bool {
	if ft.IsAsset() || ft.owner == nil {
		return true
	}
	return ft.owner.Level == level
}

// PlaceInstance monta a instância final a partir do contato.
func (p *Painter) PlaceInstance(ft *FoliageType, desired DesiredInstance, location, normal util.Vec3) Instance {
	inst := NewInstance(location)
	if desired.Mode == PlacementProcedural {
		s := ft.GetScaleForAge(desired.Age)
		inst.DrawScale3D = util.Vec3{s, s, s}
	} else {
		inst.DrawScale3D = ft.GetRandomScale(p.Rand)
	}
	inst.ZOffset = ft.ZOffset.Interpolate(p.Rand.Float64())

	if desired.Mode == PlacementProcedural {
		inst.Rotation = desired.Rotation
		inst.Flags |= FlagNoRandomYaw
	} else {
		inst.Rotation = util.Rotator{Pitch: p.Rand.Float64() * ft.RandomPitchAngle}
		if ft.RandomYaw {
			inst.Rotation.Yaw = p.Rand.Float64() * 360
		} else {
			inst.Flags |= FlagNoRandomYaw
		}
	}

	if ft.AlignToNormal {
		inst.AlignToNormal(normal, ft.AlignMaxAngle)
	}
	return inst
}

// spawn adiciona a instância no ator do nível da base.
func (p *Painter) spawn(ft *FoliageType, inst Instance, base Base) (*Store, int) {
	level := p.World.CurrentLevel()
	if base != nil {
		level = base.BaseLevel()
	}
	a := p.World.ActorForLevel(level, true)
	_, st := a.AddFoliageType(ft)
	return st, st.AddInstanceOnBase(inst, base, true)
}

func (p *Painter) traceFilter() TraceFilter {
	if p.Filter == nil {
		return nil
	}
	return func(h Hit) bool {
		return h.Base == nil || p.Filter(h.Base)
	}
}

// AddInstances posiciona os pedidos (tipicamente procedurais). Retorna quantos foram criados.
func (p *Painter) AddInstances(ft *FoliageType, desired []DesiredInstance) int {
	var potentials []potentialInstance
	set := NewPotentialSet()
	density := p.DensityCheckRadius(ft)

	for _, d := range desired {
		if d.FoliageType == nil {
			d.FoliageType = ft
		}
		hit, ok := p.World.FoliageTrace(d, p.traceFilter())
		if !ok || hit.Base == nil || !canPaint(ft, hit.Base.BaseLevel()) {
			continue
		}
		valid := checkLocationThreadSafe(ft, hit.Location, hit.Normal)
		if d.Mode == PlacementManual {
			valid = p.CheckLocationForPotentialInstance(ft, density, hit.Location, hit.Normal, set)
		}
		if valid {
			potentials = append(potentials, potentialInstance{Location: hit.Location, Normal: hit.Normal, Base: hit.Base, Desired: d})
		}
	}
	return p.placePotentials(ft, potentials, 1)
}

func (p *Painter) placePotentials(ft *FoliageType, potentials []potentialInstance, pressure float64) int {
	count := int(util.Clamp(float64(util.RoundToInt(float64(len(potentials))*pressure)), 0, float64(len(potentials))))
	for i := 0; i < count; i++ {
		pi := potentials[i]
		inst := p.PlaceInstance(ft, pi.Desired, pi.Location, pi.Normal)
		inst.ProceduralGuid = pi.Desired.ProceduralGuid
		p.spawn(ft, inst, pi.Base)
	}
	return count
}

// randomTraceInBrush sorteia um segmento que atravessa a esfera do pincel na direção -normal.
func (p *Painter) randomTraceInBrush(brush util.Sphere, normal util.Vec3) (util.Vec3, util.Vec3) {
	var rx, ry float64
	for {
		rx = 2*p.Rand.Float64() - 1
		ry = 2*p.Rand.Float64() - 1
		if rx*rx+ry*ry <= 1 {
			break
		}
	}
	u, v := util.FindBestAxisVectors(normal)
	point := brush.Center.Add(u.Mul(rx * brush.W)).Add(v.Mul(ry * brush.W))
	rz := math.Sqrt(1 - (rx*rx + ry*ry))
	dir := normal.Mul(-1)
	return point.Sub(dir.Mul(rz * brush.W)), point.Add(dir.Mul(rz * brush.W))
}

// TargetInstanceCount é quantas instâncias a área do pincel deveria ter.
func (p *Painter) TargetInstanceCount(ft *FoliageType, radius float64) int {
	area := math.Pi * radius * radius
	return util.RoundToInt(area * ft.Density * p.PaintDensity / (1000 * 1000))
}

// AddInstancesForBrush pinta até desired instâncias dentro do pincel. normal é
// a normal da superfície sob o cursor. Retorna quantas foram criadas.
func (p *Painter) AddInstancesForBrush(ft *FoliageType, brush util.Sphere, normal util.Vec3, desired int, pressure float64) int {
	if normal.Len() < util.SmallNumber {
		normal = util.UpVector
	}
	normal = normal.Normalize()
	set := NewPotentialSet()
	density := p.DensityCheckRadius(ft)
	var potentials []potentialInstance

	for i := 0; i < desired; i++ {
		start, end := p.randomTraceInBrush(brush, normal)
		d := NewDesiredInstance(start, end)
		d.FoliageType = ft
		hit, ok := p.World.FoliageTrace(d, p.traceFilter())
		if !ok || hit.Base == nil || !canPaint(ft, hit.Base.BaseLevel()) {
			continue
		}
		if p.CheckLocationForPotentialInstance(ft, density, hit.Location, hit.Normal, set) {
			potentials = append(potentials, potentialInstance{Location: hit.Location, Normal: hit.Normal, Base: hit.Base, Desired: d})
		}
	}
	return p.placePotentials(ft, potentials, pressure)
}

// RemoveInstancesForBrush apaga, em cada nível, uma fração (pressure) das
// instâncias do tipo dentro do pincel, sorteando quais ficam.
func (p *Painter) RemoveInstancesForBrush(ft *FoliageType, brush util.Sphere, pressure float64) int {
	removed := 0
	for _, a := range p.World.Actors() {
		st := a.FindCompatibleStore(ft)
		if st == nil {
			continue
		}
		candidates := st.GetInstancesInsideSphere(brush)
		if len(candidates) == 0 {
			continue
		}
		toRemove := util.RoundToInt(float64(len(candidates)) * pressure)
		if toRemove == 0 {
			continue
		}
		for keep := len(candidates) - toRemove; keep > 0; keep-- {
			j := p.Rand.Intn(len(candidates))
			candidates[j] = candidates[len(candidates)-1]
			candidates = candidates[:len(candidates)-1]
		}
		if p.Filter != nil {
			filtered := candidates[:0]
			for _, i := range candidates {
				base, ok := a.BaseCache.GetInstanceBase(st.instances[i].BaseId)
				if ok && !p.Filter(base) {
					continue
				}
				filtered = append(filtered, i)
			}
			candidates = filtered
		}
		if len(candidates) > 0 {
			st.RemoveInstances(candidates, true)
			removed += len(candidates)
		}
	}
	return removed
}

// SelectInstanceAtLocation (des)seleciona a instância do tipo exatamente em location.
func (p *Painter) SelectInstanceAtLocation(ft *FoliageType, location util.Vec3, selected bool) {
	for _, a := range p.World.Actors() {
		if st := a.FindCompatibleStore(ft); st != nil {
			if i, ok := st.GetInstanceAtLocation(location); ok {
				st.SelectInstancesAt(selected, []int{i})
			}
		}
	}
}

// SelectInstancesForBrush (des)seleciona as instâncias do tipo dentro do pincel.
func (p *Painter) SelectInstancesForBrush(ft *FoliageType, brush util.Sphere, selected bool) {
	for _, a := range p.World.Actors() {
		if st := a.FindCompatibleStore(ft); st != nil {
			st.SelectInstancesAt(selected, st.GetInstancesInsideSphere(brush))
		}
	}
}

// TransformSelectedInstances desloca, gira e escala a seleção. Com duplicate
// as cópias ficam na posição original e a seleção é que se move.
// O ZOffset é incorporado à posição antes do deslocamento.
func (p *Painter) TransformSelectedInstances(drag util.Vec3, rot util.Rotator, scale util.Vec3, duplicate bool) {
	for _, a := range p.World.Actors() {
		for _, st := range a.GetSelectedStores() {
			selected := st.SelectedIndices()
			if duplicate {
				st.DuplicateInstances(selected)
			}
			st.MoveInstances(selected, func(_ int, inst *Instance) {
				inst.Location = inst.WorldTransform().Translation.Add(drag)
				inst.ZOffset = 0
				inst.Rotation = inst.Rotation.Add(rot)
				inst.DrawScale3D = inst.DrawScale3D.Add(scale)
			})
		}
	}
}

// RemoveSelectedInstances apaga a seleção de todos os níveis.
func (p *Painter) RemoveSelectedInstances() {
	for _, a := range p.World.Actors() {
		for _, st := range a.GetSelectedStores() {
			st.RemoveInstances(st.SelectedIndices(), true)
		}
	}
}

// snapInstanceToGround procura o chão abaixo da instância. Bases de outro nível
// são rejeitadas para não criar referências entre níveis.
func (p *Painter) snapInstanceToGround(st *Store, i int) bool {
	inst := &st.instances[i]
	start := inst.Location
	end := start.Sub(util.Vec3{0, 0, SnapTraceDistance})
	hit, ok := p.World.FoliageTrace(NewDesiredInstance(start, end), nil)
	if !ok || hit.Base == nil || hit.Base.BaseLevel() != st.actor.Level {
		return false
	}
	st.setInstanceBase(i, st.actor.BaseCache.AddInstanceBaseId(hit.Base))
	inst.Location = hit.Location
	inst.ZOffset = 0
	if inst.Flags.Has(FlagAlignToNormal) {
		inst.Rotation = inst.PreAlignRotation
		inst.AlignToNormal(hit.Normal, st.ft.AlignMaxAngle)
	}
	return true
}

// SnapSelectedInstancesToGround apoia cada instância selecionada no chão abaixo dela.
// Retorna se alguma instância foi movida.
func (p *Painter) SnapSelectedInstancesToGround() bool {
	moved := false
	for _, a := range p.World.Actors() {
		for _, st := range a.GetSelectedStores() {
			st.MoveInstances(st.SelectedIndices(), func(i int, _ *Instance) {
				if p.snapInstanceToGround(st, i) {
					moved = true
				}
			})
		}
	}
	return moved
}
