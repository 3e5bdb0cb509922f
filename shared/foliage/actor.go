package foliage

import (
	"log"
	"sort"

	"FoliageForge/shared/util"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/google/uuid"
)

// ActorState é o ciclo de vida do ator.
type ActorState int

const (
	ActorUnregistered ActorState = iota
	ActorRegistered
	ActorDestroyed
)

// ActorConfig ajusta a criação de atores.
type ActorConfig struct {
	Factory  ComponentFactory
	CellBits uint
}

// Actor é o contêiner de foliage de um nível: um Store por tipo e um
// BaseCache compartilhado entre eles.
type Actor struct {
	Level     string
	BaseCache *BaseCache

	stores   map[*FoliageType]*Store
	types    []*FoliageType // ordem de inserção
	unsub    map[*FoliageType]func()
	world    *World
	state    ActorState
	factory  ComponentFactory
	cellBits uint

	listeners   []ChangeListener
	meshChanged map[int]func(ft *FoliageType)
	nextMeshObs int
}

// NewActor cria um ator vazio para o nível.
func NewActor(level string, cfg ActorConfig) *Actor {
	if cfg.Factory == nil {
		cfg.Factory = NewMemoryComponentFactory()
	}
	if cfg.CellBits == 0 {
		cfg.CellBits = DefaultHashCellBits
	}
	return &Actor{
		Level:       level,
		BaseCache:   NewBaseCache(),
		stores:      make(map[*FoliageType]*Store),
		unsub:       make(map[*FoliageType]func()),
		factory:     cfg.Factory,
		cellBits:    cfg.CellBits,
		meshChanged: make(map[int]func(ft *FoliageType)),
	}
}

// State retorna o estado do ciclo de vida.
func (a *Actor) State() ActorState {
	return a.state
}

// World retorna o mundo ao qual o ator pertence, ou nil.
func (a *Actor) World() *World {
	return a.world
}

// AddListener registra um listener de mutações dos stores deste ator.
func (a *Actor) AddListener(l ChangeListener) {
	a.listeners = append(a.listeners, l)
}

func (a *Actor) emit(ev ChangeEvent) {
	for _, l := range a.listeners {
		l.StoreChanged(ev)
	}
	if a.world != nil {
		a.world.emit(ev)
	}
}

// OnFoliageTypeMeshChanged registra fn para quando a malha de um tipo do ator mudar.
func (a *Actor) OnFoliageTypeMeshChanged(fn func(ft *FoliageType)) func() {
	id := a.nextMeshObs
	a.nextMeshObs++
	a.meshChanged[id] = fn
	return func() { delete(a.meshChanged, id) }
}

// FoliageTypes lista os tipos na ordem em que foram adicionados.
func (a *Actor) FoliageTypes() []*FoliageType {
	return append([]*FoliageType(nil), a.types...)
}

// Stores lista os stores na ordem dos tipos.
func (a *Actor) Stores() []*Store {
	out := make([]*Store, 0, len(a.types))
	for _, ft := range a.types {
		out = append(out, a.stores[ft])
	}
	return out
}

// FindStore retorna o store do tipo, ou nil.
func (a *Actor) FindStore(ft *FoliageType) *Store {
	return a.stores[ft]
}

// StoreForComponent encontra o store dono do componente de render.
func (a *Actor) StoreForComponent(c InstanceComponent) *Store {
	if c == nil {
		return nil
	}
	for _, ft := range a.types {
		if st := a.stores[ft]; st.component == c {
			return st
		}
	}
	return nil
}

// FindOrAddMesh retorna o store do tipo, criando-o se necessário.
func (a *Actor) FindOrAddMesh(ft *FoliageType) *Store {
	if st, ok := a.stores[ft]; ok {
		return st
	}
	return a.AddMesh(ft)
}

// AddMesh cria o store para o tipo. Se já existir, retorna o existente.
func (a *Actor) AddMesh(ft *FoliageType) *Store {
	if st, ok := a.stores[ft]; ok {
		return st
	}
	st := newStore(a, ft)
	a.stores[ft] = st
	a.types = append(a.types, ft)
	a.unsub[ft] = ft.Subscribe(TypeObserverFunc(a.NotifyFoliageTypeChanged))
	return st
}

// AddMeshForStaticMesh cria um tipo inline para a malha (copiando defaults se houver).
func (a *Actor) AddMeshForStaticMesh(mesh string, defaults *FoliageType) (*FoliageType, *Store) {
	var ft *FoliageType
	if defaults != nil {
		ft = defaults.Duplicate(a)
		ft.Name = mesh
		ft.Kind = TypeInline
		ft.Mesh = mesh
		ft.UpdateGuid = uuid.New()
	} else {
		ft = NewFoliageType(mesh, mesh, TypeInline)
		ft.owner = a
	}
	return ft, a.AddMesh(ft)
}

// AddFoliageType devolve o tipo compatível com este ator e seu store, aplicando
// a política de deduplicação: assets e tipos do próprio ator pela identidade,
// blueprints pela classe gerada, tipos inline pela malha. Quando não há
// correspondência o tipo é duplicado como cópia local.
func (a *Actor) AddFoliageType(ft *FoliageType) (*FoliageType, *Store) {
	switch {
	case ft.owner == a || ft.IsAsset():
		return ft, a.FindOrAddMesh(ft)

	case ft.Kind == TypeBlueprint:
		if existing := a.FindFoliageTypeOfClass(ft.GeneratedClass); existing != nil {
			return existing, a.stores[existing]
		}

	default:
		if existing := a.GetLocalFoliageTypeForMesh(ft.Mesh); existing != nil {
			return existing, a.stores[existing]
		}
	}
	dup := ft.Duplicate(a)
	return dup, a.AddMesh(dup)
}

// FindCompatibleStore aplica a mesma política de AddFoliageType sem criar nada.
func (a *Actor) FindCompatibleStore(ft *FoliageType) *Store {
	if st, ok := a.stores[ft]; ok {
		return st
	}
	var match *FoliageType
	switch {
	case ft.owner == a || ft.IsAsset():
	case ft.Kind == TypeBlueprint:
		match = a.FindFoliageTypeOfClass(ft.GeneratedClass)
	default:
		match = a.GetLocalFoliageTypeForMesh(ft.Mesh)
	}
	if match == nil {
		return nil
	}
	return a.stores[match]
}

// GetLocalFoliageTypeForMesh procura um tipo inline que use a malha.
func (a *Actor) GetLocalFoliageTypeForMesh(mesh string) *FoliageType {
	for _, ft := range a.types {
		if ft.IsNotAssetOrBlueprint() && ft.Mesh == mesh {
			return ft
		}
	}
	return nil
}

// GetAllFoliageTypesForMesh lista todos os tipos que usam a malha.
func (a *Actor) GetAllFoliageTypesForMesh(mesh string) []*FoliageType {
	var out []*FoliageType
	for _, ft := range a.types {
		if ft.Mesh == mesh {
			out = append(out, ft)
		}
	}
	return out
}

// FindFoliageTypeOfClass procura um tipo gerado pela classe.
func (a *Actor) FindFoliageTypeOfClass(class string) *FoliageType {
	for _, ft := range a.types {
		if ft.Kind == TypeBlueprint && ft.GeneratedClass == class {
			return ft
		}
	}
	return nil
}

// FindTypeByName procura um tipo pelo nome.
func (a *Actor) FindTypeByName(name string) *FoliageType {
	for _, ft := range a.types {
		if ft.Name == name {
			return ft
		}
	}
	return nil
}

// RemoveFoliageType destrói os stores dos tipos e remove suas entradas.
func (a *Actor) RemoveFoliageType(types ...*FoliageType) {
	for _, ft := range types {
		st, ok := a.stores[ft]
		if !ok {
			continue
		}
		st.Destroy()
		if fn := a.unsub[ft]; fn != nil {
			fn()
		}
		delete(a.unsub, ft)
		delete(a.stores, ft)
		for i, t := range a.types {
			if t == ft {
				a.types = append(a.types[:i], a.types[i+1:]...)
				break
			}
		}
	}
}

// CleanupDeletedFoliageType remove os stores cujo tipo foi apagado.
func (a *Actor) CleanupDeletedFoliageType() {
	var dead []*FoliageType
	for _, ft := range a.types {
		if ft.IsDeleted() {
			dead = append(dead, ft)
		}
	}
	if len(dead) > 0 {
		a.RemoveFoliageType(dead...)
	}
}

// DeleteInstancesForComponent remove todas as instâncias apoiadas na base.
// Bases desconhecidas são ignoradas. Com ft != nil só o store do tipo é afetado.
func (a *Actor) DeleteInstancesForComponent(base Base, ft *FoliageType) {
	id := a.BaseCache.GetInstanceBaseId(base)
	if !id.IsValid() {
		return
	}
	for _, st := range a.storesFor(ft) {
		if indices := st.InstancesForBase(id); len(indices) > 0 {
			st.RemoveInstances(indices, true)
		}
	}
}

func (a *Actor) storesFor(ft *FoliageType) []*Store {
	if ft == nil {
		return a.Stores()
	}
	if st, ok := a.stores[ft]; ok {
		return []*Store{st}
	}
	return nil
}

// HasFoliageAttached informa se alguma instância deste ator usa a base.
func (a *Actor) HasFoliageAttached(base Base) bool {
	id := a.BaseCache.GetInstanceBaseId(base)
	if !id.IsValid() {
		return false
	}
	for _, st := range a.Stores() {
		if st.HasBase(id) {
			return true
		}
	}
	return false
}

// GetInstancesForComponent retorna cópias das instâncias apoiadas na base, por tipo.
func (a *Actor) GetInstancesForComponent(base Base) map[*FoliageType][]Instance {
	out := make(map[*FoliageType][]Instance)
	id := a.BaseCache.GetInstanceBaseId(base)
	if !id.IsValid() {
		return out
	}
	for _, st := range a.Stores() {
		indices := st.InstancesForBase(id)
		if len(indices) == 0 {
			continue
		}
		list := make([]Instance, 0, len(indices))
		for _, i := range indices {
			list = append(list, st.instances[i])
		}
		out[st.ft] = list
	}
	return out
}

// baseDelta monta a matriz que leva o espaço da base antiga para o da nova:
// T(novo) * R(novo) * S(novo/antigo) * R(antigo)^-1 * T(-antigo).
func baseDelta(old, cur BaseInfo) mgl64.Mat4 {
	ratio := func(n, o float64) float64 {
		if o == 0 {
			return 1
		}
		return n / o
	}
	scale := mgl64.Scale3D(
		ratio(cur.CachedDrawScale[0], old.CachedDrawScale[0]),
		ratio(cur.CachedDrawScale[1], old.CachedDrawScale[1]),
		ratio(cur.CachedDrawScale[2], old.CachedDrawScale[2]),
	)
	toOld := mgl64.Translate3D(-old.CachedLocation[0], -old.CachedLocation[1], -old.CachedLocation[2])
	toNew := mgl64.Translate3D(cur.CachedLocation[0], cur.CachedLocation[1], cur.CachedLocation[2])
	return toNew.
		Mul4(cur.CachedRotation.Normalize().Mat4()).
		Mul4(scale).
		Mul4(old.CachedRotation.Normalize().Inverse().Mat4()).
		Mul4(toOld)
}

// MoveInstancesForMovedComponent aplica às instâncias apoiadas na base a mesma
// variação de transformação que a base sofreu desde o último cache.
// DrawScale3D das instâncias não muda.
func (a *Actor) MoveInstancesForMovedComponent(base Base) {
	id := a.BaseCache.GetInstanceBaseId(base)
	if !id.IsValid() {
		return
	}
	old, ok := a.BaseCache.GetInstanceBaseInfo(id)
	if !ok || old.Base == nil {
		return
	}
	cur, ok := a.BaseCache.UpdateInstanceBaseInfoTransform(base)
	if !ok {
		return
	}
	delta := baseDelta(old, cur)

	for _, st := range a.Stores() {
		indices := st.InstancesForBase(id)
		if len(indices) == 0 {
			continue
		}
		st.MoveInstances(indices, func(_ int, inst *Instance) {
			loc := mgl64.Translate3D(inst.Location[0], inst.Location[1], inst.Location[2])
			m := delta.Mul4(loc).Mul4(inst.Rotation.Quat().Mat4())
			inst.Location = m.Col(3).Vec3()
			inst.Rotation = util.RotatorFromQuat(util.RotationFromMatrix(m))
		})
	}
}

// MoveInstancesToNewComponent reaponta as instâncias de oldBase para newBase.
// Dentro do mesmo ator só o BaseId muda; para outro ator as instâncias são
// copiadas para target e removidas daqui.
func (a *Actor) MoveInstancesToNewComponent(oldBase, newBase Base, target *Actor) {
	if oldBase == nil || newBase == nil {
		return
	}
	oldId := a.BaseCache.GetInstanceBaseId(oldBase)
	if !oldId.IsValid() {
		return
	}
	if target == nil {
		target = a
	}
	newId := target.BaseCache.AddInstanceBaseId(newBase)

	for _, st := range a.Stores() {
		indices := st.InstancesForBase(oldId)
		if len(indices) == 0 {
			continue
		}
		if target == a {
			func() {
				defer st.guard.Enter("MoveInstancesToNewComponent")()
				for _, i := range indices {
					st.setInstanceBase(i, newId)
				}
			}()
			continue
		}

		_, dst := target.AddFoliageType(st.ft)
		func() {
			defer dst.guard.Enter("MoveInstancesToNewComponent")()
			for _, i := range indices {
				inst := st.instances[i]
				inst.BaseId = newId
				dst.addInstance(inst, false)
			}
			dst.component.BuildTreeIfOutdated(true, true)
		}()
		st.RemoveInstances(indices, true)
	}
}

// moveIndicesTo copia as instâncias para o ator de destino (resolvendo as bases
// no cache dele) e remove-as daqui.
func (a *Actor) moveIndicesTo(st *Store, indices []int, target *Actor, selectMoved bool) {
	if len(indices) == 0 || target == a {
		return
	}
	_, dst := target.AddFoliageType(st.ft)
	moved := make([]int, 0, len(indices))
	func() {
		defer dst.guard.Enter("MoveInstancesToLevel")()
		for _, i := range indices {
			inst := st.instances[i]
			base, _ := a.BaseCache.GetInstanceBase(inst.BaseId)
			inst.BaseId = target.BaseCache.AddInstanceBaseId(base)
			moved = append(moved, dst.addInstance(inst, false))
		}
		dst.component.BuildTreeIfOutdated(true, true)
		if selectMoved {
			dst.selectInstancesAt(true, moved)
		}
	}()
	st.RemoveInstances(indices, true)
}

// MoveInstancesToLevel move as instâncias indicadas de ft para o ator do nível.
func (a *Actor) MoveInstancesToLevel(ft *FoliageType, indices []int, level string, selectMoved bool) {
	st := a.stores[ft]
	if st == nil || a.world == nil || level == a.Level {
		return
	}
	a.moveIndicesTo(st, indices, a.world.ActorForLevel(level, true), selectMoved)
}

// MoveSelectedInstancesToLevel move a seleção de todos os tipos para o nível,
// mantendo-a selecionada no destino.
func (a *Actor) MoveSelectedInstancesToLevel(level string) {
	if a.world == nil || level == a.Level || !a.HasSelectedInstances() {
		return
	}
	target := a.world.ActorForLevel(level, true)
	for _, st := range a.Stores() {
		a.moveIndicesTo(st, st.SelectedIndices(), target, true)
	}
}

// MoveAllInstancesToLevel move todas as instâncias do ator para o nível.
func (a *Actor) MoveAllInstancesToLevel(level string) {
	if a.world == nil || level == a.Level {
		return
	}
	target := a.world.ActorForLevel(level, true)
	for _, st := range a.Stores() {
		all := make([]int, st.Len())
		for i := range all {
			all[i] = i
		}
		a.moveIndicesTo(st, all, target, false)
	}
}

// DeleteInstancesForProceduralComponent remove as instâncias geradas pela execução
// procedural guid e compacta o cache de bases.
func (a *Actor) DeleteInstancesForProceduralComponent(guid uuid.UUID) {
	for _, st := range a.Stores() {
		var remove []int
		for i := range st.instances {
			if st.instances[i].ProceduralGuid == guid {
				remove = append(remove, i)
			}
		}
		if len(remove) > 0 {
			st.RemoveInstances(remove, true)
		}
	}
	a.CompactInstanceBaseCache()
}

// ContainsInstancesFromProceduralComponent informa se há instâncias da execução guid.
func (a *Actor) ContainsInstancesFromProceduralComponent(guid uuid.UUID) bool {
	for _, st := range a.Stores() {
		for i := range st.instances {
			if st.instances[i].ProceduralGuid == guid {
				return true
			}
		}
	}
	return false
}

// CompactInstanceBaseCache remove entradas sem uso ou de níveis inexistentes.
// Instâncias que apontavam para entradas removidas passam a ficar sem base.
func (a *Actor) CompactInstanceBaseCache() {
	referenced := make(map[BaseId]struct{})
	for _, st := range a.Stores() {
		for id := range st.componentHash {
			if id.IsValid() {
				referenced[id] = struct{}{}
			}
		}
	}
	var live func(string) bool
	if a.world != nil {
		live = a.world.HasLevel
	}
	orphaned := a.BaseCache.Compact(referenced, live)
	if len(orphaned) == 0 {
		return
	}
	log.Printf("[Foliage] %s: %d bases de níveis descarregados removidas do cache", a.Level, len(orphaned))
	for _, st := range a.Stores() {
		for _, id := range orphaned {
			indices := st.InstancesForBase(id)
			if len(indices) == 0 {
				continue
			}
			func() {
				defer st.guard.Enter("CompactInstanceBaseCache")()
				for _, i := range indices {
					st.setInstanceBase(i, InvalidBaseId)
				}
			}()
		}
	}
}

// SelectInstance seleciona a instância index do componente. Sem toggle a
// seleção anterior é descartada; com toggle uma instância já selecionada é desmarcada.
func (a *Actor) SelectInstance(c InstanceComponent, index int, toggle bool) {
	if !toggle {
		for _, st := range a.Stores() {
			if len(st.selected) > 0 {
				st.SelectInstances(false)
			}
		}
	}
	st := a.StoreForComponent(c)
	if st == nil {
		return
	}
	defer st.guard.Enter("SelectInstance")()
	wasSelected := st.IsSelected(index)
	st.selectInstancesAt(false, []int{index})
	if wasSelected && toggle {
		return
	}
	st.selectInstancesAt(true, []int{index})
}

// HasSelectedInstances informa se algum store tem seleção.
func (a *Actor) HasSelectedInstances() bool {
	for _, st := range a.Stores() {
		if len(st.selected) > 0 {
			return true
		}
	}
	return false
}

// GetSelectedStores lista os stores com instâncias selecionadas.
func (a *Actor) GetSelectedStores() []*Store {
	var out []*Store
	for _, st := range a.Stores() {
		if len(st.selected) > 0 {
			out = append(out, st)
		}
	}
	return out
}

// GetSelectionLocation retorna a posição da primeira instância selecionada.
func (a *Actor) GetSelectionLocation() (util.Vec3, bool) {
	for _, st := range a.Stores() {
		if sel := st.SelectedIndices(); len(sel) > 0 {
			return st.instances[sel[0]].Location, true
		}
	}
	return util.Vec3{}, false
}

// ApplySelectionToComponents envia a seleção aos componentes ou apaga o destaque
// nos componentes sem descartar a seleção.
func (a *Actor) ApplySelectionToComponents(apply bool) {
	for _, st := range a.Stores() {
		if len(st.selected) == 0 || st.component == nil {
			continue
		}
		if apply {
			for _, i := range st.SelectedIndices() {
				st.component.SelectInstance(true, i, 1)
			}
		} else {
			st.component.ClearInstanceSelection()
		}
	}
}

// GetOverlappingSphereCount conta instâncias na esfera; zero enquanto a árvore não está pronta.
func (a *Actor) GetOverlappingSphereCount(ft *FoliageType, s util.Sphere) int {
	if st := a.stores[ft]; st != nil && st.component != nil && st.component.IsTreeFullyBuilt() {
		return st.component.GetOverlappingSphereCount(s)
	}
	return 0
}

// GetOverlappingBoxCount conta instâncias na caixa; zero enquanto a árvore não está pronta.
func (a *Actor) GetOverlappingBoxCount(ft *FoliageType, b util.Box) int {
	if st := a.stores[ft]; st != nil && st.component != nil && st.component.IsTreeFullyBuilt() {
		return st.component.GetOverlappingBoxCount(b)
	}
	return 0
}

// GetOverlappingBoxTransforms retorna as transformações de render dentro da caixa.
func (a *Actor) GetOverlappingBoxTransforms(ft *FoliageType, b util.Box) []util.Transform {
	if st := a.stores[ft]; st != nil && st.component != nil && st.component.IsTreeFullyBuilt() {
		return st.component.GetOverlappingBoxTransforms(b)
	}
	return nil
}

// GetOverlappingMeshCounts soma, por malha, as instâncias dentro da esfera.
func (a *Actor) GetOverlappingMeshCounts(s util.Sphere) map[string]int {
	out := make(map[string]int)
	for _, st := range a.Stores() {
		if st.component == nil || !st.component.IsTreeFullyBuilt() {
			continue
		}
		if n := st.component.GetOverlappingSphereCount(s); n > 0 {
			out[st.ft.Mesh] += n
		}
	}
	return out
}

// NotifyFoliageTypeChanged sincroniza o store do tipo com as novas configurações.
func (a *Actor) NotifyFoliageTypeChanged(ft *FoliageType, meshChanged bool) {
	st := a.stores[ft]
	if st == nil {
		return
	}
	st.CheckComponentClass()
	st.UpdateComponentSettings()
	if !meshChanged {
		return
	}
	if st.component != nil {
		st.component.BuildTreeIfOutdated(true, true)
	}
	ids := make([]int, 0, len(a.meshChanged))
	for id := range a.meshChanged {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	for _, id := range ids {
		a.meshChanged[id](ft)
	}
	if ft.Mesh == "" && ft.owner == a {
		a.RemoveFoliageType(ft)
	}
}

// OnPostApplyLevelOffset desloca todas as instâncias após o nível ser transladado.
func (a *Actor) OnPostApplyLevelOffset(offset util.Vec3) {
	a.BaseCache.UpdateInstanceBaseCachedTransforms()
	for _, st := range a.Stores() {
		all := make([]int, st.Len())
		for i := range all {
			all[i] = i
		}
		st.MoveInstances(all, func(_ int, inst *Instance) {
			inst.Location = inst.Location.Add(offset)
		})
	}
}

// Register marca o ator como registrado no mundo.
func (a *Actor) Register() {
	a.state = ActorRegistered
}

// Destroyed limpa as instâncias dos componentes de render mantendo os dados,
// para que um undo possa restaurá-las.
func (a *Actor) Destroyed() {
	for _, st := range a.Stores() {
		st.ClearComponentInstances()
	}
	a.state = ActorDestroyed
}

// PostEditUndo reconstrói estado derivado depois que os arrays foram restaurados.
func (a *Actor) PostEditUndo() {
	a.BaseCache.UpdateInstanceBaseCachedTransforms()
	for _, st := range a.Stores() {
		func() {
			defer st.guard.Enter("PostEditUndo")()
			if st.component == nil && len(st.instances) > 0 {
				st.createComponent()
			}
			st.checkComponentClass()
			st.reapplyInstancesToComponent()
			st.rebuildIndexes()
		}()
	}
}

// PostLoad repara o estado carregado: descarta stores de tipos apagados,
// realoca stores desatualizados, recria componentes de classe errada e compacta o cache.
func (a *Actor) PostLoad() {
	for _, ft := range a.FoliageTypes() {
		if ft.IsDeleted() {
			log.Printf("[Foliage] AVISO: %s: tipo %q não existe mais, removendo %d instâncias", a.Level, ft.Name, a.stores[ft].Len())
			a.RemoveFoliageType(ft)
		}
	}
	for _, st := range a.Stores() {
		if st.updateGuid != st.ft.UpdateGuid {
			log.Printf("[Foliage] AVISO: %s: configurações mudaram, realocando", st)
			st.ReallocateClusters()
			continue
		}
		st.CheckComponentClass()
	}
	a.CompactInstanceBaseCache()
}

// RepairDuplicate absorve as instâncias não deletadas de um ator duplicado do mesmo nível.
func (a *Actor) RepairDuplicate(dup *Actor) {
	if dup == nil || dup == a {
		return
	}
	for _, st := range dup.Stores() {
		ft, dst := a.AddFoliageType(st.ft)
		added := 0
		func() {
			defer dst.guard.Enter("RepairDuplicate")()
			for _, inst := range st.instances {
				if inst.Flags.Has(FlagDeleted) {
					continue
				}
				base, _ := dup.BaseCache.GetInstanceBase(inst.BaseId)
				inst.BaseId = a.BaseCache.AddInstanceBaseId(base)
				dst.addInstance(inst, false)
				added++
			}
			if dst.component != nil {
				dst.component.BuildTreeIfOutdated(true, true)
			}
		}()
		log.Printf("[Foliage] %s: %d instâncias de %q recuperadas de ator duplicado", a.Level, added, ft.Name)
	}
	// O duplicado compartilha o nome do nível: seus eventos não podem chegar às réplicas.
	dup.world = nil
	dup.listeners = nil
	dup.RemoveFoliageType(dup.FoliageTypes()...)
	dup.state = ActorDestroyed
}

// ActorSnapshot é uma cópia dos dados persistentes do ator, usada para desfazer.
type ActorSnapshot struct {
	stores map[*FoliageType]storeSnapshot
	types  []*FoliageType
	bases  *BaseCache
}

type storeSnapshot struct {
	instances []Instance
	selected  []int
	guid      uuid.UUID
}

// Snapshot copia instâncias, seleção e cache de bases.
func (a *Actor) Snapshot() ActorSnapshot {
	snap := ActorSnapshot{
		stores: make(map[*FoliageType]storeSnapshot, len(a.stores)),
		types:  a.FoliageTypes(),
		bases:  a.BaseCache.Clone(),
	}
	for ft, st := range a.stores {
		snap.stores[ft] = storeSnapshot{instances: st.Instances(), selected: st.SelectedIndices(), guid: st.updateGuid}
	}
	return snap
}

// Undo restaura um snapshot e reconstrói o estado derivado.
func (a *Actor) Undo(snap ActorSnapshot) {
	keep := make(map[*FoliageType]bool, len(snap.types))
	for _, ft := range snap.types {
		keep[ft] = true
	}
	var drop []*FoliageType
	for _, ft := range a.types {
		if !keep[ft] {
			drop = append(drop, ft)
		}
	}
	a.RemoveFoliageType(drop...)

	*a.BaseCache = *snap.bases.Clone()
	for _, ft := range snap.types {
		st := a.FindOrAddMesh(ft)
		saved := snap.stores[ft]
		func() {
			defer st.guard.Enter("Undo")()
			st.instances = append([]Instance(nil), saved.instances...)
			st.updateGuid = saved.guid
			clear(st.selected)
			for _, i := range saved.selected {
				st.selected[i] = struct{}{}
			}
			st.emit(ChangeEvent{Kind: ChangeCleared})
			for i, inst := range st.instances {
				st.emit(ChangeEvent{Kind: ChangeAdded, Index: i, Instance: inst})
			}
		}()
	}
	if a.state == ActorDestroyed {
		a.state = ActorRegistered
	}
	a.PostEditUndo()
}
