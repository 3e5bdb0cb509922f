package foliage

import (
	"math"
	"sort"

	"FoliageForge/shared/pkg/util"
	fu "FoliageForge/shared/util"

	"github.com/google/uuid"
)

// Store guarda as instâncias de um tipo de foliage dentro de um ator.
//
// Além do array denso de instâncias mantém três índices derivados: o hash de
// bases (BaseId -> índices), o hash espacial e a seleção. Toda mutação
// exportada atualiza os três junto com o componente de render.
type Store struct {
	actor *Actor
	ft    *FoliageType

	instances     []Instance
	componentHash map[BaseId]map[int]struct{}
	hash          *SpatialHash
	selected      map[int]struct{}
	updateGuid    uuid.UUID
	component     InstanceComponent

	// Limite superior de MaxScale entre as instâncias; não diminui com remoções
	maxScale float64

	guard util.ReentryGuard
}

func newStore(actor *Actor, ft *FoliageType) *Store {
	return &Store{
		actor:         actor,
		ft:            ft,
		componentHash: make(map[BaseId]map[int]struct{}),
		hash:          NewSpatialHash(actor.cellBits),
		selected:      make(map[int]struct{}),
		updateGuid:    ft.UpdateGuid,
		maxScale:      1,
	}
}

// MaxInstanceScale retorna um limite superior da escala das instâncias (no mínimo 1).
func (s *Store) MaxInstanceScale() float64 {
	return s.maxScale
}

func (s *Store) noteScale(inst *Instance) {
	s.maxScale = max(s.maxScale, inst.MaxScale())
}

func (s *Store) String() string {
	return s.actor.Level + "/" + s.ft.Name
}

// FoliageType retorna o tipo deste store.
func (s *Store) FoliageType() *FoliageType {
	return s.ft
}

// Actor retorna o ator dono do store.
func (s *Store) Actor() *Actor {
	return s.actor
}

// Component retorna o componente de render, ou nil se ainda não foi criado.
func (s *Store) Component() InstanceComponent {
	return s.component
}

// UpdateGuid é a versão do tipo com a qual o store foi sincronizado pela última vez.
func (s *Store) UpdateGuid() uuid.UUID {
	return s.updateGuid
}

// Len retorna o tamanho do array, incluindo instâncias marcadas como deletadas.
func (s *Store) Len() int {
	return len(s.instances)
}

// GetInstanceCount conta as instâncias sem FlagDeleted.
func (s *Store) GetInstanceCount() int {
	n := 0
	for i := range s.instances {
		if !s.instances[i].Flags.Has(FlagDeleted) {
			n++
		}
	}
	return n
}

// Instance retorna uma cópia da instância i.
func (s *Store) Instance(i int) (Instance, bool) {
	if i < 0 || i >= len(s.instances) {
		return Instance{}, false
	}
	return s.instances[i], true
}

// Instances retorna uma cópia do array.
func (s *Store) Instances() []Instance {
	return append([]Instance(nil), s.instances...)
}

// Edit retorna um ponteiro para a instância i. Alterar Location exige
// PreMoveInstances antes e PostMoveInstances depois; alterar BaseId exige SetInstanceBase.
func (s *Store) Edit(i int) *Instance {
	if i < 0 || i >= len(s.instances) {
		return nil
	}
	return &s.instances[i]
}

// SpatialHash expõe o índice espacial (somente leitura por convenção).
func (s *Store) SpatialHash() *SpatialHash {
	return s.hash
}

// InstancesForBase retorna os índices apoiados em id, ordenados.
func (s *Store) InstancesForBase(id BaseId) []int {
	set := s.componentHash[id]
	out := make([]int, 0, len(set))
	for i := range set {
		out = append(out, i)
	}
	sort.Ints(out)
	return out
}

// HasBase informa se alguma instância usa id.
func (s *Store) HasBase(id BaseId) bool {
	_, ok := s.componentHash[id]
	return ok
}

// BaseIds retorna as chaves do hash de bases.
func (s *Store) BaseIds() []BaseId {
	out := make([]BaseId, 0, len(s.componentHash))
	for id := range s.componentHash {
		out = append(out, id)
	}
	sortIds(out)
	return out
}

func (s *Store) emit(ev ChangeEvent) {
	ev.Level = s.actor.Level
	ev.Type = s.ft.Name
	s.actor.emit(ev)
}

func (s *Store) addToBaseHash(i int) {
	id := s.instances[i].BaseId
	set, ok := s.componentHash[id]
	if !ok {
		set = make(map[int]struct{})
		s.componentHash[id] = set
	}
	set[i] = struct{}{}
}

func (s *Store) removeFromBaseHash(i int) {
	id := s.instances[i].BaseId
	if set, ok := s.componentHash[id]; ok {
		delete(set, i)
		if len(set) == 0 {
			delete(s.componentHash, id)
		}
	}
}

func (s *Store) createComponent() {
	s.component = s.actor.factory(s.ft.ComponentClassOrDefault(), s.ft)
	s.component.SetSettings(settingsFor(s.ft))
}

func (s *Store) destroyComponent() {
	if s.component != nil {
		s.component.ClearInstances()
		s.component.Destroy()
		s.component = nil
	}
}

// AddInstance adiciona uma instância e retorna seu índice.
// A instância deve ter posição, rotação e escala finitas.
func (s *Store) AddInstance(inst Instance, rebuildTree bool) int {
	defer s.guard.Enter("AddInstance")()
	return s.addInstance(inst, rebuildTree)
}

// AddInstanceOnBase adiciona uma instância apoiada em base, registrando-a no cache do ator.
func (s *Store) AddInstanceOnBase(inst Instance, base Base, rebuildTree bool) int {
	defer s.guard.Enter("AddInstance")()
	inst.BaseId = s.actor.BaseCache.AddInstanceBaseId(base)
	return s.addInstance(inst, rebuildTree)
}

func (s *Store) addInstance(inst Instance, rebuildTree bool) int {
	if s.component == nil {
		s.createComponent()
	} else {
		s.component.InvalidateLightingCache()
	}
	prev := s.component.SetAutoRebuildTree(rebuildTree)

	idx := len(s.instances)
	s.instances = append(s.instances, inst)
	s.noteScale(&inst)
	s.addToBaseHash(idx)
	s.hash.InsertInstance(inst.Location, idx)
	s.component.AddInstanceWorldSpace(inst.WorldTransform())

	s.component.SetAutoRebuildTree(prev)
	s.emit(ChangeEvent{Kind: ChangeAdded, Index: idx, Instance: inst})
	return idx
}

// RemoveInstances remove um lote de índices (duplicados e fora do intervalo são ignorados).
//
// Cada remoção troca o último elemento para o buraco. Quando o elemento
// trazido do fim também estava pendente, a pendência é transferida para o
// buraco, de modo que cada instância pedida é removida exatamente uma vez.
// Os índices pendentes são processados do menor para o maior.
func (s *Store) RemoveInstances(indices []int, rebuildTree bool) {
	defer s.guard.Enter("RemoveInstances")()
	s.removeInstances(indices, rebuildTree)
}

func (s *Store) removeInstances(indices []int, rebuildTree bool) {
	pending := make(map[int]struct{}, len(indices))
	for _, i := range indices {
		if i >= 0 && i < len(s.instances) {
			pending[i] = struct{}{}
		}
	}
	if len(pending) == 0 {
		return
	}
	order := make([]int, 0, len(pending))
	for i := range pending {
		order = append(order, i)
	}
	sort.Ints(order)

	if s.component == nil {
		s.createComponent()
	}
	prev := s.component.SetAutoRebuildTree(false)

	cursor := 0
	for len(pending) > 0 {
		for {
			if _, ok := pending[order[cursor]]; ok {
				break
			}
			cursor++
		}
		idx := order[cursor]
		toDrop := idx
		inst := s.instances[idx]

		s.removeFromBaseHash(idx)
		s.hash.RemoveInstance(inst.Location, idx)
		s.component.RemoveInstance(idx)
		delete(s.selected, idx)

		last := len(s.instances) - 1
		s.instances[idx] = s.instances[last]
		s.instances[last] = Instance{}
		s.instances = s.instances[:last]

		if idx != last && last > 0 {
			swapped := &s.instances[idx]
			s.hash.RemoveInstance(swapped.Location, last)
			s.hash.InsertInstance(swapped.Location, idx)

			if set, ok := s.componentHash[swapped.BaseId]; ok {
				delete(set, last)
				set[idx] = struct{}{}
			}
			if _, ok := s.selected[last]; ok {
				delete(s.selected, last)
				s.selected[idx] = struct{}{}
			}
			if _, ok := pending[last]; ok {
				toDrop = last
			}
		}
		delete(pending, toDrop)
		s.emit(ChangeEvent{Kind: ChangeRemoved, Index: idx})
	}

	s.component.SetAutoRebuildTree(prev)
	if rebuildTree {
		s.component.BuildTreeIfOutdated(true, true)
	}
}

// PreMoveInstances tira as instâncias do hash espacial antes de mudar Location.
func (s *Store) PreMoveInstances(indices []int) {
	defer s.guard.Enter("PreMoveInstances")()
	s.preMove(indices)
}

func (s *Store) preMove(indices []int) {
	for _, i := range indices {
		s.hash.RemoveInstance(s.instances[i].Location, i)
	}
}

// PostMoveInstances recoloca as instâncias no hash e envia as novas transformações ao componente.
func (s *Store) PostMoveInstances(indices []int) {
	defer s.guard.Enter("PostMoveInstances")()
	s.postUpdate(indices, true)
}

// PostUpdateInstances envia as transformações ao componente; reAddToHash
// recoloca as instâncias no hash espacial.
func (s *Store) PostUpdateInstances(indices []int, reAddToHash bool) {
	defer s.guard.Enter("PostUpdateInstances")()
	s.postUpdate(indices, reAddToHash)
}

func (s *Store) postUpdate(indices []int, reAddToHash bool) {
	if len(indices) == 0 {
		return
	}
	for _, i := range indices {
		inst := s.instances[i]
		s.noteScale(&inst)
		if s.component != nil {
			s.component.UpdateInstanceTransform(i, inst.WorldTransform(), true)
		}
		if reAddToHash {
			s.hash.InsertInstance(inst.Location, i)
		}
		s.emit(ChangeEvent{Kind: ChangeUpdated, Index: i, Instance: inst})
	}
	if s.component != nil {
		s.component.InvalidateLightingCache()
		s.component.MarkRenderStateDirty()
	}
}

// MoveInstances executa o protocolo completo de movimento: tira do hash,
// aplica fn a cada instância e recoloca.
func (s *Store) MoveInstances(indices []int, fn func(i int, inst *Instance)) {
	defer s.guard.Enter("MoveInstances")()
	s.moveInstances(indices, fn)
}

func (s *Store) moveInstances(indices []int, fn func(i int, inst *Instance)) {
	s.preMove(indices)
	for _, i := range indices {
		fn(i, &s.instances[i])
	}
	s.postUpdate(indices, true)
}

// SetInstanceBase troca a base de uma instância mantendo o hash de bases.
func (s *Store) SetInstanceBase(i int, id BaseId) {
	defer s.guard.Enter("SetInstanceBase")()
	s.setInstanceBase(i, id)
}

func (s *Store) setInstanceBase(i int, id BaseId) {
	if s.instances[i].BaseId == id {
		return
	}
	s.removeFromBaseHash(i)
	s.instances[i].BaseId = id
	s.addToBaseHash(i)
}

// DuplicateInstances copia as instâncias indicadas para novos índices e
// reconstrói a árvore uma única vez no fim. Retorna os novos índices.
func (s *Store) DuplicateInstances(indices []int) []int {
	defer s.guard.Enter("DuplicateInstances")()
	if len(indices) == 0 || s.component == nil {
		return nil
	}
	prev := s.component.SetAutoRebuildTree(false)
	out := make([]int, 0, len(indices))
	for _, i := range indices {
		out = append(out, s.addInstance(s.instances[i], false))
	}
	s.component.SetAutoRebuildTree(prev)
	s.component.BuildTreeIfOutdated(true, true)
	return out
}

// GetInstancesInsideSphere retorna, em ordem crescente, as instâncias cujo Location está dentro da esfera.
func (s *Store) GetInstancesInsideSphere(sphere fu.Sphere) []int {
	var out []int
	for _, i := range s.hash.GetInstancesOverlappingBox(sphere.Bounds()) {
		if sphere.ContainsPoint(s.instances[i].Location) {
			out = append(out, i)
		}
	}
	return out
}

// GetInstancesOverlappingBox retorna as instâncias cujo Location está dentro da caixa.
func (s *Store) GetInstancesOverlappingBox(box fu.Box) []int {
	var out []int
	for _, i := range s.hash.GetInstancesOverlappingBox(box) {
		if box.Contains(s.instances[i].Location) {
			out = append(out, i)
		}
	}
	return out
}

// GetInstanceAtLocation retorna a instância mais próxima dentro de uma pequena tolerância.
func (s *Store) GetInstanceAtLocation(p fu.Vec3) (int, bool) {
	box := fu.BuildAABB(p, fu.Vec3{fu.KindaSmallNumber, fu.KindaSmallNumber, fu.KindaSmallNumber})
	candidates := s.hash.GetInstancesOverlappingBox(box)

	best, bestDist := -1, math.MaxFloat64
	for _, i := range candidates {
		d := fu.DistSq(s.instances[i].Location, p)
		if d < bestDist {
			best, bestDist = i, d
		}
	}
	return best, best >= 0
}

// CheckForOverlappingSphere informa se alguma instância está dentro da esfera.
func (s *Store) CheckForOverlappingSphere(sphere fu.Sphere) bool {
	for _, i := range s.hash.GetInstancesOverlappingBox(sphere.Bounds()) {
		if sphere.ContainsPoint(s.instances[i].Location) {
			return true
		}
	}
	return false
}

// CheckForOverlappingInstanceExcluding informa se outra instância, fora de
// exclude, está a até radius da instância idx.
func (s *Store) CheckForOverlappingInstanceExcluding(idx int, radius float64, exclude map[int]struct{}) bool {
	sphere := fu.Sphere{Center: s.instances[idx].Location, W: radius}
	for _, i := range s.hash.GetInstancesOverlappingBox(sphere.Bounds()) {
		if i == idx {
			continue
		}
		if _, skip := exclude[i]; skip {
			continue
		}
		if sphere.ContainsPoint(s.instances[i].Location) {
			return true
		}
	}
	return false
}

// ReallocateClusters destrói o componente e readiciona todas as instâncias
// não deletadas num componente novo.
func (s *Store) ReallocateClusters() {
	defer s.guard.Enter("ReallocateClusters")()
	s.reallocateClusters()
}

func (s *Store) reallocateClusters() {
	s.destroyComponent()
	s.hash.Empty()
	clear(s.componentHash)
	clear(s.selected)

	old := s.instances
	s.instances = nil
	s.maxScale = 1
	s.updateGuid = s.ft.UpdateGuid
	s.emit(ChangeEvent{Kind: ChangeCleared})

	for _, inst := range old {
		if !inst.Flags.Has(FlagDeleted) {
			s.addInstance(inst, false)
		}
	}
	if s.component != nil {
		s.component.BuildTreeIfOutdated(true, true)
	}
}

// ReapplyInstancesToComponent limpa o componente e reenvia todas as
// transformações, restaurando a seleção.
func (s *Store) ReapplyInstancesToComponent() {
	defer s.guard.Enter("ReapplyInstancesToComponent")()
	s.reapplyInstancesToComponent()
}

func (s *Store) reapplyInstancesToComponent() {
	if s.component == nil {
		return
	}
	s.component.ClearInstances()
	prev := s.component.SetAutoRebuildTree(false)
	for i := range s.instances {
		s.component.AddInstanceWorldSpace(s.instances[i].WorldTransform())
	}
	s.component.SetAutoRebuildTree(prev)
	s.component.BuildTreeIfOutdated(true, true)

	s.component.ClearInstanceSelection()
	for _, i := range s.SelectedIndices() {
		s.component.SelectInstance(true, i, 1)
	}
}

// CheckComponentClass recria o componente quando a classe configurada no tipo mudou.
func (s *Store) CheckComponentClass() {
	defer s.guard.Enter("CheckComponentClass")()
	s.checkComponentClass()
}

func (s *Store) checkComponentClass() bool {
	if s.component == nil || s.component.Class() == s.ft.ComponentClassOrDefault() {
		return false
	}
	s.destroyComponent()
	s.createComponent()
	s.reapplyInstancesToComponent()
	return true
}

// UpdateComponentSettings copia as propriedades de render do tipo para o componente.
func (s *Store) UpdateComponentSettings() {
	defer s.guard.Enter("UpdateComponentSettings")()
	s.updateComponentSettings()
}

func (s *Store) updateComponentSettings() {
	if s.component == nil {
		return
	}
	cur := s.component.Settings()
	want := settingsFor(s.ft)
	markDirty, invalidateLighting := false, false

	if cur.Mesh != want.Mesh {
		markDirty, invalidateLighting = true, true
	}
	if cur.CullDistance != want.CullDistance {
		markDirty = true
	}
	if cur.CastShadow != want.CastShadow {
		markDirty, invalidateLighting = true, true
	}
	if cur == want {
		return
	}
	s.component.SetSettings(want)
	if invalidateLighting {
		s.component.InvalidateLightingCache()
	}
	if markDirty {
		s.component.MarkRenderStateDirty()
	}
}

// SelectInstances seleciona todas as instâncias ou limpa a seleção.
func (s *Store) SelectInstances(selected bool) {
	defer s.guard.Enter("SelectInstances")()
	if s.component == nil {
		return
	}
	if selected {
		for i := range s.instances {
			s.selected[i] = struct{}{}
		}
		s.component.SelectInstance(true, 0, len(s.instances))
		return
	}
	s.component.ClearInstanceSelection()
	clear(s.selected)
}

// SelectInstancesAt seleciona ou desseleciona os índices informados.
func (s *Store) SelectInstancesAt(selected bool, indices []int) {
	defer s.guard.Enter("SelectInstancesAt")()
	s.selectInstancesAt(selected, indices)
}

func (s *Store) selectInstancesAt(selected bool, indices []int) {
	if len(indices) == 0 || s.component == nil {
		return
	}
	for _, i := range indices {
		if i < 0 || i >= len(s.instances) {
			continue
		}
		if selected {
			s.selected[i] = struct{}{}
		} else {
			delete(s.selected, i)
		}
		s.component.SelectInstance(selected, i, 1)
	}
}

// IsSelected informa se a instância i está selecionada.
func (s *Store) IsSelected(i int) bool {
	_, ok := s.selected[i]
	return ok
}

// SelectedIndices retorna a seleção em ordem crescente.
func (s *Store) SelectedIndices() []int {
	out := make([]int, 0, len(s.selected))
	for i := range s.selected {
		out = append(out, i)
	}
	sort.Ints(out)
	return out
}

// RebuildIndexes recria o hash espacial e o hash de bases a partir do array.
// Usado após carregar ou desfazer.
func (s *Store) RebuildIndexes() {
	defer s.guard.Enter("RebuildIndexes")()
	s.rebuildIndexes()
}

func (s *Store) rebuildIndexes() {
	s.hash.Empty()
	clear(s.componentHash)
	s.maxScale = 1
	for i := range s.instances {
		s.hash.InsertInstance(s.instances[i].Location, i)
		s.addToBaseHash(i)
		s.noteScale(&s.instances[i])
	}
	for i := range s.selected {
		if i >= len(s.instances) {
			delete(s.selected, i)
		}
	}
}

// ClearComponentInstances remove as instâncias do componente de render mantendo o array.
func (s *Store) ClearComponentInstances() {
	defer s.guard.Enter("ClearComponentInstances")()
	if s.component != nil {
		s.component.ClearInstances()
	}
}

// Destroy remove o componente e esvazia o store.
func (s *Store) Destroy() {
	defer s.guard.Enter("Destroy")()
	s.destroyComponent()
	s.instances = nil
	s.maxScale = 1
	s.hash.Empty()
	clear(s.componentHash)
	clear(s.selected)
	s.emit(ChangeEvent{Kind: ChangeCleared})
}

// restore substitui o array por instâncias carregadas e reconstrói tudo.
func (s *Store) restore(instances []Instance, guid uuid.UUID) {
	s.destroyComponent()
	s.instances = instances
	s.updateGuid = guid
	clear(s.selected)
	s.rebuildIndexes()
	if len(s.instances) > 0 {
		s.createComponent()
		s.reapplyInstancesToComponent()
	}
}
