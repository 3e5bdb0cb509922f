package foliage

import (
	"log"
	"sort"

	"FoliageForge/shared/util"

	"github.com/google/uuid"
)

// World é o grafo de níveis: um ator canônico de foliage por nível.
type World struct {
	levels     map[string]struct{}
	current    string
	actors     map[string]*Actor
	duplicates map[string][]*Actor
	tracer     Tracer
	cfg        ActorConfig
	listeners  []ChangeListener
}

// NewWorld cria um mundo com o nível persistente "Persistent" como atual.
func NewWorld(cfg ActorConfig, tracer Tracer) *World {
	w := &World{
		levels:     make(map[string]struct{}),
		actors:     make(map[string]*Actor),
		duplicates: make(map[string][]*Actor),
		tracer:     tracer,
		cfg:        cfg,
	}
	w.AddLevel(PersistentLevel)
	w.current = PersistentLevel
	return w
}

// PersistentLevel é o nome do nível sempre carregado.
const PersistentLevel = "Persistent"

// Tracer retorna o tracer da cena.
func (w *World) Tracer() Tracer {
	return w.tracer
}

// SetTracer troca o tracer da cena.
func (w *World) SetTracer(t Tracer) {
	w.tracer = t
}

// AddListener registra um listener para mutações em qualquer ator do mundo.
func (w *World) AddListener(l ChangeListener) {
	w.listeners = append(w.listeners, l)
}

func (w *World) emit(ev ChangeEvent) {
	for _, l := range w.listeners {
		l.StoreChanged(ev)
	}
}

// AddLevel registra um nível.
func (w *World) AddLevel(name string) {
	w.levels[name] = struct{}{}
}

// HasLevel informa se o nível está carregado.
func (w *World) HasLevel(name string) bool {
	_, ok := w.levels[name]
	return ok
}

// Levels lista os níveis em ordem alfabética.
func (w *World) Levels() []string {
	out := make([]string, 0, len(w.levels))
	for name := range w.levels {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// RemoveLevel descarrega o nível e seu ator. Os caches dos outros atores
// perdem as bases que apontavam para ele.
func (w *World) RemoveLevel(name string) {
	if name == PersistentLevel {
		return
	}
	if a, ok := w.actors[name]; ok {
		a.Destroyed()
		a.world = nil
		delete(w.actors, name)
	}
	delete(w.duplicates, name)
	delete(w.levels, name)
	if w.current == name {
		w.current = PersistentLevel
	}
	for _, a := range w.Actors() {
		a.CompactInstanceBaseCache()
	}
}

// SetCurrentLevel define o nível onde novas pinturas caem.
func (w *World) SetCurrentLevel(name string) {
	w.AddLevel(name)
	w.current = name
}

// CurrentLevel retorna o nível atual.
func (w *World) CurrentLevel() string {
	return w.current
}

// ActorForLevel retorna o ator canônico do nível. Com create, cria o nível e o ator se faltarem.
func (w *World) ActorForLevel(name string, create bool) *Actor {
	if a, ok := w.actors[name]; ok {
		return a
	}
	if !create {
		return nil
	}
	w.AddLevel(name)
	a := NewActor(name, w.cfg)
	w.attach(a)
	return a
}

func (w *World) attach(a *Actor) {
	a.world = w
	a.Register()
	w.actors[a.Level] = a
}

// RegisterLoadedActor registra um ator vindo da persistência. Se o nível já
// tem um ator canônico o novo é guardado como duplicado e false é retornado.
func (w *World) RegisterLoadedActor(a *Actor) bool {
	w.AddLevel(a.Level)
	if _, ok := w.actors[a.Level]; ok {
		log.Printf("[Foliage] AVISO: ator de foliage duplicado no nível %s", a.Level)
		w.duplicates[a.Level] = append(w.duplicates[a.Level], a)
		return false
	}
	w.attach(a)
	return true
}

// RepairDuplicates funde os atores duplicados nos canônicos. Retorna quantos foram fundidos.
func (w *World) RepairDuplicates() int {
	n := 0
	levels := make([]string, 0, len(w.duplicates))
	for level := range w.duplicates {
		levels = append(levels, level)
	}
	sort.Strings(levels)
	for _, level := range levels {
		canonical := w.actors[level]
		for _, dup := range w.duplicates[level] {
			canonical.RepairDuplicate(dup)
			n++
		}
		delete(w.duplicates, level)
	}
	return n
}

// Actors lista os atores canônicos ordenados pelo nível.
func (w *World) Actors() []*Actor {
	levels := make([]string, 0, len(w.actors))
	for level := range w.actors {
		levels = append(levels, level)
	}
	sort.Strings(levels)
	out := make([]*Actor, 0, len(levels))
	for _, level := range levels {
		out = append(out, w.actors[level])
	}
	return out
}

// FindStoreForComponent procura o store dono do componente de render em todos os atores.
func (w *World) FindStoreForComponent(c InstanceComponent) *Store {
	for _, a := range w.Actors() {
		if st := a.StoreForComponent(c); st != nil {
			return st
		}
	}
	return nil
}

// DeleteInstancesForComponent remove, em todos os níveis, as instâncias apoiadas na base.
func (w *World) DeleteInstancesForComponent(base Base) {
	for _, a := range w.Actors() {
		a.DeleteInstancesForComponent(base, nil)
	}
}

// MoveInstancesToNewComponent reaponta instâncias de oldBase para newBase,
// levando-as ao ator do nível de newBase. Sem newBase nada muda.
func (w *World) MoveInstancesToNewComponent(oldBase, newBase Base) {
	if oldBase == nil || newBase == nil {
		return
	}
	target := w.ActorForLevel(newBase.BaseLevel(), true)
	for _, a := range w.Actors() {
		a.MoveInstancesToNewComponent(oldBase, newBase, target)
	}
}

// HasFoliageAttached informa se algum ator tem instâncias sobre a base.
func (w *World) HasFoliageAttached(base Base) bool {
	for _, a := range w.Actors() {
		if a.HasFoliageAttached(base) {
			return true
		}
	}
	return false
}

// MoveInstancesForComponentToCurrentLevel leva as instâncias apoiadas na base
// para o ator do nível atual.
func (w *World) MoveInstancesForComponentToCurrentLevel(base Base) {
	if !w.HasFoliageAttached(base) {
		return
	}
	target := w.ActorForLevel(w.current, true)
	for _, a := range w.Actors() {
		if a == target {
			continue
		}
		id := a.BaseCache.GetInstanceBaseId(base)
		if !id.IsValid() {
			continue
		}
		for _, st := range a.Stores() {
			indices := st.InstancesForBase(id)
			if len(indices) == 0 {
				continue
			}
			_, dst := target.AddFoliageType(st.ft)
			func() {
				defer dst.guard.Enter("MoveInstancesForComponentToCurrentLevel")()
				newId := target.BaseCache.AddInstanceBaseId(base)
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
}

// OnBaseMoved propaga o movimento da base para as instâncias de todos os níveis.
func (w *World) OnBaseMoved(base Base) {
	for _, a := range w.Actors() {
		a.MoveInstancesForMovedComponent(base)
	}
}

// OnBaseDeleted remove as instâncias apoiadas na base destruída.
func (w *World) OnBaseDeleted(base Base) {
	w.DeleteInstancesForComponent(base)
}

// DeleteInstancesForProceduralComponent remove de todos os níveis as instâncias da execução guid.
func (w *World) DeleteInstancesForProceduralComponent(guid uuid.UUID) {
	for _, a := range w.Actors() {
		a.DeleteInstancesForProceduralComponent(guid)
	}
}

// ContainsInstancesFromProceduralComponent informa se algum nível tem instâncias da execução guid.
func (w *World) ContainsInstancesFromProceduralComponent(guid uuid.UUID) bool {
	for _, a := range w.Actors() {
		if a.ContainsInstancesFromProceduralComponent(guid) {
			return true
		}
	}
	return false
}

// CheckForOverlappingSphere informa se algum nível tem instância do tipo dentro da esfera.
func (w *World) CheckForOverlappingSphere(ft *FoliageType, s util.Sphere) bool {
	for _, a := range w.Actors() {
		if st := a.FindCompatibleStore(ft); st != nil && st.CheckForOverlappingSphere(s) {
			return true
		}
	}
	return false
}

// PostLoad repara todos os atores carregados.
func (w *World) PostLoad() {
	w.RepairDuplicates()
	for _, a := range w.Actors() {
		a.PostLoad()
	}
}
