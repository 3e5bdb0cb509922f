// Package scene guarda as superfícies do mundo (terrenos, malhas, volumes)
// como entidades de um mundo ECS e responde aos traces da foliage.
package scene

import (
	"fmt"
	"log"
	"sort"

	"FoliageForge/shared/foliage"
	"FoliageForge/shared/util"

	"github.com/google/uuid"
	"github.com/mlange-42/ark/ecs"
)

// ShapeKind é a forma de colisão de um corpo.
type ShapeKind int

const (
	ShapeBox ShapeKind = iota
	ShapeSphere
)

func (k ShapeKind) String() string {
	if k == ShapeSphere {
		return "sphere"
	}
	return "box"
}

// Placement identifica e posiciona o corpo.
type Placement struct {
	Level     string
	Name      string
	Kind      foliage.BaseKind
	Transform util.Transform
}

// Shape é a forma de colisão em espaço local. Extent são as meias-medidas da
// caixa; ambas são multiplicadas pela escala da transformação.
type Shape struct {
	Kind   ShapeKind
	Extent util.Vec3
	Radius float64
}

// Surface diz como o corpo responde aos traces.
type Surface struct {
	Flags      foliage.HitFlags
	VolumeGuid uuid.UUID
}

// BodyDef descreve um corpo a ser criado.
type BodyDef struct {
	Placement
	Shape   Shape
	Surface Surface
}

// Scene é o conjunto de corpos de todos os níveis.
// Não é thread-safe; o servidor a acessa sob o mesmo lock do mundo de foliage.
type Scene struct {
	world  *ecs.World
	bodies *ecs.Map3[Placement, Shape, Surface]
	filter *ecs.Filter3[Placement, Shape, Surface]

	handles map[ecs.Entity]*Body
	names   map[string]*Body

	// OnMoved e OnRemoved avisam a foliage quando uma base muda.
	OnMoved   func(b foliage.Base)
	OnRemoved func(b foliage.Base)
}

// New cria uma cena vazia.
func New() *Scene {
	s := &Scene{
		world:   ecs.NewWorld(),
		handles: make(map[ecs.Entity]*Body),
		names:   make(map[string]*Body),
	}
	s.bodies = ecs.NewMap3[Placement, Shape, Surface](s.world)
	s.filter = ecs.NewFilter3[Placement, Shape, Surface](s.world)
	return s
}

func key(level, name string) string {
	return level + "/" + name
}

// Add cria um corpo. Nomes são únicos dentro do nível.
func (s *Scene) Add(def BodyDef) (*Body, error) {
	k := key(def.Level, def.Name)
	if _, ok := s.names[k]; ok {
		return nil, fmt.Errorf("corpo %s já existe", k)
	}
	if def.Transform.Scale == (util.Vec3{}) {
		def.Transform = util.IdentityTransform()
	}
	pl, sh, sf := def.Placement, def.Shape, def.Surface
	e := s.bodies.NewEntity(&pl, &sh, &sf)

	b := &Body{scene: s, entity: e, level: def.Level, name: def.Name, kind: def.Kind}
	s.handles[e] = b
	s.names[k] = b
	return b, nil
}

// MustAdd é Add para cenas montadas no código; duplicatas disparam pânico.
func (s *Scene) MustAdd(def BodyDef) *Body {
	b, err := s.Add(def)
	if err != nil {
		panic(err)
	}
	return b
}

// Find retorna o corpo do nível com o nome dado.
func (s *Scene) Find(level, name string) (*Body, bool) {
	b, ok := s.names[key(level, name)]
	return b, ok
}

// ResolveBase adapta Find para foliage.LoadOptions.Bases.
func (s *Scene) ResolveBase(level, name string) foliage.Base {
	if b, ok := s.Find(level, name); ok {
		return b
	}
	return nil
}

// Move reposiciona o corpo e avisa OnMoved.
func (s *Scene) Move(b *Body, t util.Transform) {
	if !b.Alive() {
		return
	}
	pl, _, _ := s.bodies.Get(b.entity)
	pl.Transform = t
	if s.OnMoved != nil {
		s.OnMoved(b)
	}
}

// Remove apaga o corpo. OnRemoved é chamado antes, com a base ainda viva.
func (s *Scene) Remove(b *Body) {
	if !b.Alive() {
		return
	}
	if s.OnRemoved != nil {
		s.OnRemoved(b)
	}
	s.destroy(b)
}

func (s *Scene) destroy(b *Body) {
	s.world.RemoveEntity(b.entity)
	delete(s.handles, b.entity)
	delete(s.names, key(b.level, b.name))
}

// RemoveLevel descarrega os corpos do nível sem avisar a foliage: as
// instâncias continuam e suas bases passam a ser resolvidas como destruídas.
func (s *Scene) RemoveLevel(level string) int {
	var dead []*Body
	for _, b := range s.names {
		if b.level == level {
			dead = append(dead, b)
		}
	}
	for _, b := range dead {
		s.destroy(b)
	}
	if len(dead) > 0 {
		log.Printf("[Scene] Nível %s descarregado (%d corpos)", level, len(dead))
	}
	return len(dead)
}

// Bodies lista os corpos ordenados por nível e nome.
func (s *Scene) Bodies() []*Body {
	out := make([]*Body, 0, len(s.names))
	for _, b := range s.names {
		out = append(out, b)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].level != out[j].level {
			return out[i].level < out[j].level
		}
		return out[i].name < out[j].name
	})
	return out
}

// Len retorna o número de corpos vivos.
func (s *Scene) Len() int {
	return len(s.names)
}

// Body é o handle de um corpo. Implementa foliage.Base e foliage.Volume.
type Body struct {
	scene  *Scene
	entity ecs.Entity
	level  string
	name   string
	kind   foliage.BaseKind
}

func (b *Body) BaseName() string           { return b.name }
func (b *Body) BaseLevel() string          { return b.level }
func (b *Body) BaseKind() foliage.BaseKind { return b.kind }

// Alive informa se o corpo ainda existe na cena.
func (b *Body) Alive() bool {
	return b.scene.world.Alive(b.entity)
}

func (b *Body) BaseTransform() (util.Transform, bool) {
	if !b.Alive() {
		return util.Transform{}, false
	}
	pl, _, _ := b.scene.bodies.Get(b.entity)
	return pl.Transform, true
}

// Def retorna a descrição atual do corpo.
func (b *Body) Def() BodyDef {
	pl, sh, sf := b.scene.bodies.Get(b.entity)
	return BodyDef{Placement: *pl, Shape: *sh, Surface: *sf}
}

// OverlapTest informa se uma esfera em p toca a forma do corpo.
func (b *Body) OverlapTest(p util.Vec3, radius float64) bool {
	if !b.Alive() {
		return false
	}
	pl, sh, _ := b.scene.bodies.Get(b.entity)
	return overlaps(pl.Transform, *sh, p, radius)
}

func (b *Body) String() string {
	return key(b.level, b.name)
}
