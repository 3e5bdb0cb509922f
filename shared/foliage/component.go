package foliage

import (
	"FoliageForge/shared/util"
)

// ComponentSettings são as propriedades de render copiadas do FoliageType.
type ComponentSettings struct {
	Mesh         string
	CullDistance util.FloatInterval
	CastShadow   bool
}

func settingsFor(ft *FoliageType) ComponentSettings {
	return ComponentSettings{Mesh: ft.Mesh, CullDistance: ft.CullDistance, CastShadow: ft.CastShadow}
}

// InstanceComponent é o componente de render que desenha as instâncias de um Store.
// Os índices do componente espelham 1:1 os índices do Store: adições e remoções
// precisam acontecer na mesma ordem nos dois.
type InstanceComponent interface {
	AddInstanceWorldSpace(t util.Transform) int
	// RemoveInstance remove com troca pelo último, como o Store.
	RemoveInstance(index int) bool
	UpdateInstanceTransform(index int, t util.Transform, markRenderStateDirty bool) bool
	ClearInstances()
	InstanceCount() int
	InstanceTransform(index int) (util.Transform, bool)

	// BuildTreeIfOutdated reconstrói a árvore de culling. force ignora o estado atual.
	BuildTreeIfOutdated(force, blocking bool)
	IsTreeFullyBuilt() bool
	// SetAutoRebuildTree liga/desliga a reconstrução automática e retorna o valor anterior.
	SetAutoRebuildTree(enabled bool) bool
	InvalidateLightingCache()
	MarkRenderStateDirty()

	SelectInstance(selected bool, index, count int)
	ClearInstanceSelection()

	GetOverlappingSphereCount(s util.Sphere) int
	GetOverlappingBoxCount(b util.Box) int
	GetOverlappingBoxTransforms(b util.Box) []util.Transform

	Class() string
	Settings() ComponentSettings
	SetSettings(ComponentSettings)
	Destroy()
}

// ComponentFactory cria o componente de render de um tipo.
type ComponentFactory func(class string, ft *FoliageType) InstanceComponent

// NewMemoryComponentFactory cria componentes em memória (servidor e testes).
func NewMemoryComponentFactory() ComponentFactory {
	return func(class string, ft *FoliageType) InstanceComponent {
		return NewMemoryComponent(class)
	}
}

// MemoryComponent guarda as transformações sem desenhar nada.
type MemoryComponent struct {
	class       string
	settings    ComponentSettings
	transforms  []util.Transform
	selected    []bool
	treeBuilt   bool
	autoRebuild bool
	destroyed   bool

	// Contadores para inspeção
	TreeBuilds            int
	LightingInvalidations int
	RenderStateDirties    int
}

// NewMemoryComponent cria um componente vazio com reconstrução automática ligada.
func NewMemoryComponent(class string) *MemoryComponent {
	return &MemoryComponent{class: class, autoRebuild: true, treeBuilt: true}
}

func (c *MemoryComponent) changed() {
	c.treeBuilt = false
	if c.autoRebuild {
		c.BuildTreeIfOutdated(true, false)
	}
}

func (c *MemoryComponent) AddInstanceWorldSpace(t util.Transform) int {
	c.transforms = append(c.transforms, t)
	c.selected = append(c.selected, false)
	c.changed()
	return len(c.transforms) - 1
}

func (c *MemoryComponent) RemoveInstance(index int) bool {
	if index < 0 || index >= len(c.transforms) {
		return false
	}
	last := len(c.transforms) - 1
	c.transforms[index] = c.transforms[last]
	c.transforms = c.transforms[:last]
	c.selected[index] = c.selected[last]
	c.selected = c.selected[:last]
	c.changed()
	return true
}

func (c *MemoryComponent) UpdateInstanceTransform(index int, t util.Transform, markRenderStateDirty bool) bool {
	if index < 0 || index >= len(c.transforms) {
		return false
	}
	c.transforms[index] = t
	if markRenderStateDirty {
		c.RenderStateDirties++
	}
	c.changed()
	return true
}

func (c *MemoryComponent) ClearInstances() {
	c.transforms = nil
	c.selected = nil
	c.changed()
}

func (c *MemoryComponent) InstanceCount() int {
	return len(c.transforms)
}

func (c *MemoryComponent) InstanceTransform(index int) (util.Transform, bool) {
	if index < 0 || index >= len(c.transforms) {
		return util.Transform{}, false
	}
	return c.transforms[index], true
}

func (c *MemoryComponent) BuildTreeIfOutdated(force, blocking bool) {
	if force || !c.treeBuilt {
		c.TreeBuilds++
		c.treeBuilt = true
	}
}

func (c *MemoryComponent) IsTreeFullyBuilt() bool {
	return c.treeBuilt
}

func (c *MemoryComponent) SetAutoRebuildTree(enabled bool) bool {
	prev := c.autoRebuild
	c.autoRebuild = enabled
	return prev
}

func (c *MemoryComponent) InvalidateLightingCache() {
	c.LightingInvalidations++
}

func (c *MemoryComponent) MarkRenderStateDirty() {
	c.RenderStateDirties++
}

func (c *MemoryComponent) SelectInstance(selected bool, index, count int) {
	for i := index; i < index+count && i < len(c.selected); i++ {
		if i >= 0 {
			c.selected[i] = selected
		}
	}
}

func (c *MemoryComponent) ClearInstanceSelection() {
	for i := range c.selected {
		c.selected[i] = false
	}
}

// IsSelected informa se a instância está destacada.
func (c *MemoryComponent) IsSelected(index int) bool {
	return index >= 0 && index < len(c.selected) && c.selected[index]
}

func (c *MemoryComponent) GetOverlappingSphereCount(s util.Sphere) int {
	n := 0
	for _, t := range c.transforms {
		if s.ContainsPoint(t.Translation) {
			n++
		}
	}
	return n
}

func (c *MemoryComponent) GetOverlappingBoxCount(b util.Box) int {
	n := 0
	for _, t := range c.transforms {
		if b.Contains(t.Translation) {
			n++
		}
	}
	return n
}

func (c *MemoryComponent) GetOverlappingBoxTransforms(b util.Box) []util.Transform {
	var out []util.Transform
	for _, t := range c.transforms {
		if b.Contains(t.Translation) {
			out = append(out, t)
		}
	}
	return out
}

func (c *MemoryComponent) Class() string {
	return c.class
}

func (c *MemoryComponent) Settings() ComponentSettings {
	return c.settings
}

func (c *MemoryComponent) SetSettings(s ComponentSettings) {
	c.settings = s
}

func (c *MemoryComponent) Destroy() {
	c.transforms = nil
	c.selected = nil
	c.destroyed = true
}

// IsDestroyed informa se Destroy já foi chamado.
func (c *MemoryComponent) IsDestroyed() bool {
	return c.destroyed
}
