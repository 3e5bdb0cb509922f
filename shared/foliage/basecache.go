package foliage

import (
	"fmt"
	"maps"
	"slices"
	"sort"

	"FoliageForge/shared/util"

	"github.com/go-gl/mathgl/mgl64"
)

// BaseKind classifica a superfície sobre a qual a foliage repousa.
type BaseKind int

const (
	BaseStatic     BaseKind = iota // malha estática, landscape, etc.
	BaseModel                      // BSP do nível (recriado a cada rebuild)
	BaseBrushModel                 // BSP pertencente a um brush (persiste entre rebuilds)
	BaseBrush                      // volume/parede invisível
)

// Base é um objeto externo que serve de apoio para instâncias.
// A foliage nunca é dona da base: guarda apenas um BaseId.
type Base interface {
	BaseName() string
	BaseLevel() string
	BaseKind() BaseKind
	// BaseTransform retorna false quando a base já foi destruída.
	BaseTransform() (util.Transform, bool)
}

// BaseId é um handle com geração para uma entrada do BaseCache.
// O valor zero é InvalidBaseId ("sem base").
type BaseId struct {
	slot uint32 // 1-based
	gen  uint32
}

// InvalidBaseId indica instância sem base (presa ao mundo).
var InvalidBaseId = BaseId{}

// IsValid retorna false para o sentinela.
func (id BaseId) IsValid() bool {
	return id.slot != 0
}

// Pack serializa o handle.
func (id BaseId) Pack() uint64 {
	return uint64(id.gen)<<32 | uint64(id.slot)
}

// UnpackBaseId reconstrói um handle serializado com Pack.
func UnpackBaseId(v uint64) BaseId {
	return BaseId{slot: uint32(v), gen: uint32(v >> 32)}
}

func (id BaseId) String() string {
	if !id.IsValid() {
		return "base(none)"
	}
	return fmt.Sprintf("base(%d#%d)", id.slot, id.gen)
}

// BaseInfo é a última transformação conhecida de uma base.
type BaseInfo struct {
	Base            Base // nil enquanto a base não foi resolvida (nível não carregado)
	Name            string
	Level           string
	CachedLocation  util.Vec3
	CachedRotation  mgl64.Quat
	CachedDrawScale util.Vec3
}

// Transform monta a transformação em cache.
func (b BaseInfo) Transform() util.Transform {
	return util.Transform{Rotation: b.CachedRotation, Translation: b.CachedLocation, Scale: b.CachedDrawScale}
}

type baseSlot struct {
	gen  uint32
	live bool
	info BaseInfo
}

// BaseCache mapeia bases para BaseIds estáveis, particionado por nível.
type BaseCache struct {
	slots  []baseSlot
	free   []uint32
	byBase map[Base]BaseId
	byName map[string]BaseId
	levels map[string]map[BaseId]struct{}
}

// NewBaseCache cria um cache vazio.
func NewBaseCache() *BaseCache {
	return &BaseCache{
		byBase: make(map[Base]BaseId),
		byName: make(map[string]BaseId),
		levels: make(map[string]map[BaseId]struct{}),
	}
}

func nameKey(level, name string) string {
	return level + "/" + name
}

func infoFor(base Base) BaseInfo {
	info := BaseInfo{
		Base:            base,
		Name:            base.BaseName(),
		Level:           base.BaseLevel(),
		CachedRotation:  mgl64.QuatIdent(),
		CachedDrawScale: util.Vec3{1, 1, 1},
	}
	if t, ok := base.BaseTransform(); ok {
		info.CachedLocation = t.Translation
		info.CachedRotation = t.Rotation
		info.CachedDrawScale = t.Scale
	}
	return info
}

func (c *BaseCache) slotOf(id BaseId) *baseSlot {
	if !id.IsValid() || int(id.slot) > len(c.slots) {
		return nil
	}
	s := &c.slots[id.slot-1]
	if !s.live || s.gen != id.gen {
		return nil
	}
	return s
}

// AddInstanceBaseId retorna o id existente da base ou aloca um novo com a
// transformação atual. Base nil retorna InvalidBaseId.
func (c *BaseCache) AddInstanceBaseId(base Base) BaseId {
	if base == nil {
		return InvalidBaseId
	}
	if id := c.GetInstanceBaseId(base); id.IsValid() {
		return id
	}

	var slot uint32
	if n := len(c.free); n > 0 {
		slot = c.free[n-1]
		c.free = c.free[:n-1]
	} else {
		c.slots = append(c.slots, baseSlot{})
		slot = uint32(len(c.slots))
	}
	s := &c.slots[slot-1]
	s.live = true
	s.info = infoFor(base)

	id := BaseId{slot: slot, gen: s.gen}
	c.index(id, s.info)
	return id
}

func (c *BaseCache) index(id BaseId, info BaseInfo) {
	if info.Base != nil {
		c.byBase[info.Base] = id
	}
	c.byName[nameKey(info.Level, info.Name)] = id
	lvl, ok := c.levels[info.Level]
	if !ok {
		lvl = make(map[BaseId]struct{})
		c.levels[info.Level] = lvl
	}
	lvl[id] = struct{}{}
}

// GetInstanceBaseId procura a base sem alocar.
// Entradas carregadas ainda sem ponteiro são ligadas à base pelo nome.
func (c *BaseCache) GetInstanceBaseId(base Base) BaseId {
	if base == nil {
		return InvalidBaseId
	}
	if id, ok := c.byBase[base]; ok {
		return id
	}
	id, ok := c.byName[nameKey(base.BaseLevel(), base.BaseName())]
	if !ok {
		return InvalidBaseId
	}
	s := c.slotOf(id)
	if s == nil || s.info.Base != nil {
		return InvalidBaseId
	}
	s.info.Base = base
	c.byBase[base] = id
	return id
}

// GetInstanceBaseInfo retorna a transformação em cache de id.
func (c *BaseCache) GetInstanceBaseInfo(id BaseId) (BaseInfo, bool) {
	s := c.slotOf(id)
	if s == nil {
		return BaseInfo{}, false
	}
	return s.info, true
}

// GetInstanceBase resolve id para a base. Falha para ids inválidos,
// removidos ou ainda não resolvidos.
func (c *BaseCache) GetInstanceBase(id BaseId) (Base, bool) {
	s := c.slotOf(id)
	if s == nil || s.info.Base == nil {
		return nil, false
	}
	return s.info.Base, true
}

// UpdateInstanceBaseInfoTransform atualiza o cache com a transformação atual da base.
// Retorna a nova informação; a antiga deve ser lida antes com GetInstanceBaseInfo.
func (c *BaseCache) UpdateInstanceBaseInfoTransform(base Base) (BaseInfo, bool) {
	id := c.GetInstanceBaseId(base)
	s := c.slotOf(id)
	if s == nil {
		return BaseInfo{}, false
	}
	t, ok := base.BaseTransform()
	if !ok {
		return s.info, false
	}
	s.info.CachedLocation = t.Translation
	s.info.CachedRotation = t.Rotation
	s.info.CachedDrawScale = t.Scale
	return s.info, true
}

// UpdateInstanceBaseCachedTransforms atualiza todas as bases vivas e resolvidas.
func (c *BaseCache) UpdateInstanceBaseCachedTransforms() {
	for i := range c.slots {
		s := &c.slots[i]
		if !s.live || s.info.Base == nil {
			continue
		}
		if t, ok := s.info.Base.BaseTransform(); ok {
			s.info.CachedLocation = t.Translation
			s.info.CachedRotation = t.Rotation
			s.info.CachedDrawScale = t.Scale
		}
	}
}

func (c *BaseCache) remove(id BaseId) {
	s := c.slotOf(id)
	if s == nil {
		return
	}
	if s.info.Base != nil {
		delete(c.byBase, s.info.Base)
	}
	key := nameKey(s.info.Level, s.info.Name)
	if c.byName[key] == id {
		delete(c.byName, key)
	}
	if lvl, ok := c.levels[s.info.Level]; ok {
		delete(lvl, id)
		if len(lvl) == 0 {
			delete(c.levels, s.info.Level)
		}
	}
	s.live = false
	s.info = BaseInfo{}
	s.gen++
	c.free = append(c.free, id.slot)
}

// Compact remove entradas não referenciadas e as de níveis que não existem mais.
// Retorna os ids removidos que ainda estavam referenciados (o chamador deve
// reapontar essas instâncias para InvalidBaseId).
func (c *BaseCache) Compact(referenced map[BaseId]struct{}, liveLevel func(string) bool) []BaseId {
	var orphaned []BaseId
	for _, id := range c.ids() {
		s := c.slotOf(id)
		_, inUse := referenced[id]
		levelOK := liveLevel == nil || liveLevel(s.info.Level)
		if inUse && levelOK {
			continue
		}
		if inUse {
			orphaned = append(orphaned, id)
		}
		c.remove(id)
	}
	return orphaned
}

// LevelBases retorna os ids registrados para um nível, ordenados.
func (c *BaseCache) LevelBases(level string) []BaseId {
	out := make([]BaseId, 0, len(c.levels[level]))
	for id := range c.levels[level] {
		out = append(out, id)
	}
	sortIds(out)
	return out
}

// Len retorna o número de entradas vivas.
func (c *BaseCache) Len() int {
	n := 0
	for i := range c.slots {
		if c.slots[i].live {
			n++
		}
	}
	return n
}

func (c *BaseCache) ids() []BaseId {
	var out []BaseId
	for i := range c.slots {
		if c.slots[i].live {
			out = append(out, BaseId{slot: uint32(i + 1), gen: c.slots[i].gen})
		}
	}
	return out
}

// BaseEntry é a forma persistida de uma entrada do cache.
type BaseEntry struct {
	Id   BaseId
	Info BaseInfo
}

// Entries lista as entradas vivas em ordem de slot.
func (c *BaseCache) Entries() []BaseEntry {
	ids := c.ids()
	out := make([]BaseEntry, 0, len(ids))
	for _, id := range ids {
		out = append(out, BaseEntry{Id: id, Info: c.slots[id.slot-1].info})
	}
	return out
}

// DenseEntries lista as entradas vivas renumeradas nos slots 1..n, junto com o
// mapeamento dos ids atuais para os novos. Usado ao gravar.
func (c *BaseCache) DenseEntries() ([]BaseEntry, map[BaseId]BaseId) {
	entries := c.Entries()
	remap := make(map[BaseId]BaseId, len(entries))
	for i := range entries {
		id := BaseId{slot: uint32(i + 1), gen: entries[i].Id.gen}
		remap[entries[i].Id] = id
		entries[i].Id = id
	}
	return entries, remap
}

// Restore substitui o conteúdo do cache por entradas gravadas com DenseEntries,
// preservando os ids. Cada slot deve estar entre 1 e len(entries) e aparecer uma
// única vez; caso contrário retorna ErrCorruptArchive e o cache não muda.
// resolve pode ser nil; entradas sem base ficam pendentes até GetInstanceBaseId.
func (c *BaseCache) Restore(entries []BaseEntry, resolve func(level, name string) Base) error {
	fresh := NewBaseCache()
	fresh.slots = make([]baseSlot, len(entries))
	for _, e := range entries {
		if !e.Id.IsValid() || int(e.Id.slot) > len(entries) {
			return fmt.Errorf("%w: %s fora dos %d slots de base", ErrCorruptArchive, e.Id, len(entries))
		}
		slot := &fresh.slots[e.Id.slot-1]
		if slot.live {
			return fmt.Errorf("%w: slot de base %d repetido", ErrCorruptArchive, e.Id.slot)
		}
		info := e.Info
		if resolve != nil && info.Base == nil {
			info.Base = resolve(info.Level, info.Name)
		}
		*slot = baseSlot{gen: e.Id.gen, live: true, info: info}
		fresh.index(e.Id, info)
	}
	*c = *fresh
	return nil
}

// Clone copia o cache inteiro, incluindo os slots livres e suas gerações.
func (c *BaseCache) Clone() *BaseCache {
	out := &BaseCache{
		slots:  slices.Clone(c.slots),
		free:   slices.Clone(c.free),
		byBase: maps.Clone(c.byBase),
		byName: maps.Clone(c.byName),
		levels: make(map[string]map[BaseId]struct{}, len(c.levels)),
	}
	for level, ids := range c.levels {
		out.levels[level] = maps.Clone(ids)
	}
	return out
}

func sortIds(ids []BaseId) {
	sort.Slice(ids, func(i, j int) bool { return ids[i].Pack() < ids[j].Pack() })
}
