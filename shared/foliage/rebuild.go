package foliage

import (
	"log"

	"FoliageForge/shared/util"
)

// MapRebuild reencontra a base das instâncias apoiadas no BSP do nível depois
// de um rebuild, que recria esses componentes. Cada instância é testada com um
// trace vertical pela sua posição; as que acertam um novo componente de BSP
// são migradas e as demais são descartadas. BSP de brushes sobrevive ao
// rebuild e não é tocado.
func (a *Actor) MapRebuild() {
	if a.world == nil || a.world.tracer == nil {
		return
	}
	tracer := a.world.tracer

	type pending struct {
		ft        *FoliageType
		instances []Instance
	}
	var migrated []pending
	var removedBases []Base
	seen := make(map[BaseId]bool)

	for _, st := range a.Stores() {
		var keep []Instance
		for _, id := range st.BaseIds() {
			base, ok := a.BaseCache.GetInstanceBase(id)
			if !ok || base.BaseKind() != BaseModel {
				continue
			}
			if !seen[id] {
				seen[id] = true
				removedBases = append(removedBases, base)
			}
			for _, i := range st.InstancesForBase(id) {
				inst := st.instances[i]
				wt := inst.WorldTransform()
				start := wt.TransformPosition(util.UpVector)
				end := wt.TransformPosition(util.UpVector.Mul(-1))
				hit, ok := tracer.LineTrace(start, end)
				if !ok || hit.Base == nil || hit.Base.BaseKind() != BaseModel {
					continue
				}
				inst.BaseId = a.BaseCache.AddInstanceBaseId(hit.Base)
				keep = append(keep, inst)
			}
		}
		if len(keep) > 0 {
			migrated = append(migrated, pending{ft: st.ft, instances: keep})
		}
	}

	for _, base := range removedBases {
		a.DeleteInstancesForComponent(base, nil)
	}

	total := 0
	for _, m := range migrated {
		st := a.FindOrAddMesh(m.ft)
		for _, inst := range m.instances {
			st.AddInstance(inst, true)
		}
		total += len(m.instances)
	}
	if len(removedBases) > 0 {
		log.Printf("[Foliage] %s: rebuild do mapa migrou %d instâncias de %d componentes de BSP", a.Level, total, len(removedBases))
	}
}
