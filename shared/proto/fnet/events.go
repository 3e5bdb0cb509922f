package fnet

import (
	"FoliageForge/shared/foliage"
)

// Batch acumula eventos de mudança e os converte em envelopes.
// Remoções consecutivas do mesmo Store viram um único INSTANCES_REMOVED.
// Não é thread-safe: o servidor usa um Batch por comando aplicado.
type Batch struct {
	events []foliage.ChangeEvent
}

// StoreChanged implementa foliage.ChangeListener.
func (b *Batch) StoreChanged(ev foliage.ChangeEvent) {
	b.events = append(b.events, ev)
}

// Len retorna quantos eventos estão pendentes.
func (b *Batch) Len() int {
	return len(b.events)
}

// Flush devolve os envelopes serializados e esvazia o lote.
func (b *Batch) Flush() [][]byte {
	var out [][]byte
	var removed *InstancesRemoved

	flushRemoved := func() {
		if removed != nil {
			out = append(out, Wrap(MsgInstancesRemoved, removed))
			removed = nil
		}
	}

	for _, ev := range b.events {
		if ev.Kind == foliage.ChangeRemoved {
			if removed != nil && (removed.Level != ev.Level || removed.Type != ev.Type) {
				flushRemoved()
			}
			if removed == nil {
				removed = &InstancesRemoved{Level: ev.Level, Type: ev.Type}
			}
			removed.Indices = append(removed.Indices, ev.Index)
			continue
		}
		flushRemoved()

		switch ev.Kind {
		case foliage.ChangeAdded:
			out = append(out, Wrap(MsgInstanceAdded, &InstanceChange{Level: ev.Level, Type: ev.Type, Index: ev.Index, Instance: ev.Instance}))
		case foliage.ChangeUpdated:
			out = append(out, Wrap(MsgInstanceUpdated, &InstanceChange{Level: ev.Level, Type: ev.Type, Index: ev.Index, Instance: ev.Instance}))
		case foliage.ChangeCleared:
			out = append(out, Wrap(MsgStoreCleared, &StoreCleared{Level: ev.Level, Type: ev.Type}))
		}
	}
	flushRemoved()

	b.events = b.events[:0]
	return out
}
