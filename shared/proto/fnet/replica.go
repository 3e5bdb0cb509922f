package fnet

import (
	"errors"
	"fmt"
	"sort"

	"FoliageForge/shared/foliage"
)

// ErrDesync indica que a réplica divergiu do servidor e precisa de um novo snapshot.
var ErrDesync = errors.New("réplica fora de sincronia")

// Replica espelha o mundo do servidor aplicando as mensagens recebidas.
// Os componentes de render vêm de cfg.Factory, então o cliente desenha a
// réplica com os mesmos índices que o servidor usa.
type Replica struct {
	World *foliage.World

	cfg       foliage.ActorConfig
	types     map[string]*foliage.FoliageType
	listeners []foliage.ChangeListener
}

// NewReplica cria uma réplica vazia.
func NewReplica(cfg foliage.ActorConfig) *Replica {
	return &Replica{
		World: foliage.NewWorld(cfg, nil),
		cfg:   cfg,
		types: make(map[string]*foliage.FoliageType),
	}
}

// AddListener registra um observador que sobrevive à troca de snapshot.
func (r *Replica) AddListener(l foliage.ChangeListener) {
	r.listeners = append(r.listeners, l)
	r.World.AddListener(l)
}

// FoliageType retorna o tipo recebido com o nome dado.
func (r *Replica) FoliageType(name string) *foliage.FoliageType {
	return r.types[name]
}

// TypeNames retorna os nomes dos tipos recebidos, em ordem.
func (r *Replica) TypeNames() []string {
	names := make([]string, 0, len(r.types))
	for name := range r.types {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ApplySnapshot descarta o mundo atual e carrega o snapshot.
func (r *Replica) ApplySnapshot(s *Snapshot) error {
	for _, a := range r.World.Actors() {
		for _, st := range a.Stores() {
			st.Destroy()
		}
	}

	types := make(map[string]*foliage.FoliageType, len(s.Types))
	for i := range s.Types {
		ft, err := s.Types[i].FoliageType()
		if err != nil {
			return err
		}
		types[ft.Name] = ft
	}

	world := foliage.NewWorld(r.cfg, nil)
	for _, l := range r.listeners {
		world.AddListener(l)
	}
	opts := foliage.LoadOptions{
		Config: r.cfg,
		Types:  func(name string) *foliage.FoliageType { return types[name] },
	}
	for _, data := range s.Actors {
		a, err := foliage.UnmarshalActor(data, opts)
		if err != nil {
			return fmt.Errorf("snapshot: %w", err)
		}
		world.RegisterLoadedActor(a)
	}
	world.PostLoad()

	r.World = world
	r.types = types
	return nil
}

// Apply decodifica um envelope e aplica a mensagem.
// Retorna o tipo da mensagem para que o chamador trate as que não mexem no mundo.
func (r *Replica) Apply(data []byte) (MessageType, error) {
	var env Envelope
	if err := env.Unmarshal(data); err != nil {
		return MsgUnknown, fmt.Errorf("envelope: %w", err)
	}

	switch env.Type {
	case MsgSnapshot:
		var s Snapshot
		if err := s.Unmarshal(env.Payload); err != nil {
			return env.Type, err
		}
		return env.Type, r.ApplySnapshot(&s)

	case MsgInstanceAdded:
		var m InstanceChange
		if err := m.Unmarshal(env.Payload); err != nil {
			return env.Type, err
		}
		st, err := r.store(m.Level, m.Type, true)
		if err != nil {
			return env.Type, err
		}
		if idx := st.AddInstance(m.Instance, true); idx != m.Index {
			return env.Type, fmt.Errorf("%w: %s adicionou em %d, servidor em %d", ErrDesync, st, idx, m.Index)
		}

	case MsgInstanceUpdated:
		var m InstanceChange
		if err := m.Unmarshal(env.Payload); err != nil {
			return env.Type, err
		}
		st, err := r.store(m.Level, m.Type, false)
		if err != nil {
			return env.Type, err
		}
		if m.Index < 0 || m.Index >= st.Len() {
			return env.Type, fmt.Errorf("%w: %s não tem índice %d", ErrDesync, st, m.Index)
		}
		st.MoveInstances([]int{m.Index}, func(_ int, inst *foliage.Instance) {
			*inst = m.Instance
		})

	case MsgInstancesRemoved:
		var m InstancesRemoved
		if err := m.Unmarshal(env.Payload); err != nil {
			return env.Type, err
		}
		st, err := r.store(m.Level, m.Type, false)
		if err != nil {
			return env.Type, err
		}
		// Uma remoção por vez reproduz as trocas na mesma ordem do servidor.
		for _, idx := range m.Indices {
			if idx < 0 || idx >= st.Len() {
				return env.Type, fmt.Errorf("%w: %s não tem índice %d", ErrDesync, st, idx)
			}
			st.RemoveInstances([]int{idx}, false)
		}
		if c := st.Component(); c != nil {
			c.BuildTreeIfOutdated(true, false)
		}

	case MsgStoreCleared:
		var m StoreCleared
		if err := m.Unmarshal(env.Payload); err != nil {
			return env.Type, err
		}
		if st, err := r.store(m.Level, m.Type, false); err == nil {
			st.Destroy()
		}
	}
	return env.Type, nil
}

func (r *Replica) store(level, typeName string, create bool) (*foliage.Store, error) {
	ft := r.types[typeName]
	if ft == nil {
		return nil, fmt.Errorf("%w: tipo desconhecido %q", ErrDesync, typeName)
	}
	a := r.World.ActorForLevel(level, create)
	if a == nil {
		return nil, fmt.Errorf("%w: nível desconhecido %q", ErrDesync, level)
	}
	if create {
		return a.FindOrAddMesh(ft), nil
	}
	st := a.FindStore(ft)
	if st == nil {
		return nil, fmt.Errorf("%w: %s sem store para %q", ErrDesync, level, typeName)
	}
	return st, nil
}
