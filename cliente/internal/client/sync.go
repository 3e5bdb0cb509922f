package client

import (
	"errors"
	"fmt"
	"log"

	"FoliageForge/shared/proto/fnet"
)

// Sync aplica os frames do servidor numa réplica. Depois de uma divergência,
// descarta tudo até o próximo snapshot.
type Sync struct {
	Replica *fnet.Replica

	WorldName string
	Status    string
	// Instances é o total informado pelo servidor no último SERVER_STATUS.
	Instances int64

	Synced  bool
	waiting bool
	Applied int
	Dropped int
}

func NewSync(r *fnet.Replica) *Sync {
	return &Sync{Replica: r, waiting: true}
}

// Pump aplica os frames em ordem. Um erro de divergência interrompe o lote;
// o chamador deve reconectar para receber um novo snapshot.
func (s *Sync) Pump(frames [][]byte) error {
	for _, data := range frames {
		var env fnet.Envelope
		if err := env.Unmarshal(data); err != nil {
			log.Printf("[Sync] Frame ilegível descartado: %v", err)
			s.Dropped++
			continue
		}

		switch env.Type {
		case fnet.MsgServerStatus:
			var st fnet.ServerStatus
			if err := st.Unmarshal(env.Payload); err != nil {
				return err
			}
			s.WorldName, s.Status, s.Instances = st.WorldName, st.Message, st.Instances
			continue
		case fnet.MsgSnapshot:
			s.waiting = false
		default:
			if s.waiting {
				s.Dropped++
				continue
			}
		}

		if _, err := s.Replica.Apply(data); err != nil {
			if errors.Is(err, fnet.ErrDesync) {
				s.waiting = true
				s.Synced = false
			}
			return fmt.Errorf("%v: %w", env.Type, err)
		}
		s.Applied++
		if env.Type == fnet.MsgSnapshot {
			s.Synced = true
			log.Printf("[Sync] Snapshot aplicado: %d instâncias", s.InstanceCount())
		}
	}
	return nil
}

// Reset volta a esperar um snapshot (por exemplo, após reconectar).
func (s *Sync) Reset() {
	s.waiting = true
	s.Synced = false
}

// InstanceCount soma as instâncias da réplica.
func (s *Sync) InstanceCount() int {
	n := 0
	for _, a := range s.Replica.World.Actors() {
		for _, st := range a.Stores() {
			n += st.Len()
		}
	}
	return n
}
