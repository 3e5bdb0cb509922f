// Package fnet define o protocolo entre o servidor FoliageForge e os clientes.
// Toda mensagem trafega dentro de um Envelope, em formato protobuf escrito à mão
// sobre shared/pkg/protowire.
package fnet

import (
	"encoding/json"
	"fmt"

	"FoliageForge/shared/foliage"
	"FoliageForge/shared/pkg/protowire"
	"FoliageForge/shared/util"
)

// MessageType identifica o conteúdo do Envelope.
type MessageType int32

const (
	MsgUnknown MessageType = iota
	MsgServerStatus
	MsgSnapshot
	MsgInstanceAdded
	MsgInstancesRemoved
	MsgInstanceUpdated
	MsgStoreCleared
	MsgPaintRequest
	MsgEraseRequest
	MsgPing
	MsgPong
)

func (t MessageType) String() string {
	switch t {
	case MsgServerStatus:
		return "SERVER_STATUS"
	case MsgSnapshot:
		return "SNAPSHOT"
	case MsgInstanceAdded:
		return "INSTANCE_ADDED"
	case MsgInstancesRemoved:
		return "INSTANCES_REMOVED"
	case MsgInstanceUpdated:
		return "INSTANCE_UPDATED"
	case MsgStoreCleared:
		return "STORE_CLEARED"
	case MsgPaintRequest:
		return "PAINT_REQUEST"
	case MsgEraseRequest:
		return "ERASE_REQUEST"
	case MsgPing:
		return "PING"
	case MsgPong:
		return "PONG"
	}
	return "UNKNOWN"
}

// Envelope embrulha uma mensagem com o seu tipo.
type Envelope struct {
	Type    MessageType
	Payload []byte
}

func (m *Envelope) Marshal() []byte {
	e := protowire.NewEncoder()
	e.EncodeVarint(1, int64(m.Type))
	e.EncodeBytes(2, m.Payload)
	return e.Bytes()
}

func (m *Envelope) Unmarshal(data []byte) error {
	d := protowire.NewDecoder(data)
	for !d.Done() {
		fieldNum, wireType, err := d.ReadTag()
		if err != nil {
			return err
		}
		switch fieldNum {
		case 1:
			v, err := d.ReadVarint()
			if err != nil {
				return err
			}
			m.Type = MessageType(v)
		case 2:
			b, err := d.ReadBytes()
			if err != nil {
				return err
			}
			m.Payload = b
		default:
			if err := d.SkipField(fieldNum, wireType); err != nil {
				return err
			}
		}
	}
	return nil
}

// Message é implementada por todas as mensagens do protocolo.
type Message interface {
	Marshal() []byte
	Unmarshal(data []byte) error
}

// Wrap monta o Envelope serializado de uma mensagem. msg pode ser nil (PING/PONG).
func Wrap(t MessageType, msg Message) []byte {
	env := Envelope{Type: t}
	if msg != nil {
		env.Payload = msg.Marshal()
	}
	return env.Marshal()
}

// ServerStatus é enviado na conexão e quando o estado do servidor muda.
type ServerStatus struct {
	WorldName string
	Message   string
	Instances int64
}

func (m *ServerStatus) Marshal() []byte {
	e := protowire.NewEncoder()
	e.EncodeString(1, m.WorldName)
	e.EncodeString(2, m.Message)
	e.EncodeVarint(3, m.Instances)
	return e.Bytes()
}

func (m *ServerStatus) Unmarshal(data []byte) error {
	d := protowire.NewDecoder(data)
	for !d.Done() {
		fieldNum, wireType, err := d.ReadTag()
		if err != nil {
			return err
		}
		switch fieldNum {
		case 1:
			m.WorldName, err = d.ReadString()
		case 2:
			m.Message, err = d.ReadString()
		case 3:
			m.Instances, err = d.ReadVarint()
		default:
			err = d.SkipField(fieldNum, wireType)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

// TypeDefinition transporta as configurações de um FoliageType em JSON.
type TypeDefinition struct {
	Name     string
	Settings []byte
}

// NewTypeDefinition serializa o tipo.
func NewTypeDefinition(ft *foliage.FoliageType) (TypeDefinition, error) {
	b, err := json.Marshal(ft)
	if err != nil {
		return TypeDefinition{}, fmt.Errorf("tipo %q: %w", ft.Name, err)
	}
	return TypeDefinition{Name: ft.Name, Settings: b}, nil
}

// FoliageType reconstrói o tipo a partir das configurações.
func (m *TypeDefinition) FoliageType() (*foliage.FoliageType, error) {
	ft := foliage.NewFoliageType(m.Name, "", foliage.TypeAsset)
	if err := json.Unmarshal(m.Settings, ft); err != nil {
		return nil, fmt.Errorf("tipo %q: %w", m.Name, err)
	}
	ft.Name = m.Name
	return ft, nil
}

func (m *TypeDefinition) Marshal() []byte {
	e := protowire.NewEncoder()
	e.EncodeString(1, m.Name)
	e.EncodeBytes(2, m.Settings)
	return e.Bytes()
}

func (m *TypeDefinition) Unmarshal(data []byte) error {
	d := protowire.NewDecoder(data)
	for !d.Done() {
		fieldNum, wireType, err := d.ReadTag()
		if err != nil {
			return err
		}
		switch fieldNum {
		case 1:
			m.Name, err = d.ReadString()
		case 2:
			m.Settings, err = d.ReadBytes()
		default:
			err = d.SkipField(fieldNum, wireType)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

// Snapshot é o estado completo do mundo: tipos e um arquivo binário por ator.
type Snapshot struct {
	Types  []TypeDefinition
	Actors [][]byte
}

func (m *Snapshot) Marshal() []byte {
	e := protowire.NewEncoder()
	for i := range m.Types {
		e.EncodeSubmessage(1, m.Types[i].Marshal())
	}
	for _, a := range m.Actors {
		e.EncodeSubmessage(2, a)
	}
	return e.Bytes()
}

func (m *Snapshot) Unmarshal(data []byte) error {
	d := protowire.NewDecoder(data)
	for !d.Done() {
		fieldNum, wireType, err := d.ReadTag()
		if err != nil {
			return err
		}
		switch fieldNum {
		case 1:
			b, err := d.ReadBytes()
			if err != nil {
				return err
			}
			var td TypeDefinition
			if err := td.Unmarshal(b); err != nil {
				return err
			}
			m.Types = append(m.Types, td)
		case 2:
			b, err := d.ReadBytes()
			if err != nil {
				return err
			}
			m.Actors = append(m.Actors, b)
		default:
			if err := d.SkipField(fieldNum, wireType); err != nil {
				return err
			}
		}
	}
	return nil
}

// InstanceChange é uma instância adicionada ou atualizada em Index.
type InstanceChange struct {
	Level    string
	Type     string
	Index    int
	Instance foliage.Instance
}

func (m *InstanceChange) Marshal() []byte {
	e := protowire.NewEncoder()
	e.EncodeString(1, m.Level)
	e.EncodeString(2, m.Type)
	e.EncodeVarint(3, int64(m.Index))
	e.EncodeSubmessage(4, foliage.EncodeInstance(m.Instance))
	return e.Bytes()
}

func (m *InstanceChange) Unmarshal(data []byte) error {
	d := protowire.NewDecoder(data)
	for !d.Done() {
		fieldNum, wireType, err := d.ReadTag()
		if err != nil {
			return err
		}
		switch fieldNum {
		case 1:
			m.Level, err = d.ReadString()
		case 2:
			m.Type, err = d.ReadString()
		case 3:
			var v int64
			v, err = d.ReadVarint()
			m.Index = int(v)
		case 4:
			var b []byte
			if b, err = d.ReadBytes(); err == nil {
				m.Instance, err = foliage.DecodeInstance(b)
			}
		default:
			err = d.SkipField(fieldNum, wireType)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

// InstancesRemoved lista remoções na ordem em que o servidor as executou.
// Cada índice é removido com troca pelo último antes do próximo.
type InstancesRemoved struct {
	Level   string
	Type    string
	Indices []int
}

func (m *InstancesRemoved) Marshal() []byte {
	e := protowire.NewEncoder()
	e.EncodeString(1, m.Level)
	e.EncodeString(2, m.Type)
	packed := make([]int64, len(m.Indices))
	for i, idx := range m.Indices {
		packed[i] = int64(idx)
	}
	e.EncodePackedVarint(3, packed)
	return e.Bytes()
}

func (m *InstancesRemoved) Unmarshal(data []byte) error {
	d := protowire.NewDecoder(data)
	for !d.Done() {
		fieldNum, wireType, err := d.ReadTag()
		if err != nil {
			return err
		}
		switch fieldNum {
		case 1:
			m.Level, err = d.ReadString()
		case 2:
			m.Type, err = d.ReadString()
		case 3:
			var packed []int64
			if packed, err = d.ReadPackedVarint(); err == nil {
				for _, v := range packed {
					m.Indices = append(m.Indices, int(v))
				}
			}
		default:
			err = d.SkipField(fieldNum, wireType)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

// StoreCleared indica que o Store perdeu todas as instâncias.
type StoreCleared struct {
	Level string
	Type  string
}

func (m *StoreCleared) Marshal() []byte {
	e := protowire.NewEncoder()
	e.EncodeString(1, m.Level)
	e.EncodeString(2, m.Type)
	return e.Bytes()
}

func (m *StoreCleared) Unmarshal(data []byte) error {
	d := protowire.NewDecoder(data)
	for !d.Done() {
		fieldNum, wireType, err := d.ReadTag()
		if err != nil {
			return err
		}
		switch fieldNum {
		case 1:
			m.Level, err = d.ReadString()
		case 2:
			m.Type, err = d.ReadString()
		default:
			err = d.SkipField(fieldNum, wireType)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

// BrushRequest é um pedido de pintura (PAINT_REQUEST) ou apagamento (ERASE_REQUEST).
// Count só vale para pintura; zero usa a contagem derivada da densidade do tipo.
type BrushRequest struct {
	Type     string
	Center   util.Vec3
	Radius   float64
	Pressure float64
	Count    int
}

func (m *BrushRequest) Marshal() []byte {
	e := protowire.NewEncoder()
	e.EncodeString(1, m.Type)
	e.EncodePackedDouble(2, m.Center[:])
	e.EncodeDouble(3, m.Radius)
	e.EncodeDouble(4, m.Pressure)
	e.EncodeVarint(5, int64(m.Count))
	return e.Bytes()
}

func (m *BrushRequest) Unmarshal(data []byte) error {
	d := protowire.NewDecoder(data)
	for !d.Done() {
		fieldNum, wireType, err := d.ReadTag()
		if err != nil {
			return err
		}
		switch fieldNum {
		case 1:
			m.Type, err = d.ReadString()
		case 2:
			var f []float64
			if f, err = d.ReadPackedDouble(); err == nil {
				if len(f) != 3 {
					return fmt.Errorf("centro com %d componentes", len(f))
				}
				m.Center = util.Vec3{f[0], f[1], f[2]}
			}
		case 3:
			m.Radius, err = d.ReadDouble()
		case 4:
			m.Pressure, err = d.ReadDouble()
		case 5:
			var v int64
			v, err = d.ReadVarint()
			m.Count = int(v)
		default:
			err = d.SkipField(fieldNum, wireType)
		}
		if err != nil {
			return err
		}
	}
	return nil
}
