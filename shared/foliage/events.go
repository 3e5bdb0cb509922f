package foliage

// ChangeKind identifica o tipo de mudança num Store.
type ChangeKind int

const (
	ChangeAdded ChangeKind = iota
	ChangeRemoved
	ChangeUpdated
	ChangeCleared
)

func (k ChangeKind) String() string {
	switch k {
	case ChangeAdded:
		return "added"
	case ChangeRemoved:
		return "removed"
	case ChangeUpdated:
		return "updated"
	case ChangeCleared:
		return "cleared"
	}
	return "unknown"
}

// ChangeEvent descreve uma mutação aplicada a um Store.
// Remoções são emitidas uma a uma na ordem em que foram executadas
// (remoção com troca pelo último), então reaplicá-las em sequência numa
// réplica produz o mesmo array.
type ChangeEvent struct {
	Kind     ChangeKind
	Level    string
	Type     string
	Index    int
	Instance Instance // Added/Updated
}

// ChangeListener recebe eventos de mutação. É chamado dentro da mutação:
// alterar o mesmo Store a partir do listener dispara pânico de re-entrada.
type ChangeListener interface {
	StoreChanged(ev ChangeEvent)
}

// ChangeListenerFunc adapta uma função a ChangeListener.
type ChangeListenerFunc func(ev ChangeEvent)

func (f ChangeListenerFunc) StoreChanged(ev ChangeEvent) {
	f(ev)
}
