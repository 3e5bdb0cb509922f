package foliage

import (
	"fmt"

	"FoliageForge/shared/util"
)

// InvariantError indica que os índices derivados divergem do array de instâncias.
type InvariantError struct {
	Store  string
	Check  string
	Detail string
}

func (e *InvariantError) Error() string {
	return fmt.Sprintf("foliage %s: invariante %q violada: %s", e.Store, e.Check, e.Detail)
}

// CheckValid percorre o array, o hash espacial, o hash de bases, a seleção e o
// componente de render e confere se concordam índice a índice.
// Usado em testes e depuração; não é chamado pelas operações normais.
func (s *Store) CheckValid() error {
	fail := func(check, format string, args ...any) error {
		return &InvariantError{Store: s.String(), Check: check, Detail: fmt.Sprintf(format, args...)}
	}
	n := len(s.instances)

	for i := range s.instances {
		inst := &s.instances[i]
		if !s.hash.Contains(inst.Location, i) {
			return fail("spatial-hash", "instância %d ausente da célula de %s", i, util.FormatVec(inst.Location))
		}
		set, ok := s.componentHash[inst.BaseId]
		if !ok {
			return fail("component-hash", "sem entrada para %s (instância %d)", inst.BaseId, i)
		}
		if _, ok := set[i]; !ok {
			return fail("component-hash", "instância %d ausente de %s", i, inst.BaseId)
		}
	}

	occ := s.hash.occurrences()
	if len(occ) != n {
		return fail("spatial-hash", "%d índices distintos para %d instâncias", len(occ), n)
	}
	for idx, count := range occ {
		if idx < 0 || idx >= n {
			return fail("spatial-hash", "índice %d fora do intervalo", idx)
		}
		if count != 1 {
			return fail("spatial-hash", "índice %d aparece %d vezes", idx, count)
		}
	}

	total := 0
	for id, set := range s.componentHash {
		if len(set) == 0 {
			return fail("component-hash", "conjunto vazio para %s", id)
		}
		for idx := range set {
			if idx < 0 || idx >= n {
				return fail("component-hash", "índice %d fora do intervalo em %s", idx, id)
			}
			if s.instances[idx].BaseId != id {
				return fail("component-hash", "instância %d tem %s mas está em %s", idx, s.instances[idx].BaseId, id)
			}
		}
		total += len(set)
	}
	if total != n {
		return fail("component-hash", "%d entradas para %d instâncias", total, n)
	}

	for idx := range s.selected {
		if idx < 0 || idx >= n {
			return fail("selection", "índice selecionado %d fora do intervalo", idx)
		}
	}

	if s.component == nil {
		if n > 0 {
			return fail("component", "%d instâncias sem componente de render", n)
		}
	} else if c := s.component.InstanceCount(); c != n {
		return fail("component", "componente tem %d instâncias, store tem %d", c, n)
	}
	return nil
}
