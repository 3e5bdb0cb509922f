package util

import (
	"fmt"
	"sync/atomic"
)

// ReentryGuard detecta mutações re-entrantes numa estrutura de thread única.
// Diferente de um lock, não espera: uma segunda entrada enquanto a primeira
// ainda está ativa é um erro de programação e dispara pânico.
type ReentryGuard struct {
	state int32
	owner atomic.Value // string com a operação ativa
}

// ReentryError é o valor do pânico disparado pelo guard.
type ReentryError struct {
	Active    string
	Attempted string
}

func (e *ReentryError) Error() string {
	return fmt.Sprintf("mutação re-entrante: %s chamada durante %s", e.Attempted, e.Active)
}

// Enter marca o início de uma operação. Retorna a função que libera o guard.
//
//	defer g.Enter("AddInstance")()
func (g *ReentryGuard) Enter(op string) func() {
	if !atomic.CompareAndSwapInt32(&g.state, 0, 1) {
		active, _ := g.owner.Load().(string)
		panic(&ReentryError{Active: active, Attempted: op})
	}
	g.owner.Store(op)
	return g.exit
}

func (g *ReentryGuard) exit() {
	g.owner.Store("")
	atomic.StoreInt32(&g.state, 0)
}

// Active retorna true enquanto alguma operação está em andamento.
func (g *ReentryGuard) Active() bool {
	return atomic.LoadInt32(&g.state) == 1
}
