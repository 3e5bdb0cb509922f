package util

import (
	"reflect"
	"sync"
	"testing"
)

func TestUniqueQueueKeepsFirstPosition(t *testing.T) {
	q := NewUniqueQueue[string, int]()
	if !q.Enqueue("a", 1) || !q.Enqueue("b", 2) {
		t.Fatal("chaves novas devem retornar true")
	}
	if q.Enqueue("a", 3) {
		t.Error("chave repetida deve retornar false")
	}
	if q.Len() != 2 {
		t.Fatalf("Len = %d, want 2", q.Len())
	}

	k, v, ok := q.Dequeue()
	if !ok || k != "a" || v != 3 {
		t.Errorf("Dequeue = (%q, %d, %v), want (a, 3, true)", k, v, ok)
	}
	if q.Contains("a") {
		t.Error("a ainda consta após Dequeue")
	}

	// Após o Dequeue as posições precisam continuar válidas.
	q.Enqueue("b", 5)
	q.Enqueue("c", 6)
	if got := q.Drain(); !reflect.DeepEqual(got, []string{"b", "c"}) {
		t.Errorf("Drain = %v, want [b c]", got)
	}
	if q.Len() != 0 {
		t.Errorf("Len após Drain = %d", q.Len())
	}
	if _, _, ok := q.Dequeue(); ok {
		t.Error("Dequeue em fila vazia deve retornar false")
	}
}

func TestThreadSafeQueuePopAll(t *testing.T) {
	q := NewThreadSafeQueue[int]()
	var wg sync.WaitGroup
	for w := 0; w < 4; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				q.Push(i)
			}
		}()
	}
	wg.Wait()

	if got := len(q.PopAll()); got != 400 {
		t.Errorf("PopAll retornou %d itens, want 400", got)
	}
	if q.Len() != 0 {
		t.Errorf("Len = %d após PopAll", q.Len())
	}

	q.Push(7)
	if v, ok := q.Pop(); !ok || v != 7 {
		t.Errorf("Pop = (%d, %v), want (7, true)", v, ok)
	}
}
