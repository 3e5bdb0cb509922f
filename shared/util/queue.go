package util

import "sync"

// UniqueQueue é uma fila thread-safe com uma entrada por chave.
// O servidor enfileira aqui os níveis alterados até o próximo salvamento;
// alterar o mesmo nível de novo só atualiza o valor.
type UniqueQueue[K comparable, V any] struct {
	mu    sync.Mutex
	items []entry[K, V]
	pos   map[K]int
}

type entry[K comparable, V any] struct {
	Key   K
	Value V
}

// NewUniqueQueue cria uma nova UniqueQueue.
func NewUniqueQueue[K comparable, V any]() *UniqueQueue[K, V] {
	return &UniqueQueue[K, V]{
		items: make([]entry[K, V], 0, 16),
		pos:   make(map[K]int),
	}
}

// Enqueue adiciona a chave ao fim da fila ou atualiza o valor se ela já estiver lá.
// Retorna true quando a chave é nova.
func (q *UniqueQueue[K, V]) Enqueue(key K, value V) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if i, ok := q.pos[key]; ok {
		q.items[i].Value = value
		return false
	}
	q.pos[key] = len(q.items)
	q.items = append(q.items, entry[K, V]{Key: key, Value: value})
	return true
}

// Dequeue remove e retorna o primeiro item.
func (q *UniqueQueue[K, V]) Dequeue() (K, V, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.items) == 0 {
		var zeroK K
		var zeroV V
		return zeroK, zeroV, false
	}

	e := q.items[0]
	q.items = q.items[1:]
	delete(q.pos, e.Key)
	for k, i := range q.pos {
		q.pos[k] = i - 1
	}
	return e.Key, e.Value, true
}

// Drain esvazia a fila e retorna as chaves na ordem de chegada.
func (q *UniqueQueue[K, V]) Drain() []K {
	q.mu.Lock()
	defer q.mu.Unlock()

	keys := make([]K, len(q.items))
	for i, e := range q.items {
		keys[i] = e.Key
	}
	q.items = q.items[:0]
	q.pos = make(map[K]int)
	return keys
}

// Len retorna o número de itens na fila.
func (q *UniqueQueue[K, V]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Contains verifica se uma chave está na fila.
func (q *UniqueQueue[K, V]) Contains(key K) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	_, ok := q.pos[key]
	return ok
}

// ThreadSafeQueue é uma fila simples thread-safe (sem unicidade).
// O cliente empurra mensagens da rede aqui e a thread de render as aplica.
type ThreadSafeQueue[T any] struct {
	mu    sync.Mutex
	items []T
}

// NewThreadSafeQueue cria uma nova fila thread-safe.
func NewThreadSafeQueue[T any]() *ThreadSafeQueue[T] {
	return &ThreadSafeQueue[T]{
		items: make([]T, 0, 64),
	}
}

// Push adiciona um item ao fim da fila.
func (q *ThreadSafeQueue[T]) Push(item T) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.items = append(q.items, item)
}

// Pop remove e retorna o primeiro item. Retorna false se vazia.
func (q *ThreadSafeQueue[T]) Pop() (T, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.items) == 0 {
		var zero T
		return zero, false
	}
	item := q.items[0]
	q.items = q.items[1:]
	return item, true
}

// PopAll retira todos os itens de uma vez, na ordem de chegada.
func (q *ThreadSafeQueue[T]) PopAll() []T {
	q.mu.Lock()
	defer q.mu.Unlock()
	items := q.items
	q.items = make([]T, 0, 64)
	return items
}

// Len retorna o tamanho da fila.
func (q *ThreadSafeQueue[T]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}
