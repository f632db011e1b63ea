package audit

import (
	"context"
	"sync"
)

// MemoryStore es un ring buffer en memoria; suficiente para una instancia
// única y para tests. Para retención real usar el store Postgres.
type MemoryStore struct {
	mu     sync.Mutex
	events []Event
	next   int
	full   bool
}

func NewMemoryStore(capacity int) *MemoryStore {
	if capacity <= 0 {
		capacity = 1000
	}
	return &MemoryStore{events: make([]Event, capacity)}
}

func (m *MemoryStore) Append(_ context.Context, ev Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events[m.next] = ev
	m.next++
	if m.next == len(m.events) {
		m.next = 0
		m.full = true
	}
	return nil
}

func (m *MemoryStore) Recent(_ context.Context, n int) ([]Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	size := m.next
	if m.full {
		size = len(m.events)
	}
	if n > size {
		n = size
	}
	out := make([]Event, 0, n)
	// recorrer hacia atrás desde la última escritura
	idx := m.next - 1
	for i := 0; i < n; i++ {
		if idx < 0 {
			idx = len(m.events) - 1
		}
		out = append(out, m.events[idx])
		idx--
	}
	return out, nil
}
