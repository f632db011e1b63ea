package backup

import (
	"context"
	"sync"
	"time"
)

type record struct {
	hash      string
	createdAt time.Time
	usedAt    *time.Time
}

// MemoryStore es un Store in-process para desarrollo y tests.
type MemoryStore struct {
	mu    sync.Mutex
	codes map[string][]*record
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{codes: make(map[string][]*record)}
}

func (m *MemoryStore) ReplaceUnused(_ context.Context, accountID string, hashes []string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	// retener los usados, descartar los sin usar
	kept := m.codes[accountID][:0]
	for _, r := range m.codes[accountID] {
		if r.usedAt != nil {
			kept = append(kept, r)
		}
	}
	for _, h := range hashes {
		kept = append(kept, &record{hash: h, createdAt: at})
	}
	m.codes[accountID] = kept
	return nil
}

func (m *MemoryStore) ListUnused(_ context.Context, accountID string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []string
	for _, r := range m.codes[accountID] {
		if r.usedAt == nil {
			out = append(out, r.hash)
		}
	}
	return out, nil
}

func (m *MemoryStore) ConsumeCode(_ context.Context, accountID, hash string, at time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.codes[accountID] {
		if r.hash == hash && r.usedAt == nil {
			t := at
			r.usedAt = &t
			return true, nil
		}
	}
	return false, nil
}

func (m *MemoryStore) CountUnused(_ context.Context, accountID string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, r := range m.codes[accountID] {
		if r.usedAt == nil {
			n++
		}
	}
	return n, nil
}
