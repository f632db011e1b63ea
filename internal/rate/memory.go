package rate

import (
	"context"
	"sync"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// MemoryStore es el backing store in-process. Los lockouts viven en un
// go-cache con TTL igual a su duración, así expiran solos.
type MemoryStore struct {
	mu       sync.Mutex
	attempts map[string][]time.Time
	fails    map[string]int
	lockouts *gocache.Cache
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		attempts: make(map[string][]time.Time),
		fails:    make(map[string]int),
		lockouts: gocache.New(gocache.NoExpiration, time.Minute),
	}
}

func (m *MemoryStore) AppendAttempt(_ context.Context, a Attempt) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.attempts[a.Identifier] = append(m.attempts[a.Identifier], a.At)
	if a.Success {
		m.fails[a.Account] = 0
		return 0, nil
	}
	m.fails[a.Account]++
	return m.fails[a.Account], nil
}

func (m *MemoryStore) CountSince(_ context.Context, identifier string, since time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	pruned := prune(m.attempts[identifier], since)
	if len(pruned) == 0 {
		delete(m.attempts, identifier)
	} else {
		m.attempts[identifier] = pruned
	}
	return len(pruned), nil
}

func (m *MemoryStore) OldestSince(_ context.Context, identifier string, since time.Time) (time.Time, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	pruned := prune(m.attempts[identifier], since)
	if len(pruned) == 0 {
		return time.Time{}, false, nil
	}
	return pruned[0], true, nil
}

func (m *MemoryStore) ClearAttempts(_ context.Context, identifier string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.attempts, identifier)
	return nil
}

func (m *MemoryStore) SetLockout(_ context.Context, account string, until time.Time) error {
	m.lockouts.Set(account, until, time.Until(until))
	return nil
}

func (m *MemoryStore) GetLockout(_ context.Context, account string) (time.Time, bool, error) {
	v, ok := m.lockouts.Get(account)
	if !ok {
		return time.Time{}, false, nil
	}
	until, _ := v.(time.Time)
	return until, true, nil
}

func (m *MemoryStore) ClearLockout(_ context.Context, account string) error {
	m.lockouts.Delete(account)
	m.mu.Lock()
	delete(m.fails, account)
	m.mu.Unlock()
	return nil
}

// prune descarta timestamps anteriores a `since` (ventana deslizante).
func prune(ts []time.Time, since time.Time) []time.Time {
	out := ts[:0]
	for _, t := range ts {
		if !t.Before(since) {
			out = append(out, t)
		}
	}
	return out
}
