// ABOUTME: In-process Store implementation used when Redis is unreachable
// ABOUTME: Expiry is lazy - deadlines are checked on access, never by a background sweeper

package kv

import (
	"context"
	"sync"
	"time"
)

// memEntry holds either a scalar or a list, with an optional expiry deadline.
type memEntry struct {
	val      string
	list     []string
	isList   bool
	deadline time.Time // zero means no expiry
}

func (e *memEntry) expired(now time.Time) bool {
	return !e.deadline.IsZero() && now.After(e.deadline)
}

// MemoryStore is a process-local Store. It has no cross-process visibility
// and best-effort expiry: deadlines are evaluated on each access, which
// matches the lazy TTL semantics the session state machine depends on.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]*memEntry
}

// NewMemoryStore creates an empty in-process store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: make(map[string]*memEntry)}
}

// live returns the entry for key, dropping it first if its deadline passed.
// Must be called with mu held.
func (m *MemoryStore) live(key string) *memEntry {
	e, ok := m.entries[key]
	if !ok {
		return nil
	}
	if e.expired(time.Now()) {
		delete(m.entries, key)
		return nil
	}
	return e
}

func (m *MemoryStore) Set(_ context.Context, key, val string, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	e := &memEntry{val: val}
	if ttl > 0 {
		e.deadline = time.Now().Add(ttl)
	}
	m.entries[key] = e
	return nil
}

func (m *MemoryStore) Get(_ context.Context, key string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e := m.live(key)
	if e == nil || e.isList {
		return "", ErrNotFound
	}
	return e.val, nil
}

func (m *MemoryStore) PushList(_ context.Context, key, val string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	e := m.live(key)
	if e == nil {
		e = &memEntry{isList: true}
		m.entries[key] = e
	}
	e.list = append(e.list, val)
	return nil
}

func (m *MemoryStore) ListRange(_ context.Context, key string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e := m.live(key)
	if e == nil {
		return nil, nil
	}
	out := make([]string, len(e.list))
	copy(out, e.list)
	return out, nil
}

func (m *MemoryStore) ListLen(_ context.Context, key string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e := m.live(key)
	if e == nil {
		return 0, nil
	}
	return len(e.list), nil
}

func (m *MemoryStore) DrainList(_ context.Context, key string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e := m.live(key)
	if e == nil {
		return nil, nil
	}
	delete(m.entries, key)
	return e.list, nil
}

func (m *MemoryStore) RemoveListValue(_ context.Context, key, val string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	e := m.live(key)
	if e == nil {
		return nil
	}
	for i, v := range e.list {
		if v == val {
			e.list = append(e.list[:i], e.list[i+1:]...)
			break
		}
	}
	return nil
}

func (m *MemoryStore) Expire(_ context.Context, key string, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	e := m.live(key)
	if e == nil {
		return nil
	}
	if ttl > 0 {
		e.deadline = time.Now().Add(ttl)
	} else {
		e.deadline = time.Time{}
	}
	return nil
}

func (m *MemoryStore) TTL(_ context.Context, key string) (time.Duration, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e := m.live(key)
	if e == nil {
		return TTLMissing, nil
	}
	if e.deadline.IsZero() {
		return TTLPersistent, nil
	}
	return time.Until(e.deadline), nil
}

func (m *MemoryStore) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.entries, key)
	return nil
}

func (m *MemoryStore) Ping(_ context.Context) error { return nil }

func (m *MemoryStore) Close() error { return nil }
