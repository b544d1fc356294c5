package store

import (
	"sync"
	"time"
)

type memoryEntry struct {
	val     []byte
	expires time.Time
}

// MemoryStorage is a process-local fiber.Storage used when Redis is disabled.
// Expired entries are dropped lazily on access and by Sweep.
type MemoryStorage struct {
	mu   sync.RWMutex
	data map[string]memoryEntry
	now  func() time.Time
}

func NewMemoryStorage() *MemoryStorage {
	return NewMemoryStorageWithClock(time.Now)
}

func NewMemoryStorageWithClock(now func() time.Time) *MemoryStorage {
	return &MemoryStorage{data: make(map[string]memoryEntry), now: now}
}

func (m *MemoryStorage) Get(key string) ([]byte, error) {
	if key == "" {
		return nil, nil
	}
	m.mu.RLock()
	e, ok := m.data[key]
	m.mu.RUnlock()
	if !ok {
		return nil, nil
	}
	if !e.expires.IsZero() && !m.now().Before(e.expires) {
		m.mu.Lock()
		if cur, ok := m.data[key]; ok && cur.expires.Equal(e.expires) {
			delete(m.data, key)
		}
		m.mu.Unlock()
		return nil, nil
	}
	out := make([]byte, len(e.val))
	copy(out, e.val)
	return out, nil
}

// Set stores val under key. A zero exp never expires.
func (m *MemoryStorage) Set(key string, val []byte, exp time.Duration) error {
	if key == "" || len(val) == 0 {
		return nil
	}
	e := memoryEntry{val: make([]byte, len(val))}
	copy(e.val, val)
	if exp > 0 {
		e.expires = m.now().Add(exp)
	}
	m.mu.Lock()
	m.data[key] = e
	m.mu.Unlock()
	return nil
}

func (m *MemoryStorage) Delete(key string) error {
	m.mu.Lock()
	delete(m.data, key)
	m.mu.Unlock()
	return nil
}

func (m *MemoryStorage) Reset() error {
	m.mu.Lock()
	m.data = make(map[string]memoryEntry)
	m.mu.Unlock()
	return nil
}

func (m *MemoryStorage) Close() error {
	return nil
}

// Sweep removes expired entries and returns how many were dropped.
func (m *MemoryStorage) Sweep() int {
	now := m.now()
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for k, e := range m.data {
		if !e.expires.IsZero() && !now.Before(e.expires) {
			delete(m.data, k)
			n++
		}
	}
	return n
}

func (m *MemoryStorage) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.data)
}
