package cache

import (
	"context"
	"sync"
	"time"

	"marketcache/internal/ports"
)

// MemoryCache is a simple in-memory TTL store. Expiry is checked lazily on
// Get; a stale entry stays in the map until the next Set for its key
// overwrites it. The key space is bounded by the distinct requests actually
// made, so there is no eviction.
type MemoryCache struct {
	mu    sync.RWMutex
	items map[string]memoryEntry
}

type memoryEntry struct {
	value    []byte
	storedAt time.Time
	ttl      time.Duration
}

func NewMemoryCache() *MemoryCache {
	return &MemoryCache{items: make(map[string]memoryEntry)}
}

func (m *MemoryCache) Get(ctx context.Context, key string) (ports.Entry, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	it, ok := m.items[key]
	if !ok || time.Since(it.storedAt) >= it.ttl {
		return ports.Entry{}, false, nil
	}
	return ports.Entry{Value: it.value, StoredAt: it.storedAt}, true, nil
}

func (m *MemoryCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.items[key] = memoryEntry{
		value:    value,
		storedAt: time.Now(),
		ttl:      ttl,
	}
	return nil
}

func (m *MemoryCache) Health(ctx context.Context) error {
	return nil
}

func (m *MemoryCache) Close() error {
	return nil
}
