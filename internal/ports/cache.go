package ports

import (
	"context"
	"time"
)

// Entry is a cached payload together with the time it was stored. Callers
// never see expired entries; freshness is the store's concern.
type Entry struct {
	Value    []byte
	StoredAt time.Time
}

// Cache is a keyed TTL store. A miss and an expired entry are
// indistinguishable: both return ok=false. Implementations must be safe for
// concurrent use.
type Cache interface {
	Get(ctx context.Context, key string) (Entry, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Health(ctx context.Context) error
	Close() error
}
