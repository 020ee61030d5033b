package app

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"marketcache/internal/ports"
)

// FetchFunc retrieves the payload for one cache key from upstream.
type FetchFunc func(ctx context.Context) ([]byte, error)

// Cacher is the get-or-fetch primitive: a fresh cache hit is returned
// immediately, a miss triggers at most one upstream fetch per key no matter
// how many callers arrive concurrently. All waiters for a key observe the
// outcome of the same single fetch. Failed fetches are never cached.
type Cacher struct {
	logger *slog.Logger
	store  ports.Cache

	mu       sync.Mutex
	inflight map[string]*fetchCall
}

// fetchCall is one in-flight upstream fetch. done is closed exactly once,
// after entry/err are set and the call is removed from the registry.
type fetchCall struct {
	done  chan struct{}
	entry ports.Entry
	err   error
}

func NewCacher(logger *slog.Logger, store ports.Cache) *Cacher {
	return &Cacher{
		logger:   logger,
		store:    store,
		inflight: make(map[string]*fetchCall),
	}
}

// GetOrFetch returns the cached entry for key if it is still fresh,
// otherwise fetches it via fetch and stores the result with the given ttl.
// Concurrent calls for the same key share one fetch; calls for distinct keys
// never block each other.
func (c *Cacher) GetOrFetch(ctx context.Context, key string, ttl time.Duration, fetch FetchFunc) (ports.Entry, error) {
	if entry, ok := c.lookup(ctx, key); ok {
		return entry, nil
	}

	c.mu.Lock()
	if call, ok := c.inflight[key]; ok {
		c.mu.Unlock()
		// join the in-flight fetch for this key
		select {
		case <-call.done:
			return call.entry, call.err
		case <-ctx.Done():
			// leaving does not affect the fetch or the other waiters
			return ports.Entry{}, ctx.Err()
		}
	}
	call := &fetchCall{done: make(chan struct{})}
	c.inflight[key] = call
	c.mu.Unlock()

	// The fetch is detached from the leader's cancellation: it always runs
	// to completion so waiters get an outcome and the cache gets populated.
	fctx := context.WithoutCancel(ctx)

	// another call may have completed a fetch between our miss and the
	// registration above
	if entry, ok := c.lookup(fctx, key); ok {
		call.entry = entry
	} else if value, err := fetch(fctx); err != nil {
		call.err = err
	} else {
		if err := c.store.Set(fctx, key, value, ttl); err != nil {
			c.logger.Warn("cache write failed", "key", key, "err", err)
		}
		// hand waiters the stored entry so they and later cache hits see
		// the same StoredAt
		if entry, ok := c.lookup(fctx, key); ok {
			call.entry = entry
		} else {
			call.entry = ports.Entry{Value: value, StoredAt: time.Now()}
		}
	}

	c.mu.Lock()
	delete(c.inflight, key)
	c.mu.Unlock()
	close(call.done)

	return call.entry, call.err
}

// lookup is a cache read that degrades to a miss on store errors, so a
// broken cache backend slows requests down instead of failing them.
func (c *Cacher) lookup(ctx context.Context, key string) (ports.Entry, bool) {
	entry, ok, err := c.store.Get(ctx, key)
	if err != nil {
		c.logger.Warn("cache read failed", "key", key, "err", err)
		return ports.Entry{}, false
	}
	return entry, ok
}

// Health reports reachability of the underlying store.
func (c *Cacher) Health(ctx context.Context) error {
	return c.store.Health(ctx)
}
