package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"marketcache/internal/ports"
)

// RedisCache stores entries in Redis with the entry TTL applied natively, so
// expiry needs no bookkeeping on our side. The payload is wrapped in a small
// envelope to keep the StoredAt timestamp alongside the value.
type RedisCache struct {
	rdb *redis.Client
}

type redisEnvelope struct {
	Value    []byte `json:"v"`
	StoredAt int64  `json:"at"` // unix milliseconds
}

// NewRedisCache creates a RedisCache and pings the server to make sure it is
// reachable; callers fall back to the in-memory cache on error.
func NewRedisCache(ctx context.Context, addr, password string, db int) (*RedisCache, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return &RedisCache{rdb: rdb}, nil
}

func (r *RedisCache) Get(ctx context.Context, key string) (ports.Entry, bool, error) {
	b, err := r.rdb.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return ports.Entry{}, false, nil
	}
	if err != nil {
		return ports.Entry{}, false, fmt.Errorf("redis get %q: %w", key, err)
	}

	entry, ok := decodeEnvelope(b)
	return entry, ok, nil
}

func (r *RedisCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	b, err := encodeEnvelope(value, time.Now())
	if err != nil {
		return fmt.Errorf("redis marshal %q: %w", key, err)
	}
	if err := r.rdb.Set(ctx, key, b, ttl).Err(); err != nil {
		return fmt.Errorf("redis set %q: %w", key, err)
	}
	return nil
}

func encodeEnvelope(value []byte, storedAt time.Time) ([]byte, error) {
	return json.Marshal(redisEnvelope{
		Value:    value,
		StoredAt: storedAt.UnixMilli(),
	})
}

// decodeEnvelope treats an unreadable entry as a miss so the next fetch
// overwrites it.
func decodeEnvelope(b []byte) (ports.Entry, bool) {
	var env redisEnvelope
	if err := json.Unmarshal(b, &env); err != nil {
		return ports.Entry{}, false
	}
	return ports.Entry{
		Value:    env.Value,
		StoredAt: time.UnixMilli(env.StoredAt),
	}, true
}

func (r *RedisCache) Health(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	return r.rdb.Ping(ctx).Err()
}

func (r *RedisCache) Close() error {
	return r.rdb.Close()
}
