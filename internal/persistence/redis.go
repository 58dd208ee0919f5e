package persistence

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/echocog/persona-core/internal/errs"
)

// RedisStore backs the ephemeral key-value store spec §6 calls for:
// working memory and the emotion snapshot, both of which "may be lost on
// restart." The teacher's go.mod already carries go-redis/v9 as an
// indirect dependency (pulled in transitively by the dropped olric
// clustering stack); this promotes it to a direct dependency for the one
// concern the spec actually names it for.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore connects to addr (no retry loop: Redis reconnects
// transparently per-command, unlike the Dgraph gRPC dial).
func NewRedisStore(addr string) *RedisStore {
	return &RedisStore{client: redis.NewClient(&redis.Options{Addr: addr})}
}

// Ping verifies connectivity at boot.
func (r *RedisStore) Ping(ctx context.Context) error {
	if err := r.client.Ping(ctx).Err(); err != nil {
		return errs.Transient("redis ping", err)
	}
	return nil
}

// Close releases the connection pool.
func (r *RedisStore) Close() error { return r.client.Close() }

// SetJSON marshals v and stores it under key with the given TTL (ttl<=0
// means no expiry, used for the session-scoped emotion snapshot).
func (r *RedisStore) SetJSON(ctx context.Context, key string, v interface{}, ttl time.Duration) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	if err := r.client.Set(ctx, key, data, ttl).Err(); err != nil {
		return errs.Transient("redis set "+key, err)
	}
	return nil
}

// GetJSON loads and unmarshals the value at key into v. Returns
// (false, nil) on a cache miss rather than an error, since a miss is the
// expected "lost on restart" case for this store.
func (r *RedisStore) GetJSON(ctx context.Context, key string, v interface{}) (bool, error) {
	data, err := r.client.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		return false, errs.Transient("redis get "+key, err)
	}
	return true, json.Unmarshal(data, v)
}

// Del removes a key (used when a working-memory item is evicted).
func (r *RedisStore) Del(ctx context.Context, key string) error {
	return r.client.Del(ctx, key).Err()
}

// Keys lists keys matching pattern (used to enumerate live working-memory
// items, whose count is bounded by invariant W1 so a KEYS scan is safe).
func (r *RedisStore) Keys(ctx context.Context, pattern string) ([]string, error) {
	return r.client.Keys(ctx, pattern).Result()
}
