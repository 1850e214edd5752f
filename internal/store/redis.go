package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	reterrors "git.home.luguber.info/inful/retentiond/internal/errors"
)

// RedisStore implements KV on a Redis server, the store the retention
// key layout was designed for (plain string keys, binary-safe values).
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore creates a Redis-backed store. The connection is
// established lazily; use Ping to verify reachability at startup.
func NewRedisStore(addr string, db int) *RedisStore {
	return &RedisStore{
		client: redis.NewClient(&redis.Options{
			Addr: addr,
			DB:   db,
		}),
	}
}

// Ping verifies the server is reachable.
func (r *RedisStore) Ping(ctx context.Context) error {
	if err := r.client.Ping(ctx).Err(); err != nil {
		return reterrors.StoreUnavailable(err, "redis ping failed")
	}
	return nil
}

// Set writes value under key, overwriting any previous value.
func (r *RedisStore) Set(ctx context.Context, key string, value []byte) error {
	if err := r.client.Set(ctx, key, value, 0).Err(); err != nil {
		return reterrors.StoreUnavailable(err, fmt.Sprintf("redis SET %s", key))
	}
	return nil
}

// Get returns the value stored under key, or ErrKeyNotFound.
func (r *RedisStore) Get(ctx context.Context, key string) ([]byte, error) {
	val, err := r.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrKeyNotFound
		}
		return nil, reterrors.StoreUnavailable(err, fmt.Sprintf("redis GET %s", key))
	}
	return val, nil
}

// Delete removes key. Deleting an absent key is not an error.
func (r *RedisStore) Delete(ctx context.Context, key string) error {
	if err := r.client.Del(ctx, key).Err(); err != nil {
		return reterrors.StoreUnavailable(err, fmt.Sprintf("redis DEL %s", key))
	}
	return nil
}

// Keys scans the whole keyspace for keys matching the MATCH glob.
// SCAN is used instead of KEYS so a large store does not block the
// server, but a full pass is still expensive.
func (r *RedisStore) Keys(ctx context.Context, pattern string) ([]string, error) {
	if pattern == "" {
		pattern = "*"
	}
	var keys []string
	iter := r.client.Scan(ctx, 0, pattern, 0).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return nil, reterrors.StoreUnavailable(err, "redis SCAN")
	}
	return keys, nil
}

// Close closes the underlying connection pool.
func (r *RedisStore) Close() error {
	return r.client.Close()
}
