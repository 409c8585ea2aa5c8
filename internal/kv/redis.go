// ABOUTME: Redis-backed Store implementation using go-redis
// ABOUTME: DrainList uses a MULTI/EXEC pipeline so drains never lose concurrent appends

package kv

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore implements Store against a Redis server. Redis evaluates TTLs
// server-side, so expiry behaves the same for every process sharing the
// instance.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore creates a store for the given address. The connection is not
// verified here; call Ping to check reachability.
func NewRedisStore(addr, password string, db int) *RedisStore {
	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     password,
		DB:           db,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 5 * time.Second,
	})
	return &RedisStore{client: client}
}

func (r *RedisStore) Set(ctx context.Context, key, val string, ttl time.Duration) error {
	if ttl < 0 {
		ttl = 0
	}
	return r.client.Set(ctx, key, val, ttl).Err()
}

func (r *RedisStore) Get(ctx context.Context, key string) (string, error) {
	val, err := r.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", err
	}
	return val, nil
}

func (r *RedisStore) PushList(ctx context.Context, key, val string) error {
	return r.client.RPush(ctx, key, val).Err()
}

func (r *RedisStore) ListRange(ctx context.Context, key string) ([]string, error) {
	return r.client.LRange(ctx, key, 0, -1).Result()
}

func (r *RedisStore) ListLen(ctx context.Context, key string) (int, error) {
	n, err := r.client.LLen(ctx, key).Result()
	if err != nil {
		return 0, err
	}
	return int(n), nil
}

// DrainList reads the whole list and deletes the key in one MULTI/EXEC
// transaction. Appends racing the drain land either in the returned batch or
// in a fresh list for the next drain, never in both and never nowhere.
func (r *RedisStore) DrainList(ctx context.Context, key string) ([]string, error) {
	pipe := r.client.TxPipeline()
	rangeCmd := pipe.LRange(ctx, key, 0, -1)
	pipe.Del(ctx, key)
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, fmt.Errorf("draining list %q: %w", key, err)
	}
	return rangeCmd.Val(), nil
}

func (r *RedisStore) RemoveListValue(ctx context.Context, key, val string) error {
	return r.client.LRem(ctx, key, 1, val).Err()
}

func (r *RedisStore) Expire(ctx context.Context, key string, ttl time.Duration) error {
	return r.client.Expire(ctx, key, ttl).Err()
}

func (r *RedisStore) TTL(ctx context.Context, key string) (time.Duration, error) {
	// go-redis passes the -1 (persistent) and -2 (missing) replies through
	// as raw negative durations, matching our sentinel constants.
	return r.client.TTL(ctx, key).Result()
}

func (r *RedisStore) Delete(ctx context.Context, key string) error {
	return r.client.Del(ctx, key).Err()
}

func (r *RedisStore) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

func (r *RedisStore) Close() error {
	return r.client.Close()
}
