// ABOUTME: Store interface and shared sentinel values for the TTL key-value layer
// ABOUTME: Backends: Redis (networked), in-process memory (fallback), failover wrapper

package kv

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned by Get when the key does not exist or has expired.
var ErrNotFound = errors.New("key not found")

// TTL sentinel values, matching Redis TTL reply semantics.
const (
	// TTLPersistent means the key exists but carries no expiry.
	TTLPersistent = time.Duration(-1)
	// TTLMissing means the key does not exist.
	TTLMissing = time.Duration(-2)
)

// Store is the TTL-capable key-value contract every conversation-scoped
// component is written against. Keys are independent; a key holds either a
// scalar string or an ordered list, never both.
//
// DrainList must be atomic with respect to concurrent PushList calls on the
// same key: an append issued before the drain's atomic point is returned by
// the drain, an append issued after it is left for the next drain. Backends
// that cannot provide this must not be used for the message buffer.
type Store interface {
	// Set writes a scalar value. A ttl <= 0 stores the key without expiry.
	Set(ctx context.Context, key, val string, ttl time.Duration) error

	// Get reads a scalar value. Returns ErrNotFound for absent/expired keys.
	Get(ctx context.Context, key string) (string, error)

	// PushList appends val to the tail of the list at key, creating it if
	// needed. The list's TTL, if any, is left untouched.
	PushList(ctx context.Context, key, val string) error

	// ListRange returns the full list in insertion order. Missing key
	// yields an empty slice, not an error.
	ListRange(ctx context.Context, key string) ([]string, error)

	// ListLen returns the current list length, 0 for a missing key.
	ListLen(ctx context.Context, key string) (int, error)

	// DrainList atomically reads the entire list and deletes the key.
	DrainList(ctx context.Context, key string) ([]string, error)

	// RemoveListValue removes the first occurrence of val from the list.
	// Removing a value that is not present is not an error.
	RemoveListValue(ctx context.Context, key, val string) error

	// Expire sets or replaces the key's TTL. No-op on missing keys.
	Expire(ctx context.Context, key string, ttl time.Duration) error

	// TTL reports the remaining lifetime of key, TTLPersistent for a key
	// without expiry and TTLMissing for an absent key.
	TTL(ctx context.Context, key string) (time.Duration, error)

	// Delete removes the key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error

	// Ping verifies the backend is reachable.
	Ping(ctx context.Context) error

	// Close releases any resources held by the backend.
	Close() error
}
