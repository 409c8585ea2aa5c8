// ABOUTME: Tests for the failover store wrapper
// ABOUTME: Uses a primary that errors on demand to verify degraded-mode behavior

package kv

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// flakyStore wraps a MemoryStore and errors on every call while failing is set.
type flakyStore struct {
	*MemoryStore
	failing bool
}

var errDown = errors.New("connection refused")

func (f *flakyStore) Set(ctx context.Context, key, val string, ttl time.Duration) error {
	if f.failing {
		return errDown
	}
	return f.MemoryStore.Set(ctx, key, val, ttl)
}

func (f *flakyStore) Get(ctx context.Context, key string) (string, error) {
	if f.failing {
		return "", errDown
	}
	return f.MemoryStore.Get(ctx, key)
}

func (f *flakyStore) PushList(ctx context.Context, key, val string) error {
	if f.failing {
		return errDown
	}
	return f.MemoryStore.PushList(ctx, key, val)
}

func (f *flakyStore) ListLen(ctx context.Context, key string) (int, error) {
	if f.failing {
		return 0, errDown
	}
	return f.MemoryStore.ListLen(ctx, key)
}

func (f *flakyStore) DrainList(ctx context.Context, key string) ([]string, error) {
	if f.failing {
		return nil, errDown
	}
	return f.MemoryStore.DrainList(ctx, key)
}

func TestFailover_UsesPrimaryWhenHealthy(t *testing.T) {
	primary := &flakyStore{MemoryStore: NewMemoryStore()}
	fallback := NewMemoryStore()
	f := NewFailover(primary, fallback, nil)
	ctx := context.Background()

	require.NoError(t, f.Set(ctx, "k", "v", 0))

	// Value lives in the primary, not the fallback
	val, err := primary.MemoryStore.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "v", val)

	_, err = fallback.Get(ctx, "k")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestFailover_WritesLandInFallbackWhenPrimaryDown(t *testing.T) {
	primary := &flakyStore{MemoryStore: NewMemoryStore(), failing: true}
	fallback := NewMemoryStore()
	f := NewFailover(primary, fallback, nil)
	ctx := context.Background()

	require.NoError(t, f.PushList(ctx, "buf", "hello"))
	require.NoError(t, f.PushList(ctx, "buf", "world"))

	vals, err := f.DrainList(ctx, "buf")
	require.NoError(t, err)
	assert.Equal(t, []string{"hello", "world"}, vals)
}

func TestFailover_NotFoundIsAuthoritative(t *testing.T) {
	primary := &flakyStore{MemoryStore: NewMemoryStore()}
	fallback := NewMemoryStore()
	f := NewFailover(primary, fallback, nil)
	ctx := context.Background()

	// A key only the fallback has must not leak through while the
	// primary is healthy: ErrNotFound from the primary is final.
	require.NoError(t, fallback.Set(ctx, "stale", "v", 0))

	_, err := f.Get(ctx, "stale")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestFailover_ReadsDegradeToNeutralDefaults(t *testing.T) {
	primary := &flakyStore{MemoryStore: NewMemoryStore(), failing: true}
	f := NewFailover(primary, NewMemoryStore(), nil)
	ctx := context.Background()

	n, err := f.ListLen(ctx, "buf")
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	_, err = f.Get(ctx, "cooldown:5511999")
	assert.ErrorIs(t, err, ErrNotFound)
}
