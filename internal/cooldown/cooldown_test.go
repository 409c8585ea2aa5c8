// ABOUTME: Tests for the cooldown guard
// ABOUTME: Validates activation, remaining-seconds reporting, expiry, and re-arming

package cooldown

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/caravela-labs/mercado-gateway/internal/kv"
)

func TestGuard_Active_NoCooldown(t *testing.T) {
	g := New(kv.NewMemoryStore(), nil)

	active, remaining := g.Active(context.Background(), "5511988887777")
	assert.False(t, active)
	assert.Equal(t, -1, remaining)
}

func TestGuard_SetThenActive(t *testing.T) {
	g := New(kv.NewMemoryStore(), nil)
	ctx := context.Background()

	require.NoError(t, g.Set(ctx, "5511988887777", 10*time.Second))

	active, remaining := g.Active(ctx, "5511988887777")
	assert.True(t, active)
	assert.InDelta(t, 10, remaining, 1)
}

func TestGuard_ExpiresAfterTTL(t *testing.T) {
	g := New(kv.NewMemoryStore(), nil)
	ctx := context.Background()

	require.NoError(t, g.Set(ctx, "5511988887777", 20*time.Millisecond))

	active, _ := g.Active(ctx, "5511988887777")
	require.True(t, active)

	time.Sleep(40 * time.Millisecond)

	active, remaining := g.Active(ctx, "5511988887777")
	assert.False(t, active)
	assert.Equal(t, -1, remaining)
}

func TestGuard_SetAgainRearmsWindow(t *testing.T) {
	g := New(kv.NewMemoryStore(), nil)
	ctx := context.Background()

	require.NoError(t, g.Set(ctx, "5511988887777", 5*time.Second))
	require.NoError(t, g.Set(ctx, "5511988887777", 60*time.Second))

	_, remaining := g.Active(ctx, "5511988887777")
	assert.Greater(t, remaining, 30)
}

func TestGuard_ConversationsAreIndependent(t *testing.T) {
	g := New(kv.NewMemoryStore(), nil)
	ctx := context.Background()

	require.NoError(t, g.Set(ctx, "5511911111111", time.Minute))

	active, _ := g.Active(ctx, "5511922222222")
	assert.False(t, active)
}
