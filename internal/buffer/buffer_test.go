// ABOUTME: Tests for the per-conversation message buffer
// ABOUTME: Validates arrival order, drain-then-empty, and the set-if-absent TTL rule

package buffer

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/caravela-labs/mercado-gateway/internal/kv"
)

func TestBuffer_PushDrain_Order(t *testing.T) {
	b := New(kv.NewMemoryStore(), time.Minute, nil)
	ctx := context.Background()

	require.NoError(t, b.Push(ctx, "5511988887777", "first"))
	require.NoError(t, b.Push(ctx, "5511988887777", "second"))
	require.NoError(t, b.Push(ctx, "5511988887777", "third"))

	assert.Equal(t, 3, b.Len(ctx, "5511988887777"))

	msgs := b.Drain(ctx, "5511988887777")
	assert.Equal(t, []string{"first", "second", "third"}, msgs)

	// Drained buffer reads empty
	assert.Equal(t, 0, b.Len(ctx, "5511988887777"))
	assert.Empty(t, b.Drain(ctx, "5511988887777"))
}

func TestBuffer_Len_EmptyConversation(t *testing.T) {
	b := New(kv.NewMemoryStore(), time.Minute, nil)

	assert.Equal(t, 0, b.Len(context.Background(), "5511900000000"))
}

func TestBuffer_ConversationsAreIndependent(t *testing.T) {
	b := New(kv.NewMemoryStore(), time.Minute, nil)
	ctx := context.Background()

	require.NoError(t, b.Push(ctx, "5511911111111", "for-a"))
	require.NoError(t, b.Push(ctx, "5511922222222", "for-b"))

	assert.Equal(t, []string{"for-a"}, b.Drain(ctx, "5511911111111"))
	assert.Equal(t, []string{"for-b"}, b.Drain(ctx, "5511922222222"))
}

func TestBuffer_TTLSetOnlyOnFirstPush(t *testing.T) {
	store := kv.NewMemoryStore()
	b := New(store, 100*time.Millisecond, nil)
	ctx := context.Background()

	require.NoError(t, b.Push(ctx, "5511933333333", "one"))

	ttlAfterFirst, err := store.TTL(ctx, "msgbuf:5511933333333")
	require.NoError(t, err)
	require.Greater(t, ttlAfterFirst, time.Duration(0))

	// Later pushes must not slide the window forward
	time.Sleep(30 * time.Millisecond)
	require.NoError(t, b.Push(ctx, "5511933333333", "two"))

	ttlAfterSecond, err := store.TTL(ctx, "msgbuf:5511933333333")
	require.NoError(t, err)
	assert.Less(t, ttlAfterSecond, ttlAfterFirst,
		"TTL must keep counting down from the first push")
}

func TestBuffer_ExpiresUnderContinuousPushes(t *testing.T) {
	b := New(kv.NewMemoryStore(), 50*time.Millisecond, nil)
	ctx := context.Background()

	require.NoError(t, b.Push(ctx, "5511944444444", "spam"))
	time.Sleep(30 * time.Millisecond)
	require.NoError(t, b.Push(ctx, "5511944444444", "spam"))
	time.Sleep(30 * time.Millisecond)

	// First push's window has elapsed; the buffer is gone even though the
	// second push was recent.
	assert.Equal(t, 0, b.Len(ctx, "5511944444444"))
}
