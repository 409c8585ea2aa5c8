// ABOUTME: Per-conversation ordered buffer of raw inbound texts
// ABOUTME: TTL is set only on first append so spam cannot keep a buffer alive forever

package buffer

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/caravela-labs/mercado-gateway/internal/kv"
)

// DefaultTTL bounds how long an undrained buffer survives.
const DefaultTTL = 5 * time.Minute

// Buffer queues raw inbound message texts per conversation until the
// debounce coordinator drains them.
type Buffer struct {
	store  kv.Store
	ttl    time.Duration
	logger *slog.Logger
}

// New creates a Buffer. A ttl <= 0 falls back to DefaultTTL. Pass nil logger
// for default.
func New(store kv.Store, ttl time.Duration, logger *slog.Logger) *Buffer {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Buffer{
		store:  store,
		ttl:    ttl,
		logger: logger.With("component", "buffer"),
	}
}

func key(conversation string) string {
	return "msgbuf:" + conversation
}

// Push appends text to the conversation's buffer. The buffer TTL is set only
// when the key has none yet: a fixed expiry window from the first append, not
// a sliding one, so a continuous stream of messages still drains eventually.
func (b *Buffer) Push(ctx context.Context, conversation, text string) error {
	k := key(conversation)
	if err := b.store.PushList(ctx, k, text); err != nil {
		return fmt.Errorf("pushing to buffer: %w", err)
	}

	ttl, err := b.store.TTL(ctx, k)
	if err != nil {
		return fmt.Errorf("checking buffer ttl: %w", err)
	}
	if ttl == kv.TTLPersistent || ttl == kv.TTLMissing {
		if err := b.store.Expire(ctx, k, b.ttl); err != nil {
			return fmt.Errorf("setting buffer ttl: %w", err)
		}
	}

	b.logger.Debug("message buffered", "conversation", conversation)
	return nil
}

// Len returns the number of buffered messages, 0 when nothing is buffered or
// the store is unreachable.
func (b *Buffer) Len(ctx context.Context, conversation string) int {
	n, err := b.store.ListLen(ctx, key(conversation))
	if err != nil {
		b.logger.Error("buffer length check failed", "conversation", conversation, "error", err)
		return 0
	}
	return n
}

// Drain atomically reads and clears the buffer, returning messages in
// arrival order. An empty or unreachable buffer yields an empty batch.
func (b *Buffer) Drain(ctx context.Context, conversation string) []string {
	msgs, err := b.store.DrainList(ctx, key(conversation))
	if err != nil {
		b.logger.Error("buffer drain failed", "conversation", conversation, "error", err)
		return nil
	}
	if len(msgs) > 0 {
		b.logger.Info("buffer drained", "conversation", conversation, "messages", len(msgs))
	}
	return msgs
}
