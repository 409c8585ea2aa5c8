// ABOUTME: Per-conversation suppression window set on human operator takeover
// ABOUTME: While active, inbound messages are buffered but never dispatched

package cooldown

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/caravela-labs/mercado-gateway/internal/kv"
)

// DefaultTTL pauses automation for 15 minutes after an operator message.
const DefaultTTL = 15 * time.Minute

// Guard manages the suppression flag that pauses automated processing for a
// conversation while a human operator is handling it.
type Guard struct {
	store  kv.Store
	logger *slog.Logger
}

// New creates a Guard. Pass nil logger for default.
func New(store kv.Store, logger *slog.Logger) *Guard {
	if logger == nil {
		logger = slog.Default()
	}
	return &Guard{
		store:  store,
		logger: logger.With("component", "cooldown"),
	}
}

func key(conversation string) string {
	return "cooldown:" + conversation
}

// Set activates (or re-arms) the suppression window. Last write wins.
func (g *Guard) Set(ctx context.Context, conversation string, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if err := g.store.Set(ctx, key(conversation), "1", ttl); err != nil {
		return fmt.Errorf("setting cooldown: %w", err)
	}
	g.logger.Info("cooldown set", "conversation", conversation, "ttl", ttl)
	return nil
}

// Active reports whether suppression is in effect and the remaining window
// in whole seconds. An absent key, or an unreachable store, reads as
// (false, -1): automation resumes rather than stalling.
func (g *Guard) Active(ctx context.Context, conversation string) (bool, int) {
	k := key(conversation)

	_, err := g.store.Get(ctx, k)
	if errors.Is(err, kv.ErrNotFound) {
		return false, -1
	}
	if err != nil {
		g.logger.Error("cooldown check failed", "conversation", conversation, "error", err)
		return false, -1
	}

	ttl, err := g.store.TTL(ctx, k)
	if err != nil || ttl < 0 {
		return true, -1
	}
	return true, int(ttl / time.Second)
}
