// ABOUTME: Per-conversation ordered cart of line items, lifetime coupled to the order session
// ABOUTME: Items carry stable ids so positional removal resolves to an exact stored value

package cart

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/caravela-labs/mercado-gateway/internal/kv"
	"github.com/caravela-labs/mercado-gateway/internal/session"
)

// ErrOutOfRange is returned when a 1-based position does not address an
// item. Callers report it as a no-op failure, never abort on it.
var ErrOutOfRange = errors.New("cart position out of range")

// Item is a single cart line. The ID is assigned at insertion and never
// shown to the customer; positions are resolved to it at the boundary.
type Item struct {
	ID          string  `json:"id"`
	ProductName string  `json:"product_name"`
	Quantity    float64 `json:"quantity"`
	Note        string  `json:"note,omitempty"`
	UnitPrice   float64 `json:"unit_price"`
}

// Store keeps cart items as an ordered list keyed by conversation. Cart and
// session TTLs are refreshed together on every mutation so both lapse as one.
type Store struct {
	store    kv.Store
	sessions *session.Manager
	logger   *slog.Logger
}

// New creates a cart store bound to the given session manager. Pass nil
// logger for default.
func New(store kv.Store, sessions *session.Manager, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		store:    store,
		sessions: sessions,
		logger:   logger.With("component", "cart"),
	}
}

func key(conversation string) string {
	return "cart:" + conversation
}

// AddItem appends an item, starting a building session first when none is
// active (absent, expired, or already sent). Cart and session TTLs are both
// re-armed to the full build window.
func (s *Store) AddItem(ctx context.Context, conversation string, item Item) error {
	sess, err := s.sessions.Get(ctx, conversation)
	if err != nil {
		return err
	}
	if sess == nil || sess.Status != session.StatusBuilding {
		if err := s.sessions.Start(ctx, conversation); err != nil {
			return err
		}
	}

	if item.ID == "" {
		item.ID = uuid.New().String()
	}
	data, err := json.Marshal(item)
	if err != nil {
		return fmt.Errorf("encoding cart item: %w", err)
	}

	k := key(conversation)
	if err := s.store.PushList(ctx, k, string(data)); err != nil {
		return fmt.Errorf("appending cart item: %w", err)
	}
	if err := s.store.Expire(ctx, k, s.sessions.BuildTTL()); err != nil {
		return fmt.Errorf("refreshing cart ttl: %w", err)
	}
	if err := s.sessions.Refresh(ctx, conversation); err != nil {
		s.logger.Warn("session refresh after cart add failed",
			"conversation", conversation, "error", err)
	}

	s.logger.Info("cart item added",
		"conversation", conversation, "product", item.ProductName)
	return nil
}

// Items returns the cart in insertion order. Entries that fail to decode are
// skipped and logged, never fatal.
func (s *Store) Items(ctx context.Context, conversation string) ([]Item, error) {
	raws, err := s.store.ListRange(ctx, key(conversation))
	if err != nil {
		return nil, fmt.Errorf("reading cart: %w", err)
	}

	items := make([]Item, 0, len(raws))
	for _, raw := range raws {
		var item Item
		if err := json.Unmarshal([]byte(raw), &item); err != nil {
			s.logger.Warn("skipping malformed cart entry",
				"conversation", conversation, "error", err)
			continue
		}
		items = append(items, item)
	}
	return items, nil
}

// RemoveItem deletes the item at the given 1-based position. The position is
// resolved against the decodable entries (the same view Items returns) to
// the stored value, which is removed with a single first-match list removal.
// Concurrent removals on the same conversation are not linearizable; the
// design assumes a single mutating actor per conversation.
func (s *Store) RemoveItem(ctx context.Context, conversation string, position int) error {
	if position < 1 {
		return ErrOutOfRange
	}

	raws, err := s.store.ListRange(ctx, key(conversation))
	if err != nil {
		return fmt.Errorf("reading cart: %w", err)
	}

	seen := 0
	for _, raw := range raws {
		var item Item
		if err := json.Unmarshal([]byte(raw), &item); err != nil {
			continue
		}
		seen++
		if seen == position {
			if err := s.store.RemoveListValue(ctx, key(conversation), raw); err != nil {
				return fmt.Errorf("removing cart item: %w", err)
			}
			s.logger.Info("cart item removed",
				"conversation", conversation, "position", position)
			return nil
		}
	}
	return ErrOutOfRange
}

// Clear deletes the cart outright.
func (s *Store) Clear(ctx context.Context, conversation string) error {
	if err := s.store.Delete(ctx, key(conversation)); err != nil {
		return fmt.Errorf("clearing cart: %w", err)
	}
	s.logger.Info("cart cleared", "conversation", conversation)
	return nil
}
