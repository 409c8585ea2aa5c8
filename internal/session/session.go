// ABOUTME: TTL-driven order session state machine (absent/building/sent)
// ABOUTME: Expiry is lazy - a session ends by its key disappearing, never by a timer

package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/caravela-labs/mercado-gateway/internal/kv"
)

// Session status values.
const (
	StatusBuilding = "building"
	StatusSent     = "sent"
)

// Default lifecycle windows.
const (
	// DefaultBuildTTL is how long a customer has to assemble an order.
	DefaultBuildTTL = 40 * time.Minute
	// DefaultModifyTTL is the change window after an order is submitted.
	DefaultModifyTTL = 15 * time.Minute
	// DefaultHistoryTTL is how long we remember a conversation had a
	// session, used to tell "expired" apart from "brand new".
	DefaultHistoryTTL = 2 * time.Hour
)

// Context signals injected ahead of a dispatched batch. The dispatch
// collaborator reads these as instructions, so they are plain prose.
const (
	SignalNewConversation = "[session] New conversation. Build the order normally."
	SignalExpired         = "[session] Previous order session expired. A new order was started. Tell the customer the earlier order was not submitted and ask whether to start over."
	SignalOrderSent       = "[session] Order already submitted. If the customer wants changes, use the order-modification path."
)

// Session is the per-conversation order record stored as JSON.
type Session struct {
	Status    string     `json:"status"`
	StartedAt time.Time  `json:"started_at"`
	SentAt    *time.Time `json:"sent_at"`
	OrderID   string     `json:"order_id,omitempty"`
}

// Manager resolves and mutates order sessions. State is derived from the
// stored record plus its TTL on every read; there is no background expiry.
type Manager struct {
	store      kv.Store
	buildTTL   time.Duration
	modifyTTL  time.Duration
	historyTTL time.Duration
	logger     *slog.Logger
}

// Config overrides the default lifecycle windows. Zero fields keep defaults.
type Config struct {
	BuildTTL   time.Duration
	ModifyTTL  time.Duration
	HistoryTTL time.Duration
}

// New creates a Manager. Pass nil logger for default.
func New(store kv.Store, cfg Config, logger *slog.Logger) *Manager {
	if cfg.BuildTTL <= 0 {
		cfg.BuildTTL = DefaultBuildTTL
	}
	if cfg.ModifyTTL <= 0 {
		cfg.ModifyTTL = DefaultModifyTTL
	}
	if cfg.HistoryTTL <= 0 {
		cfg.HistoryTTL = DefaultHistoryTTL
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		store:      store,
		buildTTL:   cfg.BuildTTL,
		modifyTTL:  cfg.ModifyTTL,
		historyTTL: cfg.HistoryTTL,
		logger:     logger.With("component", "session"),
	}
}

func sessionKey(conversation string) string {
	return "order_session:" + conversation
}

func historyKey(conversation string) string {
	return "order_history:" + conversation
}

// BuildTTL exposes the building window so the cart can couple its own key's
// lifetime to the session's.
func (m *Manager) BuildTTL() time.Duration {
	return m.buildTTL
}

// Get returns the current session, or nil when absent, expired, or when the
// stored record cannot be decoded. A malformed record is logged and dropped
// so the next interaction starts fresh.
func (m *Manager) Get(ctx context.Context, conversation string) (*Session, error) {
	raw, err := m.store.Get(ctx, sessionKey(conversation))
	if errors.Is(err, kv.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading session: %w", err)
	}

	var s Session
	if err := json.Unmarshal([]byte(raw), &s); err != nil {
		m.logger.Warn("malformed session record, discarding",
			"conversation", conversation, "error", err)
		_ = m.store.Delete(ctx, sessionKey(conversation))
		return nil, nil
	}
	return &s, nil
}

// Start begins a fresh building session with the full build window,
// replacing whatever was stored before.
func (m *Manager) Start(ctx context.Context, conversation string) error {
	s := Session{
		Status:    StatusBuilding,
		StartedAt: time.Now(),
	}
	if err := m.write(ctx, conversation, &s, m.buildTTL); err != nil {
		return err
	}
	m.logger.Info("order session started",
		"conversation", conversation, "ttl", m.buildTTL)
	return nil
}

// Refresh re-arms the build window if, and only if, the session is still
// building. Sent sessions keep their shorter modification window untouched.
func (m *Manager) Refresh(ctx context.Context, conversation string) error {
	s, err := m.Get(ctx, conversation)
	if err != nil {
		return err
	}
	if s == nil || s.Status != StatusBuilding {
		return nil
	}
	if err := m.store.Expire(ctx, sessionKey(conversation), m.buildTTL); err != nil {
		return fmt.Errorf("refreshing session ttl: %w", err)
	}
	return nil
}

// MarkSent finalizes the order: status becomes sent, the TTL is cut down to
// the modification window, and the order id is recorded. A missing session
// is created on the spot so the modification window still applies.
func (m *Manager) MarkSent(ctx context.Context, conversation, orderID string) error {
	s, err := m.Get(ctx, conversation)
	if err != nil {
		return err
	}
	if s == nil {
		s = &Session{StartedAt: time.Now()}
	}
	if orderID == "" {
		orderID = uuid.New().String()
	}

	now := time.Now()
	s.Status = StatusSent
	s.SentAt = &now
	s.OrderID = orderID

	if err := m.write(ctx, conversation, s, m.modifyTTL); err != nil {
		return err
	}
	m.logger.Info("order marked sent",
		"conversation", conversation, "order_id", orderID, "ttl", m.modifyTTL)
	return nil
}

// Clear removes the session outright.
func (m *Manager) Clear(ctx context.Context, conversation string) error {
	if err := m.store.Delete(ctx, sessionKey(conversation)); err != nil {
		return fmt.Errorf("clearing session: %w", err)
	}
	m.logger.Info("order session cleared", "conversation", conversation)
	return nil
}

// CanModify reports whether the conversation's order may still be changed,
// with a short reason for the dispatch collaborator.
func (m *Manager) CanModify(ctx context.Context, conversation string) (bool, string) {
	s, err := m.Get(ctx, conversation)
	if err != nil || s == nil {
		return false, "no active order; a new one will be created"
	}
	switch s.Status {
	case StatusBuilding:
		return true, "order still being assembled"
	case StatusSent:
		// The key surviving means we are inside the modification window.
		return true, "order submitted recently; changes still allowed"
	}
	return false, "session expired; a new order will be created"
}

// ContextPrefix resolves the session state for a new batch and returns the
// signal to prepend. Side effects by state:
//
//   - absent, no history marker: start building session, set marker,
//     signal a brand-new conversation
//   - absent, marker present: start building session, signal that the
//     previous session expired (fires once per expiry - the next call sees
//     a building session)
//   - building: refresh the build window, no signal
//   - sent: no TTL refresh, signal that the order is already submitted
//
// The marker check happens before the marker write; the small window between
// them is accepted, matching the single-actor-per-conversation design.
func (m *Manager) ContextPrefix(ctx context.Context, conversation string) (string, error) {
	s, err := m.Get(ctx, conversation)
	if err != nil {
		return "", err
	}

	if s == nil {
		hadPrevious := m.hadPreviousSession(ctx, conversation)

		if err := m.Start(ctx, conversation); err != nil {
			return "", err
		}
		if err := m.store.Set(ctx, historyKey(conversation), "1", m.historyTTL); err != nil {
			m.logger.Warn("history marker write failed",
				"conversation", conversation, "error", err)
		}

		if hadPrevious {
			return SignalExpired, nil
		}
		return SignalNewConversation, nil
	}

	switch s.Status {
	case StatusBuilding:
		if err := m.Refresh(ctx, conversation); err != nil {
			m.logger.Warn("session refresh failed",
				"conversation", conversation, "error", err)
		}
		return "", nil
	case StatusSent:
		return SignalOrderSent, nil
	}

	m.logger.Warn("unknown session status, treating as building",
		"conversation", conversation, "status", s.Status)
	return "", nil
}

func (m *Manager) hadPreviousSession(ctx context.Context, conversation string) bool {
	_, err := m.store.Get(ctx, historyKey(conversation))
	return err == nil
}

func (m *Manager) write(ctx context.Context, conversation string, s *Session, ttl time.Duration) error {
	data, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("encoding session: %w", err)
	}
	if err := m.store.Set(ctx, sessionKey(conversation), string(data), ttl); err != nil {
		return fmt.Errorf("writing session: %w", err)
	}
	return nil
}
