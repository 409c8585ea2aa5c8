// ABOUTME: Inbound event entry point - normalizes conversation keys and routes events
// ABOUTME: Order: operator takeover check, cooldown short-circuit, buffer push, worker spawn

package ingress

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/caravela-labs/mercado-gateway/internal/buffer"
	"github.com/caravela-labs/mercado-gateway/internal/cooldown"
)

// ErrInvalidKey is returned for identifiers that do not normalize to a
// plausible phone number.
var ErrInvalidKey = errors.New("invalid conversation key")

// Result tells the transport layer what happened to an inbound event.
type Result string

const (
	// ResultBuffering means the message was queued and a worker is active.
	ResultBuffering Result = "buffering"
	// ResultCooldown means the message was queued but automation is paused.
	ResultCooldown Result = "cooldown"
	// ResultTakeover means an operator message activated the cooldown.
	ResultTakeover Result = "takeover"
	// ResultIgnored means the event carried nothing to process.
	ResultIgnored Result = "ignored"
)

// Spawner starts a debounce worker for a conversation.
type Spawner interface {
	Spawn(conversation string) bool
}

// Recorder persists inbound messages to the transcript. Optional.
type Recorder interface {
	Save(ctx context.Context, conversation, author, text string) error
}

// Service routes normalized inbound events into the buffer, the cooldown
// guard, and the coordinator.
type Service struct {
	buffer         *buffer.Buffer
	cooldowns      *cooldown.Guard
	coordinator    Spawner
	transcripts    Recorder
	cooldownTTL    time.Duration
	operatorNumber string
	logger         *slog.Logger
}

// Config for the ingress service.
type Config struct {
	// CooldownTTL is the takeover suppression window.
	CooldownTTL time.Duration
	// OperatorNumber is the operator's own number; operator messages sent
	// to it are internal chatter, not takeovers. May be empty.
	OperatorNumber string
}

// New creates the ingress service. transcripts may be nil. Pass nil logger
// for default.
func New(buf *buffer.Buffer, cooldowns *cooldown.Guard, coordinator Spawner, transcripts Recorder, cfg Config, logger *slog.Logger) *Service {
	if cfg.CooldownTTL <= 0 {
		cfg.CooldownTTL = cooldown.DefaultTTL
	}
	if logger == nil {
		logger = slog.Default()
	}
	operator := ""
	if cfg.OperatorNumber != "" {
		if n, err := NormalizeKey(cfg.OperatorNumber); err == nil {
			operator = n
		}
	}
	return &Service{
		buffer:         buf,
		cooldowns:      cooldowns,
		coordinator:    coordinator,
		transcripts:    transcripts,
		cooldownTTL:    cfg.CooldownTTL,
		operatorNumber: operator,
		logger:         logger.With("component", "ingress"),
	}
}

// NormalizeKey reduces an external identifier to the digits-only
// conversation key. Identifiers outside 10-15 digits are rejected; that
// range covers national numbers with country codes and filters out device
// and group ids.
func NormalizeKey(raw string) (string, error) {
	var b strings.Builder
	for _, r := range raw {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	key := b.String()
	if len(key) < 10 || len(key) > 15 {
		return "", ErrInvalidKey
	}
	return key, nil
}

// HandleInbound processes one inbound event. operator marks events that
// originated from the human operator's own account (a takeover signal, not
// customer traffic). The call never fails: store trouble is logged and the
// event is answered promptly regardless.
func (s *Service) HandleInbound(ctx context.Context, rawKey, text string, operator bool) Result {
	key, err := NormalizeKey(rawKey)
	if err != nil {
		s.logger.Debug("ignoring event with unusable key", "raw", rawKey)
		return ResultIgnored
	}
	if strings.TrimSpace(text) == "" {
		return ResultIgnored
	}

	if operator {
		return s.handleTakeover(ctx, key, text)
	}

	s.record(ctx, key, "customer", text)

	if active, remaining := s.cooldowns.Active(ctx, key); active {
		// Buffered but not interpreted: when the cooldown lifts, the
		// next inbound message's worker picks these up too.
		if err := s.buffer.Push(ctx, key, text); err != nil {
			s.logger.Error("buffering during cooldown failed", "conversation", key, "error", err)
		}
		s.logger.Info("automation suppressed",
			"conversation", key, "cooldown_remaining_s", remaining)
		return ResultCooldown
	}

	if err := s.buffer.Push(ctx, key, text); err != nil {
		s.logger.Error("buffer push failed", "conversation", key, "error", err)
	}
	if s.coordinator.Spawn(key) {
		s.logger.Debug("worker spawned", "conversation", key)
	}
	return ResultBuffering
}

// handleTakeover pauses automation for the conversation the operator wrote
// to. Messages the operator sends to their own number are ignored.
func (s *Service) handleTakeover(ctx context.Context, key, text string) Result {
	if s.operatorNumber != "" && key == s.operatorNumber {
		return ResultIgnored
	}

	if err := s.cooldowns.Set(ctx, key, s.cooldownTTL); err != nil {
		s.logger.Error("takeover cooldown failed", "conversation", key, "error", err)
	} else {
		s.logger.Info("human takeover, automation paused",
			"conversation", key, "ttl", s.cooldownTTL)
	}
	s.record(ctx, key, "operator", text)
	return ResultTakeover
}

func (s *Service) record(ctx context.Context, key, author, text string) {
	if s.transcripts == nil {
		return
	}
	if err := s.transcripts.Save(ctx, key, author, text); err != nil {
		s.logger.Warn("transcript write failed", "conversation", key, "error", err)
	}
}
