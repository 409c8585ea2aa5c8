// ABOUTME: Per-conversation debounce workers that coalesce message bursts into one dispatch
// ABOUTME: Registry guarantees at most one worker, and so one in-flight dispatch, per conversation

package debounce

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"
)

// Defaults: three quiet polls of five seconds each, so a burst is dispatched
// after roughly fifteen seconds of quiescence.
const (
	DefaultQuantum    = 5 * time.Second
	DefaultStallLimit = 3
)

// MessageBuffer is what the coordinator needs from the message buffer.
type MessageBuffer interface {
	Len(ctx context.Context, conversation string) int
	Drain(ctx context.Context, conversation string) []string
}

// ContextProvider resolves the session signal prepended to a batch. The call
// may mutate session state (start, refresh, mark expired-seen).
type ContextProvider interface {
	ContextPrefix(ctx context.Context, conversation string) (string, error)
}

// Dispatcher is the downstream collaborator that turns a composed batch into
// a reply. Treated as opaque and possibly slow; the worker blocks on it.
type Dispatcher interface {
	Dispatch(ctx context.Context, conversation, text string) (string, error)
}

// Deliverer hands the reply to the outbound side. Delivery failures are the
// deliverer's to log; the worker moves on either way.
type Deliverer interface {
	Deliver(ctx context.Context, conversation, reply string) error
}

// Config tunes the quiescence detection.
type Config struct {
	Quantum    time.Duration // poll interval
	StallLimit int           // consecutive quiet polls before draining
}

// Coordinator owns the per-process registry of active conversation workers
// and runs the wait-drain-dispatch loop for each.
type Coordinator struct {
	buffer     MessageBuffer
	sessions   ContextProvider
	dispatcher Dispatcher
	deliverer  Deliverer
	quantum    time.Duration
	stallLimit int
	logger     *slog.Logger

	mu     sync.Mutex
	active map[string]struct{}
}

// New creates a Coordinator. Zero config fields keep defaults. Pass nil
// logger for default.
func New(buf MessageBuffer, sessions ContextProvider, dispatcher Dispatcher, deliverer Deliverer, cfg Config, logger *slog.Logger) *Coordinator {
	if cfg.Quantum <= 0 {
		cfg.Quantum = DefaultQuantum
	}
	if cfg.StallLimit <= 0 {
		cfg.StallLimit = DefaultStallLimit
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Coordinator{
		buffer:     buf,
		sessions:   sessions,
		dispatcher: dispatcher,
		deliverer:  deliverer,
		quantum:    cfg.Quantum,
		stallLimit: cfg.StallLimit,
		logger:     logger.With("component", "debounce"),
	}
}

// Spawn starts a worker for the conversation unless one is already running.
// Returns true when a new worker was started.
func (c *Coordinator) Spawn(conversation string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.active == nil {
		c.active = make(map[string]struct{})
	}
	if _, running := c.active[conversation]; running {
		return false
	}
	c.active[conversation] = struct{}{}

	go c.run(conversation)
	return true
}

// Active reports whether a worker is currently registered for the conversation.
func (c *Coordinator) Active(conversation string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, running := c.active[conversation]
	return running
}

// ActiveCount returns the number of running workers.
func (c *Coordinator) ActiveCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.active)
}

// run is the worker loop. It exits when the buffer is empty at loop top;
// the conversation then becomes eligible for a fresh worker on the next
// inbound message. There is no cancellation: process shutdown abandons
// in-flight workers without resume state.
func (c *Coordinator) run(conversation string) {
	defer func() {
		if r := recover(); r != nil {
			c.logger.Error("worker panicked, abandoning conversation",
				"conversation", conversation, "panic", r)
		}
		c.mu.Lock()
		delete(c.active, conversation)
		c.mu.Unlock()
		c.logger.Debug("worker stopped", "conversation", conversation)
	}()

	ctx := context.Background()
	c.logger.Debug("worker started", "conversation", conversation)

	for {
		prev := c.buffer.Len(ctx, conversation)
		if prev == 0 {
			return
		}

		// Wait for quiescence: the poll count resets whenever new
		// messages arrive, so a burst is captured whole.
		stall := 0
		for stall < c.stallLimit {
			time.Sleep(c.quantum)
			curr := c.buffer.Len(ctx, conversation)
			if curr > prev {
				prev = curr
				stall = 0
			} else {
				stall++
			}
		}

		batch := c.buffer.Drain(ctx, conversation)
		text := joinBatch(batch)
		if text == "" {
			return
		}

		prefix, err := c.sessions.ContextPrefix(ctx, conversation)
		if err != nil {
			c.logger.Error("session context failed, dispatching without it",
				"conversation", conversation, "error", err)
			prefix = ""
		}
		composed := text
		if prefix != "" {
			composed = prefix + "\n\n" + text
		}

		c.logger.Info("dispatching batch",
			"conversation", conversation, "messages", len(batch))

		reply, err := c.dispatcher.Dispatch(ctx, conversation, composed)
		if err != nil {
			// The batch is lost but the worker survives: messages that
			// arrived during the failed dispatch get the next pass.
			c.logger.Error("dispatch failed",
				"conversation", conversation, "error", err)
			continue
		}

		if reply != "" && c.deliverer != nil {
			if err := c.deliverer.Deliver(ctx, conversation, reply); err != nil {
				c.logger.Error("reply delivery failed",
					"conversation", conversation, "error", err)
			}
		}
	}
}

// joinBatch composes a drained batch into one text, separating messages with
// " | " so the agent can tell individual items apart. Blank messages are
// dropped.
func joinBatch(batch []string) string {
	parts := make([]string, 0, len(batch))
	for _, m := range batch {
		if strings.TrimSpace(m) != "" {
			parts = append(parts, m)
		}
	}
	return strings.Join(parts, " | ")
}
