// ABOUTME: Failover Store that degrades to an in-process fallback when the primary errors
// ABOUTME: Ingress must always return promptly, so store trouble is logged, never surfaced

package kv

import (
	"context"
	"errors"
	"log/slog"
	"time"
)

// Failover wraps a primary Store (Redis) and a fallback (memory). Every
// operation is tried against the primary first; infrastructure errors are
// logged as degraded service and the operation is replayed on the fallback.
//
// ErrNotFound from the primary is authoritative and is never retried on the
// fallback. While degraded, reads reflect only what the fallback has seen,
// so cooldowns and sessions written before the outage appear absent - the
// neutral defaults every caller tolerates.
type Failover struct {
	primary  Store
	fallback Store
	logger   *slog.Logger
}

// NewFailover wires a primary and fallback store. Pass nil logger for default.
func NewFailover(primary, fallback Store, logger *slog.Logger) *Failover {
	if logger == nil {
		logger = slog.Default()
	}
	return &Failover{
		primary:  primary,
		fallback: fallback,
		logger:   logger.With("component", "kv"),
	}
}

// degraded reports whether err warrants falling back, logging it when so.
func (f *Failover) degraded(op, key string, err error) bool {
	if err == nil || errors.Is(err, ErrNotFound) {
		return false
	}
	f.logger.Warn("primary store degraded, using fallback",
		"op", op,
		"key", key,
		"error", err)
	return true
}

func (f *Failover) Set(ctx context.Context, key, val string, ttl time.Duration) error {
	err := f.primary.Set(ctx, key, val, ttl)
	if f.degraded("set", key, err) {
		return f.fallback.Set(ctx, key, val, ttl)
	}
	return err
}

func (f *Failover) Get(ctx context.Context, key string) (string, error) {
	val, err := f.primary.Get(ctx, key)
	if f.degraded("get", key, err) {
		return f.fallback.Get(ctx, key)
	}
	return val, err
}

func (f *Failover) PushList(ctx context.Context, key, val string) error {
	err := f.primary.PushList(ctx, key, val)
	if f.degraded("push_list", key, err) {
		return f.fallback.PushList(ctx, key, val)
	}
	return err
}

func (f *Failover) ListRange(ctx context.Context, key string) ([]string, error) {
	vals, err := f.primary.ListRange(ctx, key)
	if f.degraded("list_range", key, err) {
		return f.fallback.ListRange(ctx, key)
	}
	return vals, err
}

func (f *Failover) ListLen(ctx context.Context, key string) (int, error) {
	n, err := f.primary.ListLen(ctx, key)
	if f.degraded("list_len", key, err) {
		return f.fallback.ListLen(ctx, key)
	}
	return n, err
}

func (f *Failover) DrainList(ctx context.Context, key string) ([]string, error) {
	vals, err := f.primary.DrainList(ctx, key)
	if f.degraded("drain_list", key, err) {
		return f.fallback.DrainList(ctx, key)
	}
	return vals, err
}

func (f *Failover) RemoveListValue(ctx context.Context, key, val string) error {
	err := f.primary.RemoveListValue(ctx, key, val)
	if f.degraded("remove_list_value", key, err) {
		return f.fallback.RemoveListValue(ctx, key, val)
	}
	return err
}

func (f *Failover) Expire(ctx context.Context, key string, ttl time.Duration) error {
	err := f.primary.Expire(ctx, key, ttl)
	if f.degraded("expire", key, err) {
		return f.fallback.Expire(ctx, key, ttl)
	}
	return err
}

func (f *Failover) TTL(ctx context.Context, key string) (time.Duration, error) {
	ttl, err := f.primary.TTL(ctx, key)
	if f.degraded("ttl", key, err) {
		return f.fallback.TTL(ctx, key)
	}
	return ttl, err
}

func (f *Failover) Delete(ctx context.Context, key string) error {
	err := f.primary.Delete(ctx, key)
	if f.degraded("delete", key, err) {
		return f.fallback.Delete(ctx, key)
	}
	return err
}

func (f *Failover) Ping(ctx context.Context) error {
	return f.primary.Ping(ctx)
}

func (f *Failover) Close() error {
	ferr := f.fallback.Close()
	if err := f.primary.Close(); err != nil {
		return err
	}
	return ferr
}
