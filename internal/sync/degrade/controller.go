// Package degrade decides, per subscription, whether consumers are served
// live store data or the deterministic seed dataset, and tracks transitions
// between the two so the UI always has something coherent to render.
package degrade

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"ajira/internal/platform/metrics"
	"ajira/internal/store"
)

// Mode is the serving state of a collection's subscription path.
type Mode string

const (
	ModeLive     Mode = "live"
	ModeFallback Mode = "fallback"
)

const defaultProbeTimeout = 2 * time.Second

// Controller arbitrates between the live store and fallback data. The policy:
// try live with a bounded wait; on failure serve fallback immediately and keep
// probing in the background; once live, stay live for the subscription's
// lifetime unless the store itself errors, in which case re-enter fallback.
type Controller struct {
	session      *store.Session
	probeTimeout time.Duration
	logger       *slog.Logger
	metrics      *metrics.Metrics

	mu    sync.Mutex
	modes map[store.Collection]Mode
}

type Option func(*Controller)

func WithProbeTimeout(d time.Duration) Option {
	return func(c *Controller) {
		if d > 0 {
			c.probeTimeout = d
		}
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(c *Controller) { c.logger = logger }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Controller) { c.metrics = m }
}

func New(session *store.Session, opts ...Option) *Controller {
	c := &Controller{
		session:      session,
		probeTimeout: defaultProbeTimeout,
		modes:        make(map[store.Collection]Mode),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Acquire tries to establish a live client within the bounded probe window.
// On failure it records fallback mode for the collection and returns a nil
// client; the caller serves Fallback data and retries liveness separately.
func (c *Controller) Acquire(ctx context.Context, col store.Collection) (store.Client, Mode) {
	probeCtx, cancel := context.WithTimeout(ctx, c.probeTimeout)
	defer cancel()

	cli, err := c.session.Client(probeCtx)
	if err != nil {
		c.MarkDegraded(col)
		return nil, ModeFallback
	}
	c.MarkLive(col)
	return cli, ModeLive
}

// Resolve reports the current serving mode for a collection. Collections that
// have never been probed resolve to live so first subscribers attempt the
// store.
func (c *Controller) Resolve(col store.Collection) Mode {
	c.mu.Lock()
	defer c.mu.Unlock()
	if mode, ok := c.modes[col]; ok {
		return mode
	}
	return ModeLive
}

// Modes returns a copy of the per-collection serving states, for health
// reporting.
func (c *Controller) Modes() map[store.Collection]Mode {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make(map[store.Collection]Mode, len(c.modes))
	for col, mode := range c.modes {
		out[col] = mode
	}
	return out
}

// MarkLive records that a collection's subscription path reached the store.
func (c *Controller) MarkLive(col store.Collection) {
	c.mu.Lock()
	prev := c.modes[col]
	c.modes[col] = ModeLive
	c.mu.Unlock()
	if prev == ModeFallback && c.logger != nil {
		c.logger.Info("subscription recovered to live data", "collection", col)
	}
}

// MarkDegraded records a fallback transition after a store error or a failed
// probe.
func (c *Controller) MarkDegraded(col store.Collection) {
	c.mu.Lock()
	prev := c.modes[col]
	c.modes[col] = ModeFallback
	c.mu.Unlock()
	if prev == ModeFallback {
		return
	}
	if c.logger != nil {
		c.logger.Warn("subscription degraded to fallback data", "collection", col)
	}
	if c.metrics != nil {
		c.metrics.FallbackActivations.WithLabelValues(string(col)).Inc()
	}
}

// ProbeTimeout exposes the bounded wait so the subscription layer can pace
// its background liveness retries consistently.
func (c *Controller) ProbeTimeout() time.Duration {
	return c.probeTimeout
}
