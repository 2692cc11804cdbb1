// Package subscribe keeps UI consumers continuously fed with replacement
// snapshots of the shared collections. Subscriptions to the same
// (collection, filter) pair share one upstream store watch behind a
// reference-counted fan-out; store errors degrade the feed to fallback data
// instead of terminating it.
package subscribe

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"ajira/internal/platform/metrics"
	"ajira/internal/store"
	"ajira/internal/sync/degrade"
	"ajira/pkg/platform/sentinel"
)

// reprobePause paces liveness attempts while a feed is degraded. Each attempt
// itself waits up to the controller's probe timeout.
const reprobePause = 250 * time.Millisecond

// Snapshot is one complete replacement view of a collection. Consumers must
// treat it as authoritative and discard prior state.
type Snapshot struct {
	Collection store.Collection
	Mode       degrade.Mode
	Records    []store.Document
}

// Subscription is one caller's handle on a shared feed. Cancel is safe to
// call more than once and takes effect before it returns: no further
// snapshots are delivered afterwards.
type Subscription struct {
	ch     chan Snapshot
	cancel func()
	once   sync.Once
}

// Snapshots delivers replacement snapshots. A slow consumer observes newer
// snapshots replacing undelivered older ones; the final state always gets
// through. The channel closes only on Cancel.
func (s *Subscription) Snapshots() <-chan Snapshot { return s.ch }

func (s *Subscription) Cancel() { s.once.Do(s.cancel) }

func (s *Subscription) push(snap Snapshot) {
	for {
		select {
		case s.ch <- snap:
			return
		default:
			select {
			case <-s.ch:
			default:
			}
		}
	}
}

// Manager opens and tears down live subscriptions per collection per
// consumer.
type Manager struct {
	ctrl    *degrade.Controller
	session *store.Session
	logger  *slog.Logger
	metrics *metrics.Metrics

	mu    sync.Mutex
	feeds map[feedKey]*feed
}

type feedKey struct {
	col    store.Collection
	filter string
}

type Option func(*Manager)

func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) { m.logger = logger }
}

func WithMetrics(mx *metrics.Metrics) Option {
	return func(m *Manager) { m.metrics = mx }
}

func NewManager(session *store.Session, ctrl *degrade.Controller, opts ...Option) *Manager {
	m := &Manager{
		ctrl:    ctrl,
		session: session,
		feeds:   make(map[feedKey]*feed),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Subscribe attaches a consumer to the shared feed for (col, filter),
// creating the feed and its upstream watch on first use. The feed outlives
// the caller's context; only Cancel detaches the consumer.
func (m *Manager) Subscribe(col store.Collection, filter store.Filter) *Subscription {
	key := feedKey{col: col, filter: filter.Key()}

	m.mu.Lock()
	f, ok := m.feeds[key]
	if !ok {
		ctx, stop := context.WithCancel(context.Background())
		f = &feed{
			m:      m,
			key:    key,
			col:    col,
			filter: filter,
			ctx:    ctx,
			stop:   stop,
			subs:   make(map[uint64]*Subscription),
		}
		m.feeds[key] = f
		go f.run()
	}
	// Attach under the manager lock so a concurrent last-subscriber cancel
	// cannot tear the feed down between lookup and attach.
	sub := f.attach()
	m.mu.Unlock()
	return sub
}

// detach removes one subscriber and tears the feed down when its reference
// count reaches zero.
func (m *Manager) detach(f *feed, id uint64) {
	m.mu.Lock()
	f.mu.Lock()
	sub, ok := f.subs[id]
	if ok {
		delete(f.subs, id)
		close(sub.ch)
		if m.metrics != nil {
			m.metrics.ActiveSubscriptions.WithLabelValues(string(f.col)).Dec()
		}
	}
	empty := len(f.subs) == 0
	f.mu.Unlock()
	if empty {
		f.stop()
		delete(m.feeds, f.key)
	}
	m.mu.Unlock()
}

// feed owns the single upstream watch for one (collection, filter) pair and
// fans its snapshots out to every attached subscriber.
type feed struct {
	m      *Manager
	key    feedKey
	col    store.Collection
	filter store.Filter
	ctx    context.Context
	stop   context.CancelFunc

	mu     sync.Mutex
	subs   map[uint64]*Subscription
	nextID uint64
	last   *Snapshot
}

func (f *feed) attach() *Subscription {
	f.mu.Lock()
	defer f.mu.Unlock()
	id := f.nextID
	f.nextID++
	sub := &Subscription{ch: make(chan Snapshot, 1)}
	sub.cancel = func() { f.m.detach(f, id) }
	f.subs[id] = sub
	if f.last != nil {
		sub.push(*f.last)
	}
	if f.m.metrics != nil {
		f.m.metrics.ActiveSubscriptions.WithLabelValues(string(f.col)).Inc()
	}
	return sub
}

func (f *feed) broadcast(snap Snapshot) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.last = &snap
	for _, sub := range f.subs {
		sub.push(snap)
	}
	if f.m.metrics != nil {
		f.m.metrics.SnapshotsDelivered.WithLabelValues(string(f.col), string(snap.Mode)).
			Add(float64(len(f.subs)))
	}
}

func (f *feed) broadcastFallback() {
	f.broadcast(Snapshot{
		Collection: f.col,
		Mode:       degrade.ModeFallback,
		Records:    degrade.FallbackFiltered(f.col, f.filter),
	})
}

// run is the feed's long-lived task: establish liveness, relay store
// snapshots, and absorb store errors into fallback mode. It exits only when
// the last subscriber cancels.
func (f *feed) run() {
	for f.ctx.Err() == nil {
		cli := f.acquireLive()
		if cli == nil {
			return
		}

		watcher, err := cli.Watch(f.ctx, f.col, f.filter)
		if err != nil {
			f.degrade(err)
			f.pause()
			continue
		}
		f.relay(watcher)
		f.pause()
	}
}

// pause spaces re-establishment attempts so a persistently failing watch
// cannot spin.
func (f *feed) pause() {
	select {
	case <-f.ctx.Done():
	case <-time.After(reprobePause):
	}
}

// acquireLive blocks until a live client is available, serving the fallback
// dataset exactly once per degraded period. Returns nil when the feed is
// being torn down.
func (f *feed) acquireLive() store.Client {
	cli, mode := f.m.ctrl.Acquire(f.ctx, f.col)
	if mode == degrade.ModeLive {
		return cli
	}
	f.broadcastFallback()

	for {
		select {
		case <-f.ctx.Done():
			return nil
		case <-time.After(reprobePause):
		}
		cli, mode = f.m.ctrl.Acquire(f.ctx, f.col)
		if mode == degrade.ModeLive {
			return cli
		}
	}
}

// relay forwards watcher snapshots to subscribers until the watch ends. A
// watch that ends with an error re-enters fallback; teardown just returns.
func (f *feed) relay(watcher store.Watcher) {
	defer watcher.Close()
	for {
		select {
		case <-f.ctx.Done():
			return
		case snap, ok := <-watcher.Snapshots():
			if !ok {
				if f.ctx.Err() != nil {
					return
				}
				err := watcher.Err()
				if err == nil {
					err = sentinel.ErrSubscriptionDegraded
				}
				f.degrade(err)
				return
			}
			f.broadcast(Snapshot{Collection: f.col, Mode: degrade.ModeLive, Records: snap})
		}
	}
}

// degrade absorbs a store error into fallback mode; the stream never dies.
func (f *feed) degrade(err error) {
	if f.m.logger != nil {
		f.m.logger.Warn("store subscription failed, serving fallback",
			"collection", f.col, "error", err)
	}
	f.m.ctrl.MarkDegraded(f.col)
	if errors.Is(err, sentinel.ErrStoreUnavailable) {
		// Connection-level failure: force the next probe to redial.
		f.m.session.Reset()
	}
	f.broadcastFallback()
}
