package store

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	supabase "github.com/nedpals/supabase-go"

	"ajira/pkg/platform/sentinel"
)

// defaultPollInterval paces the watch loop; the nedpals SDK exposes PostgREST
// but not the realtime socket, so the change feed is poll-based.
const defaultPollInterval = 3 * time.Second

// SupabaseStore is a Client backed by a Supabase project, one table per
// collection. Documents round-trip through the SDK as generic maps.
type SupabaseStore struct {
	client       *supabase.Client
	pollInterval time.Duration
	logger       *slog.Logger
}

type SupabaseOption func(*SupabaseStore)

func WithPollInterval(d time.Duration) SupabaseOption {
	return func(s *SupabaseStore) {
		if d > 0 {
			s.pollInterval = d
		}
	}
}

// NewSupabaseStore creates a store from project credentials.
func NewSupabaseStore(url, key string, logger *slog.Logger, opts ...SupabaseOption) (*SupabaseStore, error) {
	if url == "" || key == "" {
		return nil, fmt.Errorf("%w: supabase URL and key must be provided", sentinel.ErrStoreUnavailable)
	}
	s := &SupabaseStore{
		client:       supabase.CreateClient(url, key),
		pollInterval: defaultPollInterval,
		logger:       logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

func (s *SupabaseStore) GetAll(_ context.Context, col Collection, filter Filter) ([]Document, error) {
	query := &s.client.DB.From(string(col)).Select("*").FilterRequestBuilder
	for field, value := range filter {
		query = query.Eq(field, fmt.Sprintf("%v", value))
	}
	var rows []Document
	if err := query.Execute(&rows); err != nil {
		return nil, fmt.Errorf("%w: %v", sentinel.ErrStoreUnavailable, err)
	}
	if rows == nil {
		rows = []Document{}
	}
	return rows, nil
}

func (s *SupabaseStore) Create(_ context.Context, col Collection, doc Document) (string, error) {
	stored := doc.Clone()
	if stored.ID() == "" {
		stored["id"] = uuid.NewString()
	}
	var results []Document
	if err := s.client.DB.From(string(col)).Insert(stored).Execute(&results); err != nil {
		return "", fmt.Errorf("%w: %v", sentinel.ErrWriteRejected, err)
	}
	return stored.ID(), nil
}

func (s *SupabaseStore) Update(_ context.Context, col Collection, id string, patch Document) error {
	var results []Document
	err := s.client.DB.From(string(col)).Update(patch).Eq("id", id).Execute(&results)
	if err != nil {
		return fmt.Errorf("%w: %v", sentinel.ErrWriteRejected, err)
	}
	if len(results) == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func (s *SupabaseStore) Delete(_ context.Context, col Collection, id string) error {
	var results []Document
	if err := s.client.DB.From(string(col)).Delete().Eq("id", id).Execute(&results); err != nil {
		return fmt.Errorf("%w: %v", sentinel.ErrWriteRejected, err)
	}
	return nil
}

// AtomicIncrement calls a database function so the increment happens
// store-side in one statement, not read-modify-write here.
//
// Requires the SQL function:
//
//	create function increment_field(p_table text, p_id text, p_field text, p_delta bigint)
//	returns void language plpgsql as $$ ... $$;
func (s *SupabaseStore) AtomicIncrement(_ context.Context, col Collection, id, field string, delta int64) error {
	var out any
	err := s.client.DB.Rpc("increment_field", map[string]any{
		"p_table": string(col),
		"p_id":    id,
		"p_field": field,
		"p_delta": delta,
	}).Execute(&out)
	if err != nil {
		return fmt.Errorf("%w: %v", sentinel.ErrWriteRejected, err)
	}
	return nil
}

func (s *SupabaseStore) Watch(ctx context.Context, col Collection, filter Filter) (Watcher, error) {
	// Verify reachability before handing out a watcher so subscribe-time
	// outages surface as errors, not as a silent empty feed.
	if _, err := s.GetAll(ctx, col, filter); err != nil {
		return nil, err
	}
	watchCtx, cancel := context.WithCancel(context.Background())
	w := &pollWatcher{
		ch:     make(chan []Document, 1),
		cancel: cancel,
	}
	go w.run(watchCtx, s, col, filter)
	return w, nil
}

// pollWatcher re-queries on a ticker and pushes a snapshot only when the
// result set changed since the last push.
type pollWatcher struct {
	ch     chan []Document
	cancel context.CancelFunc

	mu     sync.Mutex
	closed bool
	err    error
}

func (w *pollWatcher) run(ctx context.Context, s *SupabaseStore, col Collection, filter Filter) {
	var lastDigest [sha256.Size]byte
	poll := func() bool {
		snap, err := s.GetAll(ctx, col, filter)
		if err != nil {
			w.fail(err)
			return false
		}
		raw, err := json.Marshal(snap)
		if err != nil {
			w.fail(err)
			return false
		}
		digest := sha256.Sum256(raw)
		if digest != lastDigest {
			lastDigest = digest
			w.push(snap)
		}
		return true
	}
	if !poll() {
		return
	}

	ticker := time.NewTicker(s.pollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			w.finish(nil)
			return
		case <-ticker.C:
			if !poll() {
				return
			}
		}
	}
}

func (w *pollWatcher) Snapshots() <-chan []Document { return w.ch }

func (w *pollWatcher) Err() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.err
}

func (w *pollWatcher) Close() {
	w.cancel()
	w.finish(nil)
}

func (w *pollWatcher) fail(err error) {
	w.cancel()
	w.finish(err)
}

func (w *pollWatcher) finish(err error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return
	}
	w.err = err
	w.closed = true
	close(w.ch)
}

func (w *pollWatcher) push(snap []Document) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return
	}
	for {
		select {
		case w.ch <- snap:
			return
		default:
			select {
			case <-w.ch:
			default:
			}
		}
	}
}
