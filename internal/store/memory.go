package store

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"ajira/pkg/platform/sentinel"
)

// MemoryStore is an in-memory Client with change notification. It backs unit
// tests and local development and intentionally favors clarity over
// performance. Snapshots keep insertion order, which stands in for the remote
// store's notification order.
type MemoryStore struct {
	mu          sync.RWMutex
	data        map[Collection]map[string]Document
	order       map[Collection][]string
	watchers    map[Collection][]*memoryWatcher
	unavailable bool
	writeErr    error
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		data:     make(map[Collection]map[string]Document),
		order:    make(map[Collection][]string),
		watchers: make(map[Collection][]*memoryWatcher),
	}
}

// SetUnavailable makes every operation fail with ErrStoreUnavailable, to
// exercise degraded-mode paths in tests.
func (s *MemoryStore) SetUnavailable(down bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.unavailable = down
}

// FailWrites makes create/update/delete return the given error until reset
// with nil. Reads and watches are unaffected.
func (s *MemoryStore) FailWrites(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.writeErr = err
}

func (s *MemoryStore) GetAll(_ context.Context, col Collection, filter Filter) ([]Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.unavailable {
		return nil, sentinel.ErrStoreUnavailable
	}
	return s.snapshotLocked(col, filter), nil
}

func (s *MemoryStore) Create(_ context.Context, col Collection, doc Document) (string, error) {
	s.mu.Lock()
	if s.unavailable {
		s.mu.Unlock()
		return "", sentinel.ErrStoreUnavailable
	}
	if s.writeErr != nil {
		err := s.writeErr
		s.mu.Unlock()
		return "", err
	}
	id := doc.ID()
	if id == "" {
		id = uuid.NewString()
	}
	stored := doc.Clone()
	stored["id"] = id
	if s.data[col] == nil {
		s.data[col] = make(map[string]Document)
	}
	if _, exists := s.data[col][id]; !exists {
		s.order[col] = append(s.order[col], id)
	}
	s.data[col][id] = stored
	s.notifyLocked(col)
	s.mu.Unlock()
	return id, nil
}

func (s *MemoryStore) Update(_ context.Context, col Collection, id string, patch Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.unavailable {
		return sentinel.ErrStoreUnavailable
	}
	if s.writeErr != nil {
		return s.writeErr
	}
	existing, ok := s.data[col][id]
	if !ok {
		return sentinel.ErrNotFound
	}
	updated := existing.Clone()
	for k, v := range patch {
		updated[k] = v
	}
	updated["id"] = id
	s.data[col][id] = updated
	s.notifyLocked(col)
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, col Collection, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.unavailable {
		return sentinel.ErrStoreUnavailable
	}
	if s.writeErr != nil {
		return s.writeErr
	}
	if _, ok := s.data[col][id]; !ok {
		return sentinel.ErrNotFound
	}
	delete(s.data[col], id)
	ids := s.order[col]
	for i, existing := range ids {
		if existing == id {
			s.order[col] = append(ids[:i:i], ids[i+1:]...)
			break
		}
	}
	s.notifyLocked(col)
	return nil
}

func (s *MemoryStore) AtomicIncrement(_ context.Context, col Collection, id, field string, delta int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.unavailable {
		return sentinel.ErrStoreUnavailable
	}
	if s.writeErr != nil {
		return s.writeErr
	}
	existing, ok := s.data[col][id]
	if !ok {
		return sentinel.ErrNotFound
	}
	updated := existing.Clone()
	updated[field] = toInt64(updated[field]) + delta
	s.data[col][id] = updated
	s.notifyLocked(col)
	return nil
}

func (s *MemoryStore) Watch(_ context.Context, col Collection, filter Filter) (Watcher, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.unavailable {
		return nil, sentinel.ErrStoreUnavailable
	}
	w := &memoryWatcher{
		store:  s,
		col:    col,
		filter: filter,
		ch:     make(chan []Document, 1),
	}
	s.watchers[col] = append(s.watchers[col], w)
	// Initial snapshot so subscribers render current state immediately.
	w.push(s.snapshotLocked(col, filter))
	return w, nil
}

// WatcherCount reports the open watchers for a collection, so tests can
// assert reference-counted teardown.
func (s *MemoryStore) WatcherCount(col Collection) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.watchers[col])
}

// FailWatchers closes every open watcher with the given error, simulating the
// store erroring out established subscriptions.
func (s *MemoryStore) FailWatchers(col Collection, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, w := range s.watchers[col] {
		w.fail(err)
	}
	s.watchers[col] = nil
}

func (s *MemoryStore) snapshotLocked(col Collection, filter Filter) []Document {
	out := make([]Document, 0)
	for _, id := range s.order[col] {
		doc := s.data[col][id]
		if filter.Matches(doc) {
			out = append(out, doc.Clone())
		}
	}
	return out
}

func (s *MemoryStore) notifyLocked(col Collection) {
	for _, w := range s.watchers[col] {
		w.push(s.snapshotLocked(col, w.filter))
	}
}

func toInt64(v any) int64 {
	switch n := v.(type) {
	case int64:
		return n
	case int:
		return int64(n)
	case float64:
		return int64(n)
	case nil:
		return 0
	default:
		var parsed int64
		fmt.Sscanf(fmt.Sprintf("%v", n), "%d", &parsed)
		return parsed
	}
}

// memoryWatcher delivers the latest snapshot without ever blocking the store:
// a slow consumer sees older intermediate snapshots replaced by newer ones.
type memoryWatcher struct {
	store  *MemoryStore
	col    Collection
	filter Filter

	mu     sync.Mutex
	ch     chan []Document
	closed bool
	err    error
}

func (w *memoryWatcher) Snapshots() <-chan []Document { return w.ch }

func (w *memoryWatcher) Err() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.err
}

func (w *memoryWatcher) Close() {
	w.store.mu.Lock()
	watchers := w.store.watchers[w.col]
	for i, existing := range watchers {
		if existing == w {
			w.store.watchers[w.col] = append(watchers[:i:i], watchers[i+1:]...)
			break
		}
	}
	w.store.mu.Unlock()

	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.closed {
		w.closed = true
		close(w.ch)
	}
}

func (w *memoryWatcher) fail(err error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return
	}
	w.err = err
	w.closed = true
	close(w.ch)
}

func (w *memoryWatcher) push(snap []Document) {
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
