package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"ajira/pkg/platform/sentinel"
)

// notifyChannel is the LISTEN/NOTIFY channel carrying collection names.
const notifyChannel = "ajira_changes"

// PostgresStore keeps every collection in one jsonb documents table and uses
// LISTEN/NOTIFY as the change feed: each write notifies with the collection
// name, and watchers re-query the full matching set, which yields the
// replacement-snapshot semantics the subscription layer expects.
type PostgresStore struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

func NewPostgresStore(pool *pgxpool.Pool, logger *slog.Logger) *PostgresStore {
	return &PostgresStore{pool: pool, logger: logger}
}

// EnsureSchema creates the documents table. Safe to call repeatedly.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS documents (
			collection text NOT NULL,
			id         text NOT NULL,
			doc        jsonb NOT NULL,
			seq        bigserial,
			PRIMARY KEY (collection, id)
		)`)
	if err != nil {
		return fmt.Errorf("ensure schema: %w", classifyPgError(err))
	}
	return nil
}

func (s *PostgresStore) GetAll(ctx context.Context, col Collection, filter Filter) ([]Document, error) {
	query := `SELECT doc FROM documents WHERE collection = $1`
	args := []any{string(col)}
	if len(filter) > 0 {
		raw, err := json.Marshal(filter)
		if err != nil {
			return nil, fmt.Errorf("marshal filter: %w", err)
		}
		query += ` AND doc @> $2`
		args = append(args, raw)
	}
	query += ` ORDER BY seq`

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, classifyPgError(err)
	}
	defer rows.Close()

	var out []Document
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return nil, classifyPgError(err)
		}
		var doc Document
		if err := json.Unmarshal(raw, &doc); err != nil {
			return nil, fmt.Errorf("decode stored document: %w", err)
		}
		out = append(out, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, classifyPgError(err)
	}
	if out == nil {
		out = []Document{}
	}
	return out, nil
}

func (s *PostgresStore) Create(ctx context.Context, col Collection, doc Document) (string, error) {
	id := doc.ID()
	if id == "" {
		id = uuid.NewString()
	}
	stored := doc.Clone()
	stored["id"] = id
	raw, err := json.Marshal(stored)
	if err != nil {
		return "", fmt.Errorf("marshal document: %w", err)
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO documents (collection, id, doc) VALUES ($1, $2, $3)
		ON CONFLICT (collection, id) DO UPDATE SET doc = EXCLUDED.doc`,
		string(col), id, raw)
	if err != nil {
		return "", classifyPgError(err)
	}
	s.notify(ctx, col)
	return id, nil
}

func (s *PostgresStore) Update(ctx context.Context, col Collection, id string, patch Document) error {
	raw, err := json.Marshal(patch)
	if err != nil {
		return fmt.Errorf("marshal patch: %w", err)
	}
	tag, err := s.pool.Exec(ctx, `
		UPDATE documents SET doc = doc || $3::jsonb
		WHERE collection = $1 AND id = $2`,
		string(col), id, raw)
	if err != nil {
		return classifyPgError(err)
	}
	if tag.RowsAffected() == 0 {
		return sentinel.ErrNotFound
	}
	s.notify(ctx, col)
	return nil
}

func (s *PostgresStore) Delete(ctx context.Context, col Collection, id string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM documents WHERE collection = $1 AND id = $2`,
		string(col), id)
	if err != nil {
		return classifyPgError(err)
	}
	if tag.RowsAffected() == 0 {
		return sentinel.ErrNotFound
	}
	s.notify(ctx, col)
	return nil
}

// AtomicIncrement bumps a numeric field in a single statement so concurrent
// writers never lose updates.
func (s *PostgresStore) AtomicIncrement(ctx context.Context, col Collection, id, field string, delta int64) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE documents
		SET doc = jsonb_set(doc, ARRAY[$3], to_jsonb(COALESCE((doc->>$3)::bigint, 0) + $4))
		WHERE collection = $1 AND id = $2`,
		string(col), id, field, delta)
	if err != nil {
		return classifyPgError(err)
	}
	if tag.RowsAffected() == 0 {
		return sentinel.ErrNotFound
	}
	s.notify(ctx, col)
	return nil
}

func (s *PostgresStore) Watch(ctx context.Context, col Collection, filter Filter) (Watcher, error) {
	conn, err := s.pool.Acquire(ctx)
	if err != nil {
		return nil, classifyPgError(err)
	}
	if _, err := conn.Exec(ctx, `LISTEN `+notifyChannel); err != nil {
		conn.Release()
		return nil, classifyPgError(err)
	}

	watchCtx, cancel := context.WithCancel(context.Background())
	w := &pgWatcher{
		ch:     make(chan []Document, 1),
		cancel: cancel,
	}
	go w.run(watchCtx, s, conn, col, filter)
	return w, nil
}

func (s *PostgresStore) notify(ctx context.Context, col Collection) {
	if _, err := s.pool.Exec(ctx, `SELECT pg_notify($1, $2)`, notifyChannel, string(col)); err != nil {
		if s.logger != nil {
			s.logger.Warn("change notification failed", "collection", col, "error", err)
		}
	}
}

type pgWatcher struct {
	ch     chan []Document
	cancel context.CancelFunc

	mu     sync.Mutex
	closed bool
	err    error
}

func (w *pgWatcher) run(ctx context.Context, s *PostgresStore, conn *pgxpool.Conn, col Collection, filter Filter) {
	defer conn.Release()

	push := func() bool {
		snap, err := s.GetAll(ctx, col, filter)
		if err != nil {
			w.fail(err)
			return false
		}
		w.push(snap)
		return true
	}
	if !push() {
		return
	}
	for {
		notification, err := conn.Conn().WaitForNotification(ctx)
		if err != nil {
			if ctx.Err() != nil {
				w.finish(nil)
			} else {
				w.fail(classifyPgError(err))
			}
			return
		}
		if notification.Payload != string(col) {
			continue
		}
		if !push() {
			return
		}
	}
}

func (w *pgWatcher) Snapshots() <-chan []Document { return w.ch }

func (w *pgWatcher) Err() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.err
}

func (w *pgWatcher) Close() {
	w.cancel()
	w.finish(nil)
}

func (w *pgWatcher) fail(err error) {
	w.cancel()
	w.finish(err)
}

func (w *pgWatcher) finish(err error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return
	}
	w.err = err
	w.closed = true
	close(w.ch)
}

func (w *pgWatcher) push(snap []Document) {
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

// classifyPgError translates driver failures into the sentinel taxonomy.
// Constraint and permission errors are store-side rejections; everything
// transport-shaped means the store is unreachable.
func classifyPgError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return sentinel.ErrNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return fmt.Errorf("%w: %s", sentinel.ErrWriteRejected, pgErr.Message)
	}
	return fmt.Errorf("%w: %v", sentinel.ErrStoreUnavailable, err)
}
