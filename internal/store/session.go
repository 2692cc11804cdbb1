package store

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"golang.org/x/sync/singleflight"

	"ajira/pkg/platform/sentinel"
)

// DialFunc establishes a store connection. It is called lazily on first use.
type DialFunc func(ctx context.Context) (Client, error)

// Session is the process-wide handle to the remote store. Initialization is
// lazy, idempotent and retryable: concurrent first callers collapse into a
// single in-flight dial and share its result; a failed dial is not cached, so
// the next caller retries.
type Session struct {
	dial   DialFunc
	logger *slog.Logger

	group singleflight.Group
	mu    sync.RWMutex
	cli   Client
}

func NewSession(dial DialFunc, logger *slog.Logger) *Session {
	return &Session{dial: dial, logger: logger}
}

// Client returns the shared store client, dialing on first use. The context
// bounds this caller's wait, not the dial itself: an in-flight dial keeps
// running for the callers still waiting on it.
func (s *Session) Client(ctx context.Context) (Client, error) {
	s.mu.RLock()
	cli := s.cli
	s.mu.RUnlock()
	if cli != nil {
		return cli, nil
	}

	ch := s.group.DoChan("dial", func() (any, error) {
		cli, err := s.dial(context.Background())
		if err != nil {
			if s.logger != nil {
				s.logger.Warn("store dial failed", "error", err)
			}
			return nil, fmt.Errorf("%w: %v", sentinel.ErrStoreUnavailable, err)
		}
		s.mu.Lock()
		s.cli = cli
		s.mu.Unlock()
		return cli, nil
	})

	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%w: %v", sentinel.ErrStoreUnavailable, ctx.Err())
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(Client), nil
	}
}

// Connected reports whether a client has been established.
func (s *Session) Connected() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cli != nil
}

// Reset drops the cached client so the next caller redials. Used when the
// store errors out an established connection.
func (s *Session) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cli = nil
}
