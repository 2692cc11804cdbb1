// Package aggregate recomputes the system-wide dashboard summary from the
// source collections and republishes it as the singleton system_metrics
// record, which consumers subscribe to like any other collection.
package aggregate

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"ajira/internal/domain"
	"ajira/internal/platform/metrics"
	"ajira/internal/store"
	"ajira/pkg/platform/sentinel"
)

// Engine reads the full current contents of the source collections and
// overwrites the metrics singleton wholesale. Recomputation is deliberately
// not transactional with the mutations that trigger it: subscribers may
// observe a stale summary inside the eventual-consistency window.
type Engine struct {
	session *store.Session
	logger  *slog.Logger
	metrics *metrics.Metrics
	clock   func() time.Time

	requests chan struct{}
}

type Option func(*Engine)

func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) { e.logger = logger }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(e *Engine) { e.metrics = m }
}

func WithClock(clock func() time.Time) Option {
	return func(e *Engine) { e.clock = clock }
}

func New(session *store.Session, opts ...Option) *Engine {
	e := &Engine{
		session:  session,
		clock:    time.Now,
		requests: make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Schedule requests a recomputation without blocking the caller. Requests
// arriving while one is already queued coalesce into it.
func (e *Engine) Schedule() {
	select {
	case e.requests <- struct{}{}:
	default:
	}
}

// Run consumes recomputation requests until the context ends. Failures are
// logged and swallowed: a metrics write must never fail the mutation that
// triggered it.
func (e *Engine) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-e.requests:
			if _, err := e.Recompute(ctx); err != nil {
				if e.logger != nil {
					e.logger.Warn("metrics recomputation failed", "error", err)
				}
			}
		}
	}
}

// Recompute takes a point-in-time view of the source collections via direct
// reads, computes the summary, and overwrites the singleton record.
func (e *Engine) Recompute(ctx context.Context) (domain.SystemMetrics, error) {
	start := e.clock()

	cli, err := e.session.Client(ctx)
	if err != nil {
		return domain.SystemMetrics{}, fmt.Errorf("metrics recompute: %w", err)
	}

	var users []domain.User
	var jobs []domain.Job
	var contracts []domain.Contract
	var students []domain.Student

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		docs, err := cli.GetAll(gctx, store.Users, nil)
		if err != nil {
			return err
		}
		users, err = store.DecodeAll[domain.User](docs)
		return err
	})
	g.Go(func() error {
		docs, err := cli.GetAll(gctx, store.Jobs, nil)
		if err != nil {
			return err
		}
		jobs, err = store.DecodeAll[domain.Job](docs)
		return err
	})
	g.Go(func() error {
		docs, err := cli.GetAll(gctx, store.Contracts, nil)
		if err != nil {
			return err
		}
		contracts, err = store.DecodeAll[domain.Contract](docs)
		return err
	})
	g.Go(func() error {
		docs, err := cli.GetAll(gctx, store.Students, nil)
		if err != nil {
			return err
		}
		students, err = store.DecodeAll[domain.Student](docs)
		return err
	})
	if err := g.Wait(); err != nil {
		return domain.SystemMetrics{}, fmt.Errorf("metrics recompute: %w", err)
	}

	summary := compute(users, jobs, contracts, students, e.clock())

	doc, err := store.Encode(summary)
	if err != nil {
		return domain.SystemMetrics{}, fmt.Errorf("metrics recompute: %w", err)
	}
	err = cli.Update(ctx, store.SystemMetrics, domain.SystemMetricsID, doc)
	if errors.Is(err, sentinel.ErrNotFound) {
		_, err = cli.Create(ctx, store.SystemMetrics, doc)
	}
	if err != nil {
		return domain.SystemMetrics{}, fmt.Errorf("metrics recompute: %w", err)
	}

	e.metrics.ObserveRecompute(e.clock().Sub(start))
	return summary, nil
}

func compute(users []domain.User, jobs []domain.Job, contracts []domain.Contract, students []domain.Student, now time.Time) domain.SystemMetrics {
	m := domain.SystemMetrics{ID: domain.SystemMetricsID, UpdatedAt: now}
	for _, u := range users {
		m.TotalUsers++
		switch u.UserType {
		case domain.UserTypeWorker:
			m.TotalWorkers++
			if u.Status == domain.UserStatusVerified {
				m.VerifiedWorkers++
			}
		case domain.UserTypeEmployer:
			m.TotalEmployers++
			if u.Status == domain.UserStatusVerified {
				m.VerifiedEmployers++
			}
		}
		if u.Status == domain.UserStatusPending {
			m.PendingVerifications++
		}
	}
	for _, j := range jobs {
		if j.Status == domain.JobStatusActive {
			m.ActiveJobs++
		}
	}
	for _, c := range contracts {
		switch c.Status {
		case domain.ContractStatusActive:
			m.ActiveContracts++
		case domain.ContractStatusCompleted:
			m.CompletedContracts++
			m.TotalContractValue += c.TotalAmount
		}
	}
	m.RegisteredStudents = len(students)
	return m
}
