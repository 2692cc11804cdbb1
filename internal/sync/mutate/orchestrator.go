// Package mutate executes creates, updates and deletes against the remote
// store on behalf of form submissions and administrative actions. Simple
// mutations are attempted once and surface typed errors for the human to
// retry; multi-step registration flows carry their own bounded retry budget.
package mutate

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"ajira/internal/audit"
	"ajira/internal/domain"
	"ajira/internal/platform/metrics"
	"ajira/internal/store"
	"ajira/internal/sync/aggregate"
	"ajira/internal/verify"
	"ajira/pkg/platform/sentinel"
)

// Orchestrator is the single write path to the remote store. Every
// successful mutation of a metrics source collection schedules an aggregate
// recomputation; recomputation failures never fail the originating mutation.
type Orchestrator struct {
	session  *store.Session
	engine   *aggregate.Engine
	auditor  *audit.Publisher
	verifier verify.Client
	logger   *slog.Logger
	metrics  *metrics.Metrics
	tracer   trace.Tracer
	clock    func() time.Time

	retryUnit    time.Duration
	probeTimeout time.Duration
}

type Option func(*Orchestrator)

func WithLogger(logger *slog.Logger) Option {
	return func(o *Orchestrator) { o.logger = logger }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(o *Orchestrator) { o.metrics = m }
}

func WithAudit(p *audit.Publisher) Option {
	return func(o *Orchestrator) { o.auditor = p }
}

// WithVerifier makes administrative approval verify the user's national ID
// before granting verified status.
func WithVerifier(v verify.Client) Option {
	return func(o *Orchestrator) { o.verifier = v }
}

func WithClock(clock func() time.Time) Option {
	return func(o *Orchestrator) { o.clock = clock }
}

// WithRetryUnit sets the linear backoff unit for multi-step flows.
func WithRetryUnit(d time.Duration) Option {
	return func(o *Orchestrator) {
		if d > 0 {
			o.retryUnit = d
		}
	}
}

func WithProbeTimeout(d time.Duration) Option {
	return func(o *Orchestrator) {
		if d > 0 {
			o.probeTimeout = d
		}
	}
}

func New(session *store.Session, engine *aggregate.Engine, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		session:      session,
		engine:       engine,
		tracer:       otel.Tracer("ajira/sync/mutate"),
		clock:        time.Now,
		retryUnit:    time.Second,
		probeTimeout: 2 * time.Second,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// recomputeTriggers are the collections whose mutations feed the aggregate
// metrics.
var recomputeTriggers = map[store.Collection]bool{
	store.Users:     true,
	store.Jobs:      true,
	store.Contracts: true,
	store.Students:  true,
}

// Create writes one new record. User and student signups cannot self-approve:
// status is forced to pending and the registration timestamps are stamped
// here, regardless of caller-supplied values.
func (o *Orchestrator) Create(ctx context.Context, col store.Collection, doc store.Document, actor string) (string, error) {
	ctx, span := o.startSpan(ctx, col, "create")
	defer span.End()

	doc = doc.Clone()
	o.applyServerFields(col, doc)
	if err := validateDocument(col, doc); err != nil {
		o.countMutation(col, "create", "invalid")
		return "", err
	}

	cli, err := o.session.Client(ctx)
	if err != nil {
		o.countMutation(col, "create", "unavailable")
		return "", err
	}
	id, err := cli.Create(ctx, col, doc)
	if err != nil {
		o.countMutation(col, "create", "error")
		return "", classify(err)
	}
	o.countMutation(col, "create", "ok")
	o.emitAudit(actor, col, id, audit.ActionCreate, "")
	o.scheduleRecompute(col)
	return id, nil
}

// Update applies a partial record to an existing one.
func (o *Orchestrator) Update(ctx context.Context, col store.Collection, id string, patch store.Document, actor string) error {
	ctx, span := o.startSpan(ctx, col, "update")
	defer span.End()

	cli, err := o.session.Client(ctx)
	if err != nil {
		o.countMutation(col, "update", "unavailable")
		return err
	}
	if err := cli.Update(ctx, col, id, patch); err != nil {
		o.countMutation(col, "update", "error")
		return classify(err)
	}
	o.countMutation(col, "update", "ok")
	o.emitAudit(actor, col, id, audit.ActionUpdate, "")
	o.scheduleRecompute(col)
	return nil
}

// Delete removes a record permanently.
func (o *Orchestrator) Delete(ctx context.Context, col store.Collection, id string, actor string) error {
	ctx, span := o.startSpan(ctx, col, "delete")
	defer span.End()

	cli, err := o.session.Client(ctx)
	if err != nil {
		o.countMutation(col, "delete", "unavailable")
		return err
	}
	if err := cli.Delete(ctx, col, id); err != nil {
		o.countMutation(col, "delete", "error")
		return classify(err)
	}
	o.countMutation(col, "delete", "ok")
	o.emitAudit(actor, col, id, audit.ActionDelete, "")
	o.scheduleRecompute(col)
	return nil
}

// SubmitApplication creates an application and bumps the referenced job's
// applicants counter with a store-side atomic increment, so concurrent
// applicants never lose updates.
func (o *Orchestrator) SubmitApplication(ctx context.Context, app domain.Application, actor string) (string, error) {
	ctx, span := o.startSpan(ctx, store.Applications, "create")
	defer span.End()

	if err := app.Validate(); err != nil {
		o.countMutation(store.Applications, "create", "invalid")
		return "", err
	}
	app.Status = domain.ApplicationStatusPending
	app.AppliedDate = o.clock()

	doc, err := store.Encode(app)
	if err != nil {
		return "", err
	}
	cli, err := o.session.Client(ctx)
	if err != nil {
		o.countMutation(store.Applications, "create", "unavailable")
		return "", err
	}
	id, err := cli.Create(ctx, store.Applications, doc)
	if err != nil {
		o.countMutation(store.Applications, "create", "error")
		return "", classify(err)
	}
	o.countMutation(store.Applications, "create", "ok")
	o.emitAudit(actor, store.Applications, id, audit.ActionCreate, "")

	if err := cli.AtomicIncrement(ctx, store.Jobs, app.JobID, "applicants", 1); err != nil {
		// The application exists; surface the counter failure so the caller
		// knows the submission did not fully land.
		o.countMutation(store.Jobs, "increment", "error")
		return id, classify(err)
	}
	o.countMutation(store.Jobs, "increment", "ok")
	o.emitAudit(actor, store.Jobs, app.JobID, audit.ActionIncrement, "applicants")
	return id, nil
}

// ApproveUser moves a pending or suspended user to verified. When a verifier
// is configured, the user's national ID must verify first; the normalized
// name from the registry replaces the self-reported one.
func (o *Orchestrator) ApproveUser(ctx context.Context, id string, actor string) error {
	user, err := o.loadUser(ctx, id)
	if err != nil {
		return err
	}
	if !domain.CanTransition(user.Status, domain.UserStatusVerified) {
		return fmt.Errorf("%w: cannot approve user in status %q", sentinel.ErrValidationFailed, user.Status)
	}

	patch := store.Document{
		"status":     string(domain.UserStatusVerified),
		"lastActive": o.clock().Format(time.RFC3339),
	}
	if o.verifier != nil {
		result, err := o.verifier.Verify(ctx, user.NationalID, user.FullName)
		if err != nil {
			return fmt.Errorf("national ID verification: %w", err)
		}
		if !result.Verified {
			return fmt.Errorf("%w: national ID did not verify: %s", sentinel.ErrValidationFailed, result.Error)
		}
		if result.NormalizedName != "" {
			patch["fullName"] = result.NormalizedName
		}
	}
	return o.Update(ctx, store.Users, id, patch, actor)
}

// RejectUser moves a pending user to rejected. Rejected is terminal.
func (o *Orchestrator) RejectUser(ctx context.Context, id string, actor string) error {
	return o.transitionUser(ctx, id, domain.UserStatusRejected, actor)
}

// SuspendUser moves a verified user to suspended.
func (o *Orchestrator) SuspendUser(ctx context.Context, id string, actor string) error {
	return o.transitionUser(ctx, id, domain.UserStatusSuspended, actor)
}

// ReactivateUser moves a suspended user back to verified.
func (o *Orchestrator) ReactivateUser(ctx context.Context, id string, actor string) error {
	return o.transitionUser(ctx, id, domain.UserStatusVerified, actor)
}

func (o *Orchestrator) transitionUser(ctx context.Context, id string, to domain.UserStatus, actor string) error {
	user, err := o.loadUser(ctx, id)
	if err != nil {
		return err
	}
	if !domain.CanTransition(user.Status, to) {
		return fmt.Errorf("%w: cannot move user from %q to %q", sentinel.ErrValidationFailed, user.Status, to)
	}
	patch := store.Document{
		"status":     string(to),
		"lastActive": o.clock().Format(time.RFC3339),
	}
	return o.Update(ctx, store.Users, id, patch, actor)
}

func (o *Orchestrator) loadUser(ctx context.Context, id string) (domain.User, error) {
	cli, err := o.session.Client(ctx)
	if err != nil {
		return domain.User{}, err
	}
	docs, err := cli.GetAll(ctx, store.Users, store.Filter{"id": id})
	if err != nil {
		return domain.User{}, classify(err)
	}
	if len(docs) == 0 {
		return domain.User{}, sentinel.ErrNotFound
	}
	var user domain.User
	if err := store.Decode(docs[0], &user); err != nil {
		return domain.User{}, err
	}
	return user, nil
}

// applyServerFields enforces the server-side-equivalent fields callers may
// not set themselves.
func (o *Orchestrator) applyServerFields(col store.Collection, doc store.Document) {
	now := o.clock().Format(time.RFC3339)
	switch col {
	case store.Users:
		doc["status"] = string(domain.UserStatusPending)
		doc["registrationDate"] = now
		doc["lastActive"] = now
	case store.Students:
		doc["status"] = string(domain.UserStatusPending)
		doc["registrationDate"] = now
	case store.Jobs:
		if _, ok := doc["status"]; !ok {
			doc["status"] = string(domain.JobStatusActive)
		}
		doc["applicants"] = int64(0)
		doc["postedDate"] = now
	case store.Contracts:
		if _, ok := doc["status"]; !ok {
			doc["status"] = string(domain.ContractStatusPending)
		}
	}
}

func (o *Orchestrator) scheduleRecompute(col store.Collection) {
	if o.engine == nil || !recomputeTriggers[col] {
		return
	}
	o.engine.Schedule()
}

func (o *Orchestrator) emitAudit(actor string, col store.Collection, id string, action audit.Action, detail string) {
	if o.auditor == nil {
		return
	}
	o.auditor.Emit(audit.Event{
		Actor:      actor,
		Collection: string(col),
		DocumentID: id,
		Action:     action,
		Detail:     detail,
	})
}

func (o *Orchestrator) countMutation(col store.Collection, op, outcome string) {
	if o.metrics == nil {
		return
	}
	o.metrics.Mutations.WithLabelValues(string(col), op, outcome).Inc()
}

func (o *Orchestrator) startSpan(ctx context.Context, col store.Collection, op string) (context.Context, trace.Span) {
	return o.tracer.Start(ctx, "mutate."+op,
		trace.WithAttributes(
			attribute.String("collection", string(col)),
			attribute.String("op", op),
		))
}

// validateDocument runs the typed validation for collections with required
// fields. Unknown collections pass through; the store is schemaless.
func validateDocument(col store.Collection, doc store.Document) error {
	switch col {
	case store.Users:
		var u domain.User
		if err := store.Decode(doc, &u); err != nil {
			return fmt.Errorf("%w: %v", sentinel.ErrValidationFailed, err)
		}
		return u.Validate()
	case store.Jobs:
		var j domain.Job
		if err := store.Decode(doc, &j); err != nil {
			return fmt.Errorf("%w: %v", sentinel.ErrValidationFailed, err)
		}
		return j.Validate()
	case store.Contracts:
		var c domain.Contract
		if err := store.Decode(doc, &c); err != nil {
			return fmt.Errorf("%w: %v", sentinel.ErrValidationFailed, err)
		}
		return c.Validate()
	case store.Applications:
		var a domain.Application
		if err := store.Decode(doc, &a); err != nil {
			return fmt.Errorf("%w: %v", sentinel.ErrValidationFailed, err)
		}
		return a.Validate()
	case store.Students:
		var s domain.Student
		if err := store.Decode(doc, &s); err != nil {
			return fmt.Errorf("%w: %v", sentinel.ErrValidationFailed, err)
		}
		return s.Validate()
	}
	return nil
}

// classify folds store errors into the caller-facing taxonomy. Sentinel
// errors pass through; anything unrecognized is treated as a store-side
// rejection so a failed write is never reported as success.
func classify(err error) error {
	if err == nil {
		return nil
	}
	switch {
	case errors.Is(err, sentinel.ErrNotFound),
		errors.Is(err, sentinel.ErrStoreUnavailable),
		errors.Is(err, sentinel.ErrWriteRejected),
		errors.Is(err, sentinel.ErrValidationFailed):
		return err
	}
	return fmt.Errorf("%w: %v", sentinel.ErrWriteRejected, err)
}
