package mutate

import (
	"context"
	"fmt"
	"time"

	"ajira/internal/audit"
	"ajira/internal/domain"
	"ajira/internal/store"
	"ajira/pkg/platform/sentinel"
)

// flowMaxAttempts is the retry budget for multi-step registration flows.
const flowMaxAttempts = 3

// RegisterProperty runs the multi-step property registration flow: personal
// info, emergency contact and the owned properties are bundled into one
// document write. Unlike simple form mutations, the bundle is retried: a
// connectivity probe runs first, then up to three attempts with linearly
// increasing delay between them. Only after the budget is spent does the
// flow fail, carrying the last underlying error and the attempt count.
func (o *Orchestrator) RegisterProperty(ctx context.Context, reg domain.PropertyRegistration, actor string) (string, error) {
	ctx, span := o.startSpan(ctx, store.Properties, "register")
	defer span.End()

	if err := reg.Validate(); err != nil {
		o.countMutation(store.Properties, "register", "invalid")
		return "", err
	}
	reg.Status = domain.UserStatusPending
	reg.RegistrationDate = o.clock()

	doc, err := store.Encode(reg)
	if err != nil {
		return "", err
	}

	// Connectivity probe: without a store connection there is no point
	// burning the retry budget.
	probeCtx, cancel := context.WithTimeout(ctx, o.probeTimeout)
	cli, err := o.session.Client(probeCtx)
	cancel()
	if err != nil {
		o.countMutation(store.Properties, "register", "unavailable")
		return "", err
	}

	var lastErr error
	for attempt := 1; attempt <= flowMaxAttempts; attempt++ {
		id, err := cli.Create(ctx, store.Properties, doc)
		if err == nil {
			o.countMutation(store.Properties, "register", "ok")
			o.emitAudit(actor, store.Properties, id, audit.ActionCreate,
				fmt.Sprintf("attempt %d", attempt))
			return id, nil
		}
		lastErr = err
		if o.logger != nil {
			o.logger.Warn("property registration attempt failed",
				"attempt", attempt, "error", err)
		}
		if attempt < flowMaxAttempts {
			select {
			case <-ctx.Done():
				o.countMutation(store.Properties, "register", "cancelled")
				return "", fmt.Errorf("%w: %v", sentinel.ErrStoreUnavailable, ctx.Err())
			case <-time.After(time.Duration(attempt) * o.retryUnit):
			}
		}
	}
	o.countMutation(store.Properties, "register", "exhausted")
	return "", fmt.Errorf("%w: %d attempts failed, last error: %v",
		sentinel.ErrRetriesExhausted, flowMaxAttempts, lastErr)
}
