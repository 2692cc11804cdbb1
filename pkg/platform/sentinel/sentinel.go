package sentinel

import "errors"

// Sentinel errors for the sync core. Stores and infrastructure layers return
// these (optionally wrapped) so services can translate them into caller-facing
// failures with errors.Is.
//
// These represent factual states about the remote store and the mutation
// pipeline, not programming errors:
// - ErrNotFound: record does not exist in the store
// - ErrStoreUnavailable: no store connection could be established
// - ErrValidationFailed: required fields missing, caught before any write
// - ErrWriteRejected: store-side rejection (permission, quota, constraint)
// - ErrRetriesExhausted: a multi-step registration flow spent its retry budget
// - ErrSubscriptionDegraded: informational; a subscription entered fallback mode
var (
	ErrNotFound             = errors.New("record not found")
	ErrStoreUnavailable     = errors.New("store unavailable")
	ErrValidationFailed     = errors.New("validation failed")
	ErrWriteRejected        = errors.New("write rejected")
	ErrRetriesExhausted     = errors.New("retries exhausted")
	ErrSubscriptionDegraded = errors.New("subscription degraded")
)
