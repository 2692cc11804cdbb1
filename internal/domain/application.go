package domain

import (
	"fmt"
	"time"

	"ajira/pkg/platform/sentinel"
)

// ApplicationStatus is the review state of a job application.
type ApplicationStatus string

const (
	ApplicationStatusPending  ApplicationStatus = "pending"
	ApplicationStatusAccepted ApplicationStatus = "accepted"
	ApplicationStatusRejected ApplicationStatus = "rejected"
)

// Application links one worker to one job. Immutable once created except for
// status transitions.
type Application struct {
	ID          string            `json:"id,omitempty"`
	JobID       string            `json:"jobId"`
	WorkerID    string            `json:"workerId"`
	Status      ApplicationStatus `json:"status"`
	Message     string            `json:"message,omitempty"`
	AppliedDate time.Time         `json:"appliedDate"`
}

func (a Application) Validate() error {
	if a.JobID == "" {
		return fmt.Errorf("%w: jobId is required", sentinel.ErrValidationFailed)
	}
	if a.WorkerID == "" {
		return fmt.Errorf("%w: workerId is required", sentinel.ErrValidationFailed)
	}
	return nil
}
