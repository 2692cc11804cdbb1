package domain

import (
	"fmt"
	"time"

	"ajira/pkg/platform/sentinel"
)

// JobStatus is the lifecycle state of a posted job.
type JobStatus string

const (
	JobStatusActive    JobStatus = "active"
	JobStatusPaused    JobStatus = "paused"
	JobStatusCompleted JobStatus = "completed"
	JobStatusCancelled JobStatus = "cancelled"
)

// Job is a position posted by one employer. Applicants is a running counter
// incremented exactly once per successful application; it is never decremented.
type Job struct {
	ID             string    `json:"id,omitempty"`
	EmployerID     string    `json:"employerId"`
	Title          string    `json:"title"`
	Description    string    `json:"description,omitempty"`
	Category       string    `json:"category,omitempty"`
	Location       string    `json:"location,omitempty"`
	WageAmount     float64   `json:"wageAmount"`
	WagePeriod     string    `json:"wagePeriod,omitempty"`
	RequiredSkills []string  `json:"requiredSkills,omitempty"`
	Status         JobStatus `json:"status"`
	Applicants     int64     `json:"applicants"`
	PostedDate     time.Time `json:"postedDate"`
}

func (j Job) Validate() error {
	if j.EmployerID == "" {
		return fmt.Errorf("%w: employerId is required", sentinel.ErrValidationFailed)
	}
	if j.Title == "" {
		return fmt.Errorf("%w: title is required", sentinel.ErrValidationFailed)
	}
	switch j.Status {
	case "", JobStatusActive, JobStatusPaused, JobStatusCompleted, JobStatusCancelled:
		return nil
	}
	return fmt.Errorf("%w: unknown job status %q", sentinel.ErrValidationFailed, j.Status)
}
