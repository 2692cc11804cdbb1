package domain

import (
	"fmt"
	"time"

	"ajira/pkg/platform/sentinel"
)

// ContractStatus is the lifecycle state of a work contract.
type ContractStatus string

const (
	ContractStatusPending   ContractStatus = "pending"
	ContractStatusActive    ContractStatus = "active"
	ContractStatusCompleted ContractStatus = "completed"
	ContractStatusCancelled ContractStatus = "cancelled"
)

// Contract binds exactly one job, one worker and one employer. The two
// signature flags are independent; a contract activates outside this core.
type Contract struct {
	ID             string         `json:"id,omitempty"`
	JobID          string         `json:"jobId"`
	WorkerID       string         `json:"workerId"`
	EmployerID     string         `json:"employerId"`
	Status         ContractStatus `json:"status"`
	TotalAmount    float64        `json:"totalAmount"`
	PaymentTerms   string         `json:"paymentTerms,omitempty"`
	WorkerSigned   bool           `json:"workerSigned"`
	EmployerSigned bool           `json:"employerSigned"`
	StartDate      time.Time      `json:"startDate,omitempty"`
	EndDate        time.Time      `json:"endDate,omitempty"`
}

func (c Contract) Validate() error {
	if c.JobID == "" {
		return fmt.Errorf("%w: jobId is required", sentinel.ErrValidationFailed)
	}
	if c.WorkerID == "" {
		return fmt.Errorf("%w: workerId is required", sentinel.ErrValidationFailed)
	}
	if c.EmployerID == "" {
		return fmt.Errorf("%w: employerId is required", sentinel.ErrValidationFailed)
	}
	return nil
}
