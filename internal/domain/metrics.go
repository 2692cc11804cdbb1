package domain

import "time"

// SystemMetricsID is the fixed identifier of the singleton metrics document.
// The aggregate engine always overwrites this one record wholesale.
const SystemMetricsID = "system"

// SystemMetrics is the derived dashboard summary recomputed from the users,
// jobs, contracts and students collections. It reflects some past consistent
// state of its sources, not necessarily the latest one.
type SystemMetrics struct {
	ID                   string    `json:"id,omitempty"`
	TotalUsers           int       `json:"totalUsers"`
	TotalWorkers         int       `json:"totalWorkers"`
	TotalEmployers       int       `json:"totalEmployers"`
	VerifiedWorkers      int       `json:"verifiedWorkers"`
	VerifiedEmployers    int       `json:"verifiedEmployers"`
	PendingVerifications int       `json:"pendingVerifications"`
	ActiveJobs           int       `json:"activeJobs"`
	ActiveContracts      int       `json:"activeContracts"`
	CompletedContracts   int       `json:"completedContracts"`
	TotalContractValue   float64   `json:"totalContractValue"`
	RegisteredStudents   int       `json:"registeredStudents"`
	UpdatedAt            time.Time `json:"updatedAt"`
}
