package degrade

import (
	"ajira/internal/domain"
	"ajira/internal/store"
)

// Fallback returns the deterministic seed dataset for a collection. The same
// call always yields identical records (same count, identifiers and field
// values) so degraded sessions are reproducible. Seed data is never written
// back to the store and never feeds live metrics recomputation.
func Fallback(col store.Collection) []store.Document {
	docs, ok := fallbackSets[col]
	if !ok {
		return []store.Document{}
	}
	out := make([]store.Document, len(docs))
	for i, doc := range docs {
		out[i] = doc.Clone()
	}
	return out
}

// FallbackFiltered applies a subscription filter to the seed dataset.
func FallbackFiltered(col store.Collection, filter store.Filter) []store.Document {
	var out []store.Document
	for _, doc := range Fallback(col) {
		if filter.Matches(doc) {
			out = append(out, doc)
		}
	}
	if out == nil {
		out = []store.Document{}
	}
	return out
}

var fallbackSets = map[store.Collection][]store.Document{
	store.Users: {
		{
			"id": "fallback-user-1", "nationalId": "19900101-00001", "fullName": "Amina Hassan",
			"email": "amina.hassan@example.com", "phone": "+255700000001",
			"region": "Dar es Salaam", "city": "Kinondoni",
			"userType": string(domain.UserTypeWorker), "status": string(domain.UserStatusVerified),
			"skills": []any{"cleaning", "cooking"}, "languages": []any{"Swahili", "English"},
			"registrationDate": "2024-01-15T08:00:00Z", "lastActive": "2024-06-01T08:00:00Z",
		},
		{
			"id": "fallback-user-2", "nationalId": "19851220-00002", "fullName": "Joseph Mwangi",
			"email": "joseph.mwangi@example.com", "phone": "+255700000002",
			"region": "Arusha", "city": "Arusha",
			"userType": string(domain.UserTypeWorker), "status": string(domain.UserStatusPending),
			"skills": []any{"gardening", "security"}, "languages": []any{"Swahili"},
			"registrationDate": "2024-03-02T08:00:00Z", "lastActive": "2024-05-20T08:00:00Z",
		},
		{
			"id": "fallback-user-3", "nationalId": "19780505-00003", "fullName": "Grace Ndlovu",
			"email": "grace@safihomes.example.com", "phone": "+255700000003",
			"region": "Dar es Salaam", "city": "Ilala",
			"userType": string(domain.UserTypeEmployer), "status": string(domain.UserStatusVerified),
			"companyName": "Safi Homes Ltd", "companyType": "domestic services",
			"registrationDate": "2023-11-10T08:00:00Z", "lastActive": "2024-06-02T08:00:00Z",
		},
	},
	store.Jobs: {
		{
			"id": "fallback-job-1", "employerId": "fallback-user-3", "title": "Live-in housekeeper",
			"description": "Full-time housekeeping for a family home.", "category": "domestic",
			"location": "Ilala, Dar es Salaam", "wageAmount": float64(250000), "wagePeriod": "monthly",
			"requiredSkills": []any{"cleaning", "cooking"},
			"status":         string(domain.JobStatusActive), "applicants": float64(4),
			"postedDate": "2024-05-01T08:00:00Z",
		},
		{
			"id": "fallback-job-2", "employerId": "fallback-user-3", "title": "Night guard",
			"description": "Compound security, 6 nights a week.", "category": "security",
			"location": "Kinondoni, Dar es Salaam", "wageAmount": float64(180000), "wagePeriod": "monthly",
			"requiredSkills": []any{"security"},
			"status":         string(domain.JobStatusPaused), "applicants": float64(2),
			"postedDate": "2024-04-12T08:00:00Z",
		},
	},
	store.Contracts: {
		{
			"id": "fallback-contract-1", "jobId": "fallback-job-1", "workerId": "fallback-user-1",
			"employerId": "fallback-user-3", "status": string(domain.ContractStatusActive),
			"totalAmount": float64(1500000), "paymentTerms": "monthly",
			"workerSigned": true, "employerSigned": true,
			"startDate": "2024-05-15T08:00:00Z",
		},
	},
	store.Applications: {
		{
			"id": "fallback-application-1", "jobId": "fallback-job-1", "workerId": "fallback-user-2",
			"status": string(domain.ApplicationStatusPending), "message": "Available immediately.",
			"appliedDate": "2024-05-03T08:00:00Z",
		},
	},
	store.Students: {
		{
			"id": "fallback-student-1", "nationalId": "20020814-00004", "fullName": "Neema Joseph",
			"institution": "University of Dar es Salaam", "course": "Business Administration",
			"yearOfStudy": float64(2), "status": string(domain.UserStatusVerified),
			"registrationDate": "2024-02-20T08:00:00Z",
		},
	},
}

func init() {
	fallbackSets[store.SystemMetrics] = []store.Document{fallbackMetrics()}
}

// fallbackMetrics derives the degraded-mode dashboard summary statically from
// the seed datasets above, so the numbers a degraded dashboard shows agree
// with the degraded records it shows.
func fallbackMetrics() store.Document {
	var m domain.SystemMetrics
	m.ID = domain.SystemMetricsID
	for _, doc := range fallbackSets[store.Users] {
		m.TotalUsers++
		verified := doc["status"] == string(domain.UserStatusVerified)
		switch doc["userType"] {
		case string(domain.UserTypeWorker):
			m.TotalWorkers++
			if verified {
				m.VerifiedWorkers++
			}
		case string(domain.UserTypeEmployer):
			m.TotalEmployers++
			if verified {
				m.VerifiedEmployers++
			}
		}
		if doc["status"] == string(domain.UserStatusPending) {
			m.PendingVerifications++
		}
	}
	for _, doc := range fallbackSets[store.Jobs] {
		if doc["status"] == string(domain.JobStatusActive) {
			m.ActiveJobs++
		}
	}
	for _, doc := range fallbackSets[store.Contracts] {
		switch doc["status"] {
		case string(domain.ContractStatusActive):
			m.ActiveContracts++
		case string(domain.ContractStatusCompleted):
			m.CompletedContracts++
			if amount, ok := doc["totalAmount"].(float64); ok {
				m.TotalContractValue += amount
			}
		}
	}
	m.RegisteredStudents = len(fallbackSets[store.Students])

	doc, err := store.Encode(m)
	if err != nil {
		// The seed metrics are a plain struct; encoding cannot fail at runtime.
		panic(err)
	}
	return doc
}
