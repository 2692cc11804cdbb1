package aggregate

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"ajira/internal/domain"
	"ajira/internal/store"
	"ajira/pkg/platform/sentinel"
)

type EngineSuite struct {
	suite.Suite
	mem    *store.MemoryStore
	engine *Engine
	ctx    context.Context
}

func (s *EngineSuite) SetupTest() {
	s.mem = store.NewMemoryStore()
	session := store.NewSession(func(ctx context.Context) (store.Client, error) {
		return s.mem, nil
	}, nil)
	s.engine = New(session)
	s.ctx = context.Background()
}

func TestEngineSuite(t *testing.T) {
	suite.Run(t, new(EngineSuite))
}

func (s *EngineSuite) seedUser(userType, status string) {
	_, err := s.mem.Create(s.ctx, store.Users, store.Document{
		"nationalId": "x",
		"fullName":   "seed",
		"userType":   userType,
		"status":     status,
	})
	s.Require().NoError(err)
}

func (s *EngineSuite) TestRecomputeCountsSources() {
	s.seedUser("worker", "verified")
	s.seedUser("worker", "pending")
	s.seedUser("employer", "verified")
	s.seedUser("employer", "pending")
	s.seedUser("worker", "suspended")

	_, err := s.mem.Create(s.ctx, store.Jobs, store.Document{"status": "active"})
	s.Require().NoError(err)
	_, err = s.mem.Create(s.ctx, store.Jobs, store.Document{"status": "closed"})
	s.Require().NoError(err)
	_, err = s.mem.Create(s.ctx, store.Contracts, store.Document{"status": "active", "totalAmount": 100.0})
	s.Require().NoError(err)
	_, err = s.mem.Create(s.ctx, store.Contracts, store.Document{"status": "completed", "totalAmount": 250.5})
	s.Require().NoError(err)
	_, err = s.mem.Create(s.ctx, store.Students, store.Document{"fullName": "student"})
	s.Require().NoError(err)

	summary, err := s.engine.Recompute(s.ctx)
	s.Require().NoError(err)

	s.Equal(5, summary.TotalUsers)
	s.Equal(3, summary.TotalWorkers)
	s.Equal(2, summary.TotalEmployers)
	s.Equal(1, summary.VerifiedWorkers)
	s.Equal(1, summary.VerifiedEmployers)
	s.Equal(2, summary.PendingVerifications)
	s.Equal(1, summary.ActiveJobs)
	s.Equal(1, summary.ActiveContracts)
	s.Equal(1, summary.CompletedContracts)
	s.Equal(250.5, summary.TotalContractValue)
	s.Equal(1, summary.RegisteredStudents)
}

func (s *EngineSuite) TestRecomputeWritesOneSingletonRecord() {
	s.seedUser("worker", "pending")
	_, err := s.engine.Recompute(s.ctx)
	s.Require().NoError(err)

	s.seedUser("worker", "pending")
	_, err = s.engine.Recompute(s.ctx)
	s.Require().NoError(err)

	docs, err := s.mem.GetAll(s.ctx, store.SystemMetrics, nil)
	s.Require().NoError(err)
	s.Require().Len(docs, 1, "recomputation must overwrite, never accumulate")
	s.Equal(domain.SystemMetricsID, docs[0].ID())

	var summary domain.SystemMetrics
	s.Require().NoError(store.Decode(docs[0], &summary))
	s.Equal(2, summary.TotalUsers)
	s.Equal(2, summary.PendingVerifications)
}

func (s *EngineSuite) TestRecomputeEmptyStore() {
	summary, err := s.engine.Recompute(s.ctx)
	s.Require().NoError(err)
	s.Equal(domain.SystemMetrics{ID: domain.SystemMetricsID, UpdatedAt: summary.UpdatedAt}, summary)
}

func (s *EngineSuite) TestRecomputeSurfacesUnavailableStore() {
	session := store.NewSession(func(ctx context.Context) (store.Client, error) {
		return nil, errors.New("connection refused")
	}, nil)
	engine := New(session)

	_, err := engine.Recompute(s.ctx)
	s.Require().ErrorIs(err, sentinel.ErrStoreUnavailable)
}

func (s *EngineSuite) TestScheduleNeverBlocks() {
	// No worker draining the queue; repeated schedules coalesce.
	for i := 0; i < 100; i++ {
		s.engine.Schedule()
	}
}

func (s *EngineSuite) TestScheduledRecomputeConvergesAfterApproval() {
	id, err := s.mem.Create(s.ctx, store.Users, store.Document{
		"nationalId": "x",
		"fullName":   "seed",
		"userType":   "worker",
		"status":     "pending",
	})
	s.Require().NoError(err)

	ctx, cancel := context.WithCancel(s.ctx)
	defer cancel()
	go func() { _ = s.engine.Run(ctx) }()

	s.engine.Schedule()
	s.Require().Eventually(func() bool {
		return s.pendingVerifications() == 1
	}, 2*time.Second, 10*time.Millisecond)

	// The user gets approved; the dashboard summary follows eventually.
	err = s.mem.Update(s.ctx, store.Users, id, store.Document{"status": "verified"})
	s.Require().NoError(err)
	s.engine.Schedule()

	s.Require().Eventually(func() bool {
		return s.pendingVerifications() == 0 && s.verifiedWorkers() == 1
	}, 2*time.Second, 10*time.Millisecond,
		"metrics snapshot must converge on the post-approval state")
}

func (s *EngineSuite) pendingVerifications() int {
	return s.metricsField(func(m domain.SystemMetrics) int { return m.PendingVerifications })
}

func (s *EngineSuite) verifiedWorkers() int {
	return s.metricsField(func(m domain.SystemMetrics) int { return m.VerifiedWorkers })
}

func (s *EngineSuite) metricsField(get func(domain.SystemMetrics) int) int {
	docs, err := s.mem.GetAll(s.ctx, store.SystemMetrics, nil)
	s.Require().NoError(err)
	if len(docs) == 0 {
		return -1
	}
	var summary domain.SystemMetrics
	s.Require().NoError(store.Decode(docs[0], &summary))
	return get(summary)
}
