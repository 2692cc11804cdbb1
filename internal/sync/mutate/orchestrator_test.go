package mutate

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"ajira/internal/audit"
	"ajira/internal/domain"
	"ajira/internal/store"
	"ajira/internal/verify"
	"ajira/internal/verify/mocks"
	"ajira/pkg/platform/sentinel"
)

type OrchestratorSuite struct {
	suite.Suite
	mem     *store.MemoryStore
	session *store.Session
	ctx     context.Context
}

func (s *OrchestratorSuite) SetupTest() {
	s.mem = store.NewMemoryStore()
	s.session = store.NewSession(func(ctx context.Context) (store.Client, error) {
		return s.mem, nil
	}, nil)
	s.ctx = context.Background()
}

func TestOrchestratorSuite(t *testing.T) {
	suite.Run(t, new(OrchestratorSuite))
}

func (s *OrchestratorSuite) orchestrator(opts ...Option) *Orchestrator {
	return New(s.session, nil, opts...)
}

func (s *OrchestratorSuite) createUser(o *Orchestrator, fullName string) string {
	id, err := o.Create(s.ctx, store.Users, store.Document{
		"nationalId": "19900101-00001",
		"fullName":   fullName,
		"userType":   "worker",
	}, "admin-1")
	s.Require().NoError(err)
	return id
}

func (s *OrchestratorSuite) userStatus(id string) string {
	docs, err := s.mem.GetAll(s.ctx, store.Users, store.Filter{"id": id})
	s.Require().NoError(err)
	s.Require().Len(docs, 1)
	status, _ := docs[0]["status"].(string)
	return status
}

func (s *OrchestratorSuite) TestCreateUserForcesPendingStatus() {
	o := s.orchestrator()

	// The caller tries to self-approve; the server-forced fields win.
	id, err := o.Create(s.ctx, store.Users, store.Document{
		"nationalId": "19900101-00001",
		"fullName":   "Amina Hassan",
		"userType":   "worker",
		"status":     "verified",
	}, "signup")
	s.Require().NoError(err)

	docs, err := s.mem.GetAll(s.ctx, store.Users, store.Filter{"id": id})
	s.Require().NoError(err)
	s.Require().Len(docs, 1)
	s.Equal("pending", docs[0]["status"])
	s.NotEmpty(docs[0]["registrationDate"])
	s.NotEmpty(docs[0]["lastActive"])
}

func (s *OrchestratorSuite) TestCreateValidatesBeforeWriting() {
	o := s.orchestrator()

	_, err := o.Create(s.ctx, store.Users, store.Document{
		"fullName": "No ID",
		"userType": "worker",
	}, "signup")
	s.Require().ErrorIs(err, sentinel.ErrValidationFailed)

	docs, err := s.mem.GetAll(s.ctx, store.Users, nil)
	s.Require().NoError(err)
	s.Empty(docs, "nothing may reach the store when validation fails")
}

func (s *OrchestratorSuite) TestCreateJobZeroesApplicantsCounter() {
	o := s.orchestrator()

	id, err := o.Create(s.ctx, store.Jobs, store.Document{
		"employerId": "e1",
		"title":      "Housekeeper",
		"applicants": 99,
	}, "e1")
	s.Require().NoError(err)

	docs, err := s.mem.GetAll(s.ctx, store.Jobs, store.Filter{"id": id})
	s.Require().NoError(err)
	s.EqualValues(0, docs[0]["applicants"])
	s.Equal("active", docs[0]["status"])
}

func (s *OrchestratorSuite) TestRejectedWriteSurfacesError() {
	o := s.orchestrator()
	s.mem.FailWrites(sentinel.ErrWriteRejected)

	_, err := o.Create(s.ctx, store.Users, store.Document{
		"nationalId": "19900101-00001",
		"fullName":   "Amina Hassan",
		"userType":   "worker",
	}, "signup")
	s.Require().ErrorIs(err, sentinel.ErrWriteRejected,
		"a failed write must never be reported as success")

	s.Require().ErrorIs(o.Update(s.ctx, store.Users, "u1", store.Document{"city": "x"}, "a"), sentinel.ErrWriteRejected)
	s.Require().ErrorIs(o.Delete(s.ctx, store.Users, "u1", "a"), sentinel.ErrWriteRejected)
}

func (s *OrchestratorSuite) TestUnreachableStoreSurfacesUnavailable() {
	session := store.NewSession(func(ctx context.Context) (store.Client, error) {
		return nil, sentinel.ErrStoreUnavailable
	}, nil)
	o := New(session, nil)

	_, err := o.Create(s.ctx, store.Users, store.Document{
		"nationalId": "19900101-00001",
		"fullName":   "Amina Hassan",
		"userType":   "worker",
	}, "signup")
	s.Require().ErrorIs(err, sentinel.ErrStoreUnavailable)
}

func (s *OrchestratorSuite) TestConcurrentApplicationsNeverLoseIncrements() {
	o := s.orchestrator()
	jobID, err := o.Create(s.ctx, store.Jobs, store.Document{
		"employerId": "e1",
		"title":      "Night guard",
	}, "e1")
	s.Require().NoError(err)

	const applicants = 25
	errs := make(chan error, applicants)
	var wg sync.WaitGroup
	for i := 0; i < applicants; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := o.SubmitApplication(s.ctx, domain.Application{
				JobID:    jobID,
				WorkerID: "worker",
			}, "worker")
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		s.Require().NoError(err)
	}

	jobs, err := s.mem.GetAll(s.ctx, store.Jobs, store.Filter{"id": jobID})
	s.Require().NoError(err)
	s.EqualValues(applicants, jobs[0]["applicants"])

	apps, err := s.mem.GetAll(s.ctx, store.Applications, nil)
	s.Require().NoError(err)
	s.Len(apps, applicants)
}

func (s *OrchestratorSuite) TestSubmitApplicationForcesPending() {
	o := s.orchestrator()
	jobID, err := o.Create(s.ctx, store.Jobs, store.Document{"employerId": "e1", "title": "Cook"}, "e1")
	s.Require().NoError(err)

	id, err := o.SubmitApplication(s.ctx, domain.Application{
		JobID:    jobID,
		WorkerID: "w1",
		Status:   domain.ApplicationStatusAccepted,
	}, "w1")
	s.Require().NoError(err)

	apps, err := s.mem.GetAll(s.ctx, store.Applications, store.Filter{"id": id})
	s.Require().NoError(err)
	s.Equal("pending", apps[0]["status"])
}

func (s *OrchestratorSuite) TestStatusTransitions() {
	o := s.orchestrator()
	id := s.createUser(o, "Amina Hassan")

	s.Run("approve pending user", func() {
		s.Require().NoError(o.ApproveUser(s.ctx, id, "admin-1"))
		s.Equal("verified", s.userStatus(id))
	})

	s.Run("suspend verified user", func() {
		s.Require().NoError(o.SuspendUser(s.ctx, id, "admin-1"))
		s.Equal("suspended", s.userStatus(id))
	})

	s.Run("reactivate suspended user", func() {
		s.Require().NoError(o.ReactivateUser(s.ctx, id, "admin-1"))
		s.Equal("verified", s.userStatus(id))
	})

	s.Run("cannot reject verified user", func() {
		s.Require().ErrorIs(o.RejectUser(s.ctx, id, "admin-1"), sentinel.ErrValidationFailed)
	})
}

func (s *OrchestratorSuite) TestRejectedIsTerminal() {
	o := s.orchestrator()
	id := s.createUser(o, "Joseph Mwangi")

	s.Require().NoError(o.RejectUser(s.ctx, id, "admin-1"))
	s.Equal("rejected", s.userStatus(id))

	s.Require().ErrorIs(o.ApproveUser(s.ctx, id, "admin-1"), sentinel.ErrValidationFailed)
	s.Require().ErrorIs(o.SuspendUser(s.ctx, id, "admin-1"), sentinel.ErrValidationFailed)
}

func (s *OrchestratorSuite) TestApproveUnknownUser() {
	o := s.orchestrator()
	s.Require().ErrorIs(o.ApproveUser(s.ctx, "missing", "admin-1"), sentinel.ErrNotFound)
}

func (s *OrchestratorSuite) TestApproveVerifiesNationalID() {
	ctrl := gomock.NewController(s.T())
	verifier := mocks.NewMockClient(ctrl)
	o := s.orchestrator(WithVerifier(verifier))
	id := s.createUser(o, "Amina Hasan")

	verifier.EXPECT().
		Verify(gomock.Any(), "19900101-00001", "Amina Hasan").
		Return(verify.Result{Verified: true, NormalizedName: "Amina Hassan"}, nil)

	s.Require().NoError(o.ApproveUser(s.ctx, id, "admin-1"))

	docs, err := s.mem.GetAll(s.ctx, store.Users, store.Filter{"id": id})
	s.Require().NoError(err)
	s.Equal("verified", docs[0]["status"])
	s.Equal("Amina Hassan", docs[0]["fullName"],
		"the registry's normalized name replaces the self-reported one")
}

func (s *OrchestratorSuite) TestApproveFailsWhenIDDoesNotVerify() {
	ctrl := gomock.NewController(s.T())
	verifier := mocks.NewMockClient(ctrl)
	o := s.orchestrator(WithVerifier(verifier))
	id := s.createUser(o, "Amina Hassan")

	verifier.EXPECT().
		Verify(gomock.Any(), gomock.Any(), gomock.Any()).
		Return(verify.Result{Verified: false, Error: "no such citizen"}, nil)

	s.Require().ErrorIs(o.ApproveUser(s.ctx, id, "admin-1"), sentinel.ErrValidationFailed)
	s.Equal("pending", s.userStatus(id))
}

func (s *OrchestratorSuite) TestMutationsEmitAuditEvents() {
	publisher := audit.NewPublisher(16, nil)
	sink := audit.NewInMemoryStore()
	worker := audit.NewWorker(sink, publisher.Inbox(), nil)
	ctx, cancel := context.WithCancel(s.ctx)
	defer cancel()
	go func() { _ = worker.Run(ctx) }()

	o := s.orchestrator(WithAudit(publisher))
	id := s.createUser(o, "Amina Hassan")

	s.Require().Eventually(func() bool {
		events := sink.List(s.ctx)
		if len(events) != 1 {
			return false
		}
		e := events[0]
		return e.Actor == "admin-1" && e.Collection == "users" &&
			e.DocumentID == id && e.Action == audit.ActionCreate
	}, 2*time.Second, 10*time.Millisecond)
}
