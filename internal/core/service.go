package core

import (
	"context"
	"time"

	"studycore/pkg/domain"
)

// Service exposes higher-level transactional operations over the study schema.
type Service struct {
	store   PersistentStore
	metrics MetricsRecorder
}

// ServiceOption customizes service construction.
type ServiceOption func(*Service)

// WithMetrics attaches a metrics recorder observing every service operation.
func WithMetrics(recorder MetricsRecorder) ServiceOption {
	return func(s *Service) { s.metrics = recorder }
}

// NewService constructs a service backed by the supplied store.
func NewService(store PersistentStore, opts ...ServiceOption) *Service {
	s := &Service{store: store}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Store returns the underlying storage implementation.
func (s *Service) Store() PersistentStore { return s.store }

func (s *Service) observe(ctx context.Context, operation string, started time.Time, err error) {
	if s.metrics == nil {
		return
	}
	s.metrics.Observe(ctx, operation, err == nil, time.Since(started))
}

// CreateSubject persists a new subject.
func (s *Service) CreateSubject(ctx context.Context, subject Subject) (Subject, Result, error) {
	started := time.Now()
	var created Subject
	res, err := s.store.RunInTransaction(ctx, func(tx Transaction) error {
		var err error
		created, err = tx.CreateSubject(subject)
		return err
	})
	s.observe(ctx, "create_subject", started, err)
	return created, res, err
}

// UpdateSubject mutates a subject using the provided mutator.
func (s *Service) UpdateSubject(ctx context.Context, id string, mutator func(*Subject) error) (Subject, Result, error) {
	started := time.Now()
	var updated Subject
	res, err := s.store.RunInTransaction(ctx, func(tx Transaction) error {
		var err error
		updated, err = tx.UpdateSubject(id, mutator)
		return err
	})
	s.observe(ctx, "update_subject", started, err)
	return updated, res, err
}

// CreateSession persists a new session for the subject, deriving all computed
// fields from the origin session identifier.
func (s *Service) CreateSession(ctx context.Context, subjectID, originSessionID string) (Session, Result, error) {
	started := time.Now()
	var created Session
	res, err := s.store.RunInTransaction(ctx, func(tx Transaction) error {
		session, err := domain.NewSession(subjectID, originSessionID)
		if err != nil {
			return err
		}
		created, err = tx.CreateSession(session)
		return err
	})
	s.observe(ctx, "create_session", started, err)
	return created, res, err
}

// CreateStudy persists a new study dimension record.
func (s *Service) CreateStudy(ctx context.Context, study Study) (Study, Result, error) {
	started := time.Now()
	var created Study
	res, err := s.store.RunInTransaction(ctx, func(tx Transaction) error {
		var err error
		created, err = tx.CreateStudy(study)
		return err
	})
	s.observe(ctx, "create_study", started, err)
	return created, res, err
}

// CreateLab persists a new lab dimension record.
func (s *Service) CreateLab(ctx context.Context, lab Lab) (Lab, Result, error) {
	started := time.Now()
	var created Lab
	res, err := s.store.RunInTransaction(ctx, func(tx Transaction) error {
		var err error
		created, err = tx.CreateLab(lab)
		return err
	})
	s.observe(ctx, "create_lab", started, err)
	return created, res, err
}

// GetSubjectBySubjectID resolves the subject natural key.
func (s *Service) GetSubjectBySubjectID(ctx context.Context, subjectID string) (Subject, bool, error) {
	var subject Subject
	var found bool
	err := s.store.View(ctx, func(view TransactionView) error {
		subject, found = view.FindSubjectBySubjectID(subjectID)
		return nil
	})
	return subject, found, err
}

// GetSessionByOriginID resolves the session natural key.
func (s *Service) GetSessionByOriginID(ctx context.Context, originID string) (Session, bool, error) {
	var session Session
	var found bool
	err := s.store.View(ctx, func(view TransactionView) error {
		session, found = view.FindSessionByOriginID(originID)
		return nil
	})
	return session, found, err
}

// ListSubjects returns all subjects ordered by subject identifier.
func (s *Service) ListSubjects() []Subject { return s.store.ListSubjects() }

// ListSessions returns all sessions ordered by timestamp ascending.
func (s *Service) ListSessions() []Session { return s.store.ListSessions() }

// ListStudies returns all study dimension records.
func (s *Service) ListStudies() []Study { return s.store.ListStudies() }

// ListProcedures returns all procedure records.
func (s *Service) ListProcedures() []Procedure { return s.store.ListProcedures() }
