package domain

import (
	"context"
	"time"
)

// Transaction exposes the domain operations that a persistence implementation
// must support within an atomic scope.
type Transaction interface {
	Snapshot() TransactionView
	CreateSubject(Subject) (Subject, error)
	UpdateSubject(id string, mutator func(*Subject) error) (Subject, error)
	DeleteSubject(id string) error
	CreateSession(Session) (Session, error)
	UpdateSession(id string, mutator func(*Session) error) (Session, error)
	DeleteSession(id string) error
	CreateQuestionnaireResponse(QuestionnaireResponse) (QuestionnaireResponse, error)
	DeleteQuestionnaireResponse(id string) error
	CreateSECAMeasurement(SECAMeasurement) (SECAMeasurement, error)
	CreateStudy(Study) (Study, error)
	CreateGroup(Group) (Group, error)
	CreateCondition(Condition) (Condition, error)
	CreateLab(Lab) (Lab, error)
	CreateProcedure(Procedure) (Procedure, error)
	UpdateProcedure(id string, mutator func(*Procedure) error) (Procedure, error)
}

// TransactionView provides read-only access to snapshot data for the
// reconciler, linkers, and rules. Natural-key lookups mirror the queries the
// batch pipeline needs; list results are defensively cloned.
type TransactionView interface {
	ListSubjects() []Subject
	ListSessions() []Session
	FindSubject(id string) (Subject, bool)
	FindSession(id string) (Session, bool)

	// FindSubjectBySubjectID resolves the subject natural key. At most one
	// subject can carry a given subject identifier.
	FindSubjectBySubjectID(subjectID string) (Subject, bool)
	// ListSubjectsByQuestionnaireCode returns every subject carrying the
	// secondary questionnaire code; callers treat len>1 as ambiguous.
	ListSubjectsByQuestionnaireCode(code string) []Subject
	// FindSessionByOriginID resolves the session natural key.
	FindSessionByOriginID(originID string) (Session, bool)
	// ListSessionsForSubject returns the subject's sessions ordered by
	// timestamp ascending.
	ListSessionsForSubject(subjectID string) []Session
	// ListSessionsByMeasurementKey returns sessions on the given calendar
	// date whose subject matches the date of birth and sex exactly.
	ListSessionsByMeasurementKey(date time.Time, dateOfBirth time.Time, sex Sex) []Session
	// ListQuestionnaireResponsesForSubject returns the subject's responses.
	ListQuestionnaireResponsesForSubject(subjectID string) []QuestionnaireResponse
	// ListSECAMeasurementsForSubject returns the subject's measurements.
	ListSECAMeasurementsForSubject(subjectID string) []SECAMeasurement
	FindQuestionnaireResponse(id string) (QuestionnaireResponse, bool)
	FindSECAMeasurement(id string) (SECAMeasurement, bool)

	FindStudyByName(name string) (Study, bool)
	FindGroupByName(studyID, name string) (Group, bool)
	FindConditionByName(studyID, name string) (Condition, bool)
	FindLabByName(name string) (Lab, bool)
	FindStudy(id string) (Study, bool)
	FindGroup(id string) (Group, bool)
	FindCondition(id string) (Condition, bool)
	FindLab(id string) (Lab, bool)
	ListStudies() []Study
	ListLabs() []Lab

	// FindProcedureByKey resolves a procedure by its (session, name, path) key.
	FindProcedureByKey(sessionID, name, path string) (Procedure, bool)
	ListProceduresForSession(sessionID string) []Procedure
}

// PersistentStore is a minimal abstraction over durable backends. It mirrors
// the subset of store capabilities used directly by higher layers.
type PersistentStore interface {
	RunInTransaction(ctx context.Context, fn func(Transaction) error) (Result, error)
	View(ctx context.Context, fn func(TransactionView) error) error
	ListSubjects() []Subject
	ListSessions() []Session
	ListStudies() []Study
	ListProcedures() []Procedure
}
