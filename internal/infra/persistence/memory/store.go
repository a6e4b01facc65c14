// Package memory provides the authoritative in-memory transactional store.
// Durable backends (sqlite, postgres) embed it and snapshot its state after
// every successful transaction.
package memory

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"sort"
	"sync"
	"time"

	"studycore/pkg/domain"
)

// Compile-time contract assertion ensuring the store satisfies the domain interface.
var _ domain.PersistentStore = (*Store)(nil)

type state struct {
	subjects       map[string]domain.Subject
	sessions       map[string]domain.Session
	questionnaires map[string]domain.QuestionnaireResponse
	measurements   map[string]domain.SECAMeasurement
	studies        map[string]domain.Study
	groups         map[string]domain.Group
	conditions     map[string]domain.Condition
	labs           map[string]domain.Lab
	procedures     map[string]domain.Procedure
}

func newState() state {
	return state{
		subjects:       make(map[string]domain.Subject),
		sessions:       make(map[string]domain.Session),
		questionnaires: make(map[string]domain.QuestionnaireResponse),
		measurements:   make(map[string]domain.SECAMeasurement),
		studies:        make(map[string]domain.Study),
		groups:         make(map[string]domain.Group),
		conditions:     make(map[string]domain.Condition),
		labs:           make(map[string]domain.Lab),
		procedures:     make(map[string]domain.Procedure),
	}
}

func (s state) clone() state {
	cloned := newState()
	for k, v := range s.subjects {
		cloned.subjects[k] = cloneSubject(v)
	}
	for k, v := range s.sessions {
		cloned.sessions[k] = cloneSession(v)
	}
	for k, v := range s.questionnaires {
		cloned.questionnaires[k] = cloneQuestionnaire(v)
	}
	for k, v := range s.measurements {
		cloned.measurements[k] = cloneMeasurement(v)
	}
	for k, v := range s.studies {
		cloned.studies[k] = v
	}
	for k, v := range s.groups {
		cloned.groups[k] = v
	}
	for k, v := range s.conditions {
		cloned.conditions[k] = v
	}
	for k, v := range s.labs {
		cloned.labs[k] = v
	}
	for k, v := range s.procedures {
		cloned.procedures[k] = cloneProcedure(v)
	}
	return cloned
}

func cloneSubject(s domain.Subject) domain.Subject {
	cp := s
	cp.DateOfBirth = cloneTimePtr(s.DateOfBirth)
	cp.HeightCM = cloneFloatPtr(s.HeightCM)
	cp.WeightKG = cloneFloatPtr(s.WeightKG)
	return cp
}

func cloneSession(s domain.Session) domain.Session {
	cp := s
	cp.StudyID = cloneStringPtr(s.StudyID)
	cp.GroupID = cloneStringPtr(s.GroupID)
	cp.ConditionID = cloneStringPtr(s.ConditionID)
	cp.LabID = cloneStringPtr(s.LabID)
	cp.QuestionnaireResponseID = cloneStringPtr(s.QuestionnaireResponseID)
	cp.QuestionnaireDelta = cloneDurationPtr(s.QuestionnaireDelta)
	cp.SECAMeasurementID = cloneStringPtr(s.SECAMeasurementID)
	cp.SECADelta = cloneDurationPtr(s.SECADelta)
	return cp
}

func cloneQuestionnaire(q domain.QuestionnaireResponse) domain.QuestionnaireResponse {
	cp := q
	cp.Response = cloneStringMap(q.Response)
	return cp
}

func cloneMeasurement(m domain.SECAMeasurement) domain.SECAMeasurement {
	cp := m
	cp.Measurement = cloneStringMap(m.Measurement)
	cp.DateOfBirth = cloneTimePtr(m.DateOfBirth)
	cp.BMI = cloneFloatPtr(m.BMI)
	cp.HeightCM = cloneFloatPtr(m.HeightCM)
	cp.WeightKG = cloneFloatPtr(m.WeightKG)
	return cp
}

func cloneProcedure(p domain.Procedure) domain.Procedure {
	cp := p
	if p.Outputs != nil {
		cp.Outputs = make(map[string]map[string]string, len(p.Outputs))
		for path, entities := range p.Outputs {
			cp.Outputs[path] = cloneStringMap(entities)
		}
	}
	return cp
}

func cloneStringMap(m map[string]string) map[string]string {
	if m == nil {
		return nil
	}
	cp := make(map[string]string, len(m))
	for k, v := range m {
		cp[k] = v
	}
	return cp
}

func cloneStringPtr(p *string) *string {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

func cloneTimePtr(p *time.Time) *time.Time {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

func cloneFloatPtr(p *float64) *float64 {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

func cloneDurationPtr(p *time.Duration) *time.Duration {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

// Store provides an in-memory transactional store for the core domain.
type Store struct {
	mu     sync.RWMutex
	state  state
	engine *domain.RulesEngine
	nowFn  func() time.Time
}

// NewStore constructs an in-memory store backed by the provided rules engine.
func NewStore(engine *domain.RulesEngine) *Store {
	if engine == nil {
		engine = domain.NewRulesEngine()
	}
	return &Store{
		state:  newState(),
		engine: engine,
		nowFn:  func() time.Time { return time.Now().UTC() },
	}
}

func (s *Store) newID() string {
	var b [16]byte
	if _, err := rand.Read(b[:]); err != nil {
		panic(err)
	}
	return hex.EncodeToString(b[:])
}

// Transaction represents a mutation set applied to the store state.
type Transaction struct {
	store   *Store
	state   state
	changes []domain.Change
	now     time.Time
}

// RunInTransaction executes fn within a transactional copy of the store state.
// The copy becomes authoritative only when fn succeeds and no registered rule
// reports a blocking violation.
func (s *Store) RunInTransaction(ctx context.Context, fn func(domain.Transaction) error) (domain.Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx := &Transaction{
		store: s,
		state: s.state.clone(),
		now:   s.nowFn(),
	}

	if err := fn(tx); err != nil {
		return domain.Result{}, err
	}

	var result domain.Result
	if s.engine != nil {
		view := newView(&tx.state)
		res, err := s.engine.Evaluate(ctx, view, tx.changes)
		if err != nil {
			return domain.Result{}, err
		}
		result = res
		if res.HasBlocking() {
			return res, domain.RuleViolationError{Result: res}
		}
	}

	s.state = tx.state
	return result, nil
}

// View executes fn against a read-only snapshot of the store state.
func (s *Store) View(ctx context.Context, fn func(domain.TransactionView) error) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snapshot := s.state.clone()
	return fn(newView(&snapshot))
}

// Snapshot returns a read-only view of the transaction state.
func (tx *Transaction) Snapshot() domain.TransactionView {
	return newView(&tx.state)
}

func (tx *Transaction) recordChange(change domain.Change) {
	tx.changes = append(tx.changes, change)
}

// CreateSubject stores a new subject, enforcing subject_id uniqueness and the
// never-null sex/handedness defaults.
func (tx *Transaction) CreateSubject(subject domain.Subject) (domain.Subject, error) {
	if subject.SubjectID == "" {
		return domain.Subject{}, fmt.Errorf("subject requires a subject_id")
	}
	for _, existing := range tx.state.subjects {
		if existing.SubjectID == subject.SubjectID {
			return domain.Subject{}, fmt.Errorf("subject %q already exists", subject.SubjectID)
		}
	}
	if subject.ID == "" {
		subject.ID = tx.store.newID()
	}
	if _, exists := tx.state.subjects[subject.ID]; exists {
		return domain.Subject{}, fmt.Errorf("subject record %q already exists", subject.ID)
	}
	if subject.Sex == "" {
		subject.Sex = domain.SexUnknown
	}
	if subject.Handedness == "" {
		subject.Handedness = domain.HandednessUnknown
	}
	subject.CreatedAt = tx.now
	subject.UpdatedAt = tx.now
	tx.state.subjects[subject.ID] = cloneSubject(subject)
	tx.recordChange(domain.Change{Entity: domain.EntitySubject, Action: domain.ActionCreate, After: cloneSubject(subject)})
	return cloneSubject(subject), nil
}

// UpdateSubject mutates a subject using the provided mutator. The subject
// natural key is immutable; mutations attempting to change it fail.
func (tx *Transaction) UpdateSubject(id string, mutator func(*domain.Subject) error) (domain.Subject, error) {
	current, ok := tx.state.subjects[id]
	if !ok {
		return domain.Subject{}, fmt.Errorf("subject record %q not found", id)
	}
	before := cloneSubject(current)
	if err := mutator(&current); err != nil {
		return domain.Subject{}, err
	}
	if current.SubjectID != before.SubjectID {
		return domain.Subject{}, fmt.Errorf("subject_id is immutable (was %q)", before.SubjectID)
	}
	current.ID = id
	if current.Sex == "" {
		current.Sex = domain.SexUnknown
	}
	if current.Handedness == "" {
		current.Handedness = domain.HandednessUnknown
	}
	current.UpdatedAt = tx.now
	tx.state.subjects[id] = cloneSubject(current)
	tx.recordChange(domain.Change{Entity: domain.EntitySubject, Action: domain.ActionUpdate, Before: before, After: cloneSubject(current)})
	return cloneSubject(current), nil
}

// DeleteSubject removes a subject from the transaction state.
func (tx *Transaction) DeleteSubject(id string) error {
	current, ok := tx.state.subjects[id]
	if !ok {
		return fmt.Errorf("subject record %q not found", id)
	}
	delete(tx.state.subjects, id)
	tx.recordChange(domain.Change{Entity: domain.EntitySubject, Action: domain.ActionDelete, Before: cloneSubject(current)})
	return nil
}

// CreateSession stores a new session, enforcing origin identifier uniqueness
// and subject existence.
func (tx *Transaction) CreateSession(session domain.Session) (domain.Session, error) {
	if session.SubjectID == "" {
		return domain.Session{}, fmt.Errorf("session requires a subject")
	}
	if _, ok := tx.state.subjects[session.SubjectID]; !ok {
		return domain.Session{}, fmt.Errorf("subject record %q not found", session.SubjectID)
	}
	if session.OriginSessionID == "" {
		return domain.Session{}, fmt.Errorf("session requires an origin_session_id")
	}
	for _, existing := range tx.state.sessions {
		if existing.OriginSessionID == session.OriginSessionID {
			return domain.Session{}, fmt.Errorf("session %q already exists", session.OriginSessionID)
		}
	}
	if session.ID == "" {
		session.ID = tx.store.newID()
	}
	if _, exists := tx.state.sessions[session.ID]; exists {
		return domain.Session{}, fmt.Errorf("session record %q already exists", session.ID)
	}
	session.CreatedAt = tx.now
	session.UpdatedAt = tx.now
	tx.state.sessions[session.ID] = cloneSession(session)
	tx.recordChange(domain.Change{Entity: domain.EntitySession, Action: domain.ActionCreate, After: cloneSession(session)})
	return cloneSession(session), nil
}

// UpdateSession mutates a session using the provided mutator.
func (tx *Transaction) UpdateSession(id string, mutator func(*domain.Session) error) (domain.Session, error) {
	current, ok := tx.state.sessions[id]
	if !ok {
		return domain.Session{}, fmt.Errorf("session record %q not found", id)
	}
	before := cloneSession(current)
	if err := mutator(&current); err != nil {
		return domain.Session{}, err
	}
	current.ID = id
	current.UpdatedAt = tx.now
	tx.state.sessions[id] = cloneSession(current)
	tx.recordChange(domain.Change{Entity: domain.EntitySession, Action: domain.ActionUpdate, Before: before, After: cloneSession(current)})
	return cloneSession(current), nil
}

// DeleteSession removes a session from the transaction state.
func (tx *Transaction) DeleteSession(id string) error {
	current, ok := tx.state.sessions[id]
	if !ok {
		return fmt.Errorf("session record %q not found", id)
	}
	delete(tx.state.sessions, id)
	tx.recordChange(domain.Change{Entity: domain.EntitySession, Action: domain.ActionDelete, Before: cloneSession(current)})
	return nil
}

// CreateQuestionnaireResponse stores an immutable questionnaire snapshot.
func (tx *Transaction) CreateQuestionnaireResponse(q domain.QuestionnaireResponse) (domain.QuestionnaireResponse, error) {
	if q.SubjectID == "" {
		return domain.QuestionnaireResponse{}, fmt.Errorf("questionnaire response requires a subject")
	}
	if _, ok := tx.state.subjects[q.SubjectID]; !ok {
		return domain.QuestionnaireResponse{}, fmt.Errorf("subject record %q not found", q.SubjectID)
	}
	if q.ID == "" {
		q.ID = tx.store.newID()
	}
	if _, exists := tx.state.questionnaires[q.ID]; exists {
		return domain.QuestionnaireResponse{}, fmt.Errorf("questionnaire response %q already exists", q.ID)
	}
	q.CreatedAt = tx.now
	q.UpdatedAt = tx.now
	tx.state.questionnaires[q.ID] = cloneQuestionnaire(q)
	tx.recordChange(domain.Change{Entity: domain.EntityQuestionnaireResponse, Action: domain.ActionCreate, After: cloneQuestionnaire(q)})
	return cloneQuestionnaire(q), nil
}

// DeleteQuestionnaireResponse removes a response; links held by sessions are
// the caller's responsibility to re-point.
func (tx *Transaction) DeleteQuestionnaireResponse(id string) error {
	current, ok := tx.state.questionnaires[id]
	if !ok {
		return fmt.Errorf("questionnaire response %q not found", id)
	}
	delete(tx.state.questionnaires, id)
	tx.recordChange(domain.Change{Entity: domain.EntityQuestionnaireResponse, Action: domain.ActionDelete, Before: cloneQuestionnaire(current)})
	return nil
}

// CreateSECAMeasurement stores an immutable body-composition snapshot.
func (tx *Transaction) CreateSECAMeasurement(m domain.SECAMeasurement) (domain.SECAMeasurement, error) {
	if m.SubjectID == "" {
		return domain.SECAMeasurement{}, fmt.Errorf("seca measurement requires a subject")
	}
	if _, ok := tx.state.subjects[m.SubjectID]; !ok {
		return domain.SECAMeasurement{}, fmt.Errorf("subject record %q not found", m.SubjectID)
	}
	if m.ID == "" {
		m.ID = tx.store.newID()
	}
	if _, exists := tx.state.measurements[m.ID]; exists {
		return domain.SECAMeasurement{}, fmt.Errorf("seca measurement %q already exists", m.ID)
	}
	m.CreatedAt = tx.now
	m.UpdatedAt = tx.now
	tx.state.measurements[m.ID] = cloneMeasurement(m)
	tx.recordChange(domain.Change{Entity: domain.EntitySECAMeasurement, Action: domain.ActionCreate, After: cloneMeasurement(m)})
	return cloneMeasurement(m), nil
}

// CreateStudy stores a new study dimension record, unique by name.
func (tx *Transaction) CreateStudy(study domain.Study) (domain.Study, error) {
	if study.Name == "" {
		return domain.Study{}, fmt.Errorf("study requires a name")
	}
	for _, existing := range tx.state.studies {
		if existing.Name == study.Name {
			return domain.Study{}, fmt.Errorf("study %q already exists", study.Name)
		}
	}
	if study.ID == "" {
		study.ID = tx.store.newID()
	}
	study.CreatedAt = tx.now
	study.UpdatedAt = tx.now
	tx.state.studies[study.ID] = study
	tx.recordChange(domain.Change{Entity: domain.EntityStudy, Action: domain.ActionCreate, After: study})
	return study, nil
}

// CreateGroup stores a new group dimension record, unique by (study, name).
func (tx *Transaction) CreateGroup(group domain.Group) (domain.Group, error) {
	if group.Name == "" {
		return domain.Group{}, fmt.Errorf("group requires a name")
	}
	if _, ok := tx.state.studies[group.StudyID]; !ok {
		return domain.Group{}, fmt.Errorf("study record %q not found", group.StudyID)
	}
	for _, existing := range tx.state.groups {
		if existing.StudyID == group.StudyID && existing.Name == group.Name {
			return domain.Group{}, fmt.Errorf("group %q already exists in study", group.Name)
		}
	}
	if group.ID == "" {
		group.ID = tx.store.newID()
	}
	group.CreatedAt = tx.now
	group.UpdatedAt = tx.now
	tx.state.groups[group.ID] = group
	tx.recordChange(domain.Change{Entity: domain.EntityGroup, Action: domain.ActionCreate, After: group})
	return group, nil
}

// CreateCondition stores a new condition dimension record, unique by (study, name).
func (tx *Transaction) CreateCondition(condition domain.Condition) (domain.Condition, error) {
	if condition.Name == "" {
		return domain.Condition{}, fmt.Errorf("condition requires a name")
	}
	if _, ok := tx.state.studies[condition.StudyID]; !ok {
		return domain.Condition{}, fmt.Errorf("study record %q not found", condition.StudyID)
	}
	for _, existing := range tx.state.conditions {
		if existing.StudyID == condition.StudyID && existing.Name == condition.Name {
			return domain.Condition{}, fmt.Errorf("condition %q already exists in study", condition.Name)
		}
	}
	if condition.ID == "" {
		condition.ID = tx.store.newID()
	}
	condition.CreatedAt = tx.now
	condition.UpdatedAt = tx.now
	tx.state.conditions[condition.ID] = condition
	tx.recordChange(domain.Change{Entity: domain.EntityCondition, Action: domain.ActionCreate, After: condition})
	return condition, nil
}

// CreateLab stores a new lab dimension record, unique by name.
func (tx *Transaction) CreateLab(lab domain.Lab) (domain.Lab, error) {
	if lab.Name == "" {
		return domain.Lab{}, fmt.Errorf("lab requires a name")
	}
	for _, existing := range tx.state.labs {
		if existing.Name == lab.Name {
			return domain.Lab{}, fmt.Errorf("lab %q already exists", lab.Name)
		}
	}
	if lab.ID == "" {
		lab.ID = tx.store.newID()
	}
	lab.CreatedAt = tx.now
	lab.UpdatedAt = tx.now
	tx.state.labs[lab.ID] = lab
	tx.recordChange(domain.Change{Entity: domain.EntityLab, Action: domain.ActionCreate, After: lab})
	return lab, nil
}

// CreateProcedure stores a new procedure record, unique by (session, name, path).
func (tx *Transaction) CreateProcedure(procedure domain.Procedure) (domain.Procedure, error) {
	if procedure.SessionID == "" {
		return domain.Procedure{}, fmt.Errorf("procedure requires a session")
	}
	if _, ok := tx.state.sessions[procedure.SessionID]; !ok {
		return domain.Procedure{}, fmt.Errorf("session record %q not found", procedure.SessionID)
	}
	for _, existing := range tx.state.procedures {
		if existing.SessionID == procedure.SessionID && existing.Name == procedure.Name && existing.Path == procedure.Path {
			return domain.Procedure{}, fmt.Errorf("procedure %q already exists for session", procedure.Name)
		}
	}
	if procedure.ID == "" {
		procedure.ID = tx.store.newID()
	}
	if procedure.Status == "" {
		procedure.Status = domain.ProcedureStatusCompleted
	}
	procedure.CreatedAt = tx.now
	procedure.UpdatedAt = tx.now
	tx.state.procedures[procedure.ID] = cloneProcedure(procedure)
	tx.recordChange(domain.Change{Entity: domain.EntityProcedure, Action: domain.ActionCreate, After: cloneProcedure(procedure)})
	return cloneProcedure(procedure), nil
}

// UpdateProcedure mutates a procedure using the provided mutator.
func (tx *Transaction) UpdateProcedure(id string, mutator func(*domain.Procedure) error) (domain.Procedure, error) {
	current, ok := tx.state.procedures[id]
	if !ok {
		return domain.Procedure{}, fmt.Errorf("procedure record %q not found", id)
	}
	before := cloneProcedure(current)
	if err := mutator(&current); err != nil {
		return domain.Procedure{}, err
	}
	current.ID = id
	current.UpdatedAt = tx.now
	tx.state.procedures[id] = cloneProcedure(current)
	tx.recordChange(domain.Change{Entity: domain.EntityProcedure, Action: domain.ActionUpdate, Before: before, After: cloneProcedure(current)})
	return cloneProcedure(current), nil
}

// ListSubjects returns all subjects ordered by subject identifier.
func (s *Store) ListSubjects() []domain.Subject {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return newView(&s.state).ListSubjects()
}

// ListSessions returns all sessions ordered by timestamp ascending.
func (s *Store) ListSessions() []domain.Session {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return newView(&s.state).ListSessions()
}

// ListStudies returns all study dimension records ordered by name.
func (s *Store) ListStudies() []domain.Study {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return newView(&s.state).ListStudies()
}

// ListProcedures returns all procedure records.
func (s *Store) ListProcedures() []domain.Procedure {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Procedure, 0, len(s.state.procedures))
	for _, p := range s.state.procedures {
		out = append(out, cloneProcedure(p))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out
}
