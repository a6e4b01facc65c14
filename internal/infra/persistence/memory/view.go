package memory

import (
	"sort"
	"time"

	"studycore/pkg/domain"
)

// view exposes a read-only snapshot of transactional state. It satisfies both
// domain.TransactionView and domain.RuleView.
type view struct {
	state *state
}

var (
	_ domain.TransactionView = view{}
	_ domain.RuleView        = view{}
)

func newView(state *state) view {
	return view{state: state}
}

// ListSubjects returns all subjects ordered by subject identifier.
func (v view) ListSubjects() []domain.Subject {
	out := make([]domain.Subject, 0, len(v.state.subjects))
	for _, s := range v.state.subjects {
		out = append(out, cloneSubject(s))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SubjectID < out[j].SubjectID })
	return out
}

// ListSessions returns all sessions ordered by timestamp ascending.
func (v view) ListSessions() []domain.Session {
	out := make([]domain.Session, 0, len(v.state.sessions))
	for _, s := range v.state.sessions {
		out = append(out, cloneSession(s))
	}
	sortSessions(out)
	return out
}

// FindSubject retrieves a subject by record ID.
func (v view) FindSubject(id string) (domain.Subject, bool) {
	s, ok := v.state.subjects[id]
	if !ok {
		return domain.Subject{}, false
	}
	return cloneSubject(s), true
}

// FindSession retrieves a session by record ID.
func (v view) FindSession(id string) (domain.Session, bool) {
	s, ok := v.state.sessions[id]
	if !ok {
		return domain.Session{}, false
	}
	return cloneSession(s), true
}

// FindSubjectBySubjectID resolves the subject natural key.
func (v view) FindSubjectBySubjectID(subjectID string) (domain.Subject, bool) {
	for _, s := range v.state.subjects {
		if s.SubjectID == subjectID {
			return cloneSubject(s), true
		}
	}
	return domain.Subject{}, false
}

// ListSubjectsByQuestionnaireCode returns subjects carrying the secondary code.
func (v view) ListSubjectsByQuestionnaireCode(code string) []domain.Subject {
	var out []domain.Subject
	for _, s := range v.state.subjects {
		if s.QuestionnaireCode == code {
			out = append(out, cloneSubject(s))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SubjectID < out[j].SubjectID })
	return out
}

// FindSessionByOriginID resolves the session natural key.
func (v view) FindSessionByOriginID(originID string) (domain.Session, bool) {
	for _, s := range v.state.sessions {
		if s.OriginSessionID == originID {
			return cloneSession(s), true
		}
	}
	return domain.Session{}, false
}

// ListSessionsForSubject returns the subject's sessions ordered by timestamp ascending.
func (v view) ListSessionsForSubject(subjectID string) []domain.Session {
	var out []domain.Session
	for _, s := range v.state.sessions {
		if s.SubjectID == subjectID {
			out = append(out, cloneSession(s))
		}
	}
	sortSessions(out)
	return out
}

// ListSessionsByMeasurementKey returns sessions on date whose subject matches
// the date of birth and sex exactly.
func (v view) ListSessionsByMeasurementKey(date, dateOfBirth time.Time, sex domain.Sex) []domain.Session {
	var out []domain.Session
	for _, s := range v.state.sessions {
		if !sameDate(s.Timestamp, date) {
			continue
		}
		subject, ok := v.state.subjects[s.SubjectID]
		if !ok || subject.Sex != sex {
			continue
		}
		if subject.DateOfBirth == nil || !sameDate(*subject.DateOfBirth, dateOfBirth) {
			continue
		}
		out = append(out, cloneSession(s))
	}
	sortSessions(out)
	return out
}

// ListQuestionnaireResponsesForSubject returns the subject's responses ordered
// by timestamp ascending.
func (v view) ListQuestionnaireResponsesForSubject(subjectID string) []domain.QuestionnaireResponse {
	var out []domain.QuestionnaireResponse
	for _, q := range v.state.questionnaires {
		if q.SubjectID == subjectID {
			out = append(out, cloneQuestionnaire(q))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Timestamp.Before(out[j].Timestamp) })
	return out
}

// ListSECAMeasurementsForSubject returns the subject's measurements ordered by
// timestamp ascending.
func (v view) ListSECAMeasurementsForSubject(subjectID string) []domain.SECAMeasurement {
	var out []domain.SECAMeasurement
	for _, m := range v.state.measurements {
		if m.SubjectID == subjectID {
			out = append(out, cloneMeasurement(m))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Timestamp.Before(out[j].Timestamp) })
	return out
}

// FindQuestionnaireResponse retrieves a response by record ID.
func (v view) FindQuestionnaireResponse(id string) (domain.QuestionnaireResponse, bool) {
	q, ok := v.state.questionnaires[id]
	if !ok {
		return domain.QuestionnaireResponse{}, false
	}
	return cloneQuestionnaire(q), true
}

// FindSECAMeasurement retrieves a measurement by record ID.
func (v view) FindSECAMeasurement(id string) (domain.SECAMeasurement, bool) {
	m, ok := v.state.measurements[id]
	if !ok {
		return domain.SECAMeasurement{}, false
	}
	return cloneMeasurement(m), true
}

// FindStudyByName resolves a study by its unique name.
func (v view) FindStudyByName(name string) (domain.Study, bool) {
	for _, s := range v.state.studies {
		if s.Name == name {
			return s, true
		}
	}
	return domain.Study{}, false
}

// FindGroupByName resolves a group by its (study, name) key.
func (v view) FindGroupByName(studyID, name string) (domain.Group, bool) {
	for _, g := range v.state.groups {
		if g.StudyID == studyID && g.Name == name {
			return g, true
		}
	}
	return domain.Group{}, false
}

// FindConditionByName resolves a condition by its (study, name) key.
func (v view) FindConditionByName(studyID, name string) (domain.Condition, bool) {
	for _, c := range v.state.conditions {
		if c.StudyID == studyID && c.Name == name {
			return c, true
		}
	}
	return domain.Condition{}, false
}

// FindLabByName resolves a lab by its unique name.
func (v view) FindLabByName(name string) (domain.Lab, bool) {
	for _, l := range v.state.labs {
		if l.Name == name {
			return l, true
		}
	}
	return domain.Lab{}, false
}

// FindStudy retrieves a study by record ID.
func (v view) FindStudy(id string) (domain.Study, bool) {
	s, ok := v.state.studies[id]
	return s, ok
}

// FindGroup retrieves a group by record ID.
func (v view) FindGroup(id string) (domain.Group, bool) {
	g, ok := v.state.groups[id]
	return g, ok
}

// FindCondition retrieves a condition by record ID.
func (v view) FindCondition(id string) (domain.Condition, bool) {
	c, ok := v.state.conditions[id]
	return c, ok
}

// FindLab retrieves a lab by record ID.
func (v view) FindLab(id string) (domain.Lab, bool) {
	l, ok := v.state.labs[id]
	return l, ok
}

// ListStudies returns all studies ordered by name.
func (v view) ListStudies() []domain.Study {
	out := make([]domain.Study, 0, len(v.state.studies))
	for _, s := range v.state.studies {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// ListLabs returns all labs ordered by name.
func (v view) ListLabs() []domain.Lab {
	out := make([]domain.Lab, 0, len(v.state.labs))
	for _, l := range v.state.labs {
		out = append(out, l)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// FindProcedureByKey resolves a procedure by its (session, name, path) key.
func (v view) FindProcedureByKey(sessionID, name, path string) (domain.Procedure, bool) {
	for _, p := range v.state.procedures {
		if p.SessionID == sessionID && p.Name == name && p.Path == path {
			return cloneProcedure(p), true
		}
	}
	return domain.Procedure{}, false
}

// ListProceduresForSession returns the session's procedures ordered by name.
func (v view) ListProceduresForSession(sessionID string) []domain.Procedure {
	var out []domain.Procedure
	for _, p := range v.state.procedures {
		if p.SessionID == sessionID {
			out = append(out, cloneProcedure(p))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func sortSessions(sessions []domain.Session) {
	sort.Slice(sessions, func(i, j int) bool {
		return sessions[i].Timestamp.Before(sessions[j].Timestamp)
	})
}

func sameDate(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}
