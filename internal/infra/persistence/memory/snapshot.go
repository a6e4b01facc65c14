package memory

import "studycore/pkg/domain"

// Snapshot is a serializable copy of the full store state, used by durable
// backends to persist and rehydrate the in-memory store.
type Snapshot struct {
	Subjects       []domain.Subject               `json:"subjects"`
	Sessions       []domain.Session               `json:"sessions"`
	Questionnaires []domain.QuestionnaireResponse `json:"questionnaires"`
	Measurements   []domain.SECAMeasurement       `json:"measurements"`
	Studies        []domain.Study                 `json:"studies"`
	Groups         []domain.Group                 `json:"groups"`
	Conditions     []domain.Condition             `json:"conditions"`
	Labs           []domain.Lab                   `json:"labs"`
	Procedures     []domain.Procedure             `json:"procedures"`
}

// ExportState copies the current state into a Snapshot.
func (s *Store) ExportState() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var snapshot Snapshot
	for _, v := range s.state.subjects {
		snapshot.Subjects = append(snapshot.Subjects, cloneSubject(v))
	}
	for _, v := range s.state.sessions {
		snapshot.Sessions = append(snapshot.Sessions, cloneSession(v))
	}
	for _, v := range s.state.questionnaires {
		snapshot.Questionnaires = append(snapshot.Questionnaires, cloneQuestionnaire(v))
	}
	for _, v := range s.state.measurements {
		snapshot.Measurements = append(snapshot.Measurements, cloneMeasurement(v))
	}
	for _, v := range s.state.studies {
		snapshot.Studies = append(snapshot.Studies, v)
	}
	for _, v := range s.state.groups {
		snapshot.Groups = append(snapshot.Groups, v)
	}
	for _, v := range s.state.conditions {
		snapshot.Conditions = append(snapshot.Conditions, v)
	}
	for _, v := range s.state.labs {
		snapshot.Labs = append(snapshot.Labs, v)
	}
	for _, v := range s.state.procedures {
		snapshot.Procedures = append(snapshot.Procedures, cloneProcedure(v))
	}
	return snapshot
}

// ImportState replaces the current state with the provided Snapshot.
func (s *Store) ImportState(snapshot Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := newState()
	for _, v := range snapshot.Subjects {
		next.subjects[v.ID] = cloneSubject(v)
	}
	for _, v := range snapshot.Sessions {
		next.sessions[v.ID] = cloneSession(v)
	}
	for _, v := range snapshot.Questionnaires {
		next.questionnaires[v.ID] = cloneQuestionnaire(v)
	}
	for _, v := range snapshot.Measurements {
		next.measurements[v.ID] = cloneMeasurement(v)
	}
	for _, v := range snapshot.Studies {
		next.studies[v.ID] = v
	}
	for _, v := range snapshot.Groups {
		next.groups[v.ID] = v
	}
	for _, v := range snapshot.Conditions {
		next.conditions[v.ID] = v
	}
	for _, v := range snapshot.Labs {
		next.labs[v.ID] = v
	}
	for _, v := range snapshot.Procedures {
		next.procedures[v.ID] = cloneProcedure(v)
	}
	s.state = next
}
