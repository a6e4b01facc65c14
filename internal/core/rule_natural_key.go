package core

import (
	"context"
	"fmt"

	"studycore/pkg/domain"
)

// NaturalKeyRule blocks commits that would leave two subjects sharing a
// subject identifier or two sessions sharing an origin session identifier.
// The transactional stores already reject duplicates at create time; the rule
// guards against drift through mutators and snapshot imports.
func NaturalKeyRule() domain.Rule {
	return naturalKeyRule{}
}

type naturalKeyRule struct{}

func (naturalKeyRule) Name() string { return "natural_key" }

func (naturalKeyRule) Evaluate(_ context.Context, view domain.RuleView, _ []domain.Change) (domain.Result, error) {
	var result domain.Result
	seenSubjects := map[string]string{}
	for _, subject := range view.ListSubjects() {
		if prev, ok := seenSubjects[subject.SubjectID]; ok {
			result.Violations = append(result.Violations, domain.Violation{
				Rule:     "natural_key",
				Severity: domain.SeverityBlock,
				Message:  fmt.Sprintf("subject_id %q held by records %s and %s", subject.SubjectID, prev, subject.ID),
				Entity:   domain.EntitySubject,
				EntityID: subject.ID,
			})
			continue
		}
		seenSubjects[subject.SubjectID] = subject.ID
	}
	seenSessions := map[string]string{}
	for _, session := range view.ListSessions() {
		if prev, ok := seenSessions[session.OriginSessionID]; ok {
			result.Violations = append(result.Violations, domain.Violation{
				Rule:     "natural_key",
				Severity: domain.SeverityBlock,
				Message:  fmt.Sprintf("origin_session_id %q held by records %s and %s", session.OriginSessionID, prev, session.ID),
				Entity:   domain.EntitySession,
				EntityID: session.ID,
			})
			continue
		}
		seenSessions[session.OriginSessionID] = session.ID
	}
	return result, nil
}
