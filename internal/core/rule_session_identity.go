package core

import (
	"context"
	"fmt"

	"studycore/pkg/domain"
)

// SessionIdentityRule blocks any commit where a session's derived fields
// disagree with its origin identifier. The origin identifier uniquely
// determines the timestamp and canonical session id; they are never
// independently settable.
func SessionIdentityRule() domain.Rule {
	return sessionIdentityRule{}
}

type sessionIdentityRule struct{}

func (sessionIdentityRule) Name() string { return "session_identity" }

func (sessionIdentityRule) Evaluate(_ context.Context, _ domain.RuleView, changes []domain.Change) (domain.Result, error) {
	var result domain.Result
	for _, change := range changes {
		if change.Entity != domain.EntitySession || change.Action == domain.ActionDelete {
			continue
		}
		session, ok := change.After.(domain.Session)
		if !ok {
			continue
		}
		ts, err := domain.ParseOriginSessionID(session.OriginSessionID)
		if err != nil {
			result.Violations = append(result.Violations, domain.Violation{
				Rule:     "session_identity",
				Severity: domain.SeverityBlock,
				Message:  fmt.Sprintf("origin_session_id %q is not parseable", session.OriginSessionID),
				Entity:   domain.EntitySession,
				EntityID: session.ID,
			})
			continue
		}
		if !session.Timestamp.Equal(ts) {
			result.Violations = append(result.Violations, domain.Violation{
				Rule:     "session_identity",
				Severity: domain.SeverityBlock,
				Message:  fmt.Sprintf("timestamp %s does not derive from origin_session_id %q", session.Timestamp, session.OriginSessionID),
				Entity:   domain.EntitySession,
				EntityID: session.ID,
			})
		}
		if session.SessionID != domain.CanonicalSessionID(ts) {
			result.Violations = append(result.Violations, domain.Violation{
				Rule:     "session_identity",
				Severity: domain.SeverityBlock,
				Message:  fmt.Sprintf("session_id %q does not derive from origin_session_id %q", session.SessionID, session.OriginSessionID),
				Entity:   domain.EntitySession,
				EntityID: session.ID,
			})
		}
	}
	return result, nil
}
