package core

import (
	"context"
	"fmt"

	"studycore/pkg/domain"
)

// SubjectDefaultsRule blocks commits that would leave a subject's sex or
// handedness empty. Both default to Unknown, never null.
func SubjectDefaultsRule() domain.Rule {
	return subjectDefaultsRule{}
}

type subjectDefaultsRule struct{}

func (subjectDefaultsRule) Name() string { return "subject_defaults" }

func (subjectDefaultsRule) Evaluate(_ context.Context, _ domain.RuleView, changes []domain.Change) (domain.Result, error) {
	var result domain.Result
	for _, change := range changes {
		if change.Entity != domain.EntitySubject || change.Action == domain.ActionDelete {
			continue
		}
		subject, ok := change.After.(domain.Subject)
		if !ok {
			continue
		}
		if subject.Sex == "" || subject.Handedness == "" {
			result.Violations = append(result.Violations, domain.Violation{
				Rule:     "subject_defaults",
				Severity: domain.SeverityBlock,
				Message:  fmt.Sprintf("subject %q is missing sex or handedness coding", subject.SubjectID),
				Entity:   domain.EntitySubject,
				EntityID: subject.ID,
			})
		}
	}
	return result, nil
}
