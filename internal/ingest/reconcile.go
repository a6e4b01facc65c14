package ingest

import (
	"fmt"
	"time"

	"studycore/pkg/domain"
)

// Outcome summarizes what one reconciled row did to the store.
type Outcome struct {
	SubjectCreated   bool
	SubjectUpdated   bool
	SessionCreated   bool
	SessionRecreated bool
}

// ReconcileRow merges one normalized row into the transaction: the subject is
// upserted under the recency policy, reference dimensions are resolved
// get-or-create, and the session is created or recreated on attribute drift.
func ReconcileRow(tx domain.Transaction, row Row) (Outcome, error) {
	var outcome Outcome

	subject, created, err := reconcileSubject(tx, row)
	if err != nil {
		return outcome, err
	}
	outcome.SubjectCreated = created.created
	outcome.SubjectUpdated = created.updated

	sessionOutcome, err := reconcileSession(tx, subject, row.Session)
	if err != nil {
		return outcome, err
	}
	outcome.SessionCreated = sessionOutcome.created
	outcome.SessionRecreated = sessionOutcome.recreated
	return outcome, nil
}

type upsertResult struct {
	created bool
	updated bool
}

// reconcileSubject applies the recency policy: a row whose session timestamp
// is older than the subject's latest recorded session may only fill empty
// fields; a newer or equally recent row overwrites. Empty candidate values
// never erase existing data, and the subject natural key is never touched.
func reconcileSubject(tx domain.Transaction, row Row) (domain.Subject, upsertResult, error) {
	candidate := row.Subject
	if candidate.SubjectID == "" {
		return domain.Subject{}, upsertResult{}, fmt.Errorf("row %d carries no subject id", row.Index)
	}

	view := tx.Snapshot()
	existing, found := view.FindSubjectBySubjectID(candidate.SubjectID)
	if !found {
		subject, err := tx.CreateSubject(domain.Subject{
			SubjectID:         candidate.SubjectID,
			QuestionnaireCode: candidate.QuestionnaireCode,
			FirstName:         candidate.FirstName,
			LastName:          candidate.LastName,
			DateOfBirth:       candidate.DateOfBirth,
			Sex:               candidate.Sex,
			Email:             candidate.Email,
			Phone:             candidate.Phone,
			HeightCM:          candidate.HeightCM,
			WeightKG:          candidate.WeightKG,
		})
		if err != nil {
			return domain.Subject{}, upsertResult{}, err
		}
		return subject, upsertResult{created: true}, nil
	}

	stale := rowIsStale(view, existing, row.Session.Timestamp)
	scratch := existing
	if !applySubjectCandidate(&scratch, candidate, stale) {
		return existing, upsertResult{}, nil
	}
	subject, err := tx.UpdateSubject(existing.ID, func(s *domain.Subject) error {
		applySubjectCandidate(s, candidate, stale)
		return nil
	})
	if err != nil {
		return domain.Subject{}, upsertResult{}, err
	}
	return subject, upsertResult{updated: true}, nil
}

// rowIsStale reports whether the subject already has a session strictly newer
// than the incoming row's session. Recency is judged on parsed timestamps.
func rowIsStale(view domain.TransactionView, subject domain.Subject, rowTimestamp time.Time) bool {
	sessions := view.ListSessionsForSubject(subject.ID)
	if len(sessions) == 0 {
		return false
	}
	latest := sessions[len(sessions)-1].Timestamp
	return latest.After(rowTimestamp)
}

func applySubjectCandidate(s *domain.Subject, candidate SubjectCandidate, stale bool) bool {
	changed := false
	changed = applyString(&s.QuestionnaireCode, candidate.QuestionnaireCode, stale) || changed
	changed = applyString(&s.FirstName, candidate.FirstName, stale) || changed
	changed = applyString(&s.LastName, candidate.LastName, stale) || changed
	changed = applyString(&s.Email, candidate.Email, stale) || changed
	changed = applyString(&s.Phone, candidate.Phone, stale) || changed
	changed = applySex(&s.Sex, candidate.Sex, stale) || changed
	changed = applyDate(&s.DateOfBirth, candidate.DateOfBirth, stale) || changed
	changed = applyFloat(&s.HeightCM, candidate.HeightCM, stale) || changed
	changed = applyFloat(&s.WeightKG, candidate.WeightKG, stale) || changed
	return changed
}

// applyString writes candidate into current under the recency policy. An
// empty candidate never applies; a stale row only fills an empty field.
func applyString(current *string, candidate string, stale bool) bool {
	if candidate == "" || candidate == *current {
		return false
	}
	if stale && *current != "" {
		return false
	}
	*current = candidate
	return true
}

// applySex treats the unknown code as an absent candidate so a row without a
// usable sex value never degrades a known one.
func applySex(current *domain.Sex, candidate domain.Sex, stale bool) bool {
	if candidate == "" || candidate == domain.SexUnknown || candidate == *current {
		return false
	}
	if stale && *current != "" && *current != domain.SexUnknown {
		return false
	}
	*current = candidate
	return true
}

func applyDate(current **time.Time, candidate *time.Time, stale bool) bool {
	if candidate == nil {
		return false
	}
	if *current != nil {
		if sameDay(**current, *candidate) {
			return false
		}
		if stale {
			return false
		}
	}
	value := *candidate
	*current = &value
	return true
}

func applyFloat(current **float64, candidate *float64, stale bool) bool {
	if candidate == nil {
		return false
	}
	if *current != nil {
		if **current == *candidate {
			return false
		}
		if stale {
			return false
		}
	}
	value := *candidate
	*current = &value
	return true
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

type sessionOutcome struct {
	created   bool
	recreated bool
}

// reconcileSession creates the session for the row, or deletes and recreates
// it when any reconciled attribute drifted. Side-record links are not part of
// the comparison; on a recreate they are carried over unchanged.
func reconcileSession(tx domain.Transaction, subject domain.Subject, candidate SessionCandidate) (sessionOutcome, error) {
	desired, err := domain.NewSession(subject.ID, candidate.OriginSessionID)
	if err != nil {
		return sessionOutcome{}, err
	}
	desired.ScanTag = candidate.ScanTag
	desired.Status = candidate.Status

	if err := resolveDimensions(tx, &desired, candidate); err != nil {
		return sessionOutcome{}, err
	}

	view := tx.Snapshot()
	existing, found := view.FindSessionByOriginID(candidate.OriginSessionID)
	if !found {
		if _, err := tx.CreateSession(desired); err != nil {
			return sessionOutcome{}, err
		}
		return sessionOutcome{created: true}, nil
	}
	if sessionAttributesEqual(existing, desired) {
		return sessionOutcome{}, nil
	}
	carrySessionLinks(&desired, existing)
	if err := tx.DeleteSession(existing.ID); err != nil {
		return sessionOutcome{}, err
	}
	if _, err := tx.CreateSession(desired); err != nil {
		return sessionOutcome{}, err
	}
	return sessionOutcome{recreated: true}, nil
}

// resolveDimensions get-or-creates the referenced study, group, condition,
// and lab. Group and condition are study-scoped, so without a study name the
// row cannot carry either.
func resolveDimensions(tx domain.Transaction, session *domain.Session, candidate SessionCandidate) error {
	view := tx.Snapshot()

	var studyID string
	if candidate.Study != "" {
		study, found := view.FindStudyByName(candidate.Study)
		if !found {
			created, err := tx.CreateStudy(domain.Study{Name: candidate.Study})
			if err != nil {
				return fmt.Errorf("resolve study %q: %w", candidate.Study, err)
			}
			study = created
		}
		studyID = study.ID
		session.StudyID = &studyID
	}

	if candidate.Group != "" && studyID != "" {
		group, found := view.FindGroupByName(studyID, candidate.Group)
		if !found {
			created, err := tx.CreateGroup(domain.Group{StudyID: studyID, Name: candidate.Group})
			if err != nil {
				return fmt.Errorf("resolve group %q: %w", candidate.Group, err)
			}
			group = created
		}
		id := group.ID
		session.GroupID = &id
	}

	if candidate.Condition != "" && studyID != "" {
		condition, found := view.FindConditionByName(studyID, candidate.Condition)
		if !found {
			created, err := tx.CreateCondition(domain.Condition{StudyID: studyID, Name: candidate.Condition})
			if err != nil {
				return fmt.Errorf("resolve condition %q: %w", candidate.Condition, err)
			}
			condition = created
		}
		id := condition.ID
		session.ConditionID = &id
	}

	if candidate.Lab != "" {
		lab, found := view.FindLabByName(candidate.Lab)
		if !found {
			created, err := tx.CreateLab(domain.Lab{Name: candidate.Lab})
			if err != nil {
				return fmt.Errorf("resolve lab %q: %w", candidate.Lab, err)
			}
			lab = created
		}
		id := lab.ID
		session.LabID = &id
	}
	return nil
}

// carrySessionLinks copies the side-record links of the session being replaced
// onto its successor, so a recreate does not sever ties the linking passes
// already established.
func carrySessionLinks(dst *domain.Session, src domain.Session) {
	if src.QuestionnaireResponseID != nil {
		id := *src.QuestionnaireResponseID
		dst.QuestionnaireResponseID = &id
	}
	if src.QuestionnaireDelta != nil {
		delta := *src.QuestionnaireDelta
		dst.QuestionnaireDelta = &delta
	}
	if src.SECAMeasurementID != nil {
		id := *src.SECAMeasurementID
		dst.SECAMeasurementID = &id
	}
	if src.SECADelta != nil {
		delta := *src.SECADelta
		dst.SECADelta = &delta
	}
}

// sessionAttributesEqual compares only the attributes the recruitment sheet
// owns. Derived fields follow the origin identifier and link fields belong to
// the linking passes, so neither participates.
func sessionAttributesEqual(a, b domain.Session) bool {
	return a.SubjectID == b.SubjectID &&
		a.ScanTag == b.ScanTag &&
		a.Status == b.Status &&
		stringPtrEqual(a.StudyID, b.StudyID) &&
		stringPtrEqual(a.GroupID, b.GroupID) &&
		stringPtrEqual(a.ConditionID, b.ConditionID) &&
		stringPtrEqual(a.LabID, b.LabID)
}

func stringPtrEqual(a, b *string) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}
