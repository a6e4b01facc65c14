package ingest

import (
	"time"

	"studycore/pkg/domain"
)

// LinkKind selects which side-record link a relinking pass maintains.
type LinkKind string

const (
	LinkQuestionnaire LinkKind = "questionnaire"
	LinkSECA          LinkKind = "seca"
)

// RelinkSessions walks every session of the subject and links the given
// side record wherever the session has no link yet, or where the record is
// strictly closer in time than the currently linked one. Ties keep the
// existing link. The stored delta is signed: session time minus record time.
func RelinkSessions(tx domain.Transaction, kind LinkKind, subjectID, recordID string, recordTimestamp time.Time) error {
	view := tx.Snapshot()
	for _, session := range view.ListSessionsForSubject(subjectID) {
		currentID := linkedRecordID(session, kind)
		if currentID != nil && *currentID == recordID {
			continue
		}
		if currentID != nil {
			currentTS, ok := linkedRecordTimestamp(view, kind, *currentID)
			if ok && !strictlyCloser(session.Timestamp, recordTimestamp, currentTS) {
				continue
			}
		}
		delta := session.Timestamp.Sub(recordTimestamp)
		id := recordID
		if _, err := tx.UpdateSession(session.ID, func(s *domain.Session) error {
			switch kind {
			case LinkQuestionnaire:
				s.QuestionnaireResponseID = &id
				s.QuestionnaireDelta = &delta
			case LinkSECA:
				s.SECAMeasurementID = &id
				s.SECADelta = &delta
			}
			return nil
		}); err != nil {
			return err
		}
	}
	return nil
}

func linkedRecordID(session domain.Session, kind LinkKind) *string {
	if kind == LinkQuestionnaire {
		return session.QuestionnaireResponseID
	}
	return session.SECAMeasurementID
}

func linkedRecordTimestamp(view domain.TransactionView, kind LinkKind, id string) (time.Time, bool) {
	if kind == LinkQuestionnaire {
		response, ok := view.FindQuestionnaireResponse(id)
		return response.Timestamp, ok
	}
	measurement, ok := view.FindSECAMeasurement(id)
	return measurement.Timestamp, ok
}

// strictlyCloser reports whether candidate is nearer to the session time than
// incumbent, by absolute distance.
func strictlyCloser(session, candidate, incumbent time.Time) bool {
	return absDuration(session.Sub(candidate)) < absDuration(session.Sub(incumbent))
}

func absDuration(d time.Duration) time.Duration {
	if d < 0 {
		return -d
	}
	return d
}
