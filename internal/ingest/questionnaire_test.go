package ingest

import (
	"context"
	"testing"

	"studycore/internal/infra/persistence/memory"
	"studycore/internal/source"
	"studycore/pkg/domain"
)

var questionnaireHeader = []string{"Subject Code", "Time.Stamp", "Questionnaire", "Gender", "DominantHand", "גרסת שאלון", "Depression"}

func questionnaireTable(rows ...[]string) source.Table {
	return source.NewTable(questionnaireHeader, rows)
}

// seedCodedSubject creates a subject carrying the questionnaire code, with one
// session so relinking has something to attach to.
func seedCodedSubject(t *testing.T, store *memory.Store, subjectID, code, originID string) {
	t.Helper()
	_, err := store.RunInTransaction(context.Background(), func(tx domain.Transaction) error {
		subject, err := tx.CreateSubject(domain.Subject{SubjectID: subjectID, QuestionnaireCode: code})
		if err != nil {
			return err
		}
		session, err := domain.NewSession(subject.ID, originID)
		if err != nil {
			return err
		}
		_, err = tx.CreateSession(session)
		return err
	})
	if err != nil {
		t.Fatalf("seed: %v", err)
	}
}

func TestNormalizeQuestionnaireRenamesAndTranslates(t *testing.T) {
	table := questionnaireTable([]string{"0007", "2/14/2023 10:30:00", "Yes", "נקבה", "ימין", "גרסה 2 (2022)", "1"})
	records := NormalizeQuestionnaire(table)
	if len(records) != 1 {
		t.Fatalf("records = %d", len(records))
	}
	record := records[0]
	if record["subject_code"] != "0007" {
		t.Fatalf("subject_code = %q", record["subject_code"])
	}
	if record["gender"] != "F" {
		t.Fatalf("gender = %q, Hebrew label should translate", record["gender"])
	}
	if record["dominanthand"] != "R" {
		t.Fatalf("dominanthand = %q", record["dominanthand"])
	}
	if record["version"] != "2 (2022)" {
		t.Fatalf("version = %q", record["version"])
	}
	if record["depression"] != "true" {
		t.Fatalf("depression = %q", record["depression"])
	}
	if record["time.stamp"] != "2/14/2023 10:30:00" {
		t.Fatalf("timestamp column lost: %q", record["time.stamp"])
	}
}

func TestNormalizeQuestionnaireKeepsUnnamedSubjectCodeColumn(t *testing.T) {
	table := source.NewTable([]string{"", "Time.Stamp"}, [][]string{{"0007", "2/14/2023 10:30:00"}})
	records := NormalizeQuestionnaire(table)
	if records[0]["subject_code"] != "0007" {
		t.Fatalf("unnamed leading column lost: %+v", records[0])
	}
}

func TestRunQuestionnaireStoresSnapshotAndLinks(t *testing.T) {
	store := memory.NewStore(nil)
	seedCodedSubject(t, store, "000000001", "0007", "20230215_1030")
	driver := NewDriver(store, nil)

	table := questionnaireTable([]string{"0007", "2/14/2023 10:30:00", "Yes", "Female", "Right", "", "0"})
	report, err := driver.RunQuestionnaire(context.Background(), staticSource{table: table})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if report.RowsProcessed != 1 || report.ResponsesCreated != 1 {
		t.Fatalf("report = %+v", report)
	}

	session, _ := findSession(t, store, "20230215_1030")
	if session.QuestionnaireResponseID == nil {
		t.Fatal("session was not linked to the response")
	}
	subject, _ := findSubject(t, store, "000000001")
	if subject.Handedness != domain.HandednessRight {
		t.Fatalf("handedness = %q", subject.Handedness)
	}
}

func TestRunQuestionnaireDeduplicatesIdenticalPayloads(t *testing.T) {
	store := memory.NewStore(nil)
	seedCodedSubject(t, store, "000000001", "0007", "20230215_1030")
	driver := NewDriver(store, nil)

	table := questionnaireTable(
		[]string{"0007", "2/14/2023 10:30:00", "Yes", "Female", "Right", "", "0"},
		[]string{"0007", "2/14/2023 10:30:00", "Yes", "Female", "Right", "", "0"},
	)
	report, err := driver.RunQuestionnaire(context.Background(), staticSource{table: table})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if report.RowsProcessed != 2 || report.ResponsesCreated != 1 {
		t.Fatalf("identical payload should be reused, report = %+v", report)
	}
}

func TestRunQuestionnaireSkipsUnansweredRows(t *testing.T) {
	store := memory.NewStore(nil)
	seedCodedSubject(t, store, "000000001", "0007", "20230215_1030")
	driver := NewDriver(store, nil)

	table := questionnaireTable([]string{"0007", "2/14/2023 10:30:00", "No", "", "", "", ""})
	report, err := driver.RunQuestionnaire(context.Background(), staticSource{table: table})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if report.RowsDropped != 1 || report.RowsProcessed != 0 {
		t.Fatalf("report = %+v", report)
	}
}

func TestRunQuestionnaireSkipsUnknownAndAmbiguousCodes(t *testing.T) {
	store := memory.NewStore(nil)
	seedCodedSubject(t, store, "000000001", "0007", "20230215_1030")
	seedCodedSubject(t, store, "000000002", "0007", "20230301_0900")
	driver := NewDriver(store, nil)

	table := questionnaireTable(
		[]string{"9999", "2/14/2023 10:30:00", "Yes", "", "", "", ""},
		[]string{"0007", "2/14/2023 10:30:00", "Yes", "", "", "", ""},
	)
	report, err := driver.RunQuestionnaire(context.Background(), staticSource{table: table})
	if err != nil {
		t.Fatalf("ambiguity must not abort the batch: %v", err)
	}
	if report.RowsFailed != 2 {
		t.Fatalf("report = %+v", report)
	}
	if !domain.IsAmbiguous(report.Failures[1].Err) {
		t.Fatalf("second failure should be ambiguous, got %v", report.Failures[1].Err)
	}
	if got := len(store.ListSubjects()); got != 2 {
		t.Fatalf("skipped rows must not write, subjects = %d", got)
	}
}

func TestRunQuestionnaireDoesNotOverwriteKnownHandedness(t *testing.T) {
	store := memory.NewStore(nil)
	_, err := store.RunInTransaction(context.Background(), func(tx domain.Transaction) error {
		subject, err := tx.CreateSubject(domain.Subject{
			SubjectID:         "000000001",
			QuestionnaireCode: "0007",
			Handedness:        domain.HandednessLeft,
		})
		if err != nil {
			return err
		}
		session, err := domain.NewSession(subject.ID, "20230215_1030")
		if err != nil {
			return err
		}
		_, err = tx.CreateSession(session)
		return err
	})
	if err != nil {
		t.Fatalf("seed: %v", err)
	}
	driver := NewDriver(store, nil)

	table := questionnaireTable([]string{"0007", "2/14/2023 10:30:00", "Yes", "", "Right", "", ""})
	if _, err := driver.RunQuestionnaire(context.Background(), staticSource{table: table}); err != nil {
		t.Fatalf("run: %v", err)
	}
	subject, _ := findSubject(t, store, "000000001")
	if subject.Handedness != domain.HandednessLeft {
		t.Fatalf("handedness overwritten to %q", subject.Handedness)
	}
}
