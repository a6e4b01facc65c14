package ingest

import (
	"context"
	"testing"
	"time"

	"studycore/internal/infra/persistence/memory"
	"studycore/internal/source"
	"studycore/pkg/domain"
)

var secaHeader = []string{"Date of Measurement", "Birthday", "Sex", "ID", "Body Mass Index", "Height", "Weight"}

func secaTable(rows ...[]string) source.Table {
	return source.NewTable(secaHeader, rows)
}

// seedMeasurableSubject creates a subject with the demographics the device
// locator matches on, plus a session on the given origin identifier.
func seedMeasurableSubject(t *testing.T, store *memory.Store, subjectID string, dob time.Time, sex domain.Sex, originID string) {
	t.Helper()
	_, err := store.RunInTransaction(context.Background(), func(tx domain.Transaction) error {
		subject, err := tx.CreateSubject(domain.Subject{SubjectID: subjectID, DateOfBirth: &dob, Sex: sex})
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

func TestNormalizeSECARenamesColumns(t *testing.T) {
	table := secaTable([]string{"15/02/2023", "03/07/1991", "F", "000000001", "22.1", "168", "62.4"})
	records := NormalizeSECA(table)
	if len(records) != 1 {
		t.Fatalf("records = %d", len(records))
	}
	record := records[0]
	if record[domain.SECATimestampKey] != "15/02/2023" {
		t.Fatalf("timestamp = %q", record[domain.SECATimestampKey])
	}
	if record[domain.SECADateOfBirthKey] != "03/07/1991" {
		t.Fatalf("date of birth = %q", record[domain.SECADateOfBirthKey])
	}
	if record[domain.SECASexKey] != "F" || record[domain.SECASubjectCodeKey] != "000000001" {
		t.Fatalf("sex/code = %q/%q", record[domain.SECASexKey], record[domain.SECASubjectCodeKey])
	}
	if record[domain.SECABMIKey] != "22.1" {
		t.Fatalf("bmi = %q", record[domain.SECABMIKey])
	}
}

func TestRunSECAStoresAndLinksMeasurement(t *testing.T) {
	store := memory.NewStore(nil)
	dob := time.Date(1991, time.July, 3, 0, 0, 0, 0, time.UTC)
	seedMeasurableSubject(t, store, "000000001", dob, domain.SexFemale, "20230215_1030")
	driver := NewDriver(store, nil)

	table := secaTable([]string{"15/02/2023", "03/07/1991", "F", "", "22.1", "168", "62.4"})
	report, err := driver.RunSECA(context.Background(), staticSource{table: table})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if report.RowsProcessed != 1 || report.MeasurementsLinked != 1 {
		t.Fatalf("report = %+v", report)
	}

	session, _ := findSession(t, store, "20230215_1030")
	if session.SECAMeasurementID == nil {
		t.Fatal("session not linked to the measurement")
	}
	if session.SECADelta == nil {
		t.Fatal("link carries no delta")
	}
}

func TestRunSECADeduplicatesIdenticalPayloads(t *testing.T) {
	store := memory.NewStore(nil)
	dob := time.Date(1991, time.July, 3, 0, 0, 0, 0, time.UTC)
	seedMeasurableSubject(t, store, "000000001", dob, domain.SexFemale, "20230215_1030")
	driver := NewDriver(store, nil)

	table := secaTable(
		[]string{"15/02/2023", "03/07/1991", "F", "", "22.1", "168", "62.4"},
		[]string{"15/02/2023", "03/07/1991", "F", "", "22.1", "168", "62.4"},
	)
	report, err := driver.RunSECA(context.Background(), staticSource{table: table})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if report.RowsProcessed != 2 || report.MeasurementsLinked != 1 {
		t.Fatalf("identical payload should be reused, report = %+v", report)
	}
}

func TestRunSECASkipsUnmatchedAndAmbiguousLocators(t *testing.T) {
	store := memory.NewStore(nil)
	dob := time.Date(1991, time.July, 3, 0, 0, 0, 0, time.UTC)
	// Two different subjects scanned the same day with identical demographics:
	// the locator cannot tell them apart.
	seedMeasurableSubject(t, store, "000000001", dob, domain.SexFemale, "20230215_1030")
	seedMeasurableSubject(t, store, "000000002", dob, domain.SexFemale, "20230215_1400")
	driver := NewDriver(store, nil)

	table := secaTable(
		[]string{"15/02/2023", "03/07/1991", "F", "", "", "", ""},
		[]string{"16/06/2023", "03/07/1991", "F", "", "", "", ""},
	)
	report, err := driver.RunSECA(context.Background(), staticSource{table: table})
	if err != nil {
		t.Fatalf("skips must not abort the batch: %v", err)
	}
	if report.RowsFailed != 2 || report.RowsProcessed != 0 {
		t.Fatalf("report = %+v", report)
	}
	if !domain.IsAmbiguous(report.Failures[0].Err) {
		t.Fatalf("first failure should be ambiguous, got %v", report.Failures[0].Err)
	}
}

func TestRunSECAMalformedDatesAreRowScoped(t *testing.T) {
	store := memory.NewStore(nil)
	dob := time.Date(1991, time.July, 3, 0, 0, 0, 0, time.UTC)
	seedMeasurableSubject(t, store, "000000001", dob, domain.SexFemale, "20230215_1030")
	driver := NewDriver(store, nil)

	table := secaTable(
		[]string{"2023-02-15", "03/07/1991", "F", "", "", "", ""},
		[]string{"15/02/2023", "not a date", "F", "", "", "", ""},
		[]string{"15/02/2023", "", "F", "", "", "", ""},
		[]string{"15/02/2023", "03/07/1991", "F", "", "22.1", "", ""},
	)
	report, err := driver.RunSECA(context.Background(), staticSource{table: table})
	if err != nil {
		t.Fatalf("payload date failures must stay row-scoped: %v", err)
	}
	if report.RowsFailed != 3 || report.RowsProcessed != 1 {
		t.Fatalf("report = %+v", report)
	}
}
