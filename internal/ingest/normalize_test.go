package ingest

import (
	"errors"
	"testing"
	"time"

	"studycore/internal/source"
	"studycore/pkg/domain"
)

var crfHeader = []string{"Protocol", "Study", "Group", "Lab", "ScanTag", "ScanID", "Status", "Name", "DOB", "ID", "Email", "Cellular No.", "Gender", "Height", "Weight", "QCode"}

func crfTable(rows ...[]string) source.Table {
	return source.NewTable(crfHeader, rows)
}

func TestNormalizeCRFMapsColumns(t *testing.T) {
	table := crfTable([]string{
		"the wild protocol", "longitudinal", "control", "TheLab", "BASE",
		"20230215_1030", "scanned", "dana levi cohen", "03/07/1991", "1234",
		"dana@example.org", "0521234567", "f", "1.68", "61.5", "17",
	})

	rows, dropped, err := NormalizeCRF(table)
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	if dropped != 0 || len(rows) != 1 {
		t.Fatalf("got %d rows, %d dropped", len(rows), dropped)
	}
	row := rows[0]

	if row.Session.OriginSessionID != "20230215_1030" {
		t.Fatalf("origin id = %q", row.Session.OriginSessionID)
	}
	want := time.Date(2023, time.February, 15, 10, 30, 0, 0, time.UTC)
	if !row.Session.Timestamp.Equal(want) {
		t.Fatalf("timestamp = %v", row.Session.Timestamp)
	}
	if row.Session.Study != "The Wild Protocol" {
		t.Fatalf("study = %q", row.Session.Study)
	}
	if row.Session.Group != "Longitudinal" || row.Session.Condition != "Control" {
		t.Fatalf("group/condition = %q/%q", row.Session.Group, row.Session.Condition)
	}
	if row.Session.Lab != "TheLab" {
		t.Fatalf("lab should keep its case, got %q", row.Session.Lab)
	}
	if row.Session.ScanTag != "base" || row.Session.Status != "scanned" {
		t.Fatalf("scantag/status = %q/%q", row.Session.ScanTag, row.Session.Status)
	}

	if row.Subject.SubjectID != "000001234" {
		t.Fatalf("subject id = %q", row.Subject.SubjectID)
	}
	if row.Subject.QuestionnaireCode != "0017" {
		t.Fatalf("questionnaire code = %q", row.Subject.QuestionnaireCode)
	}
	if row.Subject.FirstName != "Dana" || row.Subject.LastName != "Cohen" {
		t.Fatalf("name = %q %q", row.Subject.FirstName, row.Subject.LastName)
	}
	if row.Subject.Sex != domain.SexFemale {
		t.Fatalf("sex = %q", row.Subject.Sex)
	}
	if row.Subject.DateOfBirth == nil || !sameDay(*row.Subject.DateOfBirth, time.Date(1991, time.July, 3, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("dob = %v, day-first parsing expected", row.Subject.DateOfBirth)
	}
	if row.Subject.HeightCM == nil || *row.Subject.HeightCM != 168 {
		t.Fatalf("height = %v, meters should convert to cm", row.Subject.HeightCM)
	}
	if row.Subject.WeightKG == nil || *row.Subject.WeightKG != 61.5 {
		t.Fatalf("weight = %v", row.Subject.WeightKG)
	}
	if row.Subject.Phone != "0521234567" {
		t.Fatalf("phone = %q", row.Subject.Phone)
	}
}

func TestNormalizeCRFDropsAndDeduplicates(t *testing.T) {
	table := crfTable(
		[]string{"P", "", "", "", "", "", "", "", "", "1", "", "", "", "", "", ""},
		[]string{"P", "", "", "", "", "20230101_0900", "", "First Seen", "", "1", "", "", "", "", "", ""},
		[]string{"P", "", "", "", "", "20230101_0900", "", "Second Seen", "", "1", "", "", "", "", "", ""},
	)

	rows, dropped, err := NormalizeCRF(table)
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	if dropped != 2 {
		t.Fatalf("dropped = %d, want 2", dropped)
	}
	if len(rows) != 1 || rows[0].Subject.FirstName != "First" {
		t.Fatalf("first occurrence should win, got %+v", rows)
	}
}

func TestNormalizeCRFMissingNameBecomesUnknown(t *testing.T) {
	table := crfTable([]string{"P", "", "", "", "", "20230101_0900", "", "", "", "1", "", "", "", "", "", ""})
	rows, _, err := NormalizeCRF(table)
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	if rows[0].Subject.FirstName != "Unknown" || rows[0].Subject.LastName != "Unknown" {
		t.Fatalf("name = %q %q", rows[0].Subject.FirstName, rows[0].Subject.LastName)
	}
}

func TestNormalizeCRFBadIdentifierIsBatchFatal(t *testing.T) {
	table := crfTable([]string{"P", "", "", "", "", "not-a-scanid", "", "", "", "1", "", "", "", "", "", ""})
	_, _, err := NormalizeCRF(table)
	if err == nil || !domain.IsBatchFatal(err) {
		t.Fatalf("expected batch-fatal error, got %v", err)
	}
}

func TestNormalizeCRFBadDateOfBirthIsBatchFatal(t *testing.T) {
	table := crfTable([]string{"P", "", "", "", "", "20230101_0900", "", "", "1991-07-03", "1", "", "", "", "", "", ""})
	_, _, err := NormalizeCRF(table)
	if err == nil || !domain.IsBatchFatal(err) {
		t.Fatalf("expected batch-fatal error, got %v", err)
	}
	var rowErr *domain.RowError
	if !errors.As(err, &rowErr) {
		t.Fatalf("batch error should wrap the offending row, got %v", err)
	}
	if rowErr.Key != "20230101_0900" {
		t.Fatalf("row key = %q", rowErr.Key)
	}
}

func TestNormalizeHeight(t *testing.T) {
	cases := []struct {
		raw  string
		want *float64
	}{
		{"", nil},
		{"junk", nil},
		{"1.75", float64Ptr(175)},
		{"175", float64Ptr(175)},
		{"0", float64Ptr(0)},
	}
	for _, tc := range cases {
		got := normalizeHeight(tc.raw)
		switch {
		case tc.want == nil && got != nil:
			t.Errorf("normalizeHeight(%q) = %v, want nil", tc.raw, *got)
		case tc.want != nil && (got == nil || *got != *tc.want):
			t.Errorf("normalizeHeight(%q) = %v, want %v", tc.raw, got, *tc.want)
		}
	}
}

func float64Ptr(v float64) *float64 { return &v }
