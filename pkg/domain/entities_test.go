package domain

import (
	"testing"
	"time"
)

func TestNewSessionDerivesIdentity(t *testing.T) {
	session, err := NewSession("subj-1", "20230714_1230")
	if err != nil {
		t.Fatalf("new session: %v", err)
	}
	if session.SessionID != "202307141230" {
		t.Fatalf("session id got %q", session.SessionID)
	}
	if session.Timestamp.Hour() != 12 || session.Timestamp.Minute() != 30 {
		t.Fatalf("unexpected timestamp %v", session.Timestamp)
	}
	if got := session.Date(); got.Hour() != 0 || got.Day() != 14 {
		t.Fatalf("unexpected date projection %v", got)
	}
	if got := session.TimeOfDay(); got != "12:30" {
		t.Fatalf("time of day got %q", got)
	}
}

func TestNewSessionRejectsBadIdentifier(t *testing.T) {
	if _, err := NewSession("subj-1", "tomorrow"); err == nil {
		t.Fatal("expected error")
	}
}

func TestNewQuestionnaireResponse(t *testing.T) {
	response, err := NewQuestionnaireResponse("subj-1", map[string]string{
		QuestionnaireTimestampKey: "7/14/2023 10:00:00",
		"psqi":                    "5",
	})
	if err != nil {
		t.Fatalf("new response: %v", err)
	}
	if response.Timestamp.Month() != time.July || response.Timestamp.Day() != 14 {
		t.Fatalf("unexpected timestamp %v", response.Timestamp)
	}
	if _, err := NewQuestionnaireResponse("subj-1", map[string]string{"psqi": "5"}); err == nil {
		t.Fatal("expected error without timestamp answer")
	}
}

func TestNewSECAMeasurementMaterializesColumns(t *testing.T) {
	m, err := NewSECAMeasurement("subj-1", map[string]string{
		SECATimestampKey:   "14/07/2023",
		SECADateOfBirthKey: "15/06/1990",
		SECASexKey:         "female",
		SECASubjectCodeKey: "0042",
		SECABMIKey:         "22.9",
		SECAHeightKey:      "175",
		SECAWeightKey:      "70",
	})
	if err != nil {
		t.Fatalf("new measurement: %v", err)
	}
	if m.Sex != SexFemale {
		t.Fatalf("sex got %q", m.Sex)
	}
	if m.DateOfBirth == nil || m.DateOfBirth.Year() != 1990 {
		t.Fatalf("date of birth got %v", m.DateOfBirth)
	}
	if m.BMI == nil || *m.BMI != 22.9 {
		t.Fatalf("bmi got %v", m.BMI)
	}
	if m.SubjectCode != "0042" {
		t.Fatalf("subject code got %q", m.SubjectCode)
	}
	if m.Date().Day() != 14 {
		t.Fatalf("date projection got %v", m.Date())
	}
}

func TestNewSECAMeasurementRejectsBadTimestamp(t *testing.T) {
	_, err := NewSECAMeasurement("subj-1", map[string]string{SECATimestampKey: "2023-07-14"})
	if err == nil {
		t.Fatal("expected error")
	}
}

func TestSubjectProjections(t *testing.T) {
	dob := time.Date(1990, time.June, 15, 0, 0, 0, 0, time.UTC)
	height := 180.0
	weight := 81.0
	subject := Subject{FirstName: "Dana", LastName: "Levi", DateOfBirth: &dob, HeightCM: &height, WeightKG: &weight}

	if got := subject.FullName(); got != "Dana Levi" {
		t.Fatalf("full name got %q", got)
	}
	now := time.Date(2023, time.June, 14, 0, 0, 0, 0, time.UTC)
	if age := subject.Age(now); age == nil || *age != 32 {
		t.Fatalf("age got %v", age)
	}
	if bmi := subject.BMI(); bmi == nil || *bmi != 25.0 {
		t.Fatalf("bmi got %v", bmi)
	}

	var unknown Subject
	if unknown.Age(now) != nil {
		t.Fatal("expected nil age without dob")
	}
	if unknown.BMI() != nil {
		t.Fatal("expected nil bmi without measurements")
	}
}

func TestProcedureLookup(t *testing.T) {
	procedure := Procedure{Outputs: map[string]map[string]string{
		"/out/sub-01_ses-A_desc-fa_dwi.nii.gz": {"sub": "01", "ses": "A", "desc": "fa", "suffix": "dwi"},
		"/out/sub-01_ses-A_desc-md_dwi.nii.gz": {"sub": "01", "ses": "A", "desc": "md", "suffix": "dwi"},
	}}

	path, ok := procedure.Lookup(map[string]string{"desc": "fa"})
	if !ok || path != "/out/sub-01_ses-A_desc-fa_dwi.nii.gz" {
		t.Fatalf("lookup got %q ok=%v", path, ok)
	}
	if _, ok := procedure.Lookup(map[string]string{"desc": "adc"}); ok {
		t.Fatal("expected no match")
	}
	all := procedure.LookupAll(map[string]string{"suffix": "dwi"})
	if len(all) != 2 || all[0] > all[1] {
		t.Fatalf("lookup all got %v", all)
	}
}
