package domain

import (
	"errors"
	"testing"
	"time"
)

func TestParseOriginSessionIDRoundTrip(t *testing.T) {
	ts, err := ParseOriginSessionID("20230101_0930")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if got := FormatOriginSessionID(ts); got != "20230101_0930" {
		t.Fatalf("round trip got %q", got)
	}
	if got := CanonicalSessionID(ts); got != "202301010930" {
		t.Fatalf("canonical id got %q", got)
	}
	if ts.Year() != 2023 || ts.Month() != time.January || ts.Day() != 1 || ts.Hour() != 9 || ts.Minute() != 30 {
		t.Fatalf("unexpected components: %v", ts)
	}
}

func TestParseOriginSessionIDRejectsMalformed(t *testing.T) {
	for _, raw := range []string{"", "2023-01-01", "202301010930", "20231301_0930", "20230101_2561"} {
		_, err := ParseOriginSessionID(raw)
		if err == nil {
			t.Fatalf("expected error for %q", raw)
		}
		var parseErr *TemporalParseError
		if !errors.As(err, &parseErr) {
			t.Fatalf("expected TemporalParseError for %q, got %T", raw, err)
		}
		if parseErr.Field != "origin_session_id" {
			t.Fatalf("unexpected field %q", parseErr.Field)
		}
	}
}

func TestParseDayFirstDate(t *testing.T) {
	d, err := ParseDayFirstDate("02/01/1990")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	// Day-first: 2 January, not 1 February.
	if d.Day() != 2 || d.Month() != time.January || d.Year() != 1990 {
		t.Fatalf("unexpected date: %v", d)
	}
	if _, err := ParseDayFirstDate("1990-01-02"); err == nil {
		t.Fatal("expected error for ISO date")
	}
}

func TestParseQuestionnaireTimestamp(t *testing.T) {
	ts, err := ParseQuestionnaireTimestamp("3/14/2023 15:04:05")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if ts.Month() != time.March || ts.Day() != 14 || ts.Second() != 5 {
		t.Fatalf("unexpected timestamp: %v", ts)
	}
}

func TestAgeYears(t *testing.T) {
	dob := time.Date(1990, time.June, 15, 0, 0, 0, 0, time.UTC)
	cases := []struct {
		now  time.Time
		want int
	}{
		{time.Date(2023, time.June, 14, 0, 0, 0, 0, time.UTC), 32}, // day before birthday
		{time.Date(2023, time.June, 15, 0, 0, 0, 0, time.UTC), 33}, // on the birthday
		{time.Date(2023, time.December, 1, 0, 0, 0, 0, time.UTC), 33},
		{time.Date(2023, time.January, 1, 0, 0, 0, 0, time.UTC), 32},
	}
	for _, tc := range cases {
		if got := AgeYears(dob, tc.now); got != tc.want {
			t.Errorf("AgeYears at %v = %d, want %d", tc.now, got, tc.want)
		}
	}
}

func TestComputeBMI(t *testing.T) {
	height := 175.0
	weight := 70.0
	bmi := ComputeBMI(&height, &weight)
	if bmi == nil {
		t.Fatal("expected BMI")
	}
	if *bmi < 22.8 || *bmi > 22.9 {
		t.Fatalf("unexpected BMI %v", *bmi)
	}
	if ComputeBMI(nil, &weight) != nil {
		t.Fatal("expected nil BMI without height")
	}
	if ComputeBMI(&height, nil) != nil {
		t.Fatal("expected nil BMI without weight")
	}
	zero := 0.0
	if ComputeBMI(&zero, &weight) != nil {
		t.Fatal("expected nil BMI for zero height")
	}
}

func TestNormalizeSex(t *testing.T) {
	cases := map[string]Sex{
		"male":    SexMale,
		"Female":  SexFemale,
		"F":       SexFemale,
		"other":   SexOther,
		"":        SexUnknown,
		"x":       SexUnknown,
		"  male ": SexMale,
	}
	for raw, want := range cases {
		if got := NormalizeSex(raw); got != want {
			t.Errorf("NormalizeSex(%q) = %q, want %q", raw, got, want)
		}
	}
}
