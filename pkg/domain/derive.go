package domain

import (
	"strconv"
	"strings"
	"time"
)

// Timestamp layouts for identifier parsing. Origin session identifiers carry
// an 8-digit date and a 4-digit wall-clock time separated by an underscore;
// the canonical session identifier is the same digits without the separator.
const (
	OriginSessionIDLayout = "20060102_1504"
	SessionIDLayout       = "200601021504"

	dayFirstDateLayout           = "02/01/2006"
	questionnaireTimestampLayout = "1/2/2006 15:04:05"
)

// ParseOriginSessionID parses a compound session identifier of the form
// YYYYMMDD_HHMM into a timezone-aware timestamp in the local location.
func ParseOriginSessionID(id string) (time.Time, error) {
	ts, err := time.ParseInLocation(OriginSessionIDLayout, id, time.Local)
	if err != nil {
		return time.Time{}, &TemporalParseError{Field: "origin_session_id", Value: id, Err: err}
	}
	return ts, nil
}

// FormatOriginSessionID renders a timestamp back into the origin identifier
// form. For every valid identifier, FormatOriginSessionID(ParseOriginSessionID(id))
// round-trips to id.
func FormatOriginSessionID(ts time.Time) string {
	return ts.Format(OriginSessionIDLayout)
}

// CanonicalSessionID renders the normalized session identifier (YYYYMMDDHHMM).
func CanonicalSessionID(ts time.Time) string {
	return ts.Format(SessionIDLayout)
}

// ParseDayFirstDate parses a DD/MM/YYYY date into a timestamp in the local location.
func ParseDayFirstDate(raw string) (time.Time, error) {
	ts, err := time.ParseInLocation(dayFirstDateLayout, strings.TrimSpace(raw), time.Local)
	if err != nil {
		return time.Time{}, &TemporalParseError{Field: "date", Value: raw, Err: err}
	}
	return ts, nil
}

// ParseQuestionnaireTimestamp parses the M/D/YYYY H:MM:SS submission stamp
// recorded inside questionnaire responses.
func ParseQuestionnaireTimestamp(raw string) (time.Time, error) {
	ts, err := time.ParseInLocation(questionnaireTimestampLayout, strings.TrimSpace(raw), time.Local)
	if err != nil {
		return time.Time{}, &TemporalParseError{Field: QuestionnaireTimestampKey, Value: raw, Err: err}
	}
	return ts, nil
}

// AgeYears computes whole years between dob and now, subtracting one when the
// birthday has not yet occurred this year (compared as a (month, day) tuple).
func AgeYears(dob, now time.Time) int {
	years := now.Year() - dob.Year()
	if now.Month() < dob.Month() || (now.Month() == dob.Month() && now.Day() < dob.Day()) {
		years--
	}
	return years
}

// ComputeBMI returns weight_kg / (height_cm/100)^2. The result is nil when
// either operand is missing; height is validated present before dividing.
func ComputeBMI(heightCM, weightKG *float64) *float64 {
	if heightCM == nil || weightKG == nil || *heightCM == 0 {
		return nil
	}
	meters := *heightCM / 100
	bmi := *weightKG / (meters * meters)
	return &bmi
}

// NormalizeSex maps free-form coded sex values to the canonical single
// uppercase letter: the first character, upper-cased. Unknown or missing
// values map to SexUnknown, never empty.
func NormalizeSex(raw string) Sex {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return SexUnknown
	}
	first := []rune(raw)[0]
	switch Sex(strings.ToUpper(string(first))) {
	case SexMale:
		return SexMale
	case SexFemale:
		return SexFemale
	case SexOther:
		return SexOther
	default:
		return SexUnknown
	}
}

func parseOptionalFloat(raw string) *float64 {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return nil
	}
	return &v
}
