package ingest

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"studycore/internal/source"
	"studycore/pkg/domain"
)

// SubjectCandidate carries the subject-scoped values extracted from one row,
// already normalized to canonical form.
type SubjectCandidate struct {
	SubjectID         string
	QuestionnaireCode string
	FirstName         string
	LastName          string
	DateOfBirth       *time.Time
	Sex               domain.Sex
	Email             string
	Phone             string
	HeightCM          *float64
	WeightKG          *float64
}

// SessionCandidate carries the session-scoped values extracted from one row.
// Timestamp is parsed from the origin session identifier during normalization.
type SessionCandidate struct {
	OriginSessionID string
	Timestamp       time.Time
	Study           string
	Group           string
	Condition       string
	Lab             string
	ScanTag         string
	Status          string
}

// Row is one normalized input record ready for reconciliation. Index is the
// position in the source table, preserved for error reporting.
type Row struct {
	Index   int
	Subject SubjectCandidate
	Session SessionCandidate
}

var titleCaser = cases.Title(language.Und)

// NormalizeCRF converts a raw recruitment sheet table into reconciliation
// rows. Rows without an origin session identifier are dropped, as are repeats
// of an identifier already seen (first occurrence wins). Failures to parse the
// identifier or a non-empty date of birth abort the whole batch: these columns
// define record identity and a malformed sheet must not be half-applied.
// The returned dropped count covers rows removed before parsing.
func NormalizeCRF(table source.Table) ([]Row, int, error) {
	records := table.Records()
	rows := make([]Row, 0, len(records))
	seen := make(map[string]struct{}, len(records))
	dropped := 0

	for i, record := range records {
		scanID := record["scanid"]
		if scanID == "" {
			dropped++
			continue
		}
		if _, dup := seen[scanID]; dup {
			dropped++
			continue
		}
		seen[scanID] = struct{}{}

		row, err := normalizeRecord(i, record)
		if err != nil {
			return nil, dropped, err
		}
		rows = append(rows, row)
	}
	return rows, dropped, nil
}

func normalizeRecord(index int, record map[string]string) (Row, error) {
	row := Row{Index: index}

	timestamp, err := domain.ParseOriginSessionID(record["scanid"])
	if err != nil {
		return Row{}, &domain.BatchError{Err: &domain.RowError{Index: index, Key: record["scanid"], Err: err}}
	}
	row.Session = SessionCandidate{
		OriginSessionID: record["scanid"],
		Timestamp:       timestamp,
		Study:           titleCaser.String(record["protocol"]),
		Group:           titleCaser.String(record["study"]),
		Condition:       titleCaser.String(record["group"]),
		Lab:             record["lab"],
		ScanTag:         strings.ToLower(record["scantag"]),
		Status:          record["status"],
	}

	first, last := splitName(record["name"])
	row.Subject = SubjectCandidate{
		SubjectID:         zfill(record["id"], subjectIDWidth),
		QuestionnaireCode: zfill(record["qcode"], questionnaireCodeWidth),
		FirstName:         first,
		LastName:          last,
		Sex:               domain.NormalizeSex(record["gender"]),
		Email:             record["email"],
		Phone:             record["cellular no."],
		HeightCM:          normalizeHeight(record["height"]),
		WeightKG:          parseFloat(record["weight"]),
	}

	if raw := record["dob"]; raw != "" {
		dob, err := domain.ParseDayFirstDate(raw)
		if err != nil {
			return Row{}, &domain.BatchError{Err: &domain.RowError{Index: index, Key: record["scanid"], Err: err}}
		}
		row.Subject.DateOfBirth = &dob
	}
	return row, nil
}

// splitName keeps the first and last whitespace-separated components of a
// title-cased full name. Missing names become "Unknown Unknown".
func splitName(raw string) (first, last string) {
	parts := strings.Fields(titleCaser.String(raw))
	if len(parts) == 0 {
		return "Unknown", "Unknown"
	}
	return parts[0], parts[len(parts)-1]
}

// zfill pads a non-empty value with leading zeros to the given width.
func zfill(value string, width int) string {
	if value == "" {
		return ""
	}
	if missing := width - len(value); missing > 0 {
		return strings.Repeat("0", missing) + value
	}
	return value
}

// normalizeHeight parses a height value and converts meters to centimeters
// when the magnitude makes the unit unambiguous.
func normalizeHeight(raw string) *float64 {
	h := parseFloat(raw)
	if h != nil && *h > 0 && *h < 3 {
		cm := *h * 100
		return &cm
	}
	return h
}

func parseFloat(raw string) *float64 {
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

// rowKey builds the identifying string logged alongside row failures.
func rowKey(subjectID, originSessionID string) string {
	switch {
	case subjectID != "" && originSessionID != "":
		return fmt.Sprintf("subject %s, session %s", subjectID, originSessionID)
	case subjectID != "":
		return "subject " + subjectID
	default:
		return "session " + originSessionID
	}
}
