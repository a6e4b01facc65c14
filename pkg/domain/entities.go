// Package domain defines the core persistent entities, derived-field
// inference, and rule evaluation primitives used by studycore.
package domain

import (
	"sort"
	"time"
)

// EntityType identifies the type of record stored in the core domain.
type EntityType string

// Supported entity type identifiers used in Change records and persistence buckets.
const (
	// EntitySubject identifies a study participant record.
	EntitySubject EntityType = "subject"
	// EntitySession identifies a scanning/testing session record.
	EntitySession EntityType = "session"
	// EntityQuestionnaireResponse identifies an immutable questionnaire snapshot.
	EntityQuestionnaireResponse EntityType = "questionnaire_response"
	// EntitySECAMeasurement identifies an immutable body-composition snapshot.
	EntitySECAMeasurement EntityType = "seca_measurement"
	// EntityStudy identifies a study dimension record.
	EntityStudy EntityType = "study"
	// EntityGroup identifies a study-scoped group dimension record.
	EntityGroup EntityType = "group"
	// EntityCondition identifies a study-scoped condition dimension record.
	EntityCondition EntityType = "condition"
	// EntityLab identifies a lab dimension record.
	EntityLab EntityType = "lab"
	// EntityProcedure identifies a downstream processing procedure record.
	EntityProcedure EntityType = "procedure"
)

// Sex is the canonical single-letter coding for a subject's sex.
type Sex string

// Canonical sex codes. Missing or unrecognized input maps to SexUnknown, never empty.
const (
	SexMale    Sex = "M"
	SexFemale  Sex = "F"
	SexOther   Sex = "O"
	SexUnknown Sex = "U"
)

// Handedness is the canonical single-letter coding for a subject's dominant hand.
type Handedness string

// Canonical handedness codes. Missing input maps to HandednessUnknown, never empty.
const (
	HandednessRight        Handedness = "R"
	HandednessLeft         Handedness = "L"
	HandednessAmbidextrous Handedness = "A"
	HandednessUnknown      Handedness = "U"
)

// ProcedureStatus enumerates processing procedure workflow states.
type ProcedureStatus string

// Canonical procedure statuses.
const (
	ProcedureStatusCompleted  ProcedureStatus = "completed"
	ProcedureStatusInProgress ProcedureStatus = "in_progress"
	ProcedureStatusNotStarted ProcedureStatus = "not_started"
)

// Base contains common fields for all domain records.
type Base struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Subject is the identity record for one study participant. SubjectID is the
// natural key: globally unique and immutable once assigned.
type Subject struct {
	Base
	SubjectID         string     `json:"subject_id"`
	QuestionnaireCode string     `json:"questionnaire_code"`
	FirstName         string     `json:"first_name"`
	LastName          string     `json:"last_name"`
	DateOfBirth       *time.Time `json:"date_of_birth"`
	Sex               Sex        `json:"sex"`
	Handedness        Handedness `json:"handedness"`
	Email             string     `json:"email"`
	Phone             string     `json:"phone"`
	Status            string     `json:"status"`
	HeightCM          *float64   `json:"height_cm"`
	WeightKG          *float64   `json:"weight_kg"`
	Comments          string     `json:"comments"`
}

// FullName joins the subject's name parts, trimming when one is absent.
func (s Subject) FullName() string {
	if s.FirstName == "" {
		return s.LastName
	}
	if s.LastName == "" {
		return s.FirstName
	}
	return s.FirstName + " " + s.LastName
}

// Age returns the subject's age in whole years relative to now, or nil when
// the date of birth is unknown.
func (s Subject) Age(now time.Time) *int {
	if s.DateOfBirth == nil {
		return nil
	}
	years := AgeYears(*s.DateOfBirth, now)
	return &years
}

// BMI returns weight_kg / (height_cm/100)^2, or nil when either operand is missing.
func (s Subject) BMI() *float64 {
	return ComputeBMI(s.HeightCM, s.WeightKG)
}

// Session is one scanning/testing event for a subject. OriginSessionID is the
// natural key (format YYYYMMDD_HHMM); Timestamp and SessionID are derived from
// it at construction and are never independently settable.
type Session struct {
	Base
	SubjectID       string `json:"subject_id"`
	OriginSessionID string `json:"origin_session_id"`
	SessionID       string `json:"session_id"`
	// Timestamp is parsed from OriginSessionID by NewSession; the session
	// identity rule rejects any commit where the two disagree.
	Timestamp time.Time `json:"timestamp"`

	StudyID     *string `json:"study_id"`
	GroupID     *string `json:"group_id"`
	ConditionID *string `json:"condition_id"`
	LabID       *string `json:"lab_id"`

	ScanTag string `json:"scan_tag"`
	Status  string `json:"status"`
	Notes   string `json:"notes"`

	QuestionnaireResponseID *string        `json:"questionnaire_response_id"`
	QuestionnaireDelta      *time.Duration `json:"questionnaire_delta"`
	SECAMeasurementID       *string        `json:"seca_measurement_id"`
	SECADelta               *time.Duration `json:"seca_delta"`
}

// NewSession constructs a session with all derived fields computed from the
// origin session identifier. This is the only sanctioned way to build one.
func NewSession(subjectID, originSessionID string) (Session, error) {
	ts, err := ParseOriginSessionID(originSessionID)
	if err != nil {
		return Session{}, err
	}
	return Session{
		SubjectID:       subjectID,
		OriginSessionID: originSessionID,
		SessionID:       CanonicalSessionID(ts),
		Timestamp:       ts,
	}, nil
}

// Date returns the session's calendar date at midnight in the timestamp's location.
func (s Session) Date() time.Time {
	y, m, d := s.Timestamp.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, s.Timestamp.Location())
}

// TimeOfDay returns the wall-clock time of the session as HH:MM.
func (s Session) TimeOfDay() string {
	return s.Timestamp.Format("15:04")
}

// QuestionnaireResponse is an immutable snapshot of one questionnaire
// submission. It is never updated after creation; newer data supersedes it by
// creating a new response and re-linking sessions.
type QuestionnaireResponse struct {
	Base
	SubjectID string            `json:"subject_id"`
	Response  map[string]string `json:"response"`
	// Timestamp is parsed from the response's time.stamp answer at construction.
	Timestamp time.Time `json:"timestamp"`
}

// NewQuestionnaireResponse constructs a response snapshot, deriving the
// timestamp from the raw answer mapping.
func NewQuestionnaireResponse(subjectID string, response map[string]string) (QuestionnaireResponse, error) {
	ts, err := ParseQuestionnaireTimestamp(response[QuestionnaireTimestampKey])
	if err != nil {
		return QuestionnaireResponse{}, err
	}
	return QuestionnaireResponse{
		SubjectID: subjectID,
		Response:  response,
		Timestamp: ts,
	}, nil
}

// QuestionnaireTimestampKey is the raw answer key carrying the submission time.
const QuestionnaireTimestampKey = "time.stamp"

// SECAMeasurement is an immutable body-composition snapshot. All derived
// fields are computed from the raw payload once, at construction, and cached
// as materialized columns.
type SECAMeasurement struct {
	Base
	SubjectID   string            `json:"subject_id"`
	Measurement map[string]string `json:"measurement"`

	Timestamp   time.Time  `json:"timestamp"`
	DateOfBirth *time.Time `json:"date_of_birth"`
	Sex         Sex        `json:"sex"`
	SubjectCode string     `json:"subject_code"`
	BMI         *float64   `json:"bmi"`
	HeightCM    *float64   `json:"height_cm"`
	WeightKG    *float64   `json:"weight_kg"`
}

// Raw payload keys recognized by NewSECAMeasurement.
const (
	SECATimestampKey   = "timestamp"
	SECADateOfBirthKey = "date of birth"
	SECASexKey         = "gender"
	SECASubjectCodeKey = "subject_code"
	SECABMIKey         = "bmi"
	SECAHeightKey      = "height"
	SECAWeightKey      = "weight"
)

// NewSECAMeasurement constructs a measurement snapshot, materializing every
// derived field from the raw payload.
func NewSECAMeasurement(subjectID string, payload map[string]string) (SECAMeasurement, error) {
	ts, err := ParseDayFirstDate(payload[SECATimestampKey])
	if err != nil {
		return SECAMeasurement{}, err
	}
	m := SECAMeasurement{
		SubjectID:   subjectID,
		Measurement: payload,
		Timestamp:   ts,
		Sex:         NormalizeSex(payload[SECASexKey]),
		SubjectCode: payload[SECASubjectCodeKey],
		BMI:         parseOptionalFloat(payload[SECABMIKey]),
		HeightCM:    parseOptionalFloat(payload[SECAHeightKey]),
		WeightKG:    parseOptionalFloat(payload[SECAWeightKey]),
	}
	if raw := payload[SECADateOfBirthKey]; raw != "" {
		dob, err := ParseDayFirstDate(raw)
		if err != nil {
			return SECAMeasurement{}, err
		}
		m.DateOfBirth = &dob
	}
	return m, nil
}

// Date returns the measurement's calendar date at midnight in the timestamp's location.
func (m SECAMeasurement) Date() time.Time {
	y, mo, d := m.Timestamp.Date()
	return time.Date(y, mo, d, 0, 0, 0, 0, m.Timestamp.Location())
}

// Study is a reference dimension uniquely identified by name.
type Study struct {
	Base
	Name        string `json:"name"`
	Description string `json:"description"`
}

// Group is a reference dimension scoped to a study; unique by (study, name).
type Group struct {
	Base
	StudyID     string `json:"study_id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

// Condition is a reference dimension scoped to a study; unique by (study, name).
type Condition struct {
	Base
	StudyID     string `json:"study_id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

// Lab is a reference dimension uniquely identified by name.
type Lab struct {
	Base
	Name        string `json:"name"`
	Description string `json:"description"`
}

// Procedure records that a named processing step ran for a session. Outputs
// maps each produced file path to the descriptive entity tags parsed from it.
type Procedure struct {
	Base
	SessionID   string                       `json:"session_id"`
	Name        string                       `json:"name"`
	Description string                       `json:"description"`
	Path        string                       `json:"path"`
	Status      ProcedureStatus              `json:"status"`
	Outputs     map[string]map[string]string `json:"outputs"`
}

// Lookup returns the first output path (in key order) whose entity tags match
// every entry of the query tag-set.
func (p Procedure) Lookup(tags map[string]string) (string, bool) {
	paths := p.LookupAll(tags)
	if len(paths) == 0 {
		return "", false
	}
	return paths[0], true
}

// LookupAll returns every output path whose entity tags match the query
// tag-set, ordered by path for determinism.
func (p Procedure) LookupAll(tags map[string]string) []string {
	var paths []string
	for path, entities := range p.Outputs {
		matched := true
		for tag, value := range tags {
			if entities[tag] != value {
				matched = false
				break
			}
		}
		if matched {
			paths = append(paths, path)
		}
	}
	sort.Strings(paths)
	return paths
}
