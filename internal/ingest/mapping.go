// Package ingest implements the batch reconciliation pipeline: tabular rows
// from CSV files or remote sheet exports are normalized, mapped onto subjects
// and sessions, and merged into the store under a recency-based update policy.
package ingest

// Scope says whether a mapped column feeds the subject or the session record.
type Scope string

const (
	ScopeSubject Scope = "subject"
	ScopeSession Scope = "session"
)

// FieldMapping binds one source column to a destination field within a scope.
type FieldMapping struct {
	Scope Scope
	Field string
}

// ColumnsMapping maps recruitment sheet column names (lower-cased) to domain
// fields. The sheet's "protocol" column is the study, its "study" column is
// the group, and its "group" column is the condition; the naming drifted on
// the collection side and is corrected here.
var ColumnsMapping = map[string]FieldMapping{
	"name":         {Scope: ScopeSubject, Field: "name"},
	"dob":          {Scope: ScopeSubject, Field: "date_of_birth"},
	"id":           {Scope: ScopeSubject, Field: "subject_id"},
	"email":        {Scope: ScopeSubject, Field: "email"},
	"cellular no.": {Scope: ScopeSubject, Field: "phone"},
	"gender":       {Scope: ScopeSubject, Field: "sex"},
	"height":       {Scope: ScopeSubject, Field: "height"},
	"weight":       {Scope: ScopeSubject, Field: "weight"},
	"qcode":        {Scope: ScopeSubject, Field: "questionnaire_code"},
	"protocol":     {Scope: ScopeSession, Field: "study"},
	"study":        {Scope: ScopeSession, Field: "group"},
	"group":        {Scope: ScopeSession, Field: "condition"},
	"lab":          {Scope: ScopeSession, Field: "lab"},
	"scantag":      {Scope: ScopeSession, Field: "scan_tag"},
	"scanid":       {Scope: ScopeSession, Field: "origin_session_id"},
	"status":       {Scope: ScopeSession, Field: "status"},
}

// Widths for zero-padded identifier normalization.
const (
	subjectIDWidth         = 9
	questionnaireCodeWidth = 4
)
