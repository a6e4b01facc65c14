package domain

import (
	"errors"
	"fmt"
)

// TemporalParseError reports a date/time field that failed to parse. On its
// own it carries no severity; the raising site decides whether to wrap it as
// row-scoped or batch-fatal.
type TemporalParseError struct {
	Field string
	Value string
	Err   error
}

func (e *TemporalParseError) Error() string {
	return fmt.Sprintf("parse %s %q: %v", e.Field, e.Value, e.Err)
}

func (e *TemporalParseError) Unwrap() error { return e.Err }

// AmbiguousMatchError reports a natural-key lookup that matched more than one
// persisted entity. Rows hitting it are skipped and reported, never auto-merged.
type AmbiguousMatchError struct {
	Entity EntityType
	Key    string
	Count  int
}

func (e *AmbiguousMatchError) Error() string {
	return fmt.Sprintf("%d %ss match key %q", e.Count, e.Entity, e.Key)
}

// RowError scopes a failure to a single input row. The batch driver logs it
// with the row index and identifying fields and keeps going.
type RowError struct {
	Index int
	Key   string
	Err   error
}

func (e *RowError) Error() string {
	if e.Key != "" {
		return fmt.Sprintf("row %d (%s): %v", e.Index, e.Key, e.Err)
	}
	return fmt.Sprintf("row %d: %v", e.Index, e.Err)
}

func (e *RowError) Unwrap() error { return e.Err }

// BatchError marks a failure as fatal to the whole batch. It is assigned at
// the point of raising (a required date column failed to parse), not inferred
// from message text downstream.
type BatchError struct {
	Err error
}

func (e *BatchError) Error() string { return fmt.Sprintf("batch aborted: %v", e.Err) }

func (e *BatchError) Unwrap() error { return e.Err }

// ExternalSourceError reports a failure reaching a remote tabular source or
// upload sink, after any bounded re-authentication retry was exhausted.
type ExternalSourceError struct {
	Endpoint string
	Err      error
}

func (e *ExternalSourceError) Error() string {
	return fmt.Sprintf("external source %s: %v", e.Endpoint, e.Err)
}

func (e *ExternalSourceError) Unwrap() error { return e.Err }

// IsBatchFatal reports whether err should abort the batch rather than skip
// the current row.
func IsBatchFatal(err error) bool {
	var batch *BatchError
	return errors.As(err, &batch)
}

// IsAmbiguous reports whether err stems from an ambiguous natural-key match.
func IsAmbiguous(err error) bool {
	var ambiguous *AmbiguousMatchError
	return errors.As(err, &ambiguous)
}
