package ingest

import (
	"context"
	"fmt"
	"maps"
	"strings"
	"time"

	"go.uber.org/zap"

	"studycore/internal/source"
	"studycore/pkg/domain"
)

// questionnaireValueMappers is QuestionnaireMapping keyed by lower-cased
// column name, matching the normalized table headers.
var questionnaireValueMappers = func() map[string]QuestionnaireField {
	out := make(map[string]QuestionnaireField, len(QuestionnaireMapping))
	for col, field := range QuestionnaireMapping {
		out[strings.ToLower(col)] = field
	}
	return out
}()

// NormalizeQuestionnaire renames raw questionnaire columns and rewrites
// categorical answers through the value mappers. Unmapped columns and values
// pass through untouched; the full payload is preserved for the snapshot.
// Renaming happens on the header so the export's unnamed leading column,
// which carries the subject code, survives the projection into records.
func NormalizeQuestionnaire(table source.Table) []map[string]string {
	header := make([]string, len(table.Header))
	for i, col := range table.Header {
		if renamed, ok := QuestionnaireColumnsMapping[col]; ok {
			col = renamed
		}
		header[i] = col
	}
	renamed := source.Table{Header: header, Rows: table.Rows}

	records := renamed.Records()
	out := make([]map[string]string, 0, len(records))
	for _, record := range records {
		normalized := make(map[string]string, len(record))
		for col, value := range record {
			if field, ok := questionnaireValueMappers[col]; ok && field.Mapper != nil {
				if mapped, ok := field.Mapper[value]; ok {
					value = mapped
				}
			}
			normalized[col] = value
		}
		out = append(out, normalized)
	}
	return out
}

// RunQuestionnaire ingests a questionnaire export. Each row resolves its
// subject through the questionnaire code; rows marked unanswered, rows with
// no matching subject, and ambiguous codes are skipped and reported. Matched
// rows store an immutable response snapshot and relink the subject's
// sessions to the nearest response in time.
func (d *Driver) RunQuestionnaire(ctx context.Context, src source.Source) (Report, error) {
	started := time.Now()
	report, err := d.runQuestionnaire(ctx, src)
	report.Elapsed = time.Since(started)
	d.observe(ctx, "ingest_questionnaire", err, report.Elapsed)
	return report, err
}

func (d *Driver) runQuestionnaire(ctx context.Context, src source.Source) (Report, error) {
	var report Report

	table, err := src.Fetch(ctx)
	if err != nil {
		return report, err
	}
	records := NormalizeQuestionnaire(table)

	for i, record := range records {
		if record["questionnaire"] == "No" {
			report.RowsDropped++
			continue
		}
		code := record["subject_code"]
		created := false
		_, err := d.store.RunInTransaction(ctx, func(tx domain.Transaction) error {
			var err error
			created, err = ingestQuestionnaireRecord(tx, i, code, record)
			return err
		})
		if err != nil {
			if domain.IsBatchFatal(err) {
				return report, err
			}
			d.recordFailure(&report, i, "qcode "+code, err)
			continue
		}
		report.RowsProcessed++
		if created {
			report.ResponsesCreated++
		}
	}
	d.logger.Info("questionnaire batch finished",
		zap.Int("rows_processed", report.RowsProcessed),
		zap.Int("rows_dropped", report.RowsDropped),
		zap.Int("rows_failed", report.RowsFailed),
		zap.Int("responses_created", report.ResponsesCreated),
	)
	return report, nil
}

// ingestQuestionnaireRecord stores the response snapshot for the row's
// subject and relinks the subject's sessions. An identical payload already on
// record is reused instead of duplicated. Returns whether a new snapshot was
// created.
func ingestQuestionnaireRecord(tx domain.Transaction, index int, code string, record map[string]string) (bool, error) {
	if code == "" {
		return false, &domain.RowError{Index: index, Err: fmt.Errorf("row carries no questionnaire code")}
	}
	view := tx.Snapshot()
	subjects := view.ListSubjectsByQuestionnaireCode(code)
	switch {
	case len(subjects) == 0:
		return false, &domain.RowError{Index: index, Key: "qcode " + code, Err: fmt.Errorf("no subject carries questionnaire code %q", code)}
	case len(subjects) > 1:
		return false, &domain.RowError{
			Index: index,
			Key:   "qcode " + code,
			Err:   &domain.AmbiguousMatchError{Entity: domain.EntitySubject, Key: code, Count: len(subjects)},
		}
	}
	subject := subjects[0]

	response, created, err := findOrCreateResponse(tx, view, subject.ID, index, code, record)
	if err != nil {
		return false, err
	}

	if err := fillHandedness(tx, subject, record["dominanthand"]); err != nil {
		return false, err
	}
	if err := RelinkSessions(tx, LinkQuestionnaire, subject.ID, response.ID, response.Timestamp); err != nil {
		return false, err
	}
	return created, nil
}

func findOrCreateResponse(tx domain.Transaction, view domain.TransactionView, subjectID string, index int, code string, record map[string]string) (domain.QuestionnaireResponse, bool, error) {
	for _, existing := range view.ListQuestionnaireResponsesForSubject(subjectID) {
		if maps.Equal(existing.Response, record) {
			return existing, false, nil
		}
	}
	response, err := domain.NewQuestionnaireResponse(subjectID, record)
	if err != nil {
		return domain.QuestionnaireResponse{}, false, &domain.RowError{Index: index, Key: "qcode " + code, Err: err}
	}
	response, err = tx.CreateQuestionnaireResponse(response)
	if err != nil {
		return domain.QuestionnaireResponse{}, false, err
	}
	return response, true, nil
}

// fillHandedness backfills the subject's handedness from the mapped dominant
// hand answer, but only while it is still unknown. The recruitment sheet
// never carries handedness, so the questionnaire is its sole source.
func fillHandedness(tx domain.Transaction, subject domain.Subject, mapped string) error {
	if subject.Handedness != "" && subject.Handedness != domain.HandednessUnknown {
		return nil
	}
	switch domain.Handedness(mapped) {
	case domain.HandednessRight, domain.HandednessLeft, domain.HandednessAmbidextrous:
	default:
		return nil
	}
	_, err := tx.UpdateSubject(subject.ID, func(s *domain.Subject) error {
		s.Handedness = domain.Handedness(mapped)
		return nil
	})
	return err
}
