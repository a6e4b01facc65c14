package ingest

import (
	"context"
	"fmt"
	"maps"
	"time"

	"go.uber.org/zap"

	"studycore/internal/source"
	"studycore/pkg/domain"
)

// SECAColumnsMapping renames raw device export columns (lower-cased) onto
// the canonical measurement payload keys.
var SECAColumnsMapping = map[string]string{
	"date of measurement": domain.SECATimestampKey,
	"date":                domain.SECATimestampKey,
	"birthday":            domain.SECADateOfBirthKey,
	"sex":                 domain.SECASexKey,
	"id":                  domain.SECASubjectCodeKey,
	"body mass index":     domain.SECABMIKey,
}

// NormalizeSECA renames device export columns onto the canonical payload
// keys. Values pass through untouched; the full payload is preserved for the
// snapshot.
func NormalizeSECA(table source.Table) []map[string]string {
	records := table.Records()
	out := make([]map[string]string, 0, len(records))
	for _, record := range records {
		normalized := make(map[string]string, len(record))
		for col, value := range record {
			if renamed, ok := SECAColumnsMapping[col]; ok {
				col = renamed
			}
			normalized[col] = value
		}
		out = append(out, normalized)
	}
	return out
}

// RunSECA ingests a body-composition device export. The device knows nothing
// of subject identifiers, so each row locates its session by measurement
// date, subject date of birth, and subject sex; rows matching no session or
// more than one are skipped and reported. Matched rows store an immutable
// measurement snapshot and relink the subject's sessions to the nearest
// measurement in time.
func (d *Driver) RunSECA(ctx context.Context, src source.Source) (Report, error) {
	started := time.Now()
	report, err := d.runSECA(ctx, src)
	report.Elapsed = time.Since(started)
	d.observe(ctx, "ingest_seca", err, report.Elapsed)
	return report, err
}

func (d *Driver) runSECA(ctx context.Context, src source.Source) (Report, error) {
	var report Report

	table, err := src.Fetch(ctx)
	if err != nil {
		return report, err
	}
	records := NormalizeSECA(table)

	for i, record := range records {
		linked := false
		_, err := d.store.RunInTransaction(ctx, func(tx domain.Transaction) error {
			var err error
			linked, err = ingestSECARecord(tx, i, record)
			return err
		})
		if err != nil {
			if domain.IsBatchFatal(err) {
				return report, err
			}
			d.recordFailure(&report, i, record[domain.SECATimestampKey], err)
			continue
		}
		report.RowsProcessed++
		if linked {
			report.MeasurementsLinked++
		}
	}
	d.logger.Info("seca batch finished",
		zap.Int("rows_processed", report.RowsProcessed),
		zap.Int("rows_failed", report.RowsFailed),
		zap.Int("measurements_linked", report.MeasurementsLinked),
	)
	return report, nil
}

// ingestSECARecord locates the session matching the measurement locator key,
// stores the snapshot under the session's subject, and relinks. Payload date
// failures stay row-scoped: a single malformed device row must not sink the
// rest of the export. Returns whether a new snapshot was created.
func ingestSECARecord(tx domain.Transaction, index int, record map[string]string) (bool, error) {
	date, err := domain.ParseDayFirstDate(record[domain.SECATimestampKey])
	if err != nil {
		return false, &domain.RowError{Index: index, Err: err}
	}
	rawDOB := record[domain.SECADateOfBirthKey]
	if rawDOB == "" {
		return false, &domain.RowError{Index: index, Err: fmt.Errorf("row carries no date of birth")}
	}
	dob, err := domain.ParseDayFirstDate(rawDOB)
	if err != nil {
		return false, &domain.RowError{Index: index, Err: err}
	}
	sex := domain.NormalizeSex(record[domain.SECASexKey])

	locator := fmt.Sprintf("%s/%s/%s", record[domain.SECATimestampKey], rawDOB, sex)
	view := tx.Snapshot()
	sessions := view.ListSessionsByMeasurementKey(date, dob, sex)
	switch {
	case len(sessions) == 0:
		return false, &domain.RowError{Index: index, Key: locator, Err: fmt.Errorf("no session matches measurement locator")}
	case len(sessions) > 1:
		return false, &domain.RowError{
			Index: index,
			Key:   locator,
			Err:   &domain.AmbiguousMatchError{Entity: domain.EntitySession, Key: locator, Count: len(sessions)},
		}
	}
	subjectID := sessions[0].SubjectID

	measurement, created, err := findOrCreateMeasurement(tx, view, subjectID, index, record)
	if err != nil {
		return false, err
	}
	if err := RelinkSessions(tx, LinkSECA, subjectID, measurement.ID, measurement.Timestamp); err != nil {
		return false, err
	}
	return created, nil
}

func findOrCreateMeasurement(tx domain.Transaction, view domain.TransactionView, subjectID string, index int, record map[string]string) (domain.SECAMeasurement, bool, error) {
	for _, existing := range view.ListSECAMeasurementsForSubject(subjectID) {
		if maps.Equal(existing.Measurement, record) {
			return existing, false, nil
		}
	}
	measurement, err := domain.NewSECAMeasurement(subjectID, record)
	if err != nil {
		return domain.SECAMeasurement{}, false, &domain.RowError{Index: index, Err: err}
	}
	measurement, err = tx.CreateSECAMeasurement(measurement)
	if err != nil {
		return domain.SECAMeasurement{}, false, err
	}
	return measurement, true, nil
}
