package ingest

import (
	"context"
	"time"

	"go.uber.org/zap"

	"studycore/internal/core"
	"studycore/internal/source"
	"studycore/pkg/domain"
)

// Failure records one skipped row for the batch report.
type Failure struct {
	Index int
	Key   string
	Err   error
}

// Report summarizes a finished batch run.
type Report struct {
	RowsProcessed      int
	RowsDropped        int
	RowsFailed         int
	SubjectsCreated    int
	SubjectsUpdated    int
	SessionsCreated    int
	SessionsRecreated  int
	ResponsesCreated   int
	MeasurementsLinked int
	Failures           []Failure
	Elapsed            time.Duration
}

// Driver runs ingestion batches against the store. Each row executes in its
// own transaction so a skipped row leaves no partial writes behind.
type Driver struct {
	store   domain.PersistentStore
	logger  *zap.Logger
	metrics core.MetricsRecorder
}

// DriverOption customizes driver construction.
type DriverOption func(*Driver)

// WithDriverMetrics attaches a metrics recorder observing each batch run.
func WithDriverMetrics(recorder core.MetricsRecorder) DriverOption {
	return func(d *Driver) { d.metrics = recorder }
}

// NewDriver constructs a batch driver. A nil logger falls back to a no-op.
func NewDriver(store domain.PersistentStore, logger *zap.Logger, opts ...DriverOption) *Driver {
	if logger == nil {
		logger = zap.NewNop()
	}
	d := &Driver{store: store, logger: logger}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// RunCRF ingests a recruitment sheet batch: fetch, normalize, then reconcile
// row by row. Row-scoped failures are logged and reported without stopping
// the batch; batch-fatal failures abort immediately.
func (d *Driver) RunCRF(ctx context.Context, src source.Source) (Report, error) {
	started := time.Now()
	report, err := d.runCRF(ctx, src)
	report.Elapsed = time.Since(started)
	d.observe(ctx, "ingest_crf", err, report.Elapsed)
	return report, err
}

func (d *Driver) runCRF(ctx context.Context, src source.Source) (Report, error) {
	var report Report

	table, err := src.Fetch(ctx)
	if err != nil {
		return report, err
	}
	rows, dropped, err := NormalizeCRF(table)
	if err != nil {
		return report, err
	}
	report.RowsDropped = dropped

	for _, row := range rows {
		row := row
		var outcome Outcome
		_, err := d.store.RunInTransaction(ctx, func(tx domain.Transaction) error {
			var err error
			outcome, err = ReconcileRow(tx, row)
			return err
		})
		if err != nil {
			if domain.IsBatchFatal(err) {
				return report, err
			}
			d.recordFailure(&report, row.Index, rowKey(row.Subject.SubjectID, row.Session.OriginSessionID), err)
			continue
		}
		report.RowsProcessed++
		if outcome.SubjectCreated {
			report.SubjectsCreated++
		}
		if outcome.SubjectUpdated {
			report.SubjectsUpdated++
		}
		if outcome.SessionCreated {
			report.SessionsCreated++
		}
		if outcome.SessionRecreated {
			report.SessionsRecreated++
		}
	}
	d.logger.Info("crf batch finished",
		zap.Int("rows_processed", report.RowsProcessed),
		zap.Int("rows_dropped", report.RowsDropped),
		zap.Int("rows_failed", report.RowsFailed),
		zap.Int("subjects_created", report.SubjectsCreated),
		zap.Int("subjects_updated", report.SubjectsUpdated),
		zap.Int("sessions_created", report.SessionsCreated),
		zap.Int("sessions_recreated", report.SessionsRecreated),
	)
	return report, nil
}

func (d *Driver) recordFailure(report *Report, index int, key string, err error) {
	report.RowsFailed++
	report.Failures = append(report.Failures, Failure{Index: index, Key: key, Err: err})
	d.logger.Warn("row skipped",
		zap.Int("row", index),
		zap.String("key", key),
		zap.Error(err),
	)
}

func (d *Driver) observe(ctx context.Context, operation string, err error, elapsed time.Duration) {
	if d.metrics == nil {
		return
	}
	d.metrics.Observe(ctx, operation, err == nil, elapsed)
}
