package procedures

import (
	"context"
	"fmt"
	"io/fs"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"studycore/pkg/domain"
)

// ParseTree walks an output directory and parses the tag-set of every regular
// file beneath it, keyed by path.
func ParseTree(root string) (map[string]map[string]string, error) {
	outputs := make(map[string]map[string]string)
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.Type().IsRegular() {
			outputs[path] = ParseEntities(path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk %s: %w", root, err)
	}
	return outputs, nil
}

// Populator discovers per-session pipeline output directories under a
// derivatives root and records them as procedures.
type Populator struct {
	store  domain.PersistentStore
	logger *zap.Logger

	// Overwrite refreshes the parsed outputs of procedures that already exist.
	Overwrite bool

	// globFn is swappable for tests.
	globFn func(string) ([]string, error)
}

// NewPopulator constructs a populator. A nil logger falls back to a no-op.
func NewPopulator(store domain.PersistentStore, logger *zap.Logger) *Populator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Populator{
		store:  store,
		logger: logger,
		globFn: filepath.Glob,
	}
}

// PopulateReport summarizes one population run.
type PopulateReport struct {
	SessionsScanned   int
	ProceduresCreated int
	ProceduresUpdated int
	Elapsed           time.Duration
}

// Populate scans every session for an output directory of the named pipeline
// under root and records a procedure per discovery. The directory layout is
// <root>/<pipeline>/sub-*/ses-<session_id>; the subject component is globbed
// because directory names carry the questionnaire code, not the subject id.
func (p *Populator) Populate(ctx context.Context, root, pipeline string) (PopulateReport, error) {
	started := time.Now()
	var report PopulateReport

	sessions := p.store.ListSessions()
	for _, session := range sessions {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		report.SessionsScanned++

		pattern := filepath.Join(root, pipeline, "sub-*", "ses-"+session.SessionID)
		matches, err := p.globFn(pattern)
		if err != nil {
			return report, fmt.Errorf("glob %s: %w", pattern, err)
		}
		if len(matches) == 0 {
			continue
		}
		path := matches[0]

		created, updated, err := p.recordProcedure(ctx, session, pipeline, path)
		if err != nil {
			return report, err
		}
		if created {
			report.ProceduresCreated++
		}
		if updated {
			report.ProceduresUpdated++
		}
	}
	report.Elapsed = time.Since(started)
	p.logger.Info("procedure population finished",
		zap.String("pipeline", pipeline),
		zap.Int("sessions_scanned", report.SessionsScanned),
		zap.Int("procedures_created", report.ProceduresCreated),
		zap.Int("procedures_updated", report.ProceduresUpdated),
	)
	return report, nil
}

func (p *Populator) recordProcedure(ctx context.Context, session domain.Session, pipeline, path string) (created, updated bool, err error) {
	outputs, err := ParseTree(path)
	if err != nil {
		return false, false, err
	}
	_, err = p.store.RunInTransaction(ctx, func(tx domain.Transaction) error {
		view := tx.Snapshot()
		existing, found := view.FindProcedureByKey(session.ID, pipeline, path)
		if !found {
			_, err := tx.CreateProcedure(domain.Procedure{
				SessionID: session.ID,
				Name:      pipeline,
				Path:      path,
				Status:    domain.ProcedureStatusCompleted,
				Outputs:   outputs,
			})
			created = err == nil
			return err
		}
		if !p.Overwrite {
			return nil
		}
		_, err := tx.UpdateProcedure(existing.ID, func(proc *domain.Procedure) error {
			proc.Outputs = outputs
			return nil
		})
		updated = err == nil
		return err
	})
	return created, updated, err
}
