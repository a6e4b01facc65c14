// Package export renders session-level derivative availability reports and
// publishes them to a blob sink. Each session row records which processing
// stages have output directories present on disk.
package export

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"studycore/internal/blob"
	"studycore/pkg/domain"
)

// DerivativesHeader lists the report columns in output order.
var DerivativesHeader = []string{
	"subject_code",
	"session_id",
	"study",
	"group",
	"condition",
	"rawdata",
	"bids",
	"keprep",
	"kepost",
	"freesurfer",
}

// sessionScopedStages have per-session output directories; freesurfer keeps
// one directory per subject across sessions.
var sessionScopedStages = map[string]bool{
	"keprep": true,
	"kepost": true,
}

// Exporter writes the derivatives availability report. Roots point at the
// storage trees the processing pipelines write into.
type Exporter struct {
	store  domain.PersistentStore
	logger *zap.Logger

	RawRoot         string
	BIDSRoot        string
	DerivativesRoot string

	// statFn is swappable for tests.
	statFn func(string) (os.FileInfo, error)
}

// NewExporter constructs an exporter. A nil logger falls back to a no-op.
func NewExporter(store domain.PersistentStore, logger *zap.Logger) *Exporter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Exporter{store: store, logger: logger, statFn: os.Stat}
}

// WriteCSV renders the report for every session to w.
func (e *Exporter) WriteCSV(ctx context.Context, w io.Writer) error {
	writer := csv.NewWriter(w)
	if err := writer.Write(DerivativesHeader); err != nil {
		return err
	}

	sessions := e.store.ListSessions()
	err := e.store.View(ctx, func(view domain.TransactionView) error {
		for _, session := range sessions {
			row, err := e.sessionRow(view, session)
			if err != nil {
				return err
			}
			if err := writer.Write(row); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	writer.Flush()
	return writer.Error()
}

func (e *Exporter) sessionRow(view domain.TransactionView, session domain.Session) ([]string, error) {
	subject, ok := view.FindSubject(session.SubjectID)
	if !ok {
		return nil, fmt.Errorf("session %s references missing subject %s", session.OriginSessionID, session.SubjectID)
	}

	row := make([]string, 0, len(DerivativesHeader))
	row = append(row,
		subject.QuestionnaireCode,
		session.SessionID,
		e.dimensionName(view, session.StudyID, findStudyName),
		e.dimensionName(view, session.GroupID, findGroupName),
		e.dimensionName(view, session.ConditionID, findConditionName),
	)

	// Directory names strip the separators the code may carry.
	subjectDir := "sub-" + sanitizeCode(subject.QuestionnaireCode)
	sessionDir := "ses-" + session.SessionID

	row = append(row, e.existingPath(filepath.Join(e.RawRoot, sanitizeCode(subject.QuestionnaireCode), session.OriginSessionID)))
	row = append(row, e.existingPath(filepath.Join(e.BIDSRoot, subjectDir, sessionDir)))
	for _, stage := range []string{"keprep", "kepost", "freesurfer"} {
		path := filepath.Join(e.DerivativesRoot, stage, subjectDir)
		if sessionScopedStages[stage] {
			path = filepath.Join(path, sessionDir)
		}
		row = append(row, e.existingPath(path))
	}
	return row, nil
}

func (e *Exporter) dimensionName(view domain.TransactionView, id *string, find func(domain.TransactionView, string) (string, bool)) string {
	if id == nil {
		return ""
	}
	name, ok := find(view, *id)
	if !ok {
		return ""
	}
	return name
}

func findStudyName(view domain.TransactionView, id string) (string, bool) {
	s, ok := view.FindStudy(id)
	return s.Name, ok
}

func findGroupName(view domain.TransactionView, id string) (string, bool) {
	g, ok := view.FindGroup(id)
	return g.Name, ok
}

func findConditionName(view domain.TransactionView, id string) (string, bool) {
	c, ok := view.FindCondition(id)
	return c.Name, ok
}

// existingPath returns the path when it exists on disk and empty otherwise.
func (e *Exporter) existingPath(path string) string {
	if _, err := e.statFn(path); err != nil {
		return ""
	}
	return path
}

func sanitizeCode(code string) string {
	replacer := strings.NewReplacer("_", "", " ", "", "\t", "", "-", "")
	return replacer.Replace(code)
}

// Publish renders the report and uploads it to the sink under key, replacing
// any previous report of the same name.
func (e *Exporter) Publish(ctx context.Context, sink blob.Store, key string) (blob.Info, error) {
	started := time.Now()
	var buf bytes.Buffer
	if err := e.WriteCSV(ctx, &buf); err != nil {
		return blob.Info{}, err
	}
	if _, err := sink.Delete(ctx, key); err != nil {
		return blob.Info{}, fmt.Errorf("replace %s: %w", key, err)
	}
	info, err := sink.Put(ctx, key, &buf, blob.PutOptions{ContentType: "text/csv"})
	if err != nil {
		return blob.Info{}, err
	}
	e.logger.Info("derivatives report published",
		zap.String("key", key),
		zap.Int64("size_bytes", info.Size),
		zap.Duration("elapsed", time.Since(started)),
	)
	return info, nil
}
