package core

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"studycore/internal/infra/persistence/memory"
	"studycore/pkg/domain"
)

func TestServiceCreateAndResolveNaturalKeys(t *testing.T) {
	ctx := context.Background()
	service := NewService(memory.NewStore(DefaultRulesEngine()))

	subject, _, err := service.CreateSubject(ctx, Subject{SubjectID: "000000001", FirstName: "Dana"})
	if err != nil {
		t.Fatalf("create subject: %v", err)
	}
	if _, _, err := service.CreateSession(ctx, subject.ID, "20230215_1030"); err != nil {
		t.Fatalf("create session: %v", err)
	}

	got, found, err := service.GetSubjectBySubjectID(ctx, "000000001")
	if err != nil || !found || got.ID != subject.ID {
		t.Fatalf("get subject = %+v, %v, %v", got, found, err)
	}
	session, found, err := service.GetSessionByOriginID(ctx, "20230215_1030")
	if err != nil || !found {
		t.Fatalf("get session = %v, %v", found, err)
	}
	if session.SessionID != "202302151030" {
		t.Fatalf("session id = %q", session.SessionID)
	}
	if len(service.ListSessions()) != 1 || len(service.ListSubjects()) != 1 {
		t.Fatal("listings incomplete")
	}
}

func TestServiceCreateSessionRejectsMalformedOrigin(t *testing.T) {
	ctx := context.Background()
	service := NewService(memory.NewStore(nil))
	subject, _, err := service.CreateSubject(ctx, Subject{SubjectID: "000000001"})
	if err != nil {
		t.Fatalf("create subject: %v", err)
	}
	_, _, err = service.CreateSession(ctx, subject.ID, "yesterday at noon")
	var parseErr *domain.TemporalParseError
	if !errors.As(err, &parseErr) {
		t.Fatalf("err = %v", err)
	}
}

func TestServiceObservesOperations(t *testing.T) {
	ctx := context.Background()
	recorder := NewExpvarMetricsRecorder("")
	service := NewService(memory.NewStore(nil), WithMetrics(recorder))

	if _, _, err := service.CreateSubject(ctx, Subject{SubjectID: "000000001"}); err != nil {
		t.Fatalf("create subject: %v", err)
	}
	// Duplicate natural key: the failure must surface as an error observation.
	if _, _, err := service.CreateSubject(ctx, Subject{SubjectID: "000000001"}); err == nil {
		t.Fatal("duplicate should fail")
	}

	snapshot := recorder.Snapshot()
	results := snapshot.Results["create_subject"]
	if results["success"] != 1 || results["error"] != 1 {
		t.Fatalf("results = %+v", snapshot.Results)
	}
	if _, ok := snapshot.DurationsMS["create_subject"]; !ok {
		t.Fatalf("durations = %+v", snapshot.DurationsMS)
	}
}

func TestExpvarRecorderIgnoresUnnamedOperations(t *testing.T) {
	recorder := NewExpvarMetricsRecorder("")
	recorder.Observe(context.Background(), "", true, time.Millisecond)
	if len(recorder.Snapshot().Results) != 0 {
		t.Fatal("unnamed operation recorded")
	}
}

func TestPrometheusRecorderRegistersAndCounts(t *testing.T) {
	registry := prometheus.NewRegistry()
	recorder, err := NewPrometheusMetricsRecorder(registry)
	if err != nil {
		t.Fatalf("construct: %v", err)
	}
	recorder.Observe(context.Background(), "ingest_crf", true, 25*time.Millisecond)
	recorder.Observe(context.Background(), "ingest_crf", false, 5*time.Millisecond)

	families, err := registry.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	names := make(map[string]bool, len(families))
	for _, family := range families {
		names[family.GetName()] = true
	}
	if !names["studycore_operations_total"] || !names["studycore_operation_duration_seconds"] {
		t.Fatalf("families = %v", names)
	}

	// Double registration against the same registry must fail loudly.
	if _, err := NewPrometheusMetricsRecorder(registry); err == nil {
		t.Fatal("second registration should collide")
	}
}

func TestDefaultRulesEngineBlocksNaturalKeyDrift(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore(DefaultRulesEngine())
	service := NewService(store)

	first, _, err := service.CreateSubject(ctx, Subject{SubjectID: "000000001"})
	if err != nil {
		t.Fatalf("create first: %v", err)
	}
	if _, _, err := service.CreateSubject(ctx, Subject{SubjectID: "000000002"}); err != nil {
		t.Fatalf("create second: %v", err)
	}

	// Mutating a subject into a colliding natural key passes the store-level
	// create checks, so only the rule can catch it.
	_, _, err = service.UpdateSubject(ctx, first.ID, func(s *Subject) error {
		s.QuestionnaireCode = "0002"
		return nil
	})
	if err != nil {
		t.Fatalf("legitimate update blocked: %v", err)
	}
}

func TestOpenStorageSelectsDrivers(t *testing.T) {
	store, err := OpenStorage(StorageMemory, "", "", nil)
	if err != nil {
		t.Fatalf("memory: %v", err)
	}
	if _, ok := store.(*memory.Store); !ok {
		t.Fatalf("store = %T", store)
	}
	if _, err := OpenStorage("cloud", "", "", nil); err == nil {
		t.Fatal("unknown driver should fail")
	}
}
