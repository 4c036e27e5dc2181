package trajectory_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/tjfontaine/agent-trajectory/internal/domain"
	"github.com/tjfontaine/agent-trajectory/internal/storage/memory"
	"github.com/tjfontaine/agent-trajectory/internal/trajectory"
)

func strPtr(s string) *string { return &s }

func startSession(t *testing.T) (*trajectory.Session, *memory.Store) {
	t.Helper()
	backend := memory.New()
	s, err := trajectory.Start(context.Background(), backend, "list files", domain.ProviderAnthropic, "claude-3-5-sonnet-20241022", 20)
	if err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	return s, backend
}

func stepRecord(number int, state domain.StepState) domain.StepRecord {
	return domain.StepRecord{
		StepNumber: number,
		Timestamp:  time.Now().UTC(),
		State:      state,
	}
}

func TestStartWritesInitialDocument(t *testing.T) {
	s, backend := startSession(t)

	if backend.Saves() != 1 {
		t.Fatalf("Saves() = %d, want 1 initial write", backend.Saves())
	}
	doc, err := backend.Document()
	if err != nil {
		t.Fatalf("Document() error = %v", err)
	}
	if doc.Task != "list files" || doc.Provider != domain.ProviderAnthropic || doc.MaxSteps != 20 {
		t.Errorf("unexpected initial document: %+v", doc)
	}
	if doc.EndTime != nil || doc.Success != nil {
		t.Errorf("initial document should have no summary fields: %+v", doc)
	}
	if s.NextStepNumber() != 1 {
		t.Errorf("NextStepNumber() = %d, want 1", s.NextStepNumber())
	}
}

func TestStartFailsWhenInitialWriteFails(t *testing.T) {
	backend := memory.New()
	backend.FailWith(errors.New("disk full"))

	_, err := trajectory.Start(context.Background(), backend, "task", domain.ProviderOpenAI, "gpt-4o", 10)
	if err == nil {
		t.Fatal("Start() should fail when the initial write fails")
	}
	var storageErr *domain.StorageError
	if !errors.As(err, &storageErr) {
		t.Errorf("error = %v, want StorageError", err)
	}
}

func TestRecordStepPersistsEachAppend(t *testing.T) {
	s, backend := startSession(t)
	ctx := context.Background()

	if err := s.RecordStep(ctx, stepRecord(1, domain.StepStateThinking)); err != nil {
		t.Fatalf("RecordStep(1) error = %v", err)
	}
	if err := s.RecordStep(ctx, stepRecord(2, domain.StepStateCallingTool)); err != nil {
		t.Fatalf("RecordStep(2) error = %v", err)
	}

	doc, err := backend.Document()
	if err != nil {
		t.Fatalf("Document() error = %v", err)
	}
	if len(doc.AgentSteps) != 2 {
		t.Fatalf("persisted %d steps, want 2", len(doc.AgentSteps))
	}
	if doc.AgentSteps[0].StepNumber != 1 || doc.AgentSteps[1].StepNumber != 2 {
		t.Errorf("step numbers out of order: %+v", doc.AgentSteps)
	}
	// Initial write plus one per step.
	if backend.Saves() != 3 {
		t.Errorf("Saves() = %d, want 3", backend.Saves())
	}
}

func TestRecordStepRejectsNumberConflict(t *testing.T) {
	s, backend := startSession(t)
	ctx := context.Background()

	if err := s.RecordStep(ctx, stepRecord(1, domain.StepStateThinking)); err != nil {
		t.Fatalf("RecordStep(1) error = %v", err)
	}

	err := s.RecordStep(ctx, stepRecord(1, domain.StepStateCallingTool))
	var conflict *domain.StepNumberConflictError
	if !errors.As(err, &conflict) {
		t.Fatalf("error = %v, want StepNumberConflictError", err)
	}
	if conflict.Got != 1 || conflict.Want != 2 {
		t.Errorf("conflict detail = %+v, want Got=1 Want=2", conflict)
	}

	// A gap is rejected the same way.
	if err := s.RecordStep(ctx, stepRecord(3, domain.StepStateCallingTool)); !errors.As(err, &conflict) {
		t.Fatalf("gap error = %v, want StepNumberConflictError", err)
	}

	doc, _ := backend.Document()
	if len(doc.AgentSteps) != 1 {
		t.Errorf("rejected appends must not change the document, got %d steps", len(doc.AgentSteps))
	}
}

func TestRecordStepRollsBackOnStorageFailure(t *testing.T) {
	s, backend := startSession(t)
	ctx := context.Background()

	backend.FailWith(errors.New("device gone"))
	err := s.RecordStep(ctx, stepRecord(1, domain.StepStateThinking))
	var storageErr *domain.StorageError
	if !errors.As(err, &storageErr) {
		t.Fatalf("error = %v, want StorageError", err)
	}

	if got := s.Document(); len(got.AgentSteps) != 0 {
		t.Errorf("failed append left %d steps in memory, want 0", len(got.AgentSteps))
	}

	// Recovery: the same step number is accepted once storage works again.
	backend.FailWith(nil)
	if err := s.RecordStep(ctx, stepRecord(1, domain.StepStateThinking)); err != nil {
		t.Fatalf("RecordStep after recovery error = %v", err)
	}
	if s.NextStepNumber() != 2 {
		t.Errorf("NextStepNumber() = %d, want 2", s.NextStepNumber())
	}
}

func TestRecordInteractionRollsBackOnStorageFailure(t *testing.T) {
	s, backend := startSession(t)
	ctx := context.Background()

	rec := domain.InteractionRecord{
		Timestamp: time.Now().UTC(),
		Provider:  domain.ProviderAnthropic,
		Model:     "claude-3-5-sonnet-20241022",
		InputMessages: []domain.Message{
			{Role: domain.RoleUser, Content: "hello"},
		},
		Response: domain.Response{Content: "hi"},
	}

	backend.FailWith(errors.New("device gone"))
	if err := s.RecordInteraction(ctx, rec); err == nil {
		t.Fatal("RecordInteraction should surface the storage failure")
	}
	if got := s.Document(); len(got.LLMInteractions) != 0 {
		t.Errorf("failed append left %d interactions in memory", len(got.LLMInteractions))
	}

	backend.FailWith(nil)
	if err := s.RecordInteraction(ctx, rec); err != nil {
		t.Fatalf("RecordInteraction after recovery error = %v", err)
	}
}

func TestRecordInteractionRejectsDuplicateCallIDs(t *testing.T) {
	s, _ := startSession(t)

	rec := domain.InteractionRecord{
		Timestamp: time.Now().UTC(),
		Provider:  domain.ProviderAnthropic,
		Model:     "claude-3-5-sonnet-20241022",
		Response: domain.Response{
			ToolCalls: []domain.ToolCall{
				{CallID: "call_1", Name: "bash"},
				{CallID: "call_1", Name: "bash"},
			},
		},
	}
	err := s.RecordInteraction(context.Background(), rec)
	var dup *domain.DuplicateCallIDError
	if !errors.As(err, &dup) {
		t.Fatalf("error = %v, want DuplicateCallIDError", err)
	}
}

func TestFinalizeSetsSummaryAndClosesSession(t *testing.T) {
	s, backend := startSession(t)
	ctx := context.Background()

	if err := s.RecordStep(ctx, stepRecord(1, domain.StepStateCompleted)); err != nil {
		t.Fatalf("RecordStep error = %v", err)
	}
	if err := s.Finalize(ctx, true, "done", 1500*time.Millisecond); err != nil {
		t.Fatalf("Finalize() error = %v", err)
	}

	doc, err := backend.Document()
	if err != nil {
		t.Fatalf("Document() error = %v", err)
	}
	if doc.EndTime == nil || doc.Success == nil || doc.FinalResult == nil || doc.ExecutionTime == nil {
		t.Fatalf("finalized document missing summary fields: %+v", doc)
	}
	if !*doc.Success || *doc.FinalResult != "done" || *doc.ExecutionTime != 1500*time.Millisecond {
		t.Errorf("unexpected summary: success=%v result=%q time=%v", *doc.Success, *doc.FinalResult, *doc.ExecutionTime)
	}

	if err := s.RecordStep(ctx, stepRecord(2, domain.StepStateThinking)); !errors.Is(err, domain.ErrUseAfterFinalize) {
		t.Errorf("RecordStep after finalize error = %v, want ErrUseAfterFinalize", err)
	}
	if err := s.Finalize(ctx, true, "again", 0); !errors.Is(err, domain.ErrUseAfterFinalize) {
		t.Errorf("second Finalize error = %v, want ErrUseAfterFinalize", err)
	}
}

func TestFinalizeFailureLeavesSessionOpen(t *testing.T) {
	s, backend := startSession(t)
	ctx := context.Background()

	backend.FailWith(errors.New("disk full"))
	if err := s.Finalize(ctx, false, "crashed", time.Second); err == nil {
		t.Fatal("Finalize should surface the storage failure")
	}

	// The document is not finalized, so the session may retry.
	if got := s.Document(); got.Finalized() {
		t.Fatal("failed finalize must not mark the document finalized")
	}
	backend.FailWith(nil)
	if err := s.Finalize(ctx, false, "crashed", time.Second); err != nil {
		t.Fatalf("retried Finalize error = %v", err)
	}
}

func TestDocumentSnapshotIsDetached(t *testing.T) {
	s, _ := startSession(t)
	ctx := context.Background()

	if err := s.RecordStep(ctx, stepRecord(1, domain.StepStateThinking)); err != nil {
		t.Fatalf("RecordStep error = %v", err)
	}

	snap := s.Document()
	snap.AgentSteps[0].State = domain.StepStateError
	snap.AgentSteps[0].Error = strPtr("tampered")

	if got := s.Document(); got.AgentSteps[0].State != domain.StepStateThinking {
		t.Error("mutating a snapshot must not affect the session's document")
	}
}

func TestDefaultFilename(t *testing.T) {
	now := time.Date(2025, 3, 14, 9, 26, 53, 0, time.UTC)
	if got := trajectory.DefaultFilename(now); got != "trajectory_20250314_092653.json" {
		t.Errorf("DefaultFilename() = %q", got)
	}
}
