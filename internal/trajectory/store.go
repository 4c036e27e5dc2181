package trajectory

import (
	"context"
	"time"

	"github.com/tjfontaine/agent-trajectory/internal/domain"
)

// Store owns a trajectory document and is the only component that mutates
// it. Appends are validated before they are applied; the document is written
// whole through the backend after every successful mutation. A failed
// validation or a failed write leaves the in-memory document exactly as it
// was, so the in-memory state never runs ahead of durable state.
//
// Store is not safe for concurrent use; Session serializes access.
type Store struct {
	backend DocumentStore
	doc     *domain.TrajectoryDocument
}

// NewStore creates a store owning doc, persisted through backend.
func NewStore(backend DocumentStore, doc *domain.TrajectoryDocument) *Store {
	return &Store{backend: backend, doc: doc}
}

// AppendInteraction appends rec to llm_interactions in arrival order and
// synchronously persists the document.
func (s *Store) AppendInteraction(ctx context.Context, rec domain.InteractionRecord) error {
	if s.doc.Finalized() {
		return domain.ErrUseAfterFinalize
	}
	if err := rec.Validate(); err != nil {
		return err
	}

	s.doc.LLMInteractions = append(s.doc.LLMInteractions, rec)
	if err := s.save(ctx); err != nil {
		s.doc.LLMInteractions = s.doc.LLMInteractions[:len(s.doc.LLMInteractions)-1]
		return err
	}
	return nil
}

// AppendStep appends rec to agent_steps, enforcing that step numbers are
// exactly 1..N with no gaps or repeats, and synchronously persists the
// document.
func (s *Store) AppendStep(ctx context.Context, rec domain.StepRecord) error {
	if s.doc.Finalized() {
		return domain.ErrUseAfterFinalize
	}
	if err := rec.Validate(); err != nil {
		return err
	}
	if want := len(s.doc.AgentSteps) + 1; rec.StepNumber != want {
		return &domain.StepNumberConflictError{Got: rec.StepNumber, Want: want}
	}

	s.doc.AgentSteps = append(s.doc.AgentSteps, rec)
	if err := s.save(ctx); err != nil {
		s.doc.AgentSteps = s.doc.AgentSteps[:len(s.doc.AgentSteps)-1]
		return err
	}
	return nil
}

// Finalize sets the document's summary fields, performs the final durable
// write, and marks the document read-only. A second call returns
// ErrUseAfterFinalize.
func (s *Store) Finalize(ctx context.Context, success bool, finalResult string, executionTime time.Duration) error {
	if s.doc.Finalized() {
		return domain.ErrUseAfterFinalize
	}

	end := time.Now().UTC()
	s.doc.EndTime = &end
	s.doc.Success = &success
	s.doc.FinalResult = &finalResult
	s.doc.ExecutionTime = &executionTime

	if err := s.save(ctx); err != nil {
		s.doc.EndTime = nil
		s.doc.Success = nil
		s.doc.FinalResult = nil
		s.doc.ExecutionTime = nil
		return err
	}
	return nil
}

// Document returns a snapshot copy of the current document. The returned
// value shares no mutable state with the store, so callers cannot bypass the
// append-only discipline.
func (s *Store) Document() domain.TrajectoryDocument {
	snap := *s.doc
	snap.LLMInteractions = append([]domain.InteractionRecord(nil), s.doc.LLMInteractions...)
	snap.AgentSteps = append([]domain.StepRecord(nil), s.doc.AgentSteps...)
	return snap
}

func (s *Store) save(ctx context.Context) error {
	err := s.backend.Save(ctx, s.doc)
	if err == nil {
		return nil
	}
	if _, ok := err.(*domain.StorageError); ok {
		return err
	}
	return &domain.StorageError{Op: "save", Path: s.backend.Target(), Err: err}
}
