package trajectory

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/tjfontaine/agent-trajectory/internal/domain"
)

// Session is the lifecycle wrapper handed to the agent loop and its
// collaborators. It binds a task to one trajectory document, serializes all
// record calls behind a single lock, and guarantees each call's durable
// write completes (or is reported failed) before the call returns. Multiple
// independent sessions may record concurrently; one session must not be
// driven by two concurrent writers except through this lock.
type Session struct {
	mu     sync.Mutex
	store  *Store
	logger *slog.Logger
	closed bool
}

// SessionOption configures a session.
type SessionOption func(*Session)

// WithLogger sets the session logger.
func WithLogger(logger *slog.Logger) SessionOption {
	return func(s *Session) {
		s.logger = logger
	}
}

// Start creates the trajectory document, performs the initial durable write,
// and returns the live session. A storage failure here is fatal to starting
// the session: the backend is closed and the error returned.
func Start(ctx context.Context, backend DocumentStore, task string, provider domain.Provider, model string, maxSteps int, opts ...SessionOption) (*Session, error) {
	doc := domain.NewTrajectoryDocument(task, provider, model, maxSteps)
	s := &Session{
		store:  NewStore(backend, doc),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}

	if err := s.store.save(ctx); err != nil {
		_ = backend.Close()
		return nil, err
	}

	s.logger.Info("trajectory recording started",
		slog.String("target", backend.Target()),
		slog.String("provider", string(provider)),
		slog.String("model", model),
		slog.Int("max_steps", maxSteps),
	)
	return s, nil
}

// RecordInteraction appends one model exchange and durably persists the
// document before returning. Storage failures are surfaced, never dropped.
func (s *Session) RecordInteraction(ctx context.Context, rec domain.InteractionRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return domain.ErrUseAfterFinalize
	}
	return s.store.AppendInteraction(ctx, rec)
}

// RecordStep appends one agent step and durably persists the document
// before returning.
func (s *Session) RecordStep(ctx context.Context, rec domain.StepRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return domain.ErrUseAfterFinalize
	}
	return s.store.AppendStep(ctx, rec)
}

// Finalize closes out the trajectory with its summary fields, performs the
// final durable write, closes the backend, and marks the session closed.
// Any record call after Finalize fails with ErrUseAfterFinalize. If the
// final write itself fails the session stays open so the caller may retry.
func (s *Session) Finalize(ctx context.Context, success bool, finalResult string, executionTime time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return domain.ErrUseAfterFinalize
	}
	if err := s.store.Finalize(ctx, success, finalResult, executionTime); err != nil {
		return err
	}
	s.closed = true

	if err := s.store.backend.Close(); err != nil {
		s.logger.Error("failed to close trajectory backend",
			slog.String("target", s.store.backend.Target()),
			slog.String("error", err.Error()),
		)
	}

	s.logger.Info("trajectory recording finalized",
		slog.String("target", s.store.backend.Target()),
		slog.Bool("success", success),
		slog.Duration("execution_time", executionTime),
	)
	return nil
}

// Target returns the fixed storage location of this session's document.
func (s *Session) Target() string {
	return s.store.backend.Target()
}

// Document returns a snapshot of the current trajectory document.
func (s *Session) Document() domain.TrajectoryDocument {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.store.Document()
}

// NextStepNumber returns the step number the next recorded step must carry.
func (s *Session) NextStepNumber() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.store.doc.AgentSteps) + 1
}
