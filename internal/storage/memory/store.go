// Package memory implements an in-memory trajectory document backend for
// tests and embedding.
package memory

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/tjfontaine/agent-trajectory/internal/domain"
)

// Store keeps the last saved document serialized in memory. It also supports
// fault injection so callers can test storage failure propagation.
type Store struct {
	mu      sync.Mutex
	saved   []byte
	saves   int
	failErr error
}

// New creates an in-memory store.
func New() *Store {
	return &Store{}
}

// Save serializes and retains the document.
func (s *Store) Save(_ context.Context, doc *domain.TrajectoryDocument) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.failErr != nil {
		return s.failErr
	}

	payload, err := json.Marshal(doc)
	if err != nil {
		return err
	}
	s.saved = payload
	s.saves++
	return nil
}

// Target identifies the store in errors and logs.
func (s *Store) Target() string { return "memory" }

// Close is a no-op.
func (s *Store) Close() error { return nil }

// FailWith makes subsequent saves return err; nil restores normal behavior.
func (s *Store) FailWith(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failErr = err
}

// Saves returns the number of successful saves.
func (s *Store) Saves() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saves
}

// Document decodes and returns the last saved document, or nil if nothing
// has been saved.
func (s *Store) Document() (*domain.TrajectoryDocument, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.saved == nil {
		return nil, nil
	}
	var doc domain.TrajectoryDocument
	if err := json.Unmarshal(s.saved, &doc); err != nil {
		return nil, err
	}
	return &doc, nil
}
