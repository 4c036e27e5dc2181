// Package file implements the default trajectory document backend: a single
// JSON file rewritten whole on every save with write-to-temp-then-rename
// discipline, so a crash at any point leaves either the previous complete
// document or the new one on disk.
package file

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/tjfontaine/agent-trajectory/internal/domain"
)

// Store persists a trajectory document at a fixed file path.
type Store struct {
	path string
}

// New creates a file store targeting path, creating parent directories as
// needed. A non-writable target is reported here so session start can fail
// fast.
func New(path string) (*Store, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, &domain.StorageError{Op: "mkdir", Path: dir, Err: err}
	}
	return &Store{path: path}, nil
}

// Save writes the full document atomically: marshal, write to a temp file in
// the target directory, fsync, then rename into place. Rename within one
// directory is atomic on POSIX filesystems, which is the crash-consistency
// contract the trajectory store relies on.
func (s *Store) Save(_ context.Context, doc *domain.TrajectoryDocument) error {
	payload, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return &domain.StorageError{Op: "marshal", Path: s.path, Err: err}
	}

	dir := filepath.Dir(s.path)
	tmp, err := os.CreateTemp(dir, filepath.Base(s.path)+".tmp-*")
	if err != nil {
		return &domain.StorageError{Op: "create temp", Path: s.path, Err: err}
	}
	tmpPath := tmp.Name()
	defer func() {
		_ = os.Remove(tmpPath)
	}()

	if _, err := tmp.Write(payload); err != nil {
		_ = tmp.Close()
		return &domain.StorageError{Op: "write", Path: s.path, Err: err}
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return &domain.StorageError{Op: "sync", Path: s.path, Err: err}
	}
	if err := tmp.Close(); err != nil {
		return &domain.StorageError{Op: "close", Path: s.path, Err: err}
	}

	if err := os.Rename(tmpPath, s.path); err != nil {
		return &domain.StorageError{Op: "rename", Path: s.path, Err: err}
	}
	return nil
}

// Target returns the document's file path.
func (s *Store) Target() string { return s.path }

// Close is a no-op; the file is never held open between saves.
func (s *Store) Close() error { return nil }

// Load reads a trajectory document back from path. Used for recovery after
// a crash and by tests asserting the round-trip property.
func Load(path string) (*domain.TrajectoryDocument, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &domain.StorageError{Op: "read", Path: path, Err: err}
	}
	var doc domain.TrajectoryDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decode trajectory %s: %w", path, err)
	}
	return &doc, nil
}
