// Package trajectory implements the trajectory store and recorder session:
// the append-consistent, crash-recoverable record of one agent task
// execution. Every append is validated, applied, and synchronously written
// whole-document through a DocumentStore backend before the call returns.
package trajectory

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/tjfontaine/agent-trajectory/internal/domain"
)

// DocumentStore persists a full trajectory document to durable storage.
// Implementations must publish atomically: after Save returns nil, a reader
// (or a crashed-and-restarted process) sees either the previous complete
// document or the new one, never a partial write.
type DocumentStore interface {
	// Save durably persists the document. It must not return until the
	// write is durable.
	Save(ctx context.Context, doc *domain.TrajectoryDocument) error

	// Target identifies the storage location (file path or DSN) fixed at
	// session start.
	Target() string

	// Close releases backend resources. Save must not be called afterward.
	Close() error
}

// DefaultFilename generates the auto-timestamped trajectory filename used
// when the caller does not supply one.
func DefaultFilename(now time.Time) string {
	return fmt.Sprintf("trajectory_%s.json", now.Format("20060102_150405"))
}

// DefaultPath joins DefaultFilename with dir, defaulting to the current
// directory.
func DefaultPath(dir string, now time.Time) string {
	if dir == "" {
		dir = "."
	}
	return filepath.Join(dir, DefaultFilename(now))
}
