// Package sqlite implements a trajectory document backend on SQLite for
// deployments that want trajectories in a database instead of loose JSON
// files. The document is stored serialized in a single row and upserted
// whole on every save, preserving the same durable-write contract as the
// file backend.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/tjfontaine/agent-trajectory/internal/domain"
)

// Store persists one trajectory document as a row keyed by a session id
// assigned at construction.
type Store struct {
	db  *sql.DB
	dsn string
	id  string
}

// New opens (or creates) the database at dsn and prepares the schema.
// synchronous=FULL because every save must be durable when it returns;
// trajectory writes are low-volume so the cost is acceptable.
func New(dsn string) (*Store, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, &domain.StorageError{Op: "open", Path: dsn, Err: err}
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL; PRAGMA synchronous=FULL;"); err != nil {
		db.Close()
		return nil, &domain.StorageError{Op: "pragma", Path: dsn, Err: err}
	}

	store := &Store{db: db, dsn: dsn, id: uuid.New().String()}
	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, &domain.StorageError{Op: "init schema", Path: dsn, Err: err}
	}
	return store, nil
}

func (s *Store) initSchema() error {
	_, err := s.db.Exec(`CREATE TABLE IF NOT EXISTS trajectories (
		id TEXT PRIMARY KEY,
		task TEXT NOT NULL,
		provider TEXT NOT NULL,
		model TEXT NOT NULL,
		document TEXT NOT NULL,
		created_at TIMESTAMP NOT NULL,
		updated_at TIMESTAMP NOT NULL
	)`)
	if err != nil {
		return err
	}
	_, err = s.db.Exec(`CREATE INDEX IF NOT EXISTS idx_trajectories_provider ON trajectories(provider)`)
	return err
}

// Save upserts the serialized document under the store's session id.
func (s *Store) Save(ctx context.Context, doc *domain.TrajectoryDocument) error {
	payload, err := json.Marshal(doc)
	if err != nil {
		return &domain.StorageError{Op: "marshal", Path: s.dsn, Err: err}
	}

	now := time.Now().UTC()
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO trajectories (id, task, provider, model, document, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			document = excluded.document,
			updated_at = excluded.updated_at`,
		s.id, doc.Task, string(doc.Provider), doc.Model, string(payload), now, now,
	)
	if err != nil {
		return &domain.StorageError{Op: "upsert", Path: s.dsn, Err: err}
	}
	return nil
}

// Target returns the DSN plus the row id of this session's document.
func (s *Store) Target() string {
	return fmt.Sprintf("%s#%s", s.dsn, s.id)
}

// Close closes the database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// ID returns the row id assigned to this session's document.
func (s *Store) ID() string { return s.id }

// Load reads the document for id back from the database.
func (s *Store) Load(ctx context.Context, id string) (*domain.TrajectoryDocument, error) {
	var payload string
	err := s.db.QueryRowContext(ctx, `SELECT document FROM trajectories WHERE id = ?`, id).Scan(&payload)
	if err != nil {
		return nil, &domain.StorageError{Op: "select", Path: s.dsn, Err: err}
	}
	var doc domain.TrajectoryDocument
	if err := json.Unmarshal([]byte(payload), &doc); err != nil {
		return nil, fmt.Errorf("decode trajectory %s: %w", id, err)
	}
	return &doc, nil
}
