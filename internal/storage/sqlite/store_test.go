package sqlite

import (
	"context"
	"fmt"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/tjfontaine/agent-trajectory/internal/domain"
)

var dbCounter atomic.Int64

// memoryDSN returns a unique shared in-memory database per test.
func memoryDSN() string {
	return fmt.Sprintf("file:memdb%d?mode=memory&cache=shared", dbCounter.Add(1))
}

func TestSaveAndLoadRoundTrip(t *testing.T) {
	store, err := New(memoryDSN())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer store.Close()
	ctx := context.Background()

	doc := domain.NewTrajectoryDocument("grep logs", domain.ProviderAnthropic, "claude-3-5-sonnet-20241022", 15)
	doc.AgentSteps = append(doc.AgentSteps, domain.StepRecord{
		StepNumber: 1,
		Timestamp:  time.Now().UTC(),
		State:      domain.StepStateThinking,
	})

	if err := store.Save(ctx, doc); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	loaded, err := store.Load(ctx, store.ID())
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if loaded.Task != doc.Task || loaded.Provider != doc.Provider {
		t.Errorf("round-trip mismatch: %+v", loaded)
	}
	if len(loaded.AgentSteps) != 1 {
		t.Errorf("loaded %d steps, want 1", len(loaded.AgentSteps))
	}
}

func TestSaveUpsertsSameRow(t *testing.T) {
	store, err := New(memoryDSN())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer store.Close()
	ctx := context.Background()

	doc := domain.NewTrajectoryDocument("task", domain.ProviderOpenAI, "gpt-4o", 5)
	if err := store.Save(ctx, doc); err != nil {
		t.Fatalf("first Save() error = %v", err)
	}
	doc.AgentSteps = append(doc.AgentSteps, domain.StepRecord{
		StepNumber: 1,
		Timestamp:  time.Now().UTC(),
		State:      domain.StepStateCompleted,
	})
	if err := store.Save(ctx, doc); err != nil {
		t.Fatalf("second Save() error = %v", err)
	}

	var count int
	if err := store.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM trajectories`).Scan(&count); err != nil {
		t.Fatalf("count query error = %v", err)
	}
	if count != 1 {
		t.Errorf("table has %d rows, want 1", count)
	}

	loaded, err := store.Load(ctx, store.ID())
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if len(loaded.AgentSteps) != 1 {
		t.Errorf("upsert did not replace the document, got %d steps", len(loaded.AgentSteps))
	}
}

func TestTargetIncludesRowID(t *testing.T) {
	dsn := memoryDSN()
	store, err := New(dsn)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer store.Close()

	if !strings.HasPrefix(store.Target(), dsn+"#") {
		t.Errorf("Target() = %q, want %q prefix", store.Target(), dsn+"#")
	}
	if store.ID() == "" {
		t.Error("ID() is empty")
	}
}

func TestLoadUnknownID(t *testing.T) {
	store, err := New(memoryDSN())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer store.Close()

	if _, err := store.Load(context.Background(), "no-such-id"); err == nil {
		t.Fatal("Load() of an unknown id should fail")
	}
}
