package state

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func setupTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	store := NewSQLiteStore()
	if err := store.Open(":memory:"); err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	if err := store.Migrate(); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}
	return store
}

func TestSQLiteStore_OpenClose(t *testing.T) {
	store := NewSQLiteStore()

	if err := store.Open(":memory:"); err != nil {
		t.Fatalf("failed to open in-memory store: %v", err)
	}

	if err := store.Close(); err != nil {
		t.Fatalf("failed to close store: %v", err)
	}
}

func TestSQLiteStore_OpenCreatesParentDir(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".compass", "state.db")

	store := NewSQLiteStore()
	if err := store.Open(path); err != nil {
		t.Fatalf("failed to open file-backed store: %v", err)
	}
	defer store.Close()

	if err := store.Migrate(); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}

	if _, err := os.Stat(path); err != nil {
		t.Errorf("expected database file at %s: %v", path, err)
	}
}

func TestSQLiteStore_Migrate(t *testing.T) {
	store := setupTestStore(t)

	// Verify tables exist by querying them
	tables := []string{"runs", "iterations"}
	for _, table := range tables {
		rows, err := store.db.Query("SELECT 1 FROM " + table + " LIMIT 1")
		if err != nil {
			t.Errorf("table %s does not exist: %v", table, err)
		} else {
			rows.Close()
		}
	}

	// Running migrations again is a no-op
	if err := store.Migrate(); err != nil {
		t.Errorf("second migrate should be a no-op: %v", err)
	}

	version, err := store.GetMigrationVersion()
	if err != nil {
		t.Fatalf("failed to get migration version: %v", err)
	}
	if version < 2 {
		t.Errorf("expected migration version >= 2, got %d", version)
	}
}

func TestSQLiteStore_NotOpened(t *testing.T) {
	store := NewSQLiteStore()

	if err := store.Migrate(); err == nil {
		t.Error("expected error migrating unopened store")
	}
	if _, err := store.CreateRun("question"); err == nil {
		t.Error("expected error creating run on unopened store")
	}
	if _, err := store.ListRuns(10); err == nil {
		t.Error("expected error listing runs on unopened store")
	}
}

// --- Run lifecycle tests ---

func TestSQLiteStore_RunLifecycle(t *testing.T) {
	tests := []struct {
		name      string
		setup     func(t *testing.T, store *SQLiteStore) *Run
		operation func(t *testing.T, store *SQLiteStore, run *Run)
	}{
		{
			name: "create run",
			setup: func(t *testing.T, store *SQLiteStore) *Run {
				run, err := store.CreateRun("What drove revenue last quarter?")
				if err != nil {
					t.Fatalf("failed to create run: %v", err)
				}
				return run
			},
			operation: func(t *testing.T, store *SQLiteStore, run *Run) {
				if run.ID == "" {
					t.Error("run ID should not be empty")
				}
				if run.Question != "What drove revenue last quarter?" {
					t.Errorf("unexpected question %q", run.Question)
				}
				if run.Status != RunStatusRunning {
					t.Errorf("expected status 'running', got %q", run.Status)
				}
				if run.StartedAt.IsZero() {
					t.Error("started_at should be set")
				}
				if run.CompletedAt != nil {
					t.Error("completed_at should be nil for a running run")
				}
			},
		},
		{
			name: "get run",
			setup: func(t *testing.T, store *SQLiteStore) *Run {
				run, err := store.CreateRun("How many active users?")
				if err != nil {
					t.Fatalf("failed to create run: %v", err)
				}
				return run
			},
			operation: func(t *testing.T, store *SQLiteStore, run *Run) {
				retrieved, err := store.GetRun(run.ID)
				if err != nil {
					t.Fatalf("failed to get run: %v", err)
				}
				if retrieved.ID != run.ID {
					t.Errorf("expected ID %q, got %q", run.ID, retrieved.ID)
				}
				if retrieved.Question != "How many active users?" {
					t.Errorf("unexpected question %q", retrieved.Question)
				}
				if len(retrieved.ApprovedRelations) != 0 {
					t.Errorf("expected no approved relations, got %v", retrieved.ApprovedRelations)
				}
			},
		},
		{
			name: "get run not found",
			setup: func(t *testing.T, store *SQLiteStore) *Run {
				return nil
			},
			operation: func(t *testing.T, store *SQLiteStore, run *Run) {
				_, err := store.GetRun("nonexistent-id")
				if err == nil {
					t.Error("expected error for nonexistent run")
				}
			},
		},
		{
			name: "complete run success",
			setup: func(t *testing.T, store *SQLiteStore) *Run {
				run, err := store.CreateRun("revenue by region")
				if err != nil {
					t.Fatalf("failed to create run: %v", err)
				}
				return run
			},
			operation: func(t *testing.T, store *SQLiteStore, run *Run) {
				approved := []string{"analytics.orders", "analytics.regions"}
				err := store.CompleteRun(run.ID, RunStatusSuccess, "SELECT region, SUM(total) FROM analytics.orders GROUP BY region", "", approved)
				if err != nil {
					t.Fatalf("failed to complete run: %v", err)
				}

				retrieved, err := store.GetRun(run.ID)
				if err != nil {
					t.Fatalf("failed to get completed run: %v", err)
				}
				if retrieved.Status != RunStatusSuccess {
					t.Errorf("expected status 'success', got %q", retrieved.Status)
				}
				if retrieved.SQL == "" {
					t.Error("expected SQL to be recorded")
				}
				if retrieved.Error != "" {
					t.Errorf("expected no error, got %q", retrieved.Error)
				}
				if len(retrieved.ApprovedRelations) != 2 || retrieved.ApprovedRelations[0] != "analytics.orders" {
					t.Errorf("unexpected approved relations %v", retrieved.ApprovedRelations)
				}
				if retrieved.CompletedAt == nil {
					t.Error("completed_at should be set")
				}
			},
		},
		{
			name: "complete run failed",
			setup: func(t *testing.T, store *SQLiteStore) *Run {
				run, err := store.CreateRun("broken question")
				if err != nil {
					t.Fatalf("failed to create run: %v", err)
				}
				return run
			},
			operation: func(t *testing.T, store *SQLiteStore, run *Run) {
				err := store.CompleteRun(run.ID, RunStatusFailed, "", "query execution failed: table not found", nil)
				if err != nil {
					t.Fatalf("failed to complete run: %v", err)
				}

				retrieved, err := store.GetRun(run.ID)
				if err != nil {
					t.Fatalf("failed to get failed run: %v", err)
				}
				if retrieved.Status != RunStatusFailed {
					t.Errorf("expected status 'failed', got %q", retrieved.Status)
				}
				if retrieved.Error == "" {
					t.Error("expected error message to be recorded")
				}
				if retrieved.SQL != "" {
					t.Errorf("expected no SQL, got %q", retrieved.SQL)
				}
			},
		},
		{
			name: "complete run not found",
			setup: func(t *testing.T, store *SQLiteStore) *Run {
				return nil
			},
			operation: func(t *testing.T, store *SQLiteStore, run *Run) {
				err := store.CompleteRun("nonexistent-id", RunStatusSuccess, "", "", nil)
				if err == nil {
					t.Error("expected error completing nonexistent run")
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := setupTestStore(t)
			run := tt.setup(t, store)
			tt.operation(t, store, run)
		})
	}
}

func TestSQLiteStore_ListRuns(t *testing.T) {
	store := setupTestStore(t)

	var ids []string
	for _, q := range []string{"first", "second", "third"} {
		run, err := store.CreateRun(q)
		if err != nil {
			t.Fatalf("failed to create run: %v", err)
		}
		ids = append(ids, run.ID)
		// Keep started_at strictly increasing.
		time.Sleep(2 * time.Millisecond)
	}

	runs, err := store.ListRuns(2)
	if err != nil {
		t.Fatalf("failed to list runs: %v", err)
	}
	if len(runs) != 2 {
		t.Fatalf("expected 2 runs, got %d", len(runs))
	}
	if runs[0].ID != ids[2] {
		t.Errorf("expected newest run first, got %q", runs[0].Question)
	}
	if runs[1].ID != ids[1] {
		t.Errorf("expected second-newest run next, got %q", runs[1].Question)
	}

	all, err := store.ListRuns(0)
	if err != nil {
		t.Fatalf("failed to list runs with default limit: %v", err)
	}
	if len(all) != 3 {
		t.Errorf("expected 3 runs with default limit, got %d", len(all))
	}
}

// --- Iteration tests ---

func TestSQLiteStore_Iterations(t *testing.T) {
	store := setupTestStore(t)

	run, err := store.CreateRun("sessions per day")
	if err != nil {
		t.Fatalf("failed to create run: %v", err)
	}

	records := []IterationRecord{
		{Depth: 0, CandidateCount: 3, Verdict: "INSUFFICIENT", Reasoning: "need session sources"},
		{Depth: 1, CandidateCount: 7, Verdict: "INSUFFICIENT", Reasoning: "still missing raw events"},
		{Depth: 2, CandidateCount: 12, Verdict: "SUFFICIENT", Reasoning: "raw.events covers it"},
	}

	// Insert out of order to prove reads sort by sequence.
	for _, seq := range []int{1, 0, 2} {
		if err := store.RecordIteration(run.ID, seq, records[seq]); err != nil {
			t.Fatalf("failed to record iteration %d: %v", seq, err)
		}
	}

	got, err := store.GetIterations(run.ID)
	if err != nil {
		t.Fatalf("failed to get iterations: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("expected 3 iterations, got %d", len(got))
	}
	for i, rec := range records {
		if got[i] != rec {
			t.Errorf("iteration %d: expected %+v, got %+v", i, rec, got[i])
		}
	}
}

func TestSQLiteStore_IterationsUnknownRun(t *testing.T) {
	store := setupTestStore(t)

	got, err := store.GetIterations("nonexistent-id")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("expected no iterations, got %d", len(got))
	}

	// Foreign keys are on: recording against a missing run must fail.
	err = store.RecordIteration("nonexistent-id", 0, IterationRecord{Verdict: "SUFFICIENT"})
	if err == nil {
		t.Error("expected foreign key error for unknown run")
	}
}
