package metrics

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"meal-planner/internal/database"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	db, err := database.NewDB(filepath.Join(t.TempDir(), "metrics.db"))
	if err != nil {
		t.Fatalf("Failed to open database: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return NewStore(db.SQL)
}

func TestStore(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	now := time.Now().UTC()

	runs := []SyncMetric{
		{Outcome: OutcomeCommitted, Attempts: 1, ItemCount: 3, SnapshotVersion: 1, LatencyMS: 40, Timestamp: now.Add(-2 * time.Minute)},
		{Outcome: OutcomeUnavailable, Attempts: 4, LatencyMS: 200, Error: "connection refused", Timestamp: now.Add(-time.Minute)},
		{Outcome: OutcomeUnchanged, Attempts: 1, ItemCount: 3, SnapshotVersion: 1, LatencyMS: 30, Timestamp: now},
		{Outcome: OutcomeCommitted, Attempts: 1, ItemCount: 2, SnapshotVersion: 1, LatencyMS: 10, Timestamp: now.AddDate(0, 0, -40)},
	}
	for _, m := range runs {
		if err := store.RecordSync(ctx, m); err != nil {
			t.Fatalf("RecordSync failed: %v", err)
		}
	}

	t.Run("LastSync", func(t *testing.T) {
		last, err := store.LastSync(ctx)
		if err != nil {
			t.Fatalf("LastSync failed: %v", err)
		}
		if last.Outcome != OutcomeUnchanged {
			t.Errorf("Expected last outcome %q, got %q", OutcomeUnchanged, last.Outcome)
		}
	})

	t.Run("GetDailySyncs", func(t *testing.T) {
		days, err := store.GetDailySyncs(ctx, 7)
		if err != nil {
			t.Fatalf("GetDailySyncs failed: %v", err)
		}
		var total, failed, attempts int
		for _, d := range days {
			total += d.Total
			failed += d.Failed
			attempts += d.TotalAttempts
		}
		if total != 3 || failed != 1 || attempts != 6 {
			t.Errorf("Expected 3 runs, 1 failure, 6 attempts; got %d, %d, %d", total, failed, attempts)
		}
	})

	t.Run("Cleanup", func(t *testing.T) {
		removed, err := store.Cleanup(ctx, 30)
		if err != nil {
			t.Fatalf("Cleanup failed: %v", err)
		}
		if removed != 1 {
			t.Errorf("Expected 1 old record removed, got %d", removed)
		}
	})
}

func TestGetSysHealth(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "a.json"), make([]byte, 2048), 0644); err != nil {
		t.Fatal(err)
	}

	h := GetSysHealth(dir)
	if h.DataDiskBytes != 2048 {
		t.Errorf("Expected 2048 bytes, got %d", h.DataDiskBytes)
	}
	if h.DataDiskSize != "2.0 KB" {
		t.Errorf("Expected '2.0 KB', got %q", h.DataDiskSize)
	}
	if h.Goroutines < 1 {
		t.Errorf("Expected at least one goroutine, got %d", h.Goroutines)
	}
}
