package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"rapport/internal/ledger"
)

func newTestRepo(t *testing.T) *SQLiteRepository {
	t.Helper()
	repo, err := NewSQLiteRepository(filepath.Join(t.TempDir(), "data", "rapport.db"))
	if err != nil {
		t.Fatalf("open repository: %v", err)
	}
	t.Cleanup(func() { repo.Close() })
	return repo
}

func TestRepository_AllRowsStartsWithHeaders(t *testing.T) {
	repo := newTestRepo(t)
	rows, err := repo.AllRows(context.Background())
	if err != nil {
		t.Fatalf("all rows: %v", err)
	}
	if len(rows) != 1 || len(rows[0]) != len(ledger.DefaultHeaders) || rows[0][0] != "Document Number" {
		t.Fatalf("expected only default headers, got %v", rows)
	}

	wrote, err := repo.EnsureHeaders(context.Background(), []string{"other"})
	if err != nil || wrote {
		t.Fatalf("headers must not be rewritten: wrote=%v err=%v", wrote, err)
	}
}

func TestRepository_AppendAndGet(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	cells := []string{"B-2025-06-01", "01.06.2025", "Meyer", "Heizung", "100,00", "19,00", "119,00", "10000"}
	id, err := repo.InsertRow(ctx, cells)
	if err != nil {
		t.Fatalf("insert: %v", err)
	}
	if err := repo.AppendRow(ctx, []string{"B-2025-06-02", "02.06.2025"}); err != nil {
		t.Fatalf("append: %v", err)
	}

	rows, err := repo.AllRows(ctx)
	if err != nil {
		t.Fatalf("all rows: %v", err)
	}
	if len(rows) != 3 || rows[1][6] != "119,00" || len(rows[2]) != 2 {
		t.Fatalf("unexpected rows: %v", rows)
	}

	got, err := repo.GetRow(ctx, id)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.DocumentNumber != "B-2025-06-01" || got.SyncStatus != SyncPending || len(got.Cells) != 8 {
		t.Fatalf("unexpected stored row: %+v", got)
	}

	if _, err := repo.GetRow(ctx, 999); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := repo.AppendRow(ctx, nil); err == nil {
		t.Fatalf("expected error for empty row")
	}
}

func TestRepository_SyncLifecycle(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	a, _ := repo.InsertRow(ctx, []string{"B-2025-06-01"})
	b, _ := repo.InsertRow(ctx, []string{"B-2025-06-02"})

	pending, err := repo.PendingSync(ctx, 10)
	if err != nil || len(pending) != 2 || pending[0].ID != a {
		t.Fatalf("unexpected pending: %v err=%v", pending, err)
	}

	if err := repo.MarkSynced(ctx, a); err != nil {
		t.Fatalf("mark synced: %v", err)
	}
	if err := repo.MarkSyncError(ctx, a); !errors.Is(err, ErrNotFound) {
		t.Fatalf("synced rows must not flip back to error, got %v", err)
	}

	for i := 0; i < MaxSyncAttempts; i++ {
		pending, _ = repo.PendingSync(ctx, 10)
		if len(pending) != 1 || pending[0].ID != b {
			t.Fatalf("attempt %d: expected row %d pending, got %v", i, b, pending)
		}
		if err := repo.MarkSyncError(ctx, b); err != nil {
			t.Fatalf("mark error: %v", err)
		}
	}
	pending, _ = repo.PendingSync(ctx, 10)
	if len(pending) != 0 {
		t.Fatalf("row should be given up after %d attempts, got %v", MaxSyncAttempts, pending)
	}

	counts, err := repo.SyncCounts(ctx)
	if err != nil {
		t.Fatalf("counts: %v", err)
	}
	if counts[SyncSynced] != 1 || counts[SyncError] != 1 || counts[SyncPending] != 0 {
		t.Fatalf("unexpected counts: %v", counts)
	}

	if err := repo.MarkSynced(ctx, 42); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestRunMigrations_Idempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "m.db")
	if err := RunMigrations(path); err != nil {
		t.Fatalf("first run: %v", err)
	}
	if err := RunMigrations(path); err != nil {
		t.Fatalf("second run: %v", err)
	}
}
