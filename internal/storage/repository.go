package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"rapport/internal/ledger"

	_ "modernc.org/sqlite"
)

// ErrNotFound is returned when a row id does not exist.
var ErrNotFound = errors.New("ledger row not found")

// Sync states of a stored row.
const (
	SyncPending = "pending"
	SyncSynced  = "synced"
	SyncError   = "error"
)

// MaxSyncAttempts bounds how often a failing row is retried by the sweep.
const MaxSyncAttempts = 5

// SQLiteRepository is an append-only local ledger. Every row also carries
// its sync state towards the remote spreadsheet.
type SQLiteRepository struct {
	db  *sql.DB
	now func() time.Time
}

var _ ledger.Ledger = (*SQLiteRepository)(nil)

// StoredRow is a ledger row as persisted locally.
type StoredRow struct {
	ID             int64
	DocumentNumber string
	Cells          []string
	CreatedAt      time.Time
	SyncStatus     string
	SyncAttempts   int
}

// PendingRow is the minimal data needed to enqueue a sync message.
type PendingRow struct {
	ID        int64
	CreatedAt time.Time
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// One writer at a time; sqlite would answer SQLITE_BUSY otherwise.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	repo := &SQLiteRepository{db: db, now: time.Now}
	if _, err := repo.EnsureHeaders(context.Background(), ledger.DefaultHeaders); err != nil {
		db.Close()
		return nil, err
	}
	return repo, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// Ping reports whether the database is reachable.
func (r *SQLiteRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// EnsureHeaders stores headers when none are present.
func (r *SQLiteRepository) EnsureHeaders(ctx context.Context, headers []string) (bool, error) {
	var n int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM ledger_headers`).Scan(&n); err != nil {
		return false, fmt.Errorf("count headers: %w", err)
	}
	if n > 0 {
		return false, nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()
	for i, h := range headers {
		if _, err := tx.ExecContext(ctx, `INSERT INTO ledger_headers (position, name) VALUES (?, ?)`, i, h); err != nil {
			return false, fmt.Errorf("insert header %q: %w", h, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("commit headers: %w", err)
	}
	return true, nil
}

// Headers returns the stored header row.
func (r *SQLiteRepository) Headers(ctx context.Context) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT name FROM ledger_headers ORDER BY position`)
	if err != nil {
		return nil, fmt.Errorf("query headers: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scan header: %w", err)
		}
		out = append(out, name)
	}
	return out, rows.Err()
}

// AllRows implements ledger.Reader: headers first, then rows in insertion order.
func (r *SQLiteRepository) AllRows(ctx context.Context) ([][]string, error) {
	headers, err := r.Headers(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ledger.ErrUnavailable, err)
	}

	rows, err := r.db.QueryContext(ctx, `SELECT cells FROM ledger_rows ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("%w: query rows: %v", ledger.ErrUnavailable, err)
	}
	defer rows.Close()

	out := [][]string{headers}
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		cells, err := decodeCells(raw)
		if err != nil {
			return nil, err
		}
		out = append(out, cells)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: iterate rows: %v", ledger.ErrUnavailable, err)
	}
	return out, nil
}

// AppendRow implements ledger.Appender.
func (r *SQLiteRepository) AppendRow(ctx context.Context, cells []string) error {
	_, err := r.InsertRow(ctx, cells)
	return err
}

// InsertRow stores one row as pending sync and returns its id.
func (r *SQLiteRepository) InsertRow(ctx context.Context, cells []string) (int64, error) {
	if len(cells) == 0 {
		return 0, errors.New("empty row")
	}
	raw, err := json.Marshal(cells)
	if err != nil {
		return 0, fmt.Errorf("encode cells: %w", err)
	}
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO ledger_rows (document_number, cells, created_at, sync_status) VALUES (?, ?, ?, ?)`,
		strings.TrimSpace(cells[0]), string(raw), r.now().Unix(), SyncPending)
	if err != nil {
		return 0, fmt.Errorf("insert ledger row: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("last insert id: %w", err)
	}

	slog.InfoContext(ctx, "Ledger row saved to SQLite",
		"id", id,
		"document_number", cells[0])
	return id, nil
}

// GetRow retrieves a single row by id.
func (r *SQLiteRepository) GetRow(ctx context.Context, id int64) (*StoredRow, error) {
	var (
		row     StoredRow
		raw     string
		created int64
	)
	err := r.db.QueryRowContext(ctx,
		`SELECT id, document_number, cells, created_at, sync_status, sync_attempts FROM ledger_rows WHERE id = ?`, id).
		Scan(&row.ID, &row.DocumentNumber, &raw, &created, &row.SyncStatus, &row.SyncAttempts)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: id %d", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("get ledger row: %w", err)
	}
	if row.Cells, err = decodeCells(raw); err != nil {
		return nil, err
	}
	row.CreatedAt = time.Unix(created, 0)
	return &row, nil
}

// PendingSync returns rows not yet synced, including failed rows that have
// attempts left, oldest first.
func (r *SQLiteRepository) PendingSync(ctx context.Context, limit int) ([]PendingRow, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, created_at FROM ledger_rows
		 WHERE sync_status = ? OR (sync_status = ? AND sync_attempts < ?)
		 ORDER BY id LIMIT ?`,
		SyncPending, SyncError, MaxSyncAttempts, limit)
	if err != nil {
		return nil, fmt.Errorf("query pending rows: %w", err)
	}
	defer rows.Close()

	var out []PendingRow
	for rows.Next() {
		var (
			p       PendingRow
			created int64
		)
		if err := rows.Scan(&p.ID, &created); err != nil {
			return nil, fmt.Errorf("scan pending row: %w", err)
		}
		p.CreatedAt = time.Unix(created, 0)
		out = append(out, p)
	}
	return out, rows.Err()
}

// MarkSynced marks a row as successfully written to the remote ledger.
func (r *SQLiteRepository) MarkSynced(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE ledger_rows SET sync_status = ?, synced_at = ? WHERE id = ?`,
		SyncSynced, r.now().Unix(), id)
	if err != nil {
		return fmt.Errorf("mark row synced: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: id %d", ErrNotFound, id)
	}

	slog.InfoContext(ctx, "Ledger row marked as synced", "id", id)
	return nil
}

// MarkSyncError records a failed sync attempt.
func (r *SQLiteRepository) MarkSyncError(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE ledger_rows SET sync_status = ?, sync_attempts = sync_attempts + 1 WHERE id = ? AND sync_status <> ?`,
		SyncError, id, SyncSynced)
	if err != nil {
		return fmt.Errorf("mark row sync error: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: id %d", ErrNotFound, id)
	}

	slog.WarnContext(ctx, "Ledger row marked with sync error", "id", id)
	return nil
}

// SyncCounts returns the number of rows per sync state.
func (r *SQLiteRepository) SyncCounts(ctx context.Context) (map[string]int, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT sync_status, COUNT(*) FROM ledger_rows GROUP BY sync_status`)
	if err != nil {
		return nil, fmt.Errorf("count sync states: %w", err)
	}
	defer rows.Close()

	out := map[string]int{SyncPending: 0, SyncSynced: 0, SyncError: 0}
	for rows.Next() {
		var (
			status string
			n      int
		)
		if err := rows.Scan(&status, &n); err != nil {
			return nil, fmt.Errorf("scan sync count: %w", err)
		}
		out[status] = n
	}
	return out, rows.Err()
}

func decodeCells(raw string) ([]string, error) {
	var cells []string
	if err := json.Unmarshal([]byte(raw), &cells); err != nil {
		return nil, fmt.Errorf("decode cells: %w", err)
	}
	return cells, nil
}
