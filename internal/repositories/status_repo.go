package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/prudhvinik1/robotrelay/internal/models"
)

const statusSchema = `
CREATE TABLE IF NOT EXISTS sync_status (
    id              INTEGER PRIMARY KEY CHECK (id = 1),
    last_attempt_at TEXT,
    last_sync_at    TEXT,
    success         INTEGER NOT NULL DEFAULT 0,
    rows_synced     INTEGER NOT NULL DEFAULT 0,
    total_synced    INTEGER NOT NULL DEFAULT 0,
    pending         INTEGER NOT NULL DEFAULT 0,
    reason          TEXT NOT NULL DEFAULT ''
);
`

// SQLiteSyncStatusRepository keeps the single most recent sync outcome next to the samples,
// so it survives restarts and operator tooling can read it from the same file.
type SQLiteSyncStatusRepository struct {
	db *sql.DB
}

func NewSQLiteSyncStatusRepository(db *sql.DB) *SQLiteSyncStatusRepository {
	return &SQLiteSyncStatusRepository{db: db}
}

func (r *SQLiteSyncStatusRepository) Init(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, statusSchema); err != nil {
		return fmt.Errorf("failed to create sync_status table: %w", err)
	}
	return nil
}

// Get returns the persisted status, or the zero "never synced" status when none exists.
func (r *SQLiteSyncStatusRepository) Get(ctx context.Context) (models.SyncStatus, error) {
	query := `SELECT last_attempt_at, last_sync_at, success, rows_synced, total_synced, pending, reason
	          FROM sync_status WHERE id = 1`

	var (
		status        models.SyncStatus
		lastAttemptAt sql.NullString
		lastSyncAt    sql.NullString
	)
	err := r.db.QueryRowContext(ctx, query).Scan(
		&lastAttemptAt,
		&lastSyncAt,
		&status.Success,
		&status.RowsSynced,
		&status.TotalSynced,
		&status.Pending,
		&status.Reason,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return models.SyncStatus{}, nil
	}
	if err != nil {
		return models.SyncStatus{}, fmt.Errorf("failed to get sync status: %w", err)
	}

	if status.LastAttemptAt, err = parseTime(lastAttemptAt); err != nil {
		return models.SyncStatus{}, err
	}
	if status.LastSyncAt, err = parseTime(lastSyncAt); err != nil {
		return models.SyncStatus{}, err
	}
	return status, nil
}

// Save overwrites the persisted status.
func (r *SQLiteSyncStatusRepository) Save(ctx context.Context, status models.SyncStatus) error {
	query := `INSERT INTO sync_status (id, last_attempt_at, last_sync_at, success, rows_synced, total_synced, pending, reason)
	          VALUES (1, ?, ?, ?, ?, ?, ?, ?)
	          ON CONFLICT (id) DO UPDATE SET
	              last_attempt_at = excluded.last_attempt_at,
	              last_sync_at    = excluded.last_sync_at,
	              success         = excluded.success,
	              rows_synced     = excluded.rows_synced,
	              total_synced    = excluded.total_synced,
	              pending         = excluded.pending,
	              reason          = excluded.reason`

	_, err := r.db.ExecContext(ctx, query,
		formatTime(status.LastAttemptAt),
		formatTime(status.LastSyncAt),
		status.Success,
		status.RowsSynced,
		status.TotalSynced,
		status.Pending,
		status.Reason,
	)
	if err != nil {
		return fmt.Errorf("failed to save sync status: %w", err)
	}
	return nil
}

func formatTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s sql.NullString) (*time.Time, error) {
	if !s.Valid || s.String == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339Nano, s.String)
	if err != nil {
		return nil, fmt.Errorf("failed to parse sync status time: %w", err)
	}
	return &t, nil
}
