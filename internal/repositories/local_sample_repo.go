package repositories

import (
	"context"
	"database/sql"
	"fmt"
	"iter"

	"github.com/prudhvinik1/robotrelay/internal/models"
)

const localSchema = `
CREATE TABLE IF NOT EXISTS sensor_data (
    id            INTEGER PRIMARY KEY AUTOINCREMENT,
    timestamp     TEXT NOT NULL,
    ultrasonic_cm REAL,
    ir_left       INTEGER,
    ir_center     INTEGER,
    ir_right      INTEGER,
    line_state    TEXT,
    synced        INTEGER NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS idx_sensor_data_timestamp ON sensor_data(timestamp);
CREATE INDEX IF NOT EXISTS idx_sensor_data_unsynced ON sensor_data(synced, timestamp);
`

const sampleColumns = `id, timestamp, ultrasonic_cm, ir_left, ir_center, ir_right, line_state, synced`

// SQLiteSampleRepository is the on-device append-only log of every ingested sample.
// Rows are never deleted and synced only ever goes from 0 to 1.
type SQLiteSampleRepository struct {
	db *sql.DB
}

func NewSQLiteSampleRepository(db *sql.DB) *SQLiteSampleRepository {
	return &SQLiteSampleRepository{db: db}
}

// Init creates the sample table if it does not exist. Safe to call on every start.
func (r *SQLiteSampleRepository) Init(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, localSchema); err != nil {
		return fmt.Errorf("failed to create sensor_data table: %w", err)
	}
	return nil
}

func (r *SQLiteSampleRepository) Insert(ctx context.Context, sample *models.SensorSample) (int64, error) {
	query := `INSERT INTO sensor_data (timestamp, ultrasonic_cm, ir_left, ir_center, ir_right, line_state, synced)
	          VALUES (?, ?, ?, ?, ?, ?, 0)`

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin insert: %w", err)
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx, query,
		sample.Timestamp,
		nullable(sample.UltrasonicCM),
		nullable(sample.IRLeft),
		nullable(sample.IRCenter),
		nullable(sample.IRRight),
		nullable(sample.LineState),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to insert sample: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to read sample id: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit sample: %w", err)
	}

	sample.ID = id
	sample.Synced = false
	return id, nil
}

// Unsynced yields unsynced samples oldest first. The sequence holds an open cursor
// and can be ranged over once; query again to retry.
func (r *SQLiteSampleRepository) Unsynced(ctx context.Context) iter.Seq2[*models.SensorSample, error] {
	return func(yield func(*models.SensorSample, error) bool) {
		query := `SELECT ` + sampleColumns + `
		          FROM sensor_data
		          WHERE synced = 0
		          ORDER BY timestamp ASC, id ASC`

		rows, err := r.db.QueryContext(ctx, query)
		if err != nil {
			yield(nil, fmt.Errorf("failed to query unsynced samples: %w", err))
			return
		}
		defer rows.Close()

		for rows.Next() {
			sample, err := scanSample(rows)
			if err != nil {
				yield(nil, err)
				return
			}
			if !yield(sample, nil) {
				return
			}
		}

		if err := rows.Err(); err != nil {
			yield(nil, fmt.Errorf("error iterating unsynced samples: %w", err))
		}
	}
}

// MarkSynced flags every id in one transaction: all are marked or none are.
func (r *SQLiteSampleRepository) MarkSynced(ctx context.Context, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin mark synced: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `UPDATE sensor_data SET synced = 1 WHERE id = ? AND synced = 0`)
	if err != nil {
		return fmt.Errorf("failed to prepare mark synced: %w", err)
	}
	defer stmt.Close()

	for _, id := range ids {
		if _, err := stmt.ExecContext(ctx, id); err != nil {
			return fmt.Errorf("failed to mark sample %d synced: %w", id, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit mark synced: %w", err)
	}
	return nil
}

func (r *SQLiteSampleRepository) Query(ctx context.Context, filter models.DateFilter) ([]*models.SensorSample, error) {
	query := `SELECT ` + sampleColumns + ` FROM sensor_data`
	var args []any
	if !filter.IsZero() {
		query += ` WHERE substr(timestamp, 1, 10) = ?`
		args = append(args, filter.Date())
	}
	query += ` ORDER BY timestamp ASC, id ASC`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query samples: %w", err)
	}
	defer rows.Close()

	samples := []*models.SensorSample{}
	for rows.Next() {
		sample, err := scanSample(rows)
		if err != nil {
			return nil, err
		}
		samples = append(samples, sample)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating samples: %w", err)
	}

	return samples, nil
}

func (r *SQLiteSampleRepository) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM sensor_data`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count samples: %w", err)
	}
	return n, nil
}

func (r *SQLiteSampleRepository) CountUnsynced(ctx context.Context) (int64, error) {
	var n int64
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM sensor_data WHERE synced = 0`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count unsynced samples: %w", err)
	}
	return n, nil
}

func scanSample(rows *sql.Rows) (*models.SensorSample, error) {
	var sample models.SensorSample
	err := rows.Scan(
		&sample.ID,
		&sample.Timestamp,
		&sample.UltrasonicCM,
		&sample.IRLeft,
		&sample.IRCenter,
		&sample.IRRight,
		&sample.LineState,
		&sample.Synced,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to scan sample: %w", err)
	}
	return &sample, nil
}

// nullable turns an optional field into a driver argument, nil meaning SQL NULL.
func nullable[T any](p *T) any {
	if p == nil {
		return nil
	}
	return *p
}
