package repositories

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prudhvinik1/robotrelay/internal/database"
	"github.com/prudhvinik1/robotrelay/internal/models"
)

const (
	cloudConnectRetries = 2
	defaultCloudTimeout = 5 * time.Second
)

const cloudSchema = `CREATE TABLE IF NOT EXISTS sensor_data (
    id            BIGSERIAL PRIMARY KEY,
    timestamp     TEXT NOT NULL,
    ultrasonic_cm DOUBLE PRECISION,
    ir_left       INTEGER,
    ir_center     INTEGER,
    ir_right      INTEGER,
    line_state    TEXT,
    source_id     UUID,
    received_at   TIMESTAMPTZ NOT NULL DEFAULT NOW()
)`

// The unique index is what makes replayed batches harmless; it is created separately so
// tables that predate this service pick it up too. It covers timestamp only, so one table
// holds one relay's samples; source_id records origin but is not part of the key.
const cloudTimestampIndex = `CREATE UNIQUE INDEX IF NOT EXISTS sensor_data_timestamp_key ON sensor_data (timestamp)`

// CloudSampleStore opens short-lived sessions against the shared Postgres table.
type CloudSampleStore struct {
	databaseURL string
	timeout     time.Duration
	sourceID    uuid.UUID
}

// NewCloudSampleStore returns a store for databaseURL. An empty URL yields a store whose
// Connect always fails with ErrCloudNotConfigured. sourceID tags every row this process writes.
func NewCloudSampleStore(databaseURL string, timeout time.Duration, sourceID uuid.UUID) *CloudSampleStore {
	if timeout <= 0 {
		timeout = defaultCloudTimeout
	}
	return &CloudSampleStore{databaseURL: databaseURL, timeout: timeout, sourceID: sourceID}
}

func (s *CloudSampleStore) Configured() bool {
	return s.databaseURL != ""
}

// Connect dials the cloud store, retrying briefly within the configured timeout, and makes
// sure the sample table exists. The caller must Close the returned connection.
func (s *CloudSampleStore) Connect(ctx context.Context) (CloudConnection, error) {
	if !s.Configured() {
		return nil, ErrCloudNotConfigured
	}
	if _, err := pgxpool.ParseConfig(s.databaseURL); err != nil {
		return nil, fmt.Errorf("invalid cloud database URL: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 250 * time.Millisecond
	bo.MaxElapsedTime = s.timeout

	var pool *pgxpool.Pool
	err := backoff.Retry(func() error {
		p, err := database.NewPostgresPool(ctx, s.databaseURL, s.timeout)
		if err != nil {
			return err
		}
		pool = p
		return nil
	}, backoff.WithContext(backoff.WithMaxRetries(bo, cloudConnectRetries), ctx))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to cloud database: %w", err)
	}

	if _, err := pool.Exec(ctx, cloudSchema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ensure cloud schema: %w", err)
	}
	if _, err := pool.Exec(ctx, cloudTimestampIndex); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ensure cloud timestamp index: %w", err)
	}

	return &CloudConn{pool: pool, sourceID: s.sourceID}, nil
}

// Query reads from the cloud store over a connection that lives only for this call.
func (s *CloudSampleStore) Query(ctx context.Context, filter models.DateFilter) ([]*models.SensorSample, error) {
	conn, err := s.Connect(ctx)
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	return conn.ReadAll(ctx, filter)
}

// CloudConn is one open session; see CloudSampleStore.Connect.
type CloudConn struct {
	pool     *pgxpool.Pool
	sourceID uuid.UUID
}

// WriteBatch inserts samples in a single transaction. Rows whose timestamp already exists
// remotely are skipped, so resending a batch after a crash never duplicates them. Any error
// rolls back the whole batch.
func (c *CloudConn) WriteBatch(ctx context.Context, samples []*models.SensorSample) error {
	if len(samples) == 0 {
		return nil
	}

	query := `INSERT INTO sensor_data (timestamp, ultrasonic_cm, ir_left, ir_center, ir_right, line_state, source_id)
	          VALUES ($1, $2, $3, $4, $5, $6, $7)
	          ON CONFLICT (timestamp) DO NOTHING`

	err := pgx.BeginFunc(ctx, c.pool, func(tx pgx.Tx) error {
		batch := &pgx.Batch{}
		for _, sample := range samples {
			batch.Queue(query,
				sample.Timestamp,
				sample.UltrasonicCM,
				sample.IRLeft,
				sample.IRCenter,
				sample.IRRight,
				sample.LineState,
				c.sourceID,
			)
		}

		results := tx.SendBatch(ctx, batch)
		for i := range samples {
			if _, err := results.Exec(); err != nil {
				results.Close()
				return fmt.Errorf("failed to insert sample %s: %w", samples[i].Timestamp, err)
			}
		}
		return results.Close()
	})
	if err != nil {
		return fmt.Errorf("failed to write batch: %w", err)
	}
	return nil
}

func (c *CloudConn) ReadAll(ctx context.Context, filter models.DateFilter) ([]*models.SensorSample, error) {
	query := `SELECT timestamp, ultrasonic_cm, ir_left, ir_center, ir_right, line_state
	          FROM sensor_data`
	var args []any
	if !filter.IsZero() {
		query += ` WHERE substr(timestamp, 1, 10) = $1`
		args = append(args, filter.Date())
	}
	query += ` ORDER BY timestamp ASC`

	rows, err := c.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query cloud samples: %w", err)
	}
	defer rows.Close()

	samples := []*models.SensorSample{}
	for rows.Next() {
		sample := models.SensorSample{Synced: true}
		err := rows.Scan(
			&sample.Timestamp,
			&sample.UltrasonicCM,
			&sample.IRLeft,
			&sample.IRCenter,
			&sample.IRRight,
			&sample.LineState,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan cloud sample: %w", err)
		}
		samples = append(samples, &sample)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating cloud samples: %w", err)
	}

	return samples, nil
}

// CountByTimestamp reports how many remote rows carry timestamp. Used to check replays.
func (c *CloudConn) CountByTimestamp(ctx context.Context, timestamp string) (int, error) {
	var n int
	err := c.pool.QueryRow(ctx, `SELECT COUNT(*) FROM sensor_data WHERE timestamp = $1`, timestamp).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count cloud samples: %w", err)
	}
	return n, nil
}

func (c *CloudConn) Close() {
	c.pool.Close()
}
