package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/prudhvinik1/robotrelay/internal/models"
)

const sourceSchema = `
CREATE TABLE IF NOT EXISTS relay_source (
    singleton  INTEGER PRIMARY KEY CHECK (singleton = 1),
    id         TEXT NOT NULL,
    name       TEXT NOT NULL,
    created_at TEXT NOT NULL
);
`

type SQLiteSourceRepository struct {
	db *sql.DB
}

func NewSQLiteSourceRepository(db *sql.DB) *SQLiteSourceRepository {
	return &SQLiteSourceRepository{db: db}
}

func (r *SQLiteSourceRepository) Init(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, sourceSchema); err != nil {
		return fmt.Errorf("failed to create relay_source table: %w", err)
	}
	return nil
}

// Get returns the registered source, or ErrNotFound on a fresh database.
func (r *SQLiteSourceRepository) Get(ctx context.Context) (*models.Source, error) {
	query := `SELECT id, name, created_at FROM relay_source WHERE singleton = 1`

	var (
		source    models.Source
		id        string
		createdAt string
	)
	err := r.db.QueryRowContext(ctx, query).Scan(&id, &source.Name, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get source: %w", err)
	}

	if source.ID, err = uuid.Parse(id); err != nil {
		return nil, fmt.Errorf("failed to parse source id: %w", err)
	}
	if source.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt); err != nil {
		return nil, fmt.Errorf("failed to parse source created_at: %w", err)
	}
	return &source, nil
}

// GetOrCreate returns the registered source, registering a new one named name on first use.
// The identity is stable for the life of the database file.
func (r *SQLiteSourceRepository) GetOrCreate(ctx context.Context, name string) (*models.Source, error) {
	source, err := r.Get(ctx)
	if err == nil {
		return source, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	now := time.Now().UTC()
	query := `INSERT INTO relay_source (singleton, id, name, created_at)
	          VALUES (1, ?, ?, ?)
	          ON CONFLICT (singleton) DO NOTHING`
	if _, err := r.db.ExecContext(ctx, query, uuid.New().String(), name, now.Format(time.RFC3339Nano)); err != nil {
		return nil, fmt.Errorf("failed to register source: %w", err)
	}

	// Re-read so a concurrent registration wins consistently.
	return r.Get(ctx)
}
