package repositories

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/prudhvinik1/robotrelay/internal/database"
	"github.com/prudhvinik1/robotrelay/internal/models"
	"github.com/stretchr/testify/require"
)

// Helper functions for test setup

// openTestDB opens (or reopens) a SQLite file at path with both tables initialized.
func openTestDB(t *testing.T, path string) *sql.DB {
	db, err := database.NewSQLiteDB(path)
	require.NoError(t, err, "Failed to open test database")

	ctx := context.Background()
	require.NoError(t, NewSQLiteSampleRepository(db).Init(ctx))
	require.NoError(t, NewSQLiteSyncStatusRepository(db).Init(ctx))
	return db
}

// newTestDB returns a fresh database in the test's temp dir, closed on cleanup.
func newTestDB(t *testing.T) (*sql.DB, string) {
	path := filepath.Join(t.TempDir(), "telemetry.db")
	db := openTestDB(t, path)
	t.Cleanup(func() { db.Close() })
	return db, path
}

func ptr[T any](v T) *T {
	return &v
}

func sampleAt(ts string) *models.SensorSample {
	return &models.SensorSample{
		Timestamp:    ts,
		UltrasonicCM: ptr(12.5),
		IRLeft:       ptr(0),
		IRCenter:     ptr(1),
		IRRight:      ptr(0),
		LineState:    ptr("center"),
	}
}
