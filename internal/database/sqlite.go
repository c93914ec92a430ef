package database

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	// pure Go SQLite driver, registers as "sqlite"
	_ "modernc.org/sqlite"
)

const (
	SQLiteBusyTimeoutMs = 5000
	SQLiteMaxConns      = 4
)

// NewSQLiteDB opens the on-device database file, creating its directory if needed.
// WAL mode lets readers proceed while the single writer holds the lock, and
// immediate transactions take the write lock up front instead of failing on upgrade.
func NewSQLiteDB(path string) (*sql.DB, error) {
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("error creating database directory: %w", err)
		}
	}

	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(%d)&_pragma=journal_mode(WAL)&_pragma=synchronous(FULL)&_txlock=immediate",
		path, SQLiteBusyTimeoutMs)

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("error opening sqlite database: %w", err)
	}
	db.SetMaxOpenConns(SQLiteMaxConns)
	db.SetMaxIdleConns(SQLiteMaxConns)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("error pinging sqlite database: %w", err)
	}

	return db, nil
}
