package database

import (
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"
)

// NewSQLite opens a SQLite database file. SQLite serialises writers, so the
// pool is pinned to one connection and concurrent callers queue on it.
func NewSQLite(path string) (*SQLClient, error) {
	dsn := path
	if path != ":memory:" {
		dsn = fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)", path)
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)

	return &SQLClient{DB: db, Driver: DriverSQLite}, nil
}

// NewSQLiteMemory opens a private in-memory database. With a single pooled
// connection every caller sees the same schema.
func NewSQLiteMemory() (*SQLClient, error) {
	return NewSQLite(":memory:")
}
