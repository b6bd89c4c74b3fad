package db

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	_ "github.com/mattn/go-sqlite3"
)

// SQLiteClient manages the connection to SQLite
type SQLiteClient struct {
	db *sql.DB
}

// NewSQLiteClient creates a new SQLite client. Foreign key enforcement is
// switched on so PRAGMA foreign_key_list reflects declared constraints.
func NewSQLiteClient(ctx context.Context, path string) (*SQLiteClient, error) {
	dsn := path
	if !strings.Contains(dsn, "_foreign_keys") && !strings.Contains(dsn, "_fk=") {
		sep := "?"
		if strings.Contains(dsn, "?") {
			sep = "&"
		}
		dsn += sep + "_foreign_keys=on"
	}

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Test the connection
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &SQLiteClient{db: db}, nil
}

// Close closes the database connection
func (c *SQLiteClient) Close() error {
	return c.db.Close()
}

// GetDB returns the underlying database connection
func (c *SQLiteClient) GetDB() *sql.DB {
	return c.db
}
