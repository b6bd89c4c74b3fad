package db

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/microsoft/go-mssqldb" // SQL Server driver
)

// SQLServerClient manages the connection to SQL Server. The driver accepts
// URL, ADO (Server=...;Database=...) and ODBC connection strings.
type SQLServerClient struct {
	db *sql.DB
}

// NewSQLServerClient creates a new SQL Server client
func NewSQLServerClient(ctx context.Context, connString string) (*SQLServerClient, error) {
	db, err := sql.Open("sqlserver", connString)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &SQLServerClient{db: db}, nil
}

// Close closes the database connection
func (c *SQLServerClient) Close() error {
	return c.db.Close()
}

// GetDB returns the underlying database connection
func (c *SQLServerClient) GetDB() *sql.DB {
	return c.db
}

// DatabaseName returns the database the connection is using
func (c *SQLServerClient) DatabaseName(ctx context.Context) (string, error) {
	var name string
	if err := c.db.QueryRowContext(ctx, "SELECT DB_NAME()").Scan(&name); err != nil {
		return "", fmt.Errorf("failed to query database name: %w", err)
	}
	return name, nil
}
