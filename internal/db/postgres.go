package db

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
)

// PostgresClient holds a single PostgreSQL connection for catalog reads
type PostgresClient struct {
	conn *pgx.Conn
}

// NewPostgresClient connects with a URL or key/value connection string and pings the server.
func NewPostgresClient(ctx context.Context, connString string) (*PostgresClient, error) {
	cfg, err := pgx.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("failed to parse connection string: %w", err)
	}
	cfg.RuntimeParams["application_name"] = "efreverse"

	conn, err := pgx.ConnectConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := conn.Ping(ctx); err != nil {
		_ = conn.Close(ctx)
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &PostgresClient{conn: conn}, nil
}

// Close closes the database connection
func (c *PostgresClient) Close(ctx context.Context) error {
	return c.conn.Close(ctx)
}

// Conn returns the underlying connection
func (c *PostgresClient) Conn() *pgx.Conn {
	return c.conn
}
