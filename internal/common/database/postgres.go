// internal/common/database/postgres.go
package database

import (
	"context"
	"database/sql"
	"fmt"

	"bus-finder/internal/common/config"

	_ "github.com/lib/pq"
)

// PostgresClient owns the bounded connection pool for the bus_details store.
// It is constructed once in main and passed explicitly to every consumer.
type PostgresClient struct {
	DB *sql.DB
}

// NewPostgres opens the pool. MaxConnections bounds concurrent checkouts:
// once reached, Conn blocks until a connection is returned.
func NewPostgres(cfg config.PostgresConfig) (*PostgresClient, error) {
	db, err := sql.Open("postgres", cfg.GetDSN())
	if err != nil {
		return nil, fmt.Errorf("failed to open postgres: %w", err)
	}

	configurePool(db, cfg)
	return &PostgresClient{DB: db}, nil
}

func configurePool(db *sql.DB, cfg config.PostgresConfig) {
	db.SetMaxOpenConns(cfg.MaxConnections)
	db.SetMaxIdleConns(cfg.MaxIdle)
	db.SetConnMaxLifetime(config.GetDuration(cfg.ConnMaxLifetime))
	db.SetConnMaxIdleTime(config.GetDuration(cfg.ConnMaxLifetime))
}

// Ping tests the database connection
func (c *PostgresClient) Ping(ctx context.Context) error {
	return c.DB.PingContext(ctx)
}

// Stats exposes pool usage for the readiness endpoint.
func (c *PostgresClient) Stats() sql.DBStats {
	return c.DB.Stats()
}

// Close closes the pool
func (c *PostgresClient) Close() error {
	if c.DB != nil {
		return c.DB.Close()
	}
	return nil
}
