package store

import (
	"context"
	"errors"
	"fmt"

	log "github.com/fclairamb/go-log"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// pgDuplicateDatabase is the SQLSTATE Postgres reports when CREATE DATABASE
// hits an existing database.
const pgDuplicateDatabase = "42P04"

const createTableSQL = `
CREATE TABLE IF NOT EXISTS inventory_items (
  id SERIAL PRIMARY KEY,
  item_id VARCHAR(100) UNIQUE,
  sku VARCHAR(100),
  name VARCHAR(255),
  quantity INTEGER DEFAULT 0,
  location VARCHAR(100),
  last_updated TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
  description TEXT,
  category VARCHAR(100),
  supplier VARCHAR(100),
  cost DECIMAL(10, 2),
  price DECIMAL(10, 2),
  metadata JSONB
)`

var createIndexSQL = []string{
	`CREATE INDEX IF NOT EXISTS idx_inventory_items_sku ON inventory_items(sku)`,
	`CREATE INDEX IF NOT EXISTS idx_inventory_items_location ON inventory_items(location)`,
}

// CreateDatabase connects to adminURL (a maintenance database such as
// "postgres") and creates dbName. An already existing database is not an
// error.
func CreateDatabase(ctx context.Context, adminURL, dbName string, logger log.Logger) error {
	conn, err := pgx.Connect(ctx, adminURL)
	if err != nil {
		return fmt.Errorf("failed to connect to server: %w", err)
	}
	defer func() { _ = conn.Close(ctx) }()

	_, err = conn.Exec(ctx, "CREATE DATABASE "+pgx.Identifier{dbName}.Sanitize())
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgDuplicateDatabase {
			logger.Info("database already exists, continuing with setup", "database", dbName)
			return nil
		}
		return fmt.Errorf("failed to create database %q: %w", dbName, err)
	}

	logger.Info("database created", "database", dbName)
	return nil
}

// Provision creates the inventory_items table and its indexes in the
// database url points at. Safe to run repeatedly.
func Provision(ctx context.Context, url string, logger log.Logger) error {
	conn, err := pgx.Connect(ctx, url)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer func() { _ = conn.Close(ctx) }()

	if _, err := conn.Exec(ctx, createTableSQL); err != nil {
		return fmt.Errorf("failed to create inventory_items table: %w", err)
	}
	logger.Info("created inventory_items table")

	for _, stmt := range createIndexSQL {
		if _, err := conn.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("failed to create index: %w", err)
		}
	}
	logger.Info("created indexes on inventory_items table")

	return nil
}
