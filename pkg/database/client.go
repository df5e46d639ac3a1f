// Package database provides the PostgreSQL client backing the event
// stream, plus embedded schema migrations.
package database

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "github.com/jackc/pgx/v5/stdlib" // Register pgx driver for database/sql
)

//go:embed migrations
var migrationsFS embed.FS

// Config holds database connection settings.
type Config struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string

	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
}

// ConnString builds the pgx-compatible connection string. The NOTIFY
// listener uses this to open its own dedicated connection.
func (c Config) ConnString() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}

// Client wraps the connection pool used by the event publisher and
// catch-up queries.
type Client struct {
	db *sql.DB
}

// DB returns the underlying pool for health checks and direct queries.
func (c *Client) DB() *sql.DB { return c.db }

// Close closes the connection pool.
func (c *Client) Close() error { return c.db.Close() }

// NewClientFromDB wraps an existing pool (useful for testing).
func NewClientFromDB(db *sql.DB) *Client {
	return &Client{db: db}
}

// NewClient opens the pool, verifies connectivity, and applies pending
// migrations.
func NewClient(ctx context.Context, cfg Config) (*Client, error) {
	db, err := sql.Open("pgx", cfg.ConnString())
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	db.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if err := runMigrations(db, cfg); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return &Client{db: db}, nil
}

// MigrateUp applies the embedded migrations to an externally managed
// pool. Test harnesses use this after provisioning their own database.
func MigrateUp(db *sql.DB, dbName string) error {
	return runMigrations(db, Config{Database: dbName})
}

// runMigrations applies the embedded migration files. Migrations are
// compiled into the binary so deployments carry their own schema.
func runMigrations(db *sql.DB, cfg Config) error {
	hasMigrations, err := hasEmbeddedMigrations()
	if err != nil {
		return fmt.Errorf("failed to check embedded migrations: %w", err)
	}
	if !hasMigrations {
		return fmt.Errorf("no embedded migration files found")
	}

	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("failed to create postgres driver: %w", err)
	}

	sourceDriver, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("failed to create migration source: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", sourceDriver, cfg.Database, driver)
	if err != nil {
		return fmt.Errorf("failed to create migrate instance: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to apply migrations: %w", err)
	}

	// Close only the source driver. m.Close() would also close the
	// shared *sql.DB passed via postgres.WithInstance().
	if err := sourceDriver.Close(); err != nil {
		return fmt.Errorf("failed to close migration source: %w", err)
	}
	return nil
}

func hasEmbeddedMigrations() (bool, error) {
	entries, err := fs.ReadDir(migrationsFS, "migrations")
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}
		return false, fmt.Errorf("failed to read embedded migrations: %w", err)
	}
	for _, entry := range entries {
		if !entry.IsDir() && strings.HasSuffix(entry.Name(), ".sql") {
			return true, nil
		}
	}
	return false, nil
}
