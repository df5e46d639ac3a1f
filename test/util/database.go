// Package util provides shared helpers for database-backed tests.
package util

import (
	"context"
	"crypto/rand"
	stdsql "database/sql"
	"encoding/hex"
	"fmt"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/minuteman-ai/minuteman/pkg/database"
)

var (
	// Shared connection string for all tests in local dev
	sharedConnStr string
	containerOnce sync.Once
	containerErr  error
)

// SetupTestDatabase provisions an isolated schema for one test and
// returns a migrated client plus the schema-scoped connection string.
// Both CI and local dev use per-test schemas for isolation:
//   - CI: connects to an external PostgreSQL service container
//   - Local: uses a shared testcontainer (started once per package)
func SetupTestDatabase(t *testing.T) (*database.Client, string) {
	ctx := context.Background()

	connStr := getOrCreateSharedDatabase(t)
	schemaName := GenerateSchemaName(t)

	// Connect to the base database to create the schema
	db, err := stdsql.Open("pgx", connStr)
	require.NoError(t, err)

	_, err = db.ExecContext(ctx, fmt.Sprintf("CREATE SCHEMA %s", schemaName))
	require.NoError(t, err)
	_ = db.Close()

	// Reconnect with search_path set for all pooled connections, so
	// migrations and queries stay inside the test schema.
	connStrWithSchema := AddSearchPathToConnString(connStr, schemaName)
	db, err = stdsql.Open("pgx", connStrWithSchema)
	require.NoError(t, err)

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)

	require.NoError(t, database.MigrateUp(db, "test"))

	t.Cleanup(func() {
		// Drop schema before closing connections
		_, err := db.ExecContext(context.Background(), fmt.Sprintf("DROP SCHEMA IF EXISTS %s CASCADE", schemaName))
		if err != nil {
			t.Logf("Warning: failed to drop schema %s: %v", schemaName, err)
		}
		_ = db.Close()
	})

	return database.NewClientFromDB(db), connStrWithSchema
}

// GetBaseConnectionString returns the base PostgreSQL connection string
// (without schema search_path). Used by integration tests that need a raw
// connection string for dedicated connections, e.g. NotifyListener's pgx.Conn.
func GetBaseConnectionString(t *testing.T) string {
	return getOrCreateSharedDatabase(t)
}

// getOrCreateSharedDatabase returns a connection string to the shared database.
// In CI, uses CI_DATABASE_URL. In local dev, creates a shared testcontainer once.
func getOrCreateSharedDatabase(t *testing.T) string {
	if ciDatabaseURL := os.Getenv("CI_DATABASE_URL"); ciDatabaseURL != "" {
		t.Log("Using external PostgreSQL from CI_DATABASE_URL")
		return ciDatabaseURL
	}

	containerOnce.Do(func() {
		ctx := context.Background()
		t.Log("Starting shared PostgreSQL testcontainer for all tests")

		pgContainer, err := postgres.Run(ctx,
			"postgres:17-alpine",
			postgres.WithDatabase("test"),
			postgres.WithUsername("test"),
			postgres.WithPassword("test"),
			testcontainers.WithWaitStrategy(
				wait.ForLog("database system is ready to accept connections").
					WithOccurrence(2).
					WithStartupTimeout(30*time.Second)),
		)
		if err != nil {
			containerErr = fmt.Errorf("failed to start postgres container: %w", err)
			return
		}

		connStr, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
		if err != nil {
			containerErr = fmt.Errorf("failed to get connection string: %w", err)
			return
		}

		sharedConnStr = connStr
		t.Logf("Shared container ready: %s", sharedConnStr)
	})

	require.NoError(t, containerErr, "Failed to setup shared test container")
	return sharedConnStr
}

// GenerateSchemaName creates a unique, PostgreSQL-safe schema name for the test.
// Format: test_<sanitized_test_name>_<random_hex>
func GenerateSchemaName(t *testing.T) string {
	testName := strings.ToLower(t.Name())
	testName = strings.Map(func(r rune) rune {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			return r
		}
		return '_'
	}, testName)

	// Limit length to avoid PostgreSQL's 63 char identifier limit
	if len(testName) > 40 {
		testName = testName[:40]
	}

	randomBytes := make([]byte, 4)
	if _, err := rand.Read(randomBytes); err != nil {
		t.Fatalf("failed to generate random bytes for schema name: %v", err)
	}
	return fmt.Sprintf("test_%s_%s", testName, hex.EncodeToString(randomBytes))
}

// AddSearchPathToConnString appends a search_path parameter to a PostgreSQL
// connection string so all pooled connections use the given schema.
func AddSearchPathToConnString(connStr, schemaName string) string {
	separator := "?"
	if strings.Contains(connStr, "?") {
		separator = "&"
	}
	return fmt.Sprintf("%s%ssearch_path=%s", connStr, separator, schemaName)
}
