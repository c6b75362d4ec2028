//go:build integration

package repository

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Integration tests for database operations
// Run with: go test -v -tags=integration ./internal/repository/...

func testConfig() Config {
	cfg := Config{
		Host:     "localhost",
		Port:     "5432",
		Database: "hoopstats_test",
		User:     "hoopstats",
		Password: "hoopstats",
		SSLMode:  "disable",
	}
	if v := os.Getenv("TEST_DATABASE_HOST"); v != "" {
		cfg.Host = v
	}
	if v := os.Getenv("TEST_DATABASE_PORT"); v != "" {
		cfg.Port = v
	}
	return cfg
}

func setupTestDB(t *testing.T) (*Database, context.Context) {
	ctx := context.Background()
	cfg := testConfig()

	mm, err := NewMigrationManager(cfg)
	require.NoError(t, err, "Failed to create migration manager")
	require.NoError(t, mm.Up(), "Failed to apply migrations")
	require.NoError(t, mm.Close())

	db, err := NewDatabase(ctx, cfg)
	require.NoError(t, err, "Failed to connect to test database")

	_, err = db.Pool.Exec(ctx, `TRUNCATE sync_log, game_stats, games, players, teams CASCADE`)
	require.NoError(t, err, "Failed to reset test database")

	return db, ctx
}

func teardownTestDB(t *testing.T, db *Database) {
	db.Close()
}

func TestDatabaseConnection(t *testing.T) {
	db, ctx := setupTestDB(t)
	defer teardownTestDB(t, db)

	// Test health check
	err := db.Health(ctx)
	assert.NoError(t, err, "Database health check should pass")

	// Test stats
	stats := db.PoolStats()
	assert.NotNil(t, stats, "Should return connection pool stats")
	assert.GreaterOrEqual(t, stats["max_conns"].(int32), int32(1), "Should have at least 1 max connection")
}

func TestDatabasePing(t *testing.T) {
	db, ctx := setupTestDB(t)
	defer teardownTestDB(t, db)

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	err := db.Pool.Ping(ctx)
	assert.NoError(t, err, "Should successfully ping database")
}

func TestMigrationManager_Version(t *testing.T) {
	db, _ := setupTestDB(t)
	defer teardownTestDB(t, db)

	mm, err := NewMigrationManager(testConfig())
	require.NoError(t, err)
	defer mm.Close()

	version, dirty, err := mm.Version()
	require.NoError(t, err)
	assert.GreaterOrEqual(t, version, uint(1))
	assert.False(t, dirty)
}
