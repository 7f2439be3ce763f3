package database

import (
	"context"
	"os"
	"strconv"
	"testing"
	"testing/fstest"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Jeffmuturi45/EVENTIFY/pkg/config"
)

func getTestConfig() *PostgresConfig {
	cfg := DefaultPostgresConfig()

	if host := os.Getenv("TEST_POSTGRES_HOST"); host != "" {
		cfg.Host = host
	}
	if port := os.Getenv("TEST_POSTGRES_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			cfg.Port = p
		}
	}
	if user := os.Getenv("TEST_POSTGRES_USER"); user != "" {
		cfg.User = user
	}
	if password := os.Getenv("TEST_POSTGRES_PASSWORD"); password != "" {
		cfg.Password = password
	}
	if dbname := os.Getenv("TEST_POSTGRES_DATABASE"); dbname != "" {
		cfg.Database = dbname
	}

	return cfg
}

func requireIntegration(t *testing.T) {
	t.Helper()
	if os.Getenv("INTEGRATION_TEST") != "true" {
		t.Skip("Skipping integration test. Set INTEGRATION_TEST=true to run")
	}
}

func TestDefaultPostgresConfig(t *testing.T) {
	cfg := DefaultPostgresConfig()

	assert.Equal(t, "localhost", cfg.Host)
	assert.Equal(t, 5432, cfg.Port)
	assert.Equal(t, int32(25), cfg.MaxConns)
	assert.Equal(t, int32(5), cfg.MinConns)
	assert.Equal(t, 3, cfg.MaxRetries)
	assert.False(t, cfg.EnableTracing)
}

func TestPostgresConfig_DSN(t *testing.T) {
	cfg := &PostgresConfig{
		Host:     "db",
		Port:     5433,
		User:     "eventify",
		Password: "secret",
		Database: "tickets",
		SSLMode:  "require",
	}

	assert.Equal(t, "host=db port=5433 user=eventify password=secret dbname=tickets sslmode=require", cfg.DSN())
}

func TestFromConfig(t *testing.T) {
	cfg := FromConfig(&config.DatabaseConfig{
		Host:            "db",
		Port:            5432,
		User:            "u",
		Password:        "p",
		DBName:          "eventify",
		SSLMode:         "disable",
		MaxOpenConns:    40,
		MaxIdleConns:    8,
		ConnMaxLifetime: 10 * time.Minute,
	}, true)

	assert.Equal(t, "eventify", cfg.Database)
	assert.Equal(t, int32(40), cfg.MaxConns)
	assert.Equal(t, int32(8), cfg.MinConns)
	assert.Equal(t, 10*time.Minute, cfg.MaxConnLifetime)
	assert.Equal(t, 30*time.Minute, cfg.MaxConnIdleTime)
	assert.True(t, cfg.EnableTracing)
}

func TestNewPostgres_InvalidConfig(t *testing.T) {
	cfg := &PostgresConfig{
		Host:           "invalid-host-that-does-not-exist",
		Port:           9999,
		User:           "invalid",
		Password:       "invalid",
		Database:       "invalid",
		SSLMode:        "disable",
		MaxConns:       2,
		MaxRetries:     0,
		RetryInterval:  100 * time.Millisecond,
		ConnectTimeout: time.Second,
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_, err := NewPostgres(ctx, cfg)
	assert.Error(t, err)
}

func TestNewMigrator_MissingDir(t *testing.T) {
	_, err := NewMigrator(fstest.MapFS{}, "migrations", "pgx5://u:p@localhost:1/db")
	assert.Error(t, err)
}

func TestNewPostgres_Integration(t *testing.T) {
	requireIntegration(t)

	ctx := context.Background()
	db, err := NewPostgres(ctx, getTestConfig())
	require.NoError(t, err)
	defer db.Close()

	assert.NoError(t, db.Ping(ctx))
	assert.True(t, db.IsConnected(ctx))
	assert.NotNil(t, db.Pool())
	assert.NotNil(t, db.Stats())
	assert.NoError(t, db.HealthCheck(ctx))
}

func TestPostgresDB_Transaction_Integration(t *testing.T) {
	requireIntegration(t)

	ctx := context.Background()
	db, err := NewPostgres(ctx, getTestConfig())
	require.NoError(t, err)
	defer db.Close()

	// Temp tables are per connection, so the whole check runs on one tx
	tx, err := db.BeginTx(ctx)
	require.NoError(t, err)
	defer func() { _ = tx.Rollback(ctx) }()

	_, err = tx.Exec(ctx, "CREATE TEMP TABLE tx_test (id SERIAL PRIMARY KEY, amount NUMERIC(10,2))")
	require.NoError(t, err)

	_, err = tx.Exec(ctx, "INSERT INTO tx_test (amount) VALUES ($1::text::numeric)", "1000.00")
	require.NoError(t, err)

	var amount string
	require.NoError(t, tx.QueryRow(ctx, "SELECT amount::text FROM tx_test").Scan(&amount))
	assert.Equal(t, "1000.00", amount)
}

func TestPostgresDB_Close_Integration(t *testing.T) {
	requireIntegration(t)

	ctx := context.Background()
	db, err := NewPostgres(ctx, getTestConfig())
	require.NoError(t, err)

	db.Close()
	assert.Error(t, db.Ping(ctx))
}
