package repository

import (
	"context"
	"flag"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

var testPostgresURL string

func TestMain(m *testing.M) {
	flag.Parse()

	var terminate func()
	if !testing.Short() {
		testPostgresURL, terminate = setupPostgres(context.Background())
	}

	code := m.Run()

	if terminate != nil {
		terminate()
	}
	os.Exit(code)
}

func setupPostgres(ctx context.Context) (connStr string, terminate func()) {
	terminate = func() {}
	// testcontainers panics when no Docker daemon is reachable
	defer func() {
		if r := recover(); r != nil {
			fmt.Printf("Recovered from panic in setupPostgres: %v\n", r)
			connStr = ""
		}
	}()

	container, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("botevents"),
		postgres.WithUsername("test"),
		postgres.WithPassword("test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second)),
	)
	if err != nil {
		fmt.Printf("WARNING: Failed to start postgres container: %v\n", err)
		return "", terminate
	}

	connStr, err = container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		fmt.Printf("WARNING: Failed to get connection string: %v\n", err)
		_ = container.Terminate(ctx)
		return "", terminate
	}

	return connStr, func() {
		if err := container.Terminate(ctx); err != nil {
			fmt.Printf("Failed to terminate container: %v\n", err)
		}
	}
}

func TestPostgresStore_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}
	if testPostgresURL == "" {
		t.Skip("Skipping integration test: database not available")
	}

	ctx := context.Background()
	s := NewPostgresStore(PostgresConfig{URL: testPostgresURL, MaxConns: 4})
	require.NoError(t, s.Connect(ctx))
	t.Cleanup(func() { _ = s.Close() })

	require.NoError(t, s.Migrate(ctx))
	require.NoError(t, s.Seed(ctx, testFixtures()))

	exerciseStore(t, s)

	require.NoError(t, s.Reconnect(ctx))
	require.NoError(t, s.Ping(ctx))
}
