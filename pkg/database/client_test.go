package database

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

func newTestClient(t *testing.T) (*Client, string) {
	ctx := context.Background()

	pgContainer, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("tsforge_test"),
		postgres.WithUsername("tsforge"),
		postgres.WithPassword("tsforge"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second)),
	)
	require.NoError(t, err)
	t.Cleanup(func() {
		if err := testcontainers.TerminateContainer(pgContainer); err != nil {
			t.Logf("failed to terminate container: %v", err)
		}
	})

	dsn, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	require.NoError(t, RunMigrations(dsn))

	client, err := NewClient(ctx, dsn, DefaultConfig())
	require.NoError(t, err)
	t.Cleanup(client.Close)

	return client, dsn
}

func TestRunMigrationsCreatesFilesTable(t *testing.T) {
	client, _ := newTestClient(t)

	var exists bool
	err := client.Pool.QueryRow(context.Background(),
		`SELECT EXISTS (SELECT FROM information_schema.tables WHERE table_name = 'files')`,
	).Scan(&exists)
	require.NoError(t, err)
	require.True(t, exists)
}

func TestHealth(t *testing.T) {
	client, _ := newTestClient(t)

	status, err := Health(context.Background(), client.Pool)
	require.NoError(t, err)
	require.Equal(t, "healthy", status.Status)
}
