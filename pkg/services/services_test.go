package services

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/tsforge/tsforge/pkg/database"
	"github.com/tsforge/tsforge/pkg/models"
)

func newTestPool(t *testing.T) *pgxpool.Pool {
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
	require.NoError(t, database.RunMigrations(dsn))

	pool, err := pgxpool.New(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	return pool
}

func TestFileServiceCreateAndGet(t *testing.T) {
	pool := newTestPool(t)
	svc := NewFileService(pool)
	ctx := context.Background()

	f := &models.File{Folder: "/demo", RawPath: "/demo/run1.csv", XType: models.XTypeNumeric}
	require.NoError(t, svc.Create(ctx, f))
	require.NotEmpty(t, f.ID)

	got, err := svc.Get(ctx, f.ID)
	require.NoError(t, err)
	require.Equal(t, f.Folder, got.Folder)
	require.Equal(t, models.ParsingUploading, got.Parsing)
}

func TestFileServiceCompleteParse(t *testing.T) {
	pool := newTestPool(t)
	svc := NewFileService(pool)
	ctx := context.Background()

	f := &models.File{Folder: "/demo", RawPath: "/demo/run2.csv"}
	require.NoError(t, svc.Create(ctx, f))

	f.BinaryPath = "/demo/run2.bin"
	f.MetaPath = "/demo/run2.meta.json"
	f.TotalPoints = 200_000
	f.UseBinaryFormat = true
	require.NoError(t, svc.CompleteParse(ctx, f))

	got, err := svc.Get(ctx, f.ID)
	require.NoError(t, err)
	require.Equal(t, models.ParsingParsed, got.Parsing)
	require.True(t, got.UseBinaryFormat)
	require.EqualValues(t, 200_000, got.TotalPoints)
}

func TestFileServiceGetMissing(t *testing.T) {
	pool := newTestPool(t)
	svc := NewFileService(pool)

	_, err := svc.Get(context.Background(), "00000000-0000-0000-0000-000000000000")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestLabelServiceReplaceAutoDetected(t *testing.T) {
	pool := newTestPool(t)
	files := NewFileService(pool)
	labels := NewLabelService(pool)
	ctx := context.Background()

	f := &models.File{Folder: "/demo", RawPath: "/demo/run3.csv"}
	require.NoError(t, files.Create(ctx, f))

	first := []models.Label{{ClassName: "spike", Start: 10, End: 20, AutoDetected: true}}
	require.NoError(t, labels.ReplaceAutoDetected(ctx, f.ID, first))

	got, err := labels.ListForFile(ctx, f.ID)
	require.NoError(t, err)
	require.Len(t, got, 1)

	second := []models.Label{{ClassName: "drift", Start: 30, End: 40, AutoDetected: true}}
	require.NoError(t, labels.ReplaceAutoDetected(ctx, f.ID, second))

	got, err = labels.ListForFile(ctx, f.ID)
	require.NoError(t, err)
	require.Len(t, got, 1)
	require.Equal(t, "drift", got[0].ClassName)
}

func TestConversationServiceAppendOrdersSequence(t *testing.T) {
	pool := newTestPool(t)
	files := NewFileService(pool)
	convs := NewConversationService(pool)
	ctx := context.Background()

	f := &models.File{Folder: "/demo", RawPath: "/demo/run4.csv"}
	require.NoError(t, files.Create(ctx, f))

	conv, err := convs.Create(ctx, f.ID, models.ConversationAutoDetect)
	require.NoError(t, err)

	m1, err := convs.Append(ctx, conv.ID, models.RoleAssistant, models.RolePlanner, "plan step 1", "")
	require.NoError(t, err)
	require.Equal(t, 1, m1.SequenceNumber)

	m2, err := convs.Append(ctx, conv.ID, models.RoleAssistant, models.RoleIdentifier, "identifying", "")
	require.NoError(t, err)
	require.Equal(t, 2, m2.SequenceNumber)

	since, err := convs.MessagesSince(ctx, conv.ID, 1)
	require.NoError(t, err)
	require.Len(t, since, 1)
	require.Equal(t, m2.ID, since[0].ID)
}
