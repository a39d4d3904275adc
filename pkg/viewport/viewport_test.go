package viewport

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/tsforge/tsforge/pkg/binformat"
	"github.com/tsforge/tsforge/pkg/database"
	"github.com/tsforge/tsforge/pkg/models"
	"github.com/tsforge/tsforge/pkg/services"
)

func newTestFileService(t *testing.T) *services.FileService {
	t.Helper()
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

	return services.NewFileService(pool)
}

func TestQueryRejectsUnparsedFile(t *testing.T) {
	ctx := context.Background()
	files := newTestFileService(t)

	f := &models.File{Folder: "rig", RawPath: "/data/a.csv"}
	require.NoError(t, files.Create(ctx, f))

	svc := NewService(files)
	_, err := svc.Query(ctx, f.ID, 0, 10, 100)
	require.ErrorIs(t, err, ErrNotParsed)
}

func TestQueryJSONOnlyFileSlicesAndResamples(t *testing.T) {
	ctx := context.Background()
	files := newTestFileService(t)
	dir := t.TempDir()

	n := 10
	x := make([]float64, n)
	y := make([]float64, n)
	for i := range x {
		x[i] = float64(i)
		y[i] = float64(i * i)
	}
	stem := filepath.Join(dir, "small")
	result, err := binformat.Write(stem, models.XTypeNumeric, "", []binformat.Channel{
		{IsX: true, Name: "time", Data: x},
		{Name: "pressure", Data: y},
	})
	require.NoError(t, err)
	require.False(t, result.UseBinaryFormat)
	require.NotEmpty(t, result.JSONPath)

	f := &models.File{Folder: "rig", RawPath: stem + ".csv"}
	require.NoError(t, files.Create(ctx, f))
	f.JSONPath = result.JSONPath
	f.UseBinaryFormat = false
	f.TotalPoints = result.TotalPoints
	f.XType = models.XTypeNumeric
	f.XMin, f.XMax = 0, float64(n-1)
	require.NoError(t, files.CompleteParse(ctx, f))

	svc := NewService(files)
	res, err := svc.Query(ctx, f.ID, 2, 6, 100)
	require.NoError(t, err)
	require.True(t, res.FullResolution)
	require.Equal(t, []string{"pressure"}, res.ChannelNames)
	require.Equal(t, []float64{2, 3, 4, 5, 6}, res.X)
	require.Equal(t, []float64{4, 9, 16, 25, 36}, res.Channels[0])
}
