//go:build integration

package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/ZanzyTHEbar/yecs/internal/database"
)

func setupPostgres(t *testing.T) *SQL {
	t.Helper()
	ctx := context.Background()

	container, err := postgres.Run(ctx, "postgres:16-alpine",
		postgres.WithDatabase("yecs"),
		postgres.WithUsername("yecs"),
		postgres.WithPassword("yecs"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	require.NoError(t, err, "failed to start postgres container")
	t.Cleanup(func() {
		if err := container.Terminate(ctx); err != nil {
			t.Logf("failed to terminate container: %v", err)
		}
	})

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	cfg := database.DefaultConfig()
	cfg.Driver = database.DialectPostgres
	cfg.PostgresDSN = dsn
	db, err := database.Open(ctx, cfg)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	return NewSQL(db)
}

func TestPostgres_AppendAndRead(t *testing.T) {
	ctx := context.Background()
	s := setupPostgres(t)

	first := sampleRecord("a", "user-1", baseTime)
	second := sampleRecord("b", "user-1", baseTime.Add(time.Minute))
	require.NoError(t, s.Append(ctx, first))
	require.NoError(t, s.Append(ctx, second))
	require.NoError(t, s.Append(ctx, second))

	got, err := s.ReadUser(ctx, "user-1")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assertSameRecord(t, second, got[0])
	assertSameRecord(t, first, got[1])

	all, err := s.ReadAll(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 2)
	assert.Equal(t, "sql_postgres", s.Backend())
}
