package store

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ZanzyTHEbar/yecs/internal/database"
	"github.com/ZanzyTHEbar/yecs/internal/scoring"
)

var baseTime = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func sampleRecord(id, userID string, at time.Time) scoring.ScoreRecord {
	return scoring.ScoreRecord{
		ScoreID:   id,
		UserID:    userID,
		YECSScore: 642,
		RiskLevel: scoring.RiskMedium,
		ComponentScores: scoring.ComponentScoreSet{
			BusinessViability:        61.2,
			PaymentHistory:           80,
			FinancialManagement:      55.5,
			PersonalCreditworthiness: 50,
			EducationBackground:      70,
			SocialVerification:       33.3,
		},
		CreatedAt: at,
		Demographics: scoring.DemographicSnapshot{
			AgeBracket:     "25_34",
			EducationLevel: "bachelor",
			Industry:       "technology",
		},
	}
}

func assertSameRecord(t *testing.T, want, got scoring.ScoreRecord) {
	t.Helper()
	assert.True(t, want.CreatedAt.Equal(got.CreatedAt), "created_at: want %s got %s", want.CreatedAt, got.CreatedAt)
	got.CreatedAt = want.CreatedAt
	assert.Equal(t, want, got)
}

func openSQLite(t *testing.T) *SQL {
	t.Helper()
	cfg := database.DefaultConfig()
	cfg.DataDir = t.TempDir()
	db, err := database.Open(context.Background(), cfg)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewSQL(db)
}

func openMiniredis(t *testing.T) *Redis {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewRedis(client, "test:")
}

func backends(t *testing.T) map[string]func(t *testing.T) ScoreHistoryStore {
	return map[string]func(t *testing.T) ScoreHistoryStore{
		"memory": func(t *testing.T) ScoreHistoryStore { return NewMemory() },
		"sqlite": func(t *testing.T) ScoreHistoryStore { return openSQLite(t) },
		"redis":  func(t *testing.T) ScoreHistoryStore { return openMiniredis(t) },
	}
}

func TestStores_AppendAndRead(t *testing.T) {
	for name, open := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			s := open(t)

			first := sampleRecord("a", "user-1", baseTime)
			second := sampleRecord("b", "user-1", baseTime.Add(time.Hour))
			other := sampleRecord("c", "user-2", baseTime.Add(30*time.Minute))
			for _, rec := range []scoring.ScoreRecord{first, second, other} {
				require.NoError(t, s.Append(ctx, rec))
			}

			got, err := s.ReadUser(ctx, "user-1")
			require.NoError(t, err)
			require.Len(t, got, 2)
			assertSameRecord(t, second, got[0])
			assertSameRecord(t, first, got[1])

			all, err := s.ReadAll(ctx)
			require.NoError(t, err)
			assert.Len(t, all, 3)
		})
	}
}

func TestStores_UnknownUserIsEmpty(t *testing.T) {
	for name, open := range backends(t) {
		t.Run(name, func(t *testing.T) {
			got, err := open(t).ReadUser(context.Background(), "nobody")
			require.NoError(t, err)
			assert.Empty(t, got)
		})
	}
}

func TestStores_TieBreakOnScoreID(t *testing.T) {
	for name, open := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			s := open(t)
			require.NoError(t, s.Append(ctx, sampleRecord("id-1", "u", baseTime)))
			require.NoError(t, s.Append(ctx, sampleRecord("id-2", "u", baseTime)))

			got, err := s.ReadUser(ctx, "u")
			require.NoError(t, err)
			require.Len(t, got, 2)
			assert.Equal(t, "id-2", got[0].ScoreID)
			assert.Equal(t, "id-1", got[1].ScoreID)
		})
	}
}

func TestStores_DuplicateAppendIsIgnored(t *testing.T) {
	for name, open := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			s := open(t)
			rec := sampleRecord("dup", "u", baseTime)
			require.NoError(t, s.Append(ctx, rec))

			changed := rec
			changed.YECSScore = 300
			require.NoError(t, s.Append(ctx, changed))

			all, err := s.ReadAll(ctx)
			require.NoError(t, err)
			require.Len(t, all, 1)
			assert.Equal(t, 642, all[0].YECSScore)
		})
	}
}

func TestStores_ConcurrentAppends(t *testing.T) {
	for name, open := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			s := open(t)

			const n = 20
			var wg sync.WaitGroup
			errs := make(chan error, n)
			for i := 0; i < n; i++ {
				wg.Add(1)
				go func(i int) {
					defer wg.Done()
					rec := sampleRecord(fmt.Sprintf("rec-%02d", i), "u", baseTime.Add(time.Duration(i)*time.Second))
					errs <- s.Append(ctx, rec)
				}(i)
			}
			wg.Wait()
			close(errs)
			for err := range errs {
				require.NoError(t, err)
			}

			got, err := s.ReadUser(ctx, "u")
			require.NoError(t, err)
			require.Len(t, got, n)
			for i := 1; i < len(got); i++ {
				assert.True(t, got[i-1].CreatedAt.After(got[i].CreatedAt))
			}
		})
	}
}

func TestMemory_ReadsAreCopies(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	require.NoError(t, m.Append(ctx, sampleRecord("a", "u", baseTime)))

	got, err := m.ReadAll(ctx)
	require.NoError(t, err)
	got[0].YECSScore = 1

	again, err := m.ReadAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, 642, again[0].YECSScore)
	assert.Equal(t, 1, m.Len())
}

func TestMemory_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	m := NewMemory()
	assert.ErrorIs(t, m.Append(ctx, sampleRecord("a", "u", baseTime)), context.Canceled)
	assert.Equal(t, 0, m.Len())
}

func TestRedis_MissingHashEntryIsAnError(t *testing.T) {
	ctx := context.Background()
	s := openMiniredis(t)
	require.NoError(t, s.Append(ctx, sampleRecord("a", "u", baseTime)))
	require.NoError(t, s.client.HDel(ctx, s.recordsKey(), "a").Err())

	_, err := s.ReadUser(ctx, "u")
	assert.Error(t, err)
}

func TestBackendNames(t *testing.T) {
	assert.Equal(t, "memory", NewMemory().Backend())
	assert.Equal(t, "sql_sqlite", openSQLite(t).Backend())
	assert.Equal(t, "redis", openMiniredis(t).Backend())
}
