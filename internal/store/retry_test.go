package store

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ZanzyTHEbar/yecs/internal/errors"
	"github.com/ZanzyTHEbar/yecs/internal/monitoring"
	"github.com/ZanzyTHEbar/yecs/internal/scoring"
)

// flakyStore fails the first n calls of every operation.
type flakyStore struct {
	*Memory
	failures int
	calls    int
	err      error
}

func (f *flakyStore) Append(ctx context.Context, rec scoring.ScoreRecord) error {
	f.calls++
	if f.calls <= f.failures {
		return f.err
	}
	return f.Memory.Append(ctx, rec)
}

func (f *flakyStore) ReadAll(ctx context.Context) ([]scoring.ScoreRecord, error) {
	f.calls++
	if f.calls <= f.failures {
		return nil, f.err
	}
	return f.Memory.ReadAll(ctx)
}

func TestRetrying_LogsAndCountsRetries(t *testing.T) {
	var buf bytes.Buffer
	logger := monitoring.NewLoggerWithWriter(&buf, "debug")
	metrics := monitoring.NewMetrics()

	inner := &flakyStore{Memory: NewMemory(), failures: 2, err: fmt.Errorf("database is locked")}
	r := WithRetry(inner, fastRetry(3), logger, metrics)

	require.NoError(t, r.Append(context.Background(), sampleRecord("a", "u", baseTime)))
	assert.Equal(t, 3, inner.calls)
	assert.Equal(t, 1, inner.Len())
	assert.Contains(t, buf.String(), "Storage Operation Failed")

	expected := `
# HELP yecs_storage_retries_total Retried score history operations
# TYPE yecs_storage_retries_total counter
yecs_storage_retries_total{operation="append"} 2
`
	assert.NoError(t, testutil.GatherAndCompare(metrics.Registry(), strings.NewReader(expected), "yecs_storage_retries_total"))
}

func TestRetrying_ReadAllRetried(t *testing.T) {
	inner := &flakyStore{Memory: NewMemory(), failures: 1, err: fmt.Errorf("timeout")}
	require.NoError(t, inner.Memory.Append(context.Background(), sampleRecord("a", "u", baseTime)))

	r := WithRetry(inner, fastRetry(2), nil, nil)
	got, err := r.ReadAll(context.Background())
	require.NoError(t, err)
	assert.Len(t, got, 1)
}

func TestRetrying_NonRetryableFailsOnce(t *testing.T) {
	inner := &flakyStore{Memory: NewMemory(), failures: 5, err: errors.NewValidationError("score_id", "is required")}
	r := WithRetry(inner, fastRetry(3), nil, nil)

	err := r.Append(context.Background(), sampleRecord("a", "u", baseTime))
	require.Error(t, err)
	assert.Equal(t, 1, inner.calls)
	assert.True(t, errors.IsStorage(err))
}

func TestRetrying_ExhaustionLogsAttemptsMade(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		want    string
		wantNot string
	}{
		{"non-retryable stops after one", errors.NewValidationError("score_id", "is required"), `"attempt":1`, `"attempt":3`},
		{"retryable uses every attempt", fmt.Errorf("database is locked"), `"attempt":3`, `"attempt":4`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			logger := monitoring.NewLoggerWithWriter(&buf, "debug")
			inner := &flakyStore{Memory: NewMemory(), failures: 10, err: tt.err}

			err := WithRetry(inner, fastRetry(3), logger, nil).Append(context.Background(), sampleRecord("a", "u", baseTime))
			require.Error(t, err)

			lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
			last := lines[len(lines)-1]
			assert.Contains(t, last, "Storage Operation Failed")
			assert.Contains(t, last, tt.want)
			assert.NotContains(t, last, tt.wantNot)
		})
	}
}

func TestRetrying_CancellationPassesThrough(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	r := WithRetry(NewMemory(), fastRetry(3), nil, nil)
	err := r.Append(ctx, sampleRecord("a", "u", baseTime))
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, errors.IsStorage(err))
}

func TestRetrying_Unwrap(t *testing.T) {
	m := NewMemory()
	r := WithRetry(m, fastRetry(1), nil, nil)
	assert.Same(t, m, r.Unwrap())
	assert.Equal(t, "memory", r.Backend())
}
