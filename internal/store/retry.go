package store

import (
	"context"
	stderrors "errors"
	"time"

	"github.com/ZanzyTHEbar/yecs/internal/errors"
	"github.com/ZanzyTHEbar/yecs/internal/monitoring"
	"github.com/ZanzyTHEbar/yecs/internal/resilience"
	"github.com/ZanzyTHEbar/yecs/internal/scoring"
)

// Retrying wraps a store with bounded retries. Exhausted attempts surface as a
// StorageError; cancellation is returned as-is.
type Retrying struct {
	inner   ScoreHistoryStore
	config  resilience.RetryConfig
	logger  *monitoring.Logger
	metrics *monitoring.Metrics
	backend string
}

// WithRetry decorates inner. logger and metrics may be nil.
func WithRetry(inner ScoreHistoryStore, config resilience.RetryConfig, logger *monitoring.Logger, metrics *monitoring.Metrics) *Retrying {
	if logger == nil {
		logger = monitoring.NopLogger()
	}
	backend := "unknown"
	if b, ok := inner.(Backend); ok {
		backend = b.Backend()
	}
	return &Retrying{
		inner:   inner,
		config:  config,
		logger:  logger,
		metrics: metrics,
		backend: backend,
	}
}

func (r *Retrying) Backend() string { return r.backend }

// Unwrap returns the decorated store.
func (r *Retrying) Unwrap() ScoreHistoryStore { return r.inner }

func (r *Retrying) Append(ctx context.Context, rec scoring.ScoreRecord) error {
	return r.do(ctx, "append", func() error {
		return r.inner.Append(ctx, rec)
	})
}

func (r *Retrying) ReadUser(ctx context.Context, userID string) ([]scoring.ScoreRecord, error) {
	var out []scoring.ScoreRecord
	err := r.do(ctx, "read_user", func() error {
		recs, err := r.inner.ReadUser(ctx, userID)
		out = recs
		return err
	})
	return out, err
}

func (r *Retrying) ReadAll(ctx context.Context) ([]scoring.ScoreRecord, error) {
	var out []scoring.ScoreRecord
	err := r.do(ctx, "read_all", func() error {
		recs, err := r.inner.ReadAll(ctx)
		out = recs
		return err
	})
	return out, err
}

func (r *Retrying) do(ctx context.Context, op string, fn resilience.RetryableFunc) error {
	config := r.config
	config.OnRetry = func(attempt int, err error, _ time.Duration) {
		r.logger.StorageLogger(op, r.backend, attempt, err)
		r.metrics.RecordStorageRetry(op)
	}

	attempts := 0
	err := resilience.RetryWithConfig(ctx, config, func() error {
		attempts++
		return fn()
	})
	if err == nil {
		return nil
	}
	if stderrors.Is(err, context.Canceled) || stderrors.Is(err, context.DeadlineExceeded) {
		return err
	}

	r.logger.StorageLogger(op, r.backend, attempts, err)
	r.metrics.RecordStorageError(op)
	if errors.IsStorage(err) {
		return err
	}
	return errors.NewStorageError(op, err)
}
