package app

import (
	"context"
	"fmt"

	"github.com/ZanzyTHEbar/yecs/internal/config"
	"github.com/ZanzyTHEbar/yecs/internal/database"
	"github.com/ZanzyTHEbar/yecs/internal/errors"
	"github.com/ZanzyTHEbar/yecs/internal/monitoring"
	"github.com/ZanzyTHEbar/yecs/internal/service"
	"github.com/ZanzyTHEbar/yecs/internal/store"
)

// App holds the long-lived resources shared by the server and the CLI.
type App struct {
	Config     *config.Config
	DB         *database.DB
	Redis      *database.RedisClient
	Repository *database.Repository
	History    store.ScoreHistoryStore
	Service    *service.ScoringService
	Logger     *monitoring.Logger
	Metrics    *monitoring.Metrics
}

type Option func(*options)

type options struct {
	history store.ScoreHistoryStore
}

// WithHistory replaces the configured history backend, e.g. for dry runs.
func WithHistory(h store.ScoreHistoryStore) Option {
	return func(o *options) { o.history = h }
}

// Build opens storage and constructs the scoring service. The scoring
// configuration is validated before any connection is made.
func Build(ctx context.Context, cfg *config.Config, logger *monitoring.Logger, metrics *monitoring.Metrics, opts ...Option) (*App, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	if logger == nil {
		logger = monitoring.NopLogger()
	}

	svcCfg, err := cfg.ServiceConfig()
	if err != nil {
		return nil, err
	}

	a := &App{Config: cfg, Logger: logger, Metrics: metrics}

	a.DB, err = database.Open(ctx, cfg.Storage.Config)
	if err != nil {
		return nil, errors.NewStorageError("open", err)
	}

	a.Redis, err = database.NewRedisClient(ctx, cfg.Redis)
	if err != nil {
		if cfg.Storage.History == config.HistoryRedis {
			a.Close()
			return nil, errors.NewStorageError("connect_redis", err)
		}
		logger.Warn("Redis unavailable, continuing without it", "error", err)
		a.Redis = database.WrapRedisClient(nil)
	}

	a.Repository = database.NewRepository(a.DB)

	history := o.history
	if history == nil {
		history, err = a.historyStore()
		if err != nil {
			a.Close()
			return nil, err
		}
	}
	a.History = store.WithRetry(history, cfg.RetryConfig(), logger, metrics)

	a.Service, err = service.New(svcCfg, a.History,
		service.WithLogger(logger),
		service.WithMetrics(metrics),
	)
	if err != nil {
		a.Close()
		return nil, err
	}

	logger.SystemLogger("app_initialized", fmt.Sprintf("driver=%s history=%s", cfg.Storage.Driver, cfg.Storage.History))
	return a, nil
}

func (a *App) historyStore() (store.ScoreHistoryStore, error) {
	switch a.Config.Storage.History {
	case config.HistorySQL:
		return store.NewSQL(a.DB), nil
	case config.HistoryRedis:
		if !a.Redis.IsEnabled() {
			return nil, errors.NewConfigurationError("redis history requires a reachable redis", nil)
		}
		return store.NewRedis(a.Redis.GetClient(), a.Config.Storage.RedisPrefix), nil
	case config.HistoryMemory:
		return store.NewMemory(), nil
	}
	return nil, errors.NewConfigurationError(fmt.Sprintf("unknown history backend %q", a.Config.Storage.History), nil)
}

// Close releases database and Redis connections.
func (a *App) Close() {
	if a.Redis != nil {
		errors.SafeClose(a.Redis, "redis")
	}
	if a.DB != nil {
		errors.SafeClose(a.DB, "database")
	}
}
