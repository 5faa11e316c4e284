package ratelimit

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/go-redis/redis_rate/v10"
	"golang.org/x/time/rate"

	"github.com/ZanzyTHEbar/yecs/internal/database"
	"github.com/ZanzyTHEbar/yecs/internal/monitoring"
)

// Config holds rate limiter configuration
type Config struct {
	// RequestsPerMinute applies to every API request, keyed by client IP.
	RequestsPerMinute int `mapstructure:"requests_per_minute"`
	// ScoringPerMinute applies to score calculations, keyed by user id.
	ScoringPerMinute int           `mapstructure:"scoring_per_minute"`
	BurstMultiplier  int           `mapstructure:"burst_multiplier"`
	CleanupInterval  time.Duration `mapstructure:"cleanup_interval"`
}

// DefaultConfig returns default rate limiting configuration
func DefaultConfig() Config {
	return Config{
		RequestsPerMinute: 120,
		ScoringPerMinute:  10,
		BurstMultiplier:   1,
		CleanupInterval:   10 * time.Minute,
	}
}

// Rate is a request budget over a period.
type Rate struct {
	Limit  int
	Period time.Duration
}

// Result represents the result of a rate limit check
type Result struct {
	Allowed    bool
	Limit      int
	Remaining  int
	ResetAt    time.Time
	RetryAfter time.Duration
	Backend    string
}

type fallbackEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter limits through Redis when available and falls back to in-process
// token buckets when Redis is disabled or failing.
type RateLimiter struct {
	redisLimiter *redis_rate.Limiter
	redisClient  *database.RedisClient
	config       Config
	metrics      *monitoring.Metrics
	logger       *monitoring.Logger

	fallbackMutex    sync.Mutex
	fallbackLimiters map[string]*fallbackEntry

	stop      chan struct{}
	closeOnce sync.Once
}

func NewRateLimiter(redisClient *database.RedisClient, config Config, metrics *monitoring.Metrics, logger *monitoring.Logger) *RateLimiter {
	if logger == nil {
		logger = monitoring.NopLogger()
	}
	if config.BurstMultiplier < 1 {
		config.BurstMultiplier = 1
	}
	if config.CleanupInterval <= 0 {
		config.CleanupInterval = DefaultConfig().CleanupInterval
	}

	rl := &RateLimiter{
		redisClient:      redisClient,
		config:           config,
		metrics:          metrics,
		logger:           logger,
		fallbackLimiters: make(map[string]*fallbackEntry),
		stop:             make(chan struct{}),
	}

	if redisClient.IsEnabled() {
		rl.redisLimiter = redis_rate.NewLimiter(redisClient.GetClient())
		logger.Info("Redis rate limiter initialized")
	} else {
		logger.Warn("Redis unavailable, using in-memory rate limiting only")
	}

	go rl.cleanupLoop()
	return rl
}

// Close stops the background cleanup. Safe to call more than once.
func (rl *RateLimiter) Close() {
	rl.closeOnce.Do(func() { close(rl.stop) })
}

func (rl *RateLimiter) Config() Config { return rl.config }

// AllowIP applies the per-minute request budget to a client IP.
func (rl *RateLimiter) AllowIP(ctx context.Context, ip string) (*Result, error) {
	return rl.Allow(ctx, "ratelimit:ip:"+ip, Rate{Limit: rl.config.RequestsPerMinute, Period: time.Minute})
}

// AllowScoring applies the per-minute score calculation budget to a user.
func (rl *RateLimiter) AllowScoring(ctx context.Context, userID string) (*Result, error) {
	return rl.Allow(ctx, "ratelimit:score:"+userID, Rate{Limit: rl.config.ScoringPerMinute, Period: time.Minute})
}

// Allow consumes one request from key's budget. A non-positive limit disables limiting.
func (rl *RateLimiter) Allow(ctx context.Context, key string, r Rate) (*Result, error) {
	if r.Limit <= 0 || r.Period <= 0 {
		return &Result{Allowed: true, Limit: r.Limit, Backend: "disabled"}, nil
	}

	if rl.redisLimiter != nil && rl.redisClient.IsEnabled() {
		result, err := rl.allowRedis(ctx, key, r)
		if err == nil {
			return result, nil
		}
		rl.logger.Warn("Redis rate limit check failed, using fallback", "key", key, "error", err)
	}

	return rl.allowFallback(key, r), nil
}

func (rl *RateLimiter) allowRedis(ctx context.Context, key string, r Rate) (*Result, error) {
	res, err := rl.redisLimiter.Allow(ctx, key, redis_rate.Limit{
		Rate:   r.Limit,
		Burst:  r.Limit * rl.config.BurstMultiplier,
		Period: r.Period,
	})
	if err != nil {
		return nil, fmt.Errorf("redis rate limit check failed: %w", err)
	}

	retryAfter := res.RetryAfter
	if retryAfter < 0 {
		retryAfter = 0
	}

	return &Result{
		Allowed:    res.Allowed > 0,
		Limit:      r.Limit,
		Remaining:  res.Remaining,
		ResetAt:    time.Now().Add(res.ResetAfter),
		RetryAfter: retryAfter,
		Backend:    "redis",
	}, nil
}

func (rl *RateLimiter) allowFallback(key string, r Rate) *Result {
	now := time.Now()

	rl.fallbackMutex.Lock()
	entry, ok := rl.fallbackLimiters[key]
	if !ok {
		every := rate.Limit(float64(r.Limit) / r.Period.Seconds())
		entry = &fallbackEntry{limiter: rate.NewLimiter(every, r.Limit*rl.config.BurstMultiplier)}
		rl.fallbackLimiters[key] = entry
	}
	entry.lastSeen = now
	rl.fallbackMutex.Unlock()

	limiter := entry.limiter
	result := &Result{
		Limit:   r.Limit,
		ResetAt: now.Add(r.Period),
		Backend: "memory",
	}

	if limiter.AllowN(now, 1) {
		result.Allowed = true
		if remaining := int(limiter.TokensAt(now)); remaining > 0 {
			result.Remaining = remaining
		}
		return result
	}

	// how long until one token is available
	res := limiter.ReserveN(now, 1)
	if res.OK() {
		result.RetryAfter = res.DelayFrom(now)
		res.CancelAt(now)
	} else {
		result.RetryAfter = r.Period
	}
	result.ResetAt = now.Add(result.RetryAfter)
	return result
}

func (rl *RateLimiter) cleanupLoop() {
	ticker := time.NewTicker(rl.config.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-rl.stop:
			return
		case <-ticker.C:
			rl.cleanup(time.Now())
		}
	}
}

// cleanup drops fallback buckets idle for longer than the cleanup interval.
func (rl *RateLimiter) cleanup(now time.Time) int {
	rl.fallbackMutex.Lock()
	defer rl.fallbackMutex.Unlock()

	removed := 0
	for key, entry := range rl.fallbackLimiters {
		if now.Sub(entry.lastSeen) > rl.config.CleanupInterval {
			delete(rl.fallbackLimiters, key)
			removed++
		}
	}
	if removed > 0 {
		rl.logger.Debug("Cleaned up fallback rate limiters", "removed", removed)
	}
	return removed
}

// GetStats returns rate limiter statistics
func (rl *RateLimiter) GetStats() map[string]interface{} {
	rl.fallbackMutex.Lock()
	fallbackCount := len(rl.fallbackLimiters)
	rl.fallbackMutex.Unlock()

	stats := map[string]interface{}{
		"redis_enabled":     rl.redisClient.IsEnabled(),
		"fallback_limiters": fallbackCount,
		"config": map[string]interface{}{
			"requests_per_minute": rl.config.RequestsPerMinute,
			"scoring_per_minute":  rl.config.ScoringPerMinute,
			"burst_multiplier":    rl.config.BurstMultiplier,
		},
	}

	if rl.redisClient.IsEnabled() {
		stats["redis_pool"] = rl.redisClient.GetPoolStats()
	}

	return stats
}
