package ratelimit

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// HandleRateLimitStatus reports the limits that apply to the caller and the limiter backend.
func (rl *RateLimiter) HandleRateLimitStatus() gin.HandlerFunc {
	return func(c *gin.Context) {
		backend := "memory"
		if rl.redisLimiter != nil && rl.redisClient.IsEnabled() {
			backend = "redis"
		}

		c.JSON(http.StatusOK, gin.H{
			"ip":      c.ClientIP(),
			"backend": backend,
			"limits": gin.H{
				"requests_per_minute": rl.config.RequestsPerMinute,
				"scoring_per_minute":  rl.config.ScoringPerMinute,
			},
			"stats":     rl.GetStats(),
			"timestamp": time.Now().UTC().Format(time.RFC3339),
		})
	}
}
