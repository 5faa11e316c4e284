package ratelimit

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/ZanzyTHEbar/yecs/internal/errors"
)

// IPRateLimitMiddleware creates middleware for IP-based rate limiting
func (rl *RateLimiter) IPRateLimitMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		result, err := rl.AllowIP(c.Request.Context(), c.ClientIP())
		rl.enforce(c, result, err)
	}
}

// UserRateLimitMiddleware limits score calculations per user id taken from the
// named path parameter.
func (rl *RateLimiter) UserRateLimitMiddleware(param string) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := c.Param(param)
		if userID == "" {
			c.Next()
			return
		}
		result, err := rl.AllowScoring(c.Request.Context(), userID)
		rl.enforce(c, result, err)
	}
}

func (rl *RateLimiter) enforce(c *gin.Context, result *Result, err error) {
	if err != nil {
		// never block a request because the limiter failed
		rl.logger.Error("Rate limit check failed", "path", c.FullPath(), "error", err)
		c.Next()
		return
	}
	if result.Backend == "disabled" {
		c.Next()
		return
	}

	c.Header("X-RateLimit-Limit", strconv.Itoa(result.Limit))
	c.Header("X-RateLimit-Remaining", strconv.Itoa(result.Remaining))
	c.Header("X-RateLimit-Reset", strconv.FormatInt(result.ResetAt.Unix(), 10))

	if result.Allowed {
		c.Next()
		return
	}

	rl.metrics.RecordRateLimited(result.Backend)

	retryAfter := int(result.RetryAfter.Round(time.Second).Seconds())
	if retryAfter < 1 {
		retryAfter = 1
	}
	c.Header("Retry-After", strconv.Itoa(retryAfter))

	appErr := errors.NewRateLimitError(strconv.Itoa(retryAfter) + "s")
	c.AbortWithStatusJSON(http.StatusTooManyRequests, errors.Response(appErr))
}
