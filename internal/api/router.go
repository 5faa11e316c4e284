package api

import (
	"context"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/ZanzyTHEbar/yecs/internal/database"
	"github.com/ZanzyTHEbar/yecs/internal/errors"
	"github.com/ZanzyTHEbar/yecs/internal/monitoring"
	"github.com/ZanzyTHEbar/yecs/internal/ratelimit"
	"github.com/ZanzyTHEbar/yecs/internal/security"
	"github.com/ZanzyTHEbar/yecs/internal/service"
)

// Deps are the collaborators the router wires together. Limiter, Redis and DB are optional.
type Deps struct {
	Service    *service.ScoringService
	Repository *database.Repository
	DB         *database.DB
	Redis      *database.RedisClient
	Limiter    *ratelimit.RateLimiter
	Metrics    *monitoring.Metrics
	Logger     *monitoring.Logger

	CORSOrigins    []string
	RequestTimeout time.Duration
	Security       security.Config
	Version        string
}

// NewRouter builds the HTTP surface:
//
//	GET  /, /health, /metrics
//	POST /api/users
//	POST /api/users/:id/business-profile
//	POST /api/users/:id/financial-data
//	POST /api/users/:id/calculate-score
//	GET  /api/users/:id/scores
//	POST /api/bias-analysis
//	GET  /api/rate-limit/status
func NewRouter(deps Deps) *gin.Engine {
	if deps.Logger == nil {
		deps.Logger = monitoring.NopLogger()
	}
	if deps.Version == "" {
		deps.Version = "dev"
	}

	h := &Handler{
		svc:     deps.Service,
		repo:    deps.Repository,
		db:      deps.DB,
		redis:   deps.Redis,
		version: deps.Version,
		now:     time.Now,
	}

	router := gin.New()
	router.Use(errors.RecoveryHandler())
	router.Use(monitoring.MonitoringMiddleware(deps.Metrics, deps.Logger))
	router.Use(corsMiddleware(deps.CORSOrigins))
	router.Use(security.SecurityHeaders(deps.Security))
	router.Use(errors.ErrorHandler())

	router.GET("/", h.status)
	router.GET("/health", h.health)
	if deps.Metrics != nil {
		router.GET("/metrics", gin.WrapH(deps.Metrics.Handler()))
	}

	api := router.Group("/api")
	api.Use(timeoutMiddleware(deps.RequestTimeout))
	api.Use(security.JSONBody(deps.Security))
	if deps.Limiter != nil {
		api.Use(deps.Limiter.IPRateLimitMiddleware())
		api.GET("/rate-limit/status", deps.Limiter.HandleRateLimitStatus())
	}

	api.POST("/users", h.createUser)
	users := api.Group("/users/:id")
	{
		users.POST("/business-profile", h.createBusinessProfile)
		users.POST("/financial-data", h.createFinancialData)
		if deps.Limiter != nil {
			users.POST("/calculate-score", deps.Limiter.UserRateLimitMiddleware("id"), h.calculateScore)
		} else {
			users.POST("/calculate-score", h.calculateScore)
		}
		users.GET("/scores", h.scoreHistory)
	}
	api.POST("/bias-analysis", h.biasAnalysis)

	return router
}

func corsMiddleware(origins []string) gin.HandlerFunc {
	cfg := cors.DefaultConfig()
	if len(origins) == 0 {
		cfg.AllowAllOrigins = true
	} else {
		cfg.AllowOrigins = origins
	}
	cfg.AllowHeaders = append(cfg.AllowHeaders, "Authorization")
	cfg.ExposeHeaders = []string{"X-RateLimit-Limit", "X-RateLimit-Remaining", "X-RateLimit-Reset", "Retry-After"}
	cfg.MaxAge = 12 * time.Hour
	return cors.New(cfg)
}

// timeoutMiddleware bounds the request context. Work is abandoned, not
// persisted, once the deadline passes.
func timeoutMiddleware(timeout time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		if timeout <= 0 {
			c.Next()
			return
		}
		ctx, cancel := context.WithTimeout(c.Request.Context(), timeout)
		defer cancel()
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}
