package main

import (
	"context"
	"flag"
	"log/slog"
	"net/http"
	"net/http/pprof"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/ZanzyTHEbar/yecs/internal/api"
	"github.com/ZanzyTHEbar/yecs/internal/app"
	"github.com/ZanzyTHEbar/yecs/internal/config"
	"github.com/ZanzyTHEbar/yecs/internal/errors"
	"github.com/ZanzyTHEbar/yecs/internal/monitoring"
	"github.com/ZanzyTHEbar/yecs/internal/ratelimit"
)

var version = "dev"

func main() {
	configPath := flag.String("config", os.Getenv("YECS_CONFIG"), "path to a config file")
	flag.Parse()

	if err := run(*configPath); err != nil {
		slog.Error("Server exited with error", "error", err)
		if errors.IsConfiguration(err) {
			os.Exit(2)
		}
		os.Exit(1)
	}
}

func run(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	logger := monitoring.NewLogger(cfg.Log.Level)
	slog.SetDefault(logger.Logger)
	gin.SetMode(cfg.Server.Mode)

	metrics := monitoring.NewMetrics()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	a, err := app.Build(ctx, cfg, logger, metrics)
	cancel()
	if err != nil {
		return err
	}
	defer a.Close()

	limiter := ratelimit.NewRateLimiter(a.Redis, cfg.RateLimit, metrics, logger)
	defer limiter.Close()

	srv := newServer(a, limiter)

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Starting server", "addr", srv.Addr, "version", version, "history", cfg.Storage.History)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-quit:
	case err := <-errCh:
		return err
	}
	logger.Info("Shutting down server...")

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancelShutdown()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return errors.WrapError(err, "server forced to shutdown")
	}

	logger.Info("Server exited")
	return nil
}

func newServer(a *app.App, limiter *ratelimit.RateLimiter) *http.Server {
	cfg := a.Config
	r := api.NewRouter(api.Deps{
		Service:        a.Service,
		Repository:     a.Repository,
		DB:             a.DB,
		Redis:          a.Redis,
		Limiter:        limiter,
		Metrics:        a.Metrics,
		Logger:         a.Logger,
		CORSOrigins:    cfg.Server.CORSOrigins,
		RequestTimeout: cfg.Server.RequestTimeout,
		Security:       cfg.Server.Security,
		Version:        version,
	})

	// Performance profiling endpoints (development only)
	if os.Getenv("YECS_ENABLE_PROFILING") == "true" {
		a.Logger.Info("Enabling performance profiling endpoints")
		r.GET("/debug/pprof/*name", gin.WrapF(profileHandler))
	}

	return &http.Server{
		Addr:              cfg.Server.Addr(),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
}

func profileHandler(w http.ResponseWriter, r *http.Request) {
	switch strings.TrimPrefix(r.URL.Path, "/debug/pprof/") {
	case "cmdline":
		pprof.Cmdline(w, r)
	case "profile":
		pprof.Profile(w, r)
	case "symbol":
		pprof.Symbol(w, r)
	case "trace":
		pprof.Trace(w, r)
	default:
		pprof.Index(w, r)
	}
}
