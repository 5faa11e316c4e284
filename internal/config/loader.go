package config

import (
	stderrors "errors"
	"log/slog"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/ZanzyTHEbar/yecs/internal/database"
	"github.com/ZanzyTHEbar/yecs/internal/errors"
	"github.com/ZanzyTHEbar/yecs/internal/fairness"
	"github.com/ZanzyTHEbar/yecs/internal/ratelimit"
	"github.com/ZanzyTHEbar/yecs/internal/resilience"
	"github.com/ZanzyTHEbar/yecs/internal/scoring"
	"github.com/ZanzyTHEbar/yecs/internal/security"
)

const envPrefix = "YECS"

// Load reads configuration from defaults, an optional YAML file and YECS_*
// environment variables, in increasing precedence. An empty path searches for
// yecs.yaml in . and ./configs; a missing file is not an error then.
func Load(path string) (*Config, error) {
	loadEnvFile()

	v := viper.New()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("yecs")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
	}

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !stderrors.As(err, &notFound) {
			return nil, errors.NewConfigurationError("failed to read config file", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, errors.NewConfigurationError("failed to unmarshal config", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Default returns the built-in configuration without consulting files or the environment.
func Default() *Config {
	v := viper.New()
	setDefaults(v)

	var cfg Config
	// defaults always decode
	_ = v.Unmarshal(&cfg)
	return &cfg
}

func loadEnvFile() {
	if _, err := os.Stat(".env"); err != nil {
		return
	}
	if err := godotenv.Load(".env"); err != nil {
		slog.Warn("Failed to load .env file", "error", err)
	}
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.mode", "release")
	v.SetDefault("server.request_timeout", "10s")
	v.SetDefault("server.shutdown_timeout", "15s")
	v.SetDefault("server.cors_origins", []string{"http://localhost:3000"})
	v.SetDefault("server.security.hsts", false)
	v.SetDefault("server.security.max_body_bytes", security.DefaultMaxBodyBytes)

	v.SetDefault("log.level", "info")

	db := database.DefaultConfig()
	v.SetDefault("storage.driver", string(db.Driver))
	v.SetDefault("storage.data_dir", db.DataDir)
	v.SetDefault("storage.postgres_dsn", "")
	v.SetDefault("storage.max_open_conns", db.MaxOpenConns)
	v.SetDefault("storage.max_idle_conns", db.MaxIdleConns)
	v.SetDefault("storage.conn_max_lifetime", db.ConnMaxLifetime)
	v.SetDefault("storage.history", HistorySQL)
	v.SetDefault("storage.redis_prefix", "yecs:")

	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)

	w := scoring.DefaultWeights()
	v.SetDefault("scoring.weights.business_viability", w.BusinessViability)
	v.SetDefault("scoring.weights.payment_history", w.PaymentHistory)
	v.SetDefault("scoring.weights.financial_management", w.FinancialManagement)
	v.SetDefault("scoring.weights.personal_creditworthiness", w.PersonalCreditworthiness)
	v.SetDefault("scoring.weights.education_background", w.EducationBackground)
	v.SetDefault("scoring.weights.social_verification", w.SocialVerification)

	t := scoring.DefaultRiskThresholds()
	v.SetDefault("scoring.risk_thresholds.low", t.Low)
	v.SetDefault("scoring.risk_thresholds.medium", t.Medium)
	v.SetDefault("scoring.risk_thresholds.high", t.High)

	p := scoring.DefaultParams()
	v.SetDefault("scoring.revenue_saturation", p.RevenueSaturation)
	v.SetDefault("scoring.experience_scale", p.ExperienceScale)
	v.SetDefault("scoring.industry_multipliers", scoring.DefaultIndustryMultipliers())
	v.SetDefault("scoring.credit_scorer", "bureau")
	v.SetDefault("scoring.social_scorer", "presence")

	b := fairness.DefaultConfig()
	v.SetDefault("bias.tolerance", b.Tolerance)
	v.SetDefault("bias.min_group_size", b.MinGroupSize)
	v.SetDefault("bias.attributes", b.Attributes)

	r := resilience.DefaultRetryConfig()
	v.SetDefault("retry.max_attempts", r.MaxAttempts)
	v.SetDefault("retry.initial_delay", r.InitialDelay)
	v.SetDefault("retry.max_delay", r.MaxDelay)
	v.SetDefault("retry.backoff_factor", r.BackoffFactor)
	v.SetDefault("retry.jitter_enabled", r.JitterEnabled)

	rl := ratelimit.DefaultConfig()
	v.SetDefault("ratelimit.requests_per_minute", rl.RequestsPerMinute)
	v.SetDefault("ratelimit.scoring_per_minute", rl.ScoringPerMinute)
	v.SetDefault("ratelimit.burst_multiplier", rl.BurstMultiplier)
	v.SetDefault("ratelimit.cleanup_interval", rl.CleanupInterval)
}
