package config

import (
	"fmt"
	"time"

	"github.com/ZanzyTHEbar/yecs/internal/database"
	"github.com/ZanzyTHEbar/yecs/internal/errors"
	"github.com/ZanzyTHEbar/yecs/internal/fairness"
	"github.com/ZanzyTHEbar/yecs/internal/ratelimit"
	"github.com/ZanzyTHEbar/yecs/internal/resilience"
	"github.com/ZanzyTHEbar/yecs/internal/scoring"
	"github.com/ZanzyTHEbar/yecs/internal/security"
	"github.com/ZanzyTHEbar/yecs/internal/service"
)

// History backends for the score ledger.
const (
	HistorySQL    = "sql"
	HistoryRedis  = "redis"
	HistoryMemory = "memory"
)

// Config is the main application configuration struct.
type Config struct {
	Server    ServerConfig           `mapstructure:"server"`
	Log       LogConfig              `mapstructure:"log"`
	Storage   StorageConfig          `mapstructure:"storage"`
	Redis     database.RedisConfig   `mapstructure:"redis"`
	Scoring   ScoringConfig          `mapstructure:"scoring"`
	Bias      fairness.Config        `mapstructure:"bias"`
	Retry     resilience.RetryConfig `mapstructure:"retry"`
	RateLimit ratelimit.Config       `mapstructure:"ratelimit"`
}

type ServerConfig struct {
	Port            int             `mapstructure:"port"`
	Mode            string          `mapstructure:"mode"`
	RequestTimeout  time.Duration   `mapstructure:"request_timeout"`
	ShutdownTimeout time.Duration   `mapstructure:"shutdown_timeout"`
	CORSOrigins     []string        `mapstructure:"cors_origins"`
	Security        security.Config `mapstructure:"security"`
}

func (s ServerConfig) Addr() string { return fmt.Sprintf(":%d", s.Port) }

type LogConfig struct {
	Level string `mapstructure:"level"`
}

type StorageConfig struct {
	database.Config `mapstructure:",squash"`
	// History selects where score records are kept: sql, redis or memory.
	History     string `mapstructure:"history"`
	RedisPrefix string `mapstructure:"redis_prefix"`
}

// ScoringConfig carries the weight table, risk bounds and scorer tunables.
type ScoringConfig struct {
	Weights             scoring.Weights        `mapstructure:"weights"`
	Thresholds          scoring.RiskThresholds `mapstructure:"risk_thresholds"`
	RevenueSaturation   float64                `mapstructure:"revenue_saturation"`
	ExperienceScale     float64                `mapstructure:"experience_scale"`
	IndustryMultipliers map[string]float64     `mapstructure:"industry_multipliers"`
	// CreditScorer is "bureau" or "neutral"; SocialScorer is "presence" or "neutral".
	CreditScorer string `mapstructure:"credit_scorer"`
	SocialScorer string `mapstructure:"social_scorer"`
}

// Params builds the scorer parameters. Unknown scorer names are a ConfigurationError.
func (s ScoringConfig) Params() (scoring.Params, error) {
	p := scoring.DefaultParams()
	p.RevenueSaturation = s.RevenueSaturation
	p.ExperienceScale = s.ExperienceScale
	if len(s.IndustryMultipliers) > 0 {
		p.IndustryMultipliers = make(map[string]float64, len(s.IndustryMultipliers))
		for k, v := range s.IndustryMultipliers {
			p.IndustryMultipliers[k] = v
		}
	}

	switch s.CreditScorer {
	case "", "bureau":
		p.Credit = scoring.BureauScorer{}
	case "neutral":
		p.Credit = scoring.NeutralScorer{}
	default:
		return scoring.Params{}, errors.NewConfigurationError(fmt.Sprintf("unknown credit scorer %q", s.CreditScorer), nil)
	}

	switch s.SocialScorer {
	case "", "presence":
		p.Social = scoring.PresenceScorer{}
	case "neutral":
		p.Social = scoring.NeutralScorer{}
	default:
		return scoring.Params{}, errors.NewConfigurationError(fmt.Sprintf("unknown social scorer %q", s.SocialScorer), nil)
	}

	return p, p.Validate()
}

// ServiceConfig produces the immutable configuration for service.New.
func (c *Config) ServiceConfig() (service.Config, error) {
	params, err := c.Scoring.Params()
	if err != nil {
		return service.Config{}, err
	}
	return service.Config{
		Weights:    c.Scoring.Weights,
		Thresholds: c.Scoring.Thresholds,
		Params:     params,
		Bias:       c.BiasConfig(),
	}, nil
}

func (c *Config) BiasConfig() fairness.Config {
	b := c.Bias
	b.Attributes = append([]string(nil), c.Bias.Attributes...)
	return b
}

// RetryConfig returns the storage retry policy with the default error classifier.
func (c *Config) RetryConfig() resilience.RetryConfig {
	r := c.Retry
	r.RetryableErrors = errors.IsRetryableError
	return r
}

// Validate checks every section. All failures are ConfigurationErrors.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return errors.NewConfigurationError(fmt.Sprintf("server.port must be in 1..65535, got %d", c.Server.Port), nil)
	}
	if c.Server.Security.MaxBodyBytes <= 0 {
		return errors.NewConfigurationError("server.security.max_body_bytes must be positive", nil)
	}

	switch c.Storage.Driver {
	case database.DialectSQLite:
		if c.Storage.DataDir == "" {
			return errors.NewConfigurationError("storage.data_dir is required for sqlite", nil)
		}
	case database.DialectPostgres:
		if c.Storage.PostgresDSN == "" {
			return errors.NewConfigurationError("storage.postgres_dsn is required for postgres", nil)
		}
	default:
		return errors.NewConfigurationError(fmt.Sprintf("unknown storage.driver %q", c.Storage.Driver), nil)
	}

	switch c.Storage.History {
	case HistorySQL, HistoryMemory:
	case HistoryRedis:
		if c.Redis.Addr == "" {
			return errors.NewConfigurationError("redis.addr is required when storage.history is redis", nil)
		}
	default:
		return errors.NewConfigurationError(fmt.Sprintf("unknown storage.history %q", c.Storage.History), nil)
	}

	if c.Retry.MaxAttempts < 1 {
		return errors.NewConfigurationError("retry.max_attempts must be at least 1", nil)
	}

	svcCfg, err := c.ServiceConfig()
	if err != nil {
		return err
	}
	if err := svcCfg.Weights.Validate(); err != nil {
		return err
	}
	if err := svcCfg.Thresholds.Validate(); err != nil {
		return err
	}
	return svcCfg.Bias.Validate()
}
