package database

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
)

type Dialect string

const (
	DialectSQLite   Dialect = "sqlite"
	DialectPostgres Dialect = "postgres"
)

// Config selects and tunes the SQL backend.
type Config struct {
	Driver          Dialect       `mapstructure:"driver"`
	DataDir         string        `mapstructure:"data_dir"`
	PostgresDSN     string        `mapstructure:"postgres_dsn"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

func DefaultConfig() Config {
	return Config{
		Driver:          DialectSQLite,
		DataDir:         "./data",
		MaxOpenConns:    25,
		MaxIdleConns:    5,
		ConnMaxLifetime: 5 * time.Minute,
	}
}

// DB represents the database connection with pooling
type DB struct {
	*sql.DB
	dialect Dialect
	pool    *ConnectionPool
}

// ConnectionPool manages database connection pooling
type ConnectionPool struct {
	db           *sql.DB
	maxOpenConns int
	maxIdleConns int
	maxLifetime  time.Duration
}

// NewConnectionPool creates a new database connection pool
func NewConnectionPool(db *sql.DB, maxOpen, maxIdle int, maxLifetime time.Duration) *ConnectionPool {
	db.SetMaxOpenConns(maxOpen)
	db.SetMaxIdleConns(maxIdle)
	db.SetConnMaxLifetime(maxLifetime)

	return &ConnectionPool{
		db:           db,
		maxOpenConns: maxOpen,
		maxIdleConns: maxIdle,
		maxLifetime:  maxLifetime,
	}
}

// GetStats returns connection pool statistics
func (cp *ConnectionPool) GetStats() map[string]interface{} {
	stats := cp.db.Stats()

	return map[string]interface{}{
		"open_connections":     stats.OpenConnections,
		"in_use":               stats.InUse,
		"idle":                 stats.Idle,
		"max_open_connections": cp.maxOpenConns,
		"max_idle_connections": cp.maxIdleConns,
		"wait_count":           stats.WaitCount,
		"wait_duration_ms":     stats.WaitDuration.Milliseconds(),
	}
}

// Open connects to the configured backend, applies pooling and runs migrations.
func Open(ctx context.Context, cfg Config) (*DB, error) {
	var (
		driverName string
		dsn        string
	)

	switch cfg.Driver {
	case DialectSQLite, "":
		cfg.Driver = DialectSQLite
		if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create data directory: %w", err)
		}
		dbPath := filepath.Join(cfg.DataDir, "yecs.db")
		driverName = "sqlite3"
		dsn = fmt.Sprintf("file:%s?_journal_mode=WAL&_synchronous=NORMAL&_foreign_keys=on&_busy_timeout=5000", dbPath)
	case DialectPostgres:
		if cfg.PostgresDSN == "" {
			return nil, fmt.Errorf("postgres driver selected but no DSN configured")
		}
		driverName = "postgres"
		dsn = cfg.PostgresDSN
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}

	sqlDB, err := sql.Open(driverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := sqlDB.PingContext(ctx); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	maxOpen, maxIdle, lifetime := cfg.MaxOpenConns, cfg.MaxIdleConns, cfg.ConnMaxLifetime
	if maxOpen <= 0 {
		maxOpen = 25
	}
	if maxIdle <= 0 {
		maxIdle = 5
	}
	if lifetime <= 0 {
		lifetime = 5 * time.Minute
	}

	db := New(sqlDB, cfg.Driver)
	db.pool = NewConnectionPool(sqlDB, maxOpen, maxIdle, lifetime)

	if err := db.Migrate(ctx); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	slog.Info("Database initialized with connection pooling",
		"driver", cfg.Driver,
		"max_open_conns", maxOpen,
		"max_idle_conns", maxIdle,
		"max_lifetime", lifetime)

	return db, nil
}

// New wraps an existing handle without migrating it.
func New(sqlDB *sql.DB, dialect Dialect) *DB {
	return &DB{DB: sqlDB, dialect: dialect}
}

func (db *DB) Dialect() Dialect { return db.dialect }

// Rebind rewrites ? placeholders into $n for postgres.
func (db *DB) Rebind(query string) string {
	if db.dialect != DialectPostgres {
		return query
	}

	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for i := 0; i < len(query); i++ {
		if query[i] == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteByte(query[i])
	}
	return b.String()
}

// Migrate creates the necessary tables
func (db *DB) Migrate(ctx context.Context) error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS users (
			id TEXT PRIMARY KEY,
			email TEXT NOT NULL UNIQUE,
			first_name TEXT NOT NULL,
			last_name TEXT NOT NULL,
			age INTEGER NOT NULL,
			created_at BIGINT NOT NULL
		)`,

		`CREATE TABLE IF NOT EXISTS business_profiles (
			id TEXT PRIMARY KEY,
			user_id TEXT NOT NULL REFERENCES users(id),
			business_name TEXT NOT NULL DEFAULT '',
			industry TEXT NOT NULL,
			education_level TEXT NOT NULL DEFAULT '',
			business_plan_quality DOUBLE PRECISION,
			revenue_projection DOUBLE PRECISION,
			years_of_experience DOUBLE PRECISION,
			identity_verification DOUBLE PRECISION,
			professional_network DOUBLE PRECISION,
			online_presence DOUBLE PRECISION,
			community_involvement DOUBLE PRECISION,
			created_at BIGINT NOT NULL
		)`,

		`CREATE TABLE IF NOT EXISTS financial_data (
			id TEXT PRIMARY KEY,
			user_id TEXT NOT NULL REFERENCES users(id),
			monthly_income DOUBLE PRECISION,
			monthly_expenses DOUBLE PRECISION,
			savings_amount DOUBLE PRECISION,
			debt_amount DOUBLE PRECISION,
			utility_payment_score DOUBLE PRECISION,
			rent_payment_score DOUBLE PRECISION,
			traditional_credit_score INTEGER,
			credit_utilization DOUBLE PRECISION,
			recent_credit_inquiries INTEGER,
			created_at BIGINT NOT NULL
		)`,

		// Append-only score ledger. created_at is unix nanoseconds.
		`CREATE TABLE IF NOT EXISTS score_records (
			score_id TEXT PRIMARY KEY,
			user_id TEXT NOT NULL,
			yecs_score INTEGER NOT NULL,
			risk_level TEXT NOT NULL,
			business_viability DOUBLE PRECISION NOT NULL,
			payment_history DOUBLE PRECISION NOT NULL,
			financial_management DOUBLE PRECISION NOT NULL,
			personal_creditworthiness DOUBLE PRECISION NOT NULL,
			education_background DOUBLE PRECISION NOT NULL,
			social_verification DOUBLE PRECISION NOT NULL,
			age_bracket TEXT NOT NULL,
			education_level TEXT NOT NULL,
			industry TEXT NOT NULL,
			created_at BIGINT NOT NULL
		)`,

		`CREATE INDEX IF NOT EXISTS idx_business_profiles_user ON business_profiles(user_id, created_at)`,
		`CREATE INDEX IF NOT EXISTS idx_financial_data_user ON financial_data(user_id, created_at)`,
		`CREATE INDEX IF NOT EXISTS idx_score_records_user ON score_records(user_id, created_at)`,
	}

	for _, query := range queries {
		if _, err := db.ExecContext(ctx, query); err != nil {
			return fmt.Errorf("failed to execute migration: %w", err)
		}
	}

	return nil
}

// GetPoolStats returns database connection pool statistics
func (db *DB) GetPoolStats() map[string]interface{} {
	if db.pool == nil {
		return map[string]interface{}{"driver": string(db.dialect)}
	}
	stats := db.pool.GetStats()
	stats["driver"] = string(db.dialect)
	return stats
}

// HealthCheck pings the database.
func (db *DB) HealthCheck(ctx context.Context) error {
	return db.PingContext(ctx)
}
