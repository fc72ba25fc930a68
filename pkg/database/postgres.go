package database

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ekaya-inc/ekaya-reports/pkg/config"
)

// ApplicationName identifies engine connections in pg_stat_activity.
const ApplicationName = "ekaya-reports"

// DB is the engine database holding report templates.
type DB struct {
	*pgxpool.Pool
}

// Config holds pool settings for the engine database.
type Config struct {
	URL             string
	MaxConnections  int32
	MaxConnLifetime time.Duration
	MaxConnIdleTime time.Duration
}

// ConfigFrom builds pool settings from the loaded application configuration.
func ConfigFrom(cfg *config.DatabaseConfig) *Config {
	return &Config{
		URL:            cfg.ConnectionString(),
		MaxConnections: cfg.MaxConnections,
	}
}

// NewConnection opens the pool and verifies the server answers.
func NewConnection(ctx context.Context, cfg *Config) (*DB, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database URL: %w", err)
	}

	poolConfig.MaxConns = valueOr(cfg.MaxConnections, 25)
	poolConfig.MaxConnLifetime = valueOr(cfg.MaxConnLifetime, time.Hour)
	poolConfig.MaxConnIdleTime = valueOr(cfg.MaxConnIdleTime, 30*time.Minute)
	if _, ok := poolConfig.ConnConfig.RuntimeParams["application_name"]; !ok {
		poolConfig.ConnConfig.RuntimeParams["application_name"] = ApplicationName
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &DB{Pool: pool}, nil
}

func valueOr[T int32 | time.Duration](v, fallback T) T {
	if v == 0 {
		return fallback
	}
	return v
}

// Close closes the connection pool.
func (db *DB) Close() {
	if db.Pool != nil {
		db.Pool.Close()
	}
}
