package infra

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/tradeportal/portal_auth/internal/config"
	"github.com/tradeportal/portal_auth/internal/credential"
)

// NewPostgresPool configures and returns a PostgreSQL connection pool.
func NewPostgresPool(ctx context.Context, url, appName string) (*pgxpool.Pool, error) {
	if url == "" {
		return nil, fmt.Errorf("database url is required")
	}

	cfg, err := pgxpool.ParseConfig(url)
	if err != nil {
		return nil, fmt.Errorf("parse postgres config: %w", err)
	}
	if appName != "" {
		cfg.ConnConfig.RuntimeParams["application_name"] = appName
	}
	cfg.MaxConnIdleTime = 5 * time.Minute
	cfg.HealthCheckPeriod = 30 * time.Second

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	return pool, nil
}

// OpenStore connects to Postgres and applies migrations. In development
// without DATABASE_URL it falls back to the in-memory store and returns a nil pool.
func OpenStore(ctx context.Context, cfg config.Config, logger *slog.Logger) (credential.Store, *pgxpool.Pool, error) {
	if cfg.DatabaseURL == "" && cfg.IsDevelopment() {
		logger.Warn("DATABASE_URL not set, using in-memory credential store")
		return credential.NewMemoryStore(), nil, nil
	}
	pool, err := NewPostgresPool(ctx, cfg.DatabaseURL, cfg.AppName)
	if err != nil {
		return nil, nil, err
	}
	if err := credential.Migrate(ctx, pool); err != nil {
		pool.Close()
		return nil, nil, err
	}
	return credential.NewPostgresStore(pool), pool, nil
}
