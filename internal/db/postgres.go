package db

import (
	"context"
	"fmt"
	"time"

	"github.com/feyza/backend/internal/config"
	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	applicationName        = "feyza-trust"
	defaultMaxConnLifetime = 30 * time.Minute
	healthCheckPeriod      = time.Minute
)

// NewPostgresPool opens the pool behind every trust repository and fails fast
// when the database is unreachable.
func NewPostgresPool(ctx context.Context, cfg config.Config) (*pgxpool.Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}

	poolCfg.MaxConns = cfg.DBMaxConns
	poolCfg.MinConns = cfg.DBMinConns
	poolCfg.MaxConnLifetime = defaultMaxConnLifetime
	if d, err := time.ParseDuration(cfg.DBMaxConnLifetime); err == nil && d > 0 {
		poolCfg.MaxConnLifetime = d
	}
	poolCfg.HealthCheckPeriod = healthCheckPeriod
	if _, ok := poolCfg.ConnConfig.RuntimeParams["application_name"]; !ok {
		poolCfg.ConnConfig.RuntimeParams["application_name"] = applicationName
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("open postgres pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return pool, nil
}
