package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/feyza/backend/internal/cache"
	"github.com/feyza/backend/internal/config"
	"github.com/feyza/backend/internal/db"
	"github.com/feyza/backend/internal/graph"
	"github.com/feyza/backend/internal/observability"
	postgresrepo "github.com/feyza/backend/internal/repository/postgres"
	"github.com/feyza/backend/internal/settings"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
)

// Runtime owns the process-wide connections. Redis and Neo4j are optional;
// when unconfigured the score cache is a no-op and Graph is nil.
type Runtime struct {
	Config   config.Config
	Logger   *slog.Logger
	Pool     *pgxpool.Pool
	Registry *prometheus.Registry
	Metrics  *observability.Metrics
	Cache    *cache.ScoreCache
	Graph    *graph.VouchGraph
	Settings *settings.Cache
	Outbox   *postgresrepo.OutboxRepository
	Stores   Stores
	Services *Services

	graphClient graph.Client
}

func Open(ctx context.Context, cfg config.Config, logger *slog.Logger) (*Runtime, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	pool, err := db.NewPostgresPool(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	rt := &Runtime{Config: cfg, Logger: logger, Pool: pool}

	rt.Registry = prometheus.NewRegistry()
	rt.Metrics = observability.NewMetrics(rt.Registry, pool)
	rt.Cache = cache.NewScoreCache(cfg.RedisURL, logger)

	if cfg.Neo4jURI != "" {
		client, err := graph.NewNeo4jClient(ctx, graph.Options{
			URI:      cfg.Neo4jURI,
			Database: cfg.Neo4jDatabase,
			Username: cfg.Neo4jUser,
			Password: cfg.Neo4jPassword,
		})
		if err != nil {
			logger.Warn("neo4j unavailable, vouch graph disabled", "err", err)
		} else {
			rt.graphClient = client
			rt.Graph = graph.NewVouchGraph(client)
		}
	}

	rt.Settings = settings.NewCache(postgresrepo.NewSettingsRepository(pool), settings.Settings{
		DedupWindow:     cfg.TrustDedupWindow,
		ScoreStaleAfter: cfg.TrustScoreStaleAfter,
		TierFreshness:   cfg.TrustTierFreshness,
		VouchRequestTTL: cfg.VouchRequestTTL,
	}, cfg.TrustSettingsTTL, nil, logger)

	rt.Outbox = postgresrepo.NewOutboxRepository(pool)
	rt.Stores = PostgresStores(pool)
	rt.Stores.Outbox = rt.Outbox

	opts := Options{
		Logger:             logger,
		Metrics:            rt.Metrics,
		ScoreCache:         rt.Cache,
		DedupWindow:        rt.Settings.DedupWindow,
		BackfillBatchSize:  cfg.BackfillBatchSize,
		ReconcileLookback:  cfg.ReconcileLookback,
		ReconcileBatchSize: cfg.BackfillBatchSize,
	}
	if rt.Graph != nil {
		opts.Projector = rt.Graph
	}
	rt.Services = Build(rt.Stores, opts)
	return rt, nil
}

func PostgresStores(pool *pgxpool.Pool) Stores {
	vouches := postgresrepo.NewVouchRepository(pool)
	return Stores{
		Users:    postgresrepo.NewUserRepository(pool),
		Stats:    postgresrepo.NewStatsRepository(pool),
		Scores:   postgresrepo.NewScoreRepository(pool),
		Events:   postgresrepo.NewEventRepository(pool),
		Vouches:  vouches,
		Requests: postgresrepo.NewVouchRequestRepository(pool),
		Loans:    postgresrepo.NewLoanRepository(pool),
		Business: postgresrepo.NewBusinessTrustRepository(pool),
	}
}

func (rt *Runtime) Close() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if rt.graphClient != nil {
		if err := rt.graphClient.Close(ctx); err != nil {
			rt.Logger.Warn("neo4j close failed", "err", err)
		}
	}
	if rt.Cache != nil {
		_ = rt.Cache.Close()
	}
	rt.Pool.Close()
}
