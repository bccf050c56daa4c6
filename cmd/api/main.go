package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/feyza/backend/internal/app"
	"github.com/feyza/backend/internal/auth"
	"github.com/feyza/backend/internal/config"
	"github.com/feyza/backend/internal/db"
	"github.com/feyza/backend/internal/http/handlers"
	"github.com/feyza/backend/internal/observability"
	postgresrepo "github.com/feyza/backend/internal/repository/postgres"
	"github.com/feyza/backend/internal/server"
	"github.com/feyza/backend/internal/ws"
)

func main() {
	cfg := config.Load()
	logger := observability.ForComponent(observability.NewLogger(cfg.Env, cfg.LogLevel), "api")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	rt, err := app.Open(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to start runtime", "err", err)
		os.Exit(1)
	}
	defer rt.Close()

	if err := db.Migrate(ctx, rt.Pool, logger); err != nil {
		logger.Error("failed to apply migrations", "err", err)
		os.Exit(1)
	}

	sigCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	events := postgresrepo.NewEventRepository(rt.Pool)
	hub := ws.NewHub()
	notifier := ws.NewNotifier(events, hub, cfg.WSPollInterval, logger)
	if latest, err := events.LatestID(ctx); err != nil {
		logger.Warn("could not read ledger head, streaming from start", "err", err)
	} else {
		notifier.StartAfter(latest)
	}
	go func() {
		if err := notifier.Run(sigCtx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("trust event notifier stopped", "err", err)
		}
	}()

	svc := rt.Services
	var network handlers.NetworkReader
	var checks []handlers.Check
	if rt.Graph != nil {
		network = rt.Graph
		checks = append(checks, handlers.Check{Name: "vouch_graph", Pinger: rt.Graph})
	}
	if rt.Cache.Enabled() {
		checks = append(checks, handlers.Check{Name: "score_cache", Pinger: rt.Cache})
	}

	r := server.NewRouter(cfg, logger, server.Dependencies{
		Pinger:     rt.Pool,
		Checks:     checks,
		JWTManager: auth.NewJWTManager(cfg.JWTIssuer, cfg.JWTAudience, cfg.JWTSigningKey),
		Metrics:    rt.Metrics,
		Gatherer:   rt.Registry,
		Trust:      handlers.NewTrustHandler(svc.Scores, svc.Tiers, svc.Ledger, rt.Settings),
		Vouch:      handlers.NewVouchHandler(svc.Vouches, network),
		Hooks:      handlers.NewHooksHandler(svc.Reputation),
		Admin:      handlers.NewAdminHandler(svc.Backfill, svc.Reconciler),
		Stream:     ws.NewHandler(hub),
	})
	httpServer := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("api server starting", "addr", cfg.Addr())
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server failed", "err", err)
			os.Exit(1)
		}
	}()

	<-sigCtx.Done()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	_ = httpServer.Shutdown(shutdownCtx)
	logger.Info("api server stopped")
}
