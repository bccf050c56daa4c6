package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/feyza/backend/internal/app"
	"github.com/feyza/backend/internal/config"
	"github.com/feyza/backend/internal/observability"
)

// The worker drains the outbox, replays recent payments through the
// completion hook and expires stale vouch requests.
func main() {
	cfg := config.Load()
	logger := observability.ForComponent(observability.NewLogger(cfg.Env, cfg.LogLevel), "worker")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	rt, err := app.Open(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to start runtime", "err", err)
		os.Exit(1)
	}
	defer rt.Close()

	svc := rt.Services
	interval := cfg.WorkerPollInterval
	if interval <= 0 {
		interval = 2 * time.Second
	}
	reconcileEvery := cfg.ReconcileInterval
	if reconcileEvery <= 0 {
		reconcileEvery = 15 * time.Minute
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	reconcile := time.NewTicker(reconcileEvery)
	defer reconcile.Stop()

	sigCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info("worker started", "interval", interval.String(), "batch_size", cfg.WorkerBatchSize,
		"reconcile_interval", reconcileEvery.String())
	for {
		select {
		case <-sigCtx.Done():
			logger.Info("worker stopped")
			return
		case <-ticker.C:
			runCtx, runCancel := context.WithTimeout(context.Background(), 30*time.Second)
			err := svc.Worker.RunOnce(runCtx, cfg.WorkerBatchSize)
			runCancel()
			if err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("worker run failed", "err", err)
			}
		case <-reconcile.C:
			runCtx, runCancel := context.WithTimeout(context.Background(), 5*time.Minute)
			if _, err := svc.Reconciler.Run(runCtx); err != nil {
				logger.Error("payment reconciliation failed", "err", err)
			}
			current, _ := rt.Settings.Get(runCtx)
			if n, err := svc.Vouches.ExpireRequests(runCtx, current.VouchRequestTTL); err != nil {
				logger.Error("vouch request expiry failed", "err", err)
			} else if n > 0 {
				logger.Info("expired vouch requests", "count", n)
			}
			runCancel()
		}
	}
}
