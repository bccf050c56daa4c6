// Package app assembles the trust core from its stores. The API, the worker
// and trustctl all build the same graph of services through Build.
package app

import (
	"context"
	"io"
	"log/slog"
	"time"

	"github.com/feyza/backend/internal/domain/businesstrust"
	"github.com/feyza/backend/internal/domain/loan"
	"github.com/feyza/backend/internal/domain/reputation"
	"github.com/feyza/backend/internal/domain/tier"
	"github.com/feyza/backend/internal/domain/trust"
	"github.com/feyza/backend/internal/domain/vouch"
	"github.com/feyza/backend/internal/jobs"
	"github.com/feyza/backend/internal/observability"
)

type Stores struct {
	Users    trust.UserRepository
	Stats    trust.StatsRepository
	Scores   trust.ScoreRepository
	Events   trust.EventRepository
	Vouches  vouch.Repository
	Requests vouch.RequestRepository
	Loans    loan.Repository
	Business businesstrust.Repository
	Outbox   jobs.OutboxRepository
}

type Options struct {
	Logger      *slog.Logger
	Metrics     *observability.Metrics
	ScoreCache  trust.ScoreCache
	Projector   vouch.GraphProjector
	DedupWindow func(ctx context.Context) time.Duration
	Clock       func() time.Time

	BackfillBatchSize  int32
	ReconcileLookback  time.Duration
	ReconcileBatchSize int32
}

type Services struct {
	Tiers      *tier.Service
	Scores     *trust.ScoreService
	Ledger     *trust.Ledger
	Vouches    *vouch.Manager
	Business   *businesstrust.Service
	Reputation *reputation.Service
	Backfill   *jobs.Backfiller
	Reconciler *jobs.Reconciler
	Worker     *jobs.Worker
}

func Build(st Stores, opts Options) *Services {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	scoreOpts := []trust.ScoreOption{trust.WithScoreLogger(logger)}
	vouchOpts := []vouch.Option{vouch.WithLogger(logger)}
	repOpts := []reputation.Option{reputation.WithLogger(logger)}
	if opts.ScoreCache != nil {
		scoreOpts = append(scoreOpts, trust.WithScoreCache(opts.ScoreCache))
	}
	if opts.Projector != nil {
		vouchOpts = append(vouchOpts, vouch.WithProjector(opts.Projector))
	}
	if m := opts.Metrics; m != nil {
		scoreOpts = append(scoreOpts, trust.WithRecalcObserver(m.ObserveRecalc))
		vouchOpts = append(vouchOpts, vouch.WithCascadeObserver(m.ObserveCascade))
		repOpts = append(repOpts, reputation.WithDedupObserver(m.ObserveDedupSkip))
	}

	tiers := tier.NewService(st.Users, st.Vouches, logger)
	ledger := trust.NewLedger(st.Events, opts.DedupWindow)
	if opts.Clock != nil {
		tiers.WithClock(opts.Clock)
		ledger.WithClock(opts.Clock)
		scoreOpts = append(scoreOpts, trust.WithScoreClock(opts.Clock))
		vouchOpts = append(vouchOpts, vouch.WithClock(opts.Clock))
		repOpts = append(repOpts, reputation.WithClock(opts.Clock))
	}
	scores := trust.NewScoreService(st.Stats, st.Scores, scoreOpts...)
	manager := vouch.NewManager(st.Vouches, st.Requests, st.Users, tiers, scores, ledger, vouchOpts...)
	tiers.SetCascader(manager)

	svc := &Services{
		Tiers:   tiers,
		Scores:  scores,
		Ledger:  ledger,
		Vouches: manager,
	}
	if st.Business != nil {
		svc.Business = businesstrust.NewService(st.Business)
		repOpts = append(repOpts, reputation.WithBusinessTrust(svc.Business))
	}
	svc.Reputation = reputation.NewService(ledger, st.Users, scores, manager, st.Loans, repOpts...)

	svc.Backfill = jobs.NewBackfiller(st.Users, st.Vouches, manager, tiers, scores, opts.BackfillBatchSize, logger)
	svc.Reconciler = jobs.NewReconciler(st.Loans, svc.Reputation, opts.ReconcileLookback, opts.ReconcileBatchSize, logger)
	if opts.Clock != nil {
		svc.Reconciler.WithClock(opts.Clock)
	}
	if st.Outbox != nil {
		svc.Worker = jobs.NewWorker(st.Outbox, svc.Reputation, tiers, scores, logger)
	}
	if m := opts.Metrics; m != nil {
		svc.Backfill.WithObserver(m.ObserveBackfillErrors)
		if svc.Worker != nil {
			svc.Worker.WithObserver(m.ObserveOutboxJob)
		}
	}
	return svc
}
