package postgres

import (
	"github.com/feyza/backend/internal/domain/businesstrust"
	"github.com/feyza/backend/internal/domain/loan"
	"github.com/feyza/backend/internal/domain/trust"
	"github.com/feyza/backend/internal/domain/vouch"
	"github.com/feyza/backend/internal/jobs"
	"github.com/feyza/backend/internal/settings"
)

var (
	_ trust.UserRepository     = (*UserRepository)(nil)
	_ trust.StatsRepository    = (*StatsRepository)(nil)
	_ trust.ScoreRepository    = (*ScoreRepository)(nil)
	_ trust.EventRepository    = (*EventRepository)(nil)
	_ vouch.Repository         = (*VouchRepository)(nil)
	_ vouch.RequestRepository  = (*VouchRequestRepository)(nil)
	_ loan.Repository          = (*LoanRepository)(nil)
	_ businesstrust.Repository = (*BusinessTrustRepository)(nil)
	_ settings.Store           = (*SettingsRepository)(nil)
	_ jobs.OutboxRepository    = (*OutboxRepository)(nil)
	_ jobs.OutboxEnqueuer      = (*OutboxRepository)(nil)
)
