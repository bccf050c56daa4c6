package tier

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/feyza/backend/internal/domain/trust"
)

type UserRepository interface {
	GetByID(ctx context.Context, userID string) (*trust.User, error)
	UpdateTier(ctx context.Context, userID string, tier trust.Tier, vouchCount int, at time.Time) error
}

type VouchCounter interface {
	CountActiveByVouchee(ctx context.Context, voucheeID string) (int, error)
}

// Cascader re-prices the vouches a user has given after their tier moved.
type Cascader interface {
	CascadeOnTierChange(ctx context.Context, userID string, newTier trust.Tier) (*trust.CascadeResult, error)
}

// Update is the outcome of CalculateSimpleTrustTier.
type Update struct {
	trust.TierInfo
	PreviousTier trust.Tier           `json:"previous_tier"`
	Changed      bool                 `json:"changed"`
	Cascade      *trust.CascadeResult `json:"cascade,omitempty"`
	CascadeError string               `json:"cascade_error,omitempty"`
}

type Service struct {
	users    UserRepository
	vouches  VouchCounter
	cascader Cascader
	logger   *slog.Logger
	now      func() time.Time
}

func NewService(users UserRepository, vouches VouchCounter, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Service{
		users:   users,
		vouches: vouches,
		logger:  logger,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// SetCascader wires the vouch manager after construction; the two services
// depend on each other.
func (s *Service) SetCascader(c Cascader) {
	s.cascader = c
}

func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// CalculateSimpleTrustTier recounts active vouches received, persists the tier
// before returning and cascades when the tier moved.
func (s *Service) CalculateSimpleTrustTier(ctx context.Context, userID string) (*Update, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, trust.NewValidationError("user_id", "required")
	}
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("load user: %w", err)
	}
	count, err := s.vouches.CountActiveByVouchee(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("count active vouches: %w", err)
	}

	info := trust.Classify(count)
	if err := s.users.UpdateTier(ctx, userID, info.Tier, info.VouchCount, s.now()); err != nil {
		return nil, fmt.Errorf("persist tier: %w", err)
	}

	out := &Update{TierInfo: info, PreviousTier: user.TrustTier}
	out.Changed = user.TrustTier != info.Tier
	if !out.Changed || s.cascader == nil {
		return out, nil
	}

	s.logger.Info("trust tier changed", "user_id", userID, "from", user.TrustTier, "to", info.Tier, "vouch_count", info.VouchCount)
	cascade, err := s.cascader.CascadeOnTierChange(ctx, userID, info.Tier)
	if err != nil {
		// The tier write already committed; backfill repairs the cascade.
		s.logger.Error("tier cascade failed", "user_id", userID, "err", err)
		out.CascadeError = err.Error()
		return out, nil
	}
	out.Cascade = cascade
	return out, nil
}

// GetStoredTier classifies the cached vouch_count without touching vouches.
func (s *Service) GetStoredTier(ctx context.Context, userID string) (*trust.TierInfo, *time.Time, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, nil, err
	}
	info := trust.Classify(user.VouchCount)
	return &info, user.TrustTierUpdatedAt, nil
}

// GetTier serves the stored tier while it is younger than freshness and
// recounts otherwise.
func (s *Service) GetTier(ctx context.Context, userID string, freshness time.Duration) (*trust.TierInfo, error) {
	info, updatedAt, err := s.GetStoredTier(ctx, userID)
	if err != nil {
		return nil, err
	}
	if updatedAt != nil && freshness > 0 && s.now().Sub(*updatedAt) < freshness {
		return info, nil
	}
	update, err := s.CalculateSimpleTrustTier(ctx, userID)
	if err != nil {
		return nil, err
	}
	return &update.TierInfo, nil
}
