package trust

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"
)

// ScoreCache is an optional read-through cache in front of ScoreRepository.
type ScoreCache interface {
	GetScore(ctx context.Context, userID string) (*Score, error)
	SetScore(ctx context.Context, score *Score) error
	InvalidateScore(ctx context.Context, userID string) error
}

// RecalcObserver receives the outcome of every recalculation.
type RecalcObserver func(profile string, took time.Duration, err error)

type ScoreService struct {
	stats    StatsRepository
	scores   ScoreRepository
	cache    ScoreCache
	policy   ScoringPolicy
	logger   *slog.Logger
	observer RecalcObserver
	now      func() time.Time
}

type ScoreOption func(*ScoreService)

func WithScoreCache(c ScoreCache) ScoreOption {
	return func(s *ScoreService) { s.cache = c }
}

func WithScoringPolicy(p ScoringPolicy) ScoreOption {
	return func(s *ScoreService) { s.policy = p }
}

func WithScoreLogger(l *slog.Logger) ScoreOption {
	return func(s *ScoreService) {
		if l != nil {
			s.logger = l
		}
	}
}

func WithRecalcObserver(o RecalcObserver) ScoreOption {
	return func(s *ScoreService) { s.observer = o }
}

func WithScoreClock(now func() time.Time) ScoreOption {
	return func(s *ScoreService) { s.now = now }
}

func NewScoreService(stats StatsRepository, scores ScoreRepository, opts ...ScoreOption) *ScoreService {
	s := &ScoreService{
		stats:  stats,
		scores: scores,
		policy: DefaultScoringPolicy(),
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
		now:    func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *ScoreService) Policy() ScoringPolicy {
	return s.policy
}

// Recalculate recomputes and persists the user's score. It is convergent: two
// runs over the same store state write the same row.
func (s *ScoreService) Recalculate(ctx context.Context, userID string) (*Score, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, NewValidationError("user_id", "required")
	}
	started := time.Now()
	now := s.now()

	stats, err := s.stats.LoadStats(ctx, userID, now)
	if err != nil {
		s.observe("", started, err)
		return nil, fmt.Errorf("load trust stats: %w", err)
	}

	b := s.policy.Compute(stats, now)
	saved, err := s.scores.Upsert(ctx, Score{
		UserID:            userID,
		PaymentScore:      roundScore(b.Payment),
		CompletionScore:   roundScore(b.Completion),
		SocialScore:       roundScore(b.Social),
		VerificationScore: roundScore(b.Verification),
		TenureScore:       roundScore(b.Tenure),
		OverallScore:      roundScore(b.Overall),
		WeightProfile:     b.Profile.Name,
		LastCalculatedAt:  now,
	})
	if err != nil {
		s.observe(b.Profile.Name, started, err)
		return nil, fmt.Errorf("persist trust score: %w", err)
	}

	if s.cache != nil {
		if err := s.cache.SetScore(ctx, saved); err != nil {
			s.logger.Warn("trust score cache write failed", "user_id", userID, "err", err)
		}
	}
	s.observe(b.Profile.Name, started, nil)
	s.logger.Debug("trust score recalculated", "user_id", userID, "overall", saved.OverallScore, "profile", saved.WeightProfile)
	return saved, nil
}

// GetScore returns the stored row without recalculating.
func (s *ScoreService) GetScore(ctx context.Context, userID string) (*Score, error) {
	if s.cache != nil {
		cached, err := s.cache.GetScore(ctx, userID)
		if err != nil {
			s.logger.Warn("trust score cache read failed", "user_id", userID, "err", err)
		} else if cached != nil {
			return cached, nil
		}
	}
	score, err := s.scores.GetByUserID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if s.cache != nil {
		if err := s.cache.SetScore(ctx, score); err != nil {
			s.logger.Warn("trust score cache write failed", "user_id", userID, "err", err)
		}
	}
	return score, nil
}

// GetFreshScore returns the stored score unless it is missing or older than
// maxAge, in which case it recalculates. maxAge <= 0 always recalculates.
func (s *ScoreService) GetFreshScore(ctx context.Context, userID string, maxAge time.Duration) (score *Score, recalculated bool, err error) {
	if maxAge > 0 {
		score, err = s.GetScore(ctx, userID)
		if err != nil && !errors.Is(err, ErrNotFound) {
			return nil, false, err
		}
		if score != nil && s.now().Sub(score.LastCalculatedAt) <= maxAge {
			return score, false, nil
		}
	}
	score, err = s.Recalculate(ctx, userID)
	if err != nil {
		return nil, false, err
	}
	return score, true, nil
}

func (s *ScoreService) observe(profile string, started time.Time, err error) {
	if s.observer != nil {
		s.observer(profile, time.Since(started), err)
	}
}
