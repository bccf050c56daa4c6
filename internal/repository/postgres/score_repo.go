package postgres

import (
	"context"

	"github.com/feyza/backend/internal/domain/trust"
	"github.com/jackc/pgx/v5/pgxpool"
)

type ScoreRepository struct {
	pool *pgxpool.Pool
}

func NewScoreRepository(pool *pgxpool.Pool) *ScoreRepository {
	return &ScoreRepository{pool: pool}
}

const scoreReturning = `
RETURNING user_id::text, payment_score, completion_score, social_score, verification_score,
          tenure_score, overall_score, weight_profile, last_calculated_at`

func (r *ScoreRepository) Upsert(ctx context.Context, s trust.Score) (*trust.Score, error) {
	q := `
INSERT INTO trust_scores (
  user_id, payment_score, completion_score, social_score, verification_score,
  tenure_score, overall_score, weight_profile, last_calculated_at
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
ON CONFLICT (user_id) DO UPDATE SET
  payment_score = EXCLUDED.payment_score,
  completion_score = EXCLUDED.completion_score,
  social_score = EXCLUDED.social_score,
  verification_score = EXCLUDED.verification_score,
  tenure_score = EXCLUDED.tenure_score,
  overall_score = EXCLUDED.overall_score,
  weight_profile = EXCLUDED.weight_profile,
  last_calculated_at = EXCLUDED.last_calculated_at` + scoreReturning

	out := &trust.Score{}
	err := r.pool.QueryRow(ctx, q,
		s.UserID, s.PaymentScore, s.CompletionScore, s.SocialScore, s.VerificationScore,
		s.TenureScore, s.OverallScore, s.WeightProfile, s.LastCalculatedAt,
	).Scan(
		&out.UserID, &out.PaymentScore, &out.CompletionScore, &out.SocialScore, &out.VerificationScore,
		&out.TenureScore, &out.OverallScore, &out.WeightProfile, &out.LastCalculatedAt,
	)
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (r *ScoreRepository) GetByUserID(ctx context.Context, userID string) (*trust.Score, error) {
	q := `
SELECT user_id::text, payment_score, completion_score, social_score, verification_score,
       tenure_score, overall_score, weight_profile, last_calculated_at
FROM trust_scores WHERE user_id = $1`
	out := &trust.Score{}
	err := r.pool.QueryRow(ctx, q, userID).Scan(
		&out.UserID, &out.PaymentScore, &out.CompletionScore, &out.SocialScore, &out.VerificationScore,
		&out.TenureScore, &out.OverallScore, &out.WeightProfile, &out.LastCalculatedAt,
	)
	if err != nil {
		return nil, notFound(err)
	}
	return out, nil
}
