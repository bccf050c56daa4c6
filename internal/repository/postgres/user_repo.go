package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/feyza/backend/internal/domain/trust"
	"github.com/jackc/pgx/v5/pgxpool"
)

type UserRepository struct {
	pool *pgxpool.Pool
}

func NewUserRepository(pool *pgxpool.Pool) *UserRepository {
	return &UserRepository{pool: pool}
}

const userColumns = `
  id::text, trust_tier, vouch_count, trust_tier_updated_at, vouching_success_rate::float8,
  payments_on_time, payments_early, payments_late, payments_missed, total_payments_made,
  identity_verified, employment_verified, address_verified, bank_connected,
  is_active, created_at`

func scanUser(row interface{ Scan(...any) error }) (*trust.User, error) {
	u := &trust.User{}
	err := row.Scan(
		&u.ID, &u.TrustTier, &u.VouchCount, &u.TrustTierUpdatedAt, &u.VouchingSuccessRate,
		&u.PaymentsOnTime, &u.PaymentsEarly, &u.PaymentsLate, &u.PaymentsMissed, &u.TotalPaymentsMade,
		&u.IdentityVerified, &u.EmploymentVerified, &u.AddressVerified, &u.BankConnected,
		&u.IsActive, &u.CreatedAt,
	)
	if err != nil {
		return nil, notFound(err)
	}
	return u, nil
}

func (r *UserRepository) GetByID(ctx context.Context, userID string) (*trust.User, error) {
	return scanUser(r.pool.QueryRow(ctx, `SELECT`+userColumns+` FROM users WHERE id = $1`, userID))
}

func (r *UserRepository) UpdateTier(ctx context.Context, userID string, tier trust.Tier, vouchCount int, at time.Time) error {
	tag, err := r.pool.Exec(ctx, `
UPDATE users SET trust_tier = $2, vouch_count = $3, trust_tier_updated_at = $4
WHERE id = $1`, userID, string(tier), vouchCount, at)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return trust.ErrNotFound
	}
	return nil
}

func (r *UserRepository) UpdateVouchingSuccessRate(ctx context.Context, userID string, rate float64) error {
	tag, err := r.pool.Exec(ctx, `UPDATE users SET vouching_success_rate = $2 WHERE id = $1`, userID, rate)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return trust.ErrNotFound
	}
	return nil
}

// IncrementPaymentCounter bumps the per-kind counter. Missed payments do not
// count toward total_payments_made.
func (r *UserRepository) IncrementPaymentCounter(ctx context.Context, userID string, kind trust.PaymentKind) error {
	var q string
	switch kind {
	case trust.PaymentEarly:
		q = `UPDATE users SET payments_early = payments_early + 1, total_payments_made = total_payments_made + 1 WHERE id = $1`
	case trust.PaymentLate:
		q = `UPDATE users SET payments_late = payments_late + 1, total_payments_made = total_payments_made + 1 WHERE id = $1`
	case trust.PaymentMissed:
		q = `UPDATE users SET payments_missed = payments_missed + 1 WHERE id = $1`
	case trust.PaymentOnTime:
		q = `UPDATE users SET payments_on_time = payments_on_time + 1, total_payments_made = total_payments_made + 1 WHERE id = $1`
	default:
		return fmt.Errorf("unknown payment kind %q", kind)
	}
	tag, err := r.pool.Exec(ctx, q, userID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return trust.ErrNotFound
	}
	return nil
}

func (r *UserRepository) ListIDs(ctx context.Context, afterID string, limit int32) ([]string, error) {
	if limit <= 0 {
		limit = 200
	}
	rows, err := r.pool.Query(ctx, `
SELECT id::text FROM users
WHERE id::text > $1
ORDER BY id::text ASC
LIMIT $2`, afterID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]string, 0)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}
