package postgres

import (
	"context"
	"time"

	"github.com/feyza/backend/internal/domain/trust"
	"github.com/feyza/backend/internal/domain/vouch"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type VouchRepository struct {
	pool *pgxpool.Pool
}

func NewVouchRepository(pool *pgxpool.Pool) *VouchRepository {
	return &VouchRepository{pool: pool}
}

const vouchColumns = `
  id::text, voucher_id::text, vouchee_id::text, status, vouch_type, relationship, known_years,
  message, vouch_strength, trust_score_boost, loans_active, loans_completed, loans_defaulted,
  created_at, updated_at, revoked_at`

func scanVouch(row interface{ Scan(...any) error }) (*trust.Vouch, error) {
	v := &trust.Vouch{}
	err := row.Scan(
		&v.ID, &v.VoucherID, &v.VoucheeID, &v.Status, &v.VouchType, &v.Relationship, &v.KnownYears,
		&v.Message, &v.VouchStrength, &v.TrustScoreBoost, &v.LoansActive, &v.LoansCompleted, &v.LoansDefaulted,
		&v.CreatedAt, &v.UpdatedAt, &v.RevokedAt,
	)
	if err != nil {
		return nil, err
	}
	return v, nil
}

// Create inserts an active vouch. The partial unique index on active pairs
// turns a concurrent duplicate into vouch.ErrDuplicate.
func (r *VouchRepository) Create(ctx context.Context, in vouch.NewVouch) (*trust.Vouch, error) {
	q := `
INSERT INTO vouches (
  voucher_id, vouchee_id, status, vouch_type, relationship, known_years, message,
  vouch_strength, trust_score_boost, created_at, updated_at
) VALUES ($1, $2, 'active', $3, $4, $5, $6, $7, $7, $8, $8)
RETURNING` + vouchColumns

	v, err := scanVouch(r.pool.QueryRow(ctx, q,
		in.VoucherID, in.VoucheeID, string(in.VouchType), string(in.Relationship), in.KnownYears,
		in.Message, in.VouchStrength, in.CreatedAt,
	))
	if isUniqueViolation(err) {
		return nil, vouch.ErrDuplicate
	}
	if err != nil {
		return nil, err
	}
	return v, nil
}

func (r *VouchRepository) GetByID(ctx context.Context, id string) (*trust.Vouch, error) {
	v, err := scanVouch(r.pool.QueryRow(ctx, `SELECT`+vouchColumns+` FROM vouches WHERE id = $1`, id))
	if err != nil {
		return nil, notFound(err)
	}
	return v, nil
}

func (r *VouchRepository) GetActiveByPair(ctx context.Context, voucherID, voucheeID string) (*trust.Vouch, error) {
	v, err := scanVouch(r.pool.QueryRow(ctx, `
SELECT`+vouchColumns+` FROM vouches
WHERE voucher_id = $1 AND vouchee_id = $2 AND status = 'active'`, voucherID, voucheeID))
	if err != nil {
		return nil, notFound(err)
	}
	return v, nil
}

func (r *VouchRepository) UpdateMetadata(ctx context.Context, id string, in vouch.MetadataUpdate) error {
	return r.exec(ctx, `
UPDATE vouches SET vouch_type = $2, relationship = $3, known_years = $4, message = $5,
  vouch_strength = $6, trust_score_boost = $6, updated_at = now()
WHERE id = $1`, id, string(in.VouchType), string(in.Relationship), in.KnownYears, in.Message, in.VouchStrength)
}

func (r *VouchRepository) UpdateStrength(ctx context.Context, id string, strength int) error {
	return r.exec(ctx, `
UPDATE vouches SET vouch_strength = $2, trust_score_boost = $2, updated_at = now()
WHERE id = $1`, id, strength)
}

func (r *VouchRepository) Revoke(ctx context.Context, id string, at time.Time) (bool, error) {
	tag, err := r.pool.Exec(ctx, `
UPDATE vouches SET status = 'revoked', revoked_at = $2, updated_at = $2
WHERE id = $1 AND status = 'active'`, id, at)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (r *VouchRepository) CountActiveByVouchee(ctx context.Context, voucheeID string) (int, error) {
	var n int
	err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM vouches WHERE vouchee_id = $1 AND status = 'active'`, voucheeID).Scan(&n)
	return n, err
}

func (r *VouchRepository) ListActiveByVouchee(ctx context.Context, voucheeID string) ([]trust.Vouch, error) {
	return r.list(ctx, `WHERE vouchee_id = $1 AND status = 'active' ORDER BY created_at, id`, voucheeID)
}

func (r *VouchRepository) ListActiveByVoucher(ctx context.Context, voucherID string) ([]trust.Vouch, error) {
	return r.list(ctx, `WHERE voucher_id = $1 AND status = 'active' ORDER BY created_at, id`, voucherID)
}

func (r *VouchRepository) ListByVoucher(ctx context.Context, voucherID string) ([]trust.Vouch, error) {
	return r.list(ctx, `WHERE voucher_id = $1 ORDER BY created_at DESC, id`, voucherID)
}

func (r *VouchRepository) ListByVouchee(ctx context.Context, voucheeID string) ([]trust.Vouch, error) {
	return r.list(ctx, `WHERE vouchee_id = $1 ORDER BY created_at DESC, id`, voucheeID)
}

func (r *VouchRepository) ListActive(ctx context.Context, afterID string, limit int32) ([]trust.Vouch, error) {
	if limit <= 0 {
		limit = 200
	}
	return r.list(ctx, `WHERE status = 'active' AND id::text > $1 ORDER BY id::text LIMIT $2`, afterID, limit)
}

func (r *VouchRepository) IncrementLoansActive(ctx context.Context, id string) error {
	return r.exec(ctx, `UPDATE vouches SET loans_active = loans_active + 1, updated_at = now() WHERE id = $1`, id)
}

func (r *VouchRepository) RecordLoanCompleted(ctx context.Context, id string) error {
	return r.exec(ctx, `
UPDATE vouches SET loans_completed = loans_completed + 1,
  loans_active = GREATEST(loans_active - 1, 0), updated_at = now()
WHERE id = $1`, id)
}

func (r *VouchRepository) RecordLoanDefaulted(ctx context.Context, id string) error {
	return r.exec(ctx, `
UPDATE vouches SET loans_defaulted = loans_defaulted + 1,
  loans_active = GREATEST(loans_active - 1, 0), updated_at = now()
WHERE id = $1`, id)
}

func (r *VouchRepository) VoucherOutcomes(ctx context.Context, voucherID string) (int, int, error) {
	var completed, defaulted int
	err := r.pool.QueryRow(ctx, `
SELECT COALESCE(SUM(loans_completed), 0), COALESCE(SUM(loans_defaulted), 0)
FROM vouches WHERE voucher_id = $1`, voucherID).Scan(&completed, &defaulted)
	return completed, defaulted, err
}

func (r *VouchRepository) exec(ctx context.Context, q string, args ...any) error {
	tag, err := r.pool.Exec(ctx, q, args...)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return trust.ErrNotFound
	}
	return nil
}

func (r *VouchRepository) list(ctx context.Context, where string, args ...any) ([]trust.Vouch, error) {
	rows, err := r.pool.Query(ctx, `SELECT`+vouchColumns+` FROM vouches `+where, args...)
	if err != nil {
		return nil, err
	}
	return collectVouches(rows)
}

func collectVouches(rows pgx.Rows) ([]trust.Vouch, error) {
	defer rows.Close()
	out := make([]trust.Vouch, 0)
	for rows.Next() {
		v, err := scanVouch(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *v)
	}
	return out, rows.Err()
}
