package postgres

import (
	"context"

	"github.com/feyza/backend/internal/domain/businesstrust"
	"github.com/feyza/backend/internal/domain/trust"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

type BusinessTrustRepository struct {
	pool *pgxpool.Pool
}

func NewBusinessTrustRepository(pool *pgxpool.Pool) *BusinessTrustRepository {
	return &BusinessTrustRepository{pool: pool}
}

const businessTrustColumns = `
  borrower_id::text, business_id::text, total_amount_borrowed, total_amount_repaid,
  completed_loan_count, defaulted_loan_count, trust_status, has_graduated, created_at, updated_at`

func scanBusinessTrust(row interface{ Scan(...any) error }) (*businesstrust.Entity, error) {
	e := &businesstrust.Entity{}
	err := row.Scan(
		&e.BorrowerID, &e.BusinessID, &e.TotalAmountBorrowed, &e.TotalAmountRepaid,
		&e.CompletedLoanCount, &e.DefaultedLoanCount, &e.TrustStatus, &e.HasGraduated, &e.CreatedAt, &e.UpdatedAt,
	)
	if err != nil {
		return nil, notFound(err)
	}
	return e, nil
}

// GetOrCreate uses a no-op update on conflict so the existing row is returned.
func (r *BusinessTrustRepository) GetOrCreate(ctx context.Context, borrowerID, businessID string) (*businesstrust.Entity, error) {
	return scanBusinessTrust(r.pool.QueryRow(ctx, `
INSERT INTO borrower_business_trust (borrower_id, business_id, trust_status)
VALUES ($1, $2, 'new')
ON CONFLICT (borrower_id, business_id) DO UPDATE SET borrower_id = EXCLUDED.borrower_id
RETURNING`+businessTrustColumns, borrowerID, businessID))
}

func (r *BusinessTrustRepository) AddBorrowed(ctx context.Context, borrowerID, businessID string, amount decimal.Decimal) error {
	return r.exec(ctx, `
UPDATE borrower_business_trust
SET total_amount_borrowed = total_amount_borrowed + $3, updated_at = now()
WHERE borrower_id = $1 AND business_id = $2`, borrowerID, businessID, amount)
}

func (r *BusinessTrustRepository) AddRepaid(ctx context.Context, borrowerID, businessID string, amount decimal.Decimal) error {
	return r.exec(ctx, `
UPDATE borrower_business_trust
SET total_amount_repaid = total_amount_repaid + $3, updated_at = now()
WHERE borrower_id = $1 AND business_id = $2`, borrowerID, businessID, amount)
}

func (r *BusinessTrustRepository) SetProgress(ctx context.Context, borrowerID, businessID string, completed int, status businesstrust.Status, graduated bool) error {
	return r.exec(ctx, `
UPDATE borrower_business_trust
SET completed_loan_count = $3, trust_status = $4, has_graduated = $5, updated_at = now()
WHERE borrower_id = $1 AND business_id = $2`, borrowerID, businessID, completed, string(status), graduated)
}

// MarkDefaulted suspends the relationship; graduation history is kept.
func (r *BusinessTrustRepository) MarkDefaulted(ctx context.Context, borrowerID, businessID string) error {
	return r.exec(ctx, `
UPDATE borrower_business_trust
SET defaulted_loan_count = defaulted_loan_count + 1, trust_status = 'suspended', updated_at = now()
WHERE borrower_id = $1 AND business_id = $2`, borrowerID, businessID)
}

func (r *BusinessTrustRepository) ListByBorrower(ctx context.Context, borrowerID string) ([]businesstrust.Entity, error) {
	rows, err := r.pool.Query(ctx, `
SELECT`+businessTrustColumns+` FROM borrower_business_trust
WHERE borrower_id = $1
ORDER BY created_at ASC`, borrowerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]businesstrust.Entity, 0)
	for rows.Next() {
		e, err := scanBusinessTrust(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *e)
	}
	return out, rows.Err()
}

func (r *BusinessTrustRepository) exec(ctx context.Context, q string, args ...any) error {
	tag, err := r.pool.Exec(ctx, q, args...)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return trust.ErrNotFound
	}
	return nil
}
