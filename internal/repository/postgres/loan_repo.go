package postgres

import (
	"context"
	"time"

	"github.com/feyza/backend/internal/domain/loan"
	"github.com/jackc/pgx/v5/pgxpool"
)

// LoanRepository reads loans and payment_schedules owned by the lending service.
type LoanRepository struct {
	pool *pgxpool.Pool
}

func NewLoanRepository(pool *pgxpool.Pool) *LoanRepository {
	return &LoanRepository{pool: pool}
}

func (r *LoanRepository) GetByID(ctx context.Context, id string) (*loan.Entity, error) {
	q := `
SELECT id::text, borrower_id::text, COALESCE(lender_id::text, ''), business_lender_id::text,
       amount, status, created_at
FROM loans WHERE id = $1`
	out := &loan.Entity{}
	var business *string
	err := r.pool.QueryRow(ctx, q, id).Scan(
		&out.ID, &out.BorrowerID, &out.LenderID, &business, &out.Amount, &out.Status, &out.CreatedAt,
	)
	if err != nil {
		return nil, notFound(err)
	}
	if business != nil {
		out.BusinessLenderID = *business
	}
	return out, nil
}

func (r *LoanRepository) CountUnpaidInstallments(ctx context.Context, loanID string) (int, error) {
	var n int
	err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM payment_schedules WHERE loan_id = $1 AND NOT is_paid`, loanID).Scan(&n)
	return n, err
}

func (r *LoanRepository) ListPaidSince(ctx context.Context, since time.Time, afterID string, limit int32) ([]loan.Payment, error) {
	if limit <= 0 {
		limit = 200
	}
	rows, err := r.pool.Query(ctx, `
SELECT ps.id::text, ps.loan_id::text, l.borrower_id::text, ps.amount, ps.due_date, ps.paid_at
FROM payment_schedules ps
JOIN loans l ON l.id = ps.loan_id
WHERE ps.is_paid AND ps.paid_at >= $1 AND ps.id::text > $2
ORDER BY ps.id::text ASC
LIMIT $3`, since, afterID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]loan.Payment, 0)
	for rows.Next() {
		var p loan.Payment
		if err := rows.Scan(&p.ID, &p.LoanID, &p.BorrowerID, &p.Amount, &p.DueDate, &p.PaidAt); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}
