package postgres

import (
	"context"
	"time"

	"github.com/feyza/backend/internal/domain/trust"
	"github.com/jackc/pgx/v5/pgxpool"
)

// StatsRepository gathers the score inputs for one user in a single read.
type StatsRepository struct {
	pool  *pgxpool.Pool
	users *UserRepository
}

func NewStatsRepository(pool *pgxpool.Pool) *StatsRepository {
	return &StatsRepository{pool: pool, users: NewUserRepository(pool)}
}

func (r *StatsRepository) LoadStats(ctx context.Context, userID string, now time.Time) (*trust.Stats, error) {
	u, err := r.users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	st := &trust.Stats{User: *u, ReceivedStrengths: []int{}}

	// The lending service flips loans.status on its own schedule; the ledger's
	// loan markers count as soon as a hook settles the loan.
	q := `
WITH settled AS (
  SELECT l.id, l.status,
    l.status = 'completed' OR EXISTS (
      SELECT 1 FROM trust_score_events e
      WHERE e.loan_id = l.id AND e.user_id = $1 AND e.event_type = $3) AS completed,
    l.status = 'defaulted' OR EXISTS (
      SELECT 1 FROM trust_score_events e
      WHERE e.loan_id = l.id AND e.user_id = $1 AND e.event_type = $4) AS defaulted
  FROM loans l
  WHERE l.borrower_id = $1 AND l.status <> 'pending'
)
SELECT
  (SELECT COUNT(*) FROM settled),
  (SELECT COUNT(*) FROM settled WHERE completed),
  (SELECT COUNT(*) FROM settled WHERE defaulted AND NOT completed),
  (SELECT COUNT(*) FROM payment_schedules ps JOIN loans l ON l.id = ps.loan_id
    WHERE l.borrower_id = $1 AND l.status <> 'pending' AND NOT ps.is_paid AND ps.due_date < $2),
  (SELECT COUNT(*) FROM vouches WHERE voucher_id = $1 AND status = 'active'),
  (SELECT COALESCE(SUM(loans_completed), 0) FROM vouches WHERE voucher_id = $1),
  (SELECT COALESCE(SUM(loans_defaulted), 0) FROM vouches WHERE voucher_id = $1)
`
	err = r.pool.QueryRow(ctx, q, userID, now, string(trust.EventLoanCompleted), string(trust.EventLoanDefaulted)).Scan(
		&st.LoansTaken, &st.LoansCompleted, &st.LoansDefaulted, &st.OverdueInstallments,
		&st.VouchesGiven, &st.GivenLoansCompleted, &st.GivenLoansDefaulted,
	)
	if err != nil {
		return nil, err
	}

	rows, err := r.pool.Query(ctx, `
SELECT vouch_strength FROM vouches
WHERE vouchee_id = $1 AND status = 'active'
ORDER BY vouch_strength ASC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var s int
		if err := rows.Scan(&s); err != nil {
			return nil, err
		}
		st.ReceivedStrengths = append(st.ReceivedStrengths, s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return st, nil
}
