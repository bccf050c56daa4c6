package postgres

import (
	"context"
	"time"

	"github.com/feyza/backend/internal/domain/trust"
	"github.com/feyza/backend/internal/domain/vouch"
	"github.com/jackc/pgx/v5/pgxpool"
)

type VouchRequestRepository struct {
	pool *pgxpool.Pool
}

func NewVouchRequestRepository(pool *pgxpool.Pool) *VouchRequestRepository {
	return &VouchRequestRepository{pool: pool}
}

const requestColumns = `id::text, requester_id::text, voucher_id::text, message, status, created_at, resolved_at`

func scanRequest(row interface{ Scan(...any) error }) (*trust.VouchRequest, error) {
	out := &trust.VouchRequest{}
	if err := row.Scan(&out.ID, &out.RequesterID, &out.VoucherID, &out.Message, &out.Status, &out.CreatedAt, &out.ResolvedAt); err != nil {
		return nil, notFound(err)
	}
	return out, nil
}

// CreateRequest returns the already pending request for the pair when the
// partial unique index rejects a second one.
func (r *VouchRequestRepository) CreateRequest(ctx context.Context, in vouch.NewRequest) (*trust.VouchRequest, error) {
	out, err := scanRequest(r.pool.QueryRow(ctx, `
INSERT INTO vouch_requests (requester_id, voucher_id, message, status, created_at)
VALUES ($1, $2, $3, 'pending', $4)
RETURNING `+requestColumns, in.RequesterID, in.VoucherID, in.Message, in.CreatedAt))
	if isUniqueViolation(err) {
		return r.GetPendingRequest(ctx, in.RequesterID, in.VoucherID)
	}
	return out, err
}

func (r *VouchRequestRepository) GetRequest(ctx context.Context, id string) (*trust.VouchRequest, error) {
	return scanRequest(r.pool.QueryRow(ctx, `SELECT `+requestColumns+` FROM vouch_requests WHERE id = $1`, id))
}

func (r *VouchRequestRepository) GetPendingRequest(ctx context.Context, requesterID, voucherID string) (*trust.VouchRequest, error) {
	return scanRequest(r.pool.QueryRow(ctx, `
SELECT `+requestColumns+` FROM vouch_requests
WHERE requester_id = $1 AND voucher_id = $2 AND status = 'pending'`, requesterID, voucherID))
}

func (r *VouchRequestRepository) ResolveRequest(ctx context.Context, id string, status trust.RequestStatus, at time.Time) (bool, error) {
	tag, err := r.pool.Exec(ctx, `
UPDATE vouch_requests SET status = $2, resolved_at = $3
WHERE id = $1 AND status = 'pending'`, id, string(status), at)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (r *VouchRequestRepository) ExpirePending(ctx context.Context, createdBefore, at time.Time) (int64, error) {
	tag, err := r.pool.Exec(ctx, `
UPDATE vouch_requests SET status = 'expired', resolved_at = $2
WHERE status = 'pending' AND created_at < $1`, createdBefore, at)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
