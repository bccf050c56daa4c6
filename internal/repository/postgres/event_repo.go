package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/feyza/backend/internal/domain/trust"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type EventRepository struct {
	pool *pgxpool.Pool
}

func NewEventRepository(pool *pgxpool.Pool) *EventRepository {
	return &EventRepository{pool: pool}
}

const eventColumns = `id, user_id::text, loan_id::text, event_type, points_delta, idempotency_key, scope, occurred_at, created_at`

func scanEvent(row interface{ Scan(...any) error }) (*trust.Event, error) {
	ev := &trust.Event{}
	if err := row.Scan(&ev.ID, &ev.UserID, &ev.LoanID, &ev.EventType, &ev.PointsDelta, &ev.IdempotencyKey, &ev.Scope, &ev.OccurredAt, &ev.CreatedAt); err != nil {
		return nil, err
	}
	return ev, nil
}

// Insert relies on the unique idempotency_key index: a conflicting insert
// returns no row and reports inserted=false.
func (r *EventRepository) Insert(ctx context.Context, in trust.EventInput) (*trust.Event, bool, error) {
	q := `
INSERT INTO trust_score_events (user_id, loan_id, event_type, points_delta, idempotency_key, scope, occurred_at, created_at)
VALUES ($1, NULLIF($2, '')::uuid, $3, $4, NULLIF($5, ''), NULLIF($6, ''), COALESCE($7::timestamptz, $8::timestamptz), $8)
ON CONFLICT (idempotency_key) DO NOTHING
RETURNING ` + eventColumns

	ev, err := scanEvent(r.pool.QueryRow(ctx, q,
		in.UserID, in.LoanID, string(in.EventType), in.PointsDelta, in.IdempotencyKey, in.Scope, nullTime(in.OccurredAt), in.CreatedAt,
	))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return ev, true, nil
}

func (r *EventRepository) ExistsInWindow(ctx context.Context, q trust.DedupQuery) (bool, error) {
	names := make([]string, 0, len(q.Types))
	for _, t := range q.Types {
		names = append(names, string(t))
	}
	var exists bool
	err := r.pool.QueryRow(ctx, `
SELECT EXISTS (
  SELECT 1 FROM trust_score_events
  WHERE loan_id = $1 AND user_id = $2 AND event_type = ANY($3)
    AND occurred_at BETWEEN $4 AND $5
    AND (NOT $6 OR scope IS NULL)
)`, q.LoanID, q.UserID, names, q.From, q.To, q.UnscopedOnly).Scan(&exists)
	return exists, err
}

func (r *EventRepository) ExistsForLoan(ctx context.Context, loanID string, eventType trust.EventType) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx, `
SELECT EXISTS (SELECT 1 FROM trust_score_events WHERE loan_id = $1 AND event_type = $2)`,
		loanID, string(eventType)).Scan(&exists)
	return exists, err
}

func (r *EventRepository) ListByUser(ctx context.Context, userID string, limit, offset int32) ([]trust.Event, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.pool.Query(ctx, `
SELECT `+eventColumns+` FROM trust_score_events
WHERE user_id = $1
ORDER BY id DESC
LIMIT $2 OFFSET $3`, userID, limit, offset)
	if err != nil {
		return nil, err
	}
	return collectEvents(rows)
}

func (r *EventRepository) ListSince(ctx context.Context, lastID int64, limit int32) ([]trust.Event, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.pool.Query(ctx, `
SELECT `+eventColumns+` FROM trust_score_events
WHERE id > $1
ORDER BY id ASC
LIMIT $2`, lastID, limit)
	if err != nil {
		return nil, err
	}
	return collectEvents(rows)
}

// LatestID is the highest ledger id, 0 for an empty ledger.
func (r *EventRepository) LatestID(ctx context.Context) (int64, error) {
	var id int64
	err := r.pool.QueryRow(ctx, `SELECT COALESCE(MAX(id), 0) FROM trust_score_events`).Scan(&id)
	return id, err
}

func nullTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}

func collectEvents(rows pgx.Rows) ([]trust.Event, error) {
	defer rows.Close()
	out := make([]trust.Event, 0)
	for rows.Next() {
		ev, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *ev)
	}
	return out, rows.Err()
}
