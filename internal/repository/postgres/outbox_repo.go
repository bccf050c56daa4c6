package postgres

import (
	"context"
	"time"

	"github.com/feyza/backend/internal/jobs"
	"github.com/jackc/pgx/v5/pgxpool"
)

type OutboxRepository struct {
	pool *pgxpool.Pool
}

func NewOutboxRepository(pool *pgxpool.Pool) *OutboxRepository {
	return &OutboxRepository{pool: pool}
}

func (r *OutboxRepository) Enqueue(ctx context.Context, topic string, payload []byte) error {
	q := `INSERT INTO outbox_jobs (topic, payload, status) VALUES ($1, $2::jsonb, 'pending')`
	_, err := r.pool.Exec(ctx, q, topic, payload)
	return err
}

// ClaimPending moves due jobs to processing and bumps attempts. SKIP LOCKED
// lets several workers drain the table without handing out the same job.
func (r *OutboxRepository) ClaimPending(ctx context.Context, limit int32) ([]jobs.OutboxJob, error) {
	if limit <= 0 {
		limit = 20
	}
	q := `
WITH due AS (
  SELECT id FROM outbox_jobs
  WHERE status IN ('pending', 'retry') AND available_at <= now()
  ORDER BY available_at, id
  LIMIT $1
  FOR UPDATE SKIP LOCKED
)
UPDATE outbox_jobs o
SET status = 'processing', attempts = o.attempts + 1, updated_at = now()
FROM due
WHERE o.id = due.id
RETURNING o.id, o.topic, o.payload, o.status, o.attempts, o.last_error, o.available_at`

	rows, err := r.pool.Query(ctx, q, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]jobs.OutboxJob, 0)
	for rows.Next() {
		var j jobs.OutboxJob
		if err := rows.Scan(&j.ID, &j.Topic, &j.Payload, &j.Status, &j.Attempts, &j.LastError, &j.AvailableAt); err != nil {
			return nil, err
		}
		out = append(out, j)
	}
	return out, rows.Err()
}

func (r *OutboxRepository) MarkDone(ctx context.Context, jobID int64) error {
	_, err := r.pool.Exec(ctx, `UPDATE outbox_jobs SET status = 'done', last_error = '', updated_at = now() WHERE id = $1`, jobID)
	return err
}

func (r *OutboxRepository) MarkRetry(ctx context.Context, jobID int64, nextAvailableAt time.Time, lastError string) error {
	_, err := r.pool.Exec(ctx, `
UPDATE outbox_jobs SET status = 'retry', available_at = $2, last_error = $3, updated_at = now()
WHERE id = $1`, jobID, nextAvailableAt, lastError)
	return err
}

func (r *OutboxRepository) MarkFailed(ctx context.Context, jobID int64, lastError string) error {
	_, err := r.pool.Exec(ctx, `UPDATE outbox_jobs SET status = 'failed', last_error = $2, updated_at = now() WHERE id = $1`, jobID, lastError)
	return err
}
