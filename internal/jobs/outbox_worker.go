package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/feyza/backend/internal/domain/reputation"
	"github.com/feyza/backend/internal/domain/tier"
	"github.com/feyza/backend/internal/domain/trust"
)

const (
	TopicPaymentCompleted = "payment_completed"
	TopicPaymentFailed    = "payment_failed"
	TopicLoanActivated    = "loan_activated"
	TopicLoanDefaulted    = "loan_defaulted"
	TopicRecalculateTrust = "recalculate_trust"

	outcomeDone   = "done"
	outcomeRetry  = "retry"
	outcomeFailed = "failed"
)

type OutboxJob struct {
	ID          int64
	Topic       string
	Payload     []byte
	Status      string
	Attempts    int32
	LastError   string
	AvailableAt time.Time
}

type OutboxRepository interface {
	ClaimPending(ctx context.Context, limit int32) ([]OutboxJob, error)
	MarkDone(ctx context.Context, jobID int64) error
	MarkRetry(ctx context.Context, jobID int64, nextAvailableAt time.Time, lastError string) error
	MarkFailed(ctx context.Context, jobID int64, lastError string) error
}

type OutboxEnqueuer interface {
	Enqueue(ctx context.Context, topic string, payload []byte) error
}

// TrustHooks is the inbound trigger surface the outbox drains into.
type TrustHooks interface {
	OnLoanActivated(ctx context.Context, borrowerID, loanID string) (*reputation.ActivationResult, error)
	OnPaymentCompleted(ctx context.Context, in reputation.PaymentInput) (*reputation.PaymentResult, error)
	OnPaymentFailed(ctx context.Context, in reputation.PaymentFailedInput) (*reputation.PaymentResult, error)
	OnLoanDefaulted(ctx context.Context, in reputation.DefaultInput) (*reputation.DefaultResult, error)
}

type TierRecalculator interface {
	CalculateSimpleTrustTier(ctx context.Context, userID string) (*tier.Update, error)
}

type ScoreRecalculator interface {
	Recalculate(ctx context.Context, userID string) (*trust.Score, error)
}

// JobObserver receives the outcome of every processed job.
type JobObserver func(topic, outcome string)

type Worker struct {
	outboxRepo   OutboxRepository
	hooks        TrustHooks
	tiers        TierRecalculator
	scores       ScoreRecalculator
	observer     JobObserver
	logger       *slog.Logger
	maxAttempts  int32
	now          func() time.Time
	retryBackoff func(attempt int32) time.Duration
}

func NewWorker(outboxRepo OutboxRepository, hooks TrustHooks, tiers TierRecalculator, scores ScoreRecalculator, logger *slog.Logger) *Worker {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Worker{
		outboxRepo:  outboxRepo,
		hooks:       hooks,
		tiers:       tiers,
		scores:      scores,
		logger:      logger,
		maxAttempts: 5,
		now:         func() time.Time { return time.Now().UTC() },
		retryBackoff: func(attempt int32) time.Duration {
			if attempt < 1 {
				attempt = 1
			}
			return time.Duration(attempt*15) * time.Second
		},
	}
}

func (w *Worker) WithObserver(o JobObserver) *Worker {
	w.observer = o
	return w
}

func (w *Worker) RunOnce(ctx context.Context, batchSize int32) error {
	jobs, err := w.outboxRepo.ClaimPending(ctx, batchSize)
	if err != nil {
		return err
	}

	for _, job := range jobs {
		if err := w.processJob(ctx, job); err != nil {
			return err
		}
	}

	return nil
}

func (w *Worker) processJob(ctx context.Context, job OutboxJob) error {
	var err error
	switch job.Topic {
	case TopicPaymentCompleted:
		err = w.processPaymentCompleted(ctx, job)
	case TopicPaymentFailed:
		err = w.processPaymentFailed(ctx, job)
	case TopicLoanActivated:
		err = w.processLoanActivated(ctx, job)
	case TopicLoanDefaulted:
		err = w.processLoanDefaulted(ctx, job)
	case TopicRecalculateTrust:
		err = w.processRecalculate(ctx, job)
	default:
		err = errors.New("unsupported_topic")
	}
	if err != nil {
		return w.handleJobError(ctx, job, err)
	}
	w.observe(job.Topic, outcomeDone)
	return w.outboxRepo.MarkDone(ctx, job.ID)
}

// permanentError skips the retry schedule; the payload will never succeed.
type permanentError struct{ err error }

func (e permanentError) Error() string { return e.err.Error() }
func (e permanentError) Unwrap() error { return e.err }

func decode(job OutboxJob, out any) error {
	if err := json.Unmarshal(job.Payload, out); err != nil {
		return permanentError{errors.New("invalid_payload")}
	}
	return nil
}

// settle classifies a hook outcome: validation errors are permanent, other
// errors and unsuccessful results retry.
func settle(err error, success bool, detail string) error {
	if err != nil {
		if trust.IsValidation(err) {
			return permanentError{err}
		}
		return err
	}
	if !success {
		if detail == "" {
			detail = "hook_unsuccessful"
		}
		return errors.New(detail)
	}
	return nil
}

func (w *Worker) processPaymentCompleted(ctx context.Context, job OutboxJob) error {
	var in reputation.PaymentInput
	if err := decode(job, &in); err != nil {
		return err
	}
	res, err := w.hooks.OnPaymentCompleted(ctx, in)
	if err != nil {
		return settle(err, false, "")
	}
	if res.Error != "" || len(res.VoucherErrors) > 0 {
		w.logger.Warn("payment hook side effects failed", "job_id", job.ID, "result", res.Describe())
	}
	return settle(nil, res.Success, res.Error)
}

func (w *Worker) processPaymentFailed(ctx context.Context, job OutboxJob) error {
	var in reputation.PaymentFailedInput
	if err := decode(job, &in); err != nil {
		return err
	}
	res, err := w.hooks.OnPaymentFailed(ctx, in)
	if err != nil {
		return settle(err, false, "")
	}
	return settle(nil, res.Success, res.Error)
}

type loanActivatedPayload struct {
	BorrowerID string `json:"borrower_id"`
	LoanID     string `json:"loan_id"`
}

func (w *Worker) processLoanActivated(ctx context.Context, job OutboxJob) error {
	var in loanActivatedPayload
	if err := decode(job, &in); err != nil {
		return err
	}
	res, err := w.hooks.OnLoanActivated(ctx, in.BorrowerID, in.LoanID)
	if err != nil {
		return settle(err, false, "")
	}
	return settle(nil, res.Success, strings.Join(res.Errors, "; "))
}

func (w *Worker) processLoanDefaulted(ctx context.Context, job OutboxJob) error {
	var in reputation.DefaultInput
	if err := decode(job, &in); err != nil {
		return err
	}
	res, err := w.hooks.OnLoanDefaulted(ctx, in)
	if err != nil {
		return settle(err, false, "")
	}
	return settle(nil, res.Success, strings.Join(res.Errors, "; "))
}

type recalculatePayload struct {
	UserID string `json:"user_id"`
}

func (w *Worker) processRecalculate(ctx context.Context, job OutboxJob) error {
	var in recalculatePayload
	if err := decode(job, &in); err != nil {
		return err
	}
	if strings.TrimSpace(in.UserID) == "" {
		return permanentError{errors.New("missing_user_id")}
	}
	if _, err := w.tiers.CalculateSimpleTrustTier(ctx, in.UserID); err != nil {
		return settle(fmt.Errorf("tier: %w", err), false, "")
	}
	if _, err := w.scores.Recalculate(ctx, in.UserID); err != nil {
		return settle(fmt.Errorf("score: %w", err), false, "")
	}
	return nil
}

func (w *Worker) handleJobError(ctx context.Context, job OutboxJob, err error) error {
	msg := err.Error()
	var permanent permanentError
	if errors.As(err, &permanent) || job.Attempts >= w.maxAttempts {
		w.observe(job.Topic, outcomeFailed)
		w.logger.Error("outbox job failed", "job_id", job.ID, "topic", job.Topic, "attempts", job.Attempts, "err", msg)
		return w.outboxRepo.MarkFailed(ctx, job.ID, msg)
	}
	w.observe(job.Topic, outcomeRetry)
	next := w.now().Add(w.retryBackoff(job.Attempts))
	return w.outboxRepo.MarkRetry(ctx, job.ID, next, msg)
}

func (w *Worker) observe(topic, outcome string) {
	if w.observer != nil {
		w.observer(topic, outcome)
	}
}
