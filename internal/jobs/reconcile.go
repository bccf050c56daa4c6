package jobs

import (
	"context"
	"io"
	"log/slog"
	"time"

	"github.com/feyza/backend/internal/domain/loan"
	"github.com/feyza/backend/internal/domain/reputation"
)

type PaidPaymentLister interface {
	ListPaidSince(ctx context.Context, since time.Time, afterID string, limit int32) ([]loan.Payment, error)
}

type PaymentHook interface {
	OnPaymentCompleted(ctx context.Context, in reputation.PaymentInput) (*reputation.PaymentResult, error)
}

// ReconcileResult counts distinct loans found fully paid, whether or not their
// completion was recorded by this run.
type ReconcileResult struct {
	Scanned        int      `json:"paymentsScanned"`
	Recorded       int      `json:"eventsRecorded"`
	LoansCompleted int      `json:"loansCompleted"`
	Errors         []string `json:"errors"`
}

// Reconciler replays recently paid installments through the payment hook.
// The ledger's dedup keys make a replay of an already processed payment a
// no-op, so the scan can overlap previous runs freely.
type Reconciler struct {
	payments  PaidPaymentLister
	hook      PaymentHook
	lookback  time.Duration
	batchSize int32
	logger    *slog.Logger
	now       func() time.Time
}

func NewReconciler(payments PaidPaymentLister, hook PaymentHook, lookback time.Duration, batchSize int32, logger *slog.Logger) *Reconciler {
	if lookback <= 0 {
		lookback = 24 * time.Hour
	}
	if batchSize <= 0 {
		batchSize = 200
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Reconciler{
		payments:  payments,
		hook:      hook,
		lookback:  lookback,
		batchSize: batchSize,
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

func (r *Reconciler) WithClock(now func() time.Time) *Reconciler {
	r.now = now
	return r
}

func (r *Reconciler) Run(ctx context.Context) (*ReconcileResult, error) {
	since := r.now().Add(-r.lookback)
	res := &ReconcileResult{}
	errs := []string{}
	completed := map[string]bool{}
	afterID := ""
	for {
		page, err := r.payments.ListPaidSince(ctx, since, afterID, r.batchSize)
		if err != nil {
			return nil, err
		}
		for _, p := range page {
			afterID = p.ID
			res.Scanned++
			paidAt := p.PaidAt
			out, err := r.hook.OnPaymentCompleted(ctx, reputation.PaymentInput{
				LoanID:     p.LoanID,
				BorrowerID: p.BorrowerID,
				PaymentID:  p.ID,
				Amount:     p.Amount,
				DueDate:    p.DueDate,
				PaidAt:     &paidAt,
			})
			if err != nil {
				errs = append(errs, "payment "+p.ID+": "+err.Error())
				continue
			}
			if out.EventRecorded {
				res.Recorded++
			}
			if out.LoanCompleted && !completed[p.LoanID] {
				completed[p.LoanID] = true
				res.LoansCompleted++
			}
			if out.Error != "" {
				errs = append(errs, "payment "+p.ID+": "+out.Error)
			}
			r.logger.Debug("reconciled payment", "payment_id", p.ID, "loan_id", p.LoanID, "result", out.Describe())
		}
		if int32(len(page)) < r.batchSize {
			break
		}
	}
	res.Errors = errs
	r.logger.Info("payment reconciliation finished", "scanned", res.Scanned, "recorded", res.Recorded,
		"loans_completed", res.LoansCompleted, "errors", len(errs))
	return res, nil
}
