package reputation

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/feyza/backend/internal/domain/loan"
	"github.com/feyza/backend/internal/domain/trust"
)

// Service turns lending lifecycle notifications into ledger events, counter
// updates and score recalculations. Every entry point is safe to call more
// than once for the same real-world occurrence.
type Service struct {
	events   EventRecorder
	counters PaymentCounter
	scores   ScoreRecalculator
	vouches  VouchAccountability
	business BusinessTrustRecorder
	loans    LoanReader
	onDedup  DedupObserver
	logger   *slog.Logger
	now      func() time.Time
}

type Option func(*Service)

func WithBusinessTrust(b BusinessTrustRecorder) Option {
	return func(s *Service) { s.business = b }
}

func WithDedupObserver(o DedupObserver) Option {
	return func(s *Service) { s.onDedup = o }
}

func WithLogger(l *slog.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func NewService(events EventRecorder, counters PaymentCounter, scores ScoreRecalculator, vouches VouchAccountability, loans LoanReader, opts ...Option) *Service {
	s := &Service{
		events:   events,
		counters: counters,
		scores:   scores,
		vouches:  vouches,
		loans:    loans,
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
		now:      func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func requireIDs(borrowerID, loanID string) error {
	if strings.TrimSpace(borrowerID) == "" {
		return trust.NewValidationError("borrower_id", "required")
	}
	if strings.TrimSpace(loanID) == "" {
		return trust.NewValidationError("loan_id", "required")
	}
	return nil
}

// OnLoanActivated records the loan_started marker once and, the first time
// only, bumps loans_active on the borrower's vouches.
func (s *Service) OnLoanActivated(ctx context.Context, borrowerID, loanID string) (*ActivationResult, error) {
	if err := requireIDs(borrowerID, loanID); err != nil {
		return nil, err
	}
	_, recorded, err := s.events.RecordOnce(ctx, trust.GuardedEvent{
		UserID:    borrowerID,
		LoanID:    loanID,
		EventType: trust.EventLoanStarted,
	})
	if err != nil {
		return nil, err
	}
	res := &ActivationResult{Success: true, Errors: []string{}}
	if !recorded {
		s.skipped(trust.EventLoanStarted, borrowerID, loanID)
		res.AlreadyActive = true
		return res, nil
	}

	var errs trust.ErrorList
	outcome, err := s.vouches.OnVoucheeNewLoan(ctx, borrowerID, loanID)
	if err != nil {
		errs.Add("vouches", err)
	} else {
		res.VouchesUpdated = outcome.VouchesUpdated
		errs = append(errs, outcome.Errors...)
	}

	if l := s.businessLoan(ctx, loanID, &errs); l != nil {
		if _, err := s.business.RecordLoanStarted(ctx, borrowerID, l.BusinessLenderID, l.Amount); err != nil {
			errs.Add("business trust", err)
		}
	}
	res.Errors = errs.Strings()
	s.logger.Info("loan activated", "loan_id", loanID, "borrower_id", borrowerID, "vouches_updated", res.VouchesUpdated)
	return res, nil
}

// OnPaymentCompleted records the payment under the dedup guard and, when no
// unpaid installment remains, settles the loan for the borrower and vouchers.
// Only a newly recorded event moves counters and the score.
func (s *Service) OnPaymentCompleted(ctx context.Context, in PaymentInput) (*PaymentResult, error) {
	if err := requireIDs(in.BorrowerID, in.LoanID); err != nil {
		return nil, err
	}
	paidAt := s.now()
	var occurredAt time.Time
	if in.PaidAt != nil && !in.PaidAt.IsZero() {
		paidAt = *in.PaidAt
		occurredAt = paidAt
	}
	kind := loan.ClassifyPayment(paidAt, in.DueDate)
	eventType := trust.PaymentEventType(kind)

	_, recorded, err := s.events.RecordOnce(ctx, trust.GuardedEvent{
		UserID:    in.BorrowerID,
		LoanID:    in.LoanID,
		EventType: eventType,
		Scope:     strings.TrimSpace(in.PaymentID),
		Windowed:  true,
		At:        occurredAt,
	})
	if err != nil {
		return nil, err
	}

	res := &PaymentResult{Success: true, EventRecorded: recorded}
	var sideErrs trust.ErrorList
	changed := recorded
	if recorded {
		if err := s.counters.IncrementPaymentCounter(ctx, in.BorrowerID, kind); err != nil {
			sideErrs.Add("payment counter", err)
		}
		if l := s.businessLoan(ctx, in.LoanID, &sideErrs); l != nil {
			if err := s.business.RecordRepayment(ctx, in.BorrowerID, l.BusinessLenderID, in.Amount); err != nil {
				sideErrs.Add("business trust", err)
			}
		}
	} else {
		s.skipped(eventType, in.BorrowerID, in.LoanID)
	}

	// Completion is evaluated on every call; its own guard keeps it exactly-once.
	unpaid, err := s.loans.CountUnpaidInstallments(ctx, in.LoanID)
	if err != nil {
		sideErrs.Add("unpaid installments", err)
	} else if unpaid == 0 {
		res.LoanCompleted = true
		completedNow, voucherErrs, err := s.completeLoan(ctx, in.BorrowerID, in.LoanID)
		if err != nil {
			sideErrs.Add("loan completion", err)
		}
		res.VoucherErrors = voucherErrs
		changed = changed || completedNow
	}

	if changed {
		if _, err := s.scores.Recalculate(ctx, in.BorrowerID); err != nil {
			sideErrs.Add("trust score", err)
		} else {
			res.TrustScoreUpdated = true
		}
	}
	if len(sideErrs) > 0 {
		res.Error = strings.Join(sideErrs, "; ")
		s.logger.Warn("payment side effects failed", "loan_id", in.LoanID, "borrower_id", in.BorrowerID, "err", res.Error)
	}
	return res, nil
}

func (s *Service) completeLoan(ctx context.Context, borrowerID, loanID string) (bool, []string, error) {
	_, recorded, err := s.events.RecordOnce(ctx, trust.GuardedEvent{
		UserID:    borrowerID,
		LoanID:    loanID,
		EventType: trust.EventLoanCompleted,
	})
	if err != nil {
		return false, nil, err
	}
	var errs trust.ErrorList
	if recorded {
		if l := s.businessLoan(ctx, loanID, &errs); l != nil {
			if _, err := s.business.RecordCompletion(ctx, borrowerID, l.BusinessLenderID); err != nil {
				errs.Add("business trust", err)
			}
		}
	} else {
		s.skipped(trust.EventLoanCompleted, borrowerID, loanID)
	}

	outcome, err := s.vouches.OnVoucheeLoanCompleted(ctx, borrowerID, loanID)
	if err != nil {
		errs.Add("vouches", err)
	} else {
		errs = append(errs, outcome.Errors...)
	}
	if len(errs) == 0 {
		return recorded, nil, nil
	}
	return recorded, errs.Strings(), nil
}

// OnPaymentFailed records a missed payment under the same guard as completions.
func (s *Service) OnPaymentFailed(ctx context.Context, in PaymentFailedInput) (*PaymentResult, error) {
	if err := requireIDs(in.BorrowerID, in.LoanID); err != nil {
		return nil, err
	}
	_, recorded, err := s.events.RecordOnce(ctx, trust.GuardedEvent{
		UserID:    in.BorrowerID,
		LoanID:    in.LoanID,
		EventType: trust.EventPaymentMissed,
		Scope:     strings.TrimSpace(in.PaymentID),
		Windowed:  true,
	})
	if err != nil {
		return nil, err
	}
	res := &PaymentResult{Success: true, EventRecorded: recorded}
	if !recorded {
		s.skipped(trust.EventPaymentMissed, in.BorrowerID, in.LoanID)
		return res, nil
	}

	var sideErrs trust.ErrorList
	if err := s.counters.IncrementPaymentCounter(ctx, in.BorrowerID, trust.PaymentMissed); err != nil {
		sideErrs.Add("payment counter", err)
	}
	if _, err := s.scores.Recalculate(ctx, in.BorrowerID); err != nil {
		sideErrs.Add("trust score", err)
	} else {
		res.TrustScoreUpdated = true
	}
	if len(sideErrs) > 0 {
		res.Error = strings.Join(sideErrs, "; ")
	}
	s.logger.Info("payment failure recorded", "loan_id", in.LoanID, "borrower_id", in.BorrowerID, "reason", in.Reason)
	return res, nil
}

// OnLoanDefaulted suspends the business relationship, charges the borrower a
// loan_defaulted event and settles the borrower's vouchers. Without a loan id
// the event cannot be keyed and is recorded unguarded.
func (s *Service) OnLoanDefaulted(ctx context.Context, in DefaultInput) (*DefaultResult, error) {
	if strings.TrimSpace(in.BorrowerID) == "" {
		return nil, trust.NewValidationError("borrower_id", "required")
	}
	res := &DefaultResult{Success: true, Errors: []string{}}
	var errs trust.ErrorList

	businessID := strings.TrimSpace(in.BusinessID)
	if in.LoanID != "" {
		_, recorded, err := s.events.RecordOnce(ctx, trust.GuardedEvent{
			UserID:    in.BorrowerID,
			LoanID:    in.LoanID,
			EventType: trust.EventLoanDefaulted,
		})
		if err != nil {
			return nil, err
		}
		res.EventRecorded = recorded
		if !recorded {
			s.skipped(trust.EventLoanDefaulted, in.BorrowerID, in.LoanID)
		}
		if businessID == "" {
			if l := s.businessLoan(ctx, in.LoanID, &errs); l != nil {
				businessID = l.BusinessLenderID
			}
		}

		outcome, err := s.vouches.OnVoucheeLoanDefaulted(ctx, in.BorrowerID, in.LoanID)
		if err != nil {
			errs.Add("vouches", err)
		} else {
			res.VouchesUpdated = outcome.VouchesUpdated
			errs = append(errs, outcome.Errors...)
		}
	} else {
		if _, err := s.events.RecordEvent(ctx, in.BorrowerID, "", trust.EventLoanDefaulted); err != nil {
			return nil, err
		}
		res.EventRecorded = true
	}

	// A replayed default must not count against the relationship twice.
	if res.EventRecorded && businessID != "" && s.business != nil {
		if err := s.business.RecordDefault(ctx, in.BorrowerID, businessID); err != nil {
			errs.Add("business trust", err)
		} else {
			res.BusinessTrustReset = true
		}
	}

	if res.EventRecorded {
		if _, err := s.scores.Recalculate(ctx, in.BorrowerID); err != nil {
			errs.Add("trust score", err)
		} else {
			res.TrustScoreUpdated = true
		}
	}
	res.Errors = errs.Strings()
	s.logger.Info("loan default processed", "loan_id", in.LoanID, "borrower_id", in.BorrowerID,
		"event_recorded", res.EventRecorded, "errors", len(res.Errors))
	return res, nil
}

// businessLoan returns the loan when it is held by a business lender and
// business trust tracking is wired. A missing loan row is not an error.
func (s *Service) businessLoan(ctx context.Context, loanID string, errs *trust.ErrorList) *loan.Entity {
	if s.business == nil || s.loans == nil {
		return nil
	}
	l, err := s.loans.GetByID(ctx, loanID)
	if err != nil {
		if !errors.Is(err, trust.ErrNotFound) {
			errs.Add("load loan", err)
		}
		return nil
	}
	if l.BusinessLenderID == "" {
		return nil
	}
	return l
}

func (s *Service) skipped(eventType trust.EventType, userID, loanID string) {
	family := trust.FamilyOf(eventType)
	if s.onDedup != nil {
		s.onDedup(family)
	}
	s.logger.Info("trust event already recorded", "family", family, "user_id", userID, "loan_id", loanID)
}

// Describe is used by logs and the CLI.
func (r *PaymentResult) Describe() string {
	return fmt.Sprintf("success=%t trust_score_updated=%t loan_completed=%t", r.Success, r.TrustScoreUpdated, r.LoanCompleted)
}
