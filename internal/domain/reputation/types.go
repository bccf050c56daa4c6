package reputation

import (
	"context"
	"time"

	"github.com/feyza/backend/internal/domain/businesstrust"
	"github.com/feyza/backend/internal/domain/loan"
	"github.com/feyza/backend/internal/domain/trust"
	"github.com/feyza/backend/internal/domain/vouch"
	"github.com/shopspring/decimal"
)

type EventRecorder interface {
	RecordEvent(ctx context.Context, userID, loanID string, eventType trust.EventType) (*trust.Event, error)
	RecordOnce(ctx context.Context, in trust.GuardedEvent) (*trust.Event, bool, error)
}

type PaymentCounter interface {
	IncrementPaymentCounter(ctx context.Context, userID string, kind trust.PaymentKind) error
}

type ScoreRecalculator interface {
	Recalculate(ctx context.Context, userID string) (*trust.Score, error)
}

type VouchAccountability interface {
	OnVoucheeNewLoan(ctx context.Context, voucheeID, loanID string) (*vouch.OutcomeResult, error)
	OnVoucheeLoanCompleted(ctx context.Context, voucheeID, loanID string) (*vouch.OutcomeResult, error)
	OnVoucheeLoanDefaulted(ctx context.Context, voucheeID, loanID string) (*vouch.OutcomeResult, error)
}

type BusinessTrustRecorder interface {
	RecordLoanStarted(ctx context.Context, borrowerID, businessID string, amount decimal.Decimal) (*businesstrust.Entity, error)
	RecordRepayment(ctx context.Context, borrowerID, businessID string, amount decimal.Decimal) error
	RecordCompletion(ctx context.Context, borrowerID, businessID string) (*businesstrust.Entity, error)
	RecordDefault(ctx context.Context, borrowerID, businessID string) error
}

type LoanReader interface {
	GetByID(ctx context.Context, id string) (*loan.Entity, error)
	CountUnpaidInstallments(ctx context.Context, loanID string) (int, error)
}

// DedupObserver is told about every guarded event that was already recorded.
type DedupObserver func(family trust.Family)

type PaymentInput struct {
	LoanID        string          `json:"loan_id"`
	BorrowerID    string          `json:"borrower_id"`
	PaymentID     string          `json:"payment_id,omitempty"`
	Amount        decimal.Decimal `json:"amount"`
	DueDate       *time.Time      `json:"due_date,omitempty"`
	PaidAt        *time.Time      `json:"paid_at,omitempty"`
	PaymentMethod string          `json:"payment_method,omitempty"`
}

type PaymentFailedInput struct {
	BorrowerID string `json:"borrower_id"`
	LoanID     string `json:"loan_id"`
	PaymentID  string `json:"payment_id,omitempty"`
	Reason     string `json:"reason,omitempty"`
}

type DefaultInput struct {
	BorrowerID string `json:"borrower_id"`
	LoanID     string `json:"loan_id,omitempty"`
	BusinessID string `json:"business_id,omitempty"`
}

// PaymentResult is the hook response. Success reports the primary effect;
// side-effect failures are listed in Error and VoucherErrors.
type PaymentResult struct {
	Success           bool     `json:"success"`
	TrustScoreUpdated bool     `json:"trustScoreUpdated"`
	LoanCompleted     bool     `json:"loanCompleted"`
	EventRecorded     bool     `json:"eventRecorded"`
	Error             string   `json:"error,omitempty"`
	VoucherErrors     []string `json:"voucherErrors,omitempty"`
}

type ActivationResult struct {
	Success        bool     `json:"success"`
	AlreadyActive  bool     `json:"alreadyActive"`
	VouchesUpdated int      `json:"vouchesUpdated"`
	Errors         []string `json:"errors"`
}

type DefaultResult struct {
	Success            bool     `json:"success"`
	EventRecorded      bool     `json:"eventRecorded"`
	TrustScoreUpdated  bool     `json:"trustScoreUpdated"`
	BusinessTrustReset bool     `json:"businessTrustReset"`
	VouchesUpdated     int      `json:"vouchesUpdated"`
	Errors             []string `json:"errors"`
}
