package loan

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// Loans and payment schedules are owned by the lending service; this package
// only reads them.

type Status string

const (
	StatusPending   Status = "pending"
	StatusActive    Status = "active"
	StatusCompleted Status = "completed"
	StatusDefaulted Status = "defaulted"
)

type Entity struct {
	ID               string
	BorrowerID       string
	LenderID         string
	BusinessLenderID string
	Amount           decimal.Decimal
	Status           Status
	CreatedAt        time.Time
}

// Payment is one paid installment from payment_schedules.
type Payment struct {
	ID         string
	LoanID     string
	BorrowerID string
	Amount     decimal.Decimal
	DueDate    *time.Time
	PaidAt     time.Time
}

type Repository interface {
	GetByID(ctx context.Context, id string) (*Entity, error)
	CountUnpaidInstallments(ctx context.Context, loanID string) (int, error)
	// ListPaidSince pages installments paid at or after since, ordered by id.
	ListPaidSince(ctx context.Context, since time.Time, afterID string, limit int32) ([]Payment, error)
}
