package businesstrust

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

type Status string

const (
	StatusNew       Status = "new"
	StatusBuilding  Status = "building"
	StatusGraduated Status = "graduated"
	StatusSuspended Status = "suspended"
)

// GraduationLoanCount is the number of completed loans after which a borrower
// graduates with a business lender.
const GraduationLoanCount = 3

// Entity is the per (borrower, business lender) relationship record.
type Entity struct {
	BorrowerID          string          `json:"borrower_id"`
	BusinessID          string          `json:"business_id"`
	TotalAmountBorrowed decimal.Decimal `json:"total_amount_borrowed"`
	TotalAmountRepaid   decimal.Decimal `json:"total_amount_repaid"`
	CompletedLoanCount  int             `json:"completed_loan_count"`
	DefaultedLoanCount  int             `json:"defaulted_loan_count"`
	TrustStatus         Status          `json:"trust_status"`
	HasGraduated        bool            `json:"has_graduated"`
	CreatedAt           time.Time       `json:"created_at"`
	UpdatedAt           time.Time       `json:"updated_at"`
}

type Repository interface {
	// GetOrCreate lazily creates the pair with status new.
	GetOrCreate(ctx context.Context, borrowerID, businessID string) (*Entity, error)
	AddBorrowed(ctx context.Context, borrowerID, businessID string, amount decimal.Decimal) error
	AddRepaid(ctx context.Context, borrowerID, businessID string, amount decimal.Decimal) error
	// SetProgress writes the completed count together with status and graduation flag.
	SetProgress(ctx context.Context, borrowerID, businessID string, completed int, status Status, graduated bool) error
	MarkDefaulted(ctx context.Context, borrowerID, businessID string) error
	ListByBorrower(ctx context.Context, borrowerID string) ([]Entity, error)
}
