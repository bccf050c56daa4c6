package vouch

import (
	"context"
	"errors"
	"time"

	"github.com/feyza/backend/internal/domain/tier"
	"github.com/feyza/backend/internal/domain/trust"
)

var (
	ErrSelfVouch           = trust.NewValidationError("vouchee_id", "cannot vouch for yourself")
	ErrInvalidVouchType    = trust.NewValidationError("vouch_type", "unsupported vouch type")
	ErrInvalidRelationship = trust.NewValidationError("relationship", "unsupported relationship")
	ErrInvalidKnownYears   = trust.NewValidationError("known_years", "must be between 0 and 100")
	ErrAlreadyVouched      = trust.NewValidationError("voucher_id", "an active vouch already exists for this pair")
	ErrNotVoucher          = trust.NewValidationError("voucher_id", "only the voucher may resolve this")
	ErrRequestResolved     = trust.NewValidationError("request_id", "request is no longer pending")
	ErrVouchNotActive      = trust.NewValidationError("vouch_id", "vouch is not active")

	// ErrDuplicate is returned by Repository.Create when the store's unique
	// active-pair index rejects the row.
	ErrDuplicate = errors.New("duplicate_active_vouch")
)

type CreateInput struct {
	VoucherID    string
	VoucheeID    string
	VouchType    trust.VouchType
	Relationship trust.Relationship
	KnownYears   int
	Message      string
}

type NewVouch struct {
	VoucherID     string
	VoucheeID     string
	VouchType     trust.VouchType
	Relationship  trust.Relationship
	KnownYears    int
	Message       string
	VouchStrength int
	CreatedAt     time.Time
}

type MetadataUpdate struct {
	VouchType     trust.VouchType
	Relationship  trust.Relationship
	KnownYears    int
	Message       string
	VouchStrength int
}

type Repository interface {
	Create(ctx context.Context, in NewVouch) (*trust.Vouch, error)
	GetByID(ctx context.Context, id string) (*trust.Vouch, error)
	GetActiveByPair(ctx context.Context, voucherID, voucheeID string) (*trust.Vouch, error)
	UpdateMetadata(ctx context.Context, id string, in MetadataUpdate) error
	// UpdateStrength writes vouch_strength and trust_score_boost together.
	UpdateStrength(ctx context.Context, id string, strength int) error
	Revoke(ctx context.Context, id string, at time.Time) (bool, error)
	CountActiveByVouchee(ctx context.Context, voucheeID string) (int, error)
	ListActiveByVouchee(ctx context.Context, voucheeID string) ([]trust.Vouch, error)
	ListActiveByVoucher(ctx context.Context, voucherID string) ([]trust.Vouch, error)
	ListByVoucher(ctx context.Context, voucherID string) ([]trust.Vouch, error)
	ListByVouchee(ctx context.Context, voucheeID string) ([]trust.Vouch, error)
	ListActive(ctx context.Context, afterID string, limit int32) ([]trust.Vouch, error)
	IncrementLoansActive(ctx context.Context, id string) error
	// RecordLoanCompleted bumps loans_completed and lowers loans_active, floor 0.
	RecordLoanCompleted(ctx context.Context, id string) error
	RecordLoanDefaulted(ctx context.Context, id string) error
	VoucherOutcomes(ctx context.Context, voucherID string) (completed, defaulted int, err error)
}

type NewRequest struct {
	RequesterID string
	VoucherID   string
	Message     string
	CreatedAt   time.Time
}

type RequestRepository interface {
	CreateRequest(ctx context.Context, in NewRequest) (*trust.VouchRequest, error)
	GetRequest(ctx context.Context, id string) (*trust.VouchRequest, error)
	GetPendingRequest(ctx context.Context, requesterID, voucherID string) (*trust.VouchRequest, error)
	// ResolveRequest moves a pending request to status; false when it was not pending.
	ResolveRequest(ctx context.Context, id string, status trust.RequestStatus, at time.Time) (bool, error)
	ExpirePending(ctx context.Context, createdBefore time.Time, at time.Time) (int64, error)
}

type UserRepository interface {
	GetByID(ctx context.Context, userID string) (*trust.User, error)
	UpdateVouchingSuccessRate(ctx context.Context, userID string, rate float64) error
}

type TierRecalculator interface {
	CalculateSimpleTrustTier(ctx context.Context, userID string) (*tier.Update, error)
}

type ScoreRecalculator interface {
	Recalculate(ctx context.Context, userID string) (*trust.Score, error)
}

type EventRecorder interface {
	RecordEvent(ctx context.Context, userID, loanID string, eventType trust.EventType) (*trust.Event, error)
	RecordOnce(ctx context.Context, in trust.GuardedEvent) (*trust.Event, bool, error)
	LoanHasEvent(ctx context.Context, loanID string, eventType trust.EventType) (bool, error)
}

// GraphProjector mirrors vouch edges into a graph store for network queries.
type GraphProjector interface {
	ProjectVouch(ctx context.Context, v trust.Vouch) error
	RemoveVouch(ctx context.Context, vouchID string) error
}

type CreateResult struct {
	Vouch            *trust.Vouch `json:"vouch"`
	Created          bool         `json:"created"`
	Updated          bool         `json:"updated"`
	Tier             *tier.Update `json:"tier,omitempty"`
	VoucheeScore     *trust.Score `json:"vouchee_score,omitempty"`
	VoucherScore     *trust.Score `json:"voucher_score,omitempty"`
	SideEffectErrors []string     `json:"side_effect_errors"`
}

type RevokeResult struct {
	Vouch            *trust.Vouch `json:"vouch"`
	Tier             *tier.Update `json:"tier,omitempty"`
	SideEffectErrors []string     `json:"side_effect_errors"`
}

// OutcomeResult reports an accountability pass over a vouchee's active vouches.
type OutcomeResult struct {
	LoanID         string   `json:"loan_id"`
	Skipped        bool     `json:"skipped"`
	VouchesUpdated int      `json:"vouches_updated"`
	EventsRecorded int      `json:"events_recorded"`
	Errors         []string `json:"errors"`
}
