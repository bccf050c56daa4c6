package trust

import (
	"context"
	"errors"
	"time"
)

var (
	ErrNotFound    = errors.New("not_found")
	ErrInvalidTier = errors.New("invalid_tier")
)

// ValidationError is returned for caller mistakes that should surface as 4xx.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return e.Field + ": " + e.Message
}

func NewValidationError(field, message string) error {
	return &ValidationError{Field: field, Message: message}
}

func IsValidation(err error) bool {
	var v *ValidationError
	return errors.As(err, &v)
}

type User struct {
	ID                  string
	TrustTier           Tier
	VouchCount          int
	TrustTierUpdatedAt  *time.Time
	VouchingSuccessRate float64

	PaymentsOnTime    int
	PaymentsEarly     int
	PaymentsLate      int
	PaymentsMissed    int
	TotalPaymentsMade int

	IdentityVerified   bool
	EmploymentVerified bool
	AddressVerified    bool
	BankConnected      bool

	IsActive  bool
	CreatedAt time.Time
}

type PaymentKind string

const (
	PaymentOnTime PaymentKind = "on_time"
	PaymentEarly  PaymentKind = "early"
	PaymentLate   PaymentKind = "late"
	PaymentMissed PaymentKind = "missed"
)

type VouchStatus string

const (
	VouchPending VouchStatus = "pending"
	VouchActive  VouchStatus = "active"
	VouchRevoked VouchStatus = "revoked"
)

type VouchType string

const (
	VouchCharacter    VouchType = "character"
	VouchProfessional VouchType = "professional"
	VouchFinancial    VouchType = "financial"
	VouchGuarantor    VouchType = "guarantor"
)

type Relationship string

const (
	RelationshipFamily       Relationship = "family"
	RelationshipCloseFriend  Relationship = "close_friend"
	RelationshipFriend       Relationship = "friend"
	RelationshipColleague    Relationship = "colleague"
	RelationshipBusiness     Relationship = "business"
	RelationshipCommunity    Relationship = "community"
	RelationshipAcquaintance Relationship = "acquaintance"
	RelationshipOther        Relationship = "other"
)

type Vouch struct {
	ID              string       `json:"id"`
	VoucherID       string       `json:"voucher_id"`
	VoucheeID       string       `json:"vouchee_id"`
	Status          VouchStatus  `json:"status"`
	VouchType       VouchType    `json:"vouch_type"`
	Relationship    Relationship `json:"relationship"`
	KnownYears      int          `json:"known_years"`
	Message         string       `json:"message,omitempty"`
	VouchStrength   int          `json:"vouch_strength"`
	TrustScoreBoost int          `json:"trust_score_boost"`
	LoansActive     int          `json:"loans_active"`
	LoansCompleted  int          `json:"loans_completed"`
	LoansDefaulted  int          `json:"loans_defaulted"`
	CreatedAt       time.Time    `json:"created_at"`
	UpdatedAt       time.Time    `json:"updated_at"`
	RevokedAt       *time.Time   `json:"revoked_at,omitempty"`
}

type RequestStatus string

const (
	RequestPending  RequestStatus = "pending"
	RequestAccepted RequestStatus = "accepted"
	RequestDeclined RequestStatus = "declined"
	RequestExpired  RequestStatus = "expired"
)

type VouchRequest struct {
	ID          string        `json:"id"`
	RequesterID string        `json:"requester_id"`
	VoucherID   string        `json:"voucher_id"`
	Message     string        `json:"message,omitempty"`
	Status      RequestStatus `json:"status"`
	CreatedAt   time.Time     `json:"created_at"`
	ResolvedAt  *time.Time    `json:"resolved_at,omitempty"`
}

// Score is the persisted trust_scores row for one user.
type Score struct {
	UserID            string    `json:"user_id"`
	PaymentScore      int       `json:"payment_score"`
	CompletionScore   int       `json:"completion_score"`
	SocialScore       int       `json:"social_score"`
	VerificationScore int       `json:"verification_score"`
	TenureScore       int       `json:"tenure_score"`
	OverallScore      int       `json:"overall_score"`
	WeightProfile     string    `json:"weight_profile"`
	LastCalculatedAt  time.Time `json:"last_calculated_at"`
}

// Stats is everything the score service reads about a user in one pass.
type Stats struct {
	User User

	LoansTaken          int
	LoansCompleted      int
	LoansDefaulted      int
	OverdueInstallments int

	ReceivedStrengths []int

	VouchesGiven        int
	GivenLoansCompleted int
	GivenLoansDefaulted int
}

type UserRepository interface {
	GetByID(ctx context.Context, userID string) (*User, error)
	UpdateTier(ctx context.Context, userID string, tier Tier, vouchCount int, at time.Time) error
	UpdateVouchingSuccessRate(ctx context.Context, userID string, rate float64) error
	IncrementPaymentCounter(ctx context.Context, userID string, kind PaymentKind) error
	ListIDs(ctx context.Context, afterID string, limit int32) ([]string, error)
}

type StatsRepository interface {
	LoadStats(ctx context.Context, userID string, now time.Time) (*Stats, error)
}

type ScoreRepository interface {
	Upsert(ctx context.Context, score Score) (*Score, error)
	GetByUserID(ctx context.Context, userID string) (*Score, error)
}
