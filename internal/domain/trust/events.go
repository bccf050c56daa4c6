package trust

import (
	"context"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"golang.org/x/crypto/sha3"
)

type EventType string

const (
	EventPaymentOnTime  EventType = "payment_ontime"
	EventPaymentEarly   EventType = "payment_early"
	EventPaymentLate    EventType = "payment_late"
	EventPaymentMissed  EventType = "payment_missed"
	EventLoanCompleted  EventType = "loan_completed"
	EventLoanDefaulted  EventType = "loan_defaulted"
	EventLoanStarted    EventType = "loan_started"
	EventVouchGiven     EventType = "vouch_given"
	EventVouchReceived  EventType = "vouch_received"
	EventVouchDefaulted EventType = "vouch_defaulted"
)

// EventPoints is the ledger's points policy.
var EventPoints = map[EventType]int{
	EventPaymentOnTime:  2,
	EventPaymentEarly:   3,
	EventPaymentLate:    -3,
	EventPaymentMissed:  -10,
	EventLoanCompleted:  10,
	EventLoanDefaulted:  -25,
	EventLoanStarted:    0,
	EventVouchGiven:     5,
	EventVouchReceived:  3,
	EventVouchDefaulted: -5,
}

// Family groups event types that report the same real-world occurrence.
type Family string

const FamilyPaymentCompleted Family = "payment_completed"

// Types lists the event types belonging to the family.
func (f Family) Types() []EventType {
	if f == FamilyPaymentCompleted {
		return []EventType{EventPaymentOnTime, EventPaymentEarly, EventPaymentLate}
	}
	return []EventType{EventType(f)}
}

func FamilyOf(t EventType) Family {
	switch t {
	case EventPaymentOnTime, EventPaymentEarly, EventPaymentLate:
		return FamilyPaymentCompleted
	default:
		return Family(t)
	}
}

func PaymentEventType(kind PaymentKind) EventType {
	switch kind {
	case PaymentEarly:
		return EventPaymentEarly
	case PaymentLate:
		return EventPaymentLate
	case PaymentMissed:
		return EventPaymentMissed
	default:
		return EventPaymentOnTime
	}
}

type Event struct {
	ID             int64     `json:"id"`
	UserID         string    `json:"user_id"`
	LoanID         *string   `json:"loan_id,omitempty"`
	EventType      EventType `json:"event_type"`
	PointsDelta    int       `json:"points_delta"`
	IdempotencyKey *string   `json:"-"`
	Scope          *string   `json:"-"`
	OccurredAt     time.Time `json:"occurred_at"`
	CreatedAt      time.Time `json:"created_at"`
}

type EventInput struct {
	UserID         string
	LoanID         string
	EventType      EventType
	PointsDelta    int
	IdempotencyKey string
	Scope          string
	OccurredAt     time.Time
	CreatedAt      time.Time
}

// DedupQuery asks whether a family event for (loan, user) occurred in
// [From, To]. UnscopedOnly restricts the match to events recorded without a
// scope, so distinct scoped occurrences never shadow each other.
type DedupQuery struct {
	LoanID       string
	UserID       string
	Types        []EventType
	From         time.Time
	To           time.Time
	UnscopedOnly bool
}

type EventRepository interface {
	// Insert appends one event. When the idempotency key already exists the
	// store writes nothing and reports inserted=false.
	Insert(ctx context.Context, in EventInput) (ev *Event, inserted bool, err error)
	ExistsInWindow(ctx context.Context, q DedupQuery) (bool, error)
	ExistsForLoan(ctx context.Context, loanID string, eventType EventType) (bool, error)
	ListByUser(ctx context.Context, userID string, limit, offset int32) ([]Event, error)
	ListSince(ctx context.Context, lastID int64, limit int32) ([]Event, error)
}

// IdempotencyKey is Keccak-256 over the colon-joined parts, hex encoded.
func IdempotencyKey(parts ...string) string {
	h := sha3.NewLegacyKeccak256()
	_, _ = h.Write([]byte(strings.Join(parts, ":")))
	return hex.EncodeToString(h.Sum(nil))
}

// Ledger is the append-only store accessor plus the dedup guard.
type Ledger struct {
	repo   EventRepository
	window func(ctx context.Context) time.Duration
	now    func() time.Time
}

func NewLedger(repo EventRepository, window func(ctx context.Context) time.Duration) *Ledger {
	if window == nil {
		window = func(context.Context) time.Duration { return 2 * time.Hour }
	}
	return &Ledger{
		repo:   repo,
		window: window,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// WithClock replaces the ledger clock; used by tests and batch replays.
func (l *Ledger) WithClock(now func() time.Time) *Ledger {
	l.now = now
	return l
}

// RecordEvent appends an unguarded event with the policy's points.
func (l *Ledger) RecordEvent(ctx context.Context, userID, loanID string, eventType EventType) (*Event, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, NewValidationError("user_id", "required")
	}
	now := l.now()
	ev, _, err := l.repo.Insert(ctx, EventInput{
		UserID:      userID,
		LoanID:      loanID,
		EventType:   eventType,
		PointsDelta: EventPoints[eventType],
		OccurredAt:  now,
		CreatedAt:   now,
	})
	if err != nil {
		return nil, fmt.Errorf("record %s event: %w", eventType, err)
	}
	return ev, nil
}

// GuardedEvent describes an event that may be reported by several trigger paths.
type GuardedEvent struct {
	UserID    string
	LoanID    string
	EventType EventType
	// Scope narrows the dedup key, e.g. a payment id.
	Scope string
	// Windowed applies the family window check around At. Without it the key
	// alone makes the event exactly-once.
	Windowed bool
	// At is when the reported occurrence happened; zero means now.
	At time.Time
}

// RecordOnce applies the dedup guard and appends the event when no earlier
// report exists. recorded=false is a successful no-op.
//
// For windowed events an unscoped report is shadowed by any family event
// within the window of At, and a scoped report by any unscoped one, so the
// same occurrence is counted once whichever trigger paths carried its scope.
// The scoped key stays unique forever.
func (l *Ledger) RecordOnce(ctx context.Context, in GuardedEvent) (ev *Event, recorded bool, err error) {
	if strings.TrimSpace(in.UserID) == "" {
		return nil, false, NewValidationError("user_id", "required")
	}
	if strings.TrimSpace(in.LoanID) == "" {
		return nil, false, NewValidationError("loan_id", "required")
	}

	family := FamilyOf(in.EventType)
	now := l.now()
	at := in.At
	if at.IsZero() {
		at = now
	}
	key := IdempotencyKey(in.LoanID, in.UserID, string(family), in.Scope)

	if in.Windowed {
		window := l.window(ctx)
		exists, err := l.repo.ExistsInWindow(ctx, DedupQuery{
			LoanID:       in.LoanID,
			UserID:       in.UserID,
			Types:        family.Types(),
			From:         at.Add(-window),
			To:           at.Add(window),
			UnscopedOnly: in.Scope != "",
		})
		if err != nil {
			return nil, false, fmt.Errorf("dedup check %s: %w", family, err)
		}
		if exists {
			return nil, false, nil
		}
		if in.Scope == "" {
			key = IdempotencyKey(in.LoanID, in.UserID, string(family), windowBucket(at, window))
		}
	}

	ev, inserted, err := l.repo.Insert(ctx, EventInput{
		UserID:         in.UserID,
		LoanID:         in.LoanID,
		EventType:      in.EventType,
		PointsDelta:    EventPoints[in.EventType],
		IdempotencyKey: key,
		Scope:          in.Scope,
		OccurredAt:     at,
		CreatedAt:      now,
	})
	if err != nil {
		return nil, false, fmt.Errorf("record %s event: %w", in.EventType, err)
	}
	return ev, inserted, nil
}

// LoanHasEvent reports whether any user already has eventType for the loan.
func (l *Ledger) LoanHasEvent(ctx context.Context, loanID string, eventType EventType) (bool, error) {
	return l.repo.ExistsForLoan(ctx, loanID, eventType)
}

func (l *Ledger) History(ctx context.Context, userID string, limit, offset int32) ([]Event, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	return l.repo.ListByUser(ctx, userID, limit, offset)
}

// windowBucket keys unscoped reports by occurrence time. Reports carrying the
// same At always share a bucket; two unscoped reports without At that race
// across a bucket boundary can both pass the window check.
func windowBucket(now time.Time, window time.Duration) string {
	if window <= 0 {
		return fmt.Sprintf("%d", now.UnixNano())
	}
	return fmt.Sprintf("w%d", now.UnixNano()/int64(window))
}
