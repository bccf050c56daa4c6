package trust_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/feyza/backend/internal/domain/trust"
	"github.com/feyza/backend/internal/testutil"
)

func newLedger(store *testutil.Store, now *time.Time) *trust.Ledger {
	window := func(context.Context) time.Duration { return 2 * time.Hour }
	return trust.NewLedger(testutil.EventStore{Store: store}, window).WithClock(func() time.Time { return *now })
}

func TestRecordOnceWithinWindowIsNoOp(t *testing.T) {
	store := testutil.NewStore()
	now := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)
	ledger := newLedger(store, &now)
	ctx := context.Background()

	in := trust.GuardedEvent{UserID: "u1", LoanID: "loan-1", EventType: trust.EventPaymentOnTime, Windowed: true}
	if _, recorded, err := ledger.RecordOnce(ctx, in); err != nil || !recorded {
		t.Fatalf("expected first event recorded, recorded=%v err=%v", recorded, err)
	}

	// A different member of the same family still collides.
	now = now.Add(90 * time.Minute)
	in.EventType = trust.EventPaymentLate
	if _, recorded, err := ledger.RecordOnce(ctx, in); err != nil || recorded {
		t.Fatalf("expected duplicate skipped, recorded=%v err=%v", recorded, err)
	}

	now = now.Add(3 * time.Hour)
	if _, recorded, err := ledger.RecordOnce(ctx, in); err != nil || !recorded {
		t.Fatalf("expected event after window recorded, recorded=%v err=%v", recorded, err)
	}
	if got := len(store.Events("u1", "")); got != 2 {
		t.Fatalf("expected 2 events, got %d", got)
	}
}

func TestRecordOnceConcurrentCallersRecordOnce(t *testing.T) {
	store := testutil.NewStore()
	now := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)
	ledger := newLedger(store, &now)

	var wg sync.WaitGroup
	var mu sync.Mutex
	recordedCount := 0
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, recorded, err := ledger.RecordOnce(context.Background(), trust.GuardedEvent{
				UserID: "u1", LoanID: "loan-1", EventType: trust.EventPaymentOnTime, Windowed: true,
			})
			if err != nil {
				t.Errorf("record: %v", err)
				return
			}
			if recorded {
				mu.Lock()
				recordedCount++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if recordedCount != 1 {
		t.Fatalf("expected exactly one recorded call, got %d", recordedCount)
	}
	if got := len(store.Events("u1", trust.EventPaymentOnTime)); got != 1 {
		t.Fatalf("expected exactly one event, got %d", got)
	}
}

func TestRecordOnceScopedByPayment(t *testing.T) {
	store := testutil.NewStore()
	now := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)
	ledger := newLedger(store, &now)
	ctx := context.Background()

	first := trust.GuardedEvent{UserID: "u1", LoanID: "loan-1", EventType: trust.EventPaymentOnTime, Scope: "pay-1", Windowed: true}
	second := first
	second.Scope = "pay-2"

	for _, in := range []trust.GuardedEvent{first, second} {
		if _, recorded, err := ledger.RecordOnce(ctx, in); err != nil || !recorded {
			t.Fatalf("expected %s recorded, recorded=%v err=%v", in.Scope, recorded, err)
		}
	}

	// Replays of a known payment never count again, however late.
	now = now.Add(30 * 24 * time.Hour)
	if _, recorded, err := ledger.RecordOnce(ctx, first); err != nil || recorded {
		t.Fatalf("expected replay of pay-1 skipped, recorded=%v err=%v", recorded, err)
	}
}

func TestRecordOnceRequiresLoan(t *testing.T) {
	store := testutil.NewStore()
	now := time.Now()
	ledger := newLedger(store, &now)
	_, _, err := ledger.RecordOnce(context.Background(), trust.GuardedEvent{UserID: "u1", EventType: trust.EventLoanCompleted})
	if !trust.IsValidation(err) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestRecordEventAppliesPointsPolicy(t *testing.T) {
	store := testutil.NewStore()
	now := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)
	ledger := newLedger(store, &now)

	ev, err := ledger.RecordEvent(context.Background(), "u1", "", trust.EventVouchReceived)
	if err != nil {
		t.Fatalf("record event: %v", err)
	}
	if ev.PointsDelta != 3 || ev.LoanID != nil {
		t.Fatalf("unexpected event: %+v", ev)
	}
	history, err := ledger.History(context.Background(), "u1", 0, 0)
	if err != nil || len(history) != 1 {
		t.Fatalf("expected one history row, got %d err=%v", len(history), err)
	}
}

func TestIdempotencyKeyIsStable(t *testing.T) {
	a := trust.IdempotencyKey("loan-1", "u1", "payment_completed", "")
	b := trust.IdempotencyKey("loan-1", "u1", "payment_completed", "")
	c := trust.IdempotencyKey("loan-1", "u2", "payment_completed", "")
	if a != b || a == c || len(a) != 64 {
		t.Fatalf("unexpected keys: %s %s %s", a, b, c)
	}
}

func TestRecordOnceMixedScopesCountOnce(t *testing.T) {
	now := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)
	paidAt := now.Add(-40 * time.Minute)
	unscoped := trust.GuardedEvent{UserID: "u1", LoanID: "loan-1", EventType: trust.EventPaymentOnTime, Windowed: true}
	scoped := unscoped
	scoped.Scope = "pay-1"
	scoped.At = paidAt

	for _, order := range [][]trust.GuardedEvent{{unscoped, scoped}, {scoped, unscoped}} {
		store := testutil.NewStore()
		ledger := newLedger(store, &now)
		for i, in := range order {
			_, recorded, err := ledger.RecordOnce(context.Background(), in)
			if err != nil || recorded != (i == 0) {
				t.Fatalf("scope %q call %d: recorded=%v err=%v", in.Scope, i, recorded, err)
			}
		}
		if got := len(store.Events("u1", "")); got != 1 {
			t.Fatalf("expected one event, got %d", got)
		}
	}
}

func TestRecordOnceWindowAnchoredOnOccurrence(t *testing.T) {
	store := testutil.NewStore()
	now := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)
	ledger := newLedger(store, &now)
	ctx := context.Background()

	// Reconciliation a day later still finds the unscoped webhook event
	// recorded when the payment happened.
	paidAt := now
	if _, recorded, err := ledger.RecordOnce(ctx, trust.GuardedEvent{UserID: "u1", LoanID: "loan-1", EventType: trust.EventPaymentEarly, Windowed: true}); err != nil || !recorded {
		t.Fatalf("webhook: recorded=%v err=%v", recorded, err)
	}
	now = now.Add(20 * time.Hour)
	replay := trust.GuardedEvent{UserID: "u1", LoanID: "loan-1", EventType: trust.EventPaymentEarly, Windowed: true, Scope: "pay-1", At: paidAt}
	if _, recorded, err := ledger.RecordOnce(ctx, replay); err != nil || recorded {
		t.Fatalf("expected late scoped replay skipped, recorded=%v err=%v", recorded, err)
	}

	// A different payment made hours later is its own occurrence.
	other := replay
	other.Scope = "pay-2"
	other.At = paidAt.Add(6 * time.Hour)
	if _, recorded, err := ledger.RecordOnce(ctx, other); err != nil || !recorded {
		t.Fatalf("expected pay-2 recorded, recorded=%v err=%v", recorded, err)
	}
}

// racingEvents lets every caller past the window check, as two requests that
// both read before either writes would.
type racingEvents struct{ testutil.EventStore }

func (racingEvents) ExistsInWindow(context.Context, trust.DedupQuery) (bool, error) {
	return false, nil
}

func TestRecordOnceKeyFollowsOccurrenceAcrossBucketBoundary(t *testing.T) {
	store := testutil.NewStore()
	window := 2 * time.Hour
	// One nanosecond before a bucket boundary.
	now := time.Unix(0, 0).UTC().Add(window * 245000).Add(-time.Nanosecond)
	ledger := trust.NewLedger(racingEvents{testutil.EventStore{Store: store}}, func(context.Context) time.Duration { return window }).
		WithClock(func() time.Time { return now })
	in := trust.GuardedEvent{UserID: "u1", LoanID: "loan-1", EventType: trust.EventPaymentOnTime, Windowed: true, At: now}

	if _, recorded, err := ledger.RecordOnce(context.Background(), in); err != nil || !recorded {
		t.Fatalf("first: recorded=%v err=%v", recorded, err)
	}
	now = now.Add(time.Millisecond)
	if _, recorded, err := ledger.RecordOnce(context.Background(), in); err != nil || recorded {
		t.Fatalf("expected same occurrence to collide on its key, recorded=%v err=%v", recorded, err)
	}
}
