package reputation_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/feyza/backend/internal/domain/businesstrust"
	"github.com/feyza/backend/internal/domain/loan"
	"github.com/feyza/backend/internal/domain/reputation"
	"github.com/feyza/backend/internal/domain/tier"
	"github.com/feyza/backend/internal/domain/trust"
	"github.com/feyza/backend/internal/domain/vouch"
	"github.com/feyza/backend/internal/testutil"
	"github.com/shopspring/decimal"
)

var testNow = time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)

type harness struct {
	store   *testutil.Store
	manager *vouch.Manager
	svc     *reputation.Service
	skips   []trust.Family
	mu      sync.Mutex
}

func newHarness(t *testing.T, users ...string) *harness {
	t.Helper()
	h := &harness{store: testutil.NewStore()}
	for _, id := range users {
		h.store.AddUser(id, testNow.AddDate(-1, 0, 0))
	}
	clock := func() time.Time { return testNow }
	vouches := testutil.VouchStore{Store: h.store}
	tiers := tier.NewService(h.store, vouches, nil).WithClock(clock)
	scores := trust.NewScoreService(h.store, testutil.ScoreStore{Store: h.store}, trust.WithScoreClock(clock))
	ledger := trust.NewLedger(testutil.EventStore{Store: h.store}, nil).WithClock(clock)
	h.manager = vouch.NewManager(vouches, vouches, h.store, tiers, scores, ledger, vouch.WithClock(clock))
	tiers.SetCascader(h.manager)
	h.svc = reputation.NewService(ledger, h.store, scores, h.manager, testutil.LoanStore{Store: h.store},
		reputation.WithBusinessTrust(businesstrust.NewService(testutil.BusinessStore{Store: h.store})),
		reputation.WithClock(clock),
		reputation.WithDedupObserver(func(f trust.Family) {
			h.mu.Lock()
			h.skips = append(h.skips, f)
			h.mu.Unlock()
		}),
	)
	return h
}

func (h *harness) addLoan(id, borrower, business string, installments int) {
	h.store.AddLoan(loan.Entity{ID: id, BorrowerID: borrower, LenderID: "lender", BusinessLenderID: business, Amount: decimal.NewFromInt(300), Status: loan.StatusActive})
	for i := 0; i < installments; i++ {
		due := testNow.AddDate(0, i+1, 0)
		h.store.AddInstallment(testutil.Installment{ID: id + "-p" + string(rune('0'+i)), LoanID: id, Amount: decimal.NewFromInt(100), DueDate: &due})
	}
}

func TestPaymentCompletedTwiceRecordsOnce(t *testing.T) {
	h := newHarness(t, "a")
	h.addLoan("loan-1", "a", "", 3)
	ctx := context.Background()
	in := reputation.PaymentInput{LoanID: "loan-1", BorrowerID: "a", Amount: decimal.NewFromInt(100)}

	first, err := h.svc.OnPaymentCompleted(ctx, in)
	if err != nil {
		t.Fatalf("first: %v", err)
	}
	if !first.Success || !first.EventRecorded || !first.TrustScoreUpdated || first.LoanCompleted {
		t.Fatalf("unexpected first result: %+v", first)
	}
	second, err := h.svc.OnPaymentCompleted(ctx, in)
	if err != nil {
		t.Fatalf("second: %v", err)
	}
	if !second.Success || second.EventRecorded || second.TrustScoreUpdated {
		t.Fatalf("expected idempotent success, got %+v", second)
	}

	if got := len(h.store.Events("a", "")); got != 1 {
		t.Fatalf("expected exactly one event, got %d", got)
	}
	if u := h.store.User("a"); u.TotalPaymentsMade != 1 {
		t.Fatalf("expected one counter increment, got %d", u.TotalPaymentsMade)
	}
	if got := h.store.ScoreWrites["a"]; got != 1 {
		t.Fatalf("expected exactly one score mutation, got %d", got)
	}
	if len(h.skips) != 1 || h.skips[0] != trust.FamilyPaymentCompleted {
		t.Fatalf("expected one payment_completed dedup skip, got %v", h.skips)
	}
}

// The webhook may omit the payment id while reconciliation always carries it.
// Either order credits the payment once.
func TestPaymentCountedOnceAcrossTriggerPaths(t *testing.T) {
	paidAt := testNow.Add(-30 * time.Minute)
	withoutID := reputation.PaymentInput{LoanID: "loan-1", BorrowerID: "a", Amount: decimal.NewFromInt(100)}
	withID := withoutID
	withID.PaymentID = "loan-1-p0"
	withID.PaidAt = &paidAt

	cases := []struct {
		name  string
		calls []reputation.PaymentInput
	}{
		{"webhook then reconcile", []reputation.PaymentInput{withoutID, withID}},
		{"reconcile then webhook", []reputation.PaymentInput{withID, withoutID}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			h := newHarness(t, "a")
			h.addLoan("loan-1", "a", "", 3)
			ctx := context.Background()

			for i, in := range tc.calls {
				res, err := h.svc.OnPaymentCompleted(ctx, in)
				if err != nil {
					t.Fatalf("call %d: %v", i, err)
				}
				if res.EventRecorded != (i == 0) {
					t.Fatalf("call %d: expected recorded=%v, got %+v", i, i == 0, res)
				}
			}
			if got := len(h.store.Events("a", "")); got != 1 {
				t.Fatalf("expected one payment event, got %d", got)
			}
			if u := h.store.User("a"); u.TotalPaymentsMade != 1 {
				t.Fatalf("expected one counter increment, got %d", u.TotalPaymentsMade)
			}
			if got := h.store.ScoreWrites["a"]; got != 1 {
				t.Fatalf("expected one score mutation, got %d", got)
			}
		})
	}
}

// A late-delivered replay of the same webhook still lands inside the window
// because the window is anchored on paid_at.
func TestLateWebhookReplayIsDeduplicated(t *testing.T) {
	h := newHarness(t, "a")
	h.addLoan("loan-1", "a", "", 3)
	ctx := context.Background()
	paidAt := testNow.Add(-5 * time.Hour)
	in := reputation.PaymentInput{LoanID: "loan-1", BorrowerID: "a", Amount: decimal.NewFromInt(100), PaidAt: &paidAt}

	for i := 0; i < 2; i++ {
		if _, err := h.svc.OnPaymentCompleted(ctx, in); err != nil {
			t.Fatalf("call %d: %v", i, err)
		}
	}
	if u := h.store.User("a"); u.TotalPaymentsMade != 1 {
		t.Fatalf("expected one counter increment, got %d", u.TotalPaymentsMade)
	}
}

func TestLastInstallmentMovesCompletionScore(t *testing.T) {
	h := newHarness(t, "a")
	h.addLoan("loan-1", "a", "", 1)
	ctx := context.Background()
	h.store.PayInstallment("loan-1-p0", testNow)

	res, err := h.svc.OnPaymentCompleted(ctx, reputation.PaymentInput{LoanID: "loan-1", BorrowerID: "a", PaymentID: "loan-1-p0"})
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if !res.LoanCompleted || !res.TrustScoreUpdated {
		t.Fatalf("expected completion with score update, got %+v", res)
	}
	score, err := testutil.ScoreStore{Store: h.store}.GetByUserID(ctx, "a")
	if err != nil {
		t.Fatalf("score: %v", err)
	}
	if score.CompletionScore == 0 {
		t.Fatalf("expected completion score above 0 while loan row is still active, got %+v", score)
	}

	// The lending service flipping the row later must not count the loan twice.
	h.store.SetLoanStatus("loan-1", loan.StatusCompleted)
	stats, err := h.store.LoadStats(ctx, "a", testNow)
	if err != nil || stats.LoansTaken != 1 || stats.LoansCompleted != 1 {
		t.Fatalf("expected one taken and completed loan, got %+v err=%v", stats, err)
	}
}

func TestPaymentTimingClassification(t *testing.T) {
	h := newHarness(t, "a")
	h.addLoan("loan-1", "a", "", 3)
	ctx := context.Background()

	due := testNow
	early := testNow.Add(-48 * time.Hour)
	late := testNow.Add(72 * time.Hour)
	for i, paid := range []time.Time{early, late} {
		paidAt := paid
		_, err := h.svc.OnPaymentCompleted(ctx, reputation.PaymentInput{
			LoanID: "loan-1", BorrowerID: "a", PaymentID: string(rune('x' + i)), DueDate: &due, PaidAt: &paidAt,
		})
		if err != nil {
			t.Fatalf("payment %d: %v", i, err)
		}
	}
	u := h.store.User("a")
	if u.PaymentsEarly != 1 || u.PaymentsLate != 1 || u.PaymentsOnTime != 0 {
		t.Fatalf("unexpected counters: early=%d late=%d ontime=%d", u.PaymentsEarly, u.PaymentsLate, u.PaymentsOnTime)
	}
	if len(h.store.Events("a", trust.EventPaymentEarly)) != 1 || len(h.store.Events("a", trust.EventPaymentLate)) != 1 {
		t.Fatalf("expected one early and one late event")
	}
}

func TestPaymentFailedIsGuarded(t *testing.T) {
	h := newHarness(t, "a")
	h.addLoan("loan-1", "a", "", 2)
	ctx := context.Background()
	in := reputation.PaymentFailedInput{BorrowerID: "a", LoanID: "loan-1", Reason: "insufficient_funds"}

	for i := 0; i < 2; i++ {
		if _, err := h.svc.OnPaymentFailed(ctx, in); err != nil {
			t.Fatalf("failed hook: %v", err)
		}
	}
	events := h.store.Events("a", trust.EventPaymentMissed)
	if len(events) != 1 || events[0].PointsDelta != -10 {
		t.Fatalf("expected one payment_missed event, got %+v", events)
	}
	if u := h.store.User("a"); u.PaymentsMissed != 1 || u.TotalPaymentsMade != 0 {
		t.Fatalf("unexpected counters: %+v", u)
	}
}

func TestLoanActivatedOnlyOnce(t *testing.T) {
	h := newHarness(t, "a", "v1")
	h.addLoan("loan-1", "a", "biz", 1)
	if _, err := h.manager.CreateVouch(context.Background(), vouch.CreateInput{
		VoucherID: "v1", VoucheeID: "a", VouchType: trust.VouchCharacter, Relationship: trust.RelationshipFriend,
	}); err != nil {
		t.Fatalf("vouch: %v", err)
	}
	ctx := context.Background()

	first, err := h.svc.OnLoanActivated(ctx, "a", "loan-1")
	if err != nil || first.AlreadyActive || first.VouchesUpdated != 1 {
		t.Fatalf("unexpected first activation: %+v err=%v", first, err)
	}
	second, err := h.svc.OnLoanActivated(ctx, "a", "loan-1")
	if err != nil || !second.AlreadyActive || second.VouchesUpdated != 0 {
		t.Fatalf("expected idempotent activation, got %+v err=%v", second, err)
	}
	_, received, _ := h.manager.ListForUser(ctx, "a")
	if len(received) != 1 || received[0].LoansActive != 1 {
		t.Fatalf("expected loans_active=1, got %+v", received)
	}
	list, _ := testutil.BusinessStore{Store: h.store}.ListByBorrower(ctx, "a")
	if len(list) != 1 || !list[0].TotalAmountBorrowed.Equal(decimal.NewFromInt(300)) {
		t.Fatalf("expected business trust loan start, got %+v", list)
	}
}

func TestLoanDefaultedSuspendsBusinessTrust(t *testing.T) {
	h := newHarness(t, "a", "v1")
	h.addLoan("loan-1", "a", "biz", 1)
	ctx := context.Background()
	if _, err := h.manager.CreateVouch(ctx, vouch.CreateInput{
		VoucherID: "v1", VoucheeID: "a", VouchType: trust.VouchCharacter, Relationship: trust.RelationshipFriend,
	}); err != nil {
		t.Fatalf("vouch: %v", err)
	}

	res, err := h.svc.OnLoanDefaulted(ctx, reputation.DefaultInput{BorrowerID: "a", LoanID: "loan-1"})
	if err != nil {
		t.Fatalf("default: %v", err)
	}
	if !res.EventRecorded || !res.BusinessTrustReset || res.VouchesUpdated != 1 || !res.TrustScoreUpdated {
		t.Fatalf("unexpected default result: %+v", res)
	}
	list, _ := testutil.BusinessStore{Store: h.store}.ListByBorrower(ctx, "a")
	if len(list) != 1 || list[0].TrustStatus != businesstrust.StatusSuspended {
		t.Fatalf("expected suspended relationship, got %+v", list)
	}

	again, err := h.svc.OnLoanDefaulted(ctx, reputation.DefaultInput{BorrowerID: "a", LoanID: "loan-1"})
	if err != nil || again.EventRecorded {
		t.Fatalf("expected replayed default to record nothing, got %+v err=%v", again, err)
	}
	if got := len(h.store.Events("a", trust.EventLoanDefaulted)); got != 1 {
		t.Fatalf("expected one loan_defaulted event, got %d", got)
	}
}

// Three vouches lift A to tier_2; A takes a loan and the completion hook fires
// from three paths at once. Every voucher is credited exactly once.
func TestEndToEndVouchLoanCompletion(t *testing.T) {
	h := newHarness(t, "A", "v1", "v2", "v3")
	ctx := context.Background()
	if u := h.store.User("A"); u.TrustTier != trust.Tier1 || u.VouchCount != 0 {
		t.Fatalf("unexpected starting state: %+v", u)
	}

	for _, v := range []string{"v1", "v2", "v3"} {
		if _, err := h.manager.CreateVouch(ctx, vouch.CreateInput{
			VoucherID: v, VoucheeID: "A", VouchType: trust.VouchFinancial, Relationship: trust.RelationshipCloseFriend, KnownYears: 6,
		}); err != nil {
			t.Fatalf("vouch from %s: %v", v, err)
		}
	}
	if got := h.store.User("A").TrustTier; got != trust.Tier2 {
		t.Fatalf("expected tier_2 after three vouches, got %s", got)
	}

	h.addLoan("loan-A", "A", "", 1)
	if _, err := h.svc.OnLoanActivated(ctx, "A", "loan-A"); err != nil {
		t.Fatalf("activate: %v", err)
	}
	h.store.PayInstallment("loan-A-p0", testNow)

	var wg sync.WaitGroup
	results := make([]*reputation.PaymentResult, 3)
	for i := 0; i < 3; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			res, err := h.svc.OnPaymentCompleted(ctx, reputation.PaymentInput{LoanID: "loan-A", BorrowerID: "A", PaymentID: "loan-A-p0"})
			if err != nil {
				t.Errorf("completion %d: %v", i, err)
				return
			}
			results[i] = res
		}(i)
	}
	wg.Wait()

	for i, res := range results {
		if res == nil || !res.Success || !res.LoanCompleted {
			t.Fatalf("call %d: unexpected result %+v", i, res)
		}
	}
	for _, v := range []string{"v1", "v2", "v3"} {
		events := h.store.Events(v, trust.EventVouchGiven)
		if len(events) != 1 || events[0].PointsDelta != trust.EventPoints[trust.EventVouchGiven] {
			t.Fatalf("voucher %s: expected exactly one vouch_given event, got %+v", v, events)
		}
	}
	_, received, _ := h.manager.ListForUser(ctx, "A")
	for _, v := range received {
		if v.LoansCompleted != 1 || v.LoansActive != 0 {
			t.Fatalf("vouch %s: expected loans_completed=1 loans_active=0, got %d/%d", v.ID, v.LoansCompleted, v.LoansActive)
		}
	}
	if got := len(h.store.Events("A", trust.EventLoanCompleted)); got != 1 {
		t.Fatalf("expected one loan_completed event for A, got %d", got)
	}
	if got := len(h.store.Events("A", trust.EventPaymentOnTime)); got != 1 {
		t.Fatalf("expected one payment event for A, got %d", got)
	}
	score, err := testutil.ScoreStore{Store: h.store}.GetByUserID(ctx, "A")
	if err != nil || score.CompletionScore == 0 {
		t.Fatalf("expected the settled loan to lift the completion score, got %+v err=%v", score, err)
	}
}

func TestHookValidation(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	if _, err := h.svc.OnPaymentCompleted(ctx, reputation.PaymentInput{BorrowerID: "a"}); !trust.IsValidation(err) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if _, err := h.svc.OnLoanActivated(ctx, "", "loan"); !trust.IsValidation(err) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if _, err := h.svc.OnLoanDefaulted(ctx, reputation.DefaultInput{}); !trust.IsValidation(err) {
		t.Fatalf("expected validation error, got %v", err)
	}
}
