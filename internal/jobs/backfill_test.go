package jobs_test

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/feyza/backend/internal/domain/tier"
	"github.com/feyza/backend/internal/domain/trust"
	"github.com/feyza/backend/internal/domain/vouch"
	"github.com/feyza/backend/internal/graph"
	"github.com/feyza/backend/internal/jobs"
	"github.com/feyza/backend/internal/testutil"
)

var testNow = time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)

type backfillHarness struct {
	store    *testutil.Store
	graph    *graph.MemoryClient
	filler   *jobs.Backfiller
	observed map[string]int
}

func newBackfillHarness(t *testing.T, batch int32) *backfillHarness {
	t.Helper()
	h := &backfillHarness{store: testutil.NewStore(), graph: graph.NewMemoryClient(), observed: map[string]int{}}
	clock := func() time.Time { return testNow }
	vouches := testutil.VouchStore{Store: h.store}
	tiers := tier.NewService(h.store, vouches, nil).WithClock(clock)
	scores := trust.NewScoreService(h.store, testutil.ScoreStore{Store: h.store}, trust.WithScoreClock(clock))
	ledger := trust.NewLedger(testutil.EventStore{Store: h.store}, nil).WithClock(clock)
	manager := vouch.NewManager(vouches, vouches, h.store, tiers, scores, ledger,
		vouch.WithClock(clock), vouch.WithProjector(graph.NewVouchGraph(h.graph)))
	tiers.SetCascader(manager)
	h.filler = jobs.NewBackfiller(h.store, vouches, manager, tiers, scores, batch, nil).
		WithObserver(func(job string, n int) { h.observed[job] += n })
	return h
}

// seedDrift writes rows the way a missed trigger leaves them: vouch_count and
// strengths stale, no score rows.
func (h *backfillHarness) seedDrift() {
	for i := 0; i < 5; i++ {
		h.store.AddUser(fmt.Sprintf("u%d", i), testNow.AddDate(-1, 0, 0))
	}
	for i := 1; i < 5; i++ {
		h.store.PutVouch(trust.Vouch{
			ID:            fmt.Sprintf("v%d", i),
			VoucherID:     fmt.Sprintf("u%d", i),
			VoucheeID:     "u0",
			Status:        trust.VouchActive,
			VouchType:     trust.VouchCharacter,
			Relationship:  trust.RelationshipFriend,
			KnownYears:    2,
			VouchStrength: 1,
			CreatedAt:     testNow,
		})
	}
}

func TestBackfillRepairsDrift(t *testing.T) {
	h := newBackfillHarness(t, 2)
	h.seedDrift()
	ctx := context.Background()

	res, err := h.filler.Run(ctx, []string{jobs.JobTiers, jobs.JobVouch, jobs.JobScores})
	if err != nil {
		t.Fatalf("backfill: %v", err)
	}
	if res.TiersRecalculated != 5 || res.VouchesRecalculated != 4 || res.TrustScoresRecalculated != 5 {
		t.Fatalf("unexpected counts: %+v", res)
	}
	if len(res.Errors) != 0 {
		t.Fatalf("unexpected errors: %v", res.Errors)
	}
	if u := h.store.User("u0"); u.TrustTier != trust.Tier2 || u.VouchCount != 4 {
		t.Fatalf("expected u0 at tier_2 with 4 vouches, got %s/%d", u.TrustTier, u.VouchCount)
	}
	want := trust.ComputeVouchStrength(trust.Tier1, trust.RelationshipFriend, 2, trust.VouchCharacter, 100)
	for i := 1; i < 5; i++ {
		if v := h.store.Vouch(fmt.Sprintf("v%d", i)); v.VouchStrength != want || v.TrustScoreBoost != want {
			t.Fatalf("vouch v%d strength %d/%d, want %d", i, v.VouchStrength, v.TrustScoreBoost, want)
		}
	}
	if got := len(h.graph.WriteCalls()); got != 4 {
		t.Fatalf("expected every active vouch projected, got %d", got)
	}
}

func TestBackfillIsRerunnable(t *testing.T) {
	h := newBackfillHarness(t, 3)
	h.seedDrift()
	ctx := context.Background()
	all, _ := jobs.ParseJobs("")

	if _, err := h.filler.Run(ctx, all); err != nil {
		t.Fatalf("first run: %v", err)
	}
	writes := map[string]int{}
	for k, v := range h.store.StrengthWrites {
		writes[k] = v
	}
	first := h.store.User("u0")

	res, err := h.filler.Run(ctx, all)
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if len(res.Errors) != 0 || res.VouchesRecalculated != 4 {
		t.Fatalf("unexpected second result: %+v", res)
	}
	for k, v := range h.store.StrengthWrites {
		if writes[k] != v {
			t.Fatalf("second run rewrote unchanged vouch %s", k)
		}
	}
	if second := h.store.User("u0"); second.TrustTier != first.TrustTier || second.VouchCount != first.VouchCount {
		t.Fatalf("second run moved tier: %+v -> %+v", first, second)
	}
}

func TestBackfillContinuesPastRowFailures(t *testing.T) {
	h := newBackfillHarness(t, 2)
	h.seedDrift()
	h.store.FailRecalculate["u3"] = errors.New("score write timeout")
	h.store.FailUpdateStrength["v2"] = errors.New("row locked")

	res, err := h.filler.Run(context.Background(), []string{jobs.JobVouch, jobs.JobScores})
	if err != nil {
		t.Fatalf("backfill: %v", err)
	}
	if res.VouchesRecalculated != 3 || res.TrustScoresRecalculated != 4 {
		t.Fatalf("expected the healthy rows processed, got %+v", res)
	}
	if len(res.Errors) != 2 {
		t.Fatalf("expected two collected errors, got %v", res.Errors)
	}
	joined := strings.Join(res.Errors, "\n")
	if !strings.Contains(joined, "vouch v2") || !strings.Contains(joined, "score u3") {
		t.Fatalf("errors do not name failing rows: %v", res.Errors)
	}
	if h.observed[jobs.JobVouch] != 1 || h.observed[jobs.JobScores] != 1 {
		t.Fatalf("expected per-job error counts observed, got %v", h.observed)
	}
}

func TestParseJobs(t *testing.T) {
	got, err := jobs.ParseJobs(" scores, TIERS ")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if strings.Join(got, ",") != "tiers,scores" {
		t.Fatalf("expected dependency order, got %v", got)
	}
	if _, err := jobs.ParseJobs("tiers,everything"); !trust.IsValidation(err) {
		t.Fatalf("expected validation error for unknown job, got %v", err)
	}
}

// A voucher whose rate update was missed after a default still carries 100;
// the vouch job re-derives the rate before pricing.
func TestBackfillRepairsStaleSuccessRate(t *testing.T) {
	h := newBackfillHarness(t, 10)
	ctx := context.Background()
	h.store.AddUser("voucher", testNow.AddDate(-1, 0, 0))
	h.store.AddUser("vouchee", testNow.AddDate(-1, 0, 0))
	h.store.MutateUser("voucher", func(u *trust.User) { u.VouchingSuccessRate = 100 })
	stale := trust.ComputeVouchStrength(trust.Tier1, trust.RelationshipColleague, 3, trust.VouchFinancial, 100)
	h.store.PutVouch(trust.Vouch{
		ID:             "v-stale",
		VoucherID:      "voucher",
		VoucheeID:      "vouchee",
		Status:         trust.VouchActive,
		VouchType:      trust.VouchFinancial,
		Relationship:   trust.RelationshipColleague,
		KnownYears:     3,
		VouchStrength:  stale,
		LoansDefaulted: 1,
		CreatedAt:      testNow,
	})

	res, err := h.filler.Run(ctx, []string{jobs.JobVouch})
	if err != nil {
		t.Fatalf("backfill: %v", err)
	}
	if len(res.Errors) != 0 || res.VouchesRecalculated != 1 {
		t.Fatalf("unexpected result: %+v", res)
	}
	voucher := h.store.User("voucher")
	if voucher.VouchingSuccessRate != 0 {
		t.Fatalf("expected success rate re-derived to 0, got %v", voucher.VouchingSuccessRate)
	}
	want := trust.ComputeVouchStrength(voucher.TrustTier, trust.RelationshipColleague, 3, trust.VouchFinancial, 0)
	if got := h.store.Vouch("v-stale").VouchStrength; got != want || got == stale {
		t.Fatalf("expected strength %d priced on the repaired rate, got %d (stale %d)", want, got, stale)
	}
}
