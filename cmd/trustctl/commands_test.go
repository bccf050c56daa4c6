package main

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/feyza/backend/internal/app"
	"github.com/feyza/backend/internal/domain/trust"
	"github.com/feyza/backend/internal/settings"
	"github.com/feyza/backend/internal/testutil"
)

var testNow = time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)

func memEnv(store *testutil.Store) opener {
	vouches := testutil.VouchStore{Store: store}
	svc := app.Build(app.Stores{
		Users:    store,
		Stats:    store,
		Scores:   testutil.ScoreStore{Store: store},
		Events:   testutil.EventStore{Store: store},
		Vouches:  vouches,
		Requests: vouches,
		Loans:    testutil.LoanStore{Store: store},
	}, app.Options{Clock: func() time.Time { return testNow }})
	knobs := settings.NewCache(nil, settings.Settings{TierFreshness: time.Hour, VouchRequestTTL: 24 * time.Hour}, time.Minute, nil, nil)
	return func(context.Context) (*env, error) {
		return &env{services: svc, settings: knobs, migrate: func(context.Context) error { return nil }}, nil
	}
}

func execute(t *testing.T, open opener, args ...string) (string, error) {
	t.Helper()
	root := newRootCmd(open)
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func TestBackfillCommandPrintsAggregate(t *testing.T) {
	store := testutil.NewStore()
	store.AddUser("a", testNow.AddDate(-1, 0, 0))
	store.AddUser("b", testNow.AddDate(-1, 0, 0))

	out, err := execute(t, memEnv(store), "backfill", "--jobs", "tiers,scores")
	if err != nil {
		t.Fatalf("backfill: %v", err)
	}
	var res struct {
		Tiers  int      `json:"tiersRecalculated"`
		Scores int      `json:"trustScoresRecalculated"`
		Errors []string `json:"errors"`
	}
	if err := json.Unmarshal([]byte(out), &res); err != nil {
		t.Fatalf("decode output %q: %v", out, err)
	}
	if res.Tiers != 2 || res.Scores != 2 || len(res.Errors) != 0 {
		t.Fatalf("unexpected aggregate %+v", res)
	}

	if _, err := execute(t, memEnv(store), "backfill", "--jobs", "everything"); !trust.IsValidation(err) {
		t.Fatalf("expected validation error for unknown job, got %v", err)
	}
}

func TestBackfillCommandFailsOnRowErrors(t *testing.T) {
	store := testutil.NewStore()
	store.AddUser("a", testNow)
	store.FailRecalculate["a"] = context.DeadlineExceeded

	out, err := execute(t, memEnv(store), "backfill", "--jobs", "scores")
	if err == nil || !strings.Contains(err.Error(), "1 errors") {
		t.Fatalf("expected non-zero exit for row errors, got %v", err)
	}
	if !strings.Contains(out, "score a") {
		t.Fatalf("expected failing row in output, got %q", out)
	}
}

func TestRecalcAndTierCommands(t *testing.T) {
	store := testutil.NewStore()
	store.AddUser("a", testNow.AddDate(-1, 0, 0))

	out, err := execute(t, memEnv(store), "recalc", "a")
	if err != nil {
		t.Fatalf("recalc: %v", err)
	}
	if !strings.Contains(out, `"overall_score"`) || !strings.Contains(out, `"tier_1"`) {
		t.Fatalf("unexpected recalc output %q", out)
	}

	out, err = execute(t, memEnv(store), "tier", "a", "--stored")
	if err != nil || !strings.Contains(out, `"tier_1"`) {
		t.Fatalf("unexpected stored tier %q err=%v", out, err)
	}
	if _, err := execute(t, memEnv(store), "tier"); err == nil {
		t.Fatalf("expected missing user id rejected")
	}
}

func TestExpireRequestsUsesSettingsTTL(t *testing.T) {
	store := testutil.NewStore()
	store.AddUser("a", testNow)
	store.AddUser("b", testNow)
	open := memEnv(store)
	e, _ := open(context.Background())

	// Requests are stamped with the injected clock; the TTL cutoff is measured from it.
	if _, err := e.services.Vouches.RequestVouch(context.Background(), "a", "b", ""); err != nil {
		t.Fatalf("request: %v", err)
	}
	out, err := execute(t, open, "expire-requests")
	if err != nil || !strings.Contains(out, "expired 0 vouch requests older than 24h0m0s") {
		t.Fatalf("expected nothing expired within ttl, got %q err=%v", out, err)
	}
	out, err = execute(t, open, "expire-requests", "--ttl", "-1s")
	if err != nil || !strings.Contains(out, "older than 24h0m0s") {
		t.Fatalf("expected non-positive override to fall back to settings, got %q err=%v", out, err)
	}
}
