package tier_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/feyza/backend/internal/domain/tier"
	"github.com/feyza/backend/internal/domain/trust"
	"github.com/feyza/backend/internal/testutil"
)

type recordingCascader struct {
	calls []trust.Tier
	err   error
}

func (c *recordingCascader) CascadeOnTierChange(_ context.Context, userID string, newTier trust.Tier) (*trust.CascadeResult, error) {
	c.calls = append(c.calls, newTier)
	if c.err != nil {
		return nil, c.err
	}
	return &trust.CascadeResult{VoucherID: userID, Tier: newTier, Errors: []string{}}, nil
}

func seedVouches(store *testutil.Store, voucheeID string, n int) {
	for i := 0; i < n; i++ {
		store.PutVouch(trust.Vouch{
			ID:        fmt.Sprintf("v-%s-%02d", voucheeID, i),
			VoucherID: fmt.Sprintf("voucher-%02d", i),
			VoucheeID: voucheeID,
			Status:    trust.VouchActive,
		})
	}
}

func TestCalculateSimpleTrustTierPersistsAndCascades(t *testing.T) {
	store := testutil.NewStore()
	now := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)
	store.AddUser("a", now)
	seedVouches(store, "a", 3)

	cascader := &recordingCascader{}
	svc := tier.NewService(store, testutil.VouchStore{Store: store}, nil).WithClock(func() time.Time { return now })
	svc.SetCascader(cascader)

	update, err := svc.CalculateSimpleTrustTier(context.Background(), "a")
	if err != nil {
		t.Fatalf("calculate: %v", err)
	}
	if update.Tier != trust.Tier2 || !update.Changed || update.PreviousTier != trust.Tier1 {
		t.Fatalf("unexpected update: %+v", update)
	}
	u := store.User("a")
	if u.TrustTier != trust.Tier2 || u.VouchCount != 3 || u.TrustTierUpdatedAt == nil || !u.TrustTierUpdatedAt.Equal(now) {
		t.Fatalf("tier not persisted before return: %+v", u)
	}
	if len(cascader.calls) != 1 || cascader.calls[0] != trust.Tier2 {
		t.Fatalf("expected one cascade to tier_2, got %v", cascader.calls)
	}

	// Unchanged tier writes the count but does not cascade again.
	if _, err := svc.CalculateSimpleTrustTier(context.Background(), "a"); err != nil {
		t.Fatalf("recalculate: %v", err)
	}
	if len(cascader.calls) != 1 {
		t.Fatalf("expected no cascade for unchanged tier, got %d", len(cascader.calls))
	}
}

func TestCascadeFailureDoesNotFailTierWrite(t *testing.T) {
	store := testutil.NewStore()
	store.AddUser("a", time.Now())
	seedVouches(store, "a", 6)
	svc := tier.NewService(store, testutil.VouchStore{Store: store}, nil)
	svc.SetCascader(&recordingCascader{err: errors.New("db down")})

	update, err := svc.CalculateSimpleTrustTier(context.Background(), "a")
	if err != nil {
		t.Fatalf("expected tier write to succeed, got %v", err)
	}
	if update.CascadeError == "" || store.User("a").TrustTier != trust.Tier3 {
		t.Fatalf("expected persisted tier_3 with cascade error, got %+v", update)
	}
}

func TestCalculateSimpleTrustTierStoreFailure(t *testing.T) {
	store := testutil.NewStore()
	store.AddUser("a", time.Now())
	store.FailUpdateTier["a"] = errors.New("write failed")
	svc := tier.NewService(store, testutil.VouchStore{Store: store}, nil)

	if _, err := svc.CalculateSimpleTrustTier(context.Background(), "a"); err == nil {
		t.Fatalf("expected persistence error to surface")
	}
}

func TestGetTierFreshnessWindow(t *testing.T) {
	store := testutil.NewStore()
	now := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)
	store.AddUser("a", now)
	svc := tier.NewService(store, testutil.VouchStore{Store: store}, nil).WithClock(func() time.Time { return now })

	if _, err := svc.CalculateSimpleTrustTier(context.Background(), "a"); err != nil {
		t.Fatalf("seed tier: %v", err)
	}
	writes := store.TierWrites
	seedVouches(store, "a", 4)

	now = now.Add(10 * time.Minute)
	info, err := svc.GetTier(context.Background(), "a", time.Hour)
	if err != nil {
		t.Fatalf("get tier: %v", err)
	}
	if info.Tier != trust.Tier1 || store.TierWrites != writes {
		t.Fatalf("expected stored tier_1 within freshness, got %s", info.Tier)
	}

	now = now.Add(2 * time.Hour)
	info, err = svc.GetTier(context.Background(), "a", time.Hour)
	if err != nil {
		t.Fatalf("get tier: %v", err)
	}
	if info.Tier != trust.Tier2 || store.TierWrites != writes+1 {
		t.Fatalf("expected recount to tier_2, got %s", info.Tier)
	}
}

func TestCalculateSimpleTrustTierValidation(t *testing.T) {
	store := testutil.NewStore()
	svc := tier.NewService(store, testutil.VouchStore{Store: store}, nil)
	if _, err := svc.CalculateSimpleTrustTier(context.Background(), " "); !trust.IsValidation(err) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if _, err := svc.CalculateSimpleTrustTier(context.Background(), "missing"); !errors.Is(err, trust.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}
