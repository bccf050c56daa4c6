package trust

import (
	"math"
	"testing"
)

var (
	allTiers         = []Tier{Tier1, Tier2, Tier3, Tier4}
	allRelationships = []Relationship{
		RelationshipFamily, RelationshipCloseFriend, RelationshipFriend, RelationshipColleague,
		RelationshipBusiness, RelationshipCommunity, RelationshipAcquaintance, RelationshipOther,
	}
	allTypes = []VouchType{VouchCharacter, VouchProfessional, VouchFinancial, VouchGuarantor}
)

func TestVouchStrengthMonotonicInTier(t *testing.T) {
	for _, rel := range allRelationships {
		for _, vt := range allTypes {
			for _, years := range []int{0, 1, 5, 10, 40} {
				prev := -1
				for _, tier := range allTiers {
					got := ComputeVouchStrength(tier, rel, years, vt, 100)
					if got < prev {
						t.Fatalf("strength dropped at %s/%s/%d/%s: %d < %d", tier, rel, years, vt, got, prev)
					}
					prev = got
				}
				low := ComputeVouchStrength(Tier1, rel, years, vt, 100)
				high := ComputeVouchStrength(Tier4, rel, years, vt, 100)
				if high < low {
					t.Fatalf("tier_4 below tier_1 for %s/%d/%s", rel, years, vt)
				}
			}
		}
	}
}

func TestVouchStrengthAlwaysInRange(t *testing.T) {
	rates := []float64{-50, 0, 33.3, 100, 250, math.NaN()}
	years := []int{-10, 0, 3, 10, 1000}
	for _, tier := range append(allTiers, Tier("bogus")) {
		for _, rel := range append(allRelationships, Relationship("stranger")) {
			for _, vt := range append(allTypes, VouchType("other")) {
				for _, y := range years {
					for _, r := range rates {
						got := ComputeVouchStrength(tier, rel, y, vt, r)
						if got < 0 || got > 100 {
							t.Fatalf("strength %d out of range for %s/%s/%s/%d/%v", got, tier, rel, vt, y, r)
						}
					}
				}
			}
		}
	}
}

func TestVouchStrengthKnownValues(t *testing.T) {
	// (50 + 20 + 30) * 1.0 * 1.0
	if got := ComputeVouchStrength(Tier4, RelationshipFamily, 15, VouchGuarantor, 100); got != 100 {
		t.Fatalf("expected 100, got %d", got)
	}
	// (20 + 0 + 10) * 0.6 * 0.5
	if got := ComputeVouchStrength(Tier1, RelationshipAcquaintance, 0, VouchCharacter, 0); got != 9 {
		t.Fatalf("expected 9, got %d", got)
	}
	a := ComputeVouchStrength(Tier2, RelationshipFriend, 4, VouchFinancial, 80)
	b := ComputeVouchStrength(Tier2, RelationshipFriend, 4, VouchFinancial, 80)
	if a != b {
		t.Fatalf("expected deterministic strength, got %d and %d", a, b)
	}
}

func TestSuccessRate(t *testing.T) {
	cases := []struct {
		completed, defaulted int
		want                 float64
	}{
		{0, 0, 100},
		{3, 0, 100},
		{0, 2, 0},
		{2, 1, 66.67},
	}
	for _, tc := range cases {
		if got := SuccessRate(tc.completed, tc.defaulted); got != tc.want {
			t.Fatalf("SuccessRate(%d,%d) = %v, want %v", tc.completed, tc.defaulted, got, tc.want)
		}
	}
}
