package trust

import "math"

// Strength policy. Every table is monotonic in closeness / standing so the
// computed strength never drops when an input improves.
var (
	tierBasePoints = map[Tier]float64{
		Tier1: 20,
		Tier2: 30,
		Tier3: 40,
		Tier4: 50,
	}

	relationshipMultiplier = map[Relationship]float64{
		RelationshipFamily:       1.0,
		RelationshipCloseFriend:  1.0,
		RelationshipFriend:       0.9,
		RelationshipColleague:    0.85,
		RelationshipBusiness:     0.85,
		RelationshipCommunity:    0.8,
		RelationshipOther:        0.7,
		RelationshipAcquaintance: 0.6,
	}

	vouchTypeBonus = map[VouchType]float64{
		VouchCharacter:    10,
		VouchProfessional: 15,
		VouchFinancial:    20,
		VouchGuarantor:    30,
	}
)

const (
	pointsPerYearKnown = 2.0
	maxYearsKnownBonus = 20.0

	// Unknown relationships price like the weakest known one.
	fallbackRelationshipMultiplier = 0.6
	fallbackVouchTypeBonus         = 10.0

	// A voucher with a 0% record still contributes half weight.
	minSuccessMultiplier = 0.5
)

func ValidVouchType(t VouchType) bool {
	_, ok := vouchTypeBonus[t]
	return ok
}

func ValidRelationship(r Relationship) bool {
	_, ok := relationshipMultiplier[r]
	return ok
}

// ComputeVouchStrength prices a single vouch in [0,100].
//
//	strength = (tierBase + yearsBonus + typeBonus) * relationship * successMultiplier
//
// successRate is a percentage; values outside [0,100] are clamped.
func ComputeVouchStrength(voucherTier Tier, relationship Relationship, knownYears int, vouchType VouchType, voucherSuccessRate float64) int {
	base := tierBasePoints[voucherTier]
	if base == 0 {
		base = tierBasePoints[Tier1]
	}

	years := float64(knownYears)
	if years < 0 {
		years = 0
	}
	yearsBonus := math.Min(years*pointsPerYearKnown, maxYearsKnownBonus)

	typeBonus, ok := vouchTypeBonus[vouchType]
	if !ok {
		typeBonus = fallbackVouchTypeBonus
	}

	relMult, ok := relationshipMultiplier[relationship]
	if !ok {
		relMult = fallbackRelationshipMultiplier
	}

	rate := voucherSuccessRate
	if math.IsNaN(rate) {
		rate = 0
	}
	rate = math.Max(0, math.Min(rate, 100))
	successMult := minSuccessMultiplier + (1-minSuccessMultiplier)*(rate/100)

	raw := (base + yearsBonus + typeBonus) * relMult * successMult
	return clampScore(int(math.Round(raw)))
}

// SuccessRate is the share of a voucher's resolved vouchee loans that completed.
// With no resolved loans the voucher keeps a clean 100.
func SuccessRate(completed, defaulted int) float64 {
	total := completed + defaulted
	if total <= 0 {
		return 100
	}
	rate := float64(completed) / float64(total) * 100
	return math.Round(rate*100) / 100
}

func clampScore(v int) int {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}
