package trust

import "fmt"

type Tier string

const (
	Tier1 Tier = "tier_1"
	Tier2 Tier = "tier_2"
	Tier3 Tier = "tier_3"
	Tier4 Tier = "tier_4"
)

// TierInfo is the classification of an active-vouch count.
type TierInfo struct {
	Tier                 Tier   `json:"tier"`
	TierNumber           int    `json:"tier_number"`
	TierName             string `json:"tier_name"`
	VouchCount           int    `json:"vouch_count"`
	VouchesNeededForNext int    `json:"vouches_needed_for_next"`
}

type tierBand struct {
	tier     Tier
	number   int
	name     string
	minCount int
}

// Bands are ordered by minCount; the last band is open ended.
var tierBands = []tierBand{
	{tier: Tier1, number: 1, name: "Low Trust", minCount: 0},
	{tier: Tier2, number: 2, name: "Building Trust", minCount: 3},
	{tier: Tier3, number: 3, name: "Established Trust", minCount: 6},
	{tier: Tier4, number: 4, name: "High Trust", minCount: 11},
}

// Classify maps an active-vouch count to its tier. Negative counts are treated as zero.
func Classify(activeVouchCount int) TierInfo {
	if activeVouchCount < 0 {
		activeVouchCount = 0
	}
	idx := 0
	for i, b := range tierBands {
		if activeVouchCount >= b.minCount {
			idx = i
		}
	}
	b := tierBands[idx]
	needed := 0
	if idx+1 < len(tierBands) {
		needed = tierBands[idx+1].minCount - activeVouchCount
	}
	return TierInfo{
		Tier:                 b.tier,
		TierNumber:           b.number,
		TierName:             b.name,
		VouchCount:           activeVouchCount,
		VouchesNeededForNext: needed,
	}
}

// ParseTier validates a stored tier value.
func ParseTier(raw string) (Tier, error) {
	for _, b := range tierBands {
		if string(b.tier) == raw {
			return b.tier, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidTier, raw)
}

// Number returns 1..4, or 0 for an unknown tier.
func (t Tier) Number() int {
	for _, b := range tierBands {
		if b.tier == t {
			return b.number
		}
	}
	return 0
}
