package trust

import (
	"math"
	"time"
)

// WeightProfile is one row of the scoring policy table. Weights sum to 1.0.
type WeightProfile struct {
	Name         string
	Payment      float64
	Completion   float64
	Social       float64
	Verification float64
	Tenure       float64
}

const (
	ProfileBorrower = "borrower"
	ProfileLender   = "lender"
)

// ScoringPolicy holds the tunable tables; the arithmetic in this file never
// hard-codes a weight.
type ScoringPolicy struct {
	Borrower WeightProfile
	Lender   WeightProfile

	// Sub-score used when a factor has no data yet.
	NeutralScore float64

	EarlyBonus                float64
	LatePenalty               float64
	MissedPenalty             float64
	OverdueInstallmentPenalty float64

	CompletionRateShare float64
	CompletionVolumeMax int

	VoucheeAverageShare   float64
	VoucheeCountForMax    int
	VoucheeSideShare      float64
	VoucherOutcomesForMax int

	IdentityPoints   float64
	EmploymentPoints float64
	AddressPoints    float64
	BankPoints       float64

	TenureMonthsForMax float64
}

func DefaultScoringPolicy() ScoringPolicy {
	return ScoringPolicy{
		Borrower: WeightProfile{Name: ProfileBorrower, Payment: 0.40, Completion: 0.25, Social: 0.15, Verification: 0.10, Tenure: 0.10},
		Lender:   WeightProfile{Name: ProfileLender, Payment: 0, Completion: 0, Social: 0.50, Verification: 0.25, Tenure: 0.25},

		NeutralScore: 50,

		EarlyBonus:                10,
		LatePenalty:               20,
		MissedPenalty:             40,
		OverdueInstallmentPenalty: 15,

		CompletionRateShare: 0.6,
		CompletionVolumeMax: 10,

		VoucheeAverageShare:   0.5,
		VoucheeCountForMax:    10,
		VoucheeSideShare:      0.6,
		VoucherOutcomesForMax: 5,

		IdentityPoints:   30,
		EmploymentPoints: 25,
		AddressPoints:    20,
		BankPoints:       25,

		TenureMonthsForMax: 12,
	}
}

// SelectProfile picks the lender profile for users with no borrower history at
// all; payment and completion are only placeholders for them.
func (p ScoringPolicy) SelectProfile(s *Stats) WeightProfile {
	if s.LoansTaken == 0 && s.User.TotalPaymentsMade == 0 && s.OverdueInstallments == 0 {
		return p.Lender
	}
	return p.Borrower
}

// Breakdown is the unrounded output of Compute.
type Breakdown struct {
	Payment      float64
	Completion   float64
	Social       float64
	Verification float64
	Tenure       float64
	Overall      float64
	Profile      WeightProfile
}

func (p ScoringPolicy) Compute(s *Stats, now time.Time) Breakdown {
	b := Breakdown{
		Payment:      p.PaymentScore(s),
		Completion:   p.CompletionScore(s),
		Social:       p.SocialScore(s),
		Verification: p.VerificationScore(&s.User),
		Tenure:       p.TenureScore(s.User.CreatedAt, now),
		Profile:      p.SelectProfile(s),
	}
	w := b.Profile
	b.Overall = clampFloat(b.Payment*w.Payment + b.Completion*w.Completion + b.Social*w.Social +
		b.Verification*w.Verification + b.Tenure*w.Tenure)
	return b
}

// PaymentScore rewards on-time and early payments and penalises late, missed
// and currently overdue installments.
func (p ScoringPolicy) PaymentScore(s *Stats) float64 {
	u := s.User
	resolved := u.PaymentsOnTime + u.PaymentsEarly + u.PaymentsLate + u.PaymentsMissed
	overduePenalty := float64(s.OverdueInstallments) * p.OverdueInstallmentPenalty
	if resolved == 0 {
		return clampFloat(p.NeutralScore - overduePenalty)
	}
	total := float64(resolved)
	good := float64(u.PaymentsOnTime + u.PaymentsEarly)
	score := good/total*100 +
		float64(u.PaymentsEarly)/total*p.EarlyBonus -
		float64(u.PaymentsLate)/total*p.LatePenalty -
		float64(u.PaymentsMissed)/total*p.MissedPenalty -
		overduePenalty
	return clampFloat(score)
}

// CompletionScore blends completion rate with a volume term that keeps rising
// until CompletionVolumeMax loans, so one completed loan is far from 100.
func (p ScoringPolicy) CompletionScore(s *Stats) float64 {
	if s.LoansTaken == 0 {
		return p.NeutralScore
	}
	rate := float64(s.LoansCompleted) / float64(s.LoansTaken) * 100
	volume := math.Min(float64(s.LoansCompleted)/float64(p.CompletionVolumeMax), 1) * 100
	return clampFloat(rate*p.CompletionRateShare + volume*(1-p.CompletionRateShare))
}

// SocialScore blends the vouchee side (vouches received) with the voucher side
// (outcomes of the loans this user vouched for).
func (p ScoringPolicy) SocialScore(s *Stats) float64 {
	vouchee, hasVouchee := p.voucheeSide(s.ReceivedStrengths)
	voucher, hasVoucher := p.voucherSide(s)
	switch {
	case hasVouchee && hasVoucher:
		return clampFloat(vouchee*p.VoucheeSideShare + voucher*(1-p.VoucheeSideShare))
	case hasVouchee:
		return clampFloat(vouchee)
	case hasVoucher:
		return clampFloat(voucher)
	default:
		return 0
	}
}

func (p ScoringPolicy) voucheeSide(strengths []int) (float64, bool) {
	if len(strengths) == 0 {
		return 0, false
	}
	sum := 0
	for _, st := range strengths {
		sum += st
	}
	avg := float64(sum) / float64(len(strengths))
	count := math.Min(float64(len(strengths))/float64(p.VoucheeCountForMax), 1) * 100
	return avg*p.VoucheeAverageShare + count*(1-p.VoucheeAverageShare), true
}

func (p ScoringPolicy) voucherSide(s *Stats) (float64, bool) {
	if s.VouchesGiven == 0 {
		return 0, false
	}
	resolved := s.GivenLoansCompleted + s.GivenLoansDefaulted
	if resolved == 0 {
		return p.NeutralScore, true
	}
	rate := float64(s.GivenLoansCompleted) / float64(resolved)
	confidence := math.Min(float64(resolved)/float64(p.VoucherOutcomesForMax), 1)
	// Few outcomes pull toward neutral; a full record stands on its own.
	return p.NeutralScore*(1-confidence) + rate*100*confidence, true
}

func (p ScoringPolicy) VerificationScore(u *User) float64 {
	score := 0.0
	if u.IdentityVerified {
		score += p.IdentityPoints
	}
	if u.EmploymentVerified {
		score += p.EmploymentPoints
	}
	if u.AddressVerified {
		score += p.AddressPoints
	}
	if u.BankConnected {
		score += p.BankPoints
	}
	return clampFloat(score)
}

func (p ScoringPolicy) TenureScore(createdAt, now time.Time) float64 {
	if createdAt.IsZero() || !now.After(createdAt) {
		return 0
	}
	months := now.Sub(createdAt).Hours() / 24 / 30
	return clampFloat(months / p.TenureMonthsForMax * 100)
}

func clampFloat(v float64) float64 {
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}

func roundScore(v float64) int {
	return clampScore(int(math.Round(v)))
}
