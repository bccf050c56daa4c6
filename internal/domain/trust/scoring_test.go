package trust

import (
	"testing"
	"time"
)

var scoringNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func TestLenderProfileLiftsPureVoucher(t *testing.T) {
	p := DefaultScoringPolicy()
	s := &Stats{
		User: User{
			ID:               "lender",
			IdentityVerified: true,
			CreatedAt:        scoringNow.AddDate(-1, 0, 0),
		},
		VouchesGiven:        5,
		GivenLoansCompleted: 5,
	}

	b := p.Compute(s, scoringNow)
	if b.Profile.Name != ProfileLender {
		t.Fatalf("expected lender profile, got %s", b.Profile.Name)
	}
	if b.Overall <= 60 {
		t.Fatalf("expected lender score meaningfully above 50, got %.2f", b.Overall)
	}

	borrowerOverall := b.Payment*p.Borrower.Payment + b.Completion*p.Borrower.Completion +
		b.Social*p.Borrower.Social + b.Verification*p.Borrower.Verification + b.Tenure*p.Borrower.Tenure
	if b.Overall <= borrowerOverall {
		t.Fatalf("expected lender profile to beat borrower weights: %.2f <= %.2f", b.Overall, borrowerOverall)
	}
}

func TestProfileSelection(t *testing.T) {
	p := DefaultScoringPolicy()
	if got := p.SelectProfile(&Stats{LoansTaken: 1}); got.Name != ProfileBorrower {
		t.Fatalf("expected borrower profile with a loan, got %s", got.Name)
	}
	if got := p.SelectProfile(&Stats{User: User{TotalPaymentsMade: 2}}); got.Name != ProfileBorrower {
		t.Fatalf("expected borrower profile with payments, got %s", got.Name)
	}
	if got := p.SelectProfile(&Stats{}); got.Name != ProfileLender {
		t.Fatalf("expected lender profile for empty history, got %s", got.Name)
	}
}

func TestProfileWeightsSumToOne(t *testing.T) {
	p := DefaultScoringPolicy()
	for _, w := range []WeightProfile{p.Borrower, p.Lender} {
		sum := w.Payment + w.Completion + w.Social + w.Verification + w.Tenure
		if sum < 0.999 || sum > 1.001 {
			t.Fatalf("profile %s weights sum to %v", w.Name, sum)
		}
	}
}

func TestPaymentScorePenalisesOverdueInstallments(t *testing.T) {
	p := DefaultScoringPolicy()
	clean := &Stats{LoansTaken: 1, User: User{PaymentsOnTime: 4, TotalPaymentsMade: 4}}
	overdue := &Stats{LoansTaken: 1, User: User{PaymentsOnTime: 4, TotalPaymentsMade: 4}, OverdueInstallments: 2}

	if p.PaymentScore(clean) != 100 {
		t.Fatalf("expected perfect payment score, got %.2f", p.PaymentScore(clean))
	}
	if got := p.PaymentScore(overdue); got != 70 {
		t.Fatalf("expected overdue installments to cost 30 points, got %.2f", got)
	}
	if got := p.PaymentScore(&Stats{OverdueInstallments: 1}); got != 35 {
		t.Fatalf("expected overdue penalty from neutral, got %.2f", got)
	}
}

func TestCompletionScoreDoesNotSaturateOnOneLoan(t *testing.T) {
	p := DefaultScoringPolicy()
	one := p.CompletionScore(&Stats{LoansTaken: 1, LoansCompleted: 1})
	ten := p.CompletionScore(&Stats{LoansTaken: 10, LoansCompleted: 10})
	if one >= 90 {
		t.Fatalf("one completed loan should be far from the ceiling, got %.2f", one)
	}
	if ten != 100 {
		t.Fatalf("expected ten completed loans to reach 100, got %.2f", ten)
	}
	if p.CompletionScore(&Stats{}) != p.NeutralScore {
		t.Fatalf("expected neutral completion score without loans")
	}
}

func TestSocialScoreUsesBothSides(t *testing.T) {
	p := DefaultScoringPolicy()
	received := &Stats{ReceivedStrengths: []int{60, 60, 60}}
	both := &Stats{ReceivedStrengths: []int{60, 60, 60}, VouchesGiven: 2, GivenLoansCompleted: 5}
	bad := &Stats{ReceivedStrengths: []int{60, 60, 60}, VouchesGiven: 2, GivenLoansDefaulted: 5}

	if !(p.SocialScore(both) > p.SocialScore(received)) {
		t.Fatalf("good vouching record should raise social score")
	}
	if !(p.SocialScore(bad) < p.SocialScore(received)) {
		t.Fatalf("bad vouching record should lower social score")
	}
	if p.SocialScore(&Stats{}) != 0 {
		t.Fatalf("expected zero social score without vouches")
	}
}

func TestVerificationAndTenure(t *testing.T) {
	p := DefaultScoringPolicy()
	all := &User{IdentityVerified: true, EmploymentVerified: true, AddressVerified: true, BankConnected: true}
	if p.VerificationScore(all) != 100 {
		t.Fatalf("expected full verification score")
	}
	if p.TenureScore(scoringNow.AddDate(-3, 0, 0), scoringNow) != 100 {
		t.Fatalf("expected tenure to cap at 100")
	}
	half := p.TenureScore(scoringNow.Add(-180*24*time.Hour), scoringNow)
	if half < 49 || half > 51 {
		t.Fatalf("expected about 50 after six months, got %.2f", half)
	}
	if p.TenureScore(scoringNow.Add(time.Hour), scoringNow) != 0 {
		t.Fatalf("future creation date should score 0")
	}
}
