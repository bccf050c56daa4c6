package businesstrust

import (
	"context"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

func validatePair(borrowerID, businessID string) error {
	if strings.TrimSpace(borrowerID) == "" || strings.TrimSpace(businessID) == "" {
		return fmt.Errorf("missing_borrower_or_business")
	}
	return nil
}

func (s *Service) RecordLoanStarted(ctx context.Context, borrowerID, businessID string, amount decimal.Decimal) (*Entity, error) {
	if err := validatePair(borrowerID, businessID); err != nil {
		return nil, err
	}
	e, err := s.repo.GetOrCreate(ctx, borrowerID, businessID)
	if err != nil {
		return nil, err
	}
	if amount.IsPositive() {
		if err := s.repo.AddBorrowed(ctx, borrowerID, businessID, amount); err != nil {
			return nil, err
		}
		e.TotalAmountBorrowed = e.TotalAmountBorrowed.Add(amount)
	}
	return e, nil
}

func (s *Service) RecordRepayment(ctx context.Context, borrowerID, businessID string, amount decimal.Decimal) error {
	if err := validatePair(borrowerID, businessID); err != nil {
		return err
	}
	if !amount.IsPositive() {
		return nil
	}
	if _, err := s.repo.GetOrCreate(ctx, borrowerID, businessID); err != nil {
		return err
	}
	return s.repo.AddRepaid(ctx, borrowerID, businessID, amount)
}

// RecordCompletion counts a completed loan and graduates the pair at
// GraduationLoanCount. A suspended pair stays suspended; its counts still grow.
func (s *Service) RecordCompletion(ctx context.Context, borrowerID, businessID string) (*Entity, error) {
	if err := validatePair(borrowerID, businessID); err != nil {
		return nil, err
	}
	e, err := s.repo.GetOrCreate(ctx, borrowerID, businessID)
	if err != nil {
		return nil, err
	}
	e.CompletedLoanCount++
	e.TrustStatus, e.HasGraduated = NextStatus(e.TrustStatus, e.CompletedLoanCount, e.HasGraduated)
	if err := s.repo.SetProgress(ctx, borrowerID, businessID, e.CompletedLoanCount, e.TrustStatus, e.HasGraduated); err != nil {
		return nil, err
	}
	return e, nil
}

// RecordDefault suspends the pair. Amounts and counts are preserved.
func (s *Service) RecordDefault(ctx context.Context, borrowerID, businessID string) error {
	if err := validatePair(borrowerID, businessID); err != nil {
		return err
	}
	if _, err := s.repo.GetOrCreate(ctx, borrowerID, businessID); err != nil {
		return err
	}
	return s.repo.MarkDefaulted(ctx, borrowerID, businessID)
}

func (s *Service) ListForBorrower(ctx context.Context, borrowerID string) ([]Entity, error) {
	return s.repo.ListByBorrower(ctx, borrowerID)
}

func NextStatus(current Status, completed int, graduated bool) (Status, bool) {
	if current == StatusSuspended {
		return StatusSuspended, graduated
	}
	if graduated || completed >= GraduationLoanCount {
		return StatusGraduated, true
	}
	if completed > 0 {
		return StatusBuilding, false
	}
	return StatusNew, false
}
