package vouch

import (
	"context"
	"fmt"
	"strings"

	"github.com/feyza/backend/internal/domain/trust"
)

// OnVoucheeNewLoan bumps loans_active on every active vouch the borrower holds.
// The caller guarantees it runs once per loan activation.
func (m *Manager) OnVoucheeNewLoan(ctx context.Context, voucheeID, loanID string) (*OutcomeResult, error) {
	if strings.TrimSpace(voucheeID) == "" || strings.TrimSpace(loanID) == "" {
		return nil, trust.NewValidationError("loan_id", "vouchee and loan are required")
	}
	vouches, err := m.vouches.ListActiveByVouchee(ctx, voucheeID)
	if err != nil {
		return nil, fmt.Errorf("list vouches for %s: %w", voucheeID, err)
	}
	res := &OutcomeResult{LoanID: loanID}
	var errs trust.ErrorList
	for _, v := range vouches {
		if err := m.vouches.IncrementLoansActive(ctx, v.ID); err != nil {
			errs.Add("vouch "+v.ID, err)
			continue
		}
		res.VouchesUpdated++
	}
	res.Errors = errs.Strings()
	return res, nil
}

// OnVoucheeLoanCompleted credits every voucher of the borrower once per loan.
// A loan that already carries a vouch_given event is skipped outright; the
// per-voucher idempotency key covers callers racing past that check.
func (m *Manager) OnVoucheeLoanCompleted(ctx context.Context, voucheeID, loanID string) (*OutcomeResult, error) {
	return m.settleOutcome(ctx, voucheeID, loanID, trust.EventVouchGiven, m.vouches.RecordLoanCompleted)
}

// OnVoucheeLoanDefaulted charges every voucher of the borrower once per loan.
func (m *Manager) OnVoucheeLoanDefaulted(ctx context.Context, voucheeID, loanID string) (*OutcomeResult, error) {
	return m.settleOutcome(ctx, voucheeID, loanID, trust.EventVouchDefaulted, m.vouches.RecordLoanDefaulted)
}

func (m *Manager) settleOutcome(ctx context.Context, voucheeID, loanID string, eventType trust.EventType, apply func(ctx context.Context, vouchID string) error) (*OutcomeResult, error) {
	if strings.TrimSpace(voucheeID) == "" || strings.TrimSpace(loanID) == "" {
		return nil, trust.NewValidationError("loan_id", "vouchee and loan are required")
	}
	res := &OutcomeResult{LoanID: loanID, Errors: []string{}}

	seen, err := m.events.LoanHasEvent(ctx, loanID, eventType)
	if err != nil {
		return nil, fmt.Errorf("dedup check %s: %w", eventType, err)
	}
	if seen {
		m.logger.Info("vouch outcome already settled", "loan_id", loanID, "event_type", eventType)
		res.Skipped = true
		return res, nil
	}

	vouches, err := m.vouches.ListActiveByVouchee(ctx, voucheeID)
	if err != nil {
		return nil, fmt.Errorf("list vouches for %s: %w", voucheeID, err)
	}

	var errs trust.ErrorList
	touched := map[string]struct{}{}
	for _, v := range vouches {
		_, recorded, err := m.events.RecordOnce(ctx, trust.GuardedEvent{
			UserID:    v.VoucherID,
			LoanID:    loanID,
			EventType: eventType,
			Scope:     v.ID,
		})
		if err != nil {
			errs.Add("vouch "+v.ID, err)
			continue
		}
		if !recorded {
			continue
		}
		res.EventsRecorded++
		if err := apply(ctx, v.ID); err != nil {
			errs.Add("vouch "+v.ID, err)
			continue
		}
		res.VouchesUpdated++
		touched[v.VoucherID] = struct{}{}
	}

	for voucherID := range touched {
		if err := m.RefreshVoucher(ctx, voucherID); err != nil {
			errs.Add("voucher "+voucherID, err)
		}
	}
	res.Errors = errs.Strings()
	return res, nil
}

// RefreshVoucher re-derives the voucher's success rate, re-prices their given
// vouches when it moved and rescores the voucher.
func (m *Manager) RefreshVoucher(ctx context.Context, voucherID string) error {
	user, err := m.users.GetByID(ctx, voucherID)
	if err != nil {
		return fmt.Errorf("load voucher: %w", err)
	}
	completed, defaulted, err := m.vouches.VoucherOutcomes(ctx, voucherID)
	if err != nil {
		return fmt.Errorf("voucher outcomes: %w", err)
	}
	rate := trust.SuccessRate(completed, defaulted)

	var errs trust.ErrorList
	if rate != user.VouchingSuccessRate {
		if err := m.users.UpdateVouchingSuccessRate(ctx, voucherID, rate); err != nil {
			return fmt.Errorf("update success rate: %w", err)
		}
		res, err := m.reprice(ctx, voucherID, user.TrustTier, rate)
		if err != nil {
			errs.Add("reprice", err)
		} else if len(res.Errors) > 0 {
			errs = append(errs, res.Errors...)
		}
	}
	if _, err := m.scores.Recalculate(ctx, voucherID); err != nil {
		errs.Add("score", err)
	}
	if len(errs) > 0 {
		return fmt.Errorf("%s", strings.Join(errs, "; "))
	}
	return nil
}

// CascadeOnTierChange re-prices every active vouch userID has given using the
// new tier. Only vouches whose strength actually moves are written; per-vouch
// failures are collected and the pass continues.
func (m *Manager) CascadeOnTierChange(ctx context.Context, userID string, newTier trust.Tier) (*trust.CascadeResult, error) {
	if newTier.Number() == 0 {
		return nil, fmt.Errorf("%w: %q", trust.ErrInvalidTier, newTier)
	}
	user, err := m.users.GetByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("load voucher: %w", err)
	}
	return m.reprice(ctx, userID, newTier, user.VouchingSuccessRate)
}

func (m *Manager) reprice(ctx context.Context, voucherID string, voucherTier trust.Tier, successRate float64) (*trust.CascadeResult, error) {
	vouches, err := m.vouches.ListActiveByVoucher(ctx, voucherID)
	if err != nil {
		return nil, fmt.Errorf("list given vouches: %w", err)
	}
	res := &trust.CascadeResult{VoucherID: voucherID, Tier: voucherTier}
	var errs trust.ErrorList
	rescore := []string{}
	seen := map[string]struct{}{}
	for _, v := range vouches {
		res.Checked++
		changed, err := m.applyStrength(ctx, v, voucherTier, successRate)
		if err != nil {
			errs.Add("vouch "+v.ID, err)
			continue
		}
		if !changed {
			res.Unchanged++
			continue
		}
		res.Updated++
		if _, ok := seen[v.VoucheeID]; !ok {
			seen[v.VoucheeID] = struct{}{}
			rescore = append(rescore, v.VoucheeID)
		}
	}

	// Vouchees whose received strength moved carry a stale social score.
	for _, userID := range rescore {
		if _, err := m.scores.Recalculate(ctx, userID); err != nil {
			errs.Add("score "+userID, err)
			continue
		}
		res.Rescored = append(res.Rescored, userID)
	}
	res.Errors = errs.Strings()
	if m.observer != nil {
		m.observer(res)
	}
	if len(res.Errors) > 0 {
		m.logger.Warn("vouch cascade finished with errors", "voucher_id", voucherID, "tier", voucherTier,
			"updated", res.Updated, "errors", len(res.Errors))
	}
	return res, nil
}

// SyncSuccessRate re-derives voucher's success rate from the outcomes on the
// vouches they gave and persists it when the stored value drifted. voucher is
// updated in place.
func (m *Manager) SyncSuccessRate(ctx context.Context, voucher *trust.User) (bool, error) {
	completed, defaulted, err := m.vouches.VoucherOutcomes(ctx, voucher.ID)
	if err != nil {
		return false, fmt.Errorf("voucher outcomes: %w", err)
	}
	rate := trust.SuccessRate(completed, defaulted)
	if rate == voucher.VouchingSuccessRate {
		return false, nil
	}
	if err := m.users.UpdateVouchingSuccessRate(ctx, voucher.ID, rate); err != nil {
		return false, fmt.Errorf("update success rate: %w", err)
	}
	voucher.VouchingSuccessRate = rate
	return true, nil
}

// RepriceVouch recomputes one vouch from the voucher's current profile and
// writes it only when the strength differs.
func (m *Manager) RepriceVouch(ctx context.Context, v trust.Vouch, voucher *trust.User) (bool, error) {
	return m.applyStrength(ctx, v, voucher.TrustTier, voucher.VouchingSuccessRate)
}

func (m *Manager) applyStrength(ctx context.Context, v trust.Vouch, voucherTier trust.Tier, successRate float64) (bool, error) {
	strength := trust.ComputeVouchStrength(voucherTier, v.Relationship, v.KnownYears, v.VouchType, successRate)
	if strength == v.VouchStrength && strength == v.TrustScoreBoost {
		return false, nil
	}
	if err := m.vouches.UpdateStrength(ctx, v.ID, strength); err != nil {
		return false, err
	}
	return true, nil
}

// Project re-mirrors one vouch into the graph store.
func (m *Manager) Project(ctx context.Context, v trust.Vouch) error {
	if m.projector == nil {
		return nil
	}
	return m.projector.ProjectVouch(ctx, v)
}
