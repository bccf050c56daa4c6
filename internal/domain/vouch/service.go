package vouch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/feyza/backend/internal/domain/trust"
)

const maxKnownYears = 100

// CascadeObserver is told about every finished re-pricing pass.
type CascadeObserver func(res *trust.CascadeResult)

type Manager struct {
	vouches   Repository
	requests  RequestRepository
	users     UserRepository
	tiers     TierRecalculator
	scores    ScoreRecalculator
	events    EventRecorder
	projector GraphProjector
	observer  CascadeObserver
	logger    *slog.Logger
	now       func() time.Time
}

type Option func(*Manager)

func WithProjector(p GraphProjector) Option {
	return func(m *Manager) { m.projector = p }
}

func WithCascadeObserver(o CascadeObserver) Option {
	return func(m *Manager) { m.observer = o }
}

func WithLogger(l *slog.Logger) Option {
	return func(m *Manager) {
		if l != nil {
			m.logger = l
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

func NewManager(vouches Repository, requests RequestRepository, users UserRepository, tiers TierRecalculator, scores ScoreRecalculator, events EventRecorder, opts ...Option) *Manager {
	m := &Manager{
		vouches:  vouches,
		requests: requests,
		users:    users,
		tiers:    tiers,
		scores:   scores,
		events:   events,
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
		now:      func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func validateCreate(in CreateInput) error {
	if strings.TrimSpace(in.VoucherID) == "" {
		return trust.NewValidationError("voucher_id", "required")
	}
	if strings.TrimSpace(in.VoucheeID) == "" {
		return trust.NewValidationError("vouchee_id", "required")
	}
	if in.VoucherID == in.VoucheeID {
		return ErrSelfVouch
	}
	if !trust.ValidVouchType(in.VouchType) {
		return ErrInvalidVouchType
	}
	if !trust.ValidRelationship(in.Relationship) {
		return ErrInvalidRelationship
	}
	if in.KnownYears < 0 || in.KnownYears > maxKnownYears {
		return ErrInvalidKnownYears
	}
	return nil
}

// CreateVouch persists an active vouch. Re-issuing for a pair that already has
// an active vouch updates it in place and never creates a second row.
func (m *Manager) CreateVouch(ctx context.Context, in CreateInput) (*CreateResult, error) {
	in.Message = strings.TrimSpace(in.Message)
	if err := validateCreate(in); err != nil {
		return nil, err
	}

	voucher, err := m.users.GetByID(ctx, in.VoucherID)
	if err != nil {
		return nil, fmt.Errorf("load voucher: %w", err)
	}
	if _, err := m.users.GetByID(ctx, in.VoucheeID); err != nil {
		return nil, fmt.Errorf("load vouchee: %w", err)
	}
	strength := trust.ComputeVouchStrength(voucher.TrustTier, in.Relationship, in.KnownYears, in.VouchType, voucher.VouchingSuccessRate)

	res := &CreateResult{SideEffectErrors: []string{}}
	existing, err := m.vouches.GetActiveByPair(ctx, in.VoucherID, in.VoucheeID)
	switch {
	case err == nil:
		if sameMetadata(existing, in, strength) {
			res.Vouch = existing
			return res, nil
		}
		if err := m.vouches.UpdateMetadata(ctx, existing.ID, MetadataUpdate{
			VouchType:     in.VouchType,
			Relationship:  in.Relationship,
			KnownYears:    in.KnownYears,
			Message:       in.Message,
			VouchStrength: strength,
		}); err != nil {
			return nil, fmt.Errorf("update vouch: %w", err)
		}
		updated := *existing
		updated.VouchType, updated.Relationship, updated.KnownYears, updated.Message = in.VouchType, in.Relationship, in.KnownYears, in.Message
		updated.VouchStrength, updated.TrustScoreBoost = strength, strength
		res.Vouch, res.Updated = &updated, true
	case errors.Is(err, trust.ErrNotFound):
		created, err := m.vouches.Create(ctx, NewVouch{
			VoucherID:     in.VoucherID,
			VoucheeID:     in.VoucheeID,
			VouchType:     in.VouchType,
			Relationship:  in.Relationship,
			KnownYears:    in.KnownYears,
			Message:       in.Message,
			VouchStrength: strength,
			CreatedAt:     m.now(),
		})
		if errors.Is(err, ErrDuplicate) {
			// Lost a race with a concurrent create for the same pair.
			existing, getErr := m.vouches.GetActiveByPair(ctx, in.VoucherID, in.VoucheeID)
			if getErr != nil {
				return nil, fmt.Errorf("load concurrent vouch: %w", getErr)
			}
			res.Vouch = existing
			return res, nil
		}
		if err != nil {
			return nil, fmt.Errorf("create vouch: %w", err)
		}
		res.Vouch, res.Created = created, true
	default:
		return nil, fmt.Errorf("load active vouch: %w", err)
	}

	var sideErrs trust.ErrorList
	if res.Created {
		update, err := m.tiers.CalculateSimpleTrustTier(ctx, in.VoucheeID)
		if err != nil {
			sideErrs.Add("vouchee tier", err)
		} else {
			res.Tier = update
		}
		if _, err := m.events.RecordEvent(ctx, in.VoucheeID, "", trust.EventVouchReceived); err != nil {
			sideErrs.Add("vouch_received event", err)
		}
	}
	m.project(ctx, *res.Vouch)

	if score, err := m.scores.Recalculate(ctx, in.VoucheeID); err != nil {
		sideErrs.Add("vouchee score", err)
	} else {
		res.VoucheeScore = score
	}
	if score, err := m.scores.Recalculate(ctx, in.VoucherID); err != nil {
		sideErrs.Add("voucher score", err)
	} else {
		res.VoucherScore = score
	}

	res.SideEffectErrors = sideErrs.Strings()
	m.logger.Info("vouch saved", "vouch_id", res.Vouch.ID, "voucher_id", in.VoucherID, "vouchee_id", in.VoucheeID,
		"strength", strength, "created", res.Created, "side_effect_errors", len(res.SideEffectErrors))
	return res, nil
}

func sameMetadata(v *trust.Vouch, in CreateInput, strength int) bool {
	return v.VouchType == in.VouchType &&
		v.Relationship == in.Relationship &&
		v.KnownYears == in.KnownYears &&
		v.Message == in.Message &&
		v.VouchStrength == strength
}

// RevokeVouch ends an active vouch. The row and its counters are kept.
func (m *Manager) RevokeVouch(ctx context.Context, vouchID, voucherID string) (*RevokeResult, error) {
	v, err := m.vouches.GetByID(ctx, vouchID)
	if err != nil {
		return nil, err
	}
	if v.VoucherID != voucherID {
		return nil, ErrNotVoucher
	}
	if v.Status != trust.VouchActive {
		return nil, ErrVouchNotActive
	}
	at := m.now()
	ok, err := m.vouches.Revoke(ctx, vouchID, at)
	if err != nil {
		return nil, fmt.Errorf("revoke vouch: %w", err)
	}
	if !ok {
		return nil, ErrVouchNotActive
	}
	v.Status, v.RevokedAt = trust.VouchRevoked, &at

	res := &RevokeResult{Vouch: v}
	var sideErrs trust.ErrorList
	if update, err := m.tiers.CalculateSimpleTrustTier(ctx, v.VoucheeID); err != nil {
		sideErrs.Add("vouchee tier", err)
	} else {
		res.Tier = update
	}
	if m.projector != nil {
		if err := m.projector.RemoveVouch(ctx, v.ID); err != nil {
			m.logger.Warn("vouch graph removal failed", "vouch_id", v.ID, "err", err)
		}
	}
	for _, userID := range []string{v.VoucheeID, v.VoucherID} {
		if _, err := m.scores.Recalculate(ctx, userID); err != nil {
			sideErrs.Add("score "+userID, err)
		}
	}
	res.SideEffectErrors = sideErrs.Strings()
	return res, nil
}

// RequestVouch asks voucherID to vouch for requesterID. A pending request for
// the same pair is returned instead of creating another.
func (m *Manager) RequestVouch(ctx context.Context, requesterID, voucherID, message string) (*trust.VouchRequest, error) {
	if strings.TrimSpace(requesterID) == "" || strings.TrimSpace(voucherID) == "" {
		return nil, trust.NewValidationError("voucher_id", "required")
	}
	if requesterID == voucherID {
		return nil, ErrSelfVouch
	}
	if _, err := m.users.GetByID(ctx, voucherID); err != nil {
		return nil, fmt.Errorf("load voucher: %w", err)
	}
	if _, err := m.vouches.GetActiveByPair(ctx, voucherID, requesterID); err == nil {
		return nil, ErrAlreadyVouched
	} else if !errors.Is(err, trust.ErrNotFound) {
		return nil, err
	}
	pending, err := m.requests.GetPendingRequest(ctx, requesterID, voucherID)
	if err == nil {
		return pending, nil
	}
	if !errors.Is(err, trust.ErrNotFound) {
		return nil, err
	}
	return m.requests.CreateRequest(ctx, NewRequest{
		RequesterID: requesterID,
		VoucherID:   voucherID,
		Message:     strings.TrimSpace(message),
		CreatedAt:   m.now(),
	})
}

type AcceptInput struct {
	VouchType    trust.VouchType
	Relationship trust.Relationship
	KnownYears   int
	Message      string
}

// AcceptRequest turns a pending request into an active vouch. The vouch is
// written before the request is resolved so a retry after a crash converges.
func (m *Manager) AcceptRequest(ctx context.Context, requestID, voucherID string, in AcceptInput) (*CreateResult, error) {
	req, err := m.requests.GetRequest(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if req.VoucherID != voucherID {
		return nil, ErrNotVoucher
	}
	if req.Status != trust.RequestPending && req.Status != trust.RequestAccepted {
		return nil, ErrRequestResolved
	}
	res, err := m.CreateVouch(ctx, CreateInput{
		VoucherID:    req.VoucherID,
		VoucheeID:    req.RequesterID,
		VouchType:    in.VouchType,
		Relationship: in.Relationship,
		KnownYears:   in.KnownYears,
		Message:      in.Message,
	})
	if err != nil {
		return nil, err
	}
	if req.Status == trust.RequestPending {
		if _, err := m.requests.ResolveRequest(ctx, req.ID, trust.RequestAccepted, m.now()); err != nil {
			res.SideEffectErrors = append(res.SideEffectErrors, fmt.Sprintf("resolve request: %v", err))
		}
	}
	return res, nil
}

func (m *Manager) DeclineRequest(ctx context.Context, requestID, voucherID string) (*trust.VouchRequest, error) {
	req, err := m.requests.GetRequest(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if req.VoucherID != voucherID {
		return nil, ErrNotVoucher
	}
	if req.Status == trust.RequestDeclined {
		return req, nil
	}
	at := m.now()
	ok, err := m.requests.ResolveRequest(ctx, req.ID, trust.RequestDeclined, at)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrRequestResolved
	}
	req.Status, req.ResolvedAt = trust.RequestDeclined, &at
	return req, nil
}

// ExpireRequests closes pending requests created more than ttl ago.
func (m *Manager) ExpireRequests(ctx context.Context, ttl time.Duration) (int64, error) {
	if ttl <= 0 {
		return 0, nil
	}
	now := m.now()
	return m.requests.ExpirePending(ctx, now.Add(-ttl), now)
}

func (m *Manager) ListForUser(ctx context.Context, userID string) (given, received []trust.Vouch, err error) {
	given, err = m.vouches.ListByVoucher(ctx, userID)
	if err != nil {
		return nil, nil, err
	}
	received, err = m.vouches.ListByVouchee(ctx, userID)
	if err != nil {
		return nil, nil, err
	}
	return given, received, nil
}

func (m *Manager) project(ctx context.Context, v trust.Vouch) {
	if m.projector == nil {
		return
	}
	if err := m.projector.ProjectVouch(ctx, v); err != nil {
		m.logger.Warn("vouch graph projection failed", "vouch_id", v.ID, "err", err)
	}
}
