// Package testutil holds an in-memory implementation of every store-facing
// repository so domain, job and handler tests can share one consistent state.
package testutil

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/feyza/backend/internal/domain/businesstrust"
	"github.com/feyza/backend/internal/domain/loan"
	"github.com/feyza/backend/internal/domain/trust"
	"github.com/feyza/backend/internal/domain/vouch"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type Installment struct {
	ID      string
	LoanID  string
	Amount  decimal.Decimal
	DueDate *time.Time
	Paid    bool
	PaidAt  *time.Time
}

// Store is safe for concurrent use. The idempotency key and the active
// (voucher, vouchee) pair are unique, mirroring the SQL indexes.
type Store struct {
	mu sync.Mutex

	users        map[string]*trust.User
	vouches      map[string]*trust.Vouch
	requests     map[string]*trust.VouchRequest
	scores       map[string]trust.Score
	events       []trust.Event
	eventKeys    map[string]int64
	loans        map[string]*loan.Entity
	installments []*Installment
	business     map[string]*businesstrust.Entity

	nextEventID int64

	// Fail* inject errors per id; tests set them before acting.
	FailUpdateStrength map[string]error
	FailRecalculate    map[string]error
	FailUpdateTier     map[string]error

	StrengthWrites map[string]int
	TierWrites     int
	ScoreWrites    map[string]int
}

func NewStore() *Store {
	return &Store{
		users:              map[string]*trust.User{},
		vouches:            map[string]*trust.Vouch{},
		requests:           map[string]*trust.VouchRequest{},
		scores:             map[string]trust.Score{},
		eventKeys:          map[string]int64{},
		loans:              map[string]*loan.Entity{},
		business:           map[string]*businesstrust.Entity{},
		FailUpdateStrength: map[string]error{},
		FailRecalculate:    map[string]error{},
		FailUpdateTier:     map[string]error{},
		StrengthWrites:     map[string]int{},
		ScoreWrites:        map[string]int{},
	}
}

// AddUser seeds a tier_1 user created at createdAt.
func (s *Store) AddUser(id string, createdAt time.Time) *trust.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	u := &trust.User{
		ID:                  id,
		TrustTier:           trust.Tier1,
		VouchingSuccessRate: 100,
		IsActive:            true,
		CreatedAt:           createdAt,
	}
	s.users[id] = u
	return u
}

// MutateUser applies fn under the store lock.
func (s *Store) MutateUser(id string, fn func(u *trust.User)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if u, ok := s.users[id]; ok {
		fn(u)
	}
}

func (s *Store) User(id string) trust.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	if u, ok := s.users[id]; ok {
		return *u
	}
	return trust.User{}
}

func (s *Store) AddLoan(l loan.Entity) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := l
	s.loans[l.ID] = &cp
}

func (s *Store) SetLoanStatus(id string, status loan.Status) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if l, ok := s.loans[id]; ok {
		l.Status = status
	}
}

func (s *Store) AddInstallment(in Installment) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := in
	s.installments = append(s.installments, &cp)
}

func (s *Store) PayInstallment(id string, at time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, in := range s.installments {
		if in.ID == id {
			in.Paid = true
			paid := at
			in.PaidAt = &paid
		}
	}
}

// Events returns a copy of the ledger filtered by user and type; empty
// filters match everything.
func (s *Store) Events(userID string, eventType trust.EventType) []trust.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []trust.Event{}
	for _, ev := range s.events {
		if userID != "" && ev.UserID != userID {
			continue
		}
		if eventType != "" && ev.EventType != eventType {
			continue
		}
		out = append(out, ev)
	}
	return out
}

func (s *Store) Vouch(id string) trust.Vouch {
	s.mu.Lock()
	defer s.mu.Unlock()
	if v, ok := s.vouches[id]; ok {
		return *v
	}
	return trust.Vouch{}
}

// PutVouch inserts a vouch row as-is, bypassing the service.
func (s *Store) PutVouch(v trust.Vouch) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := v
	s.vouches[v.ID] = &cp
}

// users

func (s *Store) GetByID(_ context.Context, userID string) (*trust.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[userID]
	if !ok {
		return nil, trust.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (s *Store) UpdateTier(_ context.Context, userID string, tier trust.Tier, vouchCount int, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.FailUpdateTier[userID]; err != nil {
		return err
	}
	u, ok := s.users[userID]
	if !ok {
		return trust.ErrNotFound
	}
	u.TrustTier, u.VouchCount = tier, vouchCount
	ts := at
	u.TrustTierUpdatedAt = &ts
	s.TierWrites++
	return nil
}

func (s *Store) UpdateVouchingSuccessRate(_ context.Context, userID string, rate float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[userID]
	if !ok {
		return trust.ErrNotFound
	}
	u.VouchingSuccessRate = rate
	return nil
}

func (s *Store) IncrementPaymentCounter(_ context.Context, userID string, kind trust.PaymentKind) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[userID]
	if !ok {
		return trust.ErrNotFound
	}
	switch kind {
	case trust.PaymentEarly:
		u.PaymentsEarly++
	case trust.PaymentLate:
		u.PaymentsLate++
	case trust.PaymentMissed:
		u.PaymentsMissed++
		return nil
	default:
		u.PaymentsOnTime++
	}
	u.TotalPaymentsMade++
	return nil
}

func (s *Store) ListIDs(_ context.Context, afterID string, limit int32) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]string, 0, len(s.users))
	for id := range s.users {
		if id > afterID {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	if int(limit) < len(ids) {
		ids = ids[:limit]
	}
	return ids, nil
}

// stats

func (s *Store) LoadStats(_ context.Context, userID string, now time.Time) (*trust.Stats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[userID]
	if !ok {
		return nil, trust.ErrNotFound
	}
	st := &trust.Stats{User: *u, ReceivedStrengths: []int{}}
	marked := map[string]map[trust.EventType]bool{}
	for _, ev := range s.events {
		if ev.UserID != userID || ev.LoanID == nil {
			continue
		}
		if marked[*ev.LoanID] == nil {
			marked[*ev.LoanID] = map[trust.EventType]bool{}
		}
		marked[*ev.LoanID][ev.EventType] = true
	}
	borrowed := map[string]bool{}
	for _, l := range s.loans {
		if l.BorrowerID != userID || l.Status == loan.StatusPending {
			continue
		}
		borrowed[l.ID] = true
		st.LoansTaken++
		completed := l.Status == loan.StatusCompleted || marked[l.ID][trust.EventLoanCompleted]
		defaulted := l.Status == loan.StatusDefaulted || marked[l.ID][trust.EventLoanDefaulted]
		switch {
		case completed:
			st.LoansCompleted++
		case defaulted:
			st.LoansDefaulted++
		}
	}
	for _, in := range s.installments {
		if borrowed[in.LoanID] && !in.Paid && in.DueDate != nil && in.DueDate.Before(now) {
			st.OverdueInstallments++
		}
	}
	for _, v := range s.vouches {
		if v.VoucheeID == userID && v.Status == trust.VouchActive {
			st.ReceivedStrengths = append(st.ReceivedStrengths, v.VouchStrength)
		}
		if v.VoucherID == userID {
			if v.Status == trust.VouchActive {
				st.VouchesGiven++
			}
			st.GivenLoansCompleted += v.LoansCompleted
			st.GivenLoansDefaulted += v.LoansDefaulted
		}
	}
	sort.Ints(st.ReceivedStrengths)
	return st, nil
}

// scores

type ScoreStore struct{ *Store }

func (s ScoreStore) Upsert(_ context.Context, score trust.Score) (*trust.Score, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.FailRecalculate[score.UserID]; err != nil {
		return nil, err
	}
	s.scores[score.UserID] = score
	s.ScoreWrites[score.UserID]++
	cp := score
	return &cp, nil
}

func (s ScoreStore) GetByUserID(_ context.Context, userID string) (*trust.Score, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	score, ok := s.scores[userID]
	if !ok {
		return nil, trust.ErrNotFound
	}
	return &score, nil
}

// events

type EventStore struct{ *Store }

func (s EventStore) Insert(_ context.Context, in trust.EventInput) (*trust.Event, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if in.IdempotencyKey != "" {
		if _, dup := s.eventKeys[in.IdempotencyKey]; dup {
			return nil, false, nil
		}
	}
	s.nextEventID++
	ev := trust.Event{
		ID:          s.nextEventID,
		UserID:      in.UserID,
		EventType:   in.EventType,
		PointsDelta: in.PointsDelta,
		OccurredAt:  in.OccurredAt,
		CreatedAt:   in.CreatedAt,
	}
	if ev.OccurredAt.IsZero() {
		ev.OccurredAt = in.CreatedAt
	}
	if in.LoanID != "" {
		loanID := in.LoanID
		ev.LoanID = &loanID
	}
	if in.IdempotencyKey != "" {
		key := in.IdempotencyKey
		ev.IdempotencyKey = &key
		s.eventKeys[key] = ev.ID
	}
	if in.Scope != "" {
		scope := in.Scope
		ev.Scope = &scope
	}
	s.events = append(s.events, ev)
	return &ev, true, nil
}

func (s EventStore) ExistsInWindow(_ context.Context, q trust.DedupQuery) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, ev := range s.events {
		if ev.LoanID == nil || *ev.LoanID != q.LoanID || ev.UserID != q.UserID {
			continue
		}
		if ev.OccurredAt.Before(q.From) || ev.OccurredAt.After(q.To) || (q.UnscopedOnly && ev.Scope != nil) {
			continue
		}
		for _, t := range q.Types {
			if ev.EventType == t {
				return true, nil
			}
		}
	}
	return false, nil
}

func (s EventStore) ExistsForLoan(_ context.Context, loanID string, eventType trust.EventType) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, ev := range s.events {
		if ev.LoanID != nil && *ev.LoanID == loanID && ev.EventType == eventType {
			return true, nil
		}
	}
	return false, nil
}

func (s EventStore) ListByUser(_ context.Context, userID string, limit, offset int32) ([]trust.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []trust.Event{}
	for i := len(s.events) - 1; i >= 0; i-- {
		if s.events[i].UserID == userID {
			out = append(out, s.events[i])
		}
	}
	if int(offset) >= len(out) {
		return []trust.Event{}, nil
	}
	out = out[offset:]
	if int(limit) < len(out) {
		out = out[:limit]
	}
	return out, nil
}

func (s EventStore) ListSince(_ context.Context, lastID int64, limit int32) ([]trust.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []trust.Event{}
	for _, ev := range s.events {
		if ev.ID > lastID {
			out = append(out, ev)
		}
		if int32(len(out)) >= limit {
			break
		}
	}
	return out, nil
}

// vouches

type VouchStore struct{ *Store }

func (s VouchStore) Create(_ context.Context, in vouch.NewVouch) (*trust.Vouch, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, v := range s.vouches {
		if v.VoucherID == in.VoucherID && v.VoucheeID == in.VoucheeID && v.Status == trust.VouchActive {
			return nil, vouch.ErrDuplicate
		}
	}
	v := &trust.Vouch{
		ID:              uuid.NewString(),
		VoucherID:       in.VoucherID,
		VoucheeID:       in.VoucheeID,
		Status:          trust.VouchActive,
		VouchType:       in.VouchType,
		Relationship:    in.Relationship,
		KnownYears:      in.KnownYears,
		Message:         in.Message,
		VouchStrength:   in.VouchStrength,
		TrustScoreBoost: in.VouchStrength,
		CreatedAt:       in.CreatedAt,
		UpdatedAt:       in.CreatedAt,
	}
	s.vouches[v.ID] = v
	cp := *v
	return &cp, nil
}

func (s VouchStore) GetByID(_ context.Context, id string) (*trust.Vouch, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.vouches[id]
	if !ok {
		return nil, trust.ErrNotFound
	}
	cp := *v
	return &cp, nil
}

func (s VouchStore) GetActiveByPair(_ context.Context, voucherID, voucheeID string) (*trust.Vouch, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, v := range s.vouches {
		if v.VoucherID == voucherID && v.VoucheeID == voucheeID && v.Status == trust.VouchActive {
			cp := *v
			return &cp, nil
		}
	}
	return nil, trust.ErrNotFound
}

func (s VouchStore) UpdateMetadata(_ context.Context, id string, in vouch.MetadataUpdate) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.vouches[id]
	if !ok {
		return trust.ErrNotFound
	}
	v.VouchType, v.Relationship, v.KnownYears, v.Message = in.VouchType, in.Relationship, in.KnownYears, in.Message
	v.VouchStrength, v.TrustScoreBoost = in.VouchStrength, in.VouchStrength
	return nil
}

func (s VouchStore) UpdateStrength(_ context.Context, id string, strength int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.FailUpdateStrength[id]; err != nil {
		return err
	}
	v, ok := s.vouches[id]
	if !ok {
		return trust.ErrNotFound
	}
	v.VouchStrength, v.TrustScoreBoost = strength, strength
	s.StrengthWrites[id]++
	return nil
}

func (s VouchStore) Revoke(_ context.Context, id string, at time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.vouches[id]
	if !ok || v.Status != trust.VouchActive {
		return false, nil
	}
	ts := at
	v.Status, v.RevokedAt = trust.VouchRevoked, &ts
	return true, nil
}

func (s VouchStore) CountActiveByVouchee(_ context.Context, voucheeID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, v := range s.vouches {
		if v.VoucheeID == voucheeID && v.Status == trust.VouchActive {
			n++
		}
	}
	return n, nil
}

func (s VouchStore) list(match func(v *trust.Vouch) bool) []trust.Vouch {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []trust.Vouch{}
	for _, v := range s.vouches {
		if match(v) {
			out = append(out, *v)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (s VouchStore) ListActiveByVouchee(_ context.Context, voucheeID string) ([]trust.Vouch, error) {
	return s.list(func(v *trust.Vouch) bool { return v.VoucheeID == voucheeID && v.Status == trust.VouchActive }), nil
}

func (s VouchStore) ListActiveByVoucher(_ context.Context, voucherID string) ([]trust.Vouch, error) {
	return s.list(func(v *trust.Vouch) bool { return v.VoucherID == voucherID && v.Status == trust.VouchActive }), nil
}

func (s VouchStore) ListByVoucher(_ context.Context, voucherID string) ([]trust.Vouch, error) {
	return s.list(func(v *trust.Vouch) bool { return v.VoucherID == voucherID }), nil
}

func (s VouchStore) ListByVouchee(_ context.Context, voucheeID string) ([]trust.Vouch, error) {
	return s.list(func(v *trust.Vouch) bool { return v.VoucheeID == voucheeID }), nil
}

func (s VouchStore) ListActive(_ context.Context, afterID string, limit int32) ([]trust.Vouch, error) {
	out := s.list(func(v *trust.Vouch) bool { return v.Status == trust.VouchActive && v.ID > afterID })
	if int(limit) < len(out) {
		out = out[:limit]
	}
	return out, nil
}

func (s VouchStore) bump(id string, fn func(v *trust.Vouch)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.vouches[id]
	if !ok {
		return trust.ErrNotFound
	}
	fn(v)
	return nil
}

func (s VouchStore) IncrementLoansActive(_ context.Context, id string) error {
	return s.bump(id, func(v *trust.Vouch) { v.LoansActive++ })
}

func (s VouchStore) RecordLoanCompleted(_ context.Context, id string) error {
	return s.bump(id, func(v *trust.Vouch) {
		v.LoansCompleted++
		if v.LoansActive > 0 {
			v.LoansActive--
		}
	})
}

func (s VouchStore) RecordLoanDefaulted(_ context.Context, id string) error {
	return s.bump(id, func(v *trust.Vouch) {
		v.LoansDefaulted++
		if v.LoansActive > 0 {
			v.LoansActive--
		}
	})
}

func (s VouchStore) VoucherOutcomes(_ context.Context, voucherID string) (int, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	completed, defaulted := 0, 0
	for _, v := range s.vouches {
		if v.VoucherID == voucherID {
			completed += v.LoansCompleted
			defaulted += v.LoansDefaulted
		}
	}
	return completed, defaulted, nil
}

// requests

func (s VouchStore) CreateRequest(_ context.Context, in vouch.NewRequest) (*trust.VouchRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r := &trust.VouchRequest{
		ID:          uuid.NewString(),
		RequesterID: in.RequesterID,
		VoucherID:   in.VoucherID,
		Message:     in.Message,
		Status:      trust.RequestPending,
		CreatedAt:   in.CreatedAt,
	}
	s.requests[r.ID] = r
	cp := *r
	return &cp, nil
}

func (s VouchStore) GetRequest(_ context.Context, id string) (*trust.VouchRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.requests[id]
	if !ok {
		return nil, trust.ErrNotFound
	}
	cp := *r
	return &cp, nil
}

func (s VouchStore) GetPendingRequest(_ context.Context, requesterID, voucherID string) (*trust.VouchRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range s.requests {
		if r.RequesterID == requesterID && r.VoucherID == voucherID && r.Status == trust.RequestPending {
			cp := *r
			return &cp, nil
		}
	}
	return nil, trust.ErrNotFound
}

func (s VouchStore) ResolveRequest(_ context.Context, id string, status trust.RequestStatus, at time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.requests[id]
	if !ok || r.Status != trust.RequestPending {
		return false, nil
	}
	ts := at
	r.Status, r.ResolvedAt = status, &ts
	return true, nil
}

func (s VouchStore) ExpirePending(_ context.Context, createdBefore, at time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for _, r := range s.requests {
		if r.Status == trust.RequestPending && r.CreatedAt.Before(createdBefore) {
			ts := at
			r.Status, r.ResolvedAt = trust.RequestExpired, &ts
			n++
		}
	}
	return n, nil
}

// loans

type LoanStore struct{ *Store }

func (s LoanStore) GetByID(_ context.Context, id string) (*loan.Entity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.loans[id]
	if !ok {
		return nil, trust.ErrNotFound
	}
	cp := *l
	return &cp, nil
}

func (s LoanStore) CountUnpaidInstallments(_ context.Context, loanID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, in := range s.installments {
		if in.LoanID == loanID && !in.Paid {
			n++
		}
	}
	return n, nil
}

func (s LoanStore) ListPaidSince(_ context.Context, since time.Time, afterID string, limit int32) ([]loan.Payment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []loan.Payment{}
	for _, in := range s.installments {
		if !in.Paid || in.PaidAt == nil || in.PaidAt.Before(since) || in.ID <= afterID {
			continue
		}
		l, ok := s.loans[in.LoanID]
		if !ok {
			continue
		}
		out = append(out, loan.Payment{
			ID:         in.ID,
			LoanID:     in.LoanID,
			BorrowerID: l.BorrowerID,
			Amount:     in.Amount,
			DueDate:    in.DueDate,
			PaidAt:     *in.PaidAt,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	if int(limit) < len(out) {
		out = out[:limit]
	}
	return out, nil
}

// business trust

type BusinessStore struct{ *Store }

func businessKey(borrowerID, businessID string) string {
	return fmt.Sprintf("%s|%s", borrowerID, businessID)
}

func (s BusinessStore) GetOrCreate(_ context.Context, borrowerID, businessID string) (*businesstrust.Entity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := businessKey(borrowerID, businessID)
	e, ok := s.business[key]
	if !ok {
		e = &businesstrust.Entity{
			BorrowerID:          borrowerID,
			BusinessID:          businessID,
			TotalAmountBorrowed: decimal.Zero,
			TotalAmountRepaid:   decimal.Zero,
			TrustStatus:         businesstrust.StatusNew,
		}
		s.business[key] = e
	}
	cp := *e
	return &cp, nil
}

func (s BusinessStore) with(borrowerID, businessID string, fn func(e *businesstrust.Entity)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.business[businessKey(borrowerID, businessID)]
	if !ok {
		return trust.ErrNotFound
	}
	fn(e)
	return nil
}

func (s BusinessStore) AddBorrowed(_ context.Context, borrowerID, businessID string, amount decimal.Decimal) error {
	return s.with(borrowerID, businessID, func(e *businesstrust.Entity) {
		e.TotalAmountBorrowed = e.TotalAmountBorrowed.Add(amount)
	})
}

func (s BusinessStore) AddRepaid(_ context.Context, borrowerID, businessID string, amount decimal.Decimal) error {
	return s.with(borrowerID, businessID, func(e *businesstrust.Entity) {
		e.TotalAmountRepaid = e.TotalAmountRepaid.Add(amount)
	})
}

func (s BusinessStore) SetProgress(_ context.Context, borrowerID, businessID string, completed int, status businesstrust.Status, graduated bool) error {
	return s.with(borrowerID, businessID, func(e *businesstrust.Entity) {
		e.CompletedLoanCount, e.TrustStatus, e.HasGraduated = completed, status, graduated
	})
}

func (s BusinessStore) MarkDefaulted(_ context.Context, borrowerID, businessID string) error {
	return s.with(borrowerID, businessID, func(e *businesstrust.Entity) {
		e.DefaultedLoanCount++
		e.TrustStatus = businesstrust.StatusSuspended
	})
}

func (s BusinessStore) ListByBorrower(_ context.Context, borrowerID string) ([]businesstrust.Entity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []businesstrust.Entity{}
	for _, e := range s.business {
		if e.BorrowerID == borrowerID {
			out = append(out, *e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].BusinessID < out[j].BusinessID })
	return out, nil
}
