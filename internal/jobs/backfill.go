package jobs

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/feyza/backend/internal/domain/trust"
)

const (
	JobTiers  = "tiers"
	JobVouch  = "vouches"
	JobScores = "scores"
)

type UserLister interface {
	ListIDs(ctx context.Context, afterID string, limit int32) ([]string, error)
	GetByID(ctx context.Context, userID string) (*trust.User, error)
}

type ActiveVouchLister interface {
	ListActive(ctx context.Context, afterID string, limit int32) ([]trust.Vouch, error)
}

type VouchRepricer interface {
	SyncSuccessRate(ctx context.Context, voucher *trust.User) (bool, error)
	RepriceVouch(ctx context.Context, v trust.Vouch, voucher *trust.User) (bool, error)
	Project(ctx context.Context, v trust.Vouch) error
}

// BackfillResult is the aggregate reported by the admin surface.
type BackfillResult struct {
	TiersRecalculated       int      `json:"tiersRecalculated"`
	VouchesRecalculated     int      `json:"vouchesRecalculated"`
	TrustScoresRecalculated int      `json:"trustScoresRecalculated"`
	Errors                  []string `json:"errors"`
}

// BackfillObserver receives the per-job error count after each job.
type BackfillObserver func(job string, errors int)

// Backfiller re-derives tiers, vouch strengths and scores from source rows.
// Every step is convergent, so a run can be repeated or interrupted; per-row
// failures are collected and never stop the pass.
type Backfiller struct {
	users     UserLister
	vouches   ActiveVouchLister
	repricer  VouchRepricer
	tiers     TierRecalculator
	scores    ScoreRecalculator
	batchSize int32
	observer  BackfillObserver
	logger    *slog.Logger
}

func NewBackfiller(users UserLister, vouches ActiveVouchLister, repricer VouchRepricer, tiers TierRecalculator, scores ScoreRecalculator, batchSize int32, logger *slog.Logger) *Backfiller {
	if batchSize <= 0 {
		batchSize = 200
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Backfiller{
		users:     users,
		vouches:   vouches,
		repricer:  repricer,
		tiers:     tiers,
		scores:    scores,
		batchSize: batchSize,
		logger:    logger,
	}
}

func (b *Backfiller) WithObserver(o BackfillObserver) *Backfiller {
	b.observer = o
	return b
}

// ParseJobs reads a comma separated job list; empty means all, in dependency
// order tiers, vouches, scores.
func ParseJobs(raw string) ([]string, error) {
	if strings.TrimSpace(raw) == "" {
		return []string{JobTiers, JobVouch, JobScores}, nil
	}
	want := map[string]bool{}
	for _, part := range strings.Split(raw, ",") {
		name := strings.ToLower(strings.TrimSpace(part))
		switch name {
		case JobTiers, JobVouch, JobScores:
			want[name] = true
		case "":
		default:
			return nil, trust.NewValidationError("jobs", fmt.Sprintf("unknown backfill job %q", name))
		}
	}
	out := []string{}
	for _, name := range []string{JobTiers, JobVouch, JobScores} {
		if want[name] {
			out = append(out, name)
		}
	}
	return out, nil
}

func (b *Backfiller) Run(ctx context.Context, jobs []string) (*BackfillResult, error) {
	res := &BackfillResult{}
	var errs trust.ErrorList
	for _, job := range jobs {
		before := len(errs)
		var err error
		switch job {
		case JobTiers:
			res.TiersRecalculated, err = b.backfillTiers(ctx, &errs)
		case JobVouch:
			res.VouchesRecalculated, err = b.backfillVouches(ctx, &errs)
		case JobScores:
			res.TrustScoresRecalculated, err = b.backfillScores(ctx, &errs)
		default:
			return nil, trust.NewValidationError("jobs", fmt.Sprintf("unknown backfill job %q", job))
		}
		if err != nil {
			errs.Add(job, err)
		}
		if b.observer != nil {
			b.observer(job, len(errs)-before)
		}
		if ctx.Err() != nil {
			break
		}
	}
	res.Errors = errs.Strings()
	b.logger.Info("backfill finished", "jobs", strings.Join(jobs, ","), "tiers", res.TiersRecalculated,
		"vouches", res.VouchesRecalculated, "scores", res.TrustScoresRecalculated, "errors", len(res.Errors))
	return res, nil
}

// eachUser pages user ids and stops only on a listing failure or cancellation.
func (b *Backfiller) eachUser(ctx context.Context, fn func(userID string)) error {
	afterID := ""
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		ids, err := b.users.ListIDs(ctx, afterID, b.batchSize)
		if err != nil {
			return fmt.Errorf("list users after %q: %w", afterID, err)
		}
		for _, id := range ids {
			fn(id)
			afterID = id
		}
		if int32(len(ids)) < b.batchSize {
			return nil
		}
	}
}

func (b *Backfiller) backfillTiers(ctx context.Context, errs *trust.ErrorList) (int, error) {
	n := 0
	err := b.eachUser(ctx, func(userID string) {
		upd, err := b.tiers.CalculateSimpleTrustTier(ctx, userID)
		if err != nil {
			errs.Add("tier "+userID, err)
			return
		}
		if upd.CascadeError != "" {
			errs.Add("cascade "+userID, fmt.Errorf("%s", upd.CascadeError))
		}
		n++
	})
	return n, err
}

// backfillVouches reprices every active vouch against the voucher's current
// profile, writing only moved strengths, and re-mirrors the edge into the
// graph store. Each voucher's success rate is re-derived from vouch outcomes
// first. The count covers every vouch checked without error.
func (b *Backfiller) backfillVouches(ctx context.Context, errs *trust.ErrorList) (int, error) {
	n := 0
	voucher := map[string]*trust.User{}
	afterID := ""
	for {
		if err := ctx.Err(); err != nil {
			return n, err
		}
		page, err := b.vouches.ListActive(ctx, afterID, b.batchSize)
		if err != nil {
			return n, fmt.Errorf("list vouches after %q: %w", afterID, err)
		}
		for _, v := range page {
			afterID = v.ID
			u, ok := voucher[v.VoucherID]
			if !ok {
				u, err = b.users.GetByID(ctx, v.VoucherID)
				if err != nil {
					errs.Add("voucher "+v.VoucherID, err)
					continue
				}
				// On failure the stored rate is kept; a later run converges.
				if synced, err := b.repricer.SyncSuccessRate(ctx, u); err != nil {
					errs.Add("success rate "+v.VoucherID, err)
				} else if synced {
					b.logger.Info("voucher success rate repaired", "voucher_id", u.ID, "rate", u.VouchingSuccessRate)
				}
				voucher[v.VoucherID] = u
			}
			changed, err := b.repricer.RepriceVouch(ctx, v, u)
			if err != nil {
				errs.Add("vouch "+v.ID, err)
				continue
			}
			n++
			if changed {
				v.VouchStrength = trust.ComputeVouchStrength(u.TrustTier, v.Relationship, v.KnownYears, v.VouchType, u.VouchingSuccessRate)
				v.TrustScoreBoost = v.VouchStrength
			}
			if err := b.repricer.Project(ctx, v); err != nil {
				b.logger.Warn("vouch graph projection failed", "vouch_id", v.ID, "err", err)
			}
		}
		if int32(len(page)) < b.batchSize {
			return n, nil
		}
	}
}

func (b *Backfiller) backfillScores(ctx context.Context, errs *trust.ErrorList) (int, error) {
	n := 0
	err := b.eachUser(ctx, func(userID string) {
		if _, err := b.scores.Recalculate(ctx, userID); err != nil {
			errs.Add("score "+userID, err)
			return
		}
		n++
	})
	return n, err
}
