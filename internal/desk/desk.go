// Package desk ties the store to the closing-cost calculator, the milestone
// deriver and the notice classifier. Commands and HTTP handlers go through
// a Desk rather than calling the engine packages directly.
package desk

import (
	"context"
	"errors"
	"sync"
	"time"

	"cloud.google.com/go/civil"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/dealdesk/internal/closing"
	"github.com/sells-group/dealdesk/internal/milestone"
	"github.com/sells-group/dealdesk/internal/model"
	"github.com/sells-group/dealdesk/internal/notice"
	"github.com/sells-group/dealdesk/internal/resilience"
	"github.com/sells-group/dealdesk/internal/store"
)

// ErrUnknownMilestone is returned for a milestone type outside the schedule.
var ErrUnknownMilestone = errors.New("desk: unknown milestone type")

// Clock supplies the current calendar date.
type Clock func() civil.Date

// SystemClock reads the wall clock in loc.
func SystemClock(loc *time.Location) Clock {
	return func() civil.Date { return civil.DateOf(time.Now().In(loc)) }
}

// FixedClock always returns d.
func FixedClock(d civil.Date) Clock {
	return func() civil.Date { return d }
}

// Option configures a Desk.
type Option func(*Desk)

// WithClock sets the source of "today" for notices.
func WithClock(c Clock) Option { return func(d *Desk) { d.clock = c } }

// WithConcurrency caps parallel store reads when gathering notices.
func WithConcurrency(n int) Option {
	return func(d *Desk) {
		if n > 0 {
			d.concurrency = n
		}
	}
}

// WithRetry sets the retry policy for store reads.
func WithRetry(cfg resilience.RetryConfig) Option { return func(d *Desk) { d.retry = cfg } }

// Desk is the deal service.
type Desk struct {
	store       store.Store
	calc        *closing.Calculator
	clock       Clock
	concurrency int
	retry       resilience.RetryConfig
}

// New builds a Desk over st. It uses the local wall clock and the default
// retry policy unless overridden.
func New(st store.Store, calc *closing.Calculator, opts ...Option) *Desk {
	d := &Desk{
		store:       st,
		calc:        calc,
		clock:       SystemClock(time.Local),
		concurrency: 8,
		retry:       resilience.DefaultRetryConfig(),
	}
	for _, o := range opts {
		o(d)
	}
	d.retry.OnRetry = resilience.RetryLogger("desk.store_read")
	return d
}

// Ping checks the store.
func (d *Desk) Ping(ctx context.Context) error {
	return eris.Wrap(d.store.Ping(ctx), "desk: ping store")
}

// Today returns the date notices are classified against.
func (d *Desk) Today() civil.Date { return d.clock() }

// At returns a copy of d whose clock is pinned to today.
func (d *Desk) At(today civil.Date) *Desk {
	c := *d
	c.clock = FixedClock(today)
	return &c
}

// SaveDeal creates or replaces a deal.
func (d *Desk) SaveDeal(ctx context.Context, deal model.Deal) (*model.Deal, error) {
	saved, err := d.store.SaveDeal(ctx, deal)
	if err != nil {
		return nil, eris.Wrap(err, "desk: save deal")
	}
	zap.L().Info("deal saved", zap.String("deal_id", saved.ID), zap.String("name", saved.Name))
	return saved, nil
}

// Deal loads a stored deal.
func (d *Desk) Deal(ctx context.Context, id string) (*model.Deal, error) {
	deal, err := resilience.DoVal(ctx, d.retry, func(ctx context.Context) (*model.Deal, error) {
		return d.store.GetDeal(ctx, id)
	})
	return deal, eris.Wrapf(err, "desk: get deal %s", id)
}

// Quote prices a deal that has not been saved.
func (d *Desk) Quote(deal model.Deal) model.Breakdown {
	return d.calc.Compute(deal)
}

// Estimate returns the closing-cost breakdown of a stored deal. A cached
// breakdown is returned only when refresh is unset and it was priced with
// the current fee schedule; otherwise a fresh one is computed and cached.
func (d *Desk) Estimate(ctx context.Context, id string, refresh bool) (model.Breakdown, error) {
	if !refresh {
		b, err := d.store.GetBreakdown(ctx, id)
		switch {
		case err == nil && b.FeeSchedule == d.calc.Fingerprint():
			return *b, nil
		case err != nil && !errors.Is(err, store.ErrNotFound):
			return model.Breakdown{}, eris.Wrapf(err, "desk: estimate %s", id)
		}
	}

	deal, err := d.Deal(ctx, id)
	if err != nil {
		return model.Breakdown{}, err
	}
	b := d.calc.Compute(*deal)
	if err := d.store.SaveBreakdown(ctx, id, b); err != nil {
		zap.L().Warn("desk: cache breakdown failed", zap.String("deal_id", id), zap.Error(err))
	}
	return b, nil
}

// Milestones derives the contract deadlines of a stored deal.
func (d *Desk) Milestones(ctx context.Context, id string) ([]model.Milestone, error) {
	sched, err := resilience.DoVal(ctx, d.retry, func(ctx context.Context) (*model.Schedule, error) {
		return d.store.GetSchedule(ctx, id)
	})
	if err != nil {
		return nil, eris.Wrapf(err, "desk: milestones %s", id)
	}
	return milestone.DeriveSchedule(*sched), nil
}

// TimelineEntry is a derived milestone with its display label and
// completion flag.
type TimelineEntry struct {
	model.Milestone
	DueLabel  string `json:"due_label"`
	Completed bool   `json:"completed"`
}

// Timeline is the deadline view of one deal.
type Timeline struct {
	DealID           string          `json:"deal_id"`
	Name             string          `json:"name,omitempty"`
	InspectionPeriod string          `json:"inspection_period"`
	RemedyPeriod     string          `json:"remedy_period"`
	Milestones       []TimelineEntry `json:"milestones"`
}

// Timeline derives a deal's milestones and joins them with their stored
// completion flags.
func (d *Desk) Timeline(ctx context.Context, id string) (Timeline, error) {
	deal, err := d.Deal(ctx, id)
	if err != nil {
		return Timeline{}, err
	}
	statuses, err := d.store.ListStatuses(ctx, []string{id})
	if err != nil {
		return Timeline{}, eris.Wrapf(err, "desk: timeline statuses %s", id)
	}
	done := model.NewStatusSet(statuses)

	ms := milestone.DeriveSchedule(deal.Schedule())
	tl := Timeline{
		DealID:           id,
		Name:             deal.Name,
		InspectionPeriod: milestone.PeriodOf(int(deal.InspectionDays)).Display(deal.InContractDate),
		RemedyPeriod:     milestone.RemedyPeriod(*deal, nil),
		Milestones:       make([]TimelineEntry, len(ms)),
	}
	for i, m := range ms {
		tl.Milestones[i] = TimelineEntry{
			Milestone: m,
			DueLabel:  m.DueLabel(),
			Completed: done.Completed(id, m.Type),
		}
	}
	return tl, nil
}

// Notices classifies the outstanding milestones of the given deals. With no
// ids every stored deal is included. Ids that do not exist are skipped.
func (d *Desk) Notices(ctx context.Context, ids []string) (notice.Result, error) {
	if len(ids) == 0 {
		all, err := d.store.ListDealIDs(ctx)
		if err != nil {
			return notice.Result{}, eris.Wrap(err, "desk: list deals")
		}
		ids = all
	}
	ids = uniqueIDs(ids)

	props := make([]notice.PropertyMilestones, len(ids))
	found := make([]bool, len(ids))
	var statuses []model.NoticeStatus

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(d.concurrency)

	g.Go(func() error {
		var err error
		statuses, err = resilience.DoVal(gctx, d.retry, func(ctx context.Context) ([]model.NoticeStatus, error) {
			return d.store.ListStatuses(ctx, ids)
		})
		return eris.Wrap(err, "desk: list notice statuses")
	})

	var mu sync.Mutex
	var missing []string
	for i, id := range ids {
		i, id := i, id
		g.Go(func() error {
			sched, err := resilience.DoVal(gctx, d.retry, func(ctx context.Context) (*model.Schedule, error) {
				return d.store.GetSchedule(ctx, id)
			})
			if errors.Is(err, store.ErrNotFound) {
				mu.Lock()
				missing = append(missing, id)
				mu.Unlock()
				return nil
			}
			if err != nil {
				return eris.Wrapf(err, "desk: get schedule %s", id)
			}
			props[i] = notice.PropertyMilestones{
				PropertyID: sched.ID,
				Name:       sched.Name,
				Address:    sched.Address,
				Milestones: milestone.DeriveSchedule(*sched),
			}
			found[i] = true
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return notice.Result{}, err
	}
	if len(missing) > 0 {
		zap.L().Warn("desk: notices skipped unknown deals", zap.Strings("deal_ids", missing))
	}

	kept := props[:0]
	for i, p := range props {
		if found[i] {
			kept = append(kept, p)
		}
	}

	today := d.clock()
	res := notice.Classify(kept, model.NewStatusSet(statuses), today)
	zap.L().Debug("desk: notices classified",
		zap.String("today", today.String()),
		zap.Int("deals", len(kept)),
		zap.Int("overdue", len(res.Overdue)),
		zap.Int("upcoming", len(res.Upcoming)),
	)
	return res, nil
}

// SetCompleted marks one milestone of a deal done or not done.
func (d *Desk) SetCompleted(ctx context.Context, id string, t model.MilestoneType, done bool) error {
	if !t.Valid() {
		return eris.Wrapf(ErrUnknownMilestone, "desk: %q", t)
	}
	if _, err := d.Deal(ctx, id); err != nil {
		return err
	}
	st := model.NoticeStatus{
		NoticeKey: model.NoticeKey{PropertyID: id, Type: t},
		Completed: done,
		UpdatedAt: time.Now().UTC(),
	}
	if err := d.store.UpsertNoticeStatus(ctx, st); err != nil {
		return eris.Wrapf(err, "desk: set %s/%s", id, t)
	}
	zap.L().Info("milestone status updated",
		zap.String("deal_id", id),
		zap.String("milestone", string(t)),
		zap.Bool("completed", done),
	)
	return nil
}

// CompleteAll marks every derived milestone of a deal done and returns how
// many were written.
func (d *Desk) CompleteAll(ctx context.Context, id string) (int, error) {
	ms, err := d.Milestones(ctx, id)
	if err != nil {
		return 0, err
	}
	now := time.Now().UTC()
	statuses := make([]model.NoticeStatus, len(ms))
	for i, m := range ms {
		statuses[i] = model.NoticeStatus{
			NoticeKey: model.NoticeKey{PropertyID: id, Type: m.Type},
			Completed: true,
			UpdatedAt: now,
		}
	}
	if err := d.store.UpsertNoticeStatuses(ctx, statuses); err != nil {
		return 0, eris.Wrapf(err, "desk: complete all %s", id)
	}
	zap.L().Info("milestones completed", zap.String("deal_id", id), zap.Int("count", len(statuses)))
	return len(statuses), nil
}

// uniqueIDs drops repeated and blank ids, keeping first-seen order.
func uniqueIDs(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
