// Package feed keeps the dashboard's live list of recent reports.
package feed

import (
	"context"
	"fmt"
	"time"

	"github.com/CrowdShield/CS-Backend/internal/reports"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// DefaultWindow is how far back the live list reaches.
const DefaultWindow = 24 * time.Hour

type snapshotReq struct {
	limit int
	reply chan []reports.Report
}

// Live is the in-memory report list. One goroutine (Run) owns the list; every
// other access is a message to it.
type Live struct {
	window time.Duration
	now    func() time.Time

	snapshots chan snapshotReq
	prunes    chan chan int
	merges    chan []reports.Report
	done      chan struct{}
}

type Option func(*Live)

func WithClock(now func() time.Time) Option {
	return func(l *Live) { l.now = now }
}

func New(window time.Duration, opts ...Option) *Live {
	if window <= 0 {
		window = DefaultWindow
	}
	l := &Live{
		window:    window,
		now:       time.Now,
		snapshots: make(chan snapshotReq),
		prunes:    make(chan chan int),
		merges:    make(chan []reports.Report),
		done:      make(chan struct{}),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Load fetches the initial list: reports from the last window, newest first.
func Load(ctx context.Context, store reports.Store, window time.Duration, now time.Time) ([]reports.Report, error) {
	rs, err := store.Query(ctx, now.Add(-window))
	if err != nil {
		return nil, fmt.Errorf("loading live feed: %w", err)
	}
	return rs, nil
}

// Run owns the list until ctx is done. Inserts already present by id are
// dropped; updates replace the stored copy.
func (l *Live) Run(ctx context.Context, initial []reports.Report, events <-chan reports.Event) {
	defer close(l.done)

	list := newList()
	for _, r := range initial {
		list.add(r)
	}

	for {
		select {
		case <-ctx.Done():
			return

		case ev, ok := <-events:
			if !ok {
				events = nil
				continue
			}
			switch ev.Type {
			case reports.EventInsert:
				if !list.add(ev.Report) {
					zap.L().Debug("duplicate report event", zap.String("report_id", ev.Report.ID))
				}
			case reports.EventUpdate:
				list.replace(ev.Report)
			}

		case rs := <-l.merges:
			for _, r := range rs {
				list.replace(r)
			}

		case req := <-l.snapshots:
			req.reply <- list.newest(req.limit)

		case reply := <-l.prunes:
			reply <- list.pruneBefore(l.now().Add(-l.window))
		}
	}
}

// Snapshot returns up to limit reports, newest first. limit <= 0 returns all.
func (l *Live) Snapshot(ctx context.Context, limit int) []reports.Report {
	req := snapshotReq{limit: limit, reply: make(chan []reports.Report, 1)}
	select {
	case l.snapshots <- req:
		return <-req.reply
	case <-ctx.Done():
		return nil
	case <-l.done:
		return nil
	}
}

// Prune drops reports older than the window and returns how many went.
func (l *Live) Prune(ctx context.Context) int {
	reply := make(chan int, 1)
	select {
	case l.prunes <- reply:
		return <-reply
	case <-ctx.Done():
		return 0
	case <-l.done:
		return 0
	}
}

// Merge reconciles the list with rs, for example after a realtime gap.
func (l *Live) Merge(ctx context.Context, rs []reports.Report) {
	select {
	case l.merges <- rs:
	case <-ctx.Done():
	case <-l.done:
	}
}

// SchedulePrune registers a prune job on c.
func (l *Live) SchedulePrune(ctx context.Context, c *cron.Cron, spec string) (cron.EntryID, error) {
	return c.AddFunc(spec, func() {
		if n := l.Prune(ctx); n > 0 {
			zap.L().Info("pruned live feed", zap.Int("removed", n))
		}
	})
}
