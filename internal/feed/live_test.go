package feed

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/CrowdShield/CS-Backend/internal/reports"
	"github.com/robfig/cron/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

var base = time.Date(2025, 6, 1, 20, 0, 0, 0, time.UTC)

func report(id string, age time.Duration) reports.Report {
	return reports.Report{
		ID:        id,
		Zone:      reports.ZoneGateA,
		Category:  reports.CategoryOther,
		DeviceID:  "dev-" + id,
		CreatedAt: base.Add(-age),
	}
}

func ids(rs []reports.Report) []string {
	out := make([]string, len(rs))
	for i, r := range rs {
		out[i] = r.ID
	}
	return out
}

type runningFeed struct {
	live   *Live
	events chan reports.Event
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func start(t *testing.T, initial []reports.Report, now func() time.Time) *runningFeed {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	f := &runningFeed{
		live:   New(24*time.Hour, WithClock(now)),
		events: make(chan reports.Event),
		cancel: cancel,
	}
	f.wg.Add(1)
	go func() {
		defer f.wg.Done()
		f.live.Run(ctx, initial, f.events)
	}()
	t.Cleanup(func() {
		cancel()
		f.wg.Wait()
	})
	return f
}

func TestLive(t *testing.T) {
	defer goleak.VerifyNone(t)
	ctx := context.Background()
	now := func() time.Time { return base }

	t.Run("initial list is newest first", func(t *testing.T) {
		f := start(t, []reports.Report{report("old", time.Hour), report("new", time.Minute)}, now)
		assert.Equal(t, []string{"new", "old"}, ids(f.live.Snapshot(ctx, 0)))
	})

	t.Run("duplicate inserts are dropped", func(t *testing.T) {
		f := start(t, []reports.Report{report("a", time.Hour)}, now)

		f.events <- reports.Event{Type: reports.EventInsert, Report: report("b", time.Minute)}
		f.events <- reports.Event{Type: reports.EventInsert, Report: report("b", time.Minute)}
		dup := report("a", time.Hour)
		dup.Zone = reports.ZoneVIP
		f.events <- reports.Event{Type: reports.EventInsert, Report: dup}

		snap := f.live.Snapshot(ctx, 0)
		assert.Equal(t, []string{"b", "a"}, ids(snap))
		assert.Equal(t, reports.ZoneGateA, snap[1].Zone)
	})

	t.Run("updates replace the stored copy", func(t *testing.T) {
		f := start(t, []reports.Report{report("a", time.Hour), report("b", 2*time.Hour)}, now)

		edited := report("b", 2*time.Hour)
		text := "corrected"
		edited.Text = &text
		edited.CreatedAt = base.Add(-time.Minute)
		f.events <- reports.Event{Type: reports.EventUpdate, Report: edited}

		snap := f.live.Snapshot(ctx, 0)
		require.Len(t, snap, 2)
		assert.Equal(t, "b", snap[0].ID)
		assert.Equal(t, "corrected", *snap[0].Text)
	})

	t.Run("limit", func(t *testing.T) {
		f := start(t, []reports.Report{report("a", 3*time.Minute), report("b", 2*time.Minute), report("c", time.Minute)}, now)
		assert.Equal(t, []string{"c", "b"}, ids(f.live.Snapshot(ctx, 2)))
	})

	t.Run("prune drops entries older than the window", func(t *testing.T) {
		f := start(t, []reports.Report{report("fresh", 23*time.Hour), report("stale", 25*time.Hour)}, now)

		assert.Equal(t, 1, f.live.Prune(ctx))
		assert.Equal(t, []string{"fresh"}, ids(f.live.Snapshot(ctx, 0)))
	})

	t.Run("merge adds missed reports", func(t *testing.T) {
		f := start(t, []reports.Report{report("a", time.Hour)}, now)

		f.live.Merge(ctx, []reports.Report{report("a", time.Hour), report("missed", time.Minute)})
		assert.Equal(t, []string{"missed", "a"}, ids(f.live.Snapshot(ctx, 0)))
	})

	t.Run("snapshot after shutdown", func(t *testing.T) {
		f := start(t, nil, now)
		f.cancel()
		f.wg.Wait()

		assert.Nil(t, f.live.Snapshot(ctx, 0))
		assert.Zero(t, f.live.Prune(ctx))
	})

	t.Run("closed event channel keeps serving snapshots", func(t *testing.T) {
		f := start(t, []reports.Report{report("a", time.Minute)}, now)
		close(f.events)

		assert.Equal(t, []string{"a"}, ids(f.live.Snapshot(ctx, 0)))
	})
}

func TestLoad(t *testing.T) {
	store := reports.NewMemoryStore(nil).WithClock(func() time.Time { return base.Add(-30 * time.Hour) })
	_, err := store.Insert(context.Background(), reports.Fields{Zone: reports.ZoneVIP, Category: reports.CategoryFire, DeviceID: "d"})
	require.NoError(t, err)

	store.WithClock(func() time.Time { return base.Add(-time.Hour) })
	recent, err := store.Insert(context.Background(), reports.Fields{Zone: reports.ZoneVIP, Category: reports.CategoryFire, DeviceID: "d"})
	require.NoError(t, err)

	got, err := Load(context.Background(), store, 24*time.Hour, base)
	require.NoError(t, err)
	assert.Equal(t, []string{recent.ID}, ids(got))
}

func TestSchedulePrune(t *testing.T) {
	// registered first so it runs after the feed is stopped
	t.Cleanup(func() { goleak.VerifyNone(t) })

	f := start(t, []reports.Report{report("stale", 25*time.Hour)}, func() time.Time { return base })

	c := cron.New()
	_, err := f.live.SchedulePrune(context.Background(), c, "@every 1m")
	require.NoError(t, err)

	_, err = f.live.SchedulePrune(context.Background(), c, "not a schedule")
	assert.Error(t, err)

	// run the registered job directly rather than waiting a minute
	entries := c.Entries()
	require.Len(t, entries, 1)
	entries[0].Job.Run()

	assert.Empty(t, f.live.Snapshot(context.Background(), 0))
}
