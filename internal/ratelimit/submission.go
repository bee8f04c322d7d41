// Package ratelimit implements the client-side cooldown between incident
// reports from one device. It is advisory; the server does not enforce it.
package ratelimit

import (
	"context"
	"strconv"
	"time"

	"github.com/CrowdShield/CS-Backend/internal/localstate"
	"go.uber.org/zap"
)

// StateKey holds the last accepted submission time as epoch milliseconds.
const StateKey = "crowdshield_last_report"

// Window is the minimum spacing between submissions.
const Window = 60 * time.Second

// Submission tracks the last accepted submission for this device.
type Submission struct {
	store  localstate.Store
	window time.Duration
	now    func() time.Time
}

type Option func(*Submission)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Submission) { s.now = now }
}

// WithWindow overrides the default cooldown.
func WithWindow(d time.Duration) Option {
	return func(s *Submission) { s.window = d }
}

func NewSubmission(store localstate.Store, opts ...Option) *Submission {
	s := &Submission{store: store, window: Window, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Submission) lastSubmitted() (time.Time, bool) {
	raw, ok := s.store.Get(StateKey)
	if !ok {
		return time.Time{}, false
	}
	ms, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return time.Time{}, false
	}
	return time.UnixMilli(ms), true
}

// CanSubmit reports whether a new submission is allowed now.
func (s *Submission) CanSubmit() bool {
	last, ok := s.lastSubmitted()
	if !ok {
		return true
	}
	return s.now().Sub(last) >= s.window
}

// SecondsUntilNextAllowed is the whole-second wait remaining, rounded up.
func (s *Submission) SecondsUntilNextAllowed() int {
	last, ok := s.lastSubmitted()
	if !ok {
		return 0
	}
	remaining := s.window - s.now().Sub(last)
	if remaining <= 0 {
		return 0
	}
	return int((remaining + time.Second - 1) / time.Second)
}

// MarkSubmitted records now as the last accepted submission. Call it only
// after the store has accepted the report.
func (s *Submission) MarkSubmitted() {
	ms := strconv.FormatInt(s.now().UnixMilli(), 10)
	if err := s.store.Set(StateKey, ms); err != nil {
		zap.L().Warn("could not persist last submission time", zap.Error(err))
	}
}

// Countdown emits the remaining seconds on every tick and closes the channel
// after sending 0 or when ctx is done.
func (s *Submission) Countdown(ctx context.Context, interval time.Duration) <-chan int {
	out := make(chan int)
	go func() {
		defer close(out)

		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			remaining := s.SecondsUntilNextAllowed()
			select {
			case out <- remaining:
			case <-ctx.Done():
				return
			}
			if remaining == 0 {
				return
			}
			select {
			case <-ticker.C:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out
}
