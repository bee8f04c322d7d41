package ratelimit

import (
	"context"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/CrowdShield/CS-Backend/internal/localstate"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

func newLimiter(t *testing.T) (*Submission, *fakeClock, *localstate.Memory) {
	t.Helper()
	clock := &fakeClock{t: time.Date(2025, 6, 1, 20, 0, 0, 0, time.UTC)}
	store := localstate.NewMemory()
	return NewSubmission(store, WithClock(clock.Now)), clock, store
}

func TestSubmission(t *testing.T) {
	t.Run("fresh device can submit", func(t *testing.T) {
		s, _, _ := newLimiter(t)
		assert.True(t, s.CanSubmit())
		assert.Equal(t, 0, s.SecondsUntilNextAllowed())
	})

	t.Run("window after a submission", func(t *testing.T) {
		s, clock, _ := newLimiter(t)
		s.MarkSubmitted()

		assert.False(t, s.CanSubmit())
		assert.Equal(t, 60, s.SecondsUntilNextAllowed())

		clock.Advance(30 * time.Second)
		assert.False(t, s.CanSubmit())
		assert.Equal(t, 30, s.SecondsUntilNextAllowed())

		clock.Advance(29*time.Second + 500*time.Millisecond)
		assert.False(t, s.CanSubmit())
		assert.Equal(t, 1, s.SecondsUntilNextAllowed())

		clock.Advance(500 * time.Millisecond)
		assert.True(t, s.CanSubmit())
		assert.Equal(t, 0, s.SecondsUntilNextAllowed())
	})

	t.Run("remaining seconds never increase while waiting", func(t *testing.T) {
		s, clock, _ := newLimiter(t)
		s.MarkSubmitted()

		prev := s.SecondsUntilNextAllowed()
		for i := 0; i < 130; i++ {
			clock.Advance(500 * time.Millisecond)
			cur := s.SecondsUntilNextAllowed()
			assert.LessOrEqual(t, cur, prev)
			assert.GreaterOrEqual(t, cur, 0)
			assert.Equal(t, cur == 0, s.CanSubmit())
			prev = cur
		}
	})

	t.Run("stored value is epoch milliseconds", func(t *testing.T) {
		s, clock, store := newLimiter(t)
		s.MarkSubmitted()

		raw, ok := store.Get(StateKey)
		require.True(t, ok)
		assert.Equal(t, strconv.FormatInt(clock.Now().UnixMilli(), 10), raw)
	})

	t.Run("unparsable value is treated as never", func(t *testing.T) {
		s, _, store := newLimiter(t)
		require.NoError(t, store.Set(StateKey, "yesterday"))

		assert.True(t, s.CanSubmit())
		assert.Equal(t, 0, s.SecondsUntilNextAllowed())
	})

	t.Run("shared state across limiter instances", func(t *testing.T) {
		s, clock, store := newLimiter(t)
		s.MarkSubmitted()

		other := NewSubmission(store, WithClock(clock.Now))
		assert.False(t, other.CanSubmit())
	})
}

func TestCountdown(t *testing.T) {
	defer goleak.VerifyNone(t)

	t.Run("terminates at zero", func(t *testing.T) {
		s, clock, _ := newLimiter(t)
		s.MarkSubmitted()
		clock.Advance(57 * time.Second)

		ch := s.Countdown(context.Background(), time.Millisecond)

		// a tick may land before the clock moves, so collapse repeats
		var got []int
		for v := range ch {
			if len(got) == 0 || got[len(got)-1] != v {
				got = append(got, v)
			}
			clock.Advance(time.Second)
		}
		assert.Equal(t, []int{3, 2, 1, 0}, got)
	})

	t.Run("emits zero immediately when allowed", func(t *testing.T) {
		s, _, _ := newLimiter(t)

		ch := s.Countdown(context.Background(), time.Hour)
		assert.Equal(t, 0, <-ch)
		_, open := <-ch
		assert.False(t, open)
	})

	t.Run("stops on cancel", func(t *testing.T) {
		s, _, _ := newLimiter(t)
		s.MarkSubmitted()

		ctx, cancel := context.WithCancel(context.Background())
		ch := s.Countdown(ctx, time.Hour)
		assert.Equal(t, 60, <-ch)
		cancel()

		for range ch {
		}
	})
}
