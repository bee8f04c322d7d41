package reports

import (
	"context"
	"sync"

	"go.uber.org/zap"
)

const subscriberBuffer = 256

// Broker fans realtime events out to subscribers. Delivery is best effort
// per subscriber; a subscriber whose buffer is full misses the event and
// must reconcile with Query.
type Broker struct {
	mu   sync.RWMutex
	subs map[chan Event]struct{}
}

func NewBroker() *Broker {
	return &Broker{subs: make(map[chan Event]struct{})}
}

// Subscribe returns a channel of events that is closed once ctx is done.
func (b *Broker) Subscribe(ctx context.Context) <-chan Event {
	ch := make(chan Event, subscriberBuffer)

	b.mu.Lock()
	b.subs[ch] = struct{}{}
	b.mu.Unlock()

	go func() {
		<-ctx.Done()
		b.mu.Lock()
		delete(b.subs, ch)
		close(ch)
		b.mu.Unlock()
	}()
	return ch
}

func (b *Broker) Publish(ev Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for ch := range b.subs {
		select {
		case ch <- ev:
		default:
			zap.L().Warn("dropping realtime event for slow subscriber",
				zap.String("report_id", ev.Report.ID),
				zap.String("type", string(ev.Type)),
			)
		}
	}
}
