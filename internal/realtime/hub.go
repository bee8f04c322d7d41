// Package realtime pushes report changes to connected organizer dashboards
// over websockets.
package realtime

import (
	"context"
	"encoding/json"

	"github.com/CrowdShield/CS-Backend/internal/reports"
	"go.uber.org/zap"
)

// Hub owns the set of connected dashboards and broadcasts report events to
// them. All client bookkeeping happens on the Run goroutine.
type Hub struct {
	clients    map[*Client]struct{}
	register   chan *Client
	unregister chan *Client
	count      chan chan int
	done       chan struct{}
}

func NewHub() *Hub {
	return &Hub{
		clients:    make(map[*Client]struct{}),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		count:      make(chan chan int),
		done:       make(chan struct{}),
	}
}

// Run broadcasts events until ctx is done or events is closed, then
// disconnects every client.
func (h *Hub) Run(ctx context.Context, events <-chan reports.Event) {
	defer close(h.done)
	defer h.closeAll()

	for {
		select {
		case <-ctx.Done():
			return

		case c := <-h.register:
			h.clients[c] = struct{}{}
			zap.L().Info("dashboard connected", zap.String("client", c.id), zap.Int("clients", len(h.clients)))

		case c := <-h.unregister:
			if _, ok := h.clients[c]; ok {
				delete(h.clients, c)
				close(c.send)
				zap.L().Info("dashboard disconnected", zap.String("client", c.id))
			}

		case reply := <-h.count:
			reply <- len(h.clients)

		case ev, ok := <-events:
			if !ok {
				return
			}
			h.broadcast(ev)
		}
	}
}

func (h *Hub) broadcast(ev reports.Event) {
	msg, err := json.Marshal(ev)
	if err != nil {
		zap.L().Error("encoding report event", zap.Error(err))
		return
	}

	for c := range h.clients {
		select {
		case c.send <- msg:
		default:
			// buffer full; drop the client, it will reload on reconnect
			delete(h.clients, c)
			close(c.send)
			zap.L().Warn("dropping slow dashboard", zap.String("client", c.id))
		}
	}
}

func (h *Hub) closeAll() {
	for c := range h.clients {
		delete(h.clients, c)
		close(c.send)
	}
}

// Clients returns the number of connected dashboards.
func (h *Hub) Clients(ctx context.Context) int {
	reply := make(chan int, 1)
	select {
	case h.count <- reply:
		return <-reply
	case <-ctx.Done():
		return 0
	case <-h.done:
		return 0
	}
}
