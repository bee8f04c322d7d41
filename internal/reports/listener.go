package reports

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"
)

const reconnectDelay = 5 * time.Second

// Listener bridges Postgres NOTIFY on NotifyChannel to a Broker. It needs a
// session-mode connection; transaction poolers drop LISTEN.
type Listener struct {
	dsn    string
	store  Store
	broker *Broker

	// OnReconnect runs after a dropped connection is re-established, so
	// consumers can reconcile events missed in the gap.
	OnReconnect func(ctx context.Context)
}

func NewListener(dsn string, store Store, broker *Broker) *Listener {
	return &Listener{dsn: dsn, store: store, broker: broker}
}

// Run listens until ctx is done, reconnecting after failures.
func (l *Listener) Run(ctx context.Context) error {
	first := true
	for {
		err := l.listen(ctx, !first)
		if ctx.Err() != nil {
			return nil
		}
		first = false
		zap.L().Warn("report listener disconnected, reconnecting",
			zap.Error(err),
			zap.Duration("delay", reconnectDelay),
		)

		select {
		case <-time.After(reconnectDelay):
		case <-ctx.Done():
			return nil
		}
	}
}

func (l *Listener) listen(ctx context.Context, reconnected bool) error {
	conn, err := pgx.Connect(ctx, l.dsn)
	if err != nil {
		return fmt.Errorf("connect: %w", err)
	}
	defer conn.Close(context.Background())

	if _, err := conn.Exec(ctx, "LISTEN "+pgx.Identifier{NotifyChannel}.Sanitize()); err != nil {
		return fmt.Errorf("listen: %w", err)
	}
	zap.L().Info("listening for report changes", zap.String("channel", NotifyChannel))

	if reconnected && l.OnReconnect != nil {
		l.OnReconnect(ctx)
	}

	for {
		n, err := conn.WaitForNotification(ctx)
		if err != nil {
			return fmt.Errorf("wait for notification: %w", err)
		}
		l.dispatch(ctx, n.Payload)
	}
}

func (l *Listener) dispatch(ctx context.Context, payload string) {
	var msg notification
	if err := json.Unmarshal([]byte(payload), &msg); err != nil {
		zap.L().Warn("ignoring malformed report notification", zap.String("payload", payload), zap.Error(err))
		return
	}

	r, err := l.store.Get(ctx, msg.ID)
	if err != nil {
		zap.L().Warn("could not load notified report", zap.String("report_id", msg.ID), zap.Error(err))
		return
	}
	l.broker.Publish(Event{Type: msg.Type, Report: r})
}
