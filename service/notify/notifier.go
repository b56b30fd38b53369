// Package notify is the single best-effort dispatch boundary for
// lifecycle events. Delivery transports (email, Telegram) live behind
// the bus; failures here are logged and never propagate back into a
// state transition.
package notify

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/redis/go-redis/v9"
)

const (
	EventBookingPaid       = "booking.paid"
	EventBookingPaidNoUnit = "booking.paid_no_unit"
	EventBookingExpiring   = "booking.expiring"
	EventBookingExpired    = "booking.expired"
	EventVisitRecorded     = "visit.recorded"
)

type Event struct {
	UserID    int64          `json:"user_id"`
	EventType string         `json:"event_type"`
	Payload   map[string]any `json:"payload,omitempty"`
}

type Dispatcher interface {
	// Dispatch is fire-and-forget: implementations swallow and log
	// their own errors.
	Dispatch(ctx context.Context, e Event)
}

const channel = "notification-events"

type redisDispatcher struct {
	rdb *redis.Client
	log *slog.Logger
}

func NewRedis(rdb *redis.Client, log *slog.Logger) Dispatcher {
	return &redisDispatcher{rdb: rdb, log: log}
}

func (d *redisDispatcher) Dispatch(ctx context.Context, e Event) {
	data, err := json.Marshal(e)
	if err != nil {
		d.log.Error("notify: marshal event", "event", e.EventType, "err", err)
		return
	}
	if err := d.rdb.Publish(ctx, channel, data).Err(); err != nil {
		d.log.Error("notify: publish failed", "event", e.EventType, "user_id", e.UserID, "err", err)
		return
	}
	d.log.Debug("notify: dispatched", "event", e.EventType, "user_id", e.UserID)
}

// logDispatcher is the dev/no-Redis fallback: events end up in the
// structured log only.
type logDispatcher struct{ log *slog.Logger }

func NewLog(log *slog.Logger) Dispatcher { return &logDispatcher{log: log} }

func (d *logDispatcher) Dispatch(_ context.Context, e Event) {
	d.log.Info("notify", "event", e.EventType, "user_id", e.UserID, "payload", e.Payload)
}
