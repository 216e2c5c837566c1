// Package service implements the order lifecycle, refunds, promotions and the wallet.
package service

import (
	"context"
	"time"

	"github.com/Skotchmaster/fulfillment/internal/events"
	"github.com/Skotchmaster/fulfillment/internal/metrics"
	"github.com/Skotchmaster/fulfillment/internal/models"
	"github.com/Skotchmaster/fulfillment/pkg/logging"
	"github.com/google/uuid"
)

// Actor is the caller of an operation as established by the auth middleware.
type Actor struct {
	UserID uuid.UUID
	Admin  bool
}

func (a Actor) Owns(order *models.Order) bool {
	return a.Admin || order.UserID == a.UserID
}

type clock func() time.Time

func (c clock) now() time.Time {
	if c == nil {
		return time.Now().UTC()
	}
	return c().UTC()
}

// publish is best effort: the state it describes is already committed.
func publish(ctx context.Context, p events.Publisher, ev events.Event) {
	if p == nil {
		return
	}
	if ev.OccurredAt.IsZero() {
		ev.OccurredAt = time.Now().UTC()
	}
	if err := p.Publish(ctx, ev); err != nil {
		logging.FromContext(ctx).Warn("event_publish_failed", "type", ev.Type, "order_id", ev.OrderID, "error", err)
	}
}

func statusChanged(ctx context.Context, p events.Publisher, order *models.Order, from string) {
	metrics.Get().OrderTransitions.WithLabelValues(from, string(order.Status)).Inc()
	publish(ctx, p, events.Event{
		Type:    events.OrderStatusChanged,
		OrderID: order.ID,
		UserID:  order.UserID,
		From:    from,
		To:      string(order.Status),
	})
}

func timePtr(t time.Time) *time.Time { return &t }
