package service

import (
	"context"
	"log"
	"time"

	"github.com/iliyamo/charge-slot-reservation/internal/model"
	"github.com/iliyamo/charge-slot-reservation/internal/queue"
)

// EventPublisher receives reservation events after the transition is
// stored.  Delivery is best effort; a failure never undoes the transition.
type EventPublisher interface {
	Publish(ctx context.Context, ev queue.ReservationEvent) error
}

// NopPublisher drops every event.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, queue.ReservationEvent) error { return nil }

const (
	EventCreated       = queue.EventCreated
	EventBooked        = queue.EventBooked
	EventPaymentFailed = queue.EventPaymentFailed
	EventExpired       = queue.EventExpired
	EventCancelled     = queue.EventCancelled
)

const publishTimeout = 2 * time.Second

func (s *Service) publish(ctx context.Context, typ queue.EventType, r model.Reservation, refund float64) {
	ev := queue.ReservationEvent{
		Type:             typ,
		ReservationID:    r.ID,
		StationID:        r.StationID,
		ConnectorID:      r.ConnectorID,
		UserID:           r.UserID,
		StartsAt:         r.StartTime.UTC().Format(time.RFC3339),
		EndsAt:           r.EndTime.UTC().Format(time.RFC3339),
		Amount:           r.Amount,
		RefundAmount:     refund,
		ReservationState: string(r.State),
		PaymentState:     string(r.PaymentState),
		OccurredAt:       s.clock.Now().UTC().Format(time.RFC3339),
	}
	// the request may already be done; the event should still go out
	pctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()
	if err := s.events.Publish(pctx, ev); err != nil {
		log.Printf("events: publish %s for %s failed: %v", typ, r.ID, err)
	}
}
