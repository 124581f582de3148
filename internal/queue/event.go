// Package queue carries reservation lifecycle events over RabbitMQ.
package queue

// EventType names a reservation lifecycle transition.
type EventType string

const (
	EventCreated       EventType = "reservation.created"
	EventBooked        EventType = "reservation.booked"
	EventPaymentFailed EventType = "reservation.payment_failed"
	EventExpired       EventType = "reservation.expired"
	EventCancelled     EventType = "reservation.cancelled"
)

// ReservationEvent is published after a reservation transition commits.
// It carries enough detail for consumers to log or notify without reading
// the primary store.
type ReservationEvent struct {
	Type             EventType `json:"type"`
	ReservationID    string    `json:"reservation_id"`
	StationID        string    `json:"station_id"`
	ConnectorID      string    `json:"connector_id"`
	UserID           string    `json:"user_id"`
	StartsAt         string    `json:"starts_at"`
	EndsAt           string    `json:"ends_at"`
	Amount           float64   `json:"amount"`
	RefundAmount     float64   `json:"refund_amount,omitempty"`
	ReservationState string    `json:"reservation_state"`
	PaymentState     string    `json:"payment_state"`
	OccurredAt       string    `json:"occurred_at"`
}
