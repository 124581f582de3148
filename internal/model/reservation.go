package model

import "time"

// ReservationState is the occupancy side of a reservation.
type ReservationState string

const (
	ReservationPending   ReservationState = "pending"
	ReservationBooked    ReservationState = "booked"
	ReservationCancelled ReservationState = "cancelled"
)

// PaymentState is the payment side of a reservation.
type PaymentState string

const (
	PaymentPending PaymentState = "pending"
	PaymentSuccess PaymentState = "success"
	PaymentFailed  PaymentState = "failed"
	PaymentExpired PaymentState = "expired"
)

// Reservation records a user's claim on one connector for the half-open
// interval [StartTime, EndTime).  Amount and PaymentDeadline are fixed at
// creation.  Reservations are never deleted; cancellation is a state
// transition so usage history survives.
//
// Fields:
//  ID               – primary key identifier (UUID).
//  StationID        – station of the connector.
//  ConnectorID      – reserved connector.
//  UserID           – opaque id of the requesting user.
//  StartTime        – interval start (UTC).
//  EndTime          – interval end, strictly after StartTime (UTC).
//  Amount           – total price, rounded to 2 decimals.
//  State            – pending, booked or cancelled.
//  PaymentState     – pending, success, failed or expired.
//  PaymentDeadline  – instant after which a pending reservation expires.
//  PaymentToken     – opaque token the client echoes back on verify.
//  CreatedAt        – creation timestamp.
//  UpdatedAt        – last update timestamp.
type Reservation struct {
	ID              string           // reservations.id
	StationID       string           // reservations.station_id
	ConnectorID     string           // reservations.connector_id
	UserID          string           // reservations.user_id
	StartTime       time.Time        // reservations.start_time
	EndTime         time.Time        // reservations.end_time
	Amount          float64          // reservations.amount
	State           ReservationState // reservations.reservation_state
	PaymentState    PaymentState     // reservations.payment_state
	PaymentDeadline time.Time        // reservations.payment_deadline
	PaymentToken    string           // reservations.payment_token
	CreatedAt       time.Time        // reservations.created_at
	UpdatedAt       time.Time        // reservations.updated_at
}

// Active reports whether the reservation still occupies its interval.
func (r Reservation) Active() bool {
	return r.State == ReservationPending || r.State == ReservationBooked
}

// Overlaps reports whether r intersects the half-open interval [start, end).
func (r Reservation) Overlaps(start, end time.Time) bool {
	return r.StartTime.Before(end) && r.EndTime.After(start)
}

// IsExpired reports whether r is still pending past its deadline.
// The deadline instant itself is still payable.
func (r Reservation) IsExpired(now time.Time) bool {
	return r.State == ReservationPending && now.After(r.PaymentDeadline)
}

// Duration returns the reserved interval length.
func (r Reservation) Duration() time.Duration {
	return r.EndTime.Sub(r.StartTime)
}
