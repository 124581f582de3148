package service

import (
	"context"
	"time"

	"github.com/iliyamo/charge-slot-reservation/internal/model"
)

// ReserveInput is a reservation request.  StationID may be empty, in which
// case the connector's station is used.
type ReserveInput struct {
	UserID      string
	StationID   string
	ConnectorID string
	Start       time.Time
	End         time.Time
}

func validInterval(start, end time.Time) bool {
	return !start.IsZero() && !end.IsZero() && end.After(start)
}

// TryReserve prices the interval and admits it atomically.  On success the
// reservation is pending with a five minute payment deadline.  When an
// active reservation overlaps on the same connector it returns a
// *ConflictError and writes nothing.
func (s *Service) TryReserve(ctx context.Context, in ReserveInput) (model.Reservation, error) {
	if !validInterval(in.Start, in.End) {
		return model.Reservation{}, ErrInvalidInterval
	}
	if in.UserID == "" {
		return model.Reservation{}, invalid("user_id", "required")
	}
	conn, err := s.catalog.GetConnector(ctx, in.ConnectorID)
	if err != nil {
		return model.Reservation{}, err
	}
	if in.StationID != "" && in.StationID != conn.StationID {
		return model.Reservation{}, invalid("connector_id", "connector does not belong to station")
	}
	st, err := s.catalog.GetStation(ctx, conn.StationID)
	if err != nil {
		return model.Reservation{}, err
	}

	start, end := in.Start.UTC().Truncate(time.Millisecond), in.End.UTC().Truncate(time.Millisecond)
	if !end.After(start) {
		return model.Reservation{}, ErrInvalidInterval
	}
	q, err := s.price(ctx, st, conn, end.Sub(start).Hours(), &start)
	if err != nil {
		return model.Reservation{}, err
	}

	now := s.now()
	res := model.Reservation{
		ID:              newReservationID(),
		StationID:       st.ID,
		ConnectorID:     conn.ID,
		UserID:          in.UserID,
		StartTime:       start,
		EndTime:         end,
		Amount:          q.TotalAmount,
		State:           model.ReservationPending,
		PaymentState:    model.PaymentPending,
		PaymentDeadline: now.Add(PaymentWindow),
		PaymentToken:    newPaymentToken(),
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if err := s.store.InsertIfNoOverlap(ctx, &res, now); err != nil {
		return model.Reservation{}, err
	}
	s.publish(ctx, EventCreated, res, 0)
	return res, nil
}

// CheckAvailability reports whether [start, end) is free on a connector
// and how many active reservations overlap it.  It is a preview only;
// TryReserve makes the binding decision.  Pending reservations past their
// deadline are not counted.
func (s *Service) CheckAvailability(ctx context.Context, connectorID string, start, end time.Time) (bool, int, error) {
	if !validInterval(start, end) {
		return false, 0, ErrInvalidInterval
	}
	if _, err := s.catalog.GetConnector(ctx, connectorID); err != nil {
		return false, 0, err
	}
	rs, err := s.store.FindOverlapping(ctx, connectorID, start.UTC(), end.UTC(), "")
	if err != nil {
		return false, 0, err
	}
	now := s.clock.Now()
	n := 0
	for _, r := range rs {
		if !IsExpired(r, now) {
			n++
		}
	}
	return n == 0, n, nil
}
