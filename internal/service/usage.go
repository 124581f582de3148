package service

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/iliyamo/charge-slot-reservation/internal/model"
	"github.com/iliyamo/charge-slot-reservation/internal/repository"
)

// Usage summarises a user's reservation history.  Hours and money only
// count reservations that were not cancelled.
type Usage struct {
	TotalReservations     int
	CancelledReservations int
	TotalHoursBooked      float64
	MoneySpent            float64
}

// UserUsage computes usage statistics for userID.
func (s *Service) UserUsage(ctx context.Context, userID string) (Usage, error) {
	rs, err := s.ListByUser(ctx, userID)
	if err != nil {
		return Usage{}, err
	}
	var u Usage
	hours, money := decimal.Zero, decimal.Zero
	for _, r := range rs {
		u.TotalReservations++
		if r.State == model.ReservationCancelled {
			u.CancelledReservations++
			continue
		}
		hours = hours.Add(decimal.NewFromFloat(r.Duration().Hours()))
		money = money.Add(decimal.NewFromFloat(r.Amount))
	}
	u.TotalHoursBooked = hours.Round(2).InexactFloat64()
	u.MoneySpent = money.Round(2).InexactFloat64()
	return u, nil
}

// ListByUser returns a user's reservations, newest first, with stale
// pending ones shown as expired.
func (s *Service) ListByUser(ctx context.Context, userID string) ([]model.Reservation, error) {
	rs, err := s.store.ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	return s.refresh(ctx, rs)
}

// ListByStation returns a station's reservations matching f, ordered by
// start time.
func (s *Service) ListByStation(ctx context.Context, stationID string, f repository.ReservationFilter) ([]model.Reservation, error) {
	if _, err := s.catalog.GetStation(ctx, stationID); err != nil {
		return nil, err
	}
	rs, err := s.store.ListByStation(ctx, stationID, f)
	if err != nil {
		return nil, err
	}
	if rs, err = s.refresh(ctx, rs); err != nil {
		return nil, err
	}
	// expiry may have moved entries out of the requested states
	out := rs[:0]
	for _, r := range rs {
		if f.Match(r) {
			out = append(out, r)
		}
	}
	return out, nil
}

// refresh applies lazy expiry to every stale pending entry in rs.
func (s *Service) refresh(ctx context.Context, rs []model.Reservation) ([]model.Reservation, error) {
	now := s.clock.Now()
	for i := range rs {
		if !IsExpired(rs[i], now) {
			continue
		}
		r, err := s.expireOne(ctx, rs[i].ID)
		if err != nil {
			return nil, err
		}
		rs[i] = r
	}
	return rs, nil
}
