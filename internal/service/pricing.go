package service

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/iliyamo/charge-slot-reservation/internal/model"
	"github.com/iliyamo/charge-slot-reservation/internal/repository"
)

const (
	peakStartHour = 18
	peakEndHour   = 22
	peakSurcharge = 2
	demandWindow  = 2 * time.Hour
)

var capacityFactor = decimal.RequireFromString("0.5")

// QuoteInput describes a price request.  StartTime is optional; without
// it neither the peak nor the demand surcharge applies.
type QuoteInput struct {
	StationID     string
	ConnectorID   string
	DurationHours float64
	StartTime     *time.Time
}

// Quote is the per-hour rate and the total for the requested duration,
// both rounded to cents.
type Quote struct {
	RatePerHour float64
	TotalAmount float64
}

// QuotePrice prices a connector for a duration.  It has no side effects;
// calling it twice without an intervening reservation change yields the
// same result.
func (s *Service) QuotePrice(ctx context.Context, in QuoteInput) (Quote, error) {
	if in.DurationHours <= 0 {
		return Quote{}, invalid("duration_hours", "must be positive")
	}
	conn, err := s.catalog.GetConnector(ctx, in.ConnectorID)
	if err != nil {
		return Quote{}, err
	}
	stationID := in.StationID
	if stationID == "" {
		stationID = conn.StationID
	}
	if conn.StationID != stationID {
		return Quote{}, invalid("connector_id", "connector does not belong to station")
	}
	st, err := s.catalog.GetStation(ctx, stationID)
	if err != nil {
		return Quote{}, err
	}
	return s.price(ctx, st, conn, in.DurationHours, in.StartTime)
}

func (s *Service) price(ctx context.Context, st model.Station, conn model.Connector, hours float64, start *time.Time) (Quote, error) {
	peak, demand := 0, 0
	if start != nil {
		if s.isPeak(*start) {
			peak = peakSurcharge
		}
		n, err := s.demand(ctx, st.ID, *start)
		if err != nil {
			return Quote{}, err
		}
		demand = n
	}
	return computeQuote(st.BaseRate, conn.CapacityKW, hours, peak, demand), nil
}

// computeQuote applies rate = base + 0.5*capacity + peak + demand and
// total = rate * hours.  The total is taken from the unrounded rate; each
// value is then rounded half-up to two decimals on its own.
func computeQuote(baseRate, capacityKW, hours float64, peak, demand int) Quote {
	rate := decimal.NewFromFloat(baseRate).
		Add(decimal.NewFromFloat(capacityKW).Mul(capacityFactor)).
		Add(decimal.NewFromInt(int64(peak))).
		Add(decimal.NewFromInt(int64(demand)))
	total := rate.Mul(decimal.NewFromFloat(hours))
	return Quote{
		RatePerHour: rate.Round(2).InexactFloat64(),
		TotalAmount: total.Round(2).InexactFloat64(),
	}
}

func (s *Service) isPeak(start time.Time) bool {
	h := start.In(s.loc).Hour()
	return h >= peakStartHour && h < peakEndHour
}

// demand counts active reservations at the station starting within
// [start, start+2h], both ends inclusive.
func (s *Service) demand(ctx context.Context, stationID string, start time.Time) (int, error) {
	rs, err := s.store.ListByStation(ctx, stationID, repository.ReservationFilter{
		States:    repository.ActiveStates,
		StartFrom: start,
		StartTo:   start.Add(demandWindow),
	})
	if err != nil {
		return 0, err
	}
	return len(rs), nil
}
