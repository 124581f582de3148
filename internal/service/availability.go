package service

import (
	"context"
	"time"

	"github.com/iliyamo/charge-slot-reservation/internal/model"
)

// ConnectorView is a connector with its derived status.  Current is the
// reservation occupying it now, Next the earliest one starting within the
// look-ahead window.
type ConnectorView struct {
	Connector model.Connector
	Status    model.ConnectorStatus
	Current   *model.Reservation
	Next      *model.Reservation
}

// StationView is a station with the derived status of every connector.
type StationView struct {
	Station    model.Station
	Connectors []ConnectorView
}

// ConnectorStatus derives a connector's displayed status from its
// reservations.  It is never stored.
func (s *Service) ConnectorStatus(ctx context.Context, connectorID string) (ConnectorView, error) {
	conn, err := s.catalog.GetConnector(ctx, connectorID)
	if err != nil {
		return ConnectorView{}, err
	}
	return s.connectorView(ctx, conn, s.clock.Now())
}

// StationAvailability returns a station and the derived status of its
// connectors.
func (s *Service) StationAvailability(ctx context.Context, stationID string) (StationView, error) {
	st, err := s.catalog.GetStation(ctx, stationID)
	if err != nil {
		return StationView{}, err
	}
	conns, err := s.catalog.ListConnectors(ctx, stationID)
	if err != nil {
		return StationView{}, err
	}
	now := s.clock.Now()
	view := StationView{Station: st, Connectors: make([]ConnectorView, 0, len(conns))}
	for _, c := range conns {
		cv, err := s.connectorView(ctx, c, now)
		if err != nil {
			return StationView{}, err
		}
		view.Connectors = append(view.Connectors, cv)
	}
	return view, nil
}

func (s *Service) connectorView(ctx context.Context, conn model.Connector, now time.Time) (ConnectorView, error) {
	rs, err := s.store.FindOverlapping(ctx, conn.ID, now.UTC(), now.Add(s.lookAhead).UTC(), "")
	if err != nil {
		return ConnectorView{}, err
	}
	return deriveStatus(conn, rs, now), nil
}

// deriveStatus is in_use when an active reservation contains now, booked
// when one starts later inside the window and free otherwise.  rs must be
// sorted by start time.
func deriveStatus(conn model.Connector, rs []model.Reservation, now time.Time) ConnectorView {
	v := ConnectorView{Connector: conn, Status: model.ConnectorFree}
	for i := range rs {
		r := rs[i]
		if !r.Active() || IsExpired(r, now) {
			continue
		}
		if !r.StartTime.After(now) && r.EndTime.After(now) {
			v.Current = &r
			v.Status = model.ConnectorInUse
			continue
		}
		if r.StartTime.After(now) && v.Next == nil {
			v.Next = &r
			if v.Status == model.ConnectorFree {
				v.Status = model.ConnectorBooked
			}
		}
	}
	return v
}
