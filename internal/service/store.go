package service

import (
	"context"
	"time"

	"github.com/iliyamo/charge-slot-reservation/internal/model"
	"github.com/iliyamo/charge-slot-reservation/internal/repository"
)

// Catalog resolves stations and connectors.  It is read-only from the
// point of view of the reservation core.
type Catalog interface {
	GetStation(ctx context.Context, id string) (model.Station, error)
	GetConnector(ctx context.Context, id string) (model.Connector, error)
	ListStations(ctx context.Context) ([]model.Station, error)
	ListConnectors(ctx context.Context, stationID string) ([]model.Connector, error)
}

// ReservationStore is the only shared mutable state.  InsertIfNoOverlap
// must be atomic per connector and Update must run mutate while holding
// the reservation exclusively.  Both repository.ReservationRepo (MySQL)
// and boltstore.Store satisfy it.
type ReservationStore interface {
	FindOverlapping(ctx context.Context, connectorID string, start, end time.Time, excludeID string) ([]model.Reservation, error)
	InsertIfNoOverlap(ctx context.Context, res *model.Reservation, now time.Time) error
	Get(ctx context.Context, id string) (model.Reservation, error)
	Update(ctx context.Context, id string, mutate func(*model.Reservation) error) (model.Reservation, error)
	ListByUser(ctx context.Context, userID string) ([]model.Reservation, error)
	ListByStation(ctx context.Context, stationID string, f repository.ReservationFilter) ([]model.Reservation, error)
	ExpirePending(ctx context.Context, now time.Time) (int, error)
}
