package repository

import (
	"time"

	"github.com/iliyamo/charge-slot-reservation/internal/model"
)

// ReservationFilter narrows ListByStation.  Zero values mean "no bound":
// an empty States slice matches every state and zero StartFrom/StartTo
// leave that side of the start-time range open.  Both bounds are
// inclusive.
type ReservationFilter struct {
	States    []model.ReservationState
	StartFrom time.Time
	StartTo   time.Time
}

// ActiveStates lists the states that occupy a connector.
var ActiveStates = []model.ReservationState{model.ReservationPending, model.ReservationBooked}

// Match reports whether r satisfies the filter.  Stores that cannot push
// the filter down to a query use it directly.
func (f ReservationFilter) Match(r model.Reservation) bool {
	if len(f.States) > 0 {
		ok := false
		for _, s := range f.States {
			if r.State == s {
				ok = true
				break
			}
		}
		if !ok {
			return false
		}
	}
	if !f.StartFrom.IsZero() && r.StartTime.Before(f.StartFrom) {
		return false
	}
	if !f.StartTo.IsZero() && r.StartTime.After(f.StartTo) {
		return false
	}
	return true
}
