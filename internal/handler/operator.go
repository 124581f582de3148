package handler

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/charge-slot-reservation/internal/model"
	"github.com/iliyamo/charge-slot-reservation/internal/repository"
	"github.com/iliyamo/charge-slot-reservation/internal/service"
)

// OperatorHandler serves station-wide reservation listings to operators.
type OperatorHandler struct {
	Svc *service.Service
}

func NewOperatorHandler(svc *service.Service) *OperatorHandler {
	if svc == nil {
		panic("nil service passed to NewOperatorHandler")
	}
	return &OperatorHandler{Svc: svc}
}

// ListStationReservations handles GET /v1/stations/:id/reservations.
// Optional query parameters: state (comma separated pending, booked,
// cancelled), from and to (RFC 3339 bounds on the start time, inclusive).
func (h *OperatorHandler) ListStationReservations(c echo.Context) error {
	var f repository.ReservationFilter
	if raw := c.QueryParam("state"); raw != "" {
		for _, s := range strings.Split(raw, ",") {
			st := model.ReservationState(strings.ToLower(strings.TrimSpace(s)))
			switch st {
			case model.ReservationPending, model.ReservationBooked, model.ReservationCancelled:
				f.States = append(f.States, st)
			default:
				return fail(c, http.StatusBadRequest, "invalid_state", "unknown reservation state "+s)
			}
		}
	}
	if raw := c.QueryParam("from"); raw != "" {
		t, err := parseTime(raw)
		if err != nil {
			return fail(c, http.StatusBadRequest, "invalid_from", "from must be RFC 3339")
		}
		f.StartFrom = t
	}
	if raw := c.QueryParam("to"); raw != "" {
		t, err := parseTime(raw)
		if err != nil {
			return fail(c, http.StatusBadRequest, "invalid_to", "to must be RFC 3339")
		}
		f.StartTo = t
	}

	rs, err := h.Svc.ListByStation(c.Request().Context(), c.Param("id"), f)
	if err != nil {
		return writeError(c, err)
	}
	items := reservationsJSON(rs, false)
	return c.JSON(http.StatusOK, echo.Map{"items": items, "count": len(items)})
}
