package handler

// Unauthenticated endpoints: catalog browsing with derived connector
// status, price quotes and availability previews.

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/charge-slot-reservation/internal/model"
	"github.com/iliyamo/charge-slot-reservation/internal/service"
)

// PublicHandler serves catalog and pricing reads.
type PublicHandler struct {
	Catalog service.Catalog
	Svc     *service.Service
}

// NewPublicHandler panics on nil dependencies.
func NewPublicHandler(catalog service.Catalog, svc *service.Service) *PublicHandler {
	if catalog == nil || svc == nil {
		panic("nil dependency passed to NewPublicHandler")
	}
	return &PublicHandler{Catalog: catalog, Svc: svc}
}

// PublicStation is a station as exposed by the API.
type PublicStation struct {
	ID        string  `json:"id"`
	Name      string  `json:"name"`
	Lat       float64 `json:"lat"`
	Lng       float64 `json:"lng"`
	BaseRate  float64 `json:"base_rate"`
	OpenTime  string  `json:"open_time"`
	CloseTime string  `json:"close_time"`
}

// PublicConnector is a connector with its derived status.
type PublicConnector struct {
	ID         string                `json:"id"`
	CapacityKW float64               `json:"capacity_kw"`
	Type       model.ConnectorType   `json:"type"`
	Status     model.ConnectorStatus `json:"status"`
	BusyUntil  *time.Time            `json:"busy_until,omitempty"`
	NextStart  *time.Time            `json:"next_start,omitempty"`
}

func publicStation(s model.Station) PublicStation {
	return PublicStation{
		ID: s.ID, Name: s.Name, Lat: s.Lat, Lng: s.Lng,
		BaseRate: s.BaseRate, OpenTime: s.OpenTime, CloseTime: s.CloseTime,
	}
}

func publicConnector(v service.ConnectorView) PublicConnector {
	pc := PublicConnector{
		ID:         v.Connector.ID,
		CapacityKW: v.Connector.CapacityKW,
		Type:       v.Connector.Type,
		Status:     v.Status,
	}
	if v.Current != nil {
		end := v.Current.EndTime.UTC()
		pc.BusyUntil = &end
	}
	if v.Next != nil {
		start := v.Next.StartTime.UTC()
		pc.NextStart = &start
	}
	return pc
}

// ListStations handles GET /v1/stations.
func (h *PublicHandler) ListStations(c echo.Context) error {
	stations, err := h.Catalog.ListStations(c.Request().Context())
	if err != nil {
		return writeError(c, err)
	}
	items := make([]PublicStation, 0, len(stations))
	for _, s := range stations {
		items = append(items, publicStation(s))
	}
	return c.JSON(http.StatusOK, echo.Map{"items": items, "count": len(items)})
}

// GetStation handles GET /v1/stations/:id and includes the derived status
// of every connector.
func (h *PublicHandler) GetStation(c echo.Context) error {
	view, err := h.Svc.StationAvailability(c.Request().Context(), c.Param("id"))
	if err != nil {
		return writeError(c, err)
	}
	conns := make([]PublicConnector, 0, len(view.Connectors))
	for _, cv := range view.Connectors {
		conns = append(conns, publicConnector(cv))
	}
	return c.JSON(http.StatusOK, echo.Map{
		"station":    publicStation(view.Station),
		"connectors": conns,
	})
}

// Quote handles POST /v1/pricing/quote.
func (h *PublicHandler) Quote(c echo.Context) error {
	var body struct {
		StationID     string  `json:"station_id"`
		ConnectorID   string  `json:"connector_id"`
		DurationHours float64 `json:"duration_hours"`
		StartTime     string  `json:"start_time"`
	}
	if err := c.Bind(&body); err != nil {
		return fail(c, http.StatusBadRequest, "invalid_request_body", "invalid request body")
	}
	if body.ConnectorID == "" {
		return fail(c, http.StatusBadRequest, "missing_required_field", "connector_id is required")
	}
	in := service.QuoteInput{StationID: body.StationID, ConnectorID: body.ConnectorID, DurationHours: body.DurationHours}
	if body.StartTime != "" {
		st, err := parseTime(body.StartTime)
		if err != nil {
			return fail(c, http.StatusBadRequest, "invalid_start_time", "start_time must be RFC 3339")
		}
		in.StartTime = &st
	}
	q, err := h.Svc.QuotePrice(c.Request().Context(), in)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{
		"rate_per_hour":  q.RatePerHour,
		"total_amount":   q.TotalAmount,
		"duration_hours": body.DurationHours,
	})
}

// ConnectorAvailability handles GET /v1/connectors/:id/availability and
// previews whether [start, end) is free.  The answer is advisory; only
// creating the reservation is binding.
func (h *PublicHandler) ConnectorAvailability(c echo.Context) error {
	start, err1 := parseTime(c.QueryParam("start"))
	end, err2 := parseTime(c.QueryParam("end"))
	if err1 != nil || err2 != nil {
		return fail(c, http.StatusBadRequest, "invalid_interval", "start and end must be RFC 3339")
	}
	ok, n, err := h.Svc.CheckAvailability(c.Request().Context(), c.Param("id"), start, end)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{
		"connector_id": c.Param("id"),
		"available":    ok,
		"conflicts":    n,
	})
}
