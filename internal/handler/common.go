package handler

import (
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/charge-slot-reservation/internal/middleware"
	"github.com/iliyamo/charge-slot-reservation/internal/model"
	"github.com/iliyamo/charge-slot-reservation/internal/service"
)

// getUserID extracts the authenticated user id placed in the context by
// the JWT middleware.
func getUserID(c echo.Context) (string, error) {
	if v, ok := c.Get(middleware.CtxUserID).(string); ok && v != "" {
		return v, nil
	}
	return "", errors.New("invalid user_id in context")
}

// parseTime accepts RFC 3339 timestamps with or without fractional seconds.
func parseTime(s string) (time.Time, error) {
	return time.Parse(time.RFC3339Nano, s)
}

func fail(c echo.Context, status int, code, msg string) error {
	return c.JSON(status, echo.Map{"error": msg, "code": code})
}

// writeError maps service errors to HTTP responses.  Anything unexpected
// is logged and reported as a generic 500.
func writeError(c echo.Context, err error) error {
	var conflict *service.ConflictError
	var invalid *service.ValidationError
	switch {
	case errors.As(err, &conflict):
		return c.JSON(http.StatusConflict, echo.Map{
			"error":     "slot unavailable",
			"code":      "conflict",
			"conflicts": conflict.Count,
		})
	case errors.As(err, &invalid):
		return c.JSON(http.StatusBadRequest, echo.Map{
			"error": invalid.Msg,
			"code":  "validation_error",
			"field": invalid.Field,
		})
	case errors.Is(err, service.ErrNotFound):
		return fail(c, http.StatusNotFound, "not_found", "not found")
	case errors.Is(err, service.ErrInvalidInterval):
		return fail(c, http.StatusBadRequest, "invalid_interval", "end must be after start")
	case errors.Is(err, service.ErrExpired):
		return fail(c, http.StatusBadRequest, "expired", "payment deadline passed")
	case errors.Is(err, service.ErrInvalidToken):
		return fail(c, http.StatusBadRequest, "invalid_token", "invalid payment token")
	case errors.Is(err, service.ErrPaymentDeclined):
		return fail(c, http.StatusBadRequest, "payment_declined", "payment declined")
	case errors.Is(err, service.ErrAlreadyProcessed):
		return fail(c, http.StatusConflict, "already_processed", "reservation already processed")
	case errors.Is(err, service.ErrInvalidState):
		return fail(c, http.StatusConflict, "invalid_state", "operation not allowed in current state")
	}
	log.Printf("handler: %s %s: %v", c.Request().Method, c.Path(), err)
	return fail(c, http.StatusInternalServerError, "internal_error", "internal error")
}

func reservationJSON(r model.Reservation, withToken bool) echo.Map {
	m := echo.Map{
		"id":                r.ID,
		"station_id":        r.StationID,
		"connector_id":      r.ConnectorID,
		"user_id":           r.UserID,
		"start_time":        r.StartTime.UTC(),
		"end_time":          r.EndTime.UTC(),
		"amount":            r.Amount,
		"reservation_state": r.State,
		"payment_state":     r.PaymentState,
		"payment_deadline":  r.PaymentDeadline.UTC(),
		"created_at":        r.CreatedAt.UTC(),
		"updated_at":        r.UpdatedAt.UTC(),
	}
	if withToken {
		m["payment_token"] = r.PaymentToken
	}
	return m
}

func reservationsJSON(rs []model.Reservation, withToken bool) []echo.Map {
	out := make([]echo.Map, 0, len(rs))
	for _, r := range rs {
		out = append(out, reservationJSON(r, withToken))
	}
	return out
}
