package handler

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/charge-slot-reservation/internal/model"
	"github.com/iliyamo/charge-slot-reservation/internal/service"
)

// ReservationHandler exposes the customer reservation lifecycle.  All
// methods assume JWT authentication and the CUSTOMER role have already
// been enforced by middleware.  Reservations owned by another user are
// answered with 403.
type ReservationHandler struct {
	Svc *service.Service
}

// NewReservationHandler panics if svc is nil.
func NewReservationHandler(svc *service.Service) *ReservationHandler {
	if svc == nil {
		panic("nil service passed to NewReservationHandler")
	}
	return &ReservationHandler{Svc: svc}
}

// authorize checks that the caller owns the reservation named by the :id
// path parameter.  When it returns false the response has already been
// written and err is the result of writing it.
func (h *ReservationHandler) authorize(c echo.Context) (ok bool, err error) {
	userID, err := getUserID(c)
	if err != nil {
		return false, c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized", "code": "unauthorized"})
	}
	owner, err := h.Svc.OwnerOf(c.Request().Context(), c.Param("id"))
	if err != nil {
		return false, writeError(c, err)
	}
	if owner != userID {
		return false, fail(c, http.StatusForbidden, "forbidden", "reservation belongs to another user")
	}
	return true, nil
}

// Create handles POST /v1/reservations.  The body names the connector and
// the interval; on success the pending reservation is returned together
// with its payment token and deadline.
func (h *ReservationHandler) Create(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized", "code": "unauthorized"})
	}
	var body struct {
		StationID   string `json:"station_id"`
		ConnectorID string `json:"connector_id"`
		StartTime   string `json:"start_time"`
		EndTime     string `json:"end_time"`
	}
	if err := c.Bind(&body); err != nil {
		return fail(c, http.StatusBadRequest, "invalid_request_body", "invalid request body")
	}
	if body.ConnectorID == "" {
		return fail(c, http.StatusBadRequest, "missing_required_field", "connector_id is required")
	}
	start, err1 := parseTime(body.StartTime)
	end, err2 := parseTime(body.EndTime)
	if err1 != nil || err2 != nil {
		return fail(c, http.StatusBadRequest, "invalid_interval", "start_time and end_time must be RFC 3339")
	}

	r, err := h.Svc.TryReserve(c.Request().Context(), service.ReserveInput{
		UserID:      userID,
		StationID:   body.StationID,
		ConnectorID: body.ConnectorID,
		Start:       start,
		End:         end,
	})
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusCreated, reservationJSON(r, true))
}

// Get handles GET /v1/reservations/:id.  A pending reservation past its
// deadline is reported as cancelled/expired.
func (h *ReservationHandler) Get(c echo.Context) error {
	if ok, err := h.authorize(c); !ok {
		return err
	}
	r, err := h.Svc.Get(c.Request().Context(), c.Param("id"))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, reservationJSON(r, r.State == model.ReservationPending))
}

// Verify handles POST /v1/reservations/:id/verify.  A declined payment is
// answered with 400 and the now cancelled reservation.
func (h *ReservationHandler) Verify(c echo.Context) error {
	if ok, err := h.authorize(c); !ok {
		return err
	}
	var body struct {
		PaymentToken string               `json:"payment_token"`
		Proof        service.PaymentProof `json:"payment_proof"`
	}
	if err := c.Bind(&body); err != nil {
		return fail(c, http.StatusBadRequest, "invalid_request_body", "invalid request body")
	}
	r, err := h.Svc.Verify(c.Request().Context(), service.VerifyInput{
		ReservationID: c.Param("id"),
		Token:         body.PaymentToken,
		Proof:         body.Proof,
	})
	if errors.Is(err, service.ErrPaymentDeclined) {
		return c.JSON(http.StatusBadRequest, echo.Map{
			"error":       "payment declined",
			"code":        "payment_declined",
			"reservation": reservationJSON(r, false),
		})
	}
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, reservationJSON(r, false))
}

// CancelPending handles POST /v1/reservations/:id/cancel-pending.
func (h *ReservationHandler) CancelPending(c echo.Context) error {
	if ok, err := h.authorize(c); !ok {
		return err
	}
	r, err := h.Svc.CancelPending(c.Request().Context(), c.Param("id"))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, reservationJSON(r, false))
}

// Cancel handles POST /v1/reservations/:id/cancel.  The response carries
// the refund owed: the full amount when cancelled at least ten minutes
// before the start, nothing otherwise.
func (h *ReservationHandler) Cancel(c echo.Context) error {
	if ok, err := h.authorize(c); !ok {
		return err
	}
	res, err := h.Svc.CancelActive(c.Request().Context(), c.Param("id"))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{
		"reservation":   reservationJSON(res.Reservation, false),
		"refund_amount": res.RefundAmount,
		"refund_policy": res.Policy,
	})
}

// ListMine handles GET /v1/my-reservations, newest first.
func (h *ReservationHandler) ListMine(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized", "code": "unauthorized"})
	}
	rs, err := h.Svc.ListByUser(c.Request().Context(), userID)
	if err != nil {
		return writeError(c, err)
	}
	items := reservationsJSON(rs, false)
	return c.JSON(http.StatusOK, echo.Map{"items": items, "count": len(items)})
}

// Usage handles GET /v1/me/usage.
func (h *ReservationHandler) Usage(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized", "code": "unauthorized"})
	}
	u, err := h.Svc.UserUsage(c.Request().Context(), userID)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{
		"user_id":                userID,
		"total_reservations":     u.TotalReservations,
		"cancelled_reservations": u.CancelledReservations,
		"total_hours_booked":     u.TotalHoursBooked,
		"money_spent":            u.MoneySpent,
	})
}
