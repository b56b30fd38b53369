package booking

import (
	"log/slog"
	"net/http"
	"strconv"

	bs "github.com/Zazh/foxapp/service/booking"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
)

type Controller struct {
	Svc bs.Service
	V   *validator.Validate
	Log *slog.Logger
}

// POST /v1/bookings
// @Summary      Create booking
// @Description  Open a pending booking with a payment link; a unit is reserved on payment
// @Tags         bookings
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        payload  body  CreateBookingReq  true  "Booking payload"
// @Success      201  {object}  map[string]any
// @Failure      400  {object}  map[string]any
// @Failure      404  {object}  map[string]any
// @Failure      409  {object}  map[string]any "no units available"
// @Router       /v1/bookings [post]
func (h *Controller) Create(c echo.Context) error {
	var req CreateBookingReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"message": "invalid JSON"})
	}
	if err := h.V.Struct(req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{
			"message": "validation error",
			"errors":  err.Error(),
		})
	}
	uid, _ := c.Get("user_id").(int64)

	out, err := h.Svc.Create(c.Request().Context(), uid, bs.CreateReq{
		TariffID:  req.TariffID,
		PeriodID:  req.PeriodID,
		AddonIDs:  req.AddonIDs,
		StartDate: req.StartDate,
	})
	if err != nil {
		h.Log.Error("booking create", "err", err)
		switch bs.Code(err) {
		case bs.ErrTariffNotFound:
			return c.JSON(http.StatusNotFound, echo.Map{"message": "tariff not found"})
		case bs.ErrPeriodNotFound:
			return c.JSON(http.StatusNotFound, echo.Map{"message": "period not found"})
		case bs.ErrAllocationExhausted:
			return c.JSON(http.StatusConflict, echo.Map{"message": "no units available"})
		default:
			return c.JSON(http.StatusInternalServerError, echo.Map{"message": "internal error"})
		}
	}

	return c.JSON(http.StatusCreated, echo.Map{
		"booking_id":   out.BookingID,
		"status":       out.Status,
		"total_aed":    out.TotalAed,
		"payment_link": out.PaymentLink,
		"expires_at":   out.ExpiresAt,
	})
}

// POST /v1/bookings/:id/extend
func (h *Controller) Extend(c echo.Context) error {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"message": "invalid id"})
	}
	var req ExtendBookingReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"message": "invalid JSON"})
	}
	if err := h.V.Struct(req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"message": "validation error", "errors": err.Error()})
	}
	uid, _ := c.Get("user_id").(int64)

	out, err := h.Svc.Extend(c.Request().Context(), uid, id, req.PeriodID, req.AddonIDs)
	if err != nil {
		h.Log.Error("booking extend", "err", err, "booking_id", id)
		switch bs.Code(err) {
		case bs.ErrNotFound:
			return c.JSON(http.StatusNotFound, echo.Map{"message": "booking not found"})
		case bs.ErrNotOwner:
			return c.JSON(http.StatusForbidden, echo.Map{"message": "forbidden"})
		case bs.ErrPeriodNotFound:
			return c.JSON(http.StatusNotFound, echo.Map{"message": "period not found"})
		case bs.ErrInvalidTransition:
			return c.JSON(http.StatusConflict, echo.Map{"message": "booking cannot be extended"})
		default:
			return c.JSON(http.StatusInternalServerError, echo.Map{"message": "internal error"})
		}
	}

	return c.JSON(http.StatusCreated, echo.Map{
		"booking_id":   out.BookingID,
		"status":       out.Status,
		"total_aed":    out.TotalAed,
		"payment_link": out.PaymentLink,
		"expires_at":   out.ExpiresAt,
	})
}

// POST /v1/bookings/:id/cancel
func (h *Controller) Cancel(c echo.Context) error {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"message": "invalid id"})
	}
	uid, _ := c.Get("user_id").(int64)
	staff, _ := c.Get("is_staff").(bool)

	if err := h.Svc.Cancel(c.Request().Context(), uid, staff, id); err != nil {
		h.Log.Error("booking cancel", "err", err, "booking_id", id)
		switch bs.Code(err) {
		case bs.ErrNotFound:
			return c.JSON(http.StatusNotFound, echo.Map{"message": "booking not found"})
		case bs.ErrNotOwner:
			return c.JSON(http.StatusForbidden, echo.Map{"message": "forbidden"})
		case bs.ErrInvalidTransition:
			return c.JSON(http.StatusConflict, echo.Map{"message": "booking cannot be cancelled"})
		default:
			return c.JSON(http.StatusInternalServerError, echo.Map{"message": "internal error"})
		}
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "cancelled"})
}

// POST /v1/bookings/:id/mock-pay
func (h *Controller) MockPay(c echo.Context) error {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"message": "invalid id"})
	}
	uid, _ := c.Get("user_id").(int64)

	if err := h.Svc.MockPay(c.Request().Context(), uid, id); err != nil {
		h.Log.Error("booking mock pay", "err", err, "booking_id", id)
		switch bs.Code(err) {
		case bs.ErrMockDisabled:
			return c.JSON(http.StatusForbidden, echo.Map{"message": "mock payment disabled"})
		case bs.ErrNotFound:
			return c.JSON(http.StatusNotFound, echo.Map{"message": "booking not found"})
		case bs.ErrNotOwner:
			return c.JSON(http.StatusForbidden, echo.Map{"message": "forbidden"})
		case bs.ErrPaymentConflict:
			return c.JSON(http.StatusConflict, echo.Map{"message": "booking already cancelled"})
		default:
			return c.JSON(http.StatusInternalServerError, echo.Map{"message": "internal error"})
		}
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "paid"})
}

// GET /v1/bookings/my
func (h *Controller) MyBookings(c echo.Context) error {
	uid, _ := c.Get("user_id").(int64)
	rows, err := h.Svc.MyBookings(c.Request().Context(), uid)
	if err != nil {
		h.Log.Error("booking history", "err", err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"message": "internal error"})
	}
	return c.JSON(http.StatusOK, echo.Map{"data": rows})
}

// GET /v1/bookings/:id
func (h *Controller) Detail(c echo.Context) error {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"message": "invalid id"})
	}
	uid, _ := c.Get("user_id").(int64)
	staff, _ := c.Get("is_staff").(bool)

	d, err := h.Svc.Detail(c.Request().Context(), uid, staff, id)
	if err != nil {
		switch bs.Code(err) {
		case bs.ErrNotFound:
			return c.JSON(http.StatusNotFound, echo.Map{"message": "booking not found"})
		case bs.ErrNotOwner:
			return c.JSON(http.StatusForbidden, echo.Map{"message": "forbidden"})
		default:
			h.Log.Error("booking detail", "err", err, "booking_id", id)
			return c.JSON(http.StatusInternalServerError, echo.Map{"message": "internal error"})
		}
	}
	return c.JSON(http.StatusOK, echo.Map{
		"booking":   d.Booking,
		"unit_code": d.UnitCode,
	})
}

// POST /v1/staff/bookings/:id/release
func (h *Controller) ManualRelease(c echo.Context) error {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"message": "invalid id"})
	}
	if err := h.Svc.ManualRelease(c.Request().Context(), id); err != nil {
		h.Log.Error("booking release", "err", err, "booking_id", id)
		switch bs.Code(err) {
		case bs.ErrNotFound:
			return c.JSON(http.StatusNotFound, echo.Map{"message": "booking not found"})
		case bs.ErrInvalidTransition:
			return c.JSON(http.StatusConflict, echo.Map{"message": "booking is not expired or completed"})
		default:
			return c.JSON(http.StatusInternalServerError, echo.Map{"message": "internal error"})
		}
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "released"})
}
