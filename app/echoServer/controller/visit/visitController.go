package visit

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	vs "github.com/Zazh/foxapp/service/visit"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/skip2/go-qrcode"
)

type Controller struct {
	Svc vs.Service
	V   *validator.Validate
	Log *slog.Logger
}

type issueReq struct {
	BookingID int64 `json:"booking_id" validate:"required,gt=0"`
}

type scanReq struct {
	Token     string `json:"token" validate:"required"`
	GuestName string `json:"guest_name"`
}

func (h *Controller) issue(c echo.Context, fn func(ctx echo.Context, uid, bookingID int64) (*vs.IssuedToken, error)) error {
	var req issueReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"message": "invalid JSON"})
	}
	if err := h.V.Struct(req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"message": "validation error", "errors": err.Error()})
	}
	uid, _ := c.Get("user_id").(int64)

	out, err := fn(c, uid, req.BookingID)
	if err != nil {
		switch {
		case errors.Is(err, vs.ErrBookingNotFound):
			return c.JSON(http.StatusNotFound, echo.Map{"message": "booking not found"})
		case errors.Is(err, vs.ErrNotOwner):
			return c.JSON(http.StatusForbidden, echo.Map{"message": "forbidden"})
		case errors.Is(err, vs.ErrNotAllowed):
			return c.JSON(http.StatusConflict, echo.Map{"message": "booking does not allow access"})
		case errors.Is(err, vs.ErrNoUnitAssigned):
			return c.JSON(http.StatusConflict, echo.Map{"message": "no unit assigned yet"})
		default:
			h.Log.Error("token issue", "err", err, "booking_id", req.BookingID)
			return c.JSON(http.StatusInternalServerError, echo.Map{"message": "internal error"})
		}
	}
	return c.JSON(http.StatusOK, out)
}

// POST /v1/access/owner
func (h *Controller) IssueOwner(c echo.Context) error {
	return h.issue(c, func(ctx echo.Context, uid, bookingID int64) (*vs.IssuedToken, error) {
		return h.Svc.IssueOwnerToken(ctx.Request().Context(), uid, bookingID)
	})
}

// POST /v1/access/guest
func (h *Controller) IssueGuest(c echo.Context) error {
	return h.issue(c, func(ctx echo.Context, uid, bookingID int64) (*vs.IssuedToken, error) {
		return h.Svc.IssueGuestToken(ctx.Request().Context(), uid, bookingID)
	})
}

// GET /v1/access/qr/:token
// Renders the token as a PNG so the owner (or a forwarded guest link)
// can show it at the gate without any app.
func (h *Controller) QR(c echo.Context) error {
	value := c.Param("token")
	t, err := h.Svc.TokenValue(c.Request().Context(), value)
	if err != nil {
		if errors.Is(err, vs.ErrTokenNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"message": "token not found"})
		}
		h.Log.Error("qr lookup", "err", err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"message": "internal error"})
	}

	png, err := qrcode.Encode(t.Token, qrcode.Medium, 256)
	if err != nil {
		h.Log.Error("qr encode", "err", err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"message": "internal error"})
	}
	return c.Blob(http.StatusOK, "image/png", png)
}

// POST /v1/staff/scan
func (h *Controller) Scan(c echo.Context) error {
	var req scanReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"message": "invalid JSON"})
	}
	if err := h.V.Struct(req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"message": "validation error", "errors": err.Error()})
	}
	staffID, _ := c.Get("user_id").(int64)

	out, err := h.Svc.Scan(c.Request().Context(), staffID, req.Token, req.GuestName)
	if err != nil {
		switch {
		case errors.Is(err, vs.ErrTokenNotFound):
			return c.JSON(http.StatusNotFound, echo.Map{"allowed": false, "message": "token not found"})
		case errors.Is(err, vs.ErrTokenExpired):
			return c.JSON(http.StatusGone, echo.Map{"allowed": false, "message": "token expired"})
		case errors.Is(err, vs.ErrTokenAlreadyUsed):
			return c.JSON(http.StatusConflict, echo.Map{"allowed": false, "message": "token already used"})
		case errors.Is(err, vs.ErrMissingGuestName):
			return c.JSON(http.StatusBadRequest, echo.Map{"allowed": false, "message": "guest name required"})
		case errors.Is(err, vs.ErrNotAllowed):
			return c.JSON(http.StatusConflict, echo.Map{"allowed": false, "message": "booking does not allow access"})
		default:
			h.Log.Error("scan", "err", err)
			return c.JSON(http.StatusInternalServerError, echo.Map{"allowed": false, "message": "internal error"})
		}
	}
	return c.JSON(http.StatusOK, out)
}

// GET /v1/visits/my?booking_id=1
func (h *Controller) MyVisits(c echo.Context) error {
	uid, _ := c.Get("user_id").(int64)
	bookingID, _ := strconv.ParseInt(c.QueryParam("booking_id"), 10, 64)

	rows, err := h.Svc.VisitHistory(c.Request().Context(), uid, bookingID)
	if err != nil {
		h.Log.Error("visit history", "err", err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"message": "internal error"})
	}
	return c.JSON(http.StatusOK, echo.Map{"data": rows})
}
