package payment

import (
	"errors"
	"io"
	"log/slog"
	"net/http"

	paymentsvc "github.com/Zazh/foxapp/service/payment"

	"github.com/labstack/echo/v4"
)

type Controller struct {
	Svc paymentsvc.Service
	Log *slog.Logger
}

// POST /v1/payment/stripe
func (h *Controller) HandleStripe(c echo.Context) error {
	sig := c.Request().Header.Get("Stripe-Signature")
	raw, err := io.ReadAll(c.Request().Body)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"message": "unreadable body"})
	}

	if err := h.Svc.HandleStripe(c.Request().Context(), sig, raw); err != nil {
		if errors.Is(err, paymentsvc.ErrBadSignature) {
			return c.JSON(http.StatusBadRequest, echo.Map{"message": "invalid signature"})
		}
		h.Log.Error("stripe webhook", "err", err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"message": "webhook failed"})
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "ok"})
}
