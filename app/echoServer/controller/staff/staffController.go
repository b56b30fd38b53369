package staff

import (
	"log/slog"
	"net/http"

	bs "github.com/Zazh/foxapp/service/booking"

	"github.com/labstack/echo/v4"
)

type Controller struct {
	Rec bs.Reconciler
	Log *slog.Logger
}

// POST /v1/staff/reconcile
// Runs the sweep on demand, outside the timer. Useful after a data fix
// or when testing lifecycle behaviour.
func (h *Controller) Reconcile(c echo.Context) error {
	sum, err := h.Rec.Run(c.Request().Context())
	if err != nil {
		h.Log.Error("manual reconcile", "err", err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"message": "internal error"})
	}
	return c.JSON(http.StatusOK, sum)
}
