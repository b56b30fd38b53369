package catalog

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/Zazh/foxapp/model"
	unitrepo "github.com/Zazh/foxapp/repository/unit"
	cs "github.com/Zazh/foxapp/service/catalog"

	"github.com/labstack/echo/v4"
)

type Controller struct {
	Svc cs.Service
	Log *slog.Logger
}

// GET /v1/tariffs?service_type=storage&location_id=1
func (h *Controller) ListTariffs(c echo.Context) error {
	serviceType := model.ServiceType(c.QueryParam("service_type"))
	locationID, _ := strconv.ParseInt(c.QueryParam("location_id"), 10, 64)

	out, err := h.Svc.ListTariffs(c.Request().Context(), serviceType, locationID)
	if err != nil {
		h.Log.Error("tariff list", "err", err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"message": "internal error"})
	}
	return c.JSON(http.StatusOK, echo.Map{"data": out})
}

// GET /v1/tariffs/:slug?service_type=storage&location_id=1
func (h *Controller) TariffBySlug(c echo.Context) error {
	serviceType := model.ServiceType(c.QueryParam("service_type"))
	locationID, _ := strconv.ParseInt(c.QueryParam("location_id"), 10, 64)

	out, err := h.Svc.TariffBySlug(c.Request().Context(), serviceType, locationID, c.Param("slug"))
	if err != nil {
		if errors.Is(err, cs.ErrTariffNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"message": "tariff not found"})
		}
		h.Log.Error("tariff by slug", "err", err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"message": "internal error"})
	}
	return c.JSON(http.StatusOK, out)
}

// GET /v1/staff/units?service_id=1&location_id=1&available=true
func (h *Controller) ListUnits(c echo.Context) error {
	f := unitrepo.ListFilter{OnlyActive: false}
	f.ServiceID, _ = strconv.ParseInt(c.QueryParam("service_id"), 10, 64)
	f.LocationID, _ = strconv.ParseInt(c.QueryParam("location_id"), 10, 64)
	if s := c.QueryParam("available"); s != "" {
		b, err := strconv.ParseBool(s)
		if err != nil {
			return c.JSON(http.StatusBadRequest, echo.Map{"message": "invalid available filter"})
		}
		f.Available = &b
	}

	out, err := h.Svc.ListUnits(c.Request().Context(), f)
	if err != nil {
		h.Log.Error("unit list", "err", err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"message": "internal error"})
	}
	return c.JSON(http.StatusOK, echo.Map{"data": out})
}
