// app/echoServer/controller/auth/authController.go
package auth

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/Zazh/foxapp/model"
	authsvc "github.com/Zazh/foxapp/service/auth"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
)

type Controller struct {
	Svc authsvc.Service
	V   *validator.Validate
	Log *slog.Logger
}

// Register a new user
// @Summary      Register user
// @Description  Register a new customer account
// @Tags         users
// @Accept       json
// @Produce      json
// @Param        payload  body  model.RegisterReq  true  "Register payload"
// @Success      201  {object}  map[string]any
// @Failure      400  {object}  map[string]any
// @Failure      409  {object}  map[string]any "email already registered"
// @Failure      500  {object}  map[string]any
// @Router       /v1/users/register [post]
func (ct *Controller) Register(c echo.Context) error {
	var req model.RegisterReq
	if err := c.Bind(&req); err != nil {
		ct.Log.Warn("bind failed", "path", c.Path(), "err", err)
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}
	if err := ct.V.Struct(req); err != nil {
		ct.Log.Warn("validation failed", "path", c.Path(), "err", err)
		return echo.NewHTTPError(http.StatusBadRequest, "validation error")
	}

	out, err := ct.Svc.Register(c.Request().Context(), req)
	if err != nil {
		if errors.Is(err, authsvc.ErrEmailTaken) {
			return echo.NewHTTPError(http.StatusConflict, "email already registered")
		}
		rid := c.Response().Header().Get(echo.HeaderXRequestID)
		ct.Log.Error("register failed", "err", err, "req_id", rid, "path", c.Path())
		return echo.NewHTTPError(http.StatusInternalServerError, "register failed")
	}

	return c.JSON(http.StatusCreated, echo.Map{
		"message": "registered",
		"token":   out.Token,
		"user":    out.User,
	})
}

// Login
// @Summary      Login
// @Description  Login with email + password, returns JWT
// @Tags         users
// @Accept       json
// @Produce      json
// @Param        payload  body  model.LoginReq  true  "Login payload"
// @Success      200  {object}  map[string]any
// @Failure      400  {object}  map[string]any
// @Failure      401  {object}  map[string]any
// @Failure      500  {object}  map[string]any
// @Router       /v1/users/login [post]
func (ct *Controller) Login(c echo.Context) error {
	var req model.LoginReq
	if err := c.Bind(&req); err != nil {
		ct.Log.Warn("bind failed", "path", c.Path(), "err", err)
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}
	if err := ct.V.Struct(req); err != nil {
		ct.Log.Warn("validation failed", "path", c.Path(), "err", err)
		return echo.NewHTTPError(http.StatusBadRequest, "validation error")
	}

	out, err := ct.Svc.Login(c.Request().Context(), req)
	if err != nil {
		if errors.Is(err, authsvc.ErrInvalidCredentials) {
			return echo.NewHTTPError(http.StatusUnauthorized, "invalid email or password")
		}
		rid := c.Response().Header().Get(echo.HeaderXRequestID)
		ct.Log.Error("login failed", "err", err, "req_id", rid, "path", c.Path())
		return echo.NewHTTPError(http.StatusInternalServerError, "login failed")
	}

	return c.JSON(http.StatusOK, echo.Map{
		"message": "login success",
		"token":   out.Token,
		"user":    out.User,
	})
}

// Me returns the authenticated profile.
// @Summary      Current user
// @Tags         users
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  map[string]any
// @Router       /v1/users/me [get]
func (ct *Controller) Me(c echo.Context) error {
	uid, _ := c.Get("user_id").(int64)
	u, err := ct.Svc.Me(c.Request().Context(), uid)
	if err != nil {
		if errors.Is(err, authsvc.ErrUserNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "user not found")
		}
		ct.Log.Error("me failed", "err", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
	}
	return c.JSON(http.StatusOK, echo.Map{"user": u})
}
