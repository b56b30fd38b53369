package echoServer

import (
	authctrl "github.com/Zazh/foxapp/app/echoServer/controller/auth"
	bookingctrl "github.com/Zazh/foxapp/app/echoServer/controller/booking"
	catalogctrl "github.com/Zazh/foxapp/app/echoServer/controller/catalog"
	paymentctrl "github.com/Zazh/foxapp/app/echoServer/controller/payment"
	staffctrl "github.com/Zazh/foxapp/app/echoServer/controller/staff"
	visitctrl "github.com/Zazh/foxapp/app/echoServer/controller/visit"

	"github.com/golang-jwt/jwt/v5"
	echojwt "github.com/labstack/echo-jwt/v4"
	"github.com/labstack/echo/v4"
)

type C struct {
	Auth      *authctrl.Controller
	Booking   *bookingctrl.Controller
	Catalog   *catalogctrl.Controller
	Visit     *visitctrl.Controller
	Payment   *paymentctrl.Controller
	Staff     *staffctrl.Controller
	JWTSecret string
}

func Register(e *echo.Echo, c C) {
	// Public
	pub := e.Group("/v1")
	pub.POST("/users/register", c.Auth.Register)
	pub.POST("/users/login", c.Auth.Login)

	// payment webhook
	pub.POST("/payment/stripe", c.Payment.HandleStripe)

	// QR rendering is public: guests open the forwarded link without an
	// account. Possession of the token value is the credential.
	pub.GET("/access/qr/:token", c.Visit.QR)

	// Auth
	auth := e.Group("/v1")
	auth.Use(echojwt.WithConfig(echojwt.Config{
		SigningKey: []byte(c.JWTSecret),

		NewClaimsFunc: func(c echo.Context) jwt.Claims { return jwt.MapClaims{} },
		TokenLookup:   "header:Authorization",
	}))
	auth.Use(userID())

	auth.GET("/users/me", c.Auth.Me)

	// Catalog
	auth.GET("/tariffs", c.Catalog.ListTariffs)
	auth.GET("/tariffs/:slug", c.Catalog.TariffBySlug)

	// Bookings
	auth.POST("/bookings", c.Booking.Create)
	auth.GET("/bookings/my", c.Booking.MyBookings)
	auth.GET("/bookings/:id", c.Booking.Detail)
	auth.POST("/bookings/:id/extend", c.Booking.Extend)
	auth.POST("/bookings/:id/cancel", c.Booking.Cancel)
	auth.POST("/bookings/:id/mock-pay", c.Booking.MockPay)

	// Access tokens
	auth.POST("/access/owner", c.Visit.IssueOwner)
	auth.POST("/access/guest", c.Visit.IssueGuest)
	auth.GET("/visits/my", c.Visit.MyVisits)

	// Staff
	staff := auth.Group("/staff")
	staff.Use(staffOnly())
	staff.POST("/scan", c.Visit.Scan)
	staff.POST("/reconcile", c.Staff.Reconcile)
	staff.POST("/bookings/:id/release", c.Booking.ManualRelease)
	staff.GET("/units", c.Catalog.ListUnits)
}
