// Package main storage rental API.
//
// @title           Foxapp Storage API
// @version         1.0
// @description     Storage unit rental: bookings, payments, QR access.
// @BasePath        /
// @schemes         http
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description  Use:  Bearer <JWT>
package main

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/Zazh/foxapp/app/echoServer"
	authctrl "github.com/Zazh/foxapp/app/echoServer/controller/auth"
	bookingctrl "github.com/Zazh/foxapp/app/echoServer/controller/booking"
	catalogctrl "github.com/Zazh/foxapp/app/echoServer/controller/catalog"
	paymentctrl "github.com/Zazh/foxapp/app/echoServer/controller/payment"
	staffctrl "github.com/Zazh/foxapp/app/echoServer/controller/staff"
	visitctrl "github.com/Zazh/foxapp/app/echoServer/controller/visit"
	"github.com/Zazh/foxapp/app/echoServer/validation"
	"github.com/Zazh/foxapp/config"
	authrepo "github.com/Zazh/foxapp/repository/auth"
	bookingrepo "github.com/Zazh/foxapp/repository/booking"
	catalogrepo "github.com/Zazh/foxapp/repository/catalog"
	striperepo "github.com/Zazh/foxapp/repository/stripe"
	unitrepo "github.com/Zazh/foxapp/repository/unit"
	visitrepo "github.com/Zazh/foxapp/repository/visit"
	authsvc "github.com/Zazh/foxapp/service/auth"
	bookingsvc "github.com/Zazh/foxapp/service/booking"
	catalogsvc "github.com/Zazh/foxapp/service/catalog"
	"github.com/Zazh/foxapp/service/notify"
	paymentsvc "github.com/Zazh/foxapp/service/payment"
	visitsvc "github.com/Zazh/foxapp/service/visit"
	"github.com/Zazh/foxapp/util/clock"
	"github.com/Zazh/foxapp/util/database"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
	echoSwagger "github.com/swaggo/echo-swagger"
)

func main() {

	cfg := config.Load()
	ctx := context.Background()

	// logger
	log := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	// DB: *sql.DB
	db, err := database.New(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Error("db connect failed", "err", err)
		os.Exit(1)
	}
	defer db.Close()

	// notification bus: Redis when reachable, log fallback otherwise
	var dispatcher notify.Dispatcher
	rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	if err := rdb.Ping(ctx).Err(); err != nil {
		log.Warn("redis unreachable, notifications go to log only", "addr", cfg.RedisAddr, "err", err)
		dispatcher = notify.NewLog(log)
	} else {
		dispatcher = notify.NewRedis(rdb, log)
	}

	clk := clock.Real{}

	// repos
	ar := authrepo.New(db)
	cr := catalogrepo.New(db)
	ur := unitrepo.New(db)
	br := bookingrepo.New(db)
	vr := visitrepo.New(db)
	sr := striperepo.NewHTTP(cfg.StripeSecretKey, cfg.StripeWebhookSecret)

	// services
	as := authsvc.New(ar, cfg.JWTSecret, log)
	cs := catalogsvc.New(cr, ur)
	bs := bookingsvc.New(db, br, cr, ur, sr, dispatcher, clk, log, bookingsvc.Config{
		PendingExpiry: time.Duration(cfg.PendingExpiryMin) * time.Minute,
		BaseURL:       cfg.BaseURL,
		StripeEnabled: striperepo.Configured(cfg.StripeSecretKey),
	})
	vs := visitsvc.New(vr, br, dispatcher, clk, log, visitsvc.Config{
		OwnerTokenTTL: time.Duration(cfg.OwnerTokenTTLMin) * time.Minute,
		GuestTokenTTL: time.Duration(cfg.GuestTokenTTLHours) * time.Hour,
		BaseURL:       cfg.BaseURL,
	})
	ps := paymentsvc.New(sr, bs, log)
	rec := bookingsvc.NewReconciler(br, ur, dispatcher, clk, log, cfg.ReminderDays)

	// controllers
	v := validator.New()
	authC := &authctrl.Controller{Svc: as, V: v, Log: log}
	bookingC := &bookingctrl.Controller{Svc: bs, V: v, Log: log}
	catalogC := &catalogctrl.Controller{Svc: cs, Log: log}
	visitC := &visitctrl.Controller{Svc: vs, V: v, Log: log}
	paymentC := &paymentctrl.Controller{Svc: ps, Log: log}
	staffC := &staffctrl.Controller{Rec: rec, Log: log}

	// periodic reconcile sweep
	go func() {
		interval := time.Duration(cfg.ReconcileIntervalMin) * time.Minute
		t := time.NewTicker(interval)
		defer t.Stop()
		for range t.C {
			if _, err := rec.Run(ctx); err != nil {
				log.Error("reconcile sweep failed", "err", err)
			}
		}
	}()

	// echo
	e := echo.New()
	echoServer.RegisterMiddlewares(e)
	e.Validator = validation.New()

	e.GET("/health", func(c echo.Context) error {
		return c.JSON(200, map[string]any{
			"status":  "ok",
			"message": "Service is healthy and connected",
		})
	})

	e.GET("/swagger/*", echoSwagger.WrapHandler)

	echoServer.Register(e, echoServer.C{
		Auth:    authC,
		Booking: bookingC,
		Catalog: catalogC,
		Visit:   visitC,
		Payment: paymentC,
		Staff:   staffC,

		JWTSecret: cfg.JWTSecret,
	})

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.Port
	}
	if port == "" {
		port = "8080"
	}

	log.Info("starting server", "port", port, "env", cfg.Env)

	e.Logger.Fatal(e.Start(":" + port))
}
