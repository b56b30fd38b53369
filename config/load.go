package config

import (
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

func Load() App {
	_ = godotenv.Load()

	cfg := App{
		Port:                 getenv("APP_PORT", "8080"),
		DatabaseURL:          must("DATABASE_URL"),
		RedisAddr:            getenv("REDIS_ADDR", "localhost:6379"),
		JWTSecret:            getenv("JWT_SECRET", "local_dev_secret"),
		StripeSecretKey:      os.Getenv("STRIPE_SECRET_KEY"),
		StripeWebhookSecret:  os.Getenv("STRIPE_WEBHOOK_SECRET"),
		BaseURL:              getenv("BASE_URL", "http://localhost:8080"),
		Env:                  getenv("APP_ENV", "dev"),
		PendingExpiryMin:     getint("PENDING_EXPIRY_MIN", 30),
		OwnerTokenTTLMin:     getint("OWNER_TOKEN_TTL_MIN", 15),
		GuestTokenTTLHours:   getint("GUEST_TOKEN_TTL_HOURS", 24),
		ReminderDays:         getints("REMINDER_DAYS", []int{7, 3, 1}),
		ReconcileIntervalMin: getint("RECONCILE_INTERVAL_MIN", 60),
	}
	return cfg
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func getint(k string, def int) int {
	if v := os.Getenv(k); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
		}
		slog.Warn("invalid int env, using default", "key", k, "value", v, "default", def)
	}
	return def
}

func getints(k string, def []int) []int {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	var out []int
	for _, part := range strings.Split(v, ",") {
		n, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil || n <= 0 {
			slog.Warn("invalid int list env, using default", "key", k, "value", v)
			return def
		}
		out = append(out, n)
	}
	return out
}

func must(k string) string {
	v := os.Getenv(k)
	if v == "" {
		slog.Error("required env missing", "key", k)
		panic("missing env " + k)
	}
	return v
}
