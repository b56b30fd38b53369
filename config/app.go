package config

type App struct {
	Port                string `env:"APP_PORT" default:"8080"`
	DatabaseURL         string `env:"DATABASE_URL,required"`
	RedisAddr           string `env:"REDIS_ADDR" default:"localhost:6379"`
	JWTSecret           string `env:"JWT_SECRET,required"`
	StripeSecretKey     string `env:"STRIPE_SECRET_KEY"`
	StripeWebhookSecret string `env:"STRIPE_WEBHOOK_SECRET"`
	BaseURL             string `env:"BASE_URL" default:"http://localhost:8080"`
	Env                 string `env:"APP_ENV" default:"dev"`

	// Engine knobs. Defaults match the product rules: a pending booking
	// holds its price for 30 minutes, an owner QR lives 15 minutes, a
	// guest QR lives 24 hours.
	PendingExpiryMin     int   `env:"PENDING_EXPIRY_MIN" default:"30"`
	OwnerTokenTTLMin     int   `env:"OWNER_TOKEN_TTL_MIN" default:"15"`
	GuestTokenTTLHours   int   `env:"GUEST_TOKEN_TTL_HOURS" default:"24"`
	ReminderDays         []int `env:"REMINDER_DAYS" default:"7,3,1"`
	ReconcileIntervalMin int   `env:"RECONCILE_INTERVAL_MIN" default:"60"`
}
