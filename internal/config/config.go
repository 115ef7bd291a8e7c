package config // package config loads application configuration from environment variables

import (
	"log"      // log is used to report configuration errors and halt execution
	"os"       // os provides access to environment variables
	"strconv"  // strconv converts strings to other types
	"time"

	"github.com/joho/godotenv"
)

// Config holds all runtime configuration values.  Each field corresponds to
// an environment variable.  The types reflect how the values are used in
// the application: strings for identifiers and secrets, ints for durations and costs.
type Config struct {
	Env            string // application environment (e.g. "dev", "prod")
	Port           string // HTTP port to listen on
	LogLevel       string // zap level name
	DBUser         string // database username
	DBPass         string // database password (optional)
	DBHost         string // database host address
	DBPort         string // database port number
	DBName         string // database name
	JWTSecret      string // secret used to sign JWTs
	AccessTTLMin   int    // access token time‑to‑live in minutes
	RefreshTTLDays int    // refresh token time‑to‑live in days
	BcryptCost     int    // bcrypt cost for password hashing

	RabbitURL       string // AMQP URL; empty disables publishing and consumers
	BookingExchange string // topic exchange for booking notifications
	PaymentExchange string // topic exchange carrying inbound payment events
	NotifyConsumer  bool   // run the bundled notification sink
	PaymentConsumer bool   // consume payment events from PaymentExchange
	NotifyLogDir    string // directory of notifications.log

	StripeWebhookSecret string // empty disables the webhook route

	ReminderHours     string        // lead times such as "24,2"
	HoldSweepInterval time.Duration // 0 disables the periodic sweep
	WorkerConcurrency int           // asynq worker goroutines
	TasksEnabled      bool          // run reminder and sweep tasks on Redis
}

// Load reads configuration values from environment variables and returns a
// Config.  A .env file in the working directory is read first when present;
// variables already set in the environment win.  Required variables are
// enforced by must() and missing values cause the program to exit with a
// fatal log message.
func Load() Config {
	_ = godotenv.Load() // optional; absent in containers
	return Config{
		Env:            must("APP_ENV"),             // environment (dev/test/prod)
		Port:           must("APP_PORT"),            // port to bind the HTTP server
		LogLevel:       getenv("LOG_LEVEL", "info"),
		DBUser:         must("DB_USER"),             // database user
		DBPass:         os.Getenv("DB_PASS"),        // database password (empty allowed)
		DBHost:         must("DB_HOST"),             // database host
		DBPort:         must("DB_PORT"),             // database port
		DBName:         must("DB_NAME"),             // database name
		JWTSecret:      must("JWT_SECRET"),          // secret used for signing JWTs
		AccessTTLMin:   mustInt("ACCESS_TOKEN_TTL_MIN"),   // TTL for access tokens in minutes
		RefreshTTLDays: mustInt("REFRESH_TOKEN_TTL_DAYS"), // TTL for refresh tokens in days
		BcryptCost:     mustInt("BCRYPT_COST"),      // bcrypt cost factor

		RabbitURL:       os.Getenv("RABBITMQ_URL"),
		BookingExchange: getenv("BOOKING_EXCHANGE", "booking.events"),
		PaymentExchange: getenv("PAYMENT_EXCHANGE", "payment.events"),
		NotifyConsumer:  envBool("NOTIFY_CONSUMER_ENABLED", true),
		PaymentConsumer: envBool("PAYMENT_CONSUMER_ENABLED", false),
		NotifyLogDir:    getenv("NOTIFICATION_LOG_DIR", "logs"),

		StripeWebhookSecret: os.Getenv("STRIPE_WEBHOOK_SECRET"),

		ReminderHours:     getenv("REMINDER_HOURS", "24,2"),
		HoldSweepInterval: envDur("HOLD_SWEEP_INTERVAL", time.Minute),
		WorkerConcurrency: envInt("WORKER_CONCURRENCY", 5),
		TasksEnabled:      envBool("TASKS_ENABLED", true),
	}
}

// must retrieves the value of a required environment variable.  If the
// variable is unset or empty, the application logs a fatal error and exits.
func must(key string) string {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		log.Fatalf("missing required env var: %s", key)
	}
	return v
}

// mustInt is like must() but converts the retrieved string into an integer.
// If conversion fails, the application logs a fatal error and exits.
func mustInt(key string) int {
	s := must(key)
	n, err := strconv.Atoi(s)
	if err != nil {
		log.Fatalf("invalid int for %s: %q", key, s)
	}
	return n
}
