package config // package config loads application configuration from environment variables

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

// Store drivers accepted in STORE_DRIVER.
const (
	StoreMySQL  = "mysql"
	StoreMemory = "memory"
)

// Config holds the runtime configuration of the booking service.  Each
// field corresponds to an environment variable; per-concern settings
// (Redis, rate limiting, caching, gateway, notifier, showtime catalog) have
// their own loaders.
type Config struct {
	Env         string // application environment (dev/test/prod)
	Port        string // HTTP port to listen on
	StoreDriver string // mysql or memory
	DB          DBConfig // only loaded for the mysql driver
	JWTSecret   string // secret shared with the user service for HS256 tokens
	Booking     BookingConfig
}

// BookingConfig tunes the seat and booking rules.
type BookingConfig struct {
	HoldTTL time.Duration
	// ReassignValidateFirst validates every new seat before any old seat is
	// released.  When false, old seats are released first and stay released
	// if the new seats cannot be claimed.
	ReassignValidateFirst bool
	// CancellationFeePercent is withheld from the refund on cancellation.
	CancellationFeePercent float64
}

// Load reads the configuration from the environment, after merging a .env
// file from the working directory when one exists.  Missing required
// variables abort the process.
func Load() Config {
	_ = godotenv.Load()

	cfg := Config{
		Env:         getenv("APP_ENV", "dev"),
		Port:        getenv("APP_PORT", "8080"),
		StoreDriver: getenv("STORE_DRIVER", StoreMySQL),
		JWTSecret:   must("JWT_SECRET"),
		Booking:     LoadBookingConfig(),
	}
	if cfg.StoreDriver == StoreMySQL {
		cfg.DB = LoadDBConfig()
	}
	return cfg
}

// LoadBookingConfig reads HOLD_TTL, REASSIGN_VALIDATE_FIRST and
// CANCELLATION_FEE_PERCENT.
func LoadBookingConfig() BookingConfig {
	fee := envFloat("CANCELLATION_FEE_PERCENT", 10)
	if fee < 0 || fee > 100 {
		fee = 10
	}
	return BookingConfig{
		HoldTTL:                envDur("HOLD_TTL", 5*time.Minute),
		ReassignValidateFirst:  envBool("REASSIGN_VALIDATE_FIRST", false),
		CancellationFeePercent: fee,
	}
}

// must retrieves the value of a required environment variable.  If the
// variable is unset or empty, the application logs a fatal error and exits.
func must(key string) string {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		logrus.Fatalf("missing required env var: %s", key)
	}
	return v
}

func envFloat(k string, d float64) float64 {
	v := os.Getenv(k)
	if v == "" {
		return d
	}
	if f, err := strconv.ParseFloat(v, 64); err == nil {
		return f
	}
	return d
}
