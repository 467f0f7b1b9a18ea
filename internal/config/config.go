package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"
)

// ErrMissingDatabaseURL is returned by Validate when DATABASE_URL is unset.
var ErrMissingDatabaseURL = errors.New("DATABASE_URL is empty")

// Config holds process-wide settings for the lots backend.
type Config struct {
	Port        string
	DatabaseURL string
	// DBSchema, when set, is created on startup and placed first on the search_path.
	DBSchema string
	LogMode  string

	// DefaultState fills state_province for parcels that carry none.
	DefaultState string
	SiteName     string
	NearbyMiles  float64

	AllowedOrigins []string

	RateLimitRPS   float64
	RateLimitBurst int

	RedisAddr      string
	RedisPassword  string
	RedisDB        int
	ExportCacheTTL time.Duration

	TraceStdout bool
}

const (
	DefaultPort         = "5050"
	DefaultStateValue   = "CA"
	DefaultSiteName     = "Living Lots"
	DefaultNearbyMiles  = 0.1
	DefaultExportTTL    = 5 * time.Minute
	DefaultRateLimitRPS = 5
)

var defaultOrigins = []string{
	"http://localhost:5173",
	"https://empowered.vote",
}

// LoadFromEnv loads configuration from environment variables.
//
// Environment variables:
//   - PORT (default: 5050)
//   - DATABASE_URL: Postgres DSN
//   - DB_SCHEMA: optional schema to create and use
//   - LOG_MODE: "production" for JSON logs, anything else for development
//   - LOTS_DEFAULT_STATE (default: CA)
//   - LOTS_SITE_NAME (default: Living Lots), used in export filenames
//   - NEARBY_MILES (default: 0.1), radius of the lot detail GeoJSON
//   - CORS_ALLOWED_ORIGINS: comma separated list
//   - RATE_LIMIT_RPS / RATE_LIMIT_BURST: limits for write endpoints, 0 disables
//   - REDIS_ADDR / REDIS_PASSWORD / REDIS_DB: export cache, disabled when REDIS_ADDR is empty
//   - EXPORT_CACHE_TTL_SECONDS (default: 300)
//   - OTEL_TRACES_STDOUT: "true" to print spans to stdout
func LoadFromEnv() Config {
	cfg := Config{
		Port:           envOr("PORT", DefaultPort),
		DatabaseURL:    strings.TrimSpace(os.Getenv("DATABASE_URL")),
		DBSchema:       strings.TrimSpace(os.Getenv("DB_SCHEMA")),
		LogMode:        envOr("LOG_MODE", "development"),
		DefaultState:   strings.ToUpper(envOr("LOTS_DEFAULT_STATE", DefaultStateValue)),
		SiteName:       envOr("LOTS_SITE_NAME", DefaultSiteName),
		NearbyMiles:    envFloat("NEARBY_MILES", DefaultNearbyMiles),
		AllowedOrigins: splitList(os.Getenv("CORS_ALLOWED_ORIGINS")),
		RateLimitRPS:   envFloat("RATE_LIMIT_RPS", DefaultRateLimitRPS),
		RedisAddr:      strings.TrimSpace(os.Getenv("REDIS_ADDR")),
		RedisPassword:  os.Getenv("REDIS_PASSWORD"),
		RedisDB:        envInt("REDIS_DB", 0),
		ExportCacheTTL: time.Duration(envInt("EXPORT_CACHE_TTL_SECONDS", int(DefaultExportTTL/time.Second))) * time.Second,
		TraceStdout:    envBool("OTEL_TRACES_STDOUT"),
	}
	cfg.RateLimitBurst = envInt("RATE_LIMIT_BURST", int(cfg.RateLimitRPS)*2)
	if len(cfg.AllowedOrigins) == 0 {
		cfg.AllowedOrigins = append([]string(nil), defaultOrigins...)
	}
	return cfg
}

// Validate checks the settings needed to serve traffic.
func (c Config) Validate() error {
	if c.DatabaseURL == "" {
		return ErrMissingDatabaseURL
	}
	return nil
}

func envOr(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func envInt(key string, def int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func envFloat(key string, def float64) float64 {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return def
	}
	return f
}

func envBool(key string) bool {
	switch strings.ToLower(strings.TrimSpace(os.Getenv(key))) {
	case "1", "true", "yes", "on":
		return true
	}
	return false
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
