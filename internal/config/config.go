package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config contains runtime configuration values.
type Config struct {
	Environment string
	HTTPPort    string
	ServiceName string
	BaseDomain  string

	DatabaseURL    string
	RedisURL       string
	MigrateOnStart bool

	SessionTokenSecret string
	SessionTokenTTL    time.Duration

	DirectoryTTL           time.Duration
	DirectoryLookupTimeout time.Duration

	GoogleClientID     string
	GoogleClientSecret string
	AppleClientID      string
	AppleClientSecret  string
	OAuthStateTTL      time.Duration
	OAuthHTTPTimeout   time.Duration

	// AdminKeyHash is a bcrypt hash of the key required on the /admin surface.
	AdminKeyHash string

	RateLimitFreePerMin       int
	RateLimitPremiumPerMin    int
	RateLimitEnterprisePerMin int

	TelemetryEndpoint    string
	TelemetryInsecure    bool
	CORSAllowedOrigins   []string
	CORSAllowedMethods   []string
	CORSAllowedHeaders   []string
	CORSAllowCredentials bool
}

// Load reads configuration from environment variables with sane defaults.
func Load() (Config, error) {
	cfg := Config{
		Environment: getEnv("APP_ENV", "development"),
		HTTPPort:    getEnv("HTTP_PORT", "8080"),
		ServiceName: getEnv("SERVICE_NAME", "baby-raffle-api"),
		BaseDomain:  getEnv("BASE_DOMAIN", "base2ml.com"),

		DatabaseURL:    os.Getenv("DATABASE_URL"),
		RedisURL:       getEnv("REDIS_URL", "redis://localhost:6379/0"),
		MigrateOnStart: getBool("DB_MIGRATE", true),

		SessionTokenSecret: os.Getenv("SESSION_TOKEN_SECRET"),
		SessionTokenTTL:    getDuration("SESSION_TOKEN_TTL", 12*time.Hour),

		DirectoryTTL:           getDuration("TENANT_DIRECTORY_TTL", 30*time.Second),
		DirectoryLookupTimeout: getDuration("TENANT_DIRECTORY_LOOKUP_TIMEOUT", 2*time.Second),

		GoogleClientID:     os.Getenv("GOOGLE_CLIENT_ID"),
		GoogleClientSecret: os.Getenv("GOOGLE_CLIENT_SECRET"),
		AppleClientID:      os.Getenv("APPLE_CLIENT_ID"),
		AppleClientSecret:  os.Getenv("APPLE_CLIENT_SECRET"),
		OAuthStateTTL:      getDuration("OAUTH_STATE_TTL", 5*time.Minute),
		OAuthHTTPTimeout:   getDuration("OAUTH_HTTP_TIMEOUT", 10*time.Second),

		AdminKeyHash: os.Getenv("ADMIN_KEY_HASH"),

		RateLimitFreePerMin:       getInt("RATE_LIMIT_FREE_RPM", 100),
		RateLimitPremiumPerMin:    getInt("RATE_LIMIT_PREMIUM_RPM", 500),
		RateLimitEnterprisePerMin: getInt("RATE_LIMIT_ENTERPRISE_RPM", 2000),

		TelemetryEndpoint:    os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),
		TelemetryInsecure:    getBool("OTEL_EXPORTER_OTLP_INSECURE", true),
		CORSAllowedOrigins:   getList("CORS_ALLOWED_ORIGINS", []string{"*"}),
		CORSAllowedMethods:   getList("CORS_ALLOWED_METHODS", []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}),
		CORSAllowedHeaders:   getList("CORS_ALLOWED_HEADERS", []string{"Authorization", "Content-Type"}),
		CORSAllowCredentials: getBool("CORS_ALLOW_CREDENTIALS", false),
	}

	if cfg.DatabaseURL == "" {
		return Config{}, fmt.Errorf("DATABASE_URL is required")
	}
	if cfg.SessionTokenSecret == "" {
		return Config{}, fmt.Errorf("SESSION_TOKEN_SECRET is required")
	}
	if len(cfg.SessionTokenSecret) < 32 {
		return Config{}, fmt.Errorf("SESSION_TOKEN_SECRET must be at least 32 bytes")
	}

	return cfg, nil
}

func getEnv(key, def string) string {
	if v, ok := os.LookupEnv(key); ok {
		return v
	}
	return def
}

func getDuration(key string, def time.Duration) time.Duration {
	if v, ok := os.LookupEnv(key); ok {
		d, err := time.ParseDuration(v)
		if err == nil {
			return d
		}
	}
	return def
}

func getInt(key string, def int) int {
	if v, ok := os.LookupEnv(key); ok {
		n, err := strconv.Atoi(v)
		if err == nil {
			return n
		}
	}
	return def
}

func getBool(key string, def bool) bool {
	if v, ok := os.LookupEnv(key); ok {
		switch strings.ToLower(v) {
		case "1", "true", "t", "yes", "y", "on":
			return true
		case "0", "false", "f", "no", "n", "off":
			return false
		}
	}
	return def
}

func getList(key string, def []string) []string {
	if v, ok := os.LookupEnv(key); ok {
		parts := strings.Split(v, ",")
		var cleaned []string
		for _, p := range parts {
			trimmed := strings.TrimSpace(p)
			if trimmed != "" {
				cleaned = append(cleaned, trimmed)
			}
		}
		if len(cleaned) > 0 {
			return cleaned
		}
	}
	return def
}
