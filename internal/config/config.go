package config

import (
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	// Application
	AppName      string
	AppEnv       string
	AppURL       string
	Port         string
	SupportEmail string
	CORSOrigins  []string

	// Server timeouts
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration

	// Database (optional driver switch via ENV, default: sqlite)
	DBDriver     string
	DBConnection string

	// Security
	JWTSecret                string
	JWTExpiry                time.Duration
	TokenEmailVerifyExpiry   time.Duration
	TokenPasswordResetExpiry time.Duration
	TokenEmailChangeExpiry   time.Duration
	TokenMagicLinkExpiry     time.Duration
	RateLimitRPS             float64
	RateLimitBurst           int

	// OAuth (login + calendar connections)
	GoogleClientID        string
	GoogleClientSecret    string
	GitHubClientID        string
	GitHubClientSecret    string
	MicrosoftClientID     string
	MicrosoftClientSecret string

	// Email
	EmailFrom    string
	ResendAPIKey string

	// Payment
	PaymentProvider string // "polar", "stripe" or "none"
	// Payment - Polar
	PolarAPIKey                  string
	PolarWebhookSecret           string
	PolarSandboxMode             bool
	PolarProductIDPremiumMonthly string
	PolarProductIDPremiumYearly  string
	PolarProductIDTeamMonthly    string
	PolarProductIDTeamYearly     string
	// Payment - Stripe
	StripeSecretKey             string
	StripeWebhookSecret         string
	StripePriceIDPremiumMonthly string
	StripePriceIDPremiumYearly  string
	StripePriceIDTeamMonthly    string
	StripePriceIDTeamYearly     string

	// Realtime (Kafka is optional; without brokers events stay in-process)
	KafkaBrokers  []string
	RealtimeTopic string

	// Cache (Redis is optional; without it an in-memory store is used)
	RedisURL string

	// i18n
	DefaultLocale string
	I18nCacheTTL  time.Duration

	// Scheduler
	AchievementSchedule string
	MaintenanceSchedule string

	// Observability (optional)
	SentryDSN string

	// Storage (S3-compatible: MinIO, AWS S3, Cloudflare R2, DigitalOcean Spaces, etc.)
	S3Region               string
	S3Bucket               string
	S3AccessKey            string
	S3SecretKey            string
	S3Endpoint             string        // Optional: for S3-compatible services
	S3PresignExpiryPublic  time.Duration // avatars
	S3PresignExpiryPrivate time.Duration // data exports
}

func Load() *Config {
	// Load .env file if it exists
	err := godotenv.Load()
	if err != nil {
		slog.Info("no .env file found, using environment variables")
	}

	cfg := &Config{
		// Application
		AppName:      envString("APP_NAME", "Thrive"),
		AppEnv:       envRequired("APP_ENV"), // 'development' or 'production'
		AppURL:       envRequired("APP_URL"), // base URL for email links and OAuth redirects
		Port:         envString("PORT", "8090"),
		SupportEmail: envString("SUPPORT_EMAIL", "hello@example.com"),
		CORSOrigins:  envList("CORS_ORIGINS", nil),

		ReadTimeout:     envDuration("HTTP_READ_TIMEOUT", 15*time.Second),
		WriteTimeout:    envDuration("HTTP_WRITE_TIMEOUT", 0), // SSE streams stay open
		IdleTimeout:     envDuration("HTTP_IDLE_TIMEOUT", 60*time.Second),
		ShutdownTimeout: envDuration("HTTP_SHUTDOWN_TIMEOUT", 10*time.Second),

		// Database
		DBDriver:     envString("DB_DRIVER", "sqlite"),
		DBConnection: envString("DB_CONNECTION", "./data/thrive.db?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)"),

		// Security
		JWTSecret:                envRequired("JWT_SECRET"),
		JWTExpiry:                envDuration("JWT_EXPIRY", 168*time.Hour),
		TokenEmailVerifyExpiry:   envDuration("TOKEN_EMAIL_VERIFY_EXPIRY", 24*time.Hour),
		TokenPasswordResetExpiry: envDuration("TOKEN_PASSWORD_RESET_EXPIRY", 1*time.Hour),
		TokenEmailChangeExpiry:   envDuration("TOKEN_EMAIL_CHANGE_EXPIRY", 24*time.Hour),
		TokenMagicLinkExpiry:     envDuration("TOKEN_MAGIC_LINK_EXPIRY", 10*time.Minute),
		RateLimitRPS:             envFloat("RATE_LIMIT_RPS", 10),
		RateLimitBurst:           envInt("RATE_LIMIT_BURST", 20),

		// OAuth
		GoogleClientID:        envString("GOOGLE_CLIENT_ID", ""),
		GoogleClientSecret:    envString("GOOGLE_CLIENT_SECRET", ""),
		GitHubClientID:        envString("GITHUB_CLIENT_ID", ""),
		GitHubClientSecret:    envString("GITHUB_CLIENT_SECRET", ""),
		MicrosoftClientID:     envString("MICROSOFT_CLIENT_ID", ""),
		MicrosoftClientSecret: envString("MICROSOFT_CLIENT_SECRET", ""),

		// Email (RESEND_API_KEY optional in development, required in production)
		EmailFrom:    envString("EMAIL_FROM", "noreply@example.com"),
		ResendAPIKey: envString("RESEND_API_KEY", ""),

		// Payment
		PaymentProvider:              envString("PAYMENT_PROVIDER", "none"),
		PolarAPIKey:                  envString("POLAR_API_KEY", ""),
		PolarWebhookSecret:           envString("POLAR_WEBHOOK_SECRET", ""),
		PolarSandboxMode:             envBool("POLAR_SANDBOX_MODE", envString("APP_ENV", "development") == "development"),
		PolarProductIDPremiumMonthly: envString("POLAR_PRODUCT_ID_PREMIUM_MONTHLY", ""),
		PolarProductIDPremiumYearly:  envString("POLAR_PRODUCT_ID_PREMIUM_YEARLY", ""),
		PolarProductIDTeamMonthly:    envString("POLAR_PRODUCT_ID_TEAM_MONTHLY", ""),
		PolarProductIDTeamYearly:     envString("POLAR_PRODUCT_ID_TEAM_YEARLY", ""),
		StripeSecretKey:              envString("STRIPE_SECRET_KEY", ""),
		StripeWebhookSecret:          envString("STRIPE_WEBHOOK_SECRET", ""),
		StripePriceIDPremiumMonthly:  envString("STRIPE_PRICE_ID_PREMIUM_MONTHLY", ""),
		StripePriceIDPremiumYearly:   envString("STRIPE_PRICE_ID_PREMIUM_YEARLY", ""),
		StripePriceIDTeamMonthly:     envString("STRIPE_PRICE_ID_TEAM_MONTHLY", ""),
		StripePriceIDTeamYearly:      envString("STRIPE_PRICE_ID_TEAM_YEARLY", ""),

		// Realtime
		KafkaBrokers:  envList("KAFKA_BROKERS", nil),
		RealtimeTopic: envString("REALTIME_TOPIC", "thrive.realtime"),

		// Cache
		RedisURL: envString("REDIS_URL", ""),

		// i18n
		DefaultLocale: envString("DEFAULT_LOCALE", "en"),
		I18nCacheTTL:  envDuration("I18N_CACHE_TTL", 1*time.Hour),

		// Scheduler
		AchievementSchedule: envString("ACHIEVEMENT_SCHEDULE", "@every 1h"),
		MaintenanceSchedule: envString("MAINTENANCE_SCHEDULE", "@daily"),

		// Observability
		SentryDSN: envString("SENTRY_DSN", ""),

		// Storage (optional: avatars and exports are disabled without a bucket)
		S3Region:               envString("S3_REGION", "us-east-1"),
		S3Bucket:               envString("S3_BUCKET", ""),
		S3AccessKey:            envString("S3_ACCESS_KEY", ""),
		S3SecretKey:            envString("S3_SECRET_KEY", ""),
		S3Endpoint:             envString("S3_ENDPOINT", ""),
		S3PresignExpiryPublic:  envDuration("S3_PRESIGN_EXPIRY_PUBLIC", 168*time.Hour),
		S3PresignExpiryPrivate: envDuration("S3_PRESIGN_EXPIRY_PRIVATE", 1*time.Hour),
	}

	// Production: validate required services
	if cfg.IsProduction() {
		validateProduction(cfg)
	}

	return cfg
}

// validateProduction ensures all required services are configured for production deployments.
// Development allows some services (like email) to use fallback modes for easier local testing.
func validateProduction(cfg *Config) {
	if cfg.ResendAPIKey == "" {
		slog.Error("production deployment requires RESEND_API_KEY",
			"hint", "set APP_ENV=development for local testing with email log mode")
		os.Exit(1)
	}
}

func envString(key, def string) string {
	value := os.Getenv(key)
	if value == "" {
		value = def
	}
	return value
}

func envBool(key string, def bool) bool {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		slog.Warn("config invalid bool, using default", "key", key, "value", v, "default", def)
		return def
	}
	return b
}

func envInt(key string, def int) int {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		slog.Warn("config invalid int, using default", "key", key, "value", v, "default", def)
		return def
	}
	return n
}

func envFloat(key string, def float64) float64 {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		slog.Warn("config invalid float, using default", "key", key, "value", v, "default", def)
		return def
	}
	return f
}

func envDuration(key string, def time.Duration) time.Duration {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		slog.Warn("config invalid duration, using default", "key", key, "value", v, "default", def)
		return def
	}
	return d
}

// envList splits a comma separated value, dropping empty items.
func envList(key string, def []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	var out []string
	for _, item := range strings.Split(v, ",") {
		item = strings.TrimSpace(item)
		if item != "" {
			out = append(out, item)
		}
	}
	return out
}

func envRequired(key string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	slog.Error("config required env var missing", "key", key)
	os.Exit(1)
	return ""
}

func (c *Config) IsDevelopment() bool {
	return c.AppEnv == "development"
}

func (c *Config) IsProduction() bool {
	return c.AppEnv == "production"
}

func (c *Config) StorageEnabled() bool {
	return c.S3Bucket != "" && c.S3AccessKey != "" && c.S3SecretKey != ""
}

// Sanitized returns a copy of the config with only public/safe fields.
// All secrets, credentials, and sensitive data are excluded.
func (c *Config) Sanitized() *Config {
	return &Config{
		AppName:      c.AppName,
		AppEnv:       c.AppEnv,
		AppURL:       c.AppURL,
		Port:         c.Port,
		SupportEmail: c.SupportEmail,
		CORSOrigins:  c.CORSOrigins,

		EmailFrom: c.EmailFrom,

		GoogleClientID:    c.GoogleClientID,
		GitHubClientID:    c.GitHubClientID,
		MicrosoftClientID: c.MicrosoftClientID,

		PaymentProvider: c.PaymentProvider,
		DefaultLocale:   c.DefaultLocale,

		S3Endpoint: c.S3Endpoint,
	}
}
