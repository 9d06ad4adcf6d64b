package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/v2"
)

// MarkupTier mirrors one quantity tier of the markup engine configuration.
// Tiers are loaded from MARKUP_TIERS as a JSON array and are expected to be
// non-overlapping and sorted by MinQty ascending.
type MarkupTier struct {
	MinQty     int     `json:"minQty"`
	MaxQty     int     `json:"maxQty"` // 0 means open-ended
	Multiplier float64 `json:"multiplier"`
	FloorPct   float64 `json:"floorPct"`
}

// Config holds application configuration loaded from the environment.
type Config struct {
	AppEnv      string
	Port        string
	DatabaseURL string
	RedisURL    string

	MigrateOnStart bool
	MigrationsPath string

	JWTSecret          string
	CORSAllowedOrigins []string

	Currency  string
	StoreCode string

	VendorBaseURL     string
	VendorTimeout     time.Duration
	VendorMaxAttempts int

	StripeSecretKey      string
	StripeWebhookSecret  string
	StripeWebhookTolerance time.Duration
	CheckoutSuccessURL   string
	CheckoutCancelURL    string

	WebhookReplayTTL time.Duration
	IdempotencyTTL   time.Duration
	WebhookRatePerMin int
	CartWriteRatePerMin int

	MarkupTiers             []MarkupTier
	MarkupDefaultMultiplier float64
	MarkupMarginFloorPct    float64
	MarkupApplyPerUnit      bool
	MarkupCharmPricing      bool

	LoyaltyEarnPerUnit      int
	LoyaltyRedeemMinPoints  int
	LoyaltyRedeemIncrement  int
	LoyaltyCentsPer100Points int

	TaxFetchTimeout time.Duration
}

// Load reads configuration from environment variables and optional .env files.
func Load() (*Config, error) {
	_ = godotenv.Load()

	k := koanf.New(".")
	if err := k.Load(env.Provider("", ".", func(s string) string { return s }), nil); err != nil {
		return nil, fmt.Errorf("load env: %w", err)
	}

	cfg := &Config{
		AppEnv:         valueOrDefault(k.String("APP_ENV"), "development"),
		Port:           valueOrDefault(k.String("PORT"), "8080"),
		DatabaseURL:    k.String("DATABASE_URL"),
		RedisURL:       k.String("REDIS_URL"),
		MigrateOnStart: parseBool(k.String("DB_MIGRATE_ON_START")),
		MigrationsPath: valueOrDefault(k.String("DB_MIGRATIONS_PATH"), "db/migrations"),

		JWTSecret:          k.String("JWT_SECRET"),
		CORSAllowedOrigins: splitAndTrim(k.String("CORS_ALLOWED_ORIGINS")),

		Currency:  valueOrDefault(strings.ToUpper(k.String("CURRENCY_CODE")), "USD"),
		StoreCode: valueOrDefault(k.String("VENDOR_STORE_CODE"), "us"),

		VendorBaseURL:     k.String("VENDOR_BASE_URL"),
		VendorTimeout:     parseDuration(k.String("VENDOR_TIMEOUT"), "10s"),
		VendorMaxAttempts: intOrDefault(k.Int("VENDOR_MAX_ATTEMPTS"), 3),

		StripeSecretKey:        k.String("STRIPE_SECRET_KEY"),
		StripeWebhookSecret:    k.String("STRIPE_WEBHOOK_SECRET"),
		StripeWebhookTolerance: parseDuration(k.String("STRIPE_WEBHOOK_TOLERANCE"), "5m"),
		CheckoutSuccessURL:     k.String("CHECKOUT_SUCCESS_URL"),
		CheckoutCancelURL:      k.String("CHECKOUT_CANCEL_URL"),

		WebhookReplayTTL:    parseDuration(k.String("WEBHOOK_REPLAY_TTL"), "24h"),
		IdempotencyTTL:      parseDuration(k.String("IDEMPOTENCY_TTL"), "15m"),
		WebhookRatePerMin:   intOrDefault(k.Int("WEBHOOK_RATE_PER_MIN"), 120),
		CartWriteRatePerMin: intOrDefault(k.Int("CART_WRITE_RATE_PER_MIN"), 60),

		MarkupDefaultMultiplier: floatOrDefault(k.Float64("MARKUP_DEFAULT_MULTIPLIER"), 2.0),
		MarkupMarginFloorPct:    k.Float64("MARKUP_MARGIN_FLOOR_PCT"),
		MarkupApplyPerUnit:      parseBool(k.String("MARKUP_APPLY_PER_UNIT")),
		MarkupCharmPricing:      parseBoolDefault(k.String("MARKUP_CHARM_PRICING"), true),

		LoyaltyEarnPerUnit:       intOrDefault(k.Int("LOYALTY_EARN_PER_UNIT"), 1),
		LoyaltyRedeemMinPoints:   intOrDefault(k.Int("LOYALTY_REDEEM_MIN_POINTS"), 500),
		LoyaltyRedeemIncrement:   intOrDefault(k.Int("LOYALTY_REDEEM_INCREMENT"), 100),
		LoyaltyCentsPer100Points: intOrDefault(k.Int("LOYALTY_CENTS_PER_100_POINTS"), 100),

		TaxFetchTimeout: parseDuration(k.String("TAX_FETCH_TIMEOUT"), "3s"),
	}

	if tiersRaw := strings.TrimSpace(k.String("MARKUP_TIERS")); tiersRaw != "" {
		if err := json.Unmarshal([]byte(tiersRaw), &cfg.MarkupTiers); err != nil {
			return nil, fmt.Errorf("parse MARKUP_TIERS: %w", err)
		}
	}
	if cfg.MarkupMarginFloorPct < 0 || cfg.MarkupMarginFloorPct > 0.95 {
		return nil, fmt.Errorf("MARKUP_MARGIN_FLOOR_PCT must be within [0, 0.95], got %v", cfg.MarkupMarginFloorPct)
	}

	if cfg.DatabaseURL == "" {
		return nil, errors.New("DATABASE_URL is required")
	}
	if cfg.RedisURL == "" {
		return nil, errors.New("REDIS_URL is required")
	}
	if cfg.StripeWebhookSecret == "" {
		return nil, errors.New("STRIPE_WEBHOOK_SECRET is required")
	}

	return cfg, nil
}

// HTTPAddr returns the address the HTTP server should bind to.
func (c *Config) HTTPAddr() string {
	port := strings.TrimSpace(c.Port)
	if port == "" {
		port = "8080"
	}
	if strings.HasPrefix(port, ":") {
		return port
	}
	return ":" + port
}

func splitAndTrim(value string) []string {
	if value == "" {
		return nil
	}
	parts := strings.Split(value, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}

func valueOrDefault(value, fallback string) string {
	if strings.TrimSpace(value) != "" {
		return value
	}
	return fallback
}

func intOrDefault(value, fallback int) int {
	if value == 0 {
		return fallback
	}
	return value
}

func floatOrDefault(value, fallback float64) float64 {
	if value == 0 {
		return fallback
	}
	return value
}

func parseDuration(value, fallback string) time.Duration {
	base := strings.TrimSpace(value)
	if base == "" {
		base = fallback
	}
	d, err := time.ParseDuration(base)
	if err != nil {
		d, _ = time.ParseDuration(fallback)
	}
	return d
}

func parseBool(value string) bool {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "1", "true", "yes", "on":
		return true
	default:
		return false
	}
}

func parseBoolDefault(value string, fallback bool) bool {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return fallback
	}
}
