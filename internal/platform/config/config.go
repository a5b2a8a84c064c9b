package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Server captures process level configuration.
type Server struct {
	Addr        string
	Environment string
	LogLevel    string
	LogFormat   string
	DatabaseURL string

	Redis     RedisConfig
	Kafka     KafkaConfig
	Stripe    StripeConfig
	Operator  OperatorConfig
	RateLimit RateLimitConfig

	CalWebhookSecret string
	ReviewCacheTTL   time.Duration
	// proxies whose X-Forwarded-For is believed; empty means none
	TrustedProxies []string
}

// RedisConfig configures the optional review cache.
type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// KafkaConfig configures the audit outbox relay. No brokers disables it.
type KafkaConfig struct {
	Brokers      []string
	AuditTopic   string
	PollInterval time.Duration
	BatchSize    int
}

// StripeConfig configures checkout verification.
type StripeConfig struct {
	SecretKey     string
	WebhookSecret string
}

// OperatorConfig configures back-office JWTs.
type OperatorConfig struct {
	SigningKey string
	Issuer     string
	Audience   string
	TokenTTL   time.Duration
}

// RateLimitConfig budgets public routes per client IP, per minute.
type RateLimitConfig struct {
	Disabled          bool
	TokenPerMinute    int
	CheckoutPerMinute int
}

// Intake configures the intake client used by reviewctl.
type Intake struct {
	ServerURL        string
	AutosaveInterval time.Duration
}

// DefaultAutosaveInterval is how often an open intake draft is flushed.
const DefaultAutosaveInterval = 30 * time.Second

// IsProduction reports whether the process runs with production defaults.
func (s Server) IsProduction() bool {
	return s.Environment == "production"
}

// FromEnv builds a Server config from environment variables so main stays lean.
// A .env file in the working directory is loaded first when present; real
// environment variables win over it.
func FromEnv() Server {
	_ = godotenv.Load()

	env := getString("EXPATDESK_ENV", "development")
	defaultFormat := "console"
	if env == "production" {
		defaultFormat = "json"
	}

	signingKey := os.Getenv("OPERATOR_JWT_SIGNING_KEY")
	if signingKey == "" && env != "production" {
		// Use a default for development - must be overridden in production
		signingKey = "dev-operator-key-change-in-production"
	}

	return Server{
		Addr:        getString("EXPATDESK_ADDR", ":8080"),
		Environment: env,
		LogLevel:    getString("LOG_LEVEL", "info"),
		LogFormat:   getString("LOG_FORMAT", defaultFormat),
		DatabaseURL: os.Getenv("DATABASE_URL"),
		Redis: RedisConfig{
			URL:          os.Getenv("REDIS_URL"),
			PoolSize:     getInt("REDIS_POOL_SIZE", 10),
			MinIdleConns: getInt("REDIS_MIN_IDLE_CONNS", 2),
			DialTimeout:  getDuration("REDIS_DIAL_TIMEOUT", 2*time.Second),
			ReadTimeout:  getDuration("REDIS_READ_TIMEOUT", 500*time.Millisecond),
			WriteTimeout: getDuration("REDIS_WRITE_TIMEOUT", 500*time.Millisecond),
		},
		Kafka: KafkaConfig{
			Brokers:      getList("KAFKA_BROKERS"),
			AuditTopic:   getString("KAFKA_AUDIT_TOPIC", "expatdesk.audit"),
			PollInterval: getDuration("AUDIT_RELAY_INTERVAL", 2*time.Second),
			BatchSize:    getInt("AUDIT_RELAY_BATCH", 100),
		},
		Stripe: StripeConfig{
			SecretKey:     os.Getenv("STRIPE_SECRET_KEY"),
			WebhookSecret: os.Getenv("STRIPE_WEBHOOK_SECRET"),
		},
		Operator: OperatorConfig{
			SigningKey: signingKey,
			Issuer:     getString("OPERATOR_JWT_ISSUER", "expatdesk"),
			Audience:   getString("OPERATOR_JWT_AUDIENCE", "expatdesk-operators"),
			TokenTTL:   getDuration("OPERATOR_JWT_TTL", 8*time.Hour),
		},
		RateLimit: RateLimitConfig{
			Disabled:          getBool("RATE_LIMIT_DISABLED", false),
			TokenPerMinute:    getInt("RATE_LIMIT_TOKEN_PER_MIN", 120),
			CheckoutPerMinute: getInt("RATE_LIMIT_CHECKOUT_PER_MIN", 30),
		},
		CalWebhookSecret: os.Getenv("CAL_WEBHOOK_SECRET"),
		ReviewCacheTTL:   getDuration("REVIEW_CACHE_TTL", 5*time.Minute),
		TrustedProxies:   getList("TRUSTED_PROXIES"),
	}
}

// IntakeFromEnv reads the intake client settings.
func IntakeFromEnv() Intake {
	_ = godotenv.Load()
	return Intake{
		ServerURL:        getString("EXPATDESK_URL", "http://localhost:8080"),
		AutosaveInterval: getDuration("AUTOSAVE_INTERVAL", DefaultAutosaveInterval),
	}
}

func getString(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func getInt(key string, fallback int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func getBool(key string, fallback bool) bool {
	v, err := strconv.ParseBool(strings.TrimSpace(os.Getenv(key)))
	if err != nil {
		return fallback
	}
	return v
}

func getDuration(key string, fallback time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}

func getList(key string) []string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return nil
	}
	return splitList(v)
}

// splitList splits a comma separated value, dropping blanks and repeats.
func splitList(v string) []string {
	var out []string
	seen := map[string]bool{}
	for _, part := range strings.Split(v, ",") {
		part = strings.TrimSpace(part)
		if part == "" || seen[part] {
			continue
		}
		seen[part] = true
		out = append(out, part)
	}
	return out
}
