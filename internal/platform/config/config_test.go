package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFromEnv(t *testing.T) {
	t.Run("defaults for development", func(t *testing.T) {
		t.Setenv("EXPATDESK_ENV", "")
		t.Setenv("EXPATDESK_ADDR", "")
		t.Setenv("KAFKA_BROKERS", "")
		t.Setenv("REVIEW_CACHE_TTL", "")
		t.Setenv("OPERATOR_JWT_SIGNING_KEY", "")

		cfg := FromEnv()
		assert.Equal(t, ":8080", cfg.Addr)
		assert.Equal(t, "development", cfg.Environment)
		assert.Equal(t, "console", cfg.LogFormat)
		assert.Empty(t, cfg.Kafka.Brokers)
		assert.Equal(t, 5*time.Minute, cfg.ReviewCacheTTL)
		assert.NotEmpty(t, cfg.Operator.SigningKey)
	})

	t.Run("production switches to json and requires an explicit signing key", func(t *testing.T) {
		t.Setenv("EXPATDESK_ENV", "production")
		t.Setenv("OPERATOR_JWT_SIGNING_KEY", "")

		cfg := FromEnv()
		assert.True(t, cfg.IsProduction())
		assert.Equal(t, "json", cfg.LogFormat)
		assert.Empty(t, cfg.Operator.SigningKey)
	})

	t.Run("parses lists and durations", func(t *testing.T) {
		t.Setenv("KAFKA_BROKERS", "kafka-1:9092, kafka-2:9092,,kafka-1:9092")
		t.Setenv("REVIEW_CACHE_TTL", "90s")
		t.Setenv("REDIS_POOL_SIZE", "not-a-number")
		t.Setenv("TRUSTED_PROXIES", "10.0.0.0/8, 192.0.2.254")

		cfg := FromEnv()
		assert.Equal(t, []string{"10.0.0.0/8", "192.0.2.254"}, cfg.TrustedProxies)
		assert.Equal(t, []string{"kafka-1:9092", "kafka-2:9092"}, cfg.Kafka.Brokers)
		assert.Equal(t, 90*time.Second, cfg.ReviewCacheTTL)
		assert.Equal(t, 10, cfg.Redis.PoolSize)
	})

	t.Run("rate limits", func(t *testing.T) {
		t.Setenv("RATE_LIMIT_DISABLED", "true")
		t.Setenv("RATE_LIMIT_TOKEN_PER_MIN", "10")
		t.Setenv("RATE_LIMIT_CHECKOUT_PER_MIN", "")

		cfg := FromEnv()
		assert.True(t, cfg.RateLimit.Disabled)
		assert.Equal(t, 10, cfg.RateLimit.TokenPerMinute)
		assert.Equal(t, 30, cfg.RateLimit.CheckoutPerMinute)
	})
}

func TestIntakeFromEnv(t *testing.T) {
	t.Setenv("AUTOSAVE_INTERVAL", "")
	assert.Equal(t, DefaultAutosaveInterval, IntakeFromEnv().AutosaveInterval)

	t.Setenv("AUTOSAVE_INTERVAL", "5s")
	assert.Equal(t, 5*time.Second, IntakeFromEnv().AutosaveInterval)
}
