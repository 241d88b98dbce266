package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("JWT_SECRET", "")

	cfg := LoadConfig()

	assert.Equal(t, 8080, cfg.ServerPort)
	assert.Equal(t, 7*24*time.Hour, cfg.Auth.TokenTTL)
	assert.Equal(t, 10, cfg.Auth.BcryptCost)
	assert.Equal(t, 5*time.Second, cfg.Database.QueryTimeout)
	assert.Equal(t, MQBackendNone, cfg.MQ.Backend)
	assert.Empty(t, cfg.Auth.JWTSecret)
	assert.False(t, cfg.TrustProxyHeaders)
}

func TestLoadConfigOverrides(t *testing.T) {
	t.Setenv("SERVER_PORT", "9090")
	t.Setenv("JWT_SECRET", "  0123456789abcdef0123456789abcdef  ")
	t.Setenv("JWT_TTL", "48h")
	t.Setenv("DB_QUERY_TIMEOUT", "2")
	t.Setenv("DB_SSL", "true")
	t.Setenv("BCRYPT_COST", "12")
	t.Setenv("MQ_BACKEND", "RabbitMQ")
	t.Setenv("REDIS_ADDR", "127.0.0.1:6379")
	t.Setenv("TRUST_PROXY_HEADERS", "true")

	cfg := LoadConfig()

	assert.Equal(t, 9090, cfg.ServerPort)
	assert.Equal(t, "0123456789abcdef0123456789abcdef", cfg.Auth.JWTSecret)
	assert.Equal(t, 48*time.Hour, cfg.Auth.TokenTTL)
	assert.Equal(t, 2*time.Second, cfg.Database.QueryTimeout)
	assert.True(t, cfg.Database.UseSSL)
	assert.Equal(t, 12, cfg.Auth.BcryptCost)
	assert.Equal(t, MQBackendRabbitMQ, cfg.MQ.Backend)
	assert.Equal(t, "127.0.0.1:6379", cfg.Redis.Addr)
	assert.True(t, cfg.TrustProxyHeaders)
}

func TestLoadConfigIgnoresMalformedValues(t *testing.T) {
	t.Setenv("SERVER_PORT", "eighty")
	t.Setenv("JWT_TTL", "soon")

	cfg := LoadConfig()

	assert.Equal(t, 8080, cfg.ServerPort)
	assert.Equal(t, 7*24*time.Hour, cfg.Auth.TokenTTL)
}
