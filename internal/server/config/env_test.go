package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseEnv(t *testing.T) {
	t.Setenv("PORT", "8080")
	t.Setenv("DB_USER", "svc")
	t.Setenv("DB_PORT", "6432")
	t.Setenv("REDIS_PASSWORD", "r3dis")
	t.Setenv("RABBITMQ_HOST", "mq")
	t.Setenv("JWT_SECRET", "s3cret")
	t.Setenv("TOKEN_TTL", "2h")
	t.Setenv("NODE_ID", "7")

	c := &Config{}
	c.LoadDefaults()
	require.NotPanics(t, func() { parseEnv(c) })

	assert.Equal(t, 8080, c.Port)
	assert.Equal(t, "svc", c.DBUser)
	assert.Equal(t, 6432, c.DBPort)
	assert.Equal(t, "r3dis", c.RedisPassword)
	assert.Equal(t, "mq", c.RabbitMQHost)
	assert.Equal(t, "s3cret", c.JWTSecret)
	assert.Equal(t, 2*time.Hour, c.TokenTTL)
	assert.Equal(t, int64(7), c.NodeID)
	assert.Equal(t, "auth", c.DBName)
}

func TestParseEnv_InvalidValuePanics(t *testing.T) {
	t.Setenv("REDIS_PORT", "not-a-number")

	c := &Config{}
	require.Panics(t, func() { parseEnv(c) })
}
