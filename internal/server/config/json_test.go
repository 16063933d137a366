package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTempJSON(t *testing.T, dir, name string, data map[string]any) string {
	t.Helper()
	if dir == "" {
		dir = t.TempDir()
	}
	if name == "" {
		name = "cfg.json"
	}
	path := filepath.Join(dir, name)
	b, err := json.Marshal(data)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, b, 0o600))
	return path
}

func Test_parseJson_SourcesAndPrecedence(t *testing.T) {
	origArgs := os.Args
	t.Cleanup(func() { os.Args = origArgs })

	dir := t.TempDir()
	pathFlag := writeTempJSON(t, dir, "flag.json", map[string]any{
		"port":               9000,
		"db_host":            "pg",
		"jwt_secret":         "my_secret_key",
		"token_ttl":          "1m",
		"cache_ttl":          60000000000,
		"rabbitmq_exchanges": []string{"x1"},
		"node_id":            0,
	})

	t.Run("loads from json", func(t *testing.T) {
		os.Args = []string{"testbin", "-config", pathFlag}

		cfg := &Config{}
		cfg.LoadDefaults()
		parseJson(cfg)

		assert.Equal(t, 9000, cfg.Port)
		assert.Equal(t, "pg", cfg.DBHost)
		assert.Equal(t, "my_secret_key", cfg.JWTSecret)
		assert.Equal(t, time.Minute, cfg.TokenTTL)
		assert.Equal(t, time.Minute, cfg.CacheTTL)
		assert.Equal(t, []string{"x1"}, cfg.RabbitMQExchanges)
		assert.Equal(t, int64(0), cfg.NodeID)
		// absent keys keep defaults
		assert.Equal(t, "admin", cfg.RabbitMQUser)
		assert.Equal(t, 5*time.Second, cfg.ReadyInterval)
	})

	t.Run("no CONFIG and no flags → no changes", func(t *testing.T) {
		os.Args = []string{"testbin"}

		cfg := &Config{
			Port:      1234,
			JWTSecret: "key",
			TokenTTL:  2 * time.Minute,
		}
		parseJson(cfg)

		assert.Equal(t, 1234, cfg.Port)
		assert.Equal(t, "key", cfg.JWTSecret)
		assert.Equal(t, 2*time.Minute, cfg.TokenTTL)
	})

	t.Run("invalid JSON → panics", func(t *testing.T) {
		bad := filepath.Join(dir, "bad.json")
		require.NoError(t, os.WriteFile(bad, []byte(`{ this is not valid json`), 0o600))

		os.Args = []string{"testbin", "-config", bad}

		cfg := &Config{}
		require.Panics(t, func() { parseJson(cfg) })
	})

	t.Run("missing file → panics", func(t *testing.T) {
		os.Args = []string{"testbin", "-c", filepath.Join(dir, "nope.json")}

		cfg := &Config{}
		require.Panics(t, func() { parseJson(cfg) })
	})
}
