package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaults(t *testing.T) {
	c, err := Load(nil)
	require.NoError(t, err)

	assert.Equal(t, "pgx", c.DBDriver)
	assert.Equal(t, "nats://localhost:4224", c.NatsURL)
	assert.Equal(t, 5*time.Minute, c.GracePeriod)
	assert.Equal(t, 2*time.Minute, c.HostTimeout)
	assert.Equal(t, time.Hour, c.Retention)
	assert.Equal(t, 7, c.Engine().HandSize)
	assert.Equal(t, 20, c.Engine().StarterAttempts)
	assert.Equal(t, 15, c.Robots().Count)
	assert.Equal(t, 1500*time.Millisecond, c.Robots().Think)
}

func TestEnvironmentAndFlags(t *testing.T) {
	t.Setenv("DB_DRIVER", "sqlite3")
	t.Setenv("SQLITE_PATH", "/tmp/uno.db")
	t.Setenv("DISCONNECT_GRACE_PERIOD", "30s")
	t.Setenv("HAND_SIZE", "5")

	c, err := Load([]string{"--hand-size", "9", "--unknown", "x"})
	require.NoError(t, err)

	assert.Equal(t, "/tmp/uno.db", c.DSN())
	assert.Equal(t, 30*time.Second, c.Engine().GracePeriod)
	assert.Equal(t, 9, c.HandSize, "flags win over the environment")
}

func TestInvalidValues(t *testing.T) {
	for key, val := range map[string]string{
		"HOST_LOBBY_TIMEOUT": "soon",
		"DB_DRIVER":          "mongo",
		"RATE_LIMIT":         "lots",
	} {
		t.Run(key, func(t *testing.T) {
			t.Setenv(key, val)
			_, err := Load(nil)
			assert.Error(t, err)
		})
	}
}
