package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDefaults(t *testing.T) {
	assert.Equal(t, "5000", GetString("SERVER_LISTEN_PORT"))
	assert.Equal(t, 3600*time.Second, GetSeconds("RESULTS_CACHE_TTL_SECONDS"))
	assert.False(t, GetBool("DATABASE_ENABLED"))
}

func TestEnvironmentOverridesDefault(t *testing.T) {
	t.Setenv("REDIS_URL", "redis://redis:6379/0")
	assert.Equal(t, "redis://redis:6379/0", GetString("REDIS_URL"))
}

func TestGetMilliseconds(t *testing.T) {
	Set("SERVER_SHUTDOWN_GRACE_PERIOD_MS", 1500)
	defer Set("SERVER_SHUTDOWN_GRACE_PERIOD_MS", 10000)

	assert.Equal(t, 1500*time.Millisecond, GetMilliseconds("SERVER_SHUTDOWN_GRACE_PERIOD_MS"))
	assert.Equal(t, uint(4), GetUint("LOG_LEVEL"))
}
