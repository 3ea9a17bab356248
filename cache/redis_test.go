package cache

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/micromeda/micromeda-server/config"
)

func TestReconnectKeepsReplacedClientUsable(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()

	previousURL := config.GetString("REDIS_URL")
	config.Set("REDIS_URL", "redis://"+mr.Addr()+"/0")
	defer config.Set("REDIS_URL", previousURL)

	previous := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer previous.Close()
	SetRedis(previous)
	defer SetRedis(nil)

	redisInstance.Lock()
	redisInstance.lastConnect = time.Time{}
	redisInstance.Unlock()

	ctx := context.Background()
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				_ = redisInstance.Client().Ping(ctx).Err()
			}
		}()
	}
	initializeRedis(ctx)
	wg.Wait()

	current := redisInstance.Client()
	require.NotNil(t, current)
	assert.NotSame(t, previous, current)
	defer current.Close()

	// Commands already holding the old client still succeed.
	assert.NoError(t, previous.Ping(ctx).Err())
	assert.NoError(t, current.Ping(ctx).Err())
}

func TestGetRedisNotInitialized(t *testing.T) {
	SetRedis(nil)
	_, err := GetRedis()
	assert.Error(t, err)
}
