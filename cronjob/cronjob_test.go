package cronjob

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/micromeda/micromeda-server/cache"
)

func setupRedis(t *testing.T) *miniredis.Miniredis {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	cache.SetRedis(client)
	return mr
}

func TestWorkRunsJobAndReleasesLock(t *testing.T) {
	mr := setupRedis(t)

	var calls int32
	job := func(ctx context.Context) error {
		atomic.AddInt32(&calls, 1)
		return errors.New("failures are logged")
	}

	assert.True(t, work(job, "test", time.Minute))
	assert.True(t, work(job, "test", time.Minute))
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
	assert.False(t, mr.Exists("micromeda:lock:cronjob:test"))
}

func TestWorkSkipsWhenLocked(t *testing.T) {
	setupRedis(t)

	r, err := cache.GetRedis()
	require.NoError(t, err)
	mutex, err := r.GetLock("cronjob:locked", time.Minute)
	require.NoError(t, err)
	defer mutex.Unlock()

	called := false
	ran := work(func(ctx context.Context) error {
		called = true
		return nil
	}, "locked", time.Minute)

	assert.False(t, ran)
	assert.False(t, called)
}

func TestWorkRecoversPanics(t *testing.T) {
	setupRedis(t)

	assert.NotPanics(t, func() {
		work(func(ctx context.Context) error {
			panic("boom")
		}, "panic", time.Minute)
	})
}

func TestWorkTimesOut(t *testing.T) {
	setupRedis(t)

	start := time.Now()
	ran := work(func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	}, "slow", 50*time.Millisecond)

	assert.True(t, ran)
	assert.Less(t, time.Since(start), 5*time.Second)
}
