package cache

import (
	"fmt"
	"time"

	"github.com/go-redsync/redsync/v4"
	goredis "github.com/go-redsync/redsync/v4/redis/goredis/v8"

	"github.com/micromeda/micromeda-server/common"
)

const lockPrefix = "micromeda:lock:"

// GetLock takes a non-blocking distributed lock. The returned mutex must be
// unlocked by the caller; the lock also expires after ttl.
func (r *RedisInstance) GetLock(name string, ttl time.Duration) (*redsync.Mutex, error) {
	pool := goredis.NewPool(r.Client())

	mutex := redsync.New(pool).NewMutex(lockPrefix+name,
		redsync.WithTries(1),
		redsync.WithExpiry(ttl))
	if err := mutex.Lock(); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", common.ErrLockNotAcquired, name, err)
	}
	return mutex, nil
}
