package cache

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/micromeda/micromeda-server/common"
	"github.com/micromeda/micromeda-server/config"
	"github.com/micromeda/micromeda-server/logging"
)

// RedisInstance holds the current Redis client. Reconnecting swaps the
// client, so callers fetch it through Client for every use.
type RedisInstance struct {
	sync.RWMutex
	client      redis.UniversalClient
	lastConnect time.Time
}

// A replaced client stays open this long for commands already using it.
const replacedClientGracePeriod = 30 * time.Second

// Client returns the current Redis client.
func (r *RedisInstance) Client() redis.UniversalClient {
	r.RLock()
	defer r.RUnlock()
	return r.client
}

var redisInstance = &RedisInstance{}
var redisRootCtx = context.Background()

// Initialize the Redis client. REDIS_URL names a single server; with
// REDIS_SENTINEL_MASTER its host is used as sentinel, and REDIS_CLUSTER_ADDRS
// switches to a cluster client.
func initializeRedis(ctx context.Context) {
	redisInstance.Lock()
	defer redisInstance.Unlock()

	// Don't hammer the server when a lot of callers find it unreachable.
	if redisInstance.client != nil && time.Since(redisInstance.lastConnect) <= 5*time.Second {
		return
	}

	options, err := universalOptions()
	if err != nil {
		logging.Error(ctx, "invalid redis configuration: %v", err)
		panic(err)
	}

	if previous := redisInstance.client; previous != nil {
		time.AfterFunc(replacedClientGracePeriod, func() {
			_ = previous.Close()
		})
	}
	client := redis.NewUniversalClient(options)
	redisInstance.client = client
	redisInstance.lastConnect = time.Now()
	redisRootCtx = ctx

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		logging.Error(ctx, "redis Ping: %v", err)
		return
	}
	logging.Info(ctx, "connected to redis %v", options.Addrs)
}

func universalOptions() (*redis.UniversalOptions, error) {
	options := &redis.UniversalOptions{
		PoolSize:    config.GetInt("REDIS_POOLSIZE"),
		IdleTimeout: config.GetMilliseconds("REDIS_IDLE_TIMEOUT_MS"),
	}

	if cluster := config.GetString("REDIS_CLUSTER_ADDRS"); cluster != "" {
		for _, address := range strings.Split(cluster, ",") {
			if address = strings.TrimSpace(address); address != "" {
				options.Addrs = append(options.Addrs, address)
			}
		}
		options.Password = config.GetString("REDIS_PASSWORD")
		return options, nil
	}

	parsed, err := redis.ParseURL(config.GetString("REDIS_URL"))
	if err != nil {
		return nil, err
	}
	options.Addrs = []string{parsed.Addr}
	options.Username = parsed.Username
	options.Password = parsed.Password
	options.DB = parsed.DB
	options.TLSConfig = parsed.TLSConfig
	options.MasterName = config.GetString("REDIS_SENTINEL_MASTER")
	return options, nil
}

// Finalize Redis connection client.
func finalizeRedis() {
	redisClient := redisInstance.Client()
	if redisClient == nil {
		logging.Error(redisRootCtx, "Redis connection client not initialized")
		return
	}

	if err := redisClient.Close(); err != nil {
		logging.Error(redisRootCtx, "Failed to close Redis connection pool: %v", err)
	}
}

// SetRedis installs a client, used by tests.
func SetRedis(client redis.UniversalClient) {
	redisInstance.Lock()
	defer redisInstance.Unlock()
	redisInstance.client = client
	redisInstance.lastConnect = time.Now()
}

// GetRedis returns the Redis client, reconnecting when the server stopped
// answering.
func GetRedis() (*RedisInstance, error) {
	redisClient := redisInstance.Client()
	if redisClient == nil {
		return nil, common.ErrRedisNotInitialized
	}

	// Re-create the client on DNS or connection errors.
	if err := redisClient.Ping(redisRootCtx).Err(); err != nil {
		logging.Warn(redisRootCtx, "redis ping failed, reconnecting: %v", err)
		initializeRedis(redisRootCtx)
	}
	return redisInstance, nil
}
