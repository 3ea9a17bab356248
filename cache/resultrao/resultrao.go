package resultrao

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/gofrs/uuid"
	lru "github.com/hashicorp/golang-lru"

	"github.com/micromeda/micromeda-server/genprop"
	"github.com/micromeda/micromeda-server/logging"
	"github.com/micromeda/micromeda-server/results"
)

const Result_Key_Prefix = "micromeda:result:"

// NewResultKey returns a random hexadecimal key.
func NewResultKey() (string, error) {
	id, err := uuid.NewV4()
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%x", id.Bytes()), nil
}

// CacheResult serializes the results and stores them for ttl. It returns
// the key identifying them.
func CacheResult(ctx context.Context, r redis.Cmdable, result *results.Results, ttl time.Duration) (string, error) {
	key, err := NewResultKey()
	if err != nil {
		return "", err
	}
	data, err := result.Serialize()
	if err != nil {
		return "", err
	}
	if err := r.Set(ctx, Result_Key_Prefix+key, data, ttl).Err(); err != nil {
		return "", err
	}
	return key, nil
}

// GetResultCachedOrDefault returns the cached results of key. Without a key
// it returns defaultResults, which may be nil. A missing or expired key
// yields nil results and no error.
func GetResultCachedOrDefault(ctx context.Context, r redis.Cmdable, tree *genprop.Tree,
	resultKey string, defaultResults *results.Results) (*results.Results, error) {
	if resultKey == "" {
		return defaultResults, nil
	}

	data, err := r.Get(ctx, Result_Key_Prefix+resultKey).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return results.Deserialize(data, tree)
}

// Source hands out the Redis client to use for the next command.
type Source interface {
	Client() redis.UniversalClient
}

type staticSource struct {
	client redis.UniversalClient
}

func (s staticSource) Client() redis.UniversalClient {
	return s.client
}

// Store caches results in Redis and keeps recently decoded ones in memory.
// Redis stays authoritative for expiry.
type Store struct {
	source  Source
	tree    *genprop.Tree
	ttl     time.Duration
	decoded *lru.ARCCache
}

// NewStore creates a store over a fixed client keeping up to size decoded
// results in memory.
func NewStore(r redis.UniversalClient, tree *genprop.Tree, ttl time.Duration, size int) (*Store, error) {
	return NewStoreWithSource(staticSource{client: r}, tree, ttl, size)
}

// NewStoreWithSource creates a store that asks source for the client on
// every command, so a reconnected client is picked up.
func NewStoreWithSource(source Source, tree *genprop.Tree, ttl time.Duration, size int) (*Store, error) {
	decoded, err := lru.NewARC(size)
	if err != nil {
		return nil, err
	}
	return &Store{source: source, tree: tree, ttl: ttl, decoded: decoded}, nil
}

// Put caches the results and returns their key.
func (s *Store) Put(ctx context.Context, result *results.Results) (string, error) {
	key, err := CacheResult(ctx, s.source.Client(), result, s.ttl)
	if err != nil {
		return "", err
	}
	s.decoded.Add(key, result)
	return key, nil
}

// Get returns the results of key, or defaultResults when key is empty.
func (s *Store) Get(ctx context.Context, resultKey string, defaultResults *results.Results) (*results.Results, error) {
	if resultKey == "" {
		return defaultResults, nil
	}

	if value, ok := s.decoded.Get(resultKey); ok {
		exists, err := s.source.Client().Exists(ctx, Result_Key_Prefix+resultKey).Result()
		if err != nil {
			return nil, err
		}
		if exists == 1 {
			return value.(*results.Results), nil
		}
		s.decoded.Remove(resultKey)
		return nil, nil
	}

	result, err := GetResultCachedOrDefault(ctx, s.source.Client(), s.tree, resultKey, defaultResults)
	if err != nil {
		return nil, err
	}
	if result != nil {
		logging.Debug(ctx, "decoded results %s from redis", resultKey)
		s.decoded.Add(resultKey, result)
	}
	return result, nil
}

// TTL returns how long results stay cached.
func (s *Store) TTL() time.Duration {
	return s.ttl
}
