package resultrao

import (
	"context"
	"errors"
	"os"
	"regexp"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/go-redis/redismock/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/micromeda/micromeda-server/genprop"
	"github.com/micromeda/micromeda-server/results"
)

func loadTestTree(t *testing.T) *genprop.Tree {
	file, err := os.Open("../../genprop/testdata/genomeProperties.txt")
	require.NoError(t, err)
	defer file.Close()

	tree, err := genprop.Parse(file)
	require.NoError(t, err)
	return tree
}

func newTestResults(t *testing.T, tree *genprop.Tree) *results.Results {
	return results.New(tree, []string{"E_coli"}, []results.Match{
		{SampleName: "E_coli", ProteinName: "p1", SignatureAccession: "TIGR00034", ExpectedValue: 1e-10},
	}, nil)
}

func newMiniRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		_ = client.Close()
		mr.Close()
	})
	return mr, client
}

func TestNewResultKey(t *testing.T) {
	key, err := NewResultKey()
	require.NoError(t, err)
	assert.Regexp(t, regexp.MustCompile(`^[0-9a-f]{32}$`), key)

	other, err := NewResultKey()
	require.NoError(t, err)
	assert.NotEqual(t, key, other)
}

func TestCacheResultSetsTTL(t *testing.T) {
	mr, client := newMiniRedis(t)
	tree := loadTestTree(t)
	ctx := context.Background()

	key, err := CacheResult(ctx, client, newTestResults(t, tree), time.Hour)
	require.NoError(t, err)

	assert.True(t, mr.Exists(Result_Key_Prefix+key))
	assert.Equal(t, time.Hour, mr.TTL(Result_Key_Prefix+key))

	cached, err := GetResultCachedOrDefault(ctx, client, tree, key, nil)
	require.NoError(t, err)
	require.NotNil(t, cached)
	assert.Equal(t, []string{"E_coli"}, cached.SampleNames())

	mr.FastForward(time.Hour + time.Second)
	cached, err = GetResultCachedOrDefault(ctx, client, tree, key, nil)
	require.NoError(t, err)
	assert.Nil(t, cached)
}

func TestGetResultCachedOrDefault(t *testing.T) {
	tree := loadTestTree(t)
	defaults := newTestResults(t, tree)
	data, err := defaults.Serialize()
	require.NoError(t, err)
	ctx := context.Background()

	db, mock := redismock.NewClientMock()

	// No key: the defaults, possibly nil, without touching redis.
	result, err := GetResultCachedOrDefault(ctx, db, tree, "", defaults)
	require.NoError(t, err)
	assert.Same(t, defaults, result)
	result, err = GetResultCachedOrDefault(ctx, db, tree, "", nil)
	require.NoError(t, err)
	assert.Nil(t, result)

	mock.ExpectGet(Result_Key_Prefix + "abc").SetVal(string(data))
	result, err = GetResultCachedOrDefault(ctx, db, tree, "abc", defaults)
	require.NoError(t, err)
	require.NotNil(t, result)
	assert.NotSame(t, defaults, result)

	// An expired key does not fall back to the defaults.
	mock.ExpectGet(Result_Key_Prefix + "gone").RedisNil()
	result, err = GetResultCachedOrDefault(ctx, db, tree, "gone", defaults)
	require.NoError(t, err)
	assert.Nil(t, result)

	mock.ExpectGet(Result_Key_Prefix + "broken").SetErr(errors.New("connection refused"))
	_, err = GetResultCachedOrDefault(ctx, db, tree, "broken", defaults)
	assert.Error(t, err)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStoreUsesDecodedResults(t *testing.T) {
	tree := loadTestTree(t)
	ctx := context.Background()
	db, mock := redismock.NewClientMock()

	store, err := NewStore(db, tree, time.Hour, 4)
	require.NoError(t, err)
	original := newTestResults(t, tree)
	data, err := original.Serialize()
	require.NoError(t, err)

	mock.ExpectGet(Result_Key_Prefix + "k1").SetVal(string(data))
	first, err := store.Get(ctx, "k1", nil)
	require.NoError(t, err)
	require.NotNil(t, first)

	// The second read is served from memory after checking the key still exists.
	mock.ExpectExists(Result_Key_Prefix + "k1").SetVal(1)
	second, err := store.Get(ctx, "k1", nil)
	require.NoError(t, err)
	assert.Same(t, first, second)

	mock.ExpectExists(Result_Key_Prefix + "k1").SetVal(0)
	expired, err := store.Get(ctx, "k1", nil)
	require.NoError(t, err)
	assert.Nil(t, expired)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStorePut(t *testing.T) {
	mr, client := newMiniRedis(t)
	tree := loadTestTree(t)
	ctx := context.Background()

	store, err := NewStore(client, tree, 30*time.Minute, 4)
	require.NoError(t, err)
	assert.Equal(t, 30*time.Minute, store.TTL())

	original := newTestResults(t, tree)
	key, err := store.Put(ctx, original)
	require.NoError(t, err)
	assert.Equal(t, 30*time.Minute, mr.TTL(Result_Key_Prefix+key))

	result, err := store.Get(ctx, key, nil)
	require.NoError(t, err)
	assert.Same(t, original, result)
}

type swappableSource struct {
	sync.Mutex
	client redis.UniversalClient
}

func (s *swappableSource) Client() redis.UniversalClient {
	s.Lock()
	defer s.Unlock()
	return s.client
}

func (s *swappableSource) swap(client redis.UniversalClient) {
	s.Lock()
	defer s.Unlock()
	s.client = client
}

func TestStoreFollowsReplacedClient(t *testing.T) {
	first, firstClient := newMiniRedis(t)
	second, secondClient := newMiniRedis(t)
	tree := loadTestTree(t)
	ctx := context.Background()

	source := &swappableSource{client: firstClient}
	store, err := NewStoreWithSource(source, tree, time.Hour, 4)
	require.NoError(t, err)

	before, err := store.Put(ctx, newTestResults(t, tree))
	require.NoError(t, err)
	assert.True(t, first.Exists(Result_Key_Prefix+before))

	source.swap(secondClient)
	after, err := store.Put(ctx, newTestResults(t, tree))
	require.NoError(t, err)
	assert.True(t, second.Exists(Result_Key_Prefix+after))
	assert.False(t, first.Exists(Result_Key_Prefix+after))
}
