package middleware

import (
	"bytes"
	"fmt"
	"hash/fnv"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"

	"github.com/micromeda/micromeda-server/cache"
)

const responseKeyPrefix = "micromeda:response:"

// CachedResponse is a handler response stored to Redis in MessagePack
// format. See cachedresponse.go for its encoding.
type CachedResponse struct {
	Status  int                 `msg:"status"`
	Headers map[string][]string `msg:"headers"`
	Body    []byte              `msg:"body"`
}

// CacheKeyFlags indicates which parts of the request are used for key generation.
type CacheKeyFlags uint

const (
	// CacheKeyURL flag signals the use of URL as part of key generation.
	CacheKeyURL CacheKeyFlags = 0x0001
)

// Cache is a middleware to fetch / store response body from / to Redis.
// Only successful GET responses are stored.
func Cache(timeout time.Duration, flags CacheKeyFlags) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		if ctx.Request.Method != http.MethodGet {
			ctx.Next()
			return
		}

		if response := fetchFromCache(ctx, flags); response != nil {
			writeCachedResponse(ctx, response)
			ctx.Abort()
			return
		}

		response := interceptResponse(ctx)
		if response != nil && response.Status == http.StatusOK {
			storeToCache(ctx, response, timeout, flags)
		}
	}
}

// fetchFromCache tries to fetch the cached data from Redis.
func fetchFromCache(ctx *gin.Context, flags CacheKeyFlags) *CachedResponse {
	logger := GetLogger(ctx)

	redisCache, err := cache.GetRedis()
	if err != nil {
		return nil
	}

	key := generateCacheKey(ctx, flags)
	data, err := redisCache.Client().Get(ctx, key).Bytes()
	if err != nil {
		if err != redis.Nil {
			logger.Error(ctx, "Failed to fetch %s: %v", key, err)
		}
		return nil
	}
	if len(data) == 0 {
		return nil
	}

	response := CachedResponse{}
	if _, err := response.UnmarshalMsg(data); err != nil {
		logger.Error(ctx, "Failed to unmarshal %s: %v", key, err)
		return nil
	}
	return &response
}

// writeCachedResponse writes the response from obtained cached data.
func writeCachedResponse(ctx *gin.Context, response *CachedResponse) {
	logger := GetLogger(ctx)

	// Headers must be in place before the status line goes out.
	for header, values := range response.Headers {
		for _, value := range values {
			ctx.Writer.Header().Add(header, value)
		}
	}
	ctx.Writer.WriteHeader(response.Status)

	if _, err := ctx.Writer.Write(response.Body); err != nil {
		logger.Error(ctx, "Failed to write cached body: %v", err)
	}
}

// responseInterceptor is an interceptor used to obtain handler responses.
type responseInterceptor struct {
	gin.ResponseWriter
	buffer bytes.Buffer
}

// Copy intercepted response data into cache buffer.
func (interceptor *responseInterceptor) Write(buffer []byte) (int, error) {
	count, err := interceptor.ResponseWriter.Write(buffer)
	interceptor.buffer.Write(buffer)
	return count, err
}

func (interceptor *responseInterceptor) WriteString(s string) (int, error) {
	return interceptor.Write([]byte(s))
}

// interceptResponse continues processing the request handler chain, while
// intercepting the handler response for cache preparation.
func interceptResponse(ctx *gin.Context) *CachedResponse {
	original := ctx.Writer
	interceptor := &responseInterceptor{ResponseWriter: original}
	ctx.Writer = interceptor

	ctx.Next()

	ctx.Writer = original

	headers := map[string][]string{}
	for header, values := range interceptor.Header() {
		// CORS headers are added by the router on every response.
		if header == "Access-Control-Allow-Origin" {
			continue
		}
		headers[header] = values
	}
	return &CachedResponse{
		Status:  interceptor.Status(),
		Headers: headers,
		Body:    interceptor.buffer.Bytes(),
	}
}

// storeToCache stores the response data to Redis.
func storeToCache(ctx *gin.Context, response *CachedResponse,
	timeout time.Duration, flags CacheKeyFlags) {
	logger := GetLogger(ctx)
	redisCache, err := cache.GetRedis()
	if err != nil {
		logger.Error(ctx, "Failed to get Redis connection: %v", err)
		return
	}

	key := generateCacheKey(ctx, flags)
	data, err := response.MarshalMsg(nil)
	if err != nil {
		logger.Error(ctx, "Failed to marshal cached response for %s: %v", key, err)
		return
	}
	if err := redisCache.Client().Set(ctx, key, data, timeout).Err(); err != nil {
		logger.Error(ctx, "Failed to store %s: %v", key, err)
	}
}

// Generate the key used to fetch / store to / from Redis.
func generateCacheKey(ctx *gin.Context, flags CacheKeyFlags) string {
	hash := fnv.New64a()

	if flags&CacheKeyURL != 0 {
		hash.Write([]byte(ctx.Request.URL.Path))
		hash.Write([]byte{'?'})
		hash.Write([]byte(ctx.Request.URL.Query().Encode()))
	}

	return fmt.Sprintf("%s%016x", responseKeyPrefix, hash.Sum64())
}
