package middleware

import (
	"encoding/binary"
	"fmt"
	"hash/fnv"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	jsoniter "github.com/json-iterator/go"

	"github.com/micromeda/micromeda-server/logging"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// blacklist is a list of request URLs that we should ignore from logging.
var blacklist = map[string]bool{
	"/alive": false,
	"/ready": false,
}

// Logger returns a request logger middleware, which logs the HTTP request and
// creates a logger instance to be used throughout the execution of the request.
func Logger() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		url := ctx.Request.URL.EscapedPath()
		if _, exists := blacklist[url]; exists {
			return
		}

		requestID := generateRequestID(ctx.Request)
		logger, err := logging.NewLogger("http")
		if err != nil {
			logging.Error(ctx, "Failed to create new logger: %v", err)
			ctx.Abort()
			return
		}

		// Inject the request logger and IDs into Gin context.
		ctx.Set("logger", logger)
		ctx.Set(logging.ContextKeyRequestId, requestID)
		if resultKey := ctx.Query("result_key"); resultKey != "" {
			ctx.Set(logging.ContextKeyResultKey, resultKey)
		}

		address := ctx.ClientIP()
		method := ctx.Request.Method
		params := ctx.Request.URL.RawQuery
		headersMap, err := json.Marshal(ctx.Request.Header)
		if err != nil {
			logger.Error(ctx, "Failed to marshal headers: %v", err)
			headersMap = []byte{}
		}

		logger.Info(ctx, "Client: [%15s], Method: [%6s], Path: [%s], Params: [%s],"+
			" Headers: %s", address, method, url, params, string(headersMap))

		start := time.Now()
		ctx.Next()
		elapsed := time.Since(start)

		code := ctx.Writer.Status()
		// Uploads are multipart bodies, their size is all that is worth logging.
		var body string
		if method == http.MethodPost && code >= http.StatusBadRequest {
			body = fmt.Sprintf("%d bytes", ctx.Request.ContentLength)
		}

		logger.Info(ctx, "Code: [%3d], Latency: [%10v], Body: [%s]",
			code, elapsed, body)
	}
}

// GetLogger returns the request logger from the Gin context if it's present.
func GetLogger(ctx *gin.Context) *logging.Logger {
	value, exists := ctx.Get("logger")
	if !exists {
		return nil
	}

	logger, ok := value.(*logging.Logger)
	if !ok {
		logging.Error(ctx, "Failed to convert to request logger")
		return nil
	}
	return logger
}

// GetRequestID returns the request ID associated with the current request.
func GetRequestID(ctx *gin.Context) string {
	value, exists := ctx.Get(logging.ContextKeyRequestId)
	if !exists {
		return ""
	}

	requestID, ok := value.(string)
	if !ok {
		logging.Error(ctx, "Failed to convert to request ID string")
		return ""
	}
	return requestID
}

func generateRequestID(request *http.Request) string {
	hash := fnv.New64a()

	// Use time as hash component.
	currentTimeBytes := make([]byte, 8)
	binary.LittleEndian.PutUint64(currentTimeBytes,
		uint64(time.Now().UnixNano()))

	hash.Write([]byte(request.Host))
	hash.Write([]byte(request.RemoteAddr))
	hash.Write([]byte(request.RequestURI))
	hash.Write(currentTimeBytes)

	return fmt.Sprintf("%016x", hash.Sum64())[:12]
}
