package api

import (
	"errors"
	"fmt"
	"net/http"
	"sync"

	"github.com/gin-contrib/pprof"
	"github.com/gin-gonic/gin"

	"github.com/micromeda/micromeda-server/api/middleware"
	"github.com/micromeda/micromeda-server/common"
	"github.com/micromeda/micromeda-server/config"
	"github.com/micromeda/micromeda-server/global"
)

// The global HTTP router instance and root group.
var router *gin.Engine
var root *gin.RouterGroup
var once sync.Once

// respondWithErrorMessage responds to the request with the provided error message.
func respondWithErrorMessage(ctx *gin.Context, status int,
	format string, args ...interface{}) {
	logger := middleware.GetLogger(ctx)

	message := fmt.Sprintf(format, args...)

	logger.Error(ctx, message)
	ctx.AbortWithStatusJSON(status, gin.H{
		"error":      message,
		"request_id": middleware.GetRequestID(ctx),
	})
}

// errorStatus maps service errors to HTTP status codes.
func errorStatus(err error) int {
	switch {
	case errors.Is(err, common.ErrResultsNotFound),
		errors.Is(err, common.ErrNoSuchProperty),
		errors.Is(err, common.ErrNoSuchStep),
		errors.Is(err, common.ErrNoSuchSample),
		errors.Is(err, common.ErrNoSuchUploadRecord),
		errors.Is(err, common.ErrDatabaseDisabled):
		return http.StatusNotFound
	case errors.Is(err, common.ErrNoFile),
		errors.Is(err, common.ErrEmptyFileName),
		errors.Is(err, common.ErrFileNotAllowed),
		errors.Is(err, common.ErrInvalidMicromeda):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// GetRouter returns the global HTTP router instance.
func GetRouter() *gin.Engine {
	once.Do(initializeSingletons)
	return router
}

// GetRoot returns the router root group.
func GetRoot() *gin.RouterGroup {
	once.Do(initializeSingletons)
	return root
}

// initializeSingletons is the function called by sync.Once to intialize the
// HTTP engine and router group singleton instances.
func initializeSingletons() {
	// The service name prefix is used when the ingress routes by path.
	if config.GetBool("SERVICE_NAME_AS_ROOT") {
		router, root = createRouterAndGroup(global.ServiceName)
	} else {
		router, root = createRouterAndGroup("")
	}
}

// Create a clean router and a root group with the given microservice prefix.
func createRouterAndGroup(prefix string) (*gin.Engine, *gin.RouterGroup) {
	engine := gin.New()
	engine.Use(middleware.CorsMiddleware())
	engine.RedirectTrailingSlash = true
	engine.RedirectFixedPath = false
	engine.HandleMethodNotAllowed = false
	engine.ForwardedByClientIP = true
	engine.MaxMultipartMemory = config.GetInt64("MAX_UPLOAD_BYTES")

	group := engine.Group(prefix)

	installCommonMiddleware(group)

	pprof.Register(engine)

	return engine, group
}

// installCommonMiddleware installs common middleware to the router group.
func installCommonMiddleware(group *gin.RouterGroup) {
	group.Use(middleware.Logger())

	// NOTE: The recovery middleware should always be the last one installed.
	group.Use(middleware.Recovery())
	group.Use(middleware.HeaderSet())
}
