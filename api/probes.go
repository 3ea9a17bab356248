package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/micromeda/micromeda-server/cache"
	"github.com/micromeda/micromeda-server/global"
	"github.com/micromeda/micromeda-server/service"
)

func init() {
	root := GetRoot()

	root.GET("alive", Alive)
	root.GET("ready", Ready)
}

// Alive is the handler for liveness probes.
func Alive(ctx *gin.Context) {
	statusCode := http.StatusServiceUnavailable
	if global.Alive {
		statusCode = http.StatusOK
	}
	ctx.JSON(statusCode, gin.H{
		"alive": global.Alive,
	})
}

// Ready is the handler for readiness probes. The server is ready once the
// properties are loaded and Redis answers, since uploads need both.
func Ready(ctx *gin.Context) {
	redisReady := false
	if r, err := cache.GetRedis(); err == nil {
		redisReady = r.Client().Ping(ctx).Err() == nil
	}
	loaded := service.Impl.MicromedaIntf != nil

	ready := global.Ready && redisReady && loaded
	statusCode := http.StatusServiceUnavailable
	if ready {
		statusCode = http.StatusOK
	}
	ctx.JSON(statusCode, gin.H{
		"ready":      ready,
		"redis":      redisReady,
		"properties": loaded,
	})
}
