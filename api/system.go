package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/micromeda/micromeda-server/global"
	"github.com/micromeda/micromeda-server/service"
)

func init() {
	systemGroup := GetRoot().Group("system")

	systemGroup.GET("version", Version)
	systemGroup.GET("time", Time)
}

// Version responds with the build of this server and the size of the
// genome properties database it serves.
func Version(ctx *gin.Context) {
	properties := 0
	if service.Impl.MicromedaIntf != nil {
		properties = len(service.Impl.MicromedaIntf.GetAllProperties(ctx))
	}
	ctx.JSON(http.StatusOK, gin.H{
		"service":           global.ServiceName,
		"commit":            global.GitCommitHash,
		"time":              global.BuildTime,
		"genome_properties": properties,
	})
}

// Time responds with the current system timestamp in milliseconds.
func Time(ctx *gin.Context) {
	ctx.JSON(http.StatusOK, gin.H{
		"time": time.Now().UnixMilli(),
	})
}
