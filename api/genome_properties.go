package api

import (
	"net/http"
	"sort"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/micromeda/micromeda-server/api/middleware"
	"github.com/micromeda/micromeda-server/config"
	"github.com/micromeda/micromeda-server/service"
)

func init() {
	root := GetRoot()

	// Property metadata only changes with a redeploy.
	propertyGroup := root.Group("genome_properties")
	propertyGroup.Use(middleware.Cache(config.GetMilliseconds("RESPONSE_CACHE_TTL_MS"), middleware.CacheKeyURL))

	propertyGroup.GET("", GetGenomeProperties)
	propertyGroup.GET(":property_id", GetGenomeProperty)
}

// GetGenomeProperty responds with the metadata of one property, or an empty
// object when the property does not exist.
func GetGenomeProperty(ctx *gin.Context) {
	info, err := service.Impl.MicromedaIntf.GetProperty(ctx, ctx.Param("property_id"))
	if err != nil {
		ctx.JSON(http.StatusOK, gin.H{})
		return
	}
	ctx.JSON(http.StatusOK, info)
}

// GetGenomeProperties responds with the metadata of the properties named by
// query parameters containing gp_id, or of every property without query.
// A repeated parameter contributes its first value.
func GetGenomeProperties(ctx *gin.Context) {
	query := ctx.Request.URL.Query()
	if len(query) == 0 {
		ctx.JSON(http.StatusOK, service.Impl.MicromedaIntf.GetAllProperties(ctx))
		return
	}

	parameters := make([]string, 0, len(query))
	for parameter := range query {
		if strings.Contains(parameter, "gp_id") {
			parameters = append(parameters, parameter)
		}
	}
	sort.Strings(parameters)

	// Only the first value of a repeated parameter counts.
	ids := make([]string, 0, len(parameters))
	for _, parameter := range parameters {
		ids = append(ids, query.Get(parameter))
	}
	ctx.JSON(http.StatusOK, service.Impl.MicromedaIntf.GetProperties(ctx, ids))
}
