package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// HeaderSet allows the web client, served from another origin, to read
// every response.
func HeaderSet() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		ctx.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		ctx.Next()
	}
}

// CorsMiddleware answers preflight requests.
func CorsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Method != http.MethodOptions {
			c.Next()
			return
		}
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET,POST,OPTIONS")
		c.Header("Access-Control-Allow-Headers", "origin, content-type, accept, x-requested-with")
		c.Header("Allow", "HEAD,GET,POST,OPTIONS")
		c.Header("Content-Type", "application/json")
		c.AbortWithStatus(http.StatusNoContent)
	}
}
