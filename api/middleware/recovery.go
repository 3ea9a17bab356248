package middleware

import (
	"fmt"
	"net/http"
	"runtime/debug"

	"github.com/gin-gonic/gin"
)

// Recovery is a middleware that recovers from panic then logs the stack trace.
func Recovery() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		defer func() {
			if recovered := recover(); recovered != nil {
				message := fmt.Sprintf("\x1b[31m%v\n[Stack Trace]\n%s\x1b[m",
					recovered, debug.Stack())

				// A nil request logger falls back to the static one.
				GetLogger(ctx).Error(ctx, message)

				ctx.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
					"error":      "internal server error",
					"request_id": GetRequestID(ctx),
				})
			}
		}()

		ctx.Next()
	}
}
