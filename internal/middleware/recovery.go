package middleware

import (
	"net/http"

	"tasktrack/backend/internal/logger"

	"github.com/gin-gonic/gin"
)

// RecoveryWithLog converts handler panics into a single 500 response so a
// panicking request can never escape without an answer or take the process
// down.
func RecoveryWithLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				logger.Get(logger.InfoLevel).Errorw("panic recovered",
					"panic", r,
					"path", c.Request.URL.Path,
					"method", c.Request.Method,
				)
				c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
					"error": "internal server error",
				})
			}
		}()
		c.Next()
	}
}
