package api

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/otahak/herald/internal/logger"
)

// RequestLogger records every request through the structured logger.
func RequestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.LogRequest(
			c.Request.Method,
			c.Request.URL.Path,
			c.Writer.Status(),
			time.Since(start),
			c.ClientIP(),
		)
	}
}
