package daemon

import (
	"log/slog"
	"time"

	"github.com/gin-gonic/gin"
)

// requestLogger logs method, path, status code, and duration for each request.
func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		slog.Info("http request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"duration", time.Since(start).String(),
		)
	}
}
