// internal/middleware/logging_middleware.go
package middleware

import (
	"time"

	"github.com/gin-gonic/gin"

	"greymatter/internal/utils"
)

// LoggingMiddleware logs every gateway request once it completes. Requests
// to probePaths are logged at debug level unless they fail.
func LoggingMiddleware(logger *utils.ServiceLogger, probePaths ...string) gin.HandlerFunc {
	probes := make(map[string]bool, len(probePaths))
	for _, p := range probePaths {
		probes[p] = true
	}

	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		logger.LogAPIRequest(utils.APIRequest{
			Method:    c.Request.Method,
			Path:      c.Request.URL.Path,
			ClientIP:  c.ClientIP(),
			RequestID: c.GetString(utils.RequestIDKey),
			Status:    c.Writer.Status(),
			Duration:  time.Since(start),
			Probe:     probes[c.FullPath()],
		})
	}
}
