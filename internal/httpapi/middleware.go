package httpapi

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/ppriyankuu/kvstore/internal/logging"
)

// Logger is a Gin middleware that logs every admin-surface request through
// the node's structured logger instead of the standard library logger.
func Logger() gin.HandlerFunc {
	log := logging.WithComponent("httpapi")
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.Info().
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Str("client_ip", c.ClientIP()).
			Int("status", c.Writer.Status()).
			Dur("latency", time.Since(start)).
			Msg("admin request")
	}
}

// Recovery wraps panics in the admin surface and logs them structurally
// instead of letting them crash the process — a panic here must never take
// down the node's data-path dispatcher running on the same process.
func Recovery() gin.HandlerFunc {
	log := logging.WithComponent("httpapi")
	return func(c *gin.Context) {
		defer func() {
			if err := recover(); err != nil {
				log.Error().Interface("panic", err).Msg("recovered panic in admin surface")
				c.AbortWithStatusJSON(500, gin.H{"error": "internal server error"})
			}
		}()
		c.Next()
	}
}
