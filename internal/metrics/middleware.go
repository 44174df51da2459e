package metrics

import (
	"time"

	"github.com/gin-gonic/gin"
)

// Middleware records the duration of every HTTP request against the
// matched route template and the response status.
func Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		RecordRequestDuration(c.Request.Context(), route, c.Writer.Status(), time.Since(start).Seconds())
	}
}
