package middleware

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/nfinit-engine/internal/http/response"
	"github.com/yungbote/nfinit-engine/internal/observability"
)

// Metrics records request counts, latency, in-flight requests and error codes
// per route. A nil m disables it.
func Metrics(m *observability.Metrics) gin.HandlerFunc {
	if m == nil {
		return func(c *gin.Context) { c.Next() }
	}
	return func(c *gin.Context) {
		start := time.Now()
		m.APIInflightInc()
		defer m.APIInflightDec()

		c.Next()

		// Unmatched paths share one label to keep cardinality bounded.
		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		m.ObserveAPI(c.Request.Method, route, strconv.Itoa(c.Writer.Status()), time.Since(start))
		if code := c.GetString(response.ErrorCodeKey); code != "" {
			m.ObserveAPIError(route, code)
		}
	}
}
