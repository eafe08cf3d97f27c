package middleware

import (
	"errors"
	"net/http"
	"runtime/debug"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/nfinit-engine/internal/http/response"
	"github.com/yungbote/nfinit-engine/internal/platform/ctxutil"
	"github.com/yungbote/nfinit-engine/internal/platform/logger"
)

// Recover turns a handler panic into a 500 error envelope.
func Recover(log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			if log != nil {
				fields := []interface{}{"panic", rec, "stack", string(debug.Stack())}
				fields = append(fields, ctxutil.LogFields(c.Request.Context())...)
				log.Error("panic recovered", fields...)
			}
			if c.Writer.Written() {
				c.Abort()
				return
			}
			response.RespondError(c, http.StatusInternalServerError, "internal_error", errors.New("internal server error"))
		}()
		c.Next()
	}
}

// LimitBody caps the request body at maxBytes. Zero disables the cap.
func LimitBody(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		if maxBytes > 0 && c.Request.Body != nil {
			c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		}
		c.Next()
	}
}
