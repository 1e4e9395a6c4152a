package middleware

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"imagehub/internal/security"
)

// Recovery turns a handler panic into a GEN_003 response. The panic value
// is scrubbed of credentials before it is logged.
func Recovery(log zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			r := recover()
			if r == nil {
				return
			}
			if err, ok := r.(error); ok && err == http.ErrAbortHandler {
				panic(r)
			}

			event := log.Error().
				Str("panic", security.Sanitize(fmt.Sprint(r))).
				Str("route", routeOf(c)).
				Str("request_id", RequestIDFrom(c))
			if user, ok := CurrentUser(c); ok {
				event = event.Str("user_id", user.ID)
			}
			event.Msg("handler panicked")

			if c.Writer.Written() {
				c.Abort()
				return
			}
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
				"error": "internal_server_error",
				"code":  "GEN_003",
			})
		}()
		c.Next()
	}
}
