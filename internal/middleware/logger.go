package middleware

import (
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// Logger writes one structured line per request once the handler chain
// has finished.
func Logger(log zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		started := time.Now()
		c.Next()

		status := c.Writer.Status()
		route := routeOf(c)

		var event *zerolog.Event
		switch {
		case status >= 500:
			event = log.Error()
		case status >= 400:
			event = log.Warn()
		default:
			// Load balancers poll the health route constantly.
			if strings.HasSuffix(route, "/healthz") {
				event = log.Debug()
			} else {
				event = log.Info()
			}
		}
		if event == nil {
			return
		}

		event = event.
			Str("request_id", RequestIDFrom(c)).
			Str("method", c.Request.Method).
			Str("route", route).
			Int("status", status).
			Int("bytes", c.Writer.Size()).
			Dur("elapsed", time.Since(started)).
			Str("ip", c.ClientIP())
		if ua := c.Request.UserAgent(); ua != "" {
			event = event.Str("user_agent", ua)
		}
		if user, ok := CurrentUser(c); ok {
			event = event.Str("user_id", user.ID)
		}
		if errs := c.Errors.ByType(gin.ErrorTypePrivate); len(errs) > 0 {
			event = event.Str("errors", errs.String())
		}
		event.Msg("request served")
	}
}

// routeOf prefers the matched route template so ids stay out of the
// aggregated log fields.
func routeOf(c *gin.Context) string {
	if route := c.FullPath(); route != "" {
		return route
	}
	return c.Request.URL.Path
}
