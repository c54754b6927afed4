package observability

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// RequestLogger logs each served request. Rejections log at warn with the
// handler's recorded error, server faults at error, the rest at debug.
func RequestLogger(logger zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		began := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = c.Request.URL.Path
		}
		code := c.Writer.Status()

		var ev *zerolog.Event
		switch {
		case code >= 500:
			ev = logger.Error()
		case code >= 400:
			ev = logger.Warn()
		default:
			ev = logger.Debug()
		}
		if size := c.Query("size"); size != "" {
			ev = ev.Str("size", size)
		}
		if id := c.Param("id"); id != "" {
			ev = ev.Str("entity", id)
		}
		if last := c.Errors.Last(); last != nil {
			ev = ev.AnErr("handler_error", last.Err)
		}
		ev.Str("method", c.Request.Method).
			Str("route", route).
			Int("status", code).
			Dur("took", time.Since(began)).
			Msg("request served")
	}
}
