package server

import (
	"github.com/go-go-golems/grillo/pkg/helpers"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// requestID reuses the X-Request-ID sent by the client, or mints one, and
// makes it the correlation id of the request context.
func requestID() echo.MiddlewareFunc {
	return middleware.RequestIDWithConfig(middleware.RequestIDConfig{
		Generator: helpers.NewCorrelationID,
		RequestIDHandler: func(c echo.Context, id string) {
			req := c.Request()
			c.SetRequest(req.WithContext(helpers.ContextWithCorrelationID(req.Context(), id)))
		},
	})
}

// requestLogger writes one access log line per request to zerolog.
func requestLogger() echo.MiddlewareFunc {
	return middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogURI:       true,
		LogMethod:    true,
		LogStatus:    true,
		LogLatency:   true,
		LogRequestID: true,
		LogError:     true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			var e *zerolog.Event
			switch {
			case v.Status >= 500:
				e = log.Error()
			case v.Status >= 400:
				e = log.Warn()
			default:
				e = log.Info()
			}
			if v.Error != nil {
				e = e.Err(v.Error)
			}
			e.Str("method", v.Method).
				Str("uri", v.URI).
				Int("status", v.Status).
				Dur("latency", v.Latency).
				Str("correlation_id", v.RequestID).
				Msg("request")
			return nil
		},
	})
}
