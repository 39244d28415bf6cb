package api

import (
	"fmt"
	"runtime/debug"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
	"signalbot/internal/logging"
	"signalbot/internal/metrics"
)

// RequestID assigns every request a uuid and attaches a request-scoped
// logger to its context.
func RequestID(logger zerolog.Logger) echo.MiddlewareFunc {
	return middleware.RequestIDWithConfig(middleware.RequestIDConfig{
		Generator: uuid.NewString,
		RequestIDHandler: func(c echo.Context, id string) {
			req := c.Request()
			ctx := logging.WithLogger(req.Context(), logging.WithRequestID(logger, id))
			c.SetRequest(req.WithContext(ctx))
		},
	})
}

// Instrument logs each request and records its metrics. Errors are rendered
// here so that the logged and recorded status is the one the client sees.
func Instrument(logger zerolog.Logger, rec *metrics.Recorder) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()

			if err := next(c); err != nil {
				c.Error(err)
			}

			req := c.Request()
			res := c.Response()
			route := c.Path()
			if route == "" {
				route = "unmatched"
			}
			latency := time.Since(start)
			rec.RecordHTTPRequest(route, req.Method, res.Status, latency)

			var event *zerolog.Event
			switch {
			case res.Status >= 500:
				event = logger.Error()
			case res.Status >= 400:
				event = logger.Warn()
			default:
				event = logger.Debug()
			}
			event.
				Str("request_id", res.Header().Get(echo.HeaderXRequestID)).
				Str("method", req.Method).
				Str("route", route).
				Str("uri", req.RequestURI).
				Str("remote_ip", c.RealIP()).
				Int("status", res.Status).
				Int64("bytes", res.Size).
				Dur("latency", latency).
				Msg("HTTP request")
			return nil
		}
	}
}

// Recover turns a panicking handler into a 500 response.
func Recover(logger zerolog.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) (err error) {
			defer func() {
				if r := recover(); r != nil {
					if e, ok := r.(error); ok {
						err = fmt.Errorf("panic: %w", e)
					} else {
						err = fmt.Errorf("panic: %v", r)
					}
					logger.Error().
						Err(err).
						Str("stack", string(debug.Stack())).
						Msg("Recovered from panic")
				}
			}()
			return next(c)
		}
	}
}

// RateLimit limits each client IP to perSecond requests with the given
// burst. Health and metrics endpoints are exempt.
func RateLimit(perSecond float64, burst int) echo.MiddlewareFunc {
	store := middleware.NewRateLimiterMemoryStoreWithConfig(middleware.RateLimiterMemoryStoreConfig{
		Rate:      rate.Limit(perSecond),
		Burst:     burst,
		ExpiresIn: 3 * time.Minute,
	})
	return middleware.RateLimiterWithConfig(middleware.RateLimiterConfig{
		Skipper: func(c echo.Context) bool {
			p := c.Path()
			return p == "/healthz" || p == "/metrics"
		},
		Store: store,
	})
}
