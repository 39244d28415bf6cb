package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/creasty/defaults"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"
	"signalbot/internal/config"
	"signalbot/internal/metrics"
)

// RouteRegistrar registers routes on an echo instance.
type RouteRegistrar interface {
	RegisterRoutes(e *echo.Echo)
}

// ServerOption configures Server.
type ServerOption func(*ServerConfig)

// ServerConfig holds server configuration. Zero fields take the values of
// their default tags.
type ServerConfig struct {
	Host            string        `default:"127.0.0.1"`
	Port            int           `default:"8080"`
	ReadTimeout     time.Duration `default:"15s"`
	WriteTimeout    time.Duration `default:"60s"`
	ShutdownTimeout time.Duration `default:"10s"`
	BodyLimit       string        `default:"1M"`
	CORSOrigins     []string
	RateLimit       float64 // 0 disables
	RateBurst       int     `default:"40"`

	Logger  zerolog.Logger
	Metrics *metrics.Recorder
}

// Server wraps an echo HTTP server.
type Server struct {
	echo   *echo.Echo
	config *ServerConfig
	logger zerolog.Logger
	ln     net.Listener
	done   chan struct{}
}

// NewServer creates an HTTP server serving handler's routes plus /metrics.
func NewServer(handler RouteRegistrar, opts ...ServerOption) (*Server, error) {
	cfg := &ServerConfig{Logger: zerolog.Nop()}
	if err := defaults.Set(cfg); err != nil {
		return nil, fmt.Errorf("apply server defaults: %w", err)
	}
	for _, opt := range opts {
		opt(cfg)
	}

	logger := cfg.Logger.With().Str("component", "http").Logger()

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Server.ReadTimeout = cfg.ReadTimeout
	e.Server.WriteTimeout = cfg.WriteTimeout

	s := &Server{echo: e, config: cfg, logger: logger}
	e.HTTPErrorHandler = s.handleError

	e.Use(RequestID(logger))
	e.Use(Instrument(logger, cfg.Metrics))
	e.Use(Recover(logger))
	e.Use(middleware.BodyLimit(cfg.BodyLimit))
	if len(cfg.CORSOrigins) > 0 {
		e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
			AllowOrigins: cfg.CORSOrigins,
			AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
			AllowHeaders: []string{
				echo.HeaderOrigin,
				echo.HeaderContentType,
				echo.HeaderAccept,
				echo.HeaderXRequestID,
			},
		}))
	}
	if cfg.RateLimit > 0 {
		burst := cfg.RateBurst
		if burst < 1 {
			burst = 1
		}
		e.Use(RateLimit(cfg.RateLimit, burst))
	}

	if handler != nil {
		handler.RegisterRoutes(e)
	}
	if cfg.Metrics != nil {
		e.GET("/metrics", echo.WrapHandler(cfg.Metrics.Handler()))
	}

	return s, nil
}

// Start binds the listen address and serves in the background. Bind errors
// are returned; later serve errors are logged.
func (s *Server) Start() error {
	addr := net.JoinHostPort(s.config.Host, strconv.Itoa(s.config.Port))
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", addr, err)
	}
	s.ln = ln
	s.echo.Listener = ln
	s.done = make(chan struct{})

	go func() {
		defer close(s.done)
		if err := s.echo.StartServer(s.echo.Server); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error().Err(err).Msg("HTTP server stopped unexpectedly")
		}
	}()

	s.logger.Info().Str("addr", ln.Addr().String()).Msg("HTTP server listening")
	return nil
}

// Stop gracefully shuts down the server, waiting at most the configured
// shutdown timeout.
func (s *Server) Stop(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, s.config.ShutdownTimeout)
	defer cancel()

	if err := s.echo.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutdown error: %w", err)
	}
	if s.done != nil {
		<-s.done
	}
	s.logger.Info().Msg("HTTP server stopped")
	return nil
}

// Addr returns the bound address, or the configured one before Start.
func (s *Server) Addr() string {
	if s.ln != nil {
		return s.ln.Addr().String()
	}
	return net.JoinHostPort(s.config.Host, strconv.Itoa(s.config.Port))
}

// Echo returns the underlying echo instance.
func (s *Server) Echo() *echo.Echo {
	return s.echo
}

func (s *Server) handleError(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	appErr := FromError(err)
	if appErr.Status >= http.StatusInternalServerError {
		s.logger.Error().Err(err).Str("code", appErr.Code).Msg("Request failed")
	}

	if c.Request().Method == http.MethodHead {
		err = c.NoContent(appErr.Status)
	} else {
		err = AppErrorResponse(c, appErr)
	}
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to write error response")
	}
}

// WithConfig applies the [server] section of the configuration.
func WithConfig(sc config.ServerConfig) ServerOption {
	return func(c *ServerConfig) {
		c.Host = sc.Host
		c.Port = sc.Port
		if sc.ReadTimeout > 0 {
			c.ReadTimeout = sc.ReadTimeout
		}
		if sc.WriteTimeout > 0 {
			c.WriteTimeout = sc.WriteTimeout
		}
		if sc.ShutdownTimeout > 0 {
			c.ShutdownTimeout = sc.ShutdownTimeout
		}
		if sc.BodyLimit != "" {
			c.BodyLimit = sc.BodyLimit
		}
		c.CORSOrigins = sc.CORSOrigins
		c.RateLimit = sc.RateLimit
		if sc.RateBurst > 0 {
			c.RateBurst = sc.RateBurst
		}
	}
}

// WithAddr sets host and port.
func WithAddr(host string, port int) ServerOption {
	return func(c *ServerConfig) {
		c.Host = host
		c.Port = port
	}
}

// WithRateLimit sets the per-client request rate and burst.
func WithRateLimit(perSecond float64, burst int) ServerOption {
	return func(c *ServerConfig) {
		c.RateLimit = perSecond
		c.RateBurst = burst
	}
}

// WithLogger sets the server logger.
func WithLogger(logger zerolog.Logger) ServerOption {
	return func(c *ServerConfig) {
		c.Logger = logger
	}
}

// WithMetrics records request metrics and exposes /metrics.
func WithMetrics(rec *metrics.Recorder) ServerOption {
	return func(c *ServerConfig) {
		c.Metrics = rec
	}
}
