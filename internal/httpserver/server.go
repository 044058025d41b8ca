// Package httpserver serves the operational endpoints: health, metrics and
// the current status board.
package httpserver

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"

	"github.com/tphakala/strainbot/internal/logger"
	"github.com/tphakala/strainbot/internal/observability"
	"github.com/tphakala/strainbot/internal/status"
)

// Server defaults
const (
	DefaultPort            = 8080
	DefaultShutdownTimeout = 10 * time.Second
	DefaultCheckTimeout    = 5 * time.Second
)

func getLogger() logger.Logger {
	return logger.Global().Module("httpserver")
}

// Pinger is a dependency whose reachability can be probed
type Pinger interface {
	Ping(ctx context.Context) error
}

// Presence reports whether the bot is connected to its community transport
type Presence interface {
	IsConnected() bool
}

// StatusSource returns the last rendered status board
type StatusSource interface {
	Snapshot() []status.Section
}

// Config holds the listener settings
type Config struct {
	Host            string
	Port            int
	ShutdownTimeout time.Duration
	CheckTimeout    time.Duration
}

// Address returns host:port
func (c Config) Address() string {
	return c.Host + ":" + strconv.Itoa(c.Port)
}

// Server is the echo based operational HTTP server
type Server struct {
	echo      *echo.Echo
	config    Config
	store     Pinger
	presence  Presence
	board     StatusSource
	metrics   *observability.Metrics
	log       logger.Logger
	startTime time.Time
}

// Option configures a Server
type Option func(*Server)

// WithStore sets the record store probed by the health check
func WithStore(p Pinger) Option {
	return func(s *Server) { s.store = p }
}

// WithPresence sets the transport whose connection is reported as presence
func WithPresence(p Presence) Option {
	return func(s *Server) { s.presence = p }
}

// WithStatus exposes the status board snapshot on /status
func WithStatus(b StatusSource) Option {
	return func(s *Server) { s.board = b }
}

// WithMetrics serves the registry on /metrics and records request metrics
func WithMetrics(m *observability.Metrics) Option {
	return func(s *Server) { s.metrics = m }
}

// New creates a Server and registers its routes
func New(cfg Config, opts ...Option) *Server {
	if cfg.Port == 0 {
		cfg.Port = DefaultPort
	}
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = DefaultShutdownTimeout
	}
	if cfg.CheckTimeout <= 0 {
		cfg.CheckTimeout = DefaultCheckTimeout
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	s := &Server{
		echo:      e,
		config:    cfg,
		log:       getLogger(),
		startTime: time.Now(),
	}
	for _, opt := range opts {
		opt(s)
	}

	e.Use(echomw.Recover())
	e.Use(s.requestMetrics)

	e.GET("/health", s.healthCheck)
	if s.metrics != nil {
		e.GET("/metrics", echo.WrapHandler(s.metrics.Handler()))
	}
	if s.board != nil {
		e.GET("/status", s.statusBoard)
	}
	return s
}

// requestMetrics records method, route and status of every request
func (s *Server) requestMetrics(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		start := time.Now()
		err := next(c)
		if s.metrics == nil {
			return err
		}
		code := c.Response().Status
		var he *echo.HTTPError
		if errors.As(err, &he) {
			code = he.Code
		}
		path := c.Path()
		if path == "" {
			path = "unmatched"
		}
		s.metrics.HTTP.RecordHTTPRequest(c.Request().Method, path, code, time.Since(start).Seconds())
		return err
	}
}

func (s *Server) statusBoard(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]any{
		"sections":  s.board.Snapshot(),
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// Run serves until ctx is done, then shuts down gracefully
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.log.Info("HTTP server starting", logger.String("address", s.config.Address()))
		if err := s.echo.Start(s.config.Address()); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("server error: %w", err)
			return
		}
		errCh <- nil
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		return s.Shutdown()
	}
}

// Shutdown gracefully stops the server
func (s *Server) Shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), s.config.ShutdownTimeout)
	defer cancel()

	if err := s.echo.Shutdown(ctx); err != nil {
		s.log.Error("error during server shutdown", logger.Error(err))
		return fmt.Errorf("shutdown error: %w", err)
	}
	s.log.Info("HTTP server shutdown complete")
	return nil
}

// Echo returns the underlying Echo instance
func (s *Server) Echo() *echo.Echo {
	return s.echo
}
