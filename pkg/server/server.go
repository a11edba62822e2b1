// Package server exposes the memory engine over HTTP.
package server

import (
	"context"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/braingraph/braingraph/pkg/brain"
)

// Server wraps an echo instance around one Brain.
type Server struct {
	brain  *brain.Brain
	logger *log.Logger
	echo   *echo.Echo
}

// New creates the HTTP server. metricsHandler may be nil when metrics
// export is disabled; the /metrics route then returns 404.
func New(b *brain.Brain, logger *log.Logger, metricsHandler http.Handler) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	s := &Server{brain: b, logger: logger, echo: e}

	e.Use(middleware.Recover())
	e.Use(middleware.RequestIDWithConfig(middleware.RequestIDConfig{
		Generator: func() string { return uuid.NewString() },
	}))
	e.Use(s.requestLogger)

	e.GET("/health", s.handleHealth)
	e.POST("/ingest", s.handleIngest)
	e.POST("/ask", s.handleAsk)
	e.GET("/context", s.handleContext)
	e.GET("/graph", s.handleGraph)
	e.POST("/retrieve", s.handleRetrieve)
	e.POST("/housekeep", s.handleHousekeep)
	e.POST("/plan/check", s.handlePlanCheck)
	if metricsHandler != nil {
		e.GET("/metrics", echo.WrapHandler(metricsHandler))
	}

	return s
}

// Start serves until the listener fails or Shutdown is called.
func (s *Server) Start(addr string) error {
	s.logger.Info("starting server", "addr", addr)
	return s.echo.Start(addr)
}

// Shutdown drains in-flight requests and stops the listener.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}

// Handler exposes the routed handler, for embedding and tests.
func (s *Server) Handler() http.Handler {
	return s.echo
}

func (s *Server) requestLogger(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		start := time.Now()
		err := next(c)
		s.logger.Debug("request",
			"id", c.Response().Header().Get(echo.HeaderXRequestID),
			"method", c.Request().Method,
			"path", c.Request().URL.Path,
			"status", c.Response().Status,
			"duration", time.Since(start))
		return err
	}
}
