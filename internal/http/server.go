// Package http provides the local operator HTTP endpoint for secretsh.
//
// It serves health, Prometheus metrics, status and a pattern-only scrub
// API. It never has access to secret values.
package http

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/secretsh/internal/scrub"
	"github.com/fyrsmithlabs/secretsh/internal/secrets"
)

// maxScrubBytes caps a scrub request body.
const maxScrubBytes = "2M"

// SecretLister reports which secrets are loaded.
type SecretLister interface {
	Secrets() []secrets.Metadata
}

// Server provides HTTP endpoints for secretsh.
type Server struct {
	echo    *echo.Echo
	engine  *scrub.Engine
	lister  SecretLister
	logger  *zap.Logger
	config  *Config
	started time.Time
}

// Config holds HTTP server configuration.
type Config struct {
	Host    string
	Port    int
	Version string
}

// NewServer creates a new HTTP server. lister may be nil.
func NewServer(engine *scrub.Engine, lister SecretLister, logger *zap.Logger, cfg *Config) (*Server, error) {
	if engine == nil {
		return nil, fmt.Errorf("scrub engine cannot be nil")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required for request tracking and debugging")
	}
	if cfg == nil {
		cfg = &Config{
			Host: "127.0.0.1",
			Port: 9191,
		}
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.Use(NewHTTPMetrics(logger).MetricsMiddleware())
	e.Use(func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)
			duration := time.Since(start)

			logger.Info("http request",
				zap.String("method", c.Request().Method),
				zap.String("uri", c.Request().RequestURI),
				zap.Int("status", c.Response().Status),
				zap.Duration("duration", duration),
				zap.String("request_id", c.Response().Header().Get(echo.HeaderXRequestID)),
			)

			return err
		}
	})

	s := &Server{
		echo:    e,
		engine:  engine,
		lister:  lister,
		logger:  logger,
		config:  cfg,
		started: time.Now(),
	}

	s.registerRoutes()

	return s, nil
}

func (s *Server) registerRoutes() {
	s.echo.GET("/health", s.handleHealth)
	s.echo.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	v1 := s.echo.Group("/api/v1")
	v1.GET("/status", s.handleStatus)
	v1.POST("/scrub", s.handleScrub, middleware.BodyLimit(maxScrubBytes))
}

func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, HealthResponse{Status: "ok"})
}

func (s *Server) handleStatus(c echo.Context) error {
	resp := StatusResponse{
		Status:        "ok",
		Version:       s.config.Version,
		RedactionMode: string(s.engine.Mode()),
		Uptime:        time.Since(s.started).Round(time.Second).String(),
	}
	if s.lister != nil {
		resp.SecretCount = len(s.lister.Secrets())
	}
	return c.JSON(http.StatusOK, resp)
}

// handleScrub redacts secret-shaped tokens. Stored secret values are not
// consulted, so the endpoint cannot confirm a guessed value.
func (s *Server) handleScrub(c echo.Context) error {
	var req ScrubRequest
	if err := c.Bind(&req); err != nil {
		s.logger.Warn("invalid scrub request", zap.Error(err))
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	if req.Content == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "content field is required")
	}

	result := s.engine.Scrub(req.Content, nil)

	s.logger.Debug("scrubbed content",
		zap.Int("redactions", result.RedactedCount),
		zap.Duration("duration", result.Duration),
	)

	return c.JSON(http.StatusOK, ScrubResponse{
		Content:       result.Text,
		FindingsCount: result.RedactedCount,
		Labels:        result.ByLabel,
	})
}

// Start starts the HTTP server and blocks until it stops. A server closed
// by Shutdown returns nil.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
	s.logger.Info("starting http server", zap.String("addr", addr))
	if err := s.echo.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down http server")
	return s.echo.Shutdown(ctx)
}
