// Package server provides the vmemd HTTP API.
//
// The API is a small JSON-over-POST surface: write, query, list, and
// delete operations against the global collection or a per-project
// collection, backed by a vector store. Every endpoint except /health
// and /metrics requires bearer authentication when an auth token is
// configured; with no token configured the API is open.
//
// Error responses use a single shape, {"detail": "<message>"}, so
// clients have one field to surface regardless of status code.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/fyrsmithlabs/vmemd/internal/config"
	"github.com/fyrsmithlabs/vmemd/internal/vectorstore"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Server serves the vmemd HTTP API over an Echo router.
type Server struct {
	echo    *echo.Echo
	store   vectorstore.Store
	logger  *zap.Logger
	config  *config.ServerConfig
	metrics *HTTPMetrics

	// authToken holds the current bearer token as a config.Secret.
	// Reads happen on every request; SetAuthToken swaps it at runtime.
	authToken atomic.Value
}

// errorResponse is the body of every non-2xx response.
type errorResponse struct {
	Detail string `json:"detail"`
}

// NewServer creates the API server.
//
// A nil cfg gets defaults (0.0.0.0:8000, no auth, rate limiting off).
func NewServer(store vectorstore.Store, logger *zap.Logger, cfg *config.ServerConfig) (*Server, error) {
	if store == nil {
		return nil, fmt.Errorf("store cannot be nil")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required for request tracking and debugging")
	}
	if cfg == nil {
		cfg = &config.ServerConfig{
			Host: "0.0.0.0",
			Port: 8000,
		}
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	s := &Server{
		echo:    e,
		store:   store,
		logger:  logger,
		config:  cfg,
		metrics: NewHTTPMetrics(logger),
	}
	s.authToken.Store(cfg.AuthToken)

	e.HTTPErrorHandler = s.handleError

	// Middleware
	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.Use(s.metrics.Middleware())
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

	s.registerRoutes()

	return s, nil
}

// registerRoutes sets up the HTTP endpoints.
func (s *Server) registerRoutes() {
	// Probe endpoints stay outside auth and rate limiting.
	s.echo.GET("/health", s.handleHealth)
	s.echo.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	api := s.echo.Group("")
	if s.config.RateLimit.Enabled {
		api.Use(s.rateLimiter())
	}
	api.Use(s.requireAuth)

	api.POST("/write/global", s.handleWriteGlobal)
	api.POST("/write/project", s.handleWriteProject)
	api.POST("/query/global", s.handleQueryGlobal)
	api.POST("/query/project", s.handleQueryProject)
	api.POST("/list/global", s.handleListGlobal)
	api.POST("/list/project", s.handleListProject)
	api.POST("/delete/document", s.handleDeleteDocument)
	api.POST("/delete/project", s.handleDeleteProject)
}

// HealthResponse is the response body for GET /health.
type HealthResponse struct {
	Status string `json:"status"`
}

func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, HealthResponse{Status: "ok"})
}

// handleError converts every error into the {"detail": msg} shape.
func (s *Server) handleError(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	code := http.StatusInternalServerError
	detail := "internal server error"

	var he *echo.HTTPError
	if errors.As(err, &he) {
		code = he.Code
		switch m := he.Message.(type) {
		case string:
			detail = m
		case error:
			detail = m.Error()
		default:
			detail = fmt.Sprintf("%v", m)
		}
	}

	if code >= http.StatusInternalServerError {
		s.logger.Error("request failed",
			zap.String("method", c.Request().Method),
			zap.String("uri", c.Request().RequestURI),
			zap.Int("status", code),
			zap.Error(err),
		)
	}

	if err := c.JSON(code, errorResponse{Detail: detail}); err != nil {
		s.logger.Error("failed to write error response", zap.Error(err))
	}
}

// Start starts the server and blocks until ctx is cancelled or the
// listener fails. On cancellation it shuts down gracefully within the
// configured shutdown timeout and returns http.ErrServerClosed.
func (s *Server) Start(ctx context.Context) error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
	s.logger.Info("starting http server", zap.String("addr", addr))

	errCh := make(chan error, 1)
	go func() {
		if err := s.echo.Start(addr); err != nil && err != http.ErrServerClosed {
			errCh <- fmt.Errorf("server start: %w", err)
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		timeout := s.config.ShutdownTimeout.Duration()
		if timeout == 0 {
			timeout = 10 * time.Second
		}
		shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()

		s.logger.Info("shutting down http server")
		if err := s.echo.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown: %w", err)
		}
		return http.ErrServerClosed
	}
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down http server")
	return s.echo.Shutdown(ctx)
}

// SetAuthToken replaces the bearer token checked by subsequent
// requests. An empty token disables authentication. In-flight requests
// keep the token they started with.
func (s *Server) SetAuthToken(token config.Secret) {
	s.authToken.Store(token)
}

func (s *Server) currentAuthToken() config.Secret {
	token, _ := s.authToken.Load().(config.Secret)
	return token
}

// Echo returns the underlying Echo instance for registering additional
// routes.
func (s *Server) Echo() *echo.Echo {
	return s.echo
}
