// Package http provides the sibila HTTP API on echo.
package http

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"

	"github.com/custodia-labs/sibila/internal/core/ports/driving"
	"github.com/custodia-labs/sibila/internal/metrics"
)

// DefaultMaxUploadBytes bounds the body of POST /upload.
const DefaultMaxUploadBytes = 64 << 20

// Services are the core ports the HTTP API drives.
type Services struct {
	Query     driving.QueryService
	Ingester  driving.IngestionService
	Folder    driving.FolderIngester
	Documents driving.DocumentService
}

// Config holds HTTP server configuration.
type Config struct {
	// Addr is the listen address.
	Addr string

	// UploadDir receives files posted to /upload. Uploads are disabled
	// when empty.
	UploadDir string

	// MaxUploadBytes bounds an upload request body.
	MaxUploadBytes int64
}

// Server provides the HTTP endpoints.
type Server struct {
	echo     *echo.Echo
	services Services
	metrics  *metrics.Metrics
	logger   *zap.Logger
	config   *Config
}

// requestValidator adapts go-playground/validator to echo.
type requestValidator struct {
	validate *validator.Validate
}

func (v *requestValidator) Validate(i any) error {
	return v.validate.Struct(i)
}

// NewServer creates a new HTTP server. Metrics are optional; without
// them /metrics is not served.
func NewServer(services Services, m *metrics.Metrics, logger *zap.Logger, cfg *Config) (*Server, error) {
	if services.Query == nil || services.Ingester == nil || services.Documents == nil {
		return nil, errors.New("query, ingestion and document services are required")
	}
	if logger == nil {
		return nil, errors.New("logger is required for request tracking and debugging")
	}
	if cfg == nil {
		cfg = &Config{Addr: ":8000"}
	}
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = DefaultMaxUploadBytes
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Validator = &requestValidator{validate: validator.New()}

	s := &Server{
		echo:     e,
		services: services,
		metrics:  m,
		logger:   logger,
		config:   cfg,
	}
	e.HTTPErrorHandler = s.handleError

	// Middleware
	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.Use(func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)
			if err != nil {
				c.Error(err)
			}

			logger.Info("http request",
				zap.String("method", c.Request().Method),
				zap.String("uri", c.Request().RequestURI),
				zap.Int("status", c.Response().Status),
				zap.Duration("duration", time.Since(start)),
				zap.String("request_id", c.Response().Header().Get(echo.HeaderXRequestID)),
			)

			return nil
		}
	})

	s.registerRoutes()

	return s, nil
}

// registerRoutes sets up the HTTP endpoints.
func (s *Server) registerRoutes() {
	s.echo.GET("/health", s.handleHealth)
	if s.metrics != nil {
		s.echo.GET("/metrics", echo.WrapHandler(s.metrics.Handler()))
	}

	s.echo.POST("/query", s.handleQuery)
	s.echo.POST("/ingest", s.handleIngest)
	s.echo.POST("/upload", s.handleUpload, middleware.BodyLimit(fmt.Sprintf("%dB", s.config.MaxUploadBytes)))

	s.echo.GET("/docs", s.handleListDocuments)
	s.echo.GET("/docs/*", s.handleGetDocument)
	s.echo.DELETE("/docs/*", s.handleDeleteDocument)

	s.echo.GET("/categories", s.handleCategories)
	s.echo.GET("/cases", s.handleCases)
}

// Handler returns the router, for tests and embedding in other servers.
func (s *Server) Handler() http.Handler {
	return s.echo
}

// Start starts the HTTP server and blocks until it stops.
func (s *Server) Start() error {
	s.logger.Info("starting http server", zap.String("addr", s.config.Addr))
	if err := s.echo.Start(s.config.Addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down http server")
	return s.echo.Shutdown(ctx)
}
