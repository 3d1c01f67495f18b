package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	handler "github.com/newthinker/backgrid/internal/api/handler/api"
	"github.com/newthinker/backgrid/internal/api/middleware"
	"github.com/newthinker/backgrid/internal/logger"
	"github.com/newthinker/backgrid/internal/metrics"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

const healthPath = "/api/v1/health"

// Server represents the HTTP server for backgrid
type Server struct {
	httpServer *http.Server
	logger     *zap.Logger
	mux        *http.ServeMux
	handler    http.Handler
}

// Config holds server configuration
type Config struct {
	Host           string
	Port           int
	APIKey         string
	Version        string
	MetricsEnabled bool
	MetricsPath    string
	// RequestTimeout bounds a synchronous backtest; the write timeout is
	// derived from it.
	RequestTimeout time.Duration
}

// Dependencies holds the services the routes call into.
type Dependencies struct {
	Service handler.Service
	Metrics *metrics.Registry
}

// NewServer creates a new HTTP server
func NewServer(cfg Config, deps Dependencies, log *zap.Logger) (*Server, error) {
	if deps.Service == nil {
		return nil, errors.New("service is required")
	}
	log = logger.Component(log, "http")
	if cfg.MetricsPath == "" {
		cfg.MetricsPath = "/metrics"
	}

	writeTimeout := 15 * time.Second
	if cfg.RequestTimeout > 0 {
		writeTimeout += cfg.RequestTimeout
	}

	s := &Server{
		logger: log,
		mux:    http.NewServeMux(),
	}
	s.setupRoutes(cfg, deps)

	exempt := []string{healthPath}
	if cfg.MetricsEnabled {
		exempt = append(exempt, cfg.MetricsPath)
	}
	var h http.Handler = middleware.APIKeyAuth(cfg.APIKey, exempt...)(s.mux)
	if deps.Metrics != nil {
		h = metrics.HTTPMiddleware(deps.Metrics)(h)
	}
	s.handler = metrics.LoggingMiddleware(log)(h)

	s.httpServer = &http.Server{
		Addr:         net.JoinHostPort(cfg.Host, fmt.Sprint(cfg.Port)),
		Handler:      s.handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: writeTimeout,
		IdleTimeout:  60 * time.Second,
	}
	return s, nil
}

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes(cfg Config, deps Dependencies) {
	health := handler.NewHealthHandler(cfg.Version)
	strategies := handler.NewStrategiesHandler(deps.Service)
	jobs := handler.NewJobsHandler(deps.Service, s.logger)

	s.mux.HandleFunc("GET "+healthPath, health.Get)
	s.mux.HandleFunc("GET /api/v1/strategies", strategies.List)
	s.mux.HandleFunc("POST /api/v1/jobs", jobs.Create)
	s.mux.HandleFunc("GET /api/v1/jobs", jobs.List)
	s.mux.HandleFunc("GET /api/v1/jobs/{id}", jobs.Get)

	if cfg.MetricsEnabled && deps.Metrics != nil {
		s.mux.Handle("GET "+cfg.MetricsPath, promhttp.HandlerFor(deps.Metrics, promhttp.HandlerOpts{}))
	}
}

// Handler returns the fully wrapped root handler.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Start starts the HTTP server
func (s *Server) Start() error {
	s.logger.Info("starting HTTP server", zap.String("addr", s.httpServer.Addr))
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down HTTP server")
	return s.httpServer.Shutdown(ctx)
}
