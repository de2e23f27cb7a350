// Package server runs the gin HTTP server with the standard middleware
// chain and graceful shutdown.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/jonesrussell/north-cloud/product-detector/internal/config"
	"github.com/jonesrussell/north-cloud/product-detector/internal/logger"
)

// Server is an HTTP server with lifecycle management.
type Server struct {
	router *gin.Engine
	server *http.Server
	logger logger.Logger
	config config.ServiceConfig
}

// New builds the router, applies middleware and calls setupRoutes to add
// service routes.
func New(cfg config.ServiceConfig, log logger.Logger, setupRoutes func(*gin.Engine)) *Server {
	if cfg.Debug {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	// Recovery runs first so it catches panics from every later handler.
	router.Use(RecoveryMiddleware(log))
	router.Use(RequestIDLoggerMiddleware(log))
	router.Use(LoggerMiddleware(log))
	if cfg.MaxBodyBytes > 0 {
		router.Use(BodyLimitMiddleware(cfg.MaxBodyBytes))
	}

	if setupRoutes != nil {
		setupRoutes(router)
	}

	return &Server{
		router: router,
		server: &http.Server{
			Addr:              fmt.Sprintf(":%d", cfg.Port),
			Handler:           router,
			ReadTimeout:       cfg.ReadTimeout,
			ReadHeaderTimeout: cfg.ReadTimeout,
			WriteTimeout:      cfg.WriteTimeout,
		},
		logger: log,
		config: cfg,
	}
}

func (s *Server) Router() *gin.Engine { return s.router }

// Start blocks until the server stops.
func (s *Server) Start() error {
	s.logger.Info("Starting HTTP server",
		logger.String("address", s.server.Addr),
		logger.String("service", s.config.Name),
		logger.String("version", s.config.Version),
		logger.Duration("read_timeout", s.server.ReadTimeout),
		logger.Duration("write_timeout", s.server.WriteTimeout),
	)

	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

// StartAsync starts the server in a goroutine. The returned channel
// receives a start error, if any, and is closed when the server stops.
func (s *Server) StartAsync() <-chan error {
	errCh := make(chan error, 1)
	go func() {
		if err := s.Start(); err != nil {
			errCh <- err
		}
		close(errCh)
	}()
	return errCh
}

// Shutdown drains connections within the configured shutdown timeout.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("Shutting down HTTP server", logger.Duration("timeout", s.config.ShutdownTimeout))

	shutdownCtx, cancel := context.WithTimeout(ctx, s.config.ShutdownTimeout)
	defer cancel()

	if err := s.server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown error: %w", err)
	}
	s.logger.Info("HTTP server stopped gracefully")
	return nil
}

// Run serves until ctx is cancelled, then shuts down.
func (s *Server) Run(ctx context.Context) error {
	errCh := s.StartAsync()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		s.logger.Info("Context cancelled, shutting down")
	}

	//nolint:contextcheck // ctx is already cancelled; shutdown needs its own deadline
	return s.Shutdown(context.Background())
}
