// Package server provides the HTTP server for the serving process.
// It handles server lifecycle, API routes, the event relay, and
// graceful shutdown.
package server

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/pullsense/pullsense/consts"
	"github.com/pullsense/pullsense/internal/api/router"
	"github.com/pullsense/pullsense/internal/bus"
	"github.com/pullsense/pullsense/internal/config"
	"github.com/pullsense/pullsense/internal/hub"
	"github.com/pullsense/pullsense/internal/store"
	"github.com/pullsense/pullsense/pkg/logger"
)

// HTTP server timeout configuration
const (
	defaultReadTimeout     = 30 * time.Second
	defaultWriteTimeout    = 30 * time.Second
	defaultIdleTimeout     = 60 * time.Second
	defaultShutdownTimeout = 30 * time.Second
	defaultStopTimeout     = 5 * time.Second
)

// Server represents the HTTP serving process
type Server struct {
	cfg        *config.Config
	httpServer *http.Server
	router     *gin.Engine
	store      store.Store
	hub        *hub.Hub
	bus        bus.Bus

	relayCancel context.CancelFunc

	retention *store.RetentionService
}

// New creates a new server instance
func New(cfg *config.Config, s store.Store, h *hub.Hub, b bus.Bus) *Server {
	if cfg.Server.Debug {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.RedirectTrailingSlash = false
	r.RedirectFixedPath = false

	return &Server{
		cfg:    cfg,
		router: r,
		store:  s,
		hub:    h,
		bus:    b,
	}
}

// SetupRoutes configures all routes
func (s *Server) SetupRoutes(d router.Deps) {
	router.Setup(s.router, s.cfg, d)
}

// SetRetention attaches a retention service whose lifecycle follows the
// server's.
func (s *Server) SetRetention(r *store.RetentionService) {
	s.retention = r
}

// Start starts the HTTP server, the event relay, and the retention cron
func (s *Server) Start() error {
	s.httpServer = &http.Server{
		Addr:         s.cfg.Server.Address(),
		Handler:      s.router,
		ReadTimeout:  defaultReadTimeout,
		WriteTimeout: defaultWriteTimeout,
		IdleTimeout:  defaultIdleTimeout,
	}

	if s.hub != nil && s.bus != nil {
		ctx, cancel := context.WithCancel(context.Background())
		s.relayCancel = cancel
		go func() {
			if err := s.hub.RunRelay(ctx, s.bus, consts.EventsChannel); err != nil {
				logger.Error("Event relay stopped", zap.Error(err))
			}
		}()
	}

	if s.retention != nil {
		if err := s.retention.Start(); err != nil {
			logger.Warn("Failed to start retention service", zap.Error(err))
		}
	}

	logger.Info("Starting HTTP server",
		zap.String("address", s.cfg.Server.Address()),
		zap.Bool("debug", s.cfg.Server.Debug),
	)

	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	return nil
}

// WaitForShutdown waits for a shutdown signal and gracefully stops the
// server. The first signal triggers graceful shutdown, a second signal
// forces immediate exit.
func (s *Server) WaitForShutdown() {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	sig := <-quit
	logger.Info("Received shutdown signal, starting graceful shutdown (press Ctrl+C again to force exit)",
		zap.String("signal", sig.String()))

	go func() {
		sig := <-quit
		logger.Warn("Received second shutdown signal, forcing exit",
			zap.String("signal", sig.String()))
		os.Exit(1)
	}()

	ctx, cancel := context.WithTimeout(context.Background(), defaultShutdownTimeout)
	defer cancel()

	s.shutdown(ctx)
	logger.Info("Server stopped")
}

// Stop stops the server immediately
func (s *Server) Stop() error {
	if s.httpServer == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), defaultStopTimeout)
	defer cancel()

	s.shutdown(ctx)
	return nil
}

func (s *Server) shutdown(ctx context.Context) {
	if s.retention != nil {
		s.retention.Stop()
	}
	if s.relayCancel != nil {
		s.relayCancel()
	}
	if s.hub != nil {
		s.hub.CloseAll()
	}

	if err := s.httpServer.Shutdown(ctx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
	}
}

// Router returns the underlying Gin router
func (s *Server) Router() *gin.Engine {
	return s.router
}
