// Package ops provides the operational HTTP endpoint shared by the load
// balancer and the application server: liveness and readiness probes plus
// the Prometheus scrape handler when metrics are enabled.
package ops

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/classmux/classmux/internal/logger"
	"github.com/classmux/classmux/pkg/config"
)

// Server is the ops HTTP server.
//
// The server is created stopped; Start blocks until the context is
// cancelled. It supports graceful shutdown and is safe to Stop more than
// once.
type Server struct {
	server       *http.Server
	config       config.OpsConfig
	shutdownOnce sync.Once
}

// NewServer creates an ops server for the named component.
//
// ready gates the readiness probe; nil means the component exposes no
// readiness signal and /health/ready reports unhealthy.
func NewServer(cfg config.OpsConfig, component string, ready ReadyCheck) *Server {
	server := &http.Server{
		Addr:         net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port)),
		Handler:      NewRouter(component, ready),
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}

	return &Server{
		server: server,
		config: cfg,
	}
}

// NewMetricsServer creates a standalone listener exposing only the
// Prometheus scrape handler, for deployments that enable metrics without
// the ops endpoint.
func NewMetricsServer(cfg config.MetricsConfig) *Server {
	server := &http.Server{
		Addr:         net.JoinHostPort("", strconv.Itoa(cfg.Port)),
		Handler:      newMetricsRouter(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	return &Server{server: server}
}

// Start runs the ops server until the context is cancelled or the listener
// fails.
//
// Returns nil on graceful shutdown.
func (s *Server) Start(ctx context.Context) error {
	errChan := make(chan error, 1)
	go func() {
		logger.Info("Ops endpoint listening", "address", s.server.Addr)

		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			select {
			case errChan <- err:
			default:
			}
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("Ops endpoint shutdown signal received")
		// The serve context is already cancelled; shutdown gets its own
		// deadline so in-flight probes can complete.
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return s.Stop(shutdownCtx)
	case err := <-errChan:
		return fmt.Errorf("ops endpoint failed: %w", err)
	}
}

// Stop initiates graceful shutdown. Safe to call multiple times and
// concurrently with Start.
func (s *Server) Stop(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		logger.Debug("Ops endpoint shutdown initiated")

		if err := s.server.Shutdown(ctx); err != nil {
			shutdownErr = fmt.Errorf("ops endpoint shutdown error: %w", err)
			logger.Error("Ops endpoint shutdown error", "error", err)
		} else {
			logger.Info("Ops endpoint stopped gracefully")
		}
	})
	return shutdownErr
}

// Addr returns the configured listen address.
func (s *Server) Addr() string {
	return s.server.Addr
}
