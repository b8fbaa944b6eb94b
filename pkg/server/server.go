// Package server - общий HTTP сервер сервисов с graceful shutdown.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	"shortlink/pkg/config"
	"shortlink/pkg/logger"
)

// HTTPServer обёртка над http.Server
type HTTPServer struct {
	server          *http.Server
	shutdownTimeout time.Duration
	name            string
}

// New создаёт HTTP сервер с поддержкой H2C
func New(cfg *config.HTTPConfig, name string, handler http.Handler) *HTTPServer {
	return &HTTPServer{
		name:            name,
		shutdownTimeout: cfg.ShutdownTimeout,
		server: &http.Server{
			Addr:         fmt.Sprintf(":%d", cfg.Port),
			Handler:      h2c.NewHandler(handler, &http2.Server{}),
			ReadTimeout:  cfg.ReadTimeout,
			WriteTimeout: cfg.WriteTimeout,
		},
	}
}

// NewOnPort создаёт сервер на произвольном порту (например /metrics listener)
func NewOnPort(port int, name string, handler http.Handler) *HTTPServer {
	return &HTTPServer{
		name:            name,
		shutdownTimeout: 5 * time.Second,
		server: &http.Server{
			Addr:         fmt.Sprintf(":%d", port),
			Handler:      handler,
			ReadTimeout:  5 * time.Second,
			WriteTimeout: 10 * time.Second,
		},
	}
}

// Run запускает сервер и блокируется до SIGINT/SIGTERM или отмены ctx,
// после чего выполняет graceful shutdown.
func (s *HTTPServer) Run(ctx context.Context) error {
	errCh := make(chan error, 1)

	go func() {
		logger.Log.Info("HTTP server listening", "service", s.name, "addr", s.server.Addr)
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	select {
	case err := <-errCh:
		return fmt.Errorf("server failed: %w", err)
	case sig := <-quit:
		logger.Log.Info("Shutdown signal received", "service", s.name, "signal", sig.String())
	case <-ctx.Done():
		logger.Log.Info("Context cancelled, shutting down", "service", s.name)
	}

	return s.Shutdown()
}

// Start запускает сервер в фоне (для дополнительных listener'ов,
// например /metrics у ingestor'а)
func (s *HTTPServer) Start() {
	go func() {
		logger.Log.Info("HTTP server listening", "service", s.name, "addr", s.server.Addr)
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Log.Error("HTTP server failed", "service", s.name, "error", err)
		}
	}()
}

// Shutdown останавливает сервер с таймаутом из конфигурации
func (s *HTTPServer) Shutdown() error {
	timeout := s.shutdownTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}
	logger.Log.Info("HTTP server stopped", "service", s.name)
	return nil
}
