package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/teemow/inboxrelay/internal/instrumentation"
	"github.com/teemow/inboxrelay/internal/logging"
)

const (
	// DefaultMetricsAddr is the default address for the ops server.
	DefaultMetricsAddr = ":9090"

	// DefaultMetricsReadTimeout is the default read timeout for the ops server.
	DefaultMetricsReadTimeout = 10 * time.Second

	// DefaultMetricsWriteTimeout is the default write timeout for the ops server.
	DefaultMetricsWriteTimeout = 10 * time.Second

	// DefaultMetricsIdleTimeout is the default idle timeout for the ops server.
	DefaultMetricsIdleTimeout = 60 * time.Second

	// DefaultShutdownTimeout is the default timeout for graceful server shutdown.
	DefaultShutdownTimeout = 30 * time.Second
)

// MetricsServerConfig holds configuration for the ops server.
type MetricsServerConfig struct {
	// Addr is the address to bind to (e.g., ":9090").
	Addr string

	// InstrumentationProvider decides whether /metrics is mounted.
	InstrumentationProvider *instrumentation.Provider

	// Health serves the probe endpoints. Required.
	Health *HealthChecker

	Logger *slog.Logger
}

// MetricsServer serves Prometheus metrics and health probes on a dedicated port.
type MetricsServer struct {
	addr    string
	handler http.Handler
	logger  *slog.Logger

	mu         sync.Mutex
	httpServer *http.Server
	listener   net.Listener
}

// NewMetricsServer creates the ops server. /metrics is only mounted when the
// provider exports to Prometheus.
func NewMetricsServer(config MetricsServerConfig) (*MetricsServer, error) {
	if config.Addr == "" {
		config.Addr = DefaultMetricsAddr
	}
	if config.Health == nil {
		return nil, fmt.Errorf("health checker is required for metrics server")
	}
	if config.Logger == nil {
		config.Logger = slog.Default()
	}

	mux := http.NewServeMux()
	// The OpenTelemetry prometheus exporter registers to the global registry,
	// which promhttp.Handler() exposes.
	if config.InstrumentationProvider != nil && config.InstrumentationProvider.ServesPrometheus() {
		mux.Handle("/metrics", promhttp.Handler())
	}
	config.Health.RegisterHealthEndpoints(mux)

	return &MetricsServer{
		addr:    config.Addr,
		handler: mux,
		logger:  logging.WithComponent(config.Logger, "ops-server"),
	}, nil
}

// Handler returns the routed handler.
func (s *MetricsServer) Handler() http.Handler {
	return s.handler
}

// Start binds the address and serves until Shutdown. It blocks; a clean
// shutdown returns nil.
func (s *MetricsServer) Start() error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", s.addr, err)
	}

	srv := &http.Server{
		Handler:           s.handler,
		ReadHeaderTimeout: DefaultMetricsReadTimeout,
		WriteTimeout:      DefaultMetricsWriteTimeout,
		IdleTimeout:       DefaultMetricsIdleTimeout,
	}
	s.mu.Lock()
	s.httpServer = srv
	s.listener = ln
	s.mu.Unlock()

	s.logger.Info("starting ops server", slog.String("addr", ln.Addr().String()))
	if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown gracefully shuts down the server. It is a no-op before Start.
func (s *MetricsServer) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	srv := s.httpServer
	s.mu.Unlock()
	if srv == nil {
		return nil
	}
	s.logger.Info("shutting down ops server")
	return srv.Shutdown(ctx)
}

// Addr returns the bound address once started, otherwise the configured one.
func (s *MetricsServer) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.addr
}
