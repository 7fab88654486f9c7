package cli

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// metricsServer exposes a registry for scraping. It is read-only: nothing
// served here can change the controller.
type metricsServer struct {
	server   *http.Server
	listener net.Listener
	logger   *slog.Logger
}

// newMetricsRegistry returns a registry with the Go runtime and process
// collectors registered alongside the controller's own metrics.
func newMetricsRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

// startMetricsServer listens on addr and serves /metrics and /health.
func startMetricsServer(addr string, reg *prometheus.Registry, logger *slog.Logger) (*metricsServer, error) {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	}))
	mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})

	s := &metricsServer{
		server: &http.Server{
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		},
		listener: listener,
		logger:   logger,
	}

	go func() {
		if err := s.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server failed", "error", err)
		}
	}()

	logger.Info("metrics server listening", "addr", listener.Addr().String())
	return s, nil
}

// Addr returns the address the server is bound to.
func (s *metricsServer) Addr() string {
	return s.listener.Addr().String()
}

// Shutdown stops the server, waiting up to five seconds for scrapes in
// flight.
func (s *metricsServer) Shutdown() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.server.Shutdown(ctx); err != nil {
		s.logger.Error("metrics server shutdown", "error", err)
	}
}
