package exporter

import (
	"context"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/nixlim/herd-top/internal/errors"
)

const shutdownTimeout = 5 * time.Second

// Server serves /metrics for a fixed set of farms.
type Server struct {
	srv      *http.Server
	registry *prometheus.Registry
	logger   *zap.SugaredLogger
}

func NewServer(listen string, collector *Collector, logger *zap.SugaredLogger) (*Server, error) {
	reg := prometheus.NewRegistry()
	if err := reg.Register(collector); err != nil {
		return nil, errors.Wrap(err, "registering alert collector")
	}
	if err := reg.Register(collectors.NewGoCollector()); err != nil {
		return nil, errors.Wrap(err, "registering go collector")
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok\n"))
	})

	return &Server{
		srv: &http.Server{
			Addr:              listen,
			Handler:           mux,
			ReadHeaderTimeout: 10 * time.Second,
		},
		registry: reg,
		logger:   logger,
	}, nil
}

// Registry exposes the metrics registry for tests and extra collectors.
func (s *Server) Registry() *prometheus.Registry { return s.registry }

func (s *Server) Handler() http.Handler { return s.srv.Handler }

// Run listens until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.srv.Addr)
	if err != nil {
		return errors.WithHintf(errors.Wrapf(err, "listening on %s", s.srv.Addr),
			"set [exporter] listen or pass --listen with a free address")
	}
	s.logger.Infow("exporter listening", "addr", ln.Addr().String())

	errCh := make(chan error, 1)
	go func() {
		errCh <- s.srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return errors.Wrap(err, "serving metrics")
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := s.srv.Shutdown(shutdownCtx); err != nil {
			return errors.Wrap(err, "shutting down exporter")
		}
		s.logger.Infow("exporter stopped")
		return nil
	}
}
