// Package metrics define telemetry primitives to use across components. it uses the prometheus format.
package metrics

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Server serves /metrics until its context is canceled.
type Server struct {
	srv *http.Server
	lis net.Listener
}

// StartMetricsServer begins listening and supplying metrics on addr/metrics.
func StartMetricsServer(ctx context.Context, logger *zap.Logger, addr string) (*Server, error) {
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("listen metrics on %s: %w", addr, err)
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	s := &Server{
		srv: &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second},
		lis: lis,
	}
	go func() {
		if err := s.srv.Serve(lis); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Warn("metrics server stopped", zap.Error(err))
		}
	}()
	context.AfterFunc(ctx, func() {
		s.srv.Close()
	})
	return s, nil
}

// Addr is the address the server listens on.
func (s *Server) Addr() string {
	return s.lis.Addr().String()
}
