package metrics

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"
)

const defaultEndpoint = "/metrics"

// Server exposes a registry over HTTP
type Server struct {
	Endpoint string

	server   *http.Server
	listener net.Listener
}

// NewServer listens on addr and serves the gatherer's metrics at endpoint, /metrics when empty
func NewServer(addr, endpoint string, gatherer prometheus.Gatherer) (*Server, error) {
	if endpoint == "" {
		endpoint = defaultEndpoint
	}

	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("listen on %s: %w", addr, err)
	}

	router := mux.NewRouter()
	router.Handle(endpoint, promhttp.HandlerFor(
		gatherer,
		promhttp.HandlerOpts{EnableOpenMetrics: true})).Methods(http.MethodGet)

	return &Server{
		Endpoint: endpoint,
		server:   &http.Server{Handler: router},
		listener: lis,
	}, nil
}

// Addr is the address the server listens on
func (s *Server) Addr() string {
	return s.listener.Addr().String()
}

// Serve blocks until Shutdown is called
func (s *Server) Serve() {
	log.Infof("serving metrics on %s%s", s.Addr(), s.Endpoint)
	if err := s.server.Serve(s.listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Errorf("metrics server: %v", err)
	}
}

// Shutdown stops the metrics server
func (s *Server) Shutdown(ctx context.Context) error {
	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("http server: %w", err)
	}
	return nil
}
