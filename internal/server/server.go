package server

import (
	"context"
	"net/http"

	"tasktrack/backend/internal/config"
)

const maxHeaderBytes = 1 << 20

// Server wraps an *http.Server with the configured timeouts and a graceful
// shutdown hook.
type Server struct {
	httpServer *http.Server
}

func New(cfg config.ServerConfig, addr string, handler http.Handler) *Server {
	return &Server{
		httpServer: &http.Server{
			Addr:           addr,
			Handler:        handler,
			MaxHeaderBytes: maxHeaderBytes,
			ReadTimeout:    cfg.ReadTimeout,
			WriteTimeout:   cfg.WriteTimeout,
			IdleTimeout:    cfg.IdleTimeout,
		},
	}
}

// Run blocks serving requests until the listener fails or Shutdown is called.
func (s *Server) Run() error {
	return s.httpServer.ListenAndServe()
}

// Shutdown stops accepting connections and waits for in-flight requests up
// to the context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
