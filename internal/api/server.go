package api

import (
	"context"
	"net/http"
	"time"

	"github.com/ignite/newsletter-engine/internal/config"
)

// Server is the HTTP front of the engine.
type Server struct {
	server *http.Server
}

// NewServer wires the handlers into an HTTP server.
func NewServer(cfg config.ServerConfig, h *Handlers, webhookSecret string) *Server {
	return &Server{
		server: &http.Server{
			Addr:              cfg.Addr(),
			Handler:           SetupRoutes(h, webhookSecret),
			ReadTimeout:       cfg.ReadTimeout(),
			ReadHeaderTimeout: 15 * time.Second,
			// The send endpoint responds only after all batches are paced
			// out, so the write timeout covers a full dispatch.
			WriteTimeout: cfg.WriteTimeout(),
			IdleTimeout:  120 * time.Second,
		},
	}
}

// ListenAndServe starts the HTTP server.
func (s *Server) ListenAndServe() error {
	return s.server.ListenAndServe()
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}
