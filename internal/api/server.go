package api

import (
	"context"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/pkg/errors"
)

// Server is the HTTP listener for the status API and the bridge endpoint.
type Server struct {
	router      *chi.Mux
	rateLimiter *IPRateLimiter

	mu         sync.Mutex
	httpServer *http.Server
}

// NewServer creates a server. Nothing listens until Start.
func NewServer(cfg RouterConfig) *Server {
	if cfg.RateLimiter == nil {
		rateLimitCfg := DefaultRateLimitConfig
		if cfg.RateLimitConfig != nil {
			rateLimitCfg = *cfg.RateLimitConfig
		}
		cfg.RateLimiter = NewIPRateLimiter(rateLimitCfg)
	}
	return &Server{
		router:      NewRouter(cfg),
		rateLimiter: cfg.RateLimiter,
	}
}

// Router returns the HTTP handler for use with httptest
func (s *Server) Router() http.Handler {
	return s.router
}

// Start listens on addr and blocks until the server stops.
// http.ErrServerClosed is not reported as an error.
func (s *Server) Start(addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.mu.Lock()
	s.httpServer = srv
	s.mu.Unlock()

	log.Printf("🌐 API server starting on %s", addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return errors.Wrapf(err, "listening on %s", addr)
	}
	return nil
}

// Shutdown stops accepting connections and waits for handlers to finish.
// The bridge websocket is hijacked and closes when the process exits.
func (s *Server) Shutdown(ctx context.Context) error {
	s.rateLimiter.Stop()

	s.mu.Lock()
	srv := s.httpServer
	s.mu.Unlock()
	if srv == nil {
		return nil
	}
	return errors.WithStack(srv.Shutdown(ctx))
}
