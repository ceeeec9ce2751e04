package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"godwatch/internal/admin"
	"godwatch/internal/offense"
)

// Watcher is the read-only view of the service the API exposes.
type Watcher interface {
	// Admins lists tracked admins
	Admins() []admin.Record
	// Offenses lists offense counters, highest first
	Offenses() []offense.Entry
	// Status returns a summary for dashboards
	Status() Status
}

// RouterConfig contains all dependencies needed to construct the HTTP router.
type RouterConfig struct {
	// Watcher is the service view (required)
	Watcher Watcher

	// Bridge serves the game server websocket; /bridge is not mounted if nil
	Bridge http.Handler

	// RateLimiter is an optional pre-configured limiter for /api routes.
	// If nil, one is created from RateLimitConfig or DefaultRateLimitConfig.
	RateLimiter     *IPRateLimiter
	RateLimitConfig *RateLimitConfig

	// CORSOrigins defaults to localhost only
	CORSOrigins []string

	// DisableLogging disables the request logger middleware
	DisableLogging bool
}

type routerHandlers struct {
	watcher Watcher
}

// NewRouter builds the HTTP router. It starts no goroutines beyond the
// limiter's cleanup loop and opens no listeners, so it is safe to use with
// httptest.NewServer.
func NewRouter(cfg RouterConfig) *chi.Mux {
	r := chi.NewRouter()

	if !cfg.DisableLogging {
		r.Use(middleware.Logger)
	}
	r.Use(middleware.Recoverer)

	rateLimiter := cfg.RateLimiter
	if rateLimiter == nil {
		rateLimitCfg := DefaultRateLimitConfig
		if cfg.RateLimitConfig != nil {
			rateLimitCfg = *cfg.RateLimitConfig
		}
		rateLimiter = NewIPRateLimiter(rateLimitCfg)
	}

	corsOrigins := cfg.CORSOrigins
	if corsOrigins == nil {
		corsOrigins = []string{
			"http://localhost:*",
			"http://127.0.0.1:*",
		}
	}

	h := &routerHandlers{watcher: cfg.Watcher}

	r.Route("/api", func(r chi.Router) {
		r.Use(rateLimiter.Middleware)
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: corsOrigins,
			AllowedMethods: []string{"GET", "OPTIONS"},
			AllowedHeaders: []string{"Accept", "Content-Type"},
		}))

		r.Get("/status", h.handleGetStatus)
		r.Get("/admins", h.handleGetAdmins)
		r.Get("/admins/{id}", h.handleGetAdmin)
		r.Get("/offenses", h.handleGetOffenses)
	})

	if cfg.Bridge != nil {
		r.Handle("/bridge", cfg.Bridge)
	}

	r.Handle("/metrics", promhttp.Handler())
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	return r
}
