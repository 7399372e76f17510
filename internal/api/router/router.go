package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/propstack/buyer-leads/internal/auth"
	"github.com/propstack/buyer-leads/internal/buyers"
	httpmiddleware "github.com/propstack/buyer-leads/internal/http/middleware"
	"github.com/propstack/buyer-leads/pkg/logging"
)

// Config holds router configuration
type Config struct {
	Logger             *logging.Logger
	BuyersHandler      *buyers.Handler
	AuthHandler        *auth.Handler
	AuthSecret         string
	AllowDevTokens     bool
	CreateRatePerMin   int
	UpdateRatePerMin   int
	MetricsHandler     http.Handler
	CORSAllowedOrigins []string
}

// New creates a new Chi router with all routes configured
func New(cfg *Config) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Compress(5))
	if len(cfg.CORSAllowedOrigins) > 0 {
		r.Use(httpmiddleware.CORS(cfg.CORSAllowedOrigins))
	}
	if cfg.Logger != nil {
		r.Use(httpmiddleware.RequestLogger(cfg.Logger))
	}

	createLimit := httpmiddleware.RateLimit(cfg.CreateRatePerMin)
	updateLimit := httpmiddleware.RateLimit(cfg.UpdateRatePerMin)

	// Public endpoints
	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	if cfg.MetricsHandler != nil {
		r.Handle("/metrics", cfg.MetricsHandler)
	}
	if cfg.AllowDevTokens && cfg.AuthHandler != nil {
		r.Post("/auth/token", cfg.AuthHandler.IssueDevToken)
	}

	// Everything under /buyers requires an authenticated actor.
	r.Route("/buyers", func(r chi.Router) {
		r.Use(auth.RequireAuth(cfg.AuthSecret))

		r.Get("/", cfg.BuyersHandler.List)
		r.With(createLimit).Post("/", cfg.BuyersHandler.Create)
		r.Get("/export", cfg.BuyersHandler.Export)
		r.Post("/import", cfg.BuyersHandler.Import)

		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", cfg.BuyersHandler.Get)
			r.With(updateLimit).Put("/", cfg.BuyersHandler.Update)
			r.Delete("/", cfg.BuyersHandler.Delete)
		})
	})

	return r
}
